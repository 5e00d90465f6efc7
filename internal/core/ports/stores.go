package ports

import (
	"context"

	"wallet-sync-engine/internal/core/domain"
)

// StoreClient talks to the replicated event store: N independently operated,
// eventually-consistent nodes with no cross-node coordination. Results are
// raw and unverified; no single node is trusted.
type StoreClient interface {
	// Query fans the same query out to every connected node and returns the
	// union of results deduplicated by record ID. Individual node failures
	// are non-fatal while at least one node answers; total unreachability
	// is reported as a NET_001 error.
	Query(ctx context.Context, address domain.WalletAddress, author domain.Identity) ([]domain.RawRecord, error)

	// Publish sends the record to all nodes. A positive ack from any node
	// does NOT guarantee global visibility; callers must re-query to confirm.
	Publish(ctx context.Context, rec domain.RawRecord) error
}

// LocalStore is the durable local storage consumed by this core: exactly two
// keys per wallet address, the last-known record snapshot and the
// pending-publication marker. Payloads are stored encrypted.
type LocalStore interface {
	GetSnapshot(ctx context.Context, address domain.WalletAddress) (*domain.Snapshot, error)
	SetSnapshot(ctx context.Context, address domain.WalletAddress, snap *domain.Snapshot) error
	DeleteSnapshot(ctx context.Context, address domain.WalletAddress) error

	GetMarker(ctx context.Context, address domain.WalletAddress) (*domain.PendingMarker, error)
	SetMarker(ctx context.Context, address domain.WalletAddress, marker *domain.PendingMarker) error
	ClearMarker(ctx context.Context, address domain.WalletAddress) error
}
