package ports

import (
	"context"
	"time"

	"wallet-sync-engine/internal/core/domain"
)

// AddressResolver derives the deterministic wallet address for an identity.
type AddressResolver interface {
	Derive(identity domain.Identity) (domain.WalletAddress, error)
}

// StateFetcher retrieves every raw record for an identity, absorbing
// replication lag with bounded exponential backoff. It returns all records
// found, not just the first, so the caller can detect duplicates. An empty
// result after the full retry budget is the definitive "not found".
type StateFetcher interface {
	Fetch(ctx context.Context, identity domain.Identity) ([]domain.RawRecord, error)
}

// OwnershipVerifier decides whether a raw record provably belongs to the
// requesting identity. Rejection is fatal for the record, never for the
// operation.
type OwnershipVerifier interface {
	Verify(raw domain.RawRecord, identity domain.Identity) (*domain.VerifiedRecord, error)
}

// Consolidator merges verified candidate records for one identity into a
// single canonical record via value-preserving union. Associative and
// idempotent: re-running it on the same or overlapping inputs cannot lose
// a proof.
type Consolidator interface {
	Consolidate(identity domain.Identity, records []domain.VerifiedRecord) (*domain.WalletRecord, error)
}

// DurablePublisher sequences "intend to publish" before "publish" so a
// crash mid-write is recoverable without duplicate creation.
type DurablePublisher interface {
	// Publish marks, publishes, and confirms the record. On PUB_001 the
	// marker is left in place for the next run to recover.
	Publish(ctx context.Context, identity domain.Identity, rec *domain.WalletRecord) error

	// Recover inspects a leftover pending marker. If the marked record is
	// already retrievable among the given raw records it is adopted and the
	// marker cleared; otherwise the identical publish is retried.
	Recover(ctx context.Context, identity domain.Identity, fetched []domain.RawRecord) (*domain.WalletRecord, error)
}

// RecordCache is the local cache of the last verified canonical record:
// in-memory entry plus encrypted durable snapshot, TTL-bounded, triple
// ownership verified on every read.
type RecordCache interface {
	Get(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, bool)
	Set(ctx context.Context, identity domain.Identity, rec *domain.WalletRecord)
	// GetStale returns the last verified snapshot regardless of TTL, for
	// degraded-mode reads. Ownership checks still apply.
	GetStale(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, bool)
	Purge(ctx context.Context, identity domain.Identity)
}

// RecordSigner produces the store-level author signature for a payload.
// Key custody lives outside this core.
type RecordSigner interface {
	Sign(identity domain.Identity, payload []byte) ([]byte, error)
}

// Balance is the result of a balance read: the amount plus whether it came
// from a stale snapshot because live sync failed.
type Balance struct {
	Amount int64
	Stale  bool
}

// WalletService is the public API of the engine consumed by the rest of the
// application. All operations are single-flight per identity: concurrent
// callers for the same identity join the in-flight result.
type WalletService interface {
	InitializeWallet(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, error)
	GetBalance(ctx context.Context, identity domain.Identity) (*Balance, error)
	ApplyDelta(ctx context.Context, identity domain.Identity, added, removed []domain.BearerProof) (*domain.WalletRecord, error)
	ForceResync(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, error)
}

// EncryptionService handles AES-256-GCM encryption of durable local payloads.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenService handles session token operations for the HTTP surface.
type TokenService interface {
	Generate(identity domain.Identity) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed session token claims.
type TokenClaims struct {
	Identity domain.Identity
}
