package domain

import "time"

// Snapshot is the durable local copy of the last verified canonical record,
// bound to the identity that verified it. An entry whose BoundOwner does not
// match the active session identity is discarded unread.
type Snapshot struct {
	Record     WalletRecord `json:"record"`
	BoundOwner Identity     `json:"bound_owner"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// PendingMarker records the intent to publish a specific record. It is
// written to durable storage strictly before the publish attempt and cleared
// only after the record is confirmed retrievable, so a crash between the two
// leaves a trail the next run recovers from instead of creating a duplicate.
type PendingMarker struct {
	Address    WalletAddress `json:"address"`
	RecordHash string        `json:"record_hash"`
	Record     WalletRecord  `json:"record"`
	CreatedAt  time.Time     `json:"created_at"`
}
