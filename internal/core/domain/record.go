package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// PayloadVersion is the current wallet record payload schema version.
// Records with an unknown version are discarded, never partially trusted.
const PayloadVersion = 1

// WalletRecord is the logical wallet state for one identity. Records are
// published immutably: state changes by issuing a new record with a higher
// sequence, never by editing. Sequence, not arrival order, is the sole
// ordering authority across records.
type WalletRecord struct {
	Address  WalletAddress `json:"address"`
	Owner    Identity      `json:"owner,omitempty"`
	Sequence uint64        `json:"sequence"`
	Proofs   []BearerProof `json:"proofs"`
}

// Balance returns the record's value, counting each distinct proof
// UniqueID exactly once.
func (r *WalletRecord) Balance() int64 {
	return SumProofs(r.Proofs)
}

// recordPayload is the versioned wire schema of a wallet record payload.
// The owner field is optional on read: older records may omit it.
type recordPayload struct {
	Version  int           `json:"v"`
	Address  WalletAddress `json:"address"`
	Owner    Identity      `json:"owner,omitempty"`
	Sequence uint64        `json:"sequence"`
	Proofs   []BearerProof `json:"proofs"`
}

// CanonicalBytes returns the deterministic payload encoding of the record:
// versioned schema, proofs deduplicated and sorted by UniqueID. Two records
// with the same logical content always produce identical bytes, which is
// what makes publish retries idempotent by content.
func (r *WalletRecord) CanonicalBytes() ([]byte, error) {
	p := recordPayload{
		Version:  PayloadVersion,
		Address:  r.Address,
		Owner:    r.Owner,
		Sequence: r.Sequence,
		Proofs:   DedupProofs(r.Proofs),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding record payload: %w", err)
	}
	return data, nil
}

// ContentHash returns the BLAKE2b-256 hex digest of the canonical payload.
// It identifies the write: a retried publish with the same content carries
// the same hash, and the pending-publication marker matches against it.
func (r *WalletRecord) ContentHash() (string, error) {
	data, err := r.CanonicalBytes()
	if err != nil {
		return "", err
	}
	return HashPayload(data), nil
}

// HashPayload returns the BLAKE2b-256 hex digest of raw payload bytes.
func HashPayload(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseRecordPayload decodes a versioned record payload. Parsing fails
// closed: an unknown version, malformed JSON, or an invalid proof discards
// the whole record rather than trusting partial data.
func ParseRecordPayload(data []byte) (*WalletRecord, error) {
	var p recordPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding record payload: %w", err)
	}
	if p.Version != PayloadVersion {
		return nil, fmt.Errorf("unsupported payload version %d", p.Version)
	}
	if p.Address == "" {
		return nil, fmt.Errorf("record payload missing address")
	}
	for _, proof := range p.Proofs {
		if err := proof.Validate(); err != nil {
			return nil, fmt.Errorf("record payload: %w", err)
		}
	}
	return &WalletRecord{
		Address:  p.Address,
		Owner:    p.Owner,
		Sequence: p.Sequence,
		Proofs:   DedupProofs(p.Proofs),
	}, nil
}

// RawRecord is the store-level envelope of a record as returned by a node:
// content-addressed ID, store-level author, opaque payload, author
// signature over the payload. Nothing in it is trusted until verified.
type RawRecord struct {
	ID      string   `json:"id"`
	Author  Identity `json:"author"`
	Payload []byte   `json:"payload"`
	Sig     []byte   `json:"sig"`
}

// VerifiedRecord pairs a raw record with its decoded payload after both
// ownership checks passed.
type VerifiedRecord struct {
	Raw    RawRecord
	Record WalletRecord
}
