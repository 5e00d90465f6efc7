package service

import (
	"fmt"
	"sort"

	"wallet-sync-engine/internal/core/domain"

	"github.com/rs/zerolog"
)

// ConsolidatorImpl implements ports.Consolidator. Multiple records for one
// identity mean concurrent creation happened somewhere (two devices, a
// crash-retry race, replication weirdness); the merge is a value-preserving
// union, so running it again on the same or overlapping inputs can only
// converge, never lose a proof.
type ConsolidatorImpl struct {
	log zerolog.Logger
}

// NewConsolidator creates a new ConsolidatorImpl.
func NewConsolidator(log zerolog.Logger) *ConsolidatorImpl {
	return &ConsolidatorImpl{log: log}
}

// Consolidate merges the verified records into one canonical record.
// With a single input the record is returned unchanged. With more, proofs
// are unioned (deduplicated by UniqueID) in ascending sequence order and the
// result takes sequence max+1, superseding every input.
func (c *ConsolidatorImpl) Consolidate(identity domain.Identity, records []domain.VerifiedRecord) (*domain.WalletRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("consolidate called with no records")
	}

	if len(records) == 1 {
		rec := records[0].Record
		return &rec, nil
	}

	// Sequence, not arrival order, is authoritative.
	sorted := make([]domain.VerifiedRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Record.Sequence < sorted[j].Record.Sequence
	})

	var union []domain.BearerProof
	var maxSeq uint64
	for _, vr := range sorted {
		union = append(union, vr.Record.Proofs...)
		if vr.Record.Sequence > maxSeq {
			maxSeq = vr.Record.Sequence
		}
	}

	merged := &domain.WalletRecord{
		Address:  sorted[0].Record.Address,
		Owner:    identity,
		Sequence: maxSeq + 1,
		Proofs:   domain.DedupProofs(union),
	}

	c.log.Info().
		Int("input_records", len(records)).
		Uint64("new_sequence", merged.Sequence).
		Int("proofs", len(merged.Proofs)).
		Int64("balance", merged.Balance()).
		Msg("consolidated divergent wallet records")

	return merged, nil
}
