package domain

import (
	"fmt"
	"sort"
)

// BearerProof is an opaque token representing redeemable value at the
// external mint. Uniqueness is by UniqueID: two proofs sharing a UniqueID
// represent the same value and must be deduplicated, never summed.
type BearerProof struct {
	MintID   string `json:"mint_id"`
	Amount   int64  `json:"amount"`
	UniqueID string `json:"unique_id"`
	Secret   string `json:"secret"`
}

// Validate checks the fields this core is responsible for: amount and
// uniqueness key. Redemption truth lives with the mint.
func (p BearerProof) Validate() error {
	if p.UniqueID == "" {
		return fmt.Errorf("proof has empty unique id")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("proof %s has non-positive amount %d", p.UniqueID, p.Amount)
	}
	return nil
}

// DedupProofs returns the proofs deduplicated by UniqueID, sorted by
// UniqueID for deterministic ordering. The first occurrence of a UniqueID
// wins; duplicates carry the same value by definition.
func DedupProofs(proofs []BearerProof) []BearerProof {
	seen := make(map[string]struct{}, len(proofs))
	out := make([]BearerProof, 0, len(proofs))
	for _, p := range proofs {
		if _, ok := seen[p.UniqueID]; ok {
			continue
		}
		seen[p.UniqueID] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

// SumProofs returns the total value of the proofs, counting each distinct
// UniqueID exactly once.
func SumProofs(proofs []BearerProof) int64 {
	var total int64
	seen := make(map[string]struct{}, len(proofs))
	for _, p := range proofs {
		if _, ok := seen[p.UniqueID]; ok {
			continue
		}
		seen[p.UniqueID] = struct{}{}
		total += p.Amount
	}
	return total
}
