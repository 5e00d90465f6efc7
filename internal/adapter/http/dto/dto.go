// Package dto defines the request and response shapes of the HTTP API.
package dto

import "wallet-sync-engine/internal/core/domain"

// SessionRequest asks for a session token for an identity public key.
type SessionRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// SessionResponse carries the issued session token.
type SessionResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"`
}

// ProofDTO is the wire form of a bearer proof.
type ProofDTO struct {
	MintID   string `json:"mint_id" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
	UniqueID string `json:"unique_id" binding:"required"`
	Secret   string `json:"secret"`
}

// DeltaRequest lists proofs to add to and remove from the wallet.
type DeltaRequest struct {
	Added   []ProofDTO `json:"added"`
	Removed []ProofDTO `json:"removed"`
}

// WalletResponse is the wire form of a wallet record.
type WalletResponse struct {
	Address  string     `json:"address"`
	Owner    string     `json:"owner"`
	Sequence uint64     `json:"sequence"`
	Balance  int64      `json:"balance"`
	Proofs   []ProofDTO `json:"proofs"`
}

// BalanceResponse reports the wallet balance. Stale is true when live sync
// failed and the amount comes from the last verified local snapshot.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
	Stale   bool  `json:"stale"`
}

// ToProof converts a wire proof to its domain form.
func (p ProofDTO) ToProof() domain.BearerProof {
	return domain.BearerProof{
		MintID:   p.MintID,
		Amount:   p.Amount,
		UniqueID: p.UniqueID,
		Secret:   p.Secret,
	}
}

// ToProofs converts a slice of wire proofs.
func ToProofs(in []ProofDTO) []domain.BearerProof {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.BearerProof, 0, len(in))
	for _, p := range in {
		out = append(out, p.ToProof())
	}
	return out
}

// FromRecord converts a domain wallet record to its wire form.
func FromRecord(rec *domain.WalletRecord) WalletResponse {
	proofs := make([]ProofDTO, 0, len(rec.Proofs))
	for _, p := range rec.Proofs {
		proofs = append(proofs, ProofDTO{
			MintID:   p.MintID,
			Amount:   p.Amount,
			UniqueID: p.UniqueID,
			Secret:   p.Secret,
		})
	}
	return WalletResponse{
		Address:  string(rec.Address),
		Owner:    string(rec.Owner),
		Sequence: rec.Sequence,
		Balance:  rec.Balance(),
		Proofs:   proofs,
	}
}
