package service

import (
	"crypto/ed25519"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// OwnershipVerifierImpl implements ports.OwnershipVerifier. A record passes
// only if the store-level author signature checks out against the requesting
// identity AND the decrypted payload's embedded owner, when present, names
// the same identity. The second check catches store-level filter bypass and
// malicious records squatting on the queried address.
type OwnershipVerifierImpl struct {
	log zerolog.Logger
}

// NewOwnershipVerifier creates a new OwnershipVerifierImpl.
func NewOwnershipVerifier(log zerolog.Logger) *OwnershipVerifierImpl {
	return &OwnershipVerifierImpl{log: log}
}

// Verify checks that raw provably belongs to identity. A failed check is
// fatal for the record only: it is logged as a security event and discarded,
// and other records in the same batch still proceed.
func (v *OwnershipVerifierImpl) Verify(raw domain.RawRecord, identity domain.Identity) (*domain.VerifiedRecord, error) {
	if raw.Author != identity {
		v.logSecurityEvent(raw, identity, "store author does not match requesting identity")
		return nil, apperror.ErrOwnershipMismatch("store author does not match requesting identity")
	}

	pub, err := identity.PublicKey()
	if err != nil {
		return nil, apperror.ErrInvalidIdentity(err.Error())
	}
	if !ed25519.Verify(pub, raw.Payload, raw.Sig) {
		v.logSecurityEvent(raw, identity, "author signature invalid")
		return nil, apperror.ErrOwnershipMismatch("author signature invalid")
	}

	rec, err := domain.ParseRecordPayload(raw.Payload)
	if err != nil {
		v.log.Warn().
			Err(err).
			Str("record_id", raw.ID).
			Msg("record payload unreadable, discarding")
		return nil, apperror.ErrRecordUnreadable(err)
	}

	if rec.Owner != "" && rec.Owner != identity {
		v.logSecurityEvent(raw, identity, "embedded owner does not match requesting identity")
		return nil, apperror.ErrOwnershipMismatch("embedded owner does not match requesting identity")
	}

	return &domain.VerifiedRecord{Raw: raw, Record: *rec}, nil
}

func (v *OwnershipVerifierImpl) logSecurityEvent(raw domain.RawRecord, identity domain.Identity, reason string) {
	v.log.Warn().
		Bool("security_event", true).
		Str("record_id", raw.ID).
		Str("record_author", raw.Author.String()).
		Str("requesting_identity", identity.String()).
		Str("reason", reason).
		Msg("rejected record failing ownership verification")
}
