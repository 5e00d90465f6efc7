package service

import (
	"crypto/ed25519"
	"testing"

	"wallet-sync-engine/internal/core/domain"

	"github.com/stretchr/testify/require"
)

// signRecord builds the store-level envelope for a record the way a real
// client publish would: canonical payload, content-addressed ID, author
// signature.
func signRecord(t *testing.T, author domain.Identity, priv ed25519.PrivateKey, rec domain.WalletRecord) domain.RawRecord {
	t.Helper()
	payload, err := rec.CanonicalBytes()
	require.NoError(t, err)
	return domain.RawRecord{
		ID:      domain.HashPayload(payload),
		Author:  author,
		Payload: payload,
		Sig:     ed25519.Sign(priv, payload),
	}
}
