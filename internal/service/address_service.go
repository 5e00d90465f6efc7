package service

import (
	"crypto/sha256"
	"encoding/hex"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/pkg/apperror"
)

const (
	// addressPrefix marks wallet addresses in the store namespace.
	addressPrefix = "wlt1"
	// addressHashChars is how much of the key hash goes into the address.
	// 20 hex chars (80 bits) keeps collisions out of operational reach.
	addressHashChars = 20
)

// AddressResolverImpl implements ports.AddressResolver. Derivation is a pure
// function of the identity: no I/O, no clock, no mutable state, so writer
// and every future reader compute the same address independently.
type AddressResolverImpl struct{}

// NewAddressResolver creates a new AddressResolverImpl.
func NewAddressResolver() *AddressResolverImpl {
	return &AddressResolverImpl{}
}

// Derive returns the wallet address for the identity:
// prefix + first 20 hex chars of SHA-256 over the raw public key bytes.
func (r *AddressResolverImpl) Derive(identity domain.Identity) (domain.WalletAddress, error) {
	pub, err := identity.PublicKey()
	if err != nil {
		return "", apperror.ErrInvalidIdentity(err.Error())
	}
	sum := sha256.Sum256(pub)
	return domain.WalletAddress(addressPrefix + hex.EncodeToString(sum[:])[:addressHashChars]), nil
}
