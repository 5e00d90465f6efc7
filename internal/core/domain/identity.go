package domain

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Identity is the hex-encoded Ed25519 public key naming a user. It is the
// basis for deterministic wallet addressing and for every ownership check in
// the engine. Immutable for the lifetime of a session.
type Identity string

// Validate checks that the identity is a well-formed Ed25519 public key.
func (id Identity) Validate() error {
	raw, err := hex.DecodeString(string(id))
	if err != nil {
		return fmt.Errorf("decoding identity: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("identity must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return nil
}

// PublicKey returns the decoded Ed25519 public key.
func (id Identity) PublicKey() (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(string(id))
	if err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func (id Identity) String() string {
	return string(id)
}

// WalletAddress is the deterministic store address derived from an Identity.
// Same identity always derives the same address, so writer and any future
// reader agree on it without coordination.
type WalletAddress string

func (a WalletAddress) String() string {
	return string(a)
}
