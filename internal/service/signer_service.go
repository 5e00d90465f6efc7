package service

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"wallet-sync-engine/internal/core/domain"
)

// KeyringSigner implements ports.RecordSigner with an in-process keyring.
// Key custody and authentication live outside this core; the keyring holds
// whatever private keys the calling context has unlocked for the session.
type KeyringSigner struct {
	mu   sync.RWMutex
	keys map[domain.Identity]ed25519.PrivateKey
}

// NewKeyringSigner creates an empty keyring.
func NewKeyringSigner() *KeyringSigner {
	return &KeyringSigner{keys: make(map[domain.Identity]ed25519.PrivateKey)}
}

// Register adds a private key for the identity it belongs to.
func (s *KeyringSigner) Register(identity domain.Identity, priv ed25519.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[identity] = priv
}

// Sign produces the store-level author signature over the payload.
func (s *KeyringSigner) Sign(identity domain.Identity, payload []byte) ([]byte, error) {
	s.mu.RLock()
	priv, ok := s.keys[identity]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no signing key registered for identity %s", identity)
	}
	return ed25519.Sign(priv, payload), nil
}
