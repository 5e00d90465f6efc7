package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// LocalStore implements ports.LocalStore using Redis. It keeps exactly two
// keys per wallet address: the last-known snapshot and the pending-publication
// marker. Both values are JSON-serialized and encrypted at rest; neither key
// carries a TTL because the staleness decision belongs to the cache layer and
// a pending marker must survive until explicitly cleared.
type LocalStore struct {
	client     *goredis.Client
	encryption ports.EncryptionService
}

// NewLocalStore creates a Redis-backed durable local store.
func NewLocalStore(client *goredis.Client, encryption ports.EncryptionService) *LocalStore {
	return &LocalStore{
		client:     client,
		encryption: encryption,
	}
}

func snapshotKey(address domain.WalletAddress) string {
	return "wallet:snapshot:" + string(address)
}

func markerKey(address domain.WalletAddress) string {
	return "wallet:marker:" + string(address)
}

// GetSnapshot retrieves the stored snapshot for an address.
// Returns nil, nil if none exists.
func (s *LocalStore) GetSnapshot(ctx context.Context, address domain.WalletAddress) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	found, err := s.get(ctx, snapshotKey(address), &snap)
	if err != nil {
		return nil, fmt.Errorf("redis snapshot get: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SetSnapshot stores the snapshot for an address, replacing any previous one.
func (s *LocalStore) SetSnapshot(ctx context.Context, address domain.WalletAddress, snap *domain.Snapshot) error {
	if err := s.set(ctx, snapshotKey(address), snap); err != nil {
		return fmt.Errorf("redis snapshot set: %w", err)
	}
	return nil
}

// DeleteSnapshot removes the stored snapshot for an address.
func (s *LocalStore) DeleteSnapshot(ctx context.Context, address domain.WalletAddress) error {
	if err := s.client.Del(ctx, snapshotKey(address)).Err(); err != nil {
		return fmt.Errorf("redis snapshot delete: %w", err)
	}
	return nil
}

// GetMarker retrieves the pending-publication marker for an address.
// Returns nil, nil if none exists.
func (s *LocalStore) GetMarker(ctx context.Context, address domain.WalletAddress) (*domain.PendingMarker, error) {
	var marker domain.PendingMarker
	found, err := s.get(ctx, markerKey(address), &marker)
	if err != nil {
		return nil, fmt.Errorf("redis marker get: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &marker, nil
}

// SetMarker stores the pending-publication marker for an address.
func (s *LocalStore) SetMarker(ctx context.Context, address domain.WalletAddress, marker *domain.PendingMarker) error {
	if err := s.set(ctx, markerKey(address), marker); err != nil {
		return fmt.Errorf("redis marker set: %w", err)
	}
	return nil
}

// ClearMarker removes the pending-publication marker for an address.
func (s *LocalStore) ClearMarker(ctx context.Context, address domain.WalletAddress) error {
	if err := s.client.Del(ctx, markerKey(address)).Err(); err != nil {
		return fmt.Errorf("redis marker clear: %w", err)
	}
	return nil
}

func (s *LocalStore) set(ctx context.Context, key string, value any) error {
	plain, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	sealed, err := s.encryption.Encrypt(string(plain))
	if err != nil {
		return fmt.Errorf("encrypting value: %w", err)
	}
	return s.client.Set(ctx, key, sealed, 0).Err()
}

func (s *LocalStore) get(ctx context.Context, key string, out any) (bool, error) {
	sealed, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, err
	}
	plain, err := s.encryption.Decrypt(sealed)
	if err != nil {
		return false, fmt.Errorf("decrypting value: %w", err)
	}
	if err := json.Unmarshal([]byte(plain), out); err != nil {
		return false, fmt.Errorf("decoding value: %w", err)
	}
	return true, nil
}
