package service

import (
	"context"
	"sync"
	"time"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// DefaultCacheTTL bounds how stale a served balance may be.
const DefaultCacheTTL = 2 * time.Minute

// RecordCacheImpl implements ports.RecordCache: an in-memory entry backed by
// the encrypted durable snapshot. A read is served only when three checks
// pass: the entry's bound owner is the active identity, the record's
// embedded owner (when present) is too, and the entry is younger than the
// TTL. An ownership mismatch purges the entry and forces a full resync;
// the cache never serves data it cannot prove belongs to the caller.
type RecordCacheImpl struct {
	mu       sync.RWMutex
	entries  map[domain.Identity]*domain.Snapshot
	local    ports.LocalStore
	resolver ports.AddressResolver
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewRecordCache creates a new RecordCacheImpl. ttl <= 0 selects the default.
func NewRecordCache(local ports.LocalStore, resolver ports.AddressResolver, ttl time.Duration, log zerolog.Logger) *RecordCacheImpl {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RecordCacheImpl{
		entries:  make(map[domain.Identity]*domain.Snapshot),
		local:    local,
		resolver: resolver,
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// Get returns the cached canonical record if it passes the triple ownership
// check and is within TTL.
func (c *RecordCacheImpl) Get(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, bool) {
	return c.get(ctx, identity, true)
}

// GetStale returns the last verified record regardless of TTL, for
// degraded-mode reads when a live sync has failed. Ownership checks still
// apply in full.
func (c *RecordCacheImpl) GetStale(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, bool) {
	return c.get(ctx, identity, false)
}

func (c *RecordCacheImpl) get(ctx context.Context, identity domain.Identity, enforceTTL bool) (*domain.WalletRecord, bool) {
	c.mu.RLock()
	snap := c.entries[identity]
	c.mu.RUnlock()

	if snap == nil {
		snap = c.loadDurable(ctx, identity)
		if snap == nil {
			return nil, false
		}
	}

	if !c.verifyOwnership(ctx, identity, snap) {
		return nil, false
	}
	if enforceTTL && c.now().Sub(snap.FetchedAt) >= c.ttl {
		return nil, false
	}

	rec := snap.Record
	return &rec, true
}

// Set stores the record in memory and as an encrypted durable snapshot.
func (c *RecordCacheImpl) Set(ctx context.Context, identity domain.Identity, rec *domain.WalletRecord) {
	snap := &domain.Snapshot{
		Record:     *rec,
		BoundOwner: identity,
		FetchedAt:  c.now().UTC(),
	}

	c.mu.Lock()
	c.entries[identity] = snap
	c.mu.Unlock()

	if err := c.local.SetSnapshot(ctx, rec.Address, snap); err != nil {
		// Best-effort: memory still serves until TTL, next sync rewrites.
		c.log.Warn().Err(err).Str("address", rec.Address.String()).Msg("failed to persist wallet snapshot")
	}
}

// Purge drops the entry for the identity from memory and durable storage.
func (c *RecordCacheImpl) Purge(ctx context.Context, identity domain.Identity) {
	c.mu.Lock()
	delete(c.entries, identity)
	c.mu.Unlock()

	address, err := c.resolver.Derive(identity)
	if err != nil {
		return
	}
	if err := c.local.DeleteSnapshot(ctx, address); err != nil {
		c.log.Warn().Err(err).Str("address", address.String()).Msg("failed to delete wallet snapshot")
	}
}

func (c *RecordCacheImpl) loadDurable(ctx context.Context, identity domain.Identity) *domain.Snapshot {
	address, err := c.resolver.Derive(identity)
	if err != nil {
		return nil
	}
	snap, err := c.local.GetSnapshot(ctx, address)
	if err != nil {
		c.log.Warn().Err(err).Str("address", address.String()).Msg("failed to read wallet snapshot")
		return nil
	}
	if snap == nil {
		return nil
	}

	c.mu.Lock()
	c.entries[identity] = snap
	c.mu.Unlock()
	return snap
}

// verifyOwnership runs the ownership half of the triple check. Any mismatch
// purges the entry so it can never be served to the wrong identity.
func (c *RecordCacheImpl) verifyOwnership(ctx context.Context, identity domain.Identity, snap *domain.Snapshot) bool {
	if snap.BoundOwner != identity {
		c.log.Warn().
			Bool("security_event", true).
			Str("bound_owner", snap.BoundOwner.String()).
			Str("requesting_identity", identity.String()).
			Msg("cached entry bound to different identity, purging")
		c.Purge(ctx, identity)
		return false
	}
	if snap.Record.Owner != "" && snap.Record.Owner != identity {
		c.log.Warn().
			Bool("security_event", true).
			Str("embedded_owner", snap.Record.Owner.String()).
			Str("requesting_identity", identity.String()).
			Msg("cached record embeds different owner, purging")
		c.Purge(ctx, identity)
		return false
	}
	return true
}
