package service

import (
	"context"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/internal/core/ports"
	"wallet-sync-engine/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// WalletServiceImpl implements ports.WalletService. It owns the full sync
// pipeline (fetch, verify, recover, consolidate, publish, cache) and
// serializes wallet mutation per identity through single-flight: concurrent
// callers for the same identity join the in-flight sequence instead of
// starting a second one. There is no process-global state; the engine is an
// explicit object owned by the calling context.
type WalletServiceImpl struct {
	resolver     ports.AddressResolver
	fetcher      ports.StateFetcher
	verifier     ports.OwnershipVerifier
	consolidator ports.Consolidator
	publisher    ports.DurablePublisher
	cache        ports.RecordCache
	log          zerolog.Logger
	group        singleflight.Group
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	resolver ports.AddressResolver,
	fetcher ports.StateFetcher,
	verifier ports.OwnershipVerifier,
	consolidator ports.Consolidator,
	publisher ports.DurablePublisher,
	cache ports.RecordCache,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		resolver:     resolver,
		fetcher:      fetcher,
		verifier:     verifier,
		consolidator: consolidator,
		publisher:    publisher,
		cache:        cache,
		log:          log,
	}
}

// InitializeWallet brings the identity's wallet to a canonical state,
// creating it only if the full retry budget confirms no record exists.
func (s *WalletServiceImpl) InitializeWallet(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, error) {
	if err := identity.Validate(); err != nil {
		return nil, apperror.ErrInvalidIdentity(err.Error())
	}
	return s.joinSync(ctx, identity)
}

// GetBalance returns the wallet balance. Cache hits are served without a
// network round-trip. When a live sync fails but a verified snapshot
// exists, the last verified balance is served with Stale set instead of a
// hard failure.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, identity domain.Identity) (*ports.Balance, error) {
	if err := identity.Validate(); err != nil {
		return nil, apperror.ErrInvalidIdentity(err.Error())
	}

	if rec, ok := s.cache.Get(ctx, identity); ok {
		return &ports.Balance{Amount: rec.Balance()}, nil
	}

	rec, err := s.joinSync(ctx, identity)
	if err != nil {
		if retryableSyncFailure(err) {
			if stale, ok := s.cache.GetStale(ctx, identity); ok {
				s.log.Warn().
					Err(err).
					Str("identity", identity.String()).
					Msg("live sync failed, serving last verified balance")
				return &ports.Balance{Amount: stale.Balance(), Stale: true}, nil
			}
		}
		return nil, err
	}
	return &ports.Balance{Amount: rec.Balance()}, nil
}

// ApplyDelta adds and removes proofs against the canonical record and
// publishes the superseding record. The identity's state is synced to
// canonical first, so a delta applied on one device lands on top of state
// created on another.
func (s *WalletServiceImpl) ApplyDelta(ctx context.Context, identity domain.Identity, added, removed []domain.BearerProof) (*domain.WalletRecord, error) {
	if err := identity.Validate(); err != nil {
		return nil, apperror.ErrInvalidIdentity(err.Error())
	}
	for _, p := range added {
		if err := p.Validate(); err != nil {
			return nil, apperror.ErrInvalidProof(err.Error())
		}
	}

	// A delta must execute in its own flight: joining another caller's
	// sync would silently drop it. Retry until this goroutine initiates.
	for {
		var mine bool
		v, err, _ := s.group.Do(identity.String(), func() (interface{}, error) {
			mine = true
			return s.applyDelta(ctx, identity, added, removed)
		})
		if !mine {
			continue
		}
		if err != nil {
			return nil, err
		}
		return v.(*domain.WalletRecord), nil
	}
}

// ForceResync drops all cached state and rebuilds from the store.
func (s *WalletServiceImpl) ForceResync(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, error) {
	if err := identity.Validate(); err != nil {
		return nil, apperror.ErrInvalidIdentity(err.Error())
	}
	s.cache.Purge(ctx, identity)
	return s.joinSync(ctx, identity)
}

// joinSync runs syncAndHeal through the per-identity single-flight group.
func (s *WalletServiceImpl) joinSync(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, error) {
	v, err, _ := s.group.Do(identity.String(), func() (interface{}, error) {
		return s.syncAndHeal(ctx, identity)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.WalletRecord), nil
}

// syncAndHeal drives one full pass of the engine: fetch everything, recover
// any interrupted publish, verify ownership, then adopt, consolidate, or
// create. Always called inside the single-flight group.
func (s *WalletServiceImpl) syncAndHeal(ctx context.Context, identity domain.Identity) (*domain.WalletRecord, error) {
	address, err := s.resolver.Derive(identity)
	if err != nil {
		return nil, err
	}

	fetched, err := s.fetcher.Fetch(ctx, identity)
	if err != nil {
		return nil, err
	}

	recovered, err := s.publisher.Recover(ctx, identity, fetched)
	if err != nil {
		return nil, err
	}

	verified := make([]domain.VerifiedRecord, 0, len(fetched))
	for _, raw := range fetched {
		vr, verr := s.verifier.Verify(raw, identity)
		if verr != nil {
			// Already logged by the verifier; the record is discarded and
			// the operation proceeds on the remaining records.
			continue
		}
		verified = append(verified, *vr)
	}

	if recovered != nil && !containsRecord(verified, recovered) {
		verified = append(verified, domain.VerifiedRecord{Record: *recovered})
	}

	switch len(verified) {
	case 0:
		return s.createWallet(ctx, identity, address)
	case 1:
		rec := verified[0].Record
		s.cache.Set(ctx, identity, &rec)
		return &rec, nil
	default:
		return s.consolidate(ctx, identity, verified)
	}
}

// createWallet publishes the genesis record. Only reached after the fetch
// budget confirmed zero verified records for the identity.
func (s *WalletServiceImpl) createWallet(ctx context.Context, identity domain.Identity, address domain.WalletAddress) (*domain.WalletRecord, error) {
	genesis := &domain.WalletRecord{
		Address:  address,
		Owner:    identity,
		Sequence: 1,
	}
	if err := s.publisher.Publish(ctx, identity, genesis); err != nil {
		return nil, err
	}
	s.cache.Set(ctx, identity, genesis)
	s.log.Info().
		Str("address", address.String()).
		Msg("created new wallet record")
	return genesis, nil
}

func (s *WalletServiceImpl) consolidate(ctx context.Context, identity domain.Identity, verified []domain.VerifiedRecord) (*domain.WalletRecord, error) {
	merged, err := s.consolidator.Consolidate(identity, verified)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := s.publisher.Publish(ctx, identity, merged); err != nil {
		if !apperror.HasCode(err, apperror.CodePublishUnconfirmed) {
			return nil, err
		}
		// Unconfirmed consolidation is not an error to the caller: the next
		// sync sees >1 record again and re-consolidates. Union-only merging
		// guarantees convergence.
		s.log.Warn().
			Err(err).
			Str("identity", identity.String()).
			Msg("consolidation publish unconfirmed, next sync will re-consolidate")
	}

	s.cache.Set(ctx, identity, merged)
	return merged, nil
}

// applyDelta mutates canonical state. Runs inside the single-flight group.
func (s *WalletServiceImpl) applyDelta(ctx context.Context, identity domain.Identity, added, removed []domain.BearerProof) (*domain.WalletRecord, error) {
	canonical, err := s.syncAndHeal(ctx, identity)
	if err != nil {
		return nil, err
	}

	removedIDs := make(map[string]struct{}, len(removed))
	for _, p := range removed {
		removedIDs[p.UniqueID] = struct{}{}
	}

	next := make([]domain.BearerProof, 0, len(canonical.Proofs)+len(added))
	for _, p := range canonical.Proofs {
		if _, gone := removedIDs[p.UniqueID]; gone {
			continue
		}
		next = append(next, p)
	}
	next = append(next, added...)
	next = domain.DedupProofs(next)

	if proofSetsEqual(canonical.Proofs, next) {
		return canonical, nil
	}

	rec := &domain.WalletRecord{
		Address:  canonical.Address,
		Owner:    identity,
		Sequence: canonical.Sequence + 1,
		Proofs:   next,
	}
	if err := s.publisher.Publish(ctx, identity, rec); err != nil {
		return nil, err
	}
	s.cache.Set(ctx, identity, rec)

	s.log.Info().
		Str("address", rec.Address.String()).
		Uint64("sequence", rec.Sequence).
		Int64("balance", rec.Balance()).
		Msg("applied wallet delta")
	return rec, nil
}

func retryableSyncFailure(err error) bool {
	return apperror.HasCode(err, apperror.CodeNetworkUnavailable) ||
		apperror.HasCode(err, apperror.CodePublishUnconfirmed)
}

func containsRecord(verified []domain.VerifiedRecord, rec *domain.WalletRecord) bool {
	hash, err := rec.ContentHash()
	if err != nil {
		return false
	}
	for _, vr := range verified {
		if vr.Raw.ID == hash {
			return true
		}
	}
	return false
}

func proofSetsEqual(a, b []domain.BearerProof) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for _, p := range a {
		ids[p.UniqueID] = struct{}{}
	}
	for _, p := range b {
		if _, ok := ids[p.UniqueID]; !ok {
			return false
		}
	}
	return true
}
