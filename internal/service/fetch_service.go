package service

import (
	"context"
	"time"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/internal/core/ports"
	"wallet-sync-engine/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// FetcherConfig bounds the retrieval retry loop.
type FetcherConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	Budget         time.Duration
}

// DefaultFetcherConfig mirrors the production schedule: 2s initial, doubling
// to a 16s cap, 5 attempts inside a 30s budget.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     16 * time.Second,
		MaxAttempts:    5,
		Budget:         30 * time.Second,
	}
}

// StateFetcherImpl implements ports.StateFetcher. Store nodes propagate
// records asynchronously, so an empty first query is not proof of absence.
// Concluding "not found" too early is the failure mode that creates
// duplicate wallets; the backoff schedule exists to rule it out.
type StateFetcherImpl struct {
	store    ports.StoreClient
	resolver ports.AddressResolver
	cfg      FetcherConfig
	log      zerolog.Logger
}

// NewStateFetcher creates a new StateFetcherImpl.
func NewStateFetcher(store ports.StoreClient, resolver ports.AddressResolver, cfg FetcherConfig, log zerolog.Logger) *StateFetcherImpl {
	return &StateFetcherImpl{store: store, resolver: resolver, cfg: cfg, log: log}
}

// Fetch queries until records appear, the attempt budget runs out, or the
// deadline passes. It returns every record found so the caller can detect
// and consolidate duplicates. An empty result with nil error is the
// definitive "not found"; NET_001 means no node ever answered.
func (f *StateFetcherImpl) Fetch(ctx context.Context, identity domain.Identity) ([]domain.RawRecord, error) {
	address, err := f.resolver.Derive(identity)
	if err != nil {
		return nil, err
	}

	budgetCtx, cancel := context.WithTimeout(ctx, f.cfg.Budget)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.cfg.InitialBackoff
	bo.MaxInterval = f.cfg.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // attempts and budgetCtx bound the loop
	bo.Reset()

	var lastNetErr error
	anyNodeAnswered := false

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		records, err := f.store.Query(budgetCtx, address, identity)
		if err != nil {
			lastNetErr = err
			f.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Str("address", address.String()).
				Msg("store query failed")
		} else {
			anyNodeAnswered = true
			if len(records) > 0 {
				f.log.Debug().
					Int("attempt", attempt).
					Int("records", len(records)).
					Str("address", address.String()).
					Msg("records retrieved")
				return records, nil
			}
		}

		if attempt == f.cfg.MaxAttempts {
			break
		}

		wait := bo.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-budgetCtx.Done():
			timer.Stop()
			// Caller cancellation propagates; budget expiry is a definite
			// terminal decision, not an error.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return f.conclude(anyNodeAnswered, lastNetErr)
		case <-timer.C:
		}
	}

	return f.conclude(anyNodeAnswered, lastNetErr)
}

func (f *StateFetcherImpl) conclude(anyNodeAnswered bool, lastNetErr error) ([]domain.RawRecord, error) {
	if !anyNodeAnswered && lastNetErr != nil {
		return nil, apperror.ErrNetworkUnavailable(lastNetErr)
	}
	return nil, nil
}
