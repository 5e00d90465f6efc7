package service

import (
	"context"
	"fmt"
	"time"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/internal/core/ports"
	"wallet-sync-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// publishState tracks where a publication attempt is in its lifecycle.
type publishState int

const (
	stateIdle publishState = iota
	stateMarked
	statePublishing
	stateConfirmed
	stateFailed
)

func (s publishState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateMarked:
		return "marked"
	case statePublishing:
		return "publishing"
	case stateConfirmed:
		return "confirmed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PublisherConfig bounds the confirmation round-trip after a publish.
type PublisherConfig struct {
	ConfirmAttempts int
	ConfirmBackoff  time.Duration
}

// DefaultPublisherConfig returns the production confirm schedule.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{ConfirmAttempts: 4, ConfirmBackoff: 2 * time.Second}
}

// DurablePublisherImpl implements ports.DurablePublisher. The atomicity
// contract: intent (the pending marker) is durable before any network call
// is attempted. A crash at any point leaves either no marker (nothing
// happened) or a marker whose content hash the next run can search the
// store for: adopt if visible, retry the identical bytes if not. The write
// is identified by content, not by retry count, so retries cannot mint a
// second wallet.
type DurablePublisherImpl struct {
	store    ports.StoreClient
	local    ports.LocalStore
	signer   ports.RecordSigner
	resolver ports.AddressResolver
	cfg      PublisherConfig
	log      zerolog.Logger
}

// NewDurablePublisher creates a new DurablePublisherImpl.
func NewDurablePublisher(
	store ports.StoreClient,
	local ports.LocalStore,
	signer ports.RecordSigner,
	resolver ports.AddressResolver,
	cfg PublisherConfig,
	log zerolog.Logger,
) *DurablePublisherImpl {
	return &DurablePublisherImpl{
		store:    store,
		local:    local,
		signer:   signer,
		resolver: resolver,
		cfg:      cfg,
		log:      log,
	}
}

// Publish runs the full state machine: mark durably, publish, confirm by
// re-query, clear the marker. On PUB_001 the marker stays in place so the
// next run recovers instead of duplicating.
func (p *DurablePublisherImpl) Publish(ctx context.Context, identity domain.Identity, rec *domain.WalletRecord) error {
	payload, err := rec.CanonicalBytes()
	if err != nil {
		return apperror.InternalError(err)
	}
	hash := domain.HashPayload(payload)

	state := stateIdle

	marker := &domain.PendingMarker{
		Address:    rec.Address,
		RecordHash: hash,
		Record:     *rec,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.local.SetMarker(ctx, rec.Address, marker); err != nil {
		return apperror.InternalError(fmt.Errorf("writing pending marker: %w", err))
	}
	state = stateMarked
	p.logTransition(state, rec.Address, hash)

	sig, err := p.signer.Sign(identity, payload)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("signing record: %w", err))
	}
	raw := domain.RawRecord{
		ID:      hash,
		Author:  identity,
		Payload: payload,
		Sig:     sig,
	}

	state = statePublishing
	p.logTransition(state, rec.Address, hash)
	if err := p.store.Publish(ctx, raw); err != nil {
		// A node ack is only a hint anyway; confirmation decides.
		p.log.Warn().
			Err(err).
			Str("record_hash", hash).
			Msg("publish got no ack, relying on confirmation round-trip")
	}

	if err := p.confirm(ctx, identity, rec.Address, hash); err != nil {
		state = stateFailed
		p.logTransition(state, rec.Address, hash)
		return err
	}

	if err := p.local.ClearMarker(ctx, rec.Address); err != nil {
		// Record is confirmed retrievable; a stale marker is self-healing
		// on the next run (it matches and clears then).
		p.log.Warn().Err(err).Str("record_hash", hash).Msg("failed to clear pending marker")
	}
	state = stateConfirmed
	p.logTransition(state, rec.Address, hash)
	return nil
}

// Recover inspects a leftover pending marker after a restart. Returns the
// adopted or republished record, or (nil, nil) when there is no marker.
func (p *DurablePublisherImpl) Recover(ctx context.Context, identity domain.Identity, fetched []domain.RawRecord) (*domain.WalletRecord, error) {
	address, err := p.resolver.Derive(identity)
	if err != nil {
		return nil, err
	}

	marker, err := p.local.GetMarker(ctx, address)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reading pending marker: %w", err))
	}
	if marker == nil {
		return nil, nil
	}

	// The marked write may have landed before the crash: adopt it.
	for _, raw := range fetched {
		if raw.ID == marker.RecordHash {
			if err := p.local.ClearMarker(ctx, address); err != nil {
				p.log.Warn().Err(err).Msg("failed to clear adopted marker")
			}
			p.log.Info().
				Str("record_hash", marker.RecordHash).
				Msg("adopted marked record found in store after restart")
			rec := marker.Record
			return &rec, nil
		}
	}

	// Not visible: retry the identical content. Same bytes, same hash, same
	// record identity, so this cannot create a duplicate.
	p.log.Info().
		Str("record_hash", marker.RecordHash).
		Msg("marked record not visible in store, retrying identical publish")
	rec := marker.Record
	if err := p.Publish(ctx, identity, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// confirm re-queries until the published record is retrievable.
func (p *DurablePublisherImpl) confirm(ctx context.Context, identity domain.Identity, address domain.WalletAddress, hash string) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.ConfirmAttempts; attempt++ {
		records, err := p.store.Query(ctx, address, identity)
		if err != nil {
			lastErr = err
		} else {
			for _, raw := range records {
				if raw.ID == hash {
					return nil
				}
			}
			lastErr = fmt.Errorf("record %s not yet visible", hash)
		}

		if attempt == p.cfg.ConfirmAttempts {
			break
		}
		timer := time.NewTimer(p.cfg.ConfirmBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apperror.ErrPublishUnconfirmed(ctx.Err())
		case <-timer.C:
		}
	}
	return apperror.ErrPublishUnconfirmed(lastErr)
}

func (p *DurablePublisherImpl) logTransition(state publishState, address domain.WalletAddress, hash string) {
	p.log.Debug().
		Str("state", state.String()).
		Str("address", address.String()).
		Str("record_hash", hash).
		Msg("publisher state transition")
}
