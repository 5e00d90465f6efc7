package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineDeps struct {
	svc      *WalletServiceImpl
	store    *memoryStore
	local    *memoryLocalStore
	cache    *RecordCacheImpl
	identity domain.Identity
	priv     ed25519.PrivateKey
	address  domain.WalletAddress
}

func newTestEngine(t *testing.T) *engineDeps {
	t.Helper()

	store := newMemoryStore()
	local := newMemoryLocalStore()
	resolver := NewAddressResolver()
	identity, priv := newTestIdentity(t)

	signer := NewKeyringSigner()
	signer.Register(identity, priv)

	address, err := resolver.Derive(identity)
	require.NoError(t, err)

	fetchCfg := FetcherConfig{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		MaxAttempts:    5,
		Budget:         time.Second,
	}
	fetcher := NewStateFetcher(store, resolver, fetchCfg, zerolog.Nop())
	verifier := NewOwnershipVerifier(zerolog.Nop())
	consolidator := NewConsolidator(zerolog.Nop())
	publisher := NewDurablePublisher(store, local, signer, resolver, fastPublisherConfig(), zerolog.Nop())
	cache := NewRecordCache(local, resolver, time.Minute, zerolog.Nop())

	svc := NewWalletService(resolver, fetcher, verifier, consolidator, publisher, cache, zerolog.Nop())

	return &engineDeps{
		svc:      svc,
		store:    store,
		local:    local,
		cache:    cache,
		identity: identity,
		priv:     priv,
		address:  address,
	}
}

func (d *engineDeps) injectRecord(t *testing.T, rec domain.WalletRecord) domain.RawRecord {
	t.Helper()
	raw := signRecord(t, d.identity, d.priv, rec)
	d.store.inject(raw)
	return raw
}

func TestWalletService_InitializeCreatesGenesis(t *testing.T) {
	d := newTestEngine(t)

	rec, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)

	assert.Equal(t, d.address, rec.Address)
	assert.Equal(t, uint64(1), rec.Sequence)
	assert.Equal(t, int64(0), rec.Balance())

	records, err := d.store.Query(context.Background(), d.address, d.identity)
	require.NoError(t, err)
	assert.Len(t, records, 1, "exactly one genesis record published")
}

func TestWalletService_InitializeAdoptsExisting(t *testing.T) {
	d := newTestEngine(t)
	d.injectRecord(t, domain.WalletRecord{
		Address:  d.address,
		Owner:    d.identity,
		Sequence: 4,
		Proofs:   []domain.BearerProof{{UniqueID: "p1", Amount: 11, MintID: "m"}},
	})

	rec, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), rec.Sequence, "existing record adopted, not recreated")
	assert.Equal(t, int64(11), rec.Balance())

	records, err := d.store.Query(context.Background(), d.address, d.identity)
	require.NoError(t, err)
	assert.Len(t, records, 1, "no duplicate wallet created")
}

func TestWalletService_GetBalanceConsolidatesDuplicates(t *testing.T) {
	// Identity with two concurrently-created records sharing proof "b".
	d := newTestEngine(t)
	d.injectRecord(t, domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 1,
		Proofs: []domain.BearerProof{
			{UniqueID: "a", Amount: 2, MintID: "m"},
			{UniqueID: "b", Amount: 2, MintID: "m"},
		},
	})
	d.injectRecord(t, domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 1,
		Proofs: []domain.BearerProof{
			{UniqueID: "b", Amount: 2, MintID: "m"},
			{UniqueID: "c", Amount: 2, MintID: "m"},
		},
	})

	bal, err := d.svc.GetBalance(context.Background(), d.identity)
	require.NoError(t, err)
	assert.Equal(t, int64(6), bal.Amount, "shared proof counted once: {a,b,c} = 6, not 8")
	assert.False(t, bal.Stale)
}

func TestWalletService_ConsolidationIdempotentAcrossSyncs(t *testing.T) {
	d := newTestEngine(t)
	d.injectRecord(t, domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 1,
		Proofs: []domain.BearerProof{{UniqueID: "a", Amount: 3, MintID: "m"}},
	})
	d.injectRecord(t, domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 2,
		Proofs: []domain.BearerProof{{UniqueID: "b", Amount: 4, MintID: "m"}},
	})

	first, err := d.svc.ForceResync(context.Background(), d.identity)
	require.NoError(t, err)
	assert.Equal(t, int64(7), first.Balance())

	// The store now holds the two originals plus the merged record; another
	// full pass must converge to the same proof set and balance.
	second, err := d.svc.ForceResync(context.Background(), d.identity)
	require.NoError(t, err)
	assert.Equal(t, first.Balance(), second.Balance())
	assert.Equal(t, first.Proofs, second.Proofs)
}

func TestWalletService_ForeignRecordExcluded(t *testing.T) {
	d := newTestEngine(t)

	// Own record.
	d.injectRecord(t, domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 1,
		Proofs: []domain.BearerProof{{UniqueID: "mine", Amount: 5, MintID: "m"}},
	})

	// A malicious node returns a foreign record for our query. It passes the
	// author filter in the fake by forging the envelope author, but the
	// signature cannot check out.
	foreign, foreignPriv := newTestIdentity(t)
	foreignRec := domain.WalletRecord{
		Address: d.address, Owner: foreign, Sequence: 9,
		Proofs: []domain.BearerProof{{UniqueID: "stolen", Amount: 1000, MintID: "m"}},
	}
	forged := signRecord(t, foreign, foreignPriv, foreignRec)
	forged.Author = d.identity // envelope forgery
	d.store.inject(forged)

	bal, err := d.svc.GetBalance(context.Background(), d.identity)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal.Amount, "foreign proofs must never enter the balance")
}

func TestWalletService_ApplyDelta(t *testing.T) {
	d := newTestEngine(t)
	_, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)

	rec, err := d.svc.ApplyDelta(context.Background(), d.identity,
		[]domain.BearerProof{
			{UniqueID: "earn1", Amount: 10, MintID: "m"},
			{UniqueID: "earn2", Amount: 5, MintID: "m"},
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(15), rec.Balance())
	assert.Equal(t, uint64(2), rec.Sequence)

	rec, err = d.svc.ApplyDelta(context.Background(), d.identity,
		nil, []domain.BearerProof{{UniqueID: "earn1", Amount: 10, MintID: "m"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Balance())
	assert.Equal(t, uint64(3), rec.Sequence)
}

func TestWalletService_ApplyDeltaNoChange(t *testing.T) {
	d := newTestEngine(t)
	initial, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)

	rec, err := d.svc.ApplyDelta(context.Background(), d.identity, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, initial.Sequence, rec.Sequence, "empty delta publishes nothing")
}

func TestWalletService_ApplyDeltaRejectsInvalidProof(t *testing.T) {
	d := newTestEngine(t)

	_, err := d.svc.ApplyDelta(context.Background(), d.identity,
		[]domain.BearerProof{{UniqueID: "", Amount: 3, MintID: "m"}}, nil)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidProof))
}

func TestWalletService_GetBalanceServesCache(t *testing.T) {
	d := newTestEngine(t)
	_, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)

	before := d.store.queryCount
	bal, err := d.svc.GetBalance(context.Background(), d.identity)
	require.NoError(t, err)
	assert.False(t, bal.Stale)
	assert.Equal(t, before, d.store.queryCount, "cache hit must not touch the network")
}

func TestWalletService_DegradedModeServesStaleBalance(t *testing.T) {
	d := newTestEngine(t)
	_, err := d.svc.ApplyDelta(context.Background(), d.identity,
		[]domain.BearerProof{{UniqueID: "p", Amount: 8, MintID: "m"}}, nil)
	require.NoError(t, err)

	// TTL expires, then the network goes away entirely.
	d.cache.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	d.store.queryErr = errors.New("all nodes unreachable")

	bal, err := d.svc.GetBalance(context.Background(), d.identity)
	require.NoError(t, err, "verified cached value exists, so no hard failure")
	assert.Equal(t, int64(8), bal.Amount)
	assert.True(t, bal.Stale, "staleness must be explicit")
}

func TestWalletService_NetworkUnavailableWithoutCache(t *testing.T) {
	d := newTestEngine(t)
	d.store.queryErr = errors.New("all nodes unreachable")

	_, err := d.svc.GetBalance(context.Background(), d.identity)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeNetworkUnavailable))
}

func TestWalletService_ForceResyncDropsCache(t *testing.T) {
	d := newTestEngine(t)
	_, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)

	// Another device published a newer record; the local cache is stale.
	d.injectRecord(t, domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 10,
		Proofs: []domain.BearerProof{{UniqueID: "new", Amount: 50, MintID: "m"}},
	})

	rec, err := d.svc.ForceResync(context.Background(), d.identity)
	require.NoError(t, err)
	assert.Equal(t, int64(50), rec.Balance(), "resync must bypass the cache")
}

func TestWalletService_CrashRecoveryAdoptsMarkedRecord(t *testing.T) {
	// A previous process wrote the marker and the record reached the store,
	// then the process died before confirmation.
	d := newTestEngine(t)

	rec := domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 6,
		Proofs: []domain.BearerProof{{UniqueID: "p", Amount: 20, MintID: "m"}},
	}
	d.injectRecord(t, rec)

	hash, err := rec.ContentHash()
	require.NoError(t, err)
	require.NoError(t, d.local.SetMarker(context.Background(), d.address, &domain.PendingMarker{
		Address: d.address, RecordHash: hash, Record: rec, CreatedAt: time.Now().UTC(),
	}))

	got, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got.Sequence)

	records, err := d.store.Query(context.Background(), d.address, d.identity)
	require.NoError(t, err)
	assert.Len(t, records, 1, "restart must not create a second canonical record")

	marker, err := d.local.GetMarker(context.Background(), d.address)
	require.NoError(t, err)
	assert.Nil(t, marker)
}

func TestWalletService_CrashRecoveryRepublishesLostRecord(t *testing.T) {
	// Marker written, crash before the publish reached any node.
	d := newTestEngine(t)

	rec := domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 2,
		Proofs: []domain.BearerProof{{UniqueID: "p", Amount: 13, MintID: "m"}},
	}
	hash, err := rec.ContentHash()
	require.NoError(t, err)
	require.NoError(t, d.local.SetMarker(context.Background(), d.address, &domain.PendingMarker{
		Address: d.address, RecordHash: hash, Record: rec, CreatedAt: time.Now().UTC(),
	}))

	got, err := d.svc.InitializeWallet(context.Background(), d.identity)
	require.NoError(t, err)
	assert.Equal(t, int64(13), got.Balance(), "marked content republished, not a fresh genesis")

	records, err := d.store.Query(context.Background(), d.address, d.identity)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, hash, records[0].ID)
}

func TestWalletService_SingleFlightJoinsConcurrentReads(t *testing.T) {
	d := newTestEngine(t)
	d.injectRecord(t, domain.WalletRecord{
		Address: d.address, Owner: d.identity, Sequence: 1,
		Proofs: []domain.BearerProof{{UniqueID: "p", Amount: 7, MintID: "m"}},
	})
	d.store.queryDelay = 20 * time.Millisecond

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int64, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bal, err := d.svc.GetBalance(context.Background(), d.identity)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = bal.Amount
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(7), results[i])
	}
	// One fetch attempt plus confirm-free adoption: joiners must not each
	// run their own query sequence.
	assert.LessOrEqual(t, d.store.queryCount, 3, "concurrent callers should share one flight")
}

func TestWalletService_RejectsInvalidIdentity(t *testing.T) {
	d := newTestEngine(t)

	_, err := d.svc.GetBalance(context.Background(), domain.Identity("garbage"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidIdentity))

	_, err = d.svc.InitializeWallet(context.Background(), domain.Identity(""))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidIdentity))
}
