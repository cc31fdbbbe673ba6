package shot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricehunt/internal/clock"
	"pricehunt/internal/ledger"
	"pricehunt/internal/market"
	"pricehunt/internal/ratelimit"
	"pricehunt/internal/store"
)

func coins(v int64) int64 { return v * market.MicrosPerCoin }

type fixture struct {
	clk      *clock.Fake
	engine   *market.Engine
	ledger   *ledger.Service
	mem      *store.Memory
	pipeline *Pipeline
}

func newFixture(t *testing.T, balanceMicros int64, shotLimit int) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	eng := market.NewEngine(clk, nil, market.DefaultHistoryDepth)
	require.NoError(t, eng.Track(market.Item{ID: "helios-drone", Name: "Helios X2 Drone", MarketPriceMicros: coins(100)}))

	mem := store.NewMemory()
	cfg := ledger.DefaultConfig()
	cfg.StartingBalanceMicros = balanceMicros
	led := ledger.NewService(cfg, clk, mem, nil)

	return &fixture{
		clk:      clk,
		engine:   eng,
		ledger:   led,
		mem:      mem,
		pipeline: NewPipeline(eng, led, ratelimit.New(clk), clk, nil, shotLimit),
	}
}

func TestCaptureSingleReadsLivePrice(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	current, err := f.engine.CurrentPrice("helios-drone")
	require.NoError(t, err)

	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)
	require.Len(t, snap.PricesMicros, 1)
	assert.Equal(t, current, snap.PricesMicros[0])
	assert.Empty(t, f.mem.LedgerEntries(), "capture must not touch the ledger")
}

func TestCaptureMultiDrawsThreeFreshPrices(t *testing.T) {
	f := newFixture(t, coins(500), 1000)

	distinct := map[int64]bool{}
	for i := 0; i < 20; i++ {
		snap, err := f.pipeline.Capture("u1", "helios-drone", ModeMulti)
		require.NoError(t, err)
		require.Len(t, snap.PricesMicros, 3)
		for _, price := range snap.PricesMicros {
			distinct[price] = true
		}
	}
	// Independent draws, not re-reads: across 60 simulated prices the
	// values must vary.
	assert.Greater(t, len(distinct), 1)
}

func TestCaptureRateLimited(t *testing.T) {
	f := newFixture(t, coins(500), 2)
	_, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)
	_, err = f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)
	_, err = f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestCaptureUnknownItem(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	_, err := f.pipeline.Capture("u1", "ghost", ModeSingle)
	require.ErrorIs(t, err, market.ErrItemNotFound)
}

func TestCommitHappyPath(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)

	res, err := f.pipeline.Commit(context.Background(), "u1", snap.ID, snap.PricesMicros[0])
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, coins(500)-snap.PricesMicros[0], res.BalanceMicros)
	assert.Equal(t, "helios-drone", res.VaultItem.Item.ID)
	require.Len(t, f.ledger.Wallet("u1").Vault, 1)
}

func TestCommitRejectsTamperedPrice(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)

	_, err = f.pipeline.Commit(context.Background(), "u1", snap.ID, coins(1))
	require.ErrorIs(t, err, ErrInvalidSelection)
	assert.Equal(t, coins(500), f.ledger.Balance("u1"))
}

func TestCommitZeroPriceRejected(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)

	// Prices are clamped to at least one coin, so 0 can never be a
	// captured value and must fail selection validation, not reach the
	// ledger.
	_, err = f.pipeline.Commit(context.Background(), "u1", snap.ID, 0)
	require.ErrorIs(t, err, ErrInvalidSelection)
	assert.Equal(t, coins(500), f.ledger.Balance("u1"))

	// The rejected commit must not have consumed the snapshot.
	require.NoError(t, f.pipeline.Discard("u1", snap.ID))
}

func TestSnapshotSettlesExactlyOnce(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)

	_, err = f.pipeline.Commit(context.Background(), "u1", snap.ID, snap.PricesMicros[0])
	require.NoError(t, err)
	_, err = f.pipeline.Commit(context.Background(), "u1", snap.ID, snap.PricesMicros[0])
	require.ErrorIs(t, err, ErrAlreadySettled)
	require.ErrorIs(t, f.pipeline.Discard("u1", snap.ID), ErrAlreadySettled)
	require.Len(t, f.ledger.Wallet("u1").Vault, 1, "double settle must not double buy")
}

func TestDiscardHasNoLedgerEffect(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Discard("u1", snap.ID))
	assert.Equal(t, coins(500), f.ledger.Balance("u1"))
	assert.Empty(t, f.mem.LedgerEntries())

	_, err = f.pipeline.Commit(context.Background(), "u1", snap.ID, snap.PricesMicros[0])
	require.ErrorIs(t, err, ErrAlreadySettled)
}

func TestFailedCommitLeavesSnapshotOpen(t *testing.T) {
	f := newFixture(t, coins(1), 30)
	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)

	_, err = f.pipeline.Commit(context.Background(), "u1", snap.ID, snap.PricesMicros[0])
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	// Rejected by the ledger, so no decision was consumed; discarding
	// still works.
	require.NoError(t, f.pipeline.Discard("u1", snap.ID))
}

func TestSnapshotOwnership(t *testing.T) {
	f := newFixture(t, coins(500), 30)
	snap, err := f.pipeline.Capture("u1", "helios-drone", ModeSingle)
	require.NoError(t, err)

	_, err = f.pipeline.Commit(context.Background(), "u2", snap.ID, snap.PricesMicros[0])
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}
