package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricehunt/internal/clock"
	"pricehunt/internal/config"
	"pricehunt/internal/db"
	"pricehunt/internal/market"
	"pricehunt/internal/rng"
	"pricehunt/internal/store"
)

// pricehunt-sim runs the price process offline for tuning: it ticks the
// whole catalog through simulated time and optionally persists the series
// for charting. No HTTP, no players.
func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadSimFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var st store.Store = store.NewMemory()
	if cfg.DatabaseURL != "" {
		// Batched single-writer appends need only a couple of conns.
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: 4, MinConns: 1})
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		st = pg
	}

	// A fake clock advanced by TickEvery per step makes a day of market
	// time take milliseconds of wall time.
	clk := clock.NewFake(time.Now())
	engine := market.NewEngine(clk, logger, cfg.HistoryDepth)
	engine.Reseed(rng.Derive(cfg.Seed))
	for _, item := range market.DefaultCatalog() {
		if err := engine.Track(item); err != nil {
			logger.Error("catalog seed failed", "item_id", item.ID, "err", err)
			os.Exit(1)
		}
	}

	logger.Info("simulation start", "seed", cfg.Seed, "steps", cfg.Steps, "tick_every", cfg.TickEvery.String())
	start := time.Now()
	persisted := 0
	for step := 0; step < cfg.Steps; step++ {
		select {
		case <-ctx.Done():
			logger.Info("simulation interrupted", "step", step)
			return
		default:
		}

		clk.Advance(cfg.TickEvery)
		updates := engine.TickAll()

		points := make([]store.PricePoint, 0, len(updates))
		for _, u := range updates {
			points = append(points, store.PricePoint{
				ItemID:      u.ItemID,
				PriceMicros: u.PriceMicros,
				At:          u.At,
			})
		}
		if err := st.AppendPricePoints(ctx, points); err != nil {
			logger.Error("price series append failed", "step", step, "err", err)
			os.Exit(1)
		}
		persisted += len(points)
	}

	logger.Info("simulation complete",
		"steps", cfg.Steps,
		"points", persisted,
		"elapsed", time.Since(start).String(),
	)
}
