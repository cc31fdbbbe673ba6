package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricehunt/internal/advisor"
	"pricehunt/internal/api"
	"pricehunt/internal/clock"
	"pricehunt/internal/config"
	"pricehunt/internal/db"
	"pricehunt/internal/ledger"
	"pricehunt/internal/market"
	"pricehunt/internal/ratelimit"
	"pricehunt/internal/shot"
	"pricehunt/internal/store"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAPIFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var st store.Store = store.NewMemory()
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		})
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
		logger.Info("persistence enabled")
	}

	clk := clock.System()
	engine := market.NewEngine(clk, logger, cfg.HistoryDepth)
	if cfg.SeedCatalog {
		for _, item := range market.DefaultCatalog() {
			if err := engine.Track(item); err != nil {
				logger.Error("catalog seed failed", "item_id", item.ID, "err", err)
				os.Exit(1)
			}
		}
	}

	led := ledger.NewService(ledger.Config{
		VaultCap:              cfg.VaultCap,
		ShippingCap:           cfg.ShippingCap,
		TradeInCooldown:       cfg.TradeInCooldown,
		StartingBalanceMicros: cfg.StartingBalanceCoins * market.MicrosPerCoin,
	}, clk, st, logger)
	limiter := ratelimit.New(clk)
	shots := shot.NewPipeline(engine, led, limiter, clk, logger, cfg.ShotLimitPerMinute)

	var coach *advisor.Client
	if cfg.AdvisorBaseURL != "" {
		coach = advisor.New(cfg.AdvisorBaseURL, cfg.AdvisorAPIKey, cfg.AdvisorModel, cfg.AdvisorOutboundRPS, logger)
	}

	stream := api.NewStream(logger)
	server := api.New(cfg, logger, engine, led, shots, limiter, coach, stream)

	go runTicker(ctx, logger, engine, stream, st, cfg.TickEvery)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("pricehunt api listening", "addr", cfg.Addr, "tick_every", cfg.TickEvery.String())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// runTicker drives the simulation, streams each batch and persists the
// series. Store writes happen outside any engine lock.
func runTicker(ctx context.Context, logger *slog.Logger, engine *market.Engine, stream *api.Stream, st store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("ticker shutdown")
			return
		case <-ticker.C:
			updates := engine.TickAll()
			if len(updates) == 0 {
				continue
			}
			stream.Broadcast(updates)

			points := make([]store.PricePoint, 0, len(updates))
			for _, u := range updates {
				points = append(points, store.PricePoint{
					ItemID:      u.ItemID,
					PriceMicros: u.PriceMicros,
					At:          u.At,
				})
			}
			if err := st.AppendPricePoints(ctx, points); err != nil {
				logger.Error("price series append failed", "err", err)
			}
		}
	}
}
