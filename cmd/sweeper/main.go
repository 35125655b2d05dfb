package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventbooking/bookingcore/internal/code"
	"github.com/eventbooking/bookingcore/internal/config"
	"github.com/eventbooking/bookingcore/internal/db"
	"github.com/eventbooking/bookingcore/internal/observability"
	"github.com/eventbooking/bookingcore/internal/repo/postgres"
	"github.com/eventbooking/bookingcore/internal/sweep"
)

// Standalone hold-expiry worker. Runs beside the API so a slow sweep never
// competes with request handling.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.HoldTTL <= 0 {
		log.Info("HOLD_TTL_MINUTES is zero, nothing to sweep")
		return
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("database connection failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	repo := postgres.NewReservationsRepo(pool, prom, code.NewGenerator(), log)

	sweeper := sweep.New(repo, log, prom, cfg.HoldTTL, cfg.SweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.Run(ctx)

	log.Info("sweeper stopped")
}
