// Package main runs the zakat obligation engine: it wires storage, the
// field cipher and the lifecycle services, starts the background sweeper
// and serves Prometheus metrics until interrupted.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/zakatwise/zakat-engine/internal/app"
	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/metrics"
	"github.com/zakatwise/zakat-engine/internal/app/storage/postgres"
	"github.com/zakatwise/zakat-engine/internal/config"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to engine config file")
	rotateKeys := flag.Bool("rotate-keys", false, "Re-encrypt stored data under the current key and exit")
	flag.Parse()

	if err := run(*configPath, *rotateKeys); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, rotateKeys bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging)

	ring, err := cfg.KeyRing()
	if err != nil {
		return err
	}

	stores := app.Stores{}
	if cfg.Database.URL != "" {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return err
		}
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		box, err := cryptobox.New(ring)
		if err != nil {
			return err
		}
		store := postgres.New(db, box)
		stores = app.Stores{Assets: store, Hawls: store, Audit: store, Payments: store}
		log.Info("using postgres storage")
	} else {
		log.Warn("no database configured; using in-memory storage")
	}

	cacheTTL, err := time.ParseDuration(cfg.Pricing.CacheTTL)
	if err != nil {
		cacheTTL = time.Hour
	}

	application, err := app.New(stores, ring, app.Options{
		Methodology:     methodology.Name(cfg.Engine.Methodology),
		Currency:        cfg.Engine.Currency,
		ToleranceDays:   cfg.Engine.ToleranceDays,
		SweepSchedule:   cfg.Engine.SweepSchedule,
		PricingEndpoint: cfg.Pricing.Endpoint,
		PricingAPIKey:   cfg.Pricing.APIKey,
		GoldPath:        cfg.Pricing.GoldPath,
		SilverPath:      cfg.Pricing.SilverPath,
		RedisAddr:       cfg.Pricing.RedisAddr,
		CacheTTL:        cacheTTL,
	}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if rotateKeys {
		report, err := application.Rotation.RotateAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("rotation complete: scanned=%d migrated=%d skipped=%d failed=%d\n",
			report.Scanned, report.Migrated, report.Skipped, report.Failed)
		for _, f := range report.Failures {
			fmt.Printf("  failed %s %s: %v\n", f.Kind, f.ID, f.Err)
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d records failed to rotate", report.Failed)
		}
		return nil
	}

	if err := application.Start(ctx); err != nil {
		return err
	}
	log.WithField("methodology", cfg.Engine.Methodology).
		WithField("currency", cfg.Engine.Currency).
		Info("zakat engine started")

	metricsSrv := &http.Server{Addr: cfg.Engine.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return application.Stop(shutdownCtx)
}
