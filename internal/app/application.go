// Package app assembles the engine: stores, cipher, calculators, lifecycle
// tracking and the background sweeper, bound into one managed lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	auditsvc "github.com/zakatwise/zakat-engine/internal/app/services/audit"
	"github.com/zakatwise/zakat-engine/internal/app/services/lifecycle"
	"github.com/zakatwise/zakat-engine/internal/app/services/payments"
	"github.com/zakatwise/zakat-engine/internal/app/services/pricing"
	"github.com/zakatwise/zakat-engine/internal/app/services/rotation"
	"github.com/zakatwise/zakat-engine/internal/app/services/threshold"
	"github.com/zakatwise/zakat-engine/internal/app/services/wealth"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/internal/app/storage/memory"
	"github.com/zakatwise/zakat-engine/internal/app/system"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Assets   storage.AssetStore
	Hawls    storage.HawlStore
	Audit    storage.AuditStore
	Payments storage.PaymentStore
}

// Options configures the assembled application.
type Options struct {
	Methodology   methodology.Name
	Currency      string
	ToleranceDays int
	SweepSchedule string

	PricingEndpoint string
	PricingAPIKey   string
	GoldPath        string
	SilverPath      string

	RedisAddr string
	CacheTTL  time.Duration

	PriceFetcher pricing.Fetcher
}

// Application ties the engine services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Pricing    *pricing.Service
	Thresholds *threshold.Calculator
	Wealth     *wealth.Service
	Audit      *auditsvc.Service
	Lifecycle  *lifecycle.Tracker
	Payments   *payments.Service
	Rotation   *rotation.Service
}

// New builds a fully initialised application with the provided stores and
// key ring.
func New(stores Stores, ring cryptobox.KeyRing, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Methodology == "" {
		opts.Methodology = methodology.Standard
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if _, err := methodology.ForName(opts.Methodology); err != nil {
		return nil, err
	}

	mem := memory.New()
	if stores.Assets == nil {
		stores.Assets = mem
	}
	if stores.Hawls == nil {
		stores.Hawls = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}
	if stores.Payments == nil {
		stores.Payments = mem
	}

	box, err := cryptobox.New(ring)
	if err != nil {
		return nil, fmt.Errorf("initialise field cipher: %w", err)
	}

	fetcher := opts.PriceFetcher
	if fetcher == nil && opts.PricingEndpoint != "" {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		hf, err := pricing.NewHTTPFetcher(httpClient, opts.PricingEndpoint, opts.PricingAPIKey, log)
		if err != nil {
			return nil, fmt.Errorf("configure price fetcher: %w", err)
		}
		if opts.GoldPath != "" || opts.SilverPath != "" {
			hf = hf.WithPricePaths(opts.GoldPath, opts.SilverPath)
		}
		fetcher = hf
	}
	if fetcher == nil {
		log.Warn("no price endpoint configured; static fallback prices in effect")
	}

	var pricingOpts []pricing.Option
	if opts.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		pricingOpts = append(pricingOpts, pricing.WithCache(pricing.NewRedisCache(client, opts.CacheTTL)))
	}

	pricingSvc := pricing.New(fetcher, log, pricingOpts...)
	thresholds := threshold.New(pricingSvc, log)
	wealthSvc := wealth.New(stores.Assets, log)
	auditSvc := auditsvc.New(stores.Audit, box, log)

	tracker := lifecycle.New(stores.Hawls, stores.Assets, wealthSvc, thresholds, auditSvc, box, log,
		lifecycle.WithToleranceDays(opts.ToleranceDays))
	paymentsSvc := payments.New(stores.Payments, stores.Hawls, box, log)
	rotationSvc := rotation.New(stores.Hawls, stores.Audit, stores.Payments, stores.Assets, box, log)

	manager := system.NewManager()
	sweeper := lifecycle.NewSweeper(tracker, stores.Hawls, stores.Assets,
		opts.Methodology, opts.Currency, opts.SweepSchedule, log)
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register sweeper: %w", err)
	}

	return &Application{
		manager:    manager,
		log:        log,
		Pricing:    pricingSvc,
		Thresholds: thresholds,
		Wealth:     wealthSvc,
		Audit:      auditSvc,
		Lifecycle:  tracker,
		Payments:   paymentsSvc,
		Rotation:   rotationSvc,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
