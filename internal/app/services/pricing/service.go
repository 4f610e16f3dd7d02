// Package pricing owns the price-oracle boundary: fetching per-gram metal
// prices, caching the latest good pair and falling back to documented static
// prices when the source is unavailable. External source failures never
// escape this package.
package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
	"github.com/zakatwise/zakat-engine/internal/app/metrics"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Static fallback prices, USD per gram. Deliberately conservative; used only
// when both the fetcher and the cache fail to produce a valid pair.
var (
	FallbackGoldPerGram   = decimal.RequireFromString("75.00")
	FallbackSilverPerGram = decimal.RequireFromString("0.95")
)

// Source labels reported on a price pair.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// Pair is a validated gold/silver price pair with its provenance.
type Pair struct {
	Gold      nisab.MetalPrice
	Silver    nisab.MetalPrice
	Source    string
	FetchedAt time.Time
}

// Service resolves current metal prices with validation, caching and
// fallback.
type Service struct {
	fetcher Fetcher
	cache   Cache
	log     *logger.Logger
}

// Option configures the pricing service.
type Option func(*Service)

// WithCache attaches a latest-good-pair cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// New constructs a pricing service. A nil fetcher is allowed; the service
// then always serves cached or fallback prices.
func New(fetcher Fetcher, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("pricing")
	}
	s := &Service{fetcher: fetcher, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentPrices returns a valid gold/silver pair for the currency. The
// resolution order is live fetch, cached pair, static fallback; the result
// always carries positive prices and the call never fails on a source
// outage. The only error condition is an empty currency.
func (s *Service) CurrentPrices(ctx context.Context, currency string) (Pair, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return Pair{}, core.RequiredError("currency")
	}

	if s.fetcher != nil {
		prices, err := s.fetcher.Fetch(ctx, currency)
		if err == nil {
			if pair, ok := validatePair(prices, currency, SourceLive); ok {
				metrics.RecordPriceFetch(SourceLive, true)
				s.storeCache(ctx, currency, prices)
				return pair, nil
			}
			s.log.WithField("currency", currency).Warn("price source returned non-positive prices")
		} else {
			s.log.WithError(err).WithField("currency", currency).Warn("price fetch failed")
		}
		metrics.RecordPriceFetch(SourceLive, false)
	}

	if s.cache != nil {
		cached, err := s.cache.GetPrices(ctx, currency)
		if err != nil {
			s.log.WithError(err).Warn("price cache lookup failed")
		} else if pair, ok := validatePair(cached, currency, SourceCache); ok {
			metrics.RecordPriceFetch(SourceCache, true)
			return pair, nil
		}
	}

	metrics.RecordPriceFetch(SourceFallback, true)
	now := time.Now().UTC()
	return Pair{
		Gold:      nisab.MetalPrice{Metal: nisab.MetalGold, PricePerGram: FallbackGoldPerGram, Currency: currency, FetchedAt: now},
		Silver:    nisab.MetalPrice{Metal: nisab.MetalSilver, PricePerGram: FallbackSilverPerGram, Currency: currency, FetchedAt: now},
		Source:    SourceFallback,
		FetchedAt: now,
	}, nil
}

func (s *Service) storeCache(ctx context.Context, currency string, prices []nisab.MetalPrice) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetPrices(ctx, currency, prices); err != nil {
		s.log.WithError(err).Warn("price cache store failed")
	}
}

func validatePair(prices []nisab.MetalPrice, currency, source string) (Pair, bool) {
	var gold, silver *nisab.MetalPrice
	for i := range prices {
		switch prices[i].Metal {
		case nisab.MetalGold:
			gold = &prices[i]
		case nisab.MetalSilver:
			silver = &prices[i]
		}
	}
	if gold == nil || silver == nil {
		return Pair{}, false
	}
	if !gold.PricePerGram.IsPositive() || !silver.PricePerGram.IsPositive() {
		return Pair{}, false
	}
	fetchedAt := gold.FetchedAt
	if silver.FetchedAt.After(fetchedAt) {
		fetchedAt = silver.FetchedAt
	}
	g := *gold
	sv := *silver
	g.Currency = currency
	sv.Currency = currency
	return Pair{Gold: g, Silver: sv, Source: source, FetchedAt: fetchedAt}, true
}
