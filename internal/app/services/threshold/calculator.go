// Package threshold converts metal prices into the minimum-wealth threshold
// under a chosen basis.
package threshold

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
	"github.com/zakatwise/zakat-engine/internal/app/services/pricing"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Calculator computes nisab thresholds from current or caller-supplied
// prices. Stateless and safe for concurrent use.
type Calculator struct {
	prices *pricing.Service
	log    *logger.Logger
}

// New constructs a threshold calculator over a pricing service.
func New(prices *pricing.Service, log *logger.Logger) *Calculator {
	if log == nil {
		log = logger.NewDefault("threshold")
	}
	return &Calculator{prices: prices, log: log}
}

// Compute resolves current prices for the currency and derives both
// thresholds. The price layer owns outage handling, so this never fails on
// a source outage; only invalid input errors.
func (c *Calculator) Compute(ctx context.Context, currency string, basis nisab.Basis) (nisab.ThresholdResult, error) {
	if !basis.Valid() {
		return nisab.ThresholdResult{}, core.NewValidationError("basis", "must be gold or silver")
	}
	pair, err := c.prices.CurrentPrices(ctx, currency)
	if err != nil {
		return nisab.ThresholdResult{}, err
	}
	result, err := FromPrices(pair.Gold.PricePerGram, pair.Silver.PricePerGram, pair.Gold.Currency, basis)
	if err != nil {
		return nisab.ThresholdResult{}, err
	}
	result.FetchedAt = pair.FetchedAt
	result.PriceSource = pair.Source
	return result, nil
}

// FromPrices derives both thresholds from explicit per-gram prices. Callers
// supplying their own prices must pass positive values; this is the
// validation path for custom overrides.
func FromPrices(goldPerGram, silverPerGram decimal.Decimal, currency string, basis nisab.Basis) (nisab.ThresholdResult, error) {
	if !basis.Valid() {
		return nisab.ThresholdResult{}, core.NewValidationError("basis", "must be gold or silver")
	}
	if !goldPerGram.IsPositive() {
		return nisab.ThresholdResult{}, core.NewValidationError("goldPricePerGram", "must be positive")
	}
	if !silverPerGram.IsPositive() {
		return nisab.ThresholdResult{}, core.NewValidationError("silverPricePerGram", "must be positive")
	}

	goldThreshold := goldPerGram.Mul(nisab.GoldNisabGrams).Round(2)
	silverThreshold := silverPerGram.Mul(nisab.SilverNisabGrams).Round(2)

	selected := goldThreshold
	if basis == nisab.BasisSilver {
		selected = silverThreshold
	}

	return nisab.ThresholdResult{
		GoldPricePerGram:   goldPerGram,
		SilverPricePerGram: silverPerGram,
		GoldThreshold:      goldThreshold,
		SilverThreshold:    silverThreshold,
		SelectedThreshold:  selected,
		BasisUsed:          basis,
		Currency:           currency,
	}, nil
}
