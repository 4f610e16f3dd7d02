// Package wealth sums eligible asset values under a methodology, applying
// per-asset partial-eligibility modifiers and deducting deductible
// liabilities.
package wealth

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/asset"
	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// CategoryBreakdown reports per-category totals for one aggregation.
type CategoryBreakdown struct {
	Category  asset.Category
	Count     int
	Total     decimal.Decimal
	Zakatable decimal.Decimal
	Eligible  bool
}

// Aggregation is the result of one wealth aggregation. TotalWealth counts
// raw values regardless of eligibility for transparency; ZakatableWealth
// counts only eligible contributions. NetWealth may be negative: the floor
// to zero happens only at the final obligation step, never here, so raw
// negatives stay available for audit and statistics.
type Aggregation struct {
	TotalWealth      decimal.Decimal
	ZakatableWealth  decimal.Decimal
	TotalLiabilities decimal.Decimal
	NetWealth        decimal.Decimal
	Breakdown        []CategoryBreakdown
}

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// Aggregate computes wealth totals in a single in-memory pass; callers fetch
// records in bulk first. Inactive records are skipped. Modifiers outside
// [0,1] are a validation error, never silently clamped.
func Aggregate(assets []asset.Record, liabilities []asset.Liability, rules methodology.Ruleset) (Aggregation, error) {
	agg := Aggregation{
		TotalWealth:      zero,
		ZakatableWealth:  zero,
		TotalLiabilities: zero,
	}

	index := make(map[asset.Category]int)
	for _, rec := range assets {
		if !rec.Active {
			continue
		}
		if rec.Value.IsNegative() {
			return Aggregation{}, core.NewValidationError("value", "asset "+rec.ID+" has negative value")
		}
		modifier := rec.CalculationModifier
		if modifier.IsNegative() || modifier.GreaterThan(one) {
			return Aggregation{}, core.NewValidationError("calculationModifier",
				"asset "+rec.ID+" modifier must be within [0,1]")
		}

		eligible := rules.IsAssetEligible(rec.Category)
		contribution := zero
		if eligible {
			contribution = rec.Value.Mul(modifier)
		}

		agg.TotalWealth = agg.TotalWealth.Add(rec.Value)
		agg.ZakatableWealth = agg.ZakatableWealth.Add(contribution)

		// Breakdown preserves insertion order of first occurrence.
		pos, seen := index[rec.Category]
		if !seen {
			pos = len(agg.Breakdown)
			index[rec.Category] = pos
			agg.Breakdown = append(agg.Breakdown, CategoryBreakdown{
				Category:  rec.Category,
				Total:     zero,
				Zakatable: zero,
				Eligible:  eligible,
			})
		}
		agg.Breakdown[pos].Count++
		agg.Breakdown[pos].Total = agg.Breakdown[pos].Total.Add(rec.Value)
		agg.Breakdown[pos].Zakatable = agg.Breakdown[pos].Zakatable.Add(contribution)
	}

	for _, l := range liabilities {
		if !l.Active {
			continue
		}
		if l.Amount.IsNegative() {
			return Aggregation{}, core.NewValidationError("amount", "liability "+l.ID+" has negative amount")
		}
		if rules.IsLiabilityDeductible(l.Type) {
			agg.TotalLiabilities = agg.TotalLiabilities.Add(l.Amount)
		}
	}

	agg.NetWealth = agg.ZakatableWealth.Sub(agg.TotalLiabilities)
	return agg, nil
}

// Service aggregates wealth for an owner from stored records.
type Service struct {
	store storage.AssetStore
	log   *logger.Logger
}

// New constructs a wealth service over an asset store.
func New(store storage.AssetStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wealth")
	}
	return &Service{store: store, log: log}
}

// AggregateForOwner bulk-fetches the owner's active records and aggregates
// them in memory.
func (s *Service) AggregateForOwner(ctx context.Context, ownerID string, rules methodology.Ruleset) (Aggregation, error) {
	if ownerID == "" {
		return Aggregation{}, core.RequiredError("ownerID")
	}
	assets, err := s.store.ListAssetsByOwner(ctx, ownerID, true)
	if err != nil {
		return Aggregation{}, err
	}
	liabilities, err := s.store.ListLiabilitiesByOwner(ctx, ownerID, true)
	if err != nil {
		return Aggregation{}, err
	}
	return Aggregate(assets, liabilities, rules)
}
