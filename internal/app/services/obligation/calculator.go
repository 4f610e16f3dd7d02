// Package obligation applies the methodology rate to net wealth when the
// threshold is met. Pure functions over their inputs; callers own
// snapshotting and persistence.
package obligation

import (
	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
	"github.com/zakatwise/zakat-engine/internal/app/services/wealth"
)

// Result is a complete obligation computation. Either a full result is
// returned or a typed error; there are no partial results.
type Result struct {
	NetWealth   decimal.Decimal
	Threshold   decimal.Decimal
	Rate        decimal.Decimal
	IsObligated bool
	Amount      decimal.Decimal
	Methodology methodology.Name
	Breakdown   wealth.Aggregation
	Detail      nisab.ThresholdResult
}

// Overrides carries caller-supplied threshold and rate values for advanced
// scenarios. Both must pass the same positivity validation as computed
// values.
type Overrides struct {
	Threshold *decimal.Decimal
	Rate      *decimal.Decimal
}

// Calculate composes an aggregation and a threshold result into the final
// obligation. The obligation test is inclusive: net wealth equal to the
// threshold is obligated.
func Calculate(agg wealth.Aggregation, thr nisab.ThresholdResult, rules methodology.Ruleset, ov *Overrides) (Result, error) {
	threshold := thr.SelectedThreshold
	rate := rules.Rate()

	if ov != nil {
		if ov.Threshold != nil {
			if !ov.Threshold.IsPositive() {
				return Result{}, core.NewValidationError("threshold", "override must be positive")
			}
			threshold = *ov.Threshold
		}
		if ov.Rate != nil {
			if !ov.Rate.IsPositive() {
				return Result{}, core.NewValidationError("rate", "override must be positive")
			}
			rate = *ov.Rate
		}
	}

	obligated := agg.NetWealth.GreaterThanOrEqual(threshold)

	amount := decimal.Zero
	if obligated {
		amount = Due(agg.NetWealth, rate)
	}

	return Result{
		NetWealth:   agg.NetWealth,
		Threshold:   threshold,
		Rate:        rate,
		IsObligated: obligated,
		Amount:      amount,
		Methodology: rules.Name(),
		Breakdown:   agg,
		Detail:      thr,
	}, nil
}

// Due computes rate × net wealth rounded half-up to two decimal places,
// floored at zero. This is the single place a negative net is clamped.
func Due(netWealth, rate decimal.Decimal) decimal.Decimal {
	amount := netWealth.Mul(rate).Round(2)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
