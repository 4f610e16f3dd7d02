// Package nisab defines the minimum-wealth threshold model and the fixed
// reference weights used to derive it from metal prices.
package nisab

import (
	"time"

	"github.com/shopspring/decimal"
)

// Basis selects which reference metal defines the binding threshold.
type Basis string

const (
	BasisGold   Basis = "gold"
	BasisSilver Basis = "silver"
)

// Valid reports whether the basis is one of the two reference metals.
func (b Basis) Valid() bool { return b == BasisGold || b == BasisSilver }

// Metal identifies a reference metal in a price quote.
type Metal string

const (
	MetalGold   Metal = "gold"
	MetalSilver Metal = "silver"
)

// Reference weights, fixed by the classical nisab definitions.
var (
	GoldNisabGrams   = decimal.RequireFromString("87.48")
	SilverNisabGrams = decimal.RequireFromString("612.36")
)

// MetalPrice is a per-gram price quote for one reference metal.
type MetalPrice struct {
	Metal        Metal
	PricePerGram decimal.Decimal
	Currency     string
	FetchedAt    time.Time
}

// ThresholdResult carries a full threshold computation. Both metal
// thresholds are always present for transparency; SelectedThreshold is the
// one the requested basis makes binding. Results are derived values, never
// persisted standalone; they are embedded in lifecycle snapshots.
type ThresholdResult struct {
	GoldPricePerGram   decimal.Decimal
	SilverPricePerGram decimal.Decimal
	GoldThreshold      decimal.Decimal
	SilverThreshold    decimal.Decimal
	SelectedThreshold  decimal.Decimal
	BasisUsed          Basis
	Currency           string
	FetchedAt          time.Time
	PriceSource        string
}
