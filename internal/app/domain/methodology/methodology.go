// Package methodology implements the pluggable rulesets that decide which
// asset and liability categories count toward the obligation, which metal
// basis applies and at what rate. Each named methodology is a closed
// implementation selected once at calculation entry; components never branch
// on methodology strings.
package methodology

import (
	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/asset"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
)

// Name identifies a built-in or custom ruleset.
type Name string

const (
	Standard Name = "STANDARD"
	Hanafi   Name = "HANAFI"
	Shafi    Name = "SHAFI"
	Custom   Name = "CUSTOM"
)

// DefaultRate is the fixed 2.5% rate all built-in methodologies apply.
var DefaultRate = decimal.RequireFromString("0.025")

// Ruleset decides eligibility, deductibility, basis and rate. Unknown
// categories are never an error; they simply do not count.
type Ruleset interface {
	Name() Name
	IsAssetEligible(c asset.Category) bool
	IsLiabilityDeductible(t asset.LiabilityType) bool
	Basis() nisab.Basis
	Rate() decimal.Decimal
}

// ForName resolves a built-in ruleset. Custom rulesets are constructed
// explicitly via NewCustom and cannot be resolved by name alone.
func ForName(n Name) (Ruleset, error) {
	switch n {
	case Standard:
		return standard{}, nil
	case Hanafi:
		return hanafi{}, nil
	case Shafi:
		return shafi{}, nil
	case Custom:
		return nil, core.NewValidationError("methodology", "custom methodologies require explicit construction")
	default:
		return nil, core.NewValidationError("methodology", "unknown methodology "+string(n))
	}
}

type categorySet map[asset.Category]struct{}

func (s categorySet) has(c asset.Category) bool {
	_, ok := s[c]
	return ok
}

type liabilitySet map[asset.LiabilityType]struct{}

func (s liabilitySet) has(t asset.LiabilityType) bool {
	_, ok := s[t]
	return ok
}

// standard approximates the international consensus inclusion set on a gold
// basis.
type standard struct{}

var standardAssets = categorySet{
	asset.CategoryCash:              {},
	asset.CategoryGold:              {},
	asset.CategorySilver:            {},
	asset.CategoryBusinessInventory: {},
	asset.CategoryInvestment:        {},
	asset.CategoryReceivable:        {},
	asset.CategoryCrypto:            {},
}

var standardLiabilities = liabilitySet{
	asset.LiabilityLoan:       {},
	asset.LiabilityCreditCard: {},
	asset.LiabilityBillsDue:   {},
}

func (standard) Name() Name                                      { return Standard }
func (standard) IsAssetEligible(c asset.Category) bool           { return standardAssets.has(c) }
func (standard) IsLiabilityDeductible(t asset.LiabilityType) bool { return standardLiabilities.has(t) }
func (standard) Basis() nisab.Basis                              { return nisab.BasisGold }
func (standard) Rate() decimal.Decimal                           { return DefaultRate }

// hanafi uses the silver basis with the broadest asset inclusion and the
// most permissive liability deduction.
type hanafi struct{}

var hanafiAssets = categorySet{
	asset.CategoryCash:              {},
	asset.CategoryGold:              {},
	asset.CategorySilver:            {},
	asset.CategoryBusinessInventory: {},
	asset.CategoryInvestment:        {},
	asset.CategoryPassiveInvestment: {},
	asset.CategoryReceivable:        {},
	asset.CategoryCrypto:            {},
	asset.CategoryRentalProperty:    {},
}

var hanafiLiabilities = liabilitySet{
	asset.LiabilityLoan:         {},
	asset.LiabilityCreditCard:   {},
	asset.LiabilityBillsDue:     {},
	asset.LiabilityBusinessDebt: {},
	asset.LiabilityMortgage:     {},
	asset.LiabilityTaxesDue:     {},
}

func (hanafi) Name() Name                                      { return Hanafi }
func (hanafi) IsAssetEligible(c asset.Category) bool           { return hanafiAssets.has(c) }
func (hanafi) IsLiabilityDeductible(t asset.LiabilityType) bool { return hanafiLiabilities.has(t) }
func (hanafi) Basis() nisab.Basis                              { return nisab.BasisSilver }
func (hanafi) Rate() decimal.Decimal                           { return DefaultRate }

// shafi uses the gold basis with a narrower inclusion set and loan-only
// deduction.
type shafi struct{}

var shafiAssets = categorySet{
	asset.CategoryCash:              {},
	asset.CategoryGold:              {},
	asset.CategorySilver:            {},
	asset.CategoryBusinessInventory: {},
	asset.CategoryReceivable:        {},
}

var shafiLiabilities = liabilitySet{
	asset.LiabilityLoan: {},
}

func (shafi) Name() Name                                      { return Shafi }
func (shafi) IsAssetEligible(c asset.Category) bool           { return shafiAssets.has(c) }
func (shafi) IsLiabilityDeductible(t asset.LiabilityType) bool { return shafiLiabilities.has(t) }
func (shafi) Basis() nisab.Basis                              { return nisab.BasisGold }
func (shafi) Rate() decimal.Decimal                           { return DefaultRate }

// CustomRuleset is a caller-assembled methodology. The rate may be
// overridden; everything else defaults to the standard ruleset unless set.
type CustomRuleset struct {
	assets      categorySet
	liabilities liabilitySet
	basis       nisab.Basis
	rate        decimal.Decimal
}

// CustomOption configures a custom ruleset.
type CustomOption func(*CustomRuleset)

// WithAssetCategories replaces the eligible asset category set.
func WithAssetCategories(categories ...asset.Category) CustomOption {
	return func(r *CustomRuleset) {
		r.assets = make(categorySet, len(categories))
		for _, c := range categories {
			r.assets[c] = struct{}{}
		}
	}
}

// WithDeductibleLiabilities replaces the deductible liability set.
func WithDeductibleLiabilities(types ...asset.LiabilityType) CustomOption {
	return func(r *CustomRuleset) {
		r.liabilities = make(liabilitySet, len(types))
		for _, t := range types {
			r.liabilities[t] = struct{}{}
		}
	}
}

// WithBasis sets the threshold basis.
func WithBasis(b nisab.Basis) CustomOption {
	return func(r *CustomRuleset) { r.basis = b }
}

// WithRate overrides the obligation rate.
func WithRate(rate decimal.Decimal) CustomOption {
	return func(r *CustomRuleset) { r.rate = rate }
}

// NewCustom assembles a custom ruleset. The rate must be positive.
func NewCustom(opts ...CustomOption) (*CustomRuleset, error) {
	r := &CustomRuleset{
		assets:      standardAssets,
		liabilities: standardLiabilities,
		basis:       nisab.BasisGold,
		rate:        DefaultRate,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.rate.IsPositive() {
		return nil, core.NewValidationError("rate", "must be positive")
	}
	if !r.basis.Valid() {
		return nil, core.NewValidationError("basis", "must be gold or silver")
	}
	return r, nil
}

func (r *CustomRuleset) Name() Name                                      { return Custom }
func (r *CustomRuleset) IsAssetEligible(c asset.Category) bool           { return r.assets.has(c) }
func (r *CustomRuleset) IsLiabilityDeductible(t asset.LiabilityType) bool { return r.liabilities.has(t) }
func (r *CustomRuleset) Basis() nisab.Basis                              { return r.basis }
func (r *CustomRuleset) Rate() decimal.Decimal                           { return r.rate }
