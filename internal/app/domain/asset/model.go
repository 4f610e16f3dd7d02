// Package asset defines the wealth records the engine aggregates: owned
// assets with per-category eligibility and deductible liabilities.
package asset

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies an asset for methodology eligibility rules.
type Category string

const (
	CategoryCash              Category = "cash"
	CategoryGold              Category = "gold"
	CategorySilver            Category = "silver"
	CategoryBusinessInventory Category = "business_inventory"
	CategoryInvestment        Category = "investment"
	CategoryPassiveInvestment Category = "passive_investment"
	CategoryReceivable        Category = "receivable"
	CategoryCrypto            Category = "crypto"
	CategoryRentalProperty    Category = "rental_property"
	CategoryRetirement        Category = "retirement"
)

// LiabilityType classifies a liability; whether it is deductible is a
// property of the methodology, not of the record.
type LiabilityType string

const (
	LiabilityLoan         LiabilityType = "loan"
	LiabilityCreditCard   LiabilityType = "credit_card"
	LiabilityBillsDue     LiabilityType = "bills_due"
	LiabilityBusinessDebt LiabilityType = "business_debt"
	LiabilityMortgage     LiabilityType = "mortgage"
	LiabilityTaxesDue     LiabilityType = "taxes_due"
)

// Record is a single owned asset. Soft-deleted via Active=false; never
// physically removed while referenced by a finalized lifecycle snapshot.
type Record struct {
	ID       string
	OwnerID  string
	Category Category
	Value    decimal.Decimal
	Currency string
	// CalculationModifier expresses partial zakatability in [0,1], e.g. a
	// passive investment counted at 30%.
	CalculationModifier decimal.Decimal
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewRecord builds an asset record with the modifier defaulted to 1.
func NewRecord(ownerID string, category Category, value decimal.Decimal, currency string) Record {
	return Record{
		OwnerID:             ownerID,
		Category:            category,
		Value:               value,
		Currency:            currency,
		CalculationModifier: decimal.NewFromInt(1),
		Active:              true,
	}
}

// Liability is a debt owed by the user.
type Liability struct {
	ID        string
	OwnerID   string
	Type      LiabilityType
	Amount    decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
