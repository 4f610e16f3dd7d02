// Package payment defines disbursement records counted against a lifecycle
// record's obligation amount.
package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/cryptobox"
)

// RecipientCategory is one of the eight canonical recipient categories.
type RecipientCategory string

const (
	RecipientPoor           RecipientCategory = "poor"
	RecipientNeedy          RecipientCategory = "needy"
	RecipientAdministrators RecipientCategory = "administrators"
	RecipientReconciliation RecipientCategory = "reconciliation_of_hearts"
	RecipientCaptives       RecipientCategory = "freeing_captives"
	RecipientDebtors        RecipientCategory = "debtors"
	RecipientCauseOfGod     RecipientCategory = "cause_of_god"
	RecipientWayfarer       RecipientCategory = "wayfarer"
)

// Categories lists the canonical recipient categories in traditional order.
var Categories = []RecipientCategory{
	RecipientPoor,
	RecipientNeedy,
	RecipientAdministrators,
	RecipientReconciliation,
	RecipientCaptives,
	RecipientDebtors,
	RecipientCauseOfGod,
	RecipientWayfarer,
}

// Valid reports whether the category is canonical.
func (c RecipientCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Record is a single payment. Recipient name and notes are encrypted
// before they reach a store; the amount is sealed by the storage layer
// at rest, like the lifecycle record's monetary fields.
type Record struct {
	ID                string
	HawlRecordID      string
	OwnerID           string
	Amount            decimal.Decimal
	RecipientName     cryptobox.EncryptedField
	RecipientCategory RecipientCategory
	PaymentDate       time.Time
	Notes             cryptobox.EncryptedField
	CreatedAt         time.Time
}
