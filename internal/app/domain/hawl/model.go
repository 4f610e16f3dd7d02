// Package hawl defines the lunar-year lifecycle aggregate: the tracked
// ownership period after which an obligation becomes due.
package hawl

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
)

// PeriodDays is the length of the tracked lunar year in Gregorian days.
const PeriodDays = 354

// Status is a lifecycle state. Transitions are monotonic except the
// explicit UNLOCKED escape hatch.
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusActive      Status = "ACTIVE"
	StatusInterrupted Status = "INTERRUPTED"
	StatusComplete    Status = "COMPLETE"
	StatusFinalized   Status = "FINALIZED"
	StatusUnlocked    Status = "UNLOCKED"
)

var transitions = map[Status][]Status{
	StatusDraft:       {StatusActive, StatusInterrupted, StatusComplete, StatusFinalized},
	StatusActive:      {StatusInterrupted, StatusComplete, StatusFinalized},
	StatusInterrupted: {StatusActive},
	StatusComplete:    {StatusFinalized},
	StatusFinalized:   {StatusUnlocked},
	StatusUnlocked:    {StatusFinalized},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Open reports whether the record still tracks a period: anything that has
// neither been interrupted nor finalized. An open record blocks creation of
// a new one for the same owner.
func (s Status) Open() bool {
	switch s {
	case StatusDraft, StatusActive, StatusComplete, StatusUnlocked:
		return true
	default:
		return false
	}
}

// Record is the central lifecycle aggregate. Monetary fields are held as
// decimals in memory; the storage layer encrypts them at rest. The snapshot
// and calculation blobs are encrypted by the tracker before they ever reach
// a store.
type Record struct {
	ID      string
	OwnerID string
	Status  Status

	Basis       nisab.Basis
	Methodology methodology.Name
	Currency    string

	ThresholdAtStart decimal.Decimal
	CurrentThreshold decimal.Decimal

	StartDate           time.Time
	CompletionDate      time.Time
	StartDateHijri      string
	CompletionDateHijri string

	TotalWealth      decimal.Decimal
	TotalLiabilities decimal.Decimal
	ZakatableWealth  decimal.Decimal
	ObligationAmount decimal.Decimal

	AssetSnapshot      cryptobox.EncryptedField
	CalculationDetails cryptobox.EncryptedField

	FinalizedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Progress reports day arithmetic for a tracked period. All duration math is
// Gregorian; Hijri dates are display fields on the record itself.
type Progress struct {
	DaysElapsed   int
	DaysRemaining int
	Percent       float64
	Interrupted   bool
	Complete      bool
}

// ProgressAt computes elapsed/remaining day metrics at a given instant.
func (r Record) ProgressAt(now time.Time) Progress {
	elapsed := int(now.Sub(r.StartDate).Hours() / 24)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := PeriodDays - elapsed
	if remaining < 0 {
		remaining = 0
	}
	percent := float64(elapsed) / float64(PeriodDays) * 100
	if percent > 100 {
		percent = 100
	}
	return Progress{
		DaysElapsed:   elapsed,
		DaysRemaining: remaining,
		Percent:       percent,
		Interrupted:   r.Status == StatusInterrupted,
		Complete:      elapsed >= PeriodDays,
	}
}

// CompleteAt reports whether the tracked period has elapsed at the given
// instant, within a tolerance window expressed in days.
func (r Record) CompleteAt(now time.Time, toleranceDays int) bool {
	deadline := r.CompletionDate.AddDate(0, 0, -toleranceDays)
	return !now.Before(deadline)
}
