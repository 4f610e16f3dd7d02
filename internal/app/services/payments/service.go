// Package payments records obligation disbursements against lifecycle
// records and reports paid-versus-remaining totals. Amounts, recipient
// names and notes are stored encrypted.
package payments

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/payment"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Service manages payment records.
type Service struct {
	payments storage.PaymentStore
	hawls    storage.HawlStore
	box      *cryptobox.Box
	log      *logger.Logger
}

func New(payments storage.PaymentStore, hawls storage.HawlStore, box *cryptobox.Box, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	return &Service{payments: payments, hawls: hawls, box: box, log: log}
}

// Request carries the plaintext inputs for a new payment. A zero
// PaymentDate defaults to the current time.
type Request struct {
	HawlRecordID      string
	OwnerID           string
	Amount            decimal.Decimal
	RecipientName     string
	RecipientCategory payment.RecipientCategory
	PaymentDate       time.Time
	Notes             string
}

// Payment is a decrypted view of a stored record.
type Payment struct {
	Record        payment.Record
	Amount        decimal.Decimal
	RecipientName string
	Notes         string
}

// RecordPayment validates and stores a payment against an existing
// lifecycle record.
func (s *Service) RecordPayment(ctx context.Context, req Request) (payment.Record, error) {
	if req.HawlRecordID == "" {
		return payment.Record{}, core.RequiredError("hawl_record_id")
	}
	if req.OwnerID == "" {
		return payment.Record{}, core.RequiredError("owner_id")
	}
	if !req.Amount.IsPositive() {
		return payment.Record{}, core.NewValidationError("amount", "payment amount must be positive")
	}
	if !req.RecipientCategory.Valid() {
		return payment.Record{}, core.NewValidationError("recipient_category",
			"recipient category must be one of the eight canonical categories")
	}
	if strings.TrimSpace(req.RecipientName) == "" {
		return payment.Record{}, core.RequiredError("recipient_name")
	}

	rec, err := s.hawls.GetHawlRecord(ctx, req.HawlRecordID)
	if err != nil {
		return payment.Record{}, err
	}
	if rec.OwnerID != req.OwnerID {
		return payment.Record{}, core.NewNotFoundError("hawl record", req.HawlRecordID)
	}

	name, err := s.box.Encrypt(req.RecipientName)
	if err != nil {
		return payment.Record{}, err
	}
	var notes cryptobox.EncryptedField
	if req.Notes != "" {
		notes, err = s.box.Encrypt(req.Notes)
		if err != nil {
			return payment.Record{}, err
		}
	}

	paidAt := req.PaymentDate
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	p := payment.Record{
		HawlRecordID:      req.HawlRecordID,
		OwnerID:           req.OwnerID,
		Amount:            req.Amount,
		RecipientName:     name,
		RecipientCategory: req.RecipientCategory,
		PaymentDate:       paidAt,
		Notes:             notes,
	}
	p, err = s.payments.CreatePayment(ctx, p)
	if err != nil {
		return payment.Record{}, err
	}

	s.log.WithField("hawl_record_id", req.HawlRecordID).
		WithField("category", string(req.RecipientCategory)).
		Info("payment recorded")
	return p, nil
}

// ListPayments returns the decrypted payments for a lifecycle record.
func (s *Service) ListPayments(ctx context.Context, hawlRecordID string) ([]Payment, error) {
	records, err := s.payments.ListPayments(ctx, hawlRecordID)
	if err != nil {
		return nil, err
	}
	out := make([]Payment, 0, len(records))
	for _, rec := range records {
		p, err := s.decrypt(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Summary reports what has been paid against a record's obligation.
type Summary struct {
	Obligation decimal.Decimal
	Paid       decimal.Decimal
	Remaining  decimal.Decimal
	Count      int
	ByCategory map[payment.RecipientCategory]decimal.Decimal
}

// Summarize totals the payments for a lifecycle record. Remaining never
// goes below zero, overpayment simply shows as remaining zero.
func (s *Service) Summarize(ctx context.Context, hawlRecordID string) (Summary, error) {
	rec, err := s.hawls.GetHawlRecord(ctx, hawlRecordID)
	if err != nil {
		return Summary{}, err
	}
	records, err := s.payments.ListPayments(ctx, hawlRecordID)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Obligation: rec.ObligationAmount,
		Paid:       decimal.Zero,
		Count:      len(records),
		ByCategory: make(map[payment.RecipientCategory]decimal.Decimal),
	}
	for _, p := range records {
		sum.Paid = sum.Paid.Add(p.Amount)
		sum.ByCategory[p.RecipientCategory] = sum.ByCategory[p.RecipientCategory].Add(p.Amount)
	}
	sum.Remaining = rec.ObligationAmount.Sub(sum.Paid)
	if sum.Remaining.IsNegative() {
		sum.Remaining = decimal.Zero
	}
	return sum, nil
}

func (s *Service) decrypt(rec payment.Record) (Payment, error) {
	name, _, err := s.box.DecryptWithFallback(rec.RecipientName)
	if err != nil {
		return Payment{}, err
	}
	p := Payment{Record: rec, Amount: rec.Amount, RecipientName: name}
	if rec.Notes != "" {
		notes, _, err := s.box.DecryptWithFallback(rec.Notes)
		if err != nil {
			return Payment{}, err
		}
		p.Notes = notes
	}
	return p, nil
}
