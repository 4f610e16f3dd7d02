package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/payment"
	"github.com/zakatwise/zakat-engine/internal/app/storage/memory"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFixture(t *testing.T) (*Service, *memory.Store, hawl.Record) {
	t.Helper()
	key, err := cryptobox.NewKey("v1", []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	box, err := cryptobox.New(cryptobox.KeyRing{Current: key})
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	store := memory.New()
	rec, err := store.CreateHawlRecord(context.Background(), hawl.Record{
		OwnerID:          "owner-1",
		Status:           hawl.StatusFinalized,
		Currency:         "USD",
		ObligationAmount: dec("250"),
	})
	if err != nil {
		t.Fatalf("create hawl record: %v", err)
	}
	return New(store, store, box, nil), store, rec
}

func TestRecordPayment(t *testing.T) {
	svc, _, rec := newFixture(t)
	ctx := context.Background()

	p, err := svc.RecordPayment(ctx, Request{
		HawlRecordID:      rec.ID,
		OwnerID:           "owner-1",
		Amount:            dec("100"),
		RecipientName:     "Local Food Bank",
		RecipientCategory: payment.RecipientPoor,
		Notes:             "first installment",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if !cryptobox.IsEncrypted(string(p.RecipientName)) || !cryptobox.IsEncrypted(string(p.Notes)) {
		t.Fatal("recipient name and notes must be stored encrypted")
	}
	if p.PaymentDate.IsZero() {
		t.Fatal("payment date should default to now")
	}

	payments, err := svc.ListPayments(ctx, rec.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(payments))
	}
	if payments[0].RecipientName != "Local Food Bank" || payments[0].Notes != "first installment" {
		t.Fatalf("decrypted payment wrong: %#v", payments[0])
	}
}

func TestRecordPayment_Validation(t *testing.T) {
	svc, _, rec := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
	}{
		{"zero amount", Request{HawlRecordID: rec.ID, OwnerID: "owner-1", Amount: dec("0"), RecipientName: "x", RecipientCategory: payment.RecipientPoor}},
		{"negative amount", Request{HawlRecordID: rec.ID, OwnerID: "owner-1", Amount: dec("-5"), RecipientName: "x", RecipientCategory: payment.RecipientPoor}},
		{"bad category", Request{HawlRecordID: rec.ID, OwnerID: "owner-1", Amount: dec("5"), RecipientName: "x", RecipientCategory: "charity"}},
		{"blank recipient", Request{HawlRecordID: rec.ID, OwnerID: "owner-1", Amount: dec("5"), RecipientName: "  ", RecipientCategory: payment.RecipientPoor}},
	}
	for _, tc := range cases {
		if _, err := svc.RecordPayment(ctx, tc.req); !core.IsValidationError(err) {
			t.Fatalf("%s: got %v, want validation error", tc.name, err)
		}
	}

	missing := Request{HawlRecordID: "no-such-record", OwnerID: "owner-1", Amount: dec("5"), RecipientName: "x", RecipientCategory: payment.RecipientPoor}
	if _, err := svc.RecordPayment(ctx, missing); !core.IsNotFound(err) {
		t.Fatalf("missing record: got %v, want not found", err)
	}
}

func TestSummarize(t *testing.T) {
	svc, _, rec := newFixture(t)
	ctx := context.Background()

	for _, amount := range []string{"100", "75.50"} {
		if _, err := svc.RecordPayment(ctx, Request{
			HawlRecordID:      rec.ID,
			OwnerID:           "owner-1",
			Amount:            dec(amount),
			RecipientName:     "Recipient",
			RecipientCategory: payment.RecipientDebtors,
		}); err != nil {
			t.Fatalf("record payment %s: %v", amount, err)
		}
	}

	sum, err := svc.Summarize(ctx, rec.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got := sum.Paid.String(); got != "175.5" {
		t.Fatalf("paid = %s, want 175.5", got)
	}
	if got := sum.Remaining.String(); got != "74.5" {
		t.Fatalf("remaining = %s, want 74.5", got)
	}
	if sum.Count != 2 {
		t.Fatalf("count = %d, want 2", sum.Count)
	}
	if got := sum.ByCategory[payment.RecipientDebtors].String(); got != "175.5" {
		t.Fatalf("category total = %s, want 175.5", got)
	}
}

func TestSummarize_OverpaymentClampsRemaining(t *testing.T) {
	svc, _, rec := newFixture(t)
	ctx := context.Background()

	if _, err := svc.RecordPayment(ctx, Request{
		HawlRecordID:      rec.ID,
		OwnerID:           "owner-1",
		Amount:            dec("400"),
		RecipientName:     "Recipient",
		RecipientCategory: payment.RecipientWayfarer,
	}); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	sum, err := svc.Summarize(ctx, rec.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !sum.Remaining.IsZero() {
		t.Fatalf("remaining = %s, want 0 on overpayment", sum.Remaining)
	}
}
