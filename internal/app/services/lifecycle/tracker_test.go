package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	auditDomain "github.com/zakatwise/zakat-engine/internal/app/domain/audit"
	"github.com/zakatwise/zakat-engine/internal/app/domain/asset"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
	auditsvc "github.com/zakatwise/zakat-engine/internal/app/services/audit"
	"github.com/zakatwise/zakat-engine/internal/app/services/pricing"
	"github.com/zakatwise/zakat-engine/internal/app/services/threshold"
	"github.com/zakatwise/zakat-engine/internal/app/services/wealth"
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

type fixture struct {
	store   *memory.Store
	box     *cryptobox.Box
	audit   *auditsvc.Service
	tracker *Tracker
	now     time.Time
}

// fixedPrices keeps the gold threshold at 65 * 87.48 = 5686.20.
func fixedPrices(ctx context.Context, currency string) ([]nisab.MetalPrice, error) {
	return []nisab.MetalPrice{
		{Metal: nisab.MetalGold, PricePerGram: dec("65.00"), Currency: currency},
		{Metal: nisab.MetalSilver, PricePerGram: dec("0.75"), Currency: currency},
	}, nil
}

func newFixture(t *testing.T) *fixture {
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
	auditSvc := auditsvc.New(store, box, nil)
	prices := pricing.New(pricing.FetcherFunc(fixedPrices), nil)
	thresholds := threshold.New(prices, nil)
	wealthSvc := wealth.New(store, nil)

	f := &fixture{
		store: store,
		box:   box,
		audit: auditSvc,
		now:   time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	f.tracker = New(store, store, wealthSvc, thresholds, auditSvc, box, nil,
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) addCash(t *testing.T, owner, amount string) asset.Record {
	t.Helper()
	rec, err := f.store.CreateAsset(context.Background(), asset.Record{
		OwnerID:  owner,
		Category: asset.CategoryCash,
		Value:    dec(amount),
		Currency: "USD",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return rec
}

func TestDetectThresholdCrossing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")

	rec, created, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !created {
		t.Fatal("expected a new record")
	}
	if rec.Status != hawl.StatusDraft {
		t.Fatalf("status = %s, want DRAFT", rec.Status)
	}
	if got := rec.ThresholdAtStart.String(); got != "5686.2" {
		t.Fatalf("threshold at start = %s, want 5686.2", got)
	}
	wantCompletion := f.now.AddDate(0, 0, hawl.PeriodDays)
	if !rec.CompletionDate.Equal(wantCompletion) {
		t.Fatalf("completion = %v, want %v", rec.CompletionDate, wantCompletion)
	}
	if rec.StartDateHijri == "" || rec.CompletionDateHijri == "" {
		t.Fatal("hijri display dates should be populated")
	}
	if got := rec.ObligationAmount.String(); got != "250" {
		t.Fatalf("obligation = %s, want 250", got)
	}

	// The snapshot must decrypt back to the captured aggregation.
	agg, err := f.tracker.Snapshot(rec)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got := agg.NetWealth.String(); got != "10000" {
		t.Fatalf("snapshot net = %s, want 10000", got)
	}

	entries, err := f.audit.List(ctx, rec.ID)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 1 || entries[0].EventType != auditDomain.EventCreated {
		t.Fatalf("expected one CREATED audit entry, got %#v", entries)
	}

	// A second detection returns the open record instead of a duplicate.
	again, created, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("second detect: %v", err)
	}
	if created || again.ID != rec.ID {
		t.Fatalf("expected the existing open record, got created=%v id=%s", created, again.ID)
	}
}

func TestDetectThresholdCrossing_NotObligated(t *testing.T) {
	f := newFixture(t)
	f.addCash(t, "owner-1", "100")

	_, created, err := f.tracker.DetectThresholdCrossing(context.Background(), "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if created {
		t.Fatal("wealth below threshold must not open a record")
	}
}

func TestRecalculate_ActivationAndCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	rec, progress, err := f.tracker.Recalculate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if rec.Status != hawl.StatusActive {
		t.Fatalf("status = %s, want ACTIVE after first recalculation", rec.Status)
	}
	if progress.DaysElapsed != 0 || progress.Complete {
		t.Fatalf("unexpected progress at start: %#v", progress)
	}

	// One day short of the period: still active.
	f.now = f.now.AddDate(0, 0, hawl.PeriodDays-1)
	rec, progress, err = f.tracker.Recalculate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("recalculate at day 353: %v", err)
	}
	if rec.Status != hawl.StatusActive || progress.Complete {
		t.Fatalf("day 353 should not complete: status=%s progress=%#v", rec.Status, progress)
	}
	if progress.DaysRemaining != 1 {
		t.Fatalf("days remaining = %d, want 1", progress.DaysRemaining)
	}

	f.now = f.now.AddDate(0, 0, 1)
	rec, progress, err = f.tracker.Recalculate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("recalculate at day 354: %v", err)
	}
	if rec.Status != hawl.StatusComplete || !progress.Complete {
		t.Fatalf("day 354 should complete: status=%s progress=%#v", rec.Status, progress)
	}
}

func TestRecalculate_InterruptionIsSticky(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	// Wealth drops below the threshold captured at start.
	cash.Value = dec("1000")
	if _, err := f.store.UpdateAsset(ctx, cash); err != nil {
		t.Fatalf("update asset: %v", err)
	}
	rec, _, err = f.tracker.Recalculate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if rec.Status != hawl.StatusInterrupted {
		t.Fatalf("status = %s, want INTERRUPTED", rec.Status)
	}
	startDate := rec.StartDate

	// Wealth recovers, but recalculation alone never reverts the flag.
	cash.Value = dec("20000")
	if _, err := f.store.UpdateAsset(ctx, cash); err != nil {
		t.Fatalf("update asset: %v", err)
	}
	rec, _, err = f.tracker.Recalculate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("recalculate interrupted: %v", err)
	}
	if rec.Status != hawl.StatusInterrupted {
		t.Fatalf("interruption must be sticky, got %s", rec.Status)
	}

	// An explicit re-evaluation reactivates without resetting the clock.
	rec, err = f.tracker.Reevaluate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reevaluate: %v", err)
	}
	if rec.Status != hawl.StatusActive {
		t.Fatalf("status = %s, want ACTIVE after reevaluation", rec.Status)
	}
	if !rec.StartDate.Equal(startDate) {
		t.Fatal("reevaluation must not reset the start date")
	}
}

func TestReevaluate_StaysInterruptedWhileBelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	cash.Value = dec("1000")
	if _, err := f.store.UpdateAsset(ctx, cash); err != nil {
		t.Fatalf("update asset: %v", err)
	}
	if rec, _, err = f.tracker.Recalculate(ctx, rec.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	rec, err = f.tracker.Reevaluate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reevaluate: %v", err)
	}
	if rec.Status != hawl.StatusInterrupted {
		t.Fatalf("still below threshold, status = %s, want INTERRUPTED", rec.Status)
	}
}

func TestReevaluate_RejectsSupersededRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.addCash(t, "owner-1", "10000")

	first, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	cash.Value = dec("1000")
	if _, err := f.store.UpdateAsset(ctx, cash); err != nil {
		t.Fatalf("update asset: %v", err)
	}
	if first, _, err = f.tracker.Recalculate(ctx, first.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if first.Status != hawl.StatusInterrupted {
		t.Fatalf("status = %s, want INTERRUPTED", first.Status)
	}

	// Wealth crosses the threshold again while the interrupted record
	// lingers; a fresh record opens for the owner.
	cash.Value = dec("20000")
	if _, err := f.store.UpdateAsset(ctx, cash); err != nil {
		t.Fatalf("update asset: %v", err)
	}
	second, created, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect again: %v", err)
	}
	if !created || second.ID == first.ID {
		t.Fatalf("expected a fresh record, got created=%v id=%s", created, second.ID)
	}

	// The superseded record must not reactivate alongside it.
	if _, err := f.tracker.Reevaluate(ctx, first.ID); !core.IsStateTransition(err) {
		t.Fatalf("reevaluate superseded record: got %v, want state transition error", err)
	}
	got, err := f.store.GetHawlRecord(ctx, first.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Status != hawl.StatusInterrupted {
		t.Fatalf("superseded record status = %s, want INTERRUPTED", got.Status)
	}

	open, err := f.store.GetOpenHawlRecord(ctx, "owner-1")
	if err != nil {
		t.Fatalf("open record: %v", err)
	}
	if open.ID != second.ID {
		t.Fatalf("open record = %s, want %s", open.ID, second.ID)
	}
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	f.now = f.now.AddDate(0, 0, hawl.PeriodDays)
	if rec, _, err = f.tracker.Recalculate(ctx, rec.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if rec.Status != hawl.StatusComplete {
		t.Fatalf("status = %s, want COMPLETE", rec.Status)
	}

	rec, err = f.tracker.Finalize(ctx, rec.ID, "user:owner-1")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if rec.Status != hawl.StatusFinalized || rec.FinalizedAt == nil {
		t.Fatalf("finalize not applied: %#v", rec)
	}

	if _, err := f.tracker.Finalize(ctx, rec.ID, "user:owner-1"); !core.IsStateTransition(err) {
		t.Fatalf("double finalize: got %v, want state transition error", err)
	}
	if _, _, err := f.tracker.Recalculate(ctx, rec.ID); !core.IsStateTransition(err) {
		t.Fatalf("recalculate finalized: got %v, want state transition error", err)
	}
}

func TestUnlockEditRefinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if rec, err = f.tracker.Finalize(ctx, rec.ID, "user:owner-1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Short justification fails validation before any state change.
	if _, err := f.tracker.Unlock(ctx, rec.ID, "too short", "user:owner-1"); !core.IsValidationError(err) {
		t.Fatalf("short justification: got %v, want validation error", err)
	}
	current, err := f.store.GetHawlRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if current.Status != hawl.StatusFinalized {
		t.Fatalf("rejected unlock must not change state, got %s", current.Status)
	}

	rec, err = f.tracker.Unlock(ctx, rec.ID, "correcting a mistyped asset value", "user:owner-1")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if rec.Status != hawl.StatusUnlocked {
		t.Fatalf("status = %s, want UNLOCKED", rec.Status)
	}

	rec, err = f.tracker.ApplyEdit(ctx, rec.ID, "user:owner-1", func(r *hawl.Record) error {
		r.ObligationAmount = dec("300")
		return nil
	})
	if err != nil {
		t.Fatalf("apply edit: %v", err)
	}
	if got := rec.ObligationAmount.String(); got != "300" {
		t.Fatalf("edited obligation = %s, want 300", got)
	}

	rec, err = f.tracker.Finalize(ctx, rec.ID, "user:owner-1")
	if err != nil {
		t.Fatalf("re-finalize: %v", err)
	}
	if rec.Status != hawl.StatusFinalized {
		t.Fatalf("status = %s, want FINALIZED", rec.Status)
	}

	entries, err := f.audit.List(ctx, rec.ID)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	wantOrder := []auditDomain.EventType{
		auditDomain.EventFinalized,
		auditDomain.EventEdited,
		auditDomain.EventUnlocked,
		auditDomain.EventFinalized,
		auditDomain.EventCreated,
	}
	if len(entries) != len(wantOrder) {
		t.Fatalf("audit entries = %d, want %d", len(entries), len(wantOrder))
	}
	for i, want := range wantOrder {
		if entries[i].EventType != want {
			t.Fatalf("entry %d = %s, want %s", i, entries[i].EventType, want)
		}
	}

	// The unlock justification round-trips through encryption.
	for _, e := range entries {
		if e.EventType == auditDomain.EventUnlocked {
			justification, err := f.audit.Justification(e)
			if err != nil {
				t.Fatalf("decrypt justification: %v", err)
			}
			if justification != "correcting a mistyped asset value" {
				t.Fatalf("justification = %q", justification)
			}
		}
	}
}

func TestUnlock_OnlyFromFinalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if _, err := f.tracker.Unlock(ctx, rec.ID, "a perfectly valid justification", "user:owner-1"); !core.IsStateTransition(err) {
		t.Fatalf("unlock from DRAFT: got %v, want state transition error", err)
	}
}

func TestConcurrentFinalizeResolvesToOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	// Simulate the loser of a finalize race: its optimistic update carries
	// a status that is no longer current.
	winner := rec
	winner.Status = hawl.StatusFinalized
	if _, err := f.store.UpdateHawlRecord(ctx, winner, hawl.StatusDraft); err != nil {
		t.Fatalf("winner update: %v", err)
	}

	loser := rec
	loser.Status = hawl.StatusFinalized
	if _, err := f.store.UpdateHawlRecord(ctx, loser, hawl.StatusDraft); !core.IsStateTransition(err) {
		t.Fatalf("loser update: got %v, want state transition error", err)
	}
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")

	rec, _, err := f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	if err := f.tracker.DeleteDraft(ctx, rec.ID, "owner-2"); !core.IsNotFound(err) {
		t.Fatalf("wrong owner: got %v, want not found", err)
	}
	if err := f.tracker.DeleteDraft(ctx, rec.ID, "owner-1"); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := f.store.GetHawlRecord(ctx, rec.ID); !core.IsNotFound(err) {
		t.Fatalf("record should be gone, got %v", err)
	}

	// Non-draft records are never deletable.
	rec, _, err = f.tracker.DetectThresholdCrossing(ctx, "owner-1", methodology.Standard, "USD")
	if err != nil {
		t.Fatalf("re-detect: %v", err)
	}
	if rec, err = f.tracker.Finalize(ctx, rec.ID, "user:owner-1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := f.tracker.DeleteDraft(ctx, rec.ID, "owner-1"); !core.IsStateTransition(err) {
		t.Fatalf("delete finalized: got %v, want state transition error", err)
	}
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCash(t, "owner-1", "10000")
	f.addCash(t, "owner-2", "50")

	sweeper := NewSweeper(f.tracker, f.store, f.store, methodology.Standard, "USD", "", nil)
	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	recs, err := f.store.ListHawlRecords(ctx, "owner-1", nil)
	if err != nil {
		t.Fatalf("list owner-1: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != hawl.StatusActive {
		t.Fatalf("owner-1 should have one ACTIVE record after sweep, got %#v", recs)
	}

	recs, err = f.store.ListHawlRecords(ctx, "owner-2", nil)
	if err != nil {
		t.Fatalf("list owner-2: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("owner-2 below threshold should have no records, got %d", len(recs))
	}
}
