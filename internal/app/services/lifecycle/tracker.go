// Package lifecycle implements the lunar-year (hawl) state machine: it
// detects threshold crossings, tracks elapsed and remaining days, flags
// interruption and drives finalization with an immutable audit trail.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	auditDomain "github.com/zakatwise/zakat-engine/internal/app/domain/audit"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/metrics"
	auditsvc "github.com/zakatwise/zakat-engine/internal/app/services/audit"
	"github.com/zakatwise/zakat-engine/internal/app/services/obligation"
	"github.com/zakatwise/zakat-engine/internal/app/services/threshold"
	"github.com/zakatwise/zakat-engine/internal/app/services/wealth"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
	"github.com/zakatwise/zakat-engine/internal/hijri"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Tracker manages hawl lifecycle records for all owners. The calculators it
// composes are stateless; the tracker itself guards concurrent transitions
// with an optimistic status check at the storage layer.
type Tracker struct {
	hawls      storage.HawlStore
	assets     storage.AssetStore
	wealth     *wealth.Service
	thresholds *threshold.Calculator
	audit      *auditsvc.Service
	box        *cryptobox.Box
	log        *logger.Logger

	toleranceDays int
	now           func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithToleranceDays relaxes the 354-day completion check by a window of
// days.
func WithToleranceDays(days int) Option {
	return func(t *Tracker) {
		if days >= 0 {
			t.toleranceDays = days
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New constructs a lifecycle tracker.
func New(hawls storage.HawlStore, assets storage.AssetStore, wealthSvc *wealth.Service,
	thresholds *threshold.Calculator, auditSvc *auditsvc.Service, box *cryptobox.Box,
	log *logger.Logger, opts ...Option) *Tracker {
	if log == nil {
		log = logger.NewDefault("lifecycle")
	}
	t := &Tracker{
		hawls:      hawls,
		assets:     assets,
		wealth:     wealthSvc,
		thresholds: thresholds,
		audit:      auditSvc,
		box:        box,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// assetSnapshot is the encrypted point-in-time capture stored on a new
// record.
type assetSnapshot struct {
	TakenAt     time.Time          `json:"taken_at"`
	Methodology methodology.Name   `json:"methodology"`
	Aggregation wealth.Aggregation `json:"aggregation"`
	AssetIDs    []string           `json:"asset_ids"`
}

// DetectThresholdCrossing evaluates an owner's wealth and, when obligated
// with no open record, opens a DRAFT lifecycle record with an encrypted
// snapshot. Returns the open or newly created record and whether one was
// created.
func (t *Tracker) DetectThresholdCrossing(ctx context.Context, ownerID string, name methodology.Name, currency string) (hawl.Record, bool, error) {
	started := t.now()

	rules, err := methodology.ForName(name)
	if err != nil {
		return hawl.Record{}, false, err
	}

	if open, err := t.hawls.GetOpenHawlRecord(ctx, ownerID); err == nil {
		return open, false, nil
	} else if !core.IsNotFound(err) {
		return hawl.Record{}, false, err
	}

	agg, err := t.wealth.AggregateForOwner(ctx, ownerID, rules)
	if err != nil {
		return hawl.Record{}, false, err
	}
	thr, err := t.thresholds.Compute(ctx, currency, rules.Basis())
	if err != nil {
		return hawl.Record{}, false, err
	}
	result, err := obligation.Calculate(agg, thr, rules, nil)
	if err != nil {
		return hawl.Record{}, false, err
	}
	metrics.RecordCalculation(string(name), result.IsObligated, t.now().Sub(started))

	if !result.IsObligated {
		return hawl.Record{}, false, nil
	}

	assets, err := t.assets.ListAssetsByOwner(ctx, ownerID, true)
	if err != nil {
		return hawl.Record{}, false, err
	}
	assetIDs := make([]string, 0, len(assets))
	for _, a := range assets {
		assetIDs = append(assetIDs, a.ID)
	}

	now := t.now()
	completion := now.AddDate(0, 0, hawl.PeriodDays)

	snapshot, err := t.box.EncryptJSON(assetSnapshot{
		TakenAt:     now,
		Methodology: name,
		Aggregation: agg,
		AssetIDs:    assetIDs,
	})
	if err != nil {
		return hawl.Record{}, false, err
	}
	details, err := t.box.EncryptJSON(result)
	if err != nil {
		return hawl.Record{}, false, err
	}

	rec := hawl.Record{
		OwnerID:             ownerID,
		Status:              hawl.StatusDraft,
		Basis:               rules.Basis(),
		Methodology:         name,
		Currency:            thr.Currency,
		ThresholdAtStart:    thr.SelectedThreshold,
		CurrentThreshold:    thr.SelectedThreshold,
		StartDate:           now,
		CompletionDate:      completion,
		StartDateHijri:      hijri.FromGregorian(now).String(),
		CompletionDateHijri: hijri.FromGregorian(completion).String(),
		TotalWealth:         agg.TotalWealth,
		TotalLiabilities:    agg.TotalLiabilities,
		ZakatableWealth:     agg.ZakatableWealth,
		ObligationAmount:    result.Amount,
		AssetSnapshot:       snapshot,
		CalculationDetails:  details,
	}

	rec, err = t.hawls.CreateHawlRecord(ctx, rec)
	if err != nil {
		return hawl.Record{}, false, err
	}
	metrics.RecordTransition("", string(hawl.StatusDraft))

	if _, err := t.audit.Record(ctx, auditsvc.Event{
		HawlRecordID: rec.ID,
		OwnerID:      ownerID,
		Type:         auditDomain.EventCreated,
		After:        rec,
		ActorContext: "system:threshold-crossing",
	}); err != nil {
		return hawl.Record{}, false, err
	}

	t.log.WithField("owner_id", ownerID).
		WithField("hawl_record_id", rec.ID).
		WithField("threshold", rec.ThresholdAtStart.String()).
		Info("hawl period opened")
	return rec, true, nil
}

// Recalculate re-evaluates an open record against the owner's current
// wealth: it refreshes the tracked figures, flips DRAFT to ACTIVE on the
// first pass, flags INTERRUPTED the moment net wealth drops below the
// threshold captured at start, and flags COMPLETE once the period has
// elapsed. Interruption compares against ThresholdAtStart, never the live
// threshold, and is sticky: it does not auto-revert (see Reevaluate).
func (t *Tracker) Recalculate(ctx context.Context, recordID string) (hawl.Record, hawl.Progress, error) {
	rec, err := t.hawls.GetHawlRecord(ctx, recordID)
	if err != nil {
		return hawl.Record{}, hawl.Progress{}, err
	}

	switch rec.Status {
	case hawl.StatusFinalized, hawl.StatusUnlocked:
		return hawl.Record{}, hawl.Progress{}, core.NewStateTransitionError(string(rec.Status), "recalculated")
	case hawl.StatusInterrupted:
		// Flag-only semantics: report progress without touching state.
		return rec, rec.ProgressAt(t.now()), nil
	}

	rules, err := methodology.ForName(rec.Methodology)
	if err != nil {
		return hawl.Record{}, hawl.Progress{}, err
	}
	agg, err := t.wealth.AggregateForOwner(ctx, rec.OwnerID, rules)
	if err != nil {
		return hawl.Record{}, hawl.Progress{}, err
	}
	thr, err := t.thresholds.Compute(ctx, rec.Currency, rules.Basis())
	if err != nil {
		return hawl.Record{}, hawl.Progress{}, err
	}
	result, err := obligation.Calculate(agg, thr, rules, nil)
	if err != nil {
		return hawl.Record{}, hawl.Progress{}, err
	}

	previous := rec.Status
	now := t.now()

	next := rec.Status
	if next == hawl.StatusDraft {
		next = hawl.StatusActive
	}
	switch {
	case agg.NetWealth.LessThan(rec.ThresholdAtStart):
		next = hawl.StatusInterrupted
	case rec.CompleteAt(now, t.toleranceDays):
		next = hawl.StatusComplete
	}

	rec.Status = next
	rec.CurrentThreshold = thr.SelectedThreshold
	rec.TotalWealth = agg.TotalWealth
	rec.TotalLiabilities = agg.TotalLiabilities
	rec.ZakatableWealth = agg.ZakatableWealth
	rec.ObligationAmount = result.Amount

	rec, err = t.hawls.UpdateHawlRecord(ctx, rec, previous)
	if err != nil {
		return hawl.Record{}, hawl.Progress{}, err
	}
	if previous != next {
		metrics.RecordTransition(string(previous), string(next))
		t.log.WithField("hawl_record_id", rec.ID).
			WithField("from", string(previous)).
			WithField("to", string(next)).
			Info("hawl status changed")
	}

	return rec, rec.ProgressAt(now), nil
}

// Reevaluate is the explicit re-evaluation rule for interrupted records:
// when net wealth is back at or above the threshold captured at start, the
// record returns to ACTIVE without resetting its clock. A record whose
// owner has since opened a newer lifecycle record is superseded and stays
// interrupted, so each owner holds at most one open record.
func (t *Tracker) Reevaluate(ctx context.Context, recordID string) (hawl.Record, error) {
	rec, err := t.hawls.GetHawlRecord(ctx, recordID)
	if err != nil {
		return hawl.Record{}, err
	}
	if rec.Status != hawl.StatusInterrupted {
		return hawl.Record{}, core.NewStateTransitionError(string(rec.Status), string(hawl.StatusActive))
	}
	if open, err := t.hawls.GetOpenHawlRecord(ctx, rec.OwnerID); err == nil {
		if open.ID != rec.ID {
			return hawl.Record{}, fmt.Errorf("%w: record %s superseded by open record %s",
				core.ErrStateTransition, rec.ID, open.ID)
		}
	} else if !core.IsNotFound(err) {
		return hawl.Record{}, err
	}

	rules, err := methodology.ForName(rec.Methodology)
	if err != nil {
		return hawl.Record{}, err
	}
	agg, err := t.wealth.AggregateForOwner(ctx, rec.OwnerID, rules)
	if err != nil {
		return hawl.Record{}, err
	}
	if agg.NetWealth.LessThan(rec.ThresholdAtStart) {
		return rec, nil
	}

	rec.Status = hawl.StatusActive
	rec.TotalWealth = agg.TotalWealth
	rec.TotalLiabilities = agg.TotalLiabilities
	rec.ZakatableWealth = agg.ZakatableWealth
	rec, err = t.hawls.UpdateHawlRecord(ctx, rec, hawl.StatusInterrupted)
	if err != nil {
		return hawl.Record{}, err
	}
	metrics.RecordTransition(string(hawl.StatusInterrupted), string(hawl.StatusActive))
	return rec, nil
}

// Finalize freezes a record. Permitted from COMPLETE, from ACTIVE as an
// explicit early finalize, and from UNLOCKED as a re-finalize. The storage
// layer's status guard makes two simultaneous calls resolve to one success
// and one rejection.
func (t *Tracker) Finalize(ctx context.Context, recordID, actor string) (hawl.Record, error) {
	rec, err := t.hawls.GetHawlRecord(ctx, recordID)
	if err != nil {
		return hawl.Record{}, err
	}
	if rec.Status == hawl.StatusFinalized {
		return hawl.Record{}, core.NewStateTransitionError(string(hawl.StatusFinalized), string(hawl.StatusFinalized))
	}
	if !rec.Status.CanTransitionTo(hawl.StatusFinalized) {
		return hawl.Record{}, core.NewStateTransitionError(string(rec.Status), string(hawl.StatusFinalized))
	}

	before := rec
	previous := rec.Status
	now := t.now()
	rec.Status = hawl.StatusFinalized
	rec.FinalizedAt = &now

	rec, err = t.hawls.UpdateHawlRecord(ctx, rec, previous)
	if err != nil {
		return hawl.Record{}, err
	}
	metrics.RecordTransition(string(previous), string(hawl.StatusFinalized))

	if _, err := t.audit.Record(ctx, auditsvc.Event{
		HawlRecordID: rec.ID,
		OwnerID:      rec.OwnerID,
		Type:         auditDomain.EventFinalized,
		Before:       before,
		After:        rec,
		ActorContext: actor,
	}); err != nil {
		return hawl.Record{}, err
	}

	t.log.WithField("hawl_record_id", rec.ID).
		WithField("obligation", rec.ObligationAmount.String()).
		Info("hawl record finalized")
	return rec, nil
}

// Unlock reopens a finalized record for correction. The justification is
// mandatory, at least ten characters, and stored encrypted on the audit
// entry. Validation happens before any state change.
func (t *Tracker) Unlock(ctx context.Context, recordID, justification, actor string) (hawl.Record, error) {
	if len(justification) < auditsvc.MinJustificationLength {
		return hawl.Record{}, core.NewValidationError("justification",
			"unlock justification must be at least 10 characters")
	}

	rec, err := t.hawls.GetHawlRecord(ctx, recordID)
	if err != nil {
		return hawl.Record{}, err
	}
	if rec.Status != hawl.StatusFinalized {
		return hawl.Record{}, core.NewStateTransitionError(string(rec.Status), string(hawl.StatusUnlocked))
	}

	before := rec
	rec.Status = hawl.StatusUnlocked
	rec, err = t.hawls.UpdateHawlRecord(ctx, rec, hawl.StatusFinalized)
	if err != nil {
		return hawl.Record{}, err
	}
	metrics.RecordTransition(string(hawl.StatusFinalized), string(hawl.StatusUnlocked))

	if _, err := t.audit.Record(ctx, auditsvc.Event{
		HawlRecordID:  rec.ID,
		OwnerID:       rec.OwnerID,
		Type:          auditDomain.EventUnlocked,
		Before:        before,
		After:         rec,
		Justification: justification,
		ActorContext:  actor,
	}); err != nil {
		return hawl.Record{}, err
	}

	t.log.WithField("hawl_record_id", rec.ID).Warn("finalized hawl record unlocked")
	return rec, nil
}

// ApplyEdit mutates an unlocked record and records an EDITED audit event.
// Edits are only possible between unlock and re-finalize.
func (t *Tracker) ApplyEdit(ctx context.Context, recordID, actor string, mutate func(*hawl.Record) error) (hawl.Record, error) {
	rec, err := t.hawls.GetHawlRecord(ctx, recordID)
	if err != nil {
		return hawl.Record{}, err
	}
	if rec.Status != hawl.StatusUnlocked {
		return hawl.Record{}, core.NewStateTransitionError(string(rec.Status), "edited")
	}

	before := rec
	if err := mutate(&rec); err != nil {
		return hawl.Record{}, err
	}
	// Edits never change status or identity.
	rec.ID = before.ID
	rec.OwnerID = before.OwnerID
	rec.Status = hawl.StatusUnlocked

	rec, err = t.hawls.UpdateHawlRecord(ctx, rec, hawl.StatusUnlocked)
	if err != nil {
		return hawl.Record{}, err
	}

	if _, err := t.audit.Record(ctx, auditsvc.Event{
		HawlRecordID: rec.ID,
		OwnerID:      rec.OwnerID,
		Type:         auditDomain.EventEdited,
		Before:       before,
		After:        rec,
		ActorContext: actor,
	}); err != nil {
		return hawl.Record{}, err
	}
	return rec, nil
}

// DeleteDraft removes a DRAFT record for its owner. Finalized records are
// never physically deleted.
func (t *Tracker) DeleteDraft(ctx context.Context, recordID, ownerID string) error {
	rec, err := t.hawls.GetHawlRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		return core.NewNotFoundError("hawl record", recordID)
	}
	if rec.Status != hawl.StatusDraft {
		return core.NewStateTransitionError(string(rec.Status), "deleted")
	}
	return t.hawls.DeleteHawlRecord(ctx, recordID)
}

// Snapshot decrypts a record's stored asset snapshot.
func (t *Tracker) Snapshot(rec hawl.Record) (wealth.Aggregation, error) {
	var snap assetSnapshot
	if err := t.box.DecryptJSON(rec.AssetSnapshot, &snap); err != nil {
		return wealth.Aggregation{}, err
	}
	return snap.Aggregation, nil
}
