// Package rotation migrates stored ciphertext to the current encryption
// key. Records already readable with the current key are left untouched,
// so repeated runs are safe.
package rotation

import (
	"context"
	"fmt"

	"github.com/zakatwise/zakat-engine/internal/app/domain/audit"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/payment"
	"github.com/zakatwise/zakat-engine/internal/app/metrics"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Report summarizes one rotation pass.
type Report struct {
	Scanned  int
	Migrated int
	Skipped  int
	Failed   int
	Failures []Failure
}

// Failure names a record that could not be migrated.
type Failure struct {
	Kind string
	ID   string
	Err  error
}

// Service re-encrypts every stored encrypted field under the key ring's
// current key.
type Service struct {
	hawls    storage.HawlStore
	audits   storage.AuditStore
	payments storage.PaymentStore
	assets   storage.AssetStore
	box      *cryptobox.Box
	log      *logger.Logger
}

func New(hawls storage.HawlStore, audits storage.AuditStore, payments storage.PaymentStore,
	assets storage.AssetStore, box *cryptobox.Box, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rotation")
	}
	return &Service{hawls: hawls, audits: audits, payments: payments, assets: assets, box: box, log: log}
}

// RotateAll walks lifecycle records, audit entries, payments and the sealed
// asset and liability amount columns in turn. Individual failures are
// recorded and the pass continues; the error return covers only listing
// failures that abort a whole sweep.
func (s *Service) RotateAll(ctx context.Context) (Report, error) {
	var rep Report

	records, err := s.hawls.ListAllHawlRecords(ctx)
	if err != nil {
		return rep, fmt.Errorf("list hawl records: %w", err)
	}
	for _, rec := range records {
		s.rotateHawlRecord(ctx, rec, &rep)
	}

	entries, err := s.audits.ListAllAuditEntries(ctx)
	if err != nil {
		return rep, fmt.Errorf("list audit entries: %w", err)
	}
	for _, e := range entries {
		s.rotateAuditEntry(ctx, e, &rep)
	}

	pays, err := s.payments.ListAllPayments(ctx)
	if err != nil {
		return rep, fmt.Errorf("list payments: %w", err)
	}
	for _, p := range pays {
		s.rotatePayment(ctx, p, &rep)
	}

	amounts, err := s.assets.RotateAmounts(ctx)
	if err != nil {
		return rep, fmt.Errorf("rotate sealed amounts: %w", err)
	}
	rep.Scanned += amounts.Migrated + amounts.Skipped + len(amounts.Failures)
	rep.Migrated += amounts.Migrated
	rep.Skipped += amounts.Skipped
	metrics.RecordRotationCount("migrated", amounts.Migrated)
	metrics.RecordRotationCount("skipped", amounts.Skipped)
	for _, f := range amounts.Failures {
		s.fail(&rep, f.Kind, f.ID, f.Err)
	}

	s.log.WithFields(map[string]interface{}{
		"scanned":  rep.Scanned,
		"migrated": rep.Migrated,
		"skipped":  rep.Skipped,
		"failed":   rep.Failed,
		"key":      s.box.CurrentVersion(),
	}).Info("key rotation pass complete")
	return rep, nil
}

func (s *Service) rotateHawlRecord(ctx context.Context, rec hawl.Record, rep *Report) {
	rep.Scanned++

	snapshot, details := rec.AssetSnapshot, rec.CalculationDetails
	var snapChanged, detChanged bool
	var err error
	if snapshot != "" {
		snapshot, snapChanged, err = s.box.ReencryptToCurrent(snapshot)
		if err != nil {
			s.fail(rep, "hawl_record", rec.ID, err)
			return
		}
	}
	if details != "" {
		details, detChanged, err = s.box.ReencryptToCurrent(details)
		if err != nil {
			s.fail(rep, "hawl_record", rec.ID, err)
			return
		}
	}
	if !snapChanged && !detChanged {
		rep.Skipped++
		metrics.RecordRotation("skipped")
		return
	}

	rec.AssetSnapshot = snapshot
	rec.CalculationDetails = details
	if _, err := s.hawls.UpdateHawlRecord(ctx, rec, rec.Status); err != nil {
		s.fail(rep, "hawl_record", rec.ID, err)
		return
	}
	rep.Migrated++
	metrics.RecordRotation("migrated")
}

func (s *Service) rotateAuditEntry(ctx context.Context, e audit.Entry, rep *Report) {
	rep.Scanned++

	changed := false
	fields := []*cryptobox.EncryptedField{&e.BeforeState, &e.AfterState, &e.Justification}
	for _, f := range fields {
		if *f == "" {
			continue
		}
		fresh, c, err := s.box.ReencryptToCurrent(*f)
		if err != nil {
			s.fail(rep, "audit_entry", e.ID, err)
			return
		}
		*f = fresh
		changed = changed || c
	}
	if !changed {
		rep.Skipped++
		metrics.RecordRotation("skipped")
		return
	}

	if _, err := s.audits.RewriteAuditEntry(ctx, e); err != nil {
		s.fail(rep, "audit_entry", e.ID, err)
		return
	}
	rep.Migrated++
	metrics.RecordRotation("migrated")
}

func (s *Service) rotatePayment(ctx context.Context, p payment.Record, rep *Report) {
	rep.Scanned++

	changed := false
	fields := []*cryptobox.EncryptedField{&p.RecipientName, &p.Notes}
	for _, f := range fields {
		if *f == "" {
			continue
		}
		fresh, c, err := s.box.ReencryptToCurrent(*f)
		if err != nil {
			s.fail(rep, "payment", p.ID, err)
			return
		}
		*f = fresh
		changed = changed || c
	}
	if !changed {
		rep.Skipped++
		metrics.RecordRotation("skipped")
		return
	}

	if _, err := s.payments.UpdatePayment(ctx, p); err != nil {
		s.fail(rep, "payment", p.ID, err)
		return
	}
	rep.Migrated++
	metrics.RecordRotation("migrated")
}

func (s *Service) fail(rep *Report, kind, id string, err error) {
	rep.Failed++
	rep.Failures = append(rep.Failures, Failure{Kind: kind, ID: id, Err: err})
	metrics.RecordRotation("failed")
	s.log.WithError(err).WithField(kind+"_id", id).Warn("rotation failed for record")
}
