// Package audit records the append-only trail of lifecycle events with
// encrypted state payloads.
package audit

import (
	"context"
	"strings"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	auditDomain "github.com/zakatwise/zakat-engine/internal/app/domain/audit"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// MinJustificationLength is the minimum accepted unlock justification.
const MinJustificationLength = 10

// Event describes one audit event to record. Before and After are arbitrary
// state snapshots encrypted before storage; Justification is plaintext here
// and only ever persisted encrypted.
type Event struct {
	HawlRecordID  string
	OwnerID       string
	Type          auditDomain.EventType
	Before        interface{}
	After         interface{}
	Justification string
	ActorContext  string
}

// Service appends and lists audit entries. There is no update or delete
// operation in this contract.
type Service struct {
	store storage.AuditStore
	box   *cryptobox.Box
	log   *logger.Logger
}

// New constructs an audit service.
func New(store storage.AuditStore, box *cryptobox.Box, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	return &Service{store: store, box: box, log: log}
}

// Record validates, encrypts and appends one event.
func (s *Service) Record(ctx context.Context, ev Event) (auditDomain.Entry, error) {
	if ev.HawlRecordID == "" {
		return auditDomain.Entry{}, core.RequiredError("hawlRecordID")
	}
	if ev.OwnerID == "" {
		return auditDomain.Entry{}, core.RequiredError("ownerID")
	}
	if !ev.Type.Valid() {
		return auditDomain.Entry{}, core.NewValidationError("eventType", "unknown event type "+string(ev.Type))
	}

	justification := strings.TrimSpace(ev.Justification)
	if ev.Type == auditDomain.EventUnlocked && len(justification) < MinJustificationLength {
		return auditDomain.Entry{}, core.NewValidationError("justification",
			"unlock justification must be at least 10 characters")
	}

	entry := auditDomain.Entry{
		HawlRecordID: ev.HawlRecordID,
		OwnerID:      ev.OwnerID,
		EventType:    ev.Type,
		ActorContext: ev.ActorContext,
	}

	var err error
	if ev.Before != nil {
		if entry.BeforeState, err = s.box.EncryptJSON(ev.Before); err != nil {
			return auditDomain.Entry{}, err
		}
	}
	if ev.After != nil {
		if entry.AfterState, err = s.box.EncryptJSON(ev.After); err != nil {
			return auditDomain.Entry{}, err
		}
	}
	if justification != "" {
		if entry.Justification, err = s.box.Encrypt(justification); err != nil {
			return auditDomain.Entry{}, err
		}
	}

	entry, err = s.store.AppendAuditEntry(ctx, entry)
	if err != nil {
		return auditDomain.Entry{}, err
	}
	s.log.WithField("hawl_record_id", entry.HawlRecordID).
		WithField("event", string(entry.EventType)).
		Info("audit entry recorded")
	return entry, nil
}

// List returns a record's audit entries, newest first.
func (s *Service) List(ctx context.Context, hawlRecordID string) ([]auditDomain.Entry, error) {
	if hawlRecordID == "" {
		return nil, core.RequiredError("hawlRecordID")
	}
	return s.store.ListAuditEntries(ctx, hawlRecordID)
}

// Justification decrypts the justification of an entry, when present.
func (s *Service) Justification(entry auditDomain.Entry) (string, error) {
	if entry.Justification == "" {
		return "", nil
	}
	plaintext, _, err := s.box.DecryptWithFallback(entry.Justification)
	return plaintext, err
}
