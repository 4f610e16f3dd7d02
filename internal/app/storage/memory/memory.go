// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/asset"
	"github.com/zakatwise/zakat-engine/internal/app/domain/audit"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/payment"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
)

// Store is an in-memory implementation of all storage interfaces.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	assets      map[string]asset.Record
	liabilities map[string]asset.Liability
	hawls       map[string]hawl.Record
	audits      map[string]audit.Entry
	auditOrder  []string
	payments    map[string]payment.Record
	payOrder    []string
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.HawlStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		assets:      make(map[string]asset.Record),
		liabilities: make(map[string]asset.Liability),
		hawls:       make(map[string]hawl.Record),
		audits:      make(map[string]audit.Entry),
		payments:    make(map[string]payment.Record),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// AssetStore implementation -------------------------------------------------

func (s *Store) CreateAsset(_ context.Context, rec asset.Record) (asset.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.assets[rec.ID]; exists {
		return asset.Record{}, fmt.Errorf("asset %s already exists", rec.ID)
	}
	if rec.CalculationModifier.IsZero() {
		// Default per the record contract; explicit zeroes go through
		// UpdateAsset.
		rec.CalculationModifier = decimal.NewFromInt(1)
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.assets[rec.ID] = rec
	return rec, nil
}

func (s *Store) UpdateAsset(_ context.Context, rec asset.Record) (asset.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.assets[rec.ID]
	if !ok {
		return asset.Record{}, core.NewNotFoundError("asset", rec.ID)
	}
	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	s.assets[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.assets[id]
	if !ok {
		return asset.Record{}, core.NewNotFoundError("asset", id)
	}
	return rec, nil
}

func (s *Store) ListAssetsByOwner(_ context.Context, ownerID string, activeOnly bool) ([]asset.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []asset.Record
	for _, rec := range s.assets {
		if rec.OwnerID != ownerID {
			continue
		}
		if activeOnly && !rec.Active {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeactivateAsset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.assets[id]
	if !ok {
		return core.NewNotFoundError("asset", id)
	}
	rec.Active = false
	rec.UpdatedAt = time.Now().UTC()
	s.assets[id] = rec
	return nil
}

func (s *Store) ListAssetOwners(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var owners []string
	for _, rec := range s.assets {
		if !rec.Active {
			continue
		}
		if _, ok := seen[rec.OwnerID]; ok {
			continue
		}
		seen[rec.OwnerID] = struct{}{}
		owners = append(owners, rec.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *Store) CreateLiability(_ context.Context, l asset.Liability) (asset.Liability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = s.nextIDLocked()
	} else if _, exists := s.liabilities[l.ID]; exists {
		return asset.Liability{}, fmt.Errorf("liability %s already exists", l.ID)
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	s.liabilities[l.ID] = l
	return l, nil
}

func (s *Store) UpdateLiability(_ context.Context, l asset.Liability) (asset.Liability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.liabilities[l.ID]
	if !ok {
		return asset.Liability{}, core.NewNotFoundError("liability", l.ID)
	}
	l.CreatedAt = original.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	s.liabilities[l.ID] = l
	return l, nil
}

func (s *Store) ListLiabilitiesByOwner(_ context.Context, ownerID string, activeOnly bool) ([]asset.Liability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []asset.Liability
	for _, l := range s.liabilities {
		if l.OwnerID != ownerID {
			continue
		}
		if activeOnly && !l.Active {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeactivateLiability(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.liabilities[id]
	if !ok {
		return core.NewNotFoundError("liability", id)
	}
	l.Active = false
	l.UpdatedAt = time.Now().UTC()
	s.liabilities[id] = l
	return nil
}

// RotateAmounts is a no-op: this store holds amounts as plaintext decimals.
func (s *Store) RotateAmounts(_ context.Context) (storage.AmountRotation, error) {
	return storage.AmountRotation{}, nil
}

// HawlStore implementation --------------------------------------------------

func (s *Store) CreateHawlRecord(_ context.Context, rec hawl.Record) (hawl.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.hawls[rec.ID]; exists {
		return hawl.Record{}, fmt.Errorf("hawl record %s already exists", rec.ID)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.hawls[rec.ID] = rec
	return rec, nil
}

func (s *Store) UpdateHawlRecord(_ context.Context, rec hawl.Record, expect hawl.Status) (hawl.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.hawls[rec.ID]
	if !ok {
		return hawl.Record{}, core.NewNotFoundError("hawl record", rec.ID)
	}
	if original.Status != expect {
		return hawl.Record{}, fmt.Errorf("%w: hawl record %s is %s, expected %s",
			core.ErrStateTransition, rec.ID, original.Status, expect)
	}
	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	s.hawls[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetHawlRecord(_ context.Context, id string) (hawl.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.hawls[id]
	if !ok {
		return hawl.Record{}, core.NewNotFoundError("hawl record", id)
	}
	return rec, nil
}

func (s *Store) GetOpenHawlRecord(_ context.Context, ownerID string) (hawl.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.hawls {
		if rec.OwnerID == ownerID && rec.Status.Open() {
			return rec, nil
		}
	}
	return hawl.Record{}, core.NewNotFoundError("open hawl record for owner", ownerID)
}

func (s *Store) ListHawlRecords(_ context.Context, ownerID string, statuses []hawl.Status) ([]hawl.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := func(st hawl.Status) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if st == want {
				return true
			}
		}
		return false
	}

	var out []hawl.Record
	for _, rec := range s.hawls {
		if rec.OwnerID == ownerID && match(rec.Status) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) ListAllHawlRecords(_ context.Context) ([]hawl.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]hawl.Record, 0, len(s.hawls))
	for _, rec := range s.hawls {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteHawlRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.hawls[id]
	if !ok {
		return core.NewNotFoundError("hawl record", id)
	}
	if rec.Status != hawl.StatusDraft {
		return fmt.Errorf("%w: cannot delete hawl record in status %s", core.ErrStateTransition, rec.Status)
	}
	delete(s.hawls, id)
	return nil
}

// AuditStore implementation -------------------------------------------------

func (s *Store) AppendAuditEntry(_ context.Context, e audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.nextIDLocked()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.audits[e.ID] = e
	s.auditOrder = append(s.auditOrder, e.ID)
	return e, nil
}

func (s *Store) ListAuditEntries(_ context.Context, hawlRecordID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for i := len(s.auditOrder) - 1; i >= 0; i-- {
		e := s.audits[s.auditOrder[i]]
		if e.HawlRecordID == hawlRecordID {
			out = append(out, e)
		}
	}
	// Newest first; reverse insertion order breaks timestamp ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListAllAuditEntries(_ context.Context) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Entry, 0, len(s.auditOrder))
	for _, id := range s.auditOrder {
		out = append(out, s.audits[id])
	}
	return out, nil
}

func (s *Store) RewriteAuditEntry(_ context.Context, e audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.audits[e.ID]
	if !ok {
		return audit.Entry{}, core.NewNotFoundError("audit entry", e.ID)
	}
	e.CreatedAt = original.CreatedAt
	s.audits[e.ID] = e
	return e, nil
}

// PaymentStore implementation -----------------------------------------------

func (s *Store) CreatePayment(_ context.Context, p payment.Record) (payment.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.payments[p.ID]; exists {
		return payment.Record{}, fmt.Errorf("payment %s already exists", p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.payments[p.ID] = p
	s.payOrder = append(s.payOrder, p.ID)
	return p, nil
}

func (s *Store) UpdatePayment(_ context.Context, p payment.Record) (payment.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.payments[p.ID]
	if !ok {
		return payment.Record{}, core.NewNotFoundError("payment", p.ID)
	}
	p.CreatedAt = original.CreatedAt
	s.payments[p.ID] = p
	return p, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (payment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return payment.Record{}, core.NewNotFoundError("payment", id)
	}
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, hawlRecordID string) ([]payment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []payment.Record
	for _, id := range s.payOrder {
		p := s.payments[id]
		if p.HawlRecordID == hawlRecordID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListAllPayments(_ context.Context) ([]payment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]payment.Record, 0, len(s.payOrder))
	for _, id := range s.payOrder {
		out = append(out, s.payments[id])
	}
	return out, nil
}
