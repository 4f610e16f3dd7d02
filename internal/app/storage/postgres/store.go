// Package postgres implements the storage interfaces backed by PostgreSQL.
// Monetary columns and free-text fields are encrypted at rest; the store
// decrypts them on read using the key ring's fallback chain so rows written
// under a previous key stay readable.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/asset"
	"github.com/zakatwise/zakat-engine/internal/app/domain/audit"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
	"github.com/zakatwise/zakat-engine/internal/app/domain/payment"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/internal/cryptobox"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db  *sql.DB
	box *cryptobox.Box
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.HawlStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// New creates a Store using the provided database handle and field cipher.
func New(db *sql.DB, box *cryptobox.Box) *Store {
	return &Store{db: db, box: box}
}

func (s *Store) sealAmount(d decimal.Decimal) (string, error) {
	field, err := s.box.Encrypt(d.String())
	return string(field), err
}

func (s *Store) openAmount(raw string) (decimal.Decimal, error) {
	plaintext, _, err := s.box.DecryptWithFallback(cryptobox.EncryptedField(raw))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(plaintext)
}

// --- AssetStore -------------------------------------------------------------

func (s *Store) CreateAsset(ctx context.Context, rec asset.Record) (asset.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CalculationModifier.IsZero() {
		rec.CalculationModifier = decimal.NewFromInt(1)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	value, err := s.sealAmount(rec.Value)
	if err != nil {
		return asset.Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (id, owner_id, category, value, currency, calculation_modifier, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.OwnerID, string(rec.Category), value, rec.Currency,
		rec.CalculationModifier.String(), rec.Active, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return asset.Record{}, err
	}
	return rec, nil
}

func (s *Store) UpdateAsset(ctx context.Context, rec asset.Record) (asset.Record, error) {
	existing, err := s.GetAsset(ctx, rec.ID)
	if err != nil {
		return asset.Record{}, err
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	value, err := s.sealAmount(rec.Value)
	if err != nil {
		return asset.Record{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET category = $2, value = $3, currency = $4, calculation_modifier = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, rec.ID, string(rec.Category), value, rec.Currency,
		rec.CalculationModifier.String(), rec.Active, rec.UpdatedAt)
	if err != nil {
		return asset.Record{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return asset.Record{}, core.NewNotFoundError("asset", rec.ID)
	}
	return rec, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, category, value, currency, calculation_modifier, active, created_at, updated_at
		FROM assets WHERE id = $1
	`, id)
	rec, err := s.scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Record{}, core.NewNotFoundError("asset", id)
	}
	return rec, err
}

func (s *Store) ListAssetsByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]asset.Record, error) {
	query := `
		SELECT id, owner_id, category, value, currency, calculation_modifier, active, created_at, updated_at
		FROM assets WHERE owner_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []asset.Record
	for rows.Next() {
		rec, err := s.scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateAsset(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets SET active = FALSE, updated_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return core.NewNotFoundError("asset", id)
	}
	return nil
}

func (s *Store) ListAssetOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id FROM assets WHERE active ORDER BY owner_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanAsset(row rowScanner) (asset.Record, error) {
	var rec asset.Record
	var category, value, modifier string
	if err := row.Scan(&rec.ID, &rec.OwnerID, &category, &value, &rec.Currency,
		&modifier, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return asset.Record{}, err
	}
	rec.Category = asset.Category(category)

	var err error
	if rec.Value, err = s.openAmount(value); err != nil {
		return asset.Record{}, fmt.Errorf("asset %s value: %w", rec.ID, err)
	}
	if rec.CalculationModifier, err = decimal.NewFromString(modifier); err != nil {
		return asset.Record{}, fmt.Errorf("asset %s modifier: %w", rec.ID, err)
	}
	return rec, nil
}

func (s *Store) CreateLiability(ctx context.Context, l asset.Liability) (asset.Liability, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	amount, err := s.sealAmount(l.Amount)
	if err != nil {
		return asset.Liability{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO liabilities (id, owner_id, type, amount, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.ID, l.OwnerID, string(l.Type), amount, l.Active, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return asset.Liability{}, err
	}
	return l, nil
}

func (s *Store) UpdateLiability(ctx context.Context, l asset.Liability) (asset.Liability, error) {
	l.UpdatedAt = time.Now().UTC()
	amount, err := s.sealAmount(l.Amount)
	if err != nil {
		return asset.Liability{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE liabilities SET type = $2, amount = $3, active = $4, updated_at = $5 WHERE id = $1
	`, l.ID, string(l.Type), amount, l.Active, l.UpdatedAt)
	if err != nil {
		return asset.Liability{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return asset.Liability{}, core.NewNotFoundError("liability", l.ID)
	}
	return l, nil
}

func (s *Store) ListLiabilitiesByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]asset.Liability, error) {
	query := `
		SELECT id, owner_id, type, amount, active, created_at, updated_at
		FROM liabilities WHERE owner_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []asset.Liability
	for rows.Next() {
		var l asset.Liability
		var typ, amount string
		if err := rows.Scan(&l.ID, &l.OwnerID, &typ, &amount, &l.Active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Type = asset.LiabilityType(typ)
		if l.Amount, err = s.openAmount(amount); err != nil {
			return nil, fmt.Errorf("liability %s amount: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateLiability(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE liabilities SET active = FALSE, updated_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return core.NewNotFoundError("liability", id)
	}
	return nil
}

// RotateAmounts re-seals asset values and liability amounts still encrypted
// under a previous key. Rows already under the current key are skipped, so
// repeated passes are safe.
func (s *Store) RotateAmounts(ctx context.Context) (storage.AmountRotation, error) {
	var res storage.AmountRotation
	if err := s.rotateAmountColumn(ctx, "asset", "SELECT id, value FROM assets",
		"UPDATE assets SET value = $2 WHERE id = $1", &res); err != nil {
		return res, err
	}
	if err := s.rotateAmountColumn(ctx, "liability", "SELECT id, amount FROM liabilities",
		"UPDATE liabilities SET amount = $2 WHERE id = $1", &res); err != nil {
		return res, err
	}
	return res, nil
}

type sealedRow struct {
	id     string
	sealed string
}

func (s *Store) rotateAmountColumn(ctx context.Context, kind, selectQuery, updateQuery string,
	res *storage.AmountRotation) error {
	rows, err := s.db.QueryContext(ctx, selectQuery)
	if err != nil {
		return fmt.Errorf("list %s amounts: %w", kind, err)
	}
	defer rows.Close()

	var pending []sealedRow
	for rows.Next() {
		var r sealedRow
		if err := rows.Scan(&r.id, &r.sealed); err != nil {
			return err
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range pending {
		fresh, changed, err := s.box.ReencryptToCurrent(cryptobox.EncryptedField(r.sealed))
		if err != nil {
			res.Failures = append(res.Failures, storage.AmountRotationFailure{Kind: kind, ID: r.id, Err: err})
			continue
		}
		if !changed {
			res.Skipped++
			continue
		}
		if _, err := s.db.ExecContext(ctx, updateQuery, r.id, string(fresh)); err != nil {
			res.Failures = append(res.Failures, storage.AmountRotationFailure{Kind: kind, ID: r.id, Err: err})
			continue
		}
		res.Migrated++
	}
	return nil
}

// --- HawlStore --------------------------------------------------------------

const hawlColumns = `id, owner_id, status, basis, methodology, currency,
	threshold_at_start, current_threshold, start_date, completion_date,
	start_date_hijri, completion_date_hijri,
	total_wealth, total_liabilities, zakatable_wealth, obligation_amount,
	asset_snapshot, calculation_details, finalized_at, created_at, updated_at`

func (s *Store) CreateHawlRecord(ctx context.Context, rec hawl.Record) (hawl.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	cols, err := s.sealHawlAmounts(rec)
	if err != nil {
		return hawl.Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hawl_records (`+hawlColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, rec.ID, rec.OwnerID, string(rec.Status), string(rec.Basis), string(rec.Methodology), rec.Currency,
		cols.thresholdAtStart, cols.currentThreshold, rec.StartDate, rec.CompletionDate,
		rec.StartDateHijri, rec.CompletionDateHijri,
		cols.totalWealth, cols.totalLiabilities, cols.zakatableWealth, cols.obligationAmount,
		string(rec.AssetSnapshot), string(rec.CalculationDetails), rec.FinalizedAt, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return hawl.Record{}, err
	}
	return rec, nil
}

// UpdateHawlRecord commits only when the stored status still matches
// expect. A row that exists but no longer carries the expected status is a
// lost transition race and reported as a state transition conflict.
func (s *Store) UpdateHawlRecord(ctx context.Context, rec hawl.Record, expect hawl.Status) (hawl.Record, error) {
	rec.UpdatedAt = time.Now().UTC()
	cols, err := s.sealHawlAmounts(rec)
	if err != nil {
		return hawl.Record{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE hawl_records
		SET status = $3, basis = $4, methodology = $5, currency = $6,
			threshold_at_start = $7, current_threshold = $8,
			start_date = $9, completion_date = $10,
			start_date_hijri = $11, completion_date_hijri = $12,
			total_wealth = $13, total_liabilities = $14, zakatable_wealth = $15, obligation_amount = $16,
			asset_snapshot = $17, calculation_details = $18, finalized_at = $19, updated_at = $20
		WHERE id = $1 AND status = $2
	`, rec.ID, string(expect), string(rec.Status), string(rec.Basis), string(rec.Methodology), rec.Currency,
		cols.thresholdAtStart, cols.currentThreshold, rec.StartDate, rec.CompletionDate,
		rec.StartDateHijri, rec.CompletionDateHijri,
		cols.totalWealth, cols.totalLiabilities, cols.zakatableWealth, cols.obligationAmount,
		string(rec.AssetSnapshot), string(rec.CalculationDetails), rec.FinalizedAt, rec.UpdatedAt)
	if err != nil {
		return hawl.Record{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		current, err := s.GetHawlRecord(ctx, rec.ID)
		if err != nil {
			return hawl.Record{}, err
		}
		return hawl.Record{}, fmt.Errorf("%w: hawl record %s is %s, expected %s",
			core.ErrStateTransition, rec.ID, current.Status, expect)
	}
	return rec, nil
}

func (s *Store) GetHawlRecord(ctx context.Context, id string) (hawl.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+hawlColumns+` FROM hawl_records WHERE id = $1
	`, id)
	rec, err := s.scanHawlRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hawl.Record{}, core.NewNotFoundError("hawl record", id)
	}
	return rec, err
}

func (s *Store) GetOpenHawlRecord(ctx context.Context, ownerID string) (hawl.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+hawlColumns+` FROM hawl_records
		WHERE owner_id = $1 AND status IN ('DRAFT', 'ACTIVE', 'COMPLETE', 'UNLOCKED')
		ORDER BY created_at DESC LIMIT 1
	`, ownerID)
	rec, err := s.scanHawlRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hawl.Record{}, core.NewNotFoundError("open hawl record", ownerID)
	}
	return rec, err
}

func (s *Store) ListHawlRecords(ctx context.Context, ownerID string, statuses []hawl.Status) ([]hawl.Record, error) {
	query := `SELECT ` + hawlColumns + ` FROM hawl_records WHERE owner_id = $1`
	args := []interface{}{ownerID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY created_at, id`
	return s.queryHawlRecords(ctx, query, args...)
}

func (s *Store) ListAllHawlRecords(ctx context.Context) ([]hawl.Record, error) {
	return s.queryHawlRecords(ctx, `SELECT `+hawlColumns+` FROM hawl_records ORDER BY created_at, id`)
}

func (s *Store) DeleteHawlRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM hawl_records WHERE id = $1 AND status = 'DRAFT'
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		rec, err := s.GetHawlRecord(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: hawl record %s is %s, expected DRAFT",
			core.ErrStateTransition, id, rec.Status)
	}
	return nil
}

func (s *Store) queryHawlRecords(ctx context.Context, query string, args ...interface{}) ([]hawl.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hawl.Record
	for rows.Next() {
		rec, err := s.scanHawlRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type hawlAmountColumns struct {
	thresholdAtStart string
	currentThreshold string
	totalWealth      string
	totalLiabilities string
	zakatableWealth  string
	obligationAmount string
}

func (s *Store) sealHawlAmounts(rec hawl.Record) (hawlAmountColumns, error) {
	var cols hawlAmountColumns
	var err error
	if cols.thresholdAtStart, err = s.sealAmount(rec.ThresholdAtStart); err != nil {
		return cols, err
	}
	if cols.currentThreshold, err = s.sealAmount(rec.CurrentThreshold); err != nil {
		return cols, err
	}
	if cols.totalWealth, err = s.sealAmount(rec.TotalWealth); err != nil {
		return cols, err
	}
	if cols.totalLiabilities, err = s.sealAmount(rec.TotalLiabilities); err != nil {
		return cols, err
	}
	if cols.zakatableWealth, err = s.sealAmount(rec.ZakatableWealth); err != nil {
		return cols, err
	}
	if cols.obligationAmount, err = s.sealAmount(rec.ObligationAmount); err != nil {
		return cols, err
	}
	return cols, nil
}

func (s *Store) scanHawlRecord(row rowScanner) (hawl.Record, error) {
	var rec hawl.Record
	var status, basis, method string
	var cols hawlAmountColumns
	var snapshot, details string
	var finalizedAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.OwnerID, &status, &basis, &method, &rec.Currency,
		&cols.thresholdAtStart, &cols.currentThreshold, &rec.StartDate, &rec.CompletionDate,
		&rec.StartDateHijri, &rec.CompletionDateHijri,
		&cols.totalWealth, &cols.totalLiabilities, &cols.zakatableWealth, &cols.obligationAmount,
		&snapshot, &details, &finalizedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return hawl.Record{}, err
	}
	rec.Status = hawl.Status(status)
	rec.Basis = nisab.Basis(basis)
	rec.Methodology = methodology.Name(method)
	rec.AssetSnapshot = cryptobox.EncryptedField(snapshot)
	rec.CalculationDetails = cryptobox.EncryptedField(details)
	if finalizedAt.Valid {
		t := finalizedAt.Time
		rec.FinalizedAt = &t
	}

	var err error
	if rec.ThresholdAtStart, err = s.openAmount(cols.thresholdAtStart); err != nil {
		return hawl.Record{}, fmt.Errorf("hawl record %s threshold_at_start: %w", rec.ID, err)
	}
	if rec.CurrentThreshold, err = s.openAmount(cols.currentThreshold); err != nil {
		return hawl.Record{}, fmt.Errorf("hawl record %s current_threshold: %w", rec.ID, err)
	}
	if rec.TotalWealth, err = s.openAmount(cols.totalWealth); err != nil {
		return hawl.Record{}, fmt.Errorf("hawl record %s total_wealth: %w", rec.ID, err)
	}
	if rec.TotalLiabilities, err = s.openAmount(cols.totalLiabilities); err != nil {
		return hawl.Record{}, fmt.Errorf("hawl record %s total_liabilities: %w", rec.ID, err)
	}
	if rec.ZakatableWealth, err = s.openAmount(cols.zakatableWealth); err != nil {
		return hawl.Record{}, fmt.Errorf("hawl record %s zakatable_wealth: %w", rec.ID, err)
	}
	if rec.ObligationAmount, err = s.openAmount(cols.obligationAmount); err != nil {
		return hawl.Record{}, fmt.Errorf("hawl record %s obligation_amount: %w", rec.ID, err)
	}
	return rec, nil
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) AppendAuditEntry(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, hawl_record_id, owner_id, event_type, before_state, after_state, justification, actor_context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.HawlRecordID, e.OwnerID, string(e.EventType),
		string(e.BeforeState), string(e.AfterState), string(e.Justification), e.ActorContext, e.CreatedAt)
	if err != nil {
		return audit.Entry{}, err
	}
	return e, nil
}

func (s *Store) ListAuditEntries(ctx context.Context, hawlRecordID string) ([]audit.Entry, error) {
	return s.queryAuditEntries(ctx, `
		SELECT id, hawl_record_id, owner_id, event_type, before_state, after_state, justification, actor_context, created_at
		FROM audit_entries WHERE hawl_record_id = $1 ORDER BY created_at DESC, id DESC
	`, hawlRecordID)
}

func (s *Store) ListAllAuditEntries(ctx context.Context) ([]audit.Entry, error) {
	return s.queryAuditEntries(ctx, `
		SELECT id, hawl_record_id, owner_id, event_type, before_state, after_state, justification, actor_context, created_at
		FROM audit_entries ORDER BY created_at, id
	`)
}

// RewriteAuditEntry replaces the ciphertext of an existing entry in place.
// It exists only for key rotation; everything but the encrypted payloads is
// left untouched.
func (s *Store) RewriteAuditEntry(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE audit_entries
		SET before_state = $2, after_state = $3, justification = $4
		WHERE id = $1
	`, e.ID, string(e.BeforeState), string(e.AfterState), string(e.Justification))
	if err != nil {
		return audit.Entry{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return audit.Entry{}, core.NewNotFoundError("audit entry", e.ID)
	}
	return e, nil
}

func (s *Store) queryAuditEntries(ctx context.Context, query string, args ...interface{}) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var eventType, before, after, justification string
		if err := rows.Scan(&e.ID, &e.HawlRecordID, &e.OwnerID, &eventType,
			&before, &after, &justification, &e.ActorContext, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventType = audit.EventType(eventType)
		e.BeforeState = cryptobox.EncryptedField(before)
		e.AfterState = cryptobox.EncryptedField(after)
		e.Justification = cryptobox.EncryptedField(justification)
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- PaymentStore -----------------------------------------------------------

func (s *Store) CreatePayment(ctx context.Context, p payment.Record) (payment.Record, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()

	amount, err := s.sealAmount(p.Amount)
	if err != nil {
		return payment.Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (id, hawl_record_id, owner_id, amount, recipient_name, recipient_category, payment_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.HawlRecordID, p.OwnerID, amount, string(p.RecipientName),
		string(p.RecipientCategory), p.PaymentDate, string(p.Notes), p.CreatedAt)
	if err != nil {
		return payment.Record{}, err
	}
	return p, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p payment.Record) (payment.Record, error) {
	amount, err := s.sealAmount(p.Amount)
	if err != nil {
		return payment.Record{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET amount = $2, recipient_name = $3, recipient_category = $4, payment_date = $5, notes = $6
		WHERE id = $1
	`, p.ID, amount, string(p.RecipientName), string(p.RecipientCategory), p.PaymentDate, string(p.Notes))
	if err != nil {
		return payment.Record{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return payment.Record{}, core.NewNotFoundError("payment", p.ID)
	}
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (payment.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, hawl_record_id, owner_id, amount, recipient_name, recipient_category, payment_date, notes, created_at
		FROM payments WHERE id = $1
	`, id)
	p, err := s.scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payment.Record{}, core.NewNotFoundError("payment", id)
	}
	return p, err
}

func (s *Store) ListPayments(ctx context.Context, hawlRecordID string) ([]payment.Record, error) {
	return s.queryPayments(ctx, `
		SELECT id, hawl_record_id, owner_id, amount, recipient_name, recipient_category, payment_date, notes, created_at
		FROM payments WHERE hawl_record_id = $1 ORDER BY payment_date, id
	`, hawlRecordID)
}

func (s *Store) ListAllPayments(ctx context.Context) ([]payment.Record, error) {
	return s.queryPayments(ctx, `
		SELECT id, hawl_record_id, owner_id, amount, recipient_name, recipient_category, payment_date, notes, created_at
		FROM payments ORDER BY created_at, id
	`)
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...interface{}) ([]payment.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payment.Record
	for rows.Next() {
		p, err := s.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) scanPayment(row rowScanner) (payment.Record, error) {
	var p payment.Record
	var amount, name, category, notes string
	if err := row.Scan(&p.ID, &p.HawlRecordID, &p.OwnerID, &amount, &name,
		&category, &p.PaymentDate, &notes, &p.CreatedAt); err != nil {
		return payment.Record{}, err
	}
	p.RecipientName = cryptobox.EncryptedField(name)
	p.RecipientCategory = payment.RecipientCategory(category)
	p.Notes = cryptobox.EncryptedField(notes)

	var err error
	if p.Amount, err = s.openAmount(amount); err != nil {
		return payment.Record{}, fmt.Errorf("payment %s amount: %w", p.ID, err)
	}
	return p, nil
}
