// Package storage declares the persistence collaborator interfaces the
// engine services depend on. Implementations live in the memory and postgres
// subpackages.
package storage

import (
	"context"

	"github.com/zakatwise/zakat-engine/internal/app/domain/asset"
	"github.com/zakatwise/zakat-engine/internal/app/domain/audit"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/payment"
)

// AssetStore persists asset and liability records. RotateAmounts exists
// solely for key-rotation migration, like AuditStore.RewriteAuditEntry:
// asset values and liability amounts are sealed at rest by stores that
// encrypt, and the ciphertext never leaves the store, so re-sealing them
// under the current key has to happen here. Stores that hold plaintext
// amounts report zero work.
type AssetStore interface {
	CreateAsset(ctx context.Context, rec asset.Record) (asset.Record, error)
	UpdateAsset(ctx context.Context, rec asset.Record) (asset.Record, error)
	GetAsset(ctx context.Context, id string) (asset.Record, error)
	ListAssetsByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]asset.Record, error)
	DeactivateAsset(ctx context.Context, id string) error
	ListAssetOwners(ctx context.Context) ([]string, error)

	CreateLiability(ctx context.Context, l asset.Liability) (asset.Liability, error)
	UpdateLiability(ctx context.Context, l asset.Liability) (asset.Liability, error)
	ListLiabilitiesByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]asset.Liability, error)
	DeactivateLiability(ctx context.Context, id string) error

	RotateAmounts(ctx context.Context) (AmountRotation, error)
}

// AmountRotation reports one pass over a store's sealed amount columns.
type AmountRotation struct {
	Migrated int
	Skipped  int
	Failures []AmountRotationFailure
}

// AmountRotationFailure names a row whose amount could not be re-sealed.
type AmountRotationFailure struct {
	Kind string
	ID   string
	Err  error
}

// HawlStore persists lifecycle records. UpdateHawlRecord commits only when
// the stored status still equals expect; a mismatch reports a state
// transition conflict so concurrent transitions resolve to exactly one
// success.
type HawlStore interface {
	CreateHawlRecord(ctx context.Context, rec hawl.Record) (hawl.Record, error)
	UpdateHawlRecord(ctx context.Context, rec hawl.Record, expect hawl.Status) (hawl.Record, error)
	GetHawlRecord(ctx context.Context, id string) (hawl.Record, error)
	GetOpenHawlRecord(ctx context.Context, ownerID string) (hawl.Record, error)
	ListHawlRecords(ctx context.Context, ownerID string, statuses []hawl.Status) ([]hawl.Record, error)
	ListAllHawlRecords(ctx context.Context) ([]hawl.Record, error)
	// DeleteHawlRecord removes a record. Stores reject deletion outside
	// DRAFT status.
	DeleteHawlRecord(ctx context.Context, id string) error
}

// AuditStore persists the append-only audit trail. RewriteAuditEntry exists
// solely for key-rotation migration and is not part of the public audit
// contract.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, e audit.Entry) (audit.Entry, error)
	ListAuditEntries(ctx context.Context, hawlRecordID string) ([]audit.Entry, error)
	ListAllAuditEntries(ctx context.Context) ([]audit.Entry, error)
	RewriteAuditEntry(ctx context.Context, e audit.Entry) (audit.Entry, error)
}

// PaymentStore persists payment records.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p payment.Record) (payment.Record, error)
	UpdatePayment(ctx context.Context, p payment.Record) (payment.Record, error)
	GetPayment(ctx context.Context, id string) (payment.Record, error)
	ListPayments(ctx context.Context, hawlRecordID string) ([]payment.Record, error)
	ListAllPayments(ctx context.Context) ([]payment.Record, error)
}
