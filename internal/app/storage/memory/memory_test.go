package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/asset"
	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAssetLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, err := store.CreateAsset(ctx, asset.Record{
		OwnerID:  "owner-1",
		Category: asset.CategoryCash,
		Value:    dec("500"),
		Currency: "USD",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("record not initialised: %#v", rec)
	}
	if got := rec.CalculationModifier.String(); got != "1" {
		t.Fatalf("zero modifier should default to 1, got %s", got)
	}

	rec.Value = dec("750")
	if rec, err = store.UpdateAsset(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.DeactivateAsset(ctx, rec.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := store.ListAssetsByOwner(ctx, "owner-1", true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("deactivated asset still listed: %#v", active)
	}
	all, err := store.ListAssetsByOwner(ctx, "owner-1", false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatal("soft delete must keep the row")
	}

	if _, err := store.GetAsset(ctx, "missing"); !core.IsNotFound(err) {
		t.Fatalf("missing asset: got %v, want not found", err)
	}
}

func TestListAssetOwners(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, owner := range []string{"b-owner", "a-owner", "b-owner"} {
		if _, err := store.CreateAsset(ctx, asset.Record{OwnerID: owner, Category: asset.CategoryCash, Value: dec("1"), Active: true}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	owners, err := store.ListAssetOwners(ctx)
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners) != 2 || owners[0] != "a-owner" || owners[1] != "b-owner" {
		t.Fatalf("owners = %#v", owners)
	}
}

func TestHawlStatusGuard(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, err := store.CreateHawlRecord(ctx, hawl.Record{OwnerID: "owner-1", Status: hawl.StatusDraft, Currency: "USD"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec.Status = hawl.StatusActive
	if rec, err = store.UpdateHawlRecord(ctx, rec, hawl.StatusDraft); err != nil {
		t.Fatalf("update with matching status: %v", err)
	}

	// A stale expectation fails without changing the row.
	stale := rec
	stale.Status = hawl.StatusFinalized
	if _, err := store.UpdateHawlRecord(ctx, stale, hawl.StatusDraft); !core.IsStateTransition(err) {
		t.Fatalf("stale update: got %v, want state transition error", err)
	}
	current, err := store.GetHawlRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != hawl.StatusActive {
		t.Fatalf("failed update must not mutate, got %s", current.Status)
	}
}

func TestGetOpenHawlRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.GetOpenHawlRecord(ctx, "owner-1"); !core.IsNotFound(err) {
		t.Fatalf("no records: got %v, want not found", err)
	}

	closed, err := store.CreateHawlRecord(ctx, hawl.Record{OwnerID: "owner-1", Status: hawl.StatusFinalized})
	if err != nil {
		t.Fatalf("create finalized: %v", err)
	}
	if _, err := store.GetOpenHawlRecord(ctx, "owner-1"); !core.IsNotFound(err) {
		t.Fatalf("finalized records are not open, got %v", err)
	}
	_ = closed

	open, err := store.CreateHawlRecord(ctx, hawl.Record{OwnerID: "owner-1", Status: hawl.StatusActive})
	if err != nil {
		t.Fatalf("create active: %v", err)
	}
	got, err := store.GetOpenHawlRecord(ctx, "owner-1")
	if err != nil {
		t.Fatalf("get open: %v", err)
	}
	if got.ID != open.ID {
		t.Fatalf("open record = %s, want %s", got.ID, open.ID)
	}
}

func TestDeleteHawlRecord_DraftOnly(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, err := store.CreateHawlRecord(ctx, hawl.Record{OwnerID: "owner-1", Status: hawl.StatusActive})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.DeleteHawlRecord(ctx, rec.ID); !core.IsStateTransition(err) {
		t.Fatalf("delete active: got %v, want state transition error", err)
	}

	draft, err := store.CreateHawlRecord(ctx, hawl.Record{OwnerID: "owner-2", Status: hawl.StatusDraft})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if err := store.DeleteHawlRecord(ctx, draft.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
}
