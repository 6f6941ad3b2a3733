package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stockbot/internal/model"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fptr(v float64) *float64 { return &v }

func testProduct(id string) *model.Product {
	seen := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &model.Product{
		ID:            id,
		Retailer:      "eb_games",
		Name:          "Pokemon TCG: 151 Booster Box",
		URL:           "https://www.ebgames.com.au/product/" + id,
		Price:         fptr(249.00),
		Currency:      "AUD",
		InStock:       true,
		Category:      model.CategoryPokemon,
		SetName:       "151",
		LastSeenAt:    seen,
		LastInStockAt: &seen,
	}
}

func TestGetProductNotFound(t *testing.T) {
	s := newTestStore(t)

	p, err := s.GetProduct(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p != nil {
		t.Errorf("GetProduct() = %+v, want nil for unseen product", p)
	}
}

func TestUpsertProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testProduct("p1")
	if err := s.UpsertProduct(ctx, want); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}

	got, err := s.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("product mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertProductOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testProduct("p1")
	if err := s.UpsertProduct(ctx, first); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}

	second := testProduct("p1")
	second.Price = fptr(219.00)
	second.InStock = false
	second.LastInStockAt = nil
	if err := s.UpsertProduct(ctx, second); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}

	got, err := s.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("product mismatch after overwrite (-want +got):\n%s", diff)
	}

	n, err := s.CountProducts(ctx)
	if err != nil {
		t.Fatalf("CountProducts() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountProducts() = %d, want 1", n)
	}
}

func TestListProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boxes := []struct {
		id       string
		retailer string
		inStock  bool
	}{
		{"a1", "big_w", true},
		{"a2", "big_w", false},
		{"a3", "eb_games", true},
		{"a4", "target", false},
	}
	for _, b := range boxes {
		p := testProduct(b.id)
		p.Retailer = b.retailer
		p.InStock = b.inStock
		if !b.inStock {
			p.LastInStockAt = nil
		}
		if err := s.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct(%s) error = %v", b.id, err)
		}
	}

	t.Run("all", func(t *testing.T) {
		got, err := s.ListProducts(ctx, ProductFilter{}, 0, 0)
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if len(got) != 4 {
			t.Errorf("len = %d, want 4", len(got))
		}
	})

	t.Run("by retailer", func(t *testing.T) {
		got, err := s.ListProducts(ctx, ProductFilter{Retailer: "big_w"}, 0, 0)
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
	})

	t.Run("in stock only", func(t *testing.T) {
		got, err := s.ListProducts(ctx, ProductFilter{InStockOnly: true}, 0, 0)
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page1, err := s.ListProducts(ctx, ProductFilter{}, 3, 0)
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		page2, err := s.ListProducts(ctx, ProductFilter{}, 3, 3)
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if len(page1) != 3 || len(page2) != 1 {
			t.Errorf("pages = %d + %d, want 3 + 1", len(page1), len(page2))
		}
	})

	n, err := s.CountInStock(ctx)
	if err != nil {
		t.Fatalf("CountInStock() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountInStock() = %d, want 2", n)
	}
}

func TestHistoryAppendAndCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertProduct(ctx, testProduct("p1")); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}

	now := time.Now().UTC()
	entries := []model.StockHistoryEntry{
		{ProductID: "p1", Price: fptr(249.00), InStock: true, ObservedAt: now.Add(-40 * 24 * time.Hour)},
		{ProductID: "p1", Price: fptr(249.00), InStock: false, ObservedAt: now.Add(-35 * 24 * time.Hour)},
		{ProductID: "p1", Price: fptr(239.00), InStock: true, ObservedAt: now},
	}
	for i := range entries {
		if err := s.AppendHistory(ctx, &entries[i]); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
		if entries[i].ID == 0 {
			t.Error("AppendHistory() did not populate entry ID")
		}
	}

	deleted, err := s.CleanupHistory(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("CleanupHistory() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("CleanupHistory() deleted %d rows, want 2", deleted)
	}

	// Second pass with the same cutoff is a no-op.
	deleted, err = s.CleanupHistory(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("CleanupHistory() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("CleanupHistory() deleted %d rows on second pass, want 0", deleted)
	}
}

func TestAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertProduct(ctx, testProduct("p1")); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}

	last, err := s.LastAlertTime(ctx, "p1")
	if err != nil {
		t.Fatalf("LastAlertTime() error = %v", err)
	}
	if !last.IsZero() {
		t.Errorf("LastAlertTime() = %v before any alert, want zero", last)
	}

	a := &model.Alert{
		ProductID:     "p1",
		Kind:          model.ClassRestocked,
		PreviousPrice: fptr(249.00),
		Message:       "Back in stock at eb_games",
	}
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	if a.ID == 0 {
		t.Error("CreateAlert() did not populate alert ID")
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreateAlert() did not populate CreatedAt")
	}

	if err := s.MarkAlertDelivered(ctx, a.ID, true); err != nil {
		t.Fatalf("MarkAlertDelivered() error = %v", err)
	}

	last, err = s.LastAlertTime(ctx, "p1")
	if err != nil {
		t.Fatalf("LastAlertTime() error = %v", err)
	}
	if last.IsZero() {
		t.Error("LastAlertTime() = zero after alert created")
	}

	n, err := s.CountRecentAlerts(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountRecentAlerts() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountRecentAlerts() = %d, want 1", n)
	}

	n, err = s.CountRecentAlerts(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountRecentAlerts() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountRecentAlerts() with future cutoff = %d, want 0", n)
	}
}

func TestTrackedProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tp := &model.TrackedProduct{
		ID:      "t1",
		URL:     "https://www.ebgames.com.au/product/prismatic-evolutions-booster-box",
		Name:    "Prismatic Evolutions Booster Box",
		AddedBy: "123456789",
		Enabled: true,
	}
	if err := s.AddTracked(ctx, tp); err != nil {
		t.Fatalf("AddTracked() error = %v", err)
	}

	listed, err := s.ListTracked(ctx)
	if err != nil {
		t.Fatalf("ListTracked() error = %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("ListTracked() len = %d, want 1", len(listed))
	}
	if diff := cmp.Diff(*tp, listed[0]); diff != "" {
		t.Errorf("tracked mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetTrackedEnabled(ctx, "t1", false); err != nil {
		t.Fatalf("SetTrackedEnabled() error = %v", err)
	}
	listed, err = s.ListTracked(ctx)
	if err != nil {
		t.Fatalf("ListTracked() error = %v", err)
	}
	if listed[0].Enabled {
		t.Error("tracked product still enabled after disable")
	}

	removed, err := s.RemoveTracked(ctx, "t1")
	if err != nil {
		t.Fatalf("RemoveTracked() error = %v", err)
	}
	if !removed {
		t.Error("RemoveTracked() = false for an existing product")
	}

	removed, err = s.RemoveTracked(ctx, "t1")
	if err != nil {
		t.Fatalf("RemoveTracked() error = %v", err)
	}
	if removed {
		t.Error("RemoveTracked() = true for an already-removed product")
	}
}
