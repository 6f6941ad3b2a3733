package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"stockbot/internal/model"
	"stockbot/internal/storage"
)

// recordingSink captures delivered alerts and optionally fails.
type recordingSink struct {
	mu   sync.Mutex
	sent []model.Alert
	fail bool
}

func (s *recordingSink) Send(_ context.Context, a model.Alert, _ model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("gateway unreachable")
	}
	s.sent = append(s.sent, a)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestGate(t *testing.T, sink Sink, cooldown time.Duration) (*Gate, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, sink, cooldown, log), store
}

func fptr(v float64) *float64 { return &v }

func testProduct() model.Product {
	return model.Product{
		ID:       "p1",
		Retailer: "eb_games",
		Name:     "Pokemon TCG: 151 Booster Box",
		URL:      "https://www.ebgames.com.au/product/p1",
		Price:    fptr(249.00),
		Currency: "AUD",
		InStock:  true,
	}
}

func TestOfferSendsAndRecords(t *testing.T) {
	sink := &recordingSink{}
	gate, store := newTestGate(t, sink, 5*time.Minute)
	ctx := context.Background()

	prev := testProduct()
	prev.InStock = false

	outcome, err := gate.Offer(ctx, testProduct(), model.ClassRestocked, &prev)
	if err != nil {
		t.Fatalf("Offer() error = %v", err)
	}
	if outcome != OutcomeSent {
		t.Fatalf("outcome = %v, want OutcomeSent", outcome)
	}
	if sink.count() != 1 {
		t.Errorf("sink received %d alerts, want 1", sink.count())
	}

	n, err := store.CountRecentAlerts(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountRecentAlerts() error = %v", err)
	}
	if n != 1 {
		t.Errorf("stored alerts = %d, want 1", n)
	}
}

func TestOfferCooldownSuppresses(t *testing.T) {
	sink := &recordingSink{}
	gate, store := newTestGate(t, sink, 5*time.Minute)
	ctx := context.Background()

	p := testProduct()

	outcome, err := gate.Offer(ctx, p, model.ClassRestocked, nil)
	if err != nil || outcome != OutcomeSent {
		t.Fatalf("first Offer() = %v, %v; want OutcomeSent, nil", outcome, err)
	}

	// Stock flicker inside the cooldown window must not notify again.
	outcome, err = gate.Offer(ctx, p, model.ClassRestocked, nil)
	if err != nil {
		t.Fatalf("second Offer() error = %v", err)
	}
	if outcome != OutcomeSuppressed {
		t.Errorf("second outcome = %v, want OutcomeSuppressed", outcome)
	}
	if sink.count() != 1 {
		t.Errorf("sink received %d alerts, want 1", sink.count())
	}

	n, err := store.CountRecentAlerts(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountRecentAlerts() error = %v", err)
	}
	if n != 1 {
		t.Errorf("stored alerts = %d, want 1 (suppressed offers leave no record)", n)
	}
}

func TestOfferCooldownPerProduct(t *testing.T) {
	sink := &recordingSink{}
	gate, _ := newTestGate(t, sink, 5*time.Minute)
	ctx := context.Background()

	a := testProduct()
	b := testProduct()
	b.ID = "p2"

	if outcome, _ := gate.Offer(ctx, a, model.ClassRestocked, nil); outcome != OutcomeSent {
		t.Fatalf("first product outcome = %v, want OutcomeSent", outcome)
	}
	// A different product is not gated by the first one's cooldown.
	if outcome, _ := gate.Offer(ctx, b, model.ClassRestocked, nil); outcome != OutcomeSent {
		t.Errorf("second product outcome = %v, want OutcomeSent", outcome)
	}
	if sink.count() != 2 {
		t.Errorf("sink received %d alerts, want 2", sink.count())
	}
}

func TestOfferAfterCooldownExpiry(t *testing.T) {
	sink := &recordingSink{}
	gate, _ := newTestGate(t, sink, 0)
	ctx := context.Background()

	p := testProduct()
	for i := 0; i < 2; i++ {
		outcome, err := gate.Offer(ctx, p, model.ClassRestocked, nil)
		if err != nil {
			t.Fatalf("Offer() error = %v", err)
		}
		if outcome != OutcomeSent {
			t.Fatalf("outcome = %v, want OutcomeSent with zero cooldown", outcome)
		}
	}
	if sink.count() != 2 {
		t.Errorf("sink received %d alerts, want 2", sink.count())
	}
}

func TestOfferSinkFailureRecorded(t *testing.T) {
	sink := &recordingSink{fail: true}
	gate, store := newTestGate(t, sink, 5*time.Minute)
	ctx := context.Background()

	outcome, err := gate.Offer(ctx, testProduct(), model.ClassRestocked, nil)
	if err != nil {
		t.Fatalf("Offer() error = %v, delivery failures must not escalate", err)
	}
	if outcome != OutcomeDeliveryFailed {
		t.Errorf("outcome = %v, want OutcomeDeliveryFailed", outcome)
	}

	// The alert row exists even though delivery failed.
	n, err := store.CountRecentAlerts(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountRecentAlerts() error = %v", err)
	}
	if n != 1 {
		t.Errorf("stored alerts = %d, want 1", n)
	}
}

func TestMessage(t *testing.T) {
	prev := testProduct()
	prev.Price = fptr(249.00)
	next := testProduct()
	next.Price = fptr(219.00)

	tests := []struct {
		name  string
		class model.Classification
		prev  *model.Product
		want  string
	}{
		{"restocked", model.ClassRestocked, &prev, "Back in stock at eb_games"},
		{"new listing", model.ClassNewListing, nil, "New listing at eb_games"},
		{"price changed", model.ClassPriceChanged, &prev, "Price changed at eb_games: $249.00 -> $219.00"},
		{"price changed without prior price", model.ClassPriceChanged, nil, "Price changed at eb_games"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := message(next, tt.class, tt.prev); got != tt.want {
				t.Errorf("message() = %q, want %q", got, tt.want)
			}
		})
	}
}
