// Package alert applies the per-product notification cooldown and hands
// approved alerts to the notification sink.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stockbot/internal/model"
	"stockbot/internal/storage"
)

// Sink delivers an approved alert. Implementations must be safe to call
// concurrently; a failed delivery is recorded, never escalated.
type Sink interface {
	Send(ctx context.Context, a model.Alert, p model.Product) error
}

// Outcome describes what the gate did with an eligible classification.
type Outcome int

// Gate outcomes.
const (
	OutcomeSent Outcome = iota
	OutcomeSuppressed
	OutcomeDeliveryFailed
)

// Gate suppresses duplicate notifications inside the cooldown window.
// Cooldown exists so stock flicker (a site briefly reporting false
// negatives) cannot spam the channel.
type Gate struct {
	store    storage.Storage
	sink     Sink
	cooldown time.Duration
	log      *slog.Logger
}

// New creates a Gate with the given cooldown window.
func New(store storage.Storage, sink Sink, cooldown time.Duration, log *slog.Logger) *Gate {
	return &Gate{store: store, sink: sink, cooldown: cooldown, log: log}
}

// Offer handles one alert-eligible classification. The alert record is
// persisted before the send attempt, and the delivery outcome is recorded
// once afterwards. Sink failures are logged and folded into the outcome;
// only persistence failures return an error.
func (g *Gate) Offer(ctx context.Context, p model.Product, class model.Classification, prev *model.Product) (Outcome, error) {
	last, err := g.store.LastAlertTime(ctx, p.ID)
	if err != nil {
		return OutcomeSuppressed, fmt.Errorf("last alert time: %w", err)
	}
	if !last.IsZero() && time.Since(last) < g.cooldown {
		g.log.Debug("alert suppressed by cooldown",
			"product_id", p.ID, "name", p.Name, "last_alert", last)
		return OutcomeSuppressed, nil
	}

	a := model.Alert{
		ProductID: p.ID,
		Kind:      class,
		Message:   message(p, class, prev),
	}
	if prev != nil {
		a.PreviousPrice = prev.Price
	}
	if err := g.store.CreateAlert(ctx, &a); err != nil {
		return OutcomeSuppressed, fmt.Errorf("create alert: %w", err)
	}

	if err := g.sink.Send(ctx, a, p); err != nil {
		g.log.Error("alert delivery failed",
			"product_id", p.ID, "name", p.Name, "kind", class, "error", err)
		if merr := g.store.MarkAlertDelivered(ctx, a.ID, false); merr != nil {
			g.log.Error("record delivery outcome", "alert_id", a.ID, "error", merr)
		}
		return OutcomeDeliveryFailed, nil
	}

	if err := g.store.MarkAlertDelivered(ctx, a.ID, true); err != nil {
		g.log.Error("record delivery outcome", "alert_id", a.ID, "error", err)
	}
	return OutcomeSent, nil
}

func message(p model.Product, class model.Classification, prev *model.Product) string {
	switch class {
	case model.ClassRestocked:
		return fmt.Sprintf("Back in stock at %s", p.Retailer)
	case model.ClassNewListing:
		return fmt.Sprintf("New listing at %s", p.Retailer)
	case model.ClassPriceChanged:
		if prev != nil && prev.Price != nil && p.Price != nil {
			return fmt.Sprintf("Price changed at %s: $%.2f -> $%.2f", p.Retailer, *prev.Price, *p.Price)
		}
		return fmt.Sprintf("Price changed at %s", p.Retailer)
	}
	return ""
}
