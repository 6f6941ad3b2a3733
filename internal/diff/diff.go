// Package diff compares freshly scraped products against last-known
// persisted state and classifies each observation.
package diff

import (
	"context"
	"log/slog"
	"time"

	"stockbot/internal/model"
	"stockbot/internal/storage"
)

// Result pairs one observed product with its classification and the prior
// stored state (nil for a first observation).
type Result struct {
	Product  model.Product
	Class    model.Classification
	Previous *model.Product
}

// AlertEligible reports whether this result may produce a notification.
// Unchanged observations never alert; new listings alert only when the
// first observation is already in stock.
func (r Result) AlertEligible() bool {
	switch r.Class {
	case model.ClassRestocked, model.ClassPriceChanged:
		return true
	case model.ClassNewListing:
		return r.Product.InStock
	}
	return false
}

// Engine classifies observations and persists them. Every observation,
// changed or not, writes one history entry and one product upsert so the
// history is a complete observation log independent of alerting.
type Engine struct {
	store storage.Storage
	log   *slog.Logger
}

// New creates a diff Engine over the given store.
func New(store storage.Storage, log *slog.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Process classifies and persists one retailer's scraped products. A store
// failure on one product skips that product only; the rest of the batch
// proceeds.
func (e *Engine) Process(ctx context.Context, products []model.Product) []Result {
	now := time.Now().UTC()
	results := make([]Result, 0, len(products))

	for _, p := range products {
		prev, err := e.store.GetProduct(ctx, p.ID)
		if err != nil {
			e.log.Error("load prior state", "product_id", p.ID, "name", p.Name, "error", err)
			continue
		}

		class := Classify(prev, &p)

		p.LastSeenAt = now
		if p.InStock {
			t := now
			p.LastInStockAt = &t
		} else if prev != nil {
			p.LastInStockAt = prev.LastInStockAt
		}

		if err := e.store.UpsertProduct(ctx, &p); err != nil {
			e.log.Error("upsert product", "product_id", p.ID, "name", p.Name, "error", err)
			continue
		}

		entry := model.StockHistoryEntry{
			ProductID:  p.ID,
			Price:      p.Price,
			InStock:    p.InStock,
			ObservedAt: now,
		}
		if err := e.store.AppendHistory(ctx, &entry); err != nil {
			e.log.Error("append history", "product_id", p.ID, "error", err)
		}

		results = append(results, Result{Product: p, Class: class, Previous: prev})
	}

	return results
}

// Classify determines how a fresh observation relates to the prior state.
func Classify(prev, next *model.Product) model.Classification {
	switch {
	case prev == nil:
		return model.ClassNewListing
	case !prev.InStock && next.InStock:
		return model.ClassRestocked
	case prev.InStock && next.InStock && next.Price != nil && !samePrice(prev.Price, next.Price):
		return model.ClassPriceChanged
	}
	return model.ClassUnchanged
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
