// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"stockbot/internal/model"
)

// ProductFilter narrows ListProducts results.
type ProductFilter struct {
	Retailer    string
	InStockOnly bool
}

// Storage is the interface for all persistence operations. The store owns
// all durable state; callers hold only transient snapshots.
type Storage interface {
	// GetProduct returns (nil, nil) when the product has never been seen.
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	UpsertProduct(ctx context.Context, p *model.Product) error
	ListProducts(ctx context.Context, f ProductFilter, limit, offset int) ([]model.Product, error)
	CountProducts(ctx context.Context) (int, error)
	CountInStock(ctx context.Context) (int, error)

	AppendHistory(ctx context.Context, e *model.StockHistoryEntry) error
	CleanupHistory(ctx context.Context, olderThan time.Time) (int64, error)

	CreateAlert(ctx context.Context, a *model.Alert) error
	MarkAlertDelivered(ctx context.Context, id int64, delivered bool) error
	// LastAlertTime returns the zero time when the product has never alerted.
	LastAlertTime(ctx context.Context, productID string) (time.Time, error)
	CountRecentAlerts(ctx context.Context, since time.Time) (int, error)

	AddTracked(ctx context.Context, tp *model.TrackedProduct) error
	ListTracked(ctx context.Context) ([]model.TrackedProduct, error)
	SetTrackedEnabled(ctx context.Context, id string, enabled bool) error
	RemoveTracked(ctx context.Context, id string) (bool, error)

	Close() error
}
