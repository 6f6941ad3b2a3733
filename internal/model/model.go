// Package model defines the domain types used across the application.
package model

import "time"

// Category classifies which trading card game a listing belongs to.
type Category string

// Known product categories.
const (
	CategoryPokemon  Category = "pokemon"
	CategoryOnePiece Category = "one_piece"
	CategoryUnknown  Category = "unknown"
)

// Classification is the outcome of comparing a fresh observation against
// the last stored state of the same listing.
type Classification string

// Diff classifications. Every classification produces a history entry;
// only some are eligible for a notification.
const (
	ClassNewListing   Classification = "new_listing"
	ClassRestocked    Classification = "restocked"
	ClassPriceChanged Classification = "price_changed"
	ClassUnchanged    Classification = "unchanged"
)

// Product is the last-observed snapshot of one retailer listing.
// The ID is a stable hash of retailer+URL so repeated observations of the
// same physical listing join against the same row.
type Product struct {
	ID            string
	Retailer      string
	Name          string
	URL           string
	Price         *float64
	Currency      string
	InStock       bool
	Category      Category
	SetName       string
	LastSeenAt    time.Time
	LastInStockAt *time.Time
}

// StockHistoryEntry is one immutable observation of a product. One entry is
// appended per observation cycle regardless of whether anything changed.
type StockHistoryEntry struct {
	ID         int64
	ProductID  string
	Price      *float64
	InStock    bool
	ObservedAt time.Time
}

// Alert is a notification event approved by the alert gate. Delivered is
// updated exactly once, after the send attempt.
type Alert struct {
	ID            int64
	ProductID     string
	Kind          Classification
	PreviousPrice *float64
	Message       string
	Delivered     bool
	CreatedAt     time.Time
}

// TrackedProduct is a user-submitted URL registered through the track
// command.
type TrackedProduct struct {
	ID        string
	URL       string
	Name      string
	AddedBy   string
	Enabled   bool
	CreatedAt time.Time
}

// SelectorSet lists candidate CSS selectors per extraction field, in
// priority order. The first selector yielding at least one match wins.
type SelectorSet struct {
	Container []string
	Name      []string
	Price     []string
	Stock     []string
	Link      []string
}

// Retailer describes one monitored website: where to search and how to
// extract listings from its markup.
type Retailer struct {
	Key        string
	Name       string
	BaseURL    string
	SearchURLs []string
	Enabled    bool
	Selectors  SelectorSet
}
