package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"stockbot/internal/model"
	"stockbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database in WAL mode.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer connection; WAL keeps readers unblocked during writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetProduct returns the stored snapshot for a product, or (nil, nil) when
// the product has never been observed.
func (s *SQLite) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, retailer, name, url, price, currency, in_stock, category, set_name, last_seen_at, last_in_stock_at
		 FROM products WHERE id = ?`, id,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// UpsertProduct inserts or overwrites a product snapshot.
func (s *SQLite) UpsertProduct(ctx context.Context, p *model.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, retailer, name, url, price, currency, in_stock, category, set_name, last_seen_at, last_in_stock_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   url = excluded.url,
		   price = excluded.price,
		   currency = excluded.currency,
		   in_stock = excluded.in_stock,
		   category = excluded.category,
		   set_name = excluded.set_name,
		   last_seen_at = excluded.last_seen_at,
		   last_in_stock_at = excluded.last_in_stock_at`,
		p.ID, p.Retailer, p.Name, p.URL, p.Price, p.Currency, boolToInt(p.InStock),
		string(p.Category), p.SetName, formatTime(p.LastSeenAt), formatTimePtr(p.LastInStockAt),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// ListProducts returns a page of products ordered by retailer and name.
// Pagination is mandatory; limit is clamped to a sane ceiling.
func (s *SQLite) ListProducts(ctx context.Context, f ProductFilter, limit, offset int) ([]model.Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, retailer, name, url, price, currency, in_stock, category, set_name, last_seen_at, last_in_stock_at
	          FROM products WHERE 1=1`
	args := []any{}
	if f.Retailer != "" {
		query += " AND retailer = ?"
		args = append(args, f.Retailer)
	}
	if f.InStockOnly {
		query += " AND in_stock = 1"
	}
	query += " ORDER BY retailer, name LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// CountProducts returns the total number of observed products.
func (s *SQLite) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// CountInStock returns the number of products currently flagged in stock.
func (s *SQLite) CountInStock(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE in_stock = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in stock: %w", err)
	}
	return n, nil
}

// AppendHistory records one immutable observation and populates the entry ID.
func (s *SQLite) AppendHistory(ctx context.Context, e *model.StockHistoryEntry) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_history (product_id, price, in_stock, observed_at) VALUES (?, ?, ?, ?)`,
		e.ProductID, e.Price, boolToInt(e.InStock), formatTime(e.ObservedAt),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// CleanupHistory purges observations older than the retention cutoff and
// returns the number of rows deleted.
func (s *SQLite) CleanupHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM stock_history WHERE observed_at < ?`, formatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CreateAlert inserts a new alert and populates its ID and CreatedAt.
func (s *SQLite) CreateAlert(ctx context.Context, a *model.Alert) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (product_id, kind, previous_price, message, delivered, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ProductID, string(a.Kind), a.PreviousPrice, a.Message, boolToInt(a.Delivered), now,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// MarkAlertDelivered records the delivery outcome of a sent alert.
func (s *SQLite) MarkAlertDelivered(ctx context.Context, id int64, delivered bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET delivered = ? WHERE id = ?`, boolToInt(delivered), id,
	)
	if err != nil {
		return fmt.Errorf("mark alert delivered: %w", err)
	}
	return nil
}

// LastAlertTime returns the creation time of the most recent alert for a
// product, or the zero time when none exists.
func (s *SQLite) LastAlertTime(ctx context.Context, productID string) (time.Time, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM alerts WHERE product_id = ?`, productID,
	).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("last alert time: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse alert time: %w", err)
	}
	return t, nil
}

// CountRecentAlerts returns the number of alerts created since the cutoff.
func (s *SQLite) CountRecentAlerts(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE created_at >= ?`, formatTime(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent alerts: %w", err)
	}
	return n, nil
}

// AddTracked inserts or replaces a user-tracked product.
func (s *SQLite) AddTracked(ctx context.Context, tp *model.TrackedProduct) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_products (id, url, name, added_by, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   url = excluded.url,
		   name = excluded.name,
		   added_by = excluded.added_by,
		   enabled = excluded.enabled`,
		tp.ID, tp.URL, tp.Name, tp.AddedBy, boolToInt(tp.Enabled), now,
	)
	if err != nil {
		return fmt.Errorf("add tracked: %w", err)
	}
	tp.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListTracked returns all user-tracked products, enabled or not.
func (s *SQLite) ListTracked(ctx context.Context) ([]model.TrackedProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, name, added_by, enabled, created_at FROM tracked_products ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query tracked: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tracked []model.TrackedProduct
	for rows.Next() {
		var tp model.TrackedProduct
		var enabled int
		var created sql.NullString
		if err := rows.Scan(&tp.ID, &tp.URL, &tp.Name, &tp.AddedBy, &enabled, &created); err != nil {
			return nil, fmt.Errorf("scan tracked: %w", err)
		}
		tp.Enabled = enabled == 1
		if created.Valid {
			tp.CreatedAt, _ = time.Parse(timeLayout, created.String)
		}
		tracked = append(tracked, tp)
	}
	return tracked, rows.Err()
}

// SetTrackedEnabled toggles a tracked product without deleting it.
func (s *SQLite) SetTrackedEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tracked_products SET enabled = ? WHERE id = ?`, boolToInt(enabled), id,
	)
	if err != nil {
		return fmt.Errorf("set tracked enabled: %w", err)
	}
	return nil
}

// RemoveTracked deletes a tracked product, reporting whether it existed.
func (s *SQLite) RemoveTracked(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_products WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove tracked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	var inStock int
	var category string
	var price sql.NullFloat64
	var lastSeen, lastInStock sql.NullString
	err := row.Scan(&p.ID, &p.Retailer, &p.Name, &p.URL, &price, &p.Currency,
		&inStock, &category, &p.SetName, &lastSeen, &lastInStock)
	if err != nil {
		return nil, err
	}
	p.InStock = inStock == 1
	p.Category = model.Category(category)
	if price.Valid {
		v := price.Float64
		p.Price = &v
	}
	if lastSeen.Valid {
		p.LastSeenAt, _ = time.Parse(timeLayout, lastSeen.String)
	}
	if lastInStock.Valid {
		t, _ := time.Parse(timeLayout, lastInStock.String)
		p.LastInStockAt = &t
	}
	return &p, nil
}
