package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/example/ec-checkout/internal/domain/inventory"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/domain/user"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresOption func(*PostgresStore)

// WithQueryObserver is called once per store operation, e.g. to count queries.
func WithQueryObserver(fn func(operation string)) PostgresOption {
	return func(s *PostgresStore) { s.observe = fn }
}

// PostgresStore is the catalog, order, customer and settlement store.
type PostgresStore struct {
	db      *sql.DB
	logger  *zap.Logger
	observe func(operation string)
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, logger: logger, observe: func(string) {}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================
// product.Catalog
// ============================================

func (s *PostgresStore) FindPublishedProduct(ctx context.Context, id int64) (*product.Product, error) {
	s.observe("find_published_product")
	p, err := s.loadProduct(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !p.IsPublished() {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (s *PostgresStore) loadProduct(ctx context.Context, q querier, id int64) (*product.Product, error) {
	var (
		p       product.Product
		compare decimal.NullDecimal
		stock   int
		status  string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, price, compare_price, stock, status, created_at, updated_at
		 FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Price, &compare, &stock, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", id, err)
	}
	p.Status = product.Status(status)
	if compare.Valid {
		p.ComparePrice = &compare.Decimal
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, name, value, price, stock
		 FROM product_variants WHERE product_id = $1
		 ORDER BY position, id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query variants of %d: %w", id, err)
	}
	defer rows.Close()

	var variants product.Variants
	for rows.Next() {
		var (
			v     product.Variant
			price decimal.NullDecimal
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.Value, &price, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if price.Valid {
			v.Price = &price.Decimal
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(variants) > 0 {
		p.Options = variants
	} else {
		p.Options = product.Single{Stock: stock}
	}
	return &p, nil
}

// ============================================
// order.Repository
// ============================================

const orderColumns = `id, customer_id, items, total, status, provider_session_id,
	shipping_address, tracking_number, notes, created_at, updated_at`

func (s *PostgresStore) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	s.observe("find_order_by_session")
	return scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider_session_id = $1`, sessionID))
}

// FindByID reports ErrOrderNotFound for ids that are not UUIDs, so the
// primary key index is always usable.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*order.Order, error) {
	s.observe("find_order")
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, order.ErrOrderNotFound
	}
	return scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, uid))
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, customerID string, page order.Page) ([]*order.Order, error) {
	s.observe("list_orders_by_customer")
	return s.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1
		 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		customerID, page.Limit, page.Offset)
}

func (s *PostgresStore) ListAll(ctx context.Context, page order.Page) ([]*order.Order, error) {
	s.observe("list_orders")
	return s.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset)
}

func (s *PostgresStore) listOrders(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, o *order.Order) error {
	s.observe("update_order_status")
	uid, err := uuid.Parse(o.ID)
	if err != nil {
		return order.ErrOrderNotFound
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, tracking_number = $3, notes = $4, updated_at = $5
		 WHERE id = $1`,
		uid, string(o.Status), o.TrackingNumber, o.Notes, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func insertOrder(ctx context.Context, q querier, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.CustomerID, items, o.Total, string(o.Status), o.ProviderSessionID,
		addr, o.TrackingNumber, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return order.ErrDuplicateSettlement
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o              order.Order
		items, addr    []byte
		status         string
		tracking, note sql.NullString
	)
	err := row.Scan(&o.ID, &o.CustomerID, &items, &o.Total, &status, &o.ProviderSessionID,
		&addr, &tracking, &note, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
	}
	if tracking.Valid {
		o.TrackingNumber = &tracking.String
	}
	if note.Valid {
		o.Notes = &note.String
	}
	return &o, nil
}

// ============================================
// settlement.Settler
// ============================================

// Settle deducts variant stock and inserts the order in one transaction.
// Product rows are locked in ascending id order so concurrent settlements
// touching the same products cannot deadlock.
func (s *PostgresStore) Settle(ctx context.Context, st order.Settlement) ([]inventory.Adjustment, error) {
	s.observe("settle")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockProducts(ctx, tx, st.Deductions); err != nil {
		return nil, err
	}

	stx := settlementTx{s: s, tx: tx}
	products := make(map[int64]*product.Product)

	var adjustments []inventory.Adjustment
	for _, d := range st.Deductions {
		if d.VariantID == nil {
			continue
		}

		p, ok := products[d.ProductID]
		if !ok {
			if p, err = stx.FindProductByID(ctx, d.ProductID); err != nil {
				return nil, err
			}
			products[d.ProductID] = p
		}

		variants, _ := p.Options.(product.Variants)
		v, found := variants.Find(*d.VariantID)
		if !found {
			s.logger.Warn("variant no longer exists, stock left unchanged",
				zap.Int64("product_id", d.ProductID),
				zap.String("variant_id", *d.VariantID),
				zap.String("session_id", st.Order.ProviderSessionID))
			continue
		}

		after := inventory.Deduct(v.Stock, d.Quantity)
		if err := stx.UpdateVariantStock(ctx, d.ProductID, v.ID, after); err != nil {
			return nil, err
		}
		// later deductions against the same variant see the new level
		for i := range variants {
			if variants[i].ID == v.ID {
				variants[i].Stock = after
			}
		}

		adjustments = append(adjustments, inventory.Adjustment{
			ProductID: d.ProductID,
			VariantID: v.ID,
			Before:    v.Stock,
			After:     after,
		})
	}

	if err := stx.CreateOrder(ctx, st.Order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, order.ErrDuplicateSettlement
		}
		return nil, fmt.Errorf("commit settlement: %w", err)
	}
	return adjustments, nil
}

// settlementTx carries the catalog and order writes of one settlement.
// Every call runs inside the transaction that holds the product locks.
type settlementTx struct {
	s  *PostgresStore
	tx *sql.Tx
}

// FindProductByID loads a product regardless of its status.
func (t settlementTx) FindProductByID(ctx context.Context, id int64) (*product.Product, error) {
	return t.s.loadProduct(ctx, t.tx, id)
}

func (t settlementTx) UpdateVariantStock(ctx context.Context, productID int64, variantID string, stock int) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE product_variants SET stock = $3 WHERE product_id = $1 AND id = $2`,
		productID, variantID, stock,
	); err != nil {
		return fmt.Errorf("deduct variant stock: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE products SET updated_at = NOW() WHERE id = $1`, productID,
	); err != nil {
		return fmt.Errorf("touch product: %w", err)
	}
	return nil
}

// CreateOrder relies on the unique index on provider_session_id to reject a
// second order for the same checkout session.
func (t settlementTx) CreateOrder(ctx context.Context, o *order.Order) error {
	return insertOrder(ctx, t.tx, o)
}

// lockProducts takes row locks on every referenced product and fails with
// ErrProductNotFound if any is gone.
func lockProducts(ctx context.Context, tx *sql.Tx, deductions []order.Deduction) error {
	ids := make([]int64, 0, len(deductions))
	for _, d := range deductions {
		ids = append(ids, d.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan locked product: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("settle product %d: %w", id, product.ErrProductNotFound)
		}
	}
	return nil
}

// ============================================
// user.Directory
// ============================================

func (s *PostgresStore) FindUser(ctx context.Context, id string) (*user.User, error) {
	s.observe("find_user")
	var u user.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, street, city, state, zip FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Address.Street, &u.Address.City, &u.Address.State, &u.Address.Zip)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
