// Package postgres implements store.Repository over database/sql with the
// pgx stdlib driver. Sales and stock adjustments run in serializable
// transactions; stock never goes negative because the decrement itself is
// guarded (stock = stock - n WHERE stock >= n).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tiendita/backend/internal/domain"
	"tiendita/backend/internal/store"
	"tiendita/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = xid.New("user")
	}
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, name, email, password_hash, role, created_at)
		VALUES ($1,$2,$3,lower($4),$5,$6,$7)
	`, u.ID, u.TenantID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, store.ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, password_hash, role, created_at
		FROM users
		WHERE email = lower($1)
	`, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`, id))
}

func (s *Store) scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, tenantID string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, password_hash, role, created_at
		FROM users
		WHERE tenant_id = $1
		ORDER BY email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM users WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- tenants ---

func (s *Store) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	var t domain.Tenant
	var address, phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, address, phone, currency, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Slug, &address, &phone, &t.Currency, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, store.ErrNotFound
		}
		return domain.Tenant{}, err
	}
	t.Address = address.String
	t.Phone = phone.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (s *Store) UpdateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants
		SET name = $2, address = $3, phone = $4, currency = $5, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Name, nullString(t.Address), nullString(t.Phone), t.Currency)
	if err != nil {
		return domain.Tenant{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Tenant{}, store.ErrNotFound
	}
	return s.GetTenant(ctx, t.ID)
}

// --- categories ---

func (s *Store) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	if c.ID == "" {
		c.ID = xid.New("cat")
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name, created_at)
		VALUES ($1,$2,$3,$4)
	`, c.ID, c.TenantID, c.Name, c.CreatedAt)
	if err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, tenantID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.tenant_id, c.name, c.created_at, count(p.id)
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id
		WHERE c.tenant_id = $1
		GROUP BY c.id
		ORDER BY c.name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.CreatedAt, &c.ProductCount); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Store) DeleteCategory(ctx context.Context, tenantID, id string) error {
	// Referential guard and delete in one statement; a product created
	// between two separate statements could otherwise slip past the check.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM categories c
		WHERE c.id = $1 AND c.tenant_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM products p
			WHERE p.category_id = c.id AND p.tenant_id = c.tenant_id
		  )
	`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND tenant_id = $2)
	`, id, tenantID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return store.ErrCategoryInUse
	}
	return store.ErrNotFound
}

// --- products ---

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = xid.New("prod")
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, category_id, name, description, sku, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.TenantID, nullString(p.CategoryID), p.Name, nullString(p.Description), p.SKU, p.Active, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, store.ErrDuplicateSKU
		}
		return domain.Product{}, err
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		if v.ID == "" {
			v.ID = xid.New("var")
		}
		v.ProductID = p.ID
		v.CreatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO product_variants (id, product_id, name, sku, price_cents, cost_cents, stock, min_stock, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, v.ID, p.ID, v.Name, nullString(v.SKU), v.PriceCents, v.CostCents, v.Stock, v.MinStock, now)
		if err != nil {
			return domain.Product{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, err
	}
	return s.GetProduct(ctx, p.TenantID, p.ID)
}

func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.tenant_id, p.category_id, p.name, p.description, p.sku, p.active,
		       p.created_at, p.updated_at, c.name
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = $1 AND p.active = true
		ORDER BY p.name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachVariants(ctx, products, ids); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, id string) (domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.tenant_id, p.category_id, p.name, p.description, p.sku, p.active,
		       p.created_at, p.updated_at, c.name
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = $1 AND p.id = $2
	`, tenantID, id)
	if err != nil {
		return domain.Product{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Product{}, err
		}
		return domain.Product{}, store.ErrNotFound
	}
	p, err := scanProduct(rows)
	if err != nil {
		return domain.Product{}, err
	}

	products := []domain.Product{p}
	if err := s.attachVariants(ctx, products, []string{p.ID}); err != nil {
		return domain.Product{}, err
	}
	return products[0], nil
}

func scanProduct(rows *sql.Rows) (domain.Product, error) {
	var p domain.Product
	var categoryID, description, categoryName sql.NullString
	err := rows.Scan(&p.ID, &p.TenantID, &categoryID, &p.Name, &description, &p.SKU, &p.Active,
		&p.CreatedAt, &p.UpdatedAt, &categoryName)
	if err != nil {
		return domain.Product{}, err
	}
	p.CategoryID = categoryID.String
	p.Description = description.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if categoryID.Valid && categoryName.Valid {
		p.Category = &domain.Category{ID: categoryID.String, TenantID: p.TenantID, Name: categoryName.String}
	}
	return p, nil
}

// attachVariants loads the variants for the given product IDs, ordered by
// creation so index 0 is always the primary stock-carrying variant.
func (s *Store) attachVariants(ctx context.Context, products []domain.Product, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, name, sku, price_cents, cost_cents, stock, min_stock, created_at
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byProduct := make(map[string][]domain.ProductVariant, len(ids))
	for rows.Next() {
		var v domain.ProductVariant
		var vsku sql.NullString
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &vsku, &v.PriceCents, &v.CostCents, &v.Stock, &v.MinStock, &v.CreatedAt); err != nil {
			return err
		}
		v.SKU = vsku.String
		v.CreatedAt = v.CreatedAt.UTC()
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range products {
		products[i].Variants = byProduct[products[i].ID]
		if products[i].Variants == nil {
			products[i].Variants = []domain.ProductVariant{}
		}
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = $3, description = $4, category_id = $5, active = $6, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, p.ID, p.TenantID, p.Name, nullString(p.Description), nullString(p.CategoryID), p.Active)
	if err != nil {
		return domain.Product{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Product{}, store.ErrNotFound
	}

	if len(p.Variants) > 0 {
		v := p.Variants[0]
		_, err = tx.ExecContext(ctx, `
			UPDATE product_variants
			SET price_cents = $2, cost_cents = $3, stock = $4, min_stock = $5
			WHERE id = $1
		`, v.ID, v.PriceCents, v.CostCents, v.Stock, v.MinStock)
		if err != nil {
			return domain.Product{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, err
	}
	return s.GetProduct(ctx, p.TenantID, p.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertProductBySKU(ctx context.Context, p domain.Product) (domain.Product, bool, error) {
	var existingID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM products WHERE tenant_id = $1 AND lower(sku) = lower($2)
	`, p.TenantID, p.SKU).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		p.Active = true
		created, err := s.CreateProduct(ctx, p)
		if err != nil {
			return domain.Product{}, false, err
		}
		return created, true, nil
	case err != nil:
		return domain.Product{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET name = $3, category_id = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, existingID, p.TenantID, p.Name, nullString(p.CategoryID))
	if err != nil {
		return domain.Product{}, false, err
	}
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		_, err = tx.ExecContext(ctx, `
			UPDATE product_variants
			SET price_cents = $2, cost_cents = $3, stock = $4, min_stock = $5
			WHERE id = (
				SELECT id FROM product_variants
				WHERE product_id = $1
				ORDER BY created_at, id
				LIMIT 1
			)
		`, existingID, v.PriceCents, v.CostCents, v.Stock, v.MinStock)
		if err != nil {
			return domain.Product{}, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Product{}, false, err
	}

	updated, err := s.GetProduct(ctx, p.TenantID, existingID)
	return updated, false, err
}

// --- cash shifts ---

func (s *Store) GetOpenShift(ctx context.Context, tenantID, userID string) (domain.CashShift, error) {
	return s.scanShift(s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, status, start_amount_cents, expected_amount_cents,
		       end_amount_cents, difference_cents, start_time, end_time
		FROM cash_shifts
		WHERE tenant_id = $1 AND user_id = $2 AND status = 'OPEN'
	`, tenantID, userID))
}

func (s *Store) scanShift(row *sql.Row) (domain.CashShift, error) {
	var sh domain.CashShift
	var endAmount, difference sql.NullInt64
	var endTime sql.NullTime
	err := row.Scan(&sh.ID, &sh.TenantID, &sh.UserID, &sh.Status, &sh.StartAmountCents,
		&sh.ExpectedAmountCents, &endAmount, &difference, &sh.StartTime, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CashShift{}, store.ErrNotFound
		}
		return domain.CashShift{}, err
	}
	sh.StartTime = sh.StartTime.UTC()
	if endAmount.Valid {
		sh.EndAmountCents = &endAmount.Int64
	}
	if difference.Valid {
		sh.DifferenceCents = &difference.Int64
	}
	if endTime.Valid {
		t := endTime.Time.UTC()
		sh.EndTime = &t
	}
	return sh, nil
}

func (s *Store) CreateShift(ctx context.Context, sh domain.CashShift) (domain.CashShift, error) {
	if sh.ID == "" {
		sh.ID = xid.New("shift")
	}
	sh.Status = domain.ShiftOpen
	sh.ExpectedAmountCents = sh.StartAmountCents
	sh.StartTime = time.Now().UTC()

	// Partial unique index on (tenant_id, user_id) WHERE status = 'OPEN'
	// makes the one-open-shift rule hold under concurrent opens.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_shifts (id, tenant_id, user_id, status, start_amount_cents, expected_amount_cents, start_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sh.ID, sh.TenantID, sh.UserID, sh.Status, sh.StartAmountCents, sh.ExpectedAmountCents, sh.StartTime)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.CashShift{}, store.ErrShiftAlreadyOpen
		}
		return domain.CashShift{}, err
	}
	return sh, nil
}

func (s *Store) CloseShift(ctx context.Context, tenantID, shiftID string, endAmountCents int64, closedAt time.Time) (domain.CashShift, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE cash_shifts
		SET status = 'CLOSED',
		    end_amount_cents = $3,
		    difference_cents = $3 - expected_amount_cents,
		    end_time = $4
		WHERE id = $1 AND tenant_id = $2 AND status = 'OPEN'
		RETURNING id, tenant_id, user_id, status, start_amount_cents, expected_amount_cents,
		          end_amount_cents, difference_cents, start_time, end_time
	`, shiftID, tenantID, endAmountCents, closedAt.UTC())

	sh, err := s.scanShift(row)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CashShift{}, store.ErrShiftNotOpen
		}
		return domain.CashShift{}, err
	}
	return sh, nil
}

// --- sales ---

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, shiftID string) (domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Sale{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Tenant-scoped counter assigns gapless, monotonically increasing
	// sale numbers under concurrency.
	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sale_counters (tenant_id, value)
		VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET value = sale_counters.value + 1
		RETURNING value
	`, sale.TenantID).Scan(&seq)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.SaleNumber = fmt.Sprintf("V-%06d", seq)

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	sale.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, tenant_id, user_id, customer_id, sale_number, payment_method,
		                   subtotal_cents, tax_cents, discount_cents, total_cents,
		                   received_amount_cents, change_amount_cents, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.TenantID, sale.UserID, nullString(sale.CustomerID), sale.SaleNumber,
		sale.PaymentMethod, sale.SubtotalCents, sale.TaxCents, sale.DiscountCents, sale.TotalCents,
		nullInt(sale.ReceivedAmountCents), nullInt(sale.ChangeAmountCents), nullString(sale.Notes), sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.SaleID = sale.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, variant_id, product_name, variant_name,
			                        product_sku, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, item.ID, sale.ID, item.ProductID, nullString(item.VariantID), item.ProductName,
			nullString(item.VariantName), item.ProductSKU, item.Quantity, item.UnitPriceCents, item.SubtotalCents)
		if err != nil {
			return domain.Sale{}, err
		}

		if item.VariantID == "" {
			continue
		}
		// The WHERE clause is the authoritative stock check; zero rows
		// means a concurrent sale got there first.
		res, err := tx.ExecContext(ctx, `
			UPDATE product_variants
			SET stock = stock - $1
			WHERE id = $2 AND stock >= $1
		`, item.Quantity, item.VariantID)
		if err != nil {
			return domain.Sale{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.Sale{}, fmt.Errorf("%w: %s", store.ErrInsufficientStock, item.ProductName)
		}
	}

	// Post the cash movement and bump the expected drawer amount in the
	// same statement scope; a shift closed since the pre-check aborts
	// the whole sale.
	res, err := tx.ExecContext(ctx, `
		UPDATE cash_shifts
		SET expected_amount_cents = expected_amount_cents + $1
		WHERE id = $2 AND tenant_id = $3 AND status = 'OPEN'
	`, sale.TotalCents, shiftID, sale.TenantID)
	if err != nil {
		return domain.Sale{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Sale{}, store.ErrShiftNotOpen
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_transactions (id, shift_id, type, amount_cents, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, xid.New("ctx"), shiftID, domain.CashTxnSale, sale.TotalCents, "Venta "+sale.SaleNumber, sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, tenantID string, filter store.SaleFilter) ([]domain.Sale, error) {
	query := `
		SELECT id, tenant_id, user_id, customer_id, sale_number, payment_method,
		       subtotal_cents, tax_cents, discount_cents, total_cents,
		       received_amount_cents, change_amount_cents, notes, created_at
		FROM sales
		WHERE tenant_id = $1`
	args := []any{tenantID}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachSaleItems(ctx, sales, ids); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, tenantID, id string) (domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, customer_id, sale_number, payment_method,
		       subtotal_cents, tax_cents, discount_cents, total_cents,
		       received_amount_cents, change_amount_cents, notes, created_at
		FROM sales
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return domain.Sale{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Sale{}, err
		}
		return domain.Sale{}, store.ErrNotFound
	}
	sale, err := scanSale(rows)
	if err != nil {
		return domain.Sale{}, err
	}

	sales := []domain.Sale{sale}
	if err := s.attachSaleItems(ctx, sales, []string{sale.ID}); err != nil {
		return domain.Sale{}, err
	}
	return sales[0], nil
}

func scanSale(rows *sql.Rows) (domain.Sale, error) {
	var sale domain.Sale
	var customerID, notes sql.NullString
	var received, change sql.NullInt64
	err := rows.Scan(&sale.ID, &sale.TenantID, &sale.UserID, &customerID, &sale.SaleNumber,
		&sale.PaymentMethod, &sale.SubtotalCents, &sale.TaxCents, &sale.DiscountCents,
		&sale.TotalCents, &received, &change, &notes, &sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.CustomerID = customerID.String
	sale.Notes = notes.String
	sale.CreatedAt = sale.CreatedAt.UTC()
	if received.Valid {
		sale.ReceivedAmountCents = &received.Int64
	}
	if change.Valid {
		sale.ChangeAmountCents = &change.Int64
	}
	return sale, nil
}

func (s *Store) attachSaleItems(ctx context.Context, sales []domain.Sale, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, variant_id, product_name, variant_name,
		       product_sku, quantity, unit_price_cents, subtotal_cents
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	bySale := make(map[string][]domain.SaleItem, len(ids))
	for rows.Next() {
		var item domain.SaleItem
		var variantID, variantName sql.NullString
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &variantID, &item.ProductName,
			&variantName, &item.ProductSKU, &item.Quantity, &item.UnitPriceCents, &item.SubtotalCents); err != nil {
			return err
		}
		item.VariantID = variantID.String
		item.VariantName = variantName.String
		bySale[item.SaleID] = append(bySale[item.SaleID], item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range sales {
		sales[i].Items = bySale[sales[i].ID]
		if sales[i].Items == nil {
			sales[i].Items = []domain.SaleItem{}
		}
	}
	return nil
}

// --- inventory ---

func (s *Store) CreateStockAdjustment(ctx context.Context, adj domain.StockAdjustment) (domain.StockAdjustment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var newStock int64
	if adj.Type == domain.AdjustmentIncrement {
		err = tx.QueryRowContext(ctx, `
			UPDATE product_variants
			SET stock = stock + $1
			WHERE id = $2
			RETURNING stock
		`, adj.Quantity, adj.VariantID).Scan(&newStock)
	} else {
		err = tx.QueryRowContext(ctx, `
			UPDATE product_variants
			SET stock = stock - $1
			WHERE id = $2 AND stock >= $1
			RETURNING stock
		`, adj.Quantity, adj.VariantID).Scan(&newStock)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if adj.Type == domain.AdjustmentDecrement {
				return domain.StockAdjustment{}, store.ErrNegativeStock
			}
			return domain.StockAdjustment{}, store.ErrNotFound
		}
		return domain.StockAdjustment{}, err
	}

	if adj.ID == "" {
		adj.ID = xid.New("adj")
	}
	adj.CurrentStock = newStock
	adj.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_adjustments (id, tenant_id, user_id, product_id, variant_id, type, reason,
		                               quantity, current_stock, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, adj.ID, adj.TenantID, adj.UserID, adj.ProductID, adj.VariantID, adj.Type, adj.Reason,
		adj.Quantity, adj.CurrentStock, nullString(adj.Notes), adj.CreatedAt)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.StockAdjustment{}, err
	}
	return adj, nil
}

// --- customers ---

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if c.ID == "" {
		c.ID = xid.New("cust")
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, name, email, phone, address, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, c.ID, c.TenantID, c.Name, nullString(c.Email), nullString(c.Phone),
		nullString(c.Address), nullString(c.Notes), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, store.ErrDuplicateContact
		}
		return domain.Customer{}, err
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, tenantID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, phone, address, notes, created_at, updated_at
		FROM customers
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, tenantID, id string) (domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, phone, address, notes, created_at, updated_at
		FROM customers
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Customer{}, err
		}
		return domain.Customer{}, store.ErrNotFound
	}
	return scanCustomer(rows)
}

func scanCustomer(rows *sql.Rows) (domain.Customer, error) {
	var c domain.Customer
	var email, phone, address, notes sql.NullString
	err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &email, &phone, &address, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Customer{}, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.Notes = notes.String
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $3, email = $4, phone = $5, address = $6, notes = $7, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, c.ID, c.TenantID, c.Name, nullString(c.Email), nullString(c.Phone),
		nullString(c.Address), nullString(c.Notes))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, store.ErrDuplicateContact
		}
		return domain.Customer{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Customer{}, store.ErrNotFound
	}
	return s.GetCustomer(ctx, c.TenantID, c.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM customers WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- expenses ---

func (s *Store) CreateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	if e.ID == "" {
		e.ID = xid.New("exp")
	}
	e.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, tenant_id, user_id, description, category, amount_cents, date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.TenantID, e.UserID, e.Description, nullString(e.Category), e.AmountCents, e.Date.UTC(), e.CreatedAt)
	if err != nil {
		return domain.Expense{}, err
	}
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, tenantID string) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, description, category, amount_cents, date, created_at
		FROM expenses
		WHERE tenant_id = $1
		ORDER BY date DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 32)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) GetExpense(ctx context.Context, tenantID, id string) (domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, description, category, amount_cents, date, created_at
		FROM expenses
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return domain.Expense{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Expense{}, err
		}
		return domain.Expense{}, store.ErrNotFound
	}
	return scanExpense(rows)
}

func scanExpense(rows *sql.Rows) (domain.Expense, error) {
	var e domain.Expense
	var category sql.NullString
	err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Description, &category, &e.AmountCents, &e.Date, &e.CreatedAt)
	if err != nil {
		return domain.Expense{}, err
	}
	e.Category = category.String
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses
		SET description = $3, category = $4, amount_cents = $5, date = $6
		WHERE id = $1 AND tenant_id = $2
	`, e.ID, e.TenantID, e.Description, nullString(e.Category), e.AmountCents, e.Date.UTC())
	if err != nil {
		return domain.Expense{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Expense{}, store.ErrNotFound
	}
	return s.GetExpense(ctx, e.TenantID, e.ID)
}

func (s *Store) DeleteExpense(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM expenses WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- analytics ---

func (s *Store) GetDashboardStats(ctx context.Context, tenantID string, now time.Time) (domain.DashboardStats, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	seriesStart := dayStart.AddDate(0, 0, -6)

	var stats domain.DashboardStats

	err := s.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(total_cents), 0), count(*)
		FROM sales
		WHERE tenant_id = $1 AND created_at >= $2
	`, tenantID, dayStart).Scan(&stats.TodaySalesCents, &stats.TodayOrders)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE p.tenant_id = $1 AND p.active = true AND v.stock < v.min_stock
	`, tenantID).Scan(&stats.LowStockCount)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	stats.SalesLast7Days = make([]domain.DailySales, 7)
	for i := 0; i < 7; i++ {
		stats.SalesLast7Days[i].Date = seriesStart.AddDate(0, 0, i).Format("2006-01-02")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('day', created_at)::date, coalesce(sum(total_cents), 0), count(*)
		FROM sales
		WHERE tenant_id = $1 AND created_at >= $2
		GROUP BY 1
	`, tenantID, seriesStart)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	for rows.Next() {
		var day time.Time
		var total, orders int64
		if err := rows.Scan(&day, &total, &orders); err != nil {
			_ = rows.Close()
			return domain.DashboardStats{}, err
		}
		idx := int(day.UTC().Sub(seriesStart).Hours() / 24)
		if idx >= 0 && idx < 7 {
			stats.SalesLast7Days[idx].TotalCents = total
			stats.SalesLast7Days[idx].Orders = orders
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return domain.DashboardStats{}, err
	}
	_ = rows.Close()

	stats.TopProducts = []domain.ProductRanking{}
	rows, err = s.db.QueryContext(ctx, `
		SELECT si.product_id, si.product_name, sum(si.quantity), sum(si.subtotal_cents)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.tenant_id = $1
		GROUP BY si.product_id, si.product_name
		ORDER BY sum(si.subtotal_cents) DESC, si.product_name
		LIMIT 5
	`, tenantID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	for rows.Next() {
		var r domain.ProductRanking
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.Quantity, &r.TotalCents); err != nil {
			_ = rows.Close()
			return domain.DashboardStats{}, err
		}
		stats.TopProducts = append(stats.TopProducts, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return domain.DashboardStats{}, err
	}
	_ = rows.Close()

	err = s.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(si.subtotal_cents - coalesce(v.cost_cents, 0) * si.quantity), 0)
		FROM sales s
		JOIN sale_items si ON si.sale_id = s.id
		LEFT JOIN product_variants v ON v.id = si.variant_id
		WHERE s.tenant_id = $1 AND s.created_at >= $2
	`, tenantID, monthStart).Scan(&stats.Monthly.GrossProfitCents)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(total_cents), 0)
		FROM sales
		WHERE tenant_id = $1 AND created_at >= $2
	`, tenantID, monthStart).Scan(&stats.Monthly.RevenueCents)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(amount_cents), 0)
		FROM expenses
		WHERE tenant_id = $1 AND date >= $2
	`, tenantID, monthStart).Scan(&stats.Monthly.ExpensesCents)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.Monthly.NetProfitCents = stats.Monthly.GrossProfitCents - stats.Monthly.ExpensesCents

	return stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
