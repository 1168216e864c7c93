package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"tiendita/backend/internal/domain"
	"tiendita/backend/internal/store"
)

// Requires a database with the application schema already applied.
func TestCreateSaleDecrementsStockAndPostsShift(t *testing.T) {
	databaseURL := os.Getenv("TIENDITA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TIENDITA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	tenantID := fmt.Sprintf("tenant-it-%d", stamp)
	userID := fmt.Sprintf("user-it-%d", stamp)
	productID := fmt.Sprintf("prod-it-%d", stamp)
	variantID := fmt.Sprintf("var-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_transactions WHERE shift_id IN (SELECT id FROM cash_shifts WHERE tenant_id = $1)`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id IN (SELECT id FROM sales WHERE tenant_id = $1)`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_counters WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_shifts WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, currency, created_at, updated_at)
		VALUES ($1, 'IT Tenant', $1, 'MXN', now(), now())
	`, tenantID); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, name, email, password_hash, role, created_at)
		VALUES ($1, $2, 'IT User', $1 || '@example.com', 'x', 'ADMIN', now())
	`, userID, tenantID); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, name, sku, active, created_at, updated_at)
		VALUES ($1, $2, 'Producto IT', 'SKU-IT-' || $1, true, now(), now())
	`, productID, tenantID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, name, price_cents, cost_cents, stock, min_stock, created_at)
		VALUES ($1, $2, 'Standard', 2000, 1000, 10, 2, now())
	`, variantID, productID); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	shift, err := s.CreateShift(ctx, domain.CashShift{
		TenantID:         tenantID,
		UserID:           userID,
		StartAmountCents: 100_00,
	})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}

	sale := domain.Sale{
		TenantID:      tenantID,
		UserID:        userID,
		PaymentMethod: domain.PaymentCash,
		SubtotalCents: 60_00,
		TotalCents:    60_00,
		Items: []domain.SaleItem{{
			ProductID:      productID,
			VariantID:      variantID,
			ProductName:    "Producto IT",
			ProductSKU:     "SKU-IT",
			Quantity:       3,
			UnitPriceCents: 20_00,
			SubtotalCents:  60_00,
		}},
	}
	created, err := s.CreateSale(ctx, sale, shift.ID)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.SaleNumber != "V-000001" {
		t.Errorf("sale number = %q, want V-000001", created.SaleNumber)
	}

	var stock int64
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 7 {
		t.Errorf("stock = %d, want 7", stock)
	}

	open, err := s.GetOpenShift(ctx, tenantID, userID)
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	if open.ExpectedAmountCents != 160_00 {
		t.Errorf("expected amount = %d, want 16000", open.ExpectedAmountCents)
	}

	// Overselling must roll back everything.
	oversell := domain.Sale{
		TenantID:      tenantID,
		UserID:        userID,
		PaymentMethod: domain.PaymentCash,
		SubtotalCents: 1000_00,
		TotalCents:    1000_00,
		Items: []domain.SaleItem{{
			ProductID:      productID,
			VariantID:      variantID,
			ProductName:    "Producto IT",
			ProductSKU:     "SKU-IT",
			Quantity:       50,
			UnitPriceCents: 20_00,
			SubtotalCents:  1000_00,
		}},
	}
	if _, err := s.CreateSale(ctx, oversell, shift.ID); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("oversell err = %v, want ErrInsufficientStock", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&stock); err != nil {
		t.Fatalf("re-read stock: %v", err)
	}
	if stock != 7 {
		t.Errorf("stock after rollback = %d, want 7", stock)
	}
}

func TestDeleteCategoryGuardsReferences(t *testing.T) {
	databaseURL := os.Getenv("TIENDITA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TIENDITA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	tenantID := fmt.Sprintf("tenant-cat-%d", stamp)
	categoryID := fmt.Sprintf("cat-it-%d", stamp)
	productID := fmt.Sprintf("prod-cat-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM categories WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, currency, created_at, updated_at)
		VALUES ($1, 'Cat Tenant', $1, 'MXN', now(), now())
	`, tenantID); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name, created_at)
		VALUES ($1, $2, 'Limpieza', now())
	`, categoryID, tenantID); err != nil {
		t.Fatalf("insert category: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, category_id, name, sku, active, created_at, updated_at)
		VALUES ($1, $2, $3, 'Cloro', 'SKU-CAT-' || $1, true, now(), now())
	`, productID, tenantID, categoryID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if err := s.DeleteCategory(ctx, tenantID, categoryID); !errors.Is(err, store.ErrCategoryInUse) {
		t.Fatalf("delete referenced category err = %v, want ErrCategoryInUse", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID); err != nil {
		t.Fatalf("remove product: %v", err)
	}
	if err := s.DeleteCategory(ctx, tenantID, categoryID); err != nil {
		t.Fatalf("delete unreferenced category: %v", err)
	}
	if err := s.DeleteCategory(ctx, tenantID, categoryID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete missing category err = %v, want ErrNotFound", err)
	}
}
