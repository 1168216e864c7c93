package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"tiendita/backend/internal/domain"
)

func decodeInto[T any](t *testing.T, body []byte, key string) T {
	t.Helper()
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var out T
	if err := json.Unmarshal(envelope[key], &out); err != nil {
		t.Fatalf("decode %q: %v", key, err)
	}
	return out
}

func TestSaleFlowOverHTTP(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name":        "Cafe de olla",
		"price_cents": 25_00,
		"cost_cents":  12_00,
		"stock":       10,
		"min_stock":   2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: status %d body %s", rec.Code, rec.Body.String())
	}
	product := decodeInto[domain.Product](t, rec.Body.Bytes(), "product")
	if len(product.Variants) != 1 || product.Variants[0].Name != "Standard" {
		t.Fatalf("expected one Standard variant, got %+v", product.Variants)
	}
	if product.SKU == "" {
		t.Fatal("auto-generated SKU missing")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cash-shifts/open", token, map[string]any{
		"start_amount_cents": 100_00,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open shift: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items": []map[string]any{{
			"product_id":       product.ID,
			"variant_id":       product.Variants[0].ID,
			"quantity":         3,
			"unit_price_cents": 25_00,
		}},
		"payment_method":        "CASH",
		"received_amount_cents": 100_00,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: status %d body %s", rec.Code, rec.Body.String())
	}
	sale := decodeInto[domain.Sale](t, rec.Body.Bytes(), "sale")
	if sale.SaleNumber != "V-000001" {
		t.Errorf("sale number = %q, want V-000001", sale.SaleNumber)
	}
	if sale.TotalCents != 75_00 || sale.SubtotalCents != 75_00 {
		t.Errorf("total/subtotal = %d/%d, want 7500/7500", sale.TotalCents, sale.SubtotalCents)
	}
	if sale.ChangeAmountCents == nil || *sale.ChangeAmountCents != 25_00 {
		t.Errorf("change = %v, want 2500", sale.ChangeAmountCents)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+product.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: status %d", rec.Code)
	}
	refreshed := decodeInto[domain.Product](t, rec.Body.Bytes(), "product")
	if refreshed.Variants[0].Stock != 7 {
		t.Errorf("stock = %d, want 7", refreshed.Variants[0].Stock)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cash-shifts/current", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current shift: status %d", rec.Code)
	}
	shift := decodeInto[domain.CashShift](t, rec.Body.Bytes(), "shift")
	if shift.ExpectedAmountCents != 175_00 {
		t.Errorf("expected amount = %d, want 17500", shift.ExpectedAmountCents)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+sale.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale: status %d", rec.Code)
	}

	// Sales are immutable once recorded.
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/sales/"+sale.ID, token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("delete sale: status %d, want 405", rec.Code)
	}
}

func TestSaleWithoutShiftReturns400(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "Sin turno", "price_cents": 10_00, "stock": 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: status %d", rec.Code)
	}
	product := decodeInto[domain.Product](t, rec.Body.Bytes(), "product")

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items": []map[string]any{{
			"product_id":       product.ID,
			"quantity":         1,
			"unit_price_cents": 10_00,
		}},
		"payment_method":        "CASH",
		"received_amount_cents": 10_00,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestSaleValidationRejectsEmptyItems(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":          []map[string]any{},
		"payment_method": "CASH",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSaleValidationRejectsUnknownPaymentMethod(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items": []map[string]any{{
			"product_id":       "prod_x",
			"quantity":         1,
			"unit_price_cents": 10_00,
		}},
		"payment_method": "BARTER",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCurrentShiftNullWhenNoneOpen(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/cash-shifts/current", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope["shift"] != nil {
		t.Errorf("shift = %v, want null", envelope["shift"])
	}
}

func TestAdjustmentOverHTTP(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "Velas", "price_cents": 8_00, "stock": 4,
	})
	product := decodeInto[domain.Product](t, rec.Body.Bytes(), "product")

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjustments", token, map[string]any{
		"product_id": product.ID,
		"type":       "DECREMENT",
		"reason":     "DAMAGED",
		"quantity":   4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("adjustment: status %d body %s", rec.Code, rec.Body.String())
	}
	adj := decodeInto[domain.StockAdjustment](t, rec.Body.Bytes(), "adjustment")
	if adj.CurrentStock != 0 {
		t.Errorf("current stock = %d, want 0", adj.CurrentStock)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjustments", token, map[string]any{
		"product_id": product.ID,
		"type":       "DECREMENT",
		"reason":     "CORRECTION",
		"quantity":   1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative stock adjustment: status %d, want 400", rec.Code)
	}
}

func TestTenantProfileFromClaims(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/tenants/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get tenant: status %d", rec.Code)
	}
	tenant := decodeInto[domain.Tenant](t, rec.Body.Bytes(), "tenant")
	if tenant.ID == "" {
		t.Fatal("tenant id missing")
	}

	newName := "Tiendita Renombrada"
	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/tenants/me", token, map[string]any{
		"name": newName,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch tenant: status %d body %s", rec.Code, rec.Body.String())
	}
	updated := decodeInto[domain.Tenant](t, rec.Body.Bytes(), "tenant")
	if updated.Name != newName {
		t.Errorf("name = %q, want %q", updated.Name, newName)
	}
}

func TestUserSelfDeleteForbidden(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users: status %d", rec.Code)
	}
	users := decodeInto[[]domain.UserSummary](t, rec.Body.Bytes(), "users")
	var selfID string
	for _, u := range users {
		if u.Email == "admin@tiendita.local" {
			selfID = u.ID
		}
	}
	if selfID == "" {
		t.Fatal("admin not in user list")
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/users/"+selfID, token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self delete: status %d, want 403", rec.Code)
	}
}

func TestDashboardOverHTTP(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := login(t, handler, "admin@tiendita.local", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/analytics/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status %d body %s", rec.Code, rec.Body.String())
	}
	stats := decodeInto[domain.DashboardStats](t, rec.Body.Bytes(), "dashboard")
	if len(stats.SalesLast7Days) != 7 {
		t.Errorf("series length = %d, want 7", len(stats.SalesLast7Days))
	}
}

func TestHealthzOpen(t *testing.T) {
	handler, _ := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}
