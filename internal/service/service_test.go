package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"tiendita/backend/internal/domain"
	"tiendita/backend/internal/store"
	"tiendita/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, context.Context) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, nil, time.Second, zap.NewNop())

	admin, err := repo.GetUserByEmail(context.Background(), "admin@tiendita.local")
	if err != nil {
		t.Fatalf("seeded admin missing: %v", err)
	}
	ctx := WithActor(context.Background(), domain.Actor{
		UserID:   admin.ID,
		TenantID: admin.TenantID,
		Email:    admin.Email,
		Role:     admin.Role,
	})
	return svc, repo, ctx
}

func createTestProduct(t *testing.T, svc *Service, ctx context.Context, name string, priceCents, stock int64) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(ctx, domain.CreateProductRequest{
		Name:       name,
		PriceCents: priceCents,
		CostCents:  priceCents / 2,
		Stock:      stock,
		MinStock:   2,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func cashSale(product domain.Product, qty, unitPrice, received int64) domain.CreateSaleRequest {
	return domain.CreateSaleRequest{
		Items: []domain.SaleItemRequest{{
			ProductID:      product.ID,
			VariantID:      product.Variants[0].ID,
			Quantity:       qty,
			UnitPriceCents: unitPrice,
		}},
		PaymentMethod:       domain.PaymentCash,
		ReceivedAmountCents: &received,
	}
}

func TestSaleDecrementsStockAndPostsToShift(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Cafe molido", 20_00, 10)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 100_00}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	sale, err := svc.CreateSale(ctx, cashSale(product, 3, 20_00, 60_00))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if sale.SaleNumber != "V-000001" {
		t.Errorf("sale number = %q, want V-000001", sale.SaleNumber)
	}
	if sale.TotalCents != 60_00 {
		t.Errorf("total = %d, want 6000", sale.TotalCents)
	}
	if sale.SubtotalCents != 60_00 || sale.TaxCents != 0 || sale.DiscountCents != 0 {
		t.Errorf("subtotal/tax/discount = %d/%d/%d, want 6000/0/0",
			sale.SubtotalCents, sale.TaxCents, sale.DiscountCents)
	}
	if len(sale.Items) != 1 || sale.Items[0].SubtotalCents != 60_00 {
		t.Errorf("unexpected items: %+v", sale.Items)
	}
	if sale.Items[0].ProductName != "Cafe molido" {
		t.Errorf("item snapshot name = %q", sale.Items[0].ProductName)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got := after.Variants[0].Stock; got != 7 {
		t.Errorf("stock after sale = %d, want 7", got)
	}

	shift, err := svc.GetCurrentShift(ctx)
	if err != nil {
		t.Fatalf("current shift: %v", err)
	}
	if shift.ExpectedAmountCents != 160_00 {
		t.Errorf("expected amount = %d, want 16000", shift.ExpectedAmountCents)
	}
}

func TestSaleNumbersIncreaseMonotonically(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Arroz 1kg", 30_00, 20)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 0}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	for i, want := range []string{"V-000001", "V-000002", "V-000003"} {
		sale, err := svc.CreateSale(ctx, cashSale(product, 1, 30_00, 30_00))
		if err != nil {
			t.Fatalf("sale %d: %v", i, err)
		}
		if sale.SaleNumber != want {
			t.Errorf("sale %d number = %q, want %q", i, sale.SaleNumber, want)
		}
	}
}

func TestOversellRejectedAndStateUntouched(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Aceite 1L", 45_00, 5)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 50_00}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	_, err := svc.CreateSale(ctx, cashSale(product, 6, 45_00, 300_00))
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got := after.Variants[0].Stock; got != 5 {
		t.Errorf("stock after rejected sale = %d, want 5", got)
	}

	shift, err := svc.GetCurrentShift(ctx)
	if err != nil {
		t.Fatalf("current shift: %v", err)
	}
	if shift.ExpectedAmountCents != 50_00 {
		t.Errorf("expected amount = %d, want 5000 (unchanged)", shift.ExpectedAmountCents)
	}

	sales, err := svc.ListSales(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Errorf("sales recorded after rejection: %d", len(sales))
	}
}

func TestSaleChecksCombinedQuantityAcrossLines(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Miel de abeja", 50_00, 5)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 0}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	// Two lines of 3 against stock 5: each line passes on its own, the
	// combined quantity must not.
	line := domain.SaleItemRequest{
		ProductID:      product.ID,
		VariantID:      product.Variants[0].ID,
		Quantity:       3,
		UnitPriceCents: 50_00,
	}
	received := int64(300_00)
	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items:               []domain.SaleItemRequest{line, line},
		PaymentMethod:       domain.PaymentCash,
		ReceivedAmountCents: &received,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got := after.Variants[0].Stock; got != 5 {
		t.Errorf("stock = %d, want 5 (untouched)", got)
	}
}

func TestSaleLineWithoutVariantLeavesStockAlone(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Flete local", 30_00, 5)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 100_00}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	received := int64(30_00)
	sale, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items: []domain.SaleItemRequest{{
			ProductID:      product.ID,
			Quantity:       1,
			UnitPriceCents: 30_00,
		}},
		PaymentMethod:       domain.PaymentCash,
		ReceivedAmountCents: &received,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.Items[0].VariantID != "" {
		t.Errorf("variantless line bound to variant %q", sale.Items[0].VariantID)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got := after.Variants[0].Stock; got != 5 {
		t.Errorf("stock = %d, want 5 (untouched)", got)
	}

	shift, err := svc.GetCurrentShift(ctx)
	if err != nil {
		t.Fatalf("current shift: %v", err)
	}
	if shift.ExpectedAmountCents != 130_00 {
		t.Errorf("expected amount = %d, want 13000", shift.ExpectedAmountCents)
	}
}

func TestSellingExactStockLeavesZero(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Leche entera", 25_00, 4)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 0}); err != nil {
		t.Fatalf("open shift: %v", err)
	}
	if _, err := svc.CreateSale(ctx, cashSale(product, 4, 25_00, 100_00)); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	after, _ := svc.GetProduct(ctx, product.ID)
	if got := after.Variants[0].Stock; got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}
}

func TestSaleRequiresOpenShift(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Pan dulce", 12_00, 10)

	_, err := svc.CreateSale(ctx, cashSale(product, 1, 12_00, 12_00))
	if !errors.Is(err, store.ErrNoOpenShift) {
		t.Fatalf("err = %v, want ErrNoOpenShift", err)
	}
}

func TestSecondOpenShiftRejected(t *testing.T) {
	svc, _, ctx := newTestService(t)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 10_00}); err != nil {
		t.Fatalf("first open: %v", err)
	}
	_, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 10_00})
	if !errors.Is(err, store.ErrShiftAlreadyOpen) {
		t.Fatalf("err = %v, want ErrShiftAlreadyOpen", err)
	}
}

func TestCloseShiftRecordsDiscrepancyWithoutBlocking(t *testing.T) {
	svc, _, ctx := newTestService(t)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 100_00}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	closed, err := svc.CloseShift(ctx, domain.CloseShiftRequest{CountedAmountCents: 95_00})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.Status != domain.ShiftClosed {
		t.Errorf("status = %q, want CLOSED", closed.Status)
	}
	if closed.DifferenceCents == nil || *closed.DifferenceCents != -5_00 {
		t.Errorf("difference = %v, want -500", closed.DifferenceCents)
	}
	if closed.EndTime == nil {
		t.Error("end time not set")
	}

	_, err = svc.CloseShift(ctx, domain.CloseShiftRequest{CountedAmountCents: 95_00})
	if !errors.Is(err, store.ErrShiftNotOpen) {
		t.Fatalf("second close err = %v, want ErrShiftNotOpen", err)
	}
}

func TestImmediateCloseMatchesStartAmount(t *testing.T) {
	svc, _, ctx := newTestService(t)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 70_00}); err != nil {
		t.Fatalf("open shift: %v", err)
	}
	closed, err := svc.CloseShift(ctx, domain.CloseShiftRequest{CountedAmountCents: 70_00})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.ExpectedAmountCents != 70_00 {
		t.Errorf("expected = %d, want 7000", closed.ExpectedAmountCents)
	}
	if closed.DifferenceCents == nil || *closed.DifferenceCents != 0 {
		t.Errorf("difference = %v, want 0", closed.DifferenceCents)
	}
}

func TestAdjustmentToZeroThenDecrementFails(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Detergente", 35_00, 6)

	adj, err := svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		ProductID: product.ID,
		Type:      domain.AdjustmentDecrement,
		Reason:    domain.ReasonDamaged,
		Quantity:  6,
	})
	if err != nil {
		t.Fatalf("adjustment: %v", err)
	}
	if adj.CurrentStock != 0 {
		t.Errorf("current stock = %d, want 0", adj.CurrentStock)
	}

	_, err = svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		ProductID: product.ID,
		Type:      domain.AdjustmentDecrement,
		Reason:    domain.ReasonCorrection,
		Quantity:  1,
	})
	if !errors.Is(err, store.ErrNegativeStock) {
		t.Fatalf("err = %v, want ErrNegativeStock", err)
	}
}

func TestAdjustmentIncrementRaisesStock(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Azucar 1kg", 22_00, 3)

	adj, err := svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		ProductID: product.ID,
		Type:      domain.AdjustmentIncrement,
		Reason:    domain.ReasonPurchase,
		Quantity:  9,
	})
	if err != nil {
		t.Fatalf("adjustment: %v", err)
	}
	if adj.CurrentStock != 12 {
		t.Errorf("current stock = %d, want 12", adj.CurrentStock)
	}
}

func TestCashPaymentComputesChange(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Jugo natural", 18_00, 10)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 0}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	sale, err := svc.CreateSale(ctx, cashSale(product, 2, 18_00, 50_00))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.ChangeAmountCents == nil || *sale.ChangeAmountCents != 14_00 {
		t.Errorf("change = %v, want 1400", sale.ChangeAmountCents)
	}

	_, err = svc.CreateSale(ctx, cashSale(product, 2, 18_00, 10_00))
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("underpaid err = %v, want ErrInvalidPayment", err)
	}
}

func TestCardPaymentRejectsReceivedAmount(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Queso fresco", 40_00, 10)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 0}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	received := int64(40_00)
	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items: []domain.SaleItemRequest{{
			ProductID:      product.ID,
			Quantity:       1,
			UnitPriceCents: 40_00,
		}},
		PaymentMethod:       domain.PaymentCard,
		ReceivedAmountCents: &received,
	})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("err = %v, want ErrInvalidPayment", err)
	}
}

func TestGetSaleRoundTrip(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Tortillas", 15_00, 10)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 0}); err != nil {
		t.Fatalf("open shift: %v", err)
	}
	created, err := svc.CreateSale(ctx, cashSale(product, 2, 15_00, 30_00))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	fetched, err := svc.GetSale(ctx, created.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if fetched.TotalCents != created.TotalCents || fetched.SaleNumber != created.SaleNumber {
		t.Errorf("fetched %+v does not match created %+v", fetched, created)
	}
	if len(fetched.Items) != len(created.Items) {
		t.Errorf("items = %d, want %d", len(fetched.Items), len(created.Items))
	}
}

func TestUsersCannotDeleteThemselves(t *testing.T) {
	svc, _, ctx := newTestService(t)

	actor, _ := ActorFromContext(ctx)
	err := svc.DeleteUser(ctx, actor.UserID)
	if !errors.Is(err, ErrCannotDeleteSelf) {
		t.Fatalf("err = %v, want ErrCannotDeleteSelf", err)
	}
}

func TestCustomerContactUniquePerTenant(t *testing.T) {
	svc, _, ctx := newTestService(t)

	if _, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{
		Name:  "Maria Lopez",
		Email: "maria@example.com",
	}); err != nil {
		t.Fatalf("first customer: %v", err)
	}

	_, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{
		Name:  "Otra Maria",
		Email: "maria@example.com",
	})
	if !errors.Is(err, store.ErrDuplicateContact) {
		t.Fatalf("err = %v, want ErrDuplicateContact", err)
	}
}

func TestCategoryDeleteBlockedWhileInUse(t *testing.T) {
	svc, _, ctx := newTestService(t)

	category, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Bebidas"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := svc.CreateProduct(ctx, domain.CreateProductRequest{
		Name:       "Agua mineral",
		CategoryID: category.ID,
		PriceCents: 10_00,
		Stock:      5,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	err = svc.DeleteCategory(ctx, category.ID)
	if !errors.Is(err, store.ErrCategoryInUse) {
		t.Fatalf("err = %v, want ErrCategoryInUse", err)
	}
}

func TestProductImportUpsertsBySKU(t *testing.T) {
	svc, _, ctx := newTestService(t)

	rows := []domain.ImportProductRequest{
		{Name: "Harina", SKU: "HAR0001", CategoryName: "Despensa", PriceCents: 28_00, Stock: 10, MinStock: 3},
		{Name: "Frijol", SKU: "FRI0001", CategoryName: "Despensa", PriceCents: 32_00, Stock: 8, MinStock: 3},
	}
	result, err := svc.ImportProducts(ctx, rows)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 {
		t.Errorf("result = %+v, want 2 created", result)
	}

	rows[0].PriceCents = 30_00
	result, err = svc.ImportProducts(ctx, rows[:1])
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("result = %+v, want 1 updated", result)
	}
}

func TestDashboardStatsCountTodaySales(t *testing.T) {
	svc, _, ctx := newTestService(t)
	product := createTestProduct(t, svc, ctx, "Cereal", 55_00, 20)

	if _, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartAmountCents: 0}); err != nil {
		t.Fatalf("open shift: %v", err)
	}
	if _, err := svc.CreateSale(ctx, cashSale(product, 2, 55_00, 110_00)); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	stats, err := svc.GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TodaySalesCents != 110_00 {
		t.Errorf("today sales = %d, want 11000", stats.TodaySalesCents)
	}
	if stats.TodayOrders != 1 {
		t.Errorf("today orders = %d, want 1", stats.TodayOrders)
	}
	if len(stats.TopProducts) == 0 || stats.TopProducts[0].ProductID != product.ID {
		t.Errorf("top products = %+v, want %s first", stats.TopProducts, product.ID)
	}
}
