// Package memory implements store.Repository with mutex-guarded maps. It
// backs local development and the service tests; production deployments
// set DATABASE_URL and get the postgres store instead.
package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tiendita/backend/internal/domain"
	"tiendita/backend/internal/store"
	"tiendita/backend/internal/xid"
)

type Store struct {
	mu             sync.RWMutex
	tenantsByID    map[string]domain.Tenant
	usersByID      map[string]domain.User
	categoriesByID map[string]domain.Category
	productsByID   map[string]domain.Product
	shiftsByID     map[string]domain.CashShift
	cashTxns       []domain.CashTransaction
	salesByID      map[string]domain.Sale
	adjustments    []domain.StockAdjustment
	customersByID  map[string]domain.Customer
	expensesByID   map[string]domain.Expense
	saleCounters   map[string]int64
}

func New() *Store {
	return &Store{
		tenantsByID:    make(map[string]domain.Tenant),
		usersByID:      make(map[string]domain.User),
		categoriesByID: make(map[string]domain.Category),
		productsByID:   make(map[string]domain.Product),
		shiftsByID:     make(map[string]domain.CashShift),
		cashTxns:       make([]domain.CashTransaction, 0, 64),
		salesByID:      make(map[string]domain.Sale),
		adjustments:    make([]domain.StockAdjustment, 0, 32),
		customersByID:  make(map[string]domain.Customer),
		expensesByID:   make(map[string]domain.Expense),
		saleCounters:   make(map[string]int64),
	}
}

// NewSeeded builds a store with one demo tenant and two accounts so the
// API is usable out of the box. Seed credentials come from
// SEED_ADMIN_PASSWORD / SEED_CASHIER_PASSWORD; dev defaults otherwise.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	tenant := domain.Tenant{
		ID:        "tenant-demo",
		Name:      "Tiendita Demo",
		Slug:      "tiendita-demo",
		Currency:  "MXN",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tenantsByID[tenant.ID] = tenant

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}
	for _, u := range []struct {
		name, email, password, role string
	}{
		{"Admin Demo", "admin@tiendita.local", adminPwd, domain.RoleAdmin},
		{"Cajero Demo", "cajero@tiendita.local", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		id := xid.New("user")
		s.usersByID[id] = domain.User{
			ID:           id,
			TenantID:     tenant.ID,
			Name:         u.name,
			Email:        u.email,
			PasswordHash: string(hash),
			Role:         u.role,
			CreatedAt:    now,
		}
	}

	cat := domain.Category{ID: xid.New("cat"), TenantID: tenant.ID, Name: "Abarrotes", CreatedAt: now}
	s.categoriesByID[cat.ID] = cat

	for _, p := range []struct {
		name, sku   string
		price, cost int64
		stock, min  int64
	}{
		{"Refresco 600ml", "REF0600", 18_00, 11_00, 48, 12},
		{"Galletas surtidas", "GAL0001", 22_50, 14_00, 30, 8},
		{"Jabón de tocador", "JAB0001", 15_00, 9_50, 24, 6},
	} {
		prodID := xid.New("prod")
		s.productsByID[prodID] = domain.Product{
			ID:         prodID,
			TenantID:   tenant.ID,
			CategoryID: cat.ID,
			Name:       p.name,
			SKU:        p.sku,
			Active:     true,
			Variants: []domain.ProductVariant{{
				ID:         xid.New("var"),
				ProductID:  prodID,
				Name:       "Standard",
				SKU:        p.sku,
				PriceCents: p.price,
				CostCents:  p.cost,
				Stock:      p.stock,
				MinStock:   p.min,
				CreatedAt:  now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(u.Email)
	for _, existing := range s.usersByID {
		if strings.ToLower(existing.Email) == lower {
			return domain.User{}, store.ErrDuplicateEmail
		}
	}
	if u.ID == "" {
		u.ID = xid.New("user")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = lower
	s.usersByID[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, u := range s.usersByID {
		if strings.ToLower(u.Email) == lower {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByID[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context, tenantID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		if u.TenantID == tenantID {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) DeleteUser(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[id]
	if !ok || u.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.usersByID, id)
	return nil
}

// --- tenants ---

func (s *Store) GetTenant(_ context.Context, id string) (domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenantsByID[id]
	if !ok {
		return domain.Tenant{}, store.ErrNotFound
	}
	return t, nil
}

func (s *Store) UpdateTenant(_ context.Context, t domain.Tenant) (domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenantsByID[t.ID]; !ok {
		return domain.Tenant{}, store.ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	s.tenantsByID[t.ID] = t
	return t, nil
}

// --- categories ---

func (s *Store) CreateCategory(_ context.Context, c domain.Category) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = xid.New("cat")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.categoriesByID[c.ID] = c
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, tenantID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := make([]domain.Category, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		if c.TenantID != tenantID {
			continue
		}
		c.ProductCount = 0
		for _, p := range s.productsByID {
			if p.TenantID == tenantID && p.CategoryID == c.ID {
				c.ProductCount++
			}
		}
		cats = append(cats, c)
	}
	slices.SortFunc(cats, func(a, b domain.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return cats, nil
}

func (s *Store) DeleteCategory(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categoriesByID[id]
	if !ok || c.TenantID != tenantID {
		return store.ErrNotFound
	}
	for _, p := range s.productsByID {
		if p.TenantID == tenantID && p.CategoryID == id {
			return store.ErrCategoryInUse
		}
	}
	delete(s.categoriesByID, id)
	return nil
}

// --- products ---

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.productsByID {
		if existing.TenantID == p.TenantID && strings.EqualFold(existing.SKU, p.SKU) {
			return domain.Product{}, store.ErrDuplicateSKU
		}
	}
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = xid.New("prod")
	}
	for i := range p.Variants {
		if p.Variants[i].ID == "" {
			p.Variants[i].ID = xid.New("var")
		}
		p.Variants[i].ProductID = p.ID
		if p.Variants[i].CreatedAt.IsZero() {
			p.Variants[i].CreatedAt = now
		}
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	s.productsByID[p.ID] = p
	return s.withCategory(p), nil
}

func (s *Store) ListProducts(_ context.Context, tenantID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if p.TenantID == tenantID && p.Active {
			products = append(products, s.withCategory(p))
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, tenantID, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok || p.TenantID != tenantID {
		return domain.Product{}, store.ErrNotFound
	}
	return s.withCategory(p), nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.productsByID[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return domain.Product{}, store.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.productsByID[p.ID] = p
	return s.withCategory(p), nil
}

func (s *Store) DeleteProduct(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[id]
	if !ok || p.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	return nil
}

func (s *Store) UpsertProductBySKU(_ context.Context, p domain.Product) (domain.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range s.productsByID {
		if existing.TenantID != p.TenantID || !strings.EqualFold(existing.SKU, p.SKU) {
			continue
		}
		existing.Name = p.Name
		existing.CategoryID = p.CategoryID
		if len(existing.Variants) > 0 && len(p.Variants) > 0 {
			existing.Variants[0].PriceCents = p.Variants[0].PriceCents
			existing.Variants[0].CostCents = p.Variants[0].CostCents
			existing.Variants[0].Stock = p.Variants[0].Stock
			existing.Variants[0].MinStock = p.Variants[0].MinStock
		}
		existing.UpdatedAt = now
		s.productsByID[id] = existing
		return s.withCategory(existing), false, nil
	}

	if p.ID == "" {
		p.ID = xid.New("prod")
	}
	for i := range p.Variants {
		if p.Variants[i].ID == "" {
			p.Variants[i].ID = xid.New("var")
		}
		p.Variants[i].ProductID = p.ID
		p.Variants[i].CreatedAt = now
	}
	p.Active = true
	p.CreatedAt = now
	p.UpdatedAt = now
	s.productsByID[p.ID] = p
	return s.withCategory(p), true, nil
}

// withCategory attaches the category snapshot; callers hold the lock.
func (s *Store) withCategory(p domain.Product) domain.Product {
	p.Variants = slices.Clone(p.Variants)
	if p.CategoryID != "" {
		if c, ok := s.categoriesByID[p.CategoryID]; ok {
			cc := c
			p.Category = &cc
		}
	}
	return p
}

// --- cash shifts ---

func (s *Store) GetOpenShift(_ context.Context, tenantID, userID string) (domain.CashShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sh := range s.shiftsByID {
		if sh.TenantID == tenantID && sh.UserID == userID && sh.Status == domain.ShiftOpen {
			return sh, nil
		}
	}
	return domain.CashShift{}, store.ErrNotFound
}

func (s *Store) CreateShift(_ context.Context, sh domain.CashShift) (domain.CashShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shiftsByID {
		if existing.TenantID == sh.TenantID && existing.UserID == sh.UserID && existing.Status == domain.ShiftOpen {
			return domain.CashShift{}, store.ErrShiftAlreadyOpen
		}
	}
	if sh.ID == "" {
		sh.ID = xid.New("shift")
	}
	sh.Status = domain.ShiftOpen
	sh.ExpectedAmountCents = sh.StartAmountCents
	if sh.StartTime.IsZero() {
		sh.StartTime = time.Now().UTC()
	}
	s.shiftsByID[sh.ID] = sh
	return sh, nil
}

func (s *Store) CloseShift(_ context.Context, tenantID, shiftID string, endAmountCents int64, closedAt time.Time) (domain.CashShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shiftsByID[shiftID]
	if !ok || sh.TenantID != tenantID {
		return domain.CashShift{}, store.ErrNotFound
	}
	if sh.Status != domain.ShiftOpen {
		return domain.CashShift{}, store.ErrShiftNotOpen
	}
	diff := endAmountCents - sh.ExpectedAmountCents
	sh.Status = domain.ShiftClosed
	sh.EndAmountCents = &endAmountCents
	sh.DifferenceCents = &diff
	closedAt = closedAt.UTC()
	sh.EndTime = &closedAt
	s.shiftsByID[shiftID] = sh
	return sh, nil
}

// --- sales ---

// CreateSale applies all effects of a sale under one lock: assign the
// tenant's next sale number, guard and decrement variant stock, post the
// shift cash transaction and bump its expected amount. Validation happens
// before any mutation so a rejected sale leaves nothing behind.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale, shiftID string) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shiftsByID[shiftID]
	if !ok || sh.TenantID != sale.TenantID {
		return domain.Sale{}, store.ErrNoOpenShift
	}
	if sh.Status != domain.ShiftOpen {
		return domain.Sale{}, store.ErrShiftNotOpen
	}

	type stockKey struct {
		productID string
		variant   int
	}
	requested := make(map[stockKey]int64, len(sale.Items))
	for _, item := range sale.Items {
		if item.VariantID == "" {
			continue
		}
		p, ok := s.productsByID[item.ProductID]
		if !ok || p.TenantID != sale.TenantID {
			return domain.Sale{}, store.ErrNotFound
		}
		idx := -1
		for i := range p.Variants {
			if p.Variants[i].ID == item.VariantID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return domain.Sale{}, store.ErrNotFound
		}
		// Lines hitting the same variant are checked against their
		// combined quantity, not line by line.
		k := stockKey{productID: item.ProductID, variant: idx}
		requested[k] += item.Quantity
		if p.Variants[idx].Stock < requested[k] {
			return domain.Sale{}, fmt.Errorf("%w: %s (disponible %d, solicitado %d)",
				store.ErrInsufficientStock, item.ProductName, p.Variants[idx].Stock, requested[k])
		}
	}

	now := time.Now().UTC()
	for k, qty := range requested {
		p := s.productsByID[k.productID]
		p.Variants[k.variant].Stock -= qty
		p.UpdatedAt = now
		s.productsByID[k.productID] = p
	}

	s.saleCounters[sale.TenantID]++
	sale.SaleNumber = fmt.Sprintf("V-%06d", s.saleCounters[sale.TenantID])
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	sale.CreatedAt = now
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("item")
		}
		sale.Items[i].SaleID = sale.ID
	}

	s.cashTxns = append(s.cashTxns, domain.CashTransaction{
		ID:          xid.New("ctx"),
		ShiftID:     shiftID,
		Type:        domain.CashTxnSale,
		AmountCents: sale.TotalCents,
		Reason:      "Venta " + sale.SaleNumber,
		CreatedAt:   now,
	})
	sh.ExpectedAmountCents += sale.TotalCents
	s.shiftsByID[shiftID] = sh

	s.salesByID[sale.ID] = sale
	return sale, nil
}

func (s *Store) ListSales(_ context.Context, tenantID string, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if sale.TenantID != tenantID {
			continue
		}
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
			continue
		}
		sale.Items = slices.Clone(sale.Items)
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, tenantID, id string) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok || sale.TenantID != tenantID {
		return domain.Sale{}, store.ErrNotFound
	}
	sale.Items = slices.Clone(sale.Items)
	return sale, nil
}

// --- inventory ---

func (s *Store) CreateStockAdjustment(_ context.Context, adj domain.StockAdjustment) (domain.StockAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[adj.ProductID]
	if !ok || p.TenantID != adj.TenantID {
		return domain.StockAdjustment{}, store.ErrNotFound
	}
	idx := -1
	for i := range p.Variants {
		if p.Variants[i].ID == adj.VariantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.StockAdjustment{}, store.ErrNoVariant
	}

	newStock := p.Variants[idx].Stock
	switch adj.Type {
	case domain.AdjustmentIncrement:
		newStock += adj.Quantity
	case domain.AdjustmentDecrement:
		newStock -= adj.Quantity
	}
	if newStock < 0 {
		return domain.StockAdjustment{}, fmt.Errorf("%w: %s (disponible %d, ajuste %d)",
			store.ErrNegativeStock, p.Name, p.Variants[idx].Stock, adj.Quantity)
	}

	now := time.Now().UTC()
	p.Variants[idx].Stock = newStock
	p.UpdatedAt = now
	s.productsByID[adj.ProductID] = p

	if adj.ID == "" {
		adj.ID = xid.New("adj")
	}
	adj.CurrentStock = newStock
	adj.CreatedAt = now
	s.adjustments = append(s.adjustments, adj)
	return adj, nil
}

// --- customers ---

func (s *Store) CreateCustomer(_ context.Context, c domain.Customer) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCustomerContact(c); err != nil {
		return domain.Customer{}, err
	}
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = xid.New("cust")
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	s.customersByID[c.ID] = c
	return c, nil
}

func (s *Store) ListCustomers(_ context.Context, tenantID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if c.TenantID == tenantID {
			customers = append(customers, c)
		}
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, tenantID, id string) (domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok || c.TenantID != tenantID {
		return domain.Customer{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c domain.Customer) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customersByID[c.ID]
	if !ok || existing.TenantID != c.TenantID {
		return domain.Customer{}, store.ErrNotFound
	}
	if err := s.checkCustomerContact(c); err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.customersByID[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCustomer(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customersByID[id]
	if !ok || c.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.customersByID, id)
	return nil
}

// checkCustomerContact enforces per-tenant email/phone uniqueness; callers
// hold the lock.
func (s *Store) checkCustomerContact(c domain.Customer) error {
	for _, existing := range s.customersByID {
		if existing.TenantID != c.TenantID || existing.ID == c.ID {
			continue
		}
		if c.Email != "" && strings.EqualFold(existing.Email, c.Email) {
			return store.ErrDuplicateContact
		}
		if c.Phone != "" && existing.Phone == c.Phone {
			return store.ErrDuplicateContact
		}
	}
	return nil
}

// --- expenses ---

func (s *Store) CreateExpense(_ context.Context, e domain.Expense) (domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = xid.New("exp")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.expensesByID[e.ID] = e
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, tenantID string) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expensesByID))
	for _, e := range s.expensesByID {
		if e.TenantID == tenantID {
			expenses = append(expenses, e)
		}
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return b.Date.Compare(a.Date)
	})
	return expenses, nil
}

func (s *Store) GetExpense(_ context.Context, tenantID, id string) (domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expensesByID[id]
	if !ok || e.TenantID != tenantID {
		return domain.Expense{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e domain.Expense) (domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expensesByID[e.ID]
	if !ok || existing.TenantID != e.TenantID {
		return domain.Expense{}, store.ErrNotFound
	}
	e.CreatedAt = existing.CreatedAt
	s.expensesByID[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expensesByID[id]
	if !ok || e.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.expensesByID, id)
	return nil
}

// --- analytics ---

func (s *Store) GetDashboardStats(_ context.Context, tenantID string, now time.Time) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	seriesStart := dayStart.AddDate(0, 0, -6)

	stats := domain.DashboardStats{
		SalesLast7Days: make([]domain.DailySales, 7),
		TopProducts:    []domain.ProductRanking{},
	}
	for i := 0; i < 7; i++ {
		stats.SalesLast7Days[i].Date = seriesStart.AddDate(0, 0, i).Format("2006-01-02")
	}

	// cost per variant for gross profit
	costByVariant := make(map[string]int64)
	for _, p := range s.productsByID {
		if p.TenantID != tenantID {
			continue
		}
		for _, v := range p.Variants {
			costByVariant[v.ID] = v.CostCents
			if p.Active && v.Stock < v.MinStock {
				stats.LowStockCount++
			}
		}
	}

	ranking := make(map[string]*domain.ProductRanking)
	for _, sale := range s.salesByID {
		if sale.TenantID != tenantID {
			continue
		}
		created := sale.CreatedAt.UTC()
		if !created.Before(dayStart) {
			stats.TodaySalesCents += sale.TotalCents
			stats.TodayOrders++
		}
		if !created.Before(seriesStart) {
			idx := int(created.Sub(seriesStart).Hours() / 24)
			if idx >= 0 && idx < 7 {
				stats.SalesLast7Days[idx].TotalCents += sale.TotalCents
				stats.SalesLast7Days[idx].Orders++
			}
		}
		if !created.Before(monthStart) {
			stats.Monthly.RevenueCents += sale.TotalCents
			for _, item := range sale.Items {
				stats.Monthly.GrossProfitCents += item.SubtotalCents - costByVariant[item.VariantID]*item.Quantity
			}
		}
		for _, item := range sale.Items {
			r, ok := ranking[item.ProductID]
			if !ok {
				r = &domain.ProductRanking{ProductID: item.ProductID, ProductName: item.ProductName}
				ranking[item.ProductID] = r
			}
			r.Quantity += item.Quantity
			r.TotalCents += item.SubtotalCents
		}
	}

	for _, e := range s.expensesByID {
		if e.TenantID == tenantID && !e.Date.UTC().Before(monthStart) {
			stats.Monthly.ExpensesCents += e.AmountCents
		}
	}
	stats.Monthly.NetProfitCents = stats.Monthly.GrossProfitCents - stats.Monthly.ExpensesCents

	top := make([]domain.ProductRanking, 0, len(ranking))
	for _, r := range ranking {
		top = append(top, *r)
	}
	slices.SortFunc(top, func(a, b domain.ProductRanking) int {
		switch {
		case a.TotalCents > b.TotalCents:
			return -1
		case a.TotalCents < b.TotalCents:
			return 1
		default:
			return strings.Compare(a.ProductName, b.ProductName)
		}
	})
	if len(top) > 5 {
		top = top[:5]
	}
	stats.TopProducts = top

	return stats, nil
}

func (s *Store) Close() error { return nil }
