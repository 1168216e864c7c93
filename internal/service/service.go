// Package service implements the business rules on top of store.Repository.
// Handlers decode and authenticate; the service decides; the store persists.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tiendita/backend/internal/cache"
	"tiendita/backend/internal/domain"
	"tiendita/backend/internal/store"
	"tiendita/backend/internal/xid"
)

var (
	ErrCannotDeleteSelf = errors.New("users cannot delete their own account")
	ErrInvalidPayment   = errors.New("invalid payment details")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	dashboard    cache.DashboardCache
	dashboardTTL time.Duration
	logger       *zap.Logger
}

func New(repo store.Repository, dashboard cache.DashboardCache, dashboardTTL time.Duration, logger *zap.Logger) *Service {
	if dashboard == nil {
		dashboard = cache.NoopDashboardCache{}
	}
	if dashboardTTL <= 0 {
		dashboardTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:         repo,
		dashboard:    dashboard,
		dashboardTTL: dashboardTTL,
		logger:       logger,
	}
}

func (s *Service) actor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.TenantID == "" {
		return domain.Actor{}, fmt.Errorf("no authenticated actor in context")
	}
	return actor, nil
}

// --- cash shifts ---

func (s *Service) GetCurrentShift(ctx context.Context) (domain.CashShift, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.CashShift{}, err
	}
	return s.repo.GetOpenShift(ctx, actor.TenantID, actor.UserID)
}

func (s *Service) OpenShift(ctx context.Context, req domain.OpenShiftRequest) (domain.CashShift, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.CashShift{}, err
	}

	shift, err := s.repo.CreateShift(ctx, domain.CashShift{
		TenantID:         actor.TenantID,
		UserID:           actor.UserID,
		StartAmountCents: req.StartAmountCents,
	})
	if err != nil {
		return domain.CashShift{}, err
	}

	s.logger.Info("cash shift opened",
		zap.String("shift_id", shift.ID),
		zap.String("user_id", actor.UserID),
		zap.Int64("start_amount_cents", shift.StartAmountCents))
	return shift, nil
}

// CloseShift closes the caller's open shift. A drawer discrepancy is
// recorded, never rejected; counting the till wrong is an operational
// fact, not an API error.
func (s *Service) CloseShift(ctx context.Context, req domain.CloseShiftRequest) (domain.CashShift, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.CashShift{}, err
	}

	open, err := s.repo.GetOpenShift(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CashShift{}, store.ErrShiftNotOpen
		}
		return domain.CashShift{}, err
	}

	closed, err := s.repo.CloseShift(ctx, actor.TenantID, open.ID, req.CountedAmountCents, time.Now().UTC())
	if err != nil {
		return domain.CashShift{}, err
	}

	if closed.DifferenceCents != nil && *closed.DifferenceCents != 0 {
		s.logger.Warn("cash shift closed with discrepancy",
			zap.String("shift_id", closed.ID),
			zap.Int64("difference_cents", *closed.DifferenceCents))
	}
	return closed, nil
}

// --- sales ---

func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	shift, err := s.repo.GetOpenShift(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, store.ErrNoOpenShift
		}
		return domain.Sale{}, err
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	var total int64
	for _, line := range req.Items {
		product, err := s.repo.GetProduct(ctx, actor.TenantID, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, fmt.Errorf("%w: producto %s", store.ErrNotFound, line.ProductID)
			}
			return domain.Sale{}, err
		}

		// Only lines that name a variant touch stock; a line without one
		// records the sale but leaves inventory alone.
		var variant *domain.ProductVariant
		if line.VariantID != "" {
			for i := range product.Variants {
				if product.Variants[i].ID == line.VariantID {
					variant = &product.Variants[i]
					break
				}
			}
			if variant == nil {
				return domain.Sale{}, fmt.Errorf("%w: variante de %s", store.ErrNotFound, product.Name)
			}
		}

		item := domain.SaleItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			ProductSKU:     product.SKU,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			SubtotalCents:  line.UnitPriceCents * line.Quantity,
		}
		if variant != nil {
			// Advisory pre-check. The store decrement is the check
			// that actually holds under concurrency.
			if variant.Stock < line.Quantity {
				return domain.Sale{}, fmt.Errorf("%w: %s (disponible %d, solicitado %d)",
					store.ErrInsufficientStock, product.Name, variant.Stock, line.Quantity)
			}
			item.VariantID = variant.ID
			item.VariantName = variant.Name
			if variant.SKU != "" {
				item.ProductSKU = variant.SKU
			}
		}
		items = append(items, item)
		total += item.SubtotalCents
	}

	// Totals are derived from the line subtotals; tax and discount are
	// carried as zero until the tenant-level rates exist.
	sale := domain.Sale{
		TenantID:      actor.TenantID,
		UserID:        actor.UserID,
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		SubtotalCents: total,
		TotalCents:    total,
		Notes:         strings.TrimSpace(req.Notes),
		Items:         items,
	}

	if req.PaymentMethod == domain.PaymentCash {
		if req.ReceivedAmountCents == nil || *req.ReceivedAmountCents < total {
			return domain.Sale{}, fmt.Errorf("%w: el monto recibido no cubre el total", ErrInvalidPayment)
		}
		received := *req.ReceivedAmountCents
		change := received - total
		sale.ReceivedAmountCents = &received
		sale.ChangeAmountCents = &change
	} else if req.ReceivedAmountCents != nil {
		return domain.Sale{}, fmt.Errorf("%w: monto recibido solo aplica a pagos en efectivo", ErrInvalidPayment)
	}

	created, err := s.repo.CreateSale(ctx, sale, shift.ID)
	if err != nil {
		return domain.Sale{}, err
	}

	if user, err := s.repo.GetUserByID(ctx, actor.UserID); err == nil {
		summary := user.Summary()
		created.User = &summary
	}

	s.logger.Info("sale completed",
		zap.String("sale_id", created.ID),
		zap.String("sale_number", created.SaleNumber),
		zap.Int64("total_cents", created.TotalCents),
		zap.Int("items", len(created.Items)))
	return created, nil
}

func (s *Service) ListSales(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, actor.TenantID, store.SaleFilter{From: from, To: to, Limit: 50})
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	return s.repo.GetSale(ctx, actor.TenantID, id)
}

// --- inventory ---

// CreateAdjustment corrects the stock of a product's primary variant. The
// first variant is the stock unit for single-variant products, which is
// every product created through this API.
func (s *Service) CreateAdjustment(ctx context.Context, req domain.CreateAdjustmentRequest) (domain.StockAdjustment, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	product, err := s.repo.GetProduct(ctx, actor.TenantID, req.ProductID)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	if len(product.Variants) == 0 {
		return domain.StockAdjustment{}, fmt.Errorf("%w: %s", store.ErrNoVariant, product.Name)
	}

	adj, err := s.repo.CreateStockAdjustment(ctx, domain.StockAdjustment{
		TenantID:  actor.TenantID,
		UserID:    actor.UserID,
		ProductID: product.ID,
		VariantID: product.Variants[0].ID,
		Type:      req.Type,
		Reason:    req.Reason,
		Quantity:  req.Quantity,
		Notes:     strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	s.logger.Info("stock adjusted",
		zap.String("product_id", product.ID),
		zap.String("type", adj.Type),
		zap.String("reason", adj.Reason),
		zap.Int64("quantity", adj.Quantity),
		zap.Int64("current_stock", adj.CurrentStock))
	return adj, nil
}

// --- products ---

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		sku = generateSKU(req.Name)
	}

	product := domain.Product{
		TenantID:    actor.TenantID,
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		SKU:         sku,
		Active:      true,
		Variants: []domain.ProductVariant{{
			Name:       "Standard",
			SKU:        sku,
			PriceCents: req.PriceCents,
			CostCents:  req.CostCents,
			Stock:      req.Stock,
			MinStock:   req.MinStock,
		}},
	}
	return s.repo.CreateProduct(ctx, product)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, actor.TenantID)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	return s.repo.GetProduct(ctx, actor.TenantID, id)
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	product, err := s.repo.GetProduct(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Product{}, err
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if len(product.Variants) > 0 {
		v := &product.Variants[0]
		if req.PriceCents != nil {
			v.PriceCents = *req.PriceCents
		}
		if req.CostCents != nil {
			v.CostCents = *req.CostCents
		}
		if req.Stock != nil {
			v.Stock = *req.Stock
		}
		if req.MinStock != nil {
			v.MinStock = *req.MinStock
		}
	}

	return s.repo.UpdateProduct(ctx, product)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, actor.TenantID, id)
}

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ImportProducts upserts a batch of catalog rows by SKU, creating missing
// categories on demand.
func (s *Service) ImportProducts(ctx context.Context, rows []domain.ImportProductRequest) (ImportResult, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	categories, err := s.repo.ListCategories(ctx, actor.TenantID)
	if err != nil {
		return ImportResult{}, err
	}
	categoryByName := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryByName[strings.ToLower(c.Name)] = c.ID
	}

	var result ImportResult
	for _, row := range rows {
		categoryID := ""
		if name := strings.TrimSpace(row.CategoryName); name != "" {
			id, ok := categoryByName[strings.ToLower(name)]
			if !ok {
				created, err := s.repo.CreateCategory(ctx, domain.Category{TenantID: actor.TenantID, Name: name})
				if err != nil {
					return result, err
				}
				id = created.ID
				categoryByName[strings.ToLower(name)] = id
			}
			categoryID = id
		}

		sku := strings.ToUpper(strings.TrimSpace(row.SKU))
		_, created, err := s.repo.UpsertProductBySKU(ctx, domain.Product{
			TenantID:   actor.TenantID,
			CategoryID: categoryID,
			Name:       strings.TrimSpace(row.Name),
			SKU:        sku,
			Active:     true,
			Variants: []domain.ProductVariant{{
				Name:       "Standard",
				SKU:        sku,
				PriceCents: row.PriceCents,
				CostCents:  row.CostCents,
				Stock:      row.Stock,
				MinStock:   row.MinStock,
			}},
		})
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.Info("product import finished",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated))
	return result, nil
}

// generateSKU derives a short code from the product name plus a random
// numeric suffix, e.g. "Galletas surtidas" -> GAL4821.
func generateSKU(name string) string {
	letters := make([]rune, 0, 3)
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
			if len(letters) == 3 {
				break
			}
		}
	}
	for len(letters) < 3 {
		letters = append(letters, 'X')
	}
	return fmt.Sprintf("%s%04d", string(letters), rand.Intn(10000))
}

// --- categories ---

func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	return s.repo.CreateCategory(ctx, domain.Category{
		TenantID: actor.TenantID,
		Name:     strings.TrimSpace(req.Name),
	})
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, actor.TenantID)
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, actor.TenantID, id)
}

// --- customers ---

func (s *Service) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	return s.repo.CreateCustomer(ctx, domain.Customer{
		TenantID: actor.TenantID,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		Address:  strings.TrimSpace(req.Address),
		Notes:    strings.TrimSpace(req.Notes),
	})
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, actor.TenantID)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	return s.repo.GetCustomer(ctx, actor.TenantID, id)
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		customer.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		customer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		customer.Address = strings.TrimSpace(*req.Address)
	}
	if req.Notes != nil {
		customer.Notes = strings.TrimSpace(*req.Notes)
	}

	return s.repo.UpdateCustomer(ctx, customer)
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, actor.TenantID, id)
}

// --- expenses ---

func (s *Service) CreateExpense(ctx context.Context, req domain.CreateExpenseRequest) (domain.Expense, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	return s.repo.CreateExpense(ctx, domain.Expense{
		TenantID:    actor.TenantID,
		UserID:      actor.UserID,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		AmountCents: req.AmountCents,
		Date:        req.Date.UTC(),
	})
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, actor.TenantID)
}

func (s *Service) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	return s.repo.GetExpense(ctx, actor.TenantID, id)
}

func (s *Service) UpdateExpense(ctx context.Context, id string, req domain.UpdateExpenseRequest) (domain.Expense, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Expense{}, err
	}

	expense, err := s.repo.GetExpense(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Expense{}, err
	}
	if req.Description != nil {
		expense.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		expense.Category = strings.TrimSpace(*req.Category)
	}
	if req.AmountCents != nil {
		expense.AmountCents = *req.AmountCents
	}
	if req.Date != nil {
		expense.Date = req.Date.UTC()
	}

	return s.repo.UpdateExpense(ctx, expense)
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteExpense(ctx, actor.TenantID, id)
}

// --- users ---

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.repo.CreateUser(ctx, domain.User{
		ID:           xid.New("user"),
		TenantID:     actor.TenantID,
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         req.Role,
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
		zap.String("created_by", actor.UserID))
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx, actor.TenantID)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	if id == actor.UserID {
		return ErrCannotDeleteSelf
	}
	return s.repo.DeleteUser(ctx, actor.TenantID, id)
}

// --- tenant profile ---

func (s *Service) GetTenantProfile(ctx context.Context) (domain.Tenant, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	return s.repo.GetTenant(ctx, actor.TenantID)
}

func (s *Service) UpdateTenantProfile(ctx context.Context, req domain.UpdateTenantRequest) (domain.Tenant, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}

	tenant, err := s.repo.GetTenant(ctx, actor.TenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if req.Name != nil {
		tenant.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		tenant.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		tenant.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Currency != nil {
		tenant.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
	}

	return s.repo.UpdateTenant(ctx, tenant)
}

// --- analytics ---

func (s *Service) GetDashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if cached, ok, err := s.dashboard.Get(ctx, actor.TenantID); err != nil {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	stats, err := s.repo.GetDashboardStats(ctx, actor.TenantID, time.Now().UTC())
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if err := s.dashboard.Set(ctx, actor.TenantID, &stats, s.dashboardTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return stats, nil
}
