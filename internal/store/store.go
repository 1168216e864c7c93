// Package store defines the persistence contract and the sentinel errors
// the service and HTTP layers branch on.
package store

import (
	"context"
	"errors"
	"time"

	"tiendita/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateSKU      = errors.New("sku already in use")
	ErrDuplicateContact  = errors.New("customer contact already in use")
	ErrShiftAlreadyOpen  = errors.New("an open cash shift already exists")
	ErrShiftNotOpen      = errors.New("cash shift is not open")
	ErrNoOpenShift       = errors.New("no open cash shift")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeStock     = errors.New("stock cannot go negative")
	ErrNoVariant         = errors.New("product has no variants")
	ErrCategoryInUse     = errors.New("category has products assigned")
)

// SaleFilter narrows ListSales. Zero times mean unbounded; Limit caps the
// page size and is always enforced by implementations.
type SaleFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Repository is the persistence surface. Implementations must make
// CreateSale and CreateStockAdjustment atomic: either every effect lands
// (rows, stock decrement, shift expected-amount bump) or none do.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context, tenantID string) ([]domain.User, error)
	DeleteUser(ctx context.Context, tenantID, id string) error

	// Tenants
	GetTenant(ctx context.Context, id string) (domain.Tenant, error)
	UpdateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error)

	// Categories
	CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error)
	ListCategories(ctx context.Context, tenantID string) ([]domain.Category, error)
	DeleteCategory(ctx context.Context, tenantID, id string) error

	// Products
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, tenantID, id string) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, tenantID, id string) error
	UpsertProductBySKU(ctx context.Context, p domain.Product) (domain.Product, bool, error)

	// Cash shifts
	GetOpenShift(ctx context.Context, tenantID, userID string) (domain.CashShift, error)
	CreateShift(ctx context.Context, s domain.CashShift) (domain.CashShift, error)
	CloseShift(ctx context.Context, tenantID, shiftID string, endAmountCents int64, closedAt time.Time) (domain.CashShift, error)

	// Sales. CreateSale persists the prepared sale, decrements variant
	// stock with an in-database guard, and posts the shift cash
	// transaction, all in one transaction. The sale number is assigned
	// inside from the tenant's atomic counter.
	CreateSale(ctx context.Context, sale domain.Sale, shiftID string) (domain.Sale, error)
	ListSales(ctx context.Context, tenantID string, filter SaleFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, tenantID, id string) (domain.Sale, error)

	// Inventory
	CreateStockAdjustment(ctx context.Context, adj domain.StockAdjustment) (domain.StockAdjustment, error)

	// Customers
	CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error)
	ListCustomers(ctx context.Context, tenantID string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, tenantID, id string) (domain.Customer, error)
	UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error)
	DeleteCustomer(ctx context.Context, tenantID, id string) error

	// Expenses
	CreateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error)
	ListExpenses(ctx context.Context, tenantID string) ([]domain.Expense, error)
	GetExpense(ctx context.Context, tenantID, id string) (domain.Expense, error)
	UpdateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error)
	DeleteExpense(ctx context.Context, tenantID, id string) error

	// Analytics
	GetDashboardStats(ctx context.Context, tenantID string, now time.Time) (domain.DashboardStats, error)

	Close() error
}
