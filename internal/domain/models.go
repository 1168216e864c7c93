// Package domain holds the entities and request/response shapes shared by
// the store, service and HTTP layers. All monetary amounts are int64 cents.
package domain

import "time"

// User roles.
const (
	RoleAdmin   = "ADMIN"
	RoleCashier = "CASHIER"
)

// Cash shift statuses.
const (
	ShiftOpen   = "OPEN"
	ShiftClosed = "CLOSED"
)

// Payment methods.
const (
	PaymentCash     = "CASH"
	PaymentCard     = "CARD"
	PaymentTransfer = "TRANSFER"
)

// Cash transaction types.
const (
	CashTxnSale = "SALE"
)

// Stock adjustment types.
const (
	AdjustmentIncrement = "INCREMENT"
	AdjustmentDecrement = "DECREMENT"
)

// Stock adjustment reasons.
const (
	ReasonPurchase   = "PURCHASE"
	ReasonReturn     = "RETURN"
	ReasonDamaged    = "DAMAGED"
	ReasonTheft      = "THEFT"
	ReasonLoss       = "LOSS"
	ReasonCorrection = "CORRECTION"
	ReasonOther      = "OTHER"
)

// Actor is the authenticated identity attached to request contexts.
type Actor struct {
	UserID   string
	TenantID string
	Email    string
	Role     string
}

type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the abbreviated shape embedded in sales and sessions.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type Category struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	CategoryID  string           `json:"category_id,omitempty"`
	Category    *Category        `json:"category,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	SKU         string           `json:"sku"`
	Active      bool             `json:"active"`
	Variants    []ProductVariant `json:"variants"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ProductVariant struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	SKU        string    `json:"sku,omitempty"`
	PriceCents int64     `json:"price_cents"`
	CostCents  int64     `json:"cost_cents"`
	Stock      int64     `json:"stock"`
	MinStock   int64     `json:"min_stock"`
	CreatedAt  time.Time `json:"created_at"`
}

type CashShift struct {
	ID                  string     `json:"id"`
	TenantID            string     `json:"tenant_id"`
	UserID              string     `json:"user_id"`
	Status              string     `json:"status"`
	StartAmountCents    int64      `json:"start_amount_cents"`
	ExpectedAmountCents int64      `json:"expected_amount_cents"`
	EndAmountCents      *int64     `json:"end_amount_cents,omitempty"`
	DifferenceCents     *int64     `json:"difference_cents,omitempty"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
}

type CashTransaction struct {
	ID          string    `json:"id"`
	ShiftID     string    `json:"shift_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

type Sale struct {
	ID                  string       `json:"id"`
	TenantID            string       `json:"tenant_id"`
	UserID              string       `json:"user_id"`
	User                *UserSummary `json:"user,omitempty"`
	CustomerID          string       `json:"customer_id,omitempty"`
	SaleNumber          string       `json:"sale_number"`
	PaymentMethod       string       `json:"payment_method"`
	SubtotalCents       int64        `json:"subtotal_cents"`
	TaxCents            int64        `json:"tax_cents"`
	DiscountCents       int64        `json:"discount_cents"`
	TotalCents          int64        `json:"total_cents"`
	ReceivedAmountCents *int64       `json:"received_amount_cents,omitempty"`
	ChangeAmountCents   *int64       `json:"change_amount_cents,omitempty"`
	Notes               string       `json:"notes,omitempty"`
	Items               []SaleItem   `json:"items"`
	CreatedAt           time.Time    `json:"created_at"`
}

// SaleItem snapshots the product at the moment of sale so that later
// catalog edits never rewrite history.
type SaleItem struct {
	ID             string `json:"id"`
	SaleID         string `json:"sale_id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	ProductName    string `json:"product_name"`
	VariantName    string `json:"variant_name,omitempty"`
	ProductSKU     string `json:"product_sku"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type StockAdjustment struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	ProductID    string    `json:"product_id"`
	VariantID    string    `json:"variant_id"`
	Type         string    `json:"type"`
	Reason       string    `json:"reason"`
	Quantity     int64     `json:"quantity"`
	CurrentStock int64     `json:"current_stock"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Expense struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// DashboardStats is the aggregate served by the analytics endpoint.
type DashboardStats struct {
	TodaySalesCents int64            `json:"today_sales_cents"`
	TodayOrders     int64            `json:"today_orders"`
	LowStockCount   int64            `json:"low_stock_count"`
	SalesLast7Days  []DailySales     `json:"sales_last_7_days"`
	TopProducts     []ProductRanking `json:"top_products"`
	Monthly         MonthlyStats     `json:"monthly"`
}

type DailySales struct {
	Date       string `json:"date"`
	TotalCents int64  `json:"total_cents"`
	Orders     int64  `json:"orders"`
}

type ProductRanking struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	TotalCents  int64  `json:"total_cents"`
}

type MonthlyStats struct {
	RevenueCents     int64 `json:"revenue_cents"`
	GrossProfitCents int64 `json:"gross_profit_cents"`
	ExpensesCents    int64 `json:"expenses_cents"`
	NetProfitCents   int64 `json:"net_profit_cents"`
}

// --- request payloads ---

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type OpenShiftRequest struct {
	StartAmountCents int64 `json:"start_amount_cents" validate:"gte=0"`
}

type CloseShiftRequest struct {
	CountedAmountCents int64 `json:"counted_amount_cents" validate:"gte=0"`
}

type SaleItemRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	VariantID      string `json:"variant_id"`
	Quantity       int64  `json:"quantity" validate:"required,gte=1"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
}

type CreateSaleRequest struct {
	Items               []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod       string            `json:"payment_method" validate:"required,oneof=CASH CARD TRANSFER"`
	CustomerID          string            `json:"customer_id"`
	ReceivedAmountCents *int64            `json:"received_amount_cents" validate:"omitempty,gte=0"`
	Notes               string            `json:"notes"`
}

type CreateAdjustmentRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=INCREMENT DECREMENT"`
	Reason    string `json:"reason" validate:"required,oneof=PURCHASE RETURN DAMAGED THEFT LOSS CORRECTION OTHER"`
	Quantity  int64  `json:"quantity" validate:"required,gte=1"`
	Notes     string `json:"notes"`
}

type CreateProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	SKU         string `json:"sku"`
	CategoryID  string `json:"category_id"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	CostCents   int64  `json:"cost_cents" validate:"gte=0"`
	Stock       int64  `json:"stock" validate:"gte=0"`
	MinStock    int64  `json:"min_stock" validate:"gte=0"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	CategoryID  *string `json:"category_id"`
	Active      *bool   `json:"active"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	CostCents   *int64  `json:"cost_cents" validate:"omitempty,gte=0"`
	Stock       *int64  `json:"stock" validate:"omitempty,gte=0"`
	MinStock    *int64  `json:"min_stock" validate:"omitempty,gte=0"`
}

type ImportProductRequest struct {
	Name         string `json:"name" validate:"required"`
	SKU          string `json:"sku" validate:"required"`
	CategoryName string `json:"category_name"`
	PriceCents   int64  `json:"price_cents" validate:"gte=0"`
	CostCents    int64  `json:"cost_cents" validate:"gte=0"`
	Stock        int64  `json:"stock" validate:"gte=0"`
	MinStock     int64  `json:"min_stock" validate:"gte=0"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

type CreateExpenseRequest struct {
	Description string    `json:"description" validate:"required"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents" validate:"required,gt=0"`
	Date        time.Time `json:"date" validate:"required"`
}

type UpdateExpenseRequest struct {
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	AmountCents *int64     `json:"amount_cents" validate:"omitempty,gt=0"`
	Date        *time.Time `json:"date"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=ADMIN CASHIER"`
}

type UpdateTenantRequest struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
	Currency *string `json:"currency"`
}
