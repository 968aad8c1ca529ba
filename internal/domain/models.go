package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLowStockAlert = 10

	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Platform is a sellable game-account / coin SKU with its on-hand stock.
type Platform struct {
	ID            string          `json:"id"`
	Platform      string          `json:"platform"`
	AccountType   string          `json:"account_type"`
	Inventory     int             `json:"inventory"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	LowStockAlert int             `json:"low_stock_alert"`
	CreatedAt     *time.Time      `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at"`
}

func (p Platform) IsDeleted() bool {
	return p.DeletedAt != nil
}

type PlatformInput struct {
	Platform      string          `json:"platform" validate:"required,max=120"`
	AccountType   string          `json:"account_type" validate:"max=60"`
	Inventory     int             `json:"inventory" validate:"gte=0"`
	CostPrice     decimal.Decimal `json:"cost_price" validate:"gte=0"`
	LowStockAlert int             `json:"low_stock_alert" validate:"gte=0"`
}

// PlatformChanges is a partial update; nil fields are left untouched.
type PlatformChanges struct {
	Platform      *string          `json:"platform,omitempty" validate:"omitempty,min=1,max=120"`
	AccountType   *string          `json:"account_type,omitempty" validate:"omitempty,max=60"`
	Inventory     *int             `json:"inventory,omitempty" validate:"omitempty,gte=0"`
	CostPrice     *decimal.Decimal `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	LowStockAlert *int             `json:"low_stock_alert,omitempty" validate:"omitempty,gt=0"`
}

func (c PlatformChanges) IsEmpty() bool {
	return c.Platform == nil && c.AccountType == nil && c.Inventory == nil && c.CostPrice == nil && c.LowStockAlert == nil
}

// PurchaseHistoryEntry is one immutable ledger row for an inventory increase.
type PurchaseHistoryEntry struct {
	ID                string          `json:"id"`
	PlatformID        string          `json:"platform_id"`
	PlatformName      string          `json:"platform_name"`
	Quantity          int             `json:"quantity"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	Supplier          string          `json:"supplier"`
	Notes             string          `json:"notes"`
	PreviousInventory int             `json:"previous_inventory"`
	NewInventory      int             `json:"new_inventory"`
	PurchasedBy       *string         `json:"purchased_by"`
	PurchasedByName   string          `json:"purchased_by_name"`
	CreatedAt         *time.Time      `json:"created_at"`
}

// PurchaseHistoryInput is a raw ledger insert. It never touches stock.
type PurchaseHistoryInput struct {
	PlatformID        string          `json:"platform_id" validate:"required"`
	Quantity          int             `json:"quantity" validate:"gt=0"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit" validate:"gte=0"`
	Supplier          string          `json:"supplier" validate:"max=120"`
	Notes             string          `json:"notes" validate:"max=500"`
	PreviousInventory int             `json:"previous_inventory" validate:"gte=0"`
	NewInventory      int             `json:"new_inventory" validate:"gte=0"`
	PurchasedBy       string          `json:"purchased_by"`
}

// PurchaseRequest is the input of the atomic purchase recorder.
type PurchaseRequest struct {
	PlatformID  string          `json:"platform_id" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit" validate:"gte=0"`
	Supplier    string          `json:"supplier" validate:"max=120"`
	Notes       string          `json:"notes" validate:"max=500"`
	PurchasedBy string          `json:"purchased_by"`
}

func (r PurchaseRequest) TotalCost() decimal.Decimal {
	return r.CostPerUnit.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

type PurchaseResult struct {
	PurchaseHistoryID string          `json:"purchase_history_id"`
	PreviousInventory int             `json:"previous_inventory"`
	NewInventory      int             `json:"new_inventory"`
	TotalCost         decimal.Decimal `json:"total_cost"`
}

type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    string          `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	CreatedBy     string          `json:"created_by"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OrderItemPlatform struct {
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	AccountType string `json:"account_type"`
}

type OrderItem struct {
	ID         string             `json:"id"`
	OrderID    string             `json:"order_id"`
	PlatformID string             `json:"platform_id"`
	Quantity   int                `json:"quantity"`
	Price      decimal.Decimal    `json:"price"`
	Platform   *OrderItemPlatform `json:"platform,omitempty"`
}

// PaymentDetail is read-only here. Historical writers filled the subtype in
// different places: the explicit columns, PaymentData, or only PaymentMethod.
type PaymentDetail struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"order_id"`
	PaymentMethod       string          `json:"payment_method"`
	BankTransactionType string          `json:"bank_transaction_type,omitempty"`
	CryptoCurrency      string          `json:"crypto_currency,omitempty"`
	CryptoNetwork       string          `json:"crypto_network,omitempty"`
	CashReceiptNumber   string          `json:"cash_receipt_number,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	PaymentData         json.RawMessage `json:"payment_data,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type EmployeeCreateRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type Actor struct {
	UserID   string
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	Role        string      `json:"role"`
	ExpiresAt   string      `json:"expires_at"`
	User        UserSummary `json:"user"`
}

// ReportFilters narrows the sales report. PaymentMethod is a token of the
// form "base" or "base:subtype" (e.g. "bank:transfer", "crypto:USDT").
type ReportFilters struct {
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
	PlatformID    string     `json:"platform_id,omitempty"`
	EmployeeID    string     `json:"employee_id,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
}

type ReportFilterOptions struct {
	Platforms      []Platform    `json:"platforms"`
	Customers      []Customer    `json:"customers"`
	Employees      []UserSummary `json:"employees"`
	PaymentMethods []string      `json:"payment_methods"`
}

type OrderReport struct {
	Orders   []Order         `json:"orders"`
	Items    []OrderItem     `json:"items"`
	Payments []PaymentDetail `json:"payments"`
}
