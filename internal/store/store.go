package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coinstock/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotReady means a server-side function or table the core relies on
	// has not been provisioned yet.
	ErrNotReady = errors.New("not ready")
)

// Error carries the store-provided code (a Postgres SQLSTATE) alongside the
// failure kind.
type Error struct {
	Op   string
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the store-provided code of err, if any.
func CodeOf(err error) string {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return ""
}

type PlatformStore interface {
	ListPlatforms(ctx context.Context, includeDeleted bool) ([]PlatformRow, error)
	// GetPlatform returns nil, nil when the row does not exist.
	GetPlatform(ctx context.Context, id string) (*PlatformRow, error)
	CreatePlatform(ctx context.Context, input domain.PlatformInput) (*PlatformRow, error)
	UpdatePlatform(ctx context.Context, id string, changes domain.PlatformChanges) (*PlatformRow, error)
	// SetPlatformDeletedAt sets or clears the soft-delete marker. Callers
	// re-read the row to confirm.
	SetPlatformDeletedAt(ctx context.Context, id string, deletedAt *time.Time) error
}

type PurchaseHistoryStore interface {
	// ListPurchaseHistory returns entries newest first; an empty platformID
	// lists the whole ledger.
	ListPurchaseHistory(ctx context.Context, platformID string) ([]PurchaseHistoryRow, error)
	InsertPurchaseHistory(ctx context.Context, input domain.PurchaseHistoryInput, totalCost decimal.Decimal) (*PurchaseHistoryRow, error)
}

// PurchaseRecorder is the single transactional stock-increase + ledger-append
// operation. Implementations must not emulate it with two separate calls.
type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error)
}

type OrderQuery struct {
	From              *time.Time
	To                *time.Time
	CustomerID        string
	EmployeeID        string
	PaymentMethodLike string
}

type ReportStore interface {
	ListOrders(ctx context.Context, query OrderQuery) ([]domain.Order, error)
	ListOrderItems(ctx context.Context, orderIDs []string) ([]domain.OrderItem, error)
	ListPaymentDetails(ctx context.Context, orderIDs []string) ([]domain.PaymentDetail, error)
	ListAllPaymentDetails(ctx context.Context) ([]domain.PaymentDetail, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	ListUsersByRole(ctx context.Context, role string) ([]domain.UserSummary, error)
}

type UserStore interface {
	// CreateUser stores an account whose Password is already a bcrypt hash.
	CreateUser(ctx context.Context, user domain.UserAccount) (domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	PlatformStore
	PurchaseHistoryStore
	PurchaseRecorder
	ReportStore
	UserStore
}
