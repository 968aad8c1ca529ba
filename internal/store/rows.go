package store

import (
	"time"

	"github.com/shopspring/decimal"

	"coinstock/backend/internal/domain"
)

// PlatformRow is the raw persisted shape of a platform. Every field is
// optional at the boundary; MapPlatform turns it into a typed domain value.
type PlatformRow struct {
	ID            *string
	Platform      *string
	AccountType   *string
	Inventory     *int64
	CostPrice     *decimal.Decimal
	LowStockAlert *int64
	CreatedAt     *time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
}

// PurchaseHistoryRow is a raw ledger row. JoinedPlatformName and
// JoinedUserName come from joins; PlatformName and PurchasedByName are the
// denormalized legacy columns.
type PurchaseHistoryRow struct {
	ID                 *string
	PlatformID         *string
	Quantity           *int64
	CostPerUnit        *decimal.Decimal
	TotalCost          *decimal.Decimal
	Supplier           *string
	Notes              *string
	PreviousInventory  *int64
	NewInventory       *int64
	PurchasedBy        *string
	CreatedAt          *time.Time
	JoinedPlatformName *string
	JoinedUserName     *string
	PlatformName       *string
	PurchasedByName    *string
}

// MapPlatform is total: missing numbers become 0 (low stock alert becomes
// 10), missing strings become "" and missing timestamps stay nil.
func MapPlatform(row PlatformRow) domain.Platform {
	lowStock := int(intOr(row.LowStockAlert, domain.DefaultLowStockAlert))
	if row.LowStockAlert != nil && *row.LowStockAlert <= 0 {
		lowStock = domain.DefaultLowStockAlert
	}
	return domain.Platform{
		ID:            stringOr(row.ID),
		Platform:      stringOr(row.Platform),
		AccountType:   stringOr(row.AccountType),
		Inventory:     int(intOr(row.Inventory, 0)),
		CostPrice:     decimalOr(row.CostPrice),
		LowStockAlert: lowStock,
		CreatedAt:     copyTime(row.CreatedAt),
		UpdatedAt:     copyTime(row.UpdatedAt),
		DeletedAt:     copyTime(row.DeletedAt),
	}
}

func MapPlatforms(rows []PlatformRow) []domain.Platform {
	platforms := make([]domain.Platform, 0, len(rows))
	for _, row := range rows {
		platforms = append(platforms, MapPlatform(row))
	}
	return platforms
}

// MapPurchaseHistory resolves display names from the joins first, then the
// denormalized columns, then "".
func MapPurchaseHistory(row PurchaseHistoryRow) domain.PurchaseHistoryEntry {
	var purchasedBy *string
	if row.PurchasedBy != nil && *row.PurchasedBy != "" {
		id := *row.PurchasedBy
		purchasedBy = &id
	}
	return domain.PurchaseHistoryEntry{
		ID:                stringOr(row.ID),
		PlatformID:        stringOr(row.PlatformID),
		PlatformName:      firstNonEmpty(row.JoinedPlatformName, row.PlatformName),
		Quantity:          int(intOr(row.Quantity, 0)),
		CostPerUnit:       decimalOr(row.CostPerUnit),
		TotalCost:         decimalOr(row.TotalCost),
		Supplier:          stringOr(row.Supplier),
		Notes:             stringOr(row.Notes),
		PreviousInventory: int(intOr(row.PreviousInventory, 0)),
		NewInventory:      int(intOr(row.NewInventory, 0)),
		PurchasedBy:       purchasedBy,
		PurchasedByName:   firstNonEmpty(row.JoinedUserName, row.PurchasedByName),
		CreatedAt:         copyTime(row.CreatedAt),
	}
}

func MapPurchaseHistories(rows []PurchaseHistoryRow) []domain.PurchaseHistoryEntry {
	entries := make([]domain.PurchaseHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, MapPurchaseHistory(row))
	}
	return entries
}

func stringOr(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}

func intOr(val *int64, fallback int64) int64 {
	if val == nil {
		return fallback
	}
	return *val
}

func decimalOr(val *decimal.Decimal) decimal.Decimal {
	if val == nil {
		return decimal.Zero
	}
	return *val
}

func copyTime(val *time.Time) *time.Time {
	if val == nil {
		return nil
	}
	t := *val
	return &t
}

func firstNonEmpty(values ...*string) string {
	for _, val := range values {
		if val != nil && *val != "" {
			return *val
		}
	}
	return ""
}
