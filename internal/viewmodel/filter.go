// Package viewmodel derives the presentation state of the stock screens from
// the service envelopes. It owns no persistent state: every mutation is
// followed by a refetch instead of a local patch.
package viewmodel

import (
	"strings"

	"coinstock/backend/internal/domain"
)

type StockStatus string

const (
	StatusAll        StockStatus = "all"
	StatusLowStock   StockStatus = "low_stock"
	StatusOutOfStock StockStatus = "out_of_stock"
)

// ParseStockStatus falls back to StatusAll for anything it does not know.
func ParseStockStatus(raw string) StockStatus {
	switch StockStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusLowStock:
		return StatusLowStock
	case StatusOutOfStock:
		return StatusOutOfStock
	default:
		return StatusAll
	}
}

func IsOutOfStock(p domain.Platform) bool {
	return p.Inventory == 0
}

func IsLowStock(p domain.Platform) bool {
	return p.Inventory > 0 && p.Inventory < lowStockThreshold(p)
}

// Matches reports whether p passes the status filter. The low and out
// predicates never both hold for the same platform.
func (s StockStatus) Matches(p domain.Platform) bool {
	switch s {
	case StatusLowStock:
		return IsLowStock(p)
	case StatusOutOfStock:
		return IsOutOfStock(p)
	default:
		return true
	}
}

func lowStockThreshold(p domain.Platform) int {
	if p.LowStockAlert <= 0 {
		return domain.DefaultLowStockAlert
	}
	return p.LowStockAlert
}

type Query struct {
	Search      string
	AccountType string
	Status      StockStatus
}

// FilterPlatforms keeps the platforms whose name or account type contains
// Search (case-insensitive), whose account type equals AccountType when set,
// and which pass the status filter. Input order is kept.
func FilterPlatforms(list []domain.Platform, q Query) []domain.Platform {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	accountType := strings.TrimSpace(q.AccountType)

	out := make([]domain.Platform, 0, len(list))
	for _, p := range list {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Platform), search) &&
			!strings.Contains(strings.ToLower(p.AccountType), search) {
			continue
		}
		if accountType != "" && !strings.EqualFold(p.AccountType, accountType) {
			continue
		}
		if !q.Status.Matches(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// AccountTypes lists the distinct account types in first-seen order, for the
// type filter dropdown.
func AccountTypes(list []domain.Platform) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, p := range list {
		key := strings.ToLower(p.AccountType)
		if p.AccountType == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p.AccountType)
	}
	return out
}

type StockCounts struct {
	Total      int `json:"total"`
	LowStock   int `json:"low_stock"`
	OutOfStock int `json:"out_of_stock"`
}

func CountStock(list []domain.Platform) StockCounts {
	counts := StockCounts{Total: len(list)}
	for _, p := range list {
		switch {
		case IsOutOfStock(p):
			counts.OutOfStock++
		case IsLowStock(p):
			counts.LowStock++
		}
	}
	return counts
}
