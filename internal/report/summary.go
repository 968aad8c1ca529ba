package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/payment"
)

type PaymentTotal struct {
	Token  string          `json:"token"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type Summary struct {
	OrderCount   int             `json:"order_count"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	UnitsSold    int             `json:"units_sold"`
	ByPayment    []PaymentTotal  `json:"by_payment"`
}

// Summarize recomputes the report totals from an already filtered report.
func Summarize(rep domain.OrderReport) Summary {
	summary := Summary{
		OrderCount:   len(rep.Orders),
		GrossRevenue: decimal.Zero,
		ByPayment:    []PaymentTotal{},
	}
	for _, o := range rep.Orders {
		summary.GrossRevenue = summary.GrossRevenue.Add(o.TotalAmount)
	}
	for _, item := range rep.Items {
		summary.UnitsSold += item.Quantity
	}

	totals := map[string]*PaymentTotal{}
	for _, d := range rep.Payments {
		token := TokenFor(d)
		total, ok := totals[token]
		if !ok {
			total = &PaymentTotal{Token: token, Amount: decimal.Zero}
			totals[token] = total
		}
		total.Count++
		total.Amount = total.Amount.Add(d.Amount)
	}
	for _, total := range totals {
		summary.ByPayment = append(summary.ByPayment, *total)
	}
	sort.Slice(summary.ByPayment, func(i, j int) bool {
		return summary.ByPayment[i].Token < summary.ByPayment[j].Token
	})
	return summary
}

// TokenFor names the most specific filter token a payment row falls under.
func TokenFor(d domain.PaymentDetail) string {
	method := payment.Classify(d)
	switch method.Kind {
	case payment.KindBank:
		if bankType := payment.NormalizeSubtype(method.BankType); bankType != "" {
			return "bank:" + bankType
		}
		return "bank"
	case payment.KindCash:
		return "cash"
	case payment.KindCrypto:
		if method.Currency != "" {
			return "crypto:" + strings.ToUpper(method.Currency)
		}
		if method.Network != "" {
			return "crypto:" + strings.ToLower(method.Network)
		}
		return "crypto"
	default:
		if text := strings.ToLower(strings.TrimSpace(d.PaymentMethod)); text != "" {
			return text
		}
		return "unknown"
	}
}
