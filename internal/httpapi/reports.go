package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/report"
	"coinstock/backend/internal/result"
)

type orderReportResponse struct {
	domain.OrderReport
	Summary report.Summary `json:"summary"`
}

func (a *API) handleReportFilters(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, a.service.FetchReportFilters(r.Context()))
}

// handleReportOrders returns the filtered report with its summary, or a CSV
// export when format=csv.
func (a *API) handleReportOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters, err := parseReportFilters(q)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), result.CodeValidation)
		return
	}

	res := a.service.FetchOrdersWithDetails(r.Context(), filters)
	if !res.OK {
		writeEnvelope(w, http.StatusOK, res)
		return
	}
	summary := report.Summarize(res.Data)

	if strings.EqualFold(q.Get("format"), "csv") {
		body, err := orderReportToCSV(res.Data, summary)
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, "internal server error", result.CodeStore)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="orders-report.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	writeJSON(w, http.StatusOK, result.Success(orderReportResponse{OrderReport: res.Data, Summary: summary}))
}

func parseReportFilters(q url.Values) (domain.ReportFilters, error) {
	filters := domain.ReportFilters{
		CustomerID:    strings.TrimSpace(q.Get("customer_id")),
		PlatformID:    strings.TrimSpace(q.Get("platform_id")),
		EmployeeID:    strings.TrimSpace(q.Get("employee_id")),
		PaymentMethod: strings.TrimSpace(q.Get("payment_method")),
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := parseBound(raw, false)
		if err != nil {
			return domain.ReportFilters{}, fmt.Errorf("invalid from: %w", err)
		}
		filters.From = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := parseBound(raw, true)
		if err != nil {
			return domain.ReportFilters{}, fmt.Errorf("invalid to: %w", err)
		}
		filters.To = &to
	}
	return filters, nil
}

// parseBound accepts RFC 3339 or a bare date. A bare upper bound covers the
// whole day.
func parseBound(raw string, endOfDay bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 timestamp or YYYY-MM-DD, got %q", raw)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

func orderReportToCSV(rep domain.OrderReport, summary report.Summary) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "order_count", strconv.Itoa(summary.OrderCount)},
		{"summary", "gross_revenue", summary.GrossRevenue.StringFixed(2)},
		{"summary", "units_sold", strconv.Itoa(summary.UnitsSold)},
	}
	for _, total := range summary.ByPayment {
		rows = append(rows,
			[]string{"payment", total.Token + "_count", strconv.Itoa(total.Count)},
			[]string{"payment", total.Token + "_amount", total.Amount.StringFixed(2)},
		)
	}
	for _, order := range rep.Orders {
		rows = append(rows, []string{"order", order.OrderNumber, order.TotalAmount.StringFixed(2)})
	}

	if err := cw.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
