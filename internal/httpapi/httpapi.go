package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/logger"
	"coinstock/backend/internal/result"
	"coinstock/backend/internal/service"
	"coinstock/backend/internal/viewmodel"
)

// Codes for failures raised by the HTTP layer itself.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeRateLimited      = "RATE_LIMITED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRouteNotFound    = "ROUTE_NOT_FOUND"
)

type Options struct {
	AllowedOrigin string
	PageSize      int
	Gatherer      prometheus.Gatherer
	Logger        *logger.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	log           *logger.Logger
	gatherer      prometheus.Gatherer
	allowedOrigin string
	pageSize      int
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.PageSize <= 0 {
		opts.PageSize = viewmodel.DefaultPageSize
	}
	return &API{
		service:       svc,
		auth:          auth,
		log:           opts.Logger,
		gatherer:      opts.Gatherer,
		allowedOrigin: opts.AllowedOrigin,
		pageSize:      opts.PageSize,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		a.recoverer,
		a.requestID,
		a.securityHeaders,
		a.cors(),
		a.logRequests,
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found", CodeRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed", CodeMethodNotAllowed)
	})

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.requireAuth, requireRole(domain.RoleAdmin, domain.RoleEmployee))

		r.Get("/platforms", a.handleListPlatforms)
		r.Get("/platforms/{id}", a.handleGetPlatform)
		r.Get("/platforms/{id}/purchase-history", a.handlePlatformHistory)
		r.Get("/purchase-history", a.handleAllHistory)
		r.Get("/reports/filters", a.handleReportFilters)
		r.Get("/reports/orders", a.handleReportOrders)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleAdmin))

			r.Post("/platforms", a.handleCreatePlatform)
			r.Patch("/platforms/{id}", a.handleUpdatePlatform)
			r.Delete("/platforms/{id}", a.handleDeletePlatform)
			r.Post("/platforms/{id}/restore", a.handleRestorePlatform)
			r.Post("/platforms/{id}/purchases", a.handleRecordPurchase)
			r.Post("/purchase-history", a.handleRecordHistory)
			r.Get("/users/employees", a.handleListEmployees)
			r.Post("/users/employees", a.handleCreateEmployee)
		})
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result.Success(map[string]any{
		"status": "ok",
		"at":     time.Now().UTC().Format(time.RFC3339),
	}))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeFailure(w, http.StatusTooManyRequests, "too many login attempts", CodeRateLimited)
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), result.CodeValidation)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.log.Warn(a.log.WithField(r.Context(), "username", req.Username), "login rejected")
		writeFailure(w, http.StatusUnauthorized, err.Error(), CodeUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, result.Success(resp))
}

type platformListing struct {
	viewmodel.Page[domain.Platform]
	Counts       viewmodel.StockCounts `json:"counts"`
	AccountTypes []string              `json:"account_types"`
}

// handleListPlatforms accepts include_deleted, search, account_type, status,
// page and page_size.
func (a *API) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := a.service.ListPlatforms(r.Context(), parseBool(q.Get("include_deleted")))
	if !res.OK {
		writeEnvelope(w, http.StatusOK, res)
		return
	}

	filtered := viewmodel.FilterPlatforms(res.Data, viewmodel.Query{
		Search:      q.Get("search"),
		AccountType: q.Get("account_type"),
		Status:      viewmodel.ParseStockStatus(q.Get("status")),
	})
	page := viewmodel.Paginate(filtered,
		parsePositiveInt(q.Get("page"), 1, 0),
		parsePositiveInt(q.Get("page_size"), a.pageSize, 100))

	writeJSON(w, http.StatusOK, result.Success(platformListing{
		Page:         page,
		Counts:       viewmodel.CountStock(res.Data),
		AccountTypes: viewmodel.AccountTypes(res.Data),
	}))
}

func (a *API) handleGetPlatform(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, a.service.GetPlatform(r.Context(), chi.URLParam(r, "id")))
}

func (a *API) handleCreatePlatform(w http.ResponseWriter, r *http.Request) {
	var input domain.PlatformInput
	if err := decodeJSON(r, &input); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), result.CodeValidation)
		return
	}
	writeEnvelope(w, http.StatusCreated, a.service.CreatePlatform(r.Context(), input))
}

func (a *API) handleUpdatePlatform(w http.ResponseWriter, r *http.Request) {
	var changes domain.PlatformChanges
	if err := decodeJSON(r, &changes); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), result.CodeValidation)
		return
	}
	writeEnvelope(w, http.StatusOK, a.service.UpdatePlatform(r.Context(), chi.URLParam(r, "id"), changes))
}

func (a *API) handleDeletePlatform(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, a.service.SoftDeletePlatform(r.Context(), chi.URLParam(r, "id")))
}

func (a *API) handleRestorePlatform(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, a.service.RestorePlatform(r.Context(), chi.URLParam(r, "id")))
}

type purchaseBody struct {
	Quantity    int             `json:"quantity"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	Supplier    string          `json:"supplier"`
	Notes       string          `json:"notes"`
}

// handleRecordPurchase takes the purchaser from the token; the body cannot
// name one.
func (a *API) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var body purchaseBody
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), result.CodeValidation)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	res := a.service.RecordPurchase(r.Context(), domain.PurchaseRequest{
		PlatformID:  chi.URLParam(r, "id"),
		Quantity:    body.Quantity,
		CostPerUnit: body.CostPerUnit,
		Supplier:    body.Supplier,
		Notes:       body.Notes,
		PurchasedBy: actor.UserID,
	})
	writeEnvelope(w, http.StatusCreated, res)
}

func (a *API) handlePlatformHistory(w http.ResponseWriter, r *http.Request) {
	res := a.service.ListPurchaseHistory(r.Context(), chi.URLParam(r, "id"))
	a.writeHistoryPage(w, r, res)
}

func (a *API) handleAllHistory(w http.ResponseWriter, r *http.Request) {
	a.writeHistoryPage(w, r, a.service.ListAllPurchaseHistory(r.Context()))
}

func (a *API) writeHistoryPage(w http.ResponseWriter, r *http.Request, res result.Result[[]domain.PurchaseHistoryEntry]) {
	if !res.OK {
		writeEnvelope(w, http.StatusOK, res)
		return
	}
	q := r.URL.Query()
	page := viewmodel.Paginate(res.Data,
		parsePositiveInt(q.Get("page"), 1, 0),
		parsePositiveInt(q.Get("page_size"), a.pageSize, 100))
	writeJSON(w, http.StatusOK, result.Success(page))
}

// handleRecordHistory appends a ledger row without changing stock, for
// back-filling purchases made outside the system.
func (a *API) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	var input domain.PurchaseHistoryInput
	if err := decodeJSON(r, &input); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), result.CodeValidation)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	input.PurchasedBy = actor.UserID
	writeEnvelope(w, http.StatusCreated, a.service.RecordPurchaseHistory(r.Context(), input))
}

func (a *API) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, result.Success(a.auth.ListEmployees(r.Context())))
}

func (a *API) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req domain.EmployeeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), result.CodeValidation)
		return
	}
	user, err := a.auth.CreateEmployee(r.Context(), req)
	if err != nil {
		writeEnvelope(w, http.StatusCreated, result.FromError[domain.UserAccount](err))
		return
	}
	writeJSON(w, http.StatusCreated, result.Success(user))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, fallback int, max int) int {
	value := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			value = parsed
		}
	}
	if max > 0 && value > max {
		return max
	}
	return value
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

// writeEnvelope writes res with the status its code maps to. Store internals
// are not leaked on 500s; the code is kept.
func writeEnvelope[T any](w http.ResponseWriter, okStatus int, res result.Result[T]) {
	status := res.HTTPStatus(okStatus)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		writeFailure(w, status, "internal server error", res.Code)
		return
	}
	writeJSON(w, status, res)
}

func writeFailure(w http.ResponseWriter, status int, message string, code string) {
	writeJSON(w, status, result.Failure[any](message, code))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
