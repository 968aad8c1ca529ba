// Package report joins orders, line items and payment rows under the sales
// report filters and derives the payment filter tokens offered to the UI.
package report

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"coinstock/backend/internal/cache"
	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/logger"
	"coinstock/backend/internal/payment"
	"coinstock/backend/internal/store"
)

const filtersCacheKey = "coinstock:report:filters:v1"

// Repository is the read surface the aggregator needs.
type Repository interface {
	store.ReportStore
	ListPlatforms(ctx context.Context, includeDeleted bool) ([]store.PlatformRow, error)
}

type Aggregator struct {
	repo  Repository
	cache cache.FilterCache
	ttl   time.Duration
	log   *logger.Logger
}

func NewAggregator(repo Repository, filterCache cache.FilterCache, ttl time.Duration, log *logger.Logger) *Aggregator {
	if filterCache == nil {
		filterCache = cache.NoopFilterCache{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{repo: repo, cache: filterCache, ttl: ttl, log: log}
}

// FetchFilters returns the active platforms, customers, employees and the
// derived payment tokens. The four reads are independent and run in parallel.
func (a *Aggregator) FetchFilters(ctx context.Context) (domain.ReportFilterOptions, error) {
	if cached, ok, err := a.cache.Get(ctx, filtersCacheKey); err != nil {
		a.log.Warn(a.log.WithField(ctx, "error", err.Error()), "report filter cache read failed")
	} else if ok && cached != nil {
		return *cached, nil
	}

	var (
		platformRows []store.PlatformRow
		customers    []domain.Customer
		employees    []domain.UserSummary
		details      []domain.PaymentDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		platformRows, err = a.repo.ListPlatforms(gctx, false)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = a.repo.ListCustomers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		employees, err = a.repo.ListUsersByRole(gctx, domain.RoleEmployee)
		return err
	})
	g.Go(func() error {
		var err error
		details, err = a.repo.ListAllPaymentDetails(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ReportFilterOptions{}, err
	}

	opts := domain.ReportFilterOptions{
		Platforms:      store.MapPlatforms(platformRows),
		Customers:      nonNil(customers),
		Employees:      nonNil(employees),
		PaymentMethods: payment.DeriveTokens(details),
	}
	if err := a.cache.Set(ctx, filtersCacheKey, &opts, a.ttl); err != nil {
		a.log.Warn(a.log.WithField(ctx, "error", err.Error()), "report filter cache write failed")
	}
	return opts, nil
}

// InvalidateFilters drops the cached filter options after a platform change.
func (a *Aggregator) InvalidateFilters(ctx context.Context) {
	if err := a.cache.Delete(ctx, filtersCacheKey); err != nil {
		a.log.Warn(a.log.WithField(ctx, "error", err.Error()), "report filter cache invalidation failed")
	}
}

// FetchOrdersWithDetails runs the base order query, then fetches items and
// payments for exactly those orders and narrows by platform and payment
// subtype. Payments are not filtered by subtype: every payment row of a
// returned order is included.
func (a *Aggregator) FetchOrdersWithDetails(ctx context.Context, filters domain.ReportFilters) (domain.OrderReport, error) {
	token := payment.ParseToken(filters.PaymentMethod)

	query := store.OrderQuery{
		From:       filters.From,
		To:         filters.To,
		CustomerID: filters.CustomerID,
		EmployeeID: filters.EmployeeID,
	}
	if !token.IsZero() && token.Subtype == "" {
		query.PaymentMethodLike = token.Base
	}

	orders, err := a.repo.ListOrders(ctx, query)
	if err != nil {
		return domain.OrderReport{}, err
	}
	if len(orders) == 0 {
		return emptyReport(), nil
	}

	orderIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}

	var (
		items    []domain.OrderItem
		payments []domain.PaymentDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = a.repo.ListOrderItems(gctx, orderIDs)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = a.repo.ListPaymentDetails(gctx, orderIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.OrderReport{}, err
	}

	if filters.PlatformID != "" {
		items = filterSlice(items, func(item domain.OrderItem) bool {
			return item.PlatformID == filters.PlatformID
		})
		orders = keepOrders(orders, orderIDsOf(items, func(item domain.OrderItem) string { return item.OrderID }))
	}

	if token.NeedsSecondPass() {
		orders = keepOrders(orders, token.MatchingOrderIDs(payments))
	}

	kept := orderIDsOf(orders, func(o domain.Order) string { return o.ID })
	items = filterSlice(items, func(item domain.OrderItem) bool {
		_, ok := kept[item.OrderID]
		return ok
	})
	payments = filterSlice(payments, func(d domain.PaymentDetail) bool {
		_, ok := kept[d.OrderID]
		return ok
	})

	return domain.OrderReport{
		Orders:   nonNil(orders),
		Items:    nonNil(items),
		Payments: nonNil(payments),
	}, nil
}

func emptyReport() domain.OrderReport {
	return domain.OrderReport{
		Orders:   []domain.Order{},
		Items:    []domain.OrderItem{},
		Payments: []domain.PaymentDetail{},
	}
}

func keepOrders(orders []domain.Order, ids map[string]struct{}) []domain.Order {
	return filterSlice(orders, func(o domain.Order) bool {
		_, ok := ids[o.ID]
		return ok
	})
}

func filterSlice[T any](values []T, keep func(T) bool) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func orderIDsOf[T any](values []T, id func(T) string) map[string]struct{} {
	ids := make(map[string]struct{}, len(values))
	for _, v := range values {
		ids[id(v)] = struct{}{}
	}
	return ids
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
