package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/store"
	"coinstock/backend/internal/store/memory"
)

type countingRepo struct {
	*memory.Store
	orders, items, payments, allPayments atomic.Int32
	failItems                            error
}

func (r *countingRepo) ListOrders(ctx context.Context, q store.OrderQuery) ([]domain.Order, error) {
	r.orders.Add(1)
	return r.Store.ListOrders(ctx, q)
}

func (r *countingRepo) ListOrderItems(ctx context.Context, ids []string) ([]domain.OrderItem, error) {
	r.items.Add(1)
	if r.failItems != nil {
		return nil, r.failItems
	}
	return r.Store.ListOrderItems(ctx, ids)
}

func (r *countingRepo) ListPaymentDetails(ctx context.Context, ids []string) ([]domain.PaymentDetail, error) {
	r.payments.Add(1)
	return r.Store.ListPaymentDetails(ctx, ids)
}

func (r *countingRepo) ListAllPaymentDetails(ctx context.Context) ([]domain.PaymentDetail, error) {
	r.allPayments.Add(1)
	return r.Store.ListAllPaymentDetails(ctx)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]domain.ReportFilterOptions
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.ReportFilterOptions, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *mapCache) Set(_ context.Context, key string, value *domain.ReportFilterOptions, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]domain.ReportFilterOptions{}
	}
	c.data[key] = *value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type fixture struct {
	repo      *countingRepo
	agg       *Aggregator
	platformA domain.Platform
	platformB domain.Platform
	wire      domain.Order
	va        domain.Order
	cash      domain.Order
	crypto    domain.Order
	mixed     domain.Order
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	repo := &countingRepo{Store: mem}

	rowA, err := mem.CreatePlatform(ctx, domain.PlatformInput{Platform: "Mobile Legends", Inventory: 100})
	require.NoError(t, err)
	rowB, err := mem.CreatePlatform(ctx, domain.PlatformInput{Platform: "Steam Wallet", Inventory: 5})
	require.NoError(t, err)
	a, b := store.MapPlatform(*rowA), store.MapPlatform(*rowB)

	customer := mem.AddCustomer("Budi")
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	money := decimal.RequireFromString

	f := fixture{repo: repo, platformA: a, platformB: b}
	f.wire = mem.AddOrder(domain.Order{CustomerID: customer.ID, CreatedBy: "emp-1", PaymentMethod: "Bank Transfer", TotalAmount: money("10"), CreatedAt: base},
		[]domain.OrderItem{{PlatformID: a.ID, Quantity: 2}, {PlatformID: b.ID, Quantity: 1}},
		[]domain.PaymentDetail{{PaymentMethod: "Bank Transfer", BankTransactionType: "Wire-Transfer", Amount: money("10")}})
	f.va = mem.AddOrder(domain.Order{CustomerID: customer.ID, CreatedBy: "emp-2", PaymentMethod: "bank", TotalAmount: money("20"), CreatedAt: base.Add(time.Hour)},
		[]domain.OrderItem{{PlatformID: b.ID, Quantity: 3}},
		[]domain.PaymentDetail{{PaymentMethod: "bank", Amount: money("20"), PaymentData: json.RawMessage(`"{\"transaction_type\":\"Virtual Account\"}"`)}})
	f.cash = mem.AddOrder(domain.Order{PaymentMethod: "Cash", CreatedBy: "emp-1", TotalAmount: money("5"), CreatedAt: base.Add(2 * time.Hour)},
		[]domain.OrderItem{{PlatformID: a.ID, Quantity: 1}},
		[]domain.PaymentDetail{{PaymentMethod: "Cash", Amount: money("5")}})
	f.crypto = mem.AddOrder(domain.Order{PaymentMethod: "crypto", CreatedBy: "emp-2", TotalAmount: money("40"), CreatedAt: base.Add(3 * time.Hour)},
		[]domain.OrderItem{{PlatformID: a.ID, Quantity: 4}},
		[]domain.PaymentDetail{{PaymentMethod: "crypto", CryptoCurrency: "usdt", CryptoNetwork: "TRC20", Amount: money("40")}})
	f.mixed = mem.AddOrder(domain.Order{PaymentMethod: "split", CreatedBy: "emp-1", TotalAmount: money("15"), CreatedAt: base.Add(4 * time.Hour)},
		[]domain.OrderItem{{PlatformID: b.ID, Quantity: 1}},
		[]domain.PaymentDetail{
			{PaymentMethod: "crypto", CryptoCurrency: "USDC", CryptoNetwork: "erc20", Amount: money("10")},
			{PaymentMethod: "cash", Amount: money("5")},
		})

	f.agg = NewAggregator(repo, nil, 0, nil)
	return f
}

func orderIDs(orders []domain.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestFetchOrdersShortCircuitsOnEmptyResult(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	rep, err := f.agg.FetchOrdersWithDetails(context.Background(), domain.ReportFilters{From: &from})
	require.NoError(t, err)
	assert.NotNil(t, rep.Orders)
	assert.NotNil(t, rep.Items)
	assert.NotNil(t, rep.Payments)
	assert.Empty(t, rep.Orders)
	assert.Empty(t, rep.Items)
	assert.Empty(t, rep.Payments)
	assert.Equal(t, int32(1), f.repo.orders.Load())
	assert.Equal(t, int32(0), f.repo.items.Load())
	assert.Equal(t, int32(0), f.repo.payments.Load())

	raw, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orders":[],"items":[],"payments":[]}`, string(raw))
}

func TestFetchOrdersWithoutFiltersReturnsEverything(t *testing.T) {
	f := newFixture(t)
	rep, err := f.agg.FetchOrdersWithDetails(context.Background(), domain.ReportFilters{})
	require.NoError(t, err)
	assert.Len(t, rep.Orders, 5)
	assert.Len(t, rep.Items, 6)
	assert.Len(t, rep.Payments, 6)
	assert.Equal(t, int32(1), f.repo.items.Load())
	assert.Equal(t, int32(1), f.repo.payments.Load())
}

func TestFetchOrdersPlatformNarrowing(t *testing.T) {
	f := newFixture(t)
	rep, err := f.agg.FetchOrdersWithDetails(context.Background(), domain.ReportFilters{PlatformID: f.platformA.ID})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{f.wire.ID, f.cash.ID, f.crypto.ID}, orderIDs(rep.Orders))
	for _, item := range rep.Items {
		assert.Equal(t, f.platformA.ID, item.PlatformID)
	}
	withItem := map[string]bool{}
	for _, item := range rep.Items {
		withItem[item.OrderID] = true
	}
	for _, o := range rep.Orders {
		assert.True(t, withItem[o.ID], "order %s has no item for the platform", o.ID)
	}
	for _, d := range rep.Payments {
		assert.NotEqual(t, f.va.ID, d.OrderID)
	}
}

func TestFetchOrdersBankSubtype(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.agg.FetchOrdersWithDetails(ctx, domain.ReportFilters{PaymentMethod: "bank:wiretransfer"})
	require.NoError(t, err)
	assert.Equal(t, []string{f.wire.ID}, orderIDs(rep.Orders))
	require.Len(t, rep.Items, 2)
	require.Len(t, rep.Payments, 1)

	rep, err = f.agg.FetchOrdersWithDetails(ctx, domain.ReportFilters{PaymentMethod: "bank:virtual-account"})
	require.NoError(t, err)
	assert.Equal(t, []string{f.va.ID}, orderIDs(rep.Orders))
}

func TestFetchOrdersBaseTokenUsesLooseMatch(t *testing.T) {
	f := newFixture(t)
	rep, err := f.agg.FetchOrdersWithDetails(context.Background(), domain.ReportFilters{PaymentMethod: "bank"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.wire.ID, f.va.ID}, orderIDs(rep.Orders))
}

func TestFetchOrdersCashMatchesPaymentRows(t *testing.T) {
	f := newFixture(t)
	rep, err := f.agg.FetchOrdersWithDetails(context.Background(), domain.ReportFilters{PaymentMethod: "cash"})
	require.NoError(t, err)
	// The loose order-level match only keeps orders labelled "cash".
	assert.Equal(t, []string{f.cash.ID}, orderIDs(rep.Orders))
}

func TestFetchOrdersCryptoSubtypeKeepsAllPaymentsOfMatchedOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.agg.FetchOrdersWithDetails(ctx, domain.ReportFilters{PaymentMethod: "crypto:usdc"})
	require.NoError(t, err)
	assert.Equal(t, []string{f.mixed.ID}, orderIDs(rep.Orders))
	assert.Len(t, rep.Payments, 2, "payments of a matched order are not filtered by subtype")

	rep, err = f.agg.FetchOrdersWithDetails(ctx, domain.ReportFilters{PaymentMethod: "crypto:TRC20"})
	require.NoError(t, err)
	assert.Equal(t, []string{f.crypto.ID}, orderIDs(rep.Orders))
}

func TestFetchOrdersCombinesFilters(t *testing.T) {
	f := newFixture(t)
	rep, err := f.agg.FetchOrdersWithDetails(context.Background(), domain.ReportFilters{
		PlatformID:    f.platformB.ID,
		EmployeeID:    "emp-1",
		PaymentMethod: "crypto:USDC",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{f.mixed.ID}, orderIDs(rep.Orders))
	require.Len(t, rep.Items, 1)
	assert.Equal(t, f.platformB.ID, rep.Items[0].PlatformID)
}

func TestFetchOrdersPropagatesStoreErrors(t *testing.T) {
	f := newFixture(t)
	f.repo.failItems = errors.New("connection reset")
	_, err := f.agg.FetchOrdersWithDetails(context.Background(), domain.ReportFilters{})
	require.EqualError(t, err, "connection reset")
}

func TestFetchFiltersSingleCryptoRow(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mem.AddOrder(domain.Order{PaymentMethod: "crypto"}, nil, []domain.PaymentDetail{{PaymentMethod: "crypto", CryptoCurrency: "usdt"}})

	opts, err := NewAggregator(mem, nil, 0, nil).FetchFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bank:transfer", "crypto:USDC", "crypto:USDT"}, opts.PaymentMethods)
	assert.NotNil(t, opts.Platforms)
	assert.NotNil(t, opts.Customers)
	assert.NotNil(t, opts.Employees)
}

func TestFetchFiltersCollectsDistinctOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(domain.UserAccount{Username: "sari", FullName: "Sari", Role: domain.RoleEmployee, Active: true})
	f.repo.AddUser(domain.UserAccount{Username: "admin", FullName: "Admin", Role: domain.RoleAdmin, Active: true})

	opts, err := f.agg.FetchFilters(ctx)
	require.NoError(t, err)
	assert.Len(t, opts.Platforms, 2)
	assert.Len(t, opts.Customers, 1)
	require.Len(t, opts.Employees, 1)
	assert.Equal(t, "Sari", opts.Employees[0].FullName)
	assert.Equal(t, []string{
		"bank", "bank:transfer", "bank:virtualaccount", "bank:wiretransfer",
		"cash", "crypto:USDC", "crypto:USDT", "crypto:erc20", "crypto:trc20",
	}, opts.PaymentMethods)
}

func TestFetchFiltersUsesCacheUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg := NewAggregator(f.repo, &mapCache{}, time.Minute, nil)

	_, err := agg.FetchFilters(ctx)
	require.NoError(t, err)
	_, err = agg.FetchFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.repo.allPayments.Load())

	agg.InvalidateFilters(ctx)
	_, err = agg.FetchFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.repo.allPayments.Load())
}
