package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/store"
)

// Store is the in-memory repository used in dev mode and tests. The purchase
// recorder runs under the write lock, which is the transaction boundary here.
type Store struct {
	mu                sync.RWMutex
	now               func() time.Time
	purchaseProcedure bool

	platforms       map[string]domain.Platform
	ledger          []store.PurchaseHistoryRow
	usersByUsername map[string]domain.UserAccount
	customers       map[string]domain.Customer
	orders          []domain.Order
	orderItems      []domain.OrderItem
	payments        []domain.PaymentDetail
}

type Option func(*Store)

// WithoutPurchaseProcedure makes RecordPurchase fail as if the server-side
// function had not been provisioned yet.
func WithoutPurchaseProcedure() Option {
	return func(s *Store) {
		s.purchaseProcedure = false
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:               func() time.Time { return time.Now().UTC() },
		purchaseProcedure: true,
		platforms:         make(map[string]domain.Platform),
		ledger:            make([]store.PurchaseHistoryRow, 0, 64),
		usersByUsername:   make(map[string]domain.UserAccount),
		customers:         make(map[string]domain.Customer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ListPlatforms(_ context.Context, includeDeleted bool) ([]store.PlatformRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	platforms := make([]domain.Platform, 0, len(s.platforms))
	for _, p := range s.platforms {
		if p.IsDeleted() && !includeDeleted {
			continue
		}
		platforms = append(platforms, p)
	}
	slices.SortFunc(platforms, func(a, b domain.Platform) int {
		if a.Platform == b.Platform {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Platform, b.Platform)
	})

	rows := make([]store.PlatformRow, 0, len(platforms))
	for _, p := range platforms {
		rows = append(rows, platformRow(p))
	}
	return rows, nil
}

func (s *Store) GetPlatform(_ context.Context, id string) (*store.PlatformRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.platforms[id]
	if !ok {
		return nil, nil
	}
	row := platformRow(p)
	return &row, nil
}

func (s *Store) CreatePlatform(_ context.Context, input domain.PlatformInput) (*store.PlatformRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(input.Platform) == "" || input.Inventory < 0 || input.CostPrice.IsNegative() || input.LowStockAlert < 0 {
		return nil, &store.Error{Op: "create platform", Code: "23514", Err: store.ErrInvalidInput}
	}
	if s.nameTakenLocked("", input.Platform, input.AccountType) {
		return nil, &store.Error{Op: "create platform", Code: "23505", Err: store.ErrConflict}
	}

	lowStock := input.LowStockAlert
	if lowStock == 0 {
		lowStock = domain.DefaultLowStockAlert
	}
	now := s.now()
	p := domain.Platform{
		ID:            uuid.NewString(),
		Platform:      strings.TrimSpace(input.Platform),
		AccountType:   strings.TrimSpace(input.AccountType),
		Inventory:     input.Inventory,
		CostPrice:     input.CostPrice,
		LowStockAlert: lowStock,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	s.platforms[p.ID] = p
	row := platformRow(p)
	return &row, nil
}

func (s *Store) UpdatePlatform(_ context.Context, id string, changes domain.PlatformChanges) (*store.PlatformRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.platforms[id]
	if !ok {
		return nil, &store.Error{Op: "update platform", Err: store.ErrNotFound}
	}
	if changes.Platform != nil {
		p.Platform = strings.TrimSpace(*changes.Platform)
	}
	if changes.AccountType != nil {
		p.AccountType = strings.TrimSpace(*changes.AccountType)
	}
	if changes.Inventory != nil {
		p.Inventory = *changes.Inventory
	}
	if changes.CostPrice != nil {
		p.CostPrice = *changes.CostPrice
	}
	if changes.LowStockAlert != nil {
		p.LowStockAlert = *changes.LowStockAlert
	}
	if p.Platform == "" || p.Inventory < 0 || p.CostPrice.IsNegative() || p.LowStockAlert <= 0 {
		return nil, &store.Error{Op: "update platform", Code: "23514", Err: store.ErrInvalidInput}
	}
	if s.nameTakenLocked(id, p.Platform, p.AccountType) {
		return nil, &store.Error{Op: "update platform", Code: "23505", Err: store.ErrConflict}
	}

	now := s.now()
	p.UpdatedAt = &now
	s.platforms[id] = p
	row := platformRow(p)
	return &row, nil
}

func (s *Store) SetPlatformDeletedAt(_ context.Context, id string, deletedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.platforms[id]
	if !ok {
		return &store.Error{Op: "set platform deleted_at", Err: store.ErrNotFound}
	}
	if deletedAt == nil && p.IsDeleted() && s.nameTakenLocked(id, p.Platform, p.AccountType) {
		return &store.Error{Op: "set platform deleted_at", Code: "23505", Err: store.ErrConflict}
	}
	if p.IsDeleted() == (deletedAt != nil) {
		return nil
	}
	now := s.now()
	if deletedAt != nil {
		at := *deletedAt
		p.DeletedAt = &at
	} else {
		p.DeletedAt = nil
	}
	p.UpdatedAt = &now
	s.platforms[id] = p
	return nil
}

func (s *Store) ListPurchaseHistory(_ context.Context, platformID string) ([]store.PurchaseHistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]store.PurchaseHistoryRow, 0, len(s.ledger))
	for i := len(s.ledger) - 1; i >= 0; i-- {
		row := s.ledger[i]
		if platformID != "" && deref(row.PlatformID) != platformID {
			continue
		}
		rows = append(rows, s.joinLocked(row))
	}
	slices.SortStableFunc(rows, func(a, b store.PurchaseHistoryRow) int {
		return compareTimeDesc(a.CreatedAt, b.CreatedAt)
	})
	return rows, nil
}

func (s *Store) InsertPurchaseHistory(_ context.Context, input domain.PurchaseHistoryInput, totalCost decimal.Decimal) (*store.PurchaseHistoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.platforms[input.PlatformID]
	if !ok {
		return nil, &store.Error{Op: "insert purchase history", Code: "23503", Err: store.ErrInvalidInput}
	}
	if input.Quantity <= 0 || input.CostPerUnit.IsNegative() || input.NewInventory != input.PreviousInventory+input.Quantity {
		return nil, &store.Error{Op: "insert purchase history", Code: "23514", Err: store.ErrInvalidInput}
	}

	row := s.appendLedgerLocked(p, input.Quantity, input.CostPerUnit, totalCost, input.Supplier, input.Notes,
		input.PreviousInventory, input.NewInventory, input.PurchasedBy)
	joined := s.joinLocked(row)
	return &joined, nil
}

// RecordPurchase increases stock and appends the ledger row under one lock
// acquisition.
func (s *Store) RecordPurchase(_ context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.purchaseProcedure {
		return nil, &store.Error{Op: "record purchase", Code: "42883", Err: store.ErrNotReady}
	}
	if req.Quantity <= 0 || req.CostPerUnit.IsNegative() {
		return nil, &store.Error{Op: "record purchase", Code: "22023", Err: store.ErrInvalidInput}
	}
	p, ok := s.platforms[req.PlatformID]
	if !ok || p.IsDeleted() {
		return nil, &store.Error{Op: "record purchase", Code: "P0002", Err: store.ErrNotFound}
	}

	previous := p.Inventory
	p.Inventory = previous + req.Quantity
	now := s.now()
	p.UpdatedAt = &now
	s.platforms[p.ID] = p

	total := req.TotalCost()
	row := s.appendLedgerLocked(p, req.Quantity, req.CostPerUnit, total, req.Supplier, req.Notes, previous, p.Inventory, req.PurchasedBy)

	return &domain.PurchaseResult{
		PurchaseHistoryID: deref(row.ID),
		PreviousInventory: previous,
		NewInventory:      p.Inventory,
		TotalCost:         total,
	}, nil
}

func (s *Store) ListOrders(_ context.Context, query store.OrderQuery) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	like := strings.ToLower(query.PaymentMethodLike)
	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if query.From != nil && o.CreatedAt.Before(*query.From) {
			continue
		}
		if query.To != nil && o.CreatedAt.After(*query.To) {
			continue
		}
		if query.CustomerID != "" && o.CustomerID != query.CustomerID {
			continue
		}
		if query.EmployeeID != "" && o.CreatedBy != query.EmployeeID {
			continue
		}
		if like != "" && !strings.Contains(strings.ToLower(o.PaymentMethod), like) {
			continue
		}
		if c, ok := s.customers[o.CustomerID]; ok && o.CustomerName == "" {
			o.CustomerName = c.Name
		}
		orders = append(orders, o)
	}
	slices.SortStableFunc(orders, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return orders, nil
}

func (s *Store) ListOrderItems(_ context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := toSet(orderIDs)
	items := make([]domain.OrderItem, 0, len(orderIDs))
	for _, item := range s.orderItems {
		if _, ok := ids[item.OrderID]; !ok {
			continue
		}
		if p, ok := s.platforms[item.PlatformID]; ok {
			item.Platform = &domain.OrderItemPlatform{ID: p.ID, Platform: p.Platform, AccountType: p.AccountType}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) ListPaymentDetails(_ context.Context, orderIDs []string) ([]domain.PaymentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := toSet(orderIDs)
	details := make([]domain.PaymentDetail, 0, len(orderIDs))
	for _, d := range s.payments {
		if _, ok := ids[d.OrderID]; ok {
			details = append(details, clonePayment(d))
		}
	}
	return details, nil
}

func (s *Store) ListAllPaymentDetails(_ context.Context) ([]domain.PaymentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	details := make([]domain.PaymentDetail, 0, len(s.payments))
	for _, d := range s.payments {
		details = append(details, clonePayment(d))
	}
	return details, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) ListUsersByRole(_ context.Context, role string) ([]domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserSummary, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		if !u.Active || u.Role != role {
			continue
		}
		users = append(users, domain.UserSummary{ID: u.ID, FullName: u.FullName, Role: u.Role})
	}
	slices.SortFunc(users, func(a, b domain.UserSummary) int {
		return strings.Compare(a.FullName, b.FullName)
	})
	return users, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return &store.Error{Op: "update user password", Err: store.ErrInvalidInput}
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return &store.Error{Op: "update user password", Err: store.ErrNotFound}
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (domain.UserAccount, error) {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return domain.UserAccount{}, &store.Error{Op: "create user", Code: "23502", Err: store.ErrInvalidInput}
	}
	if user.Role != domain.RoleAdmin && user.Role != domain.RoleEmployee {
		return domain.UserAccount{}, &store.Error{Op: "create user", Code: "23514", Err: store.ErrInvalidInput}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usersByUsername[username]; taken {
		return domain.UserAccount{}, &store.Error{Op: "create user", Code: "23505", Err: store.ErrConflict}
	}
	user.ID = ""
	return s.addUserLocked(user), nil
}

// AddUser stores an account whose Password is already a bcrypt hash.
func (s *Store) AddUser(user domain.UserAccount) domain.UserAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(user)
}

func (s *Store) addUserLocked(user domain.UserAccount) domain.UserAccount {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.usersByUsername[user.Username] = user
	return user
}

func (s *Store) AddCustomer(name string) domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.Customer{ID: uuid.NewString(), Name: name}
	s.customers[c.ID] = c
	return c
}

// AddOrder stores an order with its line items and payment rows. Empty ids
// are generated and the order id is propagated to items and payments.
func (s *Store) AddOrder(order domain.Order, items []domain.OrderItem, payments []domain.PaymentDetail) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	if order.Status == "" {
		order.Status = "completed"
	}
	s.orders = append(s.orders, order)
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = order.ID
		item.Platform = nil
		s.orderItems = append(s.orderItems, item)
	}
	for _, d := range payments {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = order.CreatedAt
		}
		d.OrderID = order.ID
		s.payments = append(s.payments, clonePayment(d))
	}
	return order
}

func (s *Store) appendLedgerLocked(p domain.Platform, quantity int, costPerUnit decimal.Decimal, totalCost decimal.Decimal,
	supplier string, notes string, previous int, next int, purchasedBy string) store.PurchaseHistoryRow {
	id := uuid.NewString()
	platformID := p.ID
	platformName := p.Platform
	qty := int64(quantity)
	prev := int64(previous)
	nxt := int64(next)
	cost := costPerUnit
	total := totalCost
	createdAt := s.now()

	row := store.PurchaseHistoryRow{
		ID:                &id,
		PlatformID:        &platformID,
		Quantity:          &qty,
		CostPerUnit:       &cost,
		TotalCost:         &total,
		Supplier:          optional(supplier),
		Notes:             optional(notes),
		PreviousInventory: &prev,
		NewInventory:      &nxt,
		PurchasedBy:       optional(purchasedBy),
		CreatedAt:         &createdAt,
		PlatformName:      &platformName,
	}
	if user, ok := s.userByIDLocked(purchasedBy); ok {
		name := user.FullName
		row.PurchasedByName = &name
	}
	s.ledger = append(s.ledger, row)
	return row
}

// joinLocked fills the joined name columns the way the SQL LEFT JOINs do.
func (s *Store) joinLocked(row store.PurchaseHistoryRow) store.PurchaseHistoryRow {
	row.JoinedPlatformName = nil
	row.JoinedUserName = nil
	if p, ok := s.platforms[deref(row.PlatformID)]; ok {
		name := p.Platform
		row.JoinedPlatformName = &name
	}
	if user, ok := s.userByIDLocked(deref(row.PurchasedBy)); ok {
		name := user.FullName
		row.JoinedUserName = &name
	}
	return row
}

func (s *Store) userByIDLocked(id string) (domain.UserAccount, bool) {
	if id == "" {
		return domain.UserAccount{}, false
	}
	for _, user := range s.usersByUsername {
		if user.ID == id {
			return user, true
		}
	}
	return domain.UserAccount{}, false
}

func (s *Store) nameTakenLocked(exceptID string, name string, accountType string) bool {
	name = strings.TrimSpace(name)
	accountType = strings.TrimSpace(accountType)
	for id, p := range s.platforms {
		if id == exceptID || p.IsDeleted() {
			continue
		}
		if strings.EqualFold(p.Platform, name) && strings.EqualFold(p.AccountType, accountType) {
			return true
		}
	}
	return false
}

func platformRow(p domain.Platform) store.PlatformRow {
	id := p.ID
	name := p.Platform
	accountType := p.AccountType
	inventory := int64(p.Inventory)
	cost := p.CostPrice
	lowStock := int64(p.LowStockAlert)
	return store.PlatformRow{
		ID:            &id,
		Platform:      &name,
		AccountType:   &accountType,
		Inventory:     &inventory,
		CostPrice:     &cost,
		LowStockAlert: &lowStock,
		CreatedAt:     copyTime(p.CreatedAt),
		UpdatedAt:     copyTime(p.UpdatedAt),
		DeletedAt:     copyTime(p.DeletedAt),
	}
}

func clonePayment(d domain.PaymentDetail) domain.PaymentDetail {
	if d.PaymentData != nil {
		d.PaymentData = slices.Clone(d.PaymentData)
	}
	return d
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func optional(val string) *string {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	return &val
}

func deref(val *string) string {
	if val == nil {
		return ""
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

func compareTimeDesc(a *time.Time, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return b.Compare(*a)
	}
}
