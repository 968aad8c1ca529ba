package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func New(ctx context.Context, databaseURL string, pool PoolOptions) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if pool.MaxOpenConns < 1 {
		pool.MaxOpenConns = 20
	}
	if pool.MaxIdleConns < 1 {
		pool.MaxIdleConns = 8
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const platformColumns = `
	id::text, platform, account_type, inventory, cost_price, low_stock_alert, created_at, updated_at, deleted_at
`

func scanPlatform(scanner rowScanner) (store.PlatformRow, error) {
	var (
		id, name, accountType         sql.NullString
		inventory, lowStock           sql.NullInt64
		cost                          decimal.NullDecimal
		createdAt, updatedAt, deleted sql.NullTime
	)
	if err := scanner.Scan(&id, &name, &accountType, &inventory, &cost, &lowStock, &createdAt, &updatedAt, &deleted); err != nil {
		return store.PlatformRow{}, err
	}
	return store.PlatformRow{
		ID:            nullString(id),
		Platform:      nullString(name),
		AccountType:   nullString(accountType),
		Inventory:     nullInt(inventory),
		CostPrice:     nullDecimal(cost),
		LowStockAlert: nullInt(lowStock),
		CreatedAt:     nullTime(createdAt),
		UpdatedAt:     nullTime(updatedAt),
		DeletedAt:     nullTime(deleted),
	}, nil
}

func (s *Store) ListPlatforms(ctx context.Context, includeDeleted bool) ([]store.PlatformRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+platformColumns+`
		FROM platforms
		WHERE ($1 OR deleted_at IS NULL)
		ORDER BY platform, id
	`, includeDeleted)
	if err != nil {
		return nil, wrapErr("list platforms", err)
	}
	defer rows.Close()

	platforms := make([]store.PlatformRow, 0, 64)
	for rows.Next() {
		row, err := scanPlatform(rows)
		if err != nil {
			return nil, wrapErr("list platforms", err)
		}
		platforms = append(platforms, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list platforms", err)
	}
	return platforms, nil
}

func (s *Store) GetPlatform(ctx context.Context, id string) (*store.PlatformRow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row, err := scanPlatform(s.db.QueryRowContext(ctx, `
		SELECT `+platformColumns+`
		FROM platforms
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get platform", err)
	}
	return &row, nil
}

func (s *Store) CreatePlatform(ctx context.Context, input domain.PlatformInput) (*store.PlatformRow, error) {
	lowStock := input.LowStockAlert
	if lowStock == 0 {
		lowStock = domain.DefaultLowStockAlert
	}
	row, err := scanPlatform(s.db.QueryRowContext(ctx, `
		INSERT INTO platforms (platform, account_type, inventory, cost_price, low_stock_alert, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+platformColumns,
		strings.TrimSpace(input.Platform), strings.TrimSpace(input.AccountType), input.Inventory, input.CostPrice, lowStock))
	if err != nil {
		return nil, wrapErr("create platform", err)
	}
	return &row, nil
}

func (s *Store) UpdatePlatform(ctx context.Context, id string, changes domain.PlatformChanges) (*store.PlatformRow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &store.Error{Op: "update platform", Err: store.ErrNotFound}
	}
	row, err := scanPlatform(s.db.QueryRowContext(ctx, `
		UPDATE platforms
		SET platform = COALESCE($2::text, platform),
			account_type = COALESCE($3::text, account_type),
			inventory = COALESCE($4::integer, inventory),
			cost_price = COALESCE($5::numeric, cost_price),
			low_stock_alert = COALESCE($6::integer, low_stock_alert),
			updated_at = now()
		WHERE id = $1
		RETURNING `+platformColumns,
		id, trimmed(changes.Platform), trimmed(changes.AccountType), changes.Inventory, changes.CostPrice, changes.LowStockAlert))
	if err != nil {
		return nil, wrapErr("update platform", err)
	}
	return &row, nil
}

// SetPlatformDeletedAt only writes when the row changes state, so deleting a
// deleted row or restoring an active one leaves it untouched.
func (s *Store) SetPlatformDeletedAt(ctx context.Context, id string, deletedAt *time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return &store.Error{Op: "set platform deleted_at", Err: store.ErrNotFound}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE platforms
		SET deleted_at = CASE WHEN (deleted_at IS NULL) = ($2::timestamptz IS NULL) THEN deleted_at ELSE $2 END,
			updated_at = CASE WHEN (deleted_at IS NULL) = ($2::timestamptz IS NULL) THEN updated_at ELSE now() END
		WHERE id = $1
	`, id, deletedAt)
	if err != nil {
		return wrapErr("set platform deleted_at", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("set platform deleted_at", err)
	}
	if affected == 0 {
		return &store.Error{Op: "set platform deleted_at", Err: store.ErrNotFound}
	}
	return nil
}

const historySelect = `
	SELECT ph.id::text, ph.platform_id::text, ph.quantity, ph.cost_per_unit, ph.total_cost,
		ph.supplier, ph.notes, ph.previous_inventory, ph.new_inventory, ph.purchased_by::text, ph.created_at,
		p.platform, u.full_name, ph.platform_name, ph.purchased_by_name
	FROM purchase_history ph
	LEFT JOIN platforms p ON p.id = ph.platform_id
	LEFT JOIN users u ON u.id = ph.purchased_by
`

func scanHistory(scanner rowScanner) (store.PurchaseHistoryRow, error) {
	var (
		id, platformID, supplier, notes, purchasedBy sql.NullString
		joinedPlatform, joinedUser                   sql.NullString
		platformName, purchasedByName                sql.NullString
		quantity, previous, next                     sql.NullInt64
		costPerUnit, totalCost                       decimal.NullDecimal
		createdAt                                    sql.NullTime
	)
	if err := scanner.Scan(&id, &platformID, &quantity, &costPerUnit, &totalCost, &supplier, &notes, &previous, &next,
		&purchasedBy, &createdAt, &joinedPlatform, &joinedUser, &platformName, &purchasedByName); err != nil {
		return store.PurchaseHistoryRow{}, err
	}
	return store.PurchaseHistoryRow{
		ID:                 nullString(id),
		PlatformID:         nullString(platformID),
		Quantity:           nullInt(quantity),
		CostPerUnit:        nullDecimal(costPerUnit),
		TotalCost:          nullDecimal(totalCost),
		Supplier:           nullString(supplier),
		Notes:              nullString(notes),
		PreviousInventory:  nullInt(previous),
		NewInventory:       nullInt(next),
		PurchasedBy:        nullString(purchasedBy),
		CreatedAt:          nullTime(createdAt),
		JoinedPlatformName: nullString(joinedPlatform),
		JoinedUserName:     nullString(joinedUser),
		PlatformName:       nullString(platformName),
		PurchasedByName:    nullString(purchasedByName),
	}, nil
}

func (s *Store) ListPurchaseHistory(ctx context.Context, platformID string) ([]store.PurchaseHistoryRow, error) {
	if platformID != "" {
		if _, err := uuid.Parse(platformID); err != nil {
			return []store.PurchaseHistoryRow{}, nil
		}
	}
	rows, err := s.db.QueryContext(ctx, historySelect+`
		WHERE ($1 = '' OR ph.platform_id::text = $1)
		ORDER BY ph.created_at DESC, ph.id DESC
	`, platformID)
	if err != nil {
		return nil, wrapErr("list purchase history", err)
	}
	defer rows.Close()

	history := make([]store.PurchaseHistoryRow, 0, 64)
	for rows.Next() {
		row, err := scanHistory(rows)
		if err != nil {
			return nil, wrapErr("list purchase history", err)
		}
		history = append(history, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list purchase history", err)
	}
	return history, nil
}

func (s *Store) InsertPurchaseHistory(ctx context.Context, input domain.PurchaseHistoryInput, totalCost decimal.Decimal) (*store.PurchaseHistoryRow, error) {
	if _, err := uuid.Parse(input.PlatformID); err != nil {
		return nil, &store.Error{Op: "insert purchase history", Code: "22P02", Err: store.ErrInvalidInput}
	}
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO purchase_history (
			platform_id, quantity, cost_per_unit, total_cost, supplier, notes,
			previous_inventory, new_inventory, purchased_by, platform_name, purchased_by_name, created_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::uuid,
			(SELECT platform FROM platforms WHERE id = $1),
			(SELECT full_name FROM users WHERE id = $9::uuid),
			now()
		)
		RETURNING id::text
	`, input.PlatformID, input.Quantity, input.CostPerUnit, totalCost, nullIfEmpty(input.Supplier), nullIfEmpty(input.Notes),
		input.PreviousInventory, input.NewInventory, nullIfEmpty(input.PurchasedBy)).Scan(&id)
	if err != nil {
		return nil, wrapErr("insert purchase history", err)
	}

	row, err := scanHistory(s.db.QueryRowContext(ctx, historySelect+` WHERE ph.id = $1`, id))
	if err != nil {
		return nil, wrapErr("insert purchase history", err)
	}
	return &row, nil
}

// RecordPurchase is a single call to record_platform_purchase; the function
// locks the platform row, bumps inventory and appends the ledger row in one
// transaction. A missing function surfaces as store.ErrNotReady.
func (s *Store) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	if _, err := uuid.Parse(req.PlatformID); err != nil {
		return nil, &store.Error{Op: "record purchase", Code: "P0002", Err: store.ErrNotFound}
	}
	var (
		res   domain.PurchaseResult
		total decimal.Decimal
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT purchase_history_id::text, previous_inventory, new_inventory, total_cost
		FROM record_platform_purchase($1::uuid, $2::integer, $3::numeric, $4::text, $5::text, $6::uuid)
	`, req.PlatformID, req.Quantity, req.CostPerUnit, nullIfEmpty(req.Supplier), nullIfEmpty(req.Notes), nullIfEmpty(req.PurchasedBy)).
		Scan(&res.PurchaseHistoryID, &res.PreviousInventory, &res.NewInventory, &total)
	if err != nil {
		return nil, wrapErr("record purchase", err)
	}
	res.TotalCost = total
	return &res, nil
}

func (s *Store) ListOrders(ctx context.Context, query store.OrderQuery) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id::text, COALESCE(o.order_number, ''), COALESCE(o.customer_id::text, ''), COALESCE(c.name, ''),
			COALESCE(o.created_by::text, ''), COALESCE(o.payment_method, ''), o.total_amount, COALESCE(o.status, ''), o.created_at
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE ($1::timestamptz IS NULL OR o.created_at >= $1)
			AND ($2::timestamptz IS NULL OR o.created_at <= $2)
			AND ($3 = '' OR o.customer_id::text = $3)
			AND ($4 = '' OR o.created_by::text = $4)
			AND ($5 = '' OR o.payment_method ILIKE '%' || $5 || '%')
		ORDER BY o.created_at DESC
	`, query.From, query.To, query.CustomerID, query.EmployeeID, escapeLike(query.PaymentMethodLike))
	if err != nil {
		return nil, wrapErr("list orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		var (
			o     domain.Order
			total decimal.NullDecimal
		)
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.CreatedBy, &o.PaymentMethod,
			&total, &o.Status, &o.CreatedAt); err != nil {
			return nil, wrapErr("list orders", err)
		}
		o.TotalAmount = total.Decimal
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list orders", err)
	}
	return orders, nil
}

func (s *Store) ListOrderItems(ctx context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []domain.OrderItem{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.id::text, oi.order_id::text, COALESCE(oi.platform_id::text, ''), oi.quantity, oi.price,
			p.id::text, p.platform, p.account_type
		FROM order_items oi
		LEFT JOIN platforms p ON p.id = oi.platform_id
		WHERE oi.order_id::text = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, orderIDs)
	if err != nil {
		return nil, wrapErr("list order items", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, len(orderIDs))
	for rows.Next() {
		var (
			item                          domain.OrderItem
			price                         decimal.NullDecimal
			platformID, name, accountType sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.PlatformID, &item.Quantity, &price, &platformID, &name, &accountType); err != nil {
			return nil, wrapErr("list order items", err)
		}
		item.Price = price.Decimal
		if platformID.Valid {
			item.Platform = &domain.OrderItemPlatform{ID: platformID.String, Platform: name.String, AccountType: accountType.String}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list order items", err)
	}
	return items, nil
}

const paymentSelect = `
	SELECT id::text, order_id::text, COALESCE(payment_method, ''), COALESCE(bank_transaction_type, ''),
		COALESCE(crypto_currency, ''), COALESCE(crypto_network, ''), COALESCE(cash_receipt_number, ''),
		amount, payment_data, created_at
	FROM payment_details
`

func (s *Store) ListPaymentDetails(ctx context.Context, orderIDs []string) ([]domain.PaymentDetail, error) {
	if len(orderIDs) == 0 {
		return []domain.PaymentDetail{}, nil
	}
	return s.queryPayments(ctx, "list payment details", paymentSelect+`
		WHERE order_id::text = ANY($1)
		ORDER BY created_at, id
	`, orderIDs)
}

func (s *Store) ListAllPaymentDetails(ctx context.Context) ([]domain.PaymentDetail, error) {
	return s.queryPayments(ctx, "list all payment details", paymentSelect+` ORDER BY created_at, id`)
}

func (s *Store) queryPayments(ctx context.Context, op string, query string, args ...any) ([]domain.PaymentDetail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	details := make([]domain.PaymentDetail, 0, 64)
	for rows.Next() {
		var (
			d      domain.PaymentDetail
			amount decimal.NullDecimal
			data   []byte
		)
		if err := rows.Scan(&d.ID, &d.OrderID, &d.PaymentMethod, &d.BankTransactionType, &d.CryptoCurrency,
			&d.CryptoNetwork, &d.CashReceiptNumber, &amount, &data, &d.CreatedAt); err != nil {
			return nil, wrapErr(op, err)
		}
		d.Amount = amount.Decimal
		if len(data) > 0 {
			d.PaymentData = json.RawMessage(data)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return details, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id::text, name FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, wrapErr("list customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, wrapErr("list customers", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list customers", err)
	}
	return customers, nil
}

func (s *Store) ListUsersByRole(ctx context.Context, role string) ([]domain.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, full_name, role
		FROM users
		WHERE role = $1 AND active = true
		ORDER BY full_name, id
	`, role)
	if err != nil {
		return nil, wrapErr("list users by role", err)
	}
	defer rows.Close()

	users := make([]domain.UserSummary, 0, 16)
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.FullName, &u.Role); err != nil {
			return nil, wrapErr("list users by role", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list users by role", err)
	}
	return users, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, username, full_name, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, wrapErr("list users", err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, wrapErr("list users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return &store.Error{Op: "update user password", Err: store.ErrInvalidInput}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE username = $1`, username, password)
	if err != nil {
		return wrapErr("update user password", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("update user password", err)
	}
	if affected == 0 {
		return &store.Error{Op: "update user password", Err: store.ErrNotFound}
	}
	return nil
}

// CreateUser inserts an account whose Password is already a bcrypt hash.
func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (domain.UserAccount, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, full_name, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id::text, created_at
	`, strings.ToLower(strings.TrimSpace(user.Username)), user.FullName, user.Password, user.Role, user.Active).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return domain.UserAccount{}, wrapErr("create user", err)
	}
	return user, nil
}

func nullString(val sql.NullString) *string {
	if !val.Valid {
		return nil
	}
	s := val.String
	return &s
}

func nullInt(val sql.NullInt64) *int64 {
	if !val.Valid {
		return nil
	}
	i := val.Int64
	return &i
}

func nullDecimal(val decimal.NullDecimal) *decimal.Decimal {
	if !val.Valid {
		return nil
	}
	d := val.Decimal
	return &d
}

func nullTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time
	return &t
}

func nullIfEmpty(val string) any {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	return val
}

func trimmed(val *string) *string {
	if val == nil {
		return nil
	}
	t := strings.TrimSpace(*val)
	return &t
}

// escapeLike neutralizes LIKE metacharacters so the token matches literally.
func escapeLike(val string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(strings.TrimSpace(val))
}
