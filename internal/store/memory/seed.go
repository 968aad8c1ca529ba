package memory

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"coinstock/backend/internal/domain"
)

// NewSeeded returns a store with demo platforms, users, customers and a few
// orders whose payment rows use every historical payment_data shape.
//
// Credentials come from SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD; the
// dev defaults are only meant for local runs without DATABASE_URL.
func NewSeeded(opts ...Option) *Store {
	s := New(opts...)
	now := s.now()

	admin := s.AddUser(seedUser("admin", "Store Admin", envOr("SEED_ADMIN_PASSWORD", "admin123"), domain.RoleAdmin))
	employee := s.AddUser(seedUser("sari", "Sari Wulandari", envOr("SEED_EMPLOYEE_PASSWORD", "employee123"), domain.RoleEmployee))
	s.AddUser(seedUser("dimas", "Dimas Pratama", envOr("SEED_EMPLOYEE_PASSWORD", "employee123"), domain.RoleEmployee))
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override.")
	}

	platforms := map[string]domain.Platform{}
	for _, seed := range []struct {
		name        string
		accountType string
		inventory   int
		cost        string
		lowStock    int
	}{
		{"Mobile Legends Diamonds", "top-up", 240, "0.21", 50},
		{"PUBG Mobile UC", "top-up", 12, "0.95", 20},
		{"Steam Wallet", "gift-card", 0, "9.40", 5},
		{"Valorant Points", "top-up", 35, "4.75", 10},
		{"Genshin Impact Account", "account", 3, "42.00", 0},
	} {
		created := now.Add(-72 * time.Hour)
		lowStock := seed.lowStock
		if lowStock == 0 {
			lowStock = domain.DefaultLowStockAlert
		}
		p := domain.Platform{
			ID:            uuid.NewString(),
			Platform:      seed.name,
			AccountType:   seed.accountType,
			Inventory:     seed.inventory,
			CostPrice:     decimal.RequireFromString(seed.cost),
			LowStockAlert: lowStock,
			CreatedAt:     &created,
			UpdatedAt:     &created,
		}
		s.platforms[p.ID] = p
		platforms[seed.name] = p
	}

	ml := platforms["Mobile Legends Diamonds"]
	pubg := platforms["PUBG Mobile UC"]
	valorant := platforms["Valorant Points"]

	s.mu.Lock()
	s.appendLedgerLocked(ml, 200, decimal.RequireFromString("0.20"), decimal.RequireFromString("40.00"), "Moonton Reseller", "opening stock", 40, 240, admin.ID)
	// Ledger row imported before users were linked: only the legacy name column is set.
	s.appendLedgerLocked(pubg, 10, decimal.RequireFromString("0.95"), decimal.RequireFromString("9.50"), "", "legacy import", 2, 12, "")
	legacyName := "import script"
	s.ledger[len(s.ledger)-1].PurchasedByName = &legacyName
	s.mu.Unlock()

	budi := s.AddCustomer("Budi Santoso")
	rina := s.AddCustomer("Rina Halim")
	kevin := s.AddCustomer("Kevin Tan")

	s.AddOrder(domain.Order{
		OrderNumber: "ORD-1001", CustomerID: budi.ID, CreatedBy: employee.ID, PaymentMethod: "Bank Transfer",
		TotalAmount: decimal.RequireFromString("25.00"), CreatedAt: now.Add(-48 * time.Hour),
	}, []domain.OrderItem{
		{PlatformID: ml.ID, Quantity: 100, Price: decimal.RequireFromString("0.25")},
	}, []domain.PaymentDetail{
		{PaymentMethod: "Bank Transfer", BankTransactionType: "Wire-Transfer", Amount: decimal.RequireFromString("25.00")},
	})

	s.AddOrder(domain.Order{
		OrderNumber: "ORD-1002", CustomerID: rina.ID, CreatedBy: employee.ID, PaymentMethod: "bank",
		TotalAmount: decimal.RequireFromString("11.00"), CreatedAt: now.Add(-30 * time.Hour),
	}, []domain.OrderItem{
		{PlatformID: pubg.ID, Quantity: 10, Price: decimal.RequireFromString("1.10")},
	}, []domain.PaymentDetail{
		{PaymentMethod: "bank", Amount: decimal.RequireFromString("11.00"), PaymentData: json.RawMessage(`"{\"transaction_type\":\"Virtual Account\"}"`)},
	})

	s.AddOrder(domain.Order{
		OrderNumber: "ORD-1003", CustomerID: kevin.ID, CreatedBy: admin.ID, PaymentMethod: "Cash",
		TotalAmount: decimal.RequireFromString("5.50"), CreatedAt: now.Add(-20 * time.Hour),
	}, []domain.OrderItem{
		{PlatformID: valorant.ID, Quantity: 1, Price: decimal.RequireFromString("5.50")},
	}, []domain.PaymentDetail{
		{PaymentMethod: "Cash", CashReceiptNumber: "RC-0003", Amount: decimal.RequireFromString("5.50")},
	})

	s.AddOrder(domain.Order{
		OrderNumber: "ORD-1004", CustomerID: budi.ID, CreatedBy: employee.ID, PaymentMethod: "crypto",
		TotalAmount: decimal.RequireFromString("60.00"), CreatedAt: now.Add(-6 * time.Hour),
	}, []domain.OrderItem{
		{PlatformID: ml.ID, Quantity: 200, Price: decimal.RequireFromString("0.25")},
		{PlatformID: valorant.ID, Quantity: 2, Price: decimal.RequireFromString("5.00")},
	}, []domain.PaymentDetail{
		{PaymentMethod: "crypto", CryptoCurrency: "usdt", CryptoNetwork: "TRC20", Amount: decimal.RequireFromString("60.00")},
	})

	s.AddOrder(domain.Order{
		OrderNumber: "ORD-1005", CustomerID: rina.ID, CreatedBy: admin.ID, PaymentMethod: "Bank BCA",
		TotalAmount: decimal.RequireFromString("9.90"), CreatedAt: now.Add(-2 * time.Hour),
	}, []domain.OrderItem{
		{PlatformID: pubg.ID, Quantity: 9, Price: decimal.RequireFromString("1.10")},
	}, []domain.PaymentDetail{
		{PaymentMethod: "Bank BCA", Amount: decimal.RequireFromString("9.90"), PaymentData: json.RawMessage(`{"bank":{"bank_transaction_type":"transfer"},"account":"1234"}`)},
	})

	return s
}

func seedUser(username string, fullName string, password string, role string) domain.UserAccount {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password for %s: %v", username, err)
	}
	return domain.UserAccount{
		Username: username,
		FullName: fullName,
		Password: string(hash),
		Role:     role,
		Active:   true,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
