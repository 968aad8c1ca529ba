// Package payment reconstructs a normalized payment taxonomy from payment
// rows written by several generations of checkout code. The subtype of a row
// may live in a dedicated column, inside the payment_data JSON blob, or only
// in the free-text payment_method.
package payment

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"coinstock/backend/internal/domain"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindBank
	KindCash
	KindCrypto
)

func (k Kind) String() string {
	switch k {
	case KindBank:
		return "bank"
	case KindCash:
		return "cash"
	case KindCrypto:
		return "crypto"
	default:
		return ""
	}
}

// Method is the tagged variant Bank{BankType} | Cash | Crypto{Currency, Network}.
type Method struct {
	Kind     Kind
	BankType string
	Currency string
	Network  string
}

// Tokens always offered to the report UI even if no row uses them yet.
var defaultTokens = []string{"bank:transfer", "crypto:USDC"}

var bankTypeKeys = []string{"bank_transaction_type", "transaction_type", "bankTransactionType", "transactionType"}

// KindOf classifies the free-text payment_method alone.
func KindOf(paymentMethod string) Kind {
	method := strings.ToLower(paymentMethod)
	switch {
	case strings.Contains(method, "bank"):
		return KindBank
	case strings.Contains(method, "cash"):
		return KindCash
	case strings.Contains(method, "crypto"):
		return KindCrypto
	default:
		return KindUnknown
	}
}

// Classify rebuilds the variant for one payment row. When the free text does
// not name a method, the populated subtype columns decide.
func Classify(detail domain.PaymentDetail) Method {
	bankType := BankTransactionType(detail)
	currency := strings.TrimSpace(detail.CryptoCurrency)
	network := strings.TrimSpace(detail.CryptoNetwork)

	kind := KindOf(detail.PaymentMethod)
	if kind == KindUnknown {
		switch {
		case bankType != "":
			kind = KindBank
		case currency != "" || network != "":
			kind = KindCrypto
		case strings.TrimSpace(detail.CashReceiptNumber) != "":
			kind = KindCash
		}
	}

	switch kind {
	case KindBank:
		return Method{Kind: KindBank, BankType: bankType}
	case KindCrypto:
		return Method{Kind: KindCrypto, Currency: currency, Network: network}
	default:
		return Method{Kind: kind}
	}
}

// BankTransactionType prefers the explicit column and falls back to the
// value nested in payment_data.
func BankTransactionType(detail domain.PaymentDetail) string {
	if explicit := strings.TrimSpace(detail.BankTransactionType); explicit != "" {
		return explicit
	}
	obj := decodeObject(detail.PaymentData)
	if obj == nil {
		return ""
	}
	if val := lookupString(obj, bankTypeKeys); val != "" {
		return val
	}
	if nested, ok := obj["bank"].(map[string]any); ok {
		return lookupString(nested, bankTypeKeys)
	}
	return ""
}

// NormalizeSubtype lower-cases and drops every non-alphanumeric rune, so
// "Wire-Transfer" and "wire transfer" both become "wiretransfer".
func NormalizeSubtype(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeriveTokens builds the sorted set of filter tokens observed in details,
// plus the default tokens.
func DeriveTokens(details []domain.PaymentDetail) []string {
	set := make(map[string]struct{}, len(defaultTokens)+len(details))
	for _, token := range defaultTokens {
		set[token] = struct{}{}
	}

	for _, detail := range details {
		method := Classify(detail)
		switch method.Kind {
		case KindBank:
			set["bank"] = struct{}{}
			if bankType := NormalizeSubtype(method.BankType); bankType != "" {
				set["bank:"+bankType] = struct{}{}
			}
		case KindCash:
			set["cash"] = struct{}{}
		case KindCrypto:
			if method.Currency != "" {
				set["crypto:"+strings.ToUpper(method.Currency)] = struct{}{}
			}
			if method.Network != "" {
				set["crypto:"+strings.ToLower(method.Network)] = struct{}{}
			}
		}
	}

	tokens := make([]string, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// decodeObject accepts a JSON object, or a JSON string holding an encoded
// object (some writers double-encoded the blob).
func decodeObject(raw json.RawMessage) map[string]any {
	data := []byte(raw)
	for depth := 0; depth < 3 && len(data) > 0; depth++ {
		var val any
		if err := json.Unmarshal(data, &val); err != nil {
			return nil
		}
		switch typed := val.(type) {
		case map[string]any:
			return typed
		case string:
			data = []byte(typed)
		default:
			return nil
		}
	}
	return nil
}

func lookupString(obj map[string]any, keys []string) string {
	for _, key := range keys {
		if val, ok := obj[key].(string); ok {
			if trimmed := strings.TrimSpace(val); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
