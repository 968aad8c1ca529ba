package payment

import (
	"strings"

	"coinstock/backend/internal/domain"
)

// Token is a report filter of the form "base" or "base:subtype".
type Token struct {
	Base    string
	Subtype string
}

func ParseToken(raw string) Token {
	base, subtype, _ := strings.Cut(strings.TrimSpace(raw), ":")
	return Token{
		Base:    strings.ToLower(strings.TrimSpace(base)),
		Subtype: strings.TrimSpace(subtype),
	}
}

func (t Token) String() string {
	if t.Subtype == "" {
		return t.Base
	}
	return t.Base + ":" + t.Subtype
}

func (t Token) IsZero() bool {
	return t.Base == ""
}

// NeedsSecondPass reports whether the coarse order-level filter is not
// enough and payment rows have to be matched one by one.
func (t Token) NeedsSecondPass() bool {
	if t.IsZero() {
		return false
	}
	return t.Subtype != "" || t.Base == KindCash.String()
}

// Matches applies the per-row matching rules:
//   - crypto:X matches on currency or network, case-insensitively;
//   - bank:X compares normalized transaction types by equality or
//     containment either way, then falls back to the normalized free text;
//   - cash matches every cash row.
//
// The bank containment fallback can over-match when one subtype is a
// substring of an unrelated one (e.g. "transfer" vs "wiretransfer").
func (t Token) Matches(detail domain.PaymentDetail) bool {
	if t.IsZero() {
		return true
	}
	method := Classify(detail)

	switch t.Base {
	case KindCrypto.String():
		if t.Subtype == "" {
			return method.Kind == KindCrypto
		}
		return equalFoldNonEmpty(method.Currency, t.Subtype) || equalFoldNonEmpty(method.Network, t.Subtype)
	case KindBank.String():
		if method.Kind != KindBank {
			return false
		}
		want := NormalizeSubtype(t.Subtype)
		if want == "" {
			return true
		}
		if have := NormalizeSubtype(method.BankType); have != "" && containsEither(have, want) {
			return true
		}
		return containsEither(NormalizeSubtype(detail.PaymentMethod), want)
	case KindCash.String():
		return method.Kind == KindCash
	default:
		text := NormalizeSubtype(detail.PaymentMethod)
		if !strings.Contains(text, NormalizeSubtype(t.Base)) {
			return false
		}
		return t.Subtype == "" || strings.Contains(text, NormalizeSubtype(t.Subtype))
	}
}

// MatchingOrderIDs returns the set of order ids with at least one matching
// payment row.
func (t Token) MatchingOrderIDs(details []domain.PaymentDetail) map[string]struct{} {
	ids := make(map[string]struct{}, len(details))
	for _, detail := range details {
		if t.Matches(detail) {
			ids[detail.OrderID] = struct{}{}
		}
	}
	return ids
}

func containsEither(a string, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

func equalFoldNonEmpty(value string, want string) bool {
	value = strings.TrimSpace(value)
	return value != "" && strings.EqualFold(value, strings.TrimSpace(want))
}
