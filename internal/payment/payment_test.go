package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinstock/backend/internal/domain"
)

func TestNormalizeSubtype(t *testing.T) {
	tests := map[string]string{
		"Wire-Transfer":   "wiretransfer",
		"wire transfer":   "wiretransfer",
		" BI-FAST ":       "bifast",
		"TRC_20":          "trc20",
		"":                "",
		"---":             "",
		"wiretransfer":    "wiretransfer",
		"Transferência":   "transferência",
		"Virtual Account": "virtualaccount",
	}
	for in, want := range tests {
		got := NormalizeSubtype(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, got, NormalizeSubtype(got), "normalizing %q twice must be stable", in)
	}
}

func TestClassifyHistoricalShapes(t *testing.T) {
	tests := []struct {
		name   string
		detail domain.PaymentDetail
		want   Method
	}{
		{
			name:   "explicit bank column",
			detail: domain.PaymentDetail{PaymentMethod: "Bank Transfer", BankTransactionType: "Wire-Transfer"},
			want:   Method{Kind: KindBank, BankType: "Wire-Transfer"},
		},
		{
			name:   "bank type nested in json object",
			detail: domain.PaymentDetail{PaymentMethod: "bank", PaymentData: json.RawMessage(`{"transaction_type":"Virtual Account"}`)},
			want:   Method{Kind: KindBank, BankType: "Virtual Account"},
		},
		{
			name:   "bank type nested in double encoded json",
			detail: domain.PaymentDetail{PaymentMethod: "BANK", PaymentData: json.RawMessage(`"{\"bank_transaction_type\":\"transfer\"}"`)},
			want:   Method{Kind: KindBank, BankType: "transfer"},
		},
		{
			name:   "bank type under bank object",
			detail: domain.PaymentDetail{PaymentMethod: "bank", PaymentData: json.RawMessage(`{"bank":{"transactionType":"qris"}}`)},
			want:   Method{Kind: KindBank, BankType: "qris"},
		},
		{
			name:   "explicit column beats blob",
			detail: domain.PaymentDetail{PaymentMethod: "bank", BankTransactionType: "transfer", PaymentData: json.RawMessage(`{"transaction_type":"cheque"}`)},
			want:   Method{Kind: KindBank, BankType: "transfer"},
		},
		{
			name:   "free text only",
			detail: domain.PaymentDetail{PaymentMethod: "Bank Transfer"},
			want:   Method{Kind: KindBank},
		},
		{
			name:   "malformed blob is ignored",
			detail: domain.PaymentDetail{PaymentMethod: "bank", PaymentData: json.RawMessage(`{not json`)},
			want:   Method{Kind: KindBank},
		},
		{
			name:   "cash",
			detail: domain.PaymentDetail{PaymentMethod: "Cash", CashReceiptNumber: "R-001"},
			want:   Method{Kind: KindCash},
		},
		{
			name:   "crypto",
			detail: domain.PaymentDetail{PaymentMethod: "crypto", CryptoCurrency: "usdt", CryptoNetwork: "TRC20"},
			want:   Method{Kind: KindCrypto, Currency: "usdt", Network: "TRC20"},
		},
		{
			name:   "unlabelled row inferred from crypto columns",
			detail: domain.PaymentDetail{PaymentMethod: "other", CryptoCurrency: "BTC"},
			want:   Method{Kind: KindCrypto, Currency: "BTC"},
		},
		{
			name:   "unlabelled row inferred from bank blob",
			detail: domain.PaymentDetail{PaymentMethod: "transfer", PaymentData: json.RawMessage(`{"bank_transaction_type":"rtgs"}`)},
			want:   Method{Kind: KindBank, BankType: "rtgs"},
		},
		{
			name:   "unknown",
			detail: domain.PaymentDetail{PaymentMethod: "voucher"},
			want:   Method{Kind: KindUnknown},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.detail))
		})
	}
}

func TestDeriveTokensSingleCryptoRow(t *testing.T) {
	tokens := DeriveTokens([]domain.PaymentDetail{
		{PaymentMethod: "crypto", CryptoCurrency: "usdt"},
	})

	assert.Equal(t, []string{"bank:transfer", "crypto:USDC", "crypto:USDT"}, tokens)
}

func TestDeriveTokensMixedRows(t *testing.T) {
	tokens := DeriveTokens([]domain.PaymentDetail{
		{PaymentMethod: "Bank Transfer", BankTransactionType: "Wire-Transfer"},
		{PaymentMethod: "bank", PaymentData: json.RawMessage(`{"transaction_type":"transfer"}`)},
		{PaymentMethod: "Cash"},
		{PaymentMethod: "cash"},
		{PaymentMethod: "Crypto", CryptoCurrency: "usdc", CryptoNetwork: "ERC20"},
		{PaymentMethod: "voucher"},
	})

	assert.Equal(t, []string{
		"bank",
		"bank:transfer",
		"bank:wiretransfer",
		"cash",
		"crypto:USDC",
		"crypto:erc20",
	}, tokens)
}

func TestDeriveTokensEmpty(t *testing.T) {
	assert.Equal(t, []string{"bank:transfer", "crypto:USDC"}, DeriveTokens(nil))
}

func TestDecodeObject(t *testing.T) {
	require.Nil(t, decodeObject(nil))
	require.Nil(t, decodeObject(json.RawMessage(`null`)))
	require.Nil(t, decodeObject(json.RawMessage(`[1,2]`)))
	require.Nil(t, decodeObject(json.RawMessage(`"plain text"`)))
	obj := decodeObject(json.RawMessage(`{"a":"b"}`))
	require.NotNil(t, obj)
	assert.Equal(t, "b", obj["a"])
}
