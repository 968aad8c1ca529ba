package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("COINSTOCK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set COINSTOCK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestRecordPurchaseIsAtomic(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	row, err := s.CreatePlatform(ctx, domain.PlatformInput{
		Platform:    fmt.Sprintf("IT Platform %d", stamp),
		AccountType: "top-up",
		Inventory:   10,
		CostPrice:   decimal.RequireFromString("2.00"),
	})
	require.NoError(t, err)
	platform := store.MapPlatform(*row)
	assert.Equal(t, domain.DefaultLowStockAlert, platform.LowStockAlert)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM purchase_history WHERE platform_id = $1`, platform.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM platforms WHERE id = $1`, platform.ID)
	})

	res, err := s.RecordPurchase(ctx, domain.PurchaseRequest{
		PlatformID:  platform.ID,
		Quantity:    5,
		CostPerUnit: decimal.RequireFromString("2.50"),
		Supplier:    "IT Supplier",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, res.PreviousInventory)
	assert.Equal(t, 15, res.NewInventory)
	assert.True(t, decimal.RequireFromString("12.50").Equal(res.TotalCost), "total %s", res.TotalCost)

	got, err := s.GetPlatform(ctx, platform.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 15, store.MapPlatform(*got).Inventory)

	history, err := s.ListPurchaseHistory(ctx, platform.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	entry := store.MapPurchaseHistory(history[0])
	assert.Equal(t, res.PurchaseHistoryID, entry.ID)
	assert.Equal(t, platform.Platform, entry.PlatformName)
	assert.Nil(t, entry.PurchasedBy)

	_, err = s.RecordPurchase(ctx, domain.PurchaseRequest{PlatformID: platform.ID, Quantity: 0, CostPerUnit: decimal.Zero})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	history, err = s.ListPurchaseHistory(ctx, platform.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSoftDeleteAndRestoreRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	row, err := s.CreatePlatform(ctx, domain.PlatformInput{Platform: fmt.Sprintf("IT Restore %d", time.Now().UnixNano())})
	require.NoError(t, err)
	id := *row.ID
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM platforms WHERE id = $1`, id)
	})

	now := time.Now().UTC()
	require.NoError(t, s.SetPlatformDeletedAt(ctx, id, &now))
	got, err := s.GetPlatform(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	require.NoError(t, s.SetPlatformDeletedAt(ctx, id, nil))
	got, err = s.GetPlatform(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)

	restoredAt := got.UpdatedAt
	require.NoError(t, s.SetPlatformDeletedAt(ctx, id, nil))
	got, err = s.GetPlatform(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, restoredAt, got.UpdatedAt, "restoring an active row must not touch it")

	err = s.SetPlatformDeletedAt(ctx, "00000000-0000-0000-0000-000000000000", nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}
