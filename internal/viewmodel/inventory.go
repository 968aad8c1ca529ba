package viewmodel

import (
	"context"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/result"
)

// Backend is the slice of the service the stock screens talk to.
// *service.Service satisfies it.
type Backend interface {
	ListPlatforms(ctx context.Context, includeDeleted bool) result.Result[[]domain.Platform]
	CreatePlatform(ctx context.Context, input domain.PlatformInput) result.Result[domain.Platform]
	UpdatePlatform(ctx context.Context, id string, changes domain.PlatformChanges) result.Result[domain.Platform]
	SoftDeletePlatform(ctx context.Context, id string) result.Result[domain.Platform]
	RestorePlatform(ctx context.Context, id string) result.Result[domain.Platform]
	RecordPurchase(ctx context.Context, req domain.PurchaseRequest) result.Result[domain.PurchaseResult]
	ListPurchaseHistory(ctx context.Context, platformID string) result.Result[[]domain.PurchaseHistoryEntry]
	ListAllPurchaseHistory(ctx context.Context) result.Result[[]domain.PurchaseHistoryEntry]
}

// InventoryView holds one client's stock screen. It is not safe for
// concurrent use; each session owns its own view.
type InventoryView struct {
	backend        Backend
	pageSize       int
	includeDeleted bool

	platforms []domain.Platform
	query     Query
	page      int

	platformHistory historyWindow
	globalHistory   historyWindow

	lastError *result.Error
}

type historyWindow struct {
	loaded     bool
	platformID string
	entries    []domain.PurchaseHistoryEntry
	page       int
}

func NewInventoryView(backend Backend, pageSize int) *InventoryView {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &InventoryView{
		backend:         backend,
		pageSize:        pageSize,
		page:            1,
		platformHistory: historyWindow{page: 1},
		globalHistory:   historyWindow{page: 1},
	}
}

// Refresh replaces the local list with the store's. On failure the previous
// list is kept.
func (v *InventoryView) Refresh(ctx context.Context) error {
	res := v.backend.ListPlatforms(ctx, v.includeDeleted)
	if !res.OK {
		return v.fail(res.Code, res.Error)
	}
	v.platforms = res.Data
	v.lastError = nil
	return nil
}

func (v *InventoryView) ShowDeleted(ctx context.Context, show bool) error {
	if v.includeDeleted == show {
		return nil
	}
	v.includeDeleted = show
	if err := v.Refresh(ctx); err != nil {
		v.includeDeleted = !show
		return err
	}
	return nil
}

func (v *InventoryView) SetQuery(q Query) {
	v.query = q
	v.page = 1
}

func (v *InventoryView) SetPage(page int) {
	v.page = page
}

func (v *InventoryView) Platforms() []domain.Platform {
	return v.platforms
}

// Visible is the filtered page currently on screen.
func (v *InventoryView) Visible() Page[domain.Platform] {
	return Paginate(FilterPlatforms(v.platforms, v.query), v.page, v.pageSize)
}

func (v *InventoryView) Counts() StockCounts {
	return CountStock(v.platforms)
}

// LastError is the friendly form of the most recent failure, nil after a
// successful refresh.
func (v *InventoryView) LastError() *result.Error {
	return v.lastError
}

func (v *InventoryView) Create(ctx context.Context, input domain.PlatformInput) (domain.Platform, error) {
	return afterMutation(ctx, v, v.backend.CreatePlatform(ctx, input))
}

func (v *InventoryView) Update(ctx context.Context, id string, changes domain.PlatformChanges) (domain.Platform, error) {
	return afterMutation(ctx, v, v.backend.UpdatePlatform(ctx, id, changes))
}

func (v *InventoryView) Delete(ctx context.Context, id string) (domain.Platform, error) {
	return afterMutation(ctx, v, v.backend.SoftDeletePlatform(ctx, id))
}

func (v *InventoryView) Restore(ctx context.Context, id string) (domain.Platform, error) {
	return afterMutation(ctx, v, v.backend.RestorePlatform(ctx, id))
}

// RecordPurchase refetches the list and any loaded history window once the
// purchase has been committed.
func (v *InventoryView) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResult, error) {
	out, err := afterMutation(ctx, v, v.backend.RecordPurchase(ctx, req))
	if err != nil {
		return out, err
	}
	if v.platformHistory.loaded && v.platformHistory.platformID == req.PlatformID {
		if err := v.reloadPlatformHistory(ctx); err != nil {
			return out, err
		}
	}
	if v.globalHistory.loaded {
		if err := v.LoadGlobalHistory(ctx); err != nil {
			return out, err
		}
	}
	return out, nil
}

// afterMutation refetches only once the mutation outcome is known, so the
// list is never older than the write. A failed mutation leaves local state
// untouched.
func afterMutation[T any](ctx context.Context, v *InventoryView, res result.Result[T]) (T, error) {
	if !res.OK {
		var zero T
		return zero, v.fail(res.Code, res.Error)
	}
	if err := v.Refresh(ctx); err != nil {
		return res.Data, err
	}
	return res.Data, nil
}

func (v *InventoryView) LoadPlatformHistory(ctx context.Context, platformID string) error {
	if v.platformHistory.platformID != platformID {
		v.platformHistory.page = 1
	}
	res := v.backend.ListPurchaseHistory(ctx, platformID)
	if !res.OK {
		return v.fail(res.Code, res.Error)
	}
	v.platformHistory.loaded = true
	v.platformHistory.platformID = platformID
	v.platformHistory.entries = res.Data
	return nil
}

func (v *InventoryView) reloadPlatformHistory(ctx context.Context) error {
	return v.LoadPlatformHistory(ctx, v.platformHistory.platformID)
}

func (v *InventoryView) LoadGlobalHistory(ctx context.Context) error {
	res := v.backend.ListAllPurchaseHistory(ctx)
	if !res.OK {
		return v.fail(res.Code, res.Error)
	}
	v.globalHistory.loaded = true
	v.globalHistory.entries = res.Data
	return nil
}

func (v *InventoryView) SetPlatformHistoryPage(page int) {
	v.platformHistory.page = page
}

func (v *InventoryView) SetGlobalHistoryPage(page int) {
	v.globalHistory.page = page
}

func (v *InventoryView) PlatformHistory() Page[domain.PurchaseHistoryEntry] {
	return Paginate(v.platformHistory.entries, v.platformHistory.page, v.pageSize)
}

func (v *InventoryView) GlobalHistory() Page[domain.PurchaseHistoryEntry] {
	return Paginate(v.globalHistory.entries, v.globalHistory.page, v.pageSize)
}

func (v *InventoryView) fail(code string, message string) error {
	err := &result.Error{Message: FriendlyMessage(code, message), Code: code}
	v.lastError = err
	return err
}
