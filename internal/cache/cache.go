package cache

import (
	"context"
	"time"

	"coinstock/backend/internal/domain"
)

// FilterCache stores the derived report filter options. A miss is
// (nil, false, nil); errors are advisory and callers fall back to the store.
type FilterCache interface {
	Get(ctx context.Context, key string) (*domain.ReportFilterOptions, bool, error)
	Set(ctx context.Context, key string, value *domain.ReportFilterOptions, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopFilterCache struct{}

func (NoopFilterCache) Get(_ context.Context, _ string) (*domain.ReportFilterOptions, bool, error) {
	return nil, false, nil
}

func (NoopFilterCache) Set(_ context.Context, _ string, _ *domain.ReportFilterOptions, _ time.Duration) error {
	return nil
}

func (NoopFilterCache) Delete(_ context.Context, _ string) error {
	return nil
}
