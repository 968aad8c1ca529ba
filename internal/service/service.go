// Package service exposes the stock repository, the purchase ledger and the
// report aggregator as operations that always return a result envelope.
package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"coinstock/backend/internal/domain"
	"coinstock/backend/internal/logger"
	"coinstock/backend/internal/metrics"
	"coinstock/backend/internal/report"
	"coinstock/backend/internal/result"
	"coinstock/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	reports  *report.Aggregator
	log      *logger.Logger
	metrics  *metrics.StoreMetrics
	validate *validator.Validate
	now      func() time.Time
}

func New(repo store.Repository, reports *report.Aggregator, log *logger.Logger, m *metrics.StoreMetrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if reports == nil {
		reports = report.NewAggregator(repo, nil, 0, log)
	}
	return &Service{
		repo:     repo,
		reports:  reports,
		log:      log,
		metrics:  m,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// run times op and converts a failure into the envelope, logging it with the
// envelope code. It never panics past the service boundary.
func run[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) result.Result[T] {
	start := time.Now()
	val, err := fn()
	s.metrics.ObserveDuration(op, time.Since(start))
	if err != nil {
		res := result.FromError[T](err)
		s.metrics.IncFailure(op, res.Code)
		logCtx := s.log.WithFields(ctx, map[string]any{"op": op, "code": res.Code})
		switch status := result.StatusFor(res.Code); {
		case res.Code == result.CodeNotReady:
			s.log.Warn(logCtx, "store not ready")
		case status < http.StatusInternalServerError:
			s.log.Warn(s.log.WithField(logCtx, "error", err.Error()), "store rejected request")
		default:
			s.log.Error(logCtx, "store operation failed", err)
		}
		return res
	}
	return result.Success(val)
}

func (s *Service) invalid(ctx context.Context, op string, err error) string {
	msg := validationMessage(err)
	s.metrics.IncFailure(op, result.CodeValidation)
	s.log.Debug(s.log.WithFields(ctx, map[string]any{"op": op, "reason": msg}), "rejected invalid input")
	return msg
}

func (s *Service) ListPlatforms(ctx context.Context, includeDeleted bool) result.Result[[]domain.Platform] {
	return run(ctx, s, "list_platforms", func() ([]domain.Platform, error) {
		rows, err := s.repo.ListPlatforms(ctx, includeDeleted)
		if err != nil {
			return nil, err
		}
		return store.MapPlatforms(rows), nil
	})
}

// GetPlatform succeeds with a nil payload when the platform does not exist.
func (s *Service) GetPlatform(ctx context.Context, id string) result.Result[*domain.Platform] {
	id = strings.TrimSpace(id)
	if id == "" {
		return result.Invalid[*domain.Platform]("platform id is required")
	}
	return run(ctx, s, "get_platform", func() (*domain.Platform, error) {
		row, err := s.repo.GetPlatform(ctx, id)
		if err != nil || row == nil {
			return nil, err
		}
		p := store.MapPlatform(*row)
		return &p, nil
	})
}

func (s *Service) CreatePlatform(ctx context.Context, input domain.PlatformInput) result.Result[domain.Platform] {
	input.Platform = strings.TrimSpace(input.Platform)
	input.AccountType = strings.TrimSpace(input.AccountType)
	if err := s.validate.Struct(input); err != nil {
		return result.Invalid[domain.Platform](s.invalid(ctx, "create_platform", err))
	}
	res := run(ctx, s, "create_platform", func() (domain.Platform, error) {
		row, err := s.repo.CreatePlatform(ctx, input)
		if err != nil {
			return domain.Platform{}, err
		}
		return store.MapPlatform(*row), nil
	})
	s.afterPlatformChange(ctx, res.OK)
	return res
}

func (s *Service) UpdatePlatform(ctx context.Context, id string, changes domain.PlatformChanges) result.Result[domain.Platform] {
	id = strings.TrimSpace(id)
	if id == "" {
		return result.Invalid[domain.Platform]("platform id is required")
	}
	if changes.IsEmpty() {
		return result.Invalid[domain.Platform]("no changes supplied")
	}
	if changes.Platform != nil {
		trimmed := strings.TrimSpace(*changes.Platform)
		changes.Platform = &trimmed
	}
	if err := s.validate.Struct(changes); err != nil {
		return result.Invalid[domain.Platform](s.invalid(ctx, "update_platform", err))
	}
	res := run(ctx, s, "update_platform", func() (domain.Platform, error) {
		row, err := s.repo.UpdatePlatform(ctx, id, changes)
		if err != nil {
			return domain.Platform{}, err
		}
		return store.MapPlatform(*row), nil
	})
	s.afterPlatformChange(ctx, res.OK)
	return res
}

func (s *Service) SoftDeletePlatform(ctx context.Context, id string) result.Result[domain.Platform] {
	now := s.now()
	return s.setDeletedAt(ctx, "soft_delete_platform", id, &now)
}

func (s *Service) RestorePlatform(ctx context.Context, id string) result.Result[domain.Platform] {
	return s.setDeletedAt(ctx, "restore_platform", id, nil)
}

// setDeletedAt writes the marker and re-reads the row to confirm it.
func (s *Service) setDeletedAt(ctx context.Context, op string, id string, deletedAt *time.Time) result.Result[domain.Platform] {
	id = strings.TrimSpace(id)
	if id == "" {
		return result.Invalid[domain.Platform]("platform id is required")
	}
	res := run(ctx, s, op, func() (domain.Platform, error) {
		if err := s.repo.SetPlatformDeletedAt(ctx, id, deletedAt); err != nil {
			return domain.Platform{}, err
		}
		row, err := s.repo.GetPlatform(ctx, id)
		if err != nil {
			return domain.Platform{}, err
		}
		if row == nil {
			return domain.Platform{}, &store.Error{Op: strings.ReplaceAll(op, "_", " "), Err: store.ErrNotFound}
		}
		return store.MapPlatform(*row), nil
	})
	s.afterPlatformChange(ctx, res.OK)
	return res
}

func (s *Service) afterPlatformChange(ctx context.Context, ok bool) {
	if ok {
		s.reports.InvalidateFilters(ctx)
	}
}

func (s *Service) ListPurchaseHistory(ctx context.Context, platformID string) result.Result[[]domain.PurchaseHistoryEntry] {
	platformID = strings.TrimSpace(platformID)
	if platformID == "" {
		return result.Invalid[[]domain.PurchaseHistoryEntry]("platform id is required")
	}
	return s.listHistory(ctx, "list_purchase_history", platformID)
}

func (s *Service) ListAllPurchaseHistory(ctx context.Context) result.Result[[]domain.PurchaseHistoryEntry] {
	return s.listHistory(ctx, "list_all_purchase_history", "")
}

func (s *Service) listHistory(ctx context.Context, op string, platformID string) result.Result[[]domain.PurchaseHistoryEntry] {
	return run(ctx, s, op, func() ([]domain.PurchaseHistoryEntry, error) {
		rows, err := s.repo.ListPurchaseHistory(ctx, platformID)
		if err != nil {
			return nil, err
		}
		return store.MapPurchaseHistories(rows), nil
	})
}

// RecordPurchaseHistory appends a ledger row without touching stock. Stock
// increases go through RecordPurchase.
func (s *Service) RecordPurchaseHistory(ctx context.Context, input domain.PurchaseHistoryInput) result.Result[domain.PurchaseHistoryEntry] {
	input.PlatformID = strings.TrimSpace(input.PlatformID)
	if input.PurchasedBy == "" {
		input.PurchasedBy = s.actorID(ctx)
	}
	if err := s.validate.Struct(input); err != nil {
		return result.Invalid[domain.PurchaseHistoryEntry](s.invalid(ctx, "record_purchase_history", err))
	}
	if input.NewInventory != input.PreviousInventory+input.Quantity {
		return result.Invalid[domain.PurchaseHistoryEntry]("validation failed: new_inventory must equal previous_inventory + quantity")
	}
	total := input.CostPerUnit.Mul(decimal.NewFromInt(int64(input.Quantity)))
	return run(ctx, s, "record_purchase_history", func() (domain.PurchaseHistoryEntry, error) {
		row, err := s.repo.InsertPurchaseHistory(ctx, input, total)
		if err != nil {
			return domain.PurchaseHistoryEntry{}, err
		}
		return store.MapPurchaseHistory(*row), nil
	})
}

// RecordPurchase is the only path that increases stock. The store performs
// the stock update and the ledger append as one transaction; a store without
// the procedure fails with NOT_READY and nothing is written.
func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) result.Result[domain.PurchaseResult] {
	req.PlatformID = strings.TrimSpace(req.PlatformID)
	req.Supplier = strings.TrimSpace(req.Supplier)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.PurchasedBy == "" {
		req.PurchasedBy = s.actorID(ctx)
	}
	if err := s.validate.Struct(req); err != nil {
		return result.Invalid[domain.PurchaseResult](s.invalid(ctx, "record_purchase", err))
	}

	ctx = s.log.WithFields(ctx, map[string]any{"platform_id": req.PlatformID, "quantity": req.Quantity})
	res := run(ctx, s, "record_purchase", func() (domain.PurchaseResult, error) {
		out, err := s.repo.RecordPurchase(ctx, req)
		if err != nil {
			return domain.PurchaseResult{}, err
		}
		return *out, nil
	})
	if res.OK {
		s.metrics.AddPurchasedUnits(req.Quantity)
		s.log.Info(s.log.WithFields(ctx, map[string]any{
			"purchase_history_id": res.Data.PurchaseHistoryID,
			"new_inventory":       res.Data.NewInventory,
		}), "purchase recorded")
	}
	return res
}

func (s *Service) FetchReportFilters(ctx context.Context) result.Result[domain.ReportFilterOptions] {
	return run(ctx, s, "fetch_report_filters", func() (domain.ReportFilterOptions, error) {
		return s.reports.FetchFilters(ctx)
	})
}

func (s *Service) FetchOrdersWithDetails(ctx context.Context, filters domain.ReportFilters) result.Result[domain.OrderReport] {
	if filters.From != nil && filters.To != nil && filters.From.After(*filters.To) {
		return result.Invalid[domain.OrderReport]("validation failed: from must not be after to")
	}
	return run(ctx, s, "fetch_orders_with_details", func() (domain.OrderReport, error) {
		return s.reports.FetchOrdersWithDetails(ctx, filters)
	})
}

func (s *Service) actorID(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.UserID
}
