package service

import (
	"context"
	"time"

	"rental-service/internal/calendar"
	"rental-service/internal/models"
	"rental-service/internal/util"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var cacheJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// AvailabilityService answers whether a product is free on given days
type AvailabilityService struct {
	store    Store
	cache    CalendarCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAvailabilityService creates a new availability service. cache may be nil.
func NewAvailabilityService(store Store, cache CalendarCache, cacheTTL time.Duration) *AvailabilityService {
	return &AvailabilityService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// CheckRange reports whether no reserved mark exists for the product on any
// day of [start, end]. It always reads the store.
func (s *AvailabilityService) CheckRange(ctx context.Context, productID int64, start, end time.Time) (bool, error) {
	ctx, span := util.StartSpan(ctx, "AvailabilityService.CheckRange",
		attribute.Int64("product_id", productID))
	defer span.End()

	from, to := calendar.Day(start), calendar.Day(end)
	if to.Before(from) {
		return false, models.NewValidation("end_date", "must not be before start_date")
	}

	reserved, err := s.store.GetReservedDates(ctx, productID, from, to)
	if err != nil {
		util.RecordError(span, err)
		return false, err
	}
	return len(reserved) == 0, nil
}

// IsRangeAvailable is CheckRange that fails closed: any error reads as
// unavailable.
func (s *AvailabilityService) IsRangeAvailable(ctx context.Context, productID int64, start, end time.Time) bool {
	ok, err := s.CheckRange(ctx, productID, start, end)
	if err != nil {
		util.AvailabilityChecksTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Availability check failed, treating range as unavailable",
			zap.Int64("product_id", productID),
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err))
		return false
	}

	if ok {
		util.AvailabilityChecksTotal.WithLabelValues("available").Inc()
	} else {
		util.AvailabilityChecksTotal.WithLabelValues("reserved").Inc()
	}
	return ok
}

// MonthlyAvailability partitions every day of the month containing month into
// reserved and available days. Results are cached per product and month.
func (s *AvailabilityService) MonthlyAvailability(ctx context.Context, productID int64, month time.Time) (*models.ProductAvailability, error) {
	ctx, span := util.StartSpan(ctx, "AvailabilityService.MonthlyAvailability",
		attribute.Int64("product_id", productID))
	defer span.End()

	first, last := calendar.MonthBounds(month)
	monthKey := first.Format(calendar.MonthLayout)

	if cached := s.cachedMonth(ctx, productID, monthKey); cached != nil {
		return cached, nil
	}

	reserved, err := s.store.GetReservedDates(ctx, productID, first, last)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	taken := make(map[time.Time]bool, len(reserved))
	for _, d := range reserved {
		taken[calendar.Day(d)] = true
	}

	view := &models.ProductAvailability{
		ProductID:      productID,
		Month:          monthKey,
		AvailableDates: make([]time.Time, 0, len(taken)),
		ReservedDates:  make([]time.Time, 0, len(taken)),
	}
	for _, d := range calendar.Range(first, last) {
		if taken[d] {
			view.ReservedDates = append(view.ReservedDates, d)
		} else {
			view.AvailableDates = append(view.AvailableDates, d)
		}
	}
	view.IsAvailable = len(view.AvailableDates) > 0

	s.storeMonth(ctx, view)
	return view, nil
}

// InvalidateRange drops cached month views touched by [start, end]. Failures
// are logged only.
func (s *AvailabilityService) InvalidateRange(ctx context.Context, productID int64, start, end time.Time) {
	if s.cache == nil {
		return
	}

	spanned := calendar.MonthsSpanned(start, end)
	months := make([]string, 0, len(spanned))
	for _, m := range spanned {
		months = append(months, m.Format(calendar.MonthLayout))
	}

	if err := s.cache.InvalidateCalendar(ctx, productID, months); err != nil {
		s.logger.Warn("Failed to invalidate calendar cache",
			zap.Int64("product_id", productID),
			zap.Strings("months", months),
			zap.Error(err))
	}
}

func (s *AvailabilityService) cachedMonth(ctx context.Context, productID int64, month string) *models.ProductAvailability {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.GetCalendar(ctx, productID, month)
	if err != nil {
		util.CalendarCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Calendar cache read failed", zap.Int64("product_id", productID), zap.Error(err))
		return nil
	}
	if data == nil {
		util.CalendarCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}

	var view models.ProductAvailability
	if !cacheJSON.Valid(data) || cacheJSON.Unmarshal(data, &view) != nil {
		util.CalendarCacheTotal.WithLabelValues("error").Inc()
		return nil
	}
	util.CalendarCacheTotal.WithLabelValues("hit").Inc()
	return &view
}

func (s *AvailabilityService) storeMonth(ctx context.Context, view *models.ProductAvailability) {
	if s.cache == nil {
		return
	}

	data, err := cacheJSON.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.SetCalendar(ctx, view.ProductID, view.Month, data, s.cacheTTL); err != nil {
		s.logger.Warn("Calendar cache write failed", zap.Int64("product_id", view.ProductID), zap.Error(err))
	}
}
