package service

import (
	"context"
	"fmt"
	"time"

	"seafood-order-service/internal/models"
	"seafood-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultRevenueDays = 7
	MaxRevenueDays     = 90

	dayLayout = "2006-01-02"
)

// RevenueCacheKey names the cached series for a window ending on day
func RevenueCacheKey(days int, day string) string {
	return fmt.Sprintf("%d:%s", days, day)
}

// GetRevenueAnalytics returns revenue per UTC day for the last `days` days,
// oldest first, with zero for days without orders (admin). Cancelled orders
// do not count. days <= 0 selects the default window.
func (s *OrderService) GetRevenueAnalytics(ctx context.Context, p models.Principal, days int) ([]models.DailyRevenue, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetRevenueAnalytics")
	defer span.End()

	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if days <= 0 {
		days = DefaultRevenueDays
	}
	if days > MaxRevenueDays {
		return nil, ErrInvalidRange
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))
	cacheKey := RevenueCacheKey(days, today.Format(dayLayout))

	if s.cache != nil {
		series, ok, err := s.cache.GetRevenue(ctx, cacheKey)
		switch {
		case err != nil:
			util.AnalyticsCacheHits.WithLabelValues("error").Inc()
			s.logger.Warn("Revenue cache read failed", zap.Error(err))
		case ok:
			util.AnalyticsCacheHits.WithLabelValues("hit").Inc()
			return series, nil
		default:
			util.AnalyticsCacheHits.WithLabelValues("miss").Inc()
		}
	}

	rows, err := s.orders.RevenueByDay(ctx, since)
	if err != nil {
		s.logger.Error("Failed to aggregate revenue", zap.Error(err))
		return nil, infra("aggregate revenue", err)
	}

	series := zeroFill(rows, since, days)

	if s.cache != nil {
		if err := s.cache.SetRevenue(ctx, cacheKey, series, s.cfg.AnalyticsTTL); err != nil {
			s.logger.Warn("Revenue cache write failed", zap.Error(err))
		}
	}
	return series, nil
}

// zeroFill lays rows onto a contiguous run of days starting at since
func zeroFill(rows []models.DailyRevenue, since time.Time, days int) []models.DailyRevenue {
	byDate := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r.Revenue
	}

	series := make([]models.DailyRevenue, 0, days)
	for i := 0; i < days; i++ {
		date := since.AddDate(0, 0, i).Format(dayLayout)
		revenue, ok := byDate[date]
		if !ok {
			revenue = decimal.Zero
		}
		series = append(series, models.DailyRevenue{Date: date, Revenue: revenue})
	}
	return series
}
