// Package catalog tracks category views and clicks and ranks categories by
// recent and overall popularity.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/models"
)

const (
	TrendingWindowDays = 7
	DefaultLimit       = 10
	MaxLimit           = 100
)

type Store interface {
	IncrementCategoryView(ctx context.Context, id string, now time.Time) (*models.Category, error)
	IncrementCategoryClick(ctx context.Context, id string) (*models.Category, error)
	// ListActiveCategories returns active categories in a stable order.
	ListActiveCategories(ctx context.Context) ([]models.Category, error)
}

// TrendingCache memoizes the trending ranking. Misses and errors fall back to
// computing from the store.
type TrendingCache interface {
	GetTrending(ctx context.Context, limit int) ([]models.TrendingCategory, bool, error)
	SetTrending(ctx context.Context, limit int, items []models.TrendingCategory, ttl time.Duration) error
}

type Service struct {
	store    Store
	cache    TrendingCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewService builds the service. cache may be nil.
func NewService(store Store, cache TrendingCache, cacheTTL time.Duration, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  m,
		log:      log.With("component", "CategoryService"),
		now:      time.Now,
	}
}

func (s *Service) IncrementView(ctx context.Context, id string) (*models.Category, error) {
	c, err := s.store.IncrementCategoryView(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("increment view for category %s: %w", id, err)
	}
	if s.metrics != nil {
		s.metrics.CategoryViews.Inc()
	}
	return c, nil
}

func (s *Service) IncrementClick(ctx context.Context, id string) (*models.Category, error) {
	c, err := s.store.IncrementCategoryClick(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("increment click for category %s: %w", id, err)
	}
	return c, nil
}

// GetTrending ranks active categories by views over the last seven calendar
// days, today included. Ties keep store order.
func (s *Service) GetTrending(ctx context.Context, limit int) ([]models.TrendingCategory, error) {
	limit = clampLimit(limit)
	if s.cache != nil {
		items, ok, err := s.cache.GetTrending(ctx, limit)
		if err != nil {
			s.log.Warn("Trending cache read failed", "error", err)
		} else if ok {
			return items, nil
		}
	}

	categories, err := s.store.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active categories: %w", err)
	}
	items := RankTrending(categories, s.now(), limit)

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetTrending(ctx, limit, items, s.cacheTTL); err != nil {
			s.log.Warn("Trending cache write failed", "error", err)
		}
	}
	return items, nil
}

// GetPopular ranks active categories by popularity score.
func (s *Service) GetPopular(ctx context.Context, limit int) ([]models.Category, error) {
	limit = clampLimit(limit)
	categories, err := s.store.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active categories: %w", err)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Analytics.PopularityScore > categories[j].Analytics.PopularityScore
	})
	if len(categories) > limit {
		categories = categories[:limit]
	}
	return categories, nil
}

// RankTrending sums each category's view buckets inside the window ending at
// now and sorts by that sum, descending and stable.
func RankTrending(categories []models.Category, now time.Time, limit int) []models.TrendingCategory {
	since := models.Day(now).AddDate(0, 0, -(TrendingWindowDays - 1))
	out := make([]models.TrendingCategory, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.TrendingCategory{
			Category:     c,
			RecentViews:  c.Analytics.ViewsSince(since),
			WindowInDays: TrendingWindowDays,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecentViews > out[j].RecentViews })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
