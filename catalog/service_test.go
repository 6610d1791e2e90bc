package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"eventhub/api/apperr"
	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/models"
	"eventhub/api/store/memory"
)

var now = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func category(id string, created time.Time, history ...models.DailyViewCount) models.Category {
	c := models.NewCategory(id, id, id, created)
	c.Analytics.ViewHistory = history
	return *c
}

func daysAgo(n int, count int64) models.DailyViewCount {
	return models.DailyViewCount{Date: models.Day(now).AddDate(0, 0, -n), Count: count}
}

func TestRankTrendingOnlyCountsWindow(t *testing.T) {
	categories := []models.Category{
		category("music", now, daysAgo(0, 2), daysAgo(6, 3), daysAgo(7, 100)),
		category("sports", now, daysAgo(1, 9)),
		category("art", now, daysAgo(30, 50)),
		category("food", now, daysAgo(2, 5)),
	}
	got := RankTrending(categories, now, -1)
	want := []struct {
		id    string
		views int64
	}{{"sports", 9}, {"music", 5}, {"food", 5}, {"art", 0}}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i, w := range want {
		if got[i].Category.ID != w.id || got[i].RecentViews != w.views {
			t.Fatalf("rank %d = %s/%d, want %s/%d", i, got[i].Category.ID, got[i].RecentViews, w.id, w.views)
		}
		if got[i].WindowInDays != TrendingWindowDays {
			t.Fatalf("window = %d", got[i].WindowInDays)
		}
	}
	if top := RankTrending(categories, now, 2); len(top) != 2 {
		t.Fatalf("limit not applied: %d", len(top))
	}
}

func newService(t *testing.T, cache TrendingCache) (*Service, *memory.Store, *metrics.Metrics) {
	t.Helper()
	store := memory.New()
	m := metrics.New()
	svc := NewService(store, cache, time.Minute, m, logger.Nop())
	svc.now = func() time.Time { return now }
	return svc, store, m
}

func TestIncrementViewMaintainsHistory(t *testing.T) {
	svc, store, m := newService(t, nil)
	c := category("music", now, daysAgo(91, 4), daysAgo(3, 1))
	c.Analytics.EventCount = 10
	c.Analytics.CommunityCount = 5
	store.PutCategory(c)

	for i := 0; i < 3; i++ {
		if _, err := svc.IncrementView(context.Background(), "music"); err != nil {
			t.Fatalf("IncrementView: %v", err)
		}
	}
	got, err := store.GetCategory(context.Background(), "music")
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	a := got.Analytics
	if a.Views != 3 {
		t.Fatalf("views = %d", a.Views)
	}
	if len(a.ViewHistory) != 2 {
		t.Fatalf("history = %+v", a.ViewHistory)
	}
	seen := map[time.Time]bool{}
	for _, v := range a.ViewHistory {
		if seen[v.Date] {
			t.Fatalf("duplicate day bucket %s", v.Date)
		}
		seen[v.Date] = true
		if v.Date.Before(models.ViewHistoryCutoff(now)) {
			t.Fatalf("bucket older than retention: %s", v.Date)
		}
	}
	if last := a.ViewHistory[len(a.ViewHistory)-1]; !last.Date.Equal(models.Day(now)) || last.Count != 3 {
		t.Fatalf("today bucket = %+v", last)
	}
	if want := models.PopularityScore(3, 10, 5); a.PopularityScore != want {
		t.Fatalf("popularity = %v, want %v", a.PopularityScore, want)
	}
	if v := testutil.ToFloat64(m.CategoryViews); v != 3 {
		t.Fatalf("category views metric = %v", v)
	}
}

func TestIncrementMissingCategory(t *testing.T) {
	svc, _, _ := newService(t, nil)
	if _, err := svc.IncrementView(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("view err = %v", err)
	}
	if _, err := svc.IncrementClick(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("click err = %v", err)
	}
}

func TestGetPopularSkipsInactive(t *testing.T) {
	svc, store, _ := newService(t, nil)
	a := category("a", now)
	a.Analytics.Views = 10
	b := category("b", now.Add(time.Second))
	b.Analytics.EventCount = 100
	off := category("off", now)
	off.Analytics.Views = 1000
	off.IsActive = false
	store.PutCategory(a)
	store.PutCategory(b)
	store.PutCategory(off)

	got, err := svc.GetPopular(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetPopular: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("popular = %+v", got)
	}
}

type mapCache struct {
	items map[int][]models.TrendingCategory
	reads int
}

func (c *mapCache) GetTrending(ctx context.Context, limit int) ([]models.TrendingCategory, bool, error) {
	c.reads++
	items, ok := c.items[limit]
	return items, ok, nil
}

func (c *mapCache) SetTrending(ctx context.Context, limit int, items []models.TrendingCategory, ttl time.Duration) error {
	c.items[limit] = items
	return nil
}

func TestGetTrendingUsesCache(t *testing.T) {
	cache := &mapCache{items: map[int][]models.TrendingCategory{}}
	svc, store, _ := newService(t, cache)
	store.PutCategory(category("music", now, daysAgo(1, 4)))

	first, err := svc.GetTrending(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
	store.PutCategory(category("sports", now, daysAgo(0, 40)))
	second, err := svc.GetTrending(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("cached result not served: %d then %d", len(first), len(second))
	}
	if cache.reads != 2 {
		t.Fatalf("cache reads = %d", cache.reads)
	}
}
