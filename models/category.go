package models

import (
	"sort"
	"time"
)

const ViewHistoryRetention = 90 * 24 * time.Hour

type DailyViewCount struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

type CategoryAnalytics struct {
	Views           int64            `json:"views"`
	Clicks          int64            `json:"clicks"`
	EventCount      int64            `json:"eventCount"`
	CommunityCount  int64            `json:"communityCount"`
	PopularityScore float64          `json:"popularityScore"`
	LastViewedAt    *time.Time       `json:"lastViewedAt,omitempty"`
	ViewHistory     []DailyViewCount `json:"viewHistory"`
}

type Category struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	IsActive  bool              `json:"isActive"`
	Analytics CategoryAnalytics `json:"analytics"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewCategory returns an active category with zeroed analytics.
func NewCategory(id, name, slug string, now time.Time) *Category {
	return &Category{
		ID:        id,
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		Analytics: CategoryAnalytics{ViewHistory: []DailyViewCount{}},
		CreatedAt: now,
	}
}

func PopularityScore(views, eventCount, communityCount int64) float64 {
	return 0.4*float64(views) + 0.3*float64(eventCount) + 0.3*float64(communityCount)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ViewHistoryCutoff is the oldest day kept after a view recorded at now.
func ViewHistoryCutoff(now time.Time) time.Time {
	return Day(now).Add(-ViewHistoryRetention)
}

// RecordView applies a single view: counter, day bucket, retention and score.
func (a *CategoryAnalytics) RecordView(now time.Time) {
	a.Views++
	at := now.UTC()
	a.LastViewedAt = &at

	today := Day(now)
	found := false
	for i := range a.ViewHistory {
		if a.ViewHistory[i].Date.Equal(today) {
			a.ViewHistory[i].Count++
			found = true
			break
		}
	}
	if !found {
		a.ViewHistory = append(a.ViewHistory, DailyViewCount{Date: today, Count: 1})
	}
	a.PruneViewHistory(now)
	a.RecomputePopularity()
}

// PruneViewHistory drops day buckets older than the retention window and keeps
// the remainder ordered by day.
func (a *CategoryAnalytics) PruneViewHistory(now time.Time) {
	cutoff := ViewHistoryCutoff(now)
	kept := a.ViewHistory[:0]
	for _, v := range a.ViewHistory {
		if !v.Date.Before(cutoff) {
			kept = append(kept, v)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })
	a.ViewHistory = kept
}

func (a *CategoryAnalytics) RecomputePopularity() {
	a.PopularityScore = PopularityScore(a.Views, a.EventCount, a.CommunityCount)
}

// ViewsSince sums day buckets on or after since.
func (a CategoryAnalytics) ViewsSince(since time.Time) int64 {
	var total int64
	for _, v := range a.ViewHistory {
		if !v.Date.Before(since) {
			total += v.Count
		}
	}
	return total
}

type TrendingCategory struct {
	Category     Category `json:"category"`
	RecentViews  int64    `json:"recentViews"`
	WindowInDays int      `json:"windowInDays"`
}
