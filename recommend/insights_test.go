package recommend

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestInsights(t *testing.T) {
	e := newEnv(t, EngineConfig{})
	e.user(t, "u1", "music")
	ctx := context.Background()

	// Saturdays, evening.
	sat := time.Date(2025, 4, 5, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := event(fmt.Sprintf("past-%d", i), sat.AddDate(0, 0, -7*i), 10, "music")
		ev.City = "Mumbai"
		e.store.PutEvent(ev)
		if _, err := e.tracker.TrackRegistration(ctx, "u1", ev.ID, RequestMeta{}); err != nil {
			t.Fatalf("TrackRegistration: %v", err)
		}
	}
	e.store.PutEvent(event("next", now.Add(day), 10, "music"))
	if err := e.tracker.TrackSearch(ctx, "u1", "jazz", nil, 3, RequestMeta{}); err != nil {
		t.Fatalf("TrackSearch: %v", err)
	}

	r := NewReporter(e.store, e.store, e.engine)
	r.now = func() time.Time { return now }
	in, err := r.Insights(ctx, "u1")
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if len(in.FavoriteCategories) != 1 || in.FavoriteCategories[0].Category != "music" {
		t.Fatalf("favorite categories = %+v", in.FavoriteCategories)
	}
	if len(in.MostVisitedCities) != 1 || in.MostVisitedCities[0].City != "Mumbai" || in.MostVisitedCities[0].Frequency != 3 {
		t.Fatalf("cities = %+v", in.MostVisitedCities)
	}
	p := in.AttendancePattern
	if p.TotalRegistrations != 3 || p.PreferredWeekday != "Saturday" || p.PreferredTimeOfDay != "evening" {
		t.Fatalf("attendance = %+v", p)
	}
	if len(in.MonthlyActivity) != 12 {
		t.Fatalf("months = %d", len(in.MonthlyActivity))
	}
	last := in.MonthlyActivity[11]
	if last.Month != "2025-05" || last.Registrations != 3 || last.Searches != 1 {
		t.Fatalf("current month = %+v", last)
	}
	if len(in.UpcomingRecommendations) != 1 || in.UpcomingRecommendations[0].ID != "next" {
		t.Fatalf("upcoming = %v", ids(in.UpcomingRecommendations))
	}
}

func TestSummaryNewestFirst(t *testing.T) {
	e := newEnv(t, EngineConfig{})
	e.user(t, "u1")
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		if err := e.tracker.TrackSearch(ctx, "u1", fmt.Sprintf("q%d", i), nil, 1, RequestMeta{}); err != nil {
			t.Fatalf("TrackSearch: %v", err)
		}
	}
	r := NewReporter(e.store, e.store, e.engine)
	s, err := r.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	got := s.RecentActivity.Searches
	if len(got) != 10 || got[0].Query != "q11" || got[9].Query != "q2" {
		t.Fatalf("recent searches = %d, first %q", len(got), got[0].Query)
	}
	if s.UserProfile.ID != "u1" || s.RecommendationMetrics.LastCalculated == nil {
		t.Fatalf("summary = %+v", s)
	}
}
