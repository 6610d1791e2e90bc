package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"eventhub/api/models"
)

type UserProfile struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Interests   []string           `json:"interests"`
	Location    models.Location    `json:"location"`
	Preferences models.Preferences `json:"preferences"`
}

type RecentActivity struct {
	Searches      []models.SearchEntry       `json:"searches"`
	Registrations []models.EventRegistration `json:"registrations"`
}

// AnalyticsSummary backs GET /recommendations/analytics.
type AnalyticsSummary struct {
	RecommendationMetrics models.RecommendationMetrics `json:"recommendationMetrics"`
	CategoryPreferences   []models.CategoryPreference  `json:"categoryPreferences"`
	LocationHistory       []models.LocationVisit       `json:"locationHistory"`
	RecentActivity        RecentActivity               `json:"recentActivity"`
	UserProfile           UserProfile                  `json:"userProfile"`
}

type AttendancePattern struct {
	TotalRegistrations int            `json:"totalRegistrations"`
	ByWeekday          map[string]int `json:"byWeekday"`
	ByTimeOfDay        map[string]int `json:"byTimeOfDay"`
	PreferredWeekday   string         `json:"preferredWeekday,omitempty"`
	PreferredTimeOfDay string         `json:"preferredTimeOfDay,omitempty"`
}

type MonthlyActivity struct {
	Month         string `json:"month"`
	Registrations int    `json:"registrations"`
	Searches      int    `json:"searches"`
}

// Insights backs GET /recommendations/insights.
type Insights struct {
	FavoriteCategories      []models.CategoryPreference `json:"favoriteCategories"`
	MostVisitedCities       []models.LocationVisit      `json:"mostVisitedCities"`
	AttendancePattern       AttendancePattern           `json:"attendancePattern"`
	MonthlyActivity         []MonthlyActivity           `json:"monthlyActivity"`
	UpcomingRecommendations []models.Event              `json:"upcomingRecommendations"`
}

const (
	recentActivityLimit  = 10
	insightTopN          = 5
	insightMonths        = 12
	insightUpcomingLimit = 5
)

type Reporter struct {
	users  UserReader
	events EventCatalog
	engine *Engine
	now    func() time.Time
}

func NewReporter(users UserReader, events EventCatalog, engine *Engine) *Reporter {
	return &Reporter{users: users, events: events, engine: engine, now: time.Now}
}

func (r *Reporter) Summary(ctx context.Context, userID string) (*AnalyticsSummary, error) {
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	a := user.Analytics
	return &AnalyticsSummary{
		RecommendationMetrics: a.RecommendationMetrics.Recalculated(r.now()),
		CategoryPreferences:   models.TopCategoryPreferences(a.CategoryPreferences, -1),
		LocationHistory:       a.LocationHistory,
		RecentActivity: RecentActivity{
			Searches:      newestSearches(a.SearchHistory, recentActivityLimit),
			Registrations: newestRegistrations(a.RegisteredEvents, recentActivityLimit),
		},
		UserProfile: UserProfile{
			ID:          user.ID,
			Name:        user.Name,
			Interests:   user.Interests,
			Location:    user.Location,
			Preferences: user.Preferences,
		},
	}, nil
}

func (r *Reporter) Insights(ctx context.Context, userID string) (*Insights, error) {
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	a := user.Analytics
	now := r.now()

	ids := make([]string, 0, len(a.RegisteredEvents))
	for _, reg := range a.RegisteredEvents {
		ids = append(ids, reg.EventID)
	}
	registered, err := r.events.GetEventsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load registered events: %w", err)
	}

	upcoming, err := r.engine.GetEventRecommendations(ctx, userID, insightUpcomingLimit, 1)
	if err != nil {
		return nil, err
	}

	cities := append([]models.LocationVisit{}, a.LocationHistory...)
	sort.SliceStable(cities, func(i, j int) bool { return cities[i].Frequency > cities[j].Frequency })
	if len(cities) > insightTopN {
		cities = cities[:insightTopN]
	}

	return &Insights{
		FavoriteCategories:      models.TopCategoryPreferences(a.CategoryPreferences, insightTopN),
		MostVisitedCities:       cities,
		AttendancePattern:       attendancePattern(registered),
		MonthlyActivity:         monthlyActivity(a, now, insightMonths),
		UpcomingRecommendations: upcomingOnly(upcoming.Events, now),
	}, nil
}

func upcomingOnly(events []models.Event, now time.Time) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if !e.Date.Before(now) {
			out = append(out, e)
		}
	}
	return out
}

func attendancePattern(events []models.Event) AttendancePattern {
	p := AttendancePattern{
		TotalRegistrations: len(events),
		ByWeekday:          map[string]int{},
		ByTimeOfDay:        map[string]int{},
	}
	for _, e := range events {
		p.ByWeekday[e.Date.Weekday().String()]++
		p.ByTimeOfDay[timeOfDay(e.Date)]++
	}
	p.PreferredWeekday = argmax(p.ByWeekday)
	p.PreferredTimeOfDay = argmax(p.ByTimeOfDay)
	return p
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 22:
		return "evening"
	default:
		return "night"
	}
}

// argmax breaks ties alphabetically so output is stable.
func argmax(m map[string]int) string {
	best, bestN := "", 0
	for k, n := range m {
		if n > bestN || (n == bestN && n > 0 && strings.Compare(k, best) < 0) {
			best, bestN = k, n
		}
	}
	return best
}

// monthlyActivity returns the last months calendar months, oldest first.
func monthlyActivity(a models.UserAnalytics, now time.Time, months int) []MonthlyActivity {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	out := make([]MonthlyActivity, months)
	index := map[string]int{}
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		out[i] = MonthlyActivity{Month: key}
		index[key] = i
	}
	for _, reg := range a.RegisteredEvents {
		if i, ok := index[reg.RegisteredAt.In(now.Location()).Format("2006-01")]; ok {
			out[i].Registrations++
		}
	}
	for _, s := range a.SearchHistory {
		if i, ok := index[s.Timestamp.In(now.Location()).Format("2006-01")]; ok {
			out[i].Searches++
		}
	}
	return out
}

func newestSearches(history []models.SearchEntry, n int) []models.SearchEntry {
	out := make([]models.SearchEntry, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out
}

func newestRegistrations(history []models.EventRegistration, n int) []models.EventRegistration {
	out := make([]models.EventRegistration, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out
}
