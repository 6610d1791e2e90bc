// Package recommend ranks catalog events for a user and closes the feedback
// loop by folding tracked interactions back into the user's analytics.
//
// Scoring is a pure read. All analytics mutations go through Tracker.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"eventhub/api/models"
)

// UserReader loads a user with its analytics fully populated.
type UserReader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// EventCatalog is the read-only Event Catalog contract.
type EventCatalog interface {
	FindEvents(ctx context.Context, filter models.EventFilter, sort models.EventSort, skip, limit int) ([]models.Event, error)
	CountEvents(ctx context.Context, filter models.EventFilter) (int64, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	GetEventsByIDs(ctx context.Context, ids []string) ([]models.Event, error)
}

type EngineConfig struct {
	// TopCategories is how many implicit categories join the explicit interests.
	TopCategories int
	// DecayHalfLife halves an implicit score's ranking weight per period since
	// its last interaction. Zero disables decay.
	DecayHalfLife time.Duration
}

type Engine struct {
	users  UserReader
	events EventCatalog
	cfg    EngineConfig
	now    func() time.Time
}

func NewEngine(users UserReader, events EventCatalog, cfg EngineConfig) *Engine {
	if cfg.TopCategories <= 0 {
		cfg.TopCategories = 5
	}
	return &Engine{users: users, events: events, cfg: cfg, now: time.Now}
}

// Result is one freshly computed recommendation list.
type Result struct {
	Events       []models.Event `json:"events"`
	Personalized bool           `json:"personalized"`
	Categories   []string       `json:"categories"`
}

// GetEventRecommendations returns at most limit events for userID. Users with no
// explicit or implicit interests get popular upcoming events, paged by page
// (1-based). Everyone else gets upcoming events in their candidate categories,
// backfilled with past ones.
func (e *Engine) GetEventRecommendations(ctx context.Context, userID string, limit, page int) (*Result, error) {
	if limit <= 0 {
		return &Result{Events: []models.Event{}, Categories: []string{}}, nil
	}
	if page < 1 {
		page = 1
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user for recommendations: %w", err)
	}
	now := e.now()

	candidates := e.candidateCategories(user, now)
	if len(candidates) == 0 {
		events, err := e.popular(ctx, now, limit, page)
		if err != nil {
			return nil, err
		}
		return &Result{Events: events, Categories: []string{}}, nil
	}

	events, err := e.personalized(ctx, user, candidates, now, limit)
	if err != nil {
		return nil, err
	}
	return &Result{Events: events, Personalized: true, Categories: candidates}, nil
}

func (e *Engine) popular(ctx context.Context, now time.Time, limit, page int) ([]models.Event, error) {
	filter := models.EventFilter{Status: models.EventStatusPublished, DateFrom: &now}
	events, err := e.events.FindEvents(ctx, filter, models.SortPopular, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular events: %w", err)
	}
	return dedupe(events, limit), nil
}

func (e *Engine) personalized(ctx context.Context, user *models.User, categories []string, now time.Time, limit int) ([]models.Event, error) {
	var out []models.Event

	upcoming := models.EventFilter{Status: models.EventStatusPublished, Categories: categories, DateFrom: &now}
	if bbox := travelBox(user); bbox != nil {
		nearby := upcoming
		nearby.BBox = bbox
		found, err := e.events.FindEvents(ctx, nearby, models.SortUpcoming, 0, limit)
		if err != nil {
			return nil, fmt.Errorf("query nearby upcoming events: %w", err)
		}
		out = dedupe(found, limit)
	}

	if len(out) < limit {
		// Over-fetch by what we already hold so overlaps do not leave gaps.
		found, err := e.events.FindEvents(ctx, upcoming, models.SortUpcoming, 0, limit+len(out))
		if err != nil {
			return nil, fmt.Errorf("query upcoming events: %w", err)
		}
		out = dedupe(append(out, found...), limit)
	}

	if len(out) < limit {
		past := models.EventFilter{Status: models.EventStatusPublished, Categories: categories, DateTo: &now}
		found, err := e.events.FindEvents(ctx, past, models.SortPast, 0, limit-len(out))
		if err != nil {
			return nil, fmt.Errorf("query past events: %w", err)
		}
		out = dedupe(append(out, found...), limit)
	}
	return out, nil
}

// candidateCategories is the union of explicit interests and the top implicit
// categories by decayed score, interests first.
func (e *Engine) candidateCategories(user *models.User, now time.Time) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(c string) {
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range user.Interests {
		add(c)
	}

	prefs := make([]models.CategoryPreference, 0, len(user.Analytics.CategoryPreferences))
	for _, p := range user.Analytics.CategoryPreferences {
		if p.Score <= 0 {
			continue
		}
		p.Score = decayed(p, now, e.cfg.DecayHalfLife)
		prefs = append(prefs, p)
	}
	sort.SliceStable(prefs, func(i, j int) bool {
		if prefs[i].Score != prefs[j].Score {
			return prefs[i].Score > prefs[j].Score
		}
		return prefs[i].Category < prefs[j].Category
	})
	for i, p := range prefs {
		if i >= e.cfg.TopCategories {
			break
		}
		add(p.Category)
	}
	return out
}

func decayed(p models.CategoryPreference, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 || p.LastInteraction.IsZero() {
		return p.Score
	}
	age := now.Sub(p.LastInteraction)
	if age <= 0 {
		return p.Score
	}
	return p.Score * math.Pow(0.5, float64(age)/float64(halfLife))
}

func travelBox(user *models.User) *models.GeoBoundingBox {
	if !user.Location.HasCoordinates() || user.Preferences.MaxTravelDistance <= 0 {
		return nil
	}
	box := models.BoundingBoxAround(*user.Location.Latitude, *user.Location.Longitude, user.Preferences.MaxTravelDistance)
	return &box
}

func dedupe(events []models.Event, limit int) []models.Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out
}
