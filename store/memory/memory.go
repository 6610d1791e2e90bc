// Package memory keeps every store contract in process memory. A single mutex
// serializes all writes, which gives the same per-record atomicity the SQL
// stores get from guarded UPDATE statements.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"eventhub/api/apperr"
	"eventhub/api/models"
)

type Store struct {
	mu sync.RWMutex

	users       map[string]*models.User
	emails      map[string]string
	events      map[string]*models.Event
	categories  map[string]*models.Category
	collabs     map[string]*models.Collaboration
	counters    map[string]*models.Counter
	transitions []models.Transition
}

func New() *Store {
	return &Store{
		users:      map[string]*models.User{},
		emails:     map[string]string{},
		events:     map[string]*models.Event{},
		categories: map[string]*models.Category{},
		collabs:    map[string]*models.Collaboration{},
		counters:   map[string]*models.Counter{},
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.emails[email]; ok {
		return fmt.Errorf("user with email %q already exists: %w", email, apperr.ErrConflict)
	}
	s.users[u.ID] = copyUser(u)
	s.emails[email] = u.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, apperr.NotFound("user", email)
	}
	return copyUser(s.users[id]), nil
}

func (s *Store) withUser(id string, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user", id)
	}
	fn(u)
	return nil
}

func (s *Store) AddCategoryAffinity(ctx context.Context, userID string, categories []string, delta float64, at time.Time) error {
	return s.withUser(userID, func(u *models.User) {
		for _, c := range categories {
			u.Analytics.CategoryPreferences = models.UpsertCategoryPreference(u.Analytics.CategoryPreferences, c, delta, at)
		}
	})
}

func (s *Store) RecordLocationVisit(ctx context.Context, userID, city, state string, at time.Time) error {
	return s.withUser(userID, func(u *models.User) {
		u.Analytics.LocationHistory = models.UpsertLocationVisit(u.Analytics.LocationHistory, city, state, at)
	})
}

func (s *Store) IncrementRecommendationCounters(ctx context.Context, userID string, shown, clicked int64, at time.Time) (models.RecommendationMetrics, error) {
	var out models.RecommendationMetrics
	err := s.withUser(userID, func(u *models.User) {
		m := &u.Analytics.RecommendationMetrics
		m.TotalRecommendationsShown += shown
		m.RecommendationsClicked += clicked
		*m = m.Recalculated(at)
		out = *m
	})
	return out, err
}

func (s *Store) RecordEventRegistration(ctx context.Context, userID, eventID string, at time.Time) (models.RecommendationMetrics, error) {
	var out models.RecommendationMetrics
	err := s.withUser(userID, func(u *models.User) {
		m := &u.Analytics.RecommendationMetrics
		m.RecommendationsRegistered++
		*m = m.Recalculated(at)
		u.Analytics.RegisteredEvents = append(u.Analytics.RegisteredEvents, models.EventRegistration{EventID: eventID, RegisteredAt: at})
		out = *m
	})
	return out, err
}

func (s *Store) AppendSearch(ctx context.Context, userID string, entry models.SearchEntry) error {
	return s.withUser(userID, func(u *models.User) {
		u.Analytics.SearchHistory = models.AppendSearch(u.Analytics.SearchHistory, entry)
	})
}

func (s *Store) UpdatePreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	return s.withUser(userID, func(u *models.User) {
		u.Preferences = prefs
		u.UpdatedAt = time.Now()
	})
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Interests = append([]string{}, u.Interests...)
	c.Preferences.PreferredEventTimes = append([]string{}, u.Preferences.PreferredEventTimes...)
	a := u.Analytics
	c.Analytics = models.UserAnalytics{
		CategoryPreferences:   append([]models.CategoryPreference{}, a.CategoryPreferences...),
		LocationHistory:       append([]models.LocationVisit{}, a.LocationHistory...),
		SearchHistory:         append([]models.SearchEntry{}, a.SearchHistory...),
		RecommendationMetrics: a.RecommendationMetrics,
		RegisteredEvents:      append([]models.EventRegistration{}, a.RegisteredEvents...),
		JoinedCommunities:     append([]models.CommunityMembership{}, a.JoinedCommunities...),
	}
	return &c
}

// ---- event catalog ----

// PutEvent inserts or replaces a catalog event.
func (s *Store) PutEvent(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Categories = append([]string{}, e.Categories...)
	s.events[e.ID] = &e
}

func (s *Store) matching(filter models.EventFilter) []models.Event {
	var out []models.Event
	for _, e := range s.events {
		if filter.Matches(*e) {
			out = append(out, *e)
		}
	}
	return out
}

func (s *Store) FindEvents(ctx context.Context, filter models.EventFilter, order models.EventSort, skip, limit int) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := s.matching(filter)
	sort.SliceStable(found, func(i, j int) bool {
		if order.Less(found[i], found[j]) {
			return true
		}
		if order.Less(found[j], found[i]) {
			return false
		}
		return found[i].ID < found[j].ID
	})
	if skip >= len(found) {
		return []models.Event{}, nil
	}
	found = found[skip:]
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (s *Store) CountEvents(ctx context.Context, filter models.EventFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matching(filter))), nil
}

func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, apperr.NotFound("event", id)
	}
	c := *e
	return &c, nil
}

func (s *Store) GetEventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

// ---- categories ----

func (s *Store) PutCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Analytics.ViewHistory = append([]models.DailyViewCount{}, c.Analytics.ViewHistory...)
	c.Analytics.RecomputePopularity()
	s.categories[c.ID] = &c
}

func copyCategory(c *models.Category) *models.Category {
	out := *c
	out.Analytics.ViewHistory = append([]models.DailyViewCount{}, c.Analytics.ViewHistory...)
	return &out
}

func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, apperr.NotFound("category", id)
	}
	return copyCategory(c), nil
}

func (s *Store) IncrementCategoryView(ctx context.Context, id string, now time.Time) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, apperr.NotFound("category", id)
	}
	c.Analytics.RecordView(now)
	return copyCategory(c), nil
}

func (s *Store) IncrementCategoryClick(ctx context.Context, id string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, apperr.NotFound("category", id)
	}
	c.Analytics.Clicks++
	return copyCategory(c), nil
}

// ListActiveCategories orders by creation time, then id.
func (s *Store) ListActiveCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.IsActive {
			out = append(out, *copyCategory(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
