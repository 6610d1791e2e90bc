package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventhub/api/apperr"
	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/models"
	"eventhub/api/tasks"
)

// InteractionStore applies atomic, field-level mutations to a user's analytics.
// Implementations must not read-modify-write the whole user.
type InteractionStore interface {
	AddCategoryAffinity(ctx context.Context, userID string, categories []string, delta float64, at time.Time) error
	RecordLocationVisit(ctx context.Context, userID, city, state string, at time.Time) error
	IncrementRecommendationCounters(ctx context.Context, userID string, shown, clicked int64, at time.Time) (models.RecommendationMetrics, error)
	RecordEventRegistration(ctx context.Context, userID, eventID string, at time.Time) (models.RecommendationMetrics, error)
	AppendSearch(ctx context.Context, userID string, entry models.SearchEntry) error
	UpdatePreferences(ctx context.Context, userID string, prefs models.Preferences) error
}

// InteractionLog is the append-only analytics sink (ClickHouse in production).
type InteractionLog interface {
	InsertInteractions(ctx context.Context, records []models.InteractionRecord) error
}

// RequestMeta is the client context copied onto interaction log rows.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type Tracker struct {
	users   UserReader
	events  EventCatalog
	store   InteractionStore
	sink    InteractionLog
	tasks   tasks.Submitter
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewTracker wires the tracking API. sink may be nil when no interaction log is configured.
func NewTracker(users UserReader, events EventCatalog, store InteractionStore, sink InteractionLog, submitter tasks.Submitter, m *metrics.Metrics, log *logger.Logger) *Tracker {
	return &Tracker{
		users:   users,
		events:  events,
		store:   store,
		sink:    sink,
		tasks:   submitter,
		metrics: m,
		log:     log.With("component", "Tracker"),
		now:     time.Now,
	}
}

// TrackRecommendationInteraction folds one interaction with eventID into the
// user's category affinities and location history.
func (t *Tracker) TrackRecommendationInteraction(ctx context.Context, userID, eventID string, kind models.InteractionKind, meta RequestMeta) error {
	if !kind.Valid() {
		return apperr.Validation("unknown interaction kind %q", kind)
	}
	if _, err := t.users.GetUserByID(ctx, userID); err != nil {
		return err
	}
	event, err := t.events.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	now := t.now()

	if len(event.Categories) > 0 {
		if err := t.store.AddCategoryAffinity(ctx, userID, event.Categories, kind.Weight(), now); err != nil {
			return fmt.Errorf("update category affinity: %w", err)
		}
	}
	if strings.TrimSpace(event.City) != "" {
		if err := t.store.RecordLocationVisit(ctx, userID, event.City, event.State, now); err != nil {
			return fmt.Errorf("update location history: %w", err)
		}
	}
	if t.metrics != nil {
		t.metrics.Interactions.WithLabelValues(string(kind)).Inc()
	}
	t.logInteraction(models.InteractionRecord{
		Kind:       kind,
		UserID:     userID,
		EventID:    event.ID,
		Categories: event.Categories,
		City:       event.City,
		Timestamp:  now,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

// TrackClick records a click interaction and bumps the clicked counter.
func (t *Tracker) TrackClick(ctx context.Context, userID, eventID string, meta RequestMeta) (models.RecommendationMetrics, error) {
	if err := t.TrackRecommendationInteraction(ctx, userID, eventID, models.InteractionClick, meta); err != nil {
		return models.RecommendationMetrics{}, err
	}
	m, err := t.store.IncrementRecommendationCounters(ctx, userID, 0, 1, t.now())
	if err != nil {
		return models.RecommendationMetrics{}, fmt.Errorf("increment clicked counter: %w", err)
	}
	return m.Recalculated(t.now()), nil
}

// TrackRegistration records a register interaction and the registration analytics.
func (t *Tracker) TrackRegistration(ctx context.Context, userID, eventID string, meta RequestMeta) (models.RecommendationMetrics, error) {
	if err := t.TrackRecommendationInteraction(ctx, userID, eventID, models.InteractionRegister, meta); err != nil {
		return models.RecommendationMetrics{}, err
	}
	return t.UpdateEventRegistrationAnalytics(ctx, userID, eventID)
}

// TrackImpressions records an impression for each event, skipping unknown ones.
// It returns the number of impressions recorded.
func (t *Tracker) TrackImpressions(ctx context.Context, userID string, eventIDs []string, meta RequestMeta) (int, error) {
	if _, err := t.users.GetUserByID(ctx, userID); err != nil {
		return 0, err
	}
	recorded := 0
	seen := map[string]struct{}{}
	for _, id := range eventIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		err := t.TrackRecommendationInteraction(ctx, userID, id, models.InteractionImpression, meta)
		switch {
		case err == nil:
			recorded++
		case apperr.IsNotFound(err):
			t.log.Warn("Impression for unknown event skipped", "user_id", userID, "event_id", id)
		default:
			return recorded, err
		}
	}
	return recorded, nil
}

// UpdateRecommendationMetrics adds shownCount to the shown counter and returns
// the recalculated metrics.
func (t *Tracker) UpdateRecommendationMetrics(ctx context.Context, userID string, shownCount int) (models.RecommendationMetrics, error) {
	if shownCount < 0 {
		return models.RecommendationMetrics{}, apperr.Validation("shown count must not be negative")
	}
	now := t.now()
	m, err := t.store.IncrementRecommendationCounters(ctx, userID, int64(shownCount), 0, now)
	if err != nil {
		return models.RecommendationMetrics{}, fmt.Errorf("increment shown counter: %w", err)
	}
	return m.Recalculated(now), nil
}

// UpdateEventRegistrationAnalytics bumps the registered counter and appends to the history.
func (t *Tracker) UpdateEventRegistrationAnalytics(ctx context.Context, userID, eventID string) (models.RecommendationMetrics, error) {
	now := t.now()
	m, err := t.store.RecordEventRegistration(ctx, userID, eventID, now)
	if err != nil {
		return models.RecommendationMetrics{}, fmt.Errorf("record event registration: %w", err)
	}
	return m.Recalculated(now), nil
}

// TrackSearch appends to the bounded search history.
func (t *Tracker) TrackSearch(ctx context.Context, userID, query string, filters map[string]string, resultsCount int, meta RequestMeta) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return apperr.Validation("query is required")
	}
	if resultsCount < 0 {
		return apperr.Validation("resultsCount must not be negative")
	}
	if filters == nil {
		filters = map[string]string{}
	}
	now := t.now()
	entry := models.SearchEntry{Query: query, Filters: filters, ResultsCount: resultsCount, Timestamp: now}
	if err := t.store.AppendSearch(ctx, userID, entry); err != nil {
		return fmt.Errorf("append search history: %w", err)
	}
	t.logInteraction(models.InteractionRecord{
		Kind:         models.InteractionSearch,
		UserID:       userID,
		Query:        query,
		ResultsCount: resultsCount,
		Timestamp:    now,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// UpdatePreferences merges req into the stored preferences and returns the result.
func (t *Tracker) UpdatePreferences(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (models.Preferences, error) {
	user, err := t.users.GetUserByID(ctx, userID)
	if err != nil {
		return models.Preferences{}, err
	}
	prefs := req.Apply(user.Preferences)
	if err := t.store.UpdatePreferences(ctx, userID, prefs); err != nil {
		return models.Preferences{}, fmt.Errorf("update preferences: %w", err)
	}
	return prefs, nil
}

// DispatchShown schedules UpdateRecommendationMetrics after a list was served.
func (t *Tracker) DispatchShown(userID string, shownCount int) {
	if shownCount == 0 {
		return
	}
	t.tasks.Submit("update_recommendation_metrics", func(ctx context.Context) error {
		_, err := t.UpdateRecommendationMetrics(ctx, userID, shownCount)
		return err
	})
}

func (t *Tracker) logInteraction(rec models.InteractionRecord) {
	if t.sink == nil {
		return
	}
	rec.RecordID = uuid.NewString()
	t.tasks.Submit("log_interaction", func(ctx context.Context) error {
		return t.sink.InsertInteractions(ctx, []models.InteractionRecord{rec})
	})
}
