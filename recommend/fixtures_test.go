package recommend

import (
	"context"
	"sync"
	"testing"
	"time"

	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/models"
	"eventhub/api/store/memory"
	"eventhub/api/tasks"
)

var now = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

type recordingLog struct {
	mu      sync.Mutex
	records []models.InteractionRecord
}

func (l *recordingLog) InsertInteractions(ctx context.Context, records []models.InteractionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
	return nil
}

type env struct {
	store   *memory.Store
	engine  *Engine
	tracker *Tracker
	sink    *recordingLog
	metrics *metrics.Metrics
}

func newEnv(t *testing.T, cfg EngineConfig) *env {
	t.Helper()
	e := &env{store: memory.New(), sink: &recordingLog{}, metrics: metrics.New()}
	e.engine = NewEngine(e.store, e.store, cfg)
	e.engine.now = func() time.Time { return now }
	e.tracker = NewTracker(e.store, e.store, e.store, e.sink, tasks.Inline{Log: logger.Nop()}, e.metrics, logger.Nop())
	e.tracker.now = func() time.Time { return now }
	return e
}

func (e *env) user(t *testing.T, id string, interests ...string) *models.User {
	t.Helper()
	u := models.NewUser(id, id+"@example.com", id, models.RoleUser, []byte("x"), now)
	u.Interests = interests
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func event(id string, date time.Time, participants int, categories ...string) models.Event {
	return models.Event{
		ID:                  id,
		Title:               id,
		Categories:          categories,
		Date:                date,
		Status:              models.EventStatusPublished,
		CurrentParticipants: participants,
		MaxParticipants:     1000,
		CreatedAt:           now.Add(-30 * 24 * time.Hour),
	}
}

func ids(events []models.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
