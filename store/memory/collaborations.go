package memory

import (
	"context"
	"sort"

	"eventhub/api/apperr"
	"eventhub/api/models"
)

func (s *Store) CreateCollaboration(ctx context.Context, c *models.Collaboration, audit models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collabs[c.ID]; ok {
		return apperr.ErrConflict
	}
	s.collabs[c.ID] = copyCollab(c)
	s.appendTransition(audit)
	return nil
}

func (s *Store) GetCollaboration(ctx context.Context, id string) (*models.Collaboration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collabs[id]
	if !ok {
		return nil, apperr.NotFound("collaboration", id)
	}
	out := copyCollab(c)
	if c.LatestCounterID != "" {
		if counter, ok := s.counters[c.LatestCounterID]; ok {
			out.LatestCounter = copyCounter(counter)
		}
	}
	return out, nil
}

// guard checks the change against the stored record; callers hold s.mu.
func (s *Store) guard(id string, change models.StatusChange) (*models.Collaboration, error) {
	c, ok := s.collabs[id]
	if !ok {
		return nil, apperr.NotFound("collaboration", id)
	}
	if !change.Allows(c.Status, c.UpdatedAt) {
		return nil, apperr.InvalidTransition("collaboration", id, string(c.Status), change.Audit.Action)
	}
	return c, nil
}

func (s *Store) apply(c *models.Collaboration, change models.StatusChange) {
	audit := change.Audit
	audit.CollaborationID = c.ID
	audit.FromStatus = c.Status
	audit.ToStatus = change.To
	audit.CreatedAt = change.At
	change.ApplyTo(c)
	s.appendTransition(audit)
}

func (s *Store) appendTransition(t models.Transition) {
	t.ID = int64(len(s.transitions) + 1)
	s.transitions = append(s.transitions, t)
}

func (s *Store) UpdateCollaborationStatus(ctx context.Context, id string, change models.StatusChange) (*models.Collaboration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.guard(id, change)
	if err != nil {
		return nil, err
	}
	s.apply(c, change)
	return copyCollab(c), nil
}

func (s *Store) CreateCounter(ctx context.Context, counter *models.Counter, change models.StatusChange) (*models.Collaboration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.guard(counter.CollaborationID, change)
	if err != nil {
		return nil, err
	}
	for _, existing := range s.counters {
		if existing.CollaborationID == counter.CollaborationID && !existing.Status.Terminal() {
			return nil, apperr.InvalidTransition("collaboration", c.ID, string(c.Status), "accept a second active counter")
		}
	}
	s.counters[counter.ID] = copyCounter(counter)
	s.apply(c, change)
	out := copyCollab(c)
	out.LatestCounter = copyCounter(counter)
	return out, nil
}

func (s *Store) GetCounter(ctx context.Context, id string) (*models.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.counters[id]
	if !ok {
		return nil, apperr.NotFound("counter", id)
	}
	return copyCounter(c), nil
}

func (s *Store) UpdateCounterStatus(ctx context.Context, counterID string, from, to models.CounterStatus, adminNotes string, change models.StatusChange) (*models.Counter, *models.Collaboration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter, ok := s.counters[counterID]
	if !ok {
		return nil, nil, apperr.NotFound("counter", counterID)
	}
	if counter.Status != from {
		return nil, nil, apperr.InvalidTransition("counter", counterID, string(counter.Status), change.Audit.Action)
	}
	c, err := s.guard(counter.CollaborationID, change)
	if err != nil {
		return nil, nil, err
	}
	counter.Status = to
	counter.AdminNotes = adminNotes
	counter.UpdatedAt = change.At
	at := change.At
	counter.ReviewedAt = &at
	s.apply(c, change)
	out := copyCollab(c)
	out.LatestCounter = copyCounter(counter)
	return copyCounter(counter), out, nil
}

func (s *Store) ListCounters(ctx context.Context, collaborationID string) ([]models.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Counter{}
	for _, c := range s.counters {
		if c.CollaborationID == collaborationID {
			out = append(out, *copyCounter(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListTransitions(ctx context.Context, collaborationID string) ([]models.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Transition{}
	for _, t := range s.transitions {
		if t.CollaborationID == collaborationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListCollaborationsByStatus(ctx context.Context, statuses []models.CollaborationStatus, limit int) ([]models.Collaboration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := map[models.CollaborationStatus]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	out := []models.Collaboration{}
	for _, c := range s.collabs {
		if len(want) == 0 || want[c.Status] {
			out = append(out, *copyCollab(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyCollab(c *models.Collaboration) *models.Collaboration {
	out := *c
	out.FormData = cloneMap(c.FormData)
	out.ComplianceFlags = append([]string{}, c.ComplianceFlags...)
	out.LatestCounter = nil
	return &out
}

func copyCounter(c *models.Counter) *models.Counter {
	out := *c
	out.HouseRules = append([]string{}, c.HouseRules...)
	out.ComplianceFlags = append([]string{}, c.ComplianceFlags...)
	out.FieldResponses = make(map[string]models.FieldResponse, len(c.FieldResponses))
	for k, v := range c.FieldResponses {
		out.FieldResponses[k] = v
	}
	if c.CommercialCounter != nil {
		cc := *c.CommercialCounter
		out.CommercialCounter = &cc
	}
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
