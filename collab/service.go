package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"eventhub/api/apperr"
	"eventhub/api/compliance"
	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/models"
	"eventhub/api/notify"
	"eventhub/api/tasks"
)

const (
	DefaultMaxFormDataBytes = 64 << 10
	moderationQueueLimit    = 500
	sweepBatchLimit         = 1000
)

// Store persists collaborations, counters and their audit trail. Every status
// change is a guarded check-and-set applied together with its audit record.
type Store interface {
	CreateCollaboration(ctx context.Context, c *models.Collaboration, audit models.Transition) error
	GetCollaboration(ctx context.Context, id string) (*models.Collaboration, error)
	UpdateCollaborationStatus(ctx context.Context, id string, change models.StatusChange) (*models.Collaboration, error)
	CreateCounter(ctx context.Context, counter *models.Counter, change models.StatusChange) (*models.Collaboration, error)
	GetCounter(ctx context.Context, id string) (*models.Counter, error)
	UpdateCounterStatus(ctx context.Context, counterID string, from, to models.CounterStatus, adminNotes string, change models.StatusChange) (*models.Counter, *models.Collaboration, error)
	ListCounters(ctx context.Context, collaborationID string) ([]models.Counter, error)
	ListTransitions(ctx context.Context, collaborationID string) ([]models.Transition, error)
	ListCollaborationsByStatus(ctx context.Context, statuses []models.CollaborationStatus, limit int) ([]models.Collaboration, error)
}

type Actor struct {
	ID   string
	Role string
}

const RoleSystem = "system"

// SystemActor performs timer-driven and follow-up transitions.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin || a.Role == RoleSystem }

type Policy struct {
	// BlockHighRisk rejects high-risk submissions outright with a ComplianceError
	// instead of queueing them for review with an auto_reject_candidate flag.
	BlockHighRisk bool
	// RenegotiateOnDecline sends a declined counter back to the recipient
	// instead of closing the collaboration.
	RenegotiateOnDecline bool
	PendingTTL           time.Duration
	MaxFormDataBytes     int
}

type Service struct {
	store      Store
	scanner    compliance.Scanner
	dispatcher notify.Dispatcher
	async      tasks.Submitter
	metrics    *metrics.Metrics
	log        *logger.Logger
	policy     Policy
	machine    *Machine
	now        func() time.Time
}

func NewService(store Store, scanner compliance.Scanner, dispatcher notify.Dispatcher, async tasks.Submitter, m *metrics.Metrics, log *logger.Logger, policy Policy) *Service {
	if policy.MaxFormDataBytes <= 0 {
		policy.MaxFormDataBytes = DefaultMaxFormDataBytes
	}
	return &Service{
		store:      store,
		scanner:    scanner,
		dispatcher: dispatcher,
		async:      async,
		metrics:    m,
		log:        log.With("component", "CollaborationService"),
		policy:     policy,
		machine:    NewMachine(policy.RenegotiateOnDecline),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Propose creates a collaboration. Drafts are stored unscanned; everything
// else is scanned and lands in pending_admin_review.
func (s *Service) Propose(ctx context.Context, actor Actor, req models.ProposeRequest) (*models.Collaboration, error) {
	proposerType, recipientType, ok := req.Type.Parties()
	if !ok {
		return nil, apperr.Validation("unknown collaboration type %q", req.Type)
	}
	if req.RecipientType != "" && req.RecipientType != recipientType {
		return nil, apperr.Validation("recipientType %q does not match collaboration type %q", req.RecipientType, req.Type)
	}
	if req.RecipientID == actor.ID {
		return nil, apperr.Validation("cannot propose a collaboration to yourself")
	}
	if err := s.checkFormData(req.FormData); err != nil {
		return nil, err
	}

	now := s.now()
	c := &models.Collaboration{
		ID:              uuid.NewString(),
		Type:            req.Type,
		ProposerID:      actor.ID,
		ProposerType:    proposerType,
		RecipientID:     req.RecipientID,
		RecipientType:   recipientType,
		FormData:        req.FormData,
		Status:          models.StatusDraft,
		ComplianceFlags: []string{},
		RiskLevel:       models.RiskClean,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	audit := models.Transition{
		CollaborationID: c.ID,
		Action:          string(ActionSaveDraft),
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		ToStatus:        models.StatusDraft,
		CreatedAt:       now,
	}
	if req.Draft {
		if err := s.store.CreateCollaboration(ctx, c, audit); err != nil {
			return nil, fmt.Errorf("create draft collaboration: %w", err)
		}
		s.record(ActionSaveDraft, c.Status)
		return c, nil
	}

	res, flags := s.screen(c.FormData)
	c.RiskLevel, c.ComplianceFlags = res.RiskLevel, flags
	c.SubmittedAt = &now
	audit.Action = string(ActionPropose)

	if s.policy.BlockHighRisk && res.RiskLevel == models.RiskHigh {
		c.Status = models.StatusRejected
		c.ClosedAt = &now
		audit.Action = string(ActionAutoReject)
		audit.ToStatus = models.StatusRejected
		audit.Note = res.Summary
		if err := s.store.CreateCollaboration(ctx, c, audit); err != nil {
			return nil, fmt.Errorf("record blocked collaboration: %w", err)
		}
		s.record(ActionAutoReject, c.Status)
		s.log.Warn("Blocked high-risk collaboration", "collaboration_id", c.ID, "proposer_id", actor.ID, "flags", flags)
		return nil, &apperr.ComplianceError{ResourceID: c.ID, RiskLevel: string(res.RiskLevel), Flags: flags}
	}

	c.Status = models.StatusPendingAdminReview
	audit.ToStatus = c.Status
	audit.Note = res.Summary
	if err := s.store.CreateCollaboration(ctx, c, audit); err != nil {
		return nil, fmt.Errorf("create collaboration: %w", err)
	}
	s.record(ActionPropose, c.Status)
	s.notify("collaboration_pending_review", notify.AdminQueueRecipient, c)
	return c, nil
}

// Submit sends a proposer's draft to moderation.
func (s *Service) Submit(ctx context.Context, actor Actor, id string) (*models.Collaboration, error) {
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ProposerID != actor.ID {
		return nil, apperr.Forbidden("only the proposer can submit collaboration %s", id)
	}
	if err := s.checkFormData(c.FormData); err != nil {
		return nil, err
	}
	res, flags := s.screen(c.FormData)
	if s.policy.BlockHighRisk && res.RiskLevel == models.RiskHigh {
		change, err := s.change(ActionAutoReject, c, actor, res.Summary)
		if err != nil {
			return nil, err
		}
		change.Stamps = []models.TimestampField{models.StampSubmitted, models.StampClosed}
		change.Compliance = &models.ComplianceStamp{RiskLevel: res.RiskLevel, Flags: flags}
		if _, err := s.store.UpdateCollaborationStatus(ctx, id, change); err != nil {
			return nil, err
		}
		s.record(ActionAutoReject, change.To)
		return nil, &apperr.ComplianceError{ResourceID: id, RiskLevel: string(res.RiskLevel), Flags: flags}
	}

	change, err := s.change(ActionSubmit, c, actor, res.Summary)
	if err != nil {
		return nil, err
	}
	change.Stamps = []models.TimestampField{models.StampSubmitted}
	change.Compliance = &models.ComplianceStamp{RiskLevel: res.RiskLevel, Flags: flags}
	updated, err := s.store.UpdateCollaborationStatus(ctx, id, change)
	if err != nil {
		return nil, err
	}
	s.record(ActionSubmit, updated.Status)
	s.notify("collaboration_pending_review", notify.AdminQueueRecipient, updated)
	return updated, nil
}

// Approve moves a proposal out of moderation and delivers it to the recipient.
func (s *Service) Approve(ctx context.Context, actor Actor, id, adminNotes string) (*models.Collaboration, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can approve collaborations")
	}
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := s.change(ActionApprove, c, actor, adminNotes)
	if err != nil {
		return nil, err
	}
	change.AdminNotes = &adminNotes
	change.Stamps = []models.TimestampField{models.StampReviewed}
	approved, err := s.store.UpdateCollaborationStatus(ctx, id, change)
	if err != nil {
		return nil, err
	}
	s.record(ActionApprove, approved.Status)

	deliver, err := s.change(ActionDeliver, approved, SystemActor, "")
	if err != nil {
		return nil, err
	}
	deliver.Stamps = []models.TimestampField{models.StampDelivered}
	delivered, err := s.store.UpdateCollaborationStatus(ctx, id, deliver)
	if errors.Is(err, apperr.ErrInvalidStateTransition) {
		// Someone (the proposer cancelling, usually) got in between; report what is stored.
		return s.store.GetCollaboration(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	s.record(ActionDeliver, delivered.Status)
	s.notify("collaboration_delivered", delivered.RecipientID, delivered)
	s.notify("collaboration_approved", delivered.ProposerID, delivered)
	return delivered, nil
}

func (s *Service) Reject(ctx context.Context, actor Actor, id, adminNotes string) (*models.Collaboration, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can reject collaborations")
	}
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := s.change(ActionReject, c, actor, adminNotes)
	if err != nil {
		return nil, err
	}
	change.AdminNotes = &adminNotes
	change.Stamps = []models.TimestampField{models.StampReviewed, models.StampClosed}
	rejected, err := s.store.UpdateCollaborationStatus(ctx, id, change)
	if err != nil {
		return nil, err
	}
	s.record(ActionReject, rejected.Status)
	s.notify("collaboration_rejected", rejected.ProposerID, rejected)
	return rejected, nil
}

// SubmitCounter records the recipient's counter-offer for moderation.
func (s *Service) SubmitCounter(ctx context.Context, actor Actor, id string, data models.CounterData) (*models.Counter, error) {
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.RecipientID != actor.ID {
		return nil, apperr.Forbidden("only the recipient can counter collaboration %s", id)
	}
	payload := counterPayload(data)
	if err := s.checkFormData(payload); err != nil {
		return nil, err
	}
	res, flags := s.screen(payload)
	now := s.now()
	counter := &models.Counter{
		ID:                uuid.NewString(),
		CollaborationID:   id,
		SubmittedBy:       actor.ID,
		FieldResponses:    data.FieldResponses,
		HouseRules:        data.HouseRules,
		CommercialCounter: data.CommercialCounter,
		GeneralNotes:      data.GeneralNotes,
		Status:            models.CounterPendingAdminReview,
		ComplianceFlags:   flags,
		RiskLevel:         res.RiskLevel,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if counter.FieldResponses == nil {
		counter.FieldResponses = map[string]models.FieldResponse{}
	}
	if counter.HouseRules == nil {
		counter.HouseRules = []string{}
	}

	if s.policy.BlockHighRisk && res.RiskLevel == models.RiskHigh {
		change, err := s.change(ActionBlockCounter, c, actor, res.Summary)
		if err != nil {
			return nil, err
		}
		counter.Status = models.CounterRejected
		counter.ReviewedAt = &now
		change.Audit.CounterID = counter.ID
		if _, err := s.store.CreateCounter(ctx, counter, change); err != nil {
			return nil, err
		}
		s.record(ActionBlockCounter, change.To)
		return nil, &apperr.ComplianceError{ResourceID: counter.ID, RiskLevel: string(res.RiskLevel), Flags: flags}
	}

	change, err := s.change(ActionCounter, c, actor, res.Summary)
	if err != nil {
		return nil, err
	}
	change.LatestCounterID = &counter.ID
	change.Stamps = []models.TimestampField{models.StampResponded}
	change.Audit.CounterID = counter.ID
	updated, err := s.store.CreateCounter(ctx, counter, change)
	if err != nil {
		return nil, err
	}
	s.record(ActionCounter, updated.Status)
	s.notify("counter_pending_review", notify.AdminQueueRecipient, updated)
	return counter, nil
}

func (s *Service) ApproveCounter(ctx context.Context, actor Actor, counterID, adminNotes string) (*models.Counter, error) {
	return s.decideCounter(ctx, actor, counterID, adminNotes, ActionApproveCounter, models.CounterApproved)
}

func (s *Service) RejectCounter(ctx context.Context, actor Actor, counterID, adminNotes string) (*models.Counter, error) {
	return s.decideCounter(ctx, actor, counterID, adminNotes, ActionRejectCounter, models.CounterRejected)
}

func (s *Service) decideCounter(ctx context.Context, actor Actor, counterID, adminNotes string, action Action, to models.CounterStatus) (*models.Counter, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can review counters")
	}
	counter, err := s.store.GetCounter(ctx, counterID)
	if err != nil {
		return nil, err
	}
	if counter.Status != models.CounterPendingAdminReview {
		return nil, apperr.InvalidTransition("counter", counterID, string(counter.Status), string(action))
	}
	c, err := s.store.GetCollaboration(ctx, counter.CollaborationID)
	if err != nil {
		return nil, err
	}
	change, err := s.change(action, c, actor, adminNotes)
	if err != nil {
		return nil, err
	}
	change.Audit.CounterID = counterID
	if action == ActionApproveCounter {
		change.Stamps = []models.TimestampField{models.StampDelivered}
	}
	updatedCounter, updated, err := s.store.UpdateCounterStatus(ctx, counterID, models.CounterPendingAdminReview, to, adminNotes, change)
	if err != nil {
		return nil, err
	}
	s.record(action, updated.Status)
	if action == ActionApproveCounter {
		s.notify("counter_delivered", updated.ProposerID, updated)
	} else {
		s.notify("counter_rejected", updated.RecipientID, updated)
	}
	return updatedCounter, nil
}

// Accept confirms the offer currently waiting on the caller: the proposal when
// delivered to the recipient, or the counter when delivered to the proposer.
func (s *Service) Accept(ctx context.Context, actor Actor, id string) (*models.Collaboration, error) {
	return s.respond(ctx, actor, id, ActionAccept)
}

// Decline turns down the offer currently waiting on the caller.
func (s *Service) Decline(ctx context.Context, actor Actor, id string) (*models.Collaboration, error) {
	return s.respond(ctx, actor, id, ActionDecline)
}

func (s *Service) respond(ctx context.Context, actor Actor, id string, action Action) (*models.Collaboration, error) {
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(c, actor) {
		return nil, apperr.Forbidden("not a party to collaboration %s", id)
	}
	switch c.Status {
	case models.StatusDeliveredToRecipient:
		if actor.ID != c.RecipientID {
			return nil, apperr.Forbidden("collaboration %s is waiting on the recipient", id)
		}
	case models.StatusDeliveredToProposer:
		if actor.ID != c.ProposerID {
			return nil, apperr.Forbidden("collaboration %s is waiting on the proposer", id)
		}
	}
	change, err := s.change(action, c, actor, "")
	if err != nil {
		return nil, err
	}
	change.Stamps = []models.TimestampField{models.StampResponded}
	if change.To.Terminal() {
		change.Stamps = append(change.Stamps, models.StampClosed)
	}
	updated, err := s.store.UpdateCollaborationStatus(ctx, id, change)
	if err != nil {
		return nil, err
	}
	s.record(action, updated.Status)
	other := updated.ProposerID
	if actor.ID == updated.ProposerID {
		other = updated.RecipientID
	}
	s.notify("collaboration_"+string(updated.Status), other, updated)
	return updated, nil
}

// Cancel closes a non-terminal collaboration at either party's request.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (*models.Collaboration, error) {
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(c, actor) {
		return nil, apperr.Forbidden("not a party to collaboration %s", id)
	}
	change, err := s.change(ActionCancel, c, actor, "")
	if err != nil {
		return nil, err
	}
	change.Stamps = []models.TimestampField{models.StampClosed}
	updated, err := s.store.UpdateCollaborationStatus(ctx, id, change)
	if err != nil {
		return nil, err
	}
	s.record(ActionCancel, updated.Status)
	other := updated.RecipientID
	if actor.ID == updated.RecipientID {
		other = updated.ProposerID
	}
	s.notify("collaboration_cancelled", other, updated)
	return updated, nil
}

// Get returns the collaboration with its latest counter populated.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*models.Collaboration, error) {
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !isParty(c, actor) {
		return nil, apperr.Forbidden("not a party to collaboration %s", id)
	}
	return c, nil
}

func (s *Service) History(ctx context.Context, actor Actor, id string) (*models.CollaborationHistory, error) {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	counters, err := s.store.ListCounters(ctx, id)
	if err != nil {
		return nil, err
	}
	transitions, err := s.store.ListTransitions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CollaborationHistory{Collaboration: c, Counters: counters, Transitions: transitions}, nil
}

// ModerationQueue lists collaborations awaiting an admin, highest risk first
// and oldest first within a risk level.
func (s *Service) ModerationQueue(ctx context.Context, actor Actor, status models.CollaborationStatus) ([]models.Collaboration, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can view the moderation queue")
	}
	statuses := []models.CollaborationStatus{models.StatusPendingAdminReview, models.StatusCountered}
	if status != "" {
		statuses = []models.CollaborationStatus{status}
	}
	items, err := s.store.ListCollaborationsByStatus(ctx, statuses, moderationQueueLimit)
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(items))
	for i := range items {
		c := &items[i]
		rank[c.ID] = c.RiskLevel.Rank()
		if c.LatestCounterID == "" || c.Status != models.StatusCountered {
			continue
		}
		counter, err := s.store.GetCounter(ctx, c.LatestCounterID)
		if err != nil {
			s.log.Warn("Failed to load latest counter for moderation queue", "collaboration_id", c.ID, "error", err)
			continue
		}
		c.LatestCounter = counter
		if r := counter.RiskLevel.Rank(); r > rank[c.ID] {
			rank[c.ID] = r
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := rank[items[i].ID], rank[items[j].ID]
		if ri != rj {
			return ri > rj
		}
		return items[i].UpdatedAt.Before(items[j].UpdatedAt)
	})
	return items, nil
}

// ExpireStale moves collaborations that have waited on a human for longer than
// the pending TTL to expired. It is safe to run from several instances: each
// update re-checks status and age, so a concurrent transition wins.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	if s.policy.PendingTTL <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.policy.PendingTTL)
	items, err := s.store.ListCollaborationsByStatus(ctx, s.machine.Sources(ActionExpire), sweepBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list expirable collaborations: %w", err)
	}
	expired := 0
	for i := range items {
		c := &items[i]
		if !c.UpdatedAt.Before(cutoff) {
			continue
		}
		change, err := s.change(ActionExpire, c, SystemActor, "pending beyond "+s.policy.PendingTTL.String())
		if err != nil {
			continue
		}
		change.UpdatedBefore = &cutoff
		change.Stamps = []models.TimestampField{models.StampClosed}
		updated, err := s.store.UpdateCollaborationStatus(ctx, c.ID, change)
		if errors.Is(err, apperr.ErrInvalidStateTransition) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire collaboration %s: %w", c.ID, err)
		}
		expired++
		s.record(ActionExpire, updated.Status)
		if s.metrics != nil {
			s.metrics.CollaborationsExpired.Inc()
		}
		s.notify("collaboration_expired", updated.ProposerID, updated)
		s.notify("collaboration_expired", updated.RecipientID, updated)
	}
	return expired, nil
}

// change builds the guarded update for action from c's observed status.
func (s *Service) change(action Action, c *models.Collaboration, actor Actor, note string) (models.StatusChange, error) {
	change, ok := s.machine.Change(action, c.Status)
	if !ok {
		return models.StatusChange{}, apperr.InvalidTransition("collaboration", c.ID, string(c.Status), string(action))
	}
	change.At = s.now()
	change.Audit.CollaborationID = c.ID
	change.Audit.ActorID = actor.ID
	change.Audit.ActorRole = actor.Role
	change.Audit.Note = note
	return change, nil
}

// screen scans data. A failing scanner never blocks the submission; the
// record is flagged for manual review instead.
func (s *Service) screen(data any) (compliance.Result, []string) {
	res, err := s.scanner.ScanObject(data)
	if err != nil {
		s.log.Error("Compliance scan failed, flagging for review", "error", err)
		res = compliance.Unknown(err)
		flags := append(compliance.GenerateFlags(res), compliance.FlagScanFailed)
		sort.Strings(flags)
		s.countScan(res.RiskLevel)
		return res, flags
	}
	s.countScan(res.RiskLevel)
	return res, compliance.GenerateFlags(res)
}

func (s *Service) checkFormData(data map[string]any) error {
	if len(data) == 0 {
		return apperr.Validation("formData must not be empty")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return apperr.Validation("formData is not serializable: %v", err)
	}
	if len(raw) > s.policy.MaxFormDataBytes {
		return apperr.Validation("formData exceeds %d bytes", s.policy.MaxFormDataBytes)
	}
	return nil
}

func (s *Service) countScan(risk models.RiskLevel) {
	if s.metrics != nil {
		s.metrics.ComplianceScans.WithLabelValues(string(risk)).Inc()
	}
}

func (s *Service) record(action Action, status models.CollaborationStatus) {
	if s.metrics != nil {
		s.metrics.CollaborationTransitions.WithLabelValues(string(action), string(status)).Inc()
	}
}

func (s *Service) notify(kind, recipientID string, c *models.Collaboration) {
	if s.dispatcher == nil || s.async == nil {
		return
	}
	n := notify.Notification{
		Kind:        kind,
		RecipientID: recipientID,
		Payload: map[string]any{
			"collaborationId": c.ID,
			"type":            string(c.Type),
			"status":          string(c.Status),
		},
		CreatedAt: s.now(),
	}
	s.async.Submit("notify."+kind, func(ctx context.Context) error {
		return s.dispatcher.Send(ctx, n)
	})
}

func isParty(c *models.Collaboration, actor Actor) bool {
	return actor.ID != "" && (actor.ID == c.ProposerID || actor.ID == c.RecipientID)
}

// counterPayload flattens the free-text parts of a counter for scanning.
func counterPayload(d models.CounterData) map[string]any {
	responses := make(map[string]any, len(d.FieldResponses))
	for field, r := range d.FieldResponses {
		responses[field] = map[string]any{"modifiedValue": r.ModifiedValue, "note": r.Note}
	}
	rules := make([]any, len(d.HouseRules))
	for i, r := range d.HouseRules {
		rules[i] = r
	}
	out := map[string]any{
		"fieldResponses": responses,
		"houseRules":     rules,
		"generalNotes":   d.GeneralNotes,
	}
	if d.CommercialCounter != nil {
		out["commercialCounter"] = map[string]any{
			"pricingModel": d.CommercialCounter.PricingModel,
			"value":        d.CommercialCounter.Value,
			"note":         d.CommercialCounter.Note,
		}
	}
	return out
}
