package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"eventhub/api/apperr"
	"eventhub/api/models"
)

// CollaborationStore persists the negotiation workflow. Status changes are
// conditional UPDATEs on the current status, committed together with their
// audit row, so concurrent transitions on one collaboration serialize.
type CollaborationStore struct {
	db *sql.DB
}

func NewCollaborationStore(db *sql.DB) *CollaborationStore {
	return &CollaborationStore{db: db}
}

var collabColumnList = []string{
	"id", "type", "proposer_id", "proposer_type", "recipient_id", "recipient_type", "form_data", "status",
	"latest_counter_id", "compliance_flags", "risk_level", "admin_notes", "created_at", "updated_at",
	"submitted_at", "reviewed_at", "delivered_at", "responded_at", "closed_at",
}

var collabColumns = strings.Join(collabColumnList, ", ")

const counterColumns = `id, collaboration_id, submitted_by, field_responses, house_rules, commercial_counter,
	general_notes, status, compliance_flags, risk_level, admin_notes, created_at, updated_at, reviewed_at`

func prefixed(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

func scanCollaboration(row rowScanner, extra ...any) (*models.Collaboration, error) {
	c := &models.Collaboration{}
	var formData []byte
	var typ, proposerType, recipientType, status, risk string
	var submitted, reviewed, delivered, responded, closed sql.NullTime
	dest := append(extra,
		&c.ID, &typ, &c.ProposerID, &proposerType, &c.RecipientID, &recipientType, &formData, &status,
		&c.LatestCounterID, pq.Array(&c.ComplianceFlags), &risk, &c.AdminNotes, &c.CreatedAt, &c.UpdatedAt,
		&submitted, &reviewed, &delivered, &responded, &closed,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Type = models.CollaborationType(typ)
	c.ProposerType = models.PartyType(proposerType)
	c.RecipientType = models.PartyType(recipientType)
	c.Status = models.CollaborationStatus(status)
	c.RiskLevel = models.RiskLevel(risk)
	if err := json.Unmarshal(formData, &c.FormData); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	if c.ComplianceFlags == nil {
		c.ComplianceFlags = []string{}
	}
	c.SubmittedAt = nullTime(submitted)
	c.ReviewedAt = nullTime(reviewed)
	c.DeliveredAt = nullTime(delivered)
	c.RespondedAt = nullTime(responded)
	c.ClosedAt = nullTime(closed)
	return c, nil
}

func scanCounter(row rowScanner) (*models.Counter, error) {
	c := &models.Counter{}
	var responses, commercial []byte
	var status, risk string
	var reviewed sql.NullTime
	if err := row.Scan(&c.ID, &c.CollaborationID, &c.SubmittedBy, &responses, pq.Array(&c.HouseRules), &commercial,
		&c.GeneralNotes, &status, pq.Array(&c.ComplianceFlags), &risk, &c.AdminNotes, &c.CreatedAt, &c.UpdatedAt,
		&reviewed); err != nil {
		return nil, err
	}
	c.Status = models.CounterStatus(status)
	c.RiskLevel = models.RiskLevel(risk)
	c.ReviewedAt = nullTime(reviewed)
	c.FieldResponses = map[string]models.FieldResponse{}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &c.FieldResponses); err != nil {
			return nil, fmt.Errorf("decode field responses: %w", err)
		}
	}
	if len(commercial) > 0 && string(commercial) != "null" {
		c.CommercialCounter = &models.CommercialCounter{}
		if err := json.Unmarshal(commercial, c.CommercialCounter); err != nil {
			return nil, fmt.Errorf("decode commercial counter: %w", err)
		}
	}
	if c.HouseRules == nil {
		c.HouseRules = []string{}
	}
	if c.ComplianceFlags == nil {
		c.ComplianceFlags = []string{}
	}
	return c, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (s *CollaborationStore) CreateCollaboration(ctx context.Context, c *models.Collaboration, audit models.Transition) error {
	formData, err := json.Marshal(c.FormData)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO collaborations (`+collabColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19);`,
			c.ID, string(c.Type), c.ProposerID, string(c.ProposerType), c.RecipientID, string(c.RecipientType),
			string(formData), string(c.Status), c.LatestCounterID, pq.Array(c.ComplianceFlags), string(c.RiskLevel),
			c.AdminNotes, c.CreatedAt, c.UpdatedAt, c.SubmittedAt, c.ReviewedAt, c.DeliveredAt, c.RespondedAt,
			c.ClosedAt); err != nil {
			return err
		}
		return insertTransition(ctx, tx, audit)
	})
	return wrap("create collaboration", "collaboration", c.ID, err)
}

func (s *CollaborationStore) GetCollaboration(ctx context.Context, id string) (*models.Collaboration, error) {
	c, err := scanCollaboration(s.db.QueryRowContext(ctx, `SELECT `+collabColumns+` FROM collaborations WHERE id = $1;`, id))
	if err != nil {
		return nil, wrap("get collaboration", "collaboration", id, err)
	}
	if c.LatestCounterID != "" {
		counter, err := s.GetCounter(ctx, c.LatestCounterID)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
		c.LatestCounter = counter
	}
	return c, nil
}

func (s *CollaborationStore) UpdateCollaborationStatus(ctx context.Context, id string, change models.StatusChange) (*models.Collaboration, error) {
	var out *models.Collaboration
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := applyChange(ctx, tx, id, change)
		out = c
		return err
	})
	if err != nil {
		return nil, wrap("update collaboration status", "collaboration", id, err)
	}
	return out, nil
}

// applyChange runs the guarded UPDATE and appends the audit row.
func applyChange(ctx context.Context, tx *sql.Tx, id string, change models.StatusChange) (*models.Collaboration, error) {
	args := []any{id, string(change.To), change.At}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	sets := []string{"status = $2", "updated_at = $3"}
	if change.AdminNotes != nil {
		sets = append(sets, "admin_notes = "+arg(*change.AdminNotes))
	}
	if change.LatestCounterID != nil {
		sets = append(sets, "latest_counter_id = "+arg(*change.LatestCounterID))
	}
	if change.Compliance != nil {
		sets = append(sets, "risk_level = "+arg(string(change.Compliance.RiskLevel)))
		sets = append(sets, "compliance_flags = "+arg(pq.Array(change.Compliance.Flags)))
	}
	for _, stamp := range change.Stamps {
		sets = append(sets, string(stamp)+" = $3")
	}
	from := make([]string, len(change.From))
	for i, f := range change.From {
		from[i] = string(f)
	}
	conds := []string{"c.id = prev.id", "c.status = ANY(" + arg(pq.Array(from)) + "::text[])"}
	if change.UpdatedBefore != nil {
		conds = append(conds, "c.updated_at < "+arg(*change.UpdatedBefore))
	}

	query := `WITH prev AS (SELECT id, status FROM collaborations WHERE id = $1 FOR UPDATE)
		UPDATE collaborations c SET ` + strings.Join(sets, ", ") + `
		FROM prev WHERE ` + strings.Join(conds, " AND ") + `
		RETURNING prev.status, ` + prefixed("c", collabColumnList) + `;`

	var prev string
	c, err := scanCollaboration(tx.QueryRowContext(ctx, query, args...), &prev)
	if errors.Is(err, sql.ErrNoRows) {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM collaborations WHERE id = $1;`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperr.NotFound("collaboration", id)
			}
			return nil, err
		}
		return nil, apperr.InvalidTransition("collaboration", id, current, change.Audit.Action)
	}
	if err != nil {
		return nil, err
	}

	audit := change.Audit
	audit.CollaborationID = id
	audit.FromStatus = models.CollaborationStatus(prev)
	audit.ToStatus = change.To
	audit.CreatedAt = change.At
	if err := insertTransition(ctx, tx, audit); err != nil {
		return nil, err
	}
	return c, nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, t models.Transition) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO collaboration_transitions
			(collaboration_id, counter_id, action, actor_id, actor_role, from_status, to_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		t.CollaborationID, t.CounterID, t.Action, t.ActorID, t.ActorRole, string(t.FromStatus), string(t.ToStatus),
		t.Note, t.CreatedAt)
	return err
}

// CreateCounter applies change to the owning collaboration and inserts the
// counter. The partial unique index on pending counters rejects a second
// active counter even if the status guard were bypassed.
func (s *CollaborationStore) CreateCounter(ctx context.Context, counter *models.Counter, change models.StatusChange) (*models.Collaboration, error) {
	responses, err := json.Marshal(counter.FieldResponses)
	if err != nil {
		return nil, fmt.Errorf("encode field responses: %w", err)
	}
	var commercial any
	if counter.CommercialCounter != nil {
		b, err := json.Marshal(counter.CommercialCounter)
		if err != nil {
			return nil, fmt.Errorf("encode commercial counter: %w", err)
		}
		commercial = string(b)
	}
	var out *models.Collaboration
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := applyChange(ctx, tx, counter.CollaborationID, change)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO collaboration_counters (`+counterColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`,
			counter.ID, counter.CollaborationID, counter.SubmittedBy, string(responses), pq.Array(counter.HouseRules),
			commercial, counter.GeneralNotes, string(counter.Status), pq.Array(counter.ComplianceFlags),
			string(counter.RiskLevel), counter.AdminNotes, counter.CreatedAt, counter.UpdatedAt, counter.ReviewedAt)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return apperr.InvalidTransition("collaboration", c.ID, string(c.Status), "accept a second active counter")
		}
		if err != nil {
			return err
		}
		c.LatestCounter = counter
		out = c
		return nil
	})
	if err != nil {
		return nil, wrap("create counter", "collaboration", counter.CollaborationID, err)
	}
	return out, nil
}

func (s *CollaborationStore) GetCounter(ctx context.Context, id string) (*models.Counter, error) {
	c, err := scanCounter(s.db.QueryRowContext(ctx, `SELECT `+counterColumns+` FROM collaboration_counters WHERE id = $1;`, id))
	if err != nil {
		return nil, wrap("get counter", "counter", id, err)
	}
	return c, nil
}

// UpdateCounterStatus moves a counter from one status to another and applies
// change to its collaboration atomically.
func (s *CollaborationStore) UpdateCounterStatus(ctx context.Context, counterID string, from, to models.CounterStatus, adminNotes string, change models.StatusChange) (*models.Counter, *models.Collaboration, error) {
	var counter *models.Counter
	var collab *models.Collaboration
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := scanCounter(tx.QueryRowContext(ctx, `
			UPDATE collaboration_counters
			SET status = $3, admin_notes = $4, updated_at = $5, reviewed_at = $5
			WHERE id = $1 AND status = $2
			RETURNING `+counterColumns+`;`, counterID, string(from), string(to), adminNotes, change.At))
		if errors.Is(err, sql.ErrNoRows) {
			var current string
			if err := tx.QueryRowContext(ctx, `SELECT status FROM collaboration_counters WHERE id = $1;`, counterID).Scan(&current); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return apperr.NotFound("counter", counterID)
				}
				return err
			}
			return apperr.InvalidTransition("counter", counterID, current, change.Audit.Action)
		}
		if err != nil {
			return err
		}
		updated, err := applyChange(ctx, tx, c.CollaborationID, change)
		if err != nil {
			return err
		}
		updated.LatestCounter = c
		counter, collab = c, updated
		return nil
	})
	if err != nil {
		return nil, nil, wrap("update counter status", "counter", counterID, err)
	}
	return counter, collab, nil
}

func (s *CollaborationStore) ListCounters(ctx context.Context, collaborationID string) ([]models.Counter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+counterColumns+` FROM collaboration_counters
		WHERE collaboration_id = $1 ORDER BY created_at, id;`, collaborationID)
	if err != nil {
		return nil, wrap("list counters", "collaboration", collaborationID, err)
	}
	defer rows.Close()
	out := []models.Counter{}
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, wrap("scan counter", "collaboration", collaborationID, err)
		}
		out = append(out, *c)
	}
	return out, wrap("iterate counters", "collaboration", collaborationID, rows.Err())
}

func (s *CollaborationStore) ListTransitions(ctx context.Context, collaborationID string) ([]models.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collaboration_id, counter_id, action, actor_id, actor_role, from_status, to_status, note, created_at
		FROM collaboration_transitions WHERE collaboration_id = $1 ORDER BY id;`, collaborationID)
	if err != nil {
		return nil, wrap("list transitions", "collaboration", collaborationID, err)
	}
	defer rows.Close()
	out := []models.Transition{}
	for rows.Next() {
		var t models.Transition
		var from, to string
		if err := rows.Scan(&t.ID, &t.CollaborationID, &t.CounterID, &t.Action, &t.ActorID, &t.ActorRole,
			&from, &to, &t.Note, &t.CreatedAt); err != nil {
			return nil, wrap("scan transition", "collaboration", collaborationID, err)
		}
		t.FromStatus, t.ToStatus = models.CollaborationStatus(from), models.CollaborationStatus(to)
		out = append(out, t)
	}
	return out, wrap("iterate transitions", "collaboration", collaborationID, rows.Err())
}

// ListCollaborationsByStatus returns the oldest-updated first.
func (s *CollaborationStore) ListCollaborationsByStatus(ctx context.Context, statuses []models.CollaborationStatus, limit int) ([]models.Collaboration, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	query := `SELECT ` + collabColumns + ` FROM collaborations`
	args := []any{}
	if len(names) > 0 {
		args = append(args, pq.Array(names))
		query += ` WHERE status = ANY($1::text[])`
	}
	query += ` ORDER BY updated_at, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.db.QueryContext(ctx, query+`;`, args...)
	if err != nil {
		return nil, wrap("list collaborations", "collaboration", "", err)
	}
	defer rows.Close()
	out := []models.Collaboration{}
	for rows.Next() {
		c, err := scanCollaboration(rows)
		if err != nil {
			return nil, wrap("scan collaboration", "collaboration", "", err)
		}
		out = append(out, *c)
	}
	return out, wrap("iterate collaborations", "collaboration", "", rows.Err())
}
