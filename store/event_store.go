package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"eventhub/api/models"
)

// EventStore is the read side of the event catalog.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, title, description, categories, city, state, latitude, longitude, date, status,
	current_participants, max_participants, price, created_at`

var eventOrder = map[models.EventSort]string{
	models.SortPopular:  "current_participants DESC, date ASC, id ASC",
	models.SortUpcoming: "date ASC, created_at DESC, id ASC",
	models.SortPast:     "date DESC, current_participants DESC, id ASC",
}

// where renders filter as a WHERE clause with positional arguments.
func where(filter models.EventFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if len(filter.Categories) > 0 {
		add("categories && $%d::text[]", pq.Array(filter.Categories))
	}
	if filter.City != "" {
		add("city = $%d", filter.City)
	}
	if filter.DateFrom != nil {
		add("date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("date < $%d", *filter.DateTo)
	}
	if b := filter.BBox; b != nil {
		add("latitude >= $%d", b.MinLat)
		add("latitude <= $%d", b.MaxLat)
		add("longitude >= $%d", b.MinLng)
		add("longitude <= $%d", b.MaxLng)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *EventStore) FindEvents(ctx context.Context, filter models.EventFilter, order models.EventSort, skip, limit int) ([]models.Event, error) {
	clause, args := where(filter)
	orderBy, ok := eventOrder[order]
	if !ok {
		orderBy = eventOrder[models.SortUpcoming]
	}
	args = append(args, limit, skip)
	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY %s LIMIT $%d OFFSET $%d;`,
		eventColumns, clause, orderBy, len(args)-1, len(args))
	return s.query(ctx, "find events", query, args...)
}

func (s *EventStore) CountEvents(ctx context.Context, filter models.EventFilter) (int64, error) {
	clause, args := where(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM events`+clause+`;`, args...).Scan(&n); err != nil {
		return 0, wrap("count events", "event", "", err)
	}
	return n, nil
}

func (s *EventStore) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	events, err := s.query(ctx, "get event", `SELECT `+eventColumns+` FROM events WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, wrap("get event", "event", id, sql.ErrNoRows)
	}
	return &events[0], nil
}

func (s *EventStore) GetEventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	if len(ids) == 0 {
		return []models.Event{}, nil
	}
	return s.query(ctx, "get events by ids",
		`SELECT `+eventColumns+` FROM events WHERE id = ANY($1::text[]) ORDER BY date;`, pq.Array(ids))
}

func (s *EventStore) query(ctx context.Context, op, query string, args ...any) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, "event", "", err)
	}
	defer rows.Close()
	out := []models.Event{}
	for rows.Next() {
		var e models.Event
		var lat, lng sql.NullFloat64
		var status string
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, pq.Array(&e.Categories), &e.City, &e.State,
			&lat, &lng, &e.Date, &status, &e.CurrentParticipants, &e.MaxParticipants, &e.Price, &e.CreatedAt); err != nil {
			return nil, wrap(op, "event", "", err)
		}
		e.Status = models.EventStatus(status)
		if lat.Valid && lng.Valid {
			la, lo := lat.Float64, lng.Float64
			e.Latitude, e.Longitude = &la, &lo
		}
		out = append(out, e)
	}
	return out, wrap(op, "event", "", rows.Err())
}
