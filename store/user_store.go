package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"eventhub/api/models"
)

// UserStore keeps users in Postgres. Analytics live in child tables so every
// tracking call is a single-row UPSERT, increment or append.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore instance.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts a new user into the database.
func (s *UserStore) CreateUser(ctx context.Context, u *models.User) error {
	prefs, err := json.Marshal(u.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	query := `
		INSERT INTO users (id, email, hashed_password, name, role, interests, city, state,
			latitude, longitude, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`
	_, err = s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.HashedPassword, u.Name, u.Role, pq.Array(u.Interests),
		u.Location.City, u.Location.State, u.Location.Latitude, u.Location.Longitude,
		string(prefs), u.CreatedAt, u.UpdatedAt,
	)
	return wrap("create user", "user", u.ID, err)
}

const userColumns = `id, email, hashed_password, name, role, interests, city, state, latitude, longitude,
	preferences, recs_shown, recs_clicked, recs_registered, metrics_calculated_at, created_at, updated_at`

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrap("get user", "user", id, err)
	}
	if err := s.loadAnalytics(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1);`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrap("get user by email", "user", email, err)
	}
	if err := s.loadAnalytics(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{Analytics: models.NewUserAnalytics()}
	var prefs []byte
	var lat, lng sql.NullFloat64
	var calculated sql.NullTime
	m := &u.Analytics.RecommendationMetrics
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.Name, &u.Role, pq.Array(&u.Interests),
		&u.Location.City, &u.Location.State, &lat, &lng, &prefs,
		&m.TotalRecommendationsShown, &m.RecommendationsClicked, &m.RecommendationsRegistered, &calculated,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		u.Location.Latitude, u.Location.Longitude = &lat.Float64, &lng.Float64
	}
	u.Preferences = models.DefaultPreferences()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	if calculated.Valid {
		m.LastCalculated = &calculated.Time
	}
	if u.Interests == nil {
		u.Interests = []string{}
	}
	return u, nil
}

func (s *UserStore) loadAnalytics(ctx context.Context, u *models.User) error {
	a := &u.Analytics
	if err := s.each(ctx, `SELECT category, score, last_interaction FROM user_category_preferences WHERE user_id = $1 ORDER BY category;`, u.ID,
		func(rows *sql.Rows) error {
			var p models.CategoryPreference
			if err := rows.Scan(&p.Category, &p.Score, &p.LastInteraction); err != nil {
				return err
			}
			a.CategoryPreferences = append(a.CategoryPreferences, p)
			return nil
		}); err != nil {
		return err
	}
	if err := s.each(ctx, `SELECT city, state, frequency, last_seen FROM user_location_history WHERE user_id = $1 ORDER BY last_seen;`, u.ID,
		func(rows *sql.Rows) error {
			var v models.LocationVisit
			if err := rows.Scan(&v.City, &v.State, &v.Frequency, &v.LastSeen); err != nil {
				return err
			}
			a.LocationHistory = append(a.LocationHistory, v)
			return nil
		}); err != nil {
		return err
	}
	if err := s.each(ctx, `SELECT query, filters, results_count, searched_at FROM user_search_history WHERE user_id = $1 ORDER BY id;`, u.ID,
		func(rows *sql.Rows) error {
			var e models.SearchEntry
			var filters []byte
			if err := rows.Scan(&e.Query, &filters, &e.ResultsCount, &e.Timestamp); err != nil {
				return err
			}
			e.Filters = map[string]string{}
			if len(filters) > 0 {
				if err := json.Unmarshal(filters, &e.Filters); err != nil {
					return fmt.Errorf("decode search filters: %w", err)
				}
			}
			a.SearchHistory = append(a.SearchHistory, e)
			return nil
		}); err != nil {
		return err
	}
	if err := s.each(ctx, `SELECT event_id, registered_at FROM user_event_registrations WHERE user_id = $1 ORDER BY id;`, u.ID,
		func(rows *sql.Rows) error {
			var r models.EventRegistration
			if err := rows.Scan(&r.EventID, &r.RegisteredAt); err != nil {
				return err
			}
			a.RegisteredEvents = append(a.RegisteredEvents, r)
			return nil
		}); err != nil {
		return err
	}
	return s.each(ctx, `SELECT community_id, joined_at FROM user_community_memberships WHERE user_id = $1 ORDER BY joined_at;`, u.ID,
		func(rows *sql.Rows) error {
			var m models.CommunityMembership
			if err := rows.Scan(&m.CommunityID, &m.JoinedAt); err != nil {
				return err
			}
			a.JoinedCommunities = append(a.JoinedCommunities, m)
			return nil
		})
}

func (s *UserStore) each(ctx context.Context, query, userID string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return wrap("load user analytics", "user", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return wrap("scan user analytics", "user", userID, err)
		}
	}
	return wrap("iterate user analytics", "user", userID, rows.Err())
}

// AddCategoryAffinity upserts one preference row per category, accumulating score.
func (s *UserStore) AddCategoryAffinity(ctx context.Context, userID string, categories []string, delta float64, at time.Time) error {
	query := `
		INSERT INTO user_category_preferences (user_id, category, score, last_interaction)
		SELECT $1, c, $3, $4 FROM unnest($2::text[]) AS c
		ON CONFLICT (user_id, category) DO UPDATE
		SET score = user_category_preferences.score + EXCLUDED.score,
			last_interaction = EXCLUDED.last_interaction;
	`
	_, err := s.db.ExecContext(ctx, query, userID, pq.Array(dedupeStrings(categories)), delta, at)
	return wrap("add category affinity", "user", userID, err)
}

func (s *UserStore) RecordLocationVisit(ctx context.Context, userID, city, state string, at time.Time) error {
	query := `
		INSERT INTO user_location_history (user_id, city_key, city, state, frequency, last_seen)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (user_id, city_key) DO UPDATE
		SET frequency = user_location_history.frequency + 1,
			state = CASE WHEN EXCLUDED.state <> '' THEN EXCLUDED.state ELSE user_location_history.state END,
			last_seen = EXCLUDED.last_seen;
	`
	_, err := s.db.ExecContext(ctx, query, userID, strings.ToLower(strings.TrimSpace(city)), strings.TrimSpace(city), state, at)
	return wrap("record location visit", "user", userID, err)
}

func (s *UserStore) IncrementRecommendationCounters(ctx context.Context, userID string, shown, clicked int64, at time.Time) (models.RecommendationMetrics, error) {
	query := `
		UPDATE users
		SET recs_shown = recs_shown + $2, recs_clicked = recs_clicked + $3,
			metrics_calculated_at = $4, updated_at = $4
		WHERE id = $1
		RETURNING recs_shown, recs_clicked, recs_registered;
	`
	var m models.RecommendationMetrics
	err := s.db.QueryRowContext(ctx, query, userID, shown, clicked, at).Scan(
		&m.TotalRecommendationsShown, &m.RecommendationsClicked, &m.RecommendationsRegistered)
	if err != nil {
		return models.RecommendationMetrics{}, wrap("increment recommendation counters", "user", userID, err)
	}
	return m, nil
}

func (s *UserStore) RecordEventRegistration(ctx context.Context, userID, eventID string, at time.Time) (models.RecommendationMetrics, error) {
	var m models.RecommendationMetrics
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE users
			SET recs_registered = recs_registered + 1, metrics_calculated_at = $2, updated_at = $2
			WHERE id = $1
			RETURNING recs_shown, recs_clicked, recs_registered;`, userID, at).Scan(
			&m.TotalRecommendationsShown, &m.RecommendationsClicked, &m.RecommendationsRegistered)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_event_registrations (user_id, event_id, registered_at) VALUES ($1, $2, $3);`,
			userID, eventID, at)
		return err
	})
	if err != nil {
		return models.RecommendationMetrics{}, wrap("record event registration", "user", userID, err)
	}
	return m, nil
}

// AppendSearch inserts the entry and trims the user's history to the newest
// MaxSearchHistory rows in the same transaction.
func (s *UserStore) AppendSearch(ctx context.Context, userID string, entry models.SearchEntry) error {
	filters, err := json.Marshal(entry.Filters)
	if err != nil {
		return fmt.Errorf("encode search filters: %w", err)
	}
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_search_history (user_id, query, filters, results_count, searched_at)
			VALUES ($1, $2, $3, $4, $5);`,
			userID, entry.Query, string(filters), entry.ResultsCount, entry.Timestamp); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM user_search_history
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM user_search_history WHERE user_id = $1 ORDER BY id DESC LIMIT $2
			);`, userID, models.MaxSearchHistory)
		return err
	})
	return wrap("append search", "user", userID, err)
}

func (s *UserStore) UpdatePreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET preferences = $2, updated_at = now() WHERE id = $1;`, userID, string(raw))
	if err != nil {
		return wrap("update preferences", "user", userID, err)
	}
	return requireRow(res, "user", userID)
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return wrap("update "+kind, kind, id, sql.ErrNoRows)
	}
	return nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
