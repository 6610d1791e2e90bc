package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                    TEXT PRIMARY KEY,
		email                 TEXT NOT NULL,
		hashed_password       BYTEA NOT NULL,
		name                  TEXT NOT NULL DEFAULT '',
		role                  TEXT NOT NULL DEFAULT 'user',
		interests             TEXT[] NOT NULL DEFAULT '{}',
		city                  TEXT NOT NULL DEFAULT '',
		state                 TEXT NOT NULL DEFAULT '',
		latitude              DOUBLE PRECISION,
		longitude             DOUBLE PRECISION,
		preferences           JSONB NOT NULL DEFAULT '{}',
		recs_shown            BIGINT NOT NULL DEFAULT 0,
		recs_clicked          BIGINT NOT NULL DEFAULT 0,
		recs_registered       BIGINT NOT NULL DEFAULT 0,
		metrics_calculated_at TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS user_category_preferences (
		user_id          TEXT NOT NULL REFERENCES users(id),
		category         TEXT NOT NULL,
		score            DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_interaction TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, category)
	)`,
	`CREATE TABLE IF NOT EXISTS user_location_history (
		user_id   TEXT NOT NULL REFERENCES users(id),
		city_key  TEXT NOT NULL,
		city      TEXT NOT NULL,
		state     TEXT NOT NULL DEFAULT '',
		frequency INTEGER NOT NULL DEFAULT 0,
		last_seen TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, city_key)
	)`,
	`CREATE TABLE IF NOT EXISTS user_search_history (
		id            BIGSERIAL PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id),
		query         TEXT NOT NULL,
		filters       JSONB NOT NULL DEFAULT '{}',
		results_count INTEGER NOT NULL DEFAULT 0,
		searched_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_history_user ON user_search_history (user_id, id)`,
	`CREATE TABLE IF NOT EXISTS user_event_registrations (
		id            BIGSERIAL PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id),
		event_id      TEXT NOT NULL,
		registered_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_community_memberships (
		user_id      TEXT NOT NULL REFERENCES users(id),
		community_id TEXT NOT NULL,
		joined_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, community_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id                   TEXT PRIMARY KEY,
		title                TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		categories           TEXT[] NOT NULL DEFAULT '{}',
		city                 TEXT NOT NULL DEFAULT '',
		state                TEXT NOT NULL DEFAULT '',
		latitude             DOUBLE PRECISION,
		longitude            DOUBLE PRECISION,
		date                 TIMESTAMPTZ NOT NULL,
		status               TEXT NOT NULL,
		current_participants INTEGER NOT NULL DEFAULT 0,
		max_participants     INTEGER NOT NULL DEFAULT 0,
		price                DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_categories ON events USING GIN (categories)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status_date ON events (status, date)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		slug             TEXT NOT NULL UNIQUE,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		views            BIGINT NOT NULL DEFAULT 0,
		clicks           BIGINT NOT NULL DEFAULT 0,
		event_count      BIGINT NOT NULL DEFAULT 0,
		community_count  BIGINT NOT NULL DEFAULT 0,
		popularity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_viewed_at   TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS category_view_history (
		category_id TEXT NOT NULL REFERENCES categories(id),
		day         DATE NOT NULL,
		count       BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (category_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS collaborations (
		id                TEXT PRIMARY KEY,
		type              TEXT NOT NULL,
		proposer_id       TEXT NOT NULL,
		proposer_type     TEXT NOT NULL,
		recipient_id      TEXT NOT NULL,
		recipient_type    TEXT NOT NULL,
		form_data         JSONB NOT NULL,
		status            TEXT NOT NULL,
		latest_counter_id TEXT NOT NULL DEFAULT '',
		compliance_flags  TEXT[] NOT NULL DEFAULT '{}',
		risk_level        TEXT NOT NULL DEFAULT 'clean',
		admin_notes       TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		submitted_at      TIMESTAMPTZ,
		reviewed_at       TIMESTAMPTZ,
		delivered_at      TIMESTAMPTZ,
		responded_at      TIMESTAMPTZ,
		closed_at         TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_collaborations_status ON collaborations (status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS collaboration_counters (
		id                 TEXT PRIMARY KEY,
		collaboration_id   TEXT NOT NULL REFERENCES collaborations(id),
		submitted_by       TEXT NOT NULL,
		field_responses    JSONB NOT NULL DEFAULT '{}',
		house_rules        TEXT[] NOT NULL DEFAULT '{}',
		commercial_counter JSONB,
		general_notes      TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL,
		compliance_flags   TEXT[] NOT NULL DEFAULT '{}',
		risk_level         TEXT NOT NULL DEFAULT 'clean',
		admin_notes        TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL,
		reviewed_at        TIMESTAMPTZ
	)`,
	// At most one counter per collaboration may be awaiting review.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_counters_one_active
		ON collaboration_counters (collaboration_id) WHERE status = 'pending_admin_review'`,
	`CREATE TABLE IF NOT EXISTS collaboration_transitions (
		id               BIGSERIAL PRIMARY KEY,
		collaboration_id TEXT NOT NULL REFERENCES collaborations(id),
		counter_id       TEXT NOT NULL DEFAULT '',
		action           TEXT NOT NULL,
		actor_id         TEXT NOT NULL,
		actor_role       TEXT NOT NULL,
		from_status      TEXT NOT NULL DEFAULT '',
		to_status        TEXT NOT NULL,
		note             TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transitions_collaboration ON collaboration_transitions (collaboration_id, id)`,
}

// Migrate applies the schema in a single transaction. Statements are idempotent.
func (c *DBClient) Migrate(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	c.log.Info("Schema migrated", "statements", len(schema))
	return nil
}
