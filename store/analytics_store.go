package store

import (
	"context"
	"fmt"
	"time"

	"eventhub/api/apperr"
	"eventhub/api/database"
	"eventhub/api/logger"
	"eventhub/api/models"
	"eventhub/api/utils"
)

// AnalyticsStore writes the interaction log to ClickHouse and serves the
// aggregate stats endpoints from it.
type AnalyticsStore struct {
	DB  *database.ClickHouseClient
	log *logger.Logger
}

type InteractionCountByTime struct {
	Time  time.Time `json:"time"`
	Kind  *string   `json:"kind,omitempty"`
	Count uint64    `json:"count"`
}

func NewAnalyticsStore(chClient *database.ClickHouseClient, log *logger.Logger) *AnalyticsStore {
	return &AnalyticsStore{
		DB:  chClient,
		log: log.With("component", "AnalyticsStore"),
	}
}

func (s *AnalyticsStore) InsertInteractions(ctx context.Context, records []models.InteractionRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Column order must match recommendation_interactions.
	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO recommendation_interactions (
			record_id, kind, user_id, event_id, categories, city, query, results_count,
			timestamp, ip_address, user_agent
		)
	`)
	if err != nil {
		return apperr.Unavailable("prepare interaction batch", err)
	}

	appended := 0
	for _, r := range records {
		categories := r.Categories
		if categories == nil {
			categories = []string{}
		}
		err := batch.Append(
			r.RecordID,
			string(r.Kind),
			r.UserID,
			r.EventID,
			categories,
			r.City,
			r.Query,
			uint32(max(r.ResultsCount, 0)),
			r.Timestamp.UTC(),
			r.IPAddress,
			r.UserAgent,
		)
		if err != nil {
			s.log.Warn("Skipping interaction record", "recordId", r.RecordID, "error", err)
			continue
		}
		appended++
	}
	if appended == 0 {
		return fmt.Errorf("no interaction records could be appended")
	}

	if err := batch.Send(); err != nil {
		return apperr.Unavailable("send interaction batch", err)
	}

	s.log.Debug("Inserted interaction records", "count", appended)
	return nil
}

// GetInteractionCountsOverTime buckets interactions with toStartOf<interval>.
// An empty kind groups the counts per kind.
func (s *AnalyticsStore) GetInteractionCountsOverTime(ctx context.Context, interval string, start, end time.Time, kind string) ([]InteractionCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, apperr.Validation("invalid interval: %s", interval)
	}

	args := []any{start, end}
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	if kind != "" {
		whereClause += " AND kind = ?"
		args = append(args, kind)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, kind, count() AS total
		FROM recommendation_interactions
		%s
		GROUP BY time_bucket, kind
		ORDER BY time_bucket ASC, kind ASC
	`, interval, whereClause)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("query interaction counts", err)
	}
	defer rows.Close()

	results := []InteractionCountByTime{}
	for rows.Next() {
		var (
			bucket time.Time
			k      string
			count  uint64
		)
		if err := rows.Scan(&bucket, &k, &count); err != nil {
			s.log.Warn("Error scanning interaction count row", "error", err)
			continue
		}
		results = append(results, InteractionCountByTime{Time: bucket, Kind: &k, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction counts: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) GetUniqueUsersOverTime(ctx context.Context, interval string, start, end time.Time) ([]InteractionCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, apperr.Validation("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, uniq(user_id) AS unique_users
		FROM recommendation_interactions
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, apperr.Unavailable("query unique users", err)
	}
	defer rows.Close()

	results := []InteractionCountByTime{}
	for rows.Next() {
		var bucket time.Time
		var users uint64
		if err := rows.Scan(&bucket, &users); err != nil {
			s.log.Warn("Error scanning unique users row", "error", err)
			continue
		}
		results = append(results, InteractionCountByTime{Time: bucket, Count: users})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unique users: %w", err)
	}
	return results, nil
}

// GetTopEvents ranks events by interactions of the given kind in [start, end].
func (s *AnalyticsStore) GetTopEvents(ctx context.Context, kind string, start, end time.Time, limit uint64) ([]models.TopEventResult, error) {
	if limit == 0 {
		limit = 10
	}
	if kind == "" {
		kind = string(models.InteractionClick)
	}

	rows, err := s.DB.Conn.Query(ctx, `
		SELECT event_id, count() AS total
		FROM recommendation_interactions
		WHERE kind = ? AND event_id != '' AND timestamp >= ? AND timestamp <= ?
		GROUP BY event_id
		ORDER BY total DESC, event_id ASC
		LIMIT ?
	`, kind, start, end, limit)
	if err != nil {
		return nil, apperr.Unavailable("query top events", err)
	}
	defer rows.Close()

	results := []models.TopEventResult{}
	for rows.Next() {
		var r models.TopEventResult
		if err := rows.Scan(&r.EventID, &r.Count); err != nil {
			s.log.Warn("Error scanning top events row", "error", err)
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top events: %w", err)
	}
	return results, nil
}
