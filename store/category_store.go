package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"eventhub/api/models"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, slug, is_active, views, clicks, event_count, community_count,
	popularity_score, last_viewed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	c := &models.Category{Analytics: models.CategoryAnalytics{ViewHistory: []models.DailyViewCount{}}}
	a := &c.Analytics
	var lastViewed sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.IsActive, &a.Views, &a.Clicks, &a.EventCount,
		&a.CommunityCount, &a.PopularityScore, &lastViewed, &c.CreatedAt); err != nil {
		return nil, err
	}
	if lastViewed.Valid {
		a.LastViewedAt = &lastViewed.Time
	}
	return c, nil
}

// IncrementCategoryView bumps views, upserts today's bucket, prunes buckets
// past retention and recomputes the popularity score in one transaction.
func (s *CategoryStore) IncrementCategoryView(ctx context.Context, id string, now time.Time) (*models.Category, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("begin category view", "category", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE categories
		SET views = views + 1,
			last_viewed_at = $2,
			popularity_score = 0.4 * (views + 1) + 0.3 * event_count + 0.3 * community_count
		WHERE id = $1;`, id, now.UTC())
	if err != nil {
		return nil, wrap("increment category view", "category", id, err)
	}
	if err := requireRow(res, "category", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO category_view_history (category_id, day, count) VALUES ($1, $2, 1)
		ON CONFLICT (category_id, day) DO UPDATE SET count = category_view_history.count + 1;`,
		id, models.Day(now)); err != nil {
		return nil, wrap("upsert category view day", "category", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM category_view_history WHERE category_id = $1 AND day < $2;`,
		id, models.ViewHistoryCutoff(now)); err != nil {
		return nil, wrap("prune category view history", "category", id, err)
	}
	c, err := scanCategory(tx.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1;`, id))
	if err != nil {
		return nil, wrap("reload category", "category", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap("commit category view", "category", id, err)
	}
	if err := s.attachHistory(ctx, []*models.Category{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryStore) IncrementCategoryClick(ctx context.Context, id string) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx,
		`UPDATE categories SET clicks = clicks + 1 WHERE id = $1 RETURNING `+categoryColumns+`;`, id))
	if err != nil {
		return nil, wrap("increment category click", "category", id, err)
	}
	if err := s.attachHistory(ctx, []*models.Category{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListActiveCategories orders by creation time, then id.
func (s *CategoryStore) ListActiveCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE is_active ORDER BY created_at, id;`)
	if err != nil {
		return nil, wrap("list categories", "category", "", err)
	}
	defer rows.Close()
	var ptrs []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, wrap("scan category", "category", "", err)
		}
		ptrs = append(ptrs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate categories", "category", "", err)
	}
	if err := s.attachHistory(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]models.Category, len(ptrs))
	for i, c := range ptrs {
		out[i] = *c
	}
	return out, nil
}

func (s *CategoryStore) attachHistory(ctx context.Context, categories []*models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	byID := make(map[string]*models.Category, len(categories))
	ids := make([]string, 0, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, day, count FROM category_view_history
		WHERE category_id = ANY($1::text[]) ORDER BY category_id, day;`, pq.Array(ids))
	if err != nil {
		return wrap("load view history", "category", "", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var v models.DailyViewCount
		if err := rows.Scan(&id, &v.Date, &v.Count); err != nil {
			return wrap("scan view history", "category", id, err)
		}
		v.Date = models.Day(v.Date)
		if c, ok := byID[id]; ok {
			c.Analytics.ViewHistory = append(c.Analytics.ViewHistory, v)
		}
	}
	return wrap("iterate view history", "category", "", rows.Err())
}
