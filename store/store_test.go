package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"eventhub/api/apperr"
	"eventhub/api/models"
)

func TestWhereBuildsPositionalClause(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clause, args := where(models.EventFilter{
		Status:     models.EventStatusPublished,
		Categories: []string{"music"},
		DateFrom:   &from,
		BBox:       &models.GeoBoundingBox{MinLat: 1, MaxLat: 2, MinLng: 3, MaxLng: 4},
	})
	want := " WHERE status = $1 AND categories && $2::text[] AND date >= $3 AND latitude >= $4 AND latitude <= $5 AND longitude >= $6 AND longitude <= $7"
	if clause != want {
		t.Fatalf("clause = %q\nwant   %q", clause, want)
	}
	if len(args) != 7 {
		t.Fatalf("args = %d, want 7", len(args))
	}

	if clause, args := where(models.EventFilter{}); clause != "" || args != nil {
		t.Fatalf("empty filter = %q %v", clause, args)
	}
}

func TestWrapTranslatesDriverErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, apperr.ErrNotFound},
		{"unique", &pq.Error{Code: pgUniqueViolation}, apperr.ErrConflict},
		{"foreign key", &pq.Error{Code: pgForeignKeyViolation}, apperr.ErrNotFound},
		{"connection", &pq.Error{Code: "08006"}, apperr.ErrDependencyUnavailable},
		{"bad conn", driver.ErrBadConn, apperr.ErrDependencyUnavailable},
		{"deadline", context.DeadlineExceeded, apperr.ErrDependencyUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := wrap("op", "user", "u1", tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("wrap(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
	if wrap("op", "user", "u1", nil) != nil {
		t.Fatal("wrap(nil) must be nil")
	}
	plain := errors.New("boom")
	if got := wrap("load user", "user", "u1", plain); !errors.Is(got, plain) || !strings.HasPrefix(got.Error(), "load user:") {
		t.Fatalf("plain error = %v", got)
	}
}

func TestPrefixedColumns(t *testing.T) {
	if got := prefixed("c", []string{"id", "status"}); got != "c.id, c.status" {
		t.Fatalf("prefixed = %q", got)
	}
}
