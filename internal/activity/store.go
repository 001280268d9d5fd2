// Package activity keeps a Postgres log of write notifications so the
// dashboard can show recent changes after a reload.
package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sitebook/gateway/internal/notify"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS sitebook_activity (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	entity      TEXT NOT NULL,
	op          TEXT NOT NULL,
	entity_id   TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL,
	site_id     TEXT NOT NULL,
	business_id TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sitebook_activity_business_created
	ON sitebook_activity (business_id, created_at DESC);
`

const insertActivity = `
INSERT INTO sitebook_activity
	(id, kind, entity, op, entity_id, message, site_id, business_id, user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`

const listActivity = `
SELECT id, kind, entity, op, entity_id, message, site_id, business_id, user_id, created_at
FROM sitebook_activity
WHERE business_id = $1
ORDER BY created_at DESC
LIMIT $2`

type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create activity schema: %w", err)
	}
	return nil
}

// Notify records n. It satisfies notify.Notifier.
func (s *Store) Notify(ctx context.Context, n notify.Notification) error {
	_, err := s.db.Exec(ctx, insertActivity,
		n.ID.String(), string(n.Kind), n.Entity, n.Op, n.EntityID, n.Message,
		n.SiteID, n.BusinessID, n.UserID, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries of a business, newest first.
func (s *Store) ListRecent(ctx context.Context, businessID string, limit int) ([]notify.Notification, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	rows, err := s.db.Query(ctx, listActivity, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("scan activity: %w", err)
	}
	return items, nil
}

func scanNotification(row pgx.CollectableRow) (notify.Notification, error) {
	var (
		n    notify.Notification
		kind string
	)
	err := row.Scan(&n.ID, &kind, &n.Entity, &n.Op, &n.EntityID, &n.Message,
		&n.SiteID, &n.BusinessID, &n.UserID, &n.CreatedAt)
	n.Kind = notify.Kind(kind)
	return n, err
}
