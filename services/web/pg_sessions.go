package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"gorm.io/datatypes"

	"fitverse/pkg/db"
)

// PostgresSessionStore keeps sessions in the web_sessions table created by pkg/db/migrations.
type PostgresSessionStore struct {
	db *db.DB
}

// NewPostgresSessionStore wraps an open database. Migrations must already have run.
func NewPostgresSessionStore(database *db.DB) (*PostgresSessionStore, error) {
	if database == nil {
		return nil, errors.New("nil database")
	}
	return &PostgresSessionStore{db: database}, nil
}

type sessionRow struct {
	ID         uuid.UUID         `db:"id"`
	Token      string            `db:"token"`
	UserID     string            `db:"user_id"`
	Attrs      datatypes.JSONMap `db:"attrs"`
	CreatedAt  time.Time         `db:"created_at"`
	LastSeenAt time.Time         `db:"last_seen_at"`
	ExpiresAt  time.Time         `db:"expires_at"`
}

func (s *PostgresSessionStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	var row sessionRow
	err := s.db.Get(ctx, &row, `
		SELECT id, token, user_id, attrs, created_at, last_seen_at, expires_at
		FROM web_sessions
		WHERE id = $1 AND expires_at > now()`, id)
	if err != nil {
		if db.IsNoRows(err) {
			return Record{}, ErrSessionNotFound
		}
		return Record{}, fmt.Errorf("get session: %w", err)
	}
	return Record{
		ID:         row.ID,
		Token:      row.Token,
		UserID:     row.UserID,
		Attrs:      map[string]any(row.Attrs),
		CreatedAt:  row.CreatedAt,
		LastSeenAt: row.LastSeenAt,
		ExpiresAt:  row.ExpiresAt,
	}, nil
}

// Put purges expired rows and upserts rec in one transaction.
func (s *PostgresSessionStore) Put(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		return errors.New("session id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	attrs := datatypes.JSONMap(rec.Attrs)
	return s.db.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= now()`); err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO web_sessions (id, token, user_id, attrs, created_at, last_seen_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				token = EXCLUDED.token,
				user_id = EXCLUDED.user_id,
				attrs = EXCLUDED.attrs,
				last_seen_at = EXCLUDED.last_seen_at,
				expires_at = EXCLUDED.expires_at`,
			rec.ID, rec.Token, rec.UserID, attrs, rec.CreatedAt.UTC(), rec.LastSeenAt.UTC(), rec.ExpiresAt.UTC())
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

func (s *PostgresSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM web_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Audit appends a row to session_audit.
func (s *PostgresSessionStore) Audit(ctx context.Context, sessionID uuid.UUID, userID, action, remoteAddr string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO session_audit (session_id, user_id, action, remote_addr)
		VALUES ($1, $2, $3, $4)`, sessionID, userID, action, remoteAddr)
	if err != nil {
		return fmt.Errorf("write session audit: %w", err)
	}
	return nil
}
