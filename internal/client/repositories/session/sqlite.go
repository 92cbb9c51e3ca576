package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.Session, error) {
	var (
		s        models.Session
		issuedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT username, pubkey, token, expires_in, issued_at FROM sessions WHERE id = 1`,
	).Scan(&s.Username, &s.Pubkey, &s.Token, &s.ExpiresIn, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.IssuedAt = time.UnixMilli(issuedAt).UTC()
	return &s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.Session) error {
	if s == nil {
		return r.Clear(ctx)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, username, pubkey, token, expires_in, issued_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			pubkey = excluded.pubkey,
			token = excluded.token,
			expires_in = excluded.expires_in,
			issued_at = excluded.issued_at
	`, s.Username, s.Pubkey, s.Token, s.ExpiresIn, s.IssuedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", s.Username, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
