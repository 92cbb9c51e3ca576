// Package sqlstore keeps records in the node's SQL database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/dbx"
	"github.com/firecat-notes/firecat/internal/node/storage"
	"github.com/firecat-notes/firecat/internal/wire"
)

const (
	childrenQuery = `SELECT uri FROM records WHERE uri >= ? AND uri < ? ORDER BY uri`

	// PostgreSQL compares text with the database collation, which may sort
	// '/' after letters and digits. "C" restores byte order.
	childrenQueryPostgres = `SELECT uri FROM records WHERE uri COLLATE "C" >= ? AND uri COLLATE "C" < ? ORDER BY uri COLLATE "C"`
)

type Store struct {
	db     dbx.DBTX
	driver string
}

func New(db dbx.DBTX, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) q(query string) string { return dbx.Rebind(s.driver, query) }

func (s *Store) Put(ctx context.Context, uri string, rec wire.Record) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO records (uri, data, ts) VALUES (?, ?, ?)
		ON CONFLICT (uri) DO UPDATE SET data = excluded.data, ts = excluded.ts`),
		uri, string(rec.Data), rec.Ts)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, uri string) (*wire.Record, error) {
	var (
		data string
		rec  wire.Record
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT data, ts FROM records WHERE uri = ?`), uri).Scan(&data, &rec.Ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.Data = []byte(data)
	return &rec, nil
}

// Children scans the uris under prefix as a bytewise range; '0' is the byte
// after '/'.
func (s *Store) Children(ctx context.Context, prefix string) ([]wire.Entry, error) {
	prefix = storage.ContainerPrefix(prefix)
	upper := strings.TrimSuffix(prefix, "/") + "0"

	query := childrenQuery
	if s.driver == config.DriverPostgres {
		query = childrenQueryPostgres
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), prefix, upper)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		uris = append(uris, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return storage.Entries(prefix, uris), nil
}

func (s *Store) Delete(ctx context.Context, uri string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM records WHERE uri = ?`), uri)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}
