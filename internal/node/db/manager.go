// Package db opens the node database and hands out the repositories that
// live in it.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/node/migrations"
	"github.com/firecat-notes/firecat/internal/node/storage/sqlstore"
	"github.com/firecat-notes/firecat/internal/node/users"
)

type RepositoryManager struct {
	db      *sql.DB
	driver  string
	users   *users.SQLRepository
	records *sqlstore.Store
}

func (m *RepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *RepositoryManager) Users() users.Repository {
	return m.users
}

// Records is the SQL record backend. The node may use another backend for
// records but wallet users always live here.
func (m *RepositoryManager) Records() *sqlstore.Store {
	return m.records
}

func (m *RepositoryManager) RunMigrations(ctx context.Context) error {
	dialect := goose.DialectSQLite3
	if m.driver == config.DriverPostgres {
		dialect = goose.DialectPostgres
	}

	p, err := goose.NewProvider(dialect, m.db, migrations.Migrations)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

func (m *RepositoryManager) Close() error {
	return m.db.Close()
}

// NewRepositoryManager opens the database described by cfg and migrates it.
func NewRepositoryManager(ctx context.Context, cfg config.DatabaseConfig) (*RepositoryManager, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// one writer; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := &RepositoryManager{
		db:      db,
		driver:  cfg.Driver,
		users:   users.NewSQLRepository(db, cfg.Driver),
		records: sqlstore.New(db, cfg.Driver),
	}

	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
