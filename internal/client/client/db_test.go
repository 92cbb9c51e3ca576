package client

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/client/models"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestInitDatabase_MigratesSessionsTable(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "firecat.db")

	repos, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer repos.Close()

	assert.True(t, tableExists(t, repos.DB, "goose_db_version"))
	assert.True(t, tableExists(t, repos.DB, "sessions"))
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "firecat.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "sessions"))
}

func TestInitDatabase_SessionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "firecat.db")

	repos, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	s := &models.Session{Username: "u", Pubkey: "p", Token: "t", ExpiresIn: 10, IssuedAt: time.UnixMilli(1000).UTC()}
	require.NoError(t, repos.Session.Save(ctx, s))
	require.NoError(t, repos.Close())

	repos, err = InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer repos.Close()

	got, err := repos.Session.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
