package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/common"
)

const (
	insertQuery = `(?s)^INSERT\s+INTO\s+wallet_users\s*\(id,\s*app_key,\s*username,\s*salt,\s*verifier,\s*pubkey,\s*sealed_key,\s*key_nonce,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8,\s*\$9\)$`
	selectQuery = `(?s)^SELECT\s+id,\s*app_key,\s*username,.*FROM\s+wallet_users\s+WHERE\s+app_key\s*=\s*\$1\s+AND\s+username\s*=\s*\$2$`
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, "pgx"), mock
}

func sampleUser() *User {
	return &User{
		AppKey:    common.AppKey,
		UserName:  "alice",
		Salt:      []byte{0x01, 0x02},
		Verifier:  []byte{0xaa},
		Pubkey:    "beef",
		SealedKey: []byte{0x10},
		KeyNonce:  []byte{0x20},
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQuery).
		WithArgs(sqlmock.AnyArg(), common.AppKey, "alice", "0102", "aa", "beef", "10", "20", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), sampleUser())
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, "alice", got.UserName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQuery).WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	_, err := repo.Create(context.Background(), sampleUser())
	require.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQuery).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), sampleUser())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func userRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "app_key", "username", "salt", "verifier", "pubkey", "sealed_key", "key_nonce", "created_at"})
}

func TestGetUserByLogin_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQuery).
		WithArgs(common.AppKey, "alice").
		WillReturnRows(userRow().AddRow("u-1", common.AppKey, "alice", "0102", "aa", "beef", "10", "20", int64(1700000000000)))

	got, err := repo.GetUserByLogin(context.Background(), common.AppKey, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, []byte{0x01, 0x02}, got.Salt)
	assert.Equal(t, []byte{0xaa}, got.Verifier)
	assert.Equal(t, []byte{0x10}, got.SealedKey)
	assert.Equal(t, int64(1700000000000), got.CreatedAt.UnixMilli())
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQuery).WithArgs(common.AppKey, "ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByLogin(context.Background(), common.AppKey, "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetUserByLogin_CorruptRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQuery).
		WillReturnRows(userRow().AddRow("u-1", common.AppKey, "alice", "zz", "aa", "beef", "10", "20", int64(0)))

	_, err := repo.GetUserByLogin(context.Background(), common.AppKey, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt user row u-1")
}

func TestGetUserByLogin_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQuery).WillReturnError(errors.New("boom"))

	_, err := repo.GetUserByLogin(context.Background(), common.AppKey, "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}
