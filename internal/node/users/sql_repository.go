package users

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/dbx"
)

const pgUniqueViolation = "23505"

// SQLRepository stores users in the wallet_users table. Binary columns are
// hex encoded so the same schema serves SQLite and PostgreSQL.
type SQLRepository struct {
	db     dbx.DBTX
	driver string
}

func NewSQLRepository(db dbx.DBTX, driver string) *SQLRepository {
	return &SQLRepository{db: db, driver: driver}
}

func (r *SQLRepository) Create(ctx context.Context, user *User) (*User, error) {
	query := dbx.Rebind(r.driver,
		`INSERT INTO wallet_users (id, app_key, username, salt, verifier, pubkey, sealed_key, key_nonce, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	id := uuid.NewString()
	createdAt := time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.db.ExecContext(ctx, query,
		id, user.AppKey, user.UserName,
		hex.EncodeToString(user.Salt), hex.EncodeToString(user.Verifier),
		user.Pubkey,
		hex.EncodeToString(user.SealedKey), hex.EncodeToString(user.KeyNonce),
		createdAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	created := *user
	created.ID = id
	created.CreatedAt = createdAt
	return &created, nil
}

func (r *SQLRepository) GetUserByLogin(ctx context.Context, appKey, userName string) (*User, error) {
	query := dbx.Rebind(r.driver,
		`SELECT id, app_key, username, salt, verifier, pubkey, sealed_key, key_nonce, created_at
		 FROM wallet_users
		 WHERE app_key = ? AND username = ?`)

	var (
		user                          User
		salt, verifier, sealed, nonce string
		createdAt                     int64
	)
	err := r.db.QueryRowContext(ctx, query, appKey, userName).Scan(
		&user.ID, &user.AppKey, &user.UserName, &salt, &verifier, &user.Pubkey, &sealed, &nonce, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	for _, f := range []struct {
		src string
		dst *[]byte
	}{{salt, &user.Salt}, {verifier, &user.Verifier}, {sealed, &user.SealedKey}, {nonce, &user.KeyNonce}} {
		if *f.dst, err = hex.DecodeString(f.src); err != nil {
			return nil, fmt.Errorf("corrupt user row %s: %w", user.ID, err)
		}
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
