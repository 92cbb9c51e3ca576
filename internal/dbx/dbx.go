// Package dbx holds the small pieces shared by SQL repositories on both
// drivers.
package dbx

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// DBTX is what repositories need from *sql.DB or *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Rebind rewrites ? placeholders as $1, $2, ... for drivers that need
// numbered parameters (pgx). Queries for other drivers are returned as is.
// Quoted ? characters are not special-cased; keep them out of queries.
func Rebind(driver, query string) string {
	if driver != "pgx" && driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
