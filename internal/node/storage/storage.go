// Package storage defines the record store behind the node and the listing
// rules shared by its backends.
package storage

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/firecat-notes/firecat/internal/wire"
)

// ErrNotFound is returned by Get and Delete for a uri without a record.
var ErrNotFound = errors.New("record not found")

// Backend persists records keyed by their full uri string.
type Backend interface {
	Put(ctx context.Context, uri string, rec wire.Record) error
	Get(ctx context.Context, uri string) (*wire.Record, error)
	// Children returns the entries directly under prefix, ordered by uri.
	Children(ctx context.Context, prefix string) ([]wire.Entry, error)
	Delete(ctx context.Context, uri string) error
	Ping(ctx context.Context) error
}

// ContainerPrefix is the key prefix shared by every record under uri.
func ContainerPrefix(uri string) string {
	return strings.TrimRight(uri, "/") + "/"
}

// Entries turns the uris found under prefix into direct children. A key with
// more segments yields a directory entry for its first segment. A child that
// both holds a record and has descendants is reported once, as a file.
func Entries(prefix string, uris []string) []wire.Entry {
	prefix = ContainerPrefix(prefix)
	kinds := map[string]string{}
	for _, u := range uris {
		rest, ok := strings.CutPrefix(u, prefix)
		if !ok || rest == "" {
			continue
		}
		if seg, _, deeper := strings.Cut(rest, "/"); deeper {
			if _, seen := kinds[seg]; !seen {
				kinds[seg] = wire.EntryDirectory
			}
			continue
		}
		kinds[rest] = wire.EntryFile
	}

	out := make([]wire.Entry, 0, len(kinds))
	for seg, kind := range kinds {
		out = append(out, wire.Entry{URI: prefix + seg, Type: kind})
	}
	SortEntries(out)
	return out
}

func SortEntries(es []wire.Entry) {
	slices.SortFunc(es, func(a, b wire.Entry) int { return strings.Compare(a.URI, b.URI) })
}

// Paginate clamps page and limit and returns the requested slice of es. Page
// starts at 1. A zero limit selects wire.DefaultLimit.
func Paginate(es []wire.Entry, page, limit int) ([]wire.Entry, wire.Pagination) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = wire.DefaultLimit
	}
	limit = min(limit, wire.MaxLimit)

	p := wire.Pagination{Page: page, Limit: limit, Total: len(es)}
	start := (page - 1) * limit
	if start >= len(es) {
		return []wire.Entry{}, p
	}
	end := min(start+limit, len(es))
	return es[start:end], p
}
