package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
	"github.com/firecat-notes/firecat/internal/wire"
)

// Item is one materialized list entry.
type Item struct {
	Address uri.Address
	Data    json.RawMessage
}

// Skipped records an entry List could not materialize.
type Skipped struct {
	URI string
	Err error
}

// ListResult carries what was readable plus what was not. Callers that want
// strict semantics check len(Skipped).
type ListResult struct {
	Items   []Item
	Skipped []Skipped
	Total   int
}

// Partial reports whether at least one entry was skipped.
func (r *ListResult) Partial() bool { return len(r.Skipped) > 0 }

// ErrEmptyRecord marks a listed entry whose record vanished between list
// and read.
var ErrEmptyRecord = errors.New("record not found")

// List enumerates the file entries under t and reads each with opts.
//
// Contract:
//   - a template with a placeholder and no session yields an empty result.
//   - a missing container yields an empty result.
//   - unreadable entries are collected in Skipped, never returned as an error.
//   - only a misuse error (e.g. ErrMissingPassword) aborts the listing.
func (l *Layer) List(ctx context.Context, t uri.Template, opts ListOptions) (*ListResult, error) {
	res := &ListResult{Items: []Item{}}
	if opts.Visibility == visibility.Private && !l.Authenticated() {
		return res, nil
	}

	addr, err := l.Resolve(t)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return res, nil
		}
		return nil, err
	}

	page, err := l.store.List(ctx, addr, opts.Page, opts.Limit)
	if err != nil {
		if !isNotFound(err) {
			l.log.Warn(ctx, "list failed", "uri", addr.String(), "error", err)
		}
		return res, nil
	}
	res.Total = page.Pagination.Total

	for _, e := range page.Data {
		if e.Type != wire.EntryFile {
			continue
		}

		child, err := uri.Parse(e.URI)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{URI: e.URI, Err: err})
			continue
		}

		data, err := l.Read(ctx, child, opts.Options)
		switch {
		case errors.Is(err, ErrMissingPassword), errors.Is(err, ErrPrivateVisibility):
			return nil, err
		case err != nil:
			l.log.Debug(ctx, "skipping list entry", "uri", e.URI, "error", err)
			res.Skipped = append(res.Skipped, Skipped{URI: e.URI, Err: err})
		case data == nil:
			res.Skipped = append(res.Skipped, Skipped{URI: e.URI, Err: ErrEmptyRecord})
		default:
			res.Items = append(res.Items, Item{Address: child, Data: data})
		}
	}

	if res.Partial() {
		l.log.Info(ctx, "list completed with skipped entries", "uri", addr.String(),
			"items", len(res.Items), "skipped", len(res.Skipped))
	}
	return res, nil
}

// Typed is a decoded list entry.
type Typed[T any] struct {
	Address uri.Address
	Value   T
}

// ListAs lists t and decodes every item into T. Items that fail to decode
// move to Skipped.
func ListAs[T any](ctx context.Context, l *Layer, t uri.Template, opts ListOptions) ([]Typed[T], *ListResult, error) {
	res, err := l.List(ctx, t, opts)
	if err != nil {
		return nil, nil, err
	}

	out := make([]Typed[T], 0, len(res.Items))
	kept := res.Items[:0]
	for _, it := range res.Items {
		var v T
		if err := json.Unmarshal(it.Data, &v); err != nil {
			res.Skipped = append(res.Skipped, Skipped{URI: it.Address.String(), Err: fmt.Errorf("decode: %w", err)})
			continue
		}
		kept = append(kept, it)
		out = append(out, Typed[T]{Address: it.Address, Value: v})
	}
	res.Items = kept
	return out, res, nil
}
