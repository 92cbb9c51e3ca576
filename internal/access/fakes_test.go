package access

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/wire"
)

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]json.RawMessage
	writeErr error
	readErr  error
	listErr  error
	deleted  []string
	proofs   []*identity.Envelope
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]json.RawMessage{}}
}

func (f *fakeStore) Write(_ context.Context, addr uri.Address, value any) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[addr.String()] = raw
	return nil
}

func (f *fakeStore) put(addr string, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[addr] = json.RawMessage(raw)
}

func (f *fakeStore) Read(_ context.Context, addr uri.Address) (*wire.Record, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.records[addr.String()]
	if !ok {
		return nil, client.ErrNotFound
	}
	return &wire.Record{Data: raw, Ts: 1}, nil
}

func (f *fakeStore) List(_ context.Context, addr uri.Address, _, _ int) (*wire.ListResponse, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := addr.String() + "/"
	var out []wire.Entry
	for k := range f.records {
		if rest, ok := strings.CutPrefix(k, prefix); ok && !strings.Contains(rest, "/") {
			out = append(out, wire.Entry{URI: k, Type: wire.EntryFile})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return &wire.ListResponse{Status: wire.Status{Success: true}, Data: out, Pagination: wire.Pagination{Page: 1, Limit: 50, Total: len(out)}}, nil
}

func (f *fakeStore) Delete(_ context.Context, addr uri.Address, proof *identity.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, addr.String())
	f.proofs = append(f.proofs, proof)
	if _, ok := f.records[addr.String()]; !ok {
		return client.ErrNotFound
	}
	delete(f.records, addr.String())
	return nil
}

type fakeWallet struct {
	pubkey  string
	data    map[string]json.RawMessage
	err     error
	written []string
}

func newFakeWallet(pubkey string) *fakeWallet {
	return &fakeWallet{pubkey: pubkey, data: map[string]json.RawMessage{}}
}

func (w *fakeWallet) Pubkey() string { return w.pubkey }

func (w *fakeWallet) Username() string {
	if w.pubkey == "" {
		return ""
	}
	return "user-" + w.pubkey
}

func (w *fakeWallet) ProxyWrite(_ context.Context, addr uri.Address, data any, encrypt bool) error {
	if w.pubkey == "" {
		return client.ErrNoSession
	}
	if w.err != nil {
		return w.err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	w.data[addr.String()] = raw
	w.written = append(w.written, addr.String())
	return nil
}

func (w *fakeWallet) ProxyRead(_ context.Context, addr uri.Address) (json.RawMessage, error) {
	if w.pubkey == "" {
		return nil, client.ErrNoSession
	}
	if w.err != nil {
		return nil, w.err
	}
	raw, ok := w.data[addr.String()]
	if !ok {
		return nil, client.ErrNotFound
	}
	return raw, nil
}
