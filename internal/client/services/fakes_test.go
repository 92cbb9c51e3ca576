package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
	"github.com/firecat-notes/firecat/internal/wire"
)

// memStore is an in-memory record store.
type memStore struct {
	mu       sync.Mutex
	records  map[string]json.RawMessage
	writeErr error
}

func newMemStore() *memStore { return &memStore{records: map[string]json.RawMessage{}} }

func (m *memStore) Write(_ context.Context, addr uri.Address, value any) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[addr.String()] = raw
	return nil
}

func (m *memStore) Read(_ context.Context, addr uri.Address) (*wire.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.records[addr.String()]
	if !ok {
		return nil, client.ErrNotFound
	}
	return &wire.Record{Data: raw, Ts: 1}, nil
}

func (m *memStore) List(_ context.Context, addr uri.Address, _, _ int) (*wire.ListResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := addr.String() + "/"
	var out []wire.Entry
	for k := range m.records {
		if rest, ok := strings.CutPrefix(k, prefix); ok && !strings.Contains(rest, "/") {
			out = append(out, wire.Entry{URI: k, Type: wire.EntryFile})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return &wire.ListResponse{Status: wire.Status{Success: true}, Data: out, Pagination: wire.Pagination{Page: 1, Limit: 50, Total: len(out)}}, nil
}

func (m *memStore) Delete(_ context.Context, addr uri.Address, _ *identity.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[addr.String()]; !ok {
		return client.ErrNotFound
	}
	delete(m.records, addr.String())
	return nil
}

func (m *memStore) has(addr uri.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[addr.String()]
	return ok
}

// memWallet stores private records in the clear, keyed by resolved uri.
type memWallet struct {
	mu       sync.Mutex
	pubkey   string
	username string
	data     map[string]json.RawMessage
}

func newMemWallet(pubkey, username string) *memWallet {
	return &memWallet{pubkey: pubkey, username: username, data: map[string]json.RawMessage{}}
}

func (w *memWallet) Pubkey() string { return w.pubkey }

func (w *memWallet) Username() string { return w.username }

// signIn switches the session to another account.
func (w *memWallet) signIn(pubkey, username string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pubkey, w.username = pubkey, username
}

func (w *memWallet) ProxyWrite(_ context.Context, addr uri.Address, data any, _ bool) error {
	if w.pubkey == "" {
		return client.ErrNoSession
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data[addr.String()] = raw
	return nil
}

func (w *memWallet) ProxyRead(_ context.Context, addr uri.Address) (json.RawMessage, error) {
	if w.pubkey == "" {
		return nil, client.ErrNoSession
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	raw, ok := w.data[addr.String()]
	if !ok {
		return nil, client.ErrNotFound
	}
	return raw, nil
}

type notesFixture struct {
	svc    *NotesService
	store  *memStore
	wallet *memWallet
	app    identity.Identity
	user   identity.Identity
}

func newNotesFixture(t *testing.T) *notesFixture {
	t.Helper()
	app, err := identity.Generate()
	require.NoError(t, err)
	user, err := identity.Generate()
	require.NoError(t, err)

	store := newMemStore()
	wallet := newMemWallet(user.PublicKeyHex, "alice")
	policy := visibility.NewPolicy(visibility.NewKeyCache(), visibility.WithIterations(10, 10))
	layer := access.New(store, wallet, policy, nil)

	return &notesFixture{
		svc:    NewNotesService(layer, app, NewIdentityCache(), nil),
		store:  store,
		wallet: wallet,
		app:    app,
		user:   user,
	}
}
