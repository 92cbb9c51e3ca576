package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/uri"
)

var (
	// ErrNotOwner is returned when the signed-in user's index holds no key
	// for the notebook being modified.
	ErrNotOwner    = errors.New("notebook identity not found, you may not own this notebook")
	ErrNotFound    = errors.New("not found")
	ErrWriteFailed = errors.New("write failed")
	ErrInvalid     = errors.New("invalid input")
)

// IdentityCache keeps the notebook and post identities loaded from the user
// index, so ownership checks do not re-read it on every operation. The
// entries belong to one session account, see Bind.
type IdentityCache struct {
	mu      sync.RWMutex
	session string
	ids     map[string]identity.Identity
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{ids: map[string]identity.Identity{}}
}

func (c *IdentityCache) Put(id identity.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[id.PublicKeyHex] = id
}

func (c *IdentityCache) Get(pubkey string) (identity.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[pubkey]
	return id, ok
}

func (c *IdentityCache) Forget(pubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, pubkey)
}

// Bind ties the cache to the session account pubkey. Switching to another
// account drops the previous account's identities.
func (c *IdentityCache) Bind(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == session {
		return
	}
	c.session = session
	c.ids = map[string]identity.Identity{}
}

// Reset drops everything, e.g. on logout.
func (c *IdentityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = map[string]identity.Identity{}
}

// Load caches every key in ix whose private half matches its pubkey.
// Mismatched entries are skipped and counted.
func (c *IdentityCache) Load(ix *models.UserIndex) (skipped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, keys := range []map[string]string{ix.Keys, ix.PostKeys} {
		for pub, priv := range keys {
			id := identity.Identity{PublicKeyHex: pub, PrivateKeyHex: priv}
			if id.Validate() != nil {
				skipped++
				continue
			}
			c.ids[pub] = id
		}
	}
	return skipped
}

// NotesService implements notebooks, posts, reactions and profiles on top
// of the access layer.
type NotesService struct {
	layer *access.Layer
	app   identity.Identity
	keys  *IdentityCache
	log   logging.Logger
	now   func() time.Time
}

func NewNotesService(layer *access.Layer, app identity.Identity, keys *IdentityCache, log logging.Logger) *NotesService {
	if keys == nil {
		keys = NewIdentityCache()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &NotesService{layer: layer, app: app, keys: keys, log: log, now: time.Now}
}

func (s *NotesService) millis() int64 { return models.Millis(s.now()) }

func (s *NotesService) author() models.Author {
	return models.Author{Pubkey: s.layer.SessionPubkey(), Name: s.layer.SessionUsername()}
}

// cache returns the identity cache bound to the current session.
func (s *NotesService) cache() *IdentityCache {
	s.keys.Bind(s.layer.SessionPubkey())
	return s.keys
}

func (s *NotesService) requireSession() error {
	if !s.layer.Authenticated() {
		return access.ErrNotAuthenticated
	}
	return nil
}

// loadIndex reads the user index, returning an empty one when none has been
// written yet, and refreshes the identity cache from it.
func (s *NotesService) loadIndex(ctx context.Context) (*models.UserIndex, error) {
	ix, err := access.ReadPrivateAs[models.UserIndex](ctx, s.layer, uri.UserNotebooksIndex())
	if err != nil {
		return nil, fmt.Errorf("read notebooks index: %w", err)
	}
	if ix == nil {
		return models.NewUserIndex(), nil
	}
	ix.Normalize()
	if n := s.cache().Load(ix); n > 0 {
		s.log.Warn(ctx, "ignored invalid keys in notebooks index", "count", n)
	}
	return ix, nil
}

// updateIndex is a read-modify-write of the user index. Concurrent writers
// race and the last write wins.
func (s *NotesService) updateIndex(ctx context.Context, mutate func(ix *models.UserIndex)) error {
	ix, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	mutate(ix)

	ok, err := s.layer.WritePrivate(ctx, uri.UserNotebooksIndex(), ix)
	if err != nil {
		return fmt.Errorf("write notebooks index: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: notebooks index", ErrWriteFailed)
	}
	return nil
}

// owner returns the identity of a notebook the user owns.
func (s *NotesService) owner(ctx context.Context, notebook string) (identity.Identity, error) {
	if id, ok := s.cache().Get(notebook); ok {
		return id, nil
	}
	ix, err := s.loadIndex(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	if _, ok := ix.Keys[notebook]; !ok {
		return identity.Identity{}, ErrNotOwner
	}
	id, ok := s.cache().Get(notebook)
	if !ok {
		return identity.Identity{}, ErrNotOwner
	}
	return id, nil
}

// write wraps Layer.Write, turning a store rejection into ErrWriteFailed.
func (s *NotesService) write(ctx context.Context, addr uri.Address, data any, id identity.Identity, opts access.Options) error {
	ok, err := s.layer.Write(ctx, addr, data, id, opts)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrWriteFailed, addr)
	}
	return nil
}

func (s *NotesService) remove(ctx context.Context, addr uri.Address, id identity.Identity) error {
	ok, err := s.layer.Delete(ctx, addr, &id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: delete %s", ErrWriteFailed, addr)
	}
	return nil
}

// readRecord reads addr into a T, mapping a missing record to ErrNotFound.
func readRecord[T any](ctx context.Context, l *access.Layer, addr uri.Address, opts access.Options) (*T, error) {
	v, err := access.ReadAs[T](ctx, l, addr, opts)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	return v, nil
}
