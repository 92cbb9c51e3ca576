// Package records implements the store side of the node: signed writes,
// reads, listings and owner-checked deletes.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/node/storage"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/wire"
)

// ProofWindow bounds the clock skew accepted on a delete proof.
const ProofWindow = 5 * time.Minute

type Service struct {
	store storage.Backend
	log   logging.Logger
	now   func() time.Time
}

func NewService(store storage.Backend, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

func parse(raw string) (uri.Address, error) {
	addr, err := uri.Parse(raw)
	if err != nil {
		return uri.Address{}, fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	if addr.Path() == "" {
		return uri.Address{}, fmt.Errorf("%w: %s has no path", common.ErrInvalidRequest, raw)
	}
	return addr, nil
}

// Write stores value at rawURI. Under accounts/{pub} the value must be an
// envelope signed by {pub} with valid signatures. Immutable addresses are
// write-once.
func (s *Service) Write(ctx context.Context, rawURI string, value json.RawMessage) error {
	addr, err := parse(rawURI)
	if err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: value is not JSON", common.ErrInvalidRequest)
	}

	if account, ok := addr.Account(); ok {
		env, ok := identity.AsEnvelope(value)
		if !ok || !env.SignedBy(account) {
			return fmt.Errorf("%w: %s must be signed by its account", common.ErrForbidden, addr)
		}
		if err := identity.Verify(env); err != nil {
			return fmt.Errorf("%w: %v", common.ErrForbidden, err)
		}
	}

	key := addr.String()
	if addr.Scheme() == uri.SchemeImmutable {
		_, err := s.store.Get(ctx, key)
		if err == nil {
			return fmt.Errorf("%w: %s is immutable", common.ErrAlreadyExists, key)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	if err := s.store.Put(ctx, key, wire.Record{Data: value, Ts: s.now().UnixMilli()}); err != nil {
		return err
	}
	s.log.Debug(ctx, "record written", "uri", key)
	return nil
}

// Read returns the record at rawURI or common.ErrNotFound.
func (s *Service) Read(ctx context.Context, rawURI string) (*wire.Record, error) {
	addr, err := parse(rawURI)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, addr.String())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, common.ErrNotFound
	}
	return rec, err
}

// List returns one page of the children of rawURI. A container without
// records lists as empty.
func (s *Service) List(ctx context.Context, rawURI string, page, limit int) ([]wire.Entry, wire.Pagination, error) {
	addr, err := uri.Parse(rawURI)
	if err != nil {
		return nil, wire.Pagination{}, fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	entries, err := s.store.Children(ctx, addr.String())
	if err != nil {
		return nil, wire.Pagination{}, err
	}
	out, p := storage.Paginate(entries, page, limit)
	return out, p, nil
}

// Delete removes the record at rawURI. Under accounts/{pub} the caller must
// hold a session for {pub} (sessionPubkey) or send a fresh delete proof
// signed by {pub}.
func (s *Service) Delete(ctx context.Context, rawURI string, proof *identity.Envelope, sessionPubkey string) error {
	addr, err := parse(rawURI)
	if err != nil {
		return err
	}
	key := addr.String()

	if addr.Scheme() == uri.SchemeImmutable {
		return fmt.Errorf("%w: %s is immutable", common.ErrForbidden, key)
	}
	if account, ok := addr.Account(); ok && account != sessionPubkey {
		if err := s.checkProof(key, account, proof); err != nil {
			return err
		}
	}

	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return common.ErrNotFound
		}
		return err
	}
	s.log.Debug(ctx, "record deleted", "uri", key)
	return nil
}

func (s *Service) checkProof(key, account string, proof *identity.Envelope) error {
	if proof == nil || !proof.SignedBy(account) {
		return fmt.Errorf("%w: deleting %s needs the owner's proof or session", common.ErrForbidden, key)
	}
	if err := identity.Verify(*proof); err != nil {
		return fmt.Errorf("%w: %v", common.ErrForbidden, err)
	}

	var p wire.DeleteProof
	if err := json.Unmarshal(proof.Payload, &p); err != nil {
		return fmt.Errorf("%w: malformed proof", common.ErrForbidden)
	}
	if p.Op != wire.OpDelete || p.URI != key {
		return fmt.Errorf("%w: proof does not cover %s", common.ErrForbidden, key)
	}
	if skew := s.now().Sub(time.UnixMilli(p.Ts)).Abs(); skew > ProofWindow {
		return fmt.Errorf("%w: stale proof", common.ErrForbidden)
	}
	return nil
}

// Ping reports whether the backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
