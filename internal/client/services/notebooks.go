package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
)

type NotebookInput struct {
	Title       string
	Description string
	CoverImage  string
	Visibility  visibility.Visibility
	Password    string
}

// NotebookChanges lists the fields to update. Nil fields are kept.
// NewPassword protects the notebook when it becomes (or stays) protected;
// when empty the current password is reused.
type NotebookChanges struct {
	Title       *string
	Description *string
	CoverImage  *string
	Visibility  *visibility.Visibility
	NewPassword string
}

func notebookOptions(v visibility.Visibility, password string) (access.Options, error) {
	switch v {
	case visibility.Public:
		return access.Public(), nil
	case visibility.Protected:
		if password == "" {
			return access.Options{}, access.ErrMissingPassword
		}
		return access.Protected(password), nil
	case visibility.Private:
		return access.Options{}, fmt.Errorf("%w: notebooks are public or protected", access.ErrPrivateVisibility)
	}
	return access.Options{}, fmt.Errorf("%w: visibility %q", ErrInvalid, v)
}

// CreateNotebook generates a notebook identity, writes its metadata, records
// the key in the user index and, for public notebooks, publishes a discovery
// entry signed by the app identity.
func (s *NotesService) CreateNotebook(ctx context.Context, in NotebookInput) (*models.Notebook, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	opts, err := notebookOptions(in.Visibility, in.Password)
	if err != nil {
		return nil, err
	}

	nbID, err := identity.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate notebook identity: %w", err)
	}

	now := s.millis()
	nb := &models.Notebook{
		Pubkey:      nbID.PublicKeyHex,
		Title:       title,
		Description: in.Description,
		CoverImage:  in.CoverImage,
		Visibility:  in.Visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
		Author:      s.author(),
	}

	if err := s.write(ctx, uri.NotebookMeta(nb.Pubkey), nb, nbID, opts); err != nil {
		return nil, fmt.Errorf("create notebook: %w", err)
	}

	if err := s.updateIndex(ctx, func(ix *models.UserIndex) {
		ix.Upsert(nb.Ref())
		ix.Keys[nbID.PublicKeyHex] = nbID.PrivateKeyHex
	}); err != nil {
		return nil, err
	}
	s.cache().Put(nbID)

	if nb.Visibility == visibility.Public {
		if err := s.publish(ctx, nb); err != nil {
			s.log.Warn(ctx, "public index entry not written", "notebook", nb.Pubkey, "error", err)
		}
	}

	s.log.Info(ctx, "notebook created", "notebook", nb.Pubkey, "visibility", string(nb.Visibility))
	return nb, nil
}

func (s *NotesService) publish(ctx context.Context, nb *models.Notebook) error {
	entry := models.PublicNotebookEntry{
		Pubkey:    nb.Pubkey,
		Author:    nb.Author,
		CreatedAt: s.millis(),
	}
	return s.write(ctx, uri.PublicNotebookEntry(s.app.PublicKeyHex, nb.Pubkey), entry, s.app, access.Public())
}

func (s *NotesService) unpublish(ctx context.Context, notebook string) error {
	return s.remove(ctx, uri.PublicNotebookEntry(s.app.PublicKeyHex, notebook), s.app)
}

func (s *NotesService) GetNotebook(ctx context.Context, notebook string, opts access.Options) (*models.Notebook, error) {
	return readRecord[models.Notebook](ctx, s.layer, uri.NotebookMeta(notebook), opts)
}

// ListMyNotebooks returns the refs from the user index, newest first.
func (s *NotesService) ListMyNotebooks(ctx context.Context) ([]models.NotebookRef, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	ix, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	refs := slices.Clone(ix.Notebooks)
	slices.SortStableFunc(refs, func(a, b models.NotebookRef) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
	return refs, nil
}

// UpdateNotebook rewrites the notebook metadata read with opts. A visibility
// change moves the notebook in or out of the public index.
func (s *NotesService) UpdateNotebook(ctx context.Context, notebook string, ch NotebookChanges, opts access.Options) (*models.Notebook, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, notebook)
	if err != nil {
		return nil, err
	}

	nb, err := s.GetNotebook(ctx, notebook, opts)
	if err != nil {
		return nil, err
	}
	before := nb.Visibility

	if ch.Title != nil {
		t := strings.TrimSpace(*ch.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		nb.Title = t
	}
	if ch.Description != nil {
		nb.Description = *ch.Description
	}
	if ch.CoverImage != nil {
		nb.CoverImage = *ch.CoverImage
	}
	if ch.Visibility != nil {
		nb.Visibility = *ch.Visibility
	}
	nb.UpdatedAt = s.millis()

	password := ch.NewPassword
	if password == "" {
		password = opts.Password
	}
	writeOpts, err := notebookOptions(nb.Visibility, password)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, uri.NotebookMeta(notebook), nb, owner, writeOpts); err != nil {
		return nil, fmt.Errorf("update notebook: %w", err)
	}

	switch {
	case before == visibility.Public && nb.Visibility != visibility.Public:
		if err := s.unpublish(ctx, notebook); err != nil {
			s.log.Warn(ctx, "public index entry not removed", "notebook", notebook, "error", err)
		}
	case before != visibility.Public && nb.Visibility == visibility.Public:
		if err := s.publish(ctx, nb); err != nil {
			s.log.Warn(ctx, "public index entry not written", "notebook", notebook, "error", err)
		}
	}

	if err := s.updateIndex(ctx, func(ix *models.UserIndex) {
		ref, ok := ix.Find(notebook)
		if !ok {
			ref = nb.Ref()
		}
		ref.Title = nb.Title
		ref.Visibility = nb.Visibility
		ix.Upsert(ref)
	}); err != nil {
		return nil, err
	}
	return nb, nil
}

// DeleteNotebook removes the metadata with a signed proof, drops the public
// entry when the notebook was public, and forgets its key.
func (s *NotesService) DeleteNotebook(ctx context.Context, notebook string) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	owner, err := s.owner(ctx, notebook)
	if err != nil {
		return err
	}

	if err := s.remove(ctx, uri.NotebookMeta(notebook), owner); err != nil {
		return fmt.Errorf("delete notebook: %w", err)
	}

	var wasPublic bool
	if err := s.updateIndex(ctx, func(ix *models.UserIndex) {
		if ref, ok := ix.Find(notebook); ok {
			wasPublic = ref.Visibility == visibility.Public
		}
		ix.Remove(notebook)
	}); err != nil {
		return err
	}
	s.cache().Forget(notebook)

	if wasPublic {
		if err := s.unpublish(ctx, notebook); err != nil {
			s.log.Warn(ctx, "public index entry not removed", "notebook", notebook, "error", err)
		}
	}
	s.log.Info(ctx, "notebook deleted", "notebook", notebook)
	return nil
}

// Discovery is one page of the public notebook index, resolved to the
// notebooks' public metadata.
type Discovery struct {
	Notebooks []models.Notebook
	Skipped   int
	Total     int
}

// DiscoverNotebooks lists the app's public index and reads each listed
// notebook's metadata as public, most recently updated first. Index entries
// that cannot be decoded or whose notebook cannot be read are counted in
// Skipped, not returned.
func (s *NotesService) DiscoverNotebooks(ctx context.Context, page, limit int) (*Discovery, error) {
	t := uri.PublicNotebooks(s.app.PublicKeyHex).Template()
	items, res, err := access.ListAs[models.PublicNotebookEntry](ctx, s.layer, t,
		access.ListOptions{Options: access.Public(), Page: page, Limit: limit})
	if err != nil {
		return nil, err
	}

	out := &Discovery{Notebooks: make([]models.Notebook, 0, len(items)), Skipped: len(res.Skipped), Total: res.Total}
	for _, it := range items {
		nb, err := s.GetNotebook(ctx, it.Value.Pubkey, access.Public())
		if err != nil {
			s.log.Warn(ctx, "public notebook not readable", "notebook", it.Value.Pubkey, "error", err)
			out.Skipped++
			continue
		}
		out.Notebooks = append(out.Notebooks, *nb)
	}
	slices.SortStableFunc(out.Notebooks, func(a, b models.Notebook) int { return cmp.Compare(b.UpdatedAt, a.UpdatedAt) })
	return out, nil
}
