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
)

type PostInput struct {
	Content     string
	Images      []string
	ReferenceTo *models.PostReference
}

type PostChanges struct {
	Content *string
	Images  []string
}

// CreatePost writes a new post signed by the notebook identity with the
// notebook's visibility, stores the post key in the user index and bumps the
// notebook's post count.
func (s *NotesService) CreatePost(ctx context.Context, notebook string, in PostInput, opts access.Options) (*models.Post, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	owner, err := s.owner(ctx, notebook)
	if err != nil {
		return nil, err
	}

	postID, err := identity.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate post identity: %w", err)
	}

	now := s.millis()
	p := &models.Post{
		Pubkey:         postID.PublicKeyHex,
		NotebookPubkey: notebook,
		Content:        in.Content,
		Images:         in.Images,
		CreatedAt:      now,
		UpdatedAt:      now,
		Author:         s.author(),
		ReferenceTo:    in.ReferenceTo,
	}

	if err := s.write(ctx, uri.Post(notebook, p.Pubkey), p, owner, opts); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	if err := s.updateIndex(ctx, func(ix *models.UserIndex) {
		ix.PostKeys[postID.PublicKeyHex] = postID.PrivateKeyHex
	}); err != nil {
		return nil, err
	}
	s.cache().Put(postID)

	s.bumpPostCount(ctx, notebook, owner, opts, 1)
	return p, nil
}

// bumpPostCount adjusts the notebook's post count. Failures are logged; the
// post itself is already stored.
func (s *NotesService) bumpPostCount(ctx context.Context, notebook string, owner identity.Identity, opts access.Options, delta int) {
	nb, err := s.GetNotebook(ctx, notebook, opts)
	if err != nil {
		s.log.Warn(ctx, "post count not updated", "notebook", notebook, "error", err)
		return
	}
	nb.PostCount = max(nb.PostCount+delta, 0)
	nb.UpdatedAt = s.millis()
	if err := s.write(ctx, uri.NotebookMeta(notebook), nb, owner, opts); err != nil {
		s.log.Warn(ctx, "post count not updated", "notebook", notebook, "error", err)
	}
}

// PostPage is a list of posts plus the entries that could not be read.
type PostPage struct {
	Posts   []models.Post
	Skipped int
	Total   int
}

// ListPosts returns the readable posts of notebook, newest first.
func (s *NotesService) ListPosts(ctx context.Context, notebook string, opts access.ListOptions) (*PostPage, error) {
	items, res, err := access.ListAs[models.Post](ctx, s.layer, uri.Posts(notebook).Template(), opts)
	if err != nil {
		return nil, err
	}
	page := &PostPage{Posts: make([]models.Post, 0, len(items)), Skipped: len(res.Skipped), Total: res.Total}
	for _, it := range items {
		page.Posts = append(page.Posts, it.Value)
	}
	slices.SortStableFunc(page.Posts, func(a, b models.Post) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
	return page, nil
}

func (s *NotesService) GetPost(ctx context.Context, notebook, post string, opts access.Options) (*models.Post, error) {
	return readRecord[models.Post](ctx, s.layer, uri.Post(notebook, post), opts)
}

func (s *NotesService) UpdatePost(ctx context.Context, notebook, post string, ch PostChanges, opts access.Options) (*models.Post, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, notebook)
	if err != nil {
		return nil, err
	}
	p, err := s.GetPost(ctx, notebook, post, opts)
	if err != nil {
		return nil, err
	}

	if ch.Content != nil {
		if strings.TrimSpace(*ch.Content) == "" {
			return nil, fmt.Errorf("%w: content is required", ErrInvalid)
		}
		p.Content = *ch.Content
	}
	if ch.Images != nil {
		p.Images = ch.Images
	}
	p.UpdatedAt = s.millis()

	if err := s.write(ctx, uri.Post(notebook, post), p, owner, opts); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return p, nil
}

// DeletePost removes the post, decrements the notebook's post count and
// drops the post key from the user index.
func (s *NotesService) DeletePost(ctx context.Context, notebook, post string, opts access.Options) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	owner, err := s.owner(ctx, notebook)
	if err != nil {
		return err
	}

	if err := s.remove(ctx, uri.Post(notebook, post), owner); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	s.bumpPostCount(ctx, notebook, owner, opts, -1)

	if err := s.updateIndex(ctx, func(ix *models.UserIndex) {
		delete(ix.PostKeys, post)
	}); err != nil {
		return err
	}
	s.cache().Forget(post)
	return nil
}
