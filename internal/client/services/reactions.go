package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/uri"
)

const reactionIDBytes = 16

type ReactionInput struct {
	Type    models.ReactionType
	Content string
	Media   *models.ReactionMedia
}

func (in ReactionInput) validate() error {
	switch in.Type {
	case models.ReactionLike:
	case models.ReactionComment:
		if in.Content == "" && in.Media == nil {
			return fmt.Errorf("%w: a comment needs content or media", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: reaction type %q", ErrInvalid, in.Type)
	}
	if in.Media != nil {
		switch in.Media.Type {
		case models.MediaEmoji, models.MediaText, models.MediaImage:
		default:
			return fmt.Errorf("%w: media type %q", ErrInvalid, in.Media.Type)
		}
	}
	return nil
}

// AddReaction stores a like or comment under the post, signed by the
// notebook identity, and bumps the matching counter on the post.
func (s *NotesService) AddReaction(ctx context.Context, notebook, post string, in ReactionInput, opts access.Options) (*models.Reaction, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, notebook)
	if err != nil {
		return nil, err
	}

	id, err := common.MakeRandHexString(reactionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("reaction id: %w", err)
	}
	r := &models.Reaction{
		ID:         id,
		PostPubkey: post,
		Type:       in.Type,
		Content:    in.Content,
		Media:      in.Media,
		CreatedAt:  s.millis(),
		Author:     s.author(),
	}

	if err := s.write(ctx, uri.Reaction(notebook, post, id), r, owner, opts); err != nil {
		return nil, fmt.Errorf("add reaction: %w", err)
	}
	s.bumpReactionCount(ctx, notebook, post, owner, opts, r.Type, 1)
	return r, nil
}

func (s *NotesService) bumpReactionCount(ctx context.Context, notebook, post string, owner identity.Identity, opts access.Options, t models.ReactionType, delta int) {
	p, err := s.GetPost(ctx, notebook, post, opts)
	if err != nil {
		s.log.Warn(ctx, "reaction count not updated", "post", post, "error", err)
		return
	}
	switch t {
	case models.ReactionLike:
		p.ReactionCount.Likes = max(p.ReactionCount.Likes+delta, 0)
	case models.ReactionComment:
		p.ReactionCount.Comments = max(p.ReactionCount.Comments+delta, 0)
	}
	if err := s.write(ctx, uri.Post(notebook, post), p, owner, opts); err != nil {
		s.log.Warn(ctx, "reaction count not updated", "post", post, "error", err)
	}
}

// ListReactions returns the readable reactions of a post, newest first, and
// the number of entries skipped.
func (s *NotesService) ListReactions(ctx context.Context, notebook, post string, opts access.ListOptions) ([]models.Reaction, int, error) {
	items, res, err := access.ListAs[models.Reaction](ctx, s.layer, uri.Reactions(notebook, post).Template(), opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Reaction, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value)
	}
	slices.SortStableFunc(out, func(a, b models.Reaction) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
	return out, len(res.Skipped), nil
}

// DeleteReaction removes a reaction and decrements the post counter.
func (s *NotesService) DeleteReaction(ctx context.Context, notebook, post, id string, opts access.Options) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	owner, err := s.owner(ctx, notebook)
	if err != nil {
		return err
	}
	addr := uri.Reaction(notebook, post, id)
	r, err := readRecord[models.Reaction](ctx, s.layer, addr, opts)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, addr, owner); err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	s.bumpReactionCount(ctx, notebook, post, owner, opts, r.Type, -1)
	return nil
}

// HasLiked reports whether the signed-in user has a like on the post.
func (s *NotesService) HasLiked(ctx context.Context, notebook, post string, opts access.Options) (bool, error) {
	me := s.layer.SessionPubkey()
	if me == "" {
		return false, nil
	}
	rs, _, err := s.ListReactions(ctx, notebook, post, access.ListOptions{Options: opts})
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(rs, func(r models.Reaction) bool {
		return r.Type == models.ReactionLike && r.Author.Pubkey == me
	}), nil
}
