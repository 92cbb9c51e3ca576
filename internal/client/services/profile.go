package services

import (
	"context"
	"fmt"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/uri"
)

// SaveProfile stores the user's profile privately through the wallet.
func (s *NotesService) SaveProfile(ctx context.Context, p models.UserProfile) (*models.UserProfile, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	p.Pubkey = s.layer.SessionPubkey()

	ok, err := s.layer.WritePrivate(ctx, uri.UserProfile(), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: profile", ErrWriteFailed)
	}
	return &p, nil
}

func (s *NotesService) GetProfile(ctx context.Context) (*models.UserProfile, error) {
	p, err := access.ReadPrivateAs[models.UserProfile](ctx, s.layer, uri.UserProfile())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: profile", ErrNotFound)
	}
	return p, nil
}
