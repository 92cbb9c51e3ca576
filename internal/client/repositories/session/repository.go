// Package session persists the wallet session between CLI runs.
package session

import (
	"context"

	"github.com/firecat-notes/firecat/internal/client/models"
)

// Repository stores at most one session. Load returns (nil, nil) when
// nothing is stored.
type Repository interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Clear(ctx context.Context) error
}
