// Package services contains application services for the Firecat client.
// This file defines the authentication service: wallet signup and login,
// logout, and restoring the session persisted by a previous run.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/client/repositories/session"
	"github.com/firecat-notes/firecat/internal/logging"
)

var ErrEmptyCredentials = errors.New("username and password are required")

// Wallet is the subset of the wallet client the auth service drives.
type Wallet interface {
	Signup(ctx context.Context, username, password string) (*models.Session, error)
	Login(ctx context.Context, username, password, sessionKey string) (*models.Session, error)
	SetSession(s *models.Session)
	ClearSession()
	Session() *models.Session
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Signup: create a wallet account; the returned session is adopted and persisted.
//   - Login: authenticate with a fresh session key and persist the session.
//   - Logout: forget the session in memory and on disk.
//   - Restore: adopt the persisted session unless it has expired.
//   - Current: the live session, or nil.
type AuthService interface {
	Signup(ctx context.Context, username, password string) (*models.Session, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (*models.Session, error)
	Current() *models.Session
}

type authService struct {
	wallet     Wallet
	sessions   session.Repository
	log        logging.Logger
	now        func() time.Time
	sessionKey func() string
}

// NewAuthService constructs an AuthService bound to the wallet client and
// the local session repository.
func NewAuthService(wallet Wallet, sessions session.Repository, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &authService{
		wallet:     wallet,
		sessions:   sessions,
		log:        log,
		now:        time.Now,
		sessionKey: uuid.NewString,
	}
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func (a *authService) Signup(ctx context.Context, username, password string) (*models.Session, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	s, err := a.wallet.Signup(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("signup error: %w", err)
	}
	if err := a.persist(ctx, s); err != nil {
		return nil, err
	}
	a.log.Info(ctx, "signed up", "username", s.Username, "pubkey", s.Pubkey)
	return s, nil
}

func (a *authService) Login(ctx context.Context, username, password string) (*models.Session, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	s, err := a.wallet.Login(ctx, username, password, a.sessionKey())
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := a.persist(ctx, s); err != nil {
		return nil, err
	}
	a.log.Info(ctx, "logged in", "username", s.Username, "pubkey", s.Pubkey)
	return s, nil
}

func (a *authService) persist(ctx context.Context, s *models.Session) error {
	if err := a.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}

func (a *authService) Logout(ctx context.Context) error {
	a.wallet.ClearSession()
	if err := a.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("session clearing error: %w", err)
	}
	return nil
}

// Restore loads the session saved by a previous run. An expired session is
// removed and (nil, nil) is returned.
func (a *authService) Restore(ctx context.Context) (*models.Session, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("session loading error: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	if s.Expired(a.now()) {
		a.log.Info(ctx, "stored session expired", "username", s.Username)
		if err := a.sessions.Clear(ctx); err != nil {
			return nil, fmt.Errorf("session clearing error: %w", err)
		}
		return nil, nil
	}

	a.wallet.SetSession(s)
	return a.wallet.Session(), nil
}

func (a *authService) Current() *models.Session {
	return a.wallet.Session()
}
