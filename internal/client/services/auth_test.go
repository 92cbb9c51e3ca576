package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/client/repositories/session"
)

// ---- helpers ----

func setupSessions(t *testing.T) session.Repository {
	t.Helper()
	repos, err := client.InitDatabase(context.Background(), "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos.Session
}

// ---- fake wallet ----

type fakeAuthWallet struct {
	SignupErr error
	LoginErr  error
	Issued    *models.Session

	LastUser       string
	LastPassword   string
	LastSessionKey string

	current *models.Session
}

func (f *fakeAuthWallet) issue(username string) *models.Session {
	s := &models.Session{Username: username, Pubkey: "pub-" + username, Token: "tok", ExpiresIn: 3600, IssuedAt: time.Now()}
	if f.Issued != nil {
		s = f.Issued
	}
	f.current = s
	return s
}

func (f *fakeAuthWallet) Signup(_ context.Context, username, password string) (*models.Session, error) {
	f.LastUser, f.LastPassword = username, password
	if f.SignupErr != nil {
		return nil, f.SignupErr
	}
	return f.issue(username), nil
}

func (f *fakeAuthWallet) Login(_ context.Context, username, password, sessionKey string) (*models.Session, error) {
	f.LastUser, f.LastPassword, f.LastSessionKey = username, password, sessionKey
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	return f.issue(username), nil
}

func (f *fakeAuthWallet) SetSession(s *models.Session) { f.current = s }
func (f *fakeAuthWallet) ClearSession()                { f.current = nil }
func (f *fakeAuthWallet) Session() *models.Session     { return f.current }

// ---- TESTS ----

func TestSignup_PersistsSession(t *testing.T) {
	repo := setupSessions(t)
	fw := &fakeAuthWallet{}
	svc := NewAuthService(fw, repo, nil)

	s, err := svc.Signup(context.Background(), "  alice ", "pw")
	require.NoError(t, err)
	require.Equal(t, "alice", fw.LastUser)
	require.Equal(t, "pub-alice", s.Pubkey)

	saved, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Equal(t, "alice", saved.Username)
	require.Equal(t, "tok", saved.Token)
}

func TestSignupLogin_EmptyCredentials(t *testing.T) {
	svc := NewAuthService(&fakeAuthWallet{}, setupSessions(t), nil)

	_, err := svc.Signup(context.Background(), " ", "pw")
	require.ErrorIs(t, err, ErrEmptyCredentials)
	_, err = svc.Login(context.Background(), "bob", "")
	require.ErrorIs(t, err, ErrEmptyCredentials)
}

func TestLogin_UsesFreshSessionKey(t *testing.T) {
	fw := &fakeAuthWallet{}
	svc := NewAuthService(fw, setupSessions(t), nil)

	_, err := svc.Login(context.Background(), "bob", "pw")
	require.NoError(t, err)
	first := fw.LastSessionKey
	require.Len(t, first, 36)

	_, err = svc.Login(context.Background(), "bob", "pw")
	require.NoError(t, err)
	require.NotEqual(t, first, fw.LastSessionKey)
}

func TestLogin_ErrorWrapped(t *testing.T) {
	repo := setupSessions(t)
	fw := &fakeAuthWallet{LoginErr: client.ErrUnauthorized}
	svc := NewAuthService(fw, repo, nil)

	_, err := svc.Login(context.Background(), "bob", "bad")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.True(t, strings.HasPrefix(err.Error(), "login error:"))

	saved, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, saved)
}

func TestSignup_ErrorWrapped(t *testing.T) {
	fw := &fakeAuthWallet{SignupErr: errors.New("taken")}
	svc := NewAuthService(fw, setupSessions(t), nil)

	_, err := svc.Signup(context.Background(), "bob", "pw")
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "signup error:"))
}

func TestLogout_ClearsMemoryAndDisk(t *testing.T) {
	repo := setupSessions(t)
	fw := &fakeAuthWallet{}
	svc := NewAuthService(fw, repo, nil)

	_, err := svc.Login(context.Background(), "bob", "pw")
	require.NoError(t, err)
	require.NotNil(t, svc.Current())

	require.NoError(t, svc.Logout(context.Background()))
	require.Nil(t, svc.Current())

	saved, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, saved)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthWallet{}, setupSessions(t), nil)
		s, err := svc.Restore(ctx)
		require.NoError(t, err)
		require.Nil(t, s)
	})

	t.Run("live session is adopted", func(t *testing.T) {
		repo := setupSessions(t)
		require.NoError(t, repo.Save(ctx, &models.Session{Username: "carol", Pubkey: "pk", Token: "t", ExpiresIn: 600, IssuedAt: time.Now()}))

		fw := &fakeAuthWallet{}
		svc := NewAuthService(fw, repo, nil)
		s, err := svc.Restore(ctx)
		require.NoError(t, err)
		require.NotNil(t, s)
		require.Equal(t, "pk", s.Pubkey)
		require.Equal(t, "carol", svc.Current().Username)
	})

	t.Run("expired session is dropped", func(t *testing.T) {
		repo := setupSessions(t)
		require.NoError(t, repo.Save(ctx, &models.Session{Username: "dave", Token: "t", ExpiresIn: 60, IssuedAt: time.Now().Add(-time.Hour)}))

		fw := &fakeAuthWallet{}
		svc := NewAuthService(fw, repo, nil)
		s, err := svc.Restore(ctx)
		require.NoError(t, err)
		require.Nil(t, s)
		require.Nil(t, fw.current)

		saved, err := repo.Load(ctx)
		require.NoError(t, err)
		require.Nil(t, saved)
	})
}
