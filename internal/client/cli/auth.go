package cli

import (
	"context"
	"time"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) credentials() (string, string, error) {
	userName, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return "", "", err
	}
	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return "", "", err
	}
	return userName, password, nil
}

// Signup prompts for a username and password, creates the wallet account
// and keeps the new session.
func (a *App) Signup(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return err
	}
	s, err := a.auth.Signup(ctx, userName, password)
	if err != nil {
		return err
	}
	a.resetCaches()
	a.printf("Signed up as %s (%s)\n", s.Username, s.Pubkey)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return err
	}
	s, err := a.auth.Login(ctx, userName, password)
	if err != nil {
		return err
	}
	a.resetCaches()
	a.log.Info(ctx, "logged in", "user", s.Username)
	a.printf("Logged in as %s\n", s.Username)
	return nil
}

// Logout drops the saved session and every key held for the old user.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.resetCaches()
	a.printf("Logged out\n")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	s := a.auth.Current()
	if s == nil {
		a.printf("Not logged in\n")
		return nil
	}
	a.printf("user:    %s\npubkey:  %s\n", s.Username, s.Pubkey)
	if exp := s.ExpiresAt(); !exp.IsZero() {
		a.printf("expires: %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *App) resetCaches() {
	a.ids.Reset()
	clear(a.passwords)
}
