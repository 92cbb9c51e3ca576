package models

import "time"

// Session is a wallet login persisted on this machine.
type Session struct {
	Username  string
	Pubkey    string
	Token     string
	ExpiresIn int64 // seconds from IssuedAt
	IssuedAt  time.Time
}

// ExpiresAt is the zero time when the wallet did not report a lifetime.
func (s *Session) ExpiresAt() time.Time {
	if s.ExpiresIn <= 0 {
		return time.Time{}
	}
	return s.IssuedAt.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// Expired reports whether the session can no longer be used at now.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}
