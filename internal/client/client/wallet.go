package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/wire"
)

// WalletClient talks to the wallet service and owns the current session.
type WalletClient struct {
	t      transport
	log    logging.Logger
	appKey string
	now    func() time.Time

	mu      sync.RWMutex
	session *models.Session
}

func NewWalletClient(baseURL, appKey string, hc *http.Client, log logging.Logger) *WalletClient {
	if log == nil {
		log = logging.Nop()
	}
	return &WalletClient{t: newHTTPTransport(baseURL, hc, log), log: log, appKey: appKey, now: time.Now}
}

// NewGRPCWalletClient is NewWalletClient over a gRPC connection, see Dial.
func NewGRPCWalletClient(conn grpc.ClientConnInterface, appKey string, log logging.Logger) *WalletClient {
	if log == nil {
		log = logging.Nop()
	}
	return &WalletClient{t: newGRPCTransport(conn, log), log: log, appKey: appKey, now: time.Now}
}

// Signup creates a wallet account and adopts the returned session.
func (c *WalletClient) Signup(ctx context.Context, username, password string) (*models.Session, error) {
	req := wire.SignupRequest{AppKey: c.appKey, Username: username, Password: password}
	return c.authenticate(ctx, epSignup, req)
}

// Login authenticates an existing account and adopts the returned session.
func (c *WalletClient) Login(ctx context.Context, username, password, sessionKey string) (*models.Session, error) {
	req := wire.LoginRequest{AppKey: c.appKey, SessionKey: sessionKey, Username: username, Password: password}
	return c.authenticate(ctx, epLogin, req)
}

func (c *WalletClient) authenticate(ctx context.Context, ep endpoint, req any) (*models.Session, error) {
	var resp wire.AuthResponse
	if err := call(ctx, c.t, ep, "", req, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil || resp.Session.Token == "" {
		return nil, fmt.Errorf("%w: wallet returned no session", ErrRejected)
	}

	s := &models.Session{
		Username:  resp.Session.Username,
		Pubkey:    resp.Session.Pubkey,
		Token:     resp.Session.Token,
		ExpiresIn: resp.Session.ExpiresIn,
		IssuedAt:  c.now(),
	}
	c.SetSession(s)
	return c.Session(), nil
}

// SetSession adopts s, e.g. one restored from disk. Nil clears.
func (c *WalletClient) SetSession(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.session = nil
		return
	}
	cp := *s
	c.session = &cp
}

func (c *WalletClient) ClearSession() { c.SetSession(nil) }

// Session returns a copy of the live session, or nil when signed out or
// expired.
func (c *WalletClient) Session() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.Expired(c.now()) {
		return nil
	}
	cp := *c.session
	return &cp
}

// Token implements TokenSource.
func (c *WalletClient) Token() string {
	if s := c.Session(); s != nil {
		return s.Token
	}
	return ""
}

// Username is the signed-in user's name, or "".
func (c *WalletClient) Username() string {
	if s := c.Session(); s != nil {
		return s.Username
	}
	return ""
}

// Pubkey is the signed-in user's account key, or "".
func (c *WalletClient) Pubkey() string {
	if s := c.Session(); s != nil {
		return s.Pubkey
	}
	return ""
}

func (c *WalletClient) authorized(ctx context.Context, ep endpoint, in, out any) error {
	token := c.Token()
	if token == "" {
		return ErrNoSession
	}
	err := call(ctx, c.t, ep, token, in, out)
	if errors.Is(err, ErrUnauthorized) {
		c.log.Warn(ctx, "wallet rejected session, signing out")
		c.ClearSession()
	}
	return err
}

// ProxyWrite asks the wallet to store data at addr on the user's behalf,
// encrypting it server-side when encrypt is set.
func (c *WalletClient) ProxyWrite(ctx context.Context, addr uri.Address, data any, encrypt bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}
	var resp wire.Status
	if err := c.authorized(ctx, epPWrite, wire.ProxyWriteRequest{URI: addr.String(), Data: raw, Encrypt: encrypt}, &resp); err != nil {
		return fmt.Errorf("proxy write %s: %w", addr, err)
	}
	return nil
}

// ProxyRead returns the decrypted record at addr. A missing record is
// ErrNotFound.
func (c *WalletClient) ProxyRead(ctx context.Context, addr uri.Address) (json.RawMessage, error) {
	var resp wire.ProxyReadResponse
	if err := c.authorized(ctx, epPRead, wire.ProxyReadRequest{URI: addr.String()}, &resp); err != nil {
		return nil, fmt.Errorf("proxy read %s: %w", addr, err)
	}
	if resp.Record == nil {
		return nil, fmt.Errorf("proxy read %s: %w", addr, ErrNotFound)
	}
	if len(resp.Decrypted) > 0 {
		return resp.Decrypted, nil
	}
	return resp.Record.Data, nil
}
