package wallet

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/gateway"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/node/auth"
	"github.com/firecat-notes/firecat/internal/node/db"
	"github.com/firecat-notes/firecat/internal/node/records"
	"github.com/firecat-notes/firecat/internal/visibility"
	"github.com/firecat-notes/firecat/internal/wire"
)

var testWallet = config.WalletConfig{
	AppKey:     common.AppKey,
	MasterKey:  "0123456789abcdef0123456789abcdef",
	JWTSecret:  "fedcba9876543210fedcba9876543210",
	SessionTTL: time.Hour,
}

func newService(t *testing.T) (*Service, *records.Service) {
	t.Helper()
	m, err := db.NewRepositoryManager(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	recs := records.NewService(m.Records(), nil)
	s := NewService(m.Users(), recs, testWallet, nil)
	s.iterations = 1000
	return s, recs
}

func signup(t *testing.T, s *Service, username string) *wire.Session {
	t.Helper()
	sess, err := s.Signup(context.Background(), wire.SignupRequest{AppKey: common.AppKey, Username: username, Password: "secret-pass"})
	require.NoError(t, err)
	return sess
}

func subject(t *testing.T, s *Service, sess *wire.Session) auth.Subject {
	t.Helper()
	sub, err := s.Authenticate(sess.Token)
	require.NoError(t, err)
	return sub
}

func TestSignupAndLogin(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	sess := signup(t, s, "alice")
	assert.Equal(t, "alice", sess.Username)
	assert.Len(t, sess.Pubkey, 64)
	assert.Equal(t, int64(3600), sess.ExpiresIn)

	_, err := s.Signup(ctx, wire.SignupRequest{AppKey: common.AppKey, Username: "alice", Password: "another-pass"})
	require.ErrorIs(t, err, ErrUserExists)
	require.ErrorIs(t, err, common.ErrAlreadyExists)

	again, err := s.Login(ctx, wire.LoginRequest{AppKey: common.AppKey, SessionKey: "sess-42", Username: "alice", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, sess.Pubkey, again.Pubkey)
	assert.Equal(t, "sess-42", subject(t, s, again).SessionID)

	_, err = s.Login(ctx, wire.LoginRequest{AppKey: common.AppKey, Username: "alice", Password: "wrong-pass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, wire.LoginRequest{AppKey: common.AppKey, Username: "nobody", Password: "secret-pass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestSignup_RejectsBadInput(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.Signup(ctx, wire.SignupRequest{AppKey: "other-app", Username: "alice", Password: "secret-pass"})
	require.ErrorIs(t, err, ErrUnknownApp)

	for _, req := range []wire.SignupRequest{
		{AppKey: common.AppKey, Username: "al", Password: "secret-pass"},
		{AppKey: common.AppKey, Username: "al/ice", Password: "secret-pass"},
		{AppKey: common.AppKey, Username: "alice", Password: "123"},
	} {
		_, err := s.Signup(ctx, req)
		require.ErrorIs(t, err, common.ErrInvalidRequest, "%+v", req)
	}
}

func TestAuthenticate(t *testing.T) {
	s, _ := newService(t)
	sess := signup(t, s, "alice")

	sub := subject(t, s, sess)
	assert.Equal(t, "alice", sub.Username)
	assert.Equal(t, sess.Pubkey, sub.Pubkey)

	_, err := s.Authenticate("garbage")
	require.ErrorIs(t, err, common.ErrUnauthorized)

	expired, err := auth.GenerateToken(sub, []byte(testWallet.JWTSecret), -time.Second)
	require.NoError(t, err)
	_, err = s.Authenticate(expired)
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestProxyWrite_PrivateRoundTrip(t *testing.T) {
	s, recs := newService(t)
	ctx := context.Background()
	sess := signup(t, s, "alice")
	sub := subject(t, s, sess)
	addr := "mutable://accounts/" + sess.Pubkey + "/notebooks-index"

	require.NoError(t, s.ProxyWrite(ctx, sub, wire.ProxyWriteRequest{URI: addr, Data: json.RawMessage(`{"n":1}`), Encrypt: true}))

	// stored form is a signed private envelope
	rec, err := recs.Read(ctx, addr)
	require.NoError(t, err)
	env, ok := identity.AsEnvelope(rec.Data)
	require.True(t, ok)
	assert.True(t, env.SignedBy(sess.Pubkey))
	p, ok := gateway.IsEncrypted(env.Payload)
	require.True(t, ok)
	assert.Equal(t, visibility.Private, p.Visibility)
	assert.NotContains(t, string(rec.Data), `"n":1`)

	got, plain, err := s.ProxyRead(ctx, sub, wire.ProxyReadRequest{URI: addr})
	require.NoError(t, err)
	assert.Equal(t, rec.Ts, got.Ts)
	assert.JSONEq(t, `{"n":1}`, string(plain))
}

func TestProxyWrite_Plain(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	sess := signup(t, s, "alice")
	sub := subject(t, s, sess)
	addr := "mutable://accounts/" + sess.Pubkey + "/profile"

	require.NoError(t, s.ProxyWrite(ctx, sub, wire.ProxyWriteRequest{URI: addr, Data: json.RawMessage(`{"name":"A"}`)}))
	_, plain, err := s.ProxyRead(ctx, sub, wire.ProxyReadRequest{URI: addr})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A"}`, string(plain))
}

func TestProxy_OwnershipAndMissing(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	alice := subject(t, s, signup(t, s, "alice"))
	bob := subject(t, s, signup(t, s, "bobby"))
	aliceAddr := "mutable://accounts/" + alice.Pubkey + "/profile"

	err := s.ProxyWrite(ctx, bob, wire.ProxyWriteRequest{URI: aliceAddr, Data: json.RawMessage(`1`)})
	require.ErrorIs(t, err, common.ErrForbidden)

	_, _, err = s.ProxyRead(ctx, bob, wire.ProxyReadRequest{URI: aliceAddr})
	require.ErrorIs(t, err, common.ErrForbidden)

	_, _, err = s.ProxyRead(ctx, alice, wire.ProxyReadRequest{URI: aliceAddr})
	require.ErrorIs(t, err, common.ErrNotFound)

	err = s.ProxyWrite(ctx, alice, wire.ProxyWriteRequest{URI: "mutable://accounts/:key/x", Data: json.RawMessage(`1`)})
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	forged := alice
	forged.Pubkey = bob.Pubkey
	err = s.ProxyWrite(ctx, forged, wire.ProxyWriteRequest{URI: "mutable://accounts/" + bob.Pubkey + "/x", Data: json.RawMessage(`1`)})
	require.ErrorIs(t, err, common.ErrUnauthorized)
}
