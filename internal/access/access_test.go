package access

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/gateway"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
	"github.com/firecat-notes/firecat/internal/wire"
)

func newLayer(t *testing.T, store Store, wallet Wallet) *Layer {
	t.Helper()
	policy := visibility.NewPolicy(visibility.NewKeyCache(), visibility.WithIterations(10, 10))
	return New(store, wallet, policy, logging.Nop())
}

func newIdentity(t *testing.T) identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func TestWriteRead_PublicScenario(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, newFakeWallet(""))
	ctx := context.Background()
	a := newIdentity(t)
	addr := uri.Account(a.PublicKeyHex, "meta")

	ok, err := l.Write(ctx, addr, map[string]int{"x": 1}, a, Public())
	require.NoError(t, err)
	require.True(t, ok)

	got, err := l.Read(ctx, addr, Public())
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got))

	// Wrong visibility never yields plaintext.
	got, err = l.Read(ctx, addr, Protected("pw"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	assert.Nil(t, got)

	got, err = l.ReadOrNil(ctx, addr, Protected("pw"))
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestWrite_StoresSignedEncryptedEnvelope(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()
	a := newIdentity(t)
	addr := uri.Account(a.PublicKeyHex, "meta")

	_, err := l.Write(ctx, addr, map[string]string{"title": "secret title"}, a, Protected("pw"))
	require.NoError(t, err)

	raw := store.records[addr.String()]
	assert.NotContains(t, string(raw), "secret title")

	env, ok := identity.AsEnvelope(raw)
	require.True(t, ok)
	require.NoError(t, identity.Verify(env))
	assert.True(t, env.SignedBy(a.PublicKeyHex))

	p, ok := gateway.IsEncrypted(env.Payload)
	require.True(t, ok)
	assert.Equal(t, visibility.Protected, p.Visibility)
}

func TestWriteRead_ProtectedScenario(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()
	a := newIdentity(t)
	addr := uri.Account(a.PublicKeyHex, "diary")

	ok, err := l.Write(ctx, addr, map[string]string{"entry": "dear diary"}, a, Protected("secret"))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = l.Read(ctx, addr, Protected("wrong"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	got, err := l.Read(ctx, addr, Protected("secret"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"entry":"dear diary"}`, string(got))

	_, err = l.Read(ctx, addr, Protected(""))
	assert.ErrorIs(t, err, ErrMissingPassword)
}

func TestWrite_Misuse(t *testing.T) {
	l := newLayer(t, newFakeStore(), nil)
	ctx := context.Background()
	a := newIdentity(t)
	addr := uri.Account(a.PublicKeyHex, "meta")

	ok, err := l.Write(ctx, addr, "x", a, Private())
	assert.ErrorIs(t, err, ErrPrivateVisibility)
	assert.False(t, ok)

	ok, err = l.Write(ctx, addr, "x", a, Protected(""))
	assert.ErrorIs(t, err, ErrMissingPassword)
	assert.False(t, ok)
}

func TestWrite_TransportFailureReturnsFalse(t *testing.T) {
	store := newFakeStore()
	store.writeErr = client.ErrUnavailable
	l := newLayer(t, store, nil)
	a := newIdentity(t)

	ok, err := l.Write(context.Background(), uri.Account(a.PublicKeyHex, "meta"), "x", a, Public())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRead_NotFoundAndTransport(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()

	got, err := l.Read(ctx, uri.Account("nobody", "meta"), Public())
	assert.NoError(t, err)
	assert.Nil(t, got)

	store.readErr = client.ErrUnavailable
	_, err = l.Read(ctx, uri.Account("nobody", "meta"), Public())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestRead_LegacyPlaintext(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()
	a := newIdentity(t)

	store.put("mutable://accounts/legacy/meta", `{"title":"old"}`)
	got, err := l.Read(ctx, uri.MustParse("mutable://accounts/legacy/meta"), Public())
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"old"}`, string(got))

	env, err := identity.Sign(map[string]string{"title": "signed-old"}, a)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	store.put("mutable://accounts/legacy/signed", string(raw))

	got, err = l.Read(ctx, uri.MustParse("mutable://accounts/legacy/signed"), Public())
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"signed-old"}`, string(got))
}

func TestReadAs(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()
	a := newIdentity(t)
	addr := uri.Account(a.PublicKeyHex, "meta")

	type meta struct {
		Title string `json:"title"`
	}
	_, err := l.Write(ctx, addr, meta{Title: "T"}, a, Public())
	require.NoError(t, err)

	got, err := ReadAs[meta](ctx, l, addr, Public())
	require.NoError(t, err)
	assert.Equal(t, &meta{Title: "T"}, got)

	missing, err := ReadAs[meta](ctx, l, uri.Account("x", "meta"), Public())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPrivate_RequiresSession(t *testing.T) {
	l := newLayer(t, newFakeStore(), newFakeWallet(""))
	ctx := context.Background()

	ok, err := l.WritePrivate(ctx, uri.UserProfile(), "x")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, ok)

	_, err = l.ReadPrivate(ctx, uri.UserProfile())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = l.Read(ctx, uri.Account("x", "profile"), Private())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	nilWallet := newLayer(t, newFakeStore(), nil)
	_, err = nilWallet.ReadPrivate(ctx, uri.UserProfile())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = nilWallet.WritePrivate(ctx, uri.UserProfile(), "x")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestPrivate_ResolvesPlaceholder(t *testing.T) {
	w := newFakeWallet("userpk")
	l := newLayer(t, newFakeStore(), w)
	ctx := context.Background()

	ok, err := l.WritePrivate(ctx, uri.UserProfile(), map[string]string{"name": "Ann"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"mutable://accounts/userpk/profile"}, w.written)

	got, err := l.ReadPrivate(ctx, uri.UserProfile())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann"}`, string(got))

	got, err = l.Read(ctx, uri.Account("userpk", "profile"), Private())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann"}`, string(got))

	got, err = l.ReadPrivate(ctx, uri.Self("missing"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPrivate_TransportFailure(t *testing.T) {
	w := newFakeWallet("userpk")
	w.err = client.ErrUnavailable
	l := newLayer(t, newFakeStore(), w)
	ctx := context.Background()

	ok, err := l.WritePrivate(ctx, uri.UserProfile(), "x")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = l.ReadPrivate(ctx, uri.UserProfile())
	assert.ErrorIs(t, err, ErrTransport)

	w.err = client.ErrUnauthorized
	_, err = l.ReadPrivate(ctx, uri.UserProfile())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()
	a := newIdentity(t)
	addr := uri.Account(a.PublicKeyHex, "meta")

	_, err := l.Write(ctx, addr, "x", a, Public())
	require.NoError(t, err)

	ok, err := l.Delete(ctx, addr, &a)
	require.NoError(t, err)
	assert.True(t, ok)

	proof := store.proofs[0]
	require.NotNil(t, proof)
	require.NoError(t, identity.Verify(*proof))
	var dp wire.DeleteProof
	require.NoError(t, json.Unmarshal(proof.Payload, &dp))
	assert.Equal(t, addr.String(), dp.URI)
	assert.Equal(t, "delete", dp.Op)

	got, err := l.Read(ctx, addr, Public())
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = l.Delete(ctx, addr, nil)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, store.proofs[1])
}

func TestResolve(t *testing.T) {
	l := newLayer(t, newFakeStore(), newFakeWallet("pk"))
	addr, err := l.Resolve(uri.UserNotebooksIndex())
	require.NoError(t, err)
	assert.Equal(t, "mutable://accounts/pk/notebooks-index", addr.String())

	anon := newLayer(t, newFakeStore(), newFakeWallet(""))
	_, err = anon.Resolve(uri.UserNotebooksIndex())
	assert.True(t, errors.Is(err, ErrNotAuthenticated))

	addr, err = anon.Resolve(uri.Posts("nb").Template())
	require.NoError(t, err)
	assert.Equal(t, uri.Posts("nb"), addr)
}
