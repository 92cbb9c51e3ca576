package access

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/uri"
)

type post struct {
	Content string `json:"content"`
}

func TestList_EmptyContainer(t *testing.T) {
	l := newLayer(t, newFakeStore(), nil)

	res, err := l.List(context.Background(), uri.Posts("nb").Template(), ListOptions{Options: Public()})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Skipped)
}

func TestList_SkipsCorruptedEntry(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()
	nb := newIdentity(t)

	const n = 3
	for i := 0; i < n; i++ {
		ok, err := l.Write(ctx, uri.Post(nb.PublicKeyHex, fmt.Sprintf("p%d", i)), post{Content: fmt.Sprint(i)}, nb, Public())
		require.NoError(t, err)
		require.True(t, ok)
	}
	store.put(uri.Post(nb.PublicKeyHex, "broken").String(),
		`{"_encrypted":true,"_visibility":"public","data":"AAAA","nonce":"AAAAAAAAAAAAAAAA"}`)

	res, err := l.List(ctx, uri.Posts(nb.PublicKeyHex).Template(), ListOptions{Options: Public()})
	require.NoError(t, err)
	assert.Len(t, res.Items, n)
	require.Len(t, res.Skipped, 1)
	assert.True(t, res.Partial())
	assert.Equal(t, uri.Post(nb.PublicKeyHex, "broken").String(), res.Skipped[0].URI)
	assert.ErrorIs(t, res.Skipped[0].Err, ErrDecryptionFailed)
}

func TestList_PlaceholderWithoutSession(t *testing.T) {
	store := newFakeStore()
	store.put("mutable://accounts/pk/notes/a", `{"content":"x"}`)
	l := newLayer(t, store, newFakeWallet(""))

	res, err := l.List(context.Background(), uri.Self("notes"), ListOptions{Options: Public()})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	authed := newLayer(t, store, newFakeWallet("pk"))
	res, err = authed.List(context.Background(), uri.Self("notes"), ListOptions{Options: Public()})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestList_PrivateWithoutSession(t *testing.T) {
	store := newFakeStore()
	store.put("mutable://accounts/pk/notes/a", `{"content":"x"}`)
	l := newLayer(t, store, newFakeWallet(""))

	res, err := l.List(context.Background(), uri.Account("pk", "notes").Template(), ListOptions{Options: Private()})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Skipped)
}

func TestList_StoreFailureIsEmpty(t *testing.T) {
	store := newFakeStore()
	store.listErr = client.ErrUnavailable
	l := newLayer(t, store, nil)

	res, err := l.List(context.Background(), uri.Posts("nb").Template(), ListOptions{Options: Public()})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestList_MissingPasswordAborts(t *testing.T) {
	store := newFakeStore()
	l := newLayer(t, store, nil)
	ctx := context.Background()
	nb := newIdentity(t)

	_, err := l.Write(ctx, uri.Post(nb.PublicKeyHex, "p"), post{Content: "x"}, nb, Protected("pw"))
	require.NoError(t, err)

	_, err = l.List(ctx, uri.Posts(nb.PublicKeyHex).Template(), ListOptions{Options: Protected("")})
	assert.ErrorIs(t, err, ErrMissingPassword)
}

func TestListAs_DecodeFailuresAreSkipped(t *testing.T) {
	store := newFakeStore()
	store.put("mutable://accounts/nb/posts/a", `{"content":"ok"}`)
	store.put("mutable://accounts/nb/posts/b", `{"content":42}`)
	l := newLayer(t, store, nil)

	items, res, err := ListAs[post](context.Background(), l, uri.Posts("nb").Template(), ListOptions{Options: Public()})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].Value.Content)
	assert.Len(t, res.Items, 1)
	assert.Len(t, res.Skipped, 1)
}
