package node

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/wire"
)

func testConfig() *config.NodeConfig {
	cfg := config.DefaultNodeConfig
	cfg.Addr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.Database.DSN = ":memory:"
	cfg.Wallet.MasterKey = "0123456789abcdef0123456789abcdef"
	cfg.Wallet.JWTSecret = "fedcba9876543210fedcba9876543210"
	cfg.ShutdownTimeout = 2 * time.Second
	return &cfg
}

func TestApp_ServeAndShutdown(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), logging.Nop())
	require.NoError(t, err)
	defer app.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + wire.PathHealth)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestApp_ServeGRPCAndShutdown(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), logging.Nop())
	require.NoError(t, err)
	defer app.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.ServeGRPC(ctx, ln) }()

	conn, err := client.Dial(ln.Addr().String(), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	store := client.NewGRPCStoreClient(conn, nil, nil)
	require.NoError(t, store.Ping(context.Background()))

	wallet := client.NewGRPCWalletClient(conn, common.AppKey, nil)
	sess, err := wallet.Signup(context.Background(), "alice", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gRPC server did not stop")
	}
}

func TestApp_RunStopsBothServers(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), logging.Nop())
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestApp_RunFailsOnBadGRPCAddr(t *testing.T) {
	cfg := testConfig()
	cfg.GRPCAddr = "127.0.0.1:99999"
	app, err := NewApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer app.Close()

	require.Error(t, app.Run(context.Background()))
}

func TestNewApp_BadDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "nope"
	_, err := NewApp(context.Background(), cfg, logging.Nop())
	require.ErrorContains(t, err, "db init error")
}
