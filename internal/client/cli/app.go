package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"google.golang.org/grpc"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/client/services"
	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/visibility"
)

// notesService is the slice of services.NotesService the commands use.
type notesService interface {
	CreateNotebook(ctx context.Context, in services.NotebookInput) (*models.Notebook, error)
	GetNotebook(ctx context.Context, notebook string, opts access.Options) (*models.Notebook, error)
	ListMyNotebooks(ctx context.Context) ([]models.NotebookRef, error)
	UpdateNotebook(ctx context.Context, notebook string, ch services.NotebookChanges, opts access.Options) (*models.Notebook, error)
	DeleteNotebook(ctx context.Context, notebook string) error
	DiscoverNotebooks(ctx context.Context, page, limit int) (*services.Discovery, error)
	CreatePost(ctx context.Context, notebook string, in services.PostInput, opts access.Options) (*models.Post, error)
	ListPosts(ctx context.Context, notebook string, opts access.ListOptions) (*services.PostPage, error)
	GetPost(ctx context.Context, notebook, post string, opts access.Options) (*models.Post, error)
	DeletePost(ctx context.Context, notebook, post string, opts access.Options) error
	AddReaction(ctx context.Context, notebook, post string, in services.ReactionInput, opts access.Options) (*models.Reaction, error)
	ListReactions(ctx context.Context, notebook, post string, opts access.ListOptions) ([]models.Reaction, int, error)
	SaveProfile(ctx context.Context, p models.UserProfile) (*models.UserProfile, error)
	GetProfile(ctx context.Context) (*models.UserProfile, error)
}

// Runtime is the wired client: transports, access layer and services.
type Runtime struct {
	Store  *client.StoreClient
	Wallet *client.WalletClient
	Layer  *access.Layer
	Auth   services.AuthService
	Notes  *services.NotesService
	IDs    *services.IdentityCache
	Keys   *visibility.KeyCache
	Repos  *client.Repositories
	App    identity.Identity

	conn *grpc.ClientConn
}

// Build wires the client from cfg. The application identity must be
// configured; a missing one is returned as identity.ErrAppIdentityMissing.
func Build(ctx context.Context, cfg *config.ClientConfig, log logging.Logger) (*Runtime, error) {
	app, err := cfg.AppIdentity()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	repos, err := client.InitDatabase(ctx, cfg.SessionDSN())
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	var (
		wallet *client.WalletClient
		store  *client.StoreClient
		conn   *grpc.ClientConn
	)
	switch cfg.Transport {
	case config.TransportGRPC:
		conn, err = client.Dial(cfg.GRPCAddr, cfg.Timeout)
		if err != nil {
			_ = repos.Close()
			return nil, err
		}
		wallet = client.NewGRPCWalletClient(conn, cfg.AppKey, log)
		store = client.NewGRPCStoreClient(conn, wallet, log)
	default:
		hc := &http.Client{Timeout: cfg.Timeout}
		wallet = client.NewWalletClient(cfg.WalletURL, cfg.AppKey, hc, log)
		store = client.NewStoreClient(cfg.StoreURL, hc, wallet, log)
	}

	keys := visibility.NewKeyCache()
	layer := access.New(store, wallet, visibility.NewPolicy(keys), log)
	ids := services.NewIdentityCache()

	return &Runtime{
		Store:  store,
		Wallet: wallet,
		Layer:  layer,
		Auth:   services.NewAuthService(wallet, repos.Session, log),
		Notes:  services.NewNotesService(layer, app, ids, log),
		IDs:    ids,
		Keys:   keys,
		Repos:  repos,
		App:    app,
		conn:   conn,
	}, nil
}

func (r *Runtime) Close() error {
	if r.conn != nil {
		_ = r.conn.Close()
	}
	return r.Repos.Close()
}

type App struct {
	auth   services.AuthService
	notes  notesService
	ids    *services.IdentityCache
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer

	// passwords remembers protected-notebook passwords for this run.
	passwords map[string]string
}

func NewApp(rt *Runtime, log logging.Logger, in io.Reader, out io.Writer) *App {
	return newApp(rt.Auth, rt.Notes, rt.IDs, log, in, out)
}

func newApp(auth services.AuthService, notes notesService, ids *services.IdentityCache, log logging.Logger, in io.Reader, out io.Writer) *App {
	if log == nil {
		log = logging.Nop()
	}
	if ids == nil {
		ids = services.NewIdentityCache()
	}
	return &App{
		auth:      auth,
		notes:     notes,
		ids:       ids,
		log:       log,
		reader:    bufio.NewReader(in),
		out:       out,
		passwords: map[string]string{},
	}
}

func (a *App) isLoggedIn() bool {
	return a.auth.Current() != nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) getStatus() string {
	if s := a.auth.Current(); s != nil {
		return "(" + s.Username + ")"
	}
	return "(signed out)"
}

// Run restores a saved session and serves the REPL until quit or EOF.
func (a *App) Run(ctx context.Context) {
	if s, err := a.auth.Restore(ctx); err != nil {
		a.log.Warn(ctx, "session not restored", "error", err)
	} else if s != nil {
		a.printf("Welcome back, %s\n", s.Username)
	}

	a.printf("Firecat Notes (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}
