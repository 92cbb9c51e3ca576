// Package seed fills a node with demo users, notebooks and posts.
//
// Seeding is idempotent: users are logged in before a signup is attempted
// and notebooks whose title the user already owns are skipped.
package seed

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/client/services"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/visibility"
)

type User struct {
	Username string
	Password string
	Name     string
	Bio      string
}

type Notebook struct {
	Owner       string
	Title       string
	Description string
	Posts       []string
}

type Dataset struct {
	Users     []User
	Notebooks []Notebook
}

type Auth interface {
	Signup(ctx context.Context, username, password string) (*models.Session, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Logout(ctx context.Context) error
}

type Notes interface {
	ListMyNotebooks(ctx context.Context) ([]models.NotebookRef, error)
	CreateNotebook(ctx context.Context, in services.NotebookInput) (*models.Notebook, error)
	CreatePost(ctx context.Context, notebook string, in services.PostInput, opts access.Options) (*models.Post, error)
	SaveProfile(ctx context.Context, p models.UserProfile) (*models.UserProfile, error)
}

// Report counts what a run created and what it found already in place.
type Report struct {
	UsersCreated     int
	UsersExisting    int
	NotebooksCreated int
	NotebooksSkipped int
	PostsCreated     int
	Failures         int
}

func (r Report) String() string {
	return fmt.Sprintf("users: %d new, %d existing; notebooks: %d new, %d skipped; posts: %d; failures: %d",
		r.UsersCreated, r.UsersExisting, r.NotebooksCreated, r.NotebooksSkipped, r.PostsCreated, r.Failures)
}

type Seeder struct {
	auth  Auth
	notes Notes
	log   logging.Logger
	pace  *rate.Limiter
}

// New returns a Seeder issuing at most perSecond writes per second. Zero
// disables pacing.
func New(auth Auth, notes Notes, log logging.Logger, perSecond float64) *Seeder {
	if log == nil {
		log = logging.Nop()
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Seeder{auth: auth, notes: notes, log: log, pace: rate.NewLimiter(limit, 1)}
}

func (s *Seeder) wait(ctx context.Context) error {
	return s.pace.Wait(ctx)
}

// Run seeds ds. A notebook that fails is logged and counted; the run goes
// on with the next one. Only a cancelled context stops it early.
func (s *Seeder) Run(ctx context.Context, ds Dataset) (Report, error) {
	var rep Report
	users := make(map[string]User, len(ds.Users))
	for _, u := range ds.Users {
		users[u.Username] = u
	}

	for _, u := range ds.Users {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.seedUser(ctx, u, ds.Notebooks, &rep); err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Failures++
			s.log.Error(ctx, "seed user failed", "user", u.Username, "error", err)
		}
	}

	for _, nb := range ds.Notebooks {
		if _, ok := users[nb.Owner]; !ok {
			rep.Failures++
			s.log.Warn(ctx, "notebook owner not in dataset", "owner", nb.Owner, "title", nb.Title)
		}
	}
	return rep, nil
}

func (s *Seeder) seedUser(ctx context.Context, u User, all []Notebook, rep *Report) error {
	created, err := s.ensureUser(ctx, u)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.auth.Logout(ctx); err != nil {
			s.log.Warn(ctx, "logout after seeding failed", "user", u.Username, "error", err)
		}
	}()

	if created {
		rep.UsersCreated++
		if _, err := s.notes.SaveProfile(ctx, models.UserProfile{Name: u.Name, Bio: u.Bio}); err != nil {
			s.log.Warn(ctx, "profile not saved", "user", u.Username, "error", err)
		}
	} else {
		rep.UsersExisting++
	}

	refs, err := s.notes.ListMyNotebooks(ctx)
	if err != nil {
		return fmt.Errorf("list notebooks: %w", err)
	}
	have := make(map[string]bool, len(refs))
	for _, r := range refs {
		have[strings.ToLower(r.Title)] = true
	}

	for _, nb := range all {
		if nb.Owner != u.Username {
			continue
		}
		if have[strings.ToLower(nb.Title)] {
			rep.NotebooksSkipped++
			continue
		}
		if err := s.seedNotebook(ctx, u, nb, rep); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rep.Failures++
			s.log.Error(ctx, "seed notebook failed", "user", u.Username, "title", nb.Title, "error", err)
		}
	}
	return nil
}

// ensureUser logs u in, or signs it up when the login is refused. It
// reports whether the account is new.
func (s *Seeder) ensureUser(ctx context.Context, u User) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	_, err := s.auth.Login(ctx, u.Username, u.Password)
	if err == nil {
		s.log.Info(ctx, "seed user logged in", "user", u.Username)
		return false, nil
	}
	s.log.Debug(ctx, "seed login refused, signing up", "user", u.Username, "error", err)

	if _, err := s.auth.Signup(ctx, u.Username, u.Password); err != nil {
		return false, fmt.Errorf("signup %s: %w", u.Username, err)
	}
	s.log.Info(ctx, "seed user created", "user", u.Username)
	return true, nil
}

func (s *Seeder) seedNotebook(ctx context.Context, u User, nb Notebook, rep *Report) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	created, err := s.notes.CreateNotebook(ctx, services.NotebookInput{
		Title:       nb.Title,
		Description: nb.Description,
		Visibility:  visibility.Public,
	})
	if err != nil {
		return err
	}
	rep.NotebooksCreated++

	for _, content := range nb.Posts {
		if err := s.wait(ctx); err != nil {
			return err
		}
		if _, err := s.notes.CreatePost(ctx, created.Pubkey, services.PostInput{Content: content}, access.Public()); err != nil {
			return fmt.Errorf("post in %q: %w", nb.Title, err)
		}
		rep.PostsCreated++
	}
	s.log.Info(ctx, "seed notebook created", "user", u.Username, "title", nb.Title, "posts", len(nb.Posts))
	return nil
}
