package cli

import (
	"context"
	"errors"

	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/client/services"
)

// Profile shows the private profile, or edits it with "profile edit".
func (a *App) Profile(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	p, err := a.notes.GetProfile(ctx)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return err
	}

	if len(args) == 0 {
		if p == nil {
			a.printf("No profile yet. Use 'profile edit'.\n")
			return nil
		}
		a.printf("name:   %s\nbio:    %s\navatar: %s\n", p.Name, p.Bio, p.Avatar)
		return nil
	}
	if args[0] != "edit" {
		return usage("profile [edit]")
	}

	if p == nil {
		p = &models.UserProfile{}
	}
	for _, f := range []struct {
		prompt string
		field  *string
	}{
		{"Name [" + p.Name + "]", &p.Name},
		{"Bio [" + p.Bio + "]", &p.Bio},
		{"Avatar URL [" + p.Avatar + "]", &p.Avatar},
	} {
		v, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		if v != "" {
			*f.field = v
		}
	}

	if _, err := a.notes.SaveProfile(ctx, *p); err != nil {
		return err
	}
	a.printf("Profile saved\n")
	return nil
}
