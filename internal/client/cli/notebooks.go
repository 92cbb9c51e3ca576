package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/client/services"
	"github.com/firecat-notes/firecat/internal/visibility"
)

const pageSize = 20

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return access.ErrNotAuthenticated
	}
	return nil
}

func stamp(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

// pageArg parses an optional 1-based page argument.
func pageArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 1, nil
	}
	p, err := strconv.Atoi(args[i])
	if err != nil || p < 1 {
		return 0, fmt.Errorf("bad page %q", args[i])
	}
	return p, nil
}

// notebookOptions works out how to open notebook. Own notebooks are looked
// up in the user index; anything else is tried as public and falls back to
// asking for a password when the public key cannot decrypt it.
func (a *App) notebookOptions(ctx context.Context, notebook string) (access.Options, error) {
	if pw, ok := a.passwords[notebook]; ok {
		return access.Protected(pw), nil
	}

	if a.isLoggedIn() {
		refs, err := a.notes.ListMyNotebooks(ctx)
		if err != nil {
			return access.Options{}, err
		}
		for _, r := range refs {
			if r.Pubkey == notebook {
				if r.Visibility == visibility.Protected {
					return a.askNotebookPassword(notebook)
				}
				return access.Public(), nil
			}
		}
	}

	_, err := a.notes.GetNotebook(ctx, notebook, access.Public())
	switch {
	case err == nil:
		return access.Public(), nil
	case errors.Is(err, access.ErrDecryptionFailed):
		return a.askNotebookPassword(notebook)
	}
	return access.Options{}, err
}

func (a *App) askNotebookPassword(notebook string) (access.Options, error) {
	pw, err := getPassword(a.reader, "Notebook password", a.out)
	if err != nil {
		return access.Options{}, err
	}
	if pw == "" {
		return access.Options{}, access.ErrMissingPassword
	}
	a.passwords[notebook] = pw
	return access.Protected(pw), nil
}

// forgetOnDecrypt drops a remembered password that just failed to decrypt.
func (a *App) forgetOnDecrypt(notebook string, err error) error {
	if errors.Is(err, access.ErrDecryptionFailed) {
		delete(a.passwords, notebook)
	}
	return err
}

func (a *App) Notebooks(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	refs, err := a.notes.ListMyNotebooks(ctx)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		a.printf("No notebooks yet. Create one with 'notebook new'.\n")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBKEY\tVIS\tCREATED\tTITLE")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Pubkey, r.Visibility.Code(), stamp(r.CreatedAt), r.Title)
	}
	return tw.Flush()
}

func (a *App) Discover(ctx context.Context, args []string) error {
	page, err := pageArg(args, 0)
	if err != nil {
		return usage("discover [page]")
	}
	d, err := a.notes.DiscoverNotebooks(ctx, page, pageSize)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBKEY\tUPDATED\tPOSTS\tTITLE")
	for _, nb := range d.Notebooks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", nb.Pubkey, stamp(nb.UpdatedAt), nb.PostCount, nb.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.printf("page %d: %d shown, %d skipped, %d total\n", page, len(d.Notebooks), d.Skipped, d.Total)
	return nil
}

// Notebook dispatches the notebook subcommands.
func (a *App) Notebook(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("notebook new | notebook show|edit|delete <notebook>")
	}
	if args[0] == "new" {
		return a.newNotebook(ctx)
	}
	if len(args) < 2 {
		return usage("notebook " + args[0] + " <notebook>")
	}

	switch args[0] {
	case "show":
		return a.showNotebook(ctx, args[1])
	case "edit":
		return a.editNotebook(ctx, args[1])
	case "delete", "rm":
		return a.deleteNotebook(ctx, args[1])
	}
	return usage("notebook new | notebook show|edit|delete <notebook>")
}

func (a *App) askVisibility(prompt string) (visibility.Visibility, error) {
	raw, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return visibility.Public, nil
	}
	return visibility.Parse(raw)
}

func (a *App) newNotebook(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	desc, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	v, err := a.askVisibility("Visibility: public or protected [public]")
	if err != nil {
		return err
	}

	in := services.NotebookInput{Title: title, Description: desc, Visibility: v}
	if v == visibility.Protected {
		if in.Password, err = getPassword(a.reader, "Notebook password", a.out); err != nil {
			return err
		}
	}

	nb, err := a.notes.CreateNotebook(ctx, in)
	if err != nil {
		return err
	}
	if v == visibility.Protected {
		a.passwords[nb.Pubkey] = in.Password
	}
	a.printf("Created notebook %q\n%s\n", nb.Title, nb.Pubkey)
	return nil
}

func (a *App) printNotebook(nb *models.Notebook) {
	a.printf("%s\n", nb.Title)
	if nb.Description != "" {
		a.printf("  %s\n", nb.Description)
	}
	a.printf("  pubkey:     %s\n  visibility: %s\n  posts:      %d\n  created:    %s\n  updated:    %s\n",
		nb.Pubkey, nb.Visibility, nb.PostCount, stamp(nb.CreatedAt), stamp(nb.UpdatedAt))
	if nb.Author.Pubkey != "" {
		a.printf("  author:     %s\n", nb.Author.Pubkey)
	}
}

func (a *App) showNotebook(ctx context.Context, notebook string) error {
	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}
	nb, err := a.notes.GetNotebook(ctx, notebook, opts)
	if err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}
	a.printNotebook(nb)
	return nil
}

// optional returns nil for an empty answer so the field is left unchanged.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a *App) editNotebook(ctx context.Context, notebook string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}

	a.printf("Leave a field empty to keep it.\n")
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	desc, err := getSimpleText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}
	raw, err := getSimpleText(a.reader, "Visibility (public, protected)", a.out)
	if err != nil {
		return err
	}

	ch := services.NotebookChanges{Title: optional(title), Description: optional(desc)}
	if raw != "" {
		v, err := visibility.Parse(raw)
		if err != nil {
			return err
		}
		ch.Visibility = &v
		if v == visibility.Protected && opts.Visibility != visibility.Protected {
			if ch.NewPassword, err = getPassword(a.reader, "New notebook password", a.out); err != nil {
				return err
			}
		}
	}

	nb, err := a.notes.UpdateNotebook(ctx, notebook, ch, opts)
	if err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}
	switch {
	case nb.Visibility == visibility.Protected && ch.NewPassword != "":
		a.passwords[notebook] = ch.NewPassword
	case nb.Visibility != visibility.Protected:
		delete(a.passwords, notebook)
	}
	a.printf("Updated notebook %q\n", nb.Title)
	return nil
}

func (a *App) deleteNotebook(ctx context.Context, notebook string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	ok, err := Confirm(a.reader, "Delete notebook "+notebook+"?", a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.notes.DeleteNotebook(ctx, notebook); err != nil {
		return err
	}
	delete(a.passwords, notebook)
	a.printf("Deleted\n")
	return nil
}
