package cli

import (
	"context"
	"strings"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/models"
	"github.com/firecat-notes/firecat/internal/client/services"
)

func (a *App) Posts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("posts <notebook> [page]")
	}
	notebook := args[0]
	page, err := pageArg(args, 1)
	if err != nil {
		return usage("posts <notebook> [page]")
	}
	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}

	p, err := a.notes.ListPosts(ctx, notebook, access.ListOptions{Options: opts, Page: page, Limit: pageSize})
	if err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}
	if len(p.Posts) == 0 && p.Skipped == 0 {
		a.printf("No posts.\n")
		return nil
	}
	for _, post := range p.Posts {
		a.printf("%s  %s  %s  (%d likes, %d comments)\n",
			stamp(post.CreatedAt), post.Pubkey, firstLine(post.Content), post.ReactionCount.Likes, post.ReactionCount.Comments)
	}
	if p.Skipped > 0 {
		a.printf("%d post(s) could not be read\n", p.Skipped)
	}
	a.printf("page %d: %d of %d\n", page, len(p.Posts), p.Total)
	return nil
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(s, "\n")
	if len(line) > 60 {
		return line[:57] + "..."
	}
	if cut {
		return line + " ..."
	}
	return line
}

// Post dispatches the post subcommands.
func (a *App) Post(ctx context.Context, args []string) error {
	const help = "post new <notebook> | post show|delete <notebook> <post>"
	if len(args) < 2 {
		return usage(help)
	}
	switch {
	case args[0] == "new":
		return a.newPost(ctx, args[1])
	case args[0] == "show" && len(args) == 3:
		return a.showPost(ctx, args[1], args[2])
	case (args[0] == "delete" || args[0] == "rm") && len(args) == 3:
		return a.deletePost(ctx, args[1], args[2])
	}
	return usage(help)
}

func (a *App) newPost(ctx context.Context, notebook string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Post content", a.out)
	if err != nil {
		return err
	}

	p, err := a.notes.CreatePost(ctx, notebook, services.PostInput{Content: content}, opts)
	if err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}
	a.printf("Posted %s\n", p.Pubkey)
	return nil
}

func (a *App) showPost(ctx context.Context, notebook, post string) error {
	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}
	p, err := a.notes.GetPost(ctx, notebook, post, opts)
	if err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}

	a.printf("%s  by %s\n\n%s\n\n", stamp(p.CreatedAt), p.Author.Pubkey, p.Content)
	for _, img := range p.Images {
		a.printf("  [image] %s\n", img)
	}
	if p.ReferenceTo != nil {
		a.printf("  re: %s/%s\n", p.ReferenceTo.NotebookPubkey, p.ReferenceTo.PostPubkey)
	}
	a.printf("%d likes, %d comments\n", p.ReactionCount.Likes, p.ReactionCount.Comments)
	return nil
}

func (a *App) deletePost(ctx context.Context, notebook, post string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}
	ok, err := Confirm(a.reader, "Delete post "+post+"?", a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.notes.DeletePost(ctx, notebook, post, opts); err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}
	a.printf("Deleted\n")
	return nil
}

// React adds a like, or a comment read from the prompt.
func (a *App) React(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("react <notebook> <post> [like|comment]")
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	notebook, post := args[0], args[1]
	in := services.ReactionInput{Type: models.ReactionLike}
	if len(args) > 2 {
		in.Type = models.ReactionType(strings.ToLower(args[2]))
	}

	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}
	if in.Type == models.ReactionComment {
		if in.Content, err = GetMultiline(a.reader, "Comment", a.out); err != nil {
			return err
		}
	}

	r, err := a.notes.AddReaction(ctx, notebook, post, in, opts)
	if err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}
	a.printf("Added %s %s\n", r.Type, r.ID)
	return nil
}

func (a *App) Reactions(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("reactions <notebook> <post>")
	}
	notebook, post := args[0], args[1]
	opts, err := a.notebookOptions(ctx, notebook)
	if err != nil {
		return err
	}

	rs, skipped, err := a.notes.ListReactions(ctx, notebook, post, access.ListOptions{Options: opts, Limit: 100})
	if err != nil {
		return a.forgetOnDecrypt(notebook, err)
	}
	for _, r := range rs {
		switch {
		case r.Type == models.ReactionComment && r.Content != "":
			a.printf("%s  comment  %s\n", stamp(r.CreatedAt), r.Content)
		case r.Media != nil:
			a.printf("%s  %s  [%s] %s\n", stamp(r.CreatedAt), r.Type, r.Media.Type, r.Media.Data)
		default:
			a.printf("%s  %s\n", stamp(r.CreatedAt), r.Type)
		}
	}
	a.printf("%d reaction(s)", len(rs))
	if skipped > 0 {
		a.printf(", %d unreadable", skipped)
	}
	a.printf("\n")
	return nil
}
