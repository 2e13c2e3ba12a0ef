package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gator/adapter/sqldb"
	"gator/app"
	"gator/domain"
	"gator/internal/helper"
	"gator/internal/tui"
)

const descriptionPreview = 200

type browseFlags struct {
	offset int
	sort   string
	order  string
	feed   string
	title  string
	after  string
	before string
	tui    bool
}

func newBrowseCmd(e *env) *cobra.Command {
	var f browseFlags
	cmd := &cobra.Command{
		Use:   "browse [limit]",
		Short: "Show posts from the feeds you follow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(args)
			if err != nil {
				return err
			}
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				user, err := e.requireUser(ctx, repo)
				if err != nil {
					return err
				}
				engine := app.NewPostQueryEngine(repo, repo)
				load := func(ctx context.Context, o domain.PostQueryOptions) (domain.PostPage, error) {
					return engine.QueryPostsForUser(ctx, user.ID, o)
				}
				if f.tui {
					return tui.Run(ctx, load, opts)
				}
				page, err := load(ctx, opts)
				if err != nil {
					return err
				}
				renderPage(cmd.OutOrStdout(), page, opts, time.Now())
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.offset, "offset", 0, "number of posts to skip")
	fl.StringVar(&f.sort, "sort", string(domain.SortByPublishedAt), "sort key: published_at, created_at or title")
	fl.StringVar(&f.order, "order", string(domain.SortDesc), "sort order: asc or desc")
	fl.StringVar(&f.feed, "feed", "", "only posts whose feed name contains this text")
	fl.StringVar(&f.title, "title", "", "only posts whose title contains this text")
	fl.StringVar(&f.after, "after", "", "only posts published on or after this date")
	fl.StringVar(&f.before, "before", "", "only posts published on or before this date")
	fl.BoolVar(&f.tui, "tui", false, "open the interactive browser")
	return cmd
}

func (f browseFlags) options(args []string) (domain.PostQueryOptions, error) {
	opts := domain.PostQueryOptions{
		Offset:      f.offset,
		SortBy:      domain.SortKey(strings.ToLower(f.sort)),
		SortOrder:   domain.SortOrder(strings.ToLower(f.order)),
		FeedName:    f.feed,
		TitleSearch: f.title,
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("%w: limit must be a positive number, got %q", domain.ErrInvalidQuery, args[0])
		}
		opts.Limit = n
	}
	var err error
	if opts.PublishedAfter, err = parseDateFlag("after", f.after); err != nil {
		return opts, err
	}
	if opts.PublishedBefore, err = parseDateFlag("before", f.before); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := dateparse.ParseLocal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: --%s %q: %v", domain.ErrInvalidQuery, name, value, err)
	}
	return &t, nil
}

func renderPage(w io.Writer, page domain.PostPage, opts domain.PostQueryOptions, now time.Time) {
	if page.TotalCount == 0 {
		fmt.Fprintln(w, "No posts found. Make sure you're following some feeds!")
		return
	}
	if len(page.Posts) == 0 {
		fmt.Fprintf(w, "No posts at offset %d (%d in total)\n", opts.Offset, page.TotalCount)
		return
	}

	first := opts.Offset + 1
	last := opts.Offset + len(page.Posts)
	fmt.Fprintf(w, "Found %d posts (showing %d-%d of %d)\n\n", page.TotalCount, first, last, page.TotalCount)

	for _, p := range page.Posts {
		fmt.Fprintf(w, "%s\n", p.Title)
		fmt.Fprintf(w, "  Feed:      %s\n", p.FeedName)
		fmt.Fprintf(w, "  URL:       %s\n", p.URL)
		if p.PublishedAt != nil {
			fmt.Fprintf(w, "  Published: %s (%s)\n",
				p.PublishedAt.Local().Format("2006-01-02 15:04"),
				humanize.RelTime(*p.PublishedAt, now, "ago", "from now"))
		}
		if p.Description != nil {
			if text := helper.PlainText(*p.Description); text != "" {
				fmt.Fprintf(w, "  %s\n", helper.Truncate(text, descriptionPreview))
			}
		}
		fmt.Fprintln(w)
	}

	if page.HasMore {
		fmt.Fprintf(w, "More posts available, use --offset %d to see the next page.\n", last)
	}
}
