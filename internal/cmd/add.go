package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gator/adapter/rss"
	"gator/adapter/sqldb"
	"gator/domain"
	"gator/internal/helper"
)

func newAddFeedCmd(e *env) *cobra.Command {
	var skipCheck bool
	cmd := &cobra.Command{
		Use:   "addfeed <name> <url>",
		Short: "Register a feed and follow it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, feedURL := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("feed name is required")
			}
			if err := helper.ValidateFeedURL(feedURL); err != nil {
				return err
			}

			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				user, err := e.requireUser(ctx, repo)
				if err != nil {
					return err
				}

				if !skipCheck {
					fetched, err := rss.NewHTTPFetcher(e.cfg.UserAgent, e.cfg.FetchTimeout).Fetch(ctx, feedURL)
					if err != nil {
						return fmt.Errorf("could not read feed at %s: %w", feedURL, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Found %q with %d items\n", fetched.Channel.Title, len(fetched.Items))
				}

				feed, err := repo.CreateFeed(ctx, name, feedURL, user.ID)
				if errors.Is(err, domain.ErrAlreadyExists) {
					return fmt.Errorf("feed %q or URL %s already exists", name, feedURL)
				}
				if err != nil {
					return fmt.Errorf("could not add feed: %w", err)
				}
				if _, err := repo.CreateFeedFollow(ctx, user.ID, feed.ID); err != nil {
					return fmt.Errorf("could not follow feed: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Feed %q added successfully (%s)\n", feed.Name, feed.URL)
				fmt.Fprintf(cmd.OutOrStdout(), "%s now follows %s\n", user.Name, feed.Name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "do not fetch the feed before adding it")
	return cmd
}
