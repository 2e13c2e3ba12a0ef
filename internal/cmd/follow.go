package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gator/adapter/sqldb"
	"gator/domain"
)

func newFollowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <url>",
		Short: "Follow a registered feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				user, err := e.requireUser(ctx, repo)
				if err != nil {
					return err
				}
				feed, err := repo.GetFeedByURL(ctx, args[0])
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("no feed registered for %s", args[0])
				}
				if err != nil {
					return err
				}
				ff, err := repo.CreateFeedFollow(ctx, user.ID, feed.ID)
				if errors.Is(err, domain.ErrAlreadyExists) {
					return fmt.Errorf("%s already follows %s", user.Name, feed.Name)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now follows %s\n", user.Name, ff.FeedName)
				return nil
			})
		},
	}
}

func newFollowingCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "following",
		Short: "List feeds the current user follows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				user, err := e.requireUser(ctx, repo)
				if err != nil {
					return err
				}
				follows, err := repo.ListFeedFollows(ctx, user.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(follows) == 0 {
					fmt.Fprintf(out, "%s is not following any feeds\n", user.Name)
					return nil
				}
				for _, ff := range follows {
					fmt.Fprintf(out, "* %s (%s)\n", ff.FeedName, ff.FeedURL)
				}
				return nil
			})
		},
	}
}
