package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gator/adapter/sqldb"
	"gator/domain"
)

func newUnfollowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <url>",
		Short: "Stop following a feed",
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
				err = repo.DeleteFeedFollow(ctx, user.ID, feed.ID)
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("%s does not follow %s", user.Name, feed.Name)
				}
				if err != nil {
					return fmt.Errorf("could not unfollow %q: %w", feed.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s unfollowed %s\n", user.Name, feed.Name)
				return nil
			})
		},
	}
}
