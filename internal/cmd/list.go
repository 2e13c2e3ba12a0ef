package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gator/adapter/sqldb"
)

func newFeedsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "List all registered feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				feeds, err := repo.ListFeeds(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(feeds) == 0 {
					fmt.Fprintln(out, "No feeds registered yet. Add one with `gator addfeed <name> <url>`.")
					return nil
				}
				fmt.Fprintf(out, "# Available RSS Feeds\n\n")
				for i, f := range feeds {
					fetched := "never"
					if f.LastFetchedAt != nil {
						fetched = humanize.Time(*f.LastFetchedAt)
					}
					fmt.Fprintf(out, "%d. Name: %s\n   URL: %s\n   Added by: %s\n   Last fetched: %s\n\n",
						i+1, f.Name, f.URL, f.UserName, fetched)
				}
				return nil
			})
		},
	}
}
