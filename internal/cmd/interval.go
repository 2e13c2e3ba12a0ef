package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gator/app"
	"gator/internal/control"
)

func newSetIntervalCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set-interval <duration>",
		Short: "Change the fetch interval of the running aggregator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.ParseInterval(args[0])
			if err != nil {
				return err
			}
			old, err := control.NewClient(e.cfg.ControlAddr).SetInterval(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Interval of fetching feeds changed from %s to %s\n", old, d)
			return nil
		},
	}
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running aggregator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := control.NewClient(e.cfg.ControlAddr).Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "State:     %s\n", st.State)
			fmt.Fprintf(out, "Interval:  %s\n", st.Interval)
			fmt.Fprintf(out, "Cycles:    %d started, %d completed\n", st.CyclesStarted, st.CyclesCompleted)
			if st.LastRunAt != nil {
				fmt.Fprintf(out, "Last run:  %s (%s)\n", st.LastRunAt.Local().Format(time.DateTime), humanize.Time(*st.LastRunAt))
			}
			if s := st.LastSummary; s != nil {
				if s.Idle {
					fmt.Fprintln(out, "Last feed: none registered")
				} else {
					fmt.Fprintf(out, "Last feed: %s, %d items, %d new, %d failed\n", s.FeedName, s.ItemsSeen, s.Saved, s.Failed)
				}
			}
			if st.LastError != "" {
				fmt.Fprintf(out, "Last error: %s\n", st.LastError)
			}
			return nil
		},
	}
}
