package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gator/adapter/rss"
	"gator/app"
	"gator/internal/control"
	"gator/internal/logger"
)

func newAggCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "agg [interval]",
		Short: "Fetch feeds continuously, one feed per interval (e.g. 30s, 1m, 2h)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval := e.cfg.FetchInterval
			if len(args) == 1 {
				d, err := app.ParseInterval(args[0])
				if err != nil {
					return err
				}
				interval = d
			}
			return e.runAggregator(cmd, interval)
		},
	}
}

func (e *env) runAggregator(cmd *cobra.Command, interval time.Duration) error {
	out := cmd.OutOrStdout()

	listener, err := control.TryListen(e.cfg.ControlAddr)
	if err != nil {
		if errors.Is(err, control.ErrAlreadyRunning) {
			fmt.Fprintln(out, "Background process is already running")
		}
		return err
	}
	defer listener.Close()

	repo, err := e.openRepo(cmd.Context())
	if err != nil {
		return err
	}
	defer repo.Close()

	fetcher := rss.NewHTTPFetcher(e.cfg.UserAgent, e.cfg.FetchTimeout)
	scraper := app.NewScraper(repo, fetcher, repo, app.WithFetchTimeout(e.cfg.FetchTimeout))
	sched, err := app.NewScheduler(scraper, interval)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Handler: control.NewServer(sched), ReadHeaderTimeout: 5 * time.Second}
	g, ctx := errgroup.WithContext(sigCtx)

	fmt.Fprintf(out, "Collecting feeds every %s\n", interval)
	logger.Infof("Control server listening on %s", listener.Addr())

	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		if sigCtx.Err() != nil {
			fmt.Fprintln(out, "Shutting down feed aggregator...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
