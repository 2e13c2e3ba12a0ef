package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gator/adapter/sqldb"
	"gator/domain"
	"gator/internal/config"
	"gator/internal/logger"
)

var version = "dev"

// env is what every command runs against once the config is loaded.
type env struct {
	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	var cfgPath string
	e := &env{}

	root := &cobra.Command{
		Use:           "gator",
		Short:         "RSS feed aggregator",
		Long:          "gator follows RSS feeds, collects their posts in a database and lets you browse them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := logger.Init(logger.Config{
				Level:      cfg.Log.Level,
				File:       cfg.Log.File,
				MaxSize:    cfg.Log.MaxSize,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAge,
			}); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
			}
			e.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default ~/.gatorconfig.json)")

	root.AddCommand(
		newRegisterCmd(e),
		newLoginCmd(e),
		newUsersCmd(e),
		newResetCmd(e),
		newAddFeedCmd(e),
		newFeedsCmd(e),
		newFollowCmd(e),
		newFollowingCmd(e),
		newUnfollowCmd(e),
		newAggCmd(e),
		newBrowseCmd(e),
		newStatusCmd(e),
		newSetIntervalCmd(e),
	)
	return root
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func SetVersion(v string) { version = v }

func (e *env) openRepo(ctx context.Context) (*sqldb.Repository, error) {
	repo, err := sqldb.Open(ctx, e.cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo, nil
}

// withRepo opens the database for the duration of fn.
func (e *env) withRepo(cmd *cobra.Command, fn func(ctx context.Context, repo *sqldb.Repository) error) error {
	ctx := cmd.Context()
	repo, err := e.openRepo(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(ctx, repo)
}

// requireUser resolves the logged-in user.
func (e *env) requireUser(ctx context.Context, users domain.UserRepository) (domain.User, error) {
	if e.cfg.CurrentUserName == "" {
		return domain.User{}, fmt.Errorf("no user logged in, run `gator register <name>` or `gator login <name>`")
	}
	u, err := users.GetUserByName(ctx, e.cfg.CurrentUserName)
	if err != nil {
		return domain.User{}, fmt.Errorf("current user %q: %w", e.cfg.CurrentUserName, err)
	}
	return u, nil
}
