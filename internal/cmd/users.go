package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gator/adapter/sqldb"
	"gator/domain"
)

func newRegisterCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Create a user and log in as them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				u, err := repo.CreateUser(ctx, args[0])
				if errors.Is(err, domain.ErrAlreadyExists) {
					return fmt.Errorf("user %q already exists", args[0])
				}
				if err != nil {
					return err
				}
				if err := e.cfg.SetUser(u.Name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %q created and logged in\n", u.Name)
				return nil
			})
		},
	}
}

func newLoginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login <name>",
		Short: "Switch the current user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				u, err := repo.GetUserByName(ctx, args[0])
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("user %q does not exist", args[0])
				}
				if err != nil {
					return err
				}
				if err := e.cfg.SetUser(u.Name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", u.Name)
				return nil
			})
		},
	}
}

func newUsersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				users, err := repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, u := range users {
					if u.Name == e.cfg.CurrentUserName {
						fmt.Fprintf(out, "* %s (current)\n", u.Name)
						continue
					}
					fmt.Fprintf(out, "* %s\n", u.Name)
				}
				return nil
			})
		},
	}
}

func newResetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete all users, feeds, follows and posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(cmd, func(ctx context.Context, repo *sqldb.Repository) error {
				n, err := repo.ResetUsers(ctx)
				if err != nil {
					return fmt.Errorf("could not reset database: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database reset, %d users removed\n", n)
				return nil
			})
		},
	}
}
