package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oksasatya/fluxa/internal/container"
	"github.com/oksasatya/fluxa/internal/domain/repository"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Administer identities",
}

var userActivateCmd = &cobra.Command{
	Use:   "activate <email>",
	Short: "Allow an identity to sign in again",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], true) },
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate <email>",
	Short: "Block an identity from every authenticated operation",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], false) },
}

func init() {
	userCmd.AddCommand(userActivateCmd, userDeactivateCmd)
	rootCmd.AddCommand(userCmd)
}

// setActive acts as FIRST_SUPERUSER so the change goes through the same
// privilege checks and events as an in-app superuser action.
func setActive(cmd *cobra.Command, email string, active bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	c, err := container.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	operator, err := c.IdentityStore.GetByEmail(ctx, cfg.FirstSuperuser)
	if err != nil {
		return fmt.Errorf("load operator %s (run authctl bootstrap first?): %w", cfg.FirstSuperuser, err)
	}
	target, err := c.IdentityStore.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("no identity with email %s", email)
	}
	if err != nil {
		return err
	}

	u, err := c.Users.SetActive(ctx, operator, target.ID, active)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", u.Email, u.IsActive)
	return nil
}
