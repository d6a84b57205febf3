package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oksasatya/fluxa/internal/application"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first superuser if it does not exist",
	Args:  cobra.NoArgs,
	RunE:  runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	created, err := application.BootstrapSuperuser(ctx, store, hasher(), cfg.FirstSuperuser, cfg.FirstSuperuserPassword, logger)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "superuser %s created\n", cfg.FirstSuperuser)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "superuser %s already present\n", cfg.FirstSuperuser)
	}
	return nil
}
