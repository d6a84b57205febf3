package main

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oksasatya/fluxa/config"
	"github.com/oksasatya/fluxa/internal/domain/repository"
	pginfra "github.com/oksasatya/fluxa/internal/infrastructure/postgres"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

var (
	verbose bool
	cfg     *config.Config
	logger  *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Operator tasks for the fluxa identity store",
	Long: `authctl runs one-off operator tasks against the configured backends.

Configuration comes from the environment (and .env when present), the same
variables the services read.

Examples:
  authctl bootstrap                    # seed FIRST_SUPERUSER if missing
  authctl token inspect <token>        # print claims or "invalid"
  authctl token revoke <token>         # deny a token until it expires
  authctl user deactivate a@example.com`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig(logOut io.Writer) error {
	_ = godotenv.Load()
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger = logrus.New()
	logger.SetOutput(logOut)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// openStore connects to Postgres; callers must run the returned closer.
func openStore(ctx context.Context) (repository.IdentityRepository, func(), error) {
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pginfra.NewIdentityRepository(pool), pool.Close, nil
}

func hasher() *helpers.PasswordHasher { return helpers.NewPasswordHasher(cfg.BcryptCost) }

func tokenCodec() *helpers.TokenCodec { return helpers.NewTokenCodec(cfg.SecretKey, cfg.AccessTokenTTL) }
