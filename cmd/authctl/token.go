package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oksasatya/fluxa/internal/application"
	"github.com/oksasatya/fluxa/internal/infrastructure/redisstore"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect or revoke session tokens",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: `Print the claims of a valid token, or "invalid"`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenInspect,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token>",
	Short: "Add a token to the revocation list until it expires",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

func init() {
	tokenCmd.AddCommand(tokenInspectCmd, tokenRevokeCmd)
	rootCmd.AddCommand(tokenCmd)
}

type inspectOutput struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"sub"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

func runTokenInspect(cmd *cobra.Command, args []string) error {
	claims, err := tokenCodec().Verify(args[0])
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "invalid")
		return nil
	}
	out := inspectOutput{
		UserID:    claims.UserID,
		Email:     claims.Email(),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	if cfg.RedisAddr == "" {
		return application.ErrRevocationDisabled
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	auth := application.NewAuthService(nil, hasher(), tokenCodec(), nil, logger)
	auth.Denylist = redisstore.NewDenylist(rdb)
	if err := auth.Logout(ctx, args[0]); err != nil {
		if errors.Is(err, application.ErrUnauthenticated) {
			return errors.New("token is invalid or already expired")
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "revoked")
	return nil
}
