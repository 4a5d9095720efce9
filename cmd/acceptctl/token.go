package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an existing account",
		Long:  "Issues a bearer token for the account with the given email. The configured JWT secret must be set so the server accepts the token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}

			ws, err := openWorkspace(*configPath)
			if err != nil {
				return err
			}
			defer ws.Close()

			jwtCfg := ws.cfg.Auth.JWTServiceConfig()
			if strings.TrimSpace(jwtCfg.Secret) == "" {
				return errors.New("auth.jwt.secret must be configured to issue tokens")
			}
			if ttl > 0 {
				jwtCfg.AccessTokenTTL = ttl
			}
			jwtSvc, err := iauth.NewJWTService(jwtCfg)
			if err != nil {
				return err
			}

			users, err := services.NewUserService(ws.db)
			if err != nil {
				return err
			}
			user, err := users.FindByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", email, err)
			}

			token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
				UserID:      user.ID,
				DisplayName: user.DisplayName,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email of the account")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt.access_token_ttl)")
	return cmd
}
