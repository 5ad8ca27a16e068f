package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/ffmpeg-api/internal/auth"
)

// newTokenCmd mints a bearer token signed with the configured secret.
func newTokenCmd(cfg *settings) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for POST /process",
		Example: `  JWT_SECRET=$(openssl rand -hex 32) ffmpeg-api token --subject ci-runner --ttl 720h
  curl -H "Authorization: Bearer $TOKEN" -F file=@clip.mov -F commands="-c copy" http://localhost:8080/process`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return errors.New("a secret is required: set JWT_SECRET or pass --jwt-secret")
			}
			tokens, err := auth.NewTokenService(cfg.JWTSecret)
			if err != nil {
				return err
			}
			token, err := tokens.Generate(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Who the token is for, recorded in request logs (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "Token lifetime")
	cmd.Flags().StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret (JWT_SECRET)")
	cmd.MarkFlagRequired("subject")

	return cmd
}
