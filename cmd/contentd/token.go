package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/contentops/auth"
	"github.com/jonwraymond/contentops/config"
	"github.com/jonwraymond/contentops/server"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token for the /admin endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}
			if !cfg.AdminEnabled() {
				return errors.New("admin endpoints are disabled: set admin.jwt_secret")
			}
			token, err := auth.Sign(adminJWTConfig(cfg), subject, []string{server.AdminRole}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "ops", "Token subject recorded in admin logs")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "Token lifetime")
	return cmd
}
