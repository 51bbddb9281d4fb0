package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/contentops/config"
	"github.com/jonwraymond/contentops/health"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe the primary CMS once and print the health snapshot",
		Long: "Runs a single health probe against the primary CMS and prints the snapshot as JSON.\n" +
			"Exits non-zero when the CMS is unhealthy.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}
			a, err := build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(cmd.Context()) }()

			snap := a.monitor.CheckHealth(cmd.Context())
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if snap.Status == health.StatusUnhealthy {
				return fmt.Errorf("primary source unhealthy: %s", snap.Error)
			}
			return nil
		},
	}
}
