// Command contentd serves blog posts and case studies from the primary CMS,
// falling back to the legacy API when the CMS is unavailable.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the linker: -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	envFiles   []string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contentd",
		Short:         "Resilient content service for the marketing site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "contentd.yaml", "Path to the YAML config file (empty to use environment only)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files loaded before the config")

	root.AddCommand(newServeCmd(), newProbeCmd(), newTokenCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
