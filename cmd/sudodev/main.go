package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "sudodev",
		Short: "sudodev - client for the autonomous code-fixing agent",
		Long: `sudodev drives the sudodev agent server: it submits code-fixing
runs against benchmark instances or issue references, tracks their
progress through the agent pipeline, and collects the generated patch.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
