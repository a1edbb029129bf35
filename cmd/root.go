package cmd

import (
	"github.com/spf13/cobra"

	"github.com/meganet/portal/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Knowledge portal chatbox service with guided yes/no flows",
	Long: `Portal serves the knowledge portal chatbox: topics, frequently asked
questions with markdown answers, and guided yes/no troubleshooting flows
that walk a user step by step toward a resolution.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (development logging)")
}
