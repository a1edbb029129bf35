package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meganet/portal/internal/config"
)

var initDefaults bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize portal configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the portal and writes the config file (portal.yml by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initDefaults {
			if err := config.DefaultConfig().Save(cfgFile); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", cfgFile)
			return nil
		}
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write the default configuration without prompting")
	rootCmd.AddCommand(initCmd)
}
