package cmd

import (
	"github.com/spf13/cobra"

	"github.com/apronworks/apron-agent/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize agent configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the agent and generates a .apron-agent.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
