package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "apron-agent",
	Short: "Conversational assistant for airport capacity planning",
	Long: `Apron Agent answers natural-language questions about stands, terminals,
piers, airlines and maintenance schedules, and stages any requested
changes behind an explicit confirmation step. It serves an HTTP API
and an interactive terminal chat.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".apron-agent.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
