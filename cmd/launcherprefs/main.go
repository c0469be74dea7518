package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "launcherprefs",
	Short: "Typed launcher preferences with an HTTP and MCP front end",
	Long: `launcherprefs keeps the launcher's settings in a typed registry and
serves them over a local HTTP API and an MCP stdio server.

Keys can be given as storage keys (settings_theme_font_key) or as
group.name (theme.font).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(listCmd, getCmd, setCmd, resetCmd)
	rootCmd.AddCommand(exportCmd, importCmd)
	rootCmd.AddCommand(gesturesCmd, historyCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
