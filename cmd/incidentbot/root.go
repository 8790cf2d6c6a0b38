package main

import (
	"fmt"
	"os"

	"github.com/JonathanLopez0327/chat-demo/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "incidentbot",
	Short: "WhatsApp incident intake bot",
	Long: `incidentbot guides operators through reporting an incident over WhatsApp:
it registers the reporter, classifies the description against a catalog and
stores the incident. Conversations survive restarts through checkpoints.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (env vars still take precedence)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every engine transition")
}

func globalOptions(cmd *cobra.Command) cli.Options {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{ConfigPath: path, LogLevel: level, Debug: debug}
}
