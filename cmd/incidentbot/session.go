package main

import (
	"os"

	"github.com/JonathanLopez0327/chat-demo/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted threads",
	Long:  `List, inspect and remove the checkpoints of the configured checkpoint backend.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all persisted threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.OpenSessions(cmd.Context(), globalOptions(cmd), os.Stdout)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.List(cmd.Context())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <phone>",
	Short: "Print the checkpoint of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		withGraph, _ := cmd.Flags().GetBool("graph")

		s, err := cli.OpenSessions(cmd.Context(), globalOptions(cmd), os.Stdout)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Inspect(cmd.Context(), args[0], format, withGraph)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <phone>...",
	Short: "Remove one or more threads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.OpenSessions(cmd.Context(), globalOptions(cmd), os.Stdout)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Remove(cmd.Context(), args...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")
	sessionInspectCmd.Flags().Bool("graph", false, "Also print the flow with the thread position highlighted")
}
