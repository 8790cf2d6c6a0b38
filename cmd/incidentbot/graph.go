package main

import (
	"os"

	"github.com/JonathanLopez0327/chat-demo/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the flow graph visualization",
	Long:  `Compiles the configured flow variant and prints it as a Mermaid diagram (graph TD).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunGraph(globalOptions(cmd), os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
