package main

import (
	"fmt"
	"strings"

	chatdemo "github.com/JonathanLopez0327/chat-demo"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of incidentbot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("incidentbot version %s\n", strings.TrimSpace(chatdemo.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
