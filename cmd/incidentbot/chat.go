package main

import (
	"os"

	"github.com/JonathanLopez0327/chat-demo/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [phone]",
	Short: "Talk to the bot from the terminal",
	Long: `Runs the intake flow in a terminal REPL. The phone number names the thread;
a persisted thread is resumed where it stopped unless --fresh is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.ChatOptions{Options: globalOptions(cmd), ThreadID: "local"}
		if len(args) > 0 {
			opts.ThreadID = args[0]
		}
		opts.Ephemeral, _ = cmd.Flags().GetBool("ephemeral")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		return cli.RunChat(sigCtx, opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("ephemeral", false, "Keep users, incidents and checkpoints in memory")
	chatCmd.Flags().Bool("headless", false, "No banner, prompt or markdown rendering")
	chatCmd.Flags().Bool("fresh", false, "Discard the thread before starting")
}
