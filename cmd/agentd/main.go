// Package main is the agentd CLI: a conversational agent daemon that
// connects a chat surface (Telegram or the local terminal) to an
// OpenAI-compatible model with confirmed tool execution and plan mode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentd",
		Short:        "Conversational agent daemon with tool execution",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildChatCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent against the configured Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func buildChatCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}
