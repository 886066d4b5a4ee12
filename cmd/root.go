// Package cmd contains the cvswarm command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cvswarm",
	Short: "cvswarm - CV and web-search conversation agents in your terminal",
	Long: `cvswarm runs a pair of cooperating conversation agents: one answers
questions about a professional curriculum from an embedded knowledge
base, the other answers general questions through live web search.
Agents hand the conversation off to each other based on topic.

Running cvswarm with no arguments starts the interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
