package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root supportbot command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "supportbot",
		Short:         "Memo Hero Delivery support console",
		Long:          "supportbot retrieves delivery policy excerpts for customer questions, looks up orders and assembles the answer prompt.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ./supportbot.yaml or ~/.config/supportbot/config.yaml)")
	root.PersistentFlags().String("data-dir", "", "override data.dir from the config")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newBuildCmd(),
		newQueryCmd(),
		newOrdersCmd(),
		newChatCmd(),
		newVersionCmd(),
	)

	return root
}
