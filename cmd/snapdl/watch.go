package main

import (
	"github.com/spf13/cobra"
)

// watchCmd is the update loop with notifications turned on
var watchCmd = &cobra.Command{
	Use:   "watch [usernames...]",
	Short: "Keep checking accounts for new media",
	Long: `Check the accounts again after every pass until interrupted.

This is the same as running snapdl with --update. Desktop notifications are
sent after passes that found new media unless --notify=false is given.`,
	Example: `  snapdl watch alice bob --update-interval 15m
  snapdl watch -f -r ~/snaps --max-passes 4`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd, args, map[string]interface{}{
			"update": true,
			"notify": true,
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
