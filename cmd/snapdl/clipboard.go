package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"snapdl/pkg/accounts"
	"snapdl/pkg/logger"
	"snapdl/pkg/scraper"
	"snapdl/pkg/ui"
)

var clipboardInterval time.Duration

// clipboardCmd downloads every account whose profile link is copied
var clipboardCmd = &cobra.Command{
	Use:   "clipboard",
	Short: "Download accounts whose links are copied to the clipboard",
	Long: `Watch the clipboard for snapchat.com/add/<username> links and download
each account the first time its link shows up. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runClipboard,
}

func init() {
	clipboardCmd.Flags().DurationVar(&clipboardInterval, "interval", time.Second, "how often the clipboard is read")
	rootCmd.AddCommand(clipboardCmd)
}

func runClipboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	ui.PrintBanner(version)
	ui.PrintInfo("Root folder", cfg.Output.RootFolder)
	ui.PrintInfo("Watching clipboard", "copy a profile link to start a download")

	s, err := scraper.New(cfg, log)
	if err != nil {
		return err
	}
	if cfg.Notifications.Enabled {
		s.SetNotifier(ui.NewNotifier(true))
	}

	ctx, cancel := signalContext()
	defer cancel()

	watcher := accounts.NewClipboardWatcher(nil, clipboardInterval, log)
	return watcher.Watch(ctx, func(ctx context.Context, names []string) error {
		ui.PrintInfo("Found on clipboard", ui.JoinAccounts(names, 5))
		_, err := s.RunPass(ctx, names)
		return err
	})
}
