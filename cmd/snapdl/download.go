package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"snapdl/pkg/accounts"
	"snapdl/pkg/config"
	errs "snapdl/pkg/errors"
	"snapdl/pkg/logger"
	"snapdl/pkg/scraper"
	"snapdl/pkg/ui"
)

// mergedFlags are the flags config.MergeCommandLineFlags understands
var mergedFlags = []string{
	"root-folder", "timezone", "max-workers", "sleep-interval", "fast",
	"skip-stories", "skip-curated", "skip-spotlight", "no-multipart",
	"multipart", "multipart-mode", "generate-scripts", "dump-json", "update",
	"update-interval", "max-passes", "log-level", "quiet", "automated",
	"notify",
}

// collectFlags returns the flags the user actually set so that defaults
// never override values from the config file or environment
func collectFlags(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	for _, name := range mergedFlags {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		var (
			v   interface{}
			err error
		)
		switch f.Value.Type() {
		case "bool":
			v, err = fs.GetBool(name)
		case "int":
			v, err = fs.GetInt(name)
		case "duration":
			v, err = fs.GetDuration(name)
		default:
			v, err = fs.GetString(name)
		}
		if err == nil {
			flags[name] = v
		}
	}
	return flags
}

// loadConfig resolves the configuration for cmd and sets up logging and the console
func loadConfig(cmd *cobra.Command, overrides map[string]interface{}) (*config.Config, error) {
	flags := collectFlags(cmd.Flags())
	for k, v := range overrides {
		if _, set := flags[k]; !set {
			flags[k] = v
		}
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureRootFolder(); err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, errs.NewConfigError("failed to initialize logger", err)
	}
	ui.SetDefault(ui.NewConsole(os.Stdout, cfg.Logging.Quiet, cfg.Logging.Automated))
	return cfg, nil
}

// resolveAccounts merges the positional names with the batch file and the
// folders already present in the root folder
func resolveAccounts(cfg *config.Config, args []string) ([]string, error) {
	var named []string
	for _, a := range args {
		if !accounts.ValidateUsername(a) {
			return nil, errs.NewConfigError("invalid username "+a, nil)
		}
		named = append(named, a)
	}

	var fromBatch, fromFolder []string
	if batchFile != "" {
		names, err := accounts.FromBatchFile(batchFile)
		if err != nil {
			return nil, errs.NewConfigError("cannot read batch file", err)
		}
		fromBatch = names
	}
	if scanRootFolder {
		names, err := accounts.FromRootFolder(cfg.Output.RootFolder)
		if err != nil {
			return nil, errs.NewConfigError("cannot scan root folder", err)
		}
		fromFolder = names
	}

	list := accounts.Merge(named, fromBatch, fromFolder)
	if len(list) == 0 {
		return nil, errs.NewConfigError("no accounts given", nil)
	}
	return list, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runDownload(cmd *cobra.Command, args []string, overrides map[string]interface{}) error {
	cfg, err := loadConfig(cmd, overrides)
	if err != nil {
		return err
	}
	list, err := resolveAccounts(cfg, args)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	ui.PrintBanner(version)
	ui.PrintInfo("Root folder", cfg.Output.RootFolder)
	ui.PrintInfo("Accounts", ui.JoinAccounts(list, 5))
	if cfg.Update.Enabled {
		ui.PrintInfo("Update interval", ui.FormatDuration(cfg.Update.Interval))
	}

	s, err := scraper.New(cfg, log)
	if err != nil {
		return err
	}
	if cfg.Notifications.Enabled {
		s.SetNotifier(ui.NewNotifier(true))
	}

	ctx, cancel := signalContext()
	defer cancel()

	pass := func(ctx context.Context) error {
		// New account folders show up between passes
		if scanRootFolder {
			if refreshed, err := resolveAccounts(cfg, args); err == nil {
				list = refreshed
			}
		}
		_, err := s.RunPass(ctx, list)
		return err
	}

	updater := scraper.NewUpdater(pass, scraper.UpdaterOptions{
		Enabled:   cfg.Update.Enabled,
		Interval:  cfg.Update.Interval,
		MaxPasses: cfg.Update.MaxPasses,
	}, log)
	if err := updater.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		ui.PrintWarning("Interrupted, pending items will be picked up by the next run")
	}
	return nil
}
