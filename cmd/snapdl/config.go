package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"snapdl/pkg/config"
	errs "snapdl/pkg/errors"
	"snapdl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage snapdl configuration files.

Configuration is loaded from, in order of priority:
  - Command line flags
  - Environment variables (SNAPDL_*)
  - .env files
  - Configuration file (YAML or TOML)
  - Default values`,
}

// configInitCmd writes the defaults to a file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file with all available options set to their defaults.

The file is created as 'snapdl.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd prints the effective configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// configValidateCmd checks a configuration without downloading anything
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML or TOML syntax
  - Value ranges
  - That the root folder is writable
  - That ffmpeg can be found when it is needed`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "snapdl.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return errs.NewConfigError("configuration file already exists: "+path, nil)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return errs.NewConfigError("failed to create configuration file", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set output.root_folder to where downloads should go")
	fmt.Println("2. Run 'snapdl config validate' to check the configuration")
	fmt.Println("3. Start downloading with 'snapdl <username>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, collectFlags(cmd.Flags()))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, collectFlags(cmd.Flags()))
	if err != nil {
		return err
	}
	if err := cfg.EnsureRootFolder(); err != nil {
		return err
	}

	var warnings []string
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return errs.NewConfigError("cannot create log directory", err)
		}
	}
	if cfg.CombineMultipart() && cfg.Multipart.Mode == config.ModeFFmpeg {
		if _, err := exec.LookPath(cfg.Multipart.FFmpegPath); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s not found, multipart stories will get a script instead", cfg.Multipart.FFmpegPath))
		}
	}
	if !cfg.CombineMultipart() && cfg.Multipart.Combine == config.CombineAuto {
		warnings = append(warnings, "multipart stories are only combined with max_workers 1")
	}

	for _, w := range warnings {
		ui.PrintWarning(w)
	}
	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Root folder: %s\n", cfg.Output.RootFolder)
	fmt.Printf("  Max workers: %d\n", cfg.Download.MaxWorkers)
	fmt.Printf("  Sleep interval: %s\n", cfg.Download.SleepInterval)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Multipart: %s (%s)\n", cfg.Multipart.Combine, cfg.Multipart.Mode)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
