package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	automated  bool
	notify     bool

	// Account sources
	rootFolder     string
	scanRootFolder bool
	batchFile      string

	// Download flags
	skipStories     bool
	skipCurated     bool
	skipSpotlight   bool
	dumpJSON        bool
	generateScripts bool
	noMultipart     bool
	forceMultipart  bool
	multipartMode   string
	maxWorkers      int
	sleepInterval   time.Duration
	fast            bool
	timezone        string

	// Update loop
	update         bool
	updateInterval time.Duration
	maxPasses      int
)

// rootCmd downloads the given accounts when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "snapdl [usernames...]",
	Short: "Download public Snapchat stories and highlights",
	Long: `snapdl downloads the public stories, curated highlights and spotlight
highlights of Snapchat accounts into one folder per account.

Features:
  - Skips media that was already downloaded in earlier runs
  - Concurrent downloads with a per-worker sleep interval
  - Combines multipart stories with ffmpeg or raw concatenation
  - Optional JSON metadata next to every file
  - Update loop that checks accounts again after an interval`,
	Example: `  snapdl alice bob
  snapdl -b accounts.txt -r ~/snaps -w 1
  snapdl -f -r ~/snaps --update --update-interval 30m`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd, args, nil)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errs.IsConfig(err) {
			ui.PrintError("Invalid configuration", err)
		} else {
			ui.PrintError("snapdl failed", err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()

	// Global flags
	pf.StringVarP(&configFile, "config", "c", "", "config file (default is ./.snapdl.yaml or $HOME/.config/snapdl/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	pf.BoolVarP(&automated, "automated", "a", false, "plain output without banner or colors, for cron and scripts")
	pf.BoolVar(&notify, "notify", false, "send a desktop notification after passes with new media")

	// Account sources
	pf.StringVarP(&rootFolder, "root-folder", "r", "", "folder the account folders are created in")
	pf.BoolVarP(&scanRootFolder, "scan-root-folder", "f", false, "download every account that already has a folder in the root folder")
	pf.StringVarP(&batchFile, "scan-batch-file", "b", "", "read account names from a file, one per line")

	// Download flags
	pf.BoolVar(&skipStories, "skip-stories", false, "do not download public stories")
	pf.BoolVar(&skipCurated, "skip-curated", false, "do not download curated highlights")
	pf.BoolVar(&skipSpotlight, "skip-spotlight", false, "do not download spotlight highlights")
	pf.BoolVarP(&dumpJSON, "dump-json", "d", false, "save JSON metadata next to every file")
	pf.BoolVarP(&generateScripts, "generate-scripts", "g", false, "write an ffmpeg script for every multipart story")
	pf.BoolVar(&noMultipart, "no-multipart", false, "never combine multipart stories")
	pf.BoolVar(&forceMultipart, "multipart", false, "combine multipart stories even with several workers")
	pf.StringVar(&multipartMode, "multipart-mode", "", "how multipart stories are combined (ffmpeg, raw, script)")
	pf.IntVarP(&maxWorkers, "max-workers", "w", 4, "number of concurrent downloads")
	pf.DurationVar(&sleepInterval, "sleep-interval", time.Second, "pause of each worker between downloads")
	pf.BoolVar(&fast, "fast", false, "skip files that already exist without checking their size")
	pf.StringVar(&timezone, "timezone", "", "timezone used for file names (Local or an IANA name)")

	// Update loop
	pf.BoolVarP(&update, "update", "u", false, "check the accounts again after every pass")
	pf.DurationVar(&updateInterval, "update-interval", 10*time.Minute, "pause between passes in update mode")
	pf.IntVar(&maxPasses, "max-passes", 0, "stop update mode after this many passes (0 runs until interrupted)")

	rootCmd.MarkFlagsMutuallyExclusive("multipart", "no-multipart")

	// Version template
	rootCmd.SetVersionTemplate(`snapdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
