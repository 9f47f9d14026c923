package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/models"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "SNAPDL_"

// Multipart combination switch values.
const (
	CombineAuto   = "auto"
	CombineAlways = "always"
	CombineNever  = "never"
)

// Multipart execution modes.
const (
	ModeFFmpeg = "ffmpeg"
	ModeRaw    = "raw"
	ModeScript = "script"
)

// Config holds all configuration options for snapdl
type Config struct {
	Output        OutputConfig       `yaml:"output" toml:"output" json:"output"`
	Download      DownloadConfig     `yaml:"download" toml:"download" json:"download"`
	Retry         RetryConfig        `yaml:"retry" toml:"retry" json:"retry"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
	Multipart     MultipartConfig    `yaml:"multipart" toml:"multipart" json:"multipart"`
	Metadata      MetadataConfig     `yaml:"metadata" toml:"metadata" json:"metadata"`
	Update        UpdateConfig       `yaml:"update" toml:"update" json:"update"`
	Logging       LoggingConfig      `yaml:"logging" toml:"logging" json:"logging"`
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications" json:"notifications"`
}

// OutputConfig controls where media lands on disk
type OutputConfig struct {
	RootFolder string `yaml:"root_folder" toml:"root_folder" json:"root_folder"`
	// Timezone used to render file and directory names. "Local" or an IANA name.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	MaxWorkers      int           `yaml:"max_workers" toml:"max_workers" json:"max_workers"`
	SleepInterval   time.Duration `yaml:"sleep_interval" toml:"sleep_interval" json:"sleep_interval"`
	Fast            bool          `yaml:"fast" toml:"fast" json:"fast"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	UserAgent       string        `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	SkipStories     bool          `yaml:"skip_stories" toml:"skip_stories" json:"skip_stories"`
	SkipCurated     bool          `yaml:"skip_curated" toml:"skip_curated" json:"skip_curated"`
	SkipSpotlight   bool          `yaml:"skip_spotlight" toml:"skip_spotlight" json:"skip_spotlight"`
	DownloadAvatars bool          `yaml:"download_avatars" toml:"download_avatars" json:"download_avatars"`
}

// RetryConfig is the shared retry policy for item and account fetches
type RetryConfig struct {
	MaxAttempts     int `yaml:"max_attempts" toml:"max_attempts" json:"max_attempts"`
	AccountAttempts int `yaml:"account_attempts" toml:"account_attempts" json:"account_attempts"`
}

// RateLimitConfig paces metadata requests
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" toml:"burst_size" json:"burst_size"`
}

// MultipartConfig controls how story chunks are reassembled
type MultipartConfig struct {
	Combine         string   `yaml:"combine" toml:"combine" json:"combine"`
	Mode            string   `yaml:"mode" toml:"mode" json:"mode"`
	FFmpegPath      string   `yaml:"ffmpeg_path" toml:"ffmpeg_path" json:"ffmpeg_path"`
	RawExtensions   []string `yaml:"raw_extensions" toml:"raw_extensions" json:"raw_extensions"`
	GenerateScripts bool     `yaml:"generate_scripts" toml:"generate_scripts" json:"generate_scripts"`
	MaxParallel     int      `yaml:"max_parallel" toml:"max_parallel" json:"max_parallel"`
}

// MetadataConfig toggles JSON dumps
type MetadataConfig struct {
	DumpJSON    bool `yaml:"dump_json" toml:"dump_json" json:"dump_json"`
	DumpAccount bool `yaml:"dump_account" toml:"dump_account" json:"dump_account"`
}

// UpdateConfig drives the update loop
type UpdateConfig struct {
	Enabled   bool          `yaml:"enabled" toml:"enabled" json:"enabled"`
	Interval  time.Duration `yaml:"interval" toml:"interval" json:"interval"`
	MaxPasses int           `yaml:"max_passes" toml:"max_passes" json:"max_passes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" toml:"level" json:"level"`
	File      string `yaml:"file" toml:"file" json:"file"`
	Quiet     bool   `yaml:"quiet" toml:"quiet" json:"quiet"`
	Automated bool   `yaml:"automated" toml:"automated" json:"automated"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			RootFolder: ".",
			Timezone:   "Local",
		},
		Download: DownloadConfig{
			MaxWorkers:      4,
			SleepInterval:   time.Second,
			Timeout:         60 * time.Second,
			UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			DownloadAvatars: true,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			AccountAttempts: 5,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		Multipart: MultipartConfig{
			Combine:       CombineAuto,
			Mode:          ModeFFmpeg,
			FFmpegPath:    "ffmpeg",
			RawExtensions: []string{"ts"},
			MaxParallel:   2,
		},
		Update: UpdateConfig{
			Interval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from SNAPDL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errList []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ROOT_FOLDER", &c.Output.RootFolder)
	str("TIMEZONE", &c.Output.Timezone)
	integer("MAX_WORKERS", &c.Download.MaxWorkers)
	duration("SLEEP_INTERVAL", &c.Download.SleepInterval)
	boolean("FAST", &c.Download.Fast)
	duration("TIMEOUT", &c.Download.Timeout)
	str("USER_AGENT", &c.Download.UserAgent)
	integer("MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	integer("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	str("MULTIPART", &c.Multipart.Combine)
	str("MULTIPART_MODE", &c.Multipart.Mode)
	str("FFMPEG_PATH", &c.Multipart.FFmpegPath)
	boolean("DUMP_JSON", &c.Metadata.DumpJSON)
	boolean("UPDATE", &c.Update.Enabled)
	duration("UPDATE_INTERVAL", &c.Update.Interval)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	boolean("QUIET", &c.Logging.Quiet)
	boolean("AUTOMATED", &c.Logging.Automated)
	boolean("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)

	return errors.Join(errList...)
}

// ParseDuration accepts Go duration strings and bare numbers of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a YAML or TOML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".snapdl.yaml",
		".snapdl.yml",
		".snapdl.toml",
		filepath.Join(home, ".config", "snapdl", "config.yaml"),
		filepath.Join(home, ".config", "snapdl", "config.toml"),
		filepath.Join(home, ".snapdl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errList []error

	if c.Output.RootFolder == "" {
		errList = append(errList, errors.New("root folder is required"))
	}
	if _, err := c.Location(); err != nil {
		errList = append(errList, fmt.Errorf("invalid timezone %q: %w", c.Output.Timezone, err))
	}

	if c.Download.MaxWorkers < 1 {
		errList = append(errList, errors.New("max workers must be at least 1"))
	}
	if c.Download.SleepInterval < 0 {
		errList = append(errList, errors.New("sleep interval cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errList = append(errList, errors.New("download timeout must be positive"))
	}
	if c.Download.SkipStories && c.Download.SkipCurated && c.Download.SkipSpotlight {
		errList = append(errList, errors.New("all categories are skipped"))
	}

	if c.Retry.MaxAttempts < 1 {
		errList = append(errList, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.AccountAttempts < 1 {
		errList = append(errList, errors.New("retry account attempts must be at least 1"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errList = append(errList, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errList = append(errList, errors.New("burst size must be positive"))
	}

	switch c.Multipart.Combine {
	case CombineAuto, CombineAlways, CombineNever:
	default:
		errList = append(errList, fmt.Errorf("invalid multipart combine %q", c.Multipart.Combine))
	}
	switch c.Multipart.Mode {
	case ModeFFmpeg, ModeRaw, ModeScript:
	default:
		errList = append(errList, fmt.Errorf("invalid multipart mode %q", c.Multipart.Mode))
	}
	if c.Multipart.MaxParallel < 1 {
		errList = append(errList, errors.New("multipart max parallel must be at least 1"))
	}

	if c.Update.Enabled && c.Update.Interval <= 0 {
		errList = append(errList, errors.New("update interval must be positive"))
	}
	if c.Update.MaxPasses < 0 {
		errList = append(errList, errors.New("max passes cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errList = append(errList, errors.New("invalid log level"))
	}

	if len(errList) > 0 {
		return errs.NewConfigError("invalid configuration", errors.Join(errList...))
	}
	return nil
}

// EnsureRootFolder creates the root folder and probes that it is writable.
func (c *Config) EnsureRootFolder() error {
	if err := os.MkdirAll(c.Output.RootFolder, 0755); err != nil {
		return errs.NewConfigError("root folder cannot be created", err)
	}
	probe, err := os.CreateTemp(c.Output.RootFolder, ".snapdl-probe-*")
	if err != nil {
		return errs.NewConfigError("root folder is not writable", err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return errs.NewConfigError("root folder is not writable", err)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Output.Timezone == "" || strings.EqualFold(c.Output.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Output.Timezone)
}

// Categories returns the categories that are not skipped.
func (c *Config) Categories() models.CategorySet {
	set := models.NewCategorySet()
	if !c.Download.SkipStories {
		set[models.CategoryStory] = true
	}
	if !c.Download.SkipCurated {
		set[models.CategoryCurated] = true
	}
	if !c.Download.SkipSpotlight {
		set[models.CategorySpotlight] = true
	}
	return set
}

// CombineMultipart reports whether story chunks are combined after download.
// In auto mode chunks are only combined when downloads run serially.
func (c *Config) CombineMultipart() bool {
	switch c.Multipart.Combine {
	case CombineAlways:
		return true
	case CombineNever:
		return false
	default:
		return c.Download.MaxWorkers == 1
	}
}

// Save saves the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied, so cobra callers pass changed flags only.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["root-folder"].(string); ok && v != "" {
		c.Output.RootFolder = v
	}
	if v, ok := flags["timezone"].(string); ok && v != "" {
		c.Output.Timezone = v
	}
	if v, ok := flags["max-workers"].(int); ok {
		c.Download.MaxWorkers = v
	}
	if v, ok := flags["sleep-interval"].(time.Duration); ok {
		c.Download.SleepInterval = v
	}
	if v, ok := flags["fast"].(bool); ok {
		c.Download.Fast = v
	}
	if v, ok := flags["skip-stories"].(bool); ok {
		c.Download.SkipStories = v
	}
	if v, ok := flags["skip-curated"].(bool); ok {
		c.Download.SkipCurated = v
	}
	if v, ok := flags["skip-spotlight"].(bool); ok {
		c.Download.SkipSpotlight = v
	}
	if v, ok := flags["no-multipart"].(bool); ok && v {
		c.Multipart.Combine = CombineNever
	}
	if v, ok := flags["multipart"].(bool); ok && v {
		c.Multipart.Combine = CombineAlways
	}
	if v, ok := flags["multipart-mode"].(string); ok && v != "" {
		c.Multipart.Mode = v
	}
	if v, ok := flags["generate-scripts"].(bool); ok {
		c.Multipart.GenerateScripts = v
	}
	if v, ok := flags["dump-json"].(bool); ok {
		c.Metadata.DumpJSON = v
		c.Metadata.DumpAccount = v
	}
	if v, ok := flags["update"].(bool); ok {
		c.Update.Enabled = v
	}
	if v, ok := flags["update-interval"].(time.Duration); ok {
		c.Update.Interval = v
	}
	if v, ok := flags["max-passes"].(int); ok {
		c.Update.MaxPasses = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["quiet"].(bool); ok {
		c.Logging.Quiet = v
	}
	if v, ok := flags["automated"].(bool); ok {
		c.Logging.Automated = v
	}
	if v, ok := flags["notify"].(bool); ok {
		c.Notifications.Enabled = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".snapdl.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, errs.NewConfigError("failed to load config file", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, errs.NewConfigError("failed to load environment variables", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
