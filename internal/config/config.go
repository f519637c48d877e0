// Package config parses command flags and SIREN_* environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/koltyakov/siren/internal/appstore"
	"github.com/koltyakov/siren/internal/history"
	"github.com/koltyakov/siren/internal/policy"
	"github.com/koltyakov/siren/internal/versionutil"
)

// History backends.
const (
	HistoryFile   = "file"
	HistorySQLite = "sqlite"
	HistoryMemory = "memory"
)

const defaultHTTPTimeout = 20 * time.Second
const defaultWatchInterval = 30 * time.Minute
const minWatchInterval = time.Minute
const defaultSQLiteName = "siren.db"

// AppConfig identifies the app and where its history lives. Every command
// uses it.
type AppConfig struct {
	BundleID       string
	AppID          string
	Country        appstore.Country
	LookupURL      string
	HTTPTimeout    time.Duration
	HistoryBackend string
	HistoryPath    string
	LogLevel       string
}

// Key returns the identifier history is stored under.
func (a AppConfig) Key() string {
	if a.AppID != "" {
		return a.AppID
	}
	return a.BundleID
}

// CheckConfig configures the check command.
type CheckConfig struct {
	App              AppConfig
	InstalledVersion string
	DeviceOSVersion  string
	MinimumRequired  string
	Recommended      string
	StoreVersionOnly bool
	PolicyFile       string
	Rules            policy.Rules
	JSON             bool
	NoPrompt         bool
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	CheckConfig
	Interval time.Duration
	Listen   string
}

type rawApp struct {
	country string
}

func bindApp(fs *flag.FlagSet, cfg *AppConfig, raw *rawApp) {
	cfg.BundleID = envOrDefault("SIREN_BUNDLE_ID", "")
	cfg.AppID = envOrDefault("SIREN_APP_ID", "")
	raw.country = envOrDefault("SIREN_COUNTRY", string(appstore.DefaultCountry))
	cfg.LookupURL = envOrDefault("SIREN_LOOKUP_URL", appstore.DefaultBaseURL)
	cfg.HTTPTimeout = envDurationOrDefault("SIREN_HTTP_TIMEOUT", defaultHTTPTimeout)
	cfg.HistoryBackend = envOrDefault("SIREN_HISTORY", HistoryFile)
	cfg.HistoryPath = envOrDefault("SIREN_HISTORY_PATH", "")
	cfg.LogLevel = envOrDefault("SIREN_LOG_LEVEL", "info")

	fs.StringVar(&cfg.BundleID, "bundle-id", cfg.BundleID, "App bundle identifier, e.g. com.example.app")
	fs.StringVar(&cfg.AppID, "app-id", cfg.AppID, "Numeric App Store id (takes precedence over --bundle-id)")
	fs.StringVar(&raw.country, "country", raw.country, "App Store country code")
	fs.StringVar(&cfg.LookupURL, "lookup-url", cfg.LookupURL, "Store lookup endpoint")
	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "Store lookup HTTP timeout")
	fs.StringVar(&cfg.HistoryBackend, "history", cfg.HistoryBackend, "History backend: file|sqlite|memory")
	fs.StringVar(&cfg.HistoryPath, "history-path", cfg.HistoryPath, "History file or SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
}

func finishApp(cfg *AppConfig, raw rawApp) error {
	cfg.BundleID = strings.TrimSpace(cfg.BundleID)
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	if cfg.BundleID == "" && cfg.AppID == "" {
		return errors.New("missing --bundle-id/--app-id or SIREN_BUNDLE_ID/SIREN_APP_ID")
	}
	if cfg.AppID != "" && strings.Trim(cfg.AppID, "0123456789") != "" {
		return errors.New("app id must be numeric")
	}
	country, err := appstore.ParseCountry(raw.country)
	if err != nil {
		return err
	}
	cfg.Country = country
	if cfg.HTTPTimeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	cfg.HistoryBackend = strings.ToLower(strings.TrimSpace(cfg.HistoryBackend))
	cfg.HistoryPath = strings.TrimSpace(cfg.HistoryPath)
	switch cfg.HistoryBackend {
	case HistoryFile:
		if cfg.HistoryPath == "" {
			cfg.HistoryPath = history.DefaultPath()
		}
	case HistorySQLite:
		if cfg.HistoryPath == "" {
			cfg.HistoryPath = filepath.Join(filepath.Dir(history.DefaultPath()), defaultSQLiteName)
		}
	case HistoryMemory:
	default:
		return errors.New("history backend must be one of: file, sqlite, memory")
	}
	return nil
}

// ParseAppFlags parses the flags shared by skip, open and history.
func ParseAppFlags(name string, args []string, extra func(*flag.FlagSet)) (AppConfig, []string, error) {
	var cfg AppConfig
	var raw rawApp
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	bindApp(fs, &cfg, &raw)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, nil, err
	}
	if err := finishApp(&cfg, raw); err != nil {
		return cfg, nil, err
	}
	return cfg, fs.Args(), nil
}

// ParseCheckFlags parses the check command.
func ParseCheckFlags(args []string) (CheckConfig, error) {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	cfg, finish := bindCheck(fs)
	if err := fs.Parse(args); err != nil {
		return cfg.CheckConfig, err
	}
	if err := finish(); err != nil {
		return cfg.CheckConfig, err
	}
	return cfg.CheckConfig, nil
}

// ParseWatchFlags parses the watch command.
func ParseWatchFlags(args []string) (WatchConfig, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	cfg, finish := bindCheck(fs)
	cfg.Interval = envDurationOrDefault("SIREN_WATCH_INTERVAL", defaultWatchInterval)
	cfg.Listen = envOrDefault("SIREN_STATUS_LISTEN", "")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Time between checks")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "Status listener address serving /metrics, /ws and /debug/pprof/ (empty disables)")
	if err := fs.Parse(args); err != nil {
		return *cfg, err
	}
	if err := finish(); err != nil {
		return *cfg, err
	}
	if cfg.Interval < minWatchInterval {
		return *cfg, fmt.Errorf("interval must be at least %s", minWatchInterval)
	}
	cfg.NoPrompt = true
	return *cfg, nil
}

func bindCheck(fs *flag.FlagSet) (*WatchConfig, func() error) {
	cfg := &WatchConfig{}
	var raw rawApp
	bindApp(fs, &cfg.App, &raw)

	cfg.InstalledVersion = envOrDefault("SIREN_INSTALLED_VERSION", "")
	cfg.DeviceOSVersion = envOrDefault("SIREN_OS_VERSION", "")
	cfg.MinimumRequired = envOrDefault("SIREN_MINIMUM_VERSION", "")
	cfg.Recommended = envOrDefault("SIREN_RECOMMENDED_VERSION", "")
	cfg.StoreVersionOnly = envBool("SIREN_STORE_VERSION_ONLY")
	cfg.PolicyFile = envOrDefault("SIREN_POLICY_FILE", "")
	frequency := envOrDefault("SIREN_FREQUENCY", "")

	fs.StringVar(&cfg.InstalledVersion, "installed", cfg.InstalledVersion, "Installed app version")
	fs.StringVar(&cfg.DeviceOSVersion, "os-version", cfg.DeviceOSVersion, "Device OS version for the compatibility check (empty skips it)")
	fs.StringVar(&cfg.MinimumRequired, "mandatory", cfg.MinimumRequired, "Minimum required version; older installs must update")
	fs.StringVar(&cfg.Recommended, "recommended", cfg.Recommended, "Recommended version; older installs get an optional prompt")
	fs.BoolVar(&cfg.StoreVersionOnly, "store-version", cfg.StoreVersionOnly, "Prompt whenever the store has a newer version")
	fs.StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "Policy file (.json or .ini)")
	fs.StringVar(&frequency, "frequency", frequency, "Reprompt frequency: immediately|daily|weekly|<days>")
	fs.BoolVar(&cfg.JSON, "json", false, "Print the result as JSON")
	fs.BoolVar(&cfg.NoPrompt, "no-prompt", false, "Never ask for input")

	finish := func() error {
		if err := finishApp(&cfg.App, raw); err != nil {
			return err
		}
		cfg.InstalledVersion = versionutil.TrimVPrefix(cfg.InstalledVersion)
		cfg.DeviceOSVersion = versionutil.TrimVPrefix(cfg.DeviceOSVersion)
		cfg.MinimumRequired = versionutil.TrimVPrefix(cfg.MinimumRequired)
		cfg.Recommended = versionutil.TrimVPrefix(cfg.Recommended)
		if cfg.InstalledVersion == "" {
			return errors.New("missing --installed or SIREN_INSTALLED_VERSION")
		}
		rules, err := cfg.resolveRules(strings.TrimSpace(frequency))
		if err != nil {
			return err
		}
		cfg.Rules = rules
		return nil
	}
	return cfg, finish
}

// resolveRules prefers the policy file; threshold flags otherwise pick the
// variant. An explicit frequency overrides the file's.
func (c *CheckConfig) resolveRules(frequency string) (policy.Rules, error) {
	thresholds := strings.TrimSpace(c.MinimumRequired) != "" || strings.TrimSpace(c.Recommended) != ""
	var rules policy.Rules
	switch {
	case c.PolicyFile != "":
		if thresholds || c.StoreVersionOnly {
			return rules, errors.New("--policy cannot be combined with --mandatory, --recommended or --store-version")
		}
		loaded, err := policy.LoadFile(c.PolicyFile)
		if err != nil {
			return rules, err
		}
		rules = loaded
	case c.StoreVersionOnly:
		if thresholds {
			return rules, errors.New("--store-version cannot be combined with --mandatory or --recommended")
		}
		rules = policy.Rules{Policy: policy.NewStoreVersionOnly{}, Frequency: policy.Daily}
	default:
		rules = policy.Rules{Policy: policy.FromThresholds(c.MinimumRequired, c.Recommended), Frequency: policy.Daily}
	}
	if frequency != "" {
		f, err := policy.ParseFrequency(frequency)
		if err != nil {
			return rules, err
		}
		rules.Frequency = f
	}
	return rules, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "true" || v == "1" || v == "yes"
}
