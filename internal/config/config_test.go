package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koltyakov/siren/internal/appstore"
	"github.com/koltyakov/siren/internal/policy"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SIREN_BUNDLE_ID", "SIREN_APP_ID", "SIREN_COUNTRY", "SIREN_LOOKUP_URL", "SIREN_HTTP_TIMEOUT",
		"SIREN_HISTORY", "SIREN_HISTORY_PATH", "SIREN_LOG_LEVEL", "SIREN_INSTALLED_VERSION",
		"SIREN_OS_VERSION", "SIREN_MINIMUM_VERSION", "SIREN_RECOMMENDED_VERSION",
		"SIREN_STORE_VERSION_ONLY", "SIREN_POLICY_FILE", "SIREN_FREQUENCY",
		"SIREN_WATCH_INTERVAL", "SIREN_STATUS_LISTEN",
	} {
		t.Setenv(key, "")
	}
}

func TestParseCheckFlagsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseCheckFlags([]string{"--bundle-id", "com.example.app", "--installed", "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.Country != appstore.UnitedStates {
		t.Fatalf("country = %q, want US", cfg.App.Country)
	}
	if cfg.App.HistoryBackend != HistoryFile || cfg.App.HistoryPath == "" {
		t.Fatalf("unexpected history config %+v", cfg.App)
	}
	if cfg.App.HTTPTimeout != defaultHTTPTimeout || cfg.App.LookupURL != appstore.DefaultBaseURL {
		t.Fatalf("unexpected lookup config %+v", cfg.App)
	}
	if cfg.Rules.Policy != (policy.NewStoreVersionOnly{}) || cfg.Rules.Frequency != policy.Daily {
		t.Fatalf("unexpected default rules %+v", cfg.Rules)
	}
	if cfg.App.Key() != "com.example.app" {
		t.Fatalf("Key() = %q", cfg.App.Key())
	}
}

func TestParseCheckFlagsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIREN_APP_ID", "284882215")
	t.Setenv("SIREN_INSTALLED_VERSION", "2.0")
	t.Setenv("SIREN_MINIMUM_VERSION", "1.5")
	t.Setenv("SIREN_RECOMMENDED_VERSION", "2.2")
	t.Setenv("SIREN_FREQUENCY", "weekly")
	t.Setenv("SIREN_COUNTRY", "de")
	t.Setenv("SIREN_HISTORY", "memory")

	cfg, err := ParseCheckFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := policy.MandatoryAndOptional{MinimumRequired: "1.5", Recommended: "2.2"}
	if cfg.Rules.Policy != want || cfg.Rules.Frequency != policy.Weekly {
		t.Fatalf("rules = %+v", cfg.Rules)
	}
	if cfg.App.Country != appstore.Germany || cfg.App.Key() != "284882215" {
		t.Fatalf("app = %+v", cfg.App)
	}
}

func TestParseCheckFlagsValidation(t *testing.T) {
	policyPath := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(policyPath, []byte(`{"mode":"optional_only","recommendedVersion":"3.0"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing app", []string{"--installed", "1.0"}, "missing --bundle-id"},
		{"missing installed", []string{"--bundle-id", "x"}, "missing --installed"},
		{"non numeric app id", []string{"--app-id", "abc", "--installed", "1.0"}, "numeric"},
		{"bad country", []string{"--bundle-id", "x", "--installed", "1.0", "--country", "u"}, "country"},
		{"bad history", []string{"--bundle-id", "x", "--installed", "1.0", "--history", "redis"}, "history backend"},
		{"bad frequency", []string{"--bundle-id", "x", "--installed", "1.0", "--frequency", "often"}, "frequency"},
		{"store version with thresholds", []string{"--bundle-id", "x", "--installed", "1.0", "--store-version", "--mandatory", "2.0"}, "cannot be combined"},
		{"policy with thresholds", []string{"--bundle-id", "x", "--installed", "1.0", "--policy", policyPath, "--recommended", "2.0"}, "cannot be combined"},
		{"zero timeout", []string{"--bundle-id", "x", "--installed", "1.0", "--timeout", "0s"}, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := ParseCheckFlags(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParseCheckFlagsPolicyFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "policy.ini")
	if err := os.WriteFile(path, []byte("[policy]\nmode = optional_only\nrecommended_version = 3.0\n[reprompt]\nfrequency = weekly\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseCheckFlags([]string{"--bundle-id", "x", "--installed", "1.0", "--policy", path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.Policy != (policy.OptionalOnly{Recommended: "3.0"}) || cfg.Rules.Frequency != policy.Weekly {
		t.Fatalf("rules = %+v", cfg.Rules)
	}

	cfg, err = ParseCheckFlags([]string{"--bundle-id", "x", "--installed", "1.0", "--policy", path, "--frequency", "immediately"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.Frequency != policy.Immediately {
		t.Fatalf("explicit frequency should override the file, got %v", cfg.Rules.Frequency)
	}
}

func TestParseWatchFlags(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseWatchFlags([]string{"--bundle-id", "x", "--installed", "1.0", "--listen", "127.0.0.1:9090"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Interval != defaultWatchInterval || cfg.Listen != "127.0.0.1:9090" || !cfg.NoPrompt {
		t.Fatalf("unexpected watch config %+v", cfg)
	}

	if _, err := ParseWatchFlags([]string{"--bundle-id", "x", "--installed", "1.0", "--interval", "5s"}); err == nil {
		t.Fatal("expected error for too short interval")
	}

	t.Setenv("SIREN_WATCH_INTERVAL", "2h")
	cfg, err = ParseWatchFlags([]string{"--bundle-id", "x", "--installed", "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Interval != 2*time.Hour {
		t.Fatalf("interval = %v, want 2h", cfg.Interval)
	}
}

func TestParseAppFlags(t *testing.T) {
	clearEnv(t)

	var reset bool
	cfg, rest, err := ParseAppFlags("history", []string{"--bundle-id", "x", "--history", "sqlite", "--reset", "extra"}, func(fs *flag.FlagSet) {
		fs.BoolVar(&reset, "reset", false, "")
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reset || len(rest) != 1 || rest[0] != "extra" {
		t.Fatalf("reset = %v, rest = %v", reset, rest)
	}
	if filepath.Base(cfg.HistoryPath) != defaultSQLiteName {
		t.Fatalf("sqlite path = %q", cfg.HistoryPath)
	}
}

func TestParseCheckFlagsTrimsVersionPrefix(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseCheckFlags([]string{"--bundle-id", "x", "--installed", "v1.4.0", "--mandatory", "V1.2", "--os-version", " 17.2 "})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InstalledVersion != "1.4.0" || cfg.DeviceOSVersion != "17.2" {
		t.Fatalf("unexpected versions %+v", cfg)
	}
	if cfg.Rules.Policy != (policy.MandatoryOnly{MinimumRequired: "1.2"}) {
		t.Fatalf("rules = %+v", cfg.Rules)
	}
}
