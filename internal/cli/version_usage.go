package cli

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/koltyakov/siren/internal/versionutil"
)

func printUsage() {
	fmt.Println(`siren - App Store update policy checks

Decide whether an installed app build should prompt for an update, based on
the version published in the App Store and a mandatory/optional policy.

Usage:
  siren check [flags]                   Run one check and show the alert
  siren watch [flags]                   Check periodically; --listen serves /metrics, /ws, /status
  siren skip [flags] <version>          Stop optional prompts for a version
  siren open [flags]                    Open the app's store page
  siren history [flags]                 Print prompt history and recent checks
  siren history --reset [flags]         Clear prompt history
  siren version                         Print version
  siren help                            Show this help

Examples:
  siren check --bundle-id com.example.app --installed 1.4.0
  siren check --app-id 284882215 --installed 1.4.0 --mandatory 1.2 --recommended 1.5
  siren check --bundle-id com.example.app --installed 1.4.0 --policy policy.ini --json
  siren watch --bundle-id com.example.app --installed 1.4.0 --listen 127.0.0.1:9464

Environment Variables:
  SIREN_BUNDLE_ID            App bundle identifier
  SIREN_APP_ID               Numeric App Store id (takes precedence)
  SIREN_COUNTRY              Store country code (default: US)
  SIREN_INSTALLED_VERSION    Installed app version
  SIREN_OS_VERSION           Device OS version for the compatibility check
  SIREN_MINIMUM_VERSION      Minimum required version
  SIREN_RECOMMENDED_VERSION  Recommended version
  SIREN_STORE_VERSION_ONLY   Follow the store version only (true|1|yes)
  SIREN_POLICY_FILE          Policy file (.json or .ini)
  SIREN_FREQUENCY            Reprompt frequency: immediately|daily|weekly|<days>
  SIREN_HISTORY              History backend: file|sqlite|memory (default: file)
  SIREN_HISTORY_PATH         History file or SQLite database path
  SIREN_LOOKUP_URL           Store lookup endpoint
  SIREN_HTTP_TIMEOUT         Lookup HTTP timeout (default: 20s)
  SIREN_WATCH_INTERVAL       Time between watch checks (default: 30m)
  SIREN_STATUS_LISTEN        Status listener address for watch
  SIREN_LOG_LEVEL            Log level: debug|info|warn|error (default: info)

SIREN_* variables are also read from ./.env.`)
}

// Version is set at build time via -ldflags.
var Version = "dev"

func init() {
	if Version == "dev" {
		if desc, err := exec.Command("git", "describe", "--tags", "--always").Output(); err == nil {
			if v := strings.TrimSpace(string(desc)); v != "" {
				Version = v + "-dev"
			}
		}
	}
	if Version != "dev" {
		Version = versionutil.EnsureVPrefix(Version)
	}
}

func printVersion() {
	fmt.Println("siren", Version)
}
