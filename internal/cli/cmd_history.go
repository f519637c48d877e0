package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/browser"

	"github.com/koltyakov/siren/internal/appstore"
	"github.com/koltyakov/siren/internal/config"
	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/history"
	ilog "github.com/koltyakov/siren/internal/log"
	"github.com/koltyakov/siren/internal/versionutil"
)

const defaultHistoryLimit = 20

func runSkip(ctx context.Context, args []string) int {
	return skipCommand(ctx, args, os.Stdout, os.Stderr)
}

func skipCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app, rest, err := config.ParseAppFlags("skip", args, nil)
	if err != nil {
		fmt.Fprintln(stderr, "skip config error:", err)
		return 2
	}
	if len(rest) != 1 || strings.TrimSpace(rest[0]) == "" {
		fmt.Fprintln(stderr, "skip command error: expected a single version, e.g. `siren skip --bundle-id com.example.app 2.1.0`")
		return 2
	}
	version := versionutil.TrimVPrefix(rest[0])

	b, err := openBackend(app, ilog.NewWithWriter(stderr, app.LogLevel))
	if err != nil {
		fmt.Fprintln(stderr, "history error:", err)
		return 1
	}
	defer func() { _ = b.Close() }()

	if err := history.SkipVersion(ctx, b.history, version); err != nil {
		fmt.Fprintln(stderr, "skip error:", err)
		return 1
	}
	fmt.Fprintln(stdout, "skipped:", version)
	return 0
}

func runOpen(ctx context.Context, args []string) int {
	return openCommand(ctx, args, os.Stdout, os.Stderr, browser.OpenURL)
}

func openCommand(ctx context.Context, args []string, stdout, stderr io.Writer, openURL func(string) error) int {
	var printOnly bool
	app, rest, err := config.ParseAppFlags("open", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&printOnly, "print", false, "Print the store page URL instead of opening it")
	})
	if err != nil {
		fmt.Fprintln(stderr, "open config error:", err)
		return 2
	}
	if len(rest) > 0 {
		fmt.Fprintln(stderr, "open command error: unexpected arguments:", strings.Join(rest, " "))
		return 2
	}

	md, err := newLookupClient(app, "").Fetch(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "lookup error:", err)
		return 1
	}
	u, err := appstore.StoreURL(md.StoreID)
	if err != nil {
		fmt.Fprintln(stderr, "open error:", err)
		return 1
	}
	fmt.Fprintln(stdout, u)
	if printOnly {
		return 0
	}
	if err := openURL(u); err != nil {
		fmt.Fprintln(stderr, "open error:", err)
		return 1
	}
	return 0
}

func runHistory(ctx context.Context, args []string) int {
	return historyCommand(ctx, args, os.Stdout, os.Stderr)
}

type historyOutput struct {
	AppID          string        `json:"app_id"`
	Backend        string        `json:"backend"`
	SkippedVersion string        `json:"skipped_version,omitempty"`
	LastPromptAt   *time.Time    `json:"last_prompt_at,omitempty"`
	Checks         []checkRecord `json:"checks,omitempty"`
}

type checkRecord struct {
	ID               int64            `json:"id"`
	InstalledVersion string           `json:"installed_version"`
	PublishedVersion string           `json:"published_version,omitempty"`
	Alert            domain.AlertType `json:"alert"`
	Reason           domain.Reason    `json:"reason,omitempty"`
	CheckedAt        time.Time        `json:"checked_at"`
}

func historyCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		reset  bool
		asJSON bool
		limit  = defaultHistoryLimit
	)
	app, rest, err := config.ParseAppFlags("history", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&reset, "reset", false, "Clear the stored prompt history")
		fs.BoolVar(&asJSON, "json", false, "Print as JSON")
		fs.IntVar(&limit, "limit", limit, "Number of recent checks to list (sqlite backend)")
	})
	if err != nil {
		fmt.Fprintln(stderr, "history config error:", err)
		return 2
	}
	if len(rest) > 0 {
		fmt.Fprintln(stderr, "history command error: unexpected arguments:", strings.Join(rest, " "))
		return 2
	}

	b, err := openBackend(app, ilog.NewWithWriter(stderr, app.LogLevel))
	if err != nil {
		fmt.Fprintln(stderr, "history error:", err)
		return 1
	}
	defer func() { _ = b.Close() }()

	if reset {
		if b.db != nil {
			err = b.db.ResetHistory(ctx, app.Key())
		} else {
			err = history.Reset(ctx, b.history)
		}
		if err != nil {
			fmt.Fprintln(stderr, "history reset error:", err)
			return 1
		}
		fmt.Fprintln(stdout, "history reset:", app.Key())
		return 0
	}

	h, err := b.history.Load(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "history error:", err)
		return 1
	}
	out := historyOutput{AppID: app.Key(), Backend: b.describe, SkippedVersion: h.SkippedVersion}
	if !h.LastPromptAt.IsZero() {
		last := h.LastPromptAt.UTC()
		out.LastPromptAt = &last
	}
	if b.db != nil {
		recs, err := b.db.ListChecks(ctx, app.Key(), limit)
		if err != nil {
			fmt.Fprintln(stderr, "history error:", err)
			return 1
		}
		for _, r := range recs {
			out.Checks = append(out.Checks, checkRecord{
				ID:               r.ID,
				InstalledVersion: r.InstalledVersion,
				PublishedVersion: r.PublishedVersion,
				Alert:            r.Alert,
				Reason:           r.Reason,
				CheckedAt:        r.CheckedAt.UTC(),
			})
		}
	}

	if asJSON {
		if err := writeJSON(stdout, out); err != nil {
			fmt.Fprintln(stderr, "history error:", err)
			return 1
		}
		return 0
	}
	printHistory(stdout, out)
	return 0
}

func printHistory(w io.Writer, out historyOutput) {
	fmt.Fprintln(w, "app:", out.AppID)
	fmt.Fprintln(w, "backend:", out.Backend)
	skipped := "-"
	if out.SkippedVersion != "" {
		skipped = out.SkippedVersion
	}
	fmt.Fprintln(w, "skipped_version:", skipped)
	last := "-"
	if out.LastPromptAt != nil {
		last = out.LastPromptAt.Format(time.RFC3339)
	}
	fmt.Fprintln(w, "last_prompt_at:", last)
	for _, r := range out.Checks {
		published := r.PublishedVersion
		if published == "" {
			published = "-"
		}
		line := fmt.Sprintf("%d\t%s\tinstalled=%s\tpublished=%s\talert=%s", r.ID, r.CheckedAt.Format(time.RFC3339), r.InstalledVersion, published, r.Alert)
		if r.Reason != "" {
			line += "\treason=" + string(r.Reason)
		}
		fmt.Fprintln(w, line)
	}
}
