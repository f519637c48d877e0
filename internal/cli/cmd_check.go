package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/koltyakov/siren/internal/config"
	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/engine"
	ilog "github.com/koltyakov/siren/internal/log"
	"github.com/koltyakov/siren/internal/policy"
	"github.com/koltyakov/siren/internal/updatecheck"
)

// checkTerminal is where the check command reads answers and writes alerts.
type checkTerminal struct {
	in          *bufio.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
	width       int
	openURL     func(string) error
	now         func() time.Time
}

func runCheck(ctx context.Context, args []string) int {
	cfg, err := config.ParseCheckFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "check config error:", err)
		return 2
	}
	logger := ilog.NewWithWriter(os.Stderr, cfg.App.LogLevel)
	return checkOnce(ctx, cfg, logger, checkTerminal{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		errOut:      os.Stderr,
		interactive: !cfg.NoPrompt && !cfg.JSON && isInteractiveInput() && isInteractiveOutput(),
		width:       terminalWidth(),
	})
}

// checkOnce runs one check and presents the verdict. Verdicts and negative
// reasons exit 0; lookup, validation and history failures exit 1.
func checkOnce(ctx context.Context, cfg config.CheckConfig, logger *slog.Logger, tty checkTerminal) int {
	b, err := openBackend(cfg.App, logger)
	if err != nil {
		fmt.Fprintln(tty.errOut, "history error:", err)
		return 1
	}
	defer func() { _ = b.Close() }()

	checker, err := newChecker(cfg, b, logger, nil, nil, tty.openURL, tty.now)
	if err != nil {
		fmt.Fprintln(tty.errOut, "check error:", err)
		return 1
	}

	res, err := checker.Check(ctx, cfg.Rules)
	var next time.Time
	if errors.Is(err, domain.ErrRecentlyPrompted) {
		if h, loadErr := b.history.Load(ctx); loadErr == nil {
			next = engine.NextPromptAt(h, cfg.Rules.Frequency, res.CheckedAt)
		}
	}
	failed := err != nil && !domain.IsNegativeVerdict(err)

	if cfg.JSON {
		if werr := writeJSON(tty.out, newCheckOutput(cfg.InstalledVersion, res, next, err)); werr != nil {
			fmt.Fprintln(tty.errOut, "check error:", werr)
			return 1
		}
		if failed {
			return 1
		}
		return 0
	}
	if failed {
		fmt.Fprintln(tty.errOut, "check error:", err)
		return 1
	}

	v := res.Verdict
	if !v.Actionable() {
		fmt.Fprintln(tty.out, renderNegative(v, cfg.InstalledVersion, next))
		return 0
	}
	fmt.Fprintln(tty.out, renderAlert(v, cfg.InstalledVersion, tty.width))
	if !tty.interactive {
		if u, urlErr := checker.StoreURL(); urlErr == nil && v.Alert != domain.AlertMaintenance {
			fmt.Fprintln(tty.out, renderDetail("App Store", u))
		}
		return 0
	}
	return handleAlertAction(ctx, checker, v, skipTarget(cfg.Rules.Policy, v), tty)
}

// skipTarget is the version a "skip" answer records: the recommended
// version of policies that track skips. Store-version-only policies do not.
func skipTarget(p policy.Policy, v domain.Verdict) string {
	if v.Alert != domain.AlertSoft {
		return ""
	}
	switch p := p.(type) {
	case policy.OptionalOnly:
		return p.Recommended
	case policy.MandatoryAndOptional:
		return p.Recommended
	default:
		return ""
	}
}

func handleAlertAction(ctx context.Context, checker *updatecheck.Checker, v domain.Verdict, skipVersion string, tty checkTerminal) int {
	action, err := promptAlertAction(ctx, tty.in, tty.out, v.Alert, skipVersion != "")
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return 0
		}
		fmt.Fprintln(tty.errOut, "prompt error:", err)
		return 1
	}
	switch action {
	case actionUpdate:
		if err := checker.OpenStore(); err != nil {
			fmt.Fprintln(tty.errOut, "open error:", err)
			return 1
		}
	case actionSkip:
		if err := checker.SkipVersion(ctx, skipVersion); err != nil {
			fmt.Fprintln(tty.errOut, "skip error:", err)
			return 1
		}
		fmt.Fprintln(tty.out, "skipped:", skipVersion)
	}
	return 0
}
