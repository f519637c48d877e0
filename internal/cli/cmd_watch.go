package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/koltyakov/siren/internal/config"
	"github.com/koltyakov/siren/internal/debughttp"
	ilog "github.com/koltyakov/siren/internal/log"
	"github.com/koltyakov/siren/internal/metrics"
	"github.com/koltyakov/siren/internal/notify"
	"github.com/koltyakov/siren/internal/policy"
	"github.com/koltyakov/siren/internal/updatecheck"
)

// checkLogRetention bounds the sqlite check log kept by watch.
const checkLogRetention = 30 * 24 * time.Hour

func runWatch(ctx context.Context, args []string) int {
	cfg, err := config.ParseWatchFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "watch config error:", err)
		return 2
	}
	logger := ilog.New(cfg.App.LogLevel)

	b, err := openBackend(cfg.App, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history error:", err)
		return 1
	}
	defer func() { _ = b.Close() }()

	m := metrics.New()
	hub := notify.NewHub(logger)
	defer hub.Close()

	checker, err := newChecker(cfg.CheckConfig, b, logger, m, hub, nil, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "watch error:", err)
		return 1
	}

	status := newWatchStatus(cfg, b.describe)
	if _, err := debughttp.StartStatusServer(ctx, cfg.Listen, logger, debughttp.Routes{
		Metrics: m.Handler(),
		Stream:  hub,
		Status:  status,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "status listen error:", err)
		return 1
	}

	onResult := status.record
	if b.db != nil {
		onResult = func(res updatecheck.Result, err error) {
			status.record(res, err)
			purgeCheckLog(ctx, b, logger, res.CheckedAt)
		}
	}
	runWatchLoop(ctx, checker, cfg.Rules, cfg.Interval, logger, onResult)
	return 0
}

// runWatchLoop checks right away and then on every tick until ctx is done.
// A check still running when the next tick fires is superseded: its history
// change persists but onResult only sees the newer outcome. It returns once
// every started check, superseded ones included, has finished.
func runWatchLoop(ctx context.Context, checker *updatecheck.Checker, rules policy.Rules, interval time.Duration, logger *slog.Logger, onResult func(updatecheck.Result, error)) {
	logger.Info("watch: periodic checks enabled", "interval", interval, "installed_version", checker.InstalledVersion())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var inflight sync.WaitGroup
	start := func() {
		done := checker.CheckAsync(ctx, rules, onResult)
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			<-done
		}()
	}

	start()
	for {
		select {
		case <-ctx.Done():
			inflight.Wait()
			logger.Info("watch: stopped")
			return
		case <-ticker.C:
			logger.Debug("watch: tick")
			start()
		}
	}
}

func purgeCheckLog(ctx context.Context, b *backend, logger *slog.Logger, now time.Time) {
	n, err := b.db.PurgeChecks(ctx, now.Add(-checkLogRetention))
	if err != nil {
		logger.Warn("watch: check log purge failed", "err", err)
		return
	}
	if n > 0 {
		logger.Debug("watch: check log purged", "rows", n)
	}
}

// watchStatus serves the latest outcome as JSON on /status.
type watchStatus struct {
	installed string
	interval  time.Duration
	policy    string
	frequency string
	history   string
	startedAt time.Time

	mu     sync.Mutex
	checks int
	failed int
	last   *checkOutput
}

type watchStatusDoc struct {
	InstalledVersion string       `json:"installed_version"`
	Policy           string       `json:"policy"`
	Frequency        string       `json:"frequency"`
	History          string       `json:"history"`
	Interval         string       `json:"interval"`
	StartedAt        time.Time    `json:"started_at"`
	Checks           int          `json:"checks"`
	Failed           int          `json:"failed"`
	Last             *checkOutput `json:"last,omitempty"`
}

func newWatchStatus(cfg config.WatchConfig, historyDesc string) *watchStatus {
	return &watchStatus{
		installed: cfg.InstalledVersion,
		interval:  cfg.Interval,
		policy:    policy.Describe(cfg.Rules.Policy),
		frequency: cfg.Rules.Frequency.String(),
		history:   historyDesc,
		startedAt: time.Now().UTC(),
	}
}

func (s *watchStatus) record(res updatecheck.Result, err error) {
	out := newCheckOutput(s.installed, res, time.Time{}, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	if out.Error != "" {
		s.failed++
	}
	s.last = &out
}

func (s *watchStatus) snapshot() watchStatusDoc {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := watchStatusDoc{
		InstalledVersion: s.installed,
		Policy:           s.policy,
		Frequency:        s.frequency,
		History:          s.history,
		Interval:         s.interval.String(),
		StartedAt:        s.startedAt,
		Checks:           s.checks,
		Failed:           s.failed,
	}
	if s.last != nil {
		last := *s.last
		doc.Last = &last
	}
	return doc
}

func (s *watchStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, s.snapshot())
}
