// Package updatecheck runs update checks: it fetches the published store
// record, evaluates the policy against the stored prompt history, persists
// the history change and reports the verdict.
package updatecheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/browser"

	"github.com/koltyakov/siren/internal/appstore"
	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/engine"
	"github.com/koltyakov/siren/internal/history"
	"github.com/koltyakov/siren/internal/metrics"
	"github.com/koltyakov/siren/internal/policy"
	"github.com/koltyakov/siren/internal/versionutil"
)

// Fetcher returns the validated store record of the app.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.StoreMetadata, error)
}

// Recorder keeps an audit log of completed checks.
type Recorder interface {
	RecordCheck(ctx context.Context, rec domain.CheckRecord) (int64, error)
}

// Publisher receives every check outcome, e.g. a websocket hub.
type Publisher interface {
	PublishVerdict(ev domain.VerdictEvent)
	PublishError(ev domain.ErrorEvent)
}

// Options configures a Checker. InstalledVersion, Fetcher and History are
// required.
type Options struct {
	AppID            string
	InstalledVersion string
	Fetcher          Fetcher
	History          history.Store
	Now              func() time.Time
	Logger           *slog.Logger
	Metrics          *metrics.Metrics
	Recorder         Recorder
	Publisher        Publisher
	OpenURL          func(string) error
}

// Result is the outcome of one check.
type Result struct {
	Verdict   domain.Verdict
	Mutation  domain.HistoryMutation
	CheckedAt time.Time
}

// Checker runs checks for one installed app.
type Checker struct {
	appID     string
	installed string
	fetcher   Fetcher
	history   history.Store
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
	recorder  Recorder
	publisher Publisher
	openURL   func(string) error

	mu      sync.Mutex
	storeID int64

	latest atomic.Uint64
}

// New validates opts and returns a Checker.
func New(opts Options) (*Checker, error) {
	installed := versionutil.TrimVPrefix(opts.InstalledVersion)
	if installed == "" {
		return nil, errors.New("installed version is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.History == nil {
		return nil, errors.New("history store is required")
	}
	c := &Checker{
		appID:     strings.TrimSpace(opts.AppID),
		installed: installed,
		fetcher:   opts.Fetcher,
		history:   opts.History,
		now:       opts.Now,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		openURL:   opts.OpenURL,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.openURL == nil {
		c.openURL = browser.OpenURL
	}
	return c, nil
}

// InstalledVersion returns the version being checked.
func (c *Checker) InstalledVersion() string { return c.installed }

// Check runs one check. A negative verdict is returned together with
// domain.ErrNoUpdateAvailable or domain.ErrRecentlyPrompted; the Result is
// filled in either case. Lookup and validation failures stop the check
// before the policy is evaluated.
func (c *Checker) Check(ctx context.Context, rules policy.Rules) (Result, error) {
	if rules.Policy == nil {
		rules = policy.DefaultRules()
	}
	start := c.now()
	c.logger.Debug("check: started", "app_id", c.appID, "installed_version", c.installed, "policy", policy.Describe(rules.Policy))

	md, err := c.fetcher.Fetch(ctx)
	var published *domain.StoreMetadata
	switch {
	case err == nil:
		published = &md
		c.mu.Lock()
		c.storeID = md.StoreID
		c.mu.Unlock()
	case errors.Is(err, domain.ErrAppNotFound):
		c.logger.Info("check: app not found in store, continuing without store record", "app_id", c.appID)
	default:
		c.logger.Warn("check: store lookup failed", "app_id", c.appID, "err", err)
		c.metrics.ObserveFetchError(err, c.now().Sub(start), start)
		if c.publisher != nil {
			c.publisher.PublishError(domain.NewErrorEvent(err, start))
		}
		return Result{CheckedAt: start}, err
	}

	var (
		verdict  domain.Verdict
		mutation domain.HistoryMutation
	)
	err = c.history.Update(ctx, func(h domain.History) (domain.History, error) {
		verdict, mutation = engine.Evaluate(engine.Input{
			Installed: c.installed,
			Policy:    rules.Policy,
			Published: published,
			History:   h,
			Frequency: rules.Frequency,
			Now:       start,
		})
		return mutation.Apply(h), nil
	})
	if err != nil {
		c.logger.Error("check: history update failed", "app_id", c.appID, "err", err)
		c.metrics.ObserveHistoryError()
		return Result{CheckedAt: start}, fmt.Errorf("update history: %w", err)
	}

	res := Result{Verdict: verdict, Mutation: mutation, CheckedAt: start}
	c.report(ctx, res)

	if !verdict.Actionable() {
		return res, domain.ReasonError(verdict.Reason)
	}
	return res, nil
}

func (c *Checker) report(ctx context.Context, res Result) {
	v := res.Verdict
	if c.recorder != nil {
		_, err := c.recorder.RecordCheck(ctx, domain.CheckRecord{
			AppID:            c.appID,
			InstalledVersion: c.installed,
			PublishedVersion: v.PublishedVersion(),
			Alert:            v.Alert,
			Reason:           v.Reason,
			CheckedAt:        res.CheckedAt,
		})
		if err != nil {
			c.logger.Error("check: record failed", "app_id", c.appID, "err", err)
			c.metrics.ObserveHistoryError()
		}
	}
	if c.publisher != nil {
		c.publisher.PublishVerdict(domain.NewVerdictEvent(c.appID, c.installed, v, res.CheckedAt))
	}
	c.metrics.ObserveVerdict(v, c.now().Sub(res.CheckedAt), res.CheckedAt)
	c.logger.Info("check: verdict",
		"app_id", c.appID,
		"alert", v.Alert,
		"reason", v.Reason,
		"installed_version", c.installed,
		"published_version", v.PublishedVersion(),
	)
}

// CheckAsync runs a check in the background and passes its outcome to
// handler, unless a later CheckAsync call has started in the meantime. A
// superseded check still persists its history change. The returned channel
// is closed once the check finished, whether or not handler ran.
func (c *Checker) CheckAsync(ctx context.Context, rules policy.Rules, handler func(Result, error)) <-chan struct{} {
	seq := c.latest.Add(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := c.Check(ctx, rules)
		if c.latest.Load() != seq {
			c.logger.Debug("check: result superseded by a newer check", "app_id", c.appID)
			return
		}
		if handler != nil {
			handler(res, err)
		}
	}()
	return done
}

// StoreURL returns the store page of the app captured by the most recent
// successful lookup.
func (c *Checker) StoreURL() (string, error) {
	c.mu.Lock()
	id := c.storeID
	c.mu.Unlock()
	return appstore.StoreURL(id)
}

// OpenStore opens the store page with the configured opener.
func (c *Checker) OpenStore() error {
	u, err := c.StoreURL()
	if err != nil {
		return err
	}
	if err := c.openURL(u); err != nil {
		return fmt.Errorf("open store page: %w", err)
	}
	return nil
}

// SkipVersion records version as skipped so optional prompts for it stop.
func (c *Checker) SkipVersion(ctx context.Context, version string) error {
	version = versionutil.TrimVPrefix(version)
	if version == "" {
		return errors.New("version to skip is required")
	}
	if err := history.SkipVersion(ctx, c.history, version); err != nil {
		return fmt.Errorf("skip version: %w", err)
	}
	c.logger.Info("check: version skipped", "app_id", c.appID, "version", version)
	return nil
}
