package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/koltyakov/siren/internal/appstore"
	"github.com/koltyakov/siren/internal/config"
	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/history"
	"github.com/koltyakov/siren/internal/metrics"
	"github.com/koltyakov/siren/internal/store/sqlite"
	"github.com/koltyakov/siren/internal/updatecheck"
)

// backend is the history store selected by --history. db is set only for
// the sqlite backend, which also keeps the check log.
type backend struct {
	history  history.Store
	recorder updatecheck.Recorder
	db       *sqlite.Store
	describe string
}

func openBackend(app config.AppConfig, logger *slog.Logger) (*backend, error) {
	switch app.HistoryBackend {
	case config.HistorySQLite:
		db, err := sqlite.Open(app.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("open history db: %w", err)
		}
		return &backend{
			history:  db.History(app.Key()),
			recorder: db,
			db:       db,
			describe: "sqlite:" + app.HistoryPath,
		}, nil
	case config.HistoryMemory:
		return &backend{history: history.NewMemory(domain.History{}), describe: "memory"}, nil
	default:
		f := history.NewFile(app.HistoryPath, app.Key(), logger)
		return &backend{history: f, describe: "file:" + f.Path()}, nil
	}
}

func (b *backend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func newLookupClient(app config.AppConfig, deviceOSVersion string) *appstore.Client {
	return &appstore.Client{
		BaseURL:         app.LookupURL,
		BundleID:        app.BundleID,
		AppID:           app.AppID,
		Country:         app.Country,
		DeviceOSVersion: deviceOSVersion,
		HTTPClient:      &http.Client{Timeout: app.HTTPTimeout},
	}
}

func newChecker(cfg config.CheckConfig, b *backend, logger *slog.Logger, m *metrics.Metrics, pub updatecheck.Publisher, openURL func(string) error, now func() time.Time) (*updatecheck.Checker, error) {
	return updatecheck.New(updatecheck.Options{
		AppID:            cfg.App.Key(),
		InstalledVersion: cfg.InstalledVersion,
		Fetcher:          newLookupClient(cfg.App, cfg.DeviceOSVersion),
		History:          b.history,
		Logger:           logger,
		Metrics:          m,
		Recorder:         b.recorder,
		Publisher:        pub,
		OpenURL:          openURL,
		Now:              now,
	})
}
