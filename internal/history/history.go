// Package history persists per-app prompt state between checks.
package history

import (
	"context"
	"errors"

	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/versionutil"
)

// Store loads and saves the prompt history of one app.
//
// Update is a read-modify-write: fn receives the current history and the
// value it returns is written unless another writer changed the history in
// between, in which case the implementation either serializes writers or
// retries fn against the fresh value. Returning an error from fn aborts the
// write.
type Store interface {
	Load(ctx context.Context) (domain.History, error)
	Save(ctx context.Context, h domain.History) error
	Update(ctx context.Context, fn func(domain.History) (domain.History, error)) error
}

// SkipVersion records version as skipped, keeping the last prompt time.
// The version is stored without a leading "v" so it matches thresholds.
func SkipVersion(ctx context.Context, s Store, version string) error {
	version = versionutil.TrimVPrefix(version)
	if version == "" {
		return errors.New("version to skip is required")
	}
	return s.Update(ctx, func(h domain.History) (domain.History, error) {
		h.SkippedVersion = version
		return h, nil
	})
}

// Reset clears the stored history.
func Reset(ctx context.Context, s Store) error {
	return s.Save(ctx, domain.History{})
}
