package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/koltyakov/siren/internal/domain"
)

// DefaultFileName is the history file created under the config directory.
const DefaultFileName = "history.json"

// DefaultPath returns the history file location under the user config
// directory, falling back to the temp dir when none is available.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "siren", DefaultFileName)
}

type fileEntry struct {
	SkippedVersion string    `json:"skipped_version,omitempty"`
	LastPromptAt   time.Time `json:"last_prompt_at,omitzero"`
}

type fileDoc struct {
	Apps map[string]fileEntry `json:"apps"`
}

// fileLocks serializes writers of the same path within the process.
var fileLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// File stores the history of one app inside a shared JSON document keyed by
// app id. A corrupted document is moved aside to <path>.corrupted and
// treated as empty.
type File struct {
	path   string
	appID  string
	logger *slog.Logger
}

// NewFile returns a File store for appID at path. An empty path selects
// DefaultPath.
func NewFile(path, appID string, logger *slog.Logger) *File {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &File{path: path, appID: strings.TrimSpace(appID), logger: logger}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) Load(ctx context.Context) (domain.History, error) {
	if err := ctx.Err(); err != nil {
		return domain.History{}, err
	}
	mu := lockFor(f.path)
	mu.Lock()
	defer mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return domain.History{}, err
	}
	return toHistory(doc.Apps[f.appID]), nil
}

func (f *File) Save(ctx context.Context, h domain.History) error {
	return f.Update(ctx, func(domain.History) (domain.History, error) { return h, nil })
}

func (f *File) Update(ctx context.Context, fn func(domain.History) (domain.History, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu := lockFor(f.path)
	mu.Lock()
	defer mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	next, err := fn(toHistory(doc.Apps[f.appID]))
	if err != nil {
		return err
	}
	if next == (domain.History{}) {
		delete(doc.Apps, f.appID)
	} else {
		doc.Apps[f.appID] = fileEntry{SkippedVersion: next.SkippedVersion, LastPromptAt: next.LastPromptAt.UTC()}
	}
	return f.write(doc)
}

func (f *File) read() (fileDoc, error) {
	doc := fileDoc{Apps: map[string]fileEntry{}}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read history: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		corrupted := f.path + ".corrupted"
		f.logger.Warn("history: corrupted file, resetting", "path", f.path, "moved_to", corrupted, "err", err)
		if renameErr := os.Rename(f.path, corrupted); renameErr != nil {
			return fileDoc{Apps: map[string]fileEntry{}}, fmt.Errorf("move corrupted history aside: %w", renameErr)
		}
		return fileDoc{Apps: map[string]fileEntry{}}, nil
	}
	if doc.Apps == nil {
		doc.Apps = map[string]fileEntry{}
	}
	return doc, nil
}

func (f *File) write(doc fileDoc) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename history: %w", err)
	}
	return nil
}

func toHistory(e fileEntry) domain.History {
	return domain.History{SkippedVersion: e.SkippedVersion, LastPromptAt: e.LastPromptAt}
}
