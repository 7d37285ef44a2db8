package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Workspace is a scoped temporary directory for one pipeline run.
// Everything a run downloads or extracts lives under it, so a single
// Release reclaims all of it on every exit path.
type Workspace struct {
	path    string
	logger  *slog.Logger
	release sync.Once
}

// NewWorkspace creates an isolated directory under base. An empty base
// falls back to the system temp dir.
func NewWorkspace(base string, logger *slog.Logger) (*Workspace, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, fmt.Errorf("create workspace base: %w", err)
		}
	}
	path, err := os.MkdirTemp(base, "pipeline_")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{path: path, logger: logger}, nil
}

// Path is the workspace root.
func (w *Workspace) Path() string {
	return w.path
}

// Dir creates (if needed) and returns a named subdirectory.
func (w *Workspace) Dir(name string) (string, error) {
	dir := filepath.Join(w.path, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create workspace dir %s: %w", name, err)
	}
	return dir, nil
}

// Release deletes the workspace. Idempotent; deletion failures are
// logged and swallowed so cleanup never masks the run's real outcome.
// A GC pass follows to release memory held by large decoded frames;
// correctness never depends on it.
func (w *Workspace) Release() {
	w.release.Do(func() {
		if err := os.RemoveAll(w.path); err != nil {
			w.logger.Warn("failed to clean up workspace", "path", w.path, "error", err)
		} else {
			w.logger.Debug("workspace released", "path", w.path)
		}
		runtime.GC()
	})
}
