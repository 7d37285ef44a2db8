// Package cookies fetches platform authentication cookies from a remote
// object store for use by the download tool.
package cookies

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/aizhuhelper/recipevision/internal/config"
	"github.com/aizhuhelper/recipevision/internal/domain"
)

// cookieFiles maps platforms to their cookie file in the object store.
// Platforms without an entry have no credentials.
var cookieFiles = map[domain.Platform]string{
	domain.PlatformYouTube:   "www.youtube.com_cookies.txt",
	domain.PlatformInstagram: "www.instagram.com_cookies.txt",
}

// Credential is a scoped cookie-file acquisition. The caller must call
// Release when done; the temp file is then deleted.
type Credential struct {
	path    string
	logger  *slog.Logger
	release sync.Once
}

// NewCredential wraps an existing cookie file as a scoped credential.
func NewCredential(path string, logger *slog.Logger) *Credential {
	return &Credential{path: path, logger: logger}
}

// Path returns the local cookie file path.
func (c *Credential) Path() string {
	return c.path
}

// Release deletes the temp cookie file. Safe to call more than once.
// Deletion failure is logged, never surfaced: it must not mask the
// outcome of the download it served.
func (c *Credential) Release() {
	c.release.Do(func() {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove cookie file", "path", c.path, "error", err)
		}
	})
}

// Store downloads cookie files from the remote object store.
type Store struct {
	baseURL   string
	userAgent string
	tempDir   string
	client    *http.Client
	logger    *slog.Logger
}

// NewStore creates a new cookie store.
func NewStore(cfg config.CookiesConfig, tempDir string, logger *slog.Logger) *Store {
	return &Store{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		tempDir:   tempDir,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

// Acquire fetches the cookie file for a platform into a scoped temp file.
// A nil Credential with nil error means no credentials are available;
// that is an expected condition, not a failure. Callers must treat it as
// "try without authentication".
func (s *Store) Acquire(ctx context.Context, platform domain.Platform) (*Credential, error) {
	filename, ok := cookieFiles[platform]
	if !ok || s.baseURL == "" {
		s.logger.Info("no cookies configured for platform", "platform", platform)
		return nil, nil
	}

	url := fmt.Sprintf("%s/%s", s.baseURL, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Warn("failed to build cookie request", "platform", platform, "error", err)
		return nil, nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("cookie fetch failed", "platform", platform, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("cookie fetch rejected", "platform", platform, "status", resp.StatusCode)
		return nil, nil
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Warn("cookie read failed", "platform", platform, "error", err)
		return nil, nil
	}

	path := filepath.Join(s.tempDir, fmt.Sprintf("cookies_%s_%s.txt", platform, uuid.New().String()[:8]))
	if err := os.WriteFile(path, content, 0600); err != nil {
		s.logger.Warn("cookie write failed", "path", path, "error", err)
		return nil, nil
	}

	s.logger.Info("using platform cookies", "platform", platform, "path", path)
	return NewCredential(path, s.logger), nil
}
