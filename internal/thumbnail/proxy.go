// Package thumbnail republishes video thumbnails through our own
// storage. Platform CDNs block cross-origin reads, so serving their
// URLs directly breaks web clients; downloading and re-uploading gives
// the frontend a URL it can actually render.
package thumbnail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aizhuhelper/recipevision/internal/config"
)

const downloadUserAgent = "RecipeVision/1.0"

// Proxy downloads a CDN thumbnail and hands it to the Uploader.
type Proxy struct {
	uploader Uploader
	client   *http.Client
	tempDir  string
	logger   *slog.Logger
}

func NewProxy(cfg config.ThumbnailConfig, uploader Uploader, tempDir string, logger *slog.Logger) *Proxy {
	return &Proxy{
		uploader: uploader,
		client:   &http.Client{Timeout: cfg.Timeout},
		tempDir:  tempDir,
		logger:   logger.With("component", "thumbnail"),
	}
}

// Rehost fetches thumbnailURL and republishes it, returning the public
// URL. The temp copy is removed before returning.
func (p *Proxy) Rehost(ctx context.Context, thumbnailURL string) (string, error) {
	if thumbnailURL == "" {
		return "", fmt.Errorf("thumbnail URL is required")
	}

	localPath, err := p.Fetch(ctx, thumbnailURL, p.tempDir)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(localPath); err != nil {
			p.logger.Warn("failed to remove temp thumbnail", "path", localPath, "error", err)
		}
	}()

	return p.uploader.Upload(ctx, localPath)
}

// Fetch downloads thumbnailURL into destDir and returns the local
// path. The pipeline uses this to place the platform cover image in
// front of the sampled frames before analysis.
func (p *Proxy) Fetch(ctx context.Context, thumbnailURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbnailURL, nil)
	if err != nil {
		return "", fmt.Errorf("build thumbnail request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download thumbnail: unexpected status %d", resp.StatusCode)
	}

	localPath := filepath.Join(destDir, "thumb_"+uuid.NewString()[:12]+".jpg")
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create temp thumbnail: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("write temp thumbnail: %w", err)
	}

	p.logger.Info("thumbnail downloaded", "url", thumbnailURL, "path", localPath)
	return localPath, nil
}
