package thumbnail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/aizhuhelper/recipevision/internal/config"
)

// Uploader publishes a local image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// HTTPUploader PUTs images to an object-storage gateway under a unique
// key and derives the public URL from the configured base.
type HTTPUploader struct {
	uploadURL string
	publicURL string
	token     string
	client    *http.Client
	logger    *slog.Logger
}

func NewHTTPUploader(cfg config.ThumbnailConfig, logger *slog.Logger) *HTTPUploader {
	return &HTTPUploader{
		uploadURL: strings.TrimSuffix(cfg.UploadURL, "/"),
		publicURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		token:     cfg.AuthToken,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger.With("component", "thumbnail"),
	}
}

// Configured reports whether upload credentials are present. Callers
// treat an unconfigured uploader as "skip thumbnail publishing".
func (u *HTTPUploader) Configured() bool {
	return u.uploadURL != ""
}

func (u *HTTPUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if !u.Configured() {
		return "", fmt.Errorf("thumbnail upload not configured")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open thumbnail: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat thumbnail: %w", err)
	}

	key := objectKey(localPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.uploadURL+"/"+key, f)
	if err != nil {
		return "", err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType(localPath))
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload thumbnail: unexpected status %d", resp.StatusCode)
	}

	publicURL := u.publicURL + "/" + key
	if u.publicURL == "" {
		publicURL = u.uploadURL + "/" + key
	}
	u.logger.Info("thumbnail uploaded", "key", key, "url", publicURL)
	return publicURL, nil
}

func objectKey(localPath string) string {
	ext := path.Ext(localPath)
	if ext == "" {
		ext = ".jpg"
	}
	return "thumbnails/" + uuid.NewString() + ext
}

func contentType(localPath string) string {
	switch strings.ToLower(path.Ext(localPath)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
