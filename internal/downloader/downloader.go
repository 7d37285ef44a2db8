// Package downloader acquires video or photo-carousel media from a URL
// using external extraction tools, escalating through authentication
// tiers as needed.
package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aizhuhelper/recipevision/internal/config"
	"github.com/aizhuhelper/recipevision/internal/cookies"
	"github.com/aizhuhelper/recipevision/internal/domain"
)

// CredentialSource yields platform cookies. A (nil, nil) return means no
// credentials are available for the platform.
type CredentialSource interface {
	Acquire(ctx context.Context, platform domain.Platform) (*cookies.Credential, error)
}

// tier names the states of the download escalation machine.
type tier int

const (
	tierNoAuth tier = iota
	tierWithCredentials
)

func (t tier) String() string {
	switch t {
	case tierNoAuth:
		return "no_auth"
	case tierWithCredentials:
		return "with_credentials"
	default:
		return "unknown"
	}
}

// authMarkers are error-text substrings signalling the failure needs
// authentication rather than being permanent. Matched case-insensitively.
var authMarkers = []string{
	"sign in",
	"login required",
	"bot",
	"age-restricted",
	"private",
	"members-only",
	"not available",
	"cannot parse data",
	"unable to extract video url",
}

// permanentMarkers identify content failures no retry can fix.
var permanentMarkers = []string{
	"deleted",
	"private",
	"copyright",
	"removed",
	"terminated",
	"unsupported",
}

// retryableMarkers identify transient failures the caller may retry
// with backoff.
var retryableMarkers = []string{
	"rate limit",
	"rate-limit",
	"429",
	"too many requests",
	"timed out",
	"temporary failure",
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isAuthError(errText string) bool {
	return containsAny(errText, authMarkers)
}

// isCarouselError detects the unsupported-photo signal yt-dlp emits for
// photo carousels on short-form platforms.
func isCarouselError(errText string) bool {
	lower := strings.ToLower(errText)
	return strings.Contains(lower, "unsupported url") && strings.Contains(lower, "photo")
}

// classify tags a terminal download error as permanent or retryable so
// the caller's retry policy knows whether to retry.
func classify(err error) error {
	text := err.Error()
	switch {
	case containsAny(text, retryableMarkers):
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	case containsAny(text, permanentMarkers):
		return fmt.Errorf("%w: %v", domain.ErrContentUnavailable, err)
	default:
		return err
	}
}

// Downloader acquires media with tiered authentication escalation.
type Downloader struct {
	cfg    config.DownloadConfig
	runner Runner
	creds  CredentialSource
	logger *slog.Logger
}

// New creates a new downloader.
func New(cfg config.DownloadConfig, runner Runner, creds CredentialSource, logger *slog.Logger) *Downloader {
	return &Downloader{
		cfg:    cfg,
		runner: runner,
		creds:  creds,
		logger: logger,
	}
}

// Download fetches the media behind url into outputDir.
//
// The escalation machine: a first attempt runs without credentials
// (tierNoAuth). When the failure text carries an authentication marker,
// the machine transitions to tierWithCredentials, acquiring platform
// cookies and retrying once. Failures without an auth marker are
// terminal at tier 1: they are classified permanent or retryable and
// propagated without a second attempt.
func (d *Downloader) Download(ctx context.Context, url, outputDir string) (*domain.DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	d.logger.Info("download attempt", "url", url, "tier", tierNoAuth.String())

	videoPath, info, err := d.runYtdlp(ctx, url, outputDir, "")
	if err == nil {
		return d.videoResult(videoPath, info), nil
	}

	errText := err.Error()

	if isCarouselError(errText) {
		return d.downloadCarousel(ctx, url, outputDir)
	}

	if !isAuthError(errText) {
		// Clearly not an auth problem: fail fast.
		d.logger.Warn("download failed without auth marker", "url", url, "error", err)
		return nil, classify(err)
	}

	platform := domain.ResolvePlatform(url)
	d.logger.Info("download attempt", "url", url, "tier", tierWithCredentials.String(), "platform", platform)

	cred, credErr := d.creds.Acquire(ctx, platform)
	if credErr != nil {
		return nil, fmt.Errorf("acquire credentials: %w", credErr)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w (platform %s): %v", domain.ErrAuthRequired, platform, err)
	}
	defer cred.Release()

	videoPath, info, retryErr := d.runYtdlp(ctx, url, outputDir, cred.Path())
	if retryErr != nil {
		return nil, fmt.Errorf("%w (platform %s): %v", domain.ErrStaleCredentials, platform, retryErr)
	}

	return d.videoResult(videoPath, info), nil
}

func (d *Downloader) videoResult(videoPath string, info *videoInfo) *domain.DownloadResult {
	result := &domain.DownloadResult{
		VideoPath:    videoPath,
		ThumbnailURL: info.BestThumbnail(),
	}
	d.logger.Info("video downloaded",
		"path", videoPath,
		"duration", info.Duration,
		"thumbnail", result.ThumbnailURL != "",
	)
	return result
}
