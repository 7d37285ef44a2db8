package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// ResolveStream resolves url to a direct stream URL plus lightweight
// metadata without downloading the video. Two quick yt-dlp calls: a
// metadata dump for duration and thumbnail, then -g for the stream URL
// ffmpeg reads directly. Both run without credentials; auth-gated
// content surfaces an error and the caller falls back to the full
// download path.
func (d *Downloader) ResolveStream(ctx context.Context, url string) (*domain.StreamInfo, error) {
	if d.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ProbeTimeout)
		defer cancel()
	}

	res, err := d.runner.Run(ctx, d.cfg.YtDlpPath,
		"--dump-json", "--no-download", "--no-playlist", "--no-warnings", url)
	if err != nil {
		return nil, d.classifyStreamErr("yt-dlp metadata", err, res.Stderr)
	}

	var info videoInfo
	if err := json.Unmarshal(res.Stdout, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%w: stream has no usable duration", domain.ErrContentUnavailable)
	}

	res, err = d.runner.Run(ctx, d.cfg.YtDlpPath,
		"-g", "--no-playlist", "--no-warnings", url)
	if err != nil {
		return nil, d.classifyStreamErr("yt-dlp stream url", err, res.Stderr)
	}
	streamURL := strings.TrimSpace(strings.SplitN(string(res.Stdout), "\n", 2)[0])
	if streamURL == "" {
		return nil, fmt.Errorf("%w: empty stream url", domain.ErrContentUnavailable)
	}

	d.logger.Info("stream resolved", "url", url, "duration", info.Duration)
	return &domain.StreamInfo{
		URL:             streamURL,
		DurationSeconds: info.Duration,
		ThumbnailURL:    info.BestThumbnail(),
	}, nil
}

// classifyStreamErr tags a probe failure. Auth-gated content maps to
// ErrAuthRequired so the caller knows the credentialed download path is
// the right fallback.
func (d *Downloader) classifyStreamErr(op string, err error, stderr []byte) error {
	wrapped := fmt.Errorf("%s: %w: %s", op, err, string(stderr))
	if isAuthError(wrapped.Error()) {
		return fmt.Errorf("%w: %v", domain.ErrAuthRequired, wrapped)
	}
	return classify(wrapped)
}
