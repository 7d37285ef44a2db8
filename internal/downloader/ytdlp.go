package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// videoInfo is the subset of the yt-dlp metadata dump that we consume.
type videoInfo struct {
	ID         string      `json:"id"`
	Ext        string      `json:"ext"`
	Duration   float64     `json:"duration"`
	Thumbnail  string      `json:"thumbnail"`
	Thumbnails []thumbnail `json:"thumbnails"`
}

type thumbnail struct {
	URL        string `json:"url"`
	Preference int    `json:"preference"`
}

// BestThumbnail picks the highest-preference thumbnail candidate, falling
// back to the single thumbnail field. Empty string when the source
// exposes none.
func (v *videoInfo) BestThumbnail() string {
	best := ""
	bestPref := 0
	for _, t := range v.Thumbnails {
		if t.URL == "" {
			continue
		}
		if best == "" || t.Preference > bestPref {
			best = t.URL
			bestPref = t.Preference
		}
	}
	if best != "" {
		return best
	}
	return v.Thumbnail
}

// ytdlpArgs builds the yt-dlp invocation for a download attempt.
// cookieFile may be empty (tier 1, no authentication).
func (d *Downloader) ytdlpArgs(url, outputDir, cookieFile string) []string {
	args := []string{
		"--print-json",
		"--no-playlist",
		"--no-warnings",
		"--format", "best[height<=720][ext=mp4]/best[ext=mp4]/best",
		"--output", filepath.Join(outputDir, "video_%(id)s.%(ext)s"),
		// Deliberate inter-request pacing to reduce rate-limiting risk.
		"--sleep-interval", strconv.Itoa(d.cfg.SleepMin),
		"--max-sleep-interval", strconv.Itoa(d.cfg.SleepMax),
	}

	if domain.ResolvePlatform(url) == domain.PlatformYouTube {
		// The android client identity is far less bot-detected than the
		// default web client, and skipping these formats avoids the
		// streaming manifests that trigger detection.
		args = append(args,
			"--extractor-args", "youtube:player_client=android",
			"--extractor-args", "youtube:skip=hls,dash",
		)
	}

	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}

	args = append(args, url)
	return args
}

// runYtdlp performs one download attempt and returns the downloaded file
// path plus the parsed metadata.
func (d *Downloader) runYtdlp(ctx context.Context, url, outputDir, cookieFile string) (string, *videoInfo, error) {
	res, err := d.runner.Run(ctx, d.cfg.YtDlpPath, d.ytdlpArgs(url, outputDir, cookieFile)...)
	if err != nil {
		return "", nil, fmt.Errorf("yt-dlp: %w: %s", err, string(res.Stderr))
	}

	var info videoInfo
	if err := json.Unmarshal(res.Stdout, &info); err != nil {
		return "", nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	ext := info.Ext
	if ext == "" {
		ext = "mp4"
	}
	videoPath := filepath.Join(outputDir, fmt.Sprintf("video_%s.%s", info.ID, ext))
	if _, err := os.Stat(videoPath); err != nil {
		return "", nil, fmt.Errorf("download reported success but file missing: %w", err)
	}

	return videoPath, &info, nil
}
