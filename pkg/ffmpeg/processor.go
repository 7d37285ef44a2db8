// Package ffmpeg wraps the ffmpeg/ffprobe binaries for video probing
// and frame extraction.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Processor handles video probing and frame extraction using ffmpeg.
// All extraction runs single-threaded with the ultrafast preset to keep
// CPU and memory pressure low on small hosts.
type Processor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor creates a new processor. It will attempt to find ffmpeg
// and ffprobe in PATH.
func NewProcessor() (*Processor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Processor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// MediaInfo contains metadata about a video file.
type MediaInfo struct {
	Duration float64 // seconds
	SizeB    int64   // file size in bytes
}

// Probe extracts duration and size from a video file via ffprobe.
func (p *Processor) Probe(ctx context.Context, videoPath string) (*MediaInfo, error) {
	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		videoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
			Size     string `json:"size"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{SizeB: stat.Size()}
	if parsed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}
	if parsed.Format.Size != "" {
		if size, err := strconv.ParseInt(parsed.Format.Size, 10, 64); err == nil {
			info.SizeB = size
		}
	}

	return info, nil
}

// ExtractAtRate decodes frames at 1 fps up to maxFrames, writing
// frame_NNNN.jpg files into outputDir. Returns the sorted frame paths.
func (p *Processor) ExtractAtRate(ctx context.Context, videoPath, outputDir string, maxFrames, quality int) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	pattern := filepath.Join(outputDir, "frame_%04d.jpg")
	args := []string{
		"-i", videoPath,
		"-vf", "fps=1",
		"-q:v", strconv.Itoa(quality),
		"-frames:v", strconv.Itoa(maxFrames),
		"-threads", "1",
		"-preset", "ultrafast",
		"-y",
		pattern,
	}
	if err := p.run(ctx, args); err != nil {
		return nil, fmt.Errorf("extract frames at 1fps: %w", err)
	}

	return globFrames(outputDir, "frame_")
}

// ExtractSceneFrames emits only frames at detected visual transitions
// (pixel change above threshold), writing scene_NNNN.jpg files.
func (p *Processor) ExtractSceneFrames(ctx context.Context, videoPath, outputDir string, threshold float64, maxFrames, quality int) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	pattern := filepath.Join(outputDir, "scene_%04d.jpg")
	args := []string{
		"-i", videoPath,
		"-vf", fmt.Sprintf("select=gt(scene\\,%g)", threshold),
		"-vsync", "vfr",
		"-q:v", strconv.Itoa(quality),
		"-frames:v", strconv.Itoa(maxFrames),
		"-threads", "1",
		"-preset", "ultrafast",
		"-y",
		pattern,
	}
	if err := p.run(ctx, args); err != nil {
		return nil, fmt.Errorf("scene detection: %w", err)
	}

	return globFrames(outputDir, "scene_")
}

// ExtractFrameAt extracts a single frame at the given timestamp.
func (p *Processor) ExtractFrameAt(ctx context.Context, videoPath string, timestamp float64, outputPath string, quality int) error {
	args := []string{
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", strconv.Itoa(quality),
		"-threads", "1",
		"-y",
		outputPath,
	}
	if err := p.run(ctx, args); err != nil {
		return fmt.Errorf("extract frame at %.2fs: %w", timestamp, err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("frame not written: %w", err)
	}
	return nil
}

func (p *Processor) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 400 {
			msg = msg[len(msg)-400:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}

// globFrames returns the jpg files under dir with the given name prefix,
// sorted by filename (which encodes temporal order).
func globFrames(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// IsAvailable checks if ffmpeg and ffprobe are available on the system.
func IsAvailable() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// Version returns the ffmpeg version string.
func Version() (string, error) {
	cmd := exec.Command("ffmpeg", "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}
