package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/aizhuhelper/recipevision/internal/config"
	"github.com/aizhuhelper/recipevision/internal/domain"
)

// Strategy selects how frames are located within the video.
type Strategy string

const (
	StrategyUniform Strategy = "uniform"
	StrategyScene   Strategy = "scene"
	StrategyHybrid  Strategy = "hybrid"
)

// ParseStrategy maps a config or request string to a Strategy, falling
// back to scene detection for unknown values.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyUniform, StrategyScene, StrategyHybrid:
		return Strategy(s)
	default:
		return StrategyScene
	}
}

// FrameExtractor is the media-tool surface the sampler needs. Satisfied
// by *ffmpeg.Processor.
type FrameExtractor interface {
	ExtractAtRate(ctx context.Context, videoPath, outputDir string, maxFrames, quality int) ([]string, error)
	ExtractSceneFrames(ctx context.Context, videoPath, outputDir string, threshold float64, maxFrames, quality int) ([]string, error)
	ExtractFrameAt(ctx context.Context, videoPath string, timestamp float64, outputPath string, quality int) error
}

// Sampler turns a local video into an ordered set of JPEG frames using
// one of three interchangeable strategies.
type Sampler struct {
	cfg       config.ExtractionConfig
	extractor FrameExtractor
	logger    *slog.Logger
}

func NewSampler(cfg config.ExtractionConfig, extractor FrameExtractor, logger *slog.Logger) *Sampler {
	return &Sampler{cfg: cfg, extractor: extractor, logger: logger.With("component", "sampler")}
}

// Sample extracts targetCount frames from videoPath into outputDir.
// durationSeconds drives timestamp placement for the scene strategy's
// supplement pass and the hybrid strategy's uniform share.
func (s *Sampler) Sample(ctx context.Context, strategy Strategy, videoPath, outputDir string, durationSeconds float64, targetCount int) ([]string, error) {
	if targetCount <= 0 {
		return nil, fmt.Errorf("%w: target frame count %d", domain.ErrNoFrames, targetCount)
	}

	var (
		frames []string
		err    error
	)
	switch strategy {
	case StrategyUniform:
		frames, err = s.sampleUniform(ctx, videoPath, outputDir, targetCount)
	case StrategyHybrid:
		frames, err = s.sampleHybrid(ctx, videoPath, outputDir, durationSeconds, targetCount)
	default:
		frames, err = s.sampleScene(ctx, videoPath, outputDir, durationSeconds, targetCount)
	}
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s strategy produced nothing", domain.ErrNoFrames, strategy)
	}

	s.logger.Info("frames sampled",
		"strategy", string(strategy),
		"target", targetCount,
		"extracted", len(frames))
	return frames, nil
}

// sampleUniform decodes at a fixed rate and thins the result to the
// target count.
func (s *Sampler) sampleUniform(ctx context.Context, videoPath, outputDir string, targetCount int) ([]string, error) {
	frames, err := s.extractor.ExtractAtRate(ctx, videoPath, outputDir, s.cfg.MaxFrames, s.cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("uniform extraction: %w", err)
	}
	return SelectEvenly(frames, targetCount), nil
}

// sampleScene asks the scene detector for transition frames. Too many
// detections are thinned evenly; too few are supplemented with frames
// taken at uniform timestamps so the budget is still met.
func (s *Sampler) sampleScene(ctx context.Context, videoPath, outputDir string, durationSeconds float64, targetCount int) ([]string, error) {
	frames, err := s.extractor.ExtractSceneFrames(ctx, videoPath, outputDir, s.cfg.SceneThreshold, s.cfg.MaxFrames, s.cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("scene extraction: %w", err)
	}

	if len(frames) >= targetCount {
		return SelectEvenly(frames, targetCount), nil
	}

	needed := targetCount - len(frames)
	s.logger.Debug("scene detector under budget, supplementing",
		"detected", len(frames), "needed", needed)

	extra, err := s.extractAtTimestamps(ctx, videoPath, outputDir, durationSeconds, needed)
	if err != nil {
		return nil, err
	}
	frames = append(frames, extra...)
	sort.Strings(frames)
	return frames, nil
}

// sampleHybrid splits the budget between scene-detected and
// time-spaced frames, then merges in temporal order.
func (s *Sampler) sampleHybrid(ctx context.Context, videoPath, outputDir string, durationSeconds float64, targetCount int) ([]string, error) {
	sceneTarget := int(float64(targetCount) * s.cfg.HybridRatio)
	if sceneTarget < 1 {
		sceneTarget = 1
	}
	uniformTarget := targetCount - sceneTarget

	sceneFrames, err := s.extractor.ExtractSceneFrames(ctx, videoPath, outputDir, s.cfg.SceneThreshold, s.cfg.MaxFrames, s.cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("hybrid scene extraction: %w", err)
	}
	frames := SelectEvenly(sceneFrames, sceneTarget)

	if uniformTarget > 0 {
		extra, err := s.extractAtTimestamps(ctx, videoPath, outputDir, durationSeconds, uniformTarget)
		if err != nil {
			return nil, err
		}
		frames = append(frames, extra...)
	}
	sort.Strings(frames)
	return frames, nil
}

// extractAtTimestamps grabs count single frames at evenly spaced
// timestamps. The duration is divided into count+1 segments and each
// interior boundary is sampled, so frames never land on the exact start
// or end of the video.
func (s *Sampler) extractAtTimestamps(ctx context.Context, videoPath, outputDir string, durationSeconds float64, count int) ([]string, error) {
	if count <= 0 || durationSeconds <= 0 {
		return nil, nil
	}
	step := durationSeconds / float64(count+1)
	frames := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		ts := step * float64(i)
		out := filepath.Join(outputDir, fmt.Sprintf("supplement_%04d.jpg", i))
		if err := s.extractor.ExtractFrameAt(ctx, videoPath, ts, out, s.cfg.Quality); err != nil {
			return nil, fmt.Errorf("extract frame at %.1fs: %w", ts, err)
		}
		frames = append(frames, out)
	}
	return frames, nil
}
