package extractor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// StreamTimestamps spreads targetCount timestamps evenly across the
// duration, keeping a buffer off both ends (2% of the duration, at
// least one second) so frames never land on black lead-in or lead-out.
// A single-frame request samples the midpoint.
func StreamTimestamps(durationSeconds float64, targetCount int) []float64 {
	if targetCount <= 0 || durationSeconds <= 0 {
		return nil
	}
	if targetCount == 1 {
		return []float64{durationSeconds / 2}
	}

	buffer := durationSeconds * 0.02
	if buffer < 1 {
		buffer = 1
	}
	effective := durationSeconds - 2*buffer
	step := effective / float64(targetCount-1)

	timestamps := make([]float64, targetCount)
	for i := range timestamps {
		timestamps[i] = buffer + step*float64(i)
	}
	return timestamps
}

// SampleStream extracts frames directly off a remote stream URL, one
// seek per timestamp, skipping the download entirely. Individual frame
// failures are tolerated; only an empty result is an error.
func (s *Sampler) SampleStream(ctx context.Context, streamURL, outputDir string, durationSeconds float64, targetCount int) ([]string, error) {
	timestamps := StreamTimestamps(durationSeconds, targetCount)
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("%w: target frame count %d", domain.ErrNoFrames, targetCount)
	}

	frames := make([]string, 0, len(timestamps))
	for i, ts := range timestamps {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out := filepath.Join(outputDir, fmt.Sprintf("stream_%04d.jpg", i+1))
		if err := s.extractor.ExtractFrameAt(ctx, streamURL, ts, out, s.cfg.Quality); err != nil {
			s.logger.Warn("stream frame failed, continuing", "timestamp", ts, "error", err)
			continue
		}
		frames = append(frames, out)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames extracted from stream", domain.ErrNoFrames)
	}
	s.logger.Info("stream frames sampled", "target", targetCount, "extracted", len(frames))
	return frames, nil
}
