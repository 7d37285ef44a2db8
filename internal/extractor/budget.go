package extractor

// Mode selects the speed/cost/accuracy tradeoff for frame budgeting.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeAccurate Mode = "accurate"
)

// ParseMode maps a config or request string to a Mode, falling back to
// balanced for unknown values.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeFast, ModeBalanced, ModeAccurate:
		return Mode(s)
	default:
		return ModeBalanced
	}
}

// PlanFrameCount maps video duration and mode to a target frame count.
// Each mode is a monotonic step function of duration with a hard cap,
// so longer videos get more frames up to a cost ceiling.
func PlanFrameCount(durationSeconds int, mode Mode) int {
	switch mode {
	case ModeFast:
		switch {
		case durationSeconds < 300:
			return 8
		case durationSeconds < 600:
			return 10
		case durationSeconds < 900:
			return 12
		default:
			return 16
		}
	case ModeAccurate:
		switch {
		case durationSeconds < 300:
			return 15
		case durationSeconds < 600:
			return 24
		case durationSeconds < 900:
			return 36
		default:
			return clamp(durationSeconds/20, 36, 48)
		}
	default:
		switch {
		case durationSeconds < 300:
			return 12
		case durationSeconds < 600:
			return 18
		case durationSeconds < 900:
			return 24
		default:
			return clamp(durationSeconds/30, 24, 36)
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SelectEvenly picks target evenly spaced entries from frames, preserving
// order. When frames already fit the target, all of them are returned.
func SelectEvenly(frames []string, target int) []string {
	if target <= 0 {
		return nil
	}
	if len(frames) <= target {
		return frames
	}
	selected := make([]string, 0, target)
	for i := 0; i < target; i++ {
		selected = append(selected, frames[i*len(frames)/target])
	}
	return selected
}
