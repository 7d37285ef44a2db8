package domain

// DownloadResult describes acquired media. Exactly one of VideoPath or a
// non-empty PhotoPaths is set; ThumbnailURL may accompany either. The
// referenced files live inside the pipeline workspace and are removed
// when it is released.
type DownloadResult struct {
	VideoPath    string
	ThumbnailURL string
	PhotoPaths   []string
}

// IsCarousel reports whether the result is a photo carousel rather than
// a single video file.
func (r *DownloadResult) IsCarousel() bool {
	return len(r.PhotoPaths) > 0
}

// StreamInfo describes a video resolved for streaming extraction:
// a direct media URL ffmpeg can read without a prior download.
type StreamInfo struct {
	URL             string
	DurationSeconds float64
	ThumbnailURL    string
}
