package llm

import (
	"context"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// Image is one frame payload, already decoded from disk and normalized
// to a model-friendly format.
type Image struct {
	Data []byte
	MIME string
}

// Request carries the frames and the prompt for one inference call.
type Request struct {
	Images []Image
	Prompt string
}

// Response is the raw model output plus token accounting.
type Response struct {
	Text  string
	Usage domain.Usage
}

// Provider is one vision-capable model backend. Implementations build a
// fresh client per call from a rotated API key.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, req Request) (*Response, error)
}
