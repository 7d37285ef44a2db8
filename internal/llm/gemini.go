package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// GeminiProvider drives Google Gemini through the genai SDK. A fresh
// client is built per call so every request consumes the next key in
// the rotation.
type GeminiProvider struct {
	model   string
	rotator *KeyRotator
}

func NewGeminiProvider(model string, rotator *KeyRotator) *GeminiProvider {
	return &GeminiProvider{model: model, rotator: rotator}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Analyze(ctx context.Context, req Request) (*Response, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: p.rotator.Next(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIME))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: gemini returned no text", domain.ErrMalformedResponse)
	}

	usage := domain.Usage{Provider: p.Name()}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return &Response{Text: text, Usage: usage}, nil
}
