package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// xaiBaseURL serves Grok through an OpenAI-compatible surface.
const xaiBaseURL = "https://api.x.ai/v1"

// OpenAIProvider drives any OpenAI-compatible chat-completions backend.
// Grok is the same provider pointed at the x.ai base URL.
type OpenAIProvider struct {
	name    string
	model   string
	baseURL string
	rotator *KeyRotator
}

func NewOpenAIProvider(model string, rotator *KeyRotator) *OpenAIProvider {
	return &OpenAIProvider{name: "openai", model: model, rotator: rotator}
}

func NewGrokProvider(model, baseURL string, rotator *KeyRotator) *OpenAIProvider {
	if baseURL == "" {
		baseURL = xaiBaseURL
	}
	return &OpenAIProvider{name: "grok", model: model, baseURL: baseURL, rotator: rotator}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Analyze(ctx context.Context, req Request) (*Response, error) {
	cfg := openai.DefaultConfig(p.rotator.Next())
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img.DataURI()},
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: req.Prompt,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", domain.ErrMalformedResponse, p.name)
	}

	return &Response{
		Text: resp.Choices[0].Message.Content,
		Usage: domain.Usage{
			Provider:     p.name,
			PromptTokens: resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
