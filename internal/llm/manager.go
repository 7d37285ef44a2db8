package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aizhuhelper/recipevision/internal/config"
	"github.com/aizhuhelper/recipevision/internal/domain"
	"github.com/aizhuhelper/recipevision/pkg/retry"
)

// Manager walks an ordered provider chain until one of them produces an
// answer. Providers without configured keys are skipped at build time.
type Manager struct {
	providers []Provider
	retryCfg  retry.Config
	logger    *slog.Logger
}

// NewManager builds the provider chain from the configured priority
// order. Returns ErrNoProviders when no provider has a usable key.
func NewManager(cfg config.LLMConfig, logger *slog.Logger) (*Manager, error) {
	rotators := map[string]*KeyRotator{
		"gemini": NewKeyRotator(config.Keys(cfg.GeminiKeys)),
		"grok":   NewKeyRotator(config.Keys(cfg.GrokKeys)),
		"openai": NewKeyRotator(config.Keys(cfg.OpenAIKeys)),
	}

	var providers []Provider
	for _, name := range strings.Split(cfg.ProviderPriority, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		rotator := rotators[name]
		if rotator == nil {
			continue
		}
		switch name {
		case "gemini":
			providers = append(providers, NewGeminiProvider(cfg.GeminiModel, rotator))
		case "grok":
			providers = append(providers, NewGrokProvider(cfg.GrokModel, cfg.GrokBaseURL, rotator))
		case "openai":
			providers = append(providers, NewOpenAIProvider(cfg.OpenAIModel, rotator))
		}
	}
	if len(providers) == 0 {
		return nil, domain.ErrNoProviders
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	logger.Info("llm provider chain built", "providers", names)

	return &Manager{
		providers: providers,
		retryCfg: retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.RetryDelay,
			MaxDelay:      cfg.MaxRetryDelay,
			BackoffFactor: 2.0,
		},
		logger: logger.With("component", "llm"),
	}, nil
}

// NewManagerWithProviders wires an explicit chain. Used by tests and by
// callers that build providers themselves.
func NewManagerWithProviders(providers []Provider, retryCfg retry.Config, logger *slog.Logger) *Manager {
	return &Manager{providers: providers, retryCfg: retryCfg, logger: logger.With("component", "llm")}
}

// Providers reports the chain order by name.
func (m *Manager) Providers() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// Analyze tries each provider in priority order, retrying transient
// failures per provider before falling through to the next one. The
// chain running dry is ErrProvidersExhausted wrapping the last failure.
func (m *Manager) Analyze(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for _, provider := range m.providers {
		resp, err := retry.Do(ctx, m.retryCfg, func() (*Response, error) {
			return provider.Analyze(ctx, req)
		})
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn("provider failed, falling through",
			"provider", provider.Name(), "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("%w: last provider error: %v", domain.ErrProvidersExhausted, lastErr)
}

// AnalyzeFrames loads frame files, picks the prompt for the frame count
// and prior context, and runs the chain. analyzedFrames lists frame
// indices a previous pass already covered; it only influences the
// reanalysis prompt.
func (m *Manager) AnalyzeFrames(ctx context.Context, framePaths []string, priorJSON string, analyzedFrames []int) (*Response, error) {
	if len(framePaths) == 0 {
		return nil, domain.ErrNoFrames
	}
	images, err := LoadImages(framePaths)
	if err != nil {
		return nil, err
	}
	return m.Analyze(ctx, Request{
		Images: images,
		Prompt: PromptFor(len(images), priorJSON, analyzedFrames),
	})
}
