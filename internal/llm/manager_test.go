package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aizhuhelper/recipevision/internal/config"
	"github.com/aizhuhelper/recipevision/internal/domain"
	"github.com/aizhuhelper/recipevision/pkg/retry"
)

type fakeProvider struct {
	name     string
	failures int
	calls    int
	text     string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Analyze(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New(f.name + " unavailable")
	}
	return &Response{Text: f.text, Usage: domain.Usage{Provider: f.name}}, nil
}

func testRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2.0}
}

func testManagerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerPrimarySuccess(t *testing.T) {
	primary := &fakeProvider{name: "gemini", text: "{}"}
	backup := &fakeProvider{name: "openai", text: "{}"}
	m := NewManagerWithProviders([]Provider{primary, backup}, testRetry(), testManagerLogger())

	resp, err := m.Analyze(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if resp.Usage.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini", resp.Usage.Provider)
	}
	if backup.calls != 0 {
		t.Errorf("backup called %d times, want 0", backup.calls)
	}
}

func TestManagerFallsThroughChain(t *testing.T) {
	primary := &fakeProvider{name: "gemini", failures: 10}
	backup := &fakeProvider{name: "grok", text: "{}"}
	m := NewManagerWithProviders([]Provider{primary, backup}, testRetry(), testManagerLogger())

	resp, err := m.Analyze(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if resp.Usage.Provider != "grok" {
		t.Errorf("provider = %q, want grok", resp.Usage.Provider)
	}
	if primary.calls != 2 {
		t.Errorf("primary attempts = %d, want 2 (retry bound)", primary.calls)
	}
}

func TestManagerRetriesBeforeFallthrough(t *testing.T) {
	flaky := &fakeProvider{name: "gemini", failures: 1, text: "{}"}
	backup := &fakeProvider{name: "openai", text: "{}"}
	m := NewManagerWithProviders([]Provider{flaky, backup}, testRetry(), testManagerLogger())

	resp, err := m.Analyze(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	// Second attempt on the same provider succeeded; no fallthrough.
	if resp.Usage.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini", resp.Usage.Provider)
	}
	if backup.calls != 0 {
		t.Errorf("backup called %d times, want 0", backup.calls)
	}
}

func TestManagerChainExhausted(t *testing.T) {
	a := &fakeProvider{name: "gemini", failures: 10}
	b := &fakeProvider{name: "openai", failures: 10}
	m := NewManagerWithProviders([]Provider{a, b}, testRetry(), testManagerLogger())

	_, err := m.Analyze(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, domain.ErrProvidersExhausted) {
		t.Fatalf("error = %v, want ErrProvidersExhausted", err)
	}
	if !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("exhaustion error should carry last provider failure, got %v", err)
	}
}

func TestNewManagerSkipsKeylessProviders(t *testing.T) {
	cfg := config.LLMConfig{
		GrokKeys:         "grok-key-1,grok-key-2",
		ProviderPriority: "gemini,grok,openai",
		GrokModel:        "grok-2-vision-1212",
		MaxAttempts:      3,
		RetryDelay:       time.Second,
		MaxRetryDelay:    10 * time.Second,
	}

	m, err := NewManager(cfg, testManagerLogger())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	got := m.Providers()
	if len(got) != 1 || got[0] != "grok" {
		t.Errorf("chain = %v, want [grok]", got)
	}
}

func TestNewManagerNoKeysAtAll(t *testing.T) {
	cfg := config.LLMConfig{ProviderPriority: "gemini,grok,openai"}
	if _, err := NewManager(cfg, testManagerLogger()); !errors.Is(err, domain.ErrNoProviders) {
		t.Errorf("error = %v, want ErrNoProviders", err)
	}
}

func TestAnalyzeFramesEmptySet(t *testing.T) {
	m := NewManagerWithProviders([]Provider{&fakeProvider{name: "gemini"}}, testRetry(), testManagerLogger())
	if _, err := m.AnalyzeFrames(context.Background(), nil, "", nil); !errors.Is(err, domain.ErrNoFrames) {
		t.Errorf("error = %v, want ErrNoFrames", err)
	}
}
