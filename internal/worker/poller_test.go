package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aizhuhelper/recipevision/internal/domain"
	"github.com/aizhuhelper/recipevision/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (f *fakeRunner) Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, req.URL)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Envelope{Recipe: domain.Recipe{Name: "菜"}}, nil
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// backendScript serves the failed-jobs feed and records submissions.
type backendScript struct {
	mu          sync.Mutex
	jobs        []Job
	submissions []string
	fetches     int
}

func (b *backendScript) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analysis/failed", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.fetches++
		json.NewEncoder(w).Encode(map[string]interface{}{"jobs": b.jobs})
	})
	mux.HandleFunc("/v1/analysis/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.submissions = append(b.submissions, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (b *backendScript) submitted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.submissions...)
}

func newTestPoller(backendURL string, runner JobRunner) *Poller {
	return New(Config{
		BackendURL:   backendURL,
		PollInterval: 10 * time.Millisecond,
		JobLimit:     3,
	}, runner, testLogger())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPollerProcessesAndSubmits(t *testing.T) {
	backend := &backendScript{jobs: []Job{{JobID: "job-1", VideoURL: "https://x.test/v1"}}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	runner := &fakeRunner{}
	p := newTestPoller(srv.URL, runner)
	p.Start()
	defer p.Stop(time.Second)

	waitFor(t, 2*time.Second, func() bool { return len(backend.submitted()) > 0 })

	if got := backend.submitted()[0]; got != "/v1/analysis/job-1/result" {
		t.Errorf("submission path = %q", got)
	}
	if calls := runner.calls(); len(calls) == 0 || calls[0] != "https://x.test/v1" {
		t.Errorf("runner calls = %v", calls)
	}
}

func TestPollerSilentFailureSkipsRetriedJob(t *testing.T) {
	backend := &backendScript{jobs: []Job{{JobID: "job-bad", VideoURL: "https://x.test/bad"}}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	runner := &fakeRunner{err: errors.New("analysis blew up")}
	p := newTestPoller(srv.URL, runner)
	p.Start()
	defer p.Stop(time.Second)

	// Wait until the job failed once and at least two more polls happened.
	waitFor(t, 2*time.Second, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.fetches >= 3 && len(runner.calls()) >= 1
	})

	if got := len(runner.calls()); got != 1 {
		t.Errorf("runner called %d times, want exactly 1 (silent skip after failure)", got)
	}
	if got := len(backend.submitted()); got != 0 {
		t.Errorf("submissions = %d, want 0 (failures are never reported)", got)
	}
}

func TestPollerEmptyURLMarkedFailed(t *testing.T) {
	backend := &backendScript{jobs: []Job{{JobID: "job-nourl"}}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	runner := &fakeRunner{}
	p := newTestPoller(srv.URL, runner)
	p.Start()
	defer p.Stop(time.Second)

	waitFor(t, 2*time.Second, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.fetches >= 2
	})

	if got := len(runner.calls()); got != 0 {
		t.Errorf("runner called %d times for job without url", got)
	}
}

func TestPollerResetClearsFailures(t *testing.T) {
	backend := &backendScript{jobs: []Job{{JobID: "job-1", VideoURL: "https://x.test/v"}}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	runner := &fakeRunner{err: errors.New("fails")}
	p := New(Config{
		BackendURL:    srv.URL,
		PollInterval:  10 * time.Millisecond,
		JobLimit:      3,
		ResetInterval: 50 * time.Millisecond,
	}, runner, testLogger())
	p.Start()
	defer p.Stop(time.Second)

	// After the reset window elapses the same job is retried again.
	waitFor(t, 2*time.Second, func() bool { return len(runner.calls()) >= 2 })
}

func TestPollerStop(t *testing.T) {
	backend := &backendScript{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	p := newTestPoller(srv.URL, &fakeRunner{})
	p.Start()

	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}
