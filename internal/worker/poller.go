// Package worker implements the active-mode poller: it pulls failed
// analysis jobs from the backend, re-runs them through the pipeline,
// and pushes results back. Jobs that fail their one retry are tracked
// locally and silently skipped until a periodic reset.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aizhuhelper/recipevision/internal/pipeline"
)

// ErrShutdownTimeout is returned when the poller doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("worker shutdown timed out")

// Job is one failed analysis handed back by the backend.
type Job struct {
	JobID    string `json:"job_id"`
	VideoURL string `json:"video_url"`
}

// JobRunner is the pipeline surface the poller needs.
type JobRunner interface {
	Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Envelope, error)
}

// Config holds poller configuration.
type Config struct {
	BackendURL    string
	PollInterval  time.Duration
	JobLimit      int
	ResetInterval time.Duration
}

// Poller polls the backend for failed jobs and retries them serially.
type Poller struct {
	cfg    Config
	runner JobRunner
	client *http.Client
	logger *slog.Logger

	// failed tracks jobs whose retry already failed; they are skipped
	// silently until the next reset so one bad video cannot loop forever.
	failed    map[string]struct{}
	lastReset time.Time

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, runner JobRunner, logger *slog.Logger) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.JobLimit <= 0 {
		cfg.JobLimit = 3
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cfg:       cfg,
		runner:    runner,
		client:    &http.Client{Timeout: 5 * time.Minute},
		logger:    logger.With("component", "worker"),
		failed:    make(map[string]struct{}),
		lastReset: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the poll loop.
func (p *Poller) Start() {
	p.logger.Info("starting active-mode poller",
		"backend", p.cfg.BackendURL, "interval", p.cfg.PollInterval)

	p.wg.Add(1)
	go p.run()
}

// Stop cancels the loop and waits for the in-flight job to finish.
func (p *Poller) Stop(timeout time.Duration) error {
	p.logger.Info("stopping active-mode poller")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	p.maybeReset()

	jobs, err := p.fetchJobs()
	if err != nil {
		p.logger.Error("failed to fetch jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		p.logger.Debug("no failed jobs")
		return
	}

	p.logger.Info("fetched failed jobs", "count", len(jobs), "tracked_failures", len(p.failed))

	for _, job := range jobs {
		if p.ctx.Err() != nil {
			return
		}
		if _, done := p.failed[job.JobID]; done {
			p.logger.Info("skipping job, retry already failed", "job_id", job.JobID)
			continue
		}
		p.process(job)
	}
}

// maybeReset clears the failure set periodically so permanently stuck
// jobs get a fresh chance after backend-side fixes.
func (p *Poller) maybeReset() {
	if time.Since(p.lastReset) < p.cfg.ResetInterval {
		return
	}
	p.logger.Info("resetting tracked failures", "count", len(p.failed))
	p.failed = make(map[string]struct{})
	p.lastReset = time.Now()
}

func (p *Poller) fetchJobs() ([]Job, error) {
	url := fmt.Sprintf("%s/v1/analysis/failed?limit=%d",
		strings.TrimSuffix(p.cfg.BackendURL, "/"), p.cfg.JobLimit)

	req, err := http.NewRequestWithContext(p.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Jobs []Job `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	return payload.Jobs, nil
}

// process retries one job. Every failure path is silent: the job is
// marked locally and never reported back.
func (p *Poller) process(job Job) {
	if job.VideoURL == "" {
		p.logger.Error("job has no video url, skipping silently", "job_id", job.JobID)
		p.failed[job.JobID] = struct{}{}
		return
	}

	p.logger.Info("processing job", "job_id", job.JobID, "url", job.VideoURL)

	env, err := p.runner.Analyze(p.ctx, pipeline.Request{
		URL:     job.VideoURL,
		Cleanup: true,
	})
	if err != nil {
		p.logger.Error("job processing failed silently", "job_id", job.JobID, "error", err)
		p.failed[job.JobID] = struct{}{}
		return
	}

	if err := p.submitResult(job.JobID, env); err != nil {
		p.logger.Error("result submission failed silently", "job_id", job.JobID, "error", err)
		p.failed[job.JobID] = struct{}{}
		return
	}
	p.logger.Info("job completed", "job_id", job.JobID)
}

func (p *Poller) submitResult(jobID string, env *pipeline.Envelope) error {
	payload := map[string]interface{}{
		"recipe":   env,
		"metadata": env.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/analysis/%s/result",
		strings.TrimSuffix(p.cfg.BackendURL, "/"), jobID)
	req, err := http.NewRequestWithContext(p.ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return nil
}
