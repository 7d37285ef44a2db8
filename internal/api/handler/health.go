package handler

import (
	"encoding/json"
	"net/http"
	"os/exec"
	"time"

	"github.com/aizhuhelper/recipevision/internal/config"
	"github.com/aizhuhelper/recipevision/pkg/ffmpeg"
)

var startTime = time.Now()

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	cfg     config.Config
	version string
}

func NewHealthHandler(cfg config.Config, version string) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: version}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	UptimeSec int64  `json:"uptime_seconds"`
	Timestamp string `json:"timestamp"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Version:   h.version,
		UptimeSec: int64(time.Since(startTime).Seconds()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyResponse reports per-dependency readiness.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready handles GET /ready - readiness probe. Verifies the external
// tools and at least one LLM key are present.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"ffmpeg":    "ok",
		"ytdlp":     "ok",
		"gallerydl": "ok",
		"llm_keys":  "ok",
	}

	if !ffmpeg.IsAvailable() {
		checks["ffmpeg"] = "missing"
	}
	if _, err := exec.LookPath(h.cfg.Download.YtDlpPath); err != nil {
		checks["ytdlp"] = "missing"
	}
	if _, err := exec.LookPath(h.cfg.Download.GalleryDlPath); err != nil {
		checks["gallerydl"] = "missing"
	}
	if !h.cfg.LLM.HasAnyKey() {
		checks["llm_keys"] = "missing"
	}

	status := "ready"
	code := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = "not_ready"
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ReadyResponse{Status: status, Checks: checks})
}
