package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aizhuhelper/recipevision/internal/domain"
	"github.com/aizhuhelper/recipevision/internal/extractor"
	"github.com/aizhuhelper/recipevision/internal/pipeline"
)

// maxUploadBytes caps uploaded media at 500 MB.
const maxUploadBytes = 500 << 20

// Analyzer is the pipeline surface the handler needs.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Envelope, error)
	AnalyzeFile(ctx context.Context, filePath string, isImage bool, req pipeline.Request) (*pipeline.Envelope, error)
	Supplement(ctx context.Context, url string, analyzedFrames []int, prior *domain.Recipe) (*pipeline.Envelope, error)
}

// AnalyzeHandler serves the recipe extraction endpoints.
type AnalyzeHandler struct {
	analyzer Analyzer
	tempDir  string
	logger   *slog.Logger
}

func NewAnalyzeHandler(analyzer Analyzer, tempDir string, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// FromURL handles POST /api/v1/analyze-from-url. Accepts form or JSON
// with the video URL and optional extraction tuning.
func (h *AnalyzeHandler) FromURL(w http.ResponseWriter, r *http.Request) {
	var params struct {
		VideoURL   string `json:"video_url"`
		FrameCount int    `json:"frame_count"`
		Mode       string `json:"extraction_mode"`
		Strategy   string `json:"strategy"`
		Streaming  bool   `json:"streaming"`
	}

	// Prefix match so "application/json; charset=utf-8" still decodes
	// as JSON.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		params.VideoURL = r.PostFormValue("video_url")
		params.Mode = r.PostFormValue("extraction_mode")
		params.Strategy = r.PostFormValue("strategy")
		if v := r.PostFormValue("frame_count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, "frame_count must be an integer")
				return
			}
			params.FrameCount = n
		}
		if v := r.PostFormValue("streaming"); v != "" {
			params.Streaming, _ = strconv.ParseBool(v)
		}
	}

	if params.VideoURL == "" {
		h.writeError(w, http.StatusBadRequest, "video_url is required")
		return
	}

	h.logger.Info("analyzing from url", "url", params.VideoURL)

	env, err := h.analyzer.Analyze(r.Context(), pipeline.Request{
		URL:        params.VideoURL,
		Cleanup:    true,
		Mode:       extractor.ParseMode(params.Mode),
		Strategy:   extractor.ParseStrategy(params.Strategy),
		FrameCount: params.FrameCount,
		Streaming:  params.Streaming,
	})
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// Upload handles POST /api/v1/analyze. Accepts a multipart upload under
// the "video" field; images are analyzed as a single frame.
func (h *AnalyzeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("video")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	isImage := pipeline.IsImageFile(header.Header.Get("Content-Type"), header.Filename)
	localPath, err := h.saveUpload(file, header.Filename, isImage)
	if err != nil {
		h.logger.Error("failed to save upload", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}
	defer func() {
		if err := os.Remove(localPath); err != nil {
			h.logger.Warn("failed to remove upload", "path", localPath, "error", err)
		}
	}()

	h.logger.Info("analyzing upload",
		"filename", header.Filename, "size", header.Size, "image", isImage)

	env, err := h.analyzer.AnalyzeFile(r.Context(), localPath, isImage, pipeline.Request{Cleanup: true})
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// SupplementRequest asks for incremental reanalysis of a URL with a
// previously extracted recipe as context. AnalyzedFrames lists 1-based
// frame indices the first pass already covered.
type SupplementRequest struct {
	VideoURL       string         `json:"video_url"`
	AnalyzedFrames []int          `json:"analyzed_frames"`
	Recipe         *domain.Recipe `json:"recipe"`
}

// Supplement handles POST /api/v1/analyze/supplement.
func (h *AnalyzeHandler) Supplement(w http.ResponseWriter, r *http.Request) {
	var req SupplementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VideoURL == "" {
		h.writeError(w, http.StatusBadRequest, "video_url is required")
		return
	}
	if req.Recipe == nil {
		h.writeError(w, http.StatusBadRequest, "recipe is required")
		return
	}

	env, err := h.analyzer.Supplement(r.Context(), req.VideoURL, req.AnalyzedFrames, req.Recipe)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

func (h *AnalyzeHandler) saveUpload(src io.Reader, filename string, isImage bool) (string, error) {
	ext := ".mp4"
	if isImage {
		ext = ".jpg"
		if filepath.Ext(filename) != "" {
			ext = filepath.Ext(filename)
		}
	}
	if err := os.MkdirAll(h.tempDir, 0755); err != nil {
		return "", err
	}
	localPath := filepath.Join(h.tempDir, fmt.Sprintf("upload_%s%s", uuid.NewString()[:8], ext))

	dst, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(localPath)
		return "", err
	}
	return localPath, nil
}

// writeAnalysisError maps the error taxonomy onto HTTP statuses:
// caller mistakes are 400, permanently unprocessable content is 422,
// transient failures are 503, everything else is 500.
func (h *AnalyzeHandler) writeAnalysisError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrInvalidURL), errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsPermanent(err):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case domain.IsRetryable(err):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("analysis failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *AnalyzeHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *AnalyzeHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
