package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aizhuhelper/recipevision/internal/domain"
	"github.com/aizhuhelper/recipevision/internal/pipeline"
)

type fakeAnalyzer struct {
	env *pipeline.Envelope
	err error

	gotReq      pipeline.Request
	gotFile     string
	gotIsImage  bool
	gotPrior    *domain.Recipe
	gotAnalyzed []int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Envelope, error) {
	f.gotReq = req
	return f.env, f.err
}

func (f *fakeAnalyzer) AnalyzeFile(ctx context.Context, filePath string, isImage bool, req pipeline.Request) (*pipeline.Envelope, error) {
	f.gotFile = filePath
	f.gotIsImage = isImage
	return f.env, f.err
}

func (f *fakeAnalyzer) Supplement(ctx context.Context, url string, analyzedFrames []int, prior *domain.Recipe) (*pipeline.Envelope, error) {
	f.gotAnalyzed = analyzedFrames
	f.gotPrior = prior
	return f.env, f.err
}

func testEnvelope() *pipeline.Envelope {
	return &pipeline.Envelope{
		Recipe: domain.Recipe{
			Name:        "測試菜",
			Ingredients: []domain.Ingredient{{Name: "鹽"}},
			Steps:       []domain.Step{{StepNumber: 1, Description: "炒"}},
		},
		Metadata: pipeline.Metadata{ContentType: "video"},
	}
}

func newTestHandler(t *testing.T, fake *fakeAnalyzer) *AnalyzeHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAnalyzeHandler(fake, t.TempDir(), logger)
}

func TestFromURLForm(t *testing.T) {
	fake := &fakeAnalyzer{env: testEnvelope()}
	h := newTestHandler(t, fake)

	form := url.Values{}
	form.Set("video_url", "https://www.youtube.com/watch?v=abc")
	form.Set("extraction_mode", "accurate")
	form.Set("strategy", "hybrid")
	form.Set("frame_count", "20")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-from-url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.FromURL(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if fake.gotReq.URL != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("url = %q", fake.gotReq.URL)
	}
	if string(fake.gotReq.Mode) != "accurate" || string(fake.gotReq.Strategy) != "hybrid" {
		t.Errorf("mode = %s, strategy = %s", fake.gotReq.Mode, fake.gotReq.Strategy)
	}
	if fake.gotReq.FrameCount != 20 {
		t.Errorf("frame count = %d", fake.gotReq.FrameCount)
	}
	if !fake.gotReq.Cleanup {
		t.Error("cleanup should default on for API runs")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["name"] != "測試菜" {
		t.Errorf("recipe name = %v", body["name"])
	}
	if _, ok := body["metadata"]; !ok {
		t.Error("response missing metadata")
	}
}

func TestFromURLJSON(t *testing.T) {
	fake := &fakeAnalyzer{env: testEnvelope()}
	h := newTestHandler(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-from-url",
		strings.NewReader(`{"video_url":"https://x.test/v","frame_count":8}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.FromURL(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fake.gotReq.FrameCount != 8 {
		t.Errorf("frame count = %d", fake.gotReq.FrameCount)
	}
}

func TestFromURLJSONWithCharset(t *testing.T) {
	fake := &fakeAnalyzer{env: testEnvelope()}
	h := newTestHandler(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-from-url",
		strings.NewReader(`{"video_url":"https://x.test/v"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	h.FromURL(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, charset parameter must not break JSON decoding", w.Code)
	}
	if fake.gotReq.URL != "https://x.test/v" {
		t.Errorf("url = %q", fake.gotReq.URL)
	}
}

func TestFromURLStreamingFlag(t *testing.T) {
	fake := &fakeAnalyzer{env: testEnvelope()}
	h := newTestHandler(t, fake)

	form := url.Values{}
	form.Set("video_url", "https://x.test/v")
	form.Set("streaming", "true")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-from-url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.FromURL(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !fake.gotReq.Streaming {
		t.Error("streaming flag not threaded into the request")
	}
}

func TestFromURLMissingURL(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{env: testEnvelope()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-from-url", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.FromURL(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestFromURLErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid url", err: domain.ErrInvalidURL, want: http.StatusBadRequest},
		{name: "validation", err: &domain.ValidationError{Field: "name", Reason: "missing"}, want: http.StatusBadRequest},
		{name: "content unavailable", err: domain.ErrContentUnavailable, want: http.StatusUnprocessableEntity},
		{name: "auth required", err: domain.ErrAuthRequired, want: http.StatusUnprocessableEntity},
		{name: "rate limited", err: domain.ErrRateLimited, want: http.StatusServiceUnavailable},
		{name: "stale credentials", err: domain.ErrStaleCredentials, want: http.StatusServiceUnavailable},
		{name: "providers exhausted", err: domain.ErrProvidersExhausted, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &fakeAnalyzer{err: domain.NewPipelineError("download", tt.err)})

			form := url.Values{"video_url": {"https://x.test/v"}}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-from-url", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			h.FromURL(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadVideo(t *testing.T) {
	fake := &fakeAnalyzer{env: testEnvelope()}
	h := newTestHandler(t, fake)

	body, contentType := multipartBody(t, "video", "cooking.mp4", []byte("video-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if fake.gotIsImage {
		t.Error("mp4 upload detected as image")
	}
	if !strings.HasSuffix(fake.gotFile, ".mp4") {
		t.Errorf("saved path = %q", fake.gotFile)
	}
}

func TestUploadImageDetection(t *testing.T) {
	fake := &fakeAnalyzer{env: testEnvelope()}
	h := newTestHandler(t, fake)

	body, contentType := multipartBody(t, "video", "dish.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !fake.gotIsImage {
		t.Error("png upload not detected as image")
	}
}

func TestUploadMissingFile(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{env: testEnvelope()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(""))
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSupplement(t *testing.T) {
	fake := &fakeAnalyzer{env: testEnvelope()}
	h := newTestHandler(t, fake)

	payload := `{"video_url":"https://x.test/v","analyzed_frames":[1,2,4],"recipe":{"name":"紅燒肉","ingredients":[],"steps":[]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/supplement", strings.NewReader(payload))
	w := httptest.NewRecorder()
	h.Supplement(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fake.gotPrior == nil || fake.gotPrior.Name != "紅燒肉" {
		t.Errorf("prior = %+v", fake.gotPrior)
	}
	if len(fake.gotAnalyzed) != 3 || fake.gotAnalyzed[2] != 4 {
		t.Errorf("analyzed frames = %v, want [1 2 4]", fake.gotAnalyzed)
	}
}

func TestSupplementMissingRecipe(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{env: testEnvelope()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/supplement",
		strings.NewReader(`{"video_url":"https://x.test/v"}`))
	w := httptest.NewRecorder()
	h.Supplement(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
