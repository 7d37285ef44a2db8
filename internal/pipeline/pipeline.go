// Package pipeline stitches acquisition, frame sampling, vision
// analysis and parsing into one end-to-end recipe extraction run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aizhuhelper/recipevision/internal/domain"
	"github.com/aizhuhelper/recipevision/internal/extractor"
	"github.com/aizhuhelper/recipevision/internal/llm"
	"github.com/aizhuhelper/recipevision/pkg/ffmpeg"
)

// Acquirer fetches remote media into a local directory.
type Acquirer interface {
	Download(ctx context.Context, url, outputDir string) (*domain.DownloadResult, error)
}

// StreamResolver resolves a direct stream URL without downloading.
type StreamResolver interface {
	ResolveStream(ctx context.Context, url string) (*domain.StreamInfo, error)
}

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, videoPath string) (*ffmpeg.MediaInfo, error)
}

// FrameSampler produces ordered frame files from a local video or a
// remote stream URL.
type FrameSampler interface {
	Sample(ctx context.Context, strategy extractor.Strategy, videoPath, outputDir string, durationSeconds float64, targetCount int) ([]string, error)
	SampleStream(ctx context.Context, streamURL, outputDir string, durationSeconds float64, targetCount int) ([]string, error)
}

// VisionAnalyzer runs frames through the provider chain.
type VisionAnalyzer interface {
	AnalyzeFrames(ctx context.Context, framePaths []string, priorJSON string, analyzedFrames []int) (*llm.Response, error)
}

// RecipeParser decodes raw model output.
type RecipeParser interface {
	ParseRecipe(raw string) (*domain.Recipe, error)
}

// Rehoster republishes a CDN thumbnail URL through our storage.
type Rehoster interface {
	Rehost(ctx context.Context, thumbnailURL string) (string, error)
}

// CoverFetcher downloads a CDN thumbnail into a local directory so the
// cover image can lead the analysis frame set.
type CoverFetcher interface {
	Fetch(ctx context.Context, thumbnailURL, destDir string) (string, error)
}

// Uploader publishes a local image file.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// FrameGrabber extracts one frame at a timestamp. Used for the
// last-resort thumbnail when the platform provides none.
type FrameGrabber interface {
	ExtractFrameAt(ctx context.Context, videoPath string, timestamp float64, outputPath string, quality int) error
}

// Request describes one extraction run. AnalyzedFrames lists 1-based
// frame indices a previous pass already covered; Streaming asks for
// extraction straight off the stream URL, falling back to a full
// download when resolution fails.
type Request struct {
	URL            string
	Cleanup        bool
	Mode           extractor.Mode
	Strategy       extractor.Strategy
	FrameCount     int
	Streaming      bool
	PriorRecipe    *domain.Recipe
	AnalyzedFrames []int
}

// VideoInfo summarizes the analyzed media.
type VideoInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	FileSizeBytes   int64   `json:"file_size_bytes"`
	FramesExtracted int     `json:"frames_extracted"`
	FramesAnalyzed  int     `json:"frames_analyzed"`
}

// Metadata carries run accounting alongside the recipe.
type Metadata struct {
	LLMUsage         domain.Usage `json:"llm_usage"`
	ContentType      string       `json:"content_type"`
	ExtractionMethod string       `json:"extraction_method"`
	VideoInfo        VideoInfo    `json:"video_info"`
}

// Envelope is the complete pipeline response: recipe fields at the top
// level plus run metadata.
type Envelope struct {
	domain.Recipe
	Metadata Metadata `json:"metadata"`
}

// Pipeline owns the collaborators of a run.
type Pipeline struct {
	acquirer Acquirer
	resolver StreamResolver
	prober   Prober
	sampler  FrameSampler
	analyzer VisionAnalyzer
	parser   RecipeParser
	rehoster Rehoster
	fetcher  CoverFetcher
	uploader Uploader
	grabber  FrameGrabber
	baseDir  string
	logger   *slog.Logger
}

// Options wires the pipeline. Resolver, Rehoster, Fetcher, Uploader and
// Grabber are optional; without them streaming extraction, thumbnail
// publishing and the leading cover image are skipped respectively.
type Options struct {
	Acquirer Acquirer
	Resolver StreamResolver
	Prober   Prober
	Sampler  FrameSampler
	Analyzer VisionAnalyzer
	Parser   RecipeParser
	Rehoster Rehoster
	Fetcher  CoverFetcher
	Uploader Uploader
	Grabber  FrameGrabber
	BaseDir  string
	Logger   *slog.Logger
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		acquirer: opts.Acquirer,
		resolver: opts.Resolver,
		prober:   opts.Prober,
		sampler:  opts.Sampler,
		analyzer: opts.Analyzer,
		parser:   opts.Parser,
		rehoster: opts.Rehoster,
		fetcher:  opts.Fetcher,
		uploader: opts.Uploader,
		grabber:  opts.Grabber,
		baseDir:  opts.BaseDir,
		logger:   opts.Logger.With("component", "pipeline"),
	}
}

// Analyze runs the full URL pipeline: download, sample, analyze, parse.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*Envelope, error) {
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidURL, req.URL)
	}

	ws, err := NewWorkspace(p.baseDir, p.logger)
	if err != nil {
		return nil, domain.NewPipelineError("workspace", err)
	}
	if req.Cleanup {
		defer ws.Release()
	}

	p.logger.Info("pipeline started", "url", req.URL, "workspace", ws.Path())

	if req.Streaming && p.resolver != nil {
		env, err := p.analyzeStream(ctx, req, ws)
		if err == nil {
			return env, nil
		}
		p.logger.Warn("streaming extraction failed, falling back to download",
			"url", req.URL, "error", err)
	}

	result, err := p.acquirer.Download(ctx, req.URL, ws.Path())
	if err != nil {
		return nil, domain.NewPipelineError("download", err)
	}

	if result.IsCarousel() {
		return p.analyzeCarousel(ctx, req, result)
	}
	return p.analyzeVideo(ctx, req, ws, result)
}

// analyzeCarousel treats downloaded photos directly as the frame set.
func (p *Pipeline) analyzeCarousel(ctx context.Context, req Request, result *domain.DownloadResult) (*Envelope, error) {
	p.logger.Info("analyzing photo carousel", "photos", len(result.PhotoPaths))

	var totalSize int64
	for _, path := range result.PhotoPaths {
		if info, err := os.Stat(path); err == nil {
			totalSize += info.Size()
		}
	}

	recipe, usage, err := p.analyzeFrames(ctx, result.PhotoPaths, req)
	if err != nil {
		return nil, err
	}

	recipe.ThumbnailURL = p.publishThumbnail(ctx, result.ThumbnailURL, result.PhotoPaths[0])
	return &Envelope{
		Recipe: *recipe,
		Metadata: Metadata{
			LLMUsage:         usage,
			ContentType:      "photo_carousel",
			ExtractionMethod: "carousel",
			VideoInfo: VideoInfo{
				FileSizeBytes:   totalSize,
				FramesExtracted: len(result.PhotoPaths),
				FramesAnalyzed:  len(result.PhotoPaths),
			},
		},
	}, nil
}

// analyzeVideo probes the download, budgets a frame count when the
// request leaves it open, samples and analyzes.
func (p *Pipeline) analyzeVideo(ctx context.Context, req Request, ws *Workspace, result *domain.DownloadResult) (*Envelope, error) {
	info, err := p.prober.Probe(ctx, result.VideoPath)
	if err != nil {
		return nil, domain.NewPipelineError("probe", err)
	}

	frameCount := req.FrameCount
	if frameCount <= 0 {
		frameCount = extractor.PlanFrameCount(int(info.Duration), req.Mode)
		p.logger.Info("frame count planned",
			"duration", info.Duration, "mode", string(req.Mode), "frames", frameCount)
	}

	framesDir, err := ws.Dir("frames")
	if err != nil {
		return nil, domain.NewPipelineError("workspace", err)
	}

	frames, err := p.sampler.Sample(ctx, req.Strategy, result.VideoPath, framesDir, info.Duration, frameCount)
	if err != nil {
		return nil, domain.NewPipelineError("extract", err)
	}

	// The process prompt treats the first image as the finished-dish
	// cover, so the platform thumbnail leads the frame set when we can
	// fetch it. Sampled frames alone otherwise.
	analysisFrames := frames
	if cover := p.fetchCover(ctx, result.ThumbnailURL, ws); cover != "" {
		analysisFrames = append([]string{cover}, frames...)
	}

	recipe, usage, err := p.analyzeFrames(ctx, analysisFrames, req)
	if err != nil {
		return nil, err
	}

	thumbSource := frames[0]
	if cover := p.grabCover(ctx, result.VideoPath, ws); cover != "" {
		thumbSource = cover
	}
	recipe.ThumbnailURL = p.publishThumbnail(ctx, result.ThumbnailURL, thumbSource)

	return &Envelope{
		Recipe: *recipe,
		Metadata: Metadata{
			LLMUsage:         usage,
			ContentType:      "video",
			ExtractionMethod: string(req.Strategy),
			VideoInfo: VideoInfo{
				DurationSeconds: info.Duration,
				FileSizeBytes:   info.SizeB,
				FramesExtracted: len(frames),
				FramesAnalyzed:  len(analysisFrames),
			},
		},
	}, nil
}

// analyzeStream extracts frames straight off the resolved stream URL,
// skipping the download. Frame budget and analysis work as in the
// download path; the extraction method is reported as "streaming".
func (p *Pipeline) analyzeStream(ctx context.Context, req Request, ws *Workspace) (*Envelope, error) {
	stream, err := p.resolver.ResolveStream(ctx, req.URL)
	if err != nil {
		return nil, domain.NewPipelineError("resolve", err)
	}

	frameCount := req.FrameCount
	if frameCount <= 0 {
		frameCount = extractor.PlanFrameCount(int(stream.DurationSeconds), req.Mode)
	}

	framesDir, err := ws.Dir("frames")
	if err != nil {
		return nil, domain.NewPipelineError("workspace", err)
	}

	frames, err := p.sampler.SampleStream(ctx, stream.URL, framesDir, stream.DurationSeconds, frameCount)
	if err != nil {
		return nil, domain.NewPipelineError("extract", err)
	}

	analysisFrames := frames
	if cover := p.fetchCover(ctx, stream.ThumbnailURL, ws); cover != "" {
		analysisFrames = append([]string{cover}, frames...)
	}

	recipe, usage, err := p.analyzeFrames(ctx, analysisFrames, req)
	if err != nil {
		return nil, err
	}

	recipe.ThumbnailURL = p.publishThumbnail(ctx, stream.ThumbnailURL, frames[0])

	return &Envelope{
		Recipe: *recipe,
		Metadata: Metadata{
			LLMUsage:         usage,
			ContentType:      "video",
			ExtractionMethod: "streaming",
			VideoInfo: VideoInfo{
				DurationSeconds: stream.DurationSeconds,
				FramesExtracted: len(frames),
				FramesAnalyzed:  len(analysisFrames),
			},
		},
	}, nil
}

// fetchCover downloads the platform thumbnail into the workspace so it
// can lead the analysis frame set. Empty on any failure.
func (p *Pipeline) fetchCover(ctx context.Context, thumbnailURL string, ws *Workspace) string {
	if p.fetcher == nil || thumbnailURL == "" {
		return ""
	}
	path, err := p.fetcher.Fetch(ctx, thumbnailURL, ws.Path())
	if err != nil {
		p.logger.Warn("cover fetch failed, analyzing sampled frames only",
			"url", thumbnailURL, "error", err)
		return ""
	}
	return path
}

// AnalyzeFile runs the pipeline over an already-local upload. Images
// are analyzed as a single frame; videos go through probe and sampling.
func (p *Pipeline) AnalyzeFile(ctx context.Context, filePath string, isImage bool, req Request) (*Envelope, error) {
	ws, err := NewWorkspace(p.baseDir, p.logger)
	if err != nil {
		return nil, domain.NewPipelineError("workspace", err)
	}
	if req.Cleanup {
		defer ws.Release()
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, domain.NewPipelineError("input", err)
	}

	if isImage {
		recipe, usage, err := p.analyzeFrames(ctx, []string{filePath}, req)
		if err != nil {
			return nil, err
		}
		recipe.ThumbnailURL = p.publishThumbnail(ctx, "", filePath)
		return &Envelope{
			Recipe: *recipe,
			Metadata: Metadata{
				LLMUsage:         usage,
				ContentType:      "image",
				ExtractionMethod: "single_image",
				VideoInfo: VideoInfo{
					FileSizeBytes:   info.Size(),
					FramesExtracted: 1,
					FramesAnalyzed:  1,
				},
			},
		}, nil
	}

	result := &domain.DownloadResult{VideoPath: filePath}
	return p.analyzeVideo(ctx, req, ws, result)
}

// Supplement re-extracts a previously analyzed URL at the
// highest-fidelity strategy and feeds the prior recipe back to the
// model, enriching the result without discarding earlier work.
// analyzedFrames lists frame indices the first pass already covered so
// the model focuses on the rest.
func (p *Pipeline) Supplement(ctx context.Context, url string, analyzedFrames []int, prior *domain.Recipe) (*Envelope, error) {
	return p.Analyze(ctx, Request{
		URL:            url,
		Cleanup:        true,
		Mode:           extractor.ModeAccurate,
		Strategy:       extractor.StrategyHybrid,
		PriorRecipe:    prior,
		AnalyzedFrames: analyzedFrames,
	})
}

// analyzeFrames runs the vision chain and parses the result.
func (p *Pipeline) analyzeFrames(ctx context.Context, frames []string, req Request) (*domain.Recipe, domain.Usage, error) {
	if len(frames) == 0 {
		return nil, domain.Usage{}, domain.NewPipelineError("extract", domain.ErrNoFrames)
	}

	priorJSON := ""
	if req.PriorRecipe != nil {
		data, err := json.Marshal(req.PriorRecipe)
		if err != nil {
			return nil, domain.Usage{}, domain.NewPipelineError("analyze", err)
		}
		priorJSON = string(data)
	}

	resp, err := p.analyzer.AnalyzeFrames(ctx, frames, priorJSON, req.AnalyzedFrames)
	if err != nil {
		return nil, domain.Usage{}, domain.NewPipelineError("analyze", err)
	}

	recipe, err := p.parser.ParseRecipe(resp.Text)
	if err != nil {
		return nil, domain.Usage{}, domain.NewPipelineError("parse", err)
	}

	p.logger.Info("recipe extracted", "name", recipe.Name, "provider", resp.Usage.Provider)
	return recipe, resp.Usage, nil
}

// grabCover extracts a frame one second in as a thumbnail source.
// Returns empty on any failure; the caller falls back to the first
// sampled frame.
func (p *Pipeline) grabCover(ctx context.Context, videoPath string, ws *Workspace) string {
	if p.grabber == nil {
		return ""
	}
	cover := filepath.Join(ws.Path(), "cover.jpg")
	if err := p.grabber.ExtractFrameAt(ctx, videoPath, 1.0, cover, 2); err != nil {
		p.logger.Warn("cover frame extraction failed", "error", err)
		return ""
	}
	return cover
}

// publishThumbnail picks the best available thumbnail and republishes
// it. Failures degrade: rehost failure keeps the CDN URL, upload
// failure yields no thumbnail. Neither ever fails the run.
func (p *Pipeline) publishThumbnail(ctx context.Context, cdnURL, localFallback string) string {
	if cdnURL != "" {
		if p.rehoster == nil {
			return cdnURL
		}
		hosted, err := p.rehoster.Rehost(ctx, cdnURL)
		if err != nil {
			p.logger.Warn("thumbnail rehost failed, keeping source URL",
				"url", cdnURL, "error", err)
			return cdnURL
		}
		return hosted
	}

	if p.uploader == nil || localFallback == "" {
		return ""
	}
	hosted, err := p.uploader.Upload(ctx, localFallback)
	if err != nil {
		p.logger.Warn("thumbnail upload failed", "path", localFallback, "error", err)
		return ""
	}
	return hosted
}

// IsImageFile reports whether an upload is an image by content type or
// filename extension.
func IsImageFile(contentType, filename string) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	lower := strings.ToLower(filename)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
