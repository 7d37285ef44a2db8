package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Cookies    CookiesConfig    `yaml:"cookies"`
	Download   DownloadConfig   `yaml:"download"`
	Extraction ExtractionConfig `yaml:"extraction"`
	LLM        LLMConfig        `yaml:"llm"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8000"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"10m"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	TempPath string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"/tmp/recipevision"`
}

// CookiesConfig holds the remote credential store configuration.
type CookiesConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"COOKIES_BASE_URL"`
	UserAgent string        `yaml:"user_agent" envconfig:"COOKIES_USER_AGENT" default:"RecipeVision-VideoProcessor/1.0"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"COOKIES_TIMEOUT" default:"15s"`
}

// DownloadConfig holds video acquisition configuration.
type DownloadConfig struct {
	YtDlpPath     string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	GalleryDlPath string        `yaml:"gallerydl_path" envconfig:"GALLERYDL_PATH" default:"gallery-dl"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" envconfig:"DOWNLOAD_PROBE_TIMEOUT" default:"30s"`
	SleepMin      int           `yaml:"sleep_min" envconfig:"DOWNLOAD_SLEEP_MIN" default:"5"`
	SleepMax      int           `yaml:"sleep_max" envconfig:"DOWNLOAD_SLEEP_MAX" default:"10"`
}

// ExtractionConfig holds frame extraction defaults.
type ExtractionConfig struct {
	Strategy       string  `yaml:"strategy" envconfig:"EXTRACTION_STRATEGY" default:"scene"`
	Mode           string  `yaml:"mode" envconfig:"EXTRACTION_MODE" default:"balanced"`
	SceneThreshold float64 `yaml:"scene_threshold" envconfig:"EXTRACTION_SCENE_THRESHOLD" default:"0.4"`
	HybridRatio    float64 `yaml:"hybrid_ratio" envconfig:"EXTRACTION_HYBRID_RATIO" default:"0.7"`
	Quality        int     `yaml:"quality" envconfig:"EXTRACTION_QUALITY" default:"2"`
	MaxFrames      int     `yaml:"max_frames" envconfig:"EXTRACTION_MAX_FRAMES" default:"200"`
}

// LLMConfig holds vision-LLM provider configuration. Key lists are
// comma-separated to allow multiple keys per provider for rotation.
type LLMConfig struct {
	GeminiKeys       string        `yaml:"gemini_keys" envconfig:"GEMINI_API_KEYS"`
	GrokKeys         string        `yaml:"grok_keys" envconfig:"GROK_API_KEYS"`
	OpenAIKeys       string        `yaml:"openai_keys" envconfig:"OPENAI_API_KEYS"`
	ProviderPriority string        `yaml:"provider_priority" envconfig:"LLM_PROVIDER_PRIORITY" default:"gemini,grok,openai"`
	GeminiModel      string        `yaml:"gemini_model" envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash-exp"`
	GrokModel        string        `yaml:"grok_model" envconfig:"GROK_MODEL" default:"grok-2-vision-1212"`
	GrokBaseURL      string        `yaml:"grok_base_url" envconfig:"GROK_BASE_URL" default:"https://api.x.ai/v1"`
	OpenAIModel      string        `yaml:"openai_model" envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	MaxAttempts      int           `yaml:"max_attempts" envconfig:"LLM_MAX_ATTEMPTS" default:"3"`
	RetryDelay       time.Duration `yaml:"retry_delay" envconfig:"LLM_RETRY_DELAY" default:"2s"`
	MaxRetryDelay    time.Duration `yaml:"max_retry_delay" envconfig:"LLM_MAX_RETRY_DELAY" default:"10s"`
}

// ThumbnailConfig holds thumbnail proxy/upload configuration.
type ThumbnailConfig struct {
	UploadURL     string        `yaml:"upload_url" envconfig:"THUMBNAIL_UPLOAD_URL"`
	PublicBaseURL string        `yaml:"public_base_url" envconfig:"THUMBNAIL_PUBLIC_BASE_URL"`
	AuthToken     string        `yaml:"auth_token" envconfig:"THUMBNAIL_AUTH_TOKEN"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"THUMBNAIL_TIMEOUT" default:"10s"`
}

// WorkerConfig holds active-mode poller configuration.
type WorkerConfig struct {
	Active        bool          `yaml:"active" envconfig:"PROCESSOR_ACTIVE_MODE" default:"false"`
	BackendURL    string        `yaml:"backend_url" envconfig:"BACKEND_API_URL"`
	PollInterval  time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL" default:"30s"`
	JobLimit      int           `yaml:"job_limit" envconfig:"WORKER_JOB_LIMIT" default:"3"`
	ResetInterval time.Duration `yaml:"reset_interval" envconfig:"WORKER_RESET_INTERVAL" default:"24h"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if !c.LLM.HasAnyKey() {
		return fmt.Errorf("at least one of GEMINI_API_KEYS, GROK_API_KEYS, OPENAI_API_KEYS is required")
	}
	if c.Download.SleepMin > c.Download.SleepMax {
		return fmt.Errorf("DOWNLOAD_SLEEP_MIN must not exceed DOWNLOAD_SLEEP_MAX")
	}
	if c.Extraction.SceneThreshold <= 0 || c.Extraction.SceneThreshold >= 1 {
		return fmt.Errorf("EXTRACTION_SCENE_THRESHOLD must be between 0 and 1")
	}
	if c.Worker.Active && c.Worker.BackendURL == "" {
		return fmt.Errorf("BACKEND_API_URL is required in active mode")
	}
	return nil
}

// HasAnyKey reports whether at least one provider has a non-empty key.
func (c *LLMConfig) HasAnyKey() bool {
	for _, list := range []string{c.GeminiKeys, c.GrokKeys, c.OpenAIKeys} {
		if len(Keys(list)) > 0 {
			return true
		}
	}
	return false
}

// Keys splits a comma-separated key list, dropping empty entries.
func Keys(list string) []string {
	var keys []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
