package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// Application paths
	LogDir     string `json:"log_dir"`
	ScratchDir string `json:"scratch_dir"`

	// Public base URL used to build webhook callback URLs
	PublicBaseURL string `json:"public_base_url"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// Rate limiting
	RateLimit RateLimitConfig `json:"rate_limit"`

	Provider ProviderConfig `json:"provider"`
	LLM      LLMConfig      `json:"llm"`
	Cache    CacheConfig    `json:"cache"`
	Media    MediaConfig    `json:"media"`

	Version string `json:"version"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
}

type ProviderConfig struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`

	// UseWebhook selects push completion notifications over polling.
	UseWebhook    bool   `json:"use_webhook"`
	WebhookSecret string `json:"-"`

	Language     string `json:"language"`
	SpeedProfile string `json:"speed_profile"` // "fast" or "accurate"

	PollMaxAttempts int           `json:"poll_max_attempts"`
	AwaitBudget     time.Duration `json:"await_budget"`
}

type LLMConfig struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

type CacheConfig struct {
	// Backend selects the durable tier: "sqlite", "s3", or "none".
	Backend string        `json:"backend"`
	Path    string        `json:"path"`
	TTL     time.Duration `json:"ttl"`
	S3      S3Config      `json:"s3"`
}

type S3Config struct {
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
}

type MediaConfig struct {
	YTDLPPath   string `json:"ytdlp_path"`
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`

	// Acquisition ceilings
	AudioBitrate  string `json:"audio_bitrate"`
	MaxFileSizeMB int    `json:"max_file_size_mb"`

	// Long-form handling
	SegmentThreshold time.Duration `json:"segment_threshold"`
	SegmentDuration  time.Duration `json:"segment_duration"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),

		LogDir:     getEnv("LOG_DIR", "/var/log/vidscribe"),
		ScratchDir: getEnv("SCRATCH_DIR", "/tmp/vidscribe"),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 30),
		},

		Provider: ProviderConfig{
			APIKey:          getEnv("PROVIDER_API_KEY", ""),
			BaseURL:         getEnv("PROVIDER_BASE_URL", "https://api.assemblyai.com/v2"),
			UseWebhook:      getEnvAsBool("PROVIDER_USE_WEBHOOK", false),
			WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
			Language:        getEnv("PROVIDER_LANGUAGE", "en"),
			SpeedProfile:    getEnv("PROVIDER_SPEED_PROFILE", "fast"),
			PollMaxAttempts: getEnvAsInt("PROVIDER_POLL_MAX_ATTEMPTS", 30),
			AwaitBudget:     getEnvAsDuration("PROVIDER_AWAIT_BUDGET", 10*time.Minute),
		},

		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		},

		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "sqlite"),
			Path:    getEnv("CACHE_DB_PATH", "/var/lib/vidscribe/cache.db"),
			TTL:     getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			S3: S3Config{
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				Bucket:    getEnv("S3_BUCKET", ""),
			},
		},

		Media: MediaConfig{
			YTDLPPath:        getEnv("YTDLP_PATH", "yt-dlp"),
			FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
			AudioBitrate:     getEnv("AUDIO_BITRATE", "128k"),
			MaxFileSizeMB:    getEnvAsInt("AUDIO_MAX_FILE_SIZE_MB", 50),
			SegmentThreshold: getEnvAsDuration("SEGMENT_THRESHOLD", 15*time.Minute),
			SegmentDuration:  getEnvAsDuration("SEGMENT_DURATION", 5*time.Minute),
		},

		Version: getEnv("VERSION", "1.0.0"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}
	if err := validateTimeouts(c); err != nil {
		return err
	}
	return validateServices(c)
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.ScratchDir, "scratch directory"},
	}
	if c.Cache.Backend == "sqlite" {
		paths = append(paths, struct {
			path string
			name string
		}{filepath.Dir(c.Cache.Path), "cache directory"})
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}
	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	return nil
}

func validateServices(c *Config) error {
	switch c.Cache.Backend {
	case "sqlite", "none":
	case "s3":
		if c.Cache.S3.Bucket == "" {
			return fmt.Errorf("s3 cache backend requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Provider.SpeedProfile {
	case "fast", "accurate":
	default:
		return fmt.Errorf("provider speed profile must be \"fast\" or \"accurate\"")
	}

	if c.Provider.UseWebhook && c.PublicBaseURL == "" {
		return fmt.Errorf("webhook mode requires PUBLIC_BASE_URL")
	}

	if c.Media.SegmentDuration <= 0 || c.Media.SegmentThreshold <= 0 {
		return fmt.Errorf("segment duration and threshold must be positive")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durVal, err := time.ParseDuration(value); err == nil {
			return durVal
		}
	}
	return defaultValue
}
