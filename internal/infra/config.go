package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the generation API configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	LogFile          string
	JWTSecret        string
	GeoIPDBPath      string
	DefaultLocale    string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string

	JobStore        string
	RedisURL        string
	JobTTL          time.Duration
	JobTombstoneTTL time.Duration
	JobTimeout      time.Duration
	JobWorkers      int
	JobSweepSpec    string

	LedgerBaseURL     string
	LedgerServiceKey  string
	LedgerTokenTTL    time.Duration
	DefaultBalance    int
	ImageCost         int
	ClothingCost      int
	VideoCost         int
	BackgroundWorkers int

	StorageBackend    string
	StoragePath       string
	StorageBaseURL    string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool

	// DatabaseURL is optional for the API; when set, provider keys missing
	// from the environment are read from integration_tokens.
	DatabaseURL string

	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	VeoModel        string
	QwenAPIKey      string
	QwenBaseURL     string
	QwenModel       string
	FaceSwapAPIKey  string
	FaceSwapBaseURL string
	FaceSwapModel   string
	MaxPromptRunes  int
	VideoPollEvery  time.Duration
	VideoMaxPolls   int
	FaceSwapPollGap time.Duration
	FaceSwapPolls   int
}

// LedgerConfig configures the credit ledger proxy and the maintenance worker.
type LedgerConfig struct {
	AppEnv           string
	Port             string
	LogFile          string
	DatabaseURL      string
	ServiceKey       string
	TokenSecret      string
	TokenTTL         time.Duration
	InitialCredits   int
	HistorySweepSpec string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		LogFile:          os.Getenv("LOG_FILE"),
		JWTSecret:        getEnv("JWT_SECRET", os.Getenv("LEDGER_TOKEN_SECRET")),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		JobStore:        strings.ToLower(getEnv("JOB_STORE", "memory")),
		RedisURL:        os.Getenv("REDIS_URL"),
		JobTTL:          getEnvDuration("JOB_TTL", time.Hour),
		JobTombstoneTTL: getEnvDuration("JOB_TOMBSTONE_TTL", 24*time.Hour),
		JobTimeout:      getEnvDuration("JOB_TIMEOUT", 10*time.Minute),
		JobWorkers:      getEnvInt("JOB_WORKERS", 8),
		JobSweepSpec:    getEnv("JOB_SWEEP_SPEC", "@every 5m"),

		LedgerBaseURL:     os.Getenv("LEDGER_BASE_URL"),
		LedgerServiceKey:  os.Getenv("LEDGER_SERVICE_KEY"),
		LedgerTokenTTL:    getEnvDuration("LEDGER_TOKEN_CACHE_TTL", 50*time.Minute),
		DefaultBalance:    getEnvInt("LEDGER_DEFAULT_BALANCE", 3),
		ImageCost:         getEnvInt("CREDIT_COST_IMAGE", 1),
		ClothingCost:      getEnvInt("CREDIT_COST_CLOTHING", 1),
		VideoCost:         getEnvInt("CREDIT_COST_VIDEO", 5),
		BackgroundWorkers: getEnvInt("BACKGROUND_WORKERS", 4),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", "filesystem")),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    os.Getenv("STORAGE_BASE_URL"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3ForcePathStyle:  getEnvBool("S3_FORCE_PATH_STYLE", false),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:     getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		VeoModel:        getEnv("VEO_MODEL", "veo-3.0-fast-generate-001"),
		QwenAPIKey:      os.Getenv("QWEN_API_KEY"),
		QwenBaseURL:     getEnv("QWEN_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		QwenModel:       getEnv("QWEN_MODEL", "qwen-image-edit"),
		FaceSwapAPIKey:  os.Getenv("FACESWAP_API_KEY"),
		FaceSwapBaseURL: getEnv("FACESWAP_BASE_URL", "https://api.replicate.com/v1"),
		FaceSwapModel:   os.Getenv("FACESWAP_MODEL_VERSION"),
		MaxPromptRunes:  getEnvInt("MAX_PROMPT_CHARS", 2000),
		VideoPollEvery:  getEnvDuration("VIDEO_POLL_INTERVAL", 10*time.Second),
		VideoMaxPolls:   getEnvInt("VIDEO_MAX_POLLS", 60),
		FaceSwapPollGap: getEnvDuration("FACESWAP_POLL_INTERVAL", 2*time.Second),
		FaceSwapPolls:   getEnvInt("FACESWAP_MAX_POLLS", 60),
	}

	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}
	cfg.StorageBaseURL = strings.TrimRight(cfg.StorageBaseURL, "/")

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.LedgerBaseURL == "" {
		return nil, fmt.Errorf("LEDGER_BASE_URL is required")
	}
	if cfg.LedgerServiceKey == "" {
		return nil, fmt.Errorf("LEDGER_SERVICE_KEY is required")
	}
	switch cfg.JobStore {
	case "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when JOB_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported JOB_STORE %q", cfg.JobStore)
	}
	switch cfg.StorageBackend {
	case "filesystem":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// LoadLedgerConfig loads the ledger proxy configuration.
func LoadLedgerConfig() (*LedgerConfig, error) {
	cfg := &LedgerConfig{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8081"),
		LogFile:          os.Getenv("LOG_FILE"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ServiceKey:       os.Getenv("LEDGER_SERVICE_KEY"),
		TokenSecret:      os.Getenv("LEDGER_TOKEN_SECRET"),
		TokenTTL:         getEnvDuration("LEDGER_TOKEN_TTL", time.Hour),
		InitialCredits:   getEnvInt("LEDGER_INITIAL_CREDITS", 3),
		HistorySweepSpec: getEnv("HISTORY_SWEEP_SPEC", "@every 30m"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 15)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("LEDGER_SERVICE_KEY is required")
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("LEDGER_TOKEN_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// HTTPOptions returns the server settings for the generation API.
func (c *Config) HTTPOptions() HTTPOptions {
	return HTTPOptions{Port: c.Port, ReadTimeout: c.HTTPReadTimeout, WriteTimeout: c.HTTPWriteTimeout, IdleTimeout: c.HTTPIdleTimeout}
}

// HTTPOptions returns the server settings for the ledger proxy.
func (c *LedgerConfig) HTTPOptions() HTTPOptions {
	return HTTPOptions{Port: c.Port, ReadTimeout: c.HTTPReadTimeout, WriteTimeout: c.HTTPWriteTimeout, IdleTimeout: c.HTTPIdleTimeout}
}
