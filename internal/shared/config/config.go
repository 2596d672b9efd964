package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"foodsafe-backend/internal/hybrid"
	"foodsafe-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	RedisURL        string

	LLMProvider    string
	LLMModel       string
	OpenAIAPIKey   string
	PromptVersion  string
	LocalModelPath string

	JobWorkers         int
	JobQueueSize       int
	JobRetention       time.Duration
	JobCleanupInterval time.Duration

	RemoteTimeout    time.Duration
	RemoteRatePerSec float64
	RemoteBurst      int
	RemoteCacheTTL   time.Duration

	HighConfidence   float64
	MediumConfidence float64
	// DegradeOnHybridFailure returns the local verdict when the remote scorer
	// fails in the hybrid band instead of failing the job.
	DegradeOnHybridFailure bool

	ProductLookupURL     string
	ProductLookupTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL", "env": env})
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		RedisURL:        os.Getenv("REDIS_URL"),

		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:       getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		PromptVersion:  getEnv("PROMPT_VERSION", ""),
		LocalModelPath: getEnv("LOCAL_MODEL_PATH", ""),

		JobWorkers:         getEnvInt("JOB_WORKERS", 4),
		JobQueueSize:       getEnvInt("JOB_QUEUE_SIZE", 256),
		JobRetention:       getEnvDuration("JOB_RETENTION", time.Hour),
		JobCleanupInterval: getEnvDuration("JOB_CLEANUP_INTERVAL", 10*time.Minute),

		RemoteTimeout:    getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),
		RemoteRatePerSec: getEnvFloat("REMOTE_RATE_PER_SEC", 5),
		RemoteBurst:      getEnvInt("REMOTE_BURST", 10),
		RemoteCacheTTL:   getEnvDuration("REMOTE_CACHE_TTL", 24*time.Hour),

		HighConfidence:         getEnvFloat("HIGH_CONFIDENCE", hybrid.DefaultHighConfidence),
		MediumConfidence:       getEnvFloat("MEDIUM_CONFIDENCE", hybrid.DefaultMediumConfidence),
		DegradeOnHybridFailure: getEnvBool("HYBRID_DEGRADE_ON_FAILURE", false),

		ProductLookupURL:     getEnv("PRODUCT_LOOKUP_URL", ""),
		ProductLookupTimeout: getEnvDuration("PRODUCT_LOOKUP_TIMEOUT", 5*time.Second),
	}

	if err := cfg.Thresholds().Validate(); err != nil {
		telemetry.Warn("config.invalid", map[string]any{
			"key":   "HIGH_CONFIDENCE/MEDIUM_CONFIDENCE",
			"error": err.Error(),
		})
		cfg.HighConfidence = hybrid.DefaultHighConfidence
		cfg.MediumConfidence = hybrid.DefaultMediumConfidence
	}
	return cfg
}

// Thresholds returns the router confidence thresholds.
func (c Config) Thresholds() hybrid.Thresholds {
	return hybrid.Thresholds{High: c.HighConfidence, Medium: c.MediumConfidence}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		invalid(key, raw, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		invalid(key, raw, def)
		return def
	}
	return f
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	invalid(key, raw, def.String())
	return def
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		invalid(key, raw, def)
		return def
	}
	return b
}

func invalid(key, raw string, def any) {
	telemetry.Warn("config.invalid", map[string]any{
		"key":      key,
		"value":    raw,
		"fallback": def,
	})
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
