package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	UploadsDir   string
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3PublicURL  string
	S3PresignTTL time.Duration

	LLMAPIKey  string
	LLMURL     string
	LLMModel   string
	LLMTimeout time.Duration

	ReadAnalysisCooldown time.Duration
	AnalyzeRatePerMinute float64
	AnalyzeBurst         int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "*")),
		Env:             env,
		DatabaseURL:     dbURL,

		UploadsDir:   getEnv("UPLOADS_DIR", "./uploads"),
		S3Endpoint:   strings.TrimRight(getEnv("S3_ENDPOINT", ""), "/"),
		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:  getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PublicURL:  strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),
		S3PresignTTL: getDuration("S3_PRESIGN_TTL", time.Hour),

		LLMAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		LLMURL:     getEnv("OPENROUTER_URL", "https://api.openrouter.ai/v1/chat/completions"),
		LLMModel:   getEnv("OPENROUTER_MODEL", "gpt-4o-mini"),
		LLMTimeout: time.Duration(getInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,

		ReadAnalysisCooldown: getDuration("READ_ANALYSIS_COOLDOWN", 0),
		AnalyzeRatePerMinute: getFloat("ANALYZE_RATE_PER_MINUTE", 30),
		AnalyzeBurst:         getInt("ANALYZE_BURST", 5),
	}
}

// ObjectStoreEnabled reports whether every S3 setting needed for object
// storage is present. Missing any one of them forces local-only mode.
func (c Config) ObjectStoreEnabled() bool {
	for _, v := range []string{c.S3Endpoint, c.S3Region, c.S3Bucket, c.S3AccessKey, c.S3SecretKey} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// IsDevLike reports whether the environment tolerates missing infrastructure.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config %s invalid number: %v", key, err)
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return v
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
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
