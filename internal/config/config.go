package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and the
// correction workers.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	JWTSecret        string
	JWTRefreshSecret string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadDir              string

	AIProvider     string
	OracleURL      string
	OracleModel    string
	OracleTimeout  time.Duration
	OpenAIAPIKey   string
	MaxPromptChars int

	ExtractTool    string
	ExtractTimeout time.Duration
	ExtractRetries int
	MinTextLength  int

	SimilarityThreshold float64
	MinComparableWords  int
	PeerCap             int

	PipelineAttempts   int
	PipelineSoftLimit  time.Duration
	PipelineHardLimit  time.Duration
	RetryBackoffBase   time.Duration
	WorkerCount        int
	CorrectionCacheTTL time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CORRIGO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Corrigo API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("cloudinary.folder", "corrigo/submissions")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("oracle.url", "http://localhost:11434")
	v.SetDefault("oracle.model", "deepseek-coder:6.7b")
	v.SetDefault("oracle.timeout", "4m")
	v.SetDefault("max_prompt_chars", 4000)
	v.SetDefault("extract.tool", "pdftotext")
	v.SetDefault("extract.timeout", "30s")
	v.SetDefault("extract.retries", 3)
	v.SetDefault("min_text_length", 50)
	v.SetDefault("similarity.threshold", 0.75)
	v.SetDefault("min_comparable_words", 5)
	v.SetDefault("peer_cap", 100)
	v.SetDefault("pipeline.attempts", 3)
	v.SetDefault("pipeline.soft_limit", "300s")
	v.SetDefault("pipeline.hard_limit", "10m")
	v.SetDefault("retry.backoff_base", "5s")
	v.SetDefault("worker.count", 4)
	v.SetDefault("correction.cache_ttl", "5m")

	durations := map[string]*time.Duration{
		"oracle.timeout":       nil,
		"extract.timeout":      nil,
		"pipeline.soft_limit":  nil,
		"pipeline.hard_limit":  nil,
		"retry.backoff_base":   nil,
		"correction.cache_ttl": nil,
	}
	for key := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		value := parsed
		durations[key] = &value
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadDir:              v.GetString("upload.dir"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		OracleURL:              v.GetString("oracle.url"),
		OracleModel:            v.GetString("oracle.model"),
		OracleTimeout:          *durations["oracle.timeout"],
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		MaxPromptChars:         v.GetInt("max_prompt_chars"),
		ExtractTool:            v.GetString("extract.tool"),
		ExtractTimeout:         *durations["extract.timeout"],
		ExtractRetries:         v.GetInt("extract.retries"),
		MinTextLength:          v.GetInt("min_text_length"),
		SimilarityThreshold:    v.GetFloat64("similarity.threshold"),
		MinComparableWords:     v.GetInt("min_comparable_words"),
		PeerCap:                v.GetInt("peer_cap"),
		PipelineAttempts:       v.GetInt("pipeline.attempts"),
		PipelineSoftLimit:      *durations["pipeline.soft_limit"],
		PipelineHardLimit:      *durations["pipeline.hard_limit"],
		RetryBackoffBase:       *durations["retry.backoff_base"],
		WorkerCount:            v.GetInt("worker.count"),
		CorrectionCacheTTL:     *durations["correction.cache_ttl"],
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return Config{}, fmt.Errorf("similarity threshold must be in (0, 1], got %v", cfg.SimilarityThreshold)
	}

	if cfg.PipelineAttempts <= 0 {
		cfg.PipelineAttempts = 3
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	return cfg, nil
}
