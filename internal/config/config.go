// Package config loads server settings from a .env file, an optional YAML
// file and PDF_MERGER_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PDF_MERGER_"

// Config holds all server settings.
type Config struct {
	Addr string `yaml:"addr"`

	// Required X-API-KEY value. Empty disables the check.
	APIKey string `yaml:"api_key"`

	MaxTotalUploadMB int `yaml:"max_total_upload_mb"`
	// Size of the page worker pool. Zero means one slot per CPU.
	MergeMaxParallel int `yaml:"merge_max_parallel"`

	// Finished jobs older than JobTTL are dropped. Zero keeps them forever.
	JobTTL          time.Duration `yaml:"job_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	PdftoppmPath string `yaml:"pdftoppm_path"`
	StaticDir    string `yaml:"static_dir"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:             ":8080",
		MaxTotalUploadMB: 200,
		CleanupInterval:  10 * time.Minute,
		LogLevel:         "info",
		LogFormat:        "json",
		NATSSubject:      "pdfmerger.jobs.finished",
		PdftoppmPath:     "pdftoppm",
		StaticDir:        "static",
	}
}

// Load reads envFilePath if it exists, then the YAML file named by
// PDF_MERGER_CONFIG, then the environment.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := Default()
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.Addr = getEnv(cfg.Addr, envPrefix+"ADDR", "APP_ADDR")
	cfg.APIKey = getEnv(cfg.APIKey, envPrefix+"API_KEY", "API_KEY")
	cfg.MaxTotalUploadMB = getEnvAsInt(cfg.MaxTotalUploadMB, envPrefix+"MAX_TOTAL_UPLOAD_MB", "MAX_MB")
	cfg.MergeMaxParallel = getEnvAsInt(cfg.MergeMaxParallel, envPrefix+"MERGE_MAX_PARALLEL")
	cfg.JobTTL = getEnvAsDuration(cfg.JobTTL, envPrefix+"JOB_TTL")
	cfg.CleanupInterval = getEnvAsDuration(cfg.CleanupInterval, envPrefix+"CLEANUP_INTERVAL")
	cfg.LogLevel = getEnv(cfg.LogLevel, envPrefix+"LOG_LEVEL")
	cfg.LogFormat = getEnv(cfg.LogFormat, envPrefix+"LOG_FORMAT")
	cfg.LogFile = getEnv(cfg.LogFile, envPrefix+"LOG_FILE")
	cfg.NATSURL = getEnv(cfg.NATSURL, envPrefix+"NATS_URL")
	cfg.NATSSubject = getEnv(cfg.NATSSubject, envPrefix+"NATS_SUBJECT")
	cfg.PdftoppmPath = getEnv(cfg.PdftoppmPath, envPrefix+"PDFTOPPM_PATH")
	cfg.StaticDir = getEnv(cfg.StaticDir, envPrefix+"STATIC_DIR")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.MaxTotalUploadMB <= 0 {
		return fmt.Errorf("max_total_upload_mb must be positive, got %d", c.MaxTotalUploadMB)
	}
	if c.MergeMaxParallel < 0 {
		return fmt.Errorf("merge_max_parallel must not be negative, got %d", c.MergeMaxParallel)
	}
	if c.JobTTL < 0 || c.CleanupInterval < 0 {
		return fmt.Errorf("job_ttl and cleanup_interval must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// MaxUploadBytes is MaxTotalUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxTotalUploadMB) * 1024 * 1024
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

// getEnv returns the first non-empty variable among keys, or fallback.
func getEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return fallback
}

func getEnvAsInt(fallback int, keys ...string) int {
	val := getEnv("", keys...)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(fallback time.Duration, keys ...string) time.Duration {
	val := getEnv("", keys...)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
