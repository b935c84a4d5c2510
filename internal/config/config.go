package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/L0ckR/LCT-hackaton/internal/enrich"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Logging    LoggingConfig
	Parser     ParserConfig
	Foundation enrich.Config
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// ParserConfig holds scraping runtime parameters.
type ParserConfig struct {
	DataDir           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

const (
	defaultDataDir        = "data"
	defaultRequestTimeout = 30 * time.Second
	defaultRPS            = 1.0

	defaultLogFormat = "json"
)

// Load reads configuration from environment variables, applying defaults
// when values are not provided.
func Load() (Config, error) {
	cfg := Config{
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Parser: ParserConfig{
			DataDir:           getEnv("PARSER_DATA_DIR", defaultDataDir),
			RequestTimeout:    defaultRequestTimeout,
			RequestsPerSecond: defaultRPS,
		},
		Foundation: enrich.DefaultConfig(),
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("PARSER_REQUEST_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PARSER_REQUEST_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Parser.RequestTimeout = d
	}

	if v := os.Getenv("PARSER_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return Config{}, fmt.Errorf("invalid PARSER_REQUESTS_PER_SECOND: must be a positive number")
		}
		cfg.Parser.RequestsPerSecond = rps
	}

	if v := os.Getenv("FOUNDATION_CHAT_MODEL"); v != "" {
		cfg.Foundation.ChatModel = v
	}
	if v := os.Getenv("FOUNDATION_EMBEDDING_MODEL"); v != "" {
		cfg.Foundation.EmbeddingModel = v
	}
	if v := os.Getenv("FOUNDATION_CHAT_CONCURRENCY"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FOUNDATION_CHAT_CONCURRENCY: %w", err)
		}
		cfg.Foundation.ChatConcurrency = int64(n)
	}
	if v := os.Getenv("FOUNDATION_EMBEDDING_CONCURRENCY"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FOUNDATION_EMBEDDING_CONCURRENCY: %w", err)
		}
		cfg.Foundation.EmbeddingConcurrency = int64(n)
	}
	if v := os.Getenv("FOUNDATION_EMBEDDING_BATCH_SIZE"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FOUNDATION_EMBEDDING_BATCH_SIZE: %w", err)
		}
		cfg.Foundation.EmbeddingBatchSize = n
	}
	if v := os.Getenv("FOUNDATION_CHAT_RETRIES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FOUNDATION_CHAT_RETRIES: %w", err)
		}
		cfg.Foundation.ChatRetries = n
	}
	if v := os.Getenv("FOUNDATION_CHAT_BACKOFF_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FOUNDATION_CHAT_BACKOFF_SECONDS: %w", err)
		}
		cfg.Foundation.ChatBackoff = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}

// SourceSpec declares one scrapeable source in the registry file.
type SourceSpec struct {
	Name     string `yaml:"name"`
	Slug     string `yaml:"slug"`
	BankName string `yaml:"bank_name"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Policy   string `yaml:"policy"` // abort or skip
}

// LoadSources parses an optional YAML source registry.
func LoadSources(path string) ([]SourceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var doc struct {
		Sources []SourceSpec `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	for i, src := range doc.Sources {
		if src.Name == "" {
			return nil, fmt.Errorf("sources[%d]: name is required", i)
		}
		switch src.Policy {
		case "", "abort", "skip":
		default:
			return nil, fmt.Errorf("sources[%d]: policy must be 'abort' or 'skip', got %q", i, src.Policy)
		}
	}
	return doc.Sources, nil
}
