package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "PARSER_DATA_DIR",
		"PARSER_REQUEST_TIMEOUT_SECONDS", "PARSER_REQUESTS_PER_SECOND",
		"FOUNDATION_CHAT_MODEL", "FOUNDATION_EMBEDDING_BATCH_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("default level = %v", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default format = %q", cfg.Logging.Format)
	}
	if cfg.Parser.RequestTimeout != 30*time.Second {
		t.Errorf("default timeout = %v", cfg.Parser.RequestTimeout)
	}
	if cfg.Foundation.ChatModel == "" || cfg.Foundation.EmbeddingModel == "" {
		t.Error("foundation model defaults missing")
	}
	if cfg.Foundation.EmbeddingBatchSize != 16 {
		t.Errorf("default batch size = %d", cfg.Foundation.EmbeddingBatchSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("PARSER_DATA_DIR", "/tmp/reviews")
	t.Setenv("PARSER_REQUEST_TIMEOUT_SECONDS", "10")
	t.Setenv("PARSER_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("FOUNDATION_CHAT_MODEL", "gpt-4o")
	t.Setenv("FOUNDATION_CHAT_RETRIES", "5")
	t.Setenv("FOUNDATION_CHAT_BACKOFF_SECONDS", "3")
	t.Setenv("FOUNDATION_EMBEDDING_BATCH_SIZE", "32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != slog.LevelDebug || cfg.Logging.Format != "text" {
		t.Errorf("logging overrides = %+v", cfg.Logging)
	}
	if cfg.Parser.DataDir != "/tmp/reviews" {
		t.Errorf("DataDir = %q", cfg.Parser.DataDir)
	}
	if cfg.Parser.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Parser.RequestTimeout)
	}
	if cfg.Parser.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v", cfg.Parser.RequestsPerSecond)
	}
	if cfg.Foundation.ChatModel != "gpt-4o" {
		t.Errorf("ChatModel = %q", cfg.Foundation.ChatModel)
	}
	if cfg.Foundation.ChatRetries != 5 || cfg.Foundation.ChatBackoff != 3*time.Second {
		t.Errorf("chat retry overrides = %+v", cfg.Foundation)
	}
	if cfg.Foundation.EmbeddingBatchSize != 32 {
		t.Errorf("EmbeddingBatchSize = %d", cfg.Foundation.EmbeddingBatchSize)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LOG_LEVEL", "verbose"},
		{"LOG_FORMAT", "xml"},
		{"PARSER_REQUEST_TIMEOUT_SECONDS", "-5"},
		{"PARSER_REQUESTS_PER_SECOND", "0"},
		{"FOUNDATION_CHAT_RETRIES", "0"},
		{"FOUNDATION_EMBEDDING_BATCH_SIZE", "none"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	doc := `sources:
  - name: sravni
    slug: gazprombank
    bank_name: Газпромбанк
    policy: abort
  - name: banki
    slug: gazprombank
    bank_name: Газпромбанк
    policy: skip
  - name: freeform
    slug: other
    bank_name: Другой банк
    base_url: https://example.com/reviews
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	specs, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("got %d specs", len(specs))
	}
	if specs[0].Name != "sravni" || specs[0].Policy != "abort" {
		t.Errorf("first spec = %+v", specs[0])
	}
	if specs[2].BaseURL != "https://example.com/reviews" {
		t.Errorf("freeform base url = %q", specs[2].BaseURL)
	}
}

func TestLoadSourcesValidation(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "nope.yaml")
	if _, err := LoadSources(missing); err == nil {
		t.Error("missing file should fail")
	}

	noName := filepath.Join(dir, "noname.yaml")
	os.WriteFile(noName, []byte("sources:\n  - slug: x\n"), 0o644)
	if _, err := LoadSources(noName); err == nil {
		t.Error("spec without a name should fail")
	}

	badPolicy := filepath.Join(dir, "badpolicy.yaml")
	os.WriteFile(badPolicy, []byte("sources:\n  - name: x\n    policy: retry\n"), 0o644)
	if _, err := LoadSources(badPolicy); err == nil {
		t.Error("unknown policy should fail")
	}
}
