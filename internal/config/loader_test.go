package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/dictanote/internal/config"
)

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "server:\n  listen_addr: \":7000\"\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":7000" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoad_InvalidFileNamesPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "storage:\n  driver: mongo\n")

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Storage:   config.StorageConfig{Driver: config.DriverPostgres, DSN: "postgres://db"},
		Dictation: config.DictationConfig{MaxAttempts: 2, Comparator: "fold"},
	}
	config.ApplyDefaults(cfg)

	if cfg.Storage.DSN != "postgres://db" {
		t.Errorf("dsn overwritten: %q", cfg.Storage.DSN)
	}
	if cfg.Dictation.MaxAttempts != 2 || cfg.Dictation.Comparator != "fold" {
		t.Errorf("dictation overwritten: %+v", cfg.Dictation)
	}
}

func TestApplyDefaults_PostgresGetsNoSQLiteDSN(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.DriverPostgres}}
	config.ApplyDefaults(cfg)
	if cfg.Storage.DSN != "" {
		t.Errorf("postgres driver should not receive a default dsn, got %q", cfg.Storage.DSN)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Providers.STT.Name != "deepgram" || cfg.Providers.LLM.Name != "openai" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
	if cfg.Providers.STT.OptInt("endpointing_ms") != 300 {
		t.Errorf("endpointing_ms = %d, want 300", cfg.Providers.STT.OptInt("endpointing_ms"))
	}
	if cfg.Dictation.Silence.Milliseconds() != 800 {
		t.Errorf("silence = %v, want 800ms", cfg.Dictation.Silence)
	}
}
