package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/provenance/internal/model"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	if err := setDefaults(model.DefaultConfig()); err != nil {
		t.Fatalf("setDefaults failed: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	want := model.DefaultConfig()
	if cfg.Extraction.Delay != want.Extraction.Delay {
		t.Errorf("Expected delay %v, got %v", want.Extraction.Delay, cfg.Extraction.Delay)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Expected memory store, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Path != want.Store.Path || memoryOnly(cfg.Store) {
		t.Errorf("Expected the memory store to keep a snapshot, got path %q", cfg.Store.Path)
	}
	if len(cfg.Authority.PrimaryDomains) != len(want.Authority.PrimaryDomains) {
		t.Errorf("Expected %d primary domains, got %v", len(want.Authority.PrimaryDomains), cfg.Authority.PrimaryDomains)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	resetViper(t)
	if err := setDefaults(model.DefaultConfig()); err != nil {
		t.Fatalf("setDefaults failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
resolver:
  verify_threshold: 0.8
  aggregation: noisy_or
extraction:
  delay: 3s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("read config: %v", err)
	}

	t.Setenv("PROVENANCE_STORE_DSN", "postgres://archive@localhost/archive")
	viper.SetEnvPrefix("PROVENANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Resolver.VerifyThreshold != 0.8 || cfg.Resolver.Aggregation != "noisy_or" {
		t.Errorf("File values not applied: %+v", cfg.Resolver)
	}
	if cfg.Extraction.Delay != 3*time.Second {
		t.Errorf("Expected 3s delay, got %v", cfg.Extraction.Delay)
	}
	if cfg.Store.DSN != "postgres://archive@localhost/archive" {
		t.Errorf("Env override not applied, got %q", cfg.Store.DSN)
	}
	if cfg.Extraction.MinContentChars != 200 {
		t.Errorf("Unset keys should keep defaults, got %d", cfg.Extraction.MinContentChars)
	}
}

func TestMemoryOnly(t *testing.T) {
	tests := []struct {
		cfg  model.StoreConfig
		want bool
	}{
		{model.StoreConfig{Driver: "memory"}, true},
		{model.StoreConfig{}, true},
		{model.StoreConfig{Driver: "memory", Path: "store.json"}, false},
		{model.StoreConfig{Driver: "postgres", DSN: "postgres://localhost/archive"}, false},
	}
	for _, tt := range tests {
		if got := memoryOnly(tt.cfg); got != tt.want {
			t.Errorf("memoryOnly(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}
