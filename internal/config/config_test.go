package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dcpkit/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DCPKIT_SIGNING_KEY", "~/keys/signer.pem")
	chdirDir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(chdirDir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", chdirDir)
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".cache", "dcpkit", "digests.db"); cfg.DigestCache.Path != want {
		t.Fatalf("unexpected digest cache path: got %q want %q", cfg.DigestCache.Path, want)
	}
	if want := filepath.Join(tempHome, "keys", "signer.pem"); cfg.Signing.KeyPath != want {
		t.Fatalf("expected signing key from env, got %q want %q", cfg.Signing.KeyPath, want)
	}
	if cfg.Combine.UniqueNameAttempts != config.Default().Combine.UniqueNameAttempts {
		t.Fatalf("unexpected unique name attempts: %d", cfg.Combine.UniqueNameAttempts)
	}
	if cfg.DigestCache.Enabled {
		t.Fatal("expected digest cache disabled by default")
	}
	if cfg.Metadata.ProductVersion != config.Version {
		t.Fatalf("expected product version %q, got %q", config.Version, cfg.Metadata.ProductVersion)
	}
	if cfg.Metadata.Issuer != "dcpkit" || cfg.Metadata.Creator != "dcpkit "+config.Version {
		t.Fatalf("unexpected metadata stamp: issuer %q creator %q", cfg.Metadata.Issuer, cfg.Metadata.Creator)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Logging.Level = "DEBUG"
	cfg.Logging.Format = " json "
	cfg.Metadata.Issuer = "  Test Facility "
	cfg.Compare.KeepGoing = true
	cfg.Compare.ReelHashesCanDiffer = true
	cfg.Combine.UniqueNameAttempts = 5

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if loaded.Logging.Level != "debug" || loaded.Logging.Format != "json" {
		t.Fatalf("expected normalized logging, got %+v", loaded.Logging)
	}
	if loaded.Metadata.Issuer != "Test Facility" {
		t.Fatalf("expected trimmed issuer, got %q", loaded.Metadata.Issuer)
	}
	if !loaded.Compare.KeepGoing || !loaded.Compare.ReelHashesCanDiffer {
		t.Fatalf("expected compare flags to round trip, got %+v", loaded.Compare)
	}
	if loaded.Combine.UniqueNameAttempts != 5 {
		t.Fatalf("expected unique name attempts 5, got %d", loaded.Combine.UniqueNameAttempts)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[combine]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{
			name:    "zero attempts",
			mutate:  func(c *config.Config) { c.Combine.UniqueNameAttempts = 0 },
			wantErr: "unique_name_attempts",
		},
		{
			name:    "negative pixel error",
			mutate:  func(c *config.Config) { c.Compare.MaxMeanPixelError = -1 },
			wantErr: "max_mean_pixel_error",
		},
		{
			name:    "export without dir",
			mutate:  func(c *config.Config) { c.Compare.ExportDifferingSubtitles = true },
			wantErr: "export_dir",
		},
		{
			name:    "bad format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
