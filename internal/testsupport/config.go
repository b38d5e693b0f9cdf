package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dcpkit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose paths all live under a per-test temp
// directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Logging.Level = "debug"
	cfgVal.DigestCache.Path = filepath.Join(base, "cache", "digests.db")
	cfgVal.Compare.ExportDir = filepath.Join(base, "export")
	cfgVal.Signing.KeyPath = filepath.Join(base, "keys", "signing.pem")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDigestCache enables the SQLite digest cache.
func WithDigestCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.DigestCache.Enabled = true
	}
}

// WithKeepGoing makes comparisons collect every discrepancy.
func WithKeepGoing() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Compare.KeepGoing = true
	}
}

// WithIssuer sets the issuer stamped into written packages.
func WithIssuer(issuer string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metadata.Issuer = issuer
	}
}

// WriteConfig encodes cfg as TOML next to its temp paths and returns the
// file path, for commands that take --config.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
