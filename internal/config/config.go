package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Version is stamped into written packages and reported by the CLIs.
// Release builds override it with -ldflags "-X dcpkit/internal/config.Version=...".
var Version = "dev"

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Dir    string `toml:"dir"`
}

// Metadata is the product stamp written into assets and manifests.
type Metadata struct {
	Issuer         string `toml:"issuer"`
	Creator        string `toml:"creator"`
	CompanyName    string `toml:"company_name"`
	ProductName    string `toml:"product_name"`
	ProductVersion string `toml:"product_version"`
}

// Compare holds default equality tolerances used by dcpdiff.
type Compare struct {
	MaxMeanPixelError            float64 `toml:"max_mean_pixel_error"`
	MaxStdDevPixelError          float64 `toml:"max_std_dev_pixel_error"`
	MaxAudioSampleError          int     `toml:"max_audio_sample_error"`
	CPLAnnotationTextsCanDiffer  bool    `toml:"cpl_annotation_texts_can_differ"`
	ReelAnnotationTextsCanDiffer bool    `toml:"reel_annotation_texts_can_differ"`
	ReelHashesCanDiffer          bool    `toml:"reel_hashes_can_differ"`
	IssueDatesCanDiffer          bool    `toml:"issue_dates_can_differ"`
	LoadFontNodesCanDiffer       bool    `toml:"load_font_nodes_can_differ"`
	KeepGoing                    bool    `toml:"keep_going"`
	ExportDifferingSubtitles     bool    `toml:"export_differing_subtitles"`
	ExportDir                    string  `toml:"export_dir"`
}

// Combine holds settings for merging packages.
type Combine struct {
	// UniqueNameAttempts bounds the numbered suffixes tried when a
	// destination filename is already taken.
	UniqueNameAttempts int  `toml:"unique_name_attempts"`
	LockOutput         bool `toml:"lock_output"`
}

// DigestCache configures the persistent digest cache.
type DigestCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Signing configures the credential used to sign written packages.
type Signing struct {
	KeyPath    string `toml:"key_path"`
	SignerName string `toml:"signer_name"`
}

// Config encapsulates all configuration values for dcpkit.
//
// Configuration sections:
//   - Logging: log format, level and optional log directory
//   - Metadata: issuer/creator/product stamp for written packages
//   - Compare: equality tolerances for dcpdiff
//   - Combine: filename deduplication bound and output locking
//   - DigestCache: SQLite cache of file digests
//   - Signing: package signing credential
type Config struct {
	Logging     Logging     `toml:"logging"`
	Metadata    Metadata    `toml:"metadata"`
	Compare     Compare     `toml:"compare"`
	Combine     Combine     `toml:"combine"`
	DigestCache DigestCache `toml:"digest_cache"`
	Signing     Signing     `toml:"signing"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dcpkit/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the path that was consulted, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("dcpkit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
