package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCompare(); err != nil {
		return err
	}
	if err := c.validateCombine(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCompare() error {
	if c.Compare.MaxMeanPixelError < 0 {
		return errors.New("compare.max_mean_pixel_error must be >= 0")
	}
	if c.Compare.MaxStdDevPixelError < 0 {
		return errors.New("compare.max_std_dev_pixel_error must be >= 0")
	}
	if c.Compare.MaxAudioSampleError < 0 {
		return errors.New("compare.max_audio_sample_error must be >= 0")
	}
	if c.Compare.ExportDifferingSubtitles && c.Compare.ExportDir == "" {
		return errors.New("compare.export_dir must be set when compare.export_differing_subtitles is true")
	}
	return nil
}

func (c *Config) validateCombine() error {
	if c.Combine.UniqueNameAttempts <= 0 {
		return errors.New("combine.unique_name_attempts must be positive")
	}
	return nil
}
