package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeMetadata()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	if c.Compare.ExportDir, err = expandPath(strings.TrimSpace(c.Compare.ExportDir)); err != nil {
		return fmt.Errorf("compare.export_dir: %w", err)
	}
	if strings.TrimSpace(c.DigestCache.Path) == "" {
		c.DigestCache.Path = defaultDigestCachePath
	}
	if c.DigestCache.Path, err = expandPath(c.DigestCache.Path); err != nil {
		return fmt.Errorf("digest_cache.path: %w", err)
	}
	if strings.TrimSpace(c.Signing.KeyPath) == "" {
		if value, ok := os.LookupEnv("DCPKIT_SIGNING_KEY"); ok {
			c.Signing.KeyPath = value
		}
	}
	if c.Signing.KeyPath, err = expandPath(strings.TrimSpace(c.Signing.KeyPath)); err != nil {
		return fmt.Errorf("signing.key_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeMetadata() {
	m := &c.Metadata
	m.Issuer = strings.TrimSpace(m.Issuer)
	m.Creator = strings.TrimSpace(m.Creator)
	m.CompanyName = strings.TrimSpace(m.CompanyName)
	m.ProductName = strings.TrimSpace(m.ProductName)
	m.ProductVersion = strings.TrimSpace(m.ProductVersion)
	if m.ProductName == "" {
		m.ProductName = defaultProductName
	}
	if m.ProductVersion == "" {
		m.ProductVersion = Version
	}
	if m.CompanyName == "" {
		m.CompanyName = defaultCompanyName
	}
	if m.Issuer == "" {
		m.Issuer = m.CompanyName
	}
	if m.Creator == "" {
		m.Creator = m.ProductName + " " + m.ProductVersion
	}
	c.Signing.SignerName = strings.TrimSpace(c.Signing.SignerName)
	if c.Signing.SignerName == "" {
		c.Signing.SignerName = defaultSignerName
	}
}
