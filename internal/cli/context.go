package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dcpkit/internal/config"
	"dcpkit/internal/dcp"
	"dcpkit/internal/digestcache"
	"dcpkit/internal/logging"
)

// Context resolves configuration and shared resources once per invocation.
type Context struct {
	configFlag string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	cache *digestcache.Cache
}

// NewContext returns an unloaded context.
func NewContext() *Context {
	return &Context{}
}

// BindFlags registers the persistent --config flag on root.
func (c *Context) BindFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&c.configFlag, "config", "c", "", "Configuration file path")
}

// Config loads and validates the configuration on first use.
func (c *Context) Config() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// Logger builds the configured logger on first use.
func (c *Context) Logger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.Config()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// DigestCache opens the digest cache when it is enabled. The returned
// interface is nil when caching is off.
func (c *Context) DigestCache() (dcp.DigestCache, error) {
	if c.cache != nil {
		return c.cache, nil
	}
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	if !cfg.DigestCache.Enabled {
		return nil, nil
	}
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	cache, err := digestcache.Open(cfg.DigestCache.Path, logger)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return cache, nil
}

// ReadOptions returns package read options carrying the logger and cache.
func (c *Context) ReadOptions() (dcp.ReadOptions, error) {
	logger, err := c.Logger()
	if err != nil {
		return dcp.ReadOptions{}, err
	}
	cache, err := c.DigestCache()
	if err != nil {
		return dcp.ReadOptions{}, err
	}
	return dcp.ReadOptions{Logger: logger, DigestCache: cache}, nil
}

// Close releases resources opened by the context.
func (c *Context) Close() error {
	if c.cache == nil {
		return nil
	}
	err := c.cache.Close()
	c.cache = nil
	return err
}
