package blog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/blog-comb/app/post"
)

type ConfigCache struct {
	blogsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(blogsDir string) *ConfigCache {
	return &ConfigCache{
		blogsDir: blogsDir,
		cache:    make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.blogsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.blogsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "blog", name, "enabled", config.Settings.Enabled, "method", config.Method, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile := cc.getConfigFilePath(name)
	blogConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	blogConfig.Name = name

	if err := cc.validateConfig(blogConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[blogConfig.Name] = blogConfig

	return blogConfig, nil
}

// GetConfigByURL finds the config whose URL matches blogURL after
// normalization.
func (cc *ConfigCache) GetConfigByURL(blogURL string) (*Config, bool) {
	key := post.NormalizeURL(blogURL)

	cc.mu.RLock()
	defer cc.mu.RUnlock()

	for _, c := range cc.cache {
		if post.NormalizeURL(c.URL) == key {
			return c, true
		}
	}
	return nil, false
}

// FiltersFor returns the filters configured for blogURL, or nil.
func (cc *ConfigCache) FiltersFor(blogURL string) []ConfigFilter {
	if c, ok := cc.GetConfigByURL(blogURL); ok {
		return c.Filters
	}
	return nil
}

func (cc *ConfigCache) UsesSitemap(blogURL string) bool {
	c, ok := cc.GetConfigByURL(blogURL)
	return ok && c.Settings.Sitemap
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var blogConfig Config
	if err := yaml.Unmarshal(data, &blogConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if blogConfig.Method == "" {
		blogConfig.Method = MethodAuto
	}
	if blogConfig.Settings.RefreshInterval == 0 {
		blogConfig.Settings.RefreshInterval = 86400
	}
	if blogConfig.Settings.MaxPosts == 0 {
		blogConfig.Settings.MaxPosts = 200
	}
	if blogConfig.Settings.Timeout == 0 {
		blogConfig.Settings.Timeout = 30
	}

	return &blogConfig, nil
}

func (cc *ConfigCache) validateConfig(blogConfig *Config) error {
	if blogConfig == nil {
		return fmt.Errorf("blogConfig is nil")
	}

	requiredFields := map[string]string{
		"blog name": blogConfig.Name,
		"blog URL":  blogConfig.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	switch blogConfig.Method {
	case "", MethodAuto, MethodRSS, MethodCrawler:
	default:
		return fmt.Errorf("invalid method: %s", blogConfig.Method)
	}

	nonNegativeFields := map[string]int{
		"refresh interval": blogConfig.Settings.RefreshInterval,
		"max posts":        blogConfig.Settings.MaxPosts,
		"timeout":          blogConfig.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range blogConfig.Filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(name string) string {
	return filepath.Join(cc.blogsDir, name+".yml")
}
