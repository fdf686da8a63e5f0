package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/supportflow/conversation-router/pkg/observability"
)

var (
	config     *RouterConfig
	configOnce sync.Once
	configErr  error
	configMu   sync.RWMutex
)

// Load loads the configuration from the specified YAML file once and caches it
// globally. Subsequent calls return the cached value.
func Load(configPath string) (*RouterConfig, error) {
	configOnce.Do(func() {
		cfg, err := Parse(configPath)
		if err != nil {
			configErr = err
			return
		}
		configMu.Lock()
		config = cfg
		configMu.Unlock()
	})
	if configErr != nil {
		return nil, configErr
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return config, nil
}

// Parse parses the YAML config file without touching the global cache.
func Parse(configPath string) (*RouterConfig, error) {
	// Resolve symlinks to handle Kubernetes ConfigMap mounts
	resolved, _ := filepath.EvalSymlinks(configPath)
	if resolved == "" {
		resolved = configPath
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RouterConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	observability.Infof("Config loaded: model=%s candidate_window=%d store=%s audit=%s",
		cfg.Matcher.Model, cfg.Matcher.CandidateWindow, cfg.Store.Driver, cfg.Audit.Backend)
	return cfg, nil
}

// Replace replaces the globally cached config. It is safe for concurrent readers.
func Replace(newCfg *RouterConfig) {
	configMu.Lock()
	config = newCfg
	configErr = nil
	configMu.Unlock()
	observability.Infof("Config replaced: model=%s", newCfg.Matcher.Model)
}

// Get returns the current configuration, or nil when none has been loaded.
func Get() *RouterConfig {
	configMu.RLock()
	defer configMu.RUnlock()
	return config
}
