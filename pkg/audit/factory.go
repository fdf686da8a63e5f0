package audit

import (
	"fmt"

	"github.com/supportflow/conversation-router/pkg/config"
	"github.com/supportflow/conversation-router/pkg/observability"
)

// NewStoreFromConfig creates an audit store from router configuration.
// When auditing is disabled it returns a disabled memory store so callers
// never need a nil check.
func NewStoreFromConfig(cfg config.AuditConfig) (Store, error) {
	if !cfg.Enabled {
		observability.Debugf("Match audit disabled, using disabled memory store")
		return NewMemoryStore(0, 0, false), nil
	}

	switch cfg.Backend {
	case "memory", "":
		observability.Infof("Creating memory audit store with max_records=%d ttl=%ds",
			cfg.MaxRecords, cfg.TTLSeconds)
		return NewMemoryStore(cfg.MaxRecords, cfg.TTLSeconds, true), nil

	case "redis":
		return NewRedisStore(RedisStoreConfig{
			Address:    cfg.Redis.Addr,
			Database:   cfg.Redis.DB,
			Password:   cfg.Redis.Password,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			TTLSeconds: cfg.TTLSeconds,
		})

	default:
		return nil, fmt.Errorf("unknown audit backend %q (supported: memory, redis)", cfg.Backend)
	}
}
