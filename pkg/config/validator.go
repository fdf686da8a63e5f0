package config

import "fmt"

var validSenderKinds = map[string]struct{}{
	"contact":   {},
	"responder": {},
	"bot":       {},
	"system":    {},
}

// Validate checks structural invariants of a parsed configuration.
func Validate(cfg *RouterConfig) error {
	if cfg.Matcher.Temperature < 0 || cfg.Matcher.Temperature > 2 {
		return fmt.Errorf("matcher.temperature must be in [0, 2], got %v", cfg.Matcher.Temperature)
	}
	if cfg.Matcher.CandidateWindow < 1 {
		return fmt.Errorf("matcher.candidate_window must be positive, got %d", cfg.Matcher.CandidateWindow)
	}

	for _, kind := range cfg.Eligibility.AllowedSenders {
		if _, ok := validSenderKinds[kind]; !ok {
			return fmt.Errorf("eligibility.allowed_senders: unknown sender kind %q", kind)
		}
	}

	ttr := cfg.Defaults.TimeToRespond
	if ttr.Warning != nil && ttr.Deadline != nil && ttr.Warning.Duration > ttr.Deadline.Duration {
		return fmt.Errorf("defaults.time_to_respond: warning (%s) must not exceed deadline (%s)",
			ttr.Warning.Duration, ttr.Deadline.Duration)
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"memory\", got %q", cfg.Store.Driver)
	}

	switch cfg.Audit.Backend {
	case "redis":
		if cfg.Audit.Redis.Addr == "" {
			return fmt.Errorf("audit.redis.addr is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("audit.backend must be \"redis\" or \"memory\", got %q", cfg.Audit.Backend)
	}

	return nil
}
