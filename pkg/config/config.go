package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m" or "30s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// RouterConfig is the top-level configuration for the conversation router.
type RouterConfig struct {
	Matcher     MatcherConfig     `yaml:"matcher"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Redaction   RedactionConfig   `yaml:"redaction"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
	Store       StoreConfig       `yaml:"store"`
	Audit       AuditConfig       `yaml:"audit"`
}

// MatcherConfig controls the AI-assisted matching path.
type MatcherConfig struct {
	// Endpoint is the OpenAI-compatible chat completions endpoint.
	Endpoint string `yaml:"endpoint"`
	// Model is the classifier model identifier.
	Model string `yaml:"model"`
	// Temperature passed to the classifier model.
	Temperature float64 `yaml:"temperature"`
	// CandidateWindow bounds how many recently-active conversations are
	// offered to the classifier as candidates.
	CandidateWindow int `yaml:"candidate_window"`
	// FewShotLimit bounds how many prior resolved matches are included
	// as few-shot examples.
	FewShotLimit int `yaml:"few_shot_limit"`
	// Timeout bounds a single classifier call.
	Timeout Duration `yaml:"timeout"`
	// PromptTemplate overrides the built-in system prompt when non-empty.
	PromptTemplate string `yaml:"prompt_template"`
}

// EligibilityConfig is the centralized rule set deciding which senders may
// start a new conversation.
type EligibilityConfig struct {
	// AllowedSenders lists sender kinds eligible to start conversations.
	// Valid values: "contact", "responder", "bot", "system".
	AllowedSenders []string `yaml:"allowed_senders"`
}

// RedactionConfig controls PII handling before text leaves the process.
type RedactionConfig struct {
	// AllowUnredacted permits sending text through unredacted when span
	// detection is unavailable. Default false: fail closed, skip the AI path.
	AllowUnredacted bool `yaml:"allow_unredacted"`
}

// DefaultsConfig holds fallbacks used when a room carries no configuration.
type DefaultsConfig struct {
	TimeToRespond TimeToRespondConfig `yaml:"time_to_respond"`
}

// TimeToRespondConfig is the YAML form of a response-time threshold.
type TimeToRespondConfig struct {
	Warning  *Duration `yaml:"warning,omitempty"`
	Deadline *Duration `yaml:"deadline,omitempty"`
}

// StoreConfig selects and configures the conversation store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	// DSN is the SQLite data source name. Ignored by the memory driver.
	DSN string `yaml:"dsn"`
}

// AuditConfig configures the match-evidence audit trail.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend is "memory" or "redis".
	Backend    string      `yaml:"backend"`
	MaxRecords int         `yaml:"max_records"`
	TTLSeconds int         `yaml:"ttl_seconds"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for the Redis audit backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// applyDefaults fills unset fields with sensible defaults.
func (c *RouterConfig) applyDefaults() {
	if c.Matcher.Model == "" {
		c.Matcher.Model = "gpt-4o"
	}
	if c.Matcher.CandidateWindow <= 0 {
		c.Matcher.CandidateWindow = 10
	}
	if c.Matcher.FewShotLimit <= 0 {
		c.Matcher.FewShotLimit = 6
	}
	if c.Matcher.Timeout.Duration <= 0 {
		c.Matcher.Timeout = Duration{30 * time.Second}
	}
	if len(c.Eligibility.AllowedSenders) == 0 {
		c.Eligibility.AllowedSenders = []string{"contact"}
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = "memory"
	}
	if c.Audit.MaxRecords <= 0 {
		c.Audit.MaxRecords = 200
	}
}
