// Package config loads and merges HuskyCat's on-disk configuration:
// `.huskycat.yaml` (primary format) or `.huskycat.toml` (alternate,
// selected via --config), validated against a JSON Schema before use.
//
// Grounded on jrossi/ccfeedback's config.go (AppConfig/Merge
// field-precedence logic) and config_loader.go (ConfigLoader's
// three-file merge), generalized from JSON to YAML as the primary
// format and from three layers to four (env var overrides added).
package config

import (
	"time"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
)

// ToolOverride mirrors ccfeedback's LinterConfig: per-tool enable/
// disable plus a free-form config blob handed to the tool descriptor's
// own argv construction (not interpreted by this package).
type ToolOverride struct {
	Enabled *bool          `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty"`
	Args    []string       `yaml:"args,omitempty" toml:"args,omitempty" json:"args,omitempty"`
	Config  map[string]any `yaml:"config,omitempty" toml:"config,omitempty" json:"config,omitempty"`
}

// RuleOverride mirrors ccfeedback's RuleOverride: apply a tool-
// specific config fragment only to files matching Pattern.
type RuleOverride struct {
	Pattern string         `yaml:"pattern" toml:"pattern" json:"pattern"`
	Tool    string         `yaml:"tool" toml:"tool" json:"tool"` // "*" applies to every tool
	Config  map[string]any `yaml:"config,omitempty" toml:"config,omitempty" json:"config,omitempty"`
}

// Config is the complete merged configuration document.
type Config struct {
	Mode           string                  `yaml:"mode,omitempty" toml:"mode,omitempty" json:"mode,omitempty"`
	MaxWorkers     *int                    `yaml:"max_workers,omitempty" toml:"max_workers,omitempty" json:"max_workers,omitempty"`
	FailFast       *bool                   `yaml:"fail_fast,omitempty" toml:"fail_fast,omitempty" json:"fail_fast,omitempty"`
	PerToolTimeout *Duration               `yaml:"per_tool_timeout,omitempty" toml:"per_tool_timeout,omitempty" json:"per_tool_timeout,omitempty"`
	Retention      *Duration               `yaml:"retention,omitempty" toml:"retention,omitempty" json:"retention,omitempty"`
	Progress       *bool                   `yaml:"progress,omitempty" toml:"progress,omitempty" json:"progress,omitempty"`
	Tools          map[string]ToolOverride `yaml:"tools,omitempty" toml:"tools,omitempty" json:"tools,omitempty"`
	Rules          []RuleOverride          `yaml:"rules,omitempty" toml:"rules,omitempty" json:"rules,omitempty"`
	ConfiguredSet  []string                `yaml:"configured,omitempty" toml:"configured,omitempty" json:"configured,omitempty"`
}

// Duration wraps time.Duration for human-readable ("30s", "2m")
// YAML/TOML/JSON values, mirroring ccfeedback's config.go Duration
// wrapper (there implemented for encoding/json; generalized here to
// also round-trip through goccy/go-yaml and BurntSushi/toml, both of
// which call the same UnmarshalText/MarshalText hooks).
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// New returns an empty Config with its maps/slices initialized, ready
// to be merged into.
func New() *Config {
	return &Config{Tools: map[string]ToolOverride{}}
}

// Merge combines other into c, with other taking precedence field by
// field — exactly ccfeedback's AppConfig.Merge discipline (scalar
// overwrite, map overwrite-by-key, Rules appended; the ConfiguredSet
// slice is replaced, not appended).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Mode != "" {
		c.Mode = other.Mode
	}
	if other.MaxWorkers != nil {
		c.MaxWorkers = other.MaxWorkers
	}
	if other.FailFast != nil {
		c.FailFast = other.FailFast
	}
	if other.PerToolTimeout != nil {
		c.PerToolTimeout = other.PerToolTimeout
	}
	if other.Retention != nil {
		c.Retention = other.Retention
	}
	if other.Progress != nil {
		c.Progress = other.Progress
	}
	if other.ConfiguredSet != nil {
		c.ConfiguredSet = other.ConfiguredSet
	}

	if c.Tools == nil {
		c.Tools = map[string]ToolOverride{}
	}
	for name, ov := range other.Tools {
		existing, ok := c.Tools[name]
		if !ok {
			c.Tools[name] = ov
			continue
		}
		if ov.Enabled != nil {
			existing.Enabled = ov.Enabled
		}
		if ov.Args != nil {
			existing.Args = ov.Args
		}
		if ov.Config != nil {
			existing.Config = ov.Config
		}
		c.Tools[name] = existing
	}

	c.Rules = append(c.Rules, other.Rules...)
}

// IsToolEnabled reports whether name is enabled, defaulting to true
// exactly as ccfeedback's AppConfig.IsLinterEnabled does.
func (c *Config) IsToolEnabled(name string) bool {
	ov, ok := c.Tools[name]
	if !ok || ov.Enabled == nil {
		return true
	}
	return *ov.Enabled
}

// ApplyDefaults returns a huskycat.RunRequest seeded from c. MaxWorkers
// and PerToolTimeout are filled only where req leaves them zero, so a
// CLI flag value wins; FailFast has no unset value and is overwritten
// whenever c sets it.
func (c *Config) ApplyDefaults(req huskycat.RunRequest) huskycat.RunRequest {
	if c.MaxWorkers != nil && req.MaxWorkers == 0 {
		req.MaxWorkers = *c.MaxWorkers
	}
	if c.FailFast != nil {
		req.FailFast = *c.FailFast
	}
	if c.PerToolTimeout != nil && req.PerToolTimeout == 0 {
		req.PerToolTimeout = c.PerToolTimeout.Duration
	}
	return req
}
