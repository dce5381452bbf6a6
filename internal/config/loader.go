package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	goyaml "github.com/goccy/go-yaml"

	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
)

// Loader merges `.huskycat.yaml` (or `.huskycat.toml`, explicitly
// selected) across four layers, lowest to highest precedence: built-in
// zero value, user global, project, project-local, then environment
// variable overrides. Grounded directly on ccfeedback's ConfigLoader
// (home dir + project dir discovery, ordered file list,
// loadAndMergeConfig's "missing file is not an error" behavior),
// generalized with a fourth env-var layer per spec.md §6.
type Loader struct {
	homeDir    string
	projectDir string
}

// NewLoader constructs a Loader rooted at the current working
// directory and the user's home directory, matching
// jrossi/ccfeedback's NewConfigLoader.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, huskyerr.NewConfigError(huskyerr.InvalidValue, "resolve home directory: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, huskyerr.NewConfigError(huskyerr.InvalidValue, "resolve working directory: %v", err)
	}
	return &Loader{homeDir: home, projectDir: wd}, nil
}

// Paths returns the three file-based layers in precedence order,
// matching jrossi/ccfeedback's GetConfigPaths.
func (l *Loader) Paths() []string {
	return []string{
		filepath.Join(l.homeDir, ".huskycat.yaml"),
		filepath.Join(l.projectDir, ".huskycat.yaml"),
		filepath.Join(l.projectDir, ".huskycat.local.yaml"),
	}
}

// Load merges Paths() in order, then applies environment variable
// overrides, then validates the result against the JSON Schema.
func (l *Loader) Load() (*Config, error) {
	cfg := New()
	for _, path := range l.Paths() {
		if err := l.mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML reads an explicit `.huskycat.toml` path (the CLI mode's
// `--config` override, spec §6.2), skipping the YAML layer stack
// entirely — the alternate format is all-or-nothing, matching how
// CLI's explicit --config always wins outright over discovered files.
func LoadTOML(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, huskyerr.NewConfigError(huskyerr.InvalidValue, "parse toml config %s: %v", path, err)
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return huskyerr.NewConfigError(huskyerr.InvalidValue, "read config %s: %v", path, err)
	}

	var fileCfg Config
	if err := goyaml.Unmarshal(data, &fileCfg); err != nil {
		return huskyerr.NewConfigError(huskyerr.InvalidValue, "parse config %s: %v", path, err)
	}
	cfg.Merge(&fileCfg)
	return nil
}

// envPrefix namespaces every override, e.g. HUSKYCAT_MAX_WORKERS.
const envPrefix = "HUSKYCAT_"

// applyEnvOverrides is the fourth layer spec.md §6 adds beyond
// ccfeedback's three-file merge: a small, explicit allowlist of scalar
// overrides rather than generic struct-tag reflection, since only a
// handful of fields are meaningfully settable from a single
// environment variable.
func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnv("MODE"); ok {
		cfg.Mode = v
	}
	if v, ok := lookupEnv("MAX_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxWorkers = &n
		}
	}
	if v, ok := lookupEnv("FAIL_FAST"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.FailFast = &b
		}
	}
	if v, ok := lookupEnv("PROGRESS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Progress = &b
		}
	}
}

func lookupEnv(suffix string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + suffix)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
