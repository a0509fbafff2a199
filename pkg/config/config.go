// Package config provides configuration loading, validation, and management for riskadvisor.
//
// Configuration lives in <projectDir>/.riskadvisor/ as config.json, config.yaml or config.yml.
// ${VAR} placeholders are substituted from the environment before parsing. A single global
// Config is kept behind a mutex and handed out BY VALUE; a missing file is replaced with
// defaults which are written back as JSON.
//
//	err := config.Load(projectDir)
//	cfg, err := config.Get()
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/version"
)

// Project config constants.
const (
	ProjectConfigDir = ".riskadvisor"
	ConfigFileJSON   = "config.json"
	ConfigFileYAML   = "config.yaml"
	ConfigFileYML    = "config.yml"
	SchemaVersion    = "1.0"
)

// Defaults.
const (
	DefaultBaseURL        = "https://ebizapi.zeabur.app"
	DefaultTimeout        = 30 * time.Second
	DefaultUnitSuffix     = "만원"
	DefaultUndecidedLabel = "미정"
	DefaultStorePath      = ".riskadvisor/session.db"
	DefaultEventsDir      = ".riskadvisor/events"
	DefaultNamespace      = "riskadvisor"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Environment overrides.
const (
	EnvBaseURL  = "RISKADVISOR_BASE_URL"
	EnvClientID = "RISKADVISOR_CLIENT_ID"
)

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config *Config
	logger *logx.Logger
	mu     sync.RWMutex

	envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// Duration is a time.Duration that reads and writes as "30s" in JSON and YAML.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "30s" strings or integer nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(n)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// APIConfig configures the remote analysis service client.
type APIConfig struct {
	BaseURL        string   `json:"base_url" yaml:"base_url"`
	ClientID       string   `json:"client_id" yaml:"client_id"` // Sent as User-Agent
	ConnectTimeout Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   Duration `json:"write_timeout" yaml:"write_timeout"`
}

// BudgetConfig controls how a budget is rendered on the wire.
type BudgetConfig struct {
	UnitSuffix     string `json:"unit_suffix" yaml:"unit_suffix"`
	UndecidedLabel string `json:"undecided_label" yaml:"undecided_label"`
}

// WorkflowConfig controls orchestrator behavior.
type WorkflowConfig struct {
	AutoFetchQuestions *bool `json:"auto_fetch_questions,omitempty" yaml:"auto_fetch_questions,omitempty"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "memory" or "sqlite"
	Path    string `json:"path" yaml:"path"`       // sqlite file, relative to the project dir
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// EventsConfig controls the JSONL transition journal.
type EventsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Dir     string `json:"dir" yaml:"dir"`
}

// DebugConfig defines configuration for debug logging.
type DebugConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Domains []string `json:"domains,omitempty" yaml:"domains,omitempty"`
}

// Config is the complete riskadvisor configuration.
type Config struct {
	SchemaVersion string          `json:"schema_version" yaml:"schema_version"`
	API           *APIConfig      `json:"api" yaml:"api"`
	Budget        *BudgetConfig   `json:"budget" yaml:"budget"`
	Workflow      *WorkflowConfig `json:"workflow" yaml:"workflow"`
	Store         *StoreConfig    `json:"store" yaml:"store"`
	Metrics       *MetricsConfig  `json:"metrics" yaml:"metrics"`
	Events        *EventsConfig   `json:"events" yaml:"events"`
	Debug         *DebugConfig    `json:"debug" yaml:"debug"`
}

// AutoFetchQuestions reports whether questions are requested right after a session starts.
func (c *Config) AutoFetchQuestions() bool {
	if c.Workflow == nil || c.Workflow.AutoFetchQuestions == nil {
		return true
	}
	return *c.Workflow.AutoFetchQuestions
}

// Get returns the current global config BY VALUE.
// Must call Load first.
func Get() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config not initialized - call Load first")
	}
	return *config, nil
}

// SetForTesting sets the global config. Pass nil to reset.
func SetForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
}

// Load reads <projectDir>/.riskadvisor/config.{yaml,yml,json} into the global singleton.
//
// Missing file: defaults are applied and saved as config.json.
// Unparseable file: an error is returned so user edits are never overwritten.
func Load(inputProjectDir string) error {
	mu.Lock()
	defer mu.Unlock()

	path := findConfigFile(inputProjectDir)

	if path == "" {
		jsonPath := filepath.Join(inputProjectDir, ProjectConfigDir, ConfigFileJSON)
		getLogger().Info("Config file not found, creating defaults at %s", jsonPath)
		cfg := Defaults()
		applyEnvOverrides(cfg)
		if err := validateConfig(cfg); err != nil {
			return fmt.Errorf("default config validation failed: %w", err)
		}
		if err := Save(cfg, inputProjectDir); err != nil {
			return fmt.Errorf("failed to save initial config: %w", err)
		}
		config = cfg
		return nil
	}

	getLogger().Info("Loading config from %s", path)
	cfg, err := LoadFile(path)
	if err != nil {
		return fmt.Errorf("fatal: config file exists but cannot be parsed (to avoid overwriting your changes): %w", err)
	}
	config = cfg
	return nil
}

// LoadFile parses, defaults, and validates a single config file without touching the singleton.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := substituteEnv(string(data))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON %s: %w", path, err)
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes config as JSON to <projectDir>/.riskadvisor/config.json.
func Save(cfg *Config, dir string) error {
	configPath := filepath.Join(dir, ProjectConfigDir, ConfigFileJSON)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolvePath makes p absolute against dir unless it already is.
func ResolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileYAML, ConfigFileYML, ConfigFileJSON} {
		candidate := filepath.Join(dir, ProjectConfigDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func substituteEnv(data string) string {
	return envVarRegex.ReplaceAllStringFunc(data, func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

// Defaults returns a config with every section populated.
func Defaults() *Config {
	cfg := &Config{SchemaVersion: SchemaVersion}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}
	if cfg.API == nil {
		cfg.API = &APIConfig{}
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
	if cfg.API.ClientID == "" {
		cfg.API.ClientID = version.ClientID()
	}
	if cfg.API.ConnectTimeout == 0 {
		cfg.API.ConnectTimeout = Duration(DefaultTimeout)
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = Duration(DefaultTimeout)
	}
	if cfg.API.WriteTimeout == 0 {
		cfg.API.WriteTimeout = Duration(DefaultTimeout)
	}

	if cfg.Budget == nil {
		cfg.Budget = &BudgetConfig{}
	}
	if cfg.Budget.UnitSuffix == "" {
		cfg.Budget.UnitSuffix = DefaultUnitSuffix
	}
	if cfg.Budget.UndecidedLabel == "" {
		cfg.Budget.UndecidedLabel = DefaultUndecidedLabel
	}

	if cfg.Workflow == nil {
		cfg.Workflow = &WorkflowConfig{}
	}

	if cfg.Store == nil {
		cfg.Store = &StoreConfig{}
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreSQLite
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
	}

	if cfg.Events == nil {
		cfg.Events = &EventsConfig{}
	}
	if cfg.Events.Dir == "" {
		cfg.Events.Dir = DefaultEventsDir
	}

	if cfg.Debug == nil {
		cfg.Debug = &DebugConfig{}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = strings.TrimSuffix(v, "/")
	}
	if v := os.Getenv(EnvClientID); v != "" {
		cfg.API.ClientID = v
	}
}

func validateConfig(cfg *Config) error {
	if !strings.HasPrefix(cfg.API.BaseURL, "http://") && !strings.HasPrefix(cfg.API.BaseURL, "https://") {
		return fmt.Errorf("api base_url must start with 'http://' or 'https://' (got %q)", cfg.API.BaseURL)
	}
	if strings.TrimSpace(cfg.API.ClientID) == "" {
		return fmt.Errorf("api client_id must not be empty")
	}
	for name, d := range map[string]Duration{
		"connect_timeout": cfg.API.ConnectTimeout,
		"read_timeout":    cfg.API.ReadTimeout,
		"write_timeout":   cfg.API.WriteTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("api %s must be positive (got %s)", name, d.Std())
		}
	}
	switch cfg.Store.Backend {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("store backend must be %q or %q (got %q)", StoreMemory, StoreSQLite, cfg.Store.Backend)
	}
	return nil
}
