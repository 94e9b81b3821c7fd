package agents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configDirName = "wayforward_cfg"

// ConfigDir returns the workspace-local configuration directory.
func ConfigDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, configDirName)
}

// DefaultConfigPath returns wayforward_cfg/config.yaml within the workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(ConfigDir(workspace), "config.yaml")
}

// Duration is a time.Duration that reads and writes as "5m", "30s", ...
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the explicit configuration passed to every constructor. There is
// no process-wide default instance.
type Config struct {
	Version     string            `yaml:"version"`
	Model       ModelConfig       `yaml:"model"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Research    WorkerConfig      `yaml:"research_worker"`
	Market      WorkerConfig      `yaml:"market_worker"`
	Tools       ToolsConfig       `yaml:"tools"`
	Logging     LoggingConfig     `yaml:"logging"`
	Store       StoreConfig       `yaml:"store"`
	Server      ServerConfig      `yaml:"server"`
}

// ModelConfig selects the language model.
type ModelConfig struct {
	Provider           string   `yaml:"provider"`
	Name               string   `yaml:"name"`
	BaseURL            string   `yaml:"base_url,omitempty"`
	Temperature        float64  `yaml:"temperature"`
	ImproveTemperature float64  `yaml:"improve_temperature"`
	MaxTokens          int      `yaml:"max_tokens,omitempty"`
	Timeout            Duration `yaml:"timeout"`
	NativeToolCalls    bool     `yaml:"native_tool_calls"`
}

// CoordinatorConfig bounds the coordinator loop.
type CoordinatorConfig struct {
	MaxSteps              int      `yaml:"max_steps"`
	ReplanInterval        int      `yaml:"replan_interval"`
	MaxDelegationAttempts int      `yaml:"max_delegation_attempts"`
	Timeout               Duration `yaml:"timeout"`
}

// WorkerConfig bounds a worker loop.
type WorkerConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

// ToolsConfig tunes the capability tools.
type ToolsConfig struct {
	SearchInterval Duration `yaml:"search_interval"`
	SearchBurst    int      `yaml:"search_burst"`
	MaxResults     int      `yaml:"max_results"`
	HTTPTimeout    Duration `yaml:"http_timeout"`
	PageCeiling    int      `yaml:"page_ceiling"`
	MarketEstimate int64    `yaml:"market_estimate"`
}

// LoggingConfig describes log output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	LLMDebug   bool   `yaml:"llm_debug"`
	AgentDebug bool   `yaml:"agent_debug"`
}

// StoreConfig locates the run history database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns the settings the pipeline was tuned with.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Model: ModelConfig{
			Provider:           "openai",
			Name:               "gpt-4o-mini",
			Temperature:        0.2,
			ImproveTemperature: 0.3,
			Timeout:            Duration(2 * time.Minute),
		},
		Coordinator: CoordinatorConfig{
			MaxSteps:              25,
			ReplanInterval:        5,
			MaxDelegationAttempts: 2,
			Timeout:               Duration(5 * time.Minute),
		},
		Research: WorkerConfig{MaxSteps: 4},
		Market:   WorkerConfig{MaxSteps: 1},
		Tools: ToolsConfig{
			SearchInterval: Duration(2 * time.Second),
			SearchBurst:    2,
			MaxResults:     8,
			HTTPTimeout:    Duration(30 * time.Second),
			PageCeiling:    10000,
			MarketEstimate: 69,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Store:   StoreConfig{Path: filepath.Join(configDirName, "runs.db")},
		Server: ServerConfig{
			Addr: ":8000",
			AllowedOrigins: []string{
				"http://localhost:8080",
				"http://localhost:5173",
				"http://localhost:3000",
				"http://127.0.0.1:8080",
				"http://127.0.0.1:5173",
				"http://127.0.0.1:3000",
			},
		},
	}
}

// applyDefaults repairs zero or negative values written explicitly.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.Model.Provider == "" {
		c.Model.Provider = def.Model.Provider
	}
	if c.Model.Name == "" {
		c.Model.Name = def.Model.Name
	}
	if c.Model.ImproveTemperature == 0 {
		c.Model.ImproveTemperature = def.Model.ImproveTemperature
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = def.Model.Timeout
	}
	if c.Coordinator.MaxSteps <= 0 {
		c.Coordinator.MaxSteps = def.Coordinator.MaxSteps
	}
	if c.Coordinator.ReplanInterval <= 0 {
		c.Coordinator.ReplanInterval = def.Coordinator.ReplanInterval
	}
	if c.Coordinator.MaxDelegationAttempts <= 0 {
		c.Coordinator.MaxDelegationAttempts = def.Coordinator.MaxDelegationAttempts
	}
	if c.Coordinator.Timeout <= 0 {
		c.Coordinator.Timeout = def.Coordinator.Timeout
	}
	if c.Research.MaxSteps <= 0 {
		c.Research.MaxSteps = def.Research.MaxSteps
	}
	if c.Market.MaxSteps <= 0 {
		c.Market.MaxSteps = def.Market.MaxSteps
	}
	if c.Tools.SearchBurst <= 0 {
		c.Tools.SearchBurst = def.Tools.SearchBurst
	}
	if c.Tools.MaxResults <= 0 {
		c.Tools.MaxResults = def.Tools.MaxResults
	}
	if c.Tools.HTTPTimeout <= 0 {
		c.Tools.HTTPTimeout = def.Tools.HTTPTimeout
	}
	if c.Tools.PageCeiling <= 0 {
		c.Tools.PageCeiling = def.Tools.PageCeiling
	}
	if c.Tools.MarketEstimate == 0 {
		c.Tools.MarketEstimate = def.Tools.MarketEstimate
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
}

// LoadConfig loads the config or returns defaults when the file is missing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	// Decoding over the defaults keeps keys the file leaves out.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// SaveConfig writes the config to disk.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
