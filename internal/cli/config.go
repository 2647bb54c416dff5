package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/orizon-lang/stackscript/internal/compilation"
)

// Config holds the settings shared by every stackc subcommand. Command line
// flags override values read from the config file.
type Config struct {
	Verbose bool `json:"verbose"`
	Debug   bool `json:"debug"`

	MaxAnalysisIterations int    `json:"max_analysis_iterations,omitempty"`
	MaxFlattenIterations  int    `json:"max_flatten_iterations,omitempty"`
	ConcurrentParse       bool   `json:"concurrent_parse"`
	Workers               int    `json:"workers,omitempty"`
	TargetVersion         string `json:"target_version,omitempty"`
	ErrorLimit            int    `json:"error_limit,omitempty"`
}

// LoadConfig loads configuration from file. A missing file yields the
// defaults.
func LoadConfig(configPath string) (*Config, error) {
	def := compilation.DefaultOptions()
	config := &Config{
		MaxAnalysisIterations: def.MaxAnalysisIterations,
		MaxFlattenIterations:  def.MaxFlattenIterations,
	}

	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.MaxAnalysisIterations < 0 || config.MaxFlattenIterations < 0 {
		return nil, fmt.Errorf("invalid config file %s: iteration bounds must not be negative", configPath)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Options converts the configuration to compiler options.
func (c *Config) Options() compilation.Options {
	return compilation.Options{
		MaxAnalysisIterations: c.MaxAnalysisIterations,
		MaxFlattenIterations:  c.MaxFlattenIterations,
		ConcurrentParse:       c.ConcurrentParse,
		Workers:               c.Workers,
		TargetVersion:         c.TargetVersion,
		ErrorLimit:            c.ErrorLimit,
	}
}
