// Package config loads the runner configuration file (locorunner.yaml).
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
)

// Config is the top-level configuration struct.
type Config struct {
	Input   InputConfig    `yaml:"input"`
	Params  map[string]any `yaml:"params"`
	Shell   ShellConfig    `yaml:"shell"`
	Report  ReportConfig   `yaml:"report"`
	Logging LoggingConfig  `yaml:"logging"`
	DryRun  bool           `yaml:"dry_run"`
}

// InputConfig selects the scenario files to run.
type InputConfig struct {
	Directories []string `yaml:"directories"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	Recursive   *bool    `yaml:"recursive"` // pointer to distinguish unset from false
}

// ShellConfig governs the shell action: execution defaults and the security
// policy applied to every command before it runs.
type ShellConfig struct {
	DefaultTimeout  string   `yaml:"default_timeout"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
	Shell           string   `yaml:"shell"`
	ShellFlag       string   `yaml:"shell_flag"`
}

// ReportConfig controls the rendered run report. An empty file disables
// report writing; results still go to the log.
type ReportConfig struct {
	File        string `yaml:"file"`
	TemplateDir string `yaml:"template_dir"`
	Template    string `yaml:"template"`
}

// LoggingConfig controls runner log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads a YAML configuration file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewParseError("config", path, 0, "failed to read config file", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.NewParseError("config", path, 0, "failed to parse config file", err)
	}

	return cfg, nil
}
