package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
)

// Validate checks the Config for required fields and valid values.
func Validate(cfg *Config) error {
	var errs []string

	// Input validation
	if len(cfg.Input.Directories) == 0 {
		errs = append(errs, "input.directories must not be empty")
	}
	if len(cfg.Input.Include) == 0 {
		errs = append(errs, "input.include must not be empty")
	}

	// Shell validation
	if cfg.Shell.DefaultTimeout != "" {
		if _, err := time.ParseDuration(cfg.Shell.DefaultTimeout); err != nil {
			errs = append(errs, fmt.Sprintf("shell.default_timeout is not a valid duration: %v", err))
		}
	}
	if cfg.Shell.Shell == "" {
		errs = append(errs, "shell.shell must not be empty")
	}

	// Report validation
	if cfg.Report.File != "" && cfg.Report.Template == "" {
		errs = append(errs, "report.template must be set when report.file is set")
	}

	// Validate logging level
	if cfg.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[cfg.Logging.Level] {
			errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error (got %q)", cfg.Logging.Level))
		}
	}

	if len(errs) > 0 {
		return domain.NewParseError("config", "", 0, fmt.Sprintf("validation failed: %s", strings.Join(errs, "; ")), nil)
	}

	return nil
}
