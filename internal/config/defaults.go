package config

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	recursive := true
	return &Config{
		Input: InputConfig{
			Directories: []string{"scenarios"},
			Include:     []string{"*.yaml", "*.yml"},
			Exclude:     []string{"vendor/**", "node_modules/**"},
			Recursive:   &recursive,
		},
		Params: map[string]any{},
		Shell: ShellConfig{
			DefaultTimeout: "30s",
			BlockedPatterns: []string{
				"rm -rf /",
				"mkfs",
				"dd if=",
				"format c:",
				"> /dev/sd",
			},
			Shell:     "/bin/sh",
			ShellFlag: "-c",
		},
		Report: ReportConfig{
			Template: "summary",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		DryRun: false,
	}
}
