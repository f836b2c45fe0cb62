package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/frherrer/GoE2E-LocoRunner/internal/config"
	"github.com/frherrer/GoE2E-LocoRunner/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the configured scenario cases",
	Long:  `Scans the input directories for scenario files, resolves templates and runs every case, reporting per-step results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}

		if dryRun {
			cfg.DryRun = true
		}

		log.Info("Configuration loaded successfully")
		log.Info("Scanning directories", "directories", cfg.Input.Directories)

		summary, err := runner.New(cfg, engineLogger(cfg)).Run()
		if err != nil {
			return err
		}
		if !summary.OK() {
			return fmt.Errorf("%d case(s) failed, %d file(s) not loaded",
				summary.Failed(), len(summary.LoadFailures))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// engineLogger builds the logrus logger the runner and engine report on,
// mapped from the configured level.
func engineLogger(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	switch {
	case verbose, cfg.Logging.Level == "debug":
		l.SetLevel(logrus.DebugLevel)
	case cfg.Logging.Level == "warn":
		l.SetLevel(logrus.WarnLevel)
	case cfg.Logging.Level == "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
