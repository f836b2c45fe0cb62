package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frherrer/GoE2E-LocoRunner/internal/config"
	"github.com/frherrer/GoE2E-LocoRunner/internal/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate scenario files without running them",
	Long:  `Loads every scenario file, checks document structure, action schemas and expectation operators, and resolves template inclusion. Nothing is executed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}

		failures := runner.New(cfg, engineLogger(cfg)).Validate()
		if len(failures) > 0 {
			for _, failure := range failures {
				log.Error("Validation failure", "error", failure)
			}
			return fmt.Errorf("%d scenario file(s) failed validation", len(failures))
		}

		fmt.Println("All scenario files are valid.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
