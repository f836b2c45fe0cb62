package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frherrer/GoE2E-LocoRunner/internal/config"
	"github.com/frherrer/GoE2E-LocoRunner/internal/runner"
	"github.com/frherrer/GoE2E-LocoRunner/internal/schemagen"
)

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Write the DSL surface as a JSON document",
	Long:  `Dumps every registered action, expectation operator, content decoder and expression tag for editor tooling and documentation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		reg := runner.New(cfg, engineLogger(cfg)).Registry()
		if schemaOut == "" {
			data, err := schemagen.Marshal(reg)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		if err := schemagen.WriteFile(reg, schemaOut); err != nil {
			return err
		}
		log.Info("Schema written", "path", schemaOut)
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOut, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(schemaCmd)
}
