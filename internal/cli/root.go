package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	dryRun  bool
	log     *slog.Logger
)

// rootCmd is the base command for locorunner.
var rootCmd = &cobra.Command{
	Use:   "locorunner",
	Short: "Run declarative YAML E2E scenarios",
	Long: `LocoRunner loads declarative scenario files (cases, templates, steps),
resolves template inclusion and executes each case against the registered
actions, recording pass/fail results per step.

Everything is driven by a YAML configuration file (locorunner.yaml).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "locorunner.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "load and resolve but don't execute")

	// Initialize default logger (overridden in PersistentPreRun)
	log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
