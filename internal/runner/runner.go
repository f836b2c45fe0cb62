// Package runner is the top-level orchestrator: it discovers scenario files,
// loads and resolves them, executes the cases and writes the run report.
package runner

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/frherrer/GoE2E-LocoRunner/internal/builtins"
	"github.com/frherrer/GoE2E-LocoRunner/internal/config"
	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
	"github.com/frherrer/GoE2E-LocoRunner/internal/engine"
	"github.com/frherrer/GoE2E-LocoRunner/internal/loader"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/report"
	"github.com/frherrer/GoE2E-LocoRunner/internal/resolver"
	"github.com/frherrer/GoE2E-LocoRunner/internal/scanner"
)

// Summary aggregates one full run: executed case results plus the files that
// failed before execution (parse-class failures are kept apart from case
// failures).
type Summary struct {
	Results      []domain.CaseResult
	LoadFailures []error
}

// Passed counts cases that completed with every expectation satisfied.
func (s *Summary) Passed() int {
	n := 0
	for _, result := range s.Results {
		if result.Passed() {
			n++
		}
	}
	return n
}

// Failed counts executed cases that did not pass.
func (s *Summary) Failed() int {
	return len(s.Results) - s.Passed()
}

// OK reports whether every file loaded and every case passed.
func (s *Summary) OK() bool {
	return len(s.LoadFailures) == 0 && s.Failed() == 0
}

// Runner wires scanner, loader, resolver and engine together for one
// configuration.
type Runner struct {
	cfg     *config.Config
	scanner scanner.Scanner
	reg     *registry.Registry
	log     *logrus.Logger
}

// New creates a Runner with a fully populated, frozen registry.
func New(cfg *config.Config, log *logrus.Logger) *Runner {
	reg := registry.New()
	builtins.Register(reg)
	builtins.RegisterShell(reg, builtins.ShellOptions{
		DefaultTimeout:  cfg.Shell.DefaultTimeout,
		BlockedPatterns: cfg.Shell.BlockedPatterns,
		Shell:           cfg.Shell.Shell,
		ShellFlag:       cfg.Shell.ShellFlag,
	})
	reg.Freeze()

	recursive := true
	if cfg.Input.Recursive != nil {
		recursive = *cfg.Input.Recursive
	}

	return &Runner{
		cfg:     cfg,
		scanner: scanner.NewScanner(recursive),
		reg:     reg,
		log:     log,
	}
}

// Registry exposes the runner's frozen registry, e.g. for schema generation.
func (r *Runner) Registry() *registry.Registry {
	return r.reg
}

// loadedCase is a resolved case waiting for execution.
type loadedCase struct {
	file  string
	graph *resolver.Graph
}

// Run executes every case found under the configured input directories.
// All files are loaded and resolved before the first case executes, so a
// malformed file is reported even when an earlier case would have failed,
// and no step runs against a tree that has not been fully validated.
// Scenario files that fail to load or resolve are recorded in the summary
// and do not stop the remaining files.
func (r *Runner) Run() (*Summary, error) {
	summary := &Summary{}

	var cases []loadedCase
	for _, dir := range r.cfg.Input.Directories {
		r.log.Debugf("Scanning directory: %s", dir)
		files, err := r.scanner.Scan(dir, r.cfg.Input.Include, r.cfg.Input.Exclude)
		if err != nil {
			r.log.Warnf("Failed to scan directory %s: %v", dir, err)
			continue
		}

		fsys := os.DirFS(dir)
		ld := loader.New(r.reg)
		res := resolver.New(ld, fsys)

		for _, file := range files {
			doc, err := ld.LoadFS(fsys, file)
			if err != nil {
				summary.LoadFailures = append(summary.LoadFailures, err)
				r.log.WithError(err).Errorf("Failed to load %s", file)
				continue
			}
			if doc.Header.Kind == domain.KindTemplate {
				r.log.Debugf("Skipping template file %s", file)
				continue
			}

			graph, err := res.Resolve(doc)
			if err != nil {
				summary.LoadFailures = append(summary.LoadFailures, err)
				r.log.WithError(err).Errorf("Failed to resolve %s", file)
				continue
			}
			cases = append(cases, loadedCase{file: file, graph: graph})
		}
	}

	eng := engine.New(r.reg, engine.WithLogger(r.log))
	for _, c := range cases {
		if r.cfg.DryRun {
			r.log.Infof("[DRY-RUN] Would run case %q (%s)", c.graph.Case.Title, c.file)
			continue
		}

		result, err := eng.Run(c.graph, r.caseParams(c.graph))
		if err != nil {
			summary.LoadFailures = append(summary.LoadFailures, err)
			r.log.WithError(err).Errorf("Case %s rejected before execution", c.file)
			continue
		}
		summary.Results = append(summary.Results, *result)
	}

	if len(summary.Results) == 0 && len(summary.LoadFailures) == 0 {
		r.log.Warn("No runnable cases found")
	}

	if err := r.writeReport(summary); err != nil {
		return summary, err
	}

	r.log.Infof("Run finished: %d passed, %d failed, %d not loaded",
		summary.Passed(), summary.Failed(), len(summary.LoadFailures))
	return summary, nil
}

// Validate loads and resolves every scenario file without executing anything,
// returning the parse failures found.
func (r *Runner) Validate() []error {
	var failures []error

	for _, dir := range r.cfg.Input.Directories {
		files, err := r.scanner.Scan(dir, r.cfg.Input.Include, r.cfg.Input.Exclude)
		if err != nil {
			failures = append(failures, err)
			continue
		}

		fsys := os.DirFS(dir)
		ld := loader.New(r.reg)
		res := resolver.New(ld, fsys)

		for _, file := range files {
			doc, err := ld.LoadFS(fsys, file)
			if err != nil {
				failures = append(failures, err)
				continue
			}
			if doc.Header.Kind != domain.KindCase {
				continue
			}
			if _, err := res.Resolve(doc); err != nil {
				failures = append(failures, err)
			}
		}
	}
	return failures
}

// caseParams narrows the configured global parameter values down to the
// names this case declares, so unrelated global entries do not trip the
// engine's undeclared-parameter check.
func (r *Runner) caseParams(graph *resolver.Graph) map[string]any {
	params := map[string]any{}
	for name, value := range r.cfg.Params {
		if _, ok := graph.Case.Param(name); ok {
			params[name] = value
		}
	}
	return params
}

func (r *Runner) writeReport(summary *Summary) error {
	if r.cfg.Report.File == "" || r.cfg.DryRun {
		return nil
	}

	eng, err := report.NewEngine(r.cfg.Report.TemplateDir)
	if err != nil {
		return err
	}
	rendered, err := eng.Render(summary.Results, r.cfg.Report.Template)
	if err != nil {
		return err
	}

	r.log.Infof("Writing report: %s", r.cfg.Report.File)
	if err := os.WriteFile(r.cfg.Report.File, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
