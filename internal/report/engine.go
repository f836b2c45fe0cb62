// Package report renders run results into a human-readable report through
// text/template. Templates can be loaded from a directory to override the
// built-in summary layout.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
)

// Engine renders case results into report strings.
type Engine interface {
	Render(results []domain.CaseResult, templateName string) (string, error)
	ListTemplates() []string
}

// reportData is the struct passed to templates.
type reportData struct {
	Results []domain.CaseResult
	Total   int
	Passed  int
	Failed  int
}

// DefaultEngine implements Engine.
type DefaultEngine struct {
	templates map[string]*template.Template
}

// defaultSummary is the built-in report template, used when no template
// directory overrides it.
const defaultSummary = `Run summary: {{.Passed}}/{{.Total}} passed
{{range .Results -}}
{{statusMark .Status}} {{.Title}} ({{.File}}, {{formatDuration .Duration}})
{{- if .Err}}
    {{.Err}}
{{- end}}
{{range .Steps}}{{if eq (printf "%s" .Status) "failed"}}    step {{.Index}} {{.Action}}{{if .Title}} ({{.Title}}){{end}} failed
{{range .Checks}}{{if not .Passed}}      [{{.Operator}}] {{.Detail}}
{{end}}{{end}}{{end}}{{end}}
{{- end}}`

// NewEngine creates a report engine. When templateDir is non-empty, every
// .tmpl file in it is loaded and may shadow the built-in summary template.
func NewEngine(templateDir string) (*DefaultEngine, error) {
	engine := &DefaultEngine{templates: make(map[string]*template.Template)}

	builtin, err := template.New("summary").Funcs(CustomFuncMap()).Parse(defaultSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in template: %w", err)
	}
	engine.templates["summary"] = builtin

	if templateDir != "" {
		if err := engine.loadTemplates(templateDir); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// loadTemplates reads all .tmpl files from the template directory.
func (e *DefaultEngine) loadTemplates(templateDir string) error {
	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return fmt.Errorf("failed to read template directory %s: %w", templateDir, err)
	}

	funcMap := CustomFuncMap()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}

		path := filepath.Join(templateDir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", path, err)
		}

		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", path, err)
		}

		e.templates[name] = tmpl
	}

	return nil
}

// Render renders the results with the named template.
func (e *DefaultEngine) Render(results []domain.CaseResult, templateName string) (string, error) {
	tmpl, ok := e.templates[templateName]
	if !ok {
		return "", fmt.Errorf("template %q not found (available: %s)",
			templateName, strings.Join(e.ListTemplates(), ", "))
	}

	data := reportData{Results: results, Total: len(results)}
	for _, result := range results {
		if result.Passed() {
			data.Passed++
		} else {
			data.Failed++
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// ListTemplates returns the names of all loaded templates.
func (e *DefaultEngine) ListTemplates() []string {
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	return names
}
