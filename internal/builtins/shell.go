package builtins

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

// ShellOptions configures the shell action: execution defaults plus the
// security policy applied to every command string before it runs.
type ShellOptions struct {
	DefaultTimeout  string
	BlockedPatterns []string
	Shell           string
	ShellFlag       string
}

// RegisterShell adds the shell action. It is registered separately from the
// core builtins because it needs host policy from the runner configuration.
func RegisterShell(reg *registry.Registry, opts ShellOptions) {
	if opts.DefaultTimeout == "" {
		opts.DefaultTimeout = "30s"
	}
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if opts.ShellFlag == "" {
		opts.ShellFlag = "-c"
	}
	reg.RegisterAction(&registry.Action{
		Name:        "shell",
		Description: "Run a shell command and capture its output and exit code.",
		Schema: registry.Schema{
			"cmd":           {Type: registry.TypeString, Required: true, Description: "Command line to execute."},
			"timeout":       {Type: registry.TypeString, Default: opts.DefaultTimeout, Description: "Execution timeout as a Go duration."},
			"expected_exit": {Type: registry.TypeInt, Default: int64(0), Description: "Exit code treated as success."},
		},
		Run: func(args map[string]any) (any, error) {
			return runShell(args, opts)
		},
	})
}

func runShell(args map[string]any, opts ShellOptions) (any, error) {
	command := strings.TrimSpace(args["cmd"].(string))
	if command == "" {
		return nil, fmt.Errorf("cmd must not be empty")
	}
	if err := validateCommand(command, opts.BlockedPatterns); err != nil {
		return nil, err
	}

	// Multi-line commands are joined with &&
	if lines := strings.Split(command, "\n"); len(lines) > 1 {
		var trimmed []string
		for _, l := range lines {
			l = strings.TrimSpace(l)
			if l != "" {
				trimmed = append(trimmed, l)
			}
		}
		command = strings.Join(trimmed, " && ")
	}

	timeout, err := time.ParseDuration(args["timeout"].(string))
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	expected := args["expected_exit"].(int64)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var cmd *exec.Cmd
	if isComplexCommand(command) {
		cmd = exec.CommandContext(ctx, opts.Shell, opts.ShellFlag, command)
	} else {
		parts := shellSplit(command)
		cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %s", timeout)
	}

	exitCode := int64(0)
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("command failed to start: %w", err)
		}
		exitCode = int64(exitErr.ExitCode())
	}
	if exitCode != expected {
		return nil, fmt.Errorf("command exited with %d, expected %d: %s", exitCode, expected, strings.TrimSpace(string(output)))
	}

	return map[string]any{
		"output":    string(output),
		"exit_code": exitCode,
	}, nil
}

// validateCommand checks if a command matches any blocked patterns.
func validateCommand(command string, blockedPatterns []string) error {
	for _, pattern := range blockedPatterns {
		if strings.Contains(command, pattern) {
			return fmt.Errorf("command blocked by security policy: contains %q — if this is intentional, remove it from shell.blocked_patterns in locorunner.yaml", pattern)
		}
	}
	return nil
}

// isComplexCommand determines if a command needs shell execution (pipes, redirects, etc.).
func isComplexCommand(cmd string) bool {
	complexChars := []string{"|", "&&", "||", ";", ">", "<", ">>", "$(", "`", "&"}
	for _, c := range complexChars {
		if strings.Contains(cmd, c) {
			return true
		}
	}
	return false
}

// shellSplit splits a command string into arguments, respecting quotes.
func shellSplit(s string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			if c == quoteChar {
				inQuote = false
			} else {
				current.WriteByte(c)
			}
		} else {
			if c == '"' || c == '\'' {
				inQuote = true
				quoteChar = c
			} else if c == ' ' || c == '\t' {
				if current.Len() > 0 {
					parts = append(parts, current.String())
					current.Reset()
				}
			} else {
				current.WriteByte(c)
			}
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
