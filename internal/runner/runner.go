// Package runner executes configured scanners against project checkouts and
// collects their raw output for normalization.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds one scanner execution.
const DefaultTimeout = 5 * time.Minute

// Tool describes one runnable scanner. Args may contain the {project}
// placeholder, replaced with the project path at execution time. When
// OutputFile is set the scanner's report is read from that file after the
// run; otherwise stdout is the report.
type Tool struct {
	Name       string
	Version    string
	Command    string
	Args       []string
	Env        []string
	OutputFile string
}

// Registry is an explicit, injected collection of runnable tools. Callers
// construct it and hand it to the Runner; there is no package-level state.
type Registry struct {
	tools map[string]Tool
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{tools: map[string]Tool{}, log: log}
}

func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name] = tool
	r.log.Info("registered tool", zap.String("tool", tool.Name))
}

func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// List returns the registered tool names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Outcome is the result of one scanner execution. OK covers exit codes 0
// and 1; scanners use exit code 1 to signal "findings present", which is a
// successful run for this harness.
type Outcome struct {
	Tool            string
	Project         string
	OK              bool
	ExitCode        int
	Output          []byte
	Error           string
	DurationSeconds float64
}

// Runner executes registered tools with a wall-clock timeout. Failures of
// any kind are mapped into the Outcome; Execute never panics past its
// boundary.
type Runner struct {
	registry *Registry
	timeout  time.Duration
	log      *zap.Logger
}

func New(registry *Registry, timeout time.Duration, log *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{registry: registry, timeout: timeout, log: log}
}

// Execute runs one tool against one project path.
func (r *Runner) Execute(ctx context.Context, toolName, projectPath string) Outcome {
	outcome := Outcome{Tool: toolName, Project: projectPath}

	tool, ok := r.registry.Get(toolName)
	if !ok {
		outcome.Error = fmt.Sprintf("tool not registered: %s (available: %s)", toolName, strings.Join(r.registry.List(), ", "))
		r.log.Error("tool not registered", zap.String("tool", toolName))
		return outcome
	}

	args := make([]string, len(tool.Args))
	for i, arg := range tool.Args {
		args[i] = strings.ReplaceAll(arg, "{project}", projectPath)
	}
	outputFile := strings.ReplaceAll(tool.OutputFile, "{project}", projectPath)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, tool.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(tool.Env) > 0 {
		cmd.Env = append(os.Environ(), tool.Env...)
	}

	r.log.Info("executing tool",
		zap.String("tool", toolName), zap.String("project", projectPath),
		zap.String("command", tool.Command), zap.Strings("args", args))

	start := time.Now()
	err := cmd.Run()
	outcome.DurationSeconds = time.Since(start).Seconds()

	if runCtx.Err() == context.DeadlineExceeded {
		outcome.Error = fmt.Sprintf("tool timed out after %s", r.timeout)
		r.log.Error("tool timed out",
			zap.String("tool", toolName), zap.String("project", projectPath),
			zap.Duration("timeout", r.timeout))
		return outcome
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			outcome.Error = fmt.Sprintf("tool failed to start: %v", err)
			r.log.Error("tool failed to start", zap.String("tool", toolName), zap.Error(err))
			return outcome
		}
		outcome.ExitCode = exitErr.ExitCode()
	}

	if outcome.ExitCode != 0 && outcome.ExitCode != 1 {
		outcome.Error = fmt.Sprintf("tool exited with code %d: %s", outcome.ExitCode, firstLine(stderr.String()))
		r.log.Error("tool failed",
			zap.String("tool", toolName), zap.Int("exit_code", outcome.ExitCode),
			zap.String("stderr", firstLine(stderr.String())))
		return outcome
	}

	if outputFile != "" {
		payload, err := os.ReadFile(outputFile)
		if err != nil {
			outcome.Error = fmt.Sprintf("tool output missing: %v", err)
			r.log.Error("tool output missing", zap.String("tool", toolName), zap.String("path", outputFile))
			return outcome
		}
		outcome.Output = payload
	} else {
		outcome.Output = stdout.Bytes()
	}

	outcome.OK = true
	r.log.Info("tool finished",
		zap.String("tool", toolName), zap.String("project", projectPath),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Float64("duration_seconds", outcome.DurationSeconds))
	return outcome
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
