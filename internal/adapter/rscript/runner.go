package rscript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured output of one process run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError reports a process that ran but exited non-zero.
type ExitError struct {
	Program  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Program, e.ExitCode)
	if tail := lastLines(e.Stderr, 5); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Runner executes an external program.
type Runner interface {
	Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// Options configures a run.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	RetryOn    func(error) bool // nil retries every failure

	WorkingDir string
	Env        map[string]string // appended to the current environment
}

// Option modifies Options.
type Option func(*Options)

// WithRetry retries failed runs up to maxRetries times, waiting delay between attempts.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithRetryCondition limits retries to errors for which fn returns true.
func WithRetryCondition(fn func(error) bool) Option {
	return func(o *Options) { o.RetryOn = fn }
}

// WithWorkingDir runs the program in dir.
func WithWorkingDir(dir string) Option {
	return func(o *Options) { o.WorkingDir = dir }
}

// WithEnvVar adds one environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// ExecRunner runs programs with os/exec, capturing stdout and stderr separately.
type ExecRunner struct {
	defaults []Option
}

// NewExecRunner creates a runner whose defaults apply to every run.
func NewExecRunner(defaults ...Option) *ExecRunner {
	return &ExecRunner{defaults: defaults}
}

// Run executes program with args, retrying according to the options.
func (r *ExecRunner) Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	options := Options{RetryDelay: time.Second}
	for _, opt := range append(append([]Option{}, r.defaults...), opts...) {
		opt(&options)
	}

	var (
		result *Result
		err    error
	)
	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(options.RetryDelay):
			}
		}

		result, err = runOnce(ctx, program, args, &options)
		if err == nil || ctx.Err() != nil {
			return result, err
		}
		if options.RetryOn != nil && !options.RetryOn(err) {
			return result, err
		}
	}
	return result, err
}

func runOnce(ctx context.Context, program string, args []string, options *Options) (*Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case ctx.Err() != nil:
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", program, ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Program: program, ExitCode: result.ExitCode, Stderr: result.Stderr}
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", program, err)
	}
}

// lastLines returns up to n trailing non-empty lines of s joined by " | ".
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, " | ")
}
