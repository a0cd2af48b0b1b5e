package vtysh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/vtyctl/pkg/engine"
)

// LocalOptions configures a Local executor.
type LocalOptions struct {
	// Path is the vtysh binary. Defaults to "vtysh".
	Path string

	// Sudo runs vtysh through non-interactive sudo.
	Sudo bool

	// Timeout bounds one invocation. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// runFunc runs a program and returns its output.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Local runs vtysh on this host. It implements engine.Executor.
type Local struct {
	opts   LocalOptions
	logger zerolog.Logger
	run    runFunc
}

var _ engine.Executor = (*Local)(nil)

// NewLocal creates a local vtysh executor.
func NewLocal(opts LocalOptions, logger zerolog.Logger) *Local {
	if opts.Path == "" {
		opts.Path = "vtysh"
	}
	return &Local{
		opts:   opts,
		logger: logger.With().Str("component", "vtysh").Logger(),
		run:    execRun,
	}
}

// RunningConfig implements engine.Executor.
func (l *Local) RunningConfig(ctx context.Context) (string, error) {
	stdout, _, err := l.invoke(ctx, ShowRunningConfig)
	if err != nil {
		return "", err
	}
	return stdout, nil
}

// Submit implements engine.Executor. The whole batch runs in one vtysh
// process so that mode changes carry over between lines.
func (l *Local) Submit(ctx context.Context, batch []string) error {
	if len(batch) == 0 {
		return nil
	}
	stdout, stderr, err := l.invoke(ctx, batch...)
	if err != nil {
		return err
	}
	if err := CheckOutput(stderr + "\n" + stdout); err != nil {
		return err
	}
	return nil
}

func (l *Local) invoke(ctx context.Context, commands ...string) (string, string, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	name, args := l.opts.Path, Args(commands...)
	if l.opts.Sudo {
		name, args = "sudo", append([]string{"-n", l.opts.Path}, args...)
	}

	start := time.Now()
	stdout, stderr, err := l.run(ctx, name, args...)
	l.logger.Debug().
		Int("commands", len(commands)).
		Int("stdout_len", len(stdout)).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("vtysh completed")

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", fmt.Errorf("vtysh interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := firstLine(string(stderr))
			if msg == "" {
				msg = firstLine(string(stdout))
			}
			return "", "", &CommandError{Message: msg, ExitCode: exitErr.ExitCode()}
		}
		return "", "", fmt.Errorf("failed to run %s: %w", name, err)
	}

	return string(stdout), string(stderr), nil
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
