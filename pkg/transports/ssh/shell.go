package ssh

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/vtyctl/pkg/engine"
	"github.com/openfroyo/vtyctl/pkg/transports/vtysh"
)

// Shell runs vtysh on a remote host. It implements engine.Executor.
// Every call opens its own session; the connection is opened on first use.
type Shell struct {
	transport Transport
	config    *Config
}

var _ engine.Executor = (*Shell)(nil)

// NewShell creates a vtysh executor on top of transport.
func NewShell(transport Transport, config *Config) *Shell {
	return &Shell{transport: transport, config: config}
}

// RunningConfig implements engine.Executor.
func (s *Shell) RunningConfig(ctx context.Context) (string, error) {
	result, err := s.run(ctx, vtysh.ShowRunningConfig)
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// Submit implements engine.Executor.
func (s *Shell) Submit(ctx context.Context, batch []string) error {
	if len(batch) == 0 {
		return nil
	}
	result, err := s.run(ctx, batch...)
	if err != nil {
		return err
	}
	return vtysh.CheckOutput(result.Stderr + "\n" + result.Stdout)
}

func (s *Shell) run(ctx context.Context, commands ...string) (*ExecResult, error) {
	if err := s.transport.Connect(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.CommandTimeout)
	defer cancel()

	line := vtysh.CommandLine(s.config.Vtysh, s.config.Sudo, commands...)
	result, err := s.transport.Run(ctx, line)
	if err != nil {
		if result != nil && result.ExitCode > 0 {
			msg := firstLine(result.Stderr)
			if msg == "" {
				msg = firstLine(result.Stdout)
			}
			return nil, fmt.Errorf("%s: %w", s.config.Host, &vtysh.CommandError{Message: msg, ExitCode: result.ExitCode})
		}
		return nil, err
	}
	return result, nil
}

// StartupSource reads the saved configuration file of a remote daemon. It
// implements engine.ConfigSource.
type StartupSource struct {
	transport Transport
	path      string
}

var _ engine.ConfigSource = (*StartupSource)(nil)

// NewStartupSource creates a source for the file at path on the host
// behind transport.
func NewStartupSource(transport Transport, path string) *StartupSource {
	return &StartupSource{transport: transport, path: path}
}

// ReadConfig implements engine.ConfigSource.
func (s *StartupSource) ReadConfig(ctx context.Context) (string, error) {
	if err := s.transport.Connect(ctx); err != nil {
		return "", err
	}
	data, err := s.transport.ReadFile(ctx, s.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
