package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/openfroyo/vtyctl/pkg/config"
	"github.com/openfroyo/vtyctl/pkg/engine"
	"github.com/openfroyo/vtyctl/pkg/transports/ssh"
	"github.com/openfroyo/vtyctl/pkg/transports/vtysh"
)

// targetConn is an open way to one daemon.
type targetConn struct {
	name    string
	exec    engine.Executor
	startup engine.ConfigSource
	close   func()
}

func openTarget(t config.TargetConfig, logger zerolog.Logger) (*targetConn, error) {
	logger = logger.With().Str("target", t.Name).Logger()

	switch t.Transport {
	case "local":
		return &targetConn{
			name:    t.Name,
			exec:    vtysh.NewLocal(vtysh.LocalOptions{Path: t.Vtysh, Sudo: t.Sudo, Timeout: t.Timeout}, logger),
			startup: &engine.FileSource{Path: t.StartupConfig},
			close:   func() {},
		}, nil

	case "ssh":
		cfg := sshConfig(t)
		client, err := ssh.NewSSHClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		return &targetConn{
			name:    t.Name,
			exec:    ssh.NewShell(client, cfg),
			startup: ssh.NewStartupSource(client, t.StartupConfig),
			close: func() {
				if err := client.Disconnect(); err != nil {
					logger.Warn().Err(err).Msg("Failed to close SSH connection")
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("target %s: unsupported transport %q", t.Name, t.Transport)
	}
}

// sshConfig maps a target onto an SSH client configuration. A password
// wins over a key file; without either the agent is used when one runs.
func sshConfig(t config.TargetConfig) *ssh.Config {
	cfg := ssh.DefaultConfig(t.Host, t.User)
	cfg.Port = t.Port
	cfg.Vtysh = t.Vtysh
	cfg.Sudo = t.Sudo
	cfg.CommandTimeout = t.Timeout

	switch {
	case t.Password != "":
		cfg.AuthMethod = ssh.AuthMethodPassword
		cfg.Password = t.Password
	case t.KeyFile != "":
		cfg.PrivateKeyPath = t.KeyFile
	case os.Getenv("SSH_AUTH_SOCK") != "":
		cfg.AuthMethod = ssh.AuthMethodAgent
	}

	if t.KnownHosts != "" {
		cfg.KnownHostsPath = t.KnownHosts
	}

	if t.ProxyHost != "" {
		cfg.ProxyHost = t.ProxyHost
		cfg.ProxyPort = t.ProxyPort
		cfg.ProxyUser = t.ProxyUser
	}

	return cfg
}

// openTargets opens every selected target. On failure the ones already
// opened are closed.
func openTargets(settings *config.Settings, logger zerolog.Logger) ([]*targetConn, func(), error) {
	selected, err := settings.Select(targetNames)
	if err != nil {
		return nil, nil, err
	}

	conns := make([]*targetConn, 0, len(selected))
	closeAll := func() {
		for _, c := range conns {
			c.close()
		}
	}
	for _, t := range selected {
		c, err := openTarget(t, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		conns = append(conns, c)
	}
	return conns, closeAll, nil
}
