// Package ssh reaches routing daemons on remote hosts. It runs vtysh over
// an SSH session and reads saved configuration files over SFTP.
package ssh

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Transport is a connection to one remote host.
type Transport interface {
	// Connect establishes the SSH connection. Calling it on a live
	// connection is a no-op.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and releases all resources.
	Disconnect() error

	// IsConnected returns true if the transport has an active connection.
	IsConnected() bool

	// HealthCheck verifies the connection is still alive and responsive.
	HealthCheck(ctx context.Context) error

	// Run executes a shell command line in a new session.
	Run(ctx context.Context, cmd string) (*ExecResult, error)

	// ReadFile returns the content of a remote file read over SFTP.
	ReadFile(ctx context.Context, remotePath string) ([]byte, error)

	// GetConnectionInfo returns information about the current connection.
	GetConnectionInfo() ConnectionInfo
}

// ConnectionInfo contains details about an active SSH connection.
type ConnectionInfo struct {
	Host string
	Port int
	User string

	// Proxy is the jump host address, if any.
	Proxy string

	ConnectedAt  time.Time
	LastActivity time.Time
}

// ExecResult represents the result of a command execution.
type ExecResult struct {
	// Stdout is the standard output from the command
	Stdout string

	// Stderr is the standard error output from the command
	Stderr string

	// ExitCode is the command's exit code, -1 when it never reported one
	ExitCode int

	StartedAt time.Time
	Duration  time.Duration
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "read")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// IsAuthError reports whether err is a transport authentication failure.
func IsAuthError(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.IsAuthError
}

// dialError wraps a failed handshake. Rejected credentials are not worth
// retrying; anything else might be.
func dialError(op string, err error) *TransportError {
	auth := strings.Contains(err.Error(), "unable to authenticate")
	return &TransportError{
		Op:          op,
		Err:         err,
		IsTemporary: !auth,
		IsAuthError: auth,
	}
}
