// Package transports defines the connection layer tasks execute through.
// Implementations live in the ssh and local subpackages.
package transports

import (
	"context"
	"fmt"
	"time"
)

// Transport is a single connection to one execution target.
// Implementations are not safe for concurrent use; the task runner gives
// each worker its own transport.
type Transport interface {
	// Connect establishes the connection. Must be called before Exec or
	// Upload.
	Connect(ctx context.Context) error

	// Exec runs a shell command on the target.
	Exec(ctx context.Context, cmd string) (*ExecResult, error)

	// ExecSudo runs a command with elevated privileges. The password can
	// be empty when NOPASSWD is configured.
	ExecSudo(ctx context.Context, cmd string, sudoPassword string) (*ExecResult, error)

	// Upload copies a local file to the target, creating parent
	// directories as needed. mode sets the remote permissions.
	Upload(ctx context.Context, localPath, remotePath string, mode uint32) error

	// Name identifies the transport kind (ssh, local) for logging and
	// metrics.
	Name() string

	// Close releases the connection and all resources.
	Close() error
}

// ExecResult is the outcome of one command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Success reports whether the command exited zero.
func (r *ExecResult) Success() bool {
	return r.ExitCode == 0
}

// TransportError wraps a connection-layer failure with classification
// used by callers to decide whether a host is worth another attempt.
type TransportError struct {
	// Op is the operation that failed (connect, execute, upload).
	Op string

	// Err is the underlying error.
	Err error

	// IsTemporary marks failures that may clear up (timeouts, resets).
	IsTemporary bool

	// IsAuthError marks authentication rejections.
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
