// Package local provides the transport for running tasks on the machine
// Rex itself runs on.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adjust/Rex/pkg/transports"
)

// Transport executes commands through the local shell.
type Transport struct {
	// Shell is the shell binary used for command execution. Empty means
	// /bin/sh.
	Shell string
}

// New creates a local transport.
func New() *Transport {
	return &Transport{}
}

// Name implements transports.Transport.
func (t *Transport) Name() string { return "local" }

// Connect implements transports.Transport. Local execution has nothing to
// establish.
func (t *Transport) Connect(_ context.Context) error { return nil }

// Close implements transports.Transport.
func (t *Transport) Close() error { return nil }

// Exec implements transports.Transport.
func (t *Transport) Exec(ctx context.Context, cmd string) (*transports.ExecResult, error) {
	return t.run(ctx, cmd)
}

// ExecSudo implements transports.Transport.
func (t *Transport) ExecSudo(ctx context.Context, cmd string, sudoPassword string) (*transports.ExecResult, error) {
	if sudoPassword != "" {
		return t.run(ctx, fmt.Sprintf("echo '%s' | sudo -S %s", sudoPassword, cmd))
	}
	return t.run(ctx, "sudo "+cmd)
}

func (t *Transport) run(ctx context.Context, cmd string) (*transports.ExecResult, error) {
	shell := t.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, shell, "-c", cmd)
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	start := time.Now()
	err := proc.Run()
	result := &transports.ExecResult{
		Stdout:   strings.TrimRight(stdout.String(), "\n"),
		Stderr:   strings.TrimRight(stderr.String(), "\n"),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, &transports.TransportError{Op: "execute", Err: err}
	}

	log.Debug().
		Str("command", cmd).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("local command finished")

	return result, nil
}

// Upload implements transports.Transport by copying the file on disk.
func (t *Transport) Upload(_ context.Context, localPath, remotePath string, mode uint32) error {
	src, err := os.Open(localPath)
	if err != nil {
		return &transports.TransportError{Op: "upload", Err: err}
	}
	defer src.Close()

	if dir := filepath.Dir(remotePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &transports.TransportError{Op: "upload", Err: err}
		}
	}

	dst, err := os.OpenFile(remotePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(mode))
	if err != nil {
		return &transports.TransportError{Op: "upload", Err: err}
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return &transports.TransportError{Op: "upload", Err: err}
	}
	return nil
}
