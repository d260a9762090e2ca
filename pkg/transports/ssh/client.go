// Package ssh provides the SSH transport for remote task execution.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/adjust/Rex/pkg/transports"
)

// Client implements transports.Transport over an SSH connection.
type Client struct {
	config *Config
	client *ssh.Client
}

// New creates an SSH transport from config. The connection is established
// by Connect.
func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{config: config}, nil
}

// Name implements transports.Transport.
func (c *Client) Name() string { return "ssh" }

// Connect implements transports.Transport.
func (c *Client) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	auth, err := c.config.authMethods()
	if err != nil {
		return &transports.TransportError{Op: "connect", Err: err, IsAuthError: true}
	}
	hostKeys, err := c.config.hostKeyCallback()
	if err != nil {
		return &transports.TransportError{Op: "connect", Err: err}
	}

	cfg := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         c.config.ConnectionTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	log.Debug().Str("addr", addr).Str("user", c.config.User).Msg("connecting")

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	done := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", addr, cfg)
		done <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		return &transports.TransportError{Op: "connect", Err: ctx.Err(), IsTemporary: true}
	case res := <-done:
		if res.err != nil {
			return &transports.TransportError{
				Op:          "connect",
				Err:         res.err,
				IsTemporary: !isAuthFailure(res.err),
				IsAuthError: isAuthFailure(res.err),
			}
		}
		c.client = res.client
		return nil
	}
}

// Exec implements transports.Transport.
func (c *Client) Exec(ctx context.Context, cmd string) (*transports.ExecResult, error) {
	return c.run(ctx, cmd)
}

// ExecSudo implements transports.Transport.
func (c *Client) ExecSudo(ctx context.Context, cmd string, sudoPassword string) (*transports.ExecResult, error) {
	if sudoPassword != "" {
		return c.run(ctx, fmt.Sprintf("echo '%s' | sudo -S %s", sudoPassword, cmd))
	}
	return c.run(ctx, "sudo "+cmd)
}

func (c *Client) run(ctx context.Context, cmd string) (*transports.ExecResult, error) {
	if c.client == nil {
		return nil, &transports.TransportError{Op: "execute", Err: errors.New("not connected")}
	}

	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, &transports.TransportError{Op: "execute", Err: err, IsTemporary: true}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = session.Signal(ssh.SIGKILL)
		runErr = ctx.Err()
	case runErr = <-done:
	}

	result := &transports.ExecResult{
		Stdout:   strings.TrimRight(stdout.String(), "\n"),
		Stderr:   strings.TrimRight(stderr.String(), "\n"),
		Duration: time.Since(start),
	}

	var exitErr *ssh.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitStatus()
	default:
		return nil, &transports.TransportError{Op: "execute", Err: runErr, IsTemporary: true}
	}

	log.Debug().
		Str("host", c.config.Host).
		Str("command", cmd).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("command finished")

	return result, nil
}

// Upload implements transports.Transport using SFTP.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string, mode uint32) error {
	if c.client == nil {
		return &transports.TransportError{Op: "upload", Err: errors.New("not connected")}
	}

	if err := ctx.Err(); err != nil {
		return &transports.TransportError{Op: "upload", Err: err, IsTemporary: true}
	}

	client, err := sftp.NewClient(c.client)
	if err != nil {
		return &transports.TransportError{Op: "upload", Err: err, IsTemporary: true}
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return &transports.TransportError{Op: "upload", Err: err}
	}
	defer src.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return &transports.TransportError{Op: "upload", Err: err}
		}
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return &transports.TransportError{Op: "upload", Err: err}
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return &transports.TransportError{Op: "upload", Err: err, IsTemporary: true}
	}
	if err := client.Chmod(remotePath, os.FileMode(mode)); err != nil {
		return &transports.TransportError{Op: "upload", Err: err}
	}

	log.Debug().
		Str("host", c.config.Host).
		Str("local", localPath).
		Str("remote", remotePath).
		Msg("file uploaded")

	return nil
}

// Close implements transports.Transport.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// isAuthFailure reports whether err looks like an authentication
// rejection rather than a network problem.
func isAuthFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}
