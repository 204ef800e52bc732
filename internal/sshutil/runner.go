package sshutil

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nimbusinfra/acctest/internal/wait"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultConnectRetry = 5 * time.Second
)

// Runner executes commands over SSH on a freshly created server. Test
// servers reboot, rescale and change addresses mid-test, so every Run
// reconnects if the cached connection has gone away.
type Runner struct {
	addr   string
	user   string
	signer ssh.Signer

	client *ssh.Client
}

// NewRunner prepares a runner for the given host. The address may omit
// the port, in which case 22 is used. The connection is established
// lazily by Connect or the first Run.
func NewRunner(addr, user string, privateKey []byte) (*Runner, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	return &Runner{addr: addr, user: user, signer: signer}, nil
}

// Connect dials the server, retrying until the timeout expires. Servers
// accept TCP connections before sshd is ready, so failed handshakes are
// retried as well.
func (r *Runner) Connect(ctx context.Context, timeout time.Duration) error {
	return wait.Poll(ctx, defaultConnectRetry, timeout, fmt.Sprintf("ssh to %s", r.addr),
		func(ctx context.Context) (bool, error) {
			client, err := r.dial()
			if err != nil {
				return false, nil
			}
			r.client = client
			return true, nil
		})
}

func (r *Runner) dial() (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            r.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(r.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         defaultDialTimeout,
	}
	return ssh.Dial("tcp", r.addr, config)
}

// Run executes the command and returns its combined output with
// surrounding whitespace trimmed. A stale connection is re-established
// once before the command is reported as failed.
func (r *Runner) Run(ctx context.Context, command string) (string, error) {
	out, err := r.run(command)
	if err == nil {
		return out, nil
	}

	if err := r.Connect(ctx, time.Minute); err != nil {
		return "", fmt.Errorf("failed to reconnect to %s: %w", r.addr, err)
	}
	return r.run(command)
}

func (r *Runner) run(command string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("not connected to %s", r.addr)
	}

	session, err := r.client.NewSession()
	if err != nil {
		r.Close()
		return "", fmt.Errorf("failed to open session on %s: %w", r.addr, err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(command)
	if err != nil {
		return "", fmt.Errorf("failed to run %q on %s: %w", command, r.addr, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Close drops the cached connection. Safe to call when not connected.
func (r *Runner) Close() {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}
