// Package ssh implements transport.Transport against an `hg serve
// --cmdserver pipe` started on the far end of an SSH connection,
// letting a Session talk to a repository the caller only has SSH
// access to.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"
	"hglib.dev/hglib/transport"
)

// Config describes the remote command-server invocation.
type Config struct {
	// Repository is the remote working-copy path.
	Repository string

	// Executable overrides the remote hg binary. Empty means "hg" on
	// the remote PATH.
	Executable string

	// Encoding, when non-empty, is exported to the remote process as
	// HGENCODING.
	Encoding string

	// ConfigOverrides become a single remote `--config k1=v1,...` flag.
	ConfigOverrides map[string]string
}

func (c Config) remoteCommand() string {
	exe := c.Executable
	if exe == "" {
		exe = "hg"
	}

	var sb strings.Builder
	if c.Encoding != "" {
		fmt.Fprintf(&sb, "HGENCODING=%s ", shellQuote(c.Encoding))
	}
	sb.WriteString(shellQuote(exe))
	sb.WriteString(" serve --cmdserver pipe")
	fmt.Fprintf(&sb, " --cwd %s", shellQuote(c.Repository))
	fmt.Fprintf(&sb, " --repository %s", shellQuote(c.Repository))
	if len(c.ConfigOverrides) > 0 {
		parts := make([]string, 0, len(c.ConfigOverrides))
		for k, v := range c.ConfigOverrides {
			parts = append(parts, k+"="+v)
		}
		fmt.Fprintf(&sb, " --config %s", shellQuote(strings.Join(parts, ",")))
	}
	return sb.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Transport implements transport.Transport over an SSH session running
// the remote hg command server.
type Transport struct {
	c     *ssh.Client
	sess  *ssh.Session
	stdin io.WriteCloser

	// managedConn is true when the underlying ssh.Client was opened by
	// Dial and should be closed along with the session.
	managedConn bool

	tr transport.Transport
}

// Dial connects to addr over SSH and starts the remote command server,
// closing the underlying connection along with the Transport.
func Dial(ctx context.Context, network, addr string, config *ssh.ClientConfig, cfg Config) (*Transport, error) {
	d := net.Dialer{Timeout: config.Timeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	client := ssh.NewClient(sshConn, chans, reqs)

	t, err := newTransport(client, true, cfg)
	if err != nil {
		_ = client.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return t, nil
}

// NewTransport starts the remote command server over an already
// connected ssh.Client. Unlike Dial, the client is not closed along
// with the Transport.
func NewTransport(client *ssh.Client, cfg Config) (*Transport, error) {
	return newTransport(client, false, cfg)
}

func newTransport(client *ssh.Client, managed bool, cfg Config) (*Transport, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("hglib/transport/ssh: failed to create ssh session: %w", err)
	}

	w, err := sess.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("hglib/transport/ssh: failed to create stdin pipe: %w", err)
	}

	r, err := sess.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("hglib/transport/ssh: failed to create stdout pipe: %w", err)
	}

	if err := sess.Start(cfg.remoteCommand()); err != nil {
		return nil, fmt.Errorf("hglib/transport/ssh: failed to start remote command server: %w", err)
	}

	return &Transport{
		c:           client,
		managedConn: managed,
		sess:        sess,
		stdin:       w,
		tr:          pipeTransport{r: r, w: w},
	}, nil
}

// pipeTransport adapts an io.Reader/io.WriteCloser pair (the SSH
// session's stdout/stdin) to transport.Transport using the shared
// frame codec, the same codec the local process transport uses.
type pipeTransport struct {
	r io.Reader
	w io.Writer
}

func (p pipeTransport) ReadFrame() (transport.Frame, error) { return transport.ReadFrame(p.r) }
func (p pipeTransport) WriteCommand(argv []string) error    { return transport.WriteCommand(p.w, argv) }
func (p pipeTransport) WriteInput(data []byte) error        { return transport.WriteInputReply(p.w, data) }
func (p pipeTransport) Close() error                        { return nil }

func (t *Transport) ReadFrame() (transport.Frame, error) { return t.tr.ReadFrame() }
func (t *Transport) WriteCommand(argv []string) error    { return t.tr.WriteCommand(argv) }
func (t *Transport) WriteInput(data []byte) error        { return t.tr.WriteInput(data) }

// Close closes the remote session. If the connection was created with
// Dial, the underlying ssh.Client is closed as well; otherwise only
// the session is closed.
func (t *Transport) Close() error {
	var retErr error

	if err := t.stdin.Close(); err != nil {
		retErr = errors.Join(retErr, fmt.Errorf("hglib/transport/ssh: failed to close stdin: %w", err))
	}

	if err := t.sess.Close(); err != nil && !errors.Is(err, io.EOF) {
		retErr = errors.Join(retErr, fmt.Errorf("hglib/transport/ssh: failed to close session: %w", err))
	}

	if t.managedConn {
		if err := t.c.Close(); err != nil {
			return errors.Join(retErr, fmt.Errorf("hglib/transport/ssh: failed to close connection: %w", err))
		}
	}

	return retErr
}
