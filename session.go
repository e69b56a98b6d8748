// Package hglib is a client for Mercurial's command server: a
// long-lived `hg serve --cmdserver pipe` subprocess that accepts
// version-control commands over a small framed protocol and answers on
// multiple logical channels. Session hides the subprocess lifecycle and
// wire protocol behind ordinary function calls.
package hglib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"hglib.dev/hglib/internal/logging"
	"hglib.dev/hglib/transport"
	"hglib.dev/hglib/transport/process"
)

// Channel re-exports transport.Channel so callers configuring
// RunCommand's output/input tables don't need to import the transport
// package directly.
type Channel = transport.Channel

const (
	ChanInput     = transport.ChanInput
	ChanLineInput = transport.ChanLineInput
	ChanOutput    = transport.ChanOutput
	ChanError     = transport.ChanError
	ChanResult    = transport.ChanResult
	ChanDebug     = transport.ChanDebug
)

// InputProvider answers an I/L channel request for up to `requested`
// bytes. Returning nil or an empty slice signals EOF to the server.
type InputProvider func(requested uint32) []byte

// Outputs maps a data channel to the sink its bytes should be appended
// to. A channel with no entry (or a nil entry) has its bytes discarded.
type Outputs map[Channel]io.Writer

// Inputs maps a request channel to the callback that supplies bytes for
// it. A channel with no entry (or a nil entry) is answered with EOF.
type Inputs map[Channel]InputProvider

// CommandResult is the captured result of one command: its exit code
// and the bytes accumulated on the output/error channels.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int32
}

type sessionConfig struct {
	encoding        string
	configOverrides map[string]string
	executable      string
}

// Option configures a Session constructed with Open.
type Option interface {
	apply(*sessionConfig)
}

type encodingOpt string

func (o encodingOpt) apply(cfg *sessionConfig) { cfg.encoding = string(o) }

// WithEncoding sets HGENCODING for the spawned subprocess.
func WithEncoding(encoding string) Option { return encodingOpt(encoding) }

type configOverridesOpt map[string]string

func (o configOverridesOpt) apply(cfg *sessionConfig) { cfg.configOverrides = map[string]string(o) }

// WithConfigOverrides passes a single `--config k1=v1,k2=v2,...` flag
// to the spawned subprocess.
func WithConfigOverrides(overrides map[string]string) Option {
	return configOverridesOpt(overrides)
}

type executableOpt string

func (o executableOpt) apply(cfg *sessionConfig) { cfg.executable = string(o) }

// WithExecutable overrides the hg binary to spawn. The default is "hg"
// resolved against PATH.
func WithExecutable(path string) Option { return executableOpt(path) }

// Session owns one Mercurial command-server subprocess (or, via
// OpenTransport, any transport.Transport implementation) and serializes
// every command issued against it. A Session is bound to exactly one
// repository, fixed at construction, and is single-use after Close.
type Session struct {
	tr transport.Transport

	encoding     string
	capabilities CapabilitySet

	mu     sync.Mutex
	closed bool

	rootOnce sync.Once
	rootVal  string
	rootErr  error

	configOnce sync.Once
	configVal  map[string]string
	configErr  error

	versionOnce sync.Once
	versionVal  string
	versionErr  error
}

// Open spawns a local `hg serve --cmdserver pipe` subprocess rooted at
// repoPath and completes the handshake. repoPath must exist and contain
// a .hg directory.
func Open(repoPath string, opts ...Option) (*Session, error) {
	const op = "Open"

	if repoPath == "" {
		return nil, newError(op, KindInvalidArgument, errors.New("repository path is empty"))
	}

	var cfg sessionConfig
	for _, o := range opts {
		o.apply(&cfg)
	}

	tr, err := process.Spawn(process.Config{
		Repository:      repoPath,
		Executable:      cfg.executable,
		Encoding:        cfg.encoding,
		ConfigOverrides: cfg.configOverrides,
	})
	if err != nil {
		var invalidRepo *process.ErrInvalidRepository
		if errors.As(err, &invalidRepo) {
			return nil, newError(op, KindInvalidRepository, err)
		}
		return nil, newError(op, KindServerUnavailable, err)
	}

	s, err := openTransport(op, tr)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	return s, nil
}

// OpenTransport completes the handshake over an already-connected
// transport.Transport, e.g. one obtained from transport/ssh. Use this
// when the hg subprocess is not spawned locally.
func OpenTransport(tr transport.Transport) (*Session, error) {
	return openTransport("OpenTransport", tr)
}

func openTransport(op string, tr transport.Transport) (*Session, error) {
	s := &Session{tr: tr}
	if err := s.handshake(op); err != nil {
		return nil, err
	}
	return s, nil
}

// handshake reads the single hello frame every command server emits on
// channel 'o' immediately after spawn and extracts encoding and
// capabilities, per the protocol's startup sequence.
func (s *Session) handshake(op string) error {
	f, err := s.tr.ReadFrame()
	if err != nil {
		return newError(op, KindHandshakeFailed, fmt.Errorf("failed to read hello frame: %w", err))
	}

	// A pre-command-server hg prints a usage banner instead, which shows
	// up as an unexpected channel with a garbage length.
	if f.Channel != ChanOutput {
		return newError(op, KindHandshakeFailed,
			fmt.Errorf("unexpected channel %q for hello message (hg too old for command server?)", f.Channel))
	}

	h, err := parseHello(f.Payload)
	if err != nil {
		return newError(op, KindHandshakeFailed, err)
	}
	if !h.capabilities.Has(CapRunCommand) {
		return newError(op, KindHandshakeFailed, errors.New("server hello is missing the runcommand capability"))
	}

	s.encoding = h.encoding
	s.capabilities = h.capabilities
	return nil
}

// Encoding is the encoding negotiated at handshake. It never changes.
func (s *Session) Encoding() string { return s.encoding }

// Capabilities is the capability set advertised at handshake. It never
// changes.
func (s *Session) Capabilities() CapabilitySet { return s.capabilities }

// RunCommand is the core primitive: it submits argv as a command,
// dispatches every frame the server sends back until the terminating
// 'r' frame, and returns the exit code it carries. At most one
// RunCommand may be in flight on a Session at a time; this method holds
// the Session's lock for its entire duration.
//
// outputs and inputs may be nil; channels with no registered sink or
// provider have their bytes discarded or are answered with EOF,
// respectively.
func (s *Session) RunCommand(argv []string, outputs Outputs, inputs Inputs) (int32, error) {
	const op = "RunCommand"

	if len(argv) == 0 {
		return 0, newError(op, KindInvalidArgument, errors.New("argv must not be empty"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, newError(op, KindSessionClosed, nil)
	}

	if err := s.tr.WriteCommand(argv); err != nil {
		s.poison()
		return 0, newError(op, KindTransportFailed, fmt.Errorf("failed to write command: %w", err))
	}

	for {
		f, err := s.tr.ReadFrame()
		if err != nil {
			s.poison()
			if errors.Is(err, transport.ErrMalformedFrame) {
				return 0, newError(op, KindProtocolViolation, fmt.Errorf("failed to read frame: %w", err))
			}
			return 0, newError(op, KindTransportFailed, fmt.Errorf("failed to read frame: %w", err))
		}

		switch f.Channel {
		case ChanResult:
			code, err := transport.ReadInt32(f.Payload)
			if err != nil {
				s.poison()
				return 0, newError(op, KindProtocolViolation, fmt.Errorf("malformed result payload: %w", err))
			}
			return code, nil

		case ChanOutput, ChanError, ChanDebug:
			if w := outputs[f.Channel]; w != nil && len(f.Payload) > 0 {
				if _, err := w.Write(f.Payload); err != nil {
					s.poison()
					return 0, newError(op, KindTransportFailed, fmt.Errorf("failed to write to %q sink: %w", f.Channel, err))
				}
			}

		case ChanInput, ChanLineInput:
			var data []byte
			if p := inputs[f.Channel]; p != nil {
				data = p(f.Length)
			}
			if err := s.tr.WriteInput(data); err != nil {
				s.poison()
				return 0, newError(op, KindTransportFailed, fmt.Errorf("failed to reply to %q request: %w", f.Channel, err))
			}

		default:
			if f.Channel.Mandatory() {
				s.poison()
				return 0, newError(op, KindProtocolViolation, fmt.Errorf("unknown mandatory channel %q", f.Channel))
			}
			logging.L().Debug("hglib: ignoring unknown optional channel", "channel", f.Channel.String())
		}
	}
}

// poison marks the Session Closed and releases the transport: any
// transport failure moves Ready/InCommand to Closed implicitly, so the
// next call fails fast with KindSessionClosed instead of retrying a
// stream that's already desynchronized. Must be called with mu held.
func (s *Session) poison() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.tr.Close()
}

// GetCommandOutput is the convenience entry point: it runs argv with
// in-memory buffers wired to the output and error channels and returns
// the accumulated bytes alongside the exit code. inputs behaves as in
// RunCommand.
func (s *Session) GetCommandOutput(argv []string, inputs Inputs) (*CommandResult, error) {
	var stdout, stderr bytes.Buffer
	code, err := s.RunCommand(argv, Outputs{
		ChanOutput: &stdout,
		ChanError:  &stderr,
	}, inputs)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: code,
	}, nil
}

// Close terminates the subprocess and releases its pipes. A Session is
// single-use after Close: RunCommand and GetCommandOutput fail with
// KindSessionClosed, as do Root, Configuration and Version when their
// value was not fetched before Close. Values those accessors already
// memoized, and Encoding and Capabilities, are still returned after
// Close.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.tr.Close()
}

// Root runs `hg root`, trims its trailing newline, and memoizes the
// result for the lifetime of the Session.
func (s *Session) Root() (string, error) {
	s.rootOnce.Do(func() {
		res, err := s.GetCommandOutput([]string{"root"}, nil)
		if err != nil {
			s.rootErr = err
			return
		}
		if res.ExitCode != 0 {
			s.rootErr = commandFailedError("Root", res)
			return
		}
		s.rootVal = strings.TrimRight(res.Stdout, "\r\n")
	})
	return s.rootVal, s.rootErr
}

// Configuration runs `hg showconfig`, parses its "key=value" lines, and
// memoizes the resulting mapping. Lines without "=" are skipped.
func (s *Session) Configuration() (map[string]string, error) {
	s.configOnce.Do(func() {
		res, err := s.GetCommandOutput([]string{"showconfig"}, nil)
		if err != nil {
			s.configErr = err
			return
		}
		if res.ExitCode != 0 {
			s.configErr = commandFailedError("Configuration", res)
			return
		}
		s.configVal = parseKV(res.Stdout, "=")
	})
	return s.configVal, s.configErr
}

// Version runs `hg version`, parses its banner into a normalized
// "major.minor.trivial[extra]" string, and memoizes it.
func (s *Session) Version() (string, error) {
	s.versionOnce.Do(func() {
		res, err := s.GetCommandOutput([]string{"version"}, nil)
		if err != nil {
			s.versionErr = err
			return
		}
		if res.ExitCode != 0 {
			s.versionErr = commandFailedError("Version", res)
			return
		}
		v, err := parseVersion(res.Stdout)
		if err != nil {
			s.versionErr = newError("Version", KindCommandFailed, err)
			return
		}
		s.versionVal = v
	})
	return s.versionVal, s.versionErr
}

// parseKV splits s into lines and each line on the first occurrence of
// sep, skipping lines where sep is absent. It is idempotent: reapplying
// it to its own output reproduces the same mapping every time.
func parseKV(s, sep string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, sep)
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
