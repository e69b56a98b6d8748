package hglib

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hglib.dev/hglib/transport"
)

func newReadySession(t *testing.T) (*Session, *transport.TestTransport) {
	t.Helper()
	tr := &transport.TestTransport{}
	tr.QueueHello("capabilities: runcommand getencoding\nencoding: UTF-8\n")
	s, err := OpenTransport(tr)
	require.NoError(t, err)
	return s, tr
}

func TestOpenTransport_parsesHandshake(t *testing.T) {
	s, _ := newReadySession(t)
	assert.Equal(t, "UTF-8", s.Encoding())
	assert.True(t, s.Capabilities().Has(CapRunCommand))
	assert.True(t, s.Capabilities().Has(CapGetEncoding))
}

func TestOpenTransport_missingRuncommandCapability(t *testing.T) {
	tr := &transport.TestTransport{}
	tr.QueueHello("capabilities: getencoding\nencoding: UTF-8\n")
	_, err := OpenTransport(tr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
}

func TestOpenTransport_wrongChannel(t *testing.T) {
	tr := &transport.TestTransport{}
	tr.QueueFrame(transport.Frame{Channel: transport.ChanError, Payload: []byte("usage: hg ...")})
	_, err := OpenTransport(tr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
}

func TestRunCommand_dispatchesOutputAndResult(t *testing.T) {
	s, tr := newReadySession(t)

	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("hello ")})
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("world")})
	tr.QueueFrame(transport.Frame{Channel: transport.ChanError, Payload: []byte("warn")})
	tr.QueueResult(0)

	var stdout, stderr bytes.Buffer
	code, err := s.RunCommand([]string{"cat", "file.txt"}, Outputs{
		ChanOutput: &stdout,
		ChanError:  &stderr,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), code)
	assert.Equal(t, "hello world", stdout.String())
	assert.Equal(t, "warn", stderr.String())
}

func TestRunCommand_consumesExactlyOneResultFrame(t *testing.T) {
	s, tr := newReadySession(t)

	tr.QueueResult(0)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("leftover")})

	_, err := s.RunCommand([]string{"root"}, nil, nil)
	require.NoError(t, err)

	// The leftover frame queued after the result must still be sitting
	// unread; RunCommand must not have consumed past the 'r' frame.
	f, err := tr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, transport.ChanOutput, f.Channel)
	assert.Equal(t, []byte("leftover"), f.Payload)
}

func TestRunCommand_answersInputRequest(t *testing.T) {
	s, tr := newReadySession(t)

	tr.QueueFrame(transport.Frame{Channel: transport.ChanInput, Length: 10})
	tr.QueueResult(0)

	_, err := s.RunCommand([]string{"import", "-"}, nil, Inputs{
		ChanInput: func(requested uint32) []byte {
			assert.Equal(t, uint32(10), requested)
			return []byte("patch data")
		},
	})
	require.NoError(t, err)

	written := tr.Written()
	require.Len(t, written, 2) // runcommand submission + input reply
	assert.Contains(t, string(written[1]), "patch data")
}

func TestRunCommand_unansweredInputRequestSendsEOF(t *testing.T) {
	s, tr := newReadySession(t)

	tr.QueueFrame(transport.Frame{Channel: transport.ChanLineInput, Length: 80})
	tr.QueueResult(0)

	_, err := s.RunCommand([]string{"commit"}, nil, nil)
	require.NoError(t, err)

	written := tr.Written()
	require.Len(t, written, 2)
	// 4-byte zero length prefix, no payload.
	assert.Equal(t, []byte{0, 0, 0, 0}, written[1])
}

func TestRunCommand_unknownMandatoryChannelIsProtocolViolation(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.Channel('X'), Payload: []byte("??")})

	_, err := s.RunCommand([]string{"root"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocolViolation))
}

func TestRunCommand_unknownOptionalChannelIsIgnored(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.Channel('x'), Payload: []byte("??")})
	tr.QueueResult(0)

	code, err := s.RunCommand([]string{"root"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), code)
}

func TestRunCommand_emptyArgvIsInvalidArgument(t *testing.T) {
	s, _ := newReadySession(t)
	_, err := s.RunCommand(nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestRunCommand_transportFailurePoisonsSession(t *testing.T) {
	s, tr := newReadySession(t)
	// No frames queued: ReadFrame returns io.EOF, a TransportFailed.

	_, err := s.RunCommand([]string{"root"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransportFailed))

	_, err = s.RunCommand([]string{"root"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestClose_isIdempotentAndPoisonsSubsequentCalls(t *testing.T) {
	s, _ := newReadySession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.RunCommand([]string{"root"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestRoot_trimsTrailingNewline(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("/tmp/x/123\n")})
	tr.QueueResult(0)

	root, err := s.Root()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x/123", root)
}

func TestRoot_nonZeroExitIsCommandFailed(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanError, Payload: []byte("abort: no repository found")})
	tr.QueueResult(255)

	_, err := s.Root()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))
}

func TestConfiguration_parsesKeyEqualsValueAndSkipsBadLines(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("ui.username=Alice\nnotadelimiterline\npaths.default=/srv/repo\n")})
	tr.QueueResult(0)

	cfg, err := s.Configuration()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ui.username":   "Alice",
		"paths.default": "/srv/repo",
	}, cfg)
}

func TestConfiguration_isMemoized(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("a=b\n")})
	tr.QueueResult(0)

	first, err := s.Configuration()
	require.NoError(t, err)

	// No frames queued for a second round-trip; a second call must reuse
	// the memoized result rather than issuing another showconfig.
	second, err := s.Configuration()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVersion_parsesBanner(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("Mercurial Distributed SCM (version 6.7.2)\n")})
	tr.QueueResult(0)

	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, "6.7.2", v)
}

func TestVersion_missingTrivialDefaultsToZero(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("Mercurial Distributed SCM (version 6.7)\n")})
	tr.QueueResult(0)

	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, "6.7.0", v)
}

func TestGetCommandOutput_returnsResult(t *testing.T) {
	s, tr := newReadySession(t)
	tr.QueueFrame(transport.Frame{Channel: transport.ChanOutput, Payload: []byte("out")})
	tr.QueueResult(1)

	res, err := s.GetCommandOutput([]string{"commit", "-m", "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), res.ExitCode)
	assert.Equal(t, "out", res.Stdout)
}
