// Package transport implements the byte-level plumbing of the Mercurial
// command-server protocol: the framed stream a Session reads server
// messages from and writes commands/input replies to.
package transport

import (
	"bytes"
	"errors"
	"io"
)

// ErrClosed is returned by TestTransport's methods once Close has been
// called.
var ErrClosed = errors.New("hglib/transport: use of closed transport")

// Transport is the duplex, frame-oriented stream a Session talks to the
// hg command server over. Implementations are not required to be safe
// for concurrent use; the Session above serializes all access with its
// own mutex, matching the "strictly serial per server" invariant of the
// command-server protocol.
type Transport interface {
	// ReadFrame blocks until the next frame header and (for data
	// channels) its payload have been fully read off the stream.
	ReadFrame() (Frame, error)

	// WriteCommand writes a `runcommand` request frame with argv joined
	// by NUL bytes as its payload.
	WriteCommand(argv []string) error

	// WriteInput replies to a pending I/L request with length-prefixed
	// data. A zero-length write signals EOF to the server.
	WriteInput(data []byte) error

	// Close releases the underlying process/connection. Further calls to
	// the other methods fail with an error that depends on the
	// implementation; only TestTransport returns ErrClosed.
	Close() error
}

// TestTransport is an in-memory Transport used to unit test the Session
// and command layers without spawning a real hg binary. It queues up
// frames a "server" would send and records what the "client" writes.
type TestTransport struct {
	frames  []Frame
	written [][]byte
	closed  bool
}

// QueueFrame appends a frame to the read queue, returned in FIFO order by
// successive ReadFrame calls.
func (t *TestTransport) QueueFrame(f Frame) {
	t.frames = append(t.frames, f)
}

// QueueHello queues the handshake frame on channel 'o' with the given
// raw `key: value` banner.
func (t *TestTransport) QueueHello(banner string) {
	t.QueueFrame(Frame{Channel: ChanOutput, Payload: []byte(banner)})
}

// QueueResult queues a terminating 'r' frame with the given exit code.
func (t *TestTransport) QueueResult(code int32) {
	var buf bytes.Buffer
	_ = WriteInt32(&buf, code)
	t.QueueFrame(Frame{Channel: ChanResult, Payload: buf.Bytes()})
}

func (t *TestTransport) ReadFrame() (Frame, error) {
	if t.closed {
		return Frame{}, ErrClosed
	}
	if len(t.frames) == 0 {
		return Frame{}, io.EOF
	}
	f := t.frames[0]
	t.frames = t.frames[1:]
	return f, nil
}

func (t *TestTransport) WriteCommand(argv []string) error {
	if t.closed {
		return ErrClosed
	}
	var buf bytes.Buffer
	buf.WriteString("runcommand\n")
	parts := make([][]byte, len(argv))
	for i, a := range argv {
		parts[i] = []byte(a)
	}
	payload := bytes.Join(parts, []byte{0})
	if err := WriteUint32(&buf, uint32(len(payload))); err != nil {
		return err
	}
	buf.Write(payload)
	t.written = append(t.written, buf.Bytes())
	return nil
}

func (t *TestTransport) WriteInput(data []byte) error {
	if t.closed {
		return ErrClosed
	}
	var buf bytes.Buffer
	if err := WriteUint32(&buf, uint32(len(data))); err != nil {
		return err
	}
	buf.Write(data)
	t.written = append(t.written, buf.Bytes())
	return nil
}

func (t *TestTransport) Close() error {
	t.closed = true
	return nil
}

// Written returns every raw client->server message recorded so far, in
// order, for assertion in tests.
func (t *TestTransport) Written() [][]byte {
	return t.written
}
