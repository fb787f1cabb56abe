package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mrd-project/mrd/pkg/protolog"
	"github.com/mrd-project/mrd/pkg/wire"
)

// DefaultMaxPayloadSize is the default cap on a single length-mode
// payload.
const DefaultMaxPayloadSize = 1 << 20

// Errors returned by Conn.
var (
	ErrConnectionClosed = errors.New("transport: connection closed")
	ErrPayloadTooLarge  = errors.New("transport: payload too large")
)

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithLogger attaches a protocol event logger.
func WithLogger(logger protolog.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// WithMaxPayloadSize overrides DefaultMaxPayloadSize.
func WithMaxPayloadSize(n int) Option {
	return func(c *Conn) { c.maxPayloadSize = n }
}

// Conn wraps a net.Conn with the buffered line reader and mutex-guarded
// writer the wire dispatcher needs. It implements wire.Reader.
type Conn struct {
	raw    net.Conn
	r      *bufio.Reader
	connID string

	maxPayloadSize int
	logger         protolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}
}

// New wraps an already-established net.Conn.
func New(raw net.Conn, opts ...Option) *Conn {
	c := &Conn{
		raw:            raw,
		r:              bufio.NewReader(raw),
		connID:         uuid.New().String(),
		maxPayloadSize: DefaultMaxPayloadSize,
		closeCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConnID returns this connection's unique identifier.
func (c *Conn) ConnID() string { return c.connID }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// SetDeadline proxies net.Conn.SetDeadline, used to bound a single
// blocking read (e.g. while waiting on a challenge response).
func (c *Conn) SetDeadline(t time.Time) error { return c.raw.SetDeadline(t) }

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.raw.Close()
	})
	return err
}

// ReadLine reads one command line with its trailing newline stripped.
// It implements wire.Reader.
func (c *Conn) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		if line == "" {
			return "", err
		}
		// A partial line with no terminator is still malformed; let the
		// caller see the underlying error (almost always EOF).
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")

	c.logFrame(protolog.DirectionIn, len(line)+1, []byte(line))
	return line, nil
}

// ReadN reads exactly n raw bytes, the length-mode payload following a
// command line. It implements wire.Reader.
func (c *Conn) ReadN(n int) ([]byte, error) {
	if n < 0 || n > c.maxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, c.maxPayloadSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, err
	}
	c.logFrame(protolog.DirectionIn, n, buf)
	return buf, nil
}

// WriteCommand writes an inline-argument command line: "NAME:ARG\n".
func (c *Conn) WriteCommand(cmd wire.Command, arg string) error {
	return c.writeLine(wire.FormatCommandLine(cmd, arg), cmd, arg, 0)
}

// WriteLengthPayload writes a length-mode command line announcing len(payload)
// followed by the raw payload bytes, as a single locked write.
func (c *Conn) WriteLengthPayload(cmd wire.Command, payload []byte) error {
	if len(payload) > c.maxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), c.maxPayloadSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	line := wire.FormatLengthLine(cmd, len(payload)) + "\n"
	if _, err := c.raw.Write([]byte(line)); err != nil {
		return fmt.Errorf("transport: write length line: %w", err)
	}
	if len(payload) > 0 {
		if _, err := c.raw.Write(payload); err != nil {
			return fmt.Errorf("transport: write payload: %w", err)
		}
	}

	c.logFrame(protolog.DirectionOut, len(line)+len(payload), payload)
	c.logCommand(protolog.DirectionOut, string(cmd), "", len(payload))
	return nil
}

func (c *Conn) writeLine(line string, cmd wire.Command, arg string, payloadSize int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if _, err := c.raw.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("transport: write line: %w", err)
	}

	c.logFrame(protolog.DirectionOut, len(line)+1, []byte(line))
	c.logCommand(protolog.DirectionOut, string(cmd), arg, payloadSize)
	return nil
}

func (c *Conn) logFrame(dir protolog.Direction, size int, data []byte) {
	if c.logger == nil {
		return
	}
	truncated := false
	if len(data) > protolog.MaxLogFrameDataSize {
		data = data[:protolog.MaxLogFrameDataSize]
		truncated = true
	}
	c.logger.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        protolog.LayerTransport,
		Category:     protolog.CategoryFrame,
		RemoteAddr:   c.raw.RemoteAddr().String(),
		Frame:        &protolog.FrameEvent{Size: size, Data: data, Truncated: truncated},
	})
}

func (c *Conn) logCommand(dir protolog.Direction, name, arg string, payloadSize int) {
	if c.logger == nil {
		return
	}
	c.logger.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        protolog.LayerWire,
		Category:     protolog.CategoryCommand,
		RemoteAddr:   c.raw.RemoteAddr().String(),
		Command:      &protolog.CommandEvent{Name: name, Arg: arg, PayloadSize: payloadSize},
	})
}

var _ wire.Reader = (*Conn)(nil)
