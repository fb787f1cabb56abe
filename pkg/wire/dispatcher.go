package wire

import "errors"

// ErrUnauthenticatedPayload indicates a length-mode payload (or any
// command outside {challenge, auth, disconnect}) arrived before the
// connection's handshake completed. It is always fatal: the caller must
// close the connection without responding.
var ErrUnauthenticatedPayload = errors.New("wire: payload received before authentication")

// ErrUnknownCommand indicates a syntactically valid frame whose command
// has no registered handler for the connection's current state.
var ErrUnknownCommand = errors.New("wire: unknown command for current state")

// Reader is the minimal line/length source a Dispatcher drives. A
// transport.Conn implements it.
type Reader interface {
	ReadLine() (string, error)
	ReadN(n int) ([]byte, error)
}

// Handler processes one dispatched frame. arg holds the inline argument
// for challenge/auth/disconnect frames (empty string if there was none);
// payload holds the decoded length-mode bytes for map/reduce/mapdone/
// reducedone frames (nil if the frame carried no payload).
type Handler func(cmd Command, arg string, payload []byte) error

// Dispatcher implements the line/length alternation described in the
// package doc: it reads one command line, and only if that command is
// expected to carry a payload and its tail parses as a positive byte
// count does it switch into length mode to read the payload before
// calling Handler.
type Dispatcher struct {
	r             Reader
	authenticated func() bool
	handle        Handler
}

// NewDispatcher creates a Dispatcher. authenticated reports the
// connection's current handshake state at the time each frame is read.
func NewDispatcher(r Reader, authenticated func() bool, handle Handler) *Dispatcher {
	return &Dispatcher{r: r, authenticated: authenticated, handle: handle}
}

// ServeOne reads and dispatches exactly one frame. It returns the
// underlying read error verbatim (including io.EOF) so callers can treat
// connection loss uniformly; any other returned error is a protocol
// violation the caller must treat as fatal and close the connection on.
func (d *Dispatcher) ServeOne() error {
	line, err := d.r.ReadLine()
	if err != nil {
		return err
	}

	cmd, tail, err := ParseCommandLine(line)
	if err != nil {
		return err
	}

	authed := d.authenticated()

	if !authed {
		// Before the handshake completes, every frame's tail is an
		// inline argument. The dispatcher never switches to length
		// mode, and only challenge/auth/disconnect are accepted.
		if !cmd.AllowedUnauthenticated() {
			return ErrUnauthenticatedPayload
		}
		return d.handle(cmd, tail, nil)
	}

	if cmd == CmdChallenge {
		return d.handle(cmd, tail, nil)
	}

	if tail == "" {
		return d.handle(cmd, "", nil)
	}

	n, ok := parsePositiveLength(tail)
	if !ok {
		return ErrMalformedFrame
	}
	if !cmd.HasPayload() {
		return ErrMalformedFrame
	}

	payload, err := d.r.ReadN(n)
	if err != nil {
		return err
	}
	return d.handle(cmd, "", payload)
}
