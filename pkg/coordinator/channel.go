package coordinator

import (
	"errors"
	"log/slog"

	"github.com/mrd-project/mrd/pkg/auth"
	"github.com/mrd-project/mrd/pkg/task"
	"github.com/mrd-project/mrd/pkg/transport"
	"github.com/mrd-project/mrd/pkg/wire"
)

// channelState is a Channel's position in AWAIT_AUTH → IDLE → ASSIGNED →
// ... → CLOSED.
type channelState uint8

const (
	stateAwaitAuth channelState = iota
	stateIdle
	stateAssigned
	stateClosed
)

// errClosedGracefully is returned internally by the dispatch handler to
// unwind Channel.Run's loop after a clean disconnect, as opposed to a
// socket error or protocol violation.
var errClosedGracefully = errors.New("coordinator: channel closed")

// Channel drives one worker connection: authentication, then a loop of
// assign → {mapdone, reducedone} → assign against a shared task.Manager.
// On any socket error or protocol violation it closes the connection and
// returns without ever telling the task manager the connection died.
// Outstanding work is recovered later by oldest-timestamp reassignment.
type Channel struct {
	conn   *transport.Conn
	mgr    *task.Manager
	hs     *auth.Handshake
	logger *slog.Logger

	state channelState
	disp  *wire.Dispatcher
}

// NewChannel creates a Channel bound to mgr for a freshly accepted
// connection. secret is the shared HMAC password.
func NewChannel(conn *transport.Conn, mgr *task.Manager, secret []byte, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	ch := &Channel{
		conn:   conn,
		mgr:    mgr,
		hs:     auth.New(secret),
		logger: logger,
		state:  stateAwaitAuth,
	}
	ch.disp = wire.NewDispatcher(connReader{conn}, ch.hs.Authenticated, ch.handle)
	return ch
}

// connReader adapts *transport.Conn to wire.Reader, exposing only the
// two read methods the dispatcher uses.
type connReader struct{ c *transport.Conn }

func (r connReader) ReadLine() (string, error)  { return r.c.ReadLine() }
func (r connReader) ReadN(n int) ([]byte, error) { return r.c.ReadN(n) }

// Run drives the connection until it closes. It always closes the
// underlying connection before returning.
func (ch *Channel) Run() {
	defer ch.conn.Close()

	challenge, err := ch.hs.Challenge()
	if err != nil {
		ch.logger.Error("generate challenge", "conn_id", ch.conn.ConnID(), "error", err)
		return
	}
	if err := ch.conn.WriteCommand(wire.CmdChallenge, challenge); err != nil {
		return
	}

	for {
		if err := ch.disp.ServeOne(); err != nil {
			switch {
			case errors.Is(err, errClosedGracefully):
			case errors.Is(err, wire.ErrMalformedFrame),
				errors.Is(err, wire.ErrUnknownCommand),
				errors.Is(err, wire.ErrUnauthenticatedPayload):
				ch.logger.Error("protocol violation, closing channel", "conn_id", ch.conn.ConnID(), "error", err)
			default:
				ch.logger.Debug("channel closed", "conn_id", ch.conn.ConnID(), "error", err)
			}
			return
		}
		if ch.state == stateClosed {
			return
		}
	}
}

func (ch *Channel) handle(cmd wire.Command, arg string, payload []byte) error {
	switch cmd {
	case wire.CmdAuth:
		if err := ch.hs.Verify(arg); err != nil {
			return err
		}
		return nil

	case wire.CmdChallenge:
		resp := ch.hs.Respond(arg)
		if err := ch.conn.WriteCommand(wire.CmdAuth, resp); err != nil {
			return err
		}
		if ch.hs.Authenticated() {
			ch.state = stateIdle
			return ch.assignNext()
		}
		return nil

	case wire.CmdDisconnect:
		ch.state = stateClosed
		return errClosedGracefully

	case wire.CmdMapDone:
		key, output, err := wire.DecodeMapResult(payload)
		if err != nil {
			return err
		}
		ch.mgr.MapDone(key, output)
		return ch.assignNext()

	case wire.CmdReduceDone:
		key, value, present, err := wire.DecodeReduceResult(payload)
		if err != nil {
			return err
		}
		ch.mgr.ReduceDone(key, value, present)
		return ch.assignNext()

	default:
		return wire.ErrUnknownCommand
	}
}

// assignNext asks the task manager for the next assignment and sends it,
// or sends disconnect and marks the channel closed once the job is
// finished.
func (ch *Channel) assignNext() error {
	t := ch.mgr.NextTask()
	switch t.Kind {
	case task.KindMap:
		payload, err := wire.EncodeMapAssignment(t.Key, t.Value)
		if err != nil {
			return err
		}
		if err := ch.conn.WriteLengthPayload(wire.CmdMap, payload); err != nil {
			return err
		}
		ch.state = stateAssigned
		return nil

	case task.KindReduce:
		values, _ := t.Value.([]any)
		payload, err := wire.EncodeReduceAssignment(t.Key, values)
		if err != nil {
			return err
		}
		if err := ch.conn.WriteLengthPayload(wire.CmdReduce, payload); err != nil {
			return err
		}
		ch.state = stateAssigned
		return nil

	default: // task.KindDisconnect
		if err := ch.conn.WriteCommand(wire.CmdDisconnect, ""); err != nil {
			return err
		}
		ch.state = stateClosed
		return errClosedGracefully
	}
}
