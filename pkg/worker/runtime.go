package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrd-project/mrd/pkg/auth"
	"github.com/mrd-project/mrd/pkg/connection"
	"github.com/mrd-project/mrd/pkg/protolog"
	"github.com/mrd-project/mrd/pkg/registry"
	"github.com/mrd-project/mrd/pkg/transport"
	"github.com/mrd-project/mrd/pkg/wire"
)

// ErrReconnectBudgetExceeded is returned when the connect retry budget
// runs out before a connection succeeds.
var ErrReconnectBudgetExceeded = errors.New("worker: reconnect budget exceeded")

// DefaultRetryInterval is CONNECTION_WAIT_TIME: the fixed delay between
// connect attempts.
const DefaultRetryInterval = 2 * time.Second

// Config configures a Runtime.
type Config struct {
	Address string
	Secret  []byte
	Mapper  registry.Mapper
	Reducer registry.Reducer

	RetryInterval time.Duration // defaults to DefaultRetryInterval
	Timeout       time.Duration // total reconnect budget; 0 means retry forever

	Logger      *slog.Logger
	ProtoLogger protolog.Logger
}

// Runtime is one worker's connection lifecycle: connect with a bounded
// retry budget, authenticate, then serve assignments sequentially until
// the coordinator disconnects it or the connection is lost.
type Runtime struct {
	cfg Config
}

// New creates a Runtime from cfg, filling in defaults.
func New(cfg Config) *Runtime {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProtoLogger == nil {
		cfg.ProtoLogger = protolog.NoopLogger{}
	}
	if cfg.Mapper == nil {
		cfg.Mapper = registry.IdentityMapper{}
	}
	if cfg.Reducer == nil {
		cfg.Reducer = registry.IdentityReducer{}
	}
	return &Runtime{cfg: cfg}
}

// Run connects (retrying per the configured budget), authenticates, and
// serves assignments until the coordinator sends disconnect, the
// connection is lost, or ctx is canceled. A connection lost mid-task is
// not retried: the worker simply exits and the coordinator recovers the
// outstanding task via reassignment.
func (r *Runtime) Run(ctx context.Context) error {
	conn, err := r.connectWithRetry(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	hs := auth.New(r.cfg.Secret)
	if err := r.handshake(conn, hs); err != nil {
		return fmt.Errorf("worker: handshake: %w", err)
	}
	r.cfg.Logger.Info("authenticated", "conn_id", conn.ConnID())

	return r.serve(conn)
}

func (r *Runtime) connectWithRetry(ctx context.Context) (*transport.Conn, error) {
	budget := connection.NewBudget(r.cfg.RetryInterval, r.cfg.Timeout)

	for {
		wait, ok := budget.Next()
		if !ok {
			return nil, ErrReconnectBudgetExceeded
		}
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		conn, err := transport.Dial(ctx, r.cfg.Address, transport.WithLogger(r.cfg.ProtoLogger))
		if err == nil {
			return conn, nil
		}
		r.cfg.Logger.Warn("connect failed, retrying", "address", r.cfg.Address, "error", err)
	}
}

// handshake drives the client side of the symmetric HMAC exchange: answer
// the coordinator's challenge first (it always challenges first), then
// issue our own and verify the reply.
func (r *Runtime) handshake(conn *transport.Conn, hs *auth.Handshake) error {
	line, err := conn.ReadLine()
	if err != nil {
		return err
	}
	cmd, c1, err := wire.ParseCommandLine(line)
	if err != nil {
		return err
	}
	if cmd != wire.CmdChallenge {
		return fmt.Errorf("worker: expected challenge, got %q", cmd)
	}

	resp := hs.Respond(c1)
	if err := conn.WriteCommand(wire.CmdAuth, resp); err != nil {
		return err
	}

	c2, err := hs.Challenge()
	if err != nil {
		return err
	}
	if err := conn.WriteCommand(wire.CmdChallenge, c2); err != nil {
		return err
	}

	line, err = conn.ReadLine()
	if err != nil {
		return err
	}
	cmd, r2, err := wire.ParseCommandLine(line)
	if err != nil {
		return err
	}
	if cmd != wire.CmdAuth {
		return fmt.Errorf("worker: expected auth reply, got %q", cmd)
	}
	if err := hs.Verify(r2); err != nil {
		return err
	}
	if !hs.Authenticated() {
		return errors.New("worker: handshake completed but not authenticated")
	}
	return nil
}

// serve loops: read one assignment, run it against the configured
// Mapper/Reducer, report the result, until disconnect.
func (r *Runtime) serve(conn *transport.Conn) error {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		cmd, tail, err := wire.ParseCommandLine(line)
		if err != nil {
			return err
		}

		switch cmd {
		case wire.CmdDisconnect:
			conn.WriteCommand(wire.CmdDisconnect, "")
			return nil

		case wire.CmdMap:
			if err := r.serveMap(conn, tail); err != nil {
				return err
			}

		case wire.CmdReduce:
			if err := r.serveReduce(conn, tail); err != nil {
				return err
			}

		default:
			return fmt.Errorf("worker: unexpected assignment command %q", cmd)
		}
	}
}

func (r *Runtime) serveMap(conn *transport.Conn, lengthTail string) error {
	payload, err := readLengthPayload(conn, lengthTail)
	if err != nil {
		return err
	}
	assignment, err := wire.DecodeMapAssignment(payload)
	if err != nil {
		return err
	}

	kvs, err := r.cfg.Mapper.Map(assignment.Key, assignment.Value)
	if err != nil {
		// User map exceptions propagate as a worker-process failure: the
		// coordinator simply observes a lost connection and reassigns.
		return fmt.Errorf("worker: mapper: %w", err)
	}

	output := make(map[any][]any, len(kvs))
	for _, kv := range kvs {
		output[kv.Key] = append(output[kv.Key], kv.Value)
	}

	result, err := wire.EncodeMapResult(assignment.Key, output)
	if err != nil {
		return err
	}
	return conn.WriteLengthPayload(wire.CmdMapDone, result)
}

func (r *Runtime) serveReduce(conn *transport.Conn, lengthTail string) error {
	payload, err := readLengthPayload(conn, lengthTail)
	if err != nil {
		return err
	}
	assignment, err := wire.DecodeReduceAssignment(payload)
	if err != nil {
		return err
	}

	value, present, err := r.cfg.Reducer.Reduce(assignment.Key, assignment.Values)
	if err != nil {
		return fmt.Errorf("worker: reducer: %w", err)
	}

	result, err := wire.EncodeReduceResult(assignment.Key, value, present)
	if err != nil {
		return err
	}
	return conn.WriteLengthPayload(wire.CmdReduceDone, result)
}

func readLengthPayload(conn *transport.Conn, lengthTail string) ([]byte, error) {
	n, err := parseLength(lengthTail)
	if err != nil {
		return nil, err
	}
	return conn.ReadN(n)
}

func parseLength(tail string) (int, error) {
	n := 0
	if tail == "" {
		return 0, wire.ErrMalformedFrame
	}
	for _, c := range tail {
		if c < '0' || c > '9' {
			return 0, wire.ErrMalformedFrame
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 0, wire.ErrMalformedFrame
	}
	return n, nil
}
