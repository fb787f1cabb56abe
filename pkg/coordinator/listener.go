package coordinator

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/mrd-project/mrd/pkg/protolog"
	"github.com/mrd-project/mrd/pkg/registry"
	"github.com/mrd-project/mrd/pkg/task"
	"github.com/mrd-project/mrd/pkg/transport"
)

// DefaultAddress is the coordinator's default bind address.
const DefaultAddress = ":11235"

// Config configures a Listener.
type Config struct {
	Address string
	Secret  []byte
	Reader  registry.Reader
	Writer  registry.Writer
	Input   string // passed to Reader.Read to build the datasource

	Logger         *slog.Logger
	ProtoLogger    protolog.Logger
	ReportInterval int
}

// Listener accepts worker connections, owns the job's task.Manager, and
// invokes the configured Writer once the manager reaches FINISHED.
type Listener struct {
	cfg Config
	ln  *transport.Listener
	mgr *task.Manager
}

// Listen builds the datasource via cfg.Reader, binds cfg.Address, and
// starts the task manager. The returned Listener is ready for Serve.
func Listen(cfg Config) (*Listener, error) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProtoLogger == nil {
		cfg.ProtoLogger = protolog.NoopLogger{}
	}
	if cfg.Reader == nil {
		cfg.Reader = registry.GlobReader{}
	}
	if cfg.Writer == nil {
		cfg.Writer = registry.StreamWriter{}
	}

	datasource, err := cfg.Reader.Read(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("coordinator: building datasource: %w", err)
	}

	ln, err := transport.Listen(cfg.Address, transport.WithLogger(cfg.ProtoLogger))
	if err != nil {
		return nil, fmt.Errorf("coordinator: bind %s: %w", cfg.Address, err)
	}

	mgr := task.New(datasource,
		task.WithLogger(cfg.Logger),
		task.WithProtoLogger(cfg.ProtoLogger),
		task.WithReportInterval(cfg.ReportInterval),
	)

	cfg.Logger.Info("coordinator listening", "address", ln.Addr().String(), "inputs", len(datasource))

	return &Listener{cfg: cfg, ln: ln, mgr: mgr}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Manager returns the job's task manager, for callers (e.g. pkg/console)
// that want to watch progress or completion directly.
func (l *Listener) Manager() *task.Manager { return l.mgr }

// Serve accepts connections until the job finishes, spawning one Channel
// goroutine per connection, then closes the listener and writes the
// final results through the configured Writer. It returns any error from
// the accept loop itself or from the Writer; a nil return means the job
// finished and its results were written successfully.
func (l *Listener) Serve() error {
	acceptErr := make(chan error, 1)
	go func() {
		for {
			conn, err := l.ln.Accept()
			if err != nil {
				acceptErr <- err
				return
			}
			ch := NewChannel(conn, l.mgr, l.cfg.Secret, l.cfg.Logger)
			go ch.Run()
		}
	}()

	var serveErr error
	select {
	case <-l.mgr.Done():
	case serveErr = <-acceptErr:
	}

	l.ln.Close()

	if serveErr != nil {
		return fmt.Errorf("coordinator: accept loop: %w", serveErr)
	}

	results := l.mgr.Results()
	l.cfg.Logger.Info("job finished", "results", len(results))
	if err := l.cfg.Writer.Write(results); err != nil {
		return fmt.Errorf("coordinator: writing results: %w", err)
	}
	return nil
}
