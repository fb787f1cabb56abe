// Command mrd-coordinator runs the coordinator side of a MapReduce job:
// it builds the datasource via the configured Reader, listens for worker
// connections, hands out map and reduce assignments, and writes the
// final results via the configured Writer.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/mrd-project/mrd/internal/config"
	"github.com/mrd-project/mrd/pkg/console"
	"github.com/mrd-project/mrd/pkg/coordinator"
	"github.com/mrd-project/mrd/pkg/discovery"
	"github.com/mrd-project/mrd/pkg/protolog"
	"github.com/mrd-project/mrd/pkg/registry"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "mrd-coordinator:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	protoLogger, closeProtoLogger, err := newProtoLogger(logger, cfg.ProtocolLog)
	if err != nil {
		return err
	}
	defer closeProtoLogger()

	reader, err := registry.Readers.New(cfg.Reader)
	if err != nil {
		return err
	}
	writer, err := resolveWriter(cfg)
	if err != nil {
		return err
	}

	listener, err := coordinator.Listen(coordinator.Config{
		Address:        fmt.Sprintf(":%d", cfg.Port),
		Secret:         []byte(cfg.Password),
		Reader:         reader,
		Writer:         writer,
		Input:          cfg.Input,
		Logger:         logger,
		ProtoLogger:    protoLogger,
		ReportInterval: cfg.ReportPct,
	})
	if err != nil {
		return fmt.Errorf("mrd-coordinator: %w", err)
	}

	if adv, ok := advertise(listener, cfg, logger); ok {
		defer adv.Stop()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listener.Serve() }()

	if cfg.Interactive {
		shell, err := console.New(listener)
		if err != nil {
			return fmt.Errorf("mrd-coordinator: starting console: %w", err)
		}
		defer shell.Close()
		if err := shell.Run(); err != nil {
			logger.Warn("console exited with error", "error", err)
		}
	}

	return <-serveErr
}

// resolveWriter special-cases the "file" writer, which needs the -output
// path wired into it; every other registered writer needs no constructor
// argument.
func resolveWriter(cfg *config.Config) (registry.Writer, error) {
	w, err := registry.Writers.New(cfg.Writer)
	if err != nil {
		return nil, err
	}
	switch w.(type) {
	case registry.FileWriter:
		return registry.FileWriter{Path: cfg.Output}, nil
	case registry.CBORWriter:
		return registry.CBORWriter{Path: cfg.Output}, nil
	}
	return w, nil
}

// advertise registers the coordinator over mDNS so workers started
// without an explicit -address can find it. A failure here is not fatal:
// the coordinator keeps running and reachable by explicit address.
func advertise(listener *coordinator.Listener, cfg *config.Config, logger *slog.Logger) (*discovery.Advertiser, bool) {
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return nil, false
	}
	adv, err := discovery.Advertise(tcpAddr.Port, cfg.Input)
	if err != nil {
		logger.Warn("mDNS advertise failed, continuing without discovery", "error", err)
		return nil, false
	}
	logger.Info("advertising over mDNS", "service", discovery.ServiceType, "port", tcpAddr.Port)
	return adv, true
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// newProtoLogger builds the protocol event logger: always logs to the
// slog handler at debug level, and additionally to path in CBOR format
// if path is non-empty. The returned close function is always safe to
// call, even when path was empty.
func newProtoLogger(logger *slog.Logger, path string) (protolog.Logger, func(), error) {
	slogProto := protolog.NewSlogAdapter(logger)
	if path == "" {
		return slogProto, func() {}, nil
	}

	fileLogger, err := protolog.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("mrd-coordinator: protocol log: %w", err)
	}
	logger.Info("protocol logging to file", "path", path)
	return protolog.NewMultiLogger(slogProto, fileLogger), func() { fileLogger.Close() }, nil
}
