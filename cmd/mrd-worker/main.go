// Command mrd-worker runs the worker side of a MapReduce job: it
// connects to a coordinator (dialing directly, or discovering one over
// mDNS when the address is the default 127.0.0.1), authenticates, and serves map/reduce
// assignments against the configured Mapper and Reducer until the job
// finishes or the connection is lost.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mrd-project/mrd/internal/config"
	"github.com/mrd-project/mrd/pkg/discovery"
	"github.com/mrd-project/mrd/pkg/protolog"
	"github.com/mrd-project/mrd/pkg/registry"
	"github.com/mrd-project/mrd/pkg/worker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "mrd-worker:", err)
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

	mapper, err := registry.Mappers.New(cfg.Mapper)
	if err != nil {
		return err
	}
	reducer, err := registry.Reducers.New(cfg.Reducer)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	address, err := resolveAddress(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rt := worker.New(worker.Config{
		Address:       address,
		Secret:        []byte(cfg.Password),
		Mapper:        mapper,
		Reducer:       reducer,
		Timeout:       cfg.Timeout(),
		Logger:        logger,
		ProtoLogger:   protoLogger,
		RetryInterval: worker.DefaultRetryInterval,
	})

	if err := rt.Run(ctx); err != nil {
		return fmt.Errorf("mrd-worker: %w", err)
	}
	return nil
}

// resolveAddress uses cfg.Address directly when it is set to something
// other than the default 127.0.0.1; otherwise (including an explicit
// 127.0.0.1) it browses for a coordinator over mDNS, bounded by
// cfg.Timeout.
func resolveAddress(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Address != "" && cfg.Address != "127.0.0.1" {
		return fmt.Sprintf("%s:%d", cfg.Address, cfg.Port), nil
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	findCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("no address given, discovering coordinator over mDNS")
	found, err := discovery.Find(findCtx, "")
	if err != nil {
		return "", fmt.Errorf("mrd-worker: discovering coordinator: %w", err)
	}
	logger.Info("discovered coordinator", "address", found.Address)
	return found.Address, nil
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

func newProtoLogger(logger *slog.Logger, path string) (protolog.Logger, func(), error) {
	slogProto := protolog.NewSlogAdapter(logger)
	if path == "" {
		return slogProto, func() {}, nil
	}

	fileLogger, err := protolog.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("mrd-worker: protocol log: %w", err)
	}
	logger.Info("protocol logging to file", "path", path)
	return protolog.NewMultiLogger(slogProto, fileLogger), func() { fileLogger.Close() }, nil
}
