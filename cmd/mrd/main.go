// Command mrd is a local all-in-one launcher for a MapReduce job: it can
// start just a coordinator, just a worker, or (the default) a
// coordinator plus NumClients workers in the same process, handy for
// running a job on a single machine without juggling mrd-coordinator and
// mrd-worker by hand.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/mrd-project/mrd/internal/config"
	"github.com/mrd-project/mrd/pkg/coordinator"
	"github.com/mrd-project/mrd/pkg/registry"
	"github.com/mrd-project/mrd/pkg/worker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "mrd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch cfg.Launch {
	case "local", "":
		return runLocal(ctx, cfg, logger)
	case "server":
		return runServerOnly(cfg, logger)
	case "client":
		return runClientOnly(ctx, cfg, logger)
	default:
		return fmt.Errorf("mrd: launch mode %q is not supported by this binary (use mrd-coordinator/mrd-worker for distributed launches)", cfg.Launch)
	}
}

// runLocal starts a coordinator and cfg.NumClients workers in this
// process, all talking over loopback TCP, and waits for the job to
// finish.
func runLocal(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reader, err := registry.Readers.New(cfg.Reader)
	if err != nil {
		return err
	}
	writer, err := resolveWriter(cfg)
	if err != nil {
		return err
	}

	listener, err := coordinator.Listen(coordinator.Config{
		Address:        "127.0.0.1:0",
		Secret:         []byte(cfg.Password),
		Reader:         reader,
		Writer:         writer,
		Input:          cfg.Input,
		Logger:         logger,
		ReportInterval: cfg.ReportPct,
	})
	if err != nil {
		return fmt.Errorf("mrd: starting coordinator: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listener.Serve() }()

	numWorkers := cfg.NumClients
	if numWorkers <= 0 {
		numWorkers = 1
	}

	mapper, err := registry.Mappers.New(cfg.Mapper)
	if err != nil {
		return err
	}
	reducer, err := registry.Reducers.New(cfg.Reducer)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		workerLogger := logger.With("worker", i)
		go func() {
			defer wg.Done()
			rt := worker.New(worker.Config{
				Address: listener.Addr().String(),
				Secret:  []byte(cfg.Password),
				Mapper:  mapper,
				Reducer: reducer,
				Timeout: cfg.Timeout(),
				Logger:  workerLogger,
			})
			if err := rt.Run(ctx); err != nil {
				workerLogger.Warn("worker exited", "error", err)
			}
		}()
	}

	select {
	case err := <-serveErr:
		wg.Wait()
		return err
	case <-ctx.Done():
		wg.Wait()
		return ctx.Err()
	}
}

func runServerOnly(cfg *config.Config, logger *slog.Logger) error {
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
		ReportInterval: cfg.ReportPct,
	})
	if err != nil {
		return fmt.Errorf("mrd: %w", err)
	}
	return listener.Serve()
}

func runClientOnly(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	mapper, err := registry.Mappers.New(cfg.Mapper)
	if err != nil {
		return err
	}
	reducer, err := registry.Reducers.New(cfg.Reducer)
	if err != nil {
		return err
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rt := worker.New(worker.Config{
		Address: fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Secret:  []byte(cfg.Password),
		Mapper:  mapper,
		Reducer: reducer,
		Timeout: timeout,
		Logger:  logger,
	})
	return rt.Run(ctx)
}

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

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
