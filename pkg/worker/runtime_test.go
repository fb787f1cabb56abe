package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrd-project/mrd/pkg/coordinator"
	"github.com/mrd-project/mrd/pkg/registry"
)

func TestRuntimeCompletesWordCountJob(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(inputPath, []byte("a b a\nb c\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	outPath := filepath.Join(dir, "out.txt")
	secret := []byte("s3cr3t")

	l, err := coordinator.Listen(coordinator.Config{
		Address: "127.0.0.1:0",
		Secret:  secret,
		Reader:  registry.FileLineReader{},
		Writer:  registry.FileWriter{Path: outPath},
		Input:   inputPath,
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- l.Serve() }()

	rt := New(Config{
		Address: l.Addr().String(),
		Secret:  secret,
		Mapper:  registry.SplitWordsMapper{},
		Reducer: registry.SumReducer{},
	})

	runErr := make(chan error, 1)
	go func() { runErr <- rt.Run(context.Background()) }()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Runtime.Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Runtime.Run never returned")
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Listener.Serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Listener.Serve never returned")
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty output")
	}
}

func TestRuntimeConnectRetryGivesUpAfterTimeout(t *testing.T) {
	rt := New(Config{
		Address:       "127.0.0.1:1", // reserved port, connection refused
		Secret:        []byte("s3cr3t"),
		RetryInterval: 10 * time.Millisecond,
		Timeout:       60 * time.Millisecond,
	})

	err := rt.Run(context.Background())
	if err != ErrReconnectBudgetExceeded {
		t.Fatalf("got %v, want ErrReconnectBudgetExceeded", err)
	}
}

func TestRuntimeWrongSecretFailsHandshake(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")

	l, err := coordinator.Listen(coordinator.Config{
		Address: "127.0.0.1:0",
		Secret:  []byte("serverSecret"),
		Reader:  registry.GlobReader{},
		Writer:  registry.FileWriter{Path: outPath},
		Input:   filepath.Join(dir, "nomatch-*.txt"),
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go l.Serve()

	rt := New(Config{
		Address: l.Addr().String(),
		Secret:  []byte("wrongSecret"),
	})

	err = rt.Run(context.Background())
	if err == nil {
		t.Fatal("expected handshake failure, got nil")
	}
}
