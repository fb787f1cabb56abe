package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/mrd-project/mrd/pkg/auth"
	"github.com/mrd-project/mrd/pkg/task"
	"github.com/mrd-project/mrd/pkg/transport"
	"github.com/mrd-project/mrd/pkg/wire"
)

func loopbackChannelConn(t *testing.T) (serverConn, clientConn *transport.Conn) {
	t.Helper()
	ln, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan *transport.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- c
	}()

	client, err := transport.Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case server := <-accepted:
		return server, client
	case <-time.After(2 * time.Second):
		t.Fatal("accept never completed")
		return nil, nil
	}
}

func TestChannelHandshakeThenImmediateDisconnectOnEmptyJob(t *testing.T) {
	secret := []byte("topsecret")
	server, client := loopbackChannelConn(t)
	defer client.Close()

	mgr := task.New(map[any]any{}, task.WithReportInterval(0))
	ch := NewChannel(server, mgr, secret, nil)

	runDone := make(chan struct{})
	go func() { ch.Run(); close(runDone) }()

	clientHS := auth.New(secret)

	line, err := client.ReadLine()
	if err != nil {
		t.Fatalf("read challenge: %v", err)
	}
	cmd, c1, err := wire.ParseCommandLine(line)
	if err != nil || cmd != wire.CmdChallenge {
		t.Fatalf("expected challenge, got %q", line)
	}
	resp1 := clientHS.Respond(c1)
	if err := client.WriteCommand(wire.CmdAuth, resp1); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	c2, err := clientHS.Challenge()
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if err := client.WriteCommand(wire.CmdChallenge, c2); err != nil {
		t.Fatalf("write challenge: %v", err)
	}

	line, err = client.ReadLine()
	if err != nil {
		t.Fatalf("read auth: %v", err)
	}
	cmd, r2, err := wire.ParseCommandLine(line)
	if err != nil || cmd != wire.CmdAuth {
		t.Fatalf("expected auth, got %q", line)
	}
	if err := clientHS.Verify(r2); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// The job has no input, so the very next frame should be a
	// disconnect: the channel assigns it as soon as auth completes.
	line, err = client.ReadLine()
	if err != nil {
		t.Fatalf("read post-auth frame: %v", err)
	}
	cmd, _, err = wire.ParseCommandLine(line)
	if err != nil || cmd != wire.CmdDisconnect {
		t.Fatalf("expected disconnect, got %q", line)
	}

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Channel.Run never returned")
	}

	select {
	case <-mgr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager never finished")
	}
}

func TestChannelWrongSecretClosesConnection(t *testing.T) {
	server, client := loopbackChannelConn(t)
	defer client.Close()

	mgr := task.New(map[any]any{int64(0): "x"}, task.WithReportInterval(0))
	ch := NewChannel(server, mgr, []byte("serverSecret"), nil)

	runDone := make(chan struct{})
	go func() { ch.Run(); close(runDone) }()

	clientHS := auth.New([]byte("wrongSecret"))

	line, err := client.ReadLine()
	if err != nil {
		t.Fatalf("read challenge: %v", err)
	}
	_, c1, err := wire.ParseCommandLine(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	resp1 := clientHS.Respond(c1)
	if err := client.WriteCommand(wire.CmdAuth, resp1); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	// The response fails Verify, which is fatal: the channel closes the
	// connection right away rather than giving the client another try.
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Channel.Run never returned after a bad auth response")
	}

	if _, err := client.ReadLine(); err == nil {
		t.Fatal("expected read to fail once the server closed the connection")
	}
}
