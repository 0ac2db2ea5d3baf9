package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/metrics"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/resguard"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// sharedRegistry returns one process-wide metrics.Registry: promauto
// registers collectors on the global Prometheus registry, so constructing a
// second Registry in the same test binary would panic on a duplicate name.
var (
	sharedRegistryOnce sync.Once
	sharedReg          *metrics.Registry
)

func sharedRegistry() *metrics.Registry {
	sharedRegistryOnce.Do(func() { sharedReg = metrics.NewRegistry() })
	return sharedReg
}

func TestServerAcceptsAndDispatchesPing(t *testing.T) {
	s := store.New()
	defer s.Shutdown()
	guard := resguard.New(10, 1000, 1000, 50*time.Millisecond)
	srv := New("127.0.0.1", 0, guard, s, zap.NewNop(), sharedRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	c, err := net.Dial("tcp", srv.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	conn := netconn.New(c)
	if err := conn.WriteFrame(frame.NewArray(frame.Bulk([]byte("PING")))); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	resp, ok, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !ok {
		t.Fatal("unexpected graceful close")
	}
	if !resp.Equal(frame.Simple("PONG")) {
		t.Fatalf("got %+v, want Simple(PONG)", resp)
	}
}

func TestServerRejectsConnectionsBeyondCapacity(t *testing.T) {
	s := store.New()
	defer s.Shutdown()
	guard := resguard.New(1, 1000, 1000, 10*time.Millisecond)
	srv := New("127.0.0.1", 0, guard, s, zap.NewNop(), sharedRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	addr := srv.listener.Addr().String()

	first, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer first.Close()

	// Give the accept loop time to acquire the single guard slot for the
	// first connection before the second dial races it.
	time.Sleep(50 * time.Millisecond)

	second, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer second.Close()

	conn := netconn.New(second)
	_, ok, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("expected a clean close for a rejected connection, got error: %v", err)
	}
	if ok {
		t.Fatal("expected the over-capacity connection to be closed without a response")
	}
}
