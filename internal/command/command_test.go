package command_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/RamziA961/insomnia-db/internal/command"
	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// dispatchOnce wires a net.Pipe between a server-side Connection driven by
// Dispatch and a client-side Connection the test drives directly, sends req,
// and returns the client connection plus the goroutine's completion channel.
func dispatchOnce(t *testing.T, ctx context.Context, s *store.Store, shutdown <-chan struct{}, req frame.Frame) (*netconn.Connection, <-chan error) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	srvConn := netconn.New(serverSide)
	cliConn := netconn.New(clientSide)

	done := make(chan error, 1)
	go func() {
		f, ok, err := srvConn.ReadFrame()
		if err != nil {
			done <- err
			return
		}
		if !ok {
			done <- nil
			return
		}
		done <- command.Dispatch(ctx, f, s, srvConn, shutdown)
	}()

	if err := cliConn.WriteFrame(req); err != nil {
		t.Fatalf("WriteFrame request: %v", err)
	}
	return cliConn, done
}

func readFrame(t *testing.T, c *netconn.Connection) frame.Frame {
	t.Helper()
	f, ok, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !ok {
		t.Fatal("ReadFrame: unexpected graceful close")
	}
	return f
}

func TestDispatchPingWithoutPayload(t *testing.T) {
	s := store.New()
	defer s.Shutdown()

	req := frame.NewArray(frame.Bulk([]byte("PING")))
	cli, done := dispatchOnce(t, context.Background(), s, nil, req)

	resp := readFrame(t, cli)
	want := frame.Simple("PONG")
	if !resp.Equal(want) {
		t.Fatalf("got %+v, want %+v", resp, want)
	}
	if err := <-done; err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
}

func TestDispatchPingEchoesPayload(t *testing.T) {
	s := store.New()
	defer s.Shutdown()

	req := frame.NewArray(frame.Bulk([]byte("PING")), frame.Bulk([]byte("hello")))
	cli, done := dispatchOnce(t, context.Background(), s, nil, req)

	resp := readFrame(t, cli)
	want := frame.Bulk([]byte("hello"))
	if !resp.Equal(want) {
		t.Fatalf("got %+v, want %+v", resp, want)
	}
	<-done
}

func TestDispatchSetThenGetWithExpiry(t *testing.T) {
	s := store.New()
	defer s.Shutdown()

	setReq := frame.NewArray(
		frame.Bulk([]byte("SET")), frame.Bulk([]byte("foo")), frame.Bulk([]byte("bar")),
		frame.Bulk([]byte("PX")), frame.Integer(50),
	)
	cli, done := dispatchOnce(t, context.Background(), s, nil, setReq)
	resp := readFrame(t, cli)
	if !resp.Equal(frame.Simple("OK")) {
		t.Fatalf("SET response = %+v, want OK", resp)
	}
	<-done

	getReq := frame.NewArray(frame.Bulk([]byte("GET")), frame.Bulk([]byte("foo")))
	cli, done = dispatchOnce(t, context.Background(), s, nil, getReq)
	resp = readFrame(t, cli)
	if !resp.Equal(frame.Bulk([]byte("bar"))) {
		t.Fatalf("GET response = %+v, want Bulk(bar)", resp)
	}
	<-done

	time.Sleep(75 * time.Millisecond)
	s.PurgeExpired(time.Now())

	cli, done = dispatchOnce(t, context.Background(), s, nil, getReq)
	resp = readFrame(t, cli)
	if !resp.Equal(frame.Null()) {
		t.Fatalf("GET after expiry = %+v, want Null", resp)
	}
	<-done
}

func TestDispatchUnknownCommandWritesErrorFrame(t *testing.T) {
	s := store.New()
	defer s.Shutdown()

	req := frame.NewArray(frame.Bulk([]byte("NOSUCHCOMMAND")))
	cli, done := dispatchOnce(t, context.Background(), s, nil, req)

	resp := readFrame(t, cli)
	if resp.Kind != frame.KindError {
		t.Fatalf("expected Error frame, got %+v", resp)
	}
	<-done
}

func TestDispatchPublishToGhostChannel(t *testing.T) {
	s := store.New()
	defer s.Shutdown()

	req := frame.NewArray(frame.Bulk([]byte("PUBLISH")), frame.Bulk([]byte("ghost")), frame.Bulk([]byte("hi")))
	cli, done := dispatchOnce(t, context.Background(), s, nil, req)

	resp := readFrame(t, cli)
	if !resp.Equal(frame.Integer(0)) {
		t.Fatalf("got %+v, want Integer(0)", resp)
	}
	if s.TopicCount() != 0 {
		t.Fatal("expected PUBLISH to a never-subscribed channel not to create a topic")
	}
	<-done

	// Once a client subscribes, the same publish reaches it and reports one
	// receiver.
	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	subReq := frame.NewArray(frame.Bulk([]byte("SUBSCRIBE")), frame.Bulk([]byte("ghost")))
	subCli, subDone := dispatchOnce(t, subCtx, s, nil, subReq)
	ack := readFrame(t, subCli)
	if len(ack.Array) != 3 || string(ack.Array[0].Bulk) != "subscribe" {
		t.Fatalf("unexpected ack frame: %+v", ack)
	}

	cli, done = dispatchOnce(t, context.Background(), s, nil, req)
	resp = readFrame(t, cli)
	if !resp.Equal(frame.Integer(1)) {
		t.Fatalf("got %+v, want Integer(1)", resp)
	}
	<-done

	msg := readFrame(t, subCli)
	want := frame.NewArray(frame.Bulk([]byte("message")), frame.Bulk([]byte("ghost")), frame.Bulk([]byte("hi")))
	if !msg.Equal(want) {
		t.Fatalf("got %+v, want %+v", msg, want)
	}

	subCancel()
	if err := <-subDone; err != nil {
		t.Fatalf("subscriber Dispatch error: %v", err)
	}
}

// TestDispatchPublishReachesTwoSubscribers exercises the scenario: two
// clients subscribe to "news", a third publishes "hi", and both subscribers
// receive a message frame while the publisher sees Integer(2).
func TestDispatchPublishReachesTwoSubscribers(t *testing.T) {
	s := store.New()
	defer s.Shutdown()

	subscribe := func() (*netconn.Connection, context.CancelFunc, <-chan error) {
		ctx, cancel := context.WithCancel(context.Background())
		req := frame.NewArray(frame.Bulk([]byte("SUBSCRIBE")), frame.Bulk([]byte("news")))
		cli, done := dispatchOnce(t, ctx, s, nil, req)

		ack := readFrame(t, cli)
		if len(ack.Array) != 3 || string(ack.Array[0].Bulk) != "subscribe" {
			t.Fatalf("unexpected ack frame: %+v", ack)
		}
		return cli, cancel, done
	}

	c1, cancel1, done1 := subscribe()
	c2, cancel2, done2 := subscribe()
	defer cancel1()
	defer cancel2()

	pubReq := frame.NewArray(frame.Bulk([]byte("PUBLISH")), frame.Bulk([]byte("news")), frame.Bulk([]byte("hi")))
	pub, pubDone := dispatchOnce(t, context.Background(), s, nil, pubReq)
	resp := readFrame(t, pub)
	if !resp.Equal(frame.Integer(2)) {
		t.Fatalf("publisher response = %+v, want Integer(2)", resp)
	}
	<-pubDone

	for _, c := range []*netconn.Connection{c1, c2} {
		msg := readFrame(t, c)
		want := frame.NewArray(frame.Bulk([]byte("message")), frame.Bulk([]byte("news")), frame.Bulk([]byte("hi")))
		if !msg.Equal(want) {
			t.Fatalf("got %+v, want %+v", msg, want)
		}
	}

	cancel1()
	cancel2()
	if err := <-done1; err != nil {
		t.Fatalf("subscriber 1 Dispatch error: %v", err)
	}
	if err := <-done2; err != nil {
		t.Fatalf("subscriber 2 Dispatch error: %v", err)
	}
}
