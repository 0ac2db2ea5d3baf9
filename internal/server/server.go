// Package server implements the TCP accept loop and the per-connection
// handler, gated by the resource guard.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RamziA961/insomnia-db/internal/command"
	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/metrics"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/resguard"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// Server owns the TCP listener and every active connection's handler
// goroutine.
type Server struct {
	host   string
	port   int
	guard  *resguard.Guard
	store  *store.Store
	logger *zap.Logger
	reg    *metrics.Registry

	listener net.Listener
	wg       sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	// shutdown is closed once, broadcasting to every handler loop that it
	// should stop reading and return, independent of ctx — used so a
	// connection mid-SUBSCRIBE unwinds promptly on graceful shutdown even
	// if nothing else cancels ctx.
	shutdown chan struct{}
	once     sync.Once
}

// New constructs a Server bound to host:port.
func New(host string, port int, guard *resguard.Guard, s *store.Store, logger *zap.Logger, reg *metrics.Registry) *Server {
	return &Server{
		host:     host,
		port:     port,
		guard:    guard,
		store:    s,
		logger:   logger,
		reg:      reg,
		conns:    make(map[net.Conn]struct{}),
		shutdown: make(chan struct{}),
	}
}

// Start binds the listener and begins accepting connections in the
// background.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("server: already started")
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("server listening", zap.String("addr", addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Stop closes the listener, broadcasts shutdown to every handler loop, and
// waits for them to return. Active connections are closed outright: a
// handler blocked mid-read has no other way to observe the broadcast, and
// its pending read error is what unwinds it.
func (s *Server) Stop() {
	s.once.Do(func() { close(s.shutdown) })
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.connMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
}

func (s *Server) trackConn(c net.Conn) {
	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(c net.Conn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-s.shutdown:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			s.logger.Error("accept error", zap.Error(err))
			if s.reg != nil {
				s.reg.AcceptErrors.Inc()
			}
			return
		}

		if !s.guard.Acquire() {
			if s.reg != nil {
				s.reg.AcceptRejected.Inc()
			}
			_ = conn.Close()
			continue
		}

		if s.reg != nil {
			s.reg.ActiveConnections.Inc()
		}

		s.trackConn(conn)
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer s.untrackConn(c)
			defer s.guard.Release()
			defer func() {
				if s.reg != nil {
					s.reg.ActiveConnections.Dec()
				}
			}()
			s.handleConnection(ctx, c)
		}(conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, c net.Conn) {
	defer c.Close()

	conn := netconn.New(c)
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		select {
		case <-s.shutdown:
			return
		case <-connCtx.Done():
			return
		default:
		}

		f, ok, err := conn.ReadFrame()
		if err != nil {
			s.logger.Debug("connection read error", zap.Error(err))
			return
		}
		if !ok {
			return
		}

		if s.reg != nil {
			s.reg.CommandsTotal.WithLabelValues(commandLabel(f)).Inc()
		}

		if err := command.Dispatch(connCtx, f, s.store, conn, s.shutdown); err != nil {
			s.logger.Debug("connection write error", zap.Error(err))
			return
		}
	}
}

// commandLabel extracts a best-effort command name for metrics, tolerating
// any shape Dispatch itself would reject; unparseable frames are labeled
// "invalid".
func commandLabel(f frame.Frame) string {
	w, err := frame.NewWalker(f)
	if err != nil {
		return "invalid"
	}
	name, err := w.NextString()
	if err != nil {
		return "invalid"
	}
	return strings.ToLower(name)
}
