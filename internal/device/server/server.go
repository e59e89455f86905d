// Package server exposes a simulated radio node over TCP so companion
// apps can talk to it exactly as they would to hardware behind a WiFi
// serial bridge.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/dmitrijs2005/mclink/internal/device/radio"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/transport"
)

// Server accepts companion connections and bridges frames between the
// link and the node. One app is served at a time, the way a hardware
// node pairs with a single phone; a second connection waits in the
// accept backlog until the current link drops.
type Server struct {
	addr   string
	node   *radio.Node
	logger logging.Logger

	mu sync.Mutex
	ln net.Listener
}

func New(addr string, node *radio.Node, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		addr:   addr,
		node:   node,
		logger: logger.With("module", "node_server"),
	}
}

// Addr returns the bound listen address, or "" before Run has bound one.
// Useful when the configured address leaves the port choice to the OS.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Run listens on the configured address and serves companion links until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down node server")
		_ = ln.Close()
	}()

	s.logger.Info("node server listening", "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.serve(ctx, conn)
	}
}

// serve runs one companion link until it drops or ctx is cancelled.
func (s *Server) serve(ctx context.Context, conn net.Conn) {
	link := transport.NewAccepted(conn, s.logger)
	s.logger.Info("app connected", "remote", conn.RemoteAddr().String())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pumpPushes(ctx, done, link)
	}()

recv:
	for raw := range link.Frames() {
		for _, resp := range s.node.HandleFrame(raw) {
			if err := link.Send(ctx, resp); err != nil {
				s.logger.Warn("dropping app link", "error", err)
				break recv
			}
		}
	}

	close(done)
	_ = link.Close()
	// Drain until the read loop closes the channel so it never stays
	// blocked handing over a frame nobody will read.
	for range link.Frames() {
	}
	wg.Wait()
	s.logger.Info("app disconnected", "remote", conn.RemoteAddr().String())
}

// pumpPushes forwards asynchronous pushes to the connected app. It also
// owns closing the link on ctx cancellation so the receive loop in serve
// unblocks during shutdown.
func (s *Server) pumpPushes(ctx context.Context, done <-chan struct{}, link *transport.TCP) {
	for {
		select {
		case <-ctx.Done():
			_ = link.Close()
			return
		case <-done:
			return
		case raw := <-s.node.Pushes():
			if err := link.Send(ctx, raw); err != nil {
				s.logger.Warn("push dropped with link", "error", err)
				return
			}
		}
	}
}
