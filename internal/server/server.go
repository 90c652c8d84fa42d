// Package server runs the network-facing half of the PV server: the
// TCP circuit listener, the UDP name-search responder, and the beacon
// ticker. Value semantics live in internal/dbr; backends live behind
// internal/provider.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/epicsgo/caserver/internal/config"
	"github.com/epicsgo/caserver/internal/observability"
	"github.com/epicsgo/caserver/internal/protocol"
	"github.com/epicsgo/caserver/internal/provider"
)

// Server owns all listeners for one PV server process.
type Server struct {
	cfg    config.ServerConfig
	reg    *provider.Registry
	log    zerolog.Logger
	limits protocol.Limits

	mu       sync.Mutex
	ln       net.Listener
	search   *net.UDPConn
	circuits map[string]*circuit
	closed   bool

	wg sync.WaitGroup
}

// New builds a server around a provider registry. Nothing listens until
// Start is called.
func New(cfg config.ServerConfig, reg *provider.Registry, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		reg:      reg,
		log:      logger.With().Str("component", "server").Logger(),
		limits:   protocol.DefaultLimits(),
		circuits: make(map[string]*circuit),
	}
}

// Start opens the TCP and UDP listeners and runs until ctx is canceled
// or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("tcp listen on %s: %w", s.cfg.ListenAddr, err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	searchAddr, err := net.ResolveUDPAddr("udp", s.cfg.SearchAddr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("resolve search addr %s: %w", s.cfg.SearchAddr, err)
	}
	search, err := net.ListenUDP("udp", searchAddr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("udp listen on %s: %w", s.cfg.SearchAddr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		search.Close()
		return errors.New("server already stopped")
	}
	s.ln = ln
	s.search = search
	s.mu.Unlock()

	s.log.Info().
		Str("name", s.cfg.Name).
		Str("tcp", ln.Addr().String()).
		Str("udp", search.LocalAddr().String()).
		Msg("server up")

	s.wg.Add(2)
	go s.serveSearch(search, port)
	go s.serveBeacons(ctx, port)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		c := newCircuit(s, conn)
		s.mu.Lock()
		s.circuits[c.id] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()
			s.mu.Lock()
			delete(s.circuits, c.id)
			s.mu.Unlock()
		}()
	}
}

// Stop closes the listeners and every open circuit. Safe to call more
// than once.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln, search := s.ln, s.search
	open := make([]*circuit, 0, len(s.circuits))
	for _, c := range s.circuits {
		open = append(open, c)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	if search != nil {
		search.Close()
	}
	for _, c := range open {
		c.close()
	}
}

// Wait blocks until all server goroutines have finished.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) recordSearch(found bool) {
	observability.RecordSearch(s.cfg.Name, found)
}
