// Package nircamera implements a real-time image-streaming server: a
// lock-free latest-wins frame queue (package queue), a completion-driven
// connection state machine, a fixed reactor worker pool (package reactor),
// and a small line-oriented request/response protocol (package wire) for
// fetching a static catalog of reference images (package catalog) alongside
// the live stream.
package nircamera

import (
	"context"
	"net"
	"sync"

	"github.com/inconshreveable/log15"

	"github.com/DKandrew/NirCamera/catalog"
	"github.com/DKandrew/NirCamera/reactor"
)

// Server owns the listening socket, the reactor worker pool, and the fixed
// table of pre-created connection slots. Its public API is deliberately
// small: New, Run, Publish, Close.
type Server struct {
	ip, port string

	workers            int
	maxClients         int
	frameQueueCapacity int
	frameTolerance     uint64
	requestMaxBytes    int

	log     log15.Logger
	catalog catalog.Provider

	listener net.Listener
	pool     *reactor.Pool
	conns    []*Connection

	closeOnce sync.Once
	closeErr  error
}

// New builds a Server bound to ip:port once Run is called, serving images
// from cat. Options override the defaults (4 workers, 64 client slots, a
// frame queue of capacity 1 per worker, no tolerance, 1024-byte max request).
func New(ip, port string, cat catalog.Provider, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := log15.New()
	if o.logger != nil {
		logger = toLog15(o.logger)
	} else {
		logger.SetHandler(log15.DiscardHandler())
	}

	return &Server{
		ip:                 ip,
		port:               port,
		workers:            o.workers,
		maxClients:         o.maxClients,
		frameQueueCapacity: o.frameQueueCapacity,
		frameTolerance:     o.frameTolerance,
		requestMaxBytes:    o.requestMaxBytes,
		log:                logger,
		catalog:            cat,
	}
}

// Run binds the listener, starts the reactor pool, and pre-creates every
// connection slot with its initial accept already issued. It returns once
// the listener is accepting and the workers are running; it does not block
// for the server's lifetime.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.ip, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return StartupError{Inner: err, Context: StartupContext{Addr: addr, Op: "listen"}}
	}
	s.listener = ln

	s.pool = reactor.New(s.workers, s.frameQueueCapacity, s.frameTolerance)
	s.pool.Start()

	s.conns = make([]*Connection, s.maxClients)
	for i := range s.conns {
		c := newConnection(i, s)
		s.conns[i] = c
		c.issueAccept()
	}

	s.log.Info("server running", "addr", addr, "workers", s.workers, "max_clients", s.maxClients)

	if ctx != nil {
		go func() {
			<-ctx.Done()
			_ = s.Close()
		}()
	}

	return nil
}

// Addr returns the address the server is listening on. Only valid after Run
// has returned successfully.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Publish fans frame out to every worker's queue, displacing whatever frame
// that worker had cached. It never blocks and is safe to call from any
// goroutine, but only one goroutine should ever call it (see LatestQueue's
// single-producer contract).
func (s *Server) Publish(frame []byte) {
	if s.pool == nil {
		return
	}
	s.pool.Publish(frame)
}

// Close shuts down the server in the order required for a clean stop: post
// one shutdown completion per worker and join them, close the listener so
// no further accepts complete, then close whatever socket each connection
// slot still held open. Close is idempotent.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.pool != nil {
			s.pool.Shutdown()
		}
		if s.listener != nil {
			s.closeErr = s.listener.Close()
		}
		for _, c := range s.conns {
			c.closeNetConn()
		}
		s.log.Info("server closed")
	})
	return s.closeErr
}
