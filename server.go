// Package darkhttpd is a single-process, single-threaded HTTP/1.1
// server for a static file tree. Package-level documentation for each
// concern lives with its implementation under internal/; Server is the
// single value that owns all of it for the lifetime of one process, in
// place of the original's process-wide globals.
package darkhttpd

import (
	"fmt"

	"github.com/tieugene/darkhttpd/internal/accesslog"
	"github.com/tieugene/darkhttpd/internal/config"
	"github.com/tieugene/darkhttpd/internal/eventloop"
	"github.com/tieugene/darkhttpd/internal/mimemap"
)

// Server owns every resource the running server needs: the listening
// socket (via its Dispatcher), the MIME table, and the access log.
// Construct with New, run with Run, and release everything with Close.
type Server struct {
	cfg        config.Config
	mime       *mimemap.Map
	log        *accesslog.Logger
	dispatcher *eventloop.Dispatcher
}

// New builds and binds a Server from cfg: it loads the MIME table,
// opens (or discards) the access log, and constructs the listening
// socket with cfg.MaxConn as its backlog. Any failure here is fatal per
// SPEC_FULL.md's error-handling policy — the caller should report it to
// standard error and exit non-zero.
func New(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mime := mimemap.New()
	if cfg.MimeTypesPath != "" {
		if err := mime.LoadFile(cfg.MimeTypesPath); err != nil {
			return nil, err
		}
	}

	var log *accesslog.Logger
	if cfg.LogPath != "" {
		l, err := accesslog.Open(cfg.LogPath)
		if err != nil {
			return nil, err
		}
		log = l
	} else {
		log = accesslog.Discard()
	}

	listenFd, err := eventloop.Listen(cfg.Addr, cfg.Port, cfg.MaxConn)
	if err != nil {
		log.Close()
		return nil, err
	}

	dispatcher, err := eventloop.New(listenFd, cfg.Root, cfg.IndexName, mime, log)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("darkhttpd: %w", err)
	}

	return &Server{cfg: cfg, mime: mime, log: log, dispatcher: dispatcher}, nil
}

// Run drives the dispatcher until stop is closed (see
// eventloop.Dispatcher.Run for when a closed stop is noticed). It only
// returns on a fatal readiness-primitive failure or a clean stop;
// per-request and per-connection errors never propagate here.
func (s *Server) Run(stop <-chan struct{}) error {
	return s.dispatcher.Run(stop)
}

// Addr reports the configured bind address and port, for logging at
// startup.
func (s *Server) Addr() string {
	addr := s.cfg.Addr
	if addr == "" {
		addr = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", addr, s.cfg.Port)
}

// ListenAddr reports the actual address the listening socket is bound
// to, which differs from Addr when the configured port is 0 (bind to
// an ephemeral port).
func (s *Server) ListenAddr() (string, error) {
	return s.dispatcher.Addr()
}

// Close releases the listening socket, every live connection, and the
// access log.
func (s *Server) Close() error {
	err := s.dispatcher.Close()
	if lerr := s.log.Close(); err == nil {
		err = lerr
	}
	return err
}
