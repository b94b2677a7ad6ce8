package infra

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type HTTPServer struct {
	srv     *http.Server
	drain   time.Duration
	started chan net.Addr
}

// NewHTTPServer applies the configured timeouts. net/http's own error log
// (TLS handshake failures, panics in handlers) is routed into logger.
func NewHTTPServer(cfg *Config, handler http.Handler, logger zerolog.Logger) *HTTPServer {
	drain := cfg.ShutdownTimeout
	if drain <= 0 {
		drain = 15 * time.Second
	}
	return &HTTPServer{
		srv: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
			MaxHeaderBytes:    1 << 20,
			ErrorLog:          log.New(Component(logger, "http").Level(zerolog.WarnLevel), "", 0),
		},
		drain:   drain,
		started: make(chan net.Addr, 1),
	}
}

// Started yields the bound address once Run is listening. With PORT=0 this
// is how callers learn the real port.
func (s *HTTPServer) Started() <-chan net.Addr { return s.started }

// Run serves until ctx is cancelled, then waits up to the drain timeout for
// in-flight requests. A clean shutdown returns nil.
func (s *HTTPServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.started <- ln.Addr()

	served := make(chan error, 1)
	go func() { served <- s.srv.Serve(ln) }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drain)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
