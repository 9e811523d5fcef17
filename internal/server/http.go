package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HTTPOptions configures an HTTPService.
type HTTPOptions struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// HTTPService serves an http.Handler as a lifecycle Service.
type HTTPService struct {
	srv      *http.Server
	opts     HTTPOptions
	logger   *zap.Logger
	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewHTTPService returns a service listening on addr.
//
// Precondition: handler and logger must be non-nil.
func NewHTTPService(addr string, handler http.Handler, opts HTTPOptions, logger *zap.Logger) *HTTPService {
	return &HTTPService{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		opts:   opts,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Start listens and serves until Stop. A clean shutdown returns nil.
func (h *HTTPService) Start() error {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()
	close(h.ready)

	h.logger.Info("http listening", zap.String("addr", ln.Addr().String()))
	if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr blocks until the service is listening and returns the bound address.
func (h *HTTPService) Addr(ctx context.Context) (string, error) {
	select {
	case <-h.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listener.Addr().String(), nil
}

// Stop drains in-flight requests for up to ShutdownTimeout, then closes.
func (h *HTTPService) Stop() {
	timeout := h.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("http shutdown incomplete", zap.Error(err))
		_ = h.srv.Close()
	}
}
