package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// opsServer exposes the bridge's operational HTTP surface. Health probes
// only; the bridge's real work happens on the broker connection.
type opsServer struct {
	logger     zerolog.Logger
	httpPort   string
	httpServer *http.Server
	mux        *http.ServeMux
	actualAddr string
	mu         sync.RWMutex
}

func newOpsServer(logger zerolog.Logger, httpPort string) *opsServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)

	return &opsServer{
		logger:   logger,
		httpPort: httpPort,
		mux:      mux,
		httpServer: &http.Server{
			Addr:    httpPort,
			Handler: mux,
		},
	}
}

// start begins serving in a background goroutine.
func (s *opsServer) start() error {
	listener, err := net.Listen("tcp", s.httpPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.httpPort, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info().Str("address", s.actualAddr).Msg("Ops HTTP server listening.")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Ops HTTP server failed.")
		}
	}()
	return nil
}

func (s *opsServer) shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during ops HTTP server shutdown.")
		return err
	}
	return nil
}

// addr returns the address the server is actually listening on, which
// differs from the configured port when ":0" is used.
func (s *opsServer) addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actualAddr
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
