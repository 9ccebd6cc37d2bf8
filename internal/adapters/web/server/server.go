package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/centerville/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/centerville/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/core/services/coordinator"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr string
	Hub  *websocket.Hub

	StatusHandler  *handlers.StatusHandler
	SensorHandler  *handlers.SensorHandler
	ReadingHandler *handlers.ReadingHandler
	ConfigHandler  *handlers.ConfigHandler
	PollHandler    *handlers.PollHandler

	srv *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, coord *coordinator.Coordinator, hub *websocket.Hub, storage ports.Storage) *Server {
	return &Server{
		Addr: addr,
		Hub:  hub,

		StatusHandler:  handlers.NewStatusHandler(coord, hub),
		SensorHandler:  handlers.NewSensorHandler(coord),
		ReadingHandler: handlers.NewReadingHandler(storage),
		ConfigHandler:  handlers.NewConfigHandler(storage, coord.Sessions()),
		PollHandler:    handlers.NewPollHandler(coord.Poller()),
	}
}

// Run starts the server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)

	// "centerville-server" is the name of the operation (span)
	instrumentedHandler := otelhttp.NewHandler(handler, "centerville-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown implementation
	go func() {
		<-ctx.Done()
		slog.Info("Web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Web server shutdown error", "error", err)
		}
	}()

	slog.Info("Web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
