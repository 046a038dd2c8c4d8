package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/direqt/direqt-go/internal/platform/middleware"
	"github.com/direqt/direqt-go/pkg/webhook"
)

const defaultWebhookPath = "/webhook"

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	// Verifier checks every webhook delivery before BotHandler sees it.
	Verifier   *webhook.Verifier
	BotHandler http.Handler
	// WebhookPath defaults to /webhook.
	WebhookPath  string
	MaxBodyBytes int64
	// StaticDir, when set, is served under /static/.
	StaticDir string
	Logger    *slog.Logger
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

func New(addr string, deps Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	if deps.Verifier != nil && deps.BotHandler != nil {
		path := deps.WebhookPath
		if path == "" {
			path = defaultWebhookPath
		}

		var verifyOpts []webhook.MiddlewareOption
		if deps.Logger != nil {
			verifyOpts = append(verifyOpts, webhook.WithLogger(deps.Logger))
		}
		if deps.MaxBodyBytes > 0 {
			verifyOpts = append(verifyOpts, webhook.WithMaxBodyBytes(deps.MaxBodyBytes))
		}

		mux.Handle("POST "+path,
			webhook.CaptureRawBody(deps.MaxBodyBytes)(
				webhook.Middleware(deps.Verifier, verifyOpts...)(deps.BotHandler),
			),
		)
	}

	if deps.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(deps.StaticDir))))
	}

	// Wrap mux with observability middleware
	var handler http.Handler = mux
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
