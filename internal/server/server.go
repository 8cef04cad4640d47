package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/TenderRAG/internal/adapter/utils"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/middleware"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// Server owns the listener and the order in which things stop behind it.
type Server struct {
	httpServer *http.Server
	logger     *logger_i.Logger
}

// NewHandler mounts every route. /health, /metrics and swagger are public, the rest require a bearer token.
func NewHandler() http.Handler {
	r := utils.NewRouter()
	r.Get("/health", middleware.GetHandler)
	r.Get("/status/{id}", middleware.GetStatusHandler)
	r.Route("/kb/{kbId}", func(kb chi.Router) {
		kb.Post("/ask", middleware.AskHandler)
		kb.Post("/search", middleware.SearchHandler)
		kb.Get("/summary", middleware.SummaryHandler)
		kb.Post("/documents", middleware.PostDocumentHandler)
		kb.Post("/build", middleware.PostBuildHandler)
	})
	return r
}

func New(listenAddr string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         listenAddr,
			Handler:      NewHandler(),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		logger: logger_i.NewLogger("Server").With("addr", listenAddr),
	}
}

// Serve blocks until the listener fails or Shutdown closes it.
func (s *Server) Serve() {
	s.logger.Info("Server is listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Server crashed", "error", err)
	}
}

// AwaitShutdown waits for a signal, then stops in order: http, workers, external services.
// A build still running when the budget runs out is abandoned and the process exits 1.
func (s *Server) AwaitShutdown(p ShutdownParams) {
	state := <-p.GracefulShutdown
	s.logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.httpServer.SetKeepAlivesEnabled(false)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Could not drain http connections", "error", err)
		}

		close(p.WorkerStop)
		p.Group.Wait()
		p.CloseServices()
		close(p.StopExecution)
	}()

	select {
	case <-done:
		s.logger.Info("Shut down gracefully")
	case <-ctx.Done():
		s.logger.Warn("Shutdown budget exceeded, abandoning running builds")
		os.Exit(1)
	}
}
