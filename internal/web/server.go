// Package web serves the browser admin interface: a server-rendered table
// with create, inline edit and delete forms.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Service is what the handlers need from whitelist.Service.
type Service interface {
	List(ctx context.Context) ([]models.Record, error)
	Find(ctx context.Context, id models.RecordID) (models.Record, error)
	Create(ctx context.Context, d models.Draft) (*models.Record, error)
	Update(ctx context.Context, id models.RecordID, e models.Edit) (*models.Record, error)
	Delete(ctx context.Context, id models.RecordID, ip string) error
}

type Config struct {
	// APIURL is shown in the page header.
	APIURL       string
	PollInterval time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	svc       Service
	cfg       Config
	templates *template.Template
}

func New(svc Service, cfg Config) (*Server, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Server{svc: svc, cfg: cfg, templates: tmpl}, nil
}

// Handler returns the routed handler with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/", s.handleIndex)
	r.Get("/table", s.handleTable)
	r.Get("/healthz", s.handleHealth)
	r.Post("/records", s.handleCreate)
	r.Route("/records/{id}", func(r chi.Router) {
		r.Get("/edit", s.handleEdit)
		r.Post("/", s.handleUpdate)
		r.Post("/delete", s.handleDelete)
	})
	return r
}

// Serve runs the server on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Admin server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownGrace)
		defer cancel()
		logger.Info("Shutting down admin server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.With("component", "web").Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
