package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/peekknuf/datatrust/internal/loader"
	"github.com/peekknuf/datatrust/internal/verify"
)

const (
	DefaultAddr = ":5000"

	defaultMaxUpload = 64 << 20
	shutdownTimeout  = 10 * time.Second
)

// Server exposes the verifier over HTTP.
type Server struct {
	verifier  *verify.Verifier
	metrics   *Metrics
	logger    *slog.Logger
	maxUpload int64
}

func New(v *verify.Verifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		verifier:  v,
		metrics:   NewMetrics(),
		logger:    logger.WithGroup("server"),
		maxUpload: defaultMaxUpload,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/verify", s.handleVerify)
	})
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.fail(w, r, http.StatusBadRequest, "No selected file")
		return
	}
	if !loader.Supported(filepath.Ext(header.Filename)) {
		s.fail(w, r, http.StatusBadRequest, "Unsupported file format")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	res, err := loader.Read(r.Context(), header.Filename, file)
	if err != nil {
		s.metrics.observe(outcomeError, started, 0)
		status := http.StatusInternalServerError
		if errors.Is(err, loader.ErrUnsupportedFormat) {
			status = http.StatusBadRequest
		}
		s.fail(w, r, status, err.Error())
		return
	}

	report, err := s.verifier.Verify(r.Context(), res.Dataset, name)
	if err != nil {
		s.metrics.observe(outcomeError, started, 0)
		s.fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	outcome := outcomeRejected
	if report.IsVerified {
		outcome = outcomeVerified
	}
	s.metrics.observe(outcome, started, report.QualityScore)

	render.JSON(w, r, newVerifyResponse(report, datasetCID(res.FileHash)))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.logger.Warn("request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"error", msg)
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// datasetCID derives a mock content identifier from the file fingerprint.
func datasetCID(fileHash string) string {
	hex := strings.TrimPrefix(fileHash, "0x")
	return "ipfs://" + hex[:min(16, len(hex))]
}
