package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"moodreel/internal/analysis"
	"moodreel/internal/logging"
	"moodreel/internal/services"
	"moodreel/internal/staging"
)

//go:embed index.html
var indexHTML []byte

// multipartOverhead is the allowance for multipart headers on top of the
// configured upload cap.
const multipartOverhead = 1 << 20

// HealthFunc produces the body of GET /api/health.
type HealthFunc func(ctx context.Context) HealthResponse

// ServerOptions configure the HTTP surface.
type ServerOptions struct {
	Bind           string
	MaxUploadBytes int64
}

// Server exposes the analysis workflow over HTTP.
type Server struct {
	opts   ServerOptions
	svc    *AnalysisService
	health HealthFunc
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer builds the HTTP server. health may be nil.
func NewServer(opts ServerOptions, svc *AnalysisService, health HealthFunc, logger *slog.Logger) *Server {
	s := &Server{
		opts:   opts,
		svc:    svc,
		health: health,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}
	// Analyses run for minutes, so only the header read is bounded.
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return services.Wrap(services.ErrConfiguration, "server", "listen", "paths.api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.svc == nil {
		s.writeError(w, http.StatusServiceUnavailable, "analysis service unavailable")
		return
	}
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, `missing form field "video"`)
			return
		}
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		if part.FormName() != "video" {
			_ = part.Close()
			continue
		}

		name := part.FileName()
		if strings.TrimSpace(name) == "" {
			s.writeError(w, http.StatusBadRequest, `form field "video" must be a file`)
			return
		}
		if err := s.svc.Accept(name); err != nil {
			s.writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}

		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := services.WithRequestID(r.Context(), requestID)

		logging.WithContext(ctx, s.logger).Info("analysis requested",
			logging.String("file", name),
			logging.String("remote", r.RemoteAddr),
		)
		result, err := s.svc.AnalyzeUpload(ctx, part, name)
		if result == nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		s.writeJSON(w, statusForResult(result), FromResult(result, name))
		return
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := HealthResponse{Status: "ok", Checks: []CheckStatus{}}
	if s.health != nil {
		resp = s.health(r.Context())
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func statusForResult(result *analysis.Result) int {
	switch {
	case result.Outcome() != analysis.OutcomeFailed:
		return http.StatusOK
	case result.SourceUnavailable():
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func statusForError(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, staging.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, staging.ErrUnsupportedExtension):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, staging.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
