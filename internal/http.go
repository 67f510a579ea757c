package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-Id"

// BlameResolver is what the HTTP boundary needs from the engine.
type BlameResolver interface {
	Execute(ctx context.Context, input CalculateBlameInput) (*CalculateBlameOutput, error)
}

type BlameRequest struct {
	RepoID   string `json:"repo_id"`
	Commit   string `json:"commit"`
	FilePath string `json:"file_path"`
}

type BlameResponse struct {
	CacheHit bool        `json:"cache_hit"`
	Lines    []BlameLine `json:"lines"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type Server struct {
	resolver BlameResolver
	gatherer prometheus.Gatherer
	log      *logrus.Logger
	timeout  time.Duration
}

// NewServer exposes resolver over HTTP. gatherer may be nil, in which case
// /metrics is not served.
func NewServer(resolver BlameResolver, gatherer prometheus.Gatherer, log *logrus.Logger, timeout time.Duration) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{resolver: resolver, gatherer: gatherer, log: log, timeout: timeout}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/api/v1/blame", s.handleBlame)

	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) handleBlame(w http.ResponseWriter, r *http.Request) {
	id := requestIDFrom(r.Context())
	log := s.log.WithField("request_id", id)

	var req BlameRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body", RequestID: id})
		return
	}
	if req.RepoID == "" || req.Commit == "" || req.FilePath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "repo_id, commit and file_path are required", RequestID: id})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.resolver.Execute(ctx, CalculateBlameInput{
		RepoID:   req.RepoID,
		Commit:   req.Commit,
		FilePath: req.FilePath,
	})
	if err != nil {
		log.WithFields(logrus.Fields{
			"repo_id": req.RepoID,
			"commit":  req.Commit,
			"path":    req.FilePath,
			"kind":    ErrorKind(err),
		}).WithError(err).Error("blame failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", RequestID: id})
		return
	}

	lines := out.Lines
	if lines == nil {
		lines = []BlameLine{}
	}
	writeJSON(w, http.StatusOK, BlameResponse{CacheHit: out.CacheHit, Lines: lines})
}

type requestIDKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"request_id": requestIDFrom(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start),
		}).Info("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
