// Package server exposes a compiler context over HTTP.
//
// Routes:
//
//	GET  /healthz      liveness
//	POST /v1/compile   JSON {identity, stage, source} -> SPIR-V
//	POST /v1/inspect   SPIR-V body -> JSON module summary
//
// Compile answers with the raw binary (application/octet-stream) unless
// the request accepts application/json, in which case the binary is
// base64 encoded in a JSON document. Includes resolve on the server's
// file system relative to the request identity.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/spirvc"
	"github.com/gogpu/spirvc/internal/spvinfo"
)

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-Id"

const defaultMaxSource = 1 << 20

// Options configures a Server.
type Options struct {
	// MaxSourceBytes bounds shader sources and inspected binaries. Zero
	// means 1 MiB.
	MaxSourceBytes int64

	// Logger receives one line per request. Nil disables logging.
	Logger *zap.Logger
}

// Server serves compile requests against one compiler context.
type Server struct {
	compiler *spirvc.Compiler
	maxBytes int64
	logger   *zap.Logger
	router   chi.Router
}

// New returns a server for c.
func New(c *spirvc.Compiler, opts Options) *Server {
	s := &Server{
		compiler: c,
		maxBytes: opts.MaxSourceBytes,
		logger:   opts.Logger,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = defaultMaxSource
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(
		requestID,
		s.accessLog,
		middleware.Recoverer,
	)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/compile", s.handleCompile)
		r.Post("/inspect", s.handleInspect)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.router,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting compile server", zap.String("addr", ln.Addr().String()))

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down compile server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// CompileRequest is the body of POST /v1/compile.
type CompileRequest struct {
	Identity string `json:"identity"`
	Stage    string `json:"stage,omitempty"`
	Source   string `json:"source"`
}

// CompileResponse is the JSON form of a successful compile.
type CompileResponse struct {
	RequestID string `json:"request_id"`
	Identity  string `json:"identity"`
	Stage     string `json:"stage"`
	Size      int    `json:"size"`
	SPIRV     []byte `json:"spirv"`
}

// ErrorResponse is returned for every failure.
type ErrorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Status    string `json:"status,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	body := http.MaxBytesReader(w, r.Body, s.maxBytes+64<<10)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, err, "")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), "")
		return
	}
	if req.Identity == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("identity is required"), "")
		return
	}
	if int64(len(req.Source)) > s.maxBytes {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("source exceeds %d bytes", s.maxBytes), "")
		return
	}

	stage, err := requestStage(req)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err, "")
		return
	}

	res, err := s.compiler.Compile(req.Identity, req.Source, stage)
	if err != nil {
		var cerr *spirvc.CompileError
		switch {
		case errors.As(err, &cerr):
			s.writeError(w, r, http.StatusUnprocessableEntity, err, cerr.Status.String())
		case errors.Is(err, spirvc.ErrClosed):
			s.writeError(w, r, http.StatusServiceUnavailable, err, "")
		default:
			s.writeError(w, r, http.StatusInternalServerError, err, "")
		}
		return
	}
	defer func() { _ = res.Release() }()

	code, err := res.Bytes()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err, "")
		return
	}

	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, CompileResponse{
			RequestID: requestIDFrom(r.Context()),
			Identity:  req.Identity,
			Stage:     stage.String(),
			Size:      len(code),
			SPIRV:     code,
		})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(code)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(code)
}

func requestStage(req CompileRequest) (spirvc.Stage, error) {
	if req.Stage != "" {
		return spirvc.ParseStage(req.Stage)
	}
	return spirvc.StageFromPath(req.Identity)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, err, "")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, err, "")
		return
	}

	m, err := spvinfo.Parse(data)
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err, "")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func acceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, err error, status string) {
	id := requestIDFrom(r.Context())
	s.logger.Warn("request failed",
		zap.String("request_id", id),
		zap.String("path", r.URL.Path),
		zap.Int("code", code),
		zap.Error(err))
	writeJSON(w, code, ErrorResponse{RequestID: id, Error: err.Error(), Status: status})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type requestIDKey struct{}

// requestID assigns every request a UUID, honoring one sent by the
// client.
func requestID(next http.Handler) http.Handler {
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

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}
