// Package server implements the HTTP server that exposes the document
// assistant via a JSON/SSE API: uploads, document-grounded chat, SVG
// generation, OCR and code/documentation search.
// The server is started by the `docai serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docai-go/internal/assistant"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/version"
)

// defaultMaxUploadBytes caps multipart bodies when no limit is configured.
const defaultMaxUploadBytes = 25 << 20

// New constructs a Server from the provided services and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Chat == nil {
		return nil, fmt.Errorf("server: chat service must not be nil")
	}
	if deps.Ingest == nil {
		return nil, fmt.Errorf("server: ingestion pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("server: create upload dir %s: %w", cfg.UploadDir, err)
	}

	s := &Server{
		chat:    deps.Chat,
		ingest:  deps.Ingest,
		ocr:     deps.OCR,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		log.Warn("auth: DOCAI_API_KEY not set, API routes are unauthenticated")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stop

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.routes(rl),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s, nil
}

// routes builds the request mux. Model-backed routes are authenticated and
// rate limited; health, readiness, metrics and static SVGs are open.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	mux := http.NewServeMux()

	api := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(s.cfg.APIKey, rl.middleware(h)))
	}

	mux.Handle("POST /upload", api("upload", s.handleUpload))
	mux.Handle("POST /generate", api("generate", s.handleGenerate))
	mux.Handle("POST /generate/stream", api("generate_stream", s.handleGenerateStream))
	mux.Handle("DELETE /clear-chat/{conversationId}", s.instrument("clear_chat", authMiddleware(s.cfg.APIKey, http.HandlerFunc(s.handleClearChat))))
	mux.Handle("POST /generate-svg", api("generate_svg", s.handleGenerateSVG))
	mux.Handle("POST /process-image", api("process_image", s.handleProcessImage))
	mux.Handle("POST /search-code", api("search_code", s.handleSearchCode))
	mux.Handle("POST /search-docs", api("search_docs", s.handleSearchDocs))

	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	if s.cfg.SVGDir != "" {
		mux.Handle("GET "+assistant.SVGURLPrefix, http.StripPrefix(assistant.SVGURLPrefix, http.FileServer(http.Dir(s.cfg.SVGDir))))
	}

	return requestLogger(s.log, corsMiddleware(s.cfg.CORSOrigin, mux))
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("docai server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("docai server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
}

// requestContext bounds a model-backed request by cfg.RequestTimeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// writeJSON encodes v as the response body with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeJSONError writes {"error": msg, "details": details}.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg, details string) {
	writeJSON(w, r, status, errorResponse{Error: msg, Details: details})
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// Write formats p as one SSE event and flushes to the client. Every line of
// p becomes its own "data: " field, so a client joining the fields with "\n"
// recovers p exactly, trailing newlines included.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	lines := strings.Split(string(p), "\n")
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err = fmt.Fprint(s.w, buf.String()); err != nil {
		return 0, err
	}
	s.flusher.Flush()
	return len(p), nil
}

// event writes a named SSE event.
func (s *sseWriter) event(name, data string) {
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, strings.ReplaceAll(data, "\n", " "))
	s.flusher.Flush()
}
