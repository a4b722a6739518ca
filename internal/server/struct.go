package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docai-go/internal/assistant"
	"github.com/54b3r/docai-go/internal/ingestion"
	"github.com/54b3r/docai-go/internal/ocr"
	"github.com/54b3r/docai-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 3000).
	Port int
	// ReadTimeout is the maximum duration for reading the request, uploads included.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// RequestTimeout bounds the work behind each model-backed request
	// (generate, search, svg, ocr, upload). Defaults to 5 minutes.
	RequestTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency checks run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all API routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// UploadDir holds temporary upload files (default: os.TempDir()).
	UploadDir string
	// SVGDir is served at /uploads/svgs/. Empty disables the route.
	SVGDir string
	// MaxUploadBytes caps multipart request bodies (default: 25 MiB).
	MaxUploadBytes int64
	// CORSOrigin is sent as Access-Control-Allow-Origin (default: "*").
	CORSOrigin string
	// MetricsRegistry receives the server's metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// chatService is the assistant surface the handlers call.
// *assistant.Assistant satisfies it; tests inject a fake.
type chatService interface {
	Generate(ctx context.Context, req assistant.GenerateRequest) (assistant.Turn, error)
	Stream(ctx context.Context, req assistant.GenerateRequest, w io.Writer) (assistant.Turn, error)
	ClearConversation(ctx context.Context, conversationID string) error
	GenerateSVG(ctx context.Context, prompt string) (assistant.SVG, error)
	SearchCode(ctx context.Context, language, query string, deepThink bool) (string, error)
	SearchDocs(ctx context.Context, query string, deepThink bool) (string, error)
}

// ingester indexes an uploaded document. *ingestion.Pipeline satisfies it.
type ingester interface {
	Ingest(ctx context.Context, doc rag.Document) (ingestion.Result, error)
}

// imageProcessor runs OCR on an image. *ocr.Service satisfies it.
type imageProcessor interface {
	Process(ctx context.Context, imagePath string) (ocr.Result, error)
}

// Deps holds the services the server routes requests to.
type Deps struct {
	// Chat serves generate, stream, clear, svg and search. Required.
	Chat chatService
	// Ingest serves /upload. Required.
	Ingest ingester
	// OCR serves /process-image. Nil makes the route answer 503.
	OCR imageProcessor
}

// Server is the HTTP server that exposes the assistant.
type Server struct {
	// chat is the assistant used by the chat, svg and search handlers.
	chat chatService
	// ingest is the ingestion pipeline used by /upload.
	ingest ingester
	// ocr is the optional image processor used by /process-image.
	ocr imageProcessor
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency checks for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// generateRequest is the JSON body for POST /generate and /generate/stream.
type generateRequest struct {
	// Prompt is the user's message.
	Prompt string `json:"prompt"`
	// DocumentID attaches an uploaded document as context.
	DocumentID string `json:"documentId,omitempty"`
	// ConversationID keys the chat history.
	ConversationID string `json:"conversationId,omitempty"`
	// DeepThink routes the turn to the reasoning model.
	DeepThink bool `json:"deepThink,omitempty"`
}

// generateResponse is the JSON response for POST /generate.
type generateResponse struct {
	Response string `json:"response"`
}

// uploadResponse is the JSON response for POST /upload.
type uploadResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
	// ChunksProcessed counts chunks attempted, including skipped ones.
	ChunksProcessed int `json:"chunksProcessed"`
	// ChunksIndexed counts chunks that reached the vector index.
	ChunksIndexed int `json:"chunksIndexed"`
}

// svgRequest is the JSON body for POST /generate-svg.
type svgRequest struct {
	Prompt string `json:"prompt"`
}

// svgResponse is the JSON response for POST /generate-svg.
type svgResponse struct {
	SVG      string `json:"svg"`
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	Message  string `json:"message"`
}

// imageResponse is the JSON response for POST /process-image.
type imageResponse struct {
	Success       bool   `json:"success"`
	ExtractedText string `json:"extractedText,omitempty"`
	RefinedText   string `json:"refinedText,omitempty"`
	Error         string `json:"error,omitempty"`
	Details       string `json:"details,omitempty"`
}

// codeSearchRequest is the JSON body for POST /search-code.
type codeSearchRequest struct {
	Language  string `json:"language"`
	Query     string `json:"query"`
	DeepThink bool   `json:"deepThink,omitempty"`
}

// docSearchRequest is the JSON body for POST /search-docs.
type docSearchRequest struct {
	Query     string `json:"query"`
	DeepThink bool   `json:"deepThink,omitempty"`
}

// messageResponse is a bare {message} body.
type messageResponse struct {
	Message string `json:"message"`
}

// errorResponse is the JSON error body. Details and Raw are optional.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Raw     string `json:"raw,omitempty"`
}
