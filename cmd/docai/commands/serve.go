package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/docai-go/internal/assistant"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/ocr"
	"github.com/54b3r/docai-go/internal/provider"
	"github.com/54b3r/docai-go/internal/server"
	"github.com/54b3r/docai-go/internal/tracing"
)

// NewServeCmd constructs the `docai serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docai HTTP server",
		Long: `Start the docai HTTP server.

The server exposes the JSON/SSE API used by the chat front end: document
upload and indexing, document-grounded chat, SVG generation, OCR and code or
documentation search. Health, readiness and Prometheus metrics are served on
/api/health, /api/ready and /metrics.

If the vector index cannot be reached at startup the server still starts and
answers document questions from the full document text.

Examples:
  docai serve
  docai serve --port 8080
  MODEL_PROVIDER=gemini VECTOR_BACKEND=pgvector docai serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			router, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised",
				slog.String("backend", string(router.Backend())),
				slog.String("model", router.ModelName(provider.TierDefault)),
				slog.String("svg_model", router.ModelName(provider.TierSVG)),
			)

			state, err := openState(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = state.Close() }()

			var pingers []server.Pinger
			if p, ok := state.(pinger); ok {
				pingers = append(pingers, server.NewDependencyPinger("sqlite", p.Ping))
			}

			backend, err := buildRAG(ctx, log)
			backend, err = degradeRAG(log, backend, err)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer backend.Close()
			if p := backend.pinger(); p != nil {
				pingers = append(pingers, p)
			}

			pipeline, err := newPipeline(backend, state)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			retriever, err := newRetriever(backend, state)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			uploadDir := getEnvOrDefault("DOCAI_UPLOAD_DIR", "uploads")
			svgDir := filepath.Join(uploadDir, "svgs")

			asst, err := assistant.New(&assistant.Config{
				Completer:        router,
				Retriever:        retriever,
				History:          state,
				MaxContextTokens: getEnvInt("MAX_CONTEXT_TOKENS", 0),
				SVGDir:           svgDir,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise assistant: %w", err)
			}

			deps := server.Deps{Chat: asst, Ingest: pipeline}
			if runner, runErr := ocr.NewExecRunner(getEnvOrDefault("TESSERACT_BIN", ocr.DefaultBinary)); runErr != nil {
				log.Warn("ocr: disabled, /process-image will answer 503", slog.Any("error", runErr))
			} else {
				svc, svcErr := ocr.NewService(runner, asst, os.Getenv("OCR_LANGUAGE"))
				if svcErr != nil {
					return fmt.Errorf("serve: %w", svcErr)
				}
				deps.OCR = svc
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("DOCAI_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("PORT", port)
			}

			srv, err := server.New(deps, &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        pingers,
				APIKey:         os.Getenv("DOCAI_API_KEY"),
				UploadDir:      uploadDir,
				SVGDir:         svgDir,
				MaxUploadBytes: int64(getEnvInt("DOCAI_MAX_UPLOAD_MB", 25)) << 20,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			if err := server.NewMultiPinger(pingers...).Ping(ctx); err != nil {
				log.Warn("startup dependency check failed", slog.Any("error", err))
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: DOCAI_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 3000, "TCP port to listen on (env: PORT)")

	return cmd
}
