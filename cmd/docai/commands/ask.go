package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docai-go/internal/assistant"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/provider"
)

// NewAskCmd constructs the `docai ask` command, which sends a single question
// to the assistant and streams the response to stdout.
func NewAskCmd() *cobra.Command {
	var documentID string
	var deepThink bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question, optionally about an ingested document",
		Long: `Ask the assistant a question and stream the answer to stdout.

With --doc the question is answered from the chunks of that document most
relevant to it, or from its full text when retrieval yields nothing. The turn
is not recorded in any conversation history.

Examples:
  docai ask "what is a vector index?"
  docai ask --doc 1700000000123-1a2b3c4d-handbook.pdf "what is the leave policy?"
  docai ask --deep-think "compare B-trees and LSM trees"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			router, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			state, err := openState(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = state.Close() }()

			cfg := &assistant.Config{
				Completer:        router,
				History:          state,
				MaxContextTokens: getEnvInt("MAX_CONTEXT_TOKENS", 0),
			}
			if documentID != "" {
				backend, ragErr := buildRAG(ctx, log)
				backend, ragErr = degradeRAG(log, backend, ragErr)
				if ragErr != nil {
					return fmt.Errorf("ask: %w", ragErr)
				}
				defer backend.Close()
				retriever, rErr := newRetriever(backend, state)
				if rErr != nil {
					return fmt.Errorf("ask: %w", rErr)
				}
				cfg.Retriever = retriever
			}

			asst, err := assistant.New(cfg)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise assistant: %w", err)
			}

			out := cmd.OutOrStdout()
			_, err = asst.Stream(ctx, assistant.GenerateRequest{
				Prompt:     strings.Join(args, " "),
				DocumentID: documentID,
				DeepThink:  deepThink,
			}, out)
			fmt.Fprintln(out)
			return err //nolint:wrapcheck // CLI entry point, error goes directly to cobra
		},
	}

	cmd.Flags().StringVarP(&documentID, "doc", "d", "", "Document ID to answer from (as printed by 'docai ingest')")
	cmd.Flags().BoolVar(&deepThink, "deep-think", false, "Route the question to the reasoning model")

	return cmd
}
