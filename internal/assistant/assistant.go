// Package assistant implements the chat operations behind the HTTP API:
// document-grounded generation (blocking and streamed), SVG generation,
// code and documentation search, OCR text refinement and conversation
// clearing. Retrieval and storage are injected; the completion model is
// reached through provider.Completer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docai-go/internal/budget"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/provider"
	"github.com/54b3r/docai-go/internal/rag"
	"github.com/54b3r/docai-go/internal/store"
)

// ErrEmptyPrompt is returned when a request carries no prompt or query.
var ErrEmptyPrompt = errors.New("prompt is required")

// Retriever produces document context for a prompt. *rag.Retriever
// satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, prompt, documentID string) rag.Retrieved
}

// Config holds the dependencies required to construct an Assistant.
type Config struct {
	// Completer is the completion model router. Required.
	Completer provider.Completer

	// Retriever supplies document context. May be nil, in which case
	// document IDs on requests are ignored.
	Retriever Retriever

	// History stores conversations. Required.
	History store.ConversationStore

	// MaxContextTokens is the estimated token budget for the full input
	// context. History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// SVGDir is where generated SVGs are written. Required for GenerateSVG.
	SVGDir string
}

// Assistant serves the chat operations. It is safe for concurrent use.
type Assistant struct {
	// completer sends messages to the tier's model.
	completer provider.Completer

	// retriever is the optional document context source.
	retriever Retriever

	// history is the conversation store.
	history store.ConversationStore

	// maxContextTokens is the estimated token budget for the full input context.
	maxContextTokens int

	// svgDir is the output directory for GenerateSVG.
	svgDir string
}

// New constructs an Assistant from the provided Config.
func New(cfg *Config) (*Assistant, error) {
	if cfg == nil || cfg.Completer == nil {
		return nil, fmt.Errorf("assistant: Completer must not be nil")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("assistant: History must not be nil")
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	return &Assistant{
		completer:        cfg.Completer,
		retriever:        cfg.Retriever,
		history:          cfg.History,
		maxContextTokens: maxCtx,
		svgDir:           cfg.SVGDir,
	}, nil
}

// GenerateRequest is one chat turn.
type GenerateRequest struct {
	// Prompt is the user's message. Required.
	Prompt string

	// DocumentID attaches an uploaded document as context. Optional.
	DocumentID string

	// ConversationID keys the history. Empty makes the turn stateless.
	ConversationID string

	// DeepThink routes the turn to the reasoning model.
	DeepThink bool
}

// tier picks the model tier for the request.
func (r GenerateRequest) tier() provider.Tier {
	switch {
	case r.DeepThink:
		return provider.TierReasoning
	case r.DocumentID != "":
		return provider.TierDocument
	default:
		return provider.TierDefault
	}
}

// Turn is the outcome of a chat turn.
type Turn struct {
	// Response is the assistant's reply.
	Response string

	// Context describes the document context that was injected.
	Context rag.Retrieved
}

// Generate answers one chat turn and records it in the conversation history.
//
// Messages sent are: the document context as a system message (when any),
// the conversation so far trimmed to the token budget, then the formatted
// prompt. The raw prompt and the reply are appended to history only after
// the model answers.
func (a *Assistant) Generate(ctx context.Context, req GenerateRequest) (Turn, error) {
	msgs, retrieved, err := a.buildMessages(ctx, req)
	if err != nil {
		return Turn{}, err
	}

	reply, err := a.completer.Complete(ctx, req.tier(), msgs)
	if err != nil {
		return Turn{}, fmt.Errorf("assistant: generate: %w", err)
	}

	response := reply.Content
	a.remember(ctx, req, response)
	return Turn{Response: response, Context: retrieved}, nil
}

// Stream is Generate with the reply written to w as it arrives. The full
// reply is returned and recorded once the stream ends. A stream error after
// partial output is returned and nothing is recorded.
func (a *Assistant) Stream(ctx context.Context, req GenerateRequest, w io.Writer) (Turn, error) {
	msgs, retrieved, err := a.buildMessages(ctx, req)
	if err != nil {
		return Turn{}, err
	}

	sr, err := a.completer.Stream(ctx, req.tier(), msgs)
	if err != nil {
		return Turn{}, fmt.Errorf("assistant: stream: %w", err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Turn{}, fmt.Errorf("assistant: stream receive: %w", rag.Unavailable("provider", err))
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return Turn{}, fmt.Errorf("assistant: stream write: %w", err)
		}
	}

	response := buf.String()
	a.remember(ctx, req, response)
	return Turn{Response: response, Context: retrieved}, nil
}

// ClearConversation deletes the history of conversationID. Clearing an
// unknown conversation succeeds.
func (a *Assistant) ClearConversation(ctx context.Context, conversationID string) error {
	if err := a.history.Clear(ctx, conversationID); err != nil {
		return fmt.Errorf("assistant: clear %s: %w", conversationID, err)
	}
	return nil
}

// buildMessages assembles [context?, ...history, prompt] for req.
func (a *Assistant) buildMessages(ctx context.Context, req GenerateRequest) ([]*schema.Message, rag.Retrieved, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, rag.Retrieved{}, ErrEmptyPrompt
	}

	retrieved := rag.Retrieved{Source: rag.SourceNone, Outcome: rag.OutcomeNoDocumentRequest}
	if req.DocumentID != "" && a.retriever != nil {
		retrieved = a.retriever.Retrieve(ctx, req.Prompt, req.DocumentID)
	}

	var fixed []*schema.Message
	switch retrieved.Source {
	case rag.SourceChunks:
		fixed = append(fixed, schema.SystemMessage(chunkContextPrompt(retrieved.DocumentName, retrieved.Text)))
	case rag.SourceFullText:
		fixed = append(fixed, schema.SystemMessage(fullTextContextPrompt(retrieved.Text)))
	}
	user := schema.UserMessage(chatPrompt(req.Prompt))

	var historyMsgs []*schema.Message
	if req.ConversationID != "" {
		prior, err := a.history.History(ctx, req.ConversationID, 0)
		if err != nil {
			log.Warn("history: failed to load prior messages", slog.String("conversation_id", req.ConversationID), slog.Any("error", err))
		}
		for _, m := range prior {
			switch m.Role {
			case store.RoleUser:
				historyMsgs = append(historyMsgs, schema.UserMessage(m.Content))
			case store.RoleAssistant:
				historyMsgs = append(historyMsgs, schema.AssistantMessage(m.Content, nil))
			}
		}
	}

	budgeted := append(append([]*schema.Message{}, fixed...), user)
	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(budgeted, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}
	if over := budget.Overflow(budgeted, a.maxContextTokens); over > 0 {
		log.Warn("budget: document context and prompt exceed context window",
			slog.Int("over_tokens", over),
			slog.String("context_source", string(retrieved.Source)),
		)
	}

	msgs := make([]*schema.Message, 0, len(fixed)+len(historyMsgs)+1)
	msgs = append(msgs, fixed...)
	msgs = append(msgs, historyMsgs...)
	msgs = append(msgs, user)
	return msgs, retrieved, nil
}

// remember appends the turn to history. Failures are logged, not returned:
// the caller already has the reply.
func (a *Assistant) remember(ctx context.Context, req GenerateRequest, response string) {
	if req.ConversationID == "" {
		return
	}
	log := logging.FromContext(ctx).With(slog.String("conversation_id", req.ConversationID))
	if err := a.history.Append(ctx, req.ConversationID, store.RoleUser, req.Prompt); err != nil {
		log.Warn("history: failed to persist user message", slog.Any("error", err))
		return
	}
	if err := a.history.Append(ctx, req.ConversationID, store.RoleAssistant, response); err != nil {
		log.Warn("history: failed to persist assistant message", slog.Any("error", err))
	}
}

// complete runs a single-message prompt against tier and returns the reply text.
func (a *Assistant) complete(ctx context.Context, tier provider.Tier, prompt string, opts ...model.Option) (string, error) {
	reply, err := a.completer.Complete(ctx, tier, []*schema.Message{schema.UserMessage(prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}
