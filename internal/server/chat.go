package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docai-go/internal/assistant"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/rag"
)

// handleGenerate handles POST /generate and answers with the full reply.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, r, http.StatusBadRequest, "Prompt is required", "")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	turn, err := s.chat.Generate(ctx, req.toAssistant())
	s.observeTurn("sync", start, turn, err)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyPrompt) {
			writeJSONError(w, r, http.StatusBadRequest, "Prompt is required", "")
			return
		}
		logging.FromContext(r.Context()).Error("generate failed", slog.Any("error", err))
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to generate response", err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, generateResponse{Response: turn.Response})
}

// handleGenerateStream handles POST /generate/stream. Deltas are sent as SSE
// data events as they arrive, followed by "event: done" or "event: error".
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, r, http.StatusBadRequest, "Prompt is required", "")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, r, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.metrics.activeStreams.Inc()
	defer s.metrics.activeStreams.Dec()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	sw := &sseWriter{w: w, flusher: flusher}
	start := time.Now()
	turn, err := s.chat.Stream(ctx, req.toAssistant(), sw)
	s.observeTurn("stream", start, turn, err)
	if err != nil {
		logging.FromContext(r.Context()).Error("generate stream failed", slog.Any("error", err))
		sw.event("error", err.Error())
		return
	}
	sw.event("done", "[DONE]")
}

// handleClearChat handles DELETE /clear-chat/{conversationId}.
func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("conversationId")
	if err := s.chat.ClearConversation(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Error("clear chat failed",
			slog.String("conversation_id", id),
			slog.Any("error", err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to clear chat history", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "Chat history cleared"})
}

func (req generateRequest) toAssistant() assistant.GenerateRequest {
	return assistant.GenerateRequest{
		Prompt:         req.Prompt,
		DocumentID:     req.DocumentID,
		ConversationID: req.ConversationID,
		DeepThink:      req.DeepThink,
	}
}

// observeTurn records request, latency and retrieval metrics for one turn.
func (s *Server) observeTurn(mode string, start time.Time, turn assistant.Turn, err error) {
	s.metrics.generateRequestsTotal.WithLabelValues(mode, outcomeOf(err)).Inc()
	s.metrics.generateDurationSeconds.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if turn.Context.Outcome != "" && turn.Context.Outcome != rag.OutcomeNoDocumentRequest {
		s.metrics.retrievalTotal.WithLabelValues(string(turn.Context.Source), string(turn.Context.Outcome)).Inc()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
