package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docai-go/internal/assistant"
	"github.com/54b3r/docai-go/internal/logging"
)

// handleGenerateSVG handles POST /generate-svg.
func (s *Server) handleGenerateSVG(w http.ResponseWriter, r *http.Request) {
	var req svgRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, r, http.StatusBadRequest, "Prompt is required", "")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	svg, err := s.chat.GenerateSVG(ctx, req.Prompt)
	if err != nil {
		log := logging.FromContext(r.Context())
		var invalid *assistant.InvalidSVGError
		if errors.As(err, &invalid) {
			log.Warn("svg: model reply contained no svg")
			writeJSON(w, r, http.StatusInternalServerError, errorResponse{
				Error: "Failed to generate valid SVG",
				Raw:   invalid.Raw,
			})
			return
		}
		log.Error("svg generation failed", slog.Any("error", err))
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to generate SVG", err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, svgResponse{
		SVG:      svg.Markup,
		FileName: svg.FileName,
		FilePath: svg.URLPath,
		Message:  "SVG generated successfully",
	})
}

// handleProcessImage handles POST /process-image: OCR on the multipart field
// "image" followed by model refinement.
func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	if s.ocr == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, imageResponse{
			Error:   "Failed to process image",
			Details: "ocr is not configured on this server",
		})
		return
	}

	log := logging.FromContext(r.Context())
	tmpPath, _, ok := s.receiveFile(w, r, "image", "No image file provided")
	if !ok {
		return
	}
	defer removeTemp(log, tmpPath)

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.ocr.Process(ctx, tmpPath)
	if err != nil {
		log.Error("image processing failed", slog.Any("error", err))
		writeJSON(w, r, http.StatusInternalServerError, imageResponse{
			Error:   "Failed to process image",
			Details: err.Error(),
		})
		return
	}

	// extractedText carries the refined text too; clients render that field.
	writeJSON(w, r, http.StatusOK, imageResponse{
		Success:       true,
		ExtractedText: res.Refined,
		RefinedText:   res.Refined,
	})
}

// handleSearchCode handles POST /search-code.
func (s *Server) handleSearchCode(w http.ResponseWriter, r *http.Request) {
	var req codeSearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	answer, err := s.chat.SearchCode(ctx, req.Language, req.Query, req.DeepThink)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyPrompt) {
			writeJSONError(w, r, http.StatusBadRequest, "Query is required", "")
			return
		}
		logging.FromContext(r.Context()).Error("code search failed", slog.Any("error", err))
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to search code", "")
		return
	}
	writeJSON(w, r, http.StatusOK, generateResponse{Response: answer})
}

// handleSearchDocs handles POST /search-docs.
func (s *Server) handleSearchDocs(w http.ResponseWriter, r *http.Request) {
	var req docSearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	answer, err := s.chat.SearchDocs(ctx, req.Query, req.DeepThink)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyPrompt) {
			writeJSONError(w, r, http.StatusBadRequest, "Query is required", "")
			return
		}
		logging.FromContext(r.Context()).Error("documentation search failed", slog.Any("error", err))
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to search documentation", "")
		return
	}
	writeJSON(w, r, http.StatusOK, generateResponse{Response: answer})
}
