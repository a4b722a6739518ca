package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/54b3r/docai-go/internal/extract"
	"github.com/54b3r/docai-go/internal/ingestion"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/rag"
)

// multipartMemory is the part of a multipart body held in memory before the
// rest spills to temporary files.
const multipartMemory = 8 << 20

// handleUpload handles POST /upload. The multipart field "document" is
// extracted to text, registered and indexed chunk by chunk. The temporary
// copy of the upload is removed on every path.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	tmpPath, fileName, ok := s.receiveFile(w, r, "document", "No file uploaded")
	if !ok {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		return
	}
	defer removeTemp(log, tmpPath)

	if _, err := extract.Detect(fileName); err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeJSONError(w, r, http.StatusBadRequest, "Unsupported file type", "")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	text, err := extract.Extract(ctx, tmpPath, fileName)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		log.Error("upload: text extraction failed", slog.String("file", fileName), slog.Any("error", err))
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to process file", err.Error())
		return
	}

	now := time.Now()
	doc := rag.Document{
		ID:        ingestion.NewDocumentID(fileName, now),
		Name:      ingestion.DisplayName(fileName),
		Text:      text,
		CreatedAt: now,
	}

	res, err := s.ingest.Ingest(ctx, doc)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		log.Error("upload: ingestion failed", slog.String("document_id", doc.ID), slog.Any("error", err))
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to process file", err.Error())
		return
	}

	s.metrics.uploadsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.WithLabelValues(string(ingestion.StatusIndexed)).Add(float64(res.Indexed()))
	s.metrics.ingestChunksTotal.WithLabelValues(string(ingestion.StatusSkipped)).Add(float64(res.Skipped()))

	writeJSON(w, r, http.StatusOK, uploadResponse{
		Message:         "File uploaded successfully and indexed for RAG",
		DocumentID:      res.DocumentID,
		ChunksProcessed: res.Attempted,
		ChunksIndexed:   res.Indexed(),
	})
}

// receiveFile copies the multipart part named field into a temporary file
// under cfg.UploadDir. On failure it writes the error response itself and
// returns ok=false; on success the caller owns tmpPath.
func (s *Server) receiveFile(w http.ResponseWriter, r *http.Request, field, missingMsg string) (tmpPath, fileName string, ok bool) {
	log := logging.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "File too large",
				fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
			return "", "", false
		}
		writeJSONError(w, r, http.StatusBadRequest, missingMsg, "")
		return "", "", false
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("upload: multipart cleanup failed", slog.Any("error", err))
		}
	}()

	file, header, err := r.FormFile(field)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, missingMsg, "")
		return "", "", false
	}
	defer file.Close()

	tmpPath, err = copyToTemp(s.cfg.UploadDir, header, file)
	if err != nil {
		log.Error("upload: could not store temporary file", slog.Any("error", err))
		writeJSONError(w, r, http.StatusInternalServerError, "Failed to process file", err.Error())
		return "", "", false
	}
	return tmpPath, header.Filename, true
}

// copyToTemp writes src to a new file in dir, keeping the upload's extension.
func copyToTemp(dir string, header *multipart.FileHeader, src io.Reader) (string, error) {
	dst, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(ingestion.DisplayName(header.Filename)))
	if err != nil {
		return "", fmt.Errorf("server: create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("server: write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("server: close temp file: %w", err)
	}
	return dst.Name(), nil
}

func removeTemp(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("upload: could not remove temporary file", slog.String("path", path), slog.Any("error", err))
	}
}
