// Package ocr extracts text from images with the tesseract CLI and cleans the
// result up with the completion model.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/docai-go/internal/logging"
)

// DefaultLanguage is the tesseract language pack used when none is set.
const DefaultLanguage = "eng"

// ErrNoText is returned when OCR finds no text in the image.
var ErrNoText = errors.New("no text was extracted from the image")

// Runner performs OCR on the image at path. Abstracting this allows tests to
// inject a fake runner without spawning real tesseract processes.
type Runner interface {
	Recognize(ctx context.Context, imagePath, language string) (string, error)
}

// Refiner rewrites raw OCR text into clean, formatted text.
// *assistant.Assistant satisfies it.
type Refiner interface {
	RefineText(ctx context.Context, text string) (string, error)
}

// Result is the outcome of processing one image.
type Result struct {
	// Raw is the tesseract output.
	Raw string

	// Refined is the model-cleaned text.
	Refined string
}

// Service runs OCR followed by refinement.
type Service struct {
	runner   Runner
	refiner  Refiner
	language string
}

// NewService constructs a Service. An empty language uses DefaultLanguage.
func NewService(runner Runner, refiner Refiner, language string) (*Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("ocr: runner must not be nil")
	}
	if refiner == nil {
		return nil, fmt.Errorf("ocr: refiner must not be nil")
	}
	if language == "" {
		language = DefaultLanguage
	}
	return &Service{runner: runner, refiner: refiner, language: language}, nil
}

// Process recognises the text in the image at imagePath and refines it.
// It fails with ErrNoText when the image holds no text. The image file is
// left in place; the caller owns it.
func (s *Service) Process(ctx context.Context, imagePath string) (Result, error) {
	log := logging.FromContext(ctx)

	raw, err := s.runner.Recognize(ctx, imagePath, s.language)
	if err != nil {
		return Result{}, fmt.Errorf("ocr: recognize: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, ErrNoText
	}
	log.Debug("ocr: text recognised", slog.Int("chars", len(raw)), slog.String("language", s.language))

	refined, err := s.refiner.RefineText(ctx, raw)
	if err != nil {
		return Result{}, fmt.Errorf("ocr: refine: %w", err)
	}
	return Result{Raw: raw, Refined: refined}, nil
}
