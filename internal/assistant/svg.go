package assistant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/54b3r/docai-go/internal/provider"
)

// SVGURLPrefix is the public path generated SVGs are served under.
const SVGURLPrefix = "/uploads/svgs/"

// svgNameRunes is how much of the prompt goes into an SVG file name.
const svgNameRunes = 20

// ErrInvalidSVG is returned when the model reply holds no <svg> document.
var ErrInvalidSVG = errors.New("model did not return a valid svg")

// InvalidSVGError carries the raw reply for debugging.
type InvalidSVGError struct {
	// Raw is the model output after extraction was attempted.
	Raw string
}

func (e *InvalidSVGError) Error() string { return ErrInvalidSVG.Error() }

// Is reports ErrInvalidSVG.
func (e *InvalidSVGError) Is(target error) bool { return target == ErrInvalidSVG }

var (
	svgDocument = regexp.MustCompile(`(?is)<svg.*</svg>`)
	svgFenced   = regexp.MustCompile("(?is)```(?:svg|xml)?\\s*(<svg.*</svg>)\\s*```")
	scriptWord  = regexp.MustCompile(`(?i)script`)
	eventAttr   = regexp.MustCompile(`(?i)on\w+=`)
)

// SVG is a generated and saved image.
type SVG struct {
	// Markup is the sanitised SVG document.
	Markup string

	// FileName is the base name the SVG was saved under.
	FileName string

	// URLPath is the public path the file is served at.
	URLPath string
}

// GenerateSVG asks the SVG model for an image of prompt, sanitises the reply
// and saves it under the configured SVG directory.
func (a *Assistant) GenerateSVG(ctx context.Context, prompt string) (SVG, error) {
	if strings.TrimSpace(prompt) == "" {
		return SVG{}, ErrEmptyPrompt
	}
	if a.svgDir == "" {
		return SVG{}, fmt.Errorf("assistant: svg directory not configured")
	}

	reply, err := a.complete(ctx, provider.TierSVG, svgPrompt(prompt))
	if err != nil {
		return SVG{}, fmt.Errorf("assistant: generate svg: %w", err)
	}

	markup, err := extractSVG(reply)
	if err != nil {
		return SVG{}, err
	}
	markup = sanitizeSVG(markup)

	name := svgFileName(prompt, time.Now())
	if err := writeSVG(a.svgDir, name, markup); err != nil {
		return SVG{}, err
	}
	return SVG{Markup: markup, FileName: name, URLPath: path.Join(SVGURLPrefix, name)}, nil
}

// extractSVG returns the outermost <svg>…</svg> span of reply, looking
// inside a ```svg or ```xml fence when the reply is fenced.
func extractSVG(reply string) (string, error) {
	out := reply
	if m := svgFenced.FindStringSubmatch(reply); m != nil {
		out = m[1]
	} else if m := svgDocument.FindString(reply); m != "" {
		out = m
	}
	if !strings.HasPrefix(out, "<svg") {
		return "", &InvalidSVGError{Raw: out}
	}
	return out, nil
}

// sanitizeSVG neutralises scripts and inline event handlers, then makes the
// image scale with its container.
func sanitizeSVG(markup string) string {
	markup = scriptWord.ReplaceAllString(markup, "removed-script")
	markup = eventAttr.ReplaceAllString(markup, "data-removed=")
	if !strings.Contains(markup, "preserveAspectRatio") {
		markup = strings.Replace(markup, "<svg", `<svg preserveAspectRatio="xMidYMid meet"`, 1)
	}
	return markup
}

// svgFileName is "{unixMillis}-{first 20 prompt chars, non-alphanumerics as '-'}.svg".
func svgFileName(prompt string, now time.Time) string {
	var b strings.Builder
	n := 0
	for _, r := range prompt {
		if n == svgNameRunes {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
		n++
	}
	return fmt.Sprintf("%d-%s.svg", now.UnixMilli(), b.String())
}

// writeSVG writes markup to dir/name, creating dir if needed. name must not
// escape dir.
func writeSVG(dir, name, markup string) error {
	filePath := filepath.Join(dir, name)
	if filepath.Dir(filePath) != filepath.Clean(dir) {
		return fmt.Errorf("assistant: svg path %s is outside %s", filePath, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("assistant: failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(filePath, []byte(markup), 0o644); err != nil {
		return fmt.Errorf("assistant: failed to write svg %s: %w", filePath, err)
	}
	return nil
}
