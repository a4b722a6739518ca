// Package chunker splits extracted document text into overlapping chunks
// that break on sentence or line boundaries where possible.
//
// Sizes are measured in characters (runes), never bytes, so multi-byte text
// is never cut inside a code point.
package chunker

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	// DefaultMaxSize is the default maximum chunk length in characters.
	DefaultMaxSize = 1000

	// DefaultOverlap is the default number of characters consecutive chunks share.
	DefaultOverlap = 100
)

// ErrInvalidOptions is returned by [Options.Validate] for unusable sizes.
var ErrInvalidOptions = errors.New("chunker: invalid options")

// Options controls chunk boundaries.
type Options struct {
	// MaxSize is the maximum chunk length in characters. Must be positive.
	MaxSize int

	// Overlap is how many trailing characters of a chunk are repeated at the
	// start of the next one. Must be in [0, MaxSize).
	Overlap int
}

// Defaults returns the standard 1000/100 options.
func Defaults() Options {
	return Options{MaxSize: DefaultMaxSize, Overlap: DefaultOverlap}
}

// OptionsFromEnv reads CHUNK_SIZE and CHUNK_OVERLAP, falling back to the
// defaults for unset or unparsable values. The result is validated.
func OptionsFromEnv() (Options, error) {
	opts := Options{
		MaxSize: getEnvInt("CHUNK_SIZE", DefaultMaxSize),
		Overlap: getEnvInt("CHUNK_OVERLAP", DefaultOverlap),
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate rejects non-positive sizes and an overlap that would prevent the
// window from advancing.
func (o Options) Validate() error {
	if o.MaxSize <= 0 {
		return fmt.Errorf("%w: max size %d must be positive", ErrInvalidOptions, o.MaxSize)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidOptions, o.Overlap)
	}
	if o.Overlap >= o.MaxSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max size %d", ErrInvalidOptions, o.Overlap, o.MaxSize)
	}
	return nil
}

// Span is a half-open [Start, End) range of character offsets into the source text.
type Span struct {
	Start int
	End   int
}

// Split returns the chunk texts for text, in order. Empty text yields no chunks.
func Split(text string, opts Options) ([]string, error) {
	runes := []rune(text)
	spans, err := spansOf(runes, opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s.Start:s.End])
	}
	return out, nil
}

// Spans returns the character ranges Split would cut text into.
func Spans(text string, opts Options) ([]Span, error) {
	return spansOf([]rune(text), opts)
}

func spansOf(runes []rune, opts Options) ([]Span, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := len(runes)
	var spans []Span
	start, prevEnd := 0, 0
	for start < n {
		end := min(start+opts.MaxSize, n)
		if end < n {
			// Only boundaries past the previous chunk count, so no chunk is
			// wholly contained in its predecessor.
			if b := lastBreak(runes, max(start, prevEnd-1), end); b > 0 {
				end = b
			}
		}
		spans = append(spans, Span{Start: start, End: end})
		prevEnd = end

		next := max(end-opts.Overlap, 0)
		if next >= n-opts.Overlap {
			break
		}
		// A boundary close to start plus a full overlap would rewind the window.
		if next <= start {
			next = end
		}
		start = next
	}
	return spans, nil
}

// lastBreak returns the end offset (exclusive) of the latest clean break
// ending in (lo+1, end]: just after a newline, or just after a period followed
// by a space. It returns 0 when there is no such boundary.
func lastBreak(runes []rune, lo, end int) int {
	for p := end - 1; p > lo; p-- {
		switch {
		case runes[p] == '\n':
			return p + 1
		case runes[p] == '.' && p+1 < len(runes) && runes[p+1] == ' ':
			return p + 1
		}
	}
	return 0
}

// getEnvInt returns the integer value of key or fallback.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
