package ingestion

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// maxNameRunes caps the display-name portion of a document identifier.
const maxNameRunes = 80

// DisplayName returns the base name of an uploaded file, stripping any
// client-supplied directory (both / and \ separators). Browsers on Windows
// have been known to send full paths in multipart file names.
func DisplayName(fileName string) string {
	name := strings.TrimSpace(fileName)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// NewDocumentID returns a unique identifier for an upload of fileName at now.
//
// The format is "{unixMillis}-{random}-{name}", where name is the display
// name with anything outside [A-Za-z0-9._-] replaced by '-'. The random
// segment keeps two uploads of the same file in the same millisecond apart,
// so chunk identifiers derived from the document ID never collide.
func NewDocumentID(fileName string, now time.Time) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString()[:8], slug(DisplayName(fileName)))
}

// slug maps name to a safe identifier fragment.
func slug(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == maxNameRunes {
			break
		}
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
		n++
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
