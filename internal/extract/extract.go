// Package extract turns an uploaded file into plain text, choosing the
// reader by file extension.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for file extensions with no reader.
var ErrUnsupportedType = errors.New("unsupported file type")

// Format is a supported document format.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// formats maps lowercase extensions to formats.
var formats = map[string]Format{
	".txt":  FormatText,
	".md":   FormatText,
	".sql":  FormatText,
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOCX,
}

// Detect returns the format for fileName's extension (case-insensitive).
func Detect(fileName string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	f, ok := formats[ext]
	if !ok {
		return "", fmt.Errorf("extract: %q: %w", ext, ErrUnsupportedType)
	}
	return f, nil
}

// Extensions lists the accepted extensions, for help text.
func Extensions() []string {
	return []string{".txt", ".md", ".sql", ".pdf", ".docx", ".doc"}
}

// Extract extracts text from the file at path. fileName is the original upload
// name and decides the format; path may be a temp name without extension.
func Extract(ctx context.Context, path, fileName string) (string, error) {
	format, err := Detect(fileName)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch format {
	case FormatPDF:
		return pdfText(path)
	case FormatDOCX:
		return docxText(path)
	default:
		return plainText(path)
	}
}

// plainText reads a UTF-8 text file. Invalid sequences are replaced so the
// chunker never sees broken runes.
func plainText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: read: %w", err)
	}
	if !utf8.Valid(b) {
		b = bytes.ToValidUTF8(b, []byte("�"))
	}
	return string(b), nil
}

// pdfText returns the plain text of every page.
func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open pdf: %w", err)
	}
	defer f.Close()

	rdr, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract: read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rdr); err != nil {
		return "", fmt.Errorf("extract: read pdf text: %w", err)
	}
	return buf.String(), nil
}

// docxText reads word/document.xml and joins paragraphs with newlines.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("extract: open docx (legacy binary .doc files are not readable): %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("extract: open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract: read document.xml: %w", err)
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("extract: docx has no word/document.xml")
}

// parseDocumentXML flattens word/document.xml to text. Every w:t inside a
// run is kept at any depth, so hyperlinks, table cells, content controls and
// tracked insertions are included. Each paragraph ends a line; w:tab and
// w:br inside runs become a tab and a newline.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		b      strings.Builder
		inRun  int
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("extract: parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "r":
				inRun++
			case "t":
				inText = inRun > 0
			case "tab":
				// w:tab also defines tab stops under w:pPr; only runs emit text.
				if inRun > 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if inRun > 0 {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
