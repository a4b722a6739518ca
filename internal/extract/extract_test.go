package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// writeDocx builds a minimal .docx archive holding documentXML.
func writeDocx(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
	return path
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		want    Format
		wantErr bool
	}{
		{name: "txt", file: "notes.txt", want: FormatText},
		{name: "sql", file: "schema.sql", want: FormatText},
		{name: "markdown", file: "README.md", want: FormatText},
		{name: "pdf upper case", file: "REPORT.PDF", want: FormatPDF},
		{name: "docx", file: "cv.docx", want: FormatDOCX},
		{name: "doc", file: "old.doc", want: FormatDOCX},
		{name: "image", file: "photo.png", wantErr: true},
		{name: "no extension", file: "Makefile", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Detect(tc.file)
			if tc.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Fatalf("Detect(%q) err = %v, want ErrUnsupportedType", tc.file, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect(%q): %v", tc.file, err)
			}
			if got != tc.want {
				t.Errorf("Detect(%q) = %q, want %q", tc.file, got, tc.want)
			}
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "upload-123", []byte("SELECT 1;\nSELECT 2;\n"))

	got, err := Extract(context.Background(), path, "queries.sql")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "SELECT 1;\nSELECT 2;\n" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_InvalidUTF8Replaced(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "bad.txt", []byte{'a', 0xff, 'b'})

	got, err := Extract(context.Background(), path, "bad.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "a�b" {
		t.Errorf("got %q, want replacement rune", got)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "x.exe", []byte("MZ"))

	_, err := Extract(context.Background(), path, "x.exe")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "a.txt", []byte("hello"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Extract(ctx, path, "a.txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestExtract_Docx(t *testing.T) {
	t.Parallel()
	const doc = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Senior </w:t></w:r><w:r><w:t>Engineer</w:t></w:r></w:p>
    <w:p><w:r><w:tab/><w:t>Go</w:t></w:r></w:p>
  </w:body>
</w:document>`
	path := writeDocx(t, doc)

	got, err := Extract(context.Background(), path, "resume.docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Jane Doe\nSenior Engineer\n\tGo"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseDocumentXML_NestedText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "hyperlink",
			body: `<w:p><w:r><w:t xml:space="preserve">See </w:t></w:r><w:hyperlink r:id="rId4"><w:r><w:t>the manual</w:t></w:r></w:hyperlink></w:p>`,
			want: "See the manual",
		},
		{
			name: "table cells",
			body: `<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>TableCell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`,
			want: "Name\nTableCell",
		},
		{
			name: "content control and insertion",
			body: `<w:sdt><w:sdtContent><w:p><w:r><w:t>Title</w:t></w:r><w:ins w:id="1"><w:r><w:t> added</w:t></w:r></w:ins></w:p></w:sdtContent></w:sdt>`,
			want: "Title added",
		},
		{
			name: "tab stops are not text",
			body: `<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>`,
			want: "a\tb\nc",
		},
		{
			name: "deleted text dropped",
			body: `<w:p><w:r><w:t>kept</w:t></w:r><w:del w:id="2"><w:r><w:delText>gone</w:delText></w:r></w:del></w:p>`,
			want: "kept",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
				`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>` +
				tc.body + `</w:body></w:document>`
			got, err := parseDocumentXML([]byte(doc))
			if err != nil {
				t.Fatalf("parseDocumentXML: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseDocumentXML_Malformed(t *testing.T) {
	t.Parallel()
	if _, err := parseDocumentXML([]byte(`<w:document><w:body><w:p>`)); err == nil {
		t.Fatal("expected error for truncated document.xml")
	}
}

func TestExtract_DocxMissingBody(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("docProps/app.xml"); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	f.Close()

	_, err = Extract(context.Background(), path, "empty.docx")
	if err == nil || !strings.Contains(err.Error(), "word/document.xml") {
		t.Fatalf("err = %v, want missing document.xml error", err)
	}
}

func TestExtract_LegacyDocNotZip(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "old.doc", []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1})

	if _, err := Extract(context.Background(), path, "old.doc"); err == nil {
		t.Fatal("expected error for OLE2 .doc")
	}
}

func TestExtract_PDFInvalid(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "fake.pdf", []byte("not a pdf"))

	if _, err := Extract(context.Background(), path, "fake.pdf"); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}
