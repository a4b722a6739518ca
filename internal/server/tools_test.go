package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/54b3r/docai-go/internal/assistant"
	"github.com/54b3r/docai-go/internal/ocr"
)

// ---------------------------------------------------------------------------
// POST /generate-svg
// ---------------------------------------------------------------------------

func TestHandleGenerateSVG_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.chat.svg = assistant.SVG{
		Markup:   `<svg preserveAspectRatio="xMidYMid meet"></svg>`,
		FileName: "1-fox.svg",
		URLPath:  "/uploads/svgs/1-fox.svg",
	}

	w := env.serve(jsonRequest(http.MethodPost, "/generate-svg", `{"prompt":"fox"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body svgResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := svgResponse{
		SVG:      env.chat.svg.Markup,
		FileName: "1-fox.svg",
		FilePath: "/uploads/svgs/1-fox.svg",
		Message:  "SVG generated successfully",
	}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}

func TestHandleGenerateSVG_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		body        string
		err         error
		wantStatus  int
		wantError   string
		wantRaw     string
		wantDetails string
	}{
		{"missing prompt", `{}`, nil, http.StatusBadRequest, "Prompt is required", "", ""},
		{"invalid svg", `{"prompt":"fox"}`, &assistant.InvalidSVGError{Raw: "I cannot draw"}, http.StatusInternalServerError, "Failed to generate valid SVG", "I cannot draw", ""},
		{"model failure", `{"prompt":"fox"}`, errors.New("quota exceeded"), http.StatusInternalServerError, "Failed to generate SVG", "", "quota exceeded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.chat.svgErr = tc.err

			w := env.serve(jsonRequest(http.MethodPost, "/generate-svg", tc.body))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.wantError || body.Raw != tc.wantRaw || body.Details != tc.wantDetails {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestStaticSVGs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.cfg.SVGDir, "7-cat.svg"), []byte("<svg/>"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := env.serve(httptest.NewRequest(http.MethodGet, "/uploads/svgs/7-cat.svg", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got, _ := io.ReadAll(w.Body); string(got) != "<svg/>" {
		t.Errorf("body = %q", got)
	}

	if w := env.serve(httptest.NewRequest(http.MethodGet, "/uploads/svgs/missing.svg", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing file: expected 404, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /process-image
// ---------------------------------------------------------------------------

func TestHandleProcessImage_Success(t *testing.T) {
	t.Parallel()

	engine := &fakeOCR{result: ocr.Result{Raw: "helo wrld", Refined: "Hello world"}}
	env := newTestEnv(t, func(d *Deps, _ *Config) { d.OCR = engine })

	w := env.serve(multipartRequest(t, "/process-image", "image", "card.png", []byte("png bytes")))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body imageResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.ExtractedText != "Hello world" || body.RefinedText != "Hello world" {
		t.Errorf("body = %+v", body)
	}
	if !engine.sawFile {
		t.Error("image must exist while it is processed")
	}
	if left := dirEntries(t, env.cfg.UploadDir); len(left) != 0 {
		t.Errorf("temporary files left behind: %v", left)
	}
}

func TestHandleProcessImage_Failure(t *testing.T) {
	t.Parallel()

	engine := &fakeOCR{err: ocr.ErrNoText}
	env := newTestEnv(t, func(d *Deps, _ *Config) { d.OCR = engine })

	w := env.serve(multipartRequest(t, "/process-image", "image", "blank.png", []byte("png")))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body imageResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error != "Failed to process image" || body.Details != ocr.ErrNoText.Error() {
		t.Errorf("body = %+v", body)
	}
	if left := dirEntries(t, env.cfg.UploadDir); len(left) != 0 {
		t.Errorf("temporary files left behind after failure: %v", left)
	}
}

func TestHandleProcessImage_NoImage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(d *Deps, _ *Config) { d.OCR = &fakeOCR{} })
	w := env.serve(multipartRequest(t, "/process-image", "document", "a.png", []byte("png")))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "No image file provided" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandleProcessImage_NotConfigured(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.serve(multipartRequest(t, "/process-image", "image", "a.png", []byte("png")))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /search-code, POST /search-docs
// ---------------------------------------------------------------------------

func TestHandleSearch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		path       string
		body       string
		searchErr  error
		wantStatus int
		wantBody   string
	}{
		{"code ok", "/search-code", `{"language":"go","query":"parse json"}`, nil, http.StatusOK, `{"response":"answer"}`},
		{"docs ok", "/search-docs", `{"query":"context deadlines"}`, nil, http.StatusOK, `{"response":"answer"}`},
		{"code empty query", "/search-code", `{"language":"go"}`, nil, http.StatusBadRequest, `{"error":"Query is required"}`},
		{"code failure", "/search-code", `{"language":"go","query":"q"}`, errors.New("boom"), http.StatusInternalServerError, `{"error":"Failed to search code"}`},
		{"docs failure", "/search-docs", `{"query":"q"}`, errors.New("boom"), http.StatusInternalServerError, `{"error":"Failed to search documentation"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.chat.searchErr = tc.searchErr

			w := env.serve(jsonRequest(http.MethodPost, tc.path, tc.body))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := w.Body.String(); got != tc.wantBody+"\n" {
				t.Errorf("body = %q, want %q", got, tc.wantBody+"\n")
			}
		})
	}
}

func TestHandleSearchCode_PassesLanguage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.serve(jsonRequest(http.MethodPost, "/search-code", `{"language":"rust","query":"borrow checker"}`))

	if len(env.chat.searchArg) != 2 || env.chat.searchArg[0] != "rust" || env.chat.searchArg[1] != "borrow checker" {
		t.Errorf("search args = %v", env.chat.searchArg)
	}
}
