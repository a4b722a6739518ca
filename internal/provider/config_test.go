package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docai-go/internal/rag"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── Groq ──────────────────────────────────────────────────────────────
		{
			name: "groq/valid",
			cfg:  Config{Backend: BackendGroq, Groq: ProviderGroq{APIKey: "gsk", Model: DefaultGroqModel}},
		},
		{
			name:    "groq/missing api key",
			cfg:     Config{Backend: BackendGroq, Groq: ProviderGroq{Model: DefaultGroqModel}},
			wantErr: "GROQ_API_KEY",
		},
		{
			name:    "groq/missing model",
			cfg:     Config{Backend: BackendGroq, Groq: ProviderGroq{APIKey: "gsk"}},
			wantErr: "GROQ_MODEL",
		},

		// ── OpenAI ────────────────────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg:  Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o"}},
		},
		{
			name: "openai/compatible server without key",
			cfg:  Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{BaseURL: "http://localhost:8000/v1", Model: "local"}},
		},
		{
			name:    "openai/missing api key",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{Model: "gpt-4o"}},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "openai/missing model",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test"}},
			wantErr: "OPENAI_MODEL",
		},

		// ── Gemini ────────────────────────────────────────────────────────────
		{
			name: "gemini/valid",
			cfg:  Config{Backend: BackendGemini, Gemini: ProviderGemini{APIKey: "AIza", Model: DefaultGeminiModel}},
		},
		{
			name:    "gemini/missing api key",
			cfg:     Config{Backend: BackendGemini, Gemini: ProviderGemini{Model: DefaultGeminiModel}},
			wantErr: "GEMINI_API_KEY",
		},

		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg:  Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: "http://localhost:11434", Model: "llama3"}},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: "http://localhost:11434"}},
			wantErr: "OLLAMA_MODEL",
		},

		// ── Ark ───────────────────────────────────────────────────────────────
		{
			name: "ark/valid",
			cfg:  Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "k", Model: "ep-123"}},
		},
		{
			name:    "ark/missing model",
			cfg:     Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "k"}},
			wantErr: "ARK_MODEL",
		},

		// ── Shared ────────────────────────────────────────────────────────────
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "bedrock"},
			wantErr: "unknown backend",
		},
		{
			name: "temperature out of range",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Host: "h", Model: "m"},
				Tuning:  SharedTuning{Temperature: 3},
			},
			wantErr: "MODEL_TEMPERATURE",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"MODEL_PROVIDER", "GROQ_MODEL", "GROQ_DOCUMENT_MODEL", "GROQ_REASONING_MODEL", "GROQ_SEARCH_MODEL",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_SVG_MODEL", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE", "MODEL_TIMEOUT",
	} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.Backend != BackendGroq {
		t.Errorf("Backend = %q, want groq", cfg.Backend)
	}
	if cfg.Groq.ReasoningModel != DefaultGroqReasoningModel || cfg.Groq.DocumentModel != DefaultGroqDocumentModel {
		t.Errorf("groq tiers = %+v", cfg.Groq)
	}
	if cfg.Gemini.SVGModel != DefaultGeminiSVGModel {
		t.Errorf("SVGModel = %q", cfg.Gemini.SVGModel)
	}
	if cfg.Tuning.MaxTokens != 4096 || cfg.Tuning.Timeout != DefaultTimeout {
		t.Errorf("tuning = %+v", cfg.Tuning)
	}
}

func TestFromEnv_GoogleKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("MODEL_TIMEOUT", "45s")

	cfg := FromEnv()
	if cfg.Gemini.APIKey != "google-key" {
		t.Errorf("Gemini.APIKey = %q, want GOOGLE_API_KEY fallback", cfg.Gemini.APIKey)
	}
	if cfg.Tuning.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s", cfg.Tuning.Timeout)
	}
}

func TestModelNames(t *testing.T) {
	t.Parallel()

	groq := Config{Backend: BackendGroq, Groq: ProviderGroq{
		Model: "m", DocumentModel: "doc", ReasoningModel: "think", SearchModel: "search",
	}}
	names := groq.ModelNames()
	want := map[Tier]string{TierDefault: "m", TierDocument: "doc", TierReasoning: "think", TierSearch: "search", TierSVG: "m"}
	for tier, n := range want {
		if names[tier] != n {
			t.Errorf("groq %s = %q, want %q", tier, names[tier], n)
		}
	}

	ollama := Config{Backend: BackendOllama, Ollama: ProviderOllama{Model: "llama3"}}
	for tier, n := range ollama.ModelNames() {
		if n != "llama3" {
			t.Errorf("ollama %s = %q, want llama3", tier, n)
		}
	}
}

// ---------------------------------------------------------------------------
// Router
// ---------------------------------------------------------------------------

type fakeChatModel struct {
	reply     string
	err       error
	gotModel  string
	gotTemp   float32
	deadlined bool
}

func (f *fakeChatModel) Generate(ctx context.Context, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.record(ctx, opts)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, _ []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(ctx, opts)
	if f.err != nil {
		return nil, f.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

func (f *fakeChatModel) record(ctx context.Context, opts []model.Option) {
	o := model.GetCommonOptions(&model.Options{}, opts...)
	if o.Model != nil {
		f.gotModel = *o.Model
	}
	if o.Temperature != nil {
		f.gotTemp = *o.Temperature
	}
	_, f.deadlined = ctx.Deadline()
}

func TestRouter_Complete_RoutesTierModel(t *testing.T) {
	t.Parallel()
	fm := &fakeChatModel{reply: "hi"}
	r := NewRouter(BackendGroq, fm, map[Tier]string{TierDefault: "m", TierReasoning: "think"}, time.Minute)

	msg, err := r.Complete(context.Background(), TierReasoning, []*schema.Message{schema.UserMessage("q")}, model.WithTemperature(0.3))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if msg.Content != "hi" {
		t.Errorf("Content = %q", msg.Content)
	}
	if fm.gotModel != "think" {
		t.Errorf("model = %q, want think", fm.gotModel)
	}
	if fm.gotTemp != 0.3 {
		t.Errorf("temperature = %v, want 0.3", fm.gotTemp)
	}
	if !fm.deadlined {
		t.Error("Complete did not apply timeout")
	}
}

func TestRouter_UnknownTierUsesDefault(t *testing.T) {
	t.Parallel()
	fm := &fakeChatModel{reply: "ok"}
	r := NewRouter(BackendOllama, fm, map[Tier]string{TierDefault: "llama3"}, 0)

	if _, err := r.Complete(context.Background(), TierSearch, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if fm.gotModel != "llama3" {
		t.Errorf("model = %q, want llama3", fm.gotModel)
	}
	if fm.deadlined {
		t.Error("zero timeout should not set a deadline")
	}
}

func TestRouter_ErrorsAreUnavailable(t *testing.T) {
	t.Parallel()
	fm := &fakeChatModel{err: errors.New("429 rate limited")}
	r := NewRouter(BackendGroq, fm, nil, 0)

	_, err := r.Complete(context.Background(), TierDefault, nil)
	if !errors.Is(err, rag.ErrServiceUnavailable) {
		t.Fatalf("Complete err = %v, want ErrServiceUnavailable", err)
	}
	_, err = r.Stream(context.Background(), TierDefault, nil)
	if !errors.Is(err, rag.ErrServiceUnavailable) {
		t.Fatalf("Stream err = %v, want ErrServiceUnavailable", err)
	}
}

func TestRouter_Stream(t *testing.T) {
	t.Parallel()
	r := NewRouter(BackendGroq, &fakeChatModel{reply: "streamed"}, nil, 0)

	sr, err := r.Stream(context.Background(), TierDefault, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer sr.Close()
	msg, err := sr.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg.Content != "streamed" {
		t.Errorf("Content = %q", msg.Content)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), &Config{Backend: BackendGroq}); err == nil {
		t.Fatal("expected validation error")
	}
}
