package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"
)

// Default model names per backend and tier.
const (
	DefaultGroqModel          = "llama-3.3-70b-versatile"
	DefaultGroqDocumentModel  = "gemma2-9b-it"
	DefaultGroqReasoningModel = "deepseek-r1-distill-llama-70b"
	DefaultGroqSearchModel    = "llama-3.3-70b-specdec"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultGeminiModel        = "gemini-2.0-flash"
	DefaultGeminiSVGModel     = "gemini-2.0-flash-exp"
	DefaultOllamaModel        = "llama3"
	DefaultArkRegion          = "cn-beijing"
	DefaultTimeout            = 2 * time.Minute
)

// FromEnv resolves a Config from environment variables. MODEL_PROVIDER
// selects the backend; each provider uses its own native credential env vars.
//
// Environment variables:
//
//	MODEL_PROVIDER   = groq | openai | gemini | ollama | ark (default: groq)
//
//	Groq:    GROQ_API_KEY, GROQ_MODEL, GROQ_DOCUMENT_MODEL, GROQ_REASONING_MODEL,
//	         GROQ_SEARCH_MODEL, GROQ_BASE_URL
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o-mini), OPENAI_BASE_URL
//	Gemini:  GEMINI_API_KEY or GOOGLE_API_KEY, GEMINI_MODEL, GEMINI_SVG_MODEL
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	Ark:     ARK_API_KEY, ARK_MODEL, ARK_REGION (default: cn-beijing)
//
//	Shared:  MODEL_MAX_TOKENS (default: 4096), MODEL_TEMPERATURE (default: 0.7),
//	         MODEL_TIMEOUT (default: 2m)
func FromEnv() *Config {
	return &Config{
		Backend: Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendGroq))),
		Groq: ProviderGroq{
			APIKey:         os.Getenv("GROQ_API_KEY"),
			BaseURL:        os.Getenv("GROQ_BASE_URL"),
			Model:          getEnvOrDefault("GROQ_MODEL", DefaultGroqModel),
			DocumentModel:  getEnvOrDefault("GROQ_DOCUMENT_MODEL", DefaultGroqDocumentModel),
			ReasoningModel: getEnvOrDefault("GROQ_REASONING_MODEL", DefaultGroqReasoningModel),
			SearchModel:    getEnvOrDefault("GROQ_SEARCH_MODEL", DefaultGroqSearchModel),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnvOrDefault("OPENAI_MODEL", DefaultOpenAIModel),
		},
		Gemini: ProviderGemini{
			APIKey:   getEnvOrDefault("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
			Model:    getEnvOrDefault("GEMINI_MODEL", DefaultGeminiModel),
			SVGModel: getEnvOrDefault("GEMINI_SVG_MODEL", DefaultGeminiSVGModel),
		},
		Ollama: ProviderOllama{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("OLLAMA_MODEL", DefaultOllamaModel),
		},
		Ark: ProviderArk{
			APIKey: os.Getenv("ARK_API_KEY"),
			Model:  os.Getenv("ARK_MODEL"),
			Region: getEnvOrDefault("ARK_REGION", DefaultArkRegion),
		},
		Tuning: SharedTuning{
			MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 4096),
			Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("MODEL_TIMEOUT", DefaultTimeout),
		},
	}
}

// NewFromEnv constructs a Router from environment variables. See [FromEnv].
func NewFromEnv(ctx context.Context) (*Router, error) {
	return New(ctx, FromEnv())
}

// New constructs a Router from an explicit Config, delegating to the
// appropriate backend factory function. It validates the config first so
// callers get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		primary model.BaseChatModel
		err     error
	)
	switch cfg.Backend {
	case BackendGroq:
		primary, err = newGroq(ctx, cfg)
	case BackendOpenAI:
		primary, err = newOpenAI(ctx, cfg)
	case BackendGemini:
		primary, err = newGemini(ctx, cfg, cfg.Gemini.Model)
	case BackendOllama:
		primary, err = newOllama(ctx, cfg)
	case BackendArk:
		primary, err = newArk(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("provider: %s: %w", cfg.Backend, err)
	}

	r := &Router{
		backend: cfg.Backend,
		primary: primary,
		names:   cfg.ModelNames(),
		timeout: cfg.Tuning.Timeout,
	}

	// SVG generation prefers Gemini whenever a Google key is available.
	if cfg.Gemini.APIKey != "" {
		svg, err := newGemini(ctx, cfg, cfg.Gemini.SVGModel)
		if err != nil {
			return nil, fmt.Errorf("provider: gemini svg model: %w", err)
		}
		r.svg = svg
		r.names[TierSVG] = cfg.Gemini.SVGModel
	}
	return r, nil
}

// ModelNames returns the model name that serves each tier on the primary
// backend. Only Groq distinguishes tiers; other backends serve every tier
// with their single configured model.
func (c *Config) ModelNames() map[Tier]string {
	names := make(map[Tier]string, len(Tiers))
	var def string
	switch c.Backend {
	case BackendGroq:
		def = c.Groq.Model
		names[TierDocument] = c.Groq.DocumentModel
		names[TierReasoning] = c.Groq.ReasoningModel
		names[TierSearch] = c.Groq.SearchModel
	case BackendOpenAI:
		def = c.OpenAI.Model
	case BackendGemini:
		def = c.Gemini.Model
	case BackendOllama:
		def = c.Ollama.Model
	case BackendArk:
		def = c.Ark.Model
	}
	for _, t := range Tiers {
		if names[t] == "" {
			names[t] = def
		}
	}
	return names
}

// Validate checks that the config has the required fields for the selected
// backend. Call it at startup to surface missing credentials before the
// first request.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGroq:
		if c.Groq.APIKey == "" {
			return fmt.Errorf("provider: groq backend requires GROQ_API_KEY")
		}
		if c.Groq.Model == "" {
			return fmt.Errorf("provider: groq backend requires GROQ_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
			return fmt.Errorf("provider: openai backend requires OPENAI_API_KEY (or OPENAI_BASE_URL for a compatible server)")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: openai backend requires OPENAI_MODEL")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: gemini backend requires GEMINI_API_KEY or GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: gemini backend requires GEMINI_MODEL")
		}
	case BackendOllama:
		if c.Ollama.Host == "" {
			return fmt.Errorf("provider: ollama backend requires OLLAMA_HOST")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: ollama backend requires OLLAMA_MODEL")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ark backend requires ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ark backend requires ARK_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: groq, openai, gemini, ollama, ark)", c.Backend)
	}
	if c.Tuning.MaxTokens < 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative")
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be between 0 and 2, got %g", c.Tuning.Temperature)
	}
	return nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of the named environment
// variable, or fallback if the variable is unset, empty, or not parseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
