// Package provider selects and constructs the completion model backend at
// runtime and routes each request tier to the right model name.
// Supported backends: Groq, OpenAI (and OpenAI-compatible servers), Google
// Gemini, Ollama and Volcengine Ark.
package provider

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGroq selects Groq through its OpenAI-compatible endpoint.
	BackendGroq Backend = "groq"
	// BackendOpenAI selects the OpenAI API or a compatible server.
	BackendOpenAI Backend = "openai"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
)

// Tier classifies a request so the router can pick a model for it.
type Tier string

const (
	// TierDefault serves plain chat turns.
	TierDefault Tier = "default"
	// TierDocument serves chat turns with an attached document.
	TierDocument Tier = "document"
	// TierReasoning serves "deep think" requests and OCR refinement.
	TierReasoning Tier = "reasoning"
	// TierSearch serves code and documentation search.
	TierSearch Tier = "search"
	// TierSVG serves SVG generation. It prefers Gemini when a Google key is
	// configured, whatever the primary backend.
	TierSVG Tier = "svg"
)

// Tiers lists every tier in a stable order.
var Tiers = []Tier{TierDefault, TierDocument, TierReasoning, TierSearch, TierSVG}

// ProviderGroq holds Groq settings. Each model field selects the model
// used for one tier.
type ProviderGroq struct {
	APIKey         string
	BaseURL        string
	Model          string
	DocumentModel  string
	ReasoningModel string
	SearchModel    string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	APIKey   string
	Model    string
	SVGModel string
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	APIKey string
	Model  string
	Region string
}

// SharedTuning holds settings applied to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32

	// Timeout bounds each completion HTTP call.
	Timeout time.Duration
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Groq   ProviderGroq
	OpenAI ProviderOpenAI
	Gemini ProviderGemini
	Ollama ProviderOllama
	Ark    ProviderArk

	// Tuning applies to every backend.
	Tuning SharedTuning
}

// Completer sends a message list to the model serving tier.
// Implementations must be safe to call from multiple goroutines and must
// wrap backend failures with rag.ErrServiceUnavailable.
type Completer interface {
	// Complete returns the model's full reply.
	Complete(ctx context.Context, tier Tier, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error)

	// Stream returns the model's reply as a stream of partial messages.
	Stream(ctx context.Context, tier Tier, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error)
}
