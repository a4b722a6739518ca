package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/docai-go/internal/provider"
)

// Sampling temperatures for the search operations.
const (
	codeSearchTemperature = 0.5
	docSearchTemperature  = 0.3
)

// thinkBlock matches reasoning-model scratchpads.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>…</think> blocks and surrounding whitespace.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// searchTier routes deep-think searches to the reasoning model.
func searchTier(deepThink bool) provider.Tier {
	if deepThink {
		return provider.TierReasoning
	}
	return provider.TierSearch
}

// SearchCode asks for a production-ready code answer to query in language.
func (a *Assistant) SearchCode(ctx context.Context, language, query string, deepThink bool) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyPrompt
	}
	out, err := a.complete(ctx, searchTier(deepThink), codeSearchPrompt(language, query), model.WithTemperature(codeSearchTemperature))
	if err != nil {
		return "", fmt.Errorf("assistant: search code: %w", err)
	}
	return out, nil
}

// SearchDocs asks for a documentation-style explanation of query.
func (a *Assistant) SearchDocs(ctx context.Context, query string, deepThink bool) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyPrompt
	}
	out, err := a.complete(ctx, searchTier(deepThink), docSearchPrompt(query), model.WithTemperature(docSearchTemperature))
	if err != nil {
		return "", fmt.Errorf("assistant: search docs: %w", err)
	}
	return out, nil
}

// RefineText cleans up OCR output with the reasoning model. Reasoning
// scratchpads are stripped; an empty reply yields the input unchanged.
func (a *Assistant) RefineText(ctx context.Context, text string) (string, error) {
	out, err := a.complete(ctx, provider.TierReasoning, ocrRefinePrompt(text))
	if err != nil {
		return "", fmt.Errorf("assistant: refine text: %w", err)
	}
	if out == "" {
		out = text
	}
	return StripThinking(out), nil
}
