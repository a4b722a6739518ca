// Package budget keeps a chat turn inside the completion model's context
// window. Token counts are estimated with a character heuristic
// (1 token ≈ 4 characters) because the configured backends use different
// tokenizers and none of them expose a local counting API.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role/framing tokens each message costs.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input budget. Retrieved document
	// context can be large, so the budget targets 8k-context models and leaves
	// headroom for the reply.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated token count of msgs, role and content included.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory drops the oldest history turns until fixed + history fits in
// maxTokens. fixed holds the messages that are always sent (document context
// and the current prompt).
//
// After trimming, history never starts with an assistant message: a reply
// whose question was dropped is dropped with it. If fixed alone exceeds the
// budget the result is empty; fixed is never trimmed.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	for len(history) > 0 && history[0].Role == schema.Assistant {
		history = history[1:]
	}
	return history
}

// Overflow reports how many estimated tokens fixed exceeds maxTokens by, or
// zero when it fits. Callers log a warning when this is non-zero.
func Overflow(fixed []*schema.Message, maxTokens int) int {
	if n := EstimateMessages(fixed) - maxTokens; n > 0 {
		return n
	}
	return 0
}
