package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docai-go/internal/rag"
)

// Router implements Completer over one primary backend plus an optional
// dedicated Gemini model for SVG generation.
type Router struct {
	// backend is the primary backend, for logs.
	backend Backend

	// primary serves every tier without a dedicated model.
	primary model.BaseChatModel

	// svg serves TierSVG when a Gemini key is configured. May be nil.
	svg model.BaseChatModel

	// names maps each tier to the model name sent with the request.
	names map[Tier]string

	// timeout bounds Complete calls. Zero disables it.
	timeout time.Duration
}

// NewRouter builds a Router around an already-constructed model. It is the
// seam tests and embedders of this package use to supply their own model.
func NewRouter(backend Backend, primary model.BaseChatModel, names map[Tier]string, timeout time.Duration) *Router {
	if names == nil {
		names = map[Tier]string{}
	}
	return &Router{backend: backend, primary: primary, names: names, timeout: timeout}
}

// Backend returns the primary backend name.
func (r *Router) Backend() Backend { return r.backend }

// ModelName returns the model name that serves tier.
func (r *Router) ModelName(tier Tier) string {
	if n, ok := r.names[tier]; ok {
		return n
	}
	return r.names[TierDefault]
}

// Complete sends msgs to the model serving tier and returns its reply.
func (r *Router) Complete(ctx context.Context, tier Tier, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cm, opts := r.route(tier, opts)
	msg, err := cm.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, rag.Unavailable(fmt.Sprintf("provider: %s completion", tier), err)
	}
	return msg, nil
}

// Stream sends msgs to the model serving tier and returns the reply stream.
// The caller must Close the reader. Stream lifetime is bounded by ctx only.
func (r *Router) Stream(ctx context.Context, tier Tier, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	cm, opts := r.route(tier, opts)
	sr, err := cm.Stream(ctx, msgs, opts...)
	if err != nil {
		return nil, rag.Unavailable(fmt.Sprintf("provider: %s stream", tier), err)
	}
	return sr, nil
}

// route picks the model for tier and prepends the tier's model name to opts,
// so caller-supplied options still take precedence.
func (r *Router) route(tier Tier, opts []model.Option) (model.BaseChatModel, []model.Option) {
	cm := r.primary
	if tier == TierSVG && r.svg != nil {
		cm = r.svg
	}
	if name := r.ModelName(tier); name != "" {
		opts = append([]model.Option{model.WithModel(name)}, opts...)
	}
	return cm, opts
}
