package server

import (
	"context"
	"fmt"
)

// pingFunc is the reachability check signature shared by the vector indexes and the
// SQLite store.
type pingFunc func(ctx context.Context) error

// DependencyPinger adapts any dependency with a Ping method (QdrantIndex,
// PgVectorIndex, SQLiteStore) to the Pinger interface.
type DependencyPinger struct {
	name string
	ping pingFunc
}

// NewDependencyPinger wraps ping under the readiness label name.
func NewDependencyPinger(name string, ping func(ctx context.Context) error) *DependencyPinger {
	return &DependencyPinger{name: name, ping: ping}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping runs the wrapped check.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
