// Package providers defines the gateway contract every cloud backend
// implements and a registry the scheduler opens gateways through. The
// engine core never imports a cloud SDK; each backend registers itself
// from its init function.
package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/frugalcloud/sweeper/costs"
	"github.com/frugalcloud/sweeper/types"
)

// Gateway is one authenticated session against a cloud account unit.
// All listing methods return provider-neutral descriptors; identifiers
// are raw and normalized later by the scan pipeline.
type Gateway interface {
	// Name is the registered provider name.
	Name() string
	// AccountUnit is the subscription, project or account the gateway
	// is bound to.
	AccountUnit() string
	// ListResources returns every resource in scope for classification.
	ListResources(ctx context.Context) ([]types.Resource, error)
	// ListCosts returns per-resource cost rows over the window.
	ListCosts(ctx context.Context, window costs.Window) ([]costs.Row, error)
	// GetMetric returns utilization samples for one resource and metric
	// over the window. A nil slice with nil error means no data.
	GetMetric(ctx context.Context, r types.Resource, metric string, window costs.Window) ([]float64, error)
	// ListRelations returns one dependency set for orphan detection.
	ListRelations(ctx context.Context, kind types.RelationKind) ([]types.Relation, error)
}

// Factory opens a gateway against one environment using resolved
// credentials.
type Factory func(ctx context.Context, env types.Environment, creds types.Credentials) (Gateway, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register installs a gateway factory under a provider name. Called
// from backend init functions; later registrations replace earlier ones.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Open creates a gateway for the environment's provider.
func Open(ctx context.Context, env types.Environment, creds types.Credentials) (Gateway, error) {
	mu.RLock()
	factory, ok := factories[env.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", env.Provider)
	}
	return factory(ctx, env, creds)
}

// Names returns the registered provider names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
