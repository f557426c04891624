package testutil

import (
	"context"
	"sync"

	"github.com/kbukum/relay/discovery"
)

// Resolver is an in-memory discovery.Resolver whose answers are set by the
// test. Unknown services resolve to an empty list.
type Resolver struct {
	mu        sync.Mutex
	endpoints map[string][]discovery.Endpoint
	failures  map[string]error
	calls     map[string]int
}

var _ discovery.Resolver = (*Resolver)(nil)

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		endpoints: make(map[string][]discovery.Endpoint),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Set replaces the endpoints of serviceName and clears any failure.
func (r *Resolver) Set(serviceName string, endpoints ...discovery.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[serviceName] = endpoints
	delete(r.failures, serviceName)
}

// Fail makes Resolve of serviceName report the registry as unavailable,
// wrapping err.
func (r *Resolver) Fail(serviceName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[serviceName] = discovery.Unavailable("test", serviceName, err)
}

// Calls reports how many times serviceName was resolved.
func (r *Resolver) Calls(serviceName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[serviceName]
}

// Resolve implements discovery.Resolver. It honors ctx cancellation.
func (r *Resolver) Resolve(ctx context.Context, serviceName string) ([]discovery.Endpoint, error) {
	if err := discovery.ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[serviceName]++
	if err := ctx.Err(); err != nil {
		return nil, discovery.Unavailable("test", serviceName, err)
	}
	if err := r.failures[serviceName]; err != nil {
		return nil, err
	}
	out := make([]discovery.Endpoint, len(r.endpoints[serviceName]))
	copy(out, r.endpoints[serviceName])
	return out, nil
}
