// Package static provides an in-memory discovery backend seeded from
// configuration. Instances registered at runtime are added to the same table.
package static

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/logger"
)

// Provider implements discovery.Registry and discovery.Discovery on an
// in-memory table. Resolve returns endpoints in insertion order.
type Provider struct {
	mu        sync.RWMutex
	instances map[string][]discovery.Endpoint // keyed by service name
	watchers  map[string][]chan []discovery.Endpoint
	owned     int
	lastBeat  time.Time
	now       func() time.Time
}

func init() {
	discovery.RegisterProviderFactory(discovery.ProviderStatic, func(cfg discovery.Config, _ *logger.Logger) (discovery.Registry, discovery.Discovery, error) {
		p := NewProvider(cfg.Endpoints(time.Now())...)
		return p, p, nil
	})
}

// NewProvider creates a Provider holding the given endpoints.
func NewProvider(endpoints ...discovery.Endpoint) *Provider {
	p := &Provider{
		instances: make(map[string][]discovery.Endpoint),
		watchers:  make(map[string][]chan []discovery.Endpoint),
		now:       time.Now,
	}
	for _, ep := range endpoints {
		p.instances[ep.Name] = append(p.instances[ep.Name], ep)
	}
	return p
}

// Register adds or replaces a service instance.
func (p *Provider) Register(_ context.Context, svc *discovery.ServiceInfo) error {
	if err := svc.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ep := svc.Endpoint(p.now())
	list := p.instances[svc.Name]
	replaced := false
	for i := range list {
		if list[i].ID == svc.ID {
			list[i] = ep
			replaced = true
			break
		}
	}
	if !replaced {
		p.instances[svc.Name] = append(list, ep)
		p.owned++
	}
	p.lastBeat = ep.LastSeen
	p.notifyLocked(svc.Name)
	return nil
}

// Deregister removes a service instance by ID. Unknown IDs are ignored.
func (p *Provider) Deregister(_ context.Context, serviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, list := range p.instances {
		for i, inst := range list {
			if inst.ID != serviceID {
				continue
			}
			p.instances[name] = append(list[:i:i], list[i+1:]...)
			if p.owned > 0 {
				p.owned--
			}
			p.notifyLocked(name)
			return nil
		}
	}
	return nil
}

// Stats reports instances registered through Register.
func (p *Provider) Stats() discovery.RegistryStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return discovery.RegistryStats{RegisteredServices: p.owned, LastHeartbeat: p.lastBeat}
}

// Resolve returns a copy of the instances registered under serviceName.
func (p *Provider) Resolve(_ context.Context, serviceName string) ([]discovery.Endpoint, error) {
	if err := discovery.ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked(serviceName), nil
}

// Watch emits the current instances immediately and again after every
// Register or Deregister touching serviceName.
func (p *Provider) Watch(ctx context.Context, serviceName string) (<-chan []discovery.Endpoint, error) {
	if err := discovery.ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	ch := make(chan []discovery.Endpoint, 1)

	p.mu.Lock()
	ch <- p.snapshotLocked(serviceName)
	p.watchers[serviceName] = append(p.watchers[serviceName], ch)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		list := p.watchers[serviceName]
		for i, w := range list {
			if w == ch {
				p.watchers[serviceName] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// Close is a no-op for the static provider.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) snapshotLocked(serviceName string) []discovery.Endpoint {
	list := p.instances[serviceName]
	out := make([]discovery.Endpoint, len(list))
	copy(out, list)
	return out
}

// notifyLocked replaces any unread update with the latest snapshot.
func (p *Provider) notifyLocked(serviceName string) {
	for _, ch := range p.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- p.snapshotLocked(serviceName)
	}
}

// Compile-time checks.
var (
	_ discovery.Registry  = (*Provider)(nil)
	_ discovery.Discovery = (*Provider)(nil)
)
