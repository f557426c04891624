// Package consul implements the discovery backend on HashiCorp Consul.
// Resolve returns the passing instances of a service in catalog order.
package consul

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/logger"
)

// Provider implements both discovery.Registry and discovery.Discovery using HashiCorp Consul.
type Provider struct {
	mu     sync.RWMutex
	client *api.Client
	cfg    discovery.Config
	log    *logger.Logger
	stats  discovery.RegistryStats
}

func init() {
	discovery.RegisterProviderFactory(discovery.ProviderConsul, func(cfg discovery.Config, log *logger.Logger) (discovery.Registry, discovery.Discovery, error) {
		p, err := NewProvider(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	})
}

// NewProvider creates a Provider from the given Config.
func NewProvider(cfg discovery.Config, log *logger.Logger) (*Provider, error) {
	cfg.ApplyDefaults()
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Consul.Address
	apiCfg.Scheme = cfg.Consul.Scheme
	apiCfg.Token = cfg.Consul.Token
	if cfg.Consul.Datacenter != "" {
		apiCfg.Datacenter = cfg.Consul.Datacenter
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Provider{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("discovery.consul"),
	}, nil
}

// --- Registry implementation ---

// Register registers a service instance with the local Consul agent. When
// the instance has a health check path an HTTP check is attached.
func (c *Provider) Register(ctx context.Context, service *discovery.ServiceInfo) error {
	if err := service.Validate(); err != nil {
		return err
	}
	meta := make(map[string]string, len(service.Metadata)+3)
	for k, v := range service.Metadata {
		meta[k] = v
	}
	if service.Scheme != "" {
		meta["scheme"] = service.Scheme
	}
	if service.Protocol != "" {
		meta["protocol"] = service.Protocol
	}
	if service.Weight > 0 {
		meta["weight"] = strconv.Itoa(service.Weight)
	}

	reg := &api.AgentServiceRegistration{
		ID:      service.ID,
		Name:    service.Name,
		Address: service.Address,
		Port:    service.Port,
		Tags:    service.Tags,
		Meta:    meta,
	}

	if service.HealthCheckPath != "" {
		rc := c.cfg.Registration
		ep := service.Endpoint(time.Now())
		reg.Check = &api.AgentServiceCheck{
			HTTP:                           ep.BaseURI() + service.HealthCheckPath,
			Interval:                       rc.HealthCheckInterval.String(),
			Timeout:                        rc.HealthCheckTimeout.String(),
			DeregisterCriticalServiceAfter: rc.DeregisterAfter.String(),
		}
	}

	opts := api.ServiceRegisterOpts{}.WithContext(ctx)
	if err := c.client.Agent().ServiceRegisterOpts(reg, opts); err != nil {
		c.log.Error("failed to register service", logger.Fields("service_id", service.ID, logger.FieldError, err.Error()))
		return fmt.Errorf("consul register %q: %w", service.Name, err)
	}

	c.mu.Lock()
	c.stats.RegisteredServices++
	c.stats.LastHeartbeat = time.Now()
	c.mu.Unlock()

	c.log.Info("service registered", map[string]interface{}{
		"service_id": service.ID, "address": service.Address, "port": service.Port,
	})
	return nil
}

// Deregister removes a service instance from Consul.
func (c *Provider) Deregister(ctx context.Context, serviceID string) error {
	q := (&api.QueryOptions{}).WithContext(ctx)
	if err := c.client.Agent().ServiceDeregisterOpts(serviceID, q); err != nil {
		return fmt.Errorf("consul deregister %q: %w", serviceID, err)
	}

	c.mu.Lock()
	if c.stats.RegisteredServices > 0 {
		c.stats.RegisteredServices--
	}
	c.mu.Unlock()

	c.log.Info("service deregistered", map[string]interface{}{"service_id": serviceID})
	return nil
}

// Stats returns current registry statistics.
func (c *Provider) Stats() discovery.RegistryStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// --- Discovery implementation ---

// Resolve queries Consul for the passing instances of serviceName.
func (c *Provider) Resolve(ctx context.Context, serviceName string) ([]discovery.Endpoint, error) {
	if err := discovery.ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	q := (&api.QueryOptions{}).WithContext(ctx)
	entries, _, err := c.client.Health().Service(serviceName, "", true, q)
	if err != nil {
		return nil, discovery.Unavailable(discovery.ProviderConsul, serviceName, err)
	}
	return toEndpoints(entries), nil
}

// Watch runs blocking queries and emits whenever the Consul index moves.
func (c *Provider) Watch(ctx context.Context, serviceName string) (<-chan []discovery.Endpoint, error) {
	if err := discovery.ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	ch := make(chan []discovery.Endpoint, 1)

	go func() {
		defer close(ch)
		var lastIndex uint64
		for ctx.Err() == nil {
			q := (&api.QueryOptions{
				WaitIndex: lastIndex,
				WaitTime:  c.cfg.Consul.WaitTime,
			}).WithContext(ctx)

			entries, meta, err := c.client.Health().Service(serviceName, "", true, q)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warn("consul watch error", map[string]interface{}{
					"service": serviceName, "error": err.Error(),
				})
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			if meta.LastIndex == lastIndex {
				continue
			}
			// Consul indexes may go backwards after a snapshot restore.
			if meta.LastIndex < lastIndex {
				lastIndex = 0
				continue
			}
			lastIndex = meta.LastIndex

			select {
			case ch <- toEndpoints(entries):
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close is a no-op; the HTTP client does not require explicit closing.
func (c *Provider) Close() error {
	return nil
}

func toEndpoints(entries []*api.ServiceEntry) []discovery.Endpoint {
	now := time.Now()
	out := make([]discovery.Endpoint, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEndpoint(e, now))
	}
	return out
}

func toEndpoint(e *api.ServiceEntry, now time.Time) discovery.Endpoint {
	health := discovery.HealthHealthy
	for _, chk := range e.Checks {
		if chk.Status != api.HealthPassing {
			health = discovery.HealthUnhealthy
			break
		}
	}

	// An empty service address means "use the node address".
	addr := e.Service.Address
	if addr == "" && e.Node != nil {
		addr = e.Node.Address
	}

	protocol := e.Service.Meta["protocol"]
	if protocol == "" {
		for _, tag := range e.Service.Tags {
			if tag == "http" || tag == "grpc" || tag == "websocket" {
				protocol = tag
				break
			}
		}
	}

	weight, _ := strconv.Atoi(e.Service.Meta["weight"])

	return discovery.Endpoint{
		ID:       e.Service.ID,
		Name:     e.Service.Service,
		Address:  addr,
		Port:     e.Service.Port,
		Scheme:   e.Service.Meta["scheme"],
		Protocol: protocol,
		Tags:     e.Service.Tags,
		Metadata: e.Service.Meta,
		Health:   health,
		Weight:   weight,
		LastSeen: now,
	}
}

// Compile-time checks.
var (
	_ discovery.Registry  = (*Provider)(nil)
	_ discovery.Discovery = (*Provider)(nil)
)
