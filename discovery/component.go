package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/relay/component"
	"github.com/kbukum/relay/logger"
)

// ProviderFactory creates a Registry and Discovery pair from a Config.
type ProviderFactory func(cfg Config, log *logger.Logger) (Registry, Discovery, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]ProviderFactory)
)

// RegisterProviderFactory makes a backend available under name. Backend
// packages call it from init.
func RegisterProviderFactory(name string, f ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers returns the registered backend names, sorted.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFactory(name string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Component builds the configured backend on Start, optionally registers
// this process, and exposes the resulting Client.
type Component struct {
	cfg       Config
	log       *logger.Logger
	registry  Registry
	discovery Discovery
	client    *Client
	selfID    string
	mu        sync.RWMutex
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a discovery Component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Component{cfg: cfg, log: log.WithComponent("discovery")}
}

// Name returns the component name.
func (c *Component) Name() string { return "discovery" }

// Client returns the discovery Client, or nil before Start.
func (c *Component) Client() *Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Registry returns the backend's Registry, or nil before Start.
func (c *Component) Registry() Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}

// Resolve implements Resolver through the Client.
func (c *Component) Resolve(ctx context.Context, serviceName string) ([]Endpoint, error) {
	client := c.Client()
	if client == nil {
		return nil, Unavailable(c.cfg.Provider, serviceName, errors.New("discovery component not started"))
	}
	return client.Resolve(ctx, serviceName)
}

// Start builds the backend and registers this process when enabled.
func (c *Component) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}
	f, ok := lookupFactory(c.cfg.Provider)
	if !ok {
		return fmt.Errorf("discovery: provider %q not registered", c.cfg.Provider)
	}

	reg, disc, err := f(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("discovery start: %w", err)
	}

	c.mu.Lock()
	c.registry = reg
	c.discovery = disc
	c.client = NewClient(disc, ClientConfig{Provider: c.cfg.Provider, Protocol: c.cfg.Protocol}, c.log)
	c.mu.Unlock()

	if c.cfg.Registration.Enabled {
		svc, err := c.selfInfo()
		if err != nil {
			return c.abandon(err)
		}
		if err := reg.Register(ctx, svc); err != nil {
			return c.abandon(fmt.Errorf("discovery: register self: %w", err))
		}
		c.mu.Lock()
		c.selfID = svc.ID
		c.mu.Unlock()
	}

	c.log.Info("discovery component started", map[string]interface{}{
		"provider": c.cfg.Provider,
		"self_id":  c.selfID,
	})
	return nil
}

// Stop deregisters this process and releases the backend.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.registry != nil && c.selfID != "" {
		if err := c.registry.Deregister(ctx, c.selfID); err != nil {
			c.log.Warn("failed to deregister on stop", logger.ErrorFields("deregister", err))
			errs = append(errs, err)
		}
		c.selfID = ""
	}
	errs = append(errs, c.closeBackend())
	return errors.Join(errs...)
}

// abandon releases a backend built by a Start that then failed. The
// registry never stops a component whose Start returned an error.
func (c *Component) abandon(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cerr := c.closeBackend(); cerr != nil {
		c.log.Warn("failed to close backend after failed start", logger.ErrorFields("close", cerr))
	}
	return err
}

// closeBackend closes the backend and forgets it. Callers hold c.mu.
func (c *Component) closeBackend() error {
	var errs []error
	if c.discovery != nil {
		errs = append(errs, c.discovery.Close())
	}
	if c.registry != nil && any(c.registry) != any(c.discovery) {
		errs = append(errs, c.registry.Close())
	}
	c.registry = nil
	c.discovery = nil
	c.client = nil
	return errors.Join(errs...)
}

// Health reports whether the backend is up and, when registration is
// enabled, whether this process is registered.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.discovery == nil:
		h.Status, h.Message = component.StatusUnhealthy, "discovery not initialized"
	case c.cfg.Registration.Enabled && c.registry.Stats().RegisteredServices == 0:
		h.Status, h.Message = component.StatusDegraded, "no services registered"
	default:
		h.Message = c.cfg.Provider
	}
	return h
}

// Describe returns the startup summary entry.
func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	if c.cfg.Registration.Enabled {
		details += " register=" + c.cfg.Registration.ServiceName
	}
	return component.Description{
		Name:    "Discovery",
		Type:    "discovery",
		Details: details,
		Port:    c.cfg.Registration.ServicePort,
	}
}

func (c *Component) selfInfo() (*ServiceInfo, error) {
	r := c.cfg.Registration
	addr := r.ServiceAddress
	if addr == "" {
		ip, err := localIP()
		if err != nil {
			return nil, fmt.Errorf("discovery: resolve local IP: %w", err)
		}
		addr = ip
	}
	id := r.ServiceID
	if id == "" {
		id = r.ServiceName + "-" + uuid.NewString()
	}
	return &ServiceInfo{
		ID:              id,
		Name:            r.ServiceName,
		Address:         addr,
		Port:            r.ServicePort,
		Scheme:          r.Scheme,
		Tags:            r.Tags,
		Metadata:        r.Metadata,
		Weight:          r.Weight,
		HealthCheckPath: r.HealthCheckPath,
	}, nil
}

// localIP returns the address of the interface used for outbound traffic.
// UDP dial sends no packets.
func localIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
