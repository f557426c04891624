package httpclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/relay/component"
	"github.com/kbukum/relay/logger"
)

// Component builds the Client on Start and releases its idle connections
// on Stop.
type Component struct {
	config Config
	log    *logger.Logger
	mu     sync.RWMutex
	client *Client
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates an HTTP client component. The client is created in
// Start.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Component{config: cfg, log: log}
}

// Name returns the component name.
func (c *Component) Name() string { return "httpclient." + c.config.Name }

// Start creates the client.
func (c *Component) Start(_ context.Context) error {
	client, err := New(c.config, WithLogger(c.log))
	if err != nil {
		return fmt.Errorf("httpclient %s: %w", c.config.Name, err)
	}
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Stop closes idle connections.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	return nil
}

// Health reports healthy once the client exists.
func (c *Component) Health(_ context.Context) component.Health {
	if c.Client() == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns the startup summary entry.
func (c *Component) Describe() component.Description {
	details := "timeout=" + c.config.Timeout.String()
	if c.config.TLS.IsEnabled() {
		details += " tls"
	}
	return component.Description{Name: "HTTP client", Type: "httpclient", Details: details}
}

// Client returns the client, or nil before Start.
func (c *Component) Client() *Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Do performs req on the started client. Callers may hold the component
// before Start; calls made before Start fail with a connection error.
func (c *Component) Do(ctx context.Context, req Request) (*Response, error) {
	client := c.Client()
	if client == nil {
		return nil, NewConnectionError(fmt.Errorf("httpclient %s: not started", c.config.Name))
	}
	return client.Do(ctx, req)
}
