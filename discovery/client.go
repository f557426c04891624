package discovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kbukum/relay/logger"
)

// ClientConfig configures the discovery Client.
type ClientConfig struct {
	// Provider names the backend in errors and logs.
	Provider string
	// Protocol, when set, keeps only endpoints speaking this protocol.
	Protocol string
	// IncludeUnhealthy disables health filtering.
	IncludeUnhealthy bool
}

// Client adds name validation, health filtering and error classification
// on top of a Discovery backend. It holds no state between calls.
type Client struct {
	discovery Discovery
	cfg       ClientConfig
	log       *logger.Logger
}

// NewClient creates a Client that wraps the given Discovery backend.
func NewClient(disc Discovery, cfg ClientConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{discovery: disc, cfg: cfg, log: log}
}

var _ Discovery = (*Client)(nil)

// Resolve returns the usable endpoints of serviceName in registry order.
// Backend failures that are not already classified are reported as
// ErrRegistryUnavailable.
func (c *Client) Resolve(ctx context.Context, serviceName string) ([]Endpoint, error) {
	if err := ValidateServiceName(serviceName); err != nil {
		return nil, err
	}

	start := time.Now()
	endpoints, err := c.discovery.Resolve(ctx, serviceName)
	if err != nil {
		if !errors.Is(err, ErrRegistryUnavailable) && !errors.Is(err, ErrInvalidServiceName) {
			err = Unavailable(c.cfg.Provider, serviceName, err)
		}
		c.log.WithContext(ctx).Warn("resolve failed", map[string]interface{}{
			logger.FieldService: serviceName,
			"provider":          c.cfg.Provider,
			logger.FieldError:   err.Error(),
		})
		return nil, err
	}

	filtered := c.filter(endpoints)
	c.log.WithContext(ctx).Debug("resolved", map[string]interface{}{
		logger.FieldService:  serviceName,
		"registered":         len(endpoints),
		"usable":             len(filtered),
		logger.FieldDuration: time.Since(start).Milliseconds(),
	})
	return filtered, nil
}

// Watch streams filtered membership changes.
func (c *Client) Watch(ctx context.Context, serviceName string) (<-chan []Endpoint, error) {
	if err := ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	src, err := c.discovery.Watch(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	out := make(chan []Endpoint, 1)
	go func() {
		defer close(out)
		for eps := range src {
			select {
			case out <- c.filter(eps):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close closes the wrapped backend.
func (c *Client) Close() error {
	return c.discovery.Close()
}

func (c *Client) filter(endpoints []Endpoint) []Endpoint {
	out := make([]Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if !c.cfg.IncludeUnhealthy && ep.Health == HealthUnhealthy {
			continue
		}
		if c.cfg.Protocol != "" && !speaks(ep, c.cfg.Protocol) {
			continue
		}
		out = append(out, ep)
	}
	return out
}

// speaks matches the Protocol field first, then "protocol:x" or "x" tags.
func speaks(ep Endpoint, protocol string) bool {
	if strings.EqualFold(ep.Protocol, protocol) {
		return true
	}
	p := strings.ToLower(protocol)
	for _, t := range ep.Tags {
		tl := strings.ToLower(t)
		if tl == p || tl == "protocol:"+p {
			return true
		}
	}
	return false
}
