package dispatch

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/validation"
)

const (
	DefaultRouteTemplate   = "/hello/{path}"
	DefaultResolveTimeout  = 5 * time.Second
	DefaultForwardTimeout  = 10 * time.Second
	DefaultNotFoundMessage = "not find provider"
	DefaultTargetService   = "provider"
)

// Config configures a Dispatcher.
type Config struct {
	// TargetService is the logical name inbound calls are forwarded to.
	TargetService string `yaml:"target_service" mapstructure:"target_service" validate:"required,service_name"`
	// RouteTemplate is appended to the endpoint base URI. {path} and
	// {param} placeholders are replaced by path-escaped values.
	RouteTemplate string `yaml:"route_template" mapstructure:"route_template" validate:"required,startswith=/"`
	// Strategy picks the endpoint among the resolved ones.
	Strategy discovery.LoadBalancingStrategy `yaml:"strategy" mapstructure:"strategy"`
	// ResolveTimeout bounds one registry lookup.
	ResolveTimeout time.Duration `yaml:"resolve_timeout" mapstructure:"resolve_timeout" validate:"gt=0"`
	// ForwardTimeout bounds one forwarded call including its body.
	ForwardTimeout time.Duration `yaml:"forward_timeout" mapstructure:"forward_timeout" validate:"gt=0"`
	// NotFoundMessage is the body returned when no instance is registered.
	NotFoundMessage string `yaml:"not_found_message" mapstructure:"not_found_message"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.TargetService == "" {
		c.TargetService = DefaultTargetService
	}
	if c.RouteTemplate == "" {
		c.RouteTemplate = DefaultRouteTemplate
	}
	if c.Strategy == "" {
		c.Strategy = discovery.StrategyFirst
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = DefaultResolveTimeout
	}
	if c.ForwardTimeout <= 0 {
		c.ForwardTimeout = DefaultForwardTimeout
	}
	if c.NotFoundMessage == "" {
		c.NotFoundMessage = DefaultNotFoundMessage
	}
}

// Validate checks field constraints and the strategy name.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if !slices.Contains(discovery.Strategies, c.Strategy) {
		return fmt.Errorf("dispatch.strategy %q is not one of %v", c.Strategy, discovery.Strategies)
	}
	return nil
}
