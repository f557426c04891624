package consumer

import (
	"fmt"

	"github.com/kbukum/relay/config"
	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/dispatch"
	"github.com/kbukum/relay/httpclient"
	"github.com/kbukum/relay/observability"
	"github.com/kbukum/relay/server"
)

// DefaultPort is the consumer's listen port.
const DefaultPort = 8081

// Config is the consumer configuration, loaded from cmd/consumer/config.yml.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Discovery     discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
	Dispatch      dispatch.Config      `yaml:"dispatch" mapstructure:"dispatch"`
	HTTPClient    httpclient.Config    `yaml:"http_client" mapstructure:"http_client"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "consumer"
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	c.Server.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.Dispatch.ApplyDefaults()
	if c.HTTPClient.Name == "" {
		c.HTTPClient.Name = c.Dispatch.TargetService
	}
	c.HTTPClient.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if err := c.HTTPClient.Validate(); err != nil {
		return fmt.Errorf("http_client: %w", err)
	}
	return c.Observability.Validate()
}
