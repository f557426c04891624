package provider

import (
	"github.com/kbukum/relay/config"
	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/observability"
	"github.com/kbukum/relay/server"
)

// Config is the provider configuration, loaded from cmd/provider/config.yml.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Discovery     discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section. The registration defaults to the
// service name and the server port.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "provider"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()

	reg := &c.Discovery.Registration
	if reg.ServiceName == "" {
		reg.ServiceName = c.Name
	}
	if reg.ServicePort == 0 {
		reg.ServicePort = c.Server.Port
	}
	c.Discovery.ApplyDefaults()
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
	return c.Observability.Validate()
}
