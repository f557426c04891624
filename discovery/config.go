package discovery

import (
	"fmt"
	"slices"
	"time"
)

// Provider names.
const (
	ProviderStatic = "static"
	ProviderConsul = "consul"
	ProviderEtcd   = "etcd"
	ProviderRedis  = "redis"
)

// Config holds service discovery and registration configuration.
type Config struct {
	// Provider selects the backend: static, consul, etcd or redis.
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Protocol, when set, keeps only endpoints speaking this protocol.
	Protocol string `yaml:"protocol" mapstructure:"protocol"`

	// StaticEndpoints seeds the static provider.
	StaticEndpoints []StaticEndpoint `yaml:"static_endpoints" mapstructure:"static_endpoints"`

	Consul ConsulConfig `yaml:"consul" mapstructure:"consul"`
	Etcd   EtcdConfig   `yaml:"etcd" mapstructure:"etcd"`
	Redis  RedisConfig  `yaml:"redis" mapstructure:"redis"`

	// Registration announces this process under a service name.
	Registration RegistrationConfig `yaml:"registration" mapstructure:"registration"`
}

// StaticEndpoint describes a statically configured service endpoint.
type StaticEndpoint struct {
	ID       string            `yaml:"id" mapstructure:"id"`
	Name     string            `yaml:"name" mapstructure:"name"`
	Address  string            `yaml:"address" mapstructure:"address"`
	Port     int               `yaml:"port" mapstructure:"port"`
	Scheme   string            `yaml:"scheme" mapstructure:"scheme"`
	Protocol string            `yaml:"protocol" mapstructure:"protocol"`
	Tags     []string          `yaml:"tags" mapstructure:"tags"`
	Metadata map[string]string `yaml:"metadata" mapstructure:"metadata"`
	Weight   int               `yaml:"weight" mapstructure:"weight"`
}

// ConsulConfig holds Consul agent settings.
type ConsulConfig struct {
	Address    string `yaml:"address" mapstructure:"address"`
	Scheme     string `yaml:"scheme" mapstructure:"scheme"`
	Datacenter string `yaml:"datacenter" mapstructure:"datacenter"`
	Token      string `yaml:"token" mapstructure:"token"`
	// WaitTime bounds one blocking query of Watch.
	WaitTime time.Duration `yaml:"wait_time" mapstructure:"wait_time"`
}

// EtcdConfig holds etcd v3 settings.
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints" mapstructure:"endpoints"`
	Username    string        `yaml:"username" mapstructure:"username"`
	Password    string        `yaml:"password" mapstructure:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	// Prefix is the key namespace: {prefix}/{service}/{id}.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// LeaseTTL is the registration lease; keys vanish this long after the
	// registering process dies.
	LeaseTTL time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	// Prefix is the hash key namespace: {prefix}:{service}.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// InstanceTTL is how long an instance stays visible without a heartbeat.
	InstanceTTL time.Duration `yaml:"instance_ttl" mapstructure:"instance_ttl"`
	// HeartbeatInterval is how often registered instances refresh themselves
	// and how often Watch polls.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
}

// RegistrationConfig describes the instance this process registers.
type RegistrationConfig struct {
	Enabled             bool              `yaml:"enabled" mapstructure:"enabled"`
	ServiceName         string            `yaml:"service_name" mapstructure:"service_name"`
	ServiceID           string            `yaml:"service_id" mapstructure:"service_id"`
	ServiceAddress      string            `yaml:"service_address" mapstructure:"service_address"`
	ServicePort         int               `yaml:"service_port" mapstructure:"service_port"`
	Scheme              string            `yaml:"scheme" mapstructure:"scheme"`
	Tags                []string          `yaml:"tags" mapstructure:"tags"`
	Metadata            map[string]string `yaml:"metadata" mapstructure:"metadata"`
	Weight              int               `yaml:"weight" mapstructure:"weight"`
	HealthCheckPath     string            `yaml:"health_check_path" mapstructure:"health_check_path"`
	HealthCheckInterval time.Duration     `yaml:"health_check_interval" mapstructure:"health_check_interval"`
	HealthCheckTimeout  time.Duration     `yaml:"health_check_timeout" mapstructure:"health_check_timeout"`
	DeregisterAfter     time.Duration     `yaml:"deregister_after" mapstructure:"deregister_after"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderStatic
	}

	if c.Consul.Address == "" {
		c.Consul.Address = "localhost:8500"
	}
	if c.Consul.Scheme == "" {
		c.Consul.Scheme = "http"
	}
	if c.Consul.WaitTime == 0 {
		c.Consul.WaitTime = 30 * time.Second
	}

	if len(c.Etcd.Endpoints) == 0 {
		c.Etcd.Endpoints = []string{"localhost:2379"}
	}
	if c.Etcd.DialTimeout == 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.Etcd.Prefix == "" {
		c.Etcd.Prefix = "/relay/services"
	}
	if c.Etcd.LeaseTTL == 0 {
		c.Etcd.LeaseTTL = 10 * time.Second
	}

	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "relay:services"
	}
	if c.Redis.InstanceTTL == 0 {
		c.Redis.InstanceTTL = 30 * time.Second
	}
	if c.Redis.HeartbeatInterval == 0 {
		c.Redis.HeartbeatInterval = c.Redis.InstanceTTL / 3
	}

	r := &c.Registration
	if r.Scheme == "" {
		r.Scheme = "http"
	}
	if r.HealthCheckPath == "" {
		r.HealthCheckPath = "/health"
	}
	if r.HealthCheckInterval == 0 {
		r.HealthCheckInterval = 10 * time.Second
	}
	if r.HealthCheckTimeout == 0 {
		r.HealthCheckTimeout = 5 * time.Second
	}
	if r.DeregisterAfter == 0 {
		r.DeregisterAfter = time.Minute
	}
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	if !slices.Contains(Providers(), c.Provider) {
		return fmt.Errorf("discovery.provider %q is not registered (available: %v)", c.Provider, Providers())
	}
	for i, ep := range c.StaticEndpoints {
		if ep.Name == "" || ep.Address == "" {
			return fmt.Errorf("discovery.static_endpoints[%d]: name and address are required", i)
		}
	}
	switch c.Provider {
	case ProviderEtcd:
		if c.Etcd.LeaseTTL < time.Second {
			return fmt.Errorf("discovery.etcd.lease_ttl must be at least 1s")
		}
	case ProviderRedis:
		if c.Redis.HeartbeatInterval <= 0 || c.Redis.HeartbeatInterval >= c.Redis.InstanceTTL {
			return fmt.Errorf("discovery.redis.heartbeat_interval must be positive and below instance_ttl")
		}
	}
	if c.Registration.Enabled {
		if err := ValidateServiceName(c.Registration.ServiceName); err != nil {
			return fmt.Errorf("discovery.registration.service_name is required")
		}
		if c.Registration.ServicePort <= 0 {
			return fmt.Errorf("discovery.registration.service_port must be > 0")
		}
	}
	return nil
}

// Endpoints converts the static entries into endpoints.
func (c *Config) Endpoints(now time.Time) []Endpoint {
	out := make([]Endpoint, 0, len(c.StaticEndpoints))
	for _, se := range c.StaticEndpoints {
		id := se.ID
		if id == "" {
			id = fmt.Sprintf("%s-%s-%d", se.Name, se.Address, se.Port)
		}
		info := ServiceInfo{
			ID: id, Name: se.Name, Address: se.Address, Port: se.Port, Scheme: se.Scheme,
			Protocol: se.Protocol, Tags: se.Tags, Metadata: se.Metadata, Weight: se.Weight,
		}
		out = append(out, info.Endpoint(now))
	}
	return out
}
