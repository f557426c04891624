package discovery

import (
	"context"
	"fmt"
	"time"
)

// ServiceInfo describes an instance to register.
type ServiceInfo struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Scheme   string
	Protocol string
	Tags     []string
	Metadata map[string]string
	Weight   int
	// HealthCheckPath, when set, lets backends with active checks (consul)
	// poll the instance.
	HealthCheckPath string
}

// Validate checks the fields every backend needs.
func (s *ServiceInfo) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("discovery: service id is required")
	}
	if err := ValidateServiceName(s.Name); err != nil {
		return err
	}
	if s.Address == "" {
		return fmt.Errorf("discovery: service address is required")
	}
	return nil
}

// Endpoint converts the registration into the Endpoint resolvers return.
func (s *ServiceInfo) Endpoint(now time.Time) Endpoint {
	weight := s.Weight
	if weight <= 0 {
		weight = 1
	}
	return Endpoint{
		ID:       s.ID,
		Name:     s.Name,
		Address:  s.Address,
		Port:     s.Port,
		Scheme:   s.Scheme,
		Protocol: s.Protocol,
		Tags:     s.Tags,
		Metadata: s.Metadata,
		Health:   HealthHealthy,
		Weight:   weight,
		LastSeen: now,
	}
}

// Registry is the registration side of a backend.
type Registry interface {
	// Register announces a service instance.
	Register(ctx context.Context, service *ServiceInfo) error

	// Deregister removes a service instance by ID.
	Deregister(ctx context.Context, serviceID string) error

	// Stats reports what this process has registered.
	Stats() RegistryStats

	// Close releases any resources held by the registry.
	Close() error
}

// RegistryStats holds registration counters of one process.
type RegistryStats struct {
	RegisteredServices int
	LastHeartbeat      time.Time
}
