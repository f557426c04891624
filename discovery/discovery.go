package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Common discovery errors.
var (
	// ErrInvalidServiceName is returned for an empty service name.
	ErrInvalidServiceName = errors.New("discovery: invalid service name")
	// ErrRegistryUnavailable marks a registry that could not be queried.
	// It is never used for "no instances registered".
	ErrRegistryUnavailable = errors.New("discovery: registry unavailable")
	// ErrNoEndpoints is returned by selectors given an empty list.
	ErrNoEndpoints = errors.New("discovery: no endpoints")
)

// UnavailableError describes a failed registry query.
type UnavailableError struct {
	Provider string
	Service  string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("discovery: %s registry unavailable resolving %q: %v", e.Provider, e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports ErrRegistryUnavailable as a match.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrRegistryUnavailable
}

// Unavailable wraps a backend error as an *UnavailableError.
func Unavailable(provider, service string, err error) error {
	return &UnavailableError{Provider: provider, Service: service, Err: err}
}

// HealthStatus represents endpoint health as reported by the registry.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Endpoint is one registered instance of a service.
type Endpoint struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Address is a host name, an IP, or a full base URI such as
	// "https://api.internal:8443".
	Address  string            `json:"address"`
	Port     int               `json:"port,omitempty"`
	Scheme   string            `json:"scheme,omitempty"`
	Protocol string            `json:"protocol,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Health   HealthStatus      `json:"health,omitempty"`
	Weight   int               `json:"weight,omitempty"`
	LastSeen time.Time         `json:"last_seen"`
}

// BaseURI renders the endpoint as scheme://host[:port] without a trailing
// slash. An Address that already is a URI is returned as is.
func (e Endpoint) BaseURI() string {
	if strings.Contains(e.Address, "://") {
		return strings.TrimRight(e.Address, "/")
	}
	scheme := e.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + e.HostPort()
}

// HostPort returns host:port, or the bare host when no port is set. IPv6
// hosts are bracketed either way.
func (e Endpoint) HostPort() string {
	if e.Port <= 0 {
		if ip, err := netip.ParseAddr(e.Address); err == nil && ip.Is6() {
			return "[" + e.Address + "]"
		}
		return e.Address
	}
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// Resolver resolves a logical service name into the endpoints currently
// registered under it. Zero endpoints is not an error.
type Resolver interface {
	Resolve(ctx context.Context, serviceName string) ([]Endpoint, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, serviceName string) ([]Endpoint, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, serviceName string) ([]Endpoint, error) {
	return f(ctx, serviceName)
}

// Discovery is a Resolver that can also stream membership changes.
type Discovery interface {
	Resolver

	// Watch emits the current set of endpoints whenever membership changes.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context, serviceName string) (<-chan []Endpoint, error)

	// Close releases any resources held by the backend.
	Close() error
}

// ValidateServiceName rejects names no backend can resolve.
func ValidateServiceName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidServiceName
	}
	return nil
}
