package bootstrap

import (
	"context"
	"time"

	"github.com/kbukum/relay/component"
	"github.com/kbukum/relay/logger"
)

// ComponentSummary is one line of the startup summary.
type ComponentSummary struct {
	Name    string
	Type    string
	Details string
	Port    int
	Status  component.HealthStatus
	Message string
}

// Summary is what the application logs once it is ready.
type Summary struct {
	Service    string
	Version    string
	Startup    time.Duration
	Components []ComponentSummary
	Overall    component.HealthStatus
}

// BuildSummary collects descriptions and live health from the registry in
// registration order.
func BuildSummary(ctx context.Context, service, version string, startup time.Duration, registry *component.Registry) Summary {
	s := Summary{Service: service, Version: version, Startup: startup, Overall: component.StatusHealthy}
	if registry == nil {
		return s
	}

	health := registry.HealthAll(ctx)
	byName := make(map[string]component.Health, len(health))
	for _, h := range health {
		byName[h.Name] = h
	}

	for _, c := range registry.All() {
		line := ComponentSummary{Name: c.Name()}
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name != "" {
				line.Name = desc.Name
			}
			line.Type, line.Details, line.Port = desc.Type, desc.Details, desc.Port
		}
		if h, ok := byName[c.Name()]; ok {
			line.Status, line.Message = h.Status, h.Message
		}
		s.Components = append(s.Components, line)
	}
	s.Overall = component.Overall(health)
	return s
}

// Log writes the summary, one entry per component.
func (s Summary) Log(log *logger.Logger) {
	log.Info("Application started", map[string]interface{}{
		logger.FieldService: s.Service,
		"version":           s.Version,
		"startup":           s.Startup.String(),
		"components":        len(s.Components),
		logger.FieldStatus:  string(s.Overall),
	})
	for _, c := range s.Components {
		fields := map[string]interface{}{
			"name":             c.Name,
			"type":             c.Type,
			logger.FieldStatus: string(c.Status),
		}
		if c.Details != "" {
			fields["details"] = c.Details
		}
		if c.Port > 0 {
			fields["port"] = c.Port
		}
		if c.Message != "" {
			fields["message"] = c.Message
		}
		log.Info("Component", fields)
	}
}
