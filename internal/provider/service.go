// Package provider wires the provider service: an echo endpoint that
// registers itself in the service registry while it is up.
package provider

import (
	"context"

	"github.com/kbukum/relay/bootstrap"
	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/observability"
	"github.com/kbukum/relay/server"
)

// Service is the assembled provider.
type Service struct {
	App       *bootstrap.App[*Config]
	Server    *server.Server
	Discovery *discovery.Component
}

// New assembles the provider. The server starts before discovery so the
// instance is reachable once registered, and it is deregistered before the
// server stops.
func New(cfg *Config, opts ...bootstrap.Option) (*Service, error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	log := app.Logger

	obs := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, log)
	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(cfg.Name, cfg.Version, app.Components.HealthAll)
	NewHandler(cfg.Discovery.Registration.ServicePort).RegisterRoutes(srv.GinEngine())
	disc := discovery.NewComponent(cfg.Discovery, log)

	if err := app.RegisterComponents(obs, server.NewComponent(srv), disc); err != nil {
		return nil, err
	}
	return &Service{App: app, Server: srv, Discovery: disc}, nil
}

// Run blocks until SIGINT, SIGTERM or ctx cancellation.
func (s *Service) Run(ctx context.Context) error {
	return s.App.Run(ctx)
}
