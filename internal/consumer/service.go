// Package consumer wires the consumer service: an HTTP endpoint that looks
// up the provider in the service registry and forwards each call to it.
package consumer

import (
	"context"
	"fmt"

	"github.com/kbukum/relay/bootstrap"
	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/dispatch"
	"github.com/kbukum/relay/httpclient"
	"github.com/kbukum/relay/observability"
	"github.com/kbukum/relay/server"
)

// Service is the assembled consumer.
type Service struct {
	App        *bootstrap.App[*Config]
	Server     *server.Server
	Discovery  *discovery.Component
	Dispatcher *dispatch.Dispatcher
}

// New assembles the consumer. Components start in order observability,
// discovery, HTTP client, server and stop in reverse.
func New(cfg *Config, opts ...bootstrap.Option) (*Service, error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	log := app.Logger

	obs := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, log)
	disc := discovery.NewComponent(cfg.Discovery, log)
	client := httpclient.NewComponent(cfg.HTTPClient, log)

	metrics, err := observability.NewDefaultMetrics()
	if err != nil {
		return nil, fmt.Errorf("consumer metrics: %w", err)
	}
	d, err := dispatch.New(cfg.Dispatch, disc, client,
		dispatch.WithMetrics(metrics),
		dispatch.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(cfg.Name, cfg.Version, app.Components.HealthAll)
	NewHandler(d, log).RegisterRoutes(srv.GinEngine())

	if err := app.RegisterComponents(obs, disc, client, server.NewComponent(srv)); err != nil {
		return nil, err
	}

	return &Service{App: app, Server: srv, Discovery: disc, Dispatcher: d}, nil
}

// Run blocks until SIGINT, SIGTERM or ctx cancellation.
func (s *Service) Run(ctx context.Context) error {
	return s.App.Run(ctx)
}
