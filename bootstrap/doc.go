// Package bootstrap runs the lifecycle of a relay service.
//
// An App owns the typed configuration, the logger and the component
// registry. Run starts every registered component in order, runs the
// configure callbacks and hooks, logs a startup summary, then blocks until
// SIGINT, SIGTERM or context cancellation and stops everything in reverse.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	app.RegisterComponent(discoveryComponent)
//	app.RegisterComponent(server.NewComponent(srv))
//	return app.Run(ctx)
package bootstrap
