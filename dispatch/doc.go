// Package dispatch forwards a call for a logical service to one of its
// registered instances.
//
// Every call re-resolves the service through a discovery.Resolver, picks an
// endpoint with a discovery.Selector (first by default), renders the route
// template against the endpoint's base URI and performs one blocking GET.
//
//	d, err := dispatch.New(cfg, resolver, client)
//	res, err := d.Handle(ctx, "provider", "bob")
//	switch {
//	case errors.Is(err, discovery.ErrRegistryUnavailable): // 503
//	case errors.Is(err, dispatch.ErrForwardFailed):         // 502 / 504
//	case res.Outcome == dispatch.OutcomeNoProvider:         // "not find provider"
//	}
//
// Zero registered instances is not an error: it yields OutcomeNoProvider and
// no outbound request is made.
package dispatch
