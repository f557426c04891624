package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/httpclient"
	"github.com/kbukum/relay/logger"
	"github.com/kbukum/relay/observability"
)

// Outcome is the non-error result of a dispatch.
type Outcome string

const (
	// OutcomeForwarded means the selected endpoint answered with 2xx.
	OutcomeForwarded Outcome = "forwarded"
	// OutcomeNoProvider means no instance is registered under the name.
	OutcomeNoProvider Outcome = "no_provider"
)

// Metric outcomes of failed calls.
const (
	outcomeRegistryUnavailable = "registry_unavailable"
	outcomeForwardFailed       = "forward_failed"
	outcomeInvalid             = "invalid"
)

// ForwardRequest is one inbound call to forward.
type ForwardRequest struct {
	Service string
	Path    string
	// Params fills extra {name} placeholders of the route template.
	Params map[string]string
}

// Result is a successful dispatch.
type Result struct {
	Outcome Outcome
	// Body is the upstream body, or the not-found message for
	// OutcomeNoProvider.
	Body       []byte
	StatusCode int
	Endpoint   discovery.Endpoint
	Target     string
}

// Doer performs one HTTP request. *httpclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// Dispatcher resolves, selects and forwards. It keeps no state between
// calls and is safe for concurrent use.
type Dispatcher struct {
	cfg      Config
	resolver discovery.Resolver
	selector discovery.Selector
	client   Doer
	metrics  *observability.Metrics
	log      *logger.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithSelector overrides the selector built from Config.Strategy.
func WithSelector(s discovery.Selector) Option {
	return func(d *Dispatcher) { d.selector = s }
}

// WithMetrics records dispatch and resolve samples on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log.WithComponent("dispatch")
		}
	}
}

// New creates a Dispatcher. The resolver and client are required.
func New(cfg Config, resolver discovery.Resolver, client Doer, opts ...Option) (*Dispatcher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch config: %w", err)
	}
	if resolver == nil || client == nil {
		return nil, errors.New("dispatch: resolver and client are required")
	}
	selector, err := discovery.NewSelector(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		cfg:      cfg,
		resolver: resolver,
		selector: selector,
		client:   client,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Handle forwards path to serviceName using the configured route template.
func (d *Dispatcher) Handle(ctx context.Context, serviceName, path string) (Result, error) {
	return d.Forward(ctx, ForwardRequest{Service: serviceName, Path: path})
}

// Forward resolves req.Service, selects one endpoint and performs a single
// GET against it.
//
// Zero instances yields OutcomeNoProvider with a nil error. Registry
// failures satisfy errors.Is(err, discovery.ErrRegistryUnavailable); failed
// forwards satisfy errors.Is(err, ErrForwardFailed).
func (d *Dispatcher) Forward(ctx context.Context, req ForwardRequest) (res Result, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanDispatch,
		trace.WithAttributes(attribute.String(observability.AttrService, req.Service)))
	outcome := outcomeInvalid
	defer func() {
		span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if d.metrics != nil {
			d.metrics.RecordDispatch(ctx, req.Service, outcome, time.Since(start))
			if err != nil {
				d.metrics.RecordError(ctx, outcome, "dispatch")
			}
		}
	}()

	if err := discovery.ValidateServiceName(req.Service); err != nil {
		return Result{}, err
	}
	log := d.log.WithContext(ctx)

	endpoints, err := d.resolve(ctx, req.Service)
	if err != nil {
		outcome = outcomeRegistryUnavailable
		log.Warn("registry lookup failed", map[string]interface{}{
			logger.FieldService: req.Service, logger.FieldError: err.Error(),
		})
		return Result{}, fmt.Errorf("dispatch %q: %w", req.Service, err)
	}
	span.SetAttributes(attribute.Int(observability.AttrCount, len(endpoints)))

	if len(endpoints) == 0 {
		outcome = string(OutcomeNoProvider)
		log.Info("no provider registered", map[string]interface{}{logger.FieldService: req.Service})
		return Result{Outcome: OutcomeNoProvider, Body: []byte(d.cfg.NotFoundMessage)}, nil
	}

	ep, err := d.selector.Select(req.Service, endpoints)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch %q: %w", req.Service, err)
	}
	target := TargetURI(ep, RenderRoute(d.cfg.RouteTemplate, req.Path, req.Params))
	span.SetAttributes(
		attribute.String(observability.AttrEndpoint, ep.ID),
		attribute.String(observability.AttrTarget, target),
	)

	resp, err := d.forward(ctx, target)
	if err != nil {
		outcome = outcomeForwardFailed
		fe := &ForwardError{Service: req.Service, Target: target, StatusCode: httpclient.StatusCode(err), Err: err}
		log.Warn("forward failed", map[string]interface{}{
			logger.FieldService: req.Service, logger.FieldTarget: target,
			logger.FieldStatus: fe.StatusCode, logger.FieldError: err.Error(),
		})
		return Result{Endpoint: ep, Target: target, StatusCode: fe.StatusCode}, fe
	}

	outcome = string(OutcomeForwarded)
	span.SetAttributes(attribute.Int(observability.AttrStatus, resp.StatusCode))
	log.Debug("forwarded", map[string]interface{}{
		logger.FieldService: req.Service, logger.FieldEndpoint: ep.ID, logger.FieldTarget: target,
		logger.FieldStatus: resp.StatusCode, logger.FieldDuration: resp.Elapsed.Milliseconds(),
	})
	return Result{
		Outcome:    OutcomeForwarded,
		Body:       resp.Body,
		StatusCode: resp.StatusCode,
		Endpoint:   ep,
		Target:     target,
	}, nil
}

func (d *Dispatcher) resolve(ctx context.Context, serviceName string) ([]discovery.Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ResolveTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanResolve,
		trace.WithAttributes(attribute.String(observability.AttrService, serviceName)))
	defer span.End()

	start := time.Now()
	endpoints, err := d.resolver.Resolve(ctx, serviceName)
	status := "ok"
	if err != nil {
		status = "error"
		if !errors.Is(err, discovery.ErrRegistryUnavailable) {
			err = discovery.Unavailable("resolver", serviceName, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if d.metrics != nil {
		d.metrics.RecordResolve(ctx, serviceName, status, time.Since(start))
	}
	return endpoints, err
}

func (d *Dispatcher) forward(ctx context.Context, target string) (*httpclient.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ForwardTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanForward,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(observability.AttrTarget, target)))
	defer span.End()

	resp, err := d.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: target})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !resp.IsSuccess() {
		err := httpclient.ClassifyStatusCode(resp.StatusCode, resp.Body)
		err.URL = target
		return nil, err
	}
	return resp, nil
}
