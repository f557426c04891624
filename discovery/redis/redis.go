// Package redis implements the discovery backend on a Redis hash per
// service.
//
// Instances of service S live in the hash {prefix}:{S}, one field per
// instance ID holding the JSON encoded endpoint. Registered instances are
// refreshed every heartbeat interval; readers drop entries whose last_seen is
// older than the instance TTL.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/logger"
)

type registration struct {
	key    string
	svc    discovery.ServiceInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the heartbeat and waits until its last write returned.
func (r registration) stop() {
	r.cancel()
	<-r.done
}

// Provider implements discovery.Registry and discovery.Discovery on Redis.
type Provider struct {
	rdb       goredis.UniversalClient
	prefix    string
	ttl       time.Duration
	heartbeat time.Duration
	log       *logger.Logger
	now       func() time.Time
	closer    func() error

	mu    sync.Mutex
	regs  map[string]registration // keyed by instance ID
	stats discovery.RegistryStats
	wg    sync.WaitGroup
}

func init() {
	discovery.RegisterProviderFactory(discovery.ProviderRedis, func(cfg discovery.Config, log *logger.Logger) (discovery.Registry, discovery.Discovery, error) {
		p := NewProvider(cfg, log)
		return p, p, nil
	})
}

// NewProvider connects to the Redis server in cfg.Redis. go-redis dials
// lazily, so no connection is made until the first command.
func NewProvider(cfg discovery.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	p := NewWithClient(rdb, cfg.Redis, log)
	p.closer = rdb.Close
	return p
}

// NewWithClient builds a Provider on an existing client.
func NewWithClient(rdb goredis.UniversalClient, cfg discovery.RedisConfig, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.NewNop()
	}
	ttl := cfg.InstanceTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	hb := cfg.HeartbeatInterval
	if hb <= 0 || hb >= ttl {
		hb = ttl / 3
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "relay:services"
	}
	return &Provider{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		heartbeat: hb,
		log:       log.WithComponent("discovery.redis"),
		now:       time.Now,
		closer:    func() error { return nil },
		regs:      make(map[string]registration),
	}
}

// SetClock replaces the time source used for last_seen stamps and expiry.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}

func (p *Provider) serviceKey(serviceName string) string {
	return p.prefix + ":" + serviceName
}

// --- Registry implementation ---

// Register writes the instance and refreshes it every heartbeat interval
// until Deregister or Close. Registering an ID again replaces the earlier
// heartbeat.
func (p *Provider) Register(ctx context.Context, svc *discovery.ServiceInfo) error {
	if err := svc.Validate(); err != nil {
		return err
	}
	key := p.serviceKey(svc.Name)

	p.mu.Lock()
	old, replaced := p.regs[svc.ID]
	delete(p.regs, svc.ID)
	p.mu.Unlock()
	if replaced {
		old.stop()
	}

	if err := p.write(ctx, key, svc); err != nil {
		if replaced {
			p.mu.Lock()
			p.stats.RegisteredServices--
			p.mu.Unlock()
		}
		return err
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	reg := registration{key: key, svc: *svc, cancel: cancel, done: make(chan struct{})}
	p.mu.Lock()
	if !replaced {
		p.stats.RegisteredServices++
	}
	p.regs[svc.ID] = reg
	p.stats.LastHeartbeat = p.now()
	p.wg.Add(1)
	p.mu.Unlock()

	go p.heartbeatLoop(hbCtx, reg)

	p.log.Info("service registered", map[string]interface{}{
		"service_id": svc.ID, "key": key, "instance_ttl": p.ttl.String(),
	})
	return nil
}

func (p *Provider) write(ctx context.Context, key string, svc *discovery.ServiceInfo) error {
	value, err := json.Marshal(svc.Endpoint(p.now()))
	if err != nil {
		return fmt.Errorf("redis register %q: %w", svc.ID, err)
	}
	if err := p.rdb.HSet(ctx, key, svc.ID, string(value)).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (p *Provider) heartbeatLoop(ctx context.Context, reg registration) {
	defer p.wg.Done()
	defer close(reg.done)
	key, svc := reg.key, reg.svc
	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.write(ctx, key, &svc); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn("heartbeat failed", map[string]interface{}{
					"service_id": svc.ID, logger.FieldError: err.Error(),
				})
				continue
			}
			p.mu.Lock()
			p.stats.LastHeartbeat = p.now()
			p.mu.Unlock()
		}
	}
}

// Deregister stops the heartbeat and removes the instance field.
func (p *Provider) Deregister(ctx context.Context, serviceID string) error {
	p.mu.Lock()
	reg, ok := p.regs[serviceID]
	if ok {
		delete(p.regs, serviceID)
		if p.stats.RegisteredServices > 0 {
			p.stats.RegisteredServices--
		}
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}

	reg.stop()
	if err := p.rdb.HDel(ctx, reg.key, serviceID).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", reg.key, err)
	}
	p.log.Info("service deregistered", map[string]interface{}{"service_id": serviceID})
	return nil
}

// Stats returns current registry statistics.
func (p *Provider) Stats() discovery.RegistryStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// --- Discovery implementation ---

// Resolve reads the service hash and returns live instances sorted by ID.
func (p *Provider) Resolve(ctx context.Context, serviceName string) ([]discovery.Endpoint, error) {
	if err := discovery.ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	fields, err := p.rdb.HGetAll(ctx, p.serviceKey(serviceName)).Result()
	if err != nil {
		return nil, discovery.Unavailable(discovery.ProviderRedis, serviceName, err)
	}

	cutoff := p.now().Add(-p.ttl)
	out := make([]discovery.Endpoint, 0, len(fields))
	for id, raw := range fields {
		var ep discovery.Endpoint
		if err := json.Unmarshal([]byte(raw), &ep); err != nil {
			p.log.Warn("skipping malformed instance record", map[string]interface{}{
				"service_id": id, logger.FieldError: err.Error(),
			})
			continue
		}
		if ep.LastSeen.Before(cutoff) {
			continue
		}
		if ep.ID == "" {
			ep.ID = id
		}
		if ep.Name == "" {
			ep.Name = serviceName
		}
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Watch emits the current endpoints, then polls every heartbeat interval
// and emits again whenever membership changes.
func (p *Provider) Watch(ctx context.Context, serviceName string) (<-chan []discovery.Endpoint, error) {
	initial, err := p.Resolve(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	ch := make(chan []discovery.Endpoint, 1)
	ch <- initial
	go func() {
		defer close(ch)
		ticker := time.NewTicker(p.heartbeat)
		defer ticker.Stop()
		last := initial
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				eps, err := p.Resolve(ctx, serviceName)
				if err != nil {
					p.log.Warn("redis watch resolve failed", map[string]interface{}{
						logger.FieldService: serviceName, logger.FieldError: err.Error(),
					})
					continue
				}
				if sameMembers(last, eps) {
					continue
				}
				last = eps
				select {
				case ch <- eps:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// sameMembers compares two sorted lists ignoring last_seen.
func sameMembers(a, b []discovery.Endpoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Address != y.Address || x.Port != y.Port ||
			x.Scheme != y.Scheme || x.Health != y.Health || x.Weight != y.Weight {
			return false
		}
	}
	return true
}

// Close stops all heartbeats and closes the client when this provider
// created it. Fields stay in Redis and expire through the TTL check.
func (p *Provider) Close() error {
	p.mu.Lock()
	for id, reg := range p.regs {
		reg.cancel()
		delete(p.regs, id)
	}
	p.stats.RegisteredServices = 0
	p.mu.Unlock()
	p.wg.Wait()
	return p.closer()
}

// Compile-time checks.
var (
	_ discovery.Registry  = (*Provider)(nil)
	_ discovery.Discovery = (*Provider)(nil)
)
