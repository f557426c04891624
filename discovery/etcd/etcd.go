// Package etcd implements the discovery backend on etcd v3.
//
// Each instance is a key {prefix}/{service}/{id} holding the JSON encoded
// endpoint. Registered keys are bound to a lease that this process keeps
// alive, so instances of a crashed process disappear after the lease TTL.
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/logger"
)

type registration struct {
	key     string
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
}

// Provider implements discovery.Registry and discovery.Discovery on etcd.
type Provider struct {
	kv      clientv3.KV
	lease   clientv3.Lease
	watcher clientv3.Watcher
	closer  func() error

	prefix string
	ttl    time.Duration
	log    *logger.Logger

	mu    sync.Mutex
	regs  map[string]registration // keyed by instance ID
	stats discovery.RegistryStats
}

func init() {
	discovery.RegisterProviderFactory(discovery.ProviderEtcd, func(cfg discovery.Config, log *logger.Logger) (discovery.Registry, discovery.Discovery, error) {
		p, err := NewProvider(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	})
}

// NewProvider dials etcd with the settings in cfg.Etcd.
func NewProvider(cfg discovery.Config, log *logger.Logger) (*Provider, error) {
	cfg.ApplyDefaults()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Etcd.Endpoints,
		DialTimeout: cfg.Etcd.DialTimeout,
		Username:    cfg.Etcd.Username,
		Password:    cfg.Etcd.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd client: %w", err)
	}
	p := NewWithClient(client, client, client, cfg.Etcd, log)
	p.closer = client.Close
	return p, nil
}

// NewWithClient builds a Provider on existing etcd client interfaces.
func NewWithClient(kv clientv3.KV, lease clientv3.Lease, watcher clientv3.Watcher, cfg discovery.EtcdConfig, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.NewNop()
	}
	ttl := cfg.LeaseTTL
	if ttl < time.Second {
		ttl = 10 * time.Second
	}
	prefix := strings.TrimRight(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "/relay/services"
	}
	return &Provider{
		kv:      kv,
		lease:   lease,
		watcher: watcher,
		closer:  func() error { return nil },
		prefix:  prefix,
		ttl:     ttl,
		log:     log.WithComponent("discovery.etcd"),
		regs:    make(map[string]registration),
	}
}

func (p *Provider) serviceKey(serviceName string) string {
	return p.prefix + "/" + serviceName + "/"
}

// --- Registry implementation ---

// Register writes the instance under a fresh lease and keeps the lease alive
// until Deregister or Close.
func (p *Provider) Register(ctx context.Context, svc *discovery.ServiceInfo) error {
	if err := svc.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(svc.Endpoint(time.Now()))
	if err != nil {
		return fmt.Errorf("etcd register %q: %w", svc.ID, err)
	}

	grant, err := p.lease.Grant(ctx, int64(p.ttl/time.Second))
	if err != nil {
		return fmt.Errorf("etcd grant lease: %w", err)
	}

	key := p.serviceKey(svc.Name) + svc.ID
	if _, err := p.kv.Put(ctx, key, string(value), clientv3.WithLease(grant.ID)); err != nil {
		return fmt.Errorf("etcd put %s: %w", key, err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	alive, err := p.lease.KeepAlive(kaCtx, grant.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("etcd keepalive: %w", err)
	}
	go p.drainKeepAlive(kaCtx, svc.ID, alive)

	p.mu.Lock()
	if old, ok := p.regs[svc.ID]; ok {
		old.cancel()
	} else {
		p.stats.RegisteredServices++
	}
	p.regs[svc.ID] = registration{key: key, leaseID: grant.ID, cancel: cancel}
	p.stats.LastHeartbeat = time.Now()
	p.mu.Unlock()

	p.log.Info("service registered", map[string]interface{}{
		"service_id": svc.ID, "key": key, "lease_ttl": p.ttl.String(),
	})
	return nil
}

func (p *Provider) drainKeepAlive(ctx context.Context, id string, alive <-chan *clientv3.LeaseKeepAliveResponse) {
	for range alive {
		p.mu.Lock()
		p.stats.LastHeartbeat = time.Now()
		p.mu.Unlock()
	}
	if ctx.Err() == nil {
		p.log.Warn("lease keepalive stopped", map[string]interface{}{"service_id": id})
	}
}

// Deregister stops the keepalive, deletes the key and revokes its lease.
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

	reg.cancel()
	if _, err := p.kv.Delete(ctx, reg.key); err != nil {
		return fmt.Errorf("etcd delete %s: %w", reg.key, err)
	}
	if _, err := p.lease.Revoke(ctx, reg.leaseID); err != nil {
		p.log.Warn("lease revoke failed", logger.Fields("service_id", serviceID, logger.FieldError, err.Error()))
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

// Resolve reads every key under the service prefix. Endpoints come back in
// key order, which is instance ID order.
func (p *Provider) Resolve(ctx context.Context, serviceName string) ([]discovery.Endpoint, error) {
	if err := discovery.ValidateServiceName(serviceName); err != nil {
		return nil, err
	}
	resp, err := p.kv.Get(ctx, p.serviceKey(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, discovery.Unavailable(discovery.ProviderEtcd, serviceName, err)
	}

	out := make([]discovery.Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep discovery.Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			p.log.Warn("skipping malformed instance record", logger.Fields("key", string(kv.Key), logger.FieldError, err.Error()))
			continue
		}
		if ep.Name == "" {
			ep.Name = serviceName
		}
		out = append(out, ep)
	}
	return out, nil
}

// Watch emits the current endpoints, then a fresh list after every change
// under the service prefix.
func (p *Provider) Watch(ctx context.Context, serviceName string) (<-chan []discovery.Endpoint, error) {
	initial, err := p.Resolve(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	events := p.watcher.Watch(clientv3.WithRequireLeader(ctx), p.serviceKey(serviceName), clientv3.WithPrefix())

	ch := make(chan []discovery.Endpoint, 1)
	ch <- initial
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case resp, ok := <-events:
				if !ok {
					return
				}
				if err := resp.Err(); err != nil {
					p.log.Warn("etcd watch error", logger.Fields(logger.FieldService, serviceName, logger.FieldError, err.Error()))
					continue
				}
				eps, err := p.Resolve(ctx, serviceName)
				if err != nil {
					p.log.Warn("etcd watch resolve failed", logger.Fields(logger.FieldService, serviceName, logger.FieldError, err.Error()))
					continue
				}
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

// Close stops all keepalives and closes the client when this provider
// created it. Leases then expire on their own.
func (p *Provider) Close() error {
	p.mu.Lock()
	for id, reg := range p.regs {
		reg.cancel()
		delete(p.regs, id)
	}
	p.stats.RegisteredServices = 0
	p.mu.Unlock()
	return p.closer()
}

// Compile-time checks.
var (
	_ discovery.Registry  = (*Provider)(nil)
	_ discovery.Discovery = (*Provider)(nil)
)
