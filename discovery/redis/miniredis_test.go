package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"github.com/kbukum/relay/discovery"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMiniProvider(t *testing.T) (*Provider, *miniredis.Miniredis, *testClock) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &testClock{now: fixedNow}
	p := NewWithClient(rdb, discovery.RedisConfig{Prefix: "relay:services", InstanceTTL: 30 * time.Second}, nil)
	p.SetClock(clock.Now)
	t.Cleanup(func() { _ = p.Close() })
	return p, mini, clock
}

func TestMiniredisRoundTrip(t *testing.T) {
	p, mini, _ := newMiniProvider(t)
	ctx := context.Background()

	for _, svc := range []*discovery.ServiceInfo{
		{ID: "provider-b", Name: "provider", Address: "10.0.0.6", Port: 8080},
		{ID: "provider-a", Name: "provider", Address: "10.0.0.5", Port: 8080},
	} {
		if err := p.Register(ctx, svc); err != nil {
			t.Fatalf("Register %s: %v", svc.ID, err)
		}
	}

	eps, err := p.Resolve(ctx, "provider")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eps) != 2 || eps[0].ID != "provider-a" || eps[1].ID != "provider-b" {
		t.Fatalf("expected both instances ordered by id, got %+v", eps)
	}
	if eps[0].BaseURI() != "http://10.0.0.5:8080" {
		t.Errorf("unexpected base uri %q", eps[0].BaseURI())
	}

	if err := p.Deregister(ctx, "provider-a"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if fields, _ := mini.HKeys("relay:services:provider"); len(fields) != 1 || fields[0] != "provider-b" {
		t.Errorf("expected only provider-b left in the hash, got %v", fields)
	}
}

func TestMiniredisHeartbeatExpiry(t *testing.T) {
	p, _, clock := newMiniProvider(t)
	ctx := context.Background()

	if err := p.Register(ctx, &discovery.ServiceInfo{ID: "provider-1", Name: "provider", Address: "10.0.0.5", Port: 8080}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	clock.Advance(29 * time.Second)
	if eps, _ := p.Resolve(ctx, "provider"); len(eps) != 1 {
		t.Fatalf("expected instance alive within ttl, got %d", len(eps))
	}

	clock.Advance(2 * time.Second)
	eps, err := p.Resolve(ctx, "provider")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eps) != 0 {
		t.Errorf("expected stale instance skipped, got %+v", eps)
	}
}

func TestMiniredisUnavailable(t *testing.T) {
	p, mini, _ := newMiniProvider(t)
	mini.Close()

	_, err := p.Resolve(context.Background(), "provider")
	if !errors.Is(err, discovery.ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
}

func TestMiniredisUnknownService(t *testing.T) {
	p, _, _ := newMiniProvider(t)
	eps, err := p.Resolve(context.Background(), "nobody")
	if err != nil || len(eps) != 0 {
		t.Errorf("expected empty result without error, got %v %v", eps, err)
	}
}

func TestDeregisterWaitsForHeartbeat(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mini.Close()
	rdb := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	defer rdb.Close()

	p := NewWithClient(rdb, discovery.RedisConfig{
		Prefix:            "relay:services",
		InstanceTTL:       30 * time.Second,
		HeartbeatInterval: time.Microsecond,
	}, nil)
	defer p.Close()

	ctx := context.Background()
	svc := &discovery.ServiceInfo{ID: "provider-1", Name: "provider", Address: "10.0.0.5", Port: 8080}
	for i := 0; i < 300; i++ {
		if err := p.Register(ctx, svc); err != nil {
			t.Fatalf("Register #%d: %v", i, err)
		}
		if err := p.Deregister(ctx, svc.ID); err != nil {
			t.Fatalf("Deregister #%d: %v", i, err)
		}
	}

	eps, err := p.Resolve(ctx, "provider")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eps) != 0 {
		t.Errorf("expected no instances after deregistration, got %d", len(eps))
	}
}

func TestRegisterAgainReplacesHeartbeat(t *testing.T) {
	p, mini, _ := newMiniProvider(t)
	ctx := context.Background()
	svc := &discovery.ServiceInfo{ID: "provider-1", Name: "provider", Address: "10.0.0.5", Port: 8080}

	if err := p.Register(ctx, svc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	moved := *svc
	moved.Port = 9090
	if err := p.Register(ctx, &moved); err != nil {
		t.Fatalf("Register again: %v", err)
	}
	if got := p.Stats().RegisteredServices; got != 1 {
		t.Errorf("expected one registration, got %d", got)
	}
	eps, err := p.Resolve(ctx, "provider")
	if err != nil || len(eps) != 1 || eps[0].Port != 9090 {
		t.Fatalf("expected the replaced instance, got %+v, %v", eps, err)
	}

	if err := p.Deregister(ctx, svc.ID); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if mini.Exists("relay:services:provider") {
		t.Error("expected service hash removed with its last instance")
	}
}
