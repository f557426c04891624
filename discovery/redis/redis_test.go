package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"

	"github.com/kbukum/relay/discovery"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProvider(t *testing.T) (*Provider, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, discovery.RedisConfig{
		Prefix:            "test:services",
		InstanceTTL:       30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
	}, nil)
	p.SetClock(func() time.Time { return fixedNow })
	return p, mock
}

func encode(t *testing.T, ep discovery.Endpoint) string {
	t.Helper()
	b, err := json.Marshal(ep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestRegisterAndDeregister(t *testing.T) {
	p, mock := newTestProvider(t)
	svc := &discovery.ServiceInfo{ID: "provider-1", Name: "provider", Address: "10.0.0.5", Port: 8080}

	mock.ExpectHSet("test:services:provider", "provider-1", encode(t, svc.Endpoint(fixedNow))).SetVal(1)
	mock.ExpectHDel("test:services:provider", "provider-1").SetVal(1)

	if err := p.Register(context.Background(), svc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := p.Stats().RegisteredServices; got != 1 {
		t.Errorf("expected 1 registered service, got %d", got)
	}
	if err := p.Deregister(context.Background(), "provider-1"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if got := p.Stats().RegisteredServices; got != 0 {
		t.Errorf("expected 0 registered services, got %d", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRegisterFailure(t *testing.T) {
	p, mock := newTestProvider(t)
	svc := &discovery.ServiceInfo{ID: "provider-1", Name: "provider", Address: "10.0.0.5", Port: 8080}

	mock.ExpectHSet("test:services:provider", "provider-1", encode(t, svc.Endpoint(fixedNow))).SetErr(errors.New("READONLY"))

	if err := p.Register(context.Background(), svc); err == nil {
		t.Fatal("expected error from failed HSET")
	}
	if got := p.Stats().RegisteredServices; got != 0 {
		t.Errorf("expected no registration after failure, got %d", got)
	}
}

func TestRegisterInvalid(t *testing.T) {
	p, _ := newTestProvider(t)
	if err := p.Register(context.Background(), &discovery.ServiceInfo{Name: "provider", Address: "x"}); err == nil {
		t.Error("expected error for missing ID")
	}
}

func TestDeregisterUnknown(t *testing.T) {
	p, mock := newTestProvider(t)
	if err := p.Deregister(context.Background(), "nope"); err != nil {
		t.Errorf("expected nil for unknown ID, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResolveFiltersStaleAndSorts(t *testing.T) {
	p, mock := newTestProvider(t)

	fresh := func(id string) discovery.Endpoint {
		return discovery.Endpoint{ID: id, Name: "provider", Address: "10.0.0." + id, Port: 8080, Health: discovery.HealthHealthy, Weight: 1, LastSeen: fixedNow.Add(-5 * time.Second)}
	}
	stale := fresh("9")
	stale.LastSeen = fixedNow.Add(-time.Minute)

	mock.ExpectHGetAll("test:services:provider").SetVal(map[string]string{
		"b":   encode(t, fresh("b")),
		"a":   encode(t, fresh("a")),
		"9":   encode(t, stale),
		"bad": "{not json",
	})

	eps, err := p.Resolve(context.Background(), "provider")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected 2 live endpoints, got %d: %+v", len(eps), eps)
	}
	if eps[0].ID != "a" || eps[1].ID != "b" {
		t.Errorf("expected endpoints sorted by ID, got %s, %s", eps[0].ID, eps[1].ID)
	}
}

func TestResolveEmpty(t *testing.T) {
	p, mock := newTestProvider(t)
	mock.ExpectHGetAll("test:services:provider").SetVal(map[string]string{})

	eps, err := p.Resolve(context.Background(), "provider")
	if err != nil {
		t.Fatalf("expected nil error for empty hash, got %v", err)
	}
	if len(eps) != 0 {
		t.Errorf("expected no endpoints, got %d", len(eps))
	}
}

func TestResolveUnavailable(t *testing.T) {
	p, mock := newTestProvider(t)
	mock.ExpectHGetAll("test:services:provider").SetErr(errors.New("dial tcp: connection refused"))

	_, err := p.Resolve(context.Background(), "provider")
	if !errors.Is(err, discovery.ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
	var ue *discovery.UnavailableError
	if !errors.As(err, &ue) || ue.Provider != discovery.ProviderRedis {
		t.Errorf("expected redis UnavailableError, got %#v", err)
	}
}

func TestResolveInvalidName(t *testing.T) {
	p, _ := newTestProvider(t)
	if _, err := p.Resolve(context.Background(), " "); !errors.Is(err, discovery.ErrInvalidServiceName) {
		t.Errorf("expected ErrInvalidServiceName, got %v", err)
	}
}

func TestWatchEmitsInitial(t *testing.T) {
	p, mock := newTestProvider(t)
	ep := discovery.Endpoint{ID: "a", Name: "provider", Address: "10.0.0.1", LastSeen: fixedNow}
	mock.ExpectHGetAll("test:services:provider").SetVal(map[string]string{"a": encode(t, ep)})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Watch(ctx, "provider")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	first := <-ch
	if len(first) != 1 || first[0].ID != "a" {
		t.Errorf("unexpected initial snapshot: %+v", first)
	}
	cancel()
	for range ch {
	}
}

func TestSameMembers(t *testing.T) {
	a := []discovery.Endpoint{{ID: "1", Address: "x", LastSeen: fixedNow}}
	b := []discovery.Endpoint{{ID: "1", Address: "x", LastSeen: fixedNow.Add(time.Second)}}
	if !sameMembers(a, b) {
		t.Error("expected last_seen to be ignored")
	}
	b[0].Address = "y"
	if sameMembers(a, b) {
		t.Error("expected address change to be detected")
	}
	if sameMembers(a, nil) {
		t.Error("expected length change to be detected")
	}
}

func TestNewWithClientDefaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	p := NewWithClient(db, discovery.RedisConfig{InstanceTTL: 9 * time.Second, HeartbeatInterval: time.Minute}, nil)
	if p.heartbeat != 3*time.Second {
		t.Errorf("expected heartbeat to fall back to ttl/3, got %v", p.heartbeat)
	}
	if p.serviceKey("provider") != "relay:services:provider" {
		t.Errorf("unexpected key %q", p.serviceKey("provider"))
	}
}
