package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/relay/discovery"
)

func TestResolver(t *testing.T) {
	r := NewResolver()
	ctx := context.Background()

	eps, err := r.Resolve(ctx, "provider")
	if err != nil || len(eps) != 0 {
		t.Fatalf("expected empty result, got %v, %v", eps, err)
	}

	r.Set("provider", discovery.Endpoint{ID: "p1"})
	eps, _ = r.Resolve(ctx, "provider")
	if len(eps) != 1 || eps[0].ID != "p1" {
		t.Errorf("unexpected endpoints: %+v", eps)
	}

	r.Fail("provider", errors.New("down"))
	if _, err := r.Resolve(ctx, "provider"); !errors.Is(err, discovery.ErrRegistryUnavailable) {
		t.Errorf("expected ErrRegistryUnavailable, got %v", err)
	}
	if got := r.Calls("provider"); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}

	if _, err := r.Resolve(ctx, ""); !errors.Is(err, discovery.ErrInvalidServiceName) {
		t.Errorf("expected ErrInvalidServiceName, got %v", err)
	}
}
