package discovery

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// LoadBalancingStrategy names a Selector implementation.
type LoadBalancingStrategy string

const (
	StrategyFirst      LoadBalancingStrategy = "first"
	StrategyRandom     LoadBalancingStrategy = "random"
	StrategyRoundRobin LoadBalancingStrategy = "round_robin"
	StrategyWeighted   LoadBalancingStrategy = "weighted"
)

// Strategies lists the supported strategies.
var Strategies = []LoadBalancingStrategy{StrategyFirst, StrategyRandom, StrategyRoundRobin, StrategyWeighted}

// Selector picks one endpoint out of a resolved list.
type Selector interface {
	Select(serviceName string, endpoints []Endpoint) (Endpoint, error)
}

// NewSelector builds the Selector for a strategy. The empty strategy
// selects First.
func NewSelector(strategy LoadBalancingStrategy) (Selector, error) {
	switch strategy {
	case "", StrategyFirst:
		return First{}, nil
	case StrategyRandom:
		return Random{}, nil
	case StrategyRoundRobin:
		return NewRoundRobin(), nil
	case StrategyWeighted:
		return Weighted{}, nil
	default:
		return nil, fmt.Errorf("discovery: unknown load balancing strategy %q", strategy)
	}
}

// First always returns the first endpoint in registry order.
type First struct{}

// Select implements Selector.
func (First) Select(_ string, endpoints []Endpoint) (Endpoint, error) {
	if len(endpoints) == 0 {
		return Endpoint{}, ErrNoEndpoints
	}
	return endpoints[0], nil
}

// Random picks a uniformly random endpoint.
type Random struct{}

// Select implements Selector.
func (Random) Select(_ string, endpoints []Endpoint) (Endpoint, error) {
	if len(endpoints) == 0 {
		return Endpoint{}, ErrNoEndpoints
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// RoundRobin cycles through endpoints with one counter per service.
// It is safe for concurrent use.
type RoundRobin struct {
	counters sync.Map // service name -> *atomic.Uint64
}

// NewRoundRobin creates a RoundRobin selector.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Select implements Selector.
func (r *RoundRobin) Select(serviceName string, endpoints []Endpoint) (Endpoint, error) {
	if len(endpoints) == 0 {
		return Endpoint{}, ErrNoEndpoints
	}
	v, _ := r.counters.LoadOrStore(serviceName, new(atomic.Uint64))
	n := v.(*atomic.Uint64).Add(1) - 1
	return endpoints[n%uint64(len(endpoints))], nil
}

// Weighted picks an endpoint with probability proportional to its Weight.
// Weights below 1 count as 1.
type Weighted struct{}

// Select implements Selector.
func (Weighted) Select(_ string, endpoints []Endpoint) (Endpoint, error) {
	if len(endpoints) == 0 {
		return Endpoint{}, ErrNoEndpoints
	}
	total := 0
	for _, ep := range endpoints {
		total += weightOf(ep)
	}
	n := rand.IntN(total)
	for _, ep := range endpoints {
		n -= weightOf(ep)
		if n < 0 {
			return ep, nil
		}
	}
	return endpoints[len(endpoints)-1], nil
}

func weightOf(ep Endpoint) int {
	if ep.Weight <= 0 {
		return 1
	}
	return ep.Weight
}
