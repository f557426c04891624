// Package discovery resolves logical service names into network endpoints.
//
// A Resolver answers "which instances of service X exist right now". An
// empty answer is a normal result; a registry that cannot be queried is an
// error satisfying errors.Is(err, ErrRegistryUnavailable). Nothing in this
// package caches results, so every Resolve reflects the registry at call time.
//
// # Architecture
//
//   - Resolver / Discovery: query side, implemented by every backend
//   - Registry: registration side, used by services announcing themselves
//   - Selector: picks one endpoint from a resolved list
//   - Client: validation and health filtering on top of a Discovery
//   - Component: lifecycle wrapper that builds the configured backend
//
// # Backends
//
// Backends register themselves on import:
//
//	import (
//	    _ "github.com/kbukum/relay/discovery/consul"
//	    _ "github.com/kbukum/relay/discovery/etcd"
//	    _ "github.com/kbukum/relay/discovery/redis"
//	    _ "github.com/kbukum/relay/discovery/static"
//	)
package discovery
