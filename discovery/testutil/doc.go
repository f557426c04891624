// Package testutil provides a scriptable discovery.Resolver for tests of
// code that resolves services.
//
// # Quick Start
//
//	r := testutil.NewResolver()
//	r.Set("provider", discovery.Endpoint{ID: "p1", Address: "127.0.0.1", Port: 8080})
//	r.Fail("billing", errors.New("consul down"))
//
//	eps, _ := r.Resolve(ctx, "provider")
//	r.Calls("provider") // 1
package testutil
