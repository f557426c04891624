// Package httpclient provides an explicitly constructed HTTP client that
// performs exactly one attempt per call and classifies failures.
//
// # Basic Usage
//
//	client, err := httpclient.New(httpclient.Config{Timeout: 10 * time.Second})
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodGet,
//	    Path:   "http://10.0.0.5:8080/hello/bob",
//	})
//	if httpclient.IsTimeout(err) { ... }
//
// Errors are *httpclient.Error values with a Code (timeout, connection,
// auth, not_found, rate_limit, validation, server). Non-2xx answers return
// both the Response and the classified error.
package httpclient
