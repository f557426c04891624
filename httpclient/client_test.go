package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/relay/logger"
)

func TestClient_Do_GET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/hello/bob" {
			t.Errorf("expected /hello/bob, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("hello bob"))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Do(context.Background(), Request{Path: "/hello/bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected success, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "hello bob" {
		t.Errorf("unexpected body %q", resp.Body)
	}
	if resp.URL != srv.URL+"/hello/bob" {
		t.Errorf("expected resolved url, got %q", resp.URL)
	}
}

func TestClient_Do_POST_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/items",
		Body:   map[string]string{"name": "bob"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

func TestClient_Do_HeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Custom"); got != "override" {
			t.Errorf("expected request header to override default, got %q", got)
		}
		if got := r.Header.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("expected propagated request id, got %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("expected page=2, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Headers: map[string]string{"X-Custom": "default"}})
	ctx := logger.ContextWithRequestID(context.Background(), "req-1")
	_, err := c.Do(ctx, Request{
		Path:    "/",
		Headers: map[string]string{"X-Custom": "override"},
		Query:   map[string]string{"page": "2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Do_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusNotFound, IsNotFound},
		{http.StatusUnauthorized, IsAuth},
		{http.StatusTooManyRequests, IsRateLimit},
		{http.StatusInternalServerError, IsServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("upstream said no"))
			}))
			defer srv.Close()

			c, _ := New(Config{})
			resp, err := c.Get(context.Background(), srv.URL+"/x")
			if !tt.check(err) {
				t.Fatalf("unexpected classification: %v", err)
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Fatalf("expected response with status %d alongside the error", tt.status)
			}
			if e, ok := err.(*Error); !ok || e.URL != srv.URL+"/x" || string(e.Body) != "upstream said no" {
				t.Errorf("expected error to carry url and body, got %#v", err)
			}
		})
	}
}

func TestClient_Do_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := New(Config{})
	if _, err := c.Get(context.Background(), srv.URL); !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly one attempt, got %d", got)
	}
}

func TestClient_Do_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := New(Config{Timeout: 50 * time.Millisecond})
	_, err := c.Get(context.Background(), srv.URL)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestClient_Do_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx, srv.URL); !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestClient_Do_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := New(Config{Timeout: time.Second})
	_, err := c.Get(context.Background(), url)
	if !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestClient_Do_FullURL_IgnoresBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/direct" {
			t.Errorf("expected /direct, got %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: "http://should-not-be-used.invalid"})
	if _, err := c.Get(context.Background(), srv.URL+"/direct"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Do_StringAndByteBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		_, _ = w.Write([]byte(r.Header.Get("Content-Type") + "|" + buf.String()))
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	resp, err := c.Do(context.Background(), Request{Method: http.MethodPut, Path: "/", Body: "plain"})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "text/plain|plain" {
		t.Errorf("unexpected echo %q", resp.Body)
	}

	resp, err = c.Do(context.Background(), Request{Method: http.MethodPut, Path: "/", Body: []byte("raw")})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "|raw" {
		t.Errorf("unexpected echo %q", resp.Body)
	}
}

func TestClient_Do_InvalidURL(t *testing.T) {
	c, _ := New(Config{})
	_, err := c.Do(context.Background(), Request{Method: "BAD METHOD", Path: "http://x"})
	if !hasCode(err, ErrCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type countingTransport struct{ n atomic.Int32 }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.n.Add(1)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}}, nil
}

func TestClient_WithTransport(t *testing.T) {
	rt := &countingTransport{}
	c, err := New(Config{}, WithTransport(rt), WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), "http://example.invalid/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.n.Load() != 1 {
		t.Errorf("expected custom transport to be used")
	}
	if c.Config().Timeout != 30*time.Second {
		t.Errorf("expected defaults applied, got %v", c.Config().Timeout)
	}
}

func TestResponse_Helpers(t *testing.T) {
	if !(&Response{StatusCode: 204}).IsSuccess() {
		t.Error("204 should be success")
	}
	if (&Response{StatusCode: 502}).IsSuccess() {
		t.Error("502 should not be success")
	}
	resp := &Response{Headers: map[string]string{"Content-Type": "text/plain; charset=utf-8"}}
	if resp.ContentType() != "text/plain" {
		t.Errorf("expected text/plain, got %q", resp.ContentType())
	}
}
