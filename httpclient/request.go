package httpclient

import (
	"strings"
	"time"
)

// Request is one outbound call. Method defaults to GET; Path is joined to
// Config.BaseURL unless it is already absolute.
type Request struct {
	Method string
	Path   string
	// Headers override Config.Headers for this call.
	Headers map[string]string
	Query   map[string]string
	// Body may be an io.Reader, []byte, string or a value to JSON-encode.
	Body any
}

// Response is a fully read upstream answer.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	// URL is the resolved target the request was sent to.
	URL string
	// Elapsed covers the round trip and reading the body.
	Elapsed time.Duration
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the media type of the body without parameters.
func (r *Response) ContentType() string {
	ct := r.Headers["Content-Type"]
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
