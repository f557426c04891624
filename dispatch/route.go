package dispatch

import (
	"net/url"
	"strings"

	"github.com/kbukum/relay/discovery"
)

// RenderRoute substitutes {path} and {name} placeholders in template with
// path-escaped values. Unknown placeholders are left untouched.
func RenderRoute(template, path string, params map[string]string) string {
	pairs := make([]string, 0, 2+2*len(params))
	pairs = append(pairs, "{path}", url.PathEscape(path))
	for k, v := range params {
		if k == "path" {
			continue
		}
		pairs = append(pairs, "{"+k+"}", url.PathEscape(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// TargetURI joins the endpoint base URI and a rendered route.
func TargetURI(ep discovery.Endpoint, route string) string {
	if route != "" && !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return ep.BaseURI() + route
}
