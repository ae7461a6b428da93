package proxy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// hopByHopHeaders are HTTP headers that must not be forwarded through a
// proxy. These are connection-specific and only relevant for the single hop.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Trailers":            true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// forward sends the request to the upstream provider and returns the raw
// response. The caller is responsible for reading and closing the response
// body. The body passes through untouched; only headers that cannot travel
// through a proxy are dropped.
func (p *Proxy) forward(ctx context.Context, r *http.Request, body []byte, upstream string) (*http.Response, error) {
	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, upstream, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}

	copyRequestHeaders(upstreamReq.Header, r.Header)

	// Set Content-Length since we have the full body.
	upstreamReq.ContentLength = int64(len(body))

	resp, err := p.client.Do(upstreamReq)
	if err != nil {
		return nil, fmt.Errorf("forwarding to upstream %s: %w", upstream, err)
	}
	return resp, nil
}

// copyRequestHeaders copies headers from the client request, skipping
// hop-by-hop headers and anything with a Proxy- prefix. Host is skipped
// because the HTTP client derives it from the upstream URL, and
// Accept-Encoding because the capture needs identity-encoded bodies.
func copyRequestHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[key] || strings.HasPrefix(key, "Proxy-") {
			continue
		}
		if strings.EqualFold(key, "Host") || strings.EqualFold(key, "Accept-Encoding") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// copyResponseHeaders copies response headers from the upstream response to
// the client response writer, skipping hop-by-hop headers.
func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[key] || strings.HasPrefix(key, "Proxy-") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
