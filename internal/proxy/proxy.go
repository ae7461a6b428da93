// Package proxy implements the transparent capture proxy that sits between
// an LLM client and its provider API.
//
// The proxy:
//  1. Accepts any method, path, and body on its listen address
//  2. Forwards to {target}{path}?{query} with hop-by-hop headers stripped
//  3. Streams SSE responses back line by line as they arrive
//  4. Appends one trace record per completed upstream call
//
// Bodies pass through byte for byte in both directions; observation must
// not change what the client or the provider sees.
package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/llmpath/llmpath/internal/trace"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultIdleTimeout    = 5 * time.Minute

	// sseReadBuffer sizes the line reader for streamed responses. A single
	// SSE line carries a whole JSON delta and can run long.
	sseReadBuffer = 64 * 1024
)

// Options holds the dependencies injected into the proxy at creation.
type Options struct {
	// Target is the upstream base URL, e.g. https://api.openai.com.
	Target string

	// Log receives one record per completed call. Nil disables capture;
	// traffic still forwards.
	Log *trace.Log

	// Filter decides which request paths are recorded. Nil records all.
	Filter *Filter

	// ConnectTimeout bounds the upstream dial. Zero means 30s.
	ConnectTimeout time.Duration

	// IdleTimeout bounds silence between upstream body chunks. Zero means
	// 5m. There is no overall deadline: streamed completions legitimately
	// run for minutes.
	IdleTimeout time.Duration
}

// Proxy is the HTTP handler that mirrors traffic to the upstream API and
// records each call.
//
// Implements http.Handler; mounted as the root handler of the proxy server.
type Proxy struct {
	target      string // scheme://host[:port][/base] with no trailing slash
	log         *trace.Log
	filter      *Filter
	client      *http.Client
	idleTimeout time.Duration
}

// New validates the target URL and builds the upstream client. Compression
// is disabled on the transport so captured bodies stay parseable; the
// Accept-Encoding header is stripped in forwarding for the same reason.
func New(opts Options) (*Proxy, error) {
	target, err := url.Parse(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", opts.Target, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("invalid target URL %q: scheme must be http or https", opts.Target)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q: missing host", opts.Target)
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	idleTimeout := opts.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	}

	return &Proxy{
		target:      strings.TrimSuffix(target.String(), "/"),
		log:         opts.Log,
		filter:      opts.Filter,
		client:      &http.Client{Transport: transport},
		idleTimeout: idleTimeout,
	}, nil
}

// ServeHTTP is the main entry point for all proxied requests:
//
//  1. Answer /health locally
//  2. Read the request body and open the trace record
//  3. Forward to the upstream with an idle-timeout context
//  4. Relay the response, streaming or buffered
//  5. Append the completed record to the capture log
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	start := time.Now()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read request body", "error", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	r.Body.Close()

	rec := trace.NewRecord(decodeRequestBody(body, r.Header.Get("Content-Type")))
	upstream := p.target + r.URL.RequestURI()
	slog.Debug("proxying request",
		"method", r.Method,
		"path", r.URL.Path,
		"upstream", upstream,
		"bytes", len(body),
	)

	// The upstream context deliberately ignores the client's: when the
	// client disconnects mid-stream the proxy keeps draining so the record
	// still completes. The idle timer bounds that drain.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var timedOut atomic.Bool
	idle := time.AfterFunc(p.idleTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer idle.Stop()

	resp, err := p.forward(ctx, r, body, upstream)
	if err != nil {
		rec.Error = errorLabel(err, &timedOut)
		rec.DurationMS = time.Since(start).Milliseconds()
		slog.Error("upstream request failed",
			"upstream", upstream,
			"error", err,
			"duration_ms", rec.DurationMS,
		)
		respondProxyError(w, rec.Error)
		p.capture(r.URL.Path, rec)
		return
	}
	defer resp.Body.Close()

	progress := &progressReader{r: resp.Body, idle: idle, timeout: p.idleTimeout}
	if isEventStream(resp.Header) {
		p.streamResponse(w, resp, progress, rec, &timedOut)
	} else {
		p.bufferResponse(w, resp, progress, rec, &timedOut)
	}
	rec.DurationMS = time.Since(start).Milliseconds()
	slog.Debug("request complete",
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", rec.DurationMS,
	)
	p.capture(r.URL.Path, rec)
}

// streamResponse forwards an SSE body line by line, flushing after every
// write so client-visible timing mirrors the upstream. Each line is also
// accumulated, without its terminator, for the trace record. A client
// disconnect stops forwarding but not draining.
func (p *Proxy) streamResponse(w http.ResponseWriter, resp *http.Response, body io.Reader, rec *trace.Record, timedOut *atomic.Bool) {
	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	flusher, canFlush := w.(http.Flusher)

	reader := bufio.NewReaderSize(body, sseReadBuffer)
	lines := make([]string, 0, 64)
	clientGone := false
	for {
		chunk, err := reader.ReadString('\n')
		if chunk != "" {
			if !clientGone {
				if _, werr := io.WriteString(w, chunk); werr != nil {
					clientGone = true
					slog.Warn("client disconnected mid-stream, draining upstream", "id", rec.ID)
				} else if canFlush {
					flusher.Flush()
				}
			}
			lines = append(lines, trimLineEnding(chunk))
		}
		if err != nil {
			if err != io.EOF {
				// A drain cut short leaves an incomplete record; blame the
				// disconnect rather than whatever ended the drain.
				if clientGone {
					rec.Error = "client disconnected"
				} else {
					rec.Error = streamErrorLabel(err, timedOut)
				}
				slog.Error("upstream stream failed", "id", rec.ID, "error", err)
			}
			break
		}
	}
	rec.Response = map[string]any{"stream": true, "sse_lines": lines}
}

// bufferResponse reads the whole upstream body before responding, so a
// mid-body failure still yields a proxy error instead of a truncated 200.
func (p *Proxy) bufferResponse(w http.ResponseWriter, resp *http.Response, body io.Reader, rec *trace.Record, timedOut *atomic.Bool) {
	data, err := io.ReadAll(body)
	if err != nil {
		rec.Error = streamErrorLabel(err, timedOut)
		slog.Error("failed to read upstream response", "id", rec.ID, "error", err)
		respondProxyError(w, rec.Error)
		return
	}
	rec.Response = decodeResponseBody(data)

	copyResponseHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(data); err != nil {
		slog.Warn("client write failed", "id", rec.ID, "error", err)
	}
}

// capture appends the completed record unless the path is filtered out.
// Failures are logged and swallowed: the client already has its response,
// so capture must never affect the call.
func (p *Proxy) capture(path string, rec *trace.Record) {
	if p.log == nil {
		return
	}
	if p.filter != nil && !p.filter.ShouldCapture(path) {
		slog.Debug("capture filtered", "path", path)
		return
	}
	if err := p.log.Append(rec); err != nil {
		slog.Error("failed to append trace record", "id", rec.ID, "error", err)
	}
}

// progressReader resets the idle timer on every successful read, so the
// timeout measures upstream silence rather than total transfer time.
type progressReader struct {
	r       io.Reader
	idle    *time.Timer
	timeout time.Duration
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.idle.Reset(pr.timeout)
	}
	return n, err
}

// decodeRequestBody prepares a request body for the trace record: decoded
// JSON when it parses, nil when empty, otherwise the raw text tagged with
// its content type.
func decodeRequestBody(body []byte, contentType string) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return map[string]any{"content_type": contentType, "raw": string(body)}
}

// decodeResponseBody is the response-side equivalent; non-JSON bodies wrap
// under a "raw" key.
func decodeResponseBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return map[string]any{"raw": string(body)}
}

// errorLabel reduces an upstream failure to the short string stored on the
// record. Idle-timer cancellations surface as "timeout" even though they
// arrive as context errors.
func errorLabel(err error, timedOut *atomic.Bool) string {
	if timedOut.Load() {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return err.Error()
}

func streamErrorLabel(err error, timedOut *atomic.Bool) string {
	if timedOut.Load() {
		return "timeout"
	}
	return err.Error()
}

// respondProxyError sends the 502 shape clients can distinguish from an
// upstream error body.
func respondProxyError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadGateway, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "proxy_error",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func isEventStream(h http.Header) bool {
	return strings.HasPrefix(h.Get("Content-Type"), "text/event-stream")
}

// trimLineEnding strips the trailing \n and \r from a forwarded line so
// stored lines are terminator-free regardless of upstream line endings.
func trimLineEnding(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
