// Package logging provides structured logging for outgoing JSON-RPC requests.
package logging

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pendergraft/deployer/internal/middleware/jsonrpc"
)

// countingBody wraps a response body to count the bytes read from it
type countingBody struct {
	io.ReadCloser
	bytes int
	done  func(n int)
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.bytes += n
	return n, err
}

func (b *countingBody) Close() error {
	err := b.ReadCloser.Close()
	if b.done != nil {
		b.done(b.bytes)
		b.done = nil
	}
	return err
}

// RoundTripper returns an http.RoundTripper that logs each JSON-RPC request
// at debug level once its response body is closed. Fields:
// - method: JSON-RPC method
// - host: endpoint host (the URL may carry an API key, so the path is omitted)
// - status: HTTP status code
// - bytes: response body size
// - duration: time until the body was closed
//
// Failed round trips are logged at warn level. Nothing is logged, and the body
// is not inspected, unless the logger has debug enabled.
func RoundTripper(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		return next
	}
	return &roundTripper{next: next, logger: logger}
}

type roundTripper struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !rt.logger.Enabled(ctx, slog.LevelDebug) {
		return rt.next.RoundTrip(req)
	}

	req = req.Clone(ctx)
	method := jsonrpc.Method(req)
	start := time.Now()

	resp, err := rt.next.RoundTrip(req)
	if err != nil {
		rt.logger.Warn("rpc request failed",
			"method", method,
			"host", req.URL.Host,
			"duration", time.Since(start).String(),
			"error", err,
		)
		return nil, err
	}

	status := resp.StatusCode
	resp.Body = &countingBody{
		ReadCloser: resp.Body,
		done: func(n int) {
			rt.logger.Debug("rpc request",
				"method", method,
				"host", req.URL.Host,
				"status", status,
				"bytes", n,
				"duration", time.Since(start).String(),
			)
		},
	}
	return resp, nil
}
