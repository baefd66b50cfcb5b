package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pendergraft/deployer/internal/middleware/jsonrpc"
)

// RoundTripper returns an http.RoundTripper that records JSON-RPC request
// counts and latency by method. It returns next unchanged when metrics are
// disabled.
func RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if !enabled {
		return next
	}
	return &roundTripper{next: next}
}

type roundTripper struct {
	next http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	method := jsonrpc.Method(req)
	start := time.Now()

	resp, err := rt.next.RoundTrip(req)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	rpcRequestsTotal.WithLabelValues(method, status).Inc()
	rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	return resp, err
}
