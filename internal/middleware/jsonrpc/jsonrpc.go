// Package jsonrpc inspects outgoing JSON-RPC requests for the client-side
// round trippers.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxPeekBytes bounds how much of a request body is read to find the method
const maxPeekBytes = 1 << 20

// Labels returned when the method cannot be named
const (
	Batch   = "batch"
	Other   = "other"
	Unknown = "unknown"
)

// Method reads the JSON-RPC method from req's body and restores the body so
// the request can still be sent. Methods outside the standard namespaces are
// reported as Other and batches as Batch, which keeps the result usable as a
// metric label. Callers that do not own req should clone it first.
func Method(req *http.Request) string {
	if req.Body == nil || req.Body == http.NoBody {
		return Unknown
	}

	orig := req.Body
	body, err := io.ReadAll(io.LimitReader(orig, maxPeekBytes+1))
	req.Body = readCloser{io.MultiReader(bytes.NewReader(body), orig), orig}
	if err != nil || len(body) > maxPeekBytes {
		return Unknown
	}

	return normalize(body)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// normalize extracts a bounded label from a JSON-RPC payload
func normalize(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return Batch
	}

	var msg struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(trimmed, &msg); err != nil || msg.Method == "" {
		return Unknown
	}

	for _, ns := range []string{"eth_", "net_", "web3_", "debug_", "txpool_"} {
		if strings.HasPrefix(msg.Method, ns) {
			return msg.Method
		}
	}
	return Other
}
