package jsonrpc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"method":"eth_sendRawTransaction"}`, "eth_sendRawTransaction"},
		{`{"method":"net_version"}`, "net_version"},
		{`  [{"method":"eth_chainId"},{"method":"eth_blockNumber"}]`, Batch},
		{`{"method":"custom_thing"}`, Other},
		{`{"id":1}`, Unknown},
		{`not json`, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.want+"_"+tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize([]byte(tt.body)))
		})
	}
}

func TestMethod_RestoresBody(t *testing.T) {
	payload := `{"jsonrpc":"2.0","id":1,"method":"eth_chainId","params":[]}`
	req := httptest.NewRequest(http.MethodPost, "http://node.example", strings.NewReader(payload))

	assert.Equal(t, "eth_chainId", Method(req))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestMethod_OversizedBodyIsUnknownButIntact(t *testing.T) {
	payload := `{"method":"eth_call","params":["` + strings.Repeat("a", maxPeekBytes) + `"]}`
	req := httptest.NewRequest(http.MethodPost, "http://node.example", strings.NewReader(payload))

	assert.Equal(t, Unknown, Method(req))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Len(t, body, len(payload))
}

func TestMethod_NoBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://node.example", nil)
	assert.Equal(t, Unknown, Method(req))
}
