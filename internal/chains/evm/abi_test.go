package evm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	raw := json.RawMessage(`[
		{"type":"constructor","inputs":[{"name":"owner","type":"address"}],"stateMutability":"payable"},
		{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
		{"type":"function","name":"balanceOf","inputs":[{"name":"who","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
		{"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}],"anonymous":false},
		{"type":"error","name":"Unauthorized","inputs":[]}
	]`)

	info, err := Describe(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"address owner"}, info.Constructor)
	assert.True(t, info.Payable)
	assert.Equal(t, []string{"balanceOf(address)", "transfer(address,uint256)"}, info.Functions)
	assert.Equal(t, []string{"Transfer(address,address,uint256)"}, info.Events)
	assert.Equal(t, []string{"Unauthorized()"}, info.Errors)
}

func TestDescribe_NoConstructor(t *testing.T) {
	info, err := Describe(json.RawMessage(pingABI))
	require.NoError(t, err)

	assert.Empty(t, info.Constructor)
	assert.False(t, info.Payable)
	assert.Equal(t, []string{"ping()"}, info.Functions)
}

func TestParseABI_Invalid(t *testing.T) {
	_, err := ParseABI(json.RawMessage(`{"not":"an array"}`))
	require.ErrorIs(t, err, ErrInvalidABI)
}
