package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pendergraft/deployer/internal/chains"
	"github.com/pendergraft/deployer/internal/chains/evm"
)

func TestClassify(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want Kind
	}{
		{"invalid key", live, fmt.Errorf("x: %w", evm.ErrInvalidPrivateKey), KindConfiguration},
		{"chain id mismatch", live, ErrChainIDMismatch, KindConfiguration},
		{"unlinked library", live, chains.ErrUnlinkedLibrary, KindArtifact},
		{"constructor args", live, evm.ErrConstructorArgs, KindArtifact},
		{"bad abi", live, evm.ErrInvalidABI, KindArtifact},
		{"reverted", live, fmt.Errorf("tx: %w", evm.ErrReverted), KindReverted},
		{"no code", live, evm.ErrNoCode, KindReverted},
		{"rpc failure", live, errors.New("connection refused"), KindTransport},
		{"deadline", live, context.DeadlineExceeded, KindTransport},
		{"cancelled error", live, context.Canceled, KindInterrupted},
		{"cancelled context wins", cancelled, errors.New("rpc: closed"), KindInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, "op", tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_KeepsExistingKind(t *testing.T) {
	orig := newError(KindFilesystem, "write", errors.New("boom"))
	got := classify(context.Background(), "other", fmt.Errorf("wrapped: %w", orig))
	assert.Same(t, orig, got)
}

func TestDeploymentError(t *testing.T) {
	err := newError(KindReverted, "confirm", evm.ErrReverted)
	assert.Equal(t, "reverted error: confirm: contract creation reverted", err.Error())
	assert.ErrorIs(t, err, ErrReverted)
	assert.Equal(t, KindReverted, KindOf(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	noOp := &DeploymentError{Kind: KindConfiguration, Err: ErrMissingRPCURL}
	assert.Equal(t, "configuration error: RPC_URL is not set", noOp.Error())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "interrupted", KindInterrupted.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
