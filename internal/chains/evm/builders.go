package evm

import (
	"github.com/pendergraft/deployer/internal/chains"
	"github.com/pendergraft/deployer/internal/chains/evm/foundry"
	"github.com/pendergraft/deployer/internal/chains/evm/metadata"
)

// ChainName identifies EVM artifacts
const ChainName = "evm"

// Builders returns the EVM artifact readers in detection order. The flat
// metadata layout is probed first since Foundry output is a superset of it.
func Builders() []chains.Builder {
	return []chains.Builder{
		metadata.New(),
		foundry.New(),
	}
}

// NewRegistry returns a registry holding every EVM builder
func NewRegistry() *chains.Registry {
	return chains.NewRegistry(Builders()...)
}
