// Package evm deploys contracts to Ethereum and compatible chains over JSON-RPC.
package evm

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Deployment errors raised by this package
var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidABI        = errors.New("invalid contract ABI")
	ErrConstructorArgs   = errors.New("constructor requires arguments")
	ErrReverted          = errors.New("contract creation reverted")
	ErrNoCode            = errors.New("no code at deployed address")
)

// Client is the subset of an EVM node client needed to deploy a contract.
// *ethclient.Client and the go-ethereum simulated client both satisfy it.
type Client interface {
	bind.ContractBackend
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
}

// DialFunc opens a client for an endpoint URL
type DialFunc func(ctx context.Context, rawURL string) (Client, error)

// DialRPC dials an endpoint with go-ethereum's ethclient. For HTTP endpoints no
// request is made until the client is first used.
func DialRPC(ctx context.Context, rawURL string) (Client, error) {
	c, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewRPCDialer returns a DialFunc whose HTTP endpoints use httpClient, so
// callers can instrument or tune the transport. WebSocket and IPC endpoints
// dial as usual.
func NewRPCDialer(httpClient *http.Client) DialFunc {
	if httpClient == nil {
		return DialRPC
	}
	return func(ctx context.Context, rawURL string) (Client, error) {
		c, err := rpc.DialOptions(ctx, rawURL, rpc.WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		return ethclient.NewClient(c), nil
	}
}

// closeClient closes clients that hold connections
func closeClient(c Client) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}
