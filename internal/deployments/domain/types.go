// Package domain contains the business logic for contract deployment.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/deployer/internal/chains"
	"github.com/pendergraft/deployer/internal/config"
	"github.com/pendergraft/deployer/internal/netconfig"
	"github.com/pendergraft/deployer/internal/storage"
)

// Record describes a contract that was created, mined and has code. It is only
// built after all three hold.
type Record struct {
	Network         string         `json:"network"`
	URL             string         `json:"url"`
	ChainID         uint64         `json:"chainId"`
	Address         common.Address `json:"address"`
	TxHash          common.Hash    `json:"txHash"`
	BlockNumber     uint64         `json:"blockNumber"`
	GasUsed         uint64         `json:"gasUsed"`
	Deployer        common.Address `json:"deployer"`
	ReportedChainID uint64         `json:"reportedChainId"`
	Contract        string         `json:"contract"`
	AttemptID       string         `json:"attemptId,omitempty"`
	Output          string         `json:"output"`
}

// DeployRequest is everything needed for one deployment
type DeployRequest struct {
	Credentials config.Credentials
	Artifact    *chains.Artifact

	// Network and ChainID are written to the output as given; the chain id
	// reported by the node is only compared against ChainID.
	Network       string
	ChainID       uint64
	StrictChainID bool

	// ConfirmTimeout bounds the receipt wait; zero waits until cancelled.
	ConfirmTimeout time.Duration

	Output    string
	WriteMode netconfig.Mode
}

// HistoryFilter contains filter options for listing attempts
type HistoryFilter struct {
	Network string
	Status  storage.AttemptStatus
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// HistoryResult contains paginated attempts
type HistoryResult struct {
	Attempts   []storage.Attempt
	HasMore    bool
	NextCursor string
}
