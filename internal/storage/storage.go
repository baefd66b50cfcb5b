package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/deployer/internal/config"
)

// AttemptStatus is the lifecycle state of a deployment attempt
type AttemptStatus string

const (
	StatusPending   AttemptStatus = "pending"
	StatusSubmitted AttemptStatus = "submitted"
	StatusConfirmed AttemptStatus = "confirmed"
	StatusFailed    AttemptStatus = "failed"
)

// Valid reports whether s is a known status
func (s AttemptStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// AttemptStore records deployment attempts
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a *Attempt) error
	UpdateAttempt(ctx context.Context, a *Attempt) error
	GetAttempt(ctx context.Context, id string) (*Attempt, error)
	ListAttempts(ctx context.Context, filter AttemptFilter, pagination PaginationParams) (*PaginatedResult[Attempt], error)
}

// Store combines the attempt journal with lifecycle methods
type Store interface {
	AttemptStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Attempt is one run of the deployer against a network
type Attempt struct {
	ID              string        `json:"id"`
	Network         string        `json:"network"`
	ChainID         uint64        `json:"chainId"`
	RPCURL          string        `json:"rpcUrl"`
	ContractName    string        `json:"contractName"`
	DeployerAddress string        `json:"deployerAddress,omitempty"`
	TxHash          string        `json:"txHash,omitempty"`
	Address         string        `json:"address,omitempty"`
	BlockNumber     uint64        `json:"blockNumber,omitempty"`
	Status          AttemptStatus `json:"status"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// AttemptFilter contains filter options for listing attempts
type AttemptFilter struct {
	Network string
	Status  AttemptStatus
}

// PaginationParams contains pagination options. Cursor is the ID of the last
// attempt on the previous page.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a store based on configuration
func New(cfg config.HistoryConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	case "none":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
