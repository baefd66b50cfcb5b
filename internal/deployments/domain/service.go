package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pendergraft/deployer/internal/chains/evm"
	"github.com/pendergraft/deployer/internal/netconfig"
	"github.com/pendergraft/deployer/internal/observability/metrics"
	"github.com/pendergraft/deployer/internal/storage"
	"github.com/pendergraft/deployer/internal/validation"
)

// Service defines the deployment service interface.
type Service interface {
	// Deploy creates the contract and records it in the output file.
	Deploy(ctx context.Context, req DeployRequest) (*Record, error)

	// History lists past deployment attempts.
	History(ctx context.Context, filter HistoryFilter, pagination PaginationParams) (*HistoryResult, error)
}

// service implements the Service interface.
type service struct {
	deployer *evm.Deployer
	store    storage.AttemptStore
	logger   *slog.Logger
}

// NewService creates a new deployment service. A nil store disables the
// attempt journal.
func NewService(deployer *evm.Deployer, store storage.AttemptStore, logger *slog.Logger) Service {
	if store == nil {
		store = storage.NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{deployer: deployer, store: store, logger: logger}
}

// Deploy connects, submits the creation transaction, waits for it to be mined
// and only then writes the output file. Every failure is a *DeploymentError
// and leaves the output file untouched.
func (s *service) Deploy(ctx context.Context, req DeployRequest) (rec *Record, err error) {
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = KindOf(err).String()
		}
		metrics.DeploymentResult(req.Network, result)
		metrics.DeployDuration(req.Network, time.Since(start))
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	logger := s.logger.With("network", req.Network, "contract", req.Artifact.Name)

	attempt := &storage.Attempt{
		Network:      req.Network,
		ChainID:      req.ChainID,
		RPCURL:       req.Credentials.RPCURL,
		ContractName: req.Artifact.Name,
	}
	s.journal(ctx, "create", func(ctx context.Context) error {
		return s.store.CreateAttempt(ctx, attempt)
	})
	defer func() {
		if err == nil || attempt.Status == storage.StatusConfirmed {
			return
		}
		attempt.Status = storage.StatusFailed
		attempt.Error = err.Error()
		s.journal(context.WithoutCancel(ctx), "update", func(ctx context.Context) error {
			return s.store.UpdateAttempt(ctx, attempt)
		})
	}()

	logger.Info("connecting", "chain_id", req.ChainID)
	session, err := s.deployer.Connect(ctx, req.Credentials.RPCURL, req.Credentials.PrivateKey)
	if err != nil {
		return nil, classify(ctx, "connect", err)
	}
	defer session.Close()

	reported := session.ChainID().Uint64()
	if reported != req.ChainID {
		if req.StrictChainID {
			return nil, newError(KindConfiguration, "check chain id",
				fmt.Errorf("%w: node reports %d, configured %d", ErrChainIDMismatch, reported, req.ChainID))
		}
		logger.Warn("node chain id differs from configured chain id",
			"reported", reported, "configured", req.ChainID)
	}

	attempt.DeployerAddress = session.From().Hex()

	sub, err := session.Submit(ctx, req.Artifact)
	if err != nil {
		return nil, classify(ctx, "submit", err)
	}

	attempt.Status = storage.StatusSubmitted
	attempt.TxHash = sub.Tx.Hash().Hex()
	s.journal(ctx, "update", func(ctx context.Context) error {
		return s.store.UpdateAttempt(ctx, attempt)
	})

	logger.Info("waiting for confirmation", "tx", attempt.TxHash)
	waitStart := time.Now()
	conf, err := s.confirm(ctx, session, sub, req.ConfirmTimeout)
	metrics.ConfirmationWait(req.Network, time.Since(waitStart))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("no receipt within %s for %s: %w", req.ConfirmTimeout, attempt.TxHash, err)
		}
		return nil, classify(ctx, "confirm", err)
	}

	rec = &Record{
		Network:         req.Network,
		URL:             req.Credentials.RPCURL,
		ChainID:         req.ChainID,
		Address:         conf.Address,
		TxHash:          conf.TxHash,
		BlockNumber:     conf.BlockNumber,
		GasUsed:         conf.GasUsed,
		Deployer:        session.From(),
		ReportedChainID: reported,
		Contract:        req.Artifact.Name,
		AttemptID:       attempt.ID,
		Output:          req.Output,
	}

	attempt.Status = storage.StatusConfirmed
	attempt.Address = conf.Address.Hex()
	attempt.BlockNumber = conf.BlockNumber
	s.journal(ctx, "update", func(ctx context.Context) error {
		return s.store.UpdateAttempt(ctx, attempt)
	})

	entry := netconfig.Network{
		URL:     rec.URL,
		ChainID: rec.ChainID,
		Address: rec.Address.Hex(),
	}
	if err := netconfig.Write(req.Output, req.Network, entry, req.WriteMode); err != nil {
		// The contract exists on chain; keep its address in the journal.
		attempt.Error = fmt.Sprintf("writing %s: %v", req.Output, err)
		s.journal(context.WithoutCancel(ctx), "update", func(ctx context.Context) error {
			return s.store.UpdateAttempt(ctx, attempt)
		})
		return rec, newError(KindFilesystem, "write output",
			fmt.Errorf("contract deployed at %s but %s was not written: %w", rec.Address.Hex(), req.Output, err))
	}

	logger.Info("contract deployed",
		"address", rec.Address.Hex(),
		"tx", rec.TxHash.Hex(),
		"block", rec.BlockNumber,
		"output", req.Output,
	)
	return rec, nil
}

func (s *service) confirm(ctx context.Context, session *evm.Session, sub *evm.Submission, timeout time.Duration) (*evm.Confirmation, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return session.Confirm(ctx, sub)
}

// journal runs a journal write. Failures are logged and counted, never
// returned.
func (s *service) journal(ctx context.Context, op string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		metrics.JournalError(op)
		s.logger.Warn("attempt journal write failed", "op", op, "error", err)
	}
}

// History lists past deployment attempts.
func (s *service) History(ctx context.Context, filter HistoryFilter, pagination PaginationParams) (*HistoryResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidStatus, filter.Status)
	}

	result, err := s.store.ListAttempts(ctx, storage.AttemptFilter{
		Network: filter.Network,
		Status:  filter.Status,
	}, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}

	return &HistoryResult{
		Attempts:   result.Data,
		HasMore:    result.HasMore,
		NextCursor: result.NextCursor,
	}, nil
}

// validateRequest checks presence and shape of the inputs before anything
// touches the network
func validateRequest(req DeployRequest) error {
	const op = "validate"

	if strings.TrimSpace(req.Credentials.RPCURL) == "" {
		return newError(KindConfiguration, op, ErrMissingRPCURL)
	}
	if err := validation.ValidateRPCURL(req.Credentials.RPCURL); err != nil {
		return newError(KindConfiguration, op, err)
	}
	if strings.TrimSpace(req.Credentials.PrivateKey) == "" {
		return newError(KindConfiguration, op, ErrMissingPrivateKey)
	}
	if err := validation.ValidateNetworkName(req.Network); err != nil {
		return newError(KindConfiguration, op, err)
	}
	if err := validation.ValidateChainID(int64(req.ChainID)); err != nil {
		return newError(KindConfiguration, op, err)
	}
	if _, err := netconfig.FormatFor(req.Output); err != nil || req.Output == "" {
		if err == nil {
			err = errors.New("output path is empty")
		}
		return newError(KindConfiguration, op, err)
	}
	if req.WriteMode != "" && req.WriteMode != netconfig.ModeMerge && req.WriteMode != netconfig.ModeReplace {
		return newError(KindConfiguration, op, fmt.Errorf("unknown write mode %q", req.WriteMode))
	}

	if req.Artifact == nil {
		return newError(KindArtifact, op, ErrMissingArtifact)
	}
	if err := req.Artifact.Validate(); err != nil {
		return newError(KindArtifact, op, err)
	}

	return nil
}
