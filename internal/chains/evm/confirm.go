package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"
)

// waitMined polls for the receipt of txHash at most once per interval until it
// is found or ctx is done. Lookup errors other than not found are logged and
// retried since nodes commonly fail transiently while the transaction is
// still propagating.
func waitMined(ctx context.Context, b bind.DeployBackend, txHash common.Hash, interval time.Duration, logger *slog.Logger) (*types.Receipt, error) {
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			logger.Debug("receipt lookup failed", "tx", txHash.Hex(), "error", err)
		}

		if err := limiter.Wait(ctx); err != nil {
			// The limiter refuses waits that would overrun the deadline.
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
}

// contractCaller is the CallContract half of bind.ContractCaller
type contractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// revertReason replays a failed transaction as a call at the block it was mined
// in and extracts the node's revert data. It returns an empty string when the
// node gives no reason.
func revertReason(ctx context.Context, caller contractCaller, from common.Address, tx *types.Transaction, receipt *types.Receipt) string {
	call := ethereum.CallMsg{
		From:     from,
		To:       tx.To(),
		Data:     tx.Data(),
		Value:    tx.Value(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
	}

	_, err := caller.CallContract(ctx, call, receipt.BlockNumber)
	if err == nil {
		return ""
	}

	if data, perr := jsonErrorData(err); perr == nil && data != "" {
		return data
	}
	return err.Error()
}

// jsonErrorData extracts the data field of a JSON-RPC error
func jsonErrorData(err error) (string, error) {
	if err == nil {
		return "", errors.New("cannot parse nil error")
	}

	// rpc.jsonError is private in go-ethereum
	type jsonError interface {
		Error() string
		ErrorCode() int
		ErrorData() any
	}

	var jerr jsonError
	if !errors.As(err, &jerr) {
		return "", fmt.Errorf("not a JSON-RPC error: %w", err)
	}

	if jerr.ErrorData() == nil {
		if strings.Contains(jerr.Error(), "missing trie node") {
			return "", errors.New("missing trie node, likely due to not using an archive node")
		}
		return "", nil
	}

	return fmt.Sprintf("%v", jerr.ErrorData()), nil
}

// isExecutionReverted reports whether a send or estimate error came from the
// EVM reverting rather than from the transport
func isExecutionReverted(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}
