package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pendergraft/deployer/internal/chains"
)

// DefaultPollInterval is how often receipts are polled when unset
const DefaultPollInterval = time.Second

// Deployer opens signing sessions against an EVM endpoint
type Deployer struct {
	dial         DialFunc
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Deployer
type Option func(*Deployer)

// WithDialer replaces the ethclient dialer, mostly for tests
func WithDialer(dial DialFunc) Option {
	return func(d *Deployer) { d.dial = dial }
}

// WithPollInterval sets how often the receipt is polled
func WithPollInterval(interval time.Duration) Option {
	return func(d *Deployer) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deployer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDeployer creates a Deployer that dials with ethclient by default
func NewDeployer(opts ...Option) *Deployer {
	d := &Deployer{
		dial:         DialRPC,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Session is a connected client plus the signer for one deployment
type Session struct {
	client       Client
	opts         *bind.TransactOpts
	chainID      *big.Int
	pollInterval time.Duration
	logger       *slog.Logger
}

// Connect dials rpcURL, asks the node for its chain id and binds the signing
// key to it. Asking for the chain id is the first network round trip, so an
// unreachable endpoint fails here before anything is signed.
func (d *Deployer) Connect(ctx context.Context, rpcURL, privateKey string) (*Session, error) {
	client, err := d.dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to endpoint: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		closeClient(client)
		return nil, fmt.Errorf("querying chain id: %w", err)
	}

	opts, err := TransactorFromRaw(privateKey, chainID)
	if err != nil {
		closeClient(client)
		return nil, err
	}

	d.logger.Debug("connected", "chain_id", chainID.String(), "from", opts.From.Hex())

	return &Session{
		client:       client,
		opts:         opts,
		chainID:      chainID,
		pollInterval: d.pollInterval,
		logger:       d.logger,
	}, nil
}

// From returns the deploying account
func (s *Session) From() common.Address {
	return s.opts.From
}

// ChainID returns the chain id reported by the node
func (s *Session) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Close releases the underlying connection
func (s *Session) Close() {
	closeClient(s.client)
}

// Submission is a signed and broadcast contract creation
type Submission struct {
	Tx      *types.Transaction
	Address common.Address
}

// Submit signs and broadcasts the creation transaction for artifact. Fees,
// gas limit and nonce are left to the node.
func (s *Session) Submit(ctx context.Context, artifact *chains.Artifact) (*Submission, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	parsed, err := ParseABI(artifact.EVM.ABI)
	if err != nil {
		return nil, err
	}
	if n := len(parsed.Constructor.Inputs); n > 0 {
		return nil, fmt.Errorf("%w: %d constructor inputs declared", ErrConstructorArgs, n)
	}

	code, err := hexutil.Decode(ensureHexPrefix(artifact.EVM.Bytecode))
	if err != nil {
		return nil, fmt.Errorf("decoding bytecode: %w", err)
	}

	opts := *s.opts
	opts.Context = ctx

	address, tx, _, err := bind.DeployContract(&opts, parsed, code, s.client)
	if err != nil {
		if isExecutionReverted(err) {
			return nil, fmt.Errorf("%w: %v", ErrReverted, err)
		}
		return nil, fmt.Errorf("sending creation transaction: %w", err)
	}

	s.logger.Info("transaction submitted", "tx", tx.Hash().Hex(), "predicted_address", address.Hex())

	return &Submission{Tx: tx, Address: address}, nil
}

// Confirmation is a mined, successful contract creation
type Confirmation struct {
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Confirm waits until the creation transaction is mined and checks that code
// exists at the new address. A failed receipt returns ErrReverted with the
// node's revert reason when one is available.
func (s *Session) Confirm(ctx context.Context, sub *Submission) (*Confirmation, error) {
	receipt, err := waitMined(ctx, s.client, sub.Tx.Hash(), s.pollInterval, s.logger)
	if err != nil {
		return nil, err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		if reason := revertReason(ctx, s.client, s.opts.From, sub.Tx, receipt); reason != "" {
			return nil, fmt.Errorf("%w in block %d: %s", ErrReverted, blockNumber(receipt), reason)
		}
		return nil, fmt.Errorf("%w in block %d", ErrReverted, blockNumber(receipt))
	}

	address := receipt.ContractAddress
	if address == (common.Address{}) {
		address = sub.Address
	}

	code, err := s.client.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("reading code at %s: %w", address.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, address.Hex())
	}

	return &Confirmation{
		Address:     address,
		TxHash:      sub.Tx.Hash(),
		BlockNumber: blockNumber(receipt),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
