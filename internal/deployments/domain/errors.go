package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/deployer/internal/chains"
	"github.com/pendergraft/deployer/internal/chains/evm"
	"github.com/pendergraft/deployer/internal/netconfig"
)

// Kind classifies why a deployment failed
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindArtifact
	KindTransport
	KindReverted
	KindFilesystem
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindArtifact:
		return "artifact"
	case KindTransport:
		return "transport"
	case KindReverted:
		return "reverted"
	case KindFilesystem:
		return "filesystem"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Common errors returned by the deployment service. Several alias the
// lower level package errors so callers only need this package.
var (
	ErrMissingRPCURL     = errors.New("RPC_URL is not set")
	ErrMissingPrivateKey = errors.New("PRIVATE_KEY is not set")
	ErrChainIDMismatch   = errors.New("node chain id does not match the configured chain id")
	ErrMissingArtifact   = errors.New("no contract artifact")

	ErrInvalidPrivateKey = evm.ErrInvalidPrivateKey
	ErrEmptyABI          = chains.ErrEmptyABI
	ErrEmptyBytecode     = chains.ErrEmptyBytecode
	ErrUnlinkedLibrary   = chains.ErrUnlinkedLibrary
	ErrReverted          = evm.ErrReverted
	ErrNoCode            = evm.ErrNoCode
)

// DeploymentError is returned by Service.Deploy for every failure
type DeploymentError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *DeploymentError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a DeploymentError anywhere in err's chain
func KindOf(err error) Kind {
	var de *DeploymentError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *DeploymentError {
	return &DeploymentError{Kind: kind, Op: op, Err: err}
}

// classify wraps err from op in a DeploymentError. Cancellation of ctx wins
// over whatever the transport reported, since ethclient does not always wrap
// context errors.
func classify(ctx context.Context, op string, err error) *DeploymentError {
	var de *DeploymentError
	if errors.As(err, &de) {
		return de
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return newError(KindInterrupted, op, err)
	case errors.Is(err, ErrMissingRPCURL),
		errors.Is(err, ErrMissingPrivateKey),
		errors.Is(err, ErrInvalidPrivateKey),
		errors.Is(err, ErrChainIDMismatch),
		errors.Is(err, netconfig.ErrUnsupportedFormat):
		return newError(KindConfiguration, op, err)
	case errors.Is(err, ErrMissingArtifact),
		errors.Is(err, chains.ErrUnknownFormat),
		errors.Is(err, ErrEmptyABI),
		errors.Is(err, ErrEmptyBytecode),
		errors.Is(err, ErrUnlinkedLibrary),
		errors.Is(err, evm.ErrInvalidABI),
		errors.Is(err, evm.ErrConstructorArgs):
		return newError(KindArtifact, op, err)
	case errors.Is(err, ErrReverted), errors.Is(err, ErrNoCode):
		return newError(KindReverted, op, err)
	default:
		return newError(KindTransport, op, err)
	}
}
