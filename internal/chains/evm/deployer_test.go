package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/deployer/internal/chains"
)

const (
	pingABI = `[{"type":"function","name":"ping","inputs":[],"outputs":[],"stateMutability":"view"}]`

	// init code returning the one byte runtime 0x00
	storeStopCode = "0x6001600c60003960016000f300"

	// init code that reverts immediately
	revertCode = "0x60006000fd"
)

func artifact(abiJSON, code string) *chains.Artifact {
	return &chains.Artifact{
		Name:  "Ping",
		Chain: ChainName,
		EVM: &chains.EVMArtifact{
			ABI:      json.RawMessage(abiJSON),
			Bytecode: code,
		},
	}
}

// newSimulated returns a funded key and a simulated chain with id 1337
func newSimulated(t *testing.T) (*simulated.Backend, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	balance := new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))
	backend := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: balance},
	}, simulated.WithBlockGasLimit(50000000))
	t.Cleanup(func() { _ = backend.Close() })

	return backend, key
}

// startAutoMine commits a block every blockTime until the test ends
func startAutoMine(t *testing.T, backend *simulated.Backend, blockTime time.Duration) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := time.NewTicker(blockTime)
	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				backend.Commit()
			case <-ctx.Done():
				return
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// simClient hides Close so sessions cannot shut down the shared backend
type simClient struct {
	simulated.Client
}

func simDeployer(backend *simulated.Backend) *Deployer {
	return NewDeployer(
		WithPollInterval(10*time.Millisecond),
		WithDialer(func(context.Context, string) (Client, error) {
			return simClient{backend.Client()}, nil
		}),
	)
}

func keyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}

func TestDeployer_DeploysContract(t *testing.T) {
	backend, key := newSimulated(t)
	startAutoMine(t, backend, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := simDeployer(backend).Connect(ctx, "sim://", "0x"+keyHex(key))
	require.NoError(t, err)
	defer session.Close()

	from := crypto.PubkeyToAddress(key.PublicKey)
	assert.Equal(t, from, session.From())
	assert.Equal(t, params.AllDevChainProtocolChanges.ChainID.Uint64(), session.ChainID().Uint64())

	sub, err := session.Submit(ctx, artifact(pingABI, storeStopCode))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(from, 0), sub.Address)
	assert.Nil(t, sub.Tx.To())

	conf, err := session.Confirm(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, sub.Address, conf.Address)
	assert.Equal(t, sub.Tx.Hash(), conf.TxHash)
	assert.NotZero(t, conf.BlockNumber)
	assert.NotZero(t, conf.GasUsed)

	code, err := backend.Client().CodeAt(ctx, conf.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, code)
}

func TestDeployer_SequentialDeploysGetDistinctAddresses(t *testing.T) {
	backend, key := newSimulated(t)
	startAutoMine(t, backend, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d := simDeployer(backend)
	var addrs []common.Address
	for i := 0; i < 2; i++ {
		session, err := d.Connect(ctx, "sim://", keyHex(key))
		require.NoError(t, err)

		sub, err := session.Submit(ctx, artifact(pingABI, storeStopCode))
		require.NoError(t, err)
		conf, err := session.Confirm(ctx, sub)
		require.NoError(t, err)
		addrs = append(addrs, conf.Address)
	}

	assert.NotEqual(t, addrs[0], addrs[1])
}

func TestDeployer_SubmitErrors(t *testing.T) {
	backend, key := newSimulated(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := simDeployer(backend).Connect(ctx, "sim://", keyHex(key))
	require.NoError(t, err)

	t.Run("creation reverts", func(t *testing.T) {
		_, err := session.Submit(ctx, artifact(pingABI, revertCode))
		require.ErrorIs(t, err, ErrReverted)
	})

	t.Run("constructor arguments", func(t *testing.T) {
		abiJSON := `[{"type":"constructor","inputs":[{"name":"owner","type":"address"}],"stateMutability":"nonpayable"}]`
		_, err := session.Submit(ctx, artifact(abiJSON, storeStopCode))
		require.ErrorIs(t, err, ErrConstructorArgs)
	})

	t.Run("malformed abi", func(t *testing.T) {
		_, err := session.Submit(ctx, artifact(`[{"type":"function","name":1}]`, storeStopCode))
		require.ErrorIs(t, err, ErrInvalidABI)
	})

	t.Run("empty bytecode", func(t *testing.T) {
		_, err := session.Submit(ctx, artifact(pingABI, "0x"))
		require.ErrorIs(t, err, chains.ErrEmptyBytecode)
	})
}

func TestDeployer_ConfirmTimesOut(t *testing.T) {
	backend, key := newSimulated(t)

	ctx := context.Background()
	session, err := simDeployer(backend).Connect(ctx, "sim://", keyHex(key))
	require.NoError(t, err)

	sub, err := session.Submit(ctx, artifact(pingABI, storeStopCode))
	require.NoError(t, err)

	// no blocks are mined
	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	_, err = session.Confirm(waitCtx, sub)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeployer_ConnectErrors(t *testing.T) {
	t.Run("invalid private key", func(t *testing.T) {
		backend, _ := newSimulated(t)

		_, err := simDeployer(backend).Connect(context.Background(), "sim://", "0x1234")
		require.ErrorIs(t, err, ErrInvalidPrivateKey)
		assert.NotContains(t, err.Error(), "1234")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		key, err := crypto.GenerateKey()
		require.NoError(t, err)

		_, err = NewDeployer().Connect(ctx, "http://127.0.0.1:1", keyHex(key))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chain id")
	})

	t.Run("dial failure", func(t *testing.T) {
		dialErr := errors.New("no route")
		d := NewDeployer(WithDialer(func(context.Context, string) (Client, error) {
			return nil, dialErr
		}))

		_, err := d.Connect(context.Background(), "ws://node", "")
		require.ErrorIs(t, err, dialErr)
	})
}

func TestTransactorFromRaw(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	for _, raw := range []string{keyHex(key), "0x" + keyHex(key), " " + keyHex(key) + "\n"} {
		opts, err := TransactorFromRaw(raw, big.NewInt(14601))
		require.NoError(t, err)
		assert.Equal(t, want, opts.From)
	}

	_, err = TransactorFromRaw("zz", big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidPrivateKey)
}

// fakeClient overrides the calls Confirm makes; anything else panics
type fakeClient struct {
	Client

	receipts []*types.Receipt
	code     []byte
	callErr  error
}

func (f *fakeClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if len(f.receipts) == 0 {
		return nil, ethereum.NotFound
	}
	r := f.receipts[0]
	f.receipts = f.receipts[1:]
	if r == nil {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, f.callErr
}

func (f *fakeClient) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return f.code, nil
}

type rpcError struct {
	msg  string
	data any
}

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return 3 }
func (e rpcError) ErrorData() any { return e.data }

func fakeSession(t *testing.T, client Client) (*Session, *Submission) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := TransactorFromRaw(keyHex(key), big.NewInt(1))
	require.NoError(t, err)

	tx := types.NewContractCreation(0, big.NewInt(0), 100000, big.NewInt(1), []byte{0x60, 0x00})
	return &Session{
		client:       client,
		opts:         opts,
		chainID:      big.NewInt(1),
		pollInterval: time.Millisecond,
		logger:       NewDeployer().logger,
	}, &Submission{Tx: tx, Address: common.HexToAddress("0x00000000000000000000000000000000000000aa")}
}

func TestSession_Confirm(t *testing.T) {
	mined := func(status uint64) *types.Receipt {
		return &types.Receipt{Status: status, BlockNumber: big.NewInt(7), GasUsed: 21000}
	}

	t.Run("polls until mined", func(t *testing.T) {
		client := &fakeClient{
			receipts: []*types.Receipt{nil, nil, mined(types.ReceiptStatusSuccessful)},
			code:     []byte{0x00},
		}
		session, sub := fakeSession(t, client)

		conf, err := session.Confirm(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, sub.Address, conf.Address)
		assert.Equal(t, uint64(7), conf.BlockNumber)
		assert.Empty(t, client.receipts)
	})

	t.Run("reverted with reason", func(t *testing.T) {
		client := &fakeClient{
			receipts: []*types.Receipt{mined(types.ReceiptStatusFailed)},
			callErr:  rpcError{msg: "execution reverted", data: "0x08c379a0"},
		}
		session, sub := fakeSession(t, client)

		_, err := session.Confirm(context.Background(), sub)
		require.ErrorIs(t, err, ErrReverted)
		assert.Contains(t, err.Error(), "0x08c379a0")
		assert.Contains(t, err.Error(), "block 7")
	})

	t.Run("reverted without reason", func(t *testing.T) {
		client := &fakeClient{receipts: []*types.Receipt{mined(types.ReceiptStatusFailed)}}
		session, sub := fakeSession(t, client)

		_, err := session.Confirm(context.Background(), sub)
		require.ErrorIs(t, err, ErrReverted)
	})

	t.Run("no code at address", func(t *testing.T) {
		client := &fakeClient{receipts: []*types.Receipt{mined(types.ReceiptStatusSuccessful)}}
		session, sub := fakeSession(t, client)

		_, err := session.Confirm(context.Background(), sub)
		require.ErrorIs(t, err, ErrNoCode)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		session, sub := fakeSession(t, &fakeClient{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := session.Confirm(ctx, sub)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestJSONErrorData(t *testing.T) {
	data, err := jsonErrorData(rpcError{msg: "execution reverted", data: "0xdeadbeef"})
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", data)

	_, err = jsonErrorData(rpcError{msg: "missing trie node abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive node")

	_, err = jsonErrorData(errors.New("plain"))
	require.Error(t, err)

	_, err = jsonErrorData(nil)
	require.Error(t, err)
}

func TestNewRPCDialer_UsesHTTPClient(t *testing.T) {
	var used atomic.Bool
	httpClient := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		used.Store(true)
		return http.DefaultTransport.RoundTrip(req)
	})}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewRPCDialer(httpClient)(ctx, "http://127.0.0.1:1")
	require.NoError(t, err)
	defer closeClient(client)

	_, err = client.ChainID(ctx)
	require.Error(t, err)
	assert.True(t, used.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
