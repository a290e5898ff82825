package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/pkg/logger"
)

const (
	defaultGasLimit       = 500_000
	transferGasLimit      = 21_000
	defaultConfirmTimeout = 2 * time.Minute
	defaultReceiptPoll    = time.Second
)

// Backend is the subset of chain RPC the executor needs. *ethclient.Client
// satisfies it; tests substitute a scripted fake.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	FilterLogs(ctx context.Context, q gethcore.FilterQuery) ([]coretypes.Log, error)
}

// CallDescriptor describes one contract call. An empty ABI means a plain
// value transfer to To.
type CallDescriptor struct {
	To       common.Address
	ABI      string
	Method   string
	Args     []any
	GasLimit uint64
}

// Result is a confirmed transaction outcome. A hash without a mined receipt
// is never surfaced as a result.
type Result struct {
	Hash        common.Hash
	BlockNumber *big.Int
	GasUsed     uint64
}

// Executor submits signed transactions on one network and blocks until a
// confirmation is observed. Retries are never automatic: a caller retrying
// after a submission failure picks up a fresh nonce on the next call.
// Submissions from the same signer are serialized so concurrent calls never
// reuse a pending nonce; the receipt wait runs outside that lock.
type Executor struct {
	network        Network
	backend        Backend
	chainID        *big.Int
	confirmTimeout time.Duration
	receiptPoll    time.Duration
	log            *slog.Logger

	mu      sync.Mutex
	signers map[common.Address]*sync.Mutex
}

// ExecutorOption tunes an executor.
type ExecutorOption func(*Executor)

// WithConfirmTimeout bounds the receipt wait.
func WithConfirmTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.confirmTimeout = d
		}
	}
}

// WithReceiptPollInterval sets how often the receipt is polled for.
func WithReceiptPollInterval(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.receiptPoll = d
		}
	}
}

// NewExecutor dials the network's RPC endpoint.
func NewExecutor(ctx context.Context, network Network, opts ...ExecutorOption) (*Executor, error) {
	rpcURL := strings.TrimSpace(network.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "network "+network.Name+" has no RPC endpoint")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "dial "+network.Name)
	}
	return NewExecutorWithBackend(network, client, opts...), nil
}

// NewExecutorWithBackend wires an executor over an existing backend.
func NewExecutorWithBackend(network Network, backend Backend, opts ...ExecutorOption) *Executor {
	e := &Executor{
		network:        network,
		backend:        backend,
		chainID:        new(big.Int).SetUint64(network.ChainID),
		confirmTimeout: defaultConfirmTimeout,
		receiptPoll:    defaultReceiptPoll,
		log:            logger.Named("executor"),
		signers:        make(map[common.Address]*sync.Mutex),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Network returns the network this executor targets.
func (e *Executor) Network() Network {
	return e.network
}

// Close releases the underlying RPC connection when there is one.
func (e *Executor) Close() {
	if client, ok := e.backend.(*ethclient.Client); ok {
		client.Close()
	}
}

// Execute builds the call data, signs with key, submits, and waits for the
// confirmation. Failures carry a distinguishable code per pipeline step:
// SIGNING, SUBMISSION, CONFIRMATION_TIMEOUT, REVERTED.
func (e *Executor) Execute(ctx context.Context, key *ecdsa.PrivateKey, call CallDescriptor, value *big.Int) (*Result, error) {
	if key == nil {
		return nil, xerrors.New(xerrors.CodeSigning, "no signer key provided")
	}

	data, err := e.packCallData(call)
	if err != nil {
		return nil, err
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	hash, err := e.submit(ctx, key, from, call, data, value)
	if err != nil {
		return nil, err
	}
	return e.waitConfirmed(ctx, hash)
}

// submit holds the signer's lock from the pending-nonce read through the raw
// submission so two concurrent calls signing with the same key never issue
// conflicting nonces.
func (e *Executor) submit(ctx context.Context, key *ecdsa.PrivateKey, from common.Address, call CallDescriptor, data []byte, value *big.Int) (common.Hash, error) {
	lock := e.signerLock(from)
	lock.Lock()
	defer lock.Unlock()

	nonce, err := e.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeSubmission, err, "fetch nonce for "+from.Hex())
	}
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeSubmission, err, "fetch gas price")
	}

	gasLimit := call.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
		if len(data) == 0 {
			gasLimit = transferGasLimit
		}
	}
	if value == nil {
		value = new(big.Int)
	}

	to := call.To
	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(e.chainID), key)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeSigning, err, "sign transaction")
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeSubmission, err, "submit transaction")
	}

	hash := signed.Hash()
	e.log.Info("transaction submitted",
		slog.String("network", e.network.Name),
		slog.String("hash", hash.Hex()),
		slog.Uint64("nonce", nonce),
	)
	logger.Audit().Info("transaction submitted",
		slog.String("network", e.network.Name),
		slog.String("from", from.Hex()),
		slog.String("to", call.To.Hex()),
		slog.String("hash", hash.Hex()),
	)
	return hash, nil
}

func (e *Executor) signerLock(from common.Address) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.signers[from]
	if !ok {
		lock = &sync.Mutex{}
		e.signers[from] = lock
	}
	return lock
}

// Nonce returns the pending nonce for an address.
func (e *Executor) Nonce(ctx context.Context, address common.Address) (uint64, error) {
	return e.backend.PendingNonceAt(ctx, address)
}

// Logs runs a log filter query against the network.
func (e *Executor) Logs(ctx context.Context, q gethcore.FilterQuery) ([]coretypes.Log, error) {
	return e.backend.FilterLogs(ctx, q)
}

func (e *Executor) packCallData(call CallDescriptor) ([]byte, error) {
	if strings.TrimSpace(call.ABI) == "" {
		return nil, nil
	}
	parsed, err := abi.JSON(strings.NewReader(call.ABI))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "parse call ABI")
	}
	data, err := parsed.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "pack call arguments for "+call.Method)
	}
	return data, nil
}

// waitConfirmed polls for the receipt until the confirmation timeout. A hash
// is only promoted to a Result once a mined receipt with success status is
// observed.
func (e *Executor) waitConfirmed(parent context.Context, hash common.Hash) (*Result, error) {
	ctx, cancel := context.WithTimeout(parent, e.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := e.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != coretypes.ReceiptStatusSuccessful {
				return nil, xerrors.New(xerrors.CodeReverted, "transaction "+hash.Hex()+" reverted",
					xerrors.WithMetadata("hash", hash.Hex()))
			}
			return &Result{
				Hash:        hash,
				BlockNumber: receipt.BlockNumber,
				GasUsed:     receipt.GasUsed,
			}, nil
		case err != nil && !errors.Is(err, gethcore.NotFound):
			// Transient lookup errors are retried until the deadline; only
			// cancellation ends the wait early.
			if ctx.Err() != nil {
				return nil, xerrors.Wrap(xerrors.CodeConfirmationTimeout, err, "waiting for "+hash.Hex())
			}
		}

		select {
		case <-ctx.Done():
			return nil, xerrors.Wrap(xerrors.CodeConfirmationTimeout, ctx.Err(), "waiting for "+hash.Hex())
		case <-ticker.C:
		}
	}
}
