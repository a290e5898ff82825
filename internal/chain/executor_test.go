package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "ChainPilot/internal/errors"
)

// fakeBackend scripts the RPC surface the executor depends on.
type fakeBackend struct {
	mu             sync.Mutex
	nonce          uint64
	nonceErr       error
	sendErr        error
	receiptStatus  uint64
	receiptAfter   int
	receiptLookups int
	sent           []*coretypes.Transaction
	logs           []coretypes.Log
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *coretypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptLookups++
	if f.receiptLookups <= f.receiptAfter {
		return nil, gethcore.NotFound
	}
	return &coretypes.Receipt{
		Status:      f.receiptStatus,
		BlockNumber: big.NewInt(42),
		GasUsed:     21_000,
		TxHash:      hash,
	}, nil
}

func (f *fakeBackend) FilterLogs(context.Context, gethcore.FilterQuery) ([]coretypes.Log, error) {
	return f.logs, nil
}

func testNetwork() Network {
	return Network{
		Name:        NetworkSepolia,
		ChainID:     11155111,
		ExplorerURL: "https://sepolia.etherscan.io",
	}
}

func testExecutor(backend Backend) *Executor {
	return NewExecutorWithBackend(testNetwork(), backend,
		WithConfirmTimeout(500*time.Millisecond),
		WithReceiptPollInterval(5*time.Millisecond),
	)
}

func TestExecuteConfirmsTransfer(t *testing.T) {
	key, _ := crypto.GenerateKey()
	backend := &fakeBackend{nonce: 7, receiptStatus: coretypes.ReceiptStatusSuccessful, receiptAfter: 2}
	executor := testExecutor(backend)

	value, _ := ParseAmount("0.1", NativeDecimals)
	result, err := executor.Execute(context.Background(), key,
		CallDescriptor{To: common.HexToAddress("0x58A6a7d6b16b2c7A276d7901AB65596A1BEaa25B")}, value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BlockNumber.Int64() != 42 || result.Hash == (common.Hash{}) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected exactly one submitted transaction, got %d", len(backend.sent))
	}
	sent := backend.sent[0]
	if sent.Nonce() != 7 || sent.Value().Cmp(value) != 0 || sent.Gas() != transferGasLimit {
		t.Fatalf("unexpected transaction: nonce=%d value=%s gas=%d", sent.Nonce(), sent.Value(), sent.Gas())
	}
}

func TestExecutePacksContractCall(t *testing.T) {
	const bridgeABI = `[{"inputs":[{"name":"destinationChainId","type":"uint32"},{"name":"amount","type":"uint256"}],"name":"bridge","outputs":[],"stateMutability":"payable","type":"function"}]`

	key, _ := crypto.GenerateKey()
	backend := &fakeBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	executor := testExecutor(backend)

	_, err := executor.Execute(context.Background(), key, CallDescriptor{
		To:     common.HexToAddress("0xf011B7B9e72CD1C530BaA6e583aa19e6E43Dc1Be"),
		ABI:    bridgeABI,
		Method: "bridge",
		Args:   []any{uint32(902), big.NewInt(1)},
	}, big.NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.sent[0].Data()) == 0 {
		t.Fatalf("contract call has no calldata")
	}
	if backend.sent[0].Gas() != defaultGasLimit {
		t.Fatalf("expected default gas limit, got %d", backend.sent[0].Gas())
	}
}

// nonceTrackingBackend serves the pending nonce from the transactions it has
// already accepted, the way a real node does. The pause between reading the
// count and returning it opens the window in which two unserialized callers
// would both observe the same nonce.
type nonceTrackingBackend struct {
	fakeBackend
}

func (f *nonceTrackingBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	pending := uint64(len(f.sent))
	f.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	return pending, nil
}

func TestExecuteSerializesSameSignerSubmissions(t *testing.T) {
	key, _ := crypto.GenerateKey()
	backend := &nonceTrackingBackend{fakeBackend: fakeBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}}
	executor := testExecutor(backend)
	to := common.HexToAddress("0x58A6a7d6b16b2c7A276d7901AB65596A1BEaa25B")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := executor.Execute(context.Background(), key, CallDescriptor{To: to}, big.NewInt(1)); err != nil {
				t.Errorf("execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(backend.sent) != 2 {
		t.Fatalf("expected two submitted transactions, got %d", len(backend.sent))
	}
	first, second := backend.sent[0].Nonce(), backend.sent[1].Nonce()
	if first == second {
		t.Fatalf("concurrent submissions from one signer reused nonce %d", first)
	}
	if first+second != 1 {
		t.Fatalf("expected nonces 0 and 1, got %d and %d", first, second)
	}
}

func TestExecuteFailureCodes(t *testing.T) {
	key, _ := crypto.GenerateKey()

	t.Run("signing", func(t *testing.T) {
		executor := testExecutor(&fakeBackend{})
		_, err := executor.Execute(context.Background(), nil, CallDescriptor{}, nil)
		if !xerrors.HasCode(err, xerrors.CodeSigning) {
			t.Fatalf("expected SIGNING, got %v", err)
		}
	})

	t.Run("submission", func(t *testing.T) {
		executor := testExecutor(&fakeBackend{sendErr: errors.New("insufficient funds for gas * price + value")})
		_, err := executor.Execute(context.Background(), key, CallDescriptor{}, nil)
		if !xerrors.HasCode(err, xerrors.CodeSubmission) {
			t.Fatalf("expected SUBMISSION, got %v", err)
		}
	})

	t.Run("reverted", func(t *testing.T) {
		executor := testExecutor(&fakeBackend{receiptStatus: coretypes.ReceiptStatusFailed})
		_, err := executor.Execute(context.Background(), key, CallDescriptor{}, nil)
		if !xerrors.HasCode(err, xerrors.CodeReverted) {
			t.Fatalf("expected REVERTED, got %v", err)
		}
	})

	t.Run("confirmation timeout", func(t *testing.T) {
		// Receipt never appears within the executor's patience.
		executor := NewExecutorWithBackend(testNetwork(), &fakeBackend{receiptAfter: 1 << 30},
			WithConfirmTimeout(20*time.Millisecond),
			WithReceiptPollInterval(5*time.Millisecond),
		)
		_, err := executor.Execute(context.Background(), key, CallDescriptor{}, nil)
		if !xerrors.HasCode(err, xerrors.CodeConfirmationTimeout) {
			t.Fatalf("expected CONFIRMATION_TIMEOUT, got %v", err)
		}
	})

	t.Run("caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		executor := testExecutor(&fakeBackend{receiptAfter: 1 << 30})
		cancel()
		_, err := executor.Execute(ctx, key, CallDescriptor{}, nil)
		if err == nil {
			t.Fatalf("expected error after cancellation")
		}
	})
}

func TestLoadDefinitionsDefaults(t *testing.T) {
	defs, err := LoadDefinitions("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{NetworkSepolia, NetworkBaseSepolia, NetworkFlowTestnet} {
		network, err := defs.Build(name)
		if err != nil {
			t.Fatalf("build %s: %v", name, err)
		}
		if network.ChainID == 0 || network.RPCURL == "" {
			t.Fatalf("incomplete default network %s: %+v", name, network)
		}
	}
	if network, _ := defs.Build(NetworkSepolia); network.BridgeID != 901 {
		t.Fatalf("unexpected bridge id: %d", network.BridgeID)
	}
}
