package tools

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	coretypes "github.com/ethereum/go-ethereum/core/types"
)

func TestTransferRejectsAmountAtCeiling(t *testing.T) {
	backend := &scriptedBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	deps, _ := testDeps(t, backend, &scriptedQuotes{})
	dispatcher := testDispatcher(t, deps)

	payload := dispatcher.Dispatch(callerContext(), "transfer_funds", json.RawMessage(`{"amount":"0.6"}`))
	decoded := decodePayload(t, payload)

	if decoded["success"] != false {
		t.Fatalf("expected failure payload, got %s", payload)
	}
	if msg, _ := decoded["message"].(string); !strings.Contains(msg, "exceeds the limit") {
		t.Fatalf("expected limit-exceeded message, got %q", msg)
	}
	if backend.sentCount() != 0 {
		t.Fatalf("no transaction may be submitted for a rejected amount, got %d", backend.sentCount())
	}
}

func TestTransferRejectsExactCeiling(t *testing.T) {
	backend := &scriptedBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	deps, _ := testDeps(t, backend, &scriptedQuotes{})
	dispatcher := testDispatcher(t, deps)

	payload := dispatcher.Dispatch(callerContext(), "transfer_funds", json.RawMessage(`{"amount":"0.5"}`))
	decoded := decodePayload(t, payload)

	if decoded["success"] != false {
		t.Fatalf("amounts equal to the ceiling must be rejected, got %s", payload)
	}
	if backend.sentCount() != 0 {
		t.Fatalf("no transaction may be submitted, got %d", backend.sentCount())
	}
}

func TestTransferSendsToCallerWallet(t *testing.T) {
	backend := &scriptedBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	deps, publisher := testDeps(t, backend, &scriptedQuotes{})
	dispatcher := testDispatcher(t, deps)

	ctx := callerContext()
	record, err := deps.Wallets.Resolve(ctx, "tg:1001")
	if err != nil {
		t.Fatalf("resolve wallet: %v", err)
	}

	payload := dispatcher.Dispatch(ctx, "transfer_funds", json.RawMessage(`{"amount":"0.1"}`))
	decoded := decodePayload(t, payload)
	if decoded["success"] != true {
		t.Fatalf("expected success payload, got %s", payload)
	}

	tx := backend.lastSent()
	if tx == nil {
		t.Fatal("expected a submitted transaction")
	}
	wantValue, _ := new(big.Int).SetString("100000000000000000", 10)
	if tx.Value().Cmp(wantValue) != 0 {
		t.Fatalf("unexpected value %s", tx.Value())
	}
	if tx.To() == nil || tx.To().Hex() != record.Address {
		t.Fatalf("expected transfer to the caller's wallet %s, got %v", record.Address, tx.To())
	}

	details, _ := decoded["details"].(map[string]any)
	if details["toAddress"] != record.Address {
		t.Fatalf("payload should carry the recipient, got %v", details)
	}
	if details["explorerUrl"] == "" {
		t.Fatalf("expected explorer link, got %v", details)
	}

	got := publisher.Events()
	if len(got) == 0 || got[len(got)-1].Tool != "transfer_funds" || !got[len(got)-1].Success {
		t.Fatalf("expected a tool.executed event, got %+v", got)
	}
}

func TestTransferWithoutSession(t *testing.T) {
	backend := &scriptedBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	deps, _ := testDeps(t, backend, &scriptedQuotes{})
	dispatcher := testDispatcher(t, deps)

	// No identity on the context.
	payload := dispatcher.Dispatch(callerContextWithoutIdentity(), "transfer_funds", json.RawMessage(`{"amount":"0.1"}`))
	decoded := decodePayload(t, payload)
	if decoded["success"] != false || decoded["error_code"] != "NO_ACTIVE_SESSION" {
		t.Fatalf("expected NO_ACTIVE_SESSION failure, got %s", payload)
	}
	if backend.sentCount() != 0 {
		t.Fatalf("no transaction may be submitted without a session, got %d", backend.sentCount())
	}
}
