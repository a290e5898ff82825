package tools

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

func TestDepositETHGoesThroughGateway(t *testing.T) {
	backend := &scriptedBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	deps, _ := testDeps(t, backend, &scriptedQuotes{})
	dispatcher := testDispatcher(t, deps)

	payload := dispatcher.Dispatch(callerContext(), "deposit_eth_aave", json.RawMessage(`{"amount":"0.2"}`))
	decoded := decodePayload(t, payload)
	if decoded["success"] != true {
		t.Fatalf("expected success payload, got %s", payload)
	}

	tx := backend.lastSent()
	if tx == nil {
		t.Fatal("expected a submitted transaction")
	}
	if tx.To() == nil || *tx.To() != aaveSepoliaWETHGateway {
		t.Fatalf("expected call to the WETH gateway, got %v", tx.To())
	}
	if tx.Value().Sign() <= 0 {
		t.Fatal("depositETH must carry the deposit as call value")
	}

	parsed, err := abi.JSON(strings.NewReader(wethGatewayABI))
	if err != nil {
		t.Fatalf("parse gateway ABI: %v", err)
	}
	if !bytes.Equal(tx.Data()[:4], parsed.Methods["depositETH"].ID) {
		t.Fatalf("expected depositETH selector, got %x", tx.Data()[:4])
	}
}

func TestSupplyUSDCUsesSixDecimals(t *testing.T) {
	backend := &scriptedBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	deps, _ := testDeps(t, backend, &scriptedQuotes{})
	dispatcher := testDispatcher(t, deps)

	payload := dispatcher.Dispatch(callerContext(), "supply_usdc_aave", json.RawMessage(`{"amount":"25"}`))
	decoded := decodePayload(t, payload)
	if decoded["success"] != true {
		t.Fatalf("expected success payload, got %s", payload)
	}

	tx := backend.lastSent()
	if tx == nil {
		t.Fatal("expected a submitted transaction")
	}
	if tx.To() == nil || *tx.To() != aaveSepoliaPool {
		t.Fatalf("expected call to the pool, got %v", tx.To())
	}
	if tx.Value().Sign() != 0 {
		t.Fatal("supply must not carry call value")
	}

	parsed, err := abi.JSON(strings.NewReader(poolABI))
	if err != nil {
		t.Fatalf("parse pool ABI: %v", err)
	}
	args, err := parsed.Methods["supply"].Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack supply args: %v", err)
	}
	// 25 USDC at 6 decimals.
	if amount := args[1].(interface{ String() string }).String(); amount != "25000000" {
		t.Fatalf("expected 25000000 minor units, got %s", amount)
	}
}

func TestSupplyRejectsExcessPrecision(t *testing.T) {
	backend := &scriptedBackend{receiptStatus: coretypes.ReceiptStatusSuccessful}
	deps, _ := testDeps(t, backend, &scriptedQuotes{})
	dispatcher := testDispatcher(t, deps)

	payload := dispatcher.Dispatch(callerContext(), "supply_usdc_aave", json.RawMessage(`{"amount":"1.0000001"}`))
	decoded := decodePayload(t, payload)
	if decoded["success"] != false || decoded["error_code"] != "AMOUNT_CONVERSION" {
		t.Fatalf("expected AMOUNT_CONVERSION failure, got %s", payload)
	}
	if backend.sentCount() != 0 {
		t.Fatalf("no transaction may be submitted, got %d", backend.sentCount())
	}
}
