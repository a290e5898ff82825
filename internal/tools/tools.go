// Package tools holds the concrete tool handlers exposed to the model:
// funds transfer, Aave lending supply, cross-chain bridging and VRF
// randomness. Handlers never let an error escape; every outcome is rendered
// into the uniform result payload by the dispatch layer.
package tools

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"ChainPilot/internal/bridge"
	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/events"
	"ChainPilot/internal/session"
	"ChainPilot/internal/tool"
	"ChainPilot/internal/wallet"
	"ChainPilot/pkg/logger"
)

// ChainRegistry yields per-network executors and metadata. *chain.Registry
// satisfies it.
type ChainRegistry interface {
	Executor(name string) (*chain.Executor, error)
	Network(name string) (chain.Network, error)
}

// WalletResolver resolves user identities to custodial wallets.
type WalletResolver interface {
	Resolve(ctx context.Context, userIdentity string) (*wallet.Record, error)
}

// QuoteService prices cross-chain transfers.
type QuoteService interface {
	FetchQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error)
}

// Deps carries the collaborators shared by all tool handlers.
type Deps struct {
	Chains  ChainRegistry
	Wallets WalletResolver
	Quotes  QuoteService
	Events  events.Publisher

	// TreasuryKeyHex signs transfer_funds payouts. 0x-prefixed.
	TreasuryKeyHex string
	// TransferCeiling is the per-call native transfer limit. Amounts at or
	// above it are rejected before any chain call. Defaults to "0.5".
	TransferCeiling string

	log *slog.Logger
}

const defaultTransferCeiling = "0.5"

// NewCatalog assembles the full tool catalog over deps.
func NewCatalog(deps Deps) (*tool.Catalog, error) {
	deps.log = logger.Named("tools")
	if deps.TransferCeiling == "" {
		deps.TransferCeiling = defaultTransferCeiling
	}

	catalog := tool.NewCatalog()
	entries := []tool.Tool{
		transferTool(deps),
		quoteTool(deps),
		bridgeTool(deps),
		vrfTool(deps),
	}
	entries = append(entries, supplyTools(deps)...)
	for _, entry := range entries {
		if err := catalog.Register(entry); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// resolveCaller finds the custodial wallet for the turn's authenticated
// identity and decodes its signing key.
func resolveCaller(ctx context.Context, deps Deps) (*wallet.Record, *ecdsa.PrivateKey, error) {
	record, err := deps.Wallets.Resolve(ctx, session.IdentityFrom(ctx))
	if err != nil {
		return nil, nil, err
	}
	key, err := record.Key()
	if err != nil {
		return nil, nil, err
	}
	return record, key, nil
}

func treasuryKey(deps Deps) (*ecdsa.PrivateKey, error) {
	raw := strings.TrimSpace(deps.TreasuryKeyHex)
	if raw == "" {
		return nil, xerrors.New(xerrors.CodeSigning, "no treasury key configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeSigning, err, "decode treasury key")
	}
	return key, nil
}

// emit publishes a tool activity event. Publish failures are logged and
// otherwise ignored: events never fail a turn.
func emit(ctx context.Context, deps Deps, toolName, network, txHash string, success bool) {
	if deps.Events == nil {
		return
	}
	event := events.NewEvent(events.KindToolExecuted)
	event.Tool = toolName
	event.Network = network
	event.TxHash = txHash
	event.Success = success
	if err := deps.Events.Publish(ctx, event); err != nil {
		deps.log.Warn("event publish failed", slog.String("tool", toolName), slog.Any("error", err))
	}
}
