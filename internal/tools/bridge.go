package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"ChainPilot/internal/bridge"
	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/tool"
	"ChainPilot/internal/workflow"
)

const bridgeABI = `[{"type":"function","name":"bridge","stateMutability":"payable","inputs":[{"name":"destinationChainId","type":"uint32"},{"name":"inputToken","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"destinationAddress","type":"bytes32"},{"name":"outputToken","type":"bytes32"}],"outputs":[]}]`

const bridgeSchema = `{
	"type": "object",
	"properties": {
		"amount": {
			"type": "string",
			"description": "Amount to bridge in ETH"
		},
		"network": {
			"type": "string",
			"enum": ["SEPOLIA", "BASE_SEPOLIA"],
			"description": "Source network"
		},
		"toNetwork": {
			"type": "string",
			"enum": ["SEPOLIA", "BASE_SEPOLIA"],
			"description": "Destination network"
		},
		"receiver": {
			"type": "string",
			"pattern": "^0x[a-fA-F0-9]{40}$",
			"description": "Receiver address (0x...)"
		}
	},
	"required": ["amount", "network", "toNetwork", "receiver"]
}`

// addressToBytes32 left-pads a 20-byte address into the gateway's bytes32
// operand encoding.
func addressToBytes32(address common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], address.Bytes())
	return out
}

// bridgeTool moves native value across chains through the bridge gateway.
// The run is tracked step by step (quote, wallet, transaction, confirmation)
// so a failure names the stage it happened in.
func bridgeTool(deps Deps) tool.Tool {
	return tool.Tool{
		Definition: tool.Definition{
			Name:        "bridge_tokens",
			Description: "Bridge tokens between Sepolia networks",
			Parameters:  json.RawMessage(bridgeSchema),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var req struct {
				Amount    string `json:"amount"`
				Network   string `json:"network"`
				ToNetwork string `json:"toNetwork"`
				Receiver  string `json:"receiver"`
			}
			if err := json.Unmarshal(args, &req); err != nil {
				return "", xerrors.Wrap(xerrors.CodeInvalidArguments, err, "decode bridge arguments")
			}

			value, err := chain.ParseAmount(req.Amount, chain.NativeDecimals)
			if err != nil {
				return "", err
			}
			source, err := deps.Chains.Network(req.Network)
			if err != nil {
				return "", err
			}
			dest, err := deps.Chains.Network(req.ToNetwork)
			if err != nil {
				return "", err
			}

			tracker := workflow.NewTracker(workflow.StepQuote)

			quote, err := deps.Quotes.FetchQuote(ctx, bridge.QuoteRequest{
				InputNetwork:     int(source.BridgeID),
				OutputNetwork:    int(dest.BridgeID),
				InputTokenAmount: value.String(),
			})
			if err != nil {
				return bridgeFailure(tracker, err), nil
			}
			tracker.Advance(workflow.StepWallet, map[string]any{
				"quote": map[string]any{
					"output": quote.OutputValueInUSD,
					"fees":   quote.FeesInUSD,
				},
			})

			_, key, err := resolveCaller(ctx, deps)
			if err != nil {
				return bridgeFailure(tracker, err), nil
			}
			tracker.Advance(workflow.StepTransaction, nil)

			executor, err := deps.Chains.Executor(req.Network)
			if err != nil {
				return bridgeFailure(tracker, err), nil
			}

			var zero [32]byte
			result, err := executor.Execute(ctx, key, chain.CallDescriptor{
				To:     source.Gateway,
				ABI:    bridgeABI,
				Method: "bridge",
				Args: []any{
					dest.BridgeID,
					zero,
					value,
					addressToBytes32(common.HexToAddress(req.Receiver)),
					zero,
				},
			}, value)
			if err != nil {
				// The executor distinguishes submission failures from
				// confirmation failures by code; move the step pointer so
				// the failure names the right stage.
				if xerrors.HasCode(err, xerrors.CodeConfirmationTimeout) || xerrors.HasCode(err, xerrors.CodeReverted) {
					tracker.Advance(workflow.StepConfirmation, nil)
				}
				emit(ctx, deps, "bridge_tokens", source.Name, "", false)
				return bridgeFailure(tracker, err), nil
			}
			tracker.Advance(workflow.StepConfirmation, map[string]any{
				"hash": result.Hash.Hex(),
			})

			emit(ctx, deps, "bridge_tokens", source.Name, result.Hash.Hex(), true)
			return tool.Ok(
				fmt.Sprintf("Successfully bridged %s ETH from %s to %s", req.Amount, req.Network, req.ToNetwork),
				map[string]any{
					"amount":   req.Amount,
					"from":     req.Network,
					"to":       req.ToNetwork,
					"receiver": req.Receiver,
					"hash":     result.Hash.Hex(),
					"output":   quote.OutputValueInUSD,
					"fees":     quote.FeesInUSD,
				},
			).Render(), nil
		},
	}
}

// bridgeFailure records err on the tracker and renders the step-attributed
// failure payload.
func bridgeFailure(tracker *workflow.Tracker, err error) string {
	tracker.Fail(xerrors.MessageOf(err))
	result := tool.Result{
		Success: false,
		Message: tracker.Summarize(),
		Details: tracker.Detail(),
		Code:    string(xerrors.CodeOf(err)),
	}
	return result.Render()
}
