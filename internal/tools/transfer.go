package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/tool"
)

const transferSchema = `{
	"type": "object",
	"properties": {
		"amount": {
			"type": "string",
			"description": "Amount of ETH to send (e.g. \"0.1\")"
		}
	},
	"required": ["amount"]
}`

// transferTool sends native value from the treasury to the caller's own
// custodial wallet on Sepolia. The recipient is never taken from the model.
func transferTool(deps Deps) tool.Tool {
	return tool.Tool{
		Definition: tool.Definition{
			Name:        "transfer_funds",
			Description: "Transfer ETH to the user's registered wallet on Sepolia. Don't ask for recipient address, the tool is enough to provide you with it.",
			Parameters:  json.RawMessage(transferSchema),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var req struct {
				Amount string `json:"amount"`
			}
			if err := json.Unmarshal(args, &req); err != nil {
				return "", xerrors.Wrap(xerrors.CodeInvalidArguments, err, "decode transfer arguments")
			}

			value, err := chain.ParseAmount(req.Amount, chain.NativeDecimals)
			if err != nil {
				return "", err
			}
			if value.Sign() <= 0 {
				return tool.Fail(xerrors.CodeInvalidArguments, "Invalid amount. Please enter a valid positive ETH amount.").Render(), nil
			}
			ceiling, err := chain.ParseAmount(deps.TransferCeiling, chain.NativeDecimals)
			if err != nil {
				return "", err
			}
			// The ceiling check runs before any wallet or chain access.
			if value.Cmp(ceiling) >= 0 {
				return tool.Fail(xerrors.CodeInvalidArguments,
					fmt.Sprintf("Transfer amount exceeds the limit of %s ETH.", deps.TransferCeiling)).Render(), nil
			}

			record, _, err := resolveCaller(ctx, deps)
			if err != nil {
				return "", err
			}
			key, err := treasuryKey(deps)
			if err != nil {
				return "", err
			}

			executor, err := deps.Chains.Executor(chain.NetworkSepolia)
			if err != nil {
				return "", err
			}
			network := executor.Network()

			result, err := executor.Execute(ctx, key, chain.CallDescriptor{
				To: common.HexToAddress(record.Address),
			}, value)
			if err != nil {
				emit(ctx, deps, "transfer_funds", network.Name, "", false)
				return "", err
			}

			emit(ctx, deps, "transfer_funds", network.Name, result.Hash.Hex(), true)
			return tool.Ok(
				fmt.Sprintf("Successfully transferred %s ETH to your wallet", req.Amount),
				map[string]any{
					"hash":        result.Hash.Hex(),
					"blockNumber": result.BlockNumber.String(),
					"gasUsed":     fmt.Sprintf("%d", result.GasUsed),
					"network":     network.Description,
					"explorerUrl": network.ExplorerTxURL(result.Hash.Hex()),
					"toAddress":   record.Address,
				},
			).Render(), nil
		},
	}
}
