package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"ChainPilot/internal/bridge"
	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/tool"
)

const quoteSchema = `{
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
		}
	},
	"required": ["amount", "network", "toNetwork"]
}`

// quoteTool prices a cross-chain transfer without executing it. No wallet or
// chain access is involved.
func quoteTool(deps Deps) tool.Tool {
	return tool.Tool{
		Definition: tool.Definition{
			Name:        "get_bridge_quote",
			Description: "Get a price quote for bridging tokens between Sepolia networks without executing the bridge",
			Parameters:  json.RawMessage(quoteSchema),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var req struct {
				Amount    string `json:"amount"`
				Network   string `json:"network"`
				ToNetwork string `json:"toNetwork"`
			}
			if err := json.Unmarshal(args, &req); err != nil {
				return "", xerrors.Wrap(xerrors.CodeInvalidArguments, err, "decode quote arguments")
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

			quote, err := deps.Quotes.FetchQuote(ctx, bridge.QuoteRequest{
				InputNetwork:     int(source.BridgeID),
				OutputNetwork:    int(dest.BridgeID),
				InputTokenAmount: value.String(),
			})
			if err != nil {
				return "", err
			}

			return tool.Ok(
				fmt.Sprintf("Bridging %s ETH from %s to %s yields %s USD after %s USD in fees",
					req.Amount, req.Network, req.ToNetwork, quote.OutputValueInUSD, quote.FeesInUSD),
				map[string]any{
					"amount": req.Amount,
					"from":   req.Network,
					"to":     req.ToNetwork,
					"output": quote.OutputValueInUSD,
					"fees":   quote.FeesInUSD,
				},
			).Render(), nil
		},
	}
}
