package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/tool"
)

// Flow EVM testnet randomness contract.
var vrfContract = common.HexToAddress("0xbDe037993Fdc44EB8fbb7EBcB19f8b4B004aBeAe")

const vrfABI = `[{"type":"function","name":"getRandomInRange","stateMutability":"nonpayable","inputs":[{"name":"min","type":"uint256"},{"name":"max","type":"uint256"}],"outputs":[]}]`

var randomGeneratedTopic = crypto.Keccak256Hash([]byte("RandomInRangeGenerated(uint256)"))

const vrfGasLimit = 500_000

const vrfSchema = `{
	"type": "object",
	"properties": {
		"min": {
			"type": "integer",
			"description": "Minimum value of the range (e.g. 1)"
		},
		"max": {
			"type": "integer",
			"description": "Maximum value of the range (e.g. 100)"
		}
	},
	"required": ["min", "max"]
}`

// vrfTool requests a random number from the on-chain VRF contract and reads
// the generated value back from the mined transaction's event log.
func vrfTool(deps Deps) tool.Tool {
	return tool.Tool{
		Definition: tool.Definition{
			Name:        "query_vrf",
			Description: "Query the VRF service to generate a random number between a range. [Give Transaction Hash]",
			Parameters:  json.RawMessage(vrfSchema),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var req struct {
				Min int64 `json:"min"`
				Max int64 `json:"max"`
			}
			if err := json.Unmarshal(args, &req); err != nil {
				return "", xerrors.Wrap(xerrors.CodeInvalidArguments, err, "decode vrf arguments")
			}
			min, max := req.Min, req.Max
			if min > max {
				return "", xerrors.New(xerrors.CodeInvalidArguments, "min must not exceed max")
			}

			_, key, err := resolveCaller(ctx, deps)
			if err != nil {
				return "", err
			}
			executor, err := deps.Chains.Executor(chain.NetworkFlowTestnet)
			if err != nil {
				return "", err
			}
			network := executor.Network()

			result, err := executor.Execute(ctx, key, chain.CallDescriptor{
				To:       vrfContract,
				ABI:      vrfABI,
				Method:   "getRandomInRange",
				Args:     []any{big.NewInt(min), big.NewInt(max)},
				GasLimit: vrfGasLimit,
			}, nil)
			if err != nil {
				emit(ctx, deps, "query_vrf", network.Name, "", false)
				return "", err
			}

			logs, err := executor.Logs(ctx, gethcore.FilterQuery{
				FromBlock: result.BlockNumber,
				ToBlock:   result.BlockNumber,
				Addresses: []common.Address{vrfContract},
				Topics:    [][]common.Hash{{randomGeneratedTopic}},
			})
			if err != nil {
				emit(ctx, deps, "query_vrf", network.Name, result.Hash.Hex(), false)
				return "", xerrors.Wrap(xerrors.CodeConfirmationTimeout, err, "read randomness event")
			}
			if len(logs) == 0 || len(logs[0].Data) == 0 {
				emit(ctx, deps, "query_vrf", network.Name, result.Hash.Hex(), false)
				return "", xerrors.New(xerrors.CodeConfirmationTimeout, "no RandomInRangeGenerated event found")
			}
			random := new(big.Int).SetBytes(logs[0].Data)

			emit(ctx, deps, "query_vrf", network.Name, result.Hash.Hex(), true)
			return tool.Ok(
				fmt.Sprintf("Generated random number %s between %d and %d", random.String(), min, max),
				map[string]any{
					"randomNumber": random.String(),
					"txHash":       result.Hash.Hex(),
					"blockNumber":  result.BlockNumber.String(),
					"min":          min,
					"max":          max,
					"explorerUrl":  network.ExplorerTxURL(result.Hash.Hex()),
				},
			).Render(), nil
		},
	}
}
