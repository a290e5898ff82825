package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/tool"
)

// Aave V3 testnet deployments.
var (
	aaveSepoliaPool        = common.HexToAddress("0x6Ae43d3271ff6888e7Fc43Fd7321a503ff738951")
	aaveSepoliaWETHGateway = common.HexToAddress("0x387d311e47e80b498169e6fb51d3193167d89F7D")
	aaveSepoliaUSDC        = common.HexToAddress("0x94a9D9AC8a22534E3FaCa9F4e7F2E2cf85d5E4C8")

	aaveBaseSepoliaPool        = common.HexToAddress("0x07eA79F68B2B3df564D0A34F8e19D9B1e339814b")
	aaveBaseSepoliaWETHGateway = common.HexToAddress("0x589750BA8aF186cE5B55391B0b7148cAD43a1619")
	aaveBaseSepoliaUSDC        = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
)

const wethGatewayABI = `[{"type":"function","name":"depositETH","stateMutability":"payable","inputs":[{"name":"pool","type":"address"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]}]`

const poolABI = `[{"type":"function","name":"supply","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]}]`

const supplyGasLimit = 500_000

type supplySpec struct {
	name        string
	description string
	network     string
	asset       string // "ETH" or "USDC"
	pool        common.Address
	gateway     common.Address
	usdc        common.Address
}

func supplySpecs() []supplySpec {
	return []supplySpec{
		{
			name:        "deposit_eth_aave",
			description: "Deposit ETH into Aave V3 lending pool",
			network:     chain.NetworkSepolia,
			asset:       "ETH",
			pool:        aaveSepoliaPool,
			gateway:     aaveSepoliaWETHGateway,
		},
		{
			name:        "supply_usdc_aave",
			description: "Supply USDC into Aave V3 lending pool",
			network:     chain.NetworkSepolia,
			asset:       "USDC",
			pool:        aaveSepoliaPool,
			usdc:        aaveSepoliaUSDC,
		},
		{
			name:        "supply_eth_aave_base",
			description: "Deposit ETH into Aave V3 on Base",
			network:     chain.NetworkBaseSepolia,
			asset:       "ETH",
			pool:        aaveBaseSepoliaPool,
			gateway:     aaveBaseSepoliaWETHGateway,
		},
		{
			name:        "supply_usdc_aave_base",
			description: "Supply USDC into Aave V3 on Base",
			network:     chain.NetworkBaseSepolia,
			asset:       "USDC",
			pool:        aaveBaseSepoliaPool,
			usdc:        aaveBaseSepoliaUSDC,
		},
	}
}

func supplySchema(asset string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"amount": {
			"type": "string",
			"description": "Amount of %s to supply (e.g. \"0.1\", \"100\")"
		}
	},
	"required": ["amount"]
}`, asset))
}

// supplyTools builds one lending-supply tool per (asset, network) pair.
// ETH goes through the WETH gateway's payable depositETH; USDC through the
// pool's supply with 6-decimal amounts.
func supplyTools(deps Deps) []tool.Tool {
	specs := supplySpecs()
	entries := make([]tool.Tool, 0, len(specs))
	for _, spec := range specs {
		spec := spec
		entries = append(entries, tool.Tool{
			Definition: tool.Definition{
				Name:        spec.name,
				Description: spec.description,
				Parameters:  supplySchema(spec.asset),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				return supply(ctx, deps, spec, args)
			},
		})
	}
	return entries
}

func supply(ctx context.Context, deps Deps, spec supplySpec, args json.RawMessage) (string, error) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(args, &req); err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArguments, err, "decode supply arguments")
	}

	record, key, err := resolveCaller(ctx, deps)
	if err != nil {
		return "", err
	}
	executor, err := deps.Chains.Executor(spec.network)
	if err != nil {
		return "", err
	}
	network := executor.Network()
	onBehalfOf := common.HexToAddress(record.Address)

	var (
		call  chain.CallDescriptor
		value *big.Int
	)
	switch spec.asset {
	case "ETH":
		value, err = chain.ParseAmount(req.Amount, chain.NativeDecimals)
		if err != nil {
			return "", err
		}
		call = chain.CallDescriptor{
			To:       spec.gateway,
			ABI:      wethGatewayABI,
			Method:   "depositETH",
			Args:     []any{spec.pool, onBehalfOf, uint16(0)},
			GasLimit: supplyGasLimit,
		}
	default:
		var amount *big.Int
		amount, err = chain.ParseAmount(req.Amount, chain.USDCDecimals)
		if err != nil {
			return "", err
		}
		call = chain.CallDescriptor{
			To:       spec.pool,
			ABI:      poolABI,
			Method:   "supply",
			Args:     []any{spec.usdc, amount, onBehalfOf, uint16(0)},
			GasLimit: supplyGasLimit,
		}
	}

	result, err := executor.Execute(ctx, key, call, value)
	if err != nil {
		emit(ctx, deps, spec.name, network.Name, "", false)
		return "", err
	}

	emit(ctx, deps, spec.name, network.Name, result.Hash.Hex(), true)
	return tool.Ok(
		fmt.Sprintf("Successfully supplied %s %s to Aave V3 on %s", req.Amount, spec.asset, network.Description),
		map[string]any{
			"hash":        result.Hash.Hex(),
			"blockNumber": result.BlockNumber.String(),
			"network":     network.Description,
			"explorerUrl": network.ExplorerTxURL(result.Hash.Hex()),
		},
	).Render(), nil
}
