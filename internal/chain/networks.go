// Package chain provides the network catalog, exact amount conversion, and
// the signing transaction executor used by every funds-moving tool.
package chain

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Well-known network names used by the tool catalog.
const (
	NetworkSepolia     = "SEPOLIA"
	NetworkBaseSepolia = "BASE_SEPOLIA"
	NetworkFlowTestnet = "FLOW_TESTNET"
)

// NativeDecimals is the minor-unit exponent of the native asset.
const NativeDecimals = 18

// USDCDecimals is the minor-unit exponent of the stable asset.
const USDCDecimals = 6

// Network describes one reachable chain target.
type Network struct {
	Name        string
	ChainID     uint64
	BridgeID    uint32
	RPCURL      string
	Gateway     common.Address
	ExplorerURL string
	Description string
}

// ExplorerTxURL renders the explorer link for a transaction hash.
func (n Network) ExplorerTxURL(hash string) string {
	if n.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + hash
}

// Definitions models the structure of configs/networks.yaml.
type Definitions struct {
	Networks map[string]Definition `yaml:"networks"`
}

// Definition describes a single network endpoint definition.
type Definition struct {
	ChainID     uint64 `yaml:"chain_id"`
	BridgeID    uint32 `yaml:"bridge_id"`
	RPCURL      string `yaml:"rpc_url"`
	Gateway     string `yaml:"gateway_contract"`
	ExplorerURL string `yaml:"explorer_url"`
	Description string `yaml:"description"`
}

// LoadDefinitions parses the YAML file containing network metadata. An empty
// path yields the built-in testnet defaults.
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return defaultDefinitions(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("read network definitions: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("parse network definitions: %w", err)
	}
	if defs.Networks == nil {
		defs.Networks = map[string]Definition{}
	}
	return defs, nil
}

// Build converts a named definition into a Network.
func (d Definitions) Build(name string) (Network, error) {
	def, ok := d.Networks[name]
	if !ok {
		return Network{}, fmt.Errorf("network %s is not defined", name)
	}
	if def.ChainID == 0 {
		return Network{}, fmt.Errorf("network %s has no chain id", name)
	}
	net := Network{
		Name:        name,
		ChainID:     def.ChainID,
		BridgeID:    def.BridgeID,
		RPCURL:      def.RPCURL,
		ExplorerURL: def.ExplorerURL,
		Description: def.Description,
	}
	if def.Gateway != "" {
		if !common.IsHexAddress(def.Gateway) {
			return Network{}, fmt.Errorf("network %s has an invalid gateway address %s", name, def.Gateway)
		}
		net.Gateway = common.HexToAddress(def.Gateway)
	}
	return net, nil
}

func defaultDefinitions() Definitions {
	return Definitions{Networks: map[string]Definition{
		NetworkSepolia: {
			ChainID:     11155111,
			BridgeID:    901,
			RPCURL:      "https://ethereum-sepolia-rpc.publicnode.com",
			Gateway:     "0x58A6a7d6b16b2c7A276d7901AB65596A1BEaa25B",
			ExplorerURL: "https://sepolia.etherscan.io",
			Description: "Ethereum Sepolia",
		},
		NetworkBaseSepolia: {
			ChainID:     84532,
			BridgeID:    902,
			RPCURL:      "https://base-sepolia-rpc.publicnode.com",
			Gateway:     "0xf011B7B9e72CD1C530BaA6e583aa19e6E43Dc1Be",
			ExplorerURL: "https://sepolia.basescan.org",
			Description: "Base Sepolia",
		},
		NetworkFlowTestnet: {
			ChainID:     545,
			RPCURL:      "https://testnet.evm.nodes.onflow.org",
			ExplorerURL: "https://evm-testnet.flowscan.io",
			Description: "Flow EVM Testnet",
		},
	}}
}
