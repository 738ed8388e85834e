package utils

import (
	"fmt"
	"sort"
	"strings"
)

// ChainInfo describes a ledger the launcher can target, with the AMM
// deployment known on it. Empty DEX fields mean "configure explicitly".
type ChainInfo struct {
	Key          string   `json:"key"`
	ChainID      int64    `json:"chain_id"`
	Name         string   `json:"name"`
	Symbol       string   `json:"symbol"`
	RPCEndpoints []string `json:"rpc_endpoints"`
	ExplorerURL  string   `json:"explorer_url"`

	Router       string `json:"router,omitempty"`
	AMMFactory   string `json:"amm_factory,omitempty"`
	ReserveAsset string `json:"reserve_asset,omitempty"`
}

// TxURL links a transaction on the chain's explorer, or returns "" when the
// chain has none.
func (c *ChainInfo) TxURL(txHash string) string {
	if c == nil || c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + txHash
}

// AddressURL links an address on the chain's explorer.
func (c *ChainInfo) AddressURL(address string) string {
	if c == nil || c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/address/" + address
}

// ChainRegistry indexes known chains by key and chain ID.
type ChainRegistry struct {
	byKey map[string]*ChainInfo
	byID  map[int64]*ChainInfo
}

// GlobalChainRegistry holds the built-in chains.
var GlobalChainRegistry = NewChainRegistry(
	&ChainInfo{
		Key:          "celo",
		ChainID:      42220,
		Name:         "Celo",
		Symbol:       "CELO",
		RPCEndpoints: []string{"https://forno.celo.org"},
		ExplorerURL:  "https://celoscan.io",
		Router:       "0xE3D8bd6Aed4F159bc8000a9cD47CffDb95F96121",
		AMMFactory:   "0x62d5b84bE28a183aBB507E125B384122D2C25fAE",
		ReserveAsset: "0x471EcE3750Da237f93B8E339c536989b8978a438",
	},
	&ChainInfo{
		Key:          "alfajores",
		ChainID:      44787,
		Name:         "Celo Alfajores",
		Symbol:       "CELO",
		RPCEndpoints: []string{"https://alfajores-forno.celo-testnet.org"},
		ExplorerURL:  "https://alfajores.celoscan.io",
		ReserveAsset: "0xF194afDf50B03e69Bd7D057c1Aa9e10c9954E4C9",
	},
	&ChainInfo{
		Key:          "localhost",
		ChainID:      31337,
		Name:         "Local node",
		Symbol:       "ETH",
		RPCEndpoints: []string{"http://127.0.0.1:8545"},
	},
)

// NewChainRegistry builds a registry from chains.
func NewChainRegistry(chains ...*ChainInfo) *ChainRegistry {
	r := &ChainRegistry{
		byKey: make(map[string]*ChainInfo, len(chains)),
		byID:  make(map[int64]*ChainInfo, len(chains)),
	}
	for _, chain := range chains {
		r.byKey[strings.ToLower(chain.Key)] = chain
		r.byID[chain.ChainID] = chain
	}
	return r
}

// GetByKey looks a chain up by its config key ("celo").
func (r *ChainRegistry) GetByKey(key string) (*ChainInfo, bool) {
	info, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	return info, ok
}

// GetByChainID looks a chain up by its EIP-155 chain ID.
func (r *ChainRegistry) GetByChainID(chainID int64) (*ChainInfo, bool) {
	info, ok := r.byID[chainID]
	return info, ok
}

// GetRPCEndpoint returns the first RPC endpoint of the chain.
func (r *ChainRegistry) GetRPCEndpoint(key string) (string, error) {
	info, ok := r.GetByKey(key)
	if !ok {
		return "", fmt.Errorf("unknown network %q", key)
	}
	if len(info.RPCEndpoints) == 0 {
		return "", fmt.Errorf("network %s has no RPC endpoint", key)
	}
	return info.RPCEndpoints[0], nil
}

// GetAllChains returns every chain ordered by chain ID.
func (r *ChainRegistry) GetAllChains() []*ChainInfo {
	out := make([]*ChainInfo, 0, len(r.byID))
	for _, info := range r.byID {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
