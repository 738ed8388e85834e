// Package contracts holds the ABIs of every contract the launcher talks to and
// the hardhat artifact loader used for contract creation.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Artifact names as compiled by the hardhat project.
const (
	TokenContractName   = "JazmeenToken"
	FactoryContractName = "JazmeenFactory"
)

// ERC20ABI is the subset of the token interface used for burn, approve and balance checks.
const ERC20ABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
	{"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// LaunchFactoryABI is the launch factory: deployToken mints a token for a
// creator and records it in the registry returned by getTokens.
const LaunchFactoryABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"deployer","type":"address"}]},
	{"type":"function","name":"deployToken","stateMutability":"payable","inputs":[
		{"name":"name","type":"string"},
		{"name":"symbol","type":"string"},
		{"name":"initiatorFid","type":"uint256"},
		{"name":"imageUrl","type":"string"},
		{"name":"creator","type":"address"}
	],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"tokenAddress","type":"address"},
		{"name":"name","type":"string"},
		{"name":"symbol","type":"string"},
		{"name":"initiatorFid","type":"uint256"},
		{"name":"imageUrl","type":"string"},
		{"name":"creator","type":"address"}
	]}]}
]`

// AMMFactoryABI is the UniswapV2-style pair factory.
const AMMFactoryABI = `[
	{"type":"function","name":"getPair","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"pair","type":"address"}]},
	{"type":"function","name":"createPair","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"pair","type":"address"}]},
	{"type":"event","name":"PairCreated","anonymous":false,"inputs":[{"name":"token0","type":"address","indexed":true},{"name":"token1","type":"address","indexed":true},{"name":"pair","type":"address","indexed":false},{"name":"","type":"uint256","indexed":false}]}
]`

// RouterABI is the UniswapV2-style router.
const RouterABI = `[
	{"type":"function","name":"addLiquidityETH","stateMutability":"payable","inputs":[
		{"name":"token","type":"address"},
		{"name":"amountTokenDesired","type":"uint256"},
		{"name":"amountTokenMin","type":"uint256"},
		{"name":"amountETHMin","type":"uint256"},
		{"name":"to","type":"address"},
		{"name":"deadline","type":"uint256"}
	],"outputs":[{"name":"amountToken","type":"uint256"},{"name":"amountETH","type":"uint256"},{"name":"liquidity","type":"uint256"}]}
]`

// PairABI covers the pair events emitted during a deposit.
const PairABI = `[
	{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getReserves","stateMutability":"view","inputs":[],"outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]},
	{"type":"event","name":"Mint","anonymous":false,"inputs":[{"name":"sender","type":"address","indexed":true},{"name":"amount0","type":"uint256","indexed":false},{"name":"amount1","type":"uint256","indexed":false}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// Parsed ABIs.
var (
	ERC20         = mustParse("erc20", ERC20ABI)
	LaunchFactory = mustParse("launch factory", LaunchFactoryABI)
	AMMFactory    = mustParse("amm factory", AMMFactoryABI)
	Router        = mustParse("router", RouterABI)
	Pair          = mustParse("pair", PairABI)
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse %s ABI: %v", name, err))
	}
	return parsed
}
