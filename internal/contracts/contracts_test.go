package contracts

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenArtifact = `{
	"_format": "hh-sol-artifact-1",
	"contractName": "JazmeenToken",
	"abi": [
		{"type":"constructor","stateMutability":"nonpayable","inputs":[
			{"name":"name","type":"string"},
			{"name":"symbol","type":"string"},
			{"name":"totalSupply","type":"uint256"},
			{"name":"imageUrl","type":"string"},
			{"name":"creator","type":"address"}
		]}
	],
	"bytecode": "0x6080604052"
}`

func TestParseArtifact_DeployData(t *testing.T) {
	art, err := ParseArtifact([]byte(tokenArtifact))
	require.NoError(t, err)
	assert.Equal(t, "JazmeenToken", art.ContractName)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, art.Bytecode)

	creator := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	data, err := art.DeployData("GabedevCoin101", "GABDEV101", big.NewInt(1_000_000), "https://example.com/image.jpg", creator)
	require.NoError(t, err)
	assert.Equal(t, art.Bytecode, data[:len(art.Bytecode)])
	// 5 head words plus the tails of three strings
	assert.Greater(t, len(data), len(art.Bytecode)+5*32)

	_, err = art.DeployData("only-one-arg")
	assert.Error(t, err)
}

func TestParseArtifact_Rejects(t *testing.T) {
	_, err := ParseArtifact([]byte(`{"contractName":"X","abi":[],"bytecode":"0x"}`))
	assert.Error(t, err)

	_, err = ParseArtifact([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseArtifact([]byte(`{"contractName":"X","bytecode":"0x00"}`))
	assert.Error(t, err)
}

func TestArtifactStore_Load(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "contracts", "JazmeenToken.sol")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "JazmeenToken.json"), []byte(tokenArtifact), 0o644))

	store := NewArtifactStore(dir)
	art, err := store.Load(TokenContractName)
	require.NoError(t, err)
	assert.Equal(t, TokenContractName, art.ContractName)

	_, err = store.Load("Missing")
	assert.Error(t, err)
}

func TestDecodeLiquidityLogs(t *testing.T) {
	pair := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	recipient := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	router := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	mintData, err := Pair.Events["Mint"].Inputs.NonIndexed().Pack(big.NewInt(2000), big.NewInt(50))
	require.NoError(t, err)
	sharesData, err := Pair.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(316))
	require.NoError(t, err)
	lockedData, err := Pair.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(1000))
	require.NoError(t, err)

	transferID := Pair.Events["Transfer"].ID
	logs := []*types.Log{
		// minimum liquidity locked to the zero address
		{Address: pair, Topics: []common.Hash{transferID, {}, {}}, Data: lockedData},
		{Address: pair, Topics: []common.Hash{transferID, {}, common.BytesToHash(recipient.Bytes())}, Data: sharesData},
		{Address: pair, Topics: []common.Hash{Pair.Events["Mint"].ID, common.BytesToHash(router.Bytes())}, Data: mintData},
		// same event from an unrelated contract is ignored
		{Address: router, Topics: []common.Hash{Pair.Events["Mint"].ID}, Data: mintData},
	}

	got, err := DecodeLiquidityLogs(logs, pair, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.Amount0.Int64())
	assert.Equal(t, int64(50), got.Amount1.Int64())
	assert.Equal(t, int64(316), got.Liquidity.Int64())

	low := common.HexToAddress("0x0000000000000000000000000000000000000001")
	high := common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff")
	tok, res := got.Split(low, low)
	assert.Equal(t, int64(2000), tok.Int64())
	assert.Equal(t, int64(50), res.Int64())
	tok, res = got.Split(low, high)
	assert.Equal(t, int64(50), tok.Int64())
	assert.Equal(t, int64(2000), res.Int64())

	_, err = DecodeLiquidityLogs(logs[:2], pair, recipient)
	assert.Error(t, err)
}

func TestUnpackTokenRecords(t *testing.T) {
	records := []TokenRecordTuple{
		{
			TokenAddress: common.HexToAddress("0x0000000000000000000000000000000000000101"),
			Name:         "GabedevCoin101",
			Symbol:       "GABDEV101",
			InitiatorFid: big.NewInt(420564),
			ImageUrl:     "https://example.com/image.jpg",
			Creator:      common.HexToAddress("0x0000000000000000000000000000000000000202"),
		},
	}
	data, err := LaunchFactory.Methods["getTokens"].Outputs.Pack(records)
	require.NoError(t, err)

	got, err := UnpackTokenRecords(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, records[0].TokenAddress, got[0].TokenAddress)
	assert.Equal(t, "GABDEV101", got[0].Symbol)
	assert.Equal(t, int64(420564), got[0].InitiatorFid.Int64())
	assert.Equal(t, records[0].Creator, got[0].Creator)
}

func TestSelectors(t *testing.T) {
	assert.Equal(t, "0xa9059cbb", hexSelector(ERC20.Methods["transfer"].ID))
	assert.Equal(t, "0x095ea7b3", hexSelector(ERC20.Methods["approve"].ID))
	assert.Equal(t, "0xe6a43905", hexSelector(AMMFactory.Methods["getPair"].ID))
	assert.Equal(t, "0xc9c65396", hexSelector(AMMFactory.Methods["createPair"].ID))
	assert.Equal(t, "0xf305d719", hexSelector(Router.Methods["addLiquidityETH"].ID))
}

func hexSelector(id []byte) string {
	return "0x" + common.Bytes2Hex(id)
}
