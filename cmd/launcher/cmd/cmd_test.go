package cmd

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-launcher/internal/utils"
)

var signer = common.HexToAddress("0x00000000000000000000000000000000000051a9")

func TestBuildSpec(t *testing.T) {
	spec, err := buildSpec("GabedevCoin101", "GABDEV101", "1000000", 18, "ipfs://x", "", 7, signer)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	assert.Equal(t, want, spec.TotalSupply)
	assert.Equal(t, signer, spec.Creator, "creator defaults to the signer")
	assert.Equal(t, int64(7), spec.InitiatorID)

	spec, err = buildSpec("A", "A", "15", 2, "", "0x0000000000000000000000000000000000000c0e", 0, signer)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), spec.TotalSupply)
	assert.Equal(t, common.HexToAddress("0xc0e"), spec.Creator)

	_, err = buildSpec("A", "A", "abc", 18, "", "", 0, signer)
	assert.Error(t, err)
	_, err = buildSpec("A", "A", "1.5", 2, "", "", 0, signer)
	assert.Error(t, err, "supply must be whole tokens")
	_, err = buildSpec("A", "A", "10", 18, "", "0x0000000000000000000000000000000000000000", 0, signer)
	assert.Error(t, err)
	_, err = buildSpec("", "A", "10", 18, "", "", 0, signer)
	assert.Error(t, err)
}

func TestLoadBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
launches:
  - name: GabedevCoin
    symbol: GABE
    supply: "1000000"
  - name: Jazmeen
    symbol: JAZ
    decimals: 6
    initiatorId: 3
`), 0o600))

	entries, err := loadBatch(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].Decimals)
	require.NotNil(t, entries[1].Decimals)
	assert.Equal(t, uint8(6), *entries[1].Decimals)
	assert.Equal(t, int64(3), entries[1].InitiatorID)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("launches: []\n"), 0o600))
	_, err = loadBatch(empty)
	assert.Error(t, err)

	_, err = loadBatch(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRevertReasonCommand(t *testing.T) {
	var out bytes.Buffer
	revertReasonCmd.SetOut(&out)
	t.Cleanup(func() { revertReasonCmd.SetOut(nil) })

	payload := hexutil.Encode(utils.EncodeRevertReason("UniswapV2Router: EXPIRED"))
	require.NoError(t, revertReasonCmd.RunE(revertReasonCmd, []string{payload}))
	assert.Equal(t, "UniswapV2Router: EXPIRED\n", out.String())

	assert.Error(t, revertReasonCmd.RunE(revertReasonCmd, []string{"0xdeadbeef"}))
	assert.Error(t, revertReasonCmd.RunE(revertReasonCmd, []string{"zz"}))
}
