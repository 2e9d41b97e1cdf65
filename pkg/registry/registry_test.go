package registry

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()

	bsc, err := reg.Chain("BSC")
	require.NoError(t, err)
	assert.Equal(t, int64(56), bsc.ChainID)
	assert.Equal(t, common.HexToAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c"), bsc.WrappedNative)

	pancake, err := reg.Router("bsc", "Pancake")
	require.NoError(t, err)
	assert.Equal(t, bsc, pancake.Chain)
	require.Len(t, pancake.Pairing, 4)
	assert.Equal(t, bsc.WrappedNative, pancake.Pairing[0])

	assert.Len(t, reg.Routers("bsc"), 2)
	assert.Len(t, reg.Routers("polygon"), 1)
}

func TestUnknownChainIsConfigurationError(t *testing.T) {
	_, err := Default().Chain("solana")
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestTokenLookups(t *testing.T) {
	reg := Default()

	usdt, err := reg.Token("polygon", "usdt")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), usdt.Decimals)

	assert.Equal(t, "USDT", reg.SymbolOf("polygon", usdt.Address))

	unknown := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	assert.Equal(t, unknown.Hex(), reg.SymbolOf("polygon", unknown))

	addr, err := reg.ResolveToken("polygon", unknown.Hex())
	require.NoError(t, err)
	assert.Equal(t, unknown, addr)

	_, err = reg.ResolveToken("polygon", "NOPE")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestLoadRejectsUnresolvablePairing(t *testing.T) {
	doc := `
chains:
  - {name: test, chain_id: 1, wrapped_native: "0x0000000000000000000000000000000000000001"}
routers:
  - {name: r, chain: test, address: "0x0000000000000000000000000000000000000002", pairing: [MISSING]}
`
	_, err := Load(strings.NewReader(doc))
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestLoadRejectsDuplicateChainID(t *testing.T) {
	doc := `
chains:
  - {name: a, chain_id: 7, wrapped_native: "0x0000000000000000000000000000000000000001"}
  - {name: b, chain_id: 7, wrapped_native: "0x0000000000000000000000000000000000000001"}
`
	_, err := Load(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestTxURL(t *testing.T) {
	c := ChainProfile{Explorer: "https://bscscan.com/"}
	assert.Equal(t, "https://bscscan.com/tx/0xabc", c.TxURL("0xabc"))
	assert.Empty(t, ChainProfile{}.TxURL("0xabc"))
	assert.Equal(t, "http://local", c.WithRPC("http://local").RPCURL)
}
