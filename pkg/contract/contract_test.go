package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterQuoteCall(t *testing.T) {
	path := []common.Address{common.HexToAddress("0x0a"), common.HexToAddress("0x0b")}
	data, err := Router.Encode("getAmountsOut", big.NewInt(100), path)
	require.NoError(t, err)
	assert.Equal(t, "getAmountsOut", Router.Method(data))
	assert.Equal(t, Router.Selector("getAmountsOut"), data[:4])

	name, args, err := Router.Inputs(data)
	require.NoError(t, err)
	assert.Equal(t, "getAmountsOut", name)
	assert.Equal(t, path, args[1])

	result, err := Router.EncodeResult("getAmountsOut", []*big.Int{big.NewInt(100), big.NewInt(42)})
	require.NoError(t, err)
	out, err := Router.Decode("getAmountsOut", result)
	require.NoError(t, err)
	amounts, err := BigInts(out, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), amounts[1].Int64())
}

func TestPairReservesDecode(t *testing.T) {
	result, err := Pair.EncodeResult("getReserves", big.NewInt(10), big.NewInt(20), uint32(5))
	require.NoError(t, err)
	out, err := Pair.Decode("getReserves", result)
	require.NoError(t, err)
	r1, err := BigInt(out, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), r1.Int64())
}

func TestExtractorsRejectWrongType(t *testing.T) {
	out := []interface{}{"x"}
	_, err := BigInt(out, 0)
	assert.ErrorIs(t, err, ErrUnexpectedOutput)
	_, err = Address(out, 3)
	assert.ErrorIs(t, err, ErrUnexpectedOutput)
	assert.Equal(t, "", ERC20.Method([]byte{1, 2}))
}
