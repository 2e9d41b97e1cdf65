package token

import (
	"context"
	"math/big"
	"testing"
	"time"

	"evm-swap/pkg/contract"
	"evm-swap/pkg/ledger/ledgertest"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/pipeline/pipelinetest"
	"evm-swap/pkg/signer"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")

func setup(t *testing.T) (*ledgertest.Fake, *pipeline.Pipeline, *pipelinetest.FakeClock) {
	t.Helper()
	fake := ledgertest.New()
	key, err := signer.GenerateKey()
	require.NoError(t, err)
	clock := pipelinetest.NewFakeClock(time.Unix(0, 0))
	p, err := pipeline.New(fake, signer.KeySigner{}, key, pipeline.Config{ChainID: fake.ID, Clock: clock})
	require.NoError(t, err)
	return fake, p, clock
}

func TestReads(t *testing.T) {
	fake, p, _ := setup(t)
	fake.CallFunc = func(msg ethereum.CallMsg) ([]byte, error) {
		require.Equal(t, tokenAddr, *msg.To)
		switch contract.ERC20.Method(msg.Data) {
		case "name":
			return contract.ERC20.EncodeResult("name", "Tether USD")
		case "symbol":
			return contract.ERC20.EncodeResult("symbol", "USDT")
		case "decimals":
			return contract.ERC20.EncodeResult("decimals", uint8(6))
		case "balanceOf":
			return contract.ERC20.EncodeResult("balanceOf", big.NewInt(123))
		}
		return nil, nil
	}
	tok := New(p, tokenAddr)
	ctx := context.Background()

	name, err := tok.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tether USD", name)

	sym, err := tok.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USDT", sym)

	dec, err := tok.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)

	bal, err := tok.BalanceOf(ctx, p.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(123), bal.Int64())
}

func TestApproveIsUnlimited(t *testing.T) {
	fake, p, _ := setup(t)
	spender := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	_, err := New(p, tokenAddr).Approve(context.Background(), spender)
	require.NoError(t, err)

	sent := fake.SentTxs()
	require.Len(t, sent, 1)
	name, args, err := contract.ERC20.Inputs(sent[0].Tx.Data())
	require.NoError(t, err)
	assert.Equal(t, "approve", name)
	assert.Equal(t, spender, args[0])
	assert.Equal(t, 0, math.MaxBig256.Cmp(args[1].(*big.Int)))
	assert.Equal(t, tokenAddr, *sent[0].Tx.To())
}

func TestWaitForBalance(t *testing.T) {
	fake, p, clock := setup(t)
	balance := big.NewInt(100)
	fake.CallFunc = func(ethereum.CallMsg) ([]byte, error) {
		return contract.ERC20.EncodeResult("balanceOf", balance)
	}
	clock.OnSleep = func(now time.Time) {
		if now.Sub(time.Unix(0, 0)) >= 2*time.Second {
			balance = big.NewInt(10)
		}
	}
	tok := New(p, tokenAddr)

	ok, err := tok.WaitForBalanceBelow(context.Background(), p.Address(), big.NewInt(50), 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	start := clock.Now()
	ok, err = tok.WaitForBalanceAbove(context.Background(), p.Address(), big.NewInt(50), 3*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3*time.Second, clock.Now().Sub(start))
}

func TestUnits(t *testing.T) {
	v, err := ToBaseUnits("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), v.Int64())

	v, err = ToBaseUnits("0.1234567", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), v.Int64())

	_, err = ToBaseUnits("-1", 18)
	assert.Error(t, err)
	_, err = ToBaseUnits("abc", 18)
	assert.Error(t, err)

	assert.Equal(t, "1.5", Format(big.NewInt(1_500_000), 6))
	assert.Equal(t, "5", Gwei(big.NewInt(5_000_000_000)))
}
