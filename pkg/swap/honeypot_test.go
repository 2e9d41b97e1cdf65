package swap

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"evm-swap/pkg/contract"
	"evm-swap/pkg/ledger"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/registry"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	checkerAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	pairAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ab")
)

func (h *harness) honeypotExecutor(q Quoter, pair common.Address) *Executor {
	h.fake.CallFunc = func(msg ethereum.CallMsg) ([]byte, error) {
		switch *msg.To {
		case routerAddr:
			return contract.Router.EncodeResult("factory", factoryAddr)
		case factoryAddr:
			return contract.Factory.EncodeResult("getPair", pair)
		}
		return nil, ethereum.NotFound
	}
	rt := registry.RouterProfile{
		Name:    "test",
		Address: routerAddr,
		Chain: registry.ChainProfile{
			Name:            "test",
			WrappedNative:   wrapped,
			HoneypotChecker: checkerAddr,
		},
	}
	return NewExecutor(h.p, rt, q, zerolog.Nop())
}

func TestCheckHoneypotSellable(t *testing.T) {
	h := newHarness(t)
	h.fake.SetBalance(h.p.Address(), big.NewInt(1e18))

	var estimated ethereum.CallMsg
	h.fake.EstimateFunc = func(msg ethereum.CallMsg) (uint64, error) {
		estimated = msg
		return 250_000, nil
	}
	e := h.honeypotExecutor(newMapQuoter(map[string]int64{key(wrapped, tokB): 500}), pairAddr)

	report, err := e.CheckHoneypot(context.Background(), tokB)
	require.NoError(t, err)
	assert.True(t, report.Sellable)
	assert.Equal(t, uint64(250_000), report.Gas)
	assert.Equal(t, pairAddr, report.Pair)
	assert.Equal(t, Path{wrapped, tokB}, report.Path)

	require.NotNil(t, estimated.To)
	assert.Equal(t, checkerAddr, *estimated.To)
	assert.Equal(t, HoneypotStake, estimated.Value)
	name, args, err := contract.HoneypotChecker.Inputs(estimated.Data)
	require.NoError(t, err)
	assert.Equal(t, "checkToken", name)
	assert.Equal(t, tokB, args[0])
	assert.Equal(t, []common.Address{wrapped, tokB}, args[1])
	assert.Equal(t, pairAddr, args[2])
}

func TestCheckHoneypotIgnoresFixedGasLimit(t *testing.T) {
	h := newHarness(t)
	h.fake.SetBalance(h.p.Address(), big.NewInt(1e18))
	h.p.SetFixedGasLimit(21000)
	h.fake.EstimateErr = fmt.Errorf("estimate gas: %w: execution reverted: TRANSFER_FAILED", ledger.ErrSimulationReverted)
	e := h.honeypotExecutor(newMapQuoter(map[string]int64{key(wrapped, tokB): 500}), pairAddr)

	report, err := e.CheckHoneypot(context.Background(), tokB)
	require.NoError(t, err)
	assert.False(t, report.Sellable)
	assert.Contains(t, report.Reason, "TRANSFER_FAILED")
	assert.Equal(t, 1, h.fake.EstimateCalls)
}

func TestCheckHoneypotPreconditions(t *testing.T) {
	q := newMapQuoter(map[string]int64{key(wrapped, tokB): 500})

	t.Run("no checker", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.executor(q).CheckHoneypot(context.Background(), tokB)
		assert.ErrorIs(t, err, ErrNoHoneypotChecker)
	})
	t.Run("balance below stake", func(t *testing.T) {
		h := newHarness(t)
		h.fake.SetBalance(h.p.Address(), big.NewInt(1))
		_, err := h.honeypotExecutor(q, pairAddr).CheckHoneypot(context.Background(), tokB)
		assert.ErrorIs(t, err, pipeline.ErrInsufficientBalance)
		assert.Zero(t, h.fake.EstimateCalls)
	})
	t.Run("not listed", func(t *testing.T) {
		h := newHarness(t)
		h.fake.SetBalance(h.p.Address(), big.NewInt(1e18))
		_, err := h.honeypotExecutor(newMapQuoter(nil), pairAddr).CheckHoneypot(context.Background(), tokB)
		assert.ErrorIs(t, err, ErrNoRouteFound)
	})
	t.Run("no pair", func(t *testing.T) {
		h := newHarness(t)
		h.fake.SetBalance(h.p.Address(), big.NewInt(1e18))
		_, err := h.honeypotExecutor(q, common.Address{}).CheckHoneypot(context.Background(), tokB)
		assert.ErrorIs(t, err, ErrNoRouteFound)
	})
	t.Run("node failure", func(t *testing.T) {
		h := newHarness(t)
		h.fake.SetBalance(h.p.Address(), big.NewInt(1e18))
		h.fake.EstimateErr = &ledger.NodeError{Op: "estimate gas", Err: fmt.Errorf("EOF")}
		_, err := h.honeypotExecutor(q, pairAddr).CheckHoneypot(context.Background(), tokB)
		assert.True(t, pipeline.IsRetryable(err))
	})
}

func TestSyrupPoolReads(t *testing.T) {
	pool := common.HexToAddress("0x0000000000000000000000000000000000000050")
	user := common.HexToAddress("0x0000000000000000000000000000000000000051")
	r := readerFunc(func(_ context.Context, to common.Address, data []byte) ([]byte, error) {
		require.Equal(t, pool, to)
		name, args, err := contract.SyrupPool.Inputs(data)
		require.NoError(t, err)
		switch name {
		case "rewardToken":
			return contract.SyrupPool.EncodeResult(name, tokC)
		case "stakedToken":
			return contract.SyrupPool.EncodeResult(name, tokD)
		case "pendingReward":
			require.Equal(t, user, args[0])
			return contract.SyrupPool.EncodeResult(name, big.NewInt(42))
		case "userInfo":
			require.Equal(t, user, args[0])
			return contract.SyrupPool.EncodeResult(name, big.NewInt(1000), big.NewInt(7))
		}
		return nil, ethereum.NotFound
	})
	s := NewSyrupPool(r, pool)
	ctx := context.Background()

	staked, err := s.StakedToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokD, staked)

	reward, err := s.RewardToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokC, reward)

	pending, err := s.PendingReward(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(42), pending.Int64())

	stake, err := s.UserInfo(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stake.Amount.Int64())
	assert.Equal(t, int64(7), stake.RewardDebt.Int64())
}
