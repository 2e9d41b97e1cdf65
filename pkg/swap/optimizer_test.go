package swap

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"evm-swap/pkg/contract"
	"evm-swap/pkg/ledger"
	"evm-swap/pkg/registry"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokC = common.HexToAddress("0x000000000000000000000000000000000000000c")
	tokD = common.HexToAddress("0x000000000000000000000000000000000000000d")
)

// mapQuoter answers from a table keyed by path; missing paths fail like a
// router without liquidity.
type mapQuoter struct {
	mu     sync.Mutex
	quotes map[string]int64
	calls  []Path
}

func newMapQuoter(q map[string]int64) *mapQuoter { return &mapQuoter{quotes: q} }

func key(p ...common.Address) string { return Path(p).String() }

func (m *mapQuoter) Quote(_ context.Context, _ *big.Int, path Path) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, path)
	v, ok := m.quotes[path.String()]
	if !ok {
		return nil, ledger.ErrSimulationReverted
	}
	return big.NewInt(v), nil
}

func TestBestPathPicksMaximum(t *testing.T) {
	q := newMapQuoter(map[string]int64{
		key(tokA, tokB):       50,
		key(tokA, tokC, tokB): 80,
		key(tokA, tokD, tokB): 30,
	})
	opt := NewOptimizer(q, []common.Address{tokC, tokD}, zerolog.Nop())

	route, ok := opt.BestPath(context.Background(), tokA, big.NewInt(1), tokB)
	require.True(t, ok)
	assert.Equal(t, Path{tokA, tokC, tokB}, route.Path)
	assert.Equal(t, int64(80), route.AmountOut.Int64())
	assert.Len(t, q.calls, 3)
}

func TestBestPathEmptyWhenNothingQuotes(t *testing.T) {
	q := newMapQuoter(nil)
	opt := NewOptimizer(q, []common.Address{tokC, tokD}, zerolog.Nop())

	route, ok := opt.BestPath(context.Background(), tokA, big.NewInt(1), tokB)
	assert.False(t, ok)
	assert.Nil(t, route.Path)
	assert.Len(t, q.calls, 3)
}

func TestBestPathFirstMaximumWins(t *testing.T) {
	q := newMapQuoter(map[string]int64{
		key(tokA, tokC, tokB): 80,
		key(tokA, tokD, tokB): 80,
	})
	opt := NewOptimizer(q, []common.Address{tokC, tokD}, zerolog.Nop())

	route, ok := opt.BestPath(context.Background(), tokA, big.NewInt(1), tokB)
	require.True(t, ok)
	assert.Equal(t, Path{tokA, tokC, tokB}, route.Path)
}

func TestBestPathIgnoresZeroQuotes(t *testing.T) {
	q := newMapQuoter(map[string]int64{key(tokA, tokB): 0})
	_, ok := NewOptimizer(q, nil, zerolog.Nop()).BestPath(context.Background(), tokA, big.NewInt(1), tokB)
	assert.False(t, ok)
}

func TestCandidatesSkipEndpoints(t *testing.T) {
	opt := NewOptimizer(newMapQuoter(nil), []common.Address{tokA, tokC, tokB}, zerolog.Nop())
	assert.Equal(t, []Path{{tokA, tokB}, {tokA, tokC, tokB}}, opt.Candidates(tokA, tokB))
}

func TestPathValidate(t *testing.T) {
	assert.NoError(t, Path{tokA, tokB}.Validate())
	assert.NoError(t, Path{tokA, tokC, tokB}.Validate())
	assert.ErrorIs(t, Path{tokA}.Validate(), ErrInvalidPath)
	assert.ErrorIs(t, Path{tokA, tokC, tokD, tokB}.Validate(), ErrInvalidPath)
	assert.ErrorIs(t, Path{tokA, tokA, tokB}.Validate(), ErrInvalidPath)
}

func TestMinAcceptableOutput(t *testing.T) {
	tests := []struct {
		quoted   int64
		slippage float64
		want     int64
	}{
		{100, 0.01, 99},
		{101, 0.01, 99},
		{100, 0, 100},
		{1000, 0.5, 500},
		{7, 0.3, 4},
	}
	for _, tt := range tests {
		got := MinAcceptableOutput(big.NewInt(tt.quoted), tt.slippage)
		assert.Equal(t, tt.want, got.Int64(), "quoted %d slippage %v", tt.quoted, tt.slippage)
	}
}

func TestKindFor(t *testing.T) {
	w := tokC
	assert.Equal(t, NativeIn, KindFor(w, tokB, w))
	assert.Equal(t, NativeOut, KindFor(tokA, w, w))
	assert.Equal(t, TokenToToken, KindFor(tokA, tokB, w))
	assert.Equal(t, "swapExactETHForTokens", NativeIn.Method())
	assert.Equal(t, "swapExactTokensForETH", NativeOut.Method())
	assert.Equal(t, "swapExactTokensForTokens", TokenToToken.Method())
}

type readerFunc func(ctx context.Context, to common.Address, data []byte) ([]byte, error)

func (f readerFunc) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return f(ctx, to, data)
}

func TestRouterQuoter(t *testing.T) {
	router := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	r := readerFunc(func(_ context.Context, to common.Address, data []byte) ([]byte, error) {
		require.Equal(t, router, to)
		_, args, err := contract.Router.Inputs(data)
		require.NoError(t, err)
		path := args[1].([]common.Address)
		amounts := make([]*big.Int, len(path))
		for i := range amounts {
			amounts[i] = big.NewInt(int64(100 * (i + 1)))
		}
		return contract.Router.EncodeResult("getAmountsOut", amounts)
	})

	out, err := NewRouterQuoter(r, router).Quote(context.Background(), big.NewInt(100), Path{tokA, tokC, tokB})
	require.NoError(t, err)
	assert.Equal(t, int64(300), out.Int64())

	failing := readerFunc(func(context.Context, common.Address, []byte) ([]byte, error) {
		return nil, errors.New("execution reverted")
	})
	_, err = NewRouterQuoter(failing, router).Quote(context.Background(), big.NewInt(1), Path{tokA, tokB})
	assert.Error(t, err)
}

func TestBestRouter(t *testing.T) {
	r1 := registry.RouterProfile{Name: "one", Pairing: []common.Address{tokC}}
	r2 := registry.RouterProfile{Name: "two", Pairing: []common.Address{tokD}}
	quoters := map[string]Quoter{
		"one": newMapQuoter(map[string]int64{key(tokA, tokB): 40, key(tokA, tokC, tokB): 60}),
		"two": newMapQuoter(map[string]int64{key(tokA, tokD, tokB): 70}),
	}
	pick := func(rt registry.RouterProfile) Quoter { return quoters[rt.Name] }

	choice, ok := BestRouter(context.Background(), []registry.RouterProfile{r1, r2}, pick, tokA, big.NewInt(1), tokB, zerolog.Nop())
	require.True(t, ok)
	assert.Equal(t, "two", choice.Router.Name)
	assert.Equal(t, Path{tokA, tokD, tokB}, choice.Route.Path)

	_, ok = BestRouter(context.Background(), nil, pick, tokA, big.NewInt(1), tokB, zerolog.Nop())
	assert.False(t, ok)
}

func TestPairUnderlyingAmounts(t *testing.T) {
	pairAddr := common.HexToAddress("0x0000000000000000000000000000000000000099")
	r := readerFunc(func(_ context.Context, to common.Address, data []byte) ([]byte, error) {
		require.Equal(t, pairAddr, to)
		switch contract.Pair.Method(data) {
		case "getReserves":
			return contract.Pair.EncodeResult("getReserves", big.NewInt(1000), big.NewInt(3000), uint32(1))
		case "totalSupply":
			return contract.Pair.EncodeResult("totalSupply", big.NewInt(300))
		case "token0":
			return contract.Pair.EncodeResult("token0", tokA)
		}
		return nil, ethereum.NotFound
	})
	pair := NewPair(r, pairAddr)

	a0, a1, err := pair.UnderlyingAmounts(context.Background(), big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(333), a0.Int64())
	assert.Equal(t, int64(1000), a1.Int64())

	t0, err := pair.Token0(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tokA, t0)
}
