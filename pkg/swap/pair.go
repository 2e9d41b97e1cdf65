package swap

import (
	"context"
	"fmt"
	"math/big"

	"evm-swap/pkg/contract"

	"github.com/ethereum/go-ethereum/common"
)

func read(ctx context.Context, r Reader, codec *contract.Codec, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := codec.Encode(method, args...)
	if err != nil {
		return nil, err
	}
	raw, err := r.Call(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", to.Hex(), method, err)
	}
	return codec.Decode(method, raw)
}

// Factory returns the pair factory behind a router.
func Factory(ctx context.Context, r Reader, router common.Address) (common.Address, error) {
	out, err := read(ctx, r, contract.Router, router, "factory")
	if err != nil {
		return common.Address{}, err
	}
	return contract.Address(out, 0)
}

// PairAddress returns the pair of tokenA and tokenB, or the zero address
// when the factory has none.
func PairAddress(ctx context.Context, r Reader, factory, tokenA, tokenB common.Address) (common.Address, error) {
	out, err := read(ctx, r, contract.Factory, factory, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return contract.Address(out, 0)
}

// Reserves of a pair, in token0/token1 order.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Pair reads a UniswapV2-style liquidity pair.
type Pair struct {
	Address common.Address
	r       Reader
}

func NewPair(r Reader, address common.Address) *Pair {
	return &Pair{Address: address, r: r}
}

func (p *Pair) Reserves(ctx context.Context) (Reserves, error) {
	out, err := read(ctx, p.r, contract.Pair, p.Address, "getReserves")
	if err != nil {
		return Reserves{}, err
	}
	r0, err := contract.BigInt(out, 0)
	if err != nil {
		return Reserves{}, err
	}
	r1, err := contract.BigInt(out, 1)
	if err != nil {
		return Reserves{}, err
	}
	ts, _ := out[2].(uint32)
	return Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts}, nil
}

func (p *Pair) Token0(ctx context.Context) (common.Address, error) {
	out, err := read(ctx, p.r, contract.Pair, p.Address, "token0")
	if err != nil {
		return common.Address{}, err
	}
	return contract.Address(out, 0)
}

func (p *Pair) Token1(ctx context.Context) (common.Address, error) {
	out, err := read(ctx, p.r, contract.Pair, p.Address, "token1")
	if err != nil {
		return common.Address{}, err
	}
	return contract.Address(out, 0)
}

func (p *Pair) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := read(ctx, p.r, contract.Pair, p.Address, "totalSupply")
	if err != nil {
		return nil, err
	}
	return contract.BigInt(out, 0)
}

// UnderlyingAmounts returns the token0 and token1 amounts a liquidity share
// redeems for, rounded down.
func (p *Pair) UnderlyingAmounts(ctx context.Context, liquidity *big.Int) (*big.Int, *big.Int, error) {
	res, err := p.Reserves(ctx)
	if err != nil {
		return nil, nil, err
	}
	supply, err := p.TotalSupply(ctx)
	if err != nil {
		return nil, nil, err
	}
	if supply.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}
	a0 := new(big.Int).Mul(liquidity, res.Reserve0)
	a0.Quo(a0, supply)
	a1 := new(big.Int).Mul(liquidity, res.Reserve1)
	a1.Quo(a1, supply)
	return a0, a1, nil
}
