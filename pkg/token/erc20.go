// Package token reads and writes ERC20 tokens through a transaction pipeline.
package token

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"evm-swap/pkg/contract"
	"evm-swap/pkg/pipeline"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// ERC20 is a token contract bound to the pipeline of the acting account.
type ERC20 struct {
	Address common.Address
	p       *pipeline.Pipeline
}

func New(p *pipeline.Pipeline, address common.Address) *ERC20 {
	return &ERC20{Address: address, p: p}
}

func (t *ERC20) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.ERC20.Encode(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := t.p.Call(ctx, t.Address, data)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", t.Address.Hex(), method, err)
	}
	return contract.ERC20.Decode(method, out)
}

func (t *ERC20) Name(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "name")
	if err != nil {
		return "", err
	}
	return contract.String(out, 0)
}

func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	return contract.String(out, 0)
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return contract.Uint8(out, 0)
}

func (t *ERC20) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := t.call(ctx, "totalSupply")
	if err != nil {
		return nil, err
	}
	return contract.BigInt(out, 0)
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return contract.BigInt(out, 0)
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return contract.BigInt(out, 0)
}

// Approve grants spender an unlimited allowance.
func (t *ERC20) Approve(ctx context.Context, spender common.Address) (*pipeline.PendingTransaction, error) {
	data, err := contract.ERC20.Encode("approve", spender, math.MaxBig256)
	if err != nil {
		return nil, err
	}
	return t.p.CallContract(ctx, t.Address, data, nil)
}

func (t *ERC20) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*pipeline.PendingTransaction, error) {
	data, err := contract.ERC20.Encode("transfer", to, amount)
	if err != nil {
		return nil, err
	}
	return t.p.CallContract(ctx, t.Address, data, nil)
}

// WaitForBalanceBelow polls owner's balance until it drops below threshold.
// It returns false once timeout elapses.
func (t *ERC20) WaitForBalanceBelow(ctx context.Context, owner common.Address, threshold *big.Int, timeout time.Duration) (bool, error) {
	return t.waitFor(ctx, owner, timeout, func(b *big.Int) bool { return b.Cmp(threshold) < 0 })
}

// WaitForBalanceAbove polls owner's balance until it exceeds threshold.
func (t *ERC20) WaitForBalanceAbove(ctx context.Context, owner common.Address, threshold *big.Int, timeout time.Duration) (bool, error) {
	return t.waitFor(ctx, owner, timeout, func(b *big.Int) bool { return b.Cmp(threshold) > 0 })
}

func (t *ERC20) waitFor(ctx context.Context, owner common.Address, timeout time.Duration, done func(*big.Int) bool) (bool, error) {
	clock := t.p.Clock()
	deadline := clock.Now().Add(timeout)
	for {
		bal, err := t.BalanceOf(ctx, owner)
		if err != nil {
			return false, err
		}
		if done(bal) {
			return true, nil
		}
		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return false, nil
		}
		wait := pipeline.PollInterval
		if remaining < wait {
			wait = remaining
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return false, err
		}
	}
}
