package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"evm-swap/pkg/contract"
	"evm-swap/pkg/pipeline"

	"github.com/ethereum/go-ethereum/common"
)

// HoneypotStake is the native amount, 0.01 in wei, the checker buys with.
var HoneypotStake = big.NewInt(10_000_000_000_000_000)

var ErrNoHoneypotChecker = errors.New("no honeypot checker configured")

// HoneypotReport is the outcome of CheckHoneypot. Sellable is false when the
// simulated buy and sell reverted; Reason then carries the node's message.
type HoneypotReport struct {
	Token    common.Address
	Path     Path
	Pair     common.Address
	Sellable bool
	Gas      uint64
	Reason   string
}

// CheckHoneypot simulates buying token with HoneypotStake native units and
// selling it straight back, through the chain's checker contract. Nothing is
// broadcast, but the node only runs the simulation when the account holds
// the stake amount.
func (e *Executor) CheckHoneypot(ctx context.Context, token common.Address) (HoneypotReport, error) {
	report := HoneypotReport{Token: token}
	chain := e.router.Chain
	if chain.HoneypotChecker == (common.Address{}) {
		return report, fmt.Errorf("%w on %s", ErrNoHoneypotChecker, chain.Name)
	}

	balance, err := e.p.Balance(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(HoneypotStake) < 0 {
		return report, fmt.Errorf("%w: the check needs %s wei, have %s wei", pipeline.ErrInsufficientBalance, HoneypotStake, balance)
	}

	route, ok := e.optimizer.BestPath(ctx, chain.WrappedNative, HoneypotStake, token)
	if !ok {
		return report, fmt.Errorf("%w: %s to %s", ErrNoRouteFound, chain.WrappedNative.Hex(), token.Hex())
	}
	report.Path = route.Path

	factory, err := Factory(ctx, e.p, e.router.Address)
	if err != nil {
		return report, err
	}
	pair, err := PairAddress(ctx, e.p, factory, route.Path[len(route.Path)-2], token)
	if err != nil {
		return report, err
	}
	if pair == (common.Address{}) {
		return report, fmt.Errorf("%w: no pair for %s", ErrNoRouteFound, token.Hex())
	}
	report.Pair = pair

	data, err := contract.HoneypotChecker.Encode("checkToken", token, []common.Address(route.Path), pair)
	if err != nil {
		return report, err
	}
	gas, err := e.p.Simulate(ctx, chain.HoneypotChecker, data, HoneypotStake)
	if errors.Is(err, pipeline.ErrEstimationFailed) {
		report.Reason = err.Error()
		e.log.Warn().Str("token", token.Hex()).Err(err).Msg("token cannot be sold back")
		return report, nil
	}
	if err != nil {
		return report, err
	}
	report.Sellable = true
	report.Gas = gas
	e.log.Info().Str("token", token.Hex()).Uint64("gas", gas).Msg("buy and sell simulated")
	return report, nil
}
