package swap

import (
	"context"
	"fmt"
	"math/big"

	"evm-swap/pkg/contract"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Reader performs read-only contract calls. *pipeline.Pipeline satisfies it.
type Reader interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Quoter returns the output of swapping amountIn along path.
type Quoter interface {
	Quote(ctx context.Context, amountIn *big.Int, path Path) (*big.Int, error)
}

// RouterQuoter quotes through a router's getAmountsOut.
type RouterQuoter struct {
	r      Reader
	router common.Address
}

func NewRouterQuoter(r Reader, router common.Address) *RouterQuoter {
	return &RouterQuoter{r: r, router: router}
}

func (q *RouterQuoter) Quote(ctx context.Context, amountIn *big.Int, path Path) (*big.Int, error) {
	data, err := contract.Router.Encode("getAmountsOut", amountIn, []common.Address(path))
	if err != nil {
		return nil, err
	}
	raw, err := q.r.Call(ctx, q.router, data)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", path, err)
	}
	out, err := contract.Router.Decode("getAmountsOut", raw)
	if err != nil {
		return nil, err
	}
	amounts, err := contract.BigInts(out, 0)
	if err != nil {
		return nil, err
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("%w: %d amounts for %d-token path", contract.ErrUnexpectedOutput, len(amounts), len(path))
	}
	return amounts[len(amounts)-1], nil
}

// Route is a path together with its quoted output.
type Route struct {
	Path      Path
	AmountOut *big.Int
}

// Optimizer searches the direct path and every one-hop path through the
// router's pairing tokens.
type Optimizer struct {
	quoter  Quoter
	pairing []common.Address
	log     zerolog.Logger
}

func NewOptimizer(q Quoter, pairing []common.Address, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		quoter:  q,
		pairing: append([]common.Address(nil), pairing...),
		log:     log.With().Str("component", "swap").Logger(),
	}
}

// Candidates lists the paths BestPath quotes, in quoting order.
func (o *Optimizer) Candidates(tokenIn, tokenOut common.Address) []Path {
	paths := []Path{{tokenIn, tokenOut}}
	for _, hop := range o.pairing {
		if hop == tokenIn || hop == tokenOut {
			continue
		}
		paths = append(paths, Path{tokenIn, hop, tokenOut})
	}
	return paths
}

// BestPath returns the candidate with the highest quote. Failed quotes are
// skipped; only a strictly greater quote replaces the current best, so the
// first of equal maxima wins. ok is false when nothing could be quoted.
func (o *Optimizer) BestPath(ctx context.Context, tokenIn common.Address, amountIn *big.Int, tokenOut common.Address) (Route, bool) {
	var best Route
	for _, path := range o.Candidates(tokenIn, tokenOut) {
		if ctx.Err() != nil {
			break
		}
		out, err := o.quoter.Quote(ctx, amountIn, path)
		if err != nil {
			o.log.Debug().Err(err).Stringer("path", path).Msg("path not quotable")
			continue
		}
		if out.Sign() <= 0 {
			continue
		}
		if best.AmountOut == nil || out.Cmp(best.AmountOut) > 0 {
			best = Route{Path: path, AmountOut: out}
		}
	}
	if best.AmountOut == nil {
		return Route{}, false
	}
	o.log.Debug().Stringer("path", best.Path).Stringer("out", best.AmountOut).Msg("best path")
	return best, true
}
