package swap

import (
	"context"
	"math/big"

	"evm-swap/pkg/registry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// RouterChoice is the router with the best route for a trade.
type RouterChoice struct {
	Router registry.RouterProfile
	Route  Route
}

// BestRouter runs the path search on every router and keeps the highest
// output. As with paths, the first of equal maxima wins.
func BestRouter(ctx context.Context, routers []registry.RouterProfile, quoterFor func(registry.RouterProfile) Quoter,
	tokenIn common.Address, amountIn *big.Int, tokenOut common.Address, log zerolog.Logger) (RouterChoice, bool) {
	var best RouterChoice
	found := false
	for _, rt := range routers {
		route, ok := NewOptimizer(quoterFor(rt), rt.Pairing, log).BestPath(ctx, tokenIn, amountIn, tokenOut)
		if !ok {
			continue
		}
		log.Debug().Str("router", rt.Name).Stringer("out", route.AmountOut).Msg("router quote")
		if !found || route.AmountOut.Cmp(best.Route.AmountOut) > 0 {
			best = RouterChoice{Router: rt, Route: route}
			found = true
		}
	}
	return best, found
}
