package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"evm-swap/internal/metrics"
	"evm-swap/pkg/contract"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/registry"
	"evm-swap/pkg/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const (
	// DeadlineWindow is added to the current time for every swap deadline.
	DeadlineWindow = 1200 * time.Second

	DefaultBackoff        = 2 * time.Second
	FloorConfirmTimeout   = 30 * time.Second
	ListingConfirmTimeout = 60 * time.Second
)

// Executor runs slippage-bounded swaps through one router for one account.
type Executor struct {
	p         *pipeline.Pipeline
	router    registry.RouterProfile
	quoter    Quoter
	optimizer *Optimizer
	log       zerolog.Logger
}

// NewExecutor binds an executor to a router. A nil quoter quotes through
// the router contract using the pipeline's read calls.
func NewExecutor(p *pipeline.Pipeline, router registry.RouterProfile, quoter Quoter, log zerolog.Logger) *Executor {
	if quoter == nil {
		quoter = NewRouterQuoter(p, router.Address)
	}
	log = log.With().Str("component", "swap").Str("router", router.Name).Logger()
	return &Executor{
		p:         p,
		router:    router,
		quoter:    quoter,
		optimizer: NewOptimizer(quoter, router.Pairing, log),
		log:       log,
	}
}

func (e *Executor) Router() registry.RouterProfile { return e.router }

func (e *Executor) Pipeline() *pipeline.Pipeline { return e.p }

func (e *Executor) Optimizer() *Optimizer { return e.optimizer }

// Quote returns the final-hop output for amountIn along path.
func (e *Executor) Quote(ctx context.Context, amountIn *big.Int, path Path) (*big.Int, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	return e.quoter.Quote(ctx, amountIn, path)
}

// Deadline is now plus DeadlineWindow in unix seconds.
func (e *Executor) Deadline() *big.Int {
	return big.NewInt(e.p.Clock().Now().Add(DeadlineWindow).Unix())
}

// Request describes one swap. Path and MinOut are optional.
type Request struct {
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	// MinOut is the least output the caller accepts before slippage; the
	// live quote is used when nil.
	MinOut   *big.Int
	Path     Path
	Slippage float64
}

// Result is a submitted swap.
type Result struct {
	Tx     *pipeline.PendingTransaction
	Kind   Kind
	Path   Path
	Quoted *big.Int
	MinOut *big.Int
}

// ExecuteSwap resolves a path if none is given, checks the caller's minimum
// against the live quote and submits the matching router call.
func (e *Executor) ExecuteSwap(ctx context.Context, req Request) (*Result, error) {
	if req.Slippage < 0 || req.Slippage >= 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlippage, req.Slippage)
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("swap amount must be positive")
	}

	path := req.Path
	if len(path) == 0 {
		route, ok := e.optimizer.BestPath(ctx, req.TokenIn, req.AmountIn, req.TokenOut)
		if !ok {
			return nil, fmt.Errorf("%w: %s to %s on %s", ErrNoRouteFound, req.TokenIn.Hex(), req.TokenOut.Hex(), e.router.Name)
		}
		path = route.Path
	}
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if path.In() != req.TokenIn || path.Out() != req.TokenOut {
		return nil, fmt.Errorf("%w: %s does not lead from %s to %s", ErrInvalidPath, path, req.TokenIn.Hex(), req.TokenOut.Hex())
	}

	quoted, err := e.quoter.Quote(ctx, req.AmountIn, path)
	if err != nil {
		return nil, err
	}
	floor := quoted
	if req.MinOut != nil {
		if req.MinOut.Cmp(quoted) > 0 {
			return nil, &SlippageError{MinOut: req.MinOut, Quoted: quoted}
		}
		floor = req.MinOut
	}
	minOut := MinAcceptableOutput(floor, req.Slippage)

	kind := KindFor(req.TokenIn, req.TokenOut, e.router.Chain.WrappedNative)
	tx, err := e.submit(ctx, kind, req.AmountIn, minOut, path)
	metrics.SwapAttempts.WithLabelValues(kind.String(), metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("kind", kind.String()).
		Stringer("path", path).
		Stringer("amount_in", req.AmountIn).
		Stringer("quoted", quoted).
		Stringer("min_out", minOut).
		Str("hash", tx.Hash.Hex()).
		Msg("swap submitted")

	return &Result{Tx: tx, Kind: kind, Path: path, Quoted: quoted, MinOut: minOut}, nil
}

func (e *Executor) submit(ctx context.Context, kind Kind, amountIn, minOut *big.Int, path Path) (*pipeline.PendingTransaction, error) {
	to := e.p.Address()
	hops := []common.Address(path)
	var (
		data  []byte
		value *big.Int
		err   error
	)
	switch kind {
	case NativeIn:
		data, err = contract.Router.Encode(kind.Method(), minOut, hops, to, e.Deadline())
		value = amountIn
	default:
		data, err = contract.Router.Encode(kind.Method(), amountIn, minOut, hops, to, e.Deadline())
	}
	if err != nil {
		return nil, err
	}
	return e.p.CallContract(ctx, e.router.Address, data, value)
}

// ApproveRouter grants the router an unlimited allowance on tokenAddr.
func (e *Executor) ApproveRouter(ctx context.Context, tokenAddr common.Address) (*pipeline.PendingTransaction, error) {
	return token.New(e.p, tokenAddr).Approve(ctx, e.router.Address)
}

// Outcome summarizes a retried workflow.
type Outcome struct {
	Success  bool
	Attempts int
	// Hashes holds every transaction submitted, confirmed or not.
	Hashes  []common.Hash
	LastErr error
}

// FloorRequest configures AttemptSwapWithFloor.
type FloorRequest struct {
	TokenIn     common.Address
	TokenOut    common.Address
	AmountIn    *big.Int
	MinNative   *big.Int
	Slippage    float64
	MaxAttempts int
	// Backoff between attempts; DefaultBackoff when zero.
	Backoff time.Duration
	// GasPrice, when set, pins both gas bounds to it for the duration of the
	// call.
	GasPrice *big.Int
}

// AttemptSwapWithFloor sells only when the live quote clears MinNative. Every
// pass counts as an attempt: a quote under the floor, a failed submission or
// a transaction that does not confirm within FloorConfirmTimeout. Attempts
// are spaced by the backoff. Only context cancellation is returned as an
// error; running out of attempts is reported in the Outcome.
func (e *Executor) AttemptSwapWithFloor(ctx context.Context, req FloorRequest) (Outcome, error) {
	var out Outcome
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 1
	}
	if req.Backoff <= 0 {
		req.Backoff = DefaultBackoff
	}
	if req.GasPrice != nil {
		lo, hi := e.p.GasBounds()
		if err := e.p.SetGasBounds(req.GasPrice, req.GasPrice); err != nil {
			return out, err
		}
		defer func() { _ = e.p.SetGasBounds(lo, hi) }()
	}
	path := Path{req.TokenIn, req.TokenOut}
	clock := e.p.Clock()

	for out.Attempts < req.MaxAttempts {
		if out.Attempts > 0 {
			if err := clock.Sleep(ctx, req.Backoff); err != nil {
				return out, err
			}
		}
		out.Attempts++

		quoted, err := e.Quote(ctx, req.AmountIn, path)
		if err != nil {
			out.LastErr = err
			e.log.Warn().Err(err).Int("attempt", out.Attempts).Msg("quote failed, retrying")
			continue
		}
		if quoted.Cmp(req.MinNative) < 0 {
			out.LastErr = &SlippageError{MinOut: req.MinNative, Quoted: quoted}
			e.log.Info().Stringer("quoted", quoted).Stringer("floor", req.MinNative).Int("attempt", out.Attempts).Msg("quote below floor, retrying")
			continue
		}

		res, err := e.ExecuteSwap(ctx, Request{
			TokenIn:  req.TokenIn,
			TokenOut: req.TokenOut,
			AmountIn: req.AmountIn,
			MinOut:   quoted,
			Path:     path,
			Slippage: req.Slippage,
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			out.LastErr = err
			e.recordFailure(err)
			continue
		}
		out.Hashes = append(out.Hashes, res.Tx.Hash)

		status, err := e.p.Confirm(ctx, res.Tx, FloorConfirmTimeout)
		if err != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}
		if status == pipeline.StatusConfirmed {
			out.Success = true
			out.LastErr = nil
			return out, nil
		}
		out.LastErr = notConfirmed(res.Tx.Hash, status, err)
		e.log.Warn().Str("hash", res.Tx.Hash.Hex()).Str("status", string(status)).Int("attempt", out.Attempts).Msg("sell not confirmed, retrying")
	}
	return out, nil
}

// ListingRequest configures BuyWhenListed.
type ListingRequest struct {
	Token       common.Address
	AmountIn    *big.Int
	WatchFor    time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// BuyWhenListed polls for any quotable path from the wrapped native token to
// Token until WatchFor elapses, then buys with no output floor and retries
// unconfirmed purchases up to MaxAttempts times.
func (e *Executor) BuyWhenListed(ctx context.Context, req ListingRequest) (Outcome, error) {
	var out Outcome
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 1
	}
	if req.Backoff <= 0 {
		req.Backoff = DefaultBackoff
	}
	clock := e.p.Clock()
	native := e.router.Chain.WrappedNative
	deadline := clock.Now().Add(req.WatchFor)

	var route Route
	for {
		r, ok := e.optimizer.BestPath(ctx, native, req.AmountIn, req.Token)
		if ok {
			route = r
			break
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return out, fmt.Errorf("%w: %s not listed on %s", ErrNoRouteFound, req.Token.Hex(), e.router.Name)
		}
		e.log.Debug().Str("token", req.Token.Hex()).Msg("no liquidity yet")
		wait := req.Backoff
		if remaining < wait {
			wait = remaining
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return out, err
		}
	}
	e.log.Info().Stringer("path", route.Path).Stringer("quoted", route.AmountOut).Msg("liquidity found, buying")

	for out.Attempts < req.MaxAttempts {
		if out.Attempts > 0 {
			if err := clock.Sleep(ctx, req.Backoff); err != nil {
				return out, err
			}
		}
		out.Attempts++

		tx, err := e.submit(ctx, NativeIn, req.AmountIn, new(big.Int), route.Path)
		metrics.SwapAttempts.WithLabelValues(NativeIn.String(), metrics.Result(err)).Inc()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			out.LastErr = err
			e.recordFailure(err)
			continue
		}
		out.Hashes = append(out.Hashes, tx.Hash)

		status, err := e.p.Confirm(ctx, tx, ListingConfirmTimeout)
		if err != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}
		if status == pipeline.StatusConfirmed {
			out.Success = true
			out.LastErr = nil
			return out, nil
		}
		out.LastErr = notConfirmed(tx.Hash, status, err)
	}
	return out, nil
}

func (e *Executor) recordFailure(err error) {
	e.log.Warn().Err(err).Bool("retryable", pipeline.IsRetryable(err)).Msg("swap attempt failed")
}

// ErrNotConfirmed marks a transaction that reverted or timed out.
var ErrNotConfirmed = errors.New("transaction not confirmed")

func notConfirmed(hash common.Hash, status pipeline.Status, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotConfirmed, hash.Hex(), err)
	}
	return fmt.Errorf("%w: %s %s", ErrNotConfirmed, hash.Hex(), status)
}
