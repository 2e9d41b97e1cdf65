package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"evm-swap/pkg/parser"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/registry"
	"evm-swap/pkg/swap"
	"evm-swap/pkg/token"
	"evm-swap/pkg/types"
)

var (
	swapSlippage float64
	swapMinOut   string
	noConfirm    bool
	autoApprove  bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> to <token> [on <router>]",
	Short: "Find the best path and router for a swap",
	Long: `Quote a swap on every router of the chain, or only on the named one, and show
the best path found. Paths are the direct pair plus one hop through each of the
router's pairing tokens.

Examples:
  evm-swap quote 1 BNB to USDT
  evm-swap quote 100 USDT to CAKE on biswap`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <token> to <token> [on <router>]",
	Short: "Swap tokens through a router",
	Long: `Swap tokens through a Uniswap-V2 style router on the configured chain.

Native currency names (BNB, MATIC, OKT, DOGE) stand for the wrapped token; when
the input is the wrapped native token the swap is paid in native currency.
The transaction never accepts less than the quote (or --min-out) reduced by the
slippage tolerance.

Examples:
  evm-swap swap 1 BNB to USDT
  evm-swap swap 100 USDT to CAKE on pancake --slippage 0.005
  evm-swap swap 50 USDT to BNB --min-out 0.15 --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().Float64Var(&swapSlippage, "slippage", -1, "Slippage tolerance as a fraction (default from config)")
	swapCmd.Flags().StringVar(&swapMinOut, "min-out", "", "Least output accepted before slippage (default: live quote)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&autoApprove, "approve", true, "Approve the router first when the allowance is too low")
}

// plannedSwap is a parsed command resolved against the registry and priced.
type plannedSwap struct {
	req      *types.SwapRequest
	tokenIn  tokenRef
	tokenOut tokenRef
	amountIn *big.Int
	choice   swap.RouterChoice
}

type tokenRef struct {
	addr     common.Address
	decimals uint8
}

func planSwap(ctx context.Context, s *session, p *pipeline.Pipeline, args []string) (*plannedSwap, error) {
	req, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	req.Chain = s.chain.Name
	req.Slippage = s.cfg.Slippage
	if err := parser.ValidateSwapRequest(req); err != nil {
		return nil, err
	}

	in, err := s.resolveToken(req.TokenIn)
	if err != nil {
		return nil, err
	}
	out, err := s.resolveToken(req.TokenOut)
	if err != nil {
		return nil, err
	}
	inDecimals, err := s.decimalsOf(ctx, p, in)
	if err != nil {
		return nil, err
	}
	outDecimals, err := s.decimalsOf(ctx, p, out)
	if err != nil {
		return nil, err
	}
	amountIn, err := token.ToBaseUnits(req.Amount, inDecimals)
	if err != nil {
		return nil, err
	}

	routers := s.reg.Routers(s.chain.Name)
	if req.Router != "" {
		rt, err := s.reg.Router(s.chain.Name, req.Router)
		if err != nil {
			return nil, err
		}
		routers = []registry.RouterProfile{rt}
	}
	quoterFor := func(rt registry.RouterProfile) swap.Quoter {
		return swap.NewRouterQuoter(p, rt.Address)
	}
	choice, ok := swap.BestRouter(ctx, routers, quoterFor, in, amountIn, out, s.log)
	if !ok {
		return nil, fmt.Errorf("%w: %s to %s on %s", swap.ErrNoRouteFound, req.TokenIn, req.TokenOut, s.chain.Name)
	}
	req.Router = choice.Router.Name

	return &plannedSwap{
		req:      req,
		tokenIn:  tokenRef{addr: in, decimals: inDecimals},
		tokenOut: tokenRef{addr: out, decimals: outDecimals},
		amountIn: amountIn,
		choice:   choice,
	}, nil
}

func (ps *plannedSwap) display(s *session, minOut *big.Int) types.QuoteDisplay {
	var path []string
	for _, hop := range ps.choice.Route.Path {
		path = append(path, s.symbolOf(hop))
	}
	q := types.QuoteDisplay{
		Chain:     s.chain.Name,
		Router:    ps.choice.Router.DisplayName,
		Kind:      swap.KindFor(ps.tokenIn.addr, ps.tokenOut.addr, s.chain.WrappedNative).String(),
		AmountIn:  ps.req.Amount,
		TokenIn:   ps.req.TokenIn,
		AmountOut: token.Format(ps.choice.Route.AmountOut, ps.tokenOut.decimals),
		TokenOut:  ps.req.TokenOut,
		Path:      path,
	}
	if minOut != nil {
		q.MinOut = token.Format(minOut, ps.tokenOut.decimals)
	}
	return q
}

func runQuote(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx := context.Background()

	p, err := s.readOnlyPipeline()
	exitOnError(err)

	sp := s.spin("Fetching quotes...")
	plan, err := planSwap(ctx, s, p, args)
	sp.Stop()
	exitOnError(err)

	q := plan.display(s, swap.MinAcceptableOutput(plan.choice.Route.AmountOut, s.cfg.Slippage))
	if s.json {
		jsonData, _ := json.MarshalIndent(q, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayQuote(q)
}

func runSwap(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx := context.Background()

	if swapSlippage >= 0 {
		s.cfg.Slippage = swapSlippage
	}

	p, err := s.mainPipeline()
	exitOnError(err)

	sp := s.spin("Fetching quote...")
	plan, err := planSwap(ctx, s, p, args)
	sp.Stop()
	exitOnError(err)

	var minOut *big.Int
	if swapMinOut != "" {
		minOut, err = token.ToBaseUnits(swapMinOut, plan.tokenOut.decimals)
		exitOnError(err)
	}
	floor := plan.choice.Route.AmountOut
	if minOut != nil {
		floor = minOut
	}
	q := plan.display(s, swap.MinAcceptableOutput(floor, s.cfg.Slippage))

	if s.verbose {
		fmt.Printf("\nDebug: router %s at %s\n", plan.choice.Router.Name, plan.choice.Router.Address.Hex())
	}
	if s.json {
		jsonData, _ := json.MarshalIndent(q, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayQuote(q)
	}

	// Ask for confirmation
	if !noConfirm && !s.json {
		if !confirmPrompt("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	exec := swap.NewExecutor(p, plan.choice.Router, nil, s.log)
	kind := swap.KindFor(plan.tokenIn.addr, plan.tokenOut.addr, s.chain.WrappedNative)
	if kind != swap.NativeIn && autoApprove {
		ensureAllowance(ctx, s, exec, plan.tokenIn.addr, plan.amountIn)
	}

	res, err := exec.ExecuteSwap(ctx, swap.Request{
		TokenIn:  plan.tokenIn.addr,
		TokenOut: plan.tokenOut.addr,
		AmountIn: plan.amountIn,
		MinOut:   minOut,
		Path:     plan.choice.Route.Path,
		Slippage: s.cfg.Slippage,
	})
	exitOnError(err)

	if !s.json {
		color.Green("\n✓ Swap submitted (%s)", res.Kind)
	}
	reportTransaction(s, p, res.Tx, true)
}

// ensureAllowance approves the router when the current allowance cannot
// cover amount.
func ensureAllowance(ctx context.Context, s *session, exec *swap.Executor, tokenAddr common.Address, amount *big.Int) {
	p := exec.Pipeline()
	allowance, err := token.New(p, tokenAddr).Allowance(ctx, p.Address(), exec.Router().Address)
	exitOnError(err)
	if allowance.Cmp(amount) >= 0 {
		return
	}
	if !s.json {
		color.Yellow("\nApproving %s for %s...", s.symbolOf(tokenAddr), exec.Router().DisplayName)
	}
	tx, err := exec.ApproveRouter(ctx, tokenAddr)
	exitOnError(err)
	status, err := p.Confirm(ctx, tx, s.cfg.ConfirmTimeout)
	exitOnError(err)
	if status != pipeline.StatusConfirmed {
		exitOnError(fmt.Errorf("approval %s %s", tx.Hash.Hex(), status))
	}
}

func displayQuote(q types.QuoteDisplay) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Chain:             %s\n", q.Chain)
	fmt.Printf("  Router:            %s\n", color.CyanString(q.Router))
	fmt.Printf("  From:              %s %s\n", q.AmountIn, color.YellowString(q.TokenIn))
	fmt.Printf("  To:                ~%s %s\n", q.AmountOut, color.YellowString(q.TokenOut))
	if q.MinOut != "" {
		fmt.Printf("  Minimum Received:  %s %s\n", q.MinOut, color.YellowString(q.TokenOut))
	}
	fmt.Printf("  Path:              %s\n", strings.Join(q.Path, " -> "))
	fmt.Printf("  Kind:              %s\n", q.Kind)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayOutcome(s *session, what string, out swap.Outcome) {
	if s.json {
		hashes := make([]string, len(out.Hashes))
		for i, h := range out.Hashes {
			hashes[i] = h.Hex()
		}
		result := map[string]interface{}{
			"success":  out.Success,
			"attempts": out.Attempts,
			"hashes":   hashes,
		}
		if out.LastErr != nil {
			result["error"] = out.LastErr.Error()
		}
		jsonData, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		if out.Success {
			color.Green("\n✓ %s confirmed after %d attempt(s)", what, out.Attempts)
		} else {
			color.Red("\n✗ %s failed after %d attempt(s)", what, out.Attempts)
			if out.LastErr != nil {
				fmt.Printf("  Last error: %v\n", out.LastErr)
			}
		}
		for _, h := range out.Hashes {
			fmt.Printf("  Tx: %s\n", color.HiBlackString(s.chain.TxURL(h.Hex())))
		}
		fmt.Println()
	}
	if !out.Success {
		os.Exit(1)
	}
}
