package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"evm-swap/pkg/swap"
	"evm-swap/pkg/token"
)

var (
	floorMin      string
	floorAttempts int
	floorBackoff  time.Duration
	floorGasGwei  float64
	floorRouter   string

	listingWatch    time.Duration
	listingAttempts int
	listingBackoff  time.Duration
	listingRouter   string
)

var sellFloorCmd = &cobra.Command{
	Use:   "sell-floor <amount> <token>",
	Short: "Sell a token for native currency once the quote clears a floor",
	Long: `Sell a token for native currency, retrying until the router quotes at least
--min native units and the sale confirms, or the attempts run out.

Examples:
  evm-swap sell-floor 1000 CAKE --min 2.5
  evm-swap sell-floor 1000 CAKE --min 2.5 --attempts 30 --backoff 5s --gas-gwei 5`,
	Args: cobra.ExactArgs(2),
	Run:  runSellFloor,
}

var buyListingCmd = &cobra.Command{
	Use:   "buy-listing <token> <native-amount>",
	Short: "Buy a token with native currency as soon as it has liquidity",
	Long: `Watch the router until any path from the wrapped native token to <token>
quotes, then buy with <native-amount> of native currency.

Examples:
  evm-swap buy-listing 0x1234...abcd 0.1 --watch 30m
  evm-swap buy-listing 0x1234...abcd 0.1 --attempts 3`,
	Args: cobra.ExactArgs(2),
	Run:  runBuyListing,
}

func init() {
	rootCmd.AddCommand(sellFloorCmd)
	rootCmd.AddCommand(buyListingCmd)

	sellFloorCmd.Flags().StringVar(&floorMin, "min", "", "Least native amount to accept (REQUIRED)")
	sellFloorCmd.Flags().IntVar(&floorAttempts, "attempts", 10, "Maximum attempts")
	sellFloorCmd.Flags().DurationVar(&floorBackoff, "backoff", swap.DefaultBackoff, "Wait between attempts")
	sellFloorCmd.Flags().Float64Var(&floorGasGwei, "gas-gwei", 0, "Fixed gas price in gwei (default: clamped network price)")
	sellFloorCmd.Flags().StringVar(&floorRouter, "router", "", "Router to sell on (default: first router of the chain)")
	_ = sellFloorCmd.MarkFlagRequired("min")

	buyListingCmd.Flags().DurationVar(&listingWatch, "watch", 10*time.Minute, "How long to wait for liquidity")
	buyListingCmd.Flags().IntVar(&listingAttempts, "attempts", 3, "Maximum purchase attempts once listed")
	buyListingCmd.Flags().DurationVar(&listingBackoff, "backoff", swap.DefaultBackoff, "Wait between polls and attempts")
	buyListingCmd.Flags().StringVar(&listingRouter, "router", "", "Router to buy on (default: first router of the chain)")
}

// interruptible returns a context cancelled on Ctrl+C or SIGTERM.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSellFloor(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx, cancel := interruptible()
	defer cancel()

	p, err := s.mainPipeline()
	exitOnError(err)
	router, err := s.router(floorRouter)
	exitOnError(err)
	tokenAddr, err := s.resolveToken(args[1])
	exitOnError(err)
	decimals, err := s.decimalsOf(ctx, p, tokenAddr)
	exitOnError(err)
	amountIn, err := token.ToBaseUnits(args[0], decimals)
	exitOnError(err)
	minNative, err := token.ToBaseUnits(floorMin, token.NativeDecimals)
	exitOnError(err)

	exec := swap.NewExecutor(p, router, nil, s.log)
	ensureAllowance(ctx, s, exec, tokenAddr, amountIn)

	req := swap.FloorRequest{
		TokenIn:     tokenAddr,
		TokenOut:    s.chain.WrappedNative,
		AmountIn:    amountIn,
		MinNative:   minNative,
		Slippage:    s.cfg.Slippage,
		MaxAttempts: floorAttempts,
		Backoff:     floorBackoff,
	}
	if floorGasGwei > 0 {
		req.GasPrice = gweiToWei(floorGasGwei)
	}

	if !s.json {
		fmt.Printf("\nSelling %s %s on %s for at least %s native (%d attempts)\n",
			args[0], color.YellowString(s.symbolOf(tokenAddr)), router.DisplayName, floorMin, floorAttempts)
	}
	out, err := exec.AttemptSwapWithFloor(ctx, req)
	exitOnError(err)
	displayOutcome(s, "Sale", out)
}

func runBuyListing(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx, cancel := interruptible()
	defer cancel()

	p, err := s.mainPipeline()
	exitOnError(err)
	router, err := s.router(listingRouter)
	exitOnError(err)
	tokenAddr, err := s.resolveToken(args[0])
	exitOnError(err)
	amountIn, err := token.ToBaseUnits(args[1], token.NativeDecimals)
	exitOnError(err)

	if !s.json {
		fmt.Printf("\nWatching %s on %s for up to %s. Press Ctrl+C to stop.\n",
			color.CyanString(tokenAddr.Hex()), router.DisplayName, listingWatch)
	}
	exec := swap.NewExecutor(p, router, nil, s.log)
	out, err := exec.BuyWhenListed(ctx, swap.ListingRequest{
		Token:       tokenAddr,
		AmountIn:    amountIn,
		WatchFor:    listingWatch,
		MaxAttempts: listingAttempts,
		Backoff:     listingBackoff,
	})
	exitOnError(err)
	displayOutcome(s, "Purchase", out)
}
