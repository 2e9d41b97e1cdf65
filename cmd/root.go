package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evm-swap",
	Short: "A CLI for transfers, router swaps and batch accounts on EVM chains",
	Long: `evm-swap submits value transfers, token swaps through Uniswap-V2 style routers
and batched multi-account operations to EVM chains. Gas prices are clamped to
configured bounds, nonces are tracked per account and swaps never accept less
than the configured slippage floor.

Examples:
  evm-swap swap 1 BNB to USDT
  evm-swap quote 100 USDT to CAKE --chain bsc
  evm-swap send 0x1234...abcd 0.5
  evm-swap batch distribute 0.01
  evm-swap status <tx-hash>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("chain", "", "Chain to operate on (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
