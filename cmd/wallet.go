package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/token"
)

var (
	balanceOf  string
	sendAll    bool
	sendToken  string
	approveFor string
	waitSend   bool
)

var balanceCmd = &cobra.Command{
	Use:   "balance [token...]",
	Short: "Show native and token balances of an account",
	Long: `Show the native balance of the configured account, or of --address, plus the
balance of every token given as an argument (symbol or 0x address).

Examples:
  evm-swap balance
  evm-swap balance USDT CAKE --chain bsc
  evm-swap balance --address 0x1234...abcd`,
	Run: runBalance,
}

var sendCmd = &cobra.Command{
	Use:   "send <to> [amount]",
	Short: "Send native currency or a token",
	Long: `Send native currency, or a token with --token, from the configured account.
With --all the whole native balance minus the transfer fee is sent.

Examples:
  evm-swap send 0x1234...abcd 0.1
  evm-swap send 0x1234...abcd 25 --token USDT
  evm-swap send 0x1234...abcd --all`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runSend,
}

var approveCmd = &cobra.Command{
	Use:   "approve <token>",
	Short: "Grant a router an unlimited allowance on a token",
	Args:  cobra.ExactArgs(1),
	Run:   runApprove,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(approveCmd)

	balanceCmd.Flags().StringVar(&balanceOf, "address", "", "Account to inspect (default: configured key)")
	sendCmd.Flags().BoolVar(&sendAll, "all", false, "Send the whole native balance net of fees")
	sendCmd.Flags().StringVar(&sendToken, "token", "", "Token to send instead of native currency")
	sendCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	sendCmd.Flags().BoolVar(&waitSend, "wait", true, "Wait for the transfer to confirm")
	approveCmd.Flags().StringVar(&approveFor, "router", "", "Router to approve (default: first router of the chain)")
}

func runBalance(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx := context.Background()

	p, err := s.readOnlyPipeline()
	exitOnError(err)

	owner := p.Address()
	if balanceOf != "" {
		if !common.IsHexAddress(balanceOf) {
			exitOnError(fmt.Errorf("invalid address: %s", balanceOf))
		}
		owner = common.HexToAddress(balanceOf)
	} else if s.cfg.PrivateKey == "" {
		exitOnError(fmt.Errorf("no account: pass --address or configure private_key"))
	}

	sp := s.spin("Fetching balances...")
	native, err := s.client.BalanceAt(ctx, owner)
	if err != nil {
		sp.Stop()
		exitOnError(err)
	}
	balances := map[string]string{"native": token.Format(native, token.NativeDecimals)}
	order := []string{"native"}
	for _, arg := range args {
		addr, err := s.resolveToken(arg)
		if err != nil {
			sp.Stop()
			exitOnError(err)
		}
		decimals, err := s.decimalsOf(ctx, p, addr)
		if err != nil {
			sp.Stop()
			exitOnError(err)
		}
		bal, err := token.New(p, addr).BalanceOf(ctx, owner)
		if err != nil {
			sp.Stop()
			exitOnError(err)
		}
		sym := s.symbolOf(addr)
		balances[sym] = token.Format(bal, decimals)
		order = append(order, sym)
	}
	sp.Stop()

	if s.json {
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"chain":    s.chain.Name,
			"address":  owner.Hex(),
			"balances": balances,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                       BALANCES")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Account:  %s\n", color.CyanString(owner.Hex()))
	fmt.Printf("  Chain:    %s\n\n", s.chain.DisplayName)
	for _, sym := range order {
		fmt.Printf("  %-10s %s\n", color.YellowString(sym), balances[sym])
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func runSend(cmd *cobra.Command, args []string) {
	if !common.IsHexAddress(args[0]) {
		exitOnError(fmt.Errorf("invalid recipient address: %s", args[0]))
	}
	to := common.HexToAddress(args[0])
	if !sendAll && len(args) < 2 {
		exitOnError(fmt.Errorf("amount is required unless --all is given"))
	}
	if sendAll && sendToken != "" {
		exitOnError(fmt.Errorf("--all only applies to native currency"))
	}

	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx := context.Background()

	p, err := s.mainPipeline()
	exitOnError(err)

	what := "all native balance"
	if !sendAll {
		what = args[1] + " " + nativeOr(sendToken)
	}
	if !noConfirm && !s.json {
		fmt.Printf("\n  From:  %s\n  To:    %s\n  Send:  %s\n", p.Address().Hex(), to.Hex(), what)
		if !confirmPrompt("Proceed with transfer?") {
			fmt.Println("\nTransfer cancelled.")
			os.Exit(0)
		}
	}

	var tx *pipeline.PendingTransaction
	switch {
	case sendAll:
		tx, err = p.SendAll(ctx, to)
	case sendToken != "":
		var addr common.Address
		addr, err = s.resolveToken(sendToken)
		exitOnError(err)
		var decimals uint8
		decimals, err = s.decimalsOf(ctx, p, addr)
		exitOnError(err)
		amount, perr := token.ToBaseUnits(args[1], decimals)
		exitOnError(perr)
		tx, err = token.New(p, addr).Transfer(ctx, to, amount)
	default:
		amount, perr := token.ToBaseUnits(args[1], token.NativeDecimals)
		exitOnError(perr)
		tx, err = p.SendNativeTransfer(ctx, to, amount)
	}
	exitOnError(err)

	reportTransaction(s, p, tx, waitSend)
	if waitSend && !s.json {
		printSuccess(color.GreenString("✓ Transfer confirmed"))
	}
}

func runApprove(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx := context.Background()

	p, err := s.mainPipeline()
	exitOnError(err)
	router, err := s.router(approveFor)
	exitOnError(err)
	addr, err := s.resolveToken(args[0])
	exitOnError(err)

	tx, err := token.New(p, addr).Approve(ctx, router.Address)
	exitOnError(err)
	reportTransaction(s, p, tx, true)
	if !s.json {
		printSuccess(color.GreenString("✓ %s approved for %s", s.symbolOf(addr), router.DisplayName))
	}
}

func nativeOr(sym string) string {
	if sym == "" {
		return "native"
	}
	return sym
}

// reportTransaction prints a submitted transaction and, when wait is set,
// blocks until it confirms or the configured timeout passes.
func reportTransaction(s *session, p *pipeline.Pipeline, tx *pipeline.PendingTransaction, wait bool) {
	status := tx.Status
	if wait {
		sp := s.spin("Waiting for confirmation...")
		var err error
		status, err = p.Confirm(context.Background(), tx, s.cfg.ConfirmTimeout)
		sp.Stop()
		exitOnError(err)
	}

	if s.json {
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"hash":      tx.Hash.Hex(),
			"nonce":     tx.Nonce,
			"gas_price": token.Gwei(tx.GasPrice),
			"gas_limit": tx.GasLimit,
			"status":    string(status),
			"explorer":  s.chain.TxURL(tx.Hash.Hex()),
		}, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		fmt.Printf("\n  Tx Hash:   %s\n", color.CyanString(tx.Hash.Hex()))
		fmt.Printf("  Nonce:     %d\n", tx.Nonce)
		fmt.Printf("  Gas:       %d @ %s gwei\n", tx.GasLimit, token.Gwei(tx.GasPrice))
		fmt.Printf("  Status:    %s\n", coloredStatus(status))
		fmt.Printf("  Explorer:  %s\n", s.chain.TxURL(tx.Hash.Hex()))
	}

	if wait && status != pipeline.StatusConfirmed {
		os.Exit(1)
	}
}

func coloredStatus(status pipeline.Status) string {
	s := strings.ToUpper(string(status))
	switch status {
	case pipeline.StatusConfirmed:
		return color.GreenString(s)
	case pipeline.StatusSubmitted, pipeline.StatusTimedOut:
		return color.YellowString(s)
	case pipeline.StatusReverted:
		return color.RedString(s)
	default:
		return s
	}
}
