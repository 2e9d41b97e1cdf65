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
	"evm-swap/pkg/swap"
	"evm-swap/pkg/token"
)

var (
	honeypotRouter string
	syrupOf        string
)

var honeypotCmd = &cobra.Command{
	Use:   "honeypot <token>",
	Short: "Check that a token can be sold back after buying it",
	Long: `Simulate buying <token> with 0.01 native currency and selling it straight back
through the chain's checker contract. Nothing is broadcast, but the configured
account must hold at least 0.01 native currency.

Examples:
  evm-swap honeypot 0x1234...abcd
  evm-swap honeypot CAKE --router pancake`,
	Args: cobra.ExactArgs(1),
	Run:  runHoneypot,
}

var syrupCmd = &cobra.Command{
	Use:   "syrup <pool-address>",
	Short: "Show an account's stake and pending reward in a syrup pool",
	Long: `Read a single-token staking pool: the reward token, the amount staked and the
reward that could be harvested now.

Examples:
  evm-swap syrup 0x1234...abcd
  evm-swap syrup 0x1234...abcd --address 0x5678...ef01`,
	Args: cobra.ExactArgs(1),
	Run:  runSyrup,
}

func init() {
	rootCmd.AddCommand(honeypotCmd)
	rootCmd.AddCommand(syrupCmd)

	honeypotCmd.Flags().StringVar(&honeypotRouter, "router", "", "Router to buy and sell on (default: first router of the chain)")
	syrupCmd.Flags().StringVar(&syrupOf, "address", "", "Account to inspect (default: configured key)")
}

func runHoneypot(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx := context.Background()

	p, err := s.mainPipeline()
	exitOnError(err)
	router, err := s.router(honeypotRouter)
	exitOnError(err)
	tokenAddr, err := s.resolveToken(args[0])
	exitOnError(err)

	sp := s.spin("Simulating buy and sell...")
	report, err := swap.NewExecutor(p, router, nil, s.log).CheckHoneypot(ctx, tokenAddr)
	sp.Stop()
	exitOnError(err)

	var path []string
	for _, hop := range report.Path {
		path = append(path, s.symbolOf(hop))
	}
	if s.json {
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"token":    tokenAddr.Hex(),
			"router":   router.Name,
			"pair":     report.Pair.Hex(),
			"path":     path,
			"sellable": report.Sellable,
			"gas":      report.Gas,
			"reason":   report.Reason,
		}, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		fmt.Println("\n" + strings.Repeat("=", 60))
		color.Green("                     HONEYPOT CHECK")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("\n  Token:   %s\n", color.CyanString(tokenAddr.Hex()))
		fmt.Printf("  Router:  %s\n", router.DisplayName)
		fmt.Printf("  Path:    %s\n", strings.Join(path, " → "))
		fmt.Printf("  Pair:    %s\n", report.Pair.Hex())
		if report.Sellable {
			fmt.Printf("  Result:  %s (gas %d)\n", color.GreenString("SELLABLE"), report.Gas)
		} else {
			fmt.Printf("  Result:  %s\n", color.RedString("CANNOT SELL"))
			fmt.Printf("  Reason:  %s\n", report.Reason)
		}
		fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	}

	if !report.Sellable {
		os.Exit(1)
	}
}

func runSyrup(cmd *cobra.Command, args []string) {
	if !common.IsHexAddress(args[0]) {
		exitOnError(fmt.Errorf("invalid pool address: %s", args[0]))
	}
	poolAddr := common.HexToAddress(args[0])

	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx := context.Background()

	p, err := s.readOnlyPipeline()
	exitOnError(err)
	owner := p.Address()
	if syrupOf != "" {
		if !common.IsHexAddress(syrupOf) {
			exitOnError(fmt.Errorf("invalid address: %s", syrupOf))
		}
		owner = common.HexToAddress(syrupOf)
	} else if s.cfg.PrivateKey == "" {
		exitOnError(fmt.Errorf("no account: pass --address or configure private_key"))
	}

	sp := s.spin("Reading pool...")
	info, err := readSyrup(ctx, s, p, poolAddr, owner)
	sp.Stop()
	exitOnError(err)

	if s.json {
		jsonData, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      SYRUP POOL")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Pool:     %s\n", color.CyanString(info.Pool))
	fmt.Printf("  Account:  %s\n", info.Account)
	fmt.Printf("  Staked:   %s %s\n", info.Staked, color.YellowString(info.StakedToken))
	fmt.Printf("  Pending:  %s %s\n", info.PendingReward, color.YellowString(info.RewardToken))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

type syrupInfo struct {
	Pool          string `json:"pool"`
	Account       string `json:"account"`
	StakedToken   string `json:"staked_token"`
	Staked        string `json:"staked"`
	RewardToken   string `json:"reward_token"`
	PendingReward string `json:"pending_reward"`
}

func readSyrup(ctx context.Context, s *session, p *pipeline.Pipeline, poolAddr, owner common.Address) (*syrupInfo, error) {
	pool := swap.NewSyrupPool(p, poolAddr)
	stakedToken, err := pool.StakedToken(ctx)
	if err != nil {
		return nil, err
	}
	rewardToken, err := pool.RewardToken(ctx)
	if err != nil {
		return nil, err
	}
	stakedDecimals, err := s.decimalsOf(ctx, p, stakedToken)
	if err != nil {
		return nil, err
	}
	rewardDecimals, err := s.decimalsOf(ctx, p, rewardToken)
	if err != nil {
		return nil, err
	}
	stake, err := pool.UserInfo(ctx, owner)
	if err != nil {
		return nil, err
	}
	pending, err := pool.PendingReward(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &syrupInfo{
		Pool:          poolAddr.Hex(),
		Account:       owner.Hex(),
		StakedToken:   s.symbolOf(stakedToken),
		Staked:        token.Format(stake.Amount, stakedDecimals),
		RewardToken:   s.symbolOf(rewardToken),
		PendingReward: token.Format(pending, rewardDecimals),
	}, nil
}
