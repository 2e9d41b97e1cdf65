package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"evm-swap/pkg/batch"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/signer"
	"evm-swap/pkg/token"
)

var (
	collectTo    string
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run operations across many accounts",
	Long: `Run one operation over every account listed in the accounts file (one hex
private key per line, # starts a comment). A failure in one account is
reported and never stops the others.`,
}

var batchDistributeCmd = &cobra.Command{
	Use:   "distribute <amount-per-account>",
	Short: "Fund every account with native currency from the main account",
	Long: `Send the same native amount from the main account to every account, one
confirmed transfer at a time. Nothing is sent when the main balance cannot
cover the total.

Examples:
  evm-swap batch distribute 0.01`,
	Args: cobra.ExactArgs(1),
	Run:  runBatchDistribute,
}

var batchCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Sweep every account's native balance back to one address",
	Long: `Send each account's whole native balance, net of the transfer fee, to --to
or to the main account.

Examples:
  evm-swap batch collect
  evm-swap batch collect --to 0x1234...abcd --workers 8`,
	Run: runBatchCollect,
}

var batchBalancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show the native balance of every account",
	Run:   runBatchBalances,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchDistributeCmd)
	batchCmd.AddCommand(batchCollectCmd)
	batchCmd.AddCommand(batchBalancesCmd)

	batchCmd.PersistentFlags().IntVar(&batchWorkers, "workers", 0, "Accounts processed concurrently (default from config)")
	batchCollectCmd.Flags().StringVar(&collectTo, "to", "", "Destination address (default: main account)")
}

// openBatch loads the account keys and builds the orchestrator. needMain
// requires a configured main key.
func openBatch(s *session, needMain bool) (*batch.Orchestrator, *pipeline.Pipeline) {
	exitOnError(s.cfg.RequireAccountsFile())
	keys, err := signer.LoadKeysFile(s.cfg.AccountsFile)
	exitOnError(err)
	if len(keys) == 0 {
		exitOnError(fmt.Errorf("no keys in %s", s.cfg.AccountsFile))
	}

	var main *pipeline.Pipeline
	if needMain || s.cfg.PrivateKey != "" {
		main, err = s.mainPipeline()
		exitOnError(err)
	}

	workers := s.cfg.Workers
	if batchWorkers > 0 {
		workers = batchWorkers
	}
	orch := batch.New(s.client, signer.KeySigner{}, main, keys, batch.Config{
		Pipeline:       s.pipelineConfig(),
		Workers:        workers,
		ConfirmTimeout: s.cfg.ConfirmTimeout,
		Logger:         s.log,
	})
	return orch, main
}

func runBatchDistribute(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx, cancel := interruptible()
	defer cancel()

	amount, err := token.ToBaseUnits(args[0], token.NativeDecimals)
	exitOnError(err)
	orch, _ := openBatch(s, true)

	report, err := orch.DistributeGas(ctx, amount)
	if report == nil {
		exitOnError(err)
	}
	displayReport(s, report)
	exitOnError(err)
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func runBatchCollect(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx, cancel := interruptible()
	defer cancel()

	orch, main := openBatch(s, collectTo == "")
	var to common.Address
	if collectTo != "" {
		if !common.IsHexAddress(collectTo) {
			exitOnError(fmt.Errorf("invalid address: %s", collectTo))
		}
		to = common.HexToAddress(collectTo)
	} else {
		to = main.Address()
	}

	report, err := orch.CollectGas(ctx, to)
	displayReport(s, report)
	exitOnError(err)
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func runBatchBalances(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()
	ctx, cancel := interruptible()
	defer cancel()

	orch, _ := openBatch(s, false)
	sp := s.spin("Fetching balances...")
	balances, report, err := orch.Balances(ctx)
	sp.Stop()
	exitOnError(err)

	if s.json {
		type row struct {
			Address string `json:"address"`
			Balance string `json:"balance,omitempty"`
			Error   string `json:"error,omitempty"`
		}
		rows := make([]row, len(balances))
		for i, b := range balances {
			rows[i].Address = b.Address.Hex()
			if b.Wei != nil {
				rows[i].Balance = token.Format(b.Wei, token.NativeDecimals)
			}
			if e := report.Results[i].Err; e != nil {
				rows[i].Error = e.Error()
			}
		}
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n#\tADDRESS\tBALANCE")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for i, b := range balances {
		bal := color.RedString("error")
		if b.Wei != nil {
			bal = token.Format(b.Wei, token.NativeDecimals)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, b.Address.Hex(), bal)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d accounts, %d failed\n\n", report.Attempted, report.Failed)
}

func displayReport(s *session, report *batch.Report) {
	if s.json {
		type row struct {
			Index   int    `json:"index"`
			Address string `json:"address"`
			Hash    string `json:"hash,omitempty"`
			Error   string `json:"error,omitempty"`
		}
		rows := make([]row, len(report.Results))
		for i, r := range report.Results {
			rows[i] = row{Index: r.Index, Address: r.Address.Hex()}
			if r.Hash != (common.Hash{}) {
				rows[i].Hash = r.Hash.Hex()
			}
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
			}
		}
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"run_id":    report.RunID,
			"operation": report.Operation,
			"attempted": report.Attempted,
			"failed":    report.Failed,
			"results":   rows,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       BATCH %s", strings.ToUpper(report.Operation))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Run: %s\n", color.HiBlackString(report.RunID))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n#\tADDRESS\tRESULT\tTX HASH")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range report.Results {
		result := color.GreenString("OK")
		if r.Err != nil {
			result = color.RedString("FAILED")
		}
		hash := "-"
		if r.Hash != (common.Hash{}) {
			hash = r.Hash.Hex()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Index, r.Address.Hex(), result, hash)
	}
	w.Flush()

	for _, err := range report.Errors() {
		color.Red("  %v", err)
	}
	fmt.Printf("\nTotal: %d attempted, %d succeeded, %d failed\n\n", report.Attempted, report.Succeeded(), report.Failed)
}
