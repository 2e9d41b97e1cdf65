package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"evm-swap/pkg/ledger"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/registry"
	"evm-swap/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a transaction",
	Long: `Check whether a transaction is pending, confirmed or reverted.

Examples:
  evm-swap status 0x1234...abcd
  evm-swap status 0x1234...abcd --watch
  evm-swap status 0x1234...abcd --watch --interval 10 --chain polygon`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the transaction is mined")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	raw := args[0]
	if len(strings.TrimPrefix(raw, "0x")) != 64 {
		printError(fmt.Errorf("invalid transaction hash: %s", raw))
		os.Exit(1)
	}
	hash := common.HexToHash(raw)

	s, err := openSession(cmd)
	exitOnError(err)
	defer s.Close()

	if watchStatus {
		watchTxStatus(s, hash)
	} else {
		checkTxStatus(s, hash)
	}
}

// txLookup is the part of the node client status needs.
type txLookup interface {
	Transaction(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ledger.Receipt, error)
}

func fetchTxStatus(ctx context.Context, client txLookup, chain registry.ChainProfile, hash common.Hash) (*types.TxStatus, error) {
	status := &types.TxStatus{Hash: hash.Hex(), Explorer: chain.TxURL(hash.Hex())}

	tx, pending, err := client.Transaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		status.Status = "UNKNOWN"
		return status, nil
	}
	status.Nonce = tx.Nonce()
	if pending {
		status.Status = "PENDING"
		return status, nil
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		status.Status = "PENDING"
		return status, nil
	}
	if receipt.BlockNumber != nil {
		status.Block = receipt.BlockNumber.Uint64()
	}
	status.GasUsed = receipt.GasUsed
	if receipt.Succeeded() {
		status.Status = strings.ToUpper(string(pipeline.StatusConfirmed))
	} else {
		status.Status = strings.ToUpper(string(pipeline.StatusReverted))
	}
	return status, nil
}

func checkTxStatus(s *session, hash common.Hash) {
	sp := s.spin("Checking transaction status...")
	status, err := fetchTxStatus(context.Background(), s.client, s.chain, hash)
	sp.Stop()
	exitOnError(err)

	if s.json {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status)
	}
}

func watchTxStatus(s *session, hash common.Hash) {
	if s.json {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first
	if checkAndDisplayStatus(s, hash) {
		return
	}

	// Then check periodically
	for range ticker.C {
		if checkAndDisplayStatus(s, hash) {
			return
		}
	}
}

// checkAndDisplayStatus reports whether the transaction reached a final state.
func checkAndDisplayStatus(s *session, hash common.Hash) bool {
	status, err := fetchTxStatus(context.Background(), s.client, s.chain, hash)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayStatus(status)
	return status.Status != "PENDING" && status.Status != "UNKNOWN"
}

func displayStatus(status *types.TxStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:   %s\n", color.CyanString(status.Hash))
	fmt.Printf("  Status:    %s\n", getColoredStatus(status.Status))
	if status.Nonce > 0 {
		fmt.Printf("  Nonce:     %d\n", status.Nonce)
	}
	if status.Block > 0 {
		fmt.Printf("  Block:     %d\n", status.Block)
		fmt.Printf("  Gas Used:  %d\n", status.GasUsed)
	}
	if status.Explorer != "" {
		fmt.Printf("  Explorer:  %s\n", color.HiBlackString(status.Explorer))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "CONFIRMED":
		return color.GreenString(status)
	case "PENDING":
		return color.YellowString(status)
	case "REVERTED":
		return color.RedString(status)
	case "UNKNOWN":
		return color.MagentaString(status)
	default:
		return status
	}
}
