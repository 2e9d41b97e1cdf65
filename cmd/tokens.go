package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"evm-swap/config"
	"evm-swap/pkg/registry"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List known tokens",
	Long: `List the tokens in the registry.

Without --chain every chain is listed. You can filter by symbol.

Examples:
  evm-swap list-tokens
  evm-swap list-tokens --chain polygon
  evm-swap list-tokens --symbol USD`,
	Run: runListTokens,
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List known chains and their routers",
	Run:   runChains,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(chainsCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

// loadRegistry reads configuration only as far as the registry needs it, so
// listing works without a node or a key.
func loadRegistry() (*registry.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.RegistryFile != "" {
		return registry.LoadFile(cfg.RegistryFile)
	}
	return registry.Default(), nil
}

type tokenRow struct {
	Chain    string `json:"chain"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	filterChain, _ := cmd.Flags().GetString("chain")

	reg, err := loadRegistry()
	exitOnError(err)

	chains := reg.Chains()
	if filterChain != "" {
		c, err := reg.Chain(filterChain)
		exitOnError(err)
		chains = []registry.ChainProfile{c}
	}

	var rows []tokenRow
	for _, c := range chains {
		for _, t := range reg.Tokens(c.Name) {
			if filterSymbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(filterSymbol)) {
				continue
			}
			rows = append(rows, tokenRow{Chain: c.Name, Symbol: t.Symbol, Address: t.Address.Hex(), Decimals: t.Decimals})
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayTokens(rows)
}

func displayTokens(rows []tokenRow) {
	if len(rows) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              KNOWN TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	chains := 0
	current := ""
	for _, row := range rows {
		if row.Chain != current {
			current = row.Chain
			chains++
			color.Cyan("\n%s", strings.ToUpper(row.Chain))
			fmt.Println(strings.Repeat("-", 90))
		}
		fmt.Printf("  %-10s  %2d decimals  %s\n",
			color.YellowString(row.Symbol),
			row.Decimals,
			color.HiBlackString(row.Address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d chains\n\n", len(rows), chains)
}

func runChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	reg, err := loadRegistry()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		type routerRow struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		}
		type chainRow struct {
			Name     string      `json:"name"`
			ChainID  int64       `json:"chain_id"`
			RPCURL   string      `json:"rpc_url"`
			Wrapped  string      `json:"wrapped_native"`
			Explorer string      `json:"explorer"`
			Routers  []routerRow `json:"routers"`
		}
		var out []chainRow
		for _, c := range reg.Chains() {
			row := chainRow{Name: c.Name, ChainID: c.ChainID, RPCURL: c.RPCURL, Wrapped: c.WrappedNative.Hex(), Explorer: c.Explorer}
			for _, r := range reg.Routers(c.Name) {
				row.Routers = append(row.Routers, routerRow{Name: r.Name, Address: r.Address.Hex()})
			}
			out = append(out, row)
		}
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          KNOWN CHAINS")
	fmt.Println(strings.Repeat("=", 70))
	for _, c := range reg.Chains() {
		color.Cyan("\n%s (%s, chain id %d)", strings.ToUpper(c.Name), c.DisplayName, c.ChainID)
		fmt.Printf("  RPC:       %s\n", c.RPCURL)
		fmt.Printf("  Wrapped:   %s\n", color.HiBlackString(c.WrappedNative.Hex()))
		for _, r := range reg.Routers(c.Name) {
			fmt.Printf("  Router:    %-10s %s\n", color.YellowString(r.Name), color.HiBlackString(r.Address.Hex()))
		}
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
