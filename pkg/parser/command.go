package parser

import (
	"fmt"
	"regexp"
	"strings"

	"evm-swap/pkg/types"
)

var swapPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)(?:\s+ON\s+([A-Z0-9]+))?$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 BNB to USDT"
//   - "1.5 WBNB to CAKE on pancake"
//   - "100 USDT to 0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	// Normalize the command
	command = strings.TrimSpace(strings.ToUpper(command))

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token> [on <router>]' (e.g., 'swap 1 BNB to USDT')")
	}

	return &types.SwapRequest{
		Amount:   matches[1],
		TokenIn:  NormalizeTokenSymbol(matches[2]),
		TokenOut: NormalizeTokenSymbol(matches[3]),
		Router:   strings.ToLower(matches[4]),
	}, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.TokenIn == "" {
		return fmt.Errorf("source token is required")
	}
	if req.TokenOut == "" {
		return fmt.Errorf("destination token is required")
	}
	if strings.EqualFold(req.TokenIn, req.TokenOut) {
		return fmt.Errorf("cannot swap %s for itself", req.TokenIn)
	}
	if req.Slippage < 0 || req.Slippage >= 1 {
		return fmt.Errorf("slippage must be between 0 and 1, got %v", req.Slippage)
	}
	return nil
}

// NormalizeTokenSymbol maps native currency names to their wrapped token,
// since routers only trade the wrapped form, and restores the canonical 0x
// prefix of raw addresses.
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	if strings.HasPrefix(symbol, "0X") && len(symbol) == 42 {
		return "0x" + strings.ToLower(symbol[2:])
	}

	aliases := map[string]string{
		"BNB":   "WBNB",
		"MATIC": "WMATIC",
		"OKT":   "WOKT",
		"DOGE":  "WDOGE",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
