package types

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount   string
	TokenIn  string
	TokenOut string
	Router   string
	Chain    string
	MinOut   string
	Slippage float64
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	Chain     string   `json:"chain"`
	Router    string   `json:"router"`
	Kind      string   `json:"kind"`
	AmountIn  string   `json:"amount_in"`
	TokenIn   string   `json:"token_in"`
	AmountOut string   `json:"amount_out"`
	TokenOut  string   `json:"token_out"`
	MinOut    string   `json:"min_out,omitempty"`
	Path      []string `json:"path"`
}

// TxStatus represents the current status of a submitted transaction
type TxStatus struct {
	Hash     string `json:"hash"`
	Status   string `json:"status"`
	Nonce    uint64 `json:"nonce,omitempty"`
	Block    uint64 `json:"block,omitempty"`
	GasUsed  uint64 `json:"gas_used,omitempty"`
	Explorer string `json:"explorer,omitempty"`
}
