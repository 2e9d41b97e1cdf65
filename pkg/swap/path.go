package swap

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	ErrNoRouteFound      = errors.New("no route found")
	ErrSlippageViolation = errors.New("slippage violation")
	ErrInvalidPath       = errors.New("invalid swap path")
	ErrInvalidSlippage   = errors.New("slippage must be in [0, 1)")
)

// SlippageError reports a caller minimum the live quote cannot meet.
type SlippageError struct {
	MinOut *big.Int
	Quoted *big.Int
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("%v: quote %s below required minimum %s", ErrSlippageViolation, e.Quoted, e.MinOut)
}

func (e *SlippageError) Is(target error) bool { return target == ErrSlippageViolation }

// Path is the ordered list of tokens a swap goes through: two entries for a
// direct swap, three for one intermediate hop.
type Path []common.Address

// Validate checks the length and that no hop swaps a token for itself.
func (p Path) Validate() error {
	if len(p) < 2 || len(p) > 3 {
		return fmt.Errorf("%w: length %d", ErrInvalidPath, len(p))
	}
	for i := 1; i < len(p); i++ {
		if p[i] == p[i-1] {
			return fmt.Errorf("%w: %s repeated", ErrInvalidPath, p[i].Hex())
		}
	}
	return nil
}

func (p Path) In() common.Address  { return p[0] }
func (p Path) Out() common.Address { return p[len(p)-1] }

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, a := range p {
		parts[i] = a.Hex()
	}
	return strings.Join(parts, " -> ")
}

// Kind selects the router entry point.
type Kind int

const (
	TokenToToken Kind = iota
	NativeIn
	NativeOut
)

func (k Kind) String() string {
	switch k {
	case NativeIn:
		return "native_in"
	case NativeOut:
		return "native_out"
	default:
		return "token_to_token"
	}
}

// Method is the router function implementing the kind.
func (k Kind) Method() string {
	switch k {
	case NativeIn:
		return "swapExactETHForTokens"
	case NativeOut:
		return "swapExactTokensForETH"
	default:
		return "swapExactTokensForTokens"
	}
}

// KindFor picks the entry point from the roles of the two tokens. An input
// equal to the wrapped native token wins over an output equal to it.
func KindFor(tokenIn, tokenOut, wrappedNative common.Address) Kind {
	switch {
	case tokenIn == wrappedNative:
		return NativeIn
	case tokenOut == wrappedNative:
		return NativeOut
	default:
		return TokenToToken
	}
}

// MinAcceptableOutput is quoted * (1 - slippage), floored to base units.
func MinAcceptableOutput(quoted *big.Int, slippage float64) *big.Int {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(slippage))
	return decimal.NewFromBigInt(quoted, 0).Mul(factor).Floor().BigInt()
}
