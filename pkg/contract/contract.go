// Package contract encodes calls and decodes results for the handful of
// contract interfaces the tool talks to.
package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnexpectedOutput = errors.New("unexpected call output")

// Codec wraps a parsed ABI.
type Codec struct {
	name string
	abi  abi.ABI
}

// MustParse panics on an invalid ABI; only used for the compiled-in ABIs.
func MustParse(name, abiJSON string) *Codec {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
	}
	return &Codec{name: name, abi: parsed}
}

// Encode packs a call to method with already-typed arguments.
func (c *Codec) Encode(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", c.name, method, err)
	}
	return data, nil
}

// Decode unpacks the return values of method.
func (c *Codec) Decode(method string, data []byte) ([]interface{}, error) {
	out, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s.%s: %w", c.name, method, err)
	}
	return out, nil
}

// EncodeResult packs return values, the inverse of Decode. Fakes use it to
// answer calls.
func (c *Codec) EncodeResult(method string, values ...interface{}) ([]byte, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s has no method %s", c.name, method)
	}
	return m.Outputs.Pack(values...)
}

// Selector returns the 4-byte method id.
func (c *Codec) Selector(method string) []byte {
	return c.abi.Methods[method].ID
}

// Method reports which method a calldata payload selects, or "" if none.
func (c *Codec) Method(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	m, err := c.abi.MethodById(data[:4])
	if err != nil {
		return ""
	}
	return m.Name
}

// Inputs decodes the arguments of a calldata payload.
func (c *Codec) Inputs(data []byte) (string, []interface{}, error) {
	name := c.Method(data)
	if name == "" {
		return "", nil, fmt.Errorf("%s: unknown selector", c.name)
	}
	args, err := c.abi.Methods[name].Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("failed to unpack %s.%s input: %w", c.name, name, err)
	}
	return name, args, nil
}

// BigInt extracts out[i] as a *big.Int.
func BigInt(out []interface{}, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, ErrUnexpectedOutput
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not uint256", ErrUnexpectedOutput, out[i])
	}
	return v, nil
}

// BigInts extracts out[i] as a []*big.Int.
func BigInts(out []interface{}, i int) ([]*big.Int, error) {
	if i >= len(out) {
		return nil, ErrUnexpectedOutput
	}
	v, ok := out[i].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not uint256[]", ErrUnexpectedOutput, out[i])
	}
	return v, nil
}

// Address extracts out[i] as an address.
func Address(out []interface{}, i int) (common.Address, error) {
	if i >= len(out) {
		return common.Address{}, ErrUnexpectedOutput
	}
	v, ok := out[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %T is not address", ErrUnexpectedOutput, out[i])
	}
	return v, nil
}

// String extracts out[i] as a string.
func String(out []interface{}, i int) (string, error) {
	if i >= len(out) {
		return "", ErrUnexpectedOutput
	}
	v, ok := out[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %T is not string", ErrUnexpectedOutput, out[i])
	}
	return v, nil
}

// Uint8 extracts out[i] as a uint8.
func Uint8(out []interface{}, i int) (uint8, error) {
	if i >= len(out) {
		return 0, ErrUnexpectedOutput
	}
	v, ok := out[i].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not uint8", ErrUnexpectedOutput, out[i])
	}
	return v, nil
}
