// Package registry holds the static chain, router and token tables the rest of
// the tool resolves names against. Tables are loaded once and never mutated.
package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownChain  = errors.New("unknown chain")
	ErrUnknownRouter = errors.New("unknown router")
	ErrUnknownToken  = errors.New("unknown token")
)

//go:embed registry.yaml
var embedded []byte

// ChainProfile describes one EVM network.
type ChainProfile struct {
	Name          string
	DisplayName   string
	RPCURL        string
	ChainID       int64
	WrappedNative common.Address
	Explorer      string
	// HoneypotChecker is a contract that buys and sells a token in one
	// simulated call; zero when the chain has none.
	HoneypotChecker common.Address
}

// WithRPC returns a copy of the profile pointing at a different endpoint.
func (c ChainProfile) WithRPC(url string) ChainProfile {
	if url != "" {
		c.RPCURL = url
	}
	return c
}

// TxURL returns the explorer link for a transaction hash, or "" if the chain
// has no explorer configured.
func (c ChainProfile) TxURL(hash string) string {
	if c.Explorer == "" {
		return ""
	}
	return strings.TrimSuffix(c.Explorer, "/") + "/tx/" + hash
}

// RouterProfile is a deployed UniswapV2-style router and the tokens commonly
// used as an intermediate hop through it.
type RouterProfile struct {
	Name        string
	DisplayName string
	Address     common.Address
	Chain       ChainProfile
	Pairing     []common.Address
}

// TokenProfile is only used for symbol <-> address lookups.
type TokenProfile struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	Chain    ChainProfile
}

// Registry is an immutable, name-indexed view of the tables.
type Registry struct {
	chains  map[string]ChainProfile
	order   []string
	routers map[string][]RouterProfile
	tokens  map[string][]TokenProfile
}

type fileChain struct {
	Name          string `yaml:"name"`
	DisplayName   string `yaml:"display_name"`
	RPCURL        string `yaml:"rpc_url"`
	ChainID       int64  `yaml:"chain_id"`
	WrappedNative   string `yaml:"wrapped_native"`
	Explorer        string `yaml:"explorer"`
	HoneypotChecker string `yaml:"honeypot_checker"`
}

type fileRouter struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Chain       string   `yaml:"chain"`
	Address     string   `yaml:"address"`
	Pairing     []string `yaml:"pairing"`
}

type fileToken struct {
	Symbol   string `yaml:"symbol"`
	Chain    string `yaml:"chain"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

type file struct {
	Chains  []fileChain  `yaml:"chains"`
	Routers []fileRouter `yaml:"routers"`
	Tokens  []fileToken  `yaml:"tokens"`
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry compiled into the binary.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(bytes.NewReader(embedded))
		if err != nil {
			panic(fmt.Sprintf("embedded registry is invalid: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// LoadFile reads a registry from a YAML file on disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a YAML registry.
func Load(r io.Reader) (*Registry, error) {
	var raw file
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	reg := &Registry{
		chains:  make(map[string]ChainProfile),
		routers: make(map[string][]RouterProfile),
		tokens:  make(map[string][]TokenProfile),
	}

	ids := make(map[int64]string)
	for _, c := range raw.Chains {
		key := normalize(c.Name)
		if key == "" {
			return nil, fmt.Errorf("chain with empty name")
		}
		if _, dup := reg.chains[key]; dup {
			return nil, fmt.Errorf("duplicate chain %q", c.Name)
		}
		if other, dup := ids[c.ChainID]; dup {
			return nil, fmt.Errorf("chain %q reuses chain id %d of %q", c.Name, c.ChainID, other)
		}
		if !common.IsHexAddress(c.WrappedNative) {
			return nil, fmt.Errorf("chain %q: invalid wrapped native address %q", c.Name, c.WrappedNative)
		}
		if c.HoneypotChecker != "" && !common.IsHexAddress(c.HoneypotChecker) {
			return nil, fmt.Errorf("chain %q: invalid honeypot checker address %q", c.Name, c.HoneypotChecker)
		}
		ids[c.ChainID] = c.Name
		reg.chains[key] = ChainProfile{
			Name:            key,
			DisplayName:     c.DisplayName,
			RPCURL:          c.RPCURL,
			ChainID:         c.ChainID,
			WrappedNative:   common.HexToAddress(c.WrappedNative),
			Explorer:        c.Explorer,
			HoneypotChecker: common.HexToAddress(c.HoneypotChecker),
		}
		reg.order = append(reg.order, key)
	}

	for _, t := range raw.Tokens {
		chain, ok := reg.chains[normalize(t.Chain)]
		if !ok {
			return nil, fmt.Errorf("token %q: %w %q", t.Symbol, ErrUnknownChain, t.Chain)
		}
		if !common.IsHexAddress(t.Address) {
			return nil, fmt.Errorf("token %q on %s: invalid address %q", t.Symbol, chain.Name, t.Address)
		}
		reg.tokens[chain.Name] = append(reg.tokens[chain.Name], TokenProfile{
			Symbol:   t.Symbol,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
			Chain:    chain,
		})
	}

	for _, r := range raw.Routers {
		chain, ok := reg.chains[normalize(r.Chain)]
		if !ok {
			return nil, fmt.Errorf("router %q: %w %q", r.Name, ErrUnknownChain, r.Chain)
		}
		if !common.IsHexAddress(r.Address) {
			return nil, fmt.Errorf("router %q: invalid address %q", r.Name, r.Address)
		}
		pairing := make([]common.Address, 0, len(r.Pairing))
		for _, sym := range r.Pairing {
			tok, err := reg.ResolveToken(chain.Name, sym)
			if err != nil {
				return nil, fmt.Errorf("router %q pairing: %w", r.Name, err)
			}
			pairing = append(pairing, tok)
		}
		reg.routers[chain.Name] = append(reg.routers[chain.Name], RouterProfile{
			Name:        normalize(r.Name),
			DisplayName: r.DisplayName,
			Address:     common.HexToAddress(r.Address),
			Chain:       chain,
			Pairing:     pairing,
		})
	}

	return reg, nil
}

// Chain looks a chain up by name (case-insensitive).
func (r *Registry) Chain(name string) (ChainProfile, error) {
	c, ok := r.chains[normalize(name)]
	if !ok {
		return ChainProfile{}, fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}
	return c, nil
}

// Chains returns every chain in declaration order.
func (r *Registry) Chains() []ChainProfile {
	out := make([]ChainProfile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.chains[name])
	}
	return out
}

// Routers returns every router deployed on a chain.
func (r *Registry) Routers(chain string) []RouterProfile {
	return append([]RouterProfile(nil), r.routers[normalize(chain)]...)
}

// Router looks a router up by chain and name.
func (r *Registry) Router(chain, name string) (RouterProfile, error) {
	for _, rt := range r.routers[normalize(chain)] {
		if rt.Name == normalize(name) {
			return rt, nil
		}
	}
	return RouterProfile{}, fmt.Errorf("%w: %s on %s", ErrUnknownRouter, name, chain)
}

// Tokens returns the known tokens of a chain sorted by symbol.
func (r *Registry) Tokens(chain string) []TokenProfile {
	out := append([]TokenProfile(nil), r.tokens[normalize(chain)]...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Symbol) < strings.ToUpper(out[j].Symbol)
	})
	return out
}

// Token looks a token up by symbol (case-insensitive).
func (r *Registry) Token(chain, symbol string) (TokenProfile, error) {
	for _, t := range r.tokens[normalize(chain)] {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, nil
		}
	}
	return TokenProfile{}, fmt.Errorf("%w: %s on %s", ErrUnknownToken, symbol, chain)
}

// ResolveToken accepts either a known symbol or a raw 0x address.
func (r *Registry) ResolveToken(chain, symbolOrAddress string) (common.Address, error) {
	if common.IsHexAddress(symbolOrAddress) {
		return common.HexToAddress(symbolOrAddress), nil
	}
	t, err := r.Token(chain, symbolOrAddress)
	if err != nil {
		return common.Address{}, err
	}
	return t.Address, nil
}

// SymbolOf returns the symbol for an address, or the address itself when the
// token is not in the table.
func (r *Registry) SymbolOf(chain string, addr common.Address) string {
	for _, t := range r.tokens[normalize(chain)] {
		if t.Address == addr {
			return t.Symbol
		}
	}
	return addr.Hex()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
