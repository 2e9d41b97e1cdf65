// Package signer derives account addresses from private keys and signs
// legacy transactions with EIP-155 replay protection.
package signer

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidKey = errors.New("invalid private key")

// Key is an opaque credential handle. The raw key never leaves this package.
type Key struct {
	priv *ecdsa.PrivateKey
}

// ParseKey accepts a hex private key with or without the 0x prefix.
func ParseKey(hexKey string) (*Key, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Key{priv: priv}, nil
}

// GenerateKey creates a fresh random key.
func GenerateKey() (*Key, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Key{priv: priv}, nil
}

// LoadKeys reads one hex key per line. Blank lines, lines starting with '#'
// and repeats of an earlier key are skipped.
func LoadKeys(r io.Reader) ([]*Key, error) {
	var keys []*Key
	seen := make(map[common.Address]bool)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		k, err := ParseKey(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		addr := crypto.PubkeyToAddress(k.priv.PublicKey)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		keys = append(keys, k)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}
	return keys, nil
}

// LoadKeysFile is LoadKeys over a file on disk.
func LoadKeysFile(path string) ([]*Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()
	return LoadKeys(f)
}

// Signer is the signing boundary used by the transaction pipeline.
type Signer interface {
	AddressOf(key *Key) common.Address
	Sign(tx *types.Transaction, chainID *big.Int, key *Key) ([]byte, error)
}

// KeySigner signs in-process with secp256k1 keys.
type KeySigner struct{}

func (KeySigner) AddressOf(key *Key) common.Address {
	return crypto.PubkeyToAddress(key.priv.PublicKey)
}

// Sign returns the RLP encoding of the signed transaction.
func (KeySigner) Sign(tx *types.Transaction, chainID *big.Int, key *Key) ([]byte, error) {
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return raw, nil
}
