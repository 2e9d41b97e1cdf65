// Package ledgertest provides an in-memory ledger.Client for tests.
package ledgertest

import (
	"context"
	"math/big"
	"sync"

	"evm-swap/pkg/ledger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Sent is a broadcast the fake accepted (or rejected).
type Sent struct {
	Tx   *types.Transaction
	From common.Address
}

// Fake is a scriptable ledger.Client. Zero-valued hooks fall back to the
// plain fields; all access is serialized.
type Fake struct {
	mu sync.Mutex

	ID       *big.Int
	Price    *big.Int
	Gas      uint64
	Balances map[common.Address]*big.Int
	Counts   map[common.Address]uint64
	Receipts map[common.Hash]*ledger.Receipt

	// AutoConfirm stores a successful receipt and bumps the sender's count
	// for every accepted broadcast.
	AutoConfirm bool

	BalanceErr  error
	CountErr    error
	PriceErr    error
	EstimateErr error
	ReceiptErr  error

	CallFunc     func(msg ethereum.CallMsg) ([]byte, error)
	EstimateFunc func(msg ethereum.CallMsg) (uint64, error)
	SendFunc func(tx *types.Transaction, from common.Address) error

	Sent          []Sent
	EstimateCalls int
	ReceiptCalls  int
}

var _ ledger.Client = (*Fake)(nil)

// New returns a fake for chain 56 with a 5 gwei network price.
func New() *Fake {
	return &Fake{
		ID:       big.NewInt(56),
		Price:    big.NewInt(5_000_000_000),
		Gas:      21000,
		Balances: make(map[common.Address]*big.Int),
		Counts:   make(map[common.Address]uint64),
		Receipts: make(map[common.Hash]*ledger.Receipt),
	}
}

func (f *Fake) SetBalance(addr common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances[addr] = new(big.Int).Set(wei)
}

func (f *Fake) SetCount(addr common.Address, n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Counts[addr] = n
}

func (f *Fake) SetReceipt(hash common.Hash, status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Receipts[hash] = &ledger.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(1)}
}

// SentTxs returns a copy of every broadcast seen so far.
func (f *Fake) SentTxs() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.Sent...)
}

func (f *Fake) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.ID), nil
}

func (f *Fake) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	if b, ok := f.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *Fake) TransactionCount(_ context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return f.Counts[account], nil
}

func (f *Fake) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	f.EstimateCalls++
	fn := f.EstimateFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(msg)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EstimateErr != nil {
		return 0, f.EstimateErr
	}
	return f.Gas, nil
}

func (f *Fake) GasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PriceErr != nil {
		return nil, f.PriceErr
	}
	return new(big.Int).Set(f.Price), nil
}

func (f *Fake) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.mu.Lock()
	fn := f.CallFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(msg)
}

func (f *Fake) SendRawTransaction(_ context.Context, raw []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, &ledger.RejectedError{Message: err.Error()}
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.ID), tx)
	if err != nil {
		return tx.Hash(), &ledger.RejectedError{Message: err.Error()}
	}

	f.mu.Lock()
	fn := f.SendFunc
	f.Sent = append(f.Sent, Sent{Tx: tx, From: from})
	f.mu.Unlock()

	if fn != nil {
		if err := fn(tx, from); err != nil {
			return tx.Hash(), err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AutoConfirm {
		f.Counts[from] = tx.Nonce() + 1
		f.Receipts[tx.Hash()] = &ledger.Receipt{
			TxHash:      tx.Hash(),
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(1),
			GasUsed:     tx.Gas(),
		}
	}
	return tx.Hash(), nil
}

func (f *Fake) TransactionReceipt(_ context.Context, hash common.Hash) (*ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReceiptCalls++
	if f.ReceiptErr != nil {
		return nil, f.ReceiptErr
	}
	return f.Receipts[hash], nil
}
