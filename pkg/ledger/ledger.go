// Package ledger defines what the tool needs from a blockchain node and
// provides a go-ethereum backed implementation of it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNodeCommunication marks transport and I/O failures talking to the node.
	ErrNodeCommunication = errors.New("node communication error")
	// ErrSimulationReverted is returned when a simulated call (estimate or
	// eth_call) would revert.
	ErrSimulationReverted = errors.New("simulation reverted")
	// ErrRejected is returned when the node refused a signed transaction.
	ErrRejected = errors.New("transaction rejected by node")
)

// NodeError wraps a transport failure with the operation that caused it.
type NodeError struct {
	Op  string
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

func (e *NodeError) Is(target error) bool { return target == ErrNodeCommunication }

// RejectedError carries the node's message for a refused broadcast.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRejected, e.Message)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Receipt is the subset of a transaction receipt the tool acts on.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber *big.Int
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// Client is the node boundary. Implementations must be safe for concurrent
// use; pipelines for different accounts share one Client.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	// TransactionCount returns the confirmed (latest block) transaction count.
	TransactionCount(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	// SendRawTransaction broadcasts signed bytes. A *RejectedError means the
	// node answered and refused the transaction.
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	// TransactionReceipt returns nil and no error while the transaction is pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}
