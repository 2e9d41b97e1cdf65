package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// EthClient implements Client over a JSON-RPC endpoint.
type EthClient struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// Dial connects to the RPC endpoint
func Dial(ctx context.Context, url string) (*EthClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, &NodeError{Op: "dial " + url, Err: err}
	}
	return &EthClient{rpc: c, eth: ethclient.NewClient(c)}, nil
}

// Close closes the client connection
func (c *EthClient) Close() {
	c.eth.Close()
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, &NodeError{Op: "chain id", Err: err}
	}
	return id, nil
}

func (c *EthClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, &NodeError{Op: "balance " + account.Hex(), Err: err}
	}
	return bal, nil
}

func (c *EthClient) TransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	n, err := c.eth.NonceAt(ctx, account, nil)
	if err != nil {
		return 0, &NodeError{Op: "transaction count " + account.Hex(), Err: err}
	}
	return n, nil
}

func (c *EthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, classifySimulation("estimate gas", err)
	}
	return gas, nil
}

func (c *EthClient) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &NodeError{Op: "gas price", Err: err}
	}
	return price, nil
}

func (c *EthClient) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, classifySimulation("call", err)
	}
	return out, nil
}

// SendRawTransaction goes through the raw RPC client rather than
// ethclient.SendTransaction so callers that only hold signed bytes can
// broadcast. The hash is derived locally and is returned even on rejection.
func (c *EthClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	hash := crypto.Keccak256Hash(raw)
	var result common.Hash
	if err := c.rpc.CallContext(ctx, &result, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && !nodeSide(rpcErr) {
			return hash, &RejectedError{Message: rpcErr.Error()}
		}
		return hash, &NodeError{Op: "send raw transaction", Err: err}
	}
	return hash, nil
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	r, err := c.eth.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &NodeError{Op: "receipt " + hash.Hex(), Err: err}
	}
	return &Receipt{
		TxHash:      r.TxHash,
		Status:      r.Status,
		BlockNumber: r.BlockNumber,
		GasUsed:     r.GasUsed,
	}, nil
}

// Transaction looks a transaction up by hash. A nil transaction means the
// node has never seen it.
func (c *EthClient) Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	tx, pending, err := c.eth.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &NodeError{Op: "transaction " + hash.Hex(), Err: err}
	}
	return tx, pending, nil
}

// JSON-RPC codes for failures of the node itself rather than of the call.
const (
	codeExecutionReverted = 3
	codeInternalError     = -32603
	codeLimitExceeded     = -32005
)

// classifySimulation turns a revert into ErrSimulationReverted. Rate limits,
// internal node errors and transport failures become a NodeError. Any other
// JSON-RPC error means the node evaluated the call and refused it.
func classifySimulation(op string, err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return &NodeError{Op: op, Err: err}
	}
	reverted := rpcErr.ErrorCode() == codeExecutionReverted ||
		strings.Contains(strings.ToLower(rpcErr.Error()), "execution reverted")
	if !reverted && nodeSide(rpcErr) {
		return &NodeError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w: %s", op, ErrSimulationReverted, rpcErr.Error())
}

func nodeSide(err rpc.Error) bool {
	switch err.ErrorCode() {
	case codeInternalError, codeLimitExceeded:
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}
