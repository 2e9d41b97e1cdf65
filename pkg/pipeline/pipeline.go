// Package pipeline turns transfer and contract-call intents into signed,
// broadcast and confirmed transactions for a single account on a single
// chain.
//
// A Pipeline owns the nonce cache and gas settings of its account. It is safe
// for concurrent use, but every send is serialized so nonces are broadcast in
// the order they are issued. Pipelines for different accounts share nothing
// except the ledger client.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"evm-swap/internal/metrics"
	"evm-swap/pkg/ledger"
	"evm-swap/pkg/signer"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

const gwei = 1_000_000_000

// PollInterval is the fixed receipt polling period.
const PollInterval = 500 * time.Millisecond

var (
	DefaultMinGasPrice = big.NewInt(1 * gwei)
	DefaultMaxGasPrice = big.NewInt(10 * gwei)
)

// Config carries everything a Pipeline needs besides its collaborators.
// Zero values select the defaults.
type Config struct {
	ChainID     *big.Int
	ChainName   string
	MinGasPrice *big.Int
	MaxGasPrice *big.Int
	// GasLimit, when non-zero, replaces gas estimation for every transaction.
	GasLimit uint64
	Clock    Clock
	Logger   zerolog.Logger
}

// Pipeline submits transactions for one account.
type Pipeline struct {
	client  ledger.Client
	signer  signer.Signer
	key     *signer.Key
	address common.Address
	chainID *big.Int
	chain   string
	clock   Clock
	log     zerolog.Logger

	mu       sync.Mutex
	nonce    int64 // -1 until the first NextNonce
	minGas   *big.Int
	maxGas   *big.Int
	gasLimit uint64
}

// New binds a pipeline to one credential. It performs no I/O.
func New(client ledger.Client, sgn signer.Signer, key *signer.Key, cfg Config) (*Pipeline, error) {
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("pipeline: chain id is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	p := &Pipeline{
		client:   client,
		signer:   sgn,
		key:      key,
		address:  sgn.AddressOf(key),
		chainID:  new(big.Int).Set(cfg.ChainID),
		chain:    cfg.ChainName,
		clock:    cfg.Clock,
		nonce:    -1,
		minGas:   DefaultMinGasPrice,
		maxGas:   DefaultMaxGasPrice,
		gasLimit: cfg.GasLimit,
	}
	p.log = cfg.Logger.With().
		Str("component", "pipeline").
		Str("account", p.address.Hex()).
		Logger()
	if cfg.MinGasPrice != nil || cfg.MaxGasPrice != nil {
		lo, hi := cfg.MinGasPrice, cfg.MaxGasPrice
		if lo == nil {
			lo = DefaultMinGasPrice
		}
		if hi == nil {
			hi = DefaultMaxGasPrice
		}
		if err := p.SetGasBounds(lo, hi); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Address is the account this pipeline signs for.
func (p *Pipeline) Address() common.Address { return p.address }

func (p *Pipeline) ChainID() *big.Int { return new(big.Int).Set(p.chainID) }

func (p *Pipeline) Clock() Clock { return p.clock }

// SetGasBounds clamps every future gas price lookup to [min, max].
func (p *Pipeline) SetGasBounds(min, max *big.Int) error {
	if min == nil || max == nil || min.Sign() < 0 || min.Cmp(max) > 0 {
		return fmt.Errorf("%w: min %v max %v", ErrInvalidGasBounds, min, max)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minGas = new(big.Int).Set(min)
	p.maxGas = new(big.Int).Set(max)
	return nil
}

// GasBounds returns copies of the current bounds.
func (p *Pipeline) GasBounds() (min, max *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.minGas), new(big.Int).Set(p.maxGas)
}

// SetFixedGasLimit makes every transaction use limit. Zero switches back to
// estimation.
func (p *Pipeline) SetFixedGasLimit(limit uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gasLimit = limit
}

// NextNonce increments the local nonce and adopts the chain's transaction
// count instead when the chain is ahead.
func (p *Pipeline) NextNonce(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextNonceLocked(ctx)
}

func (p *Pipeline) nextNonceLocked(ctx context.Context) (uint64, error) {
	count, err := p.client.TransactionCount(ctx, p.address)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	next := p.nonce + 1
	if int64(count) > next {
		if p.nonce >= 0 {
			p.log.Debug().Int64("local", next).Uint64("chain", count).Msg("nonce resynchronized from chain")
		}
		next = int64(count)
	}
	p.nonce = next
	return uint64(next), nil
}

// releaseNonceLocked hands back a nonce whose transaction never reached the
// node, so the next send reuses it instead of leaving a gap.
func (p *Pipeline) releaseNonceLocked(nonce uint64) {
	if p.nonce == int64(nonce) {
		p.nonce--
	}
}

// ResetNonce forgets the local nonce so the next call starts from the
// chain's count.
func (p *Pipeline) ResetNonce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = -1
}

// CurrentGasPrice returns the network gas price clamped to the bounds.
func (p *Pipeline) CurrentGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := p.client.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	p.mu.Lock()
	lo, hi := p.minGas, p.maxGas
	p.mu.Unlock()

	switch {
	case price.Cmp(hi) > 0:
		p.log.Debug().Stringer("network", price).Stringer("max", hi).Msg("gas price clamped to max")
		return new(big.Int).Set(hi), nil
	case price.Cmp(lo) < 0:
		p.log.Debug().Stringer("network", price).Stringer("min", lo).Msg("gas price raised to min")
		return new(big.Int).Set(lo), nil
	default:
		return price, nil
	}
}

// EstimateGasLimit returns the fixed gas limit if one is set, otherwise the
// node's estimate for the call.
func (p *Pipeline) EstimateGasLimit(ctx context.Context, to common.Address, data []byte, value *big.Int) (uint64, error) {
	p.mu.Lock()
	fixed := p.gasLimit
	p.mu.Unlock()
	if fixed != 0 {
		return fixed, nil
	}

	return p.Simulate(ctx, to, data, value)
}

// Simulate asks the node for the gas of a call from this account, ignoring
// any fixed limit. A revert is reported as ErrEstimationFailed.
func (p *Pipeline) Simulate(ctx context.Context, to common.Address, data []byte, value *big.Int) (uint64, error) {
	gas, err := p.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  p.address,
		To:    &to,
		Data:  data,
		Value: value,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrSimulationReverted) {
			return 0, fmt.Errorf("%w: %w", ErrEstimationFailed, err)
		}
		return 0, err
	}
	return gas, nil
}

// Balance returns the account's native balance in wei.
func (p *Pipeline) Balance(ctx context.Context) (*big.Int, error) {
	return p.client.BalanceAt(ctx, p.address)
}

// Call performs a read-only call from this account.
func (p *Pipeline) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return p.client.Call(ctx, ethereum.CallMsg{From: p.address, To: &to, Data: data})
}

// Status is the lifecycle state of a submitted transaction.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusReverted  Status = "reverted"
	StatusTimedOut  Status = "timed_out"
)

// PendingTransaction is a transaction the node accepted.
type PendingTransaction struct {
	Hash        common.Hash
	Nonce       uint64
	GasPrice    *big.Int
	GasLimit    uint64
	SubmittedAt time.Time
	Status      Status
}

// Fee is the worst-case fee of the transaction in wei.
func (t *PendingTransaction) Fee() *big.Int {
	return new(big.Int).Mul(t.GasPrice, new(big.Int).SetUint64(t.GasLimit))
}

// SendNativeTransfer sends amount wei to to.
func (p *Pipeline) SendNativeTransfer(ctx context.Context, to common.Address, amount *big.Int) (*PendingTransaction, error) {
	price, err := p.CurrentGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	limit, err := p.EstimateGasLimit(ctx, to, nil, amount)
	if err != nil {
		return nil, err
	}
	return p.submit(ctx, to, amount, nil, price, limit)
}

// SendAll transfers the whole balance minus the fee of the transfer itself.
func (p *Pipeline) SendAll(ctx context.Context, to common.Address) (*PendingTransaction, error) {
	price, err := p.CurrentGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	limit, err := p.EstimateGasLimit(ctx, to, nil, nil)
	if err != nil {
		return nil, err
	}
	balance, err := p.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(limit))
	amount := new(big.Int).Sub(balance, fee)
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: balance %s wei does not cover fee %s wei", ErrInsufficientBalance, balance, fee)
	}
	return p.submit(ctx, to, amount, nil, price, limit)
}

// CallContract sends a state-changing call with pre-encoded calldata.
func (p *Pipeline) CallContract(ctx context.Context, to common.Address, data []byte, value *big.Int) (*PendingTransaction, error) {
	if value == nil {
		value = new(big.Int)
	}
	price, err := p.CurrentGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	limit, err := p.EstimateGasLimit(ctx, to, data, value)
	if err != nil {
		return nil, err
	}
	return p.submit(ctx, to, value, data, price, limit)
}

// submit allocates a nonce, signs and broadcasts while holding the lock, so
// a later nonce never reaches the node before an earlier one.
func (p *Pipeline) submit(ctx context.Context, to common.Address, value *big.Int, data []byte, price *big.Int, limit uint64) (*PendingTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nonce, err := p.nextNonceLocked(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(nonce, to, value, limit, price, data)
	raw, err := p.signer.Sign(tx, p.chainID, p.key)
	if err != nil {
		p.releaseNonceLocked(nonce)
		return nil, err
	}

	hash, err := p.client.SendRawTransaction(ctx, raw)
	if err != nil {
		p.releaseNonceLocked(nonce)
		metrics.TxSubmitted.WithLabelValues(p.chain, "error").Inc()
		var rejected *ledger.RejectedError
		if errors.As(err, &rejected) {
			p.log.Warn().Str("hash", hash.Hex()).Uint64("nonce", nonce).Str("reason", rejected.Message).Msg("broadcast rejected")
			return nil, &BroadcastRejectedError{Hash: hash, Nonce: nonce, Message: rejected.Message}
		}
		return nil, fmt.Errorf("broadcast %s: %w", hash.Hex(), err)
	}
	metrics.TxSubmitted.WithLabelValues(p.chain, "ok").Inc()

	p.log.Info().
		Str("hash", hash.Hex()).
		Str("to", to.Hex()).
		Uint64("nonce", nonce).
		Stringer("value", value).
		Stringer("gas_price", price).
		Uint64("gas", limit).
		Msg("transaction submitted")

	return &PendingTransaction{
		Hash:        hash,
		Nonce:       nonce,
		GasPrice:    price,
		GasLimit:    limit,
		SubmittedAt: p.clock.Now(),
		Status:      StatusSubmitted,
	}, nil
}
