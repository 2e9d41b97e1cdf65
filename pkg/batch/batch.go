// Package batch runs one logical operation across many accounts. Failures
// are isolated per account; only global preconditions abort a run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"evm-swap/internal/metrics"
	"evm-swap/pkg/ledger"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/signer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConfirmTimeout bounds the wait for each distribution or collection
// transfer.
const DefaultConfirmTimeout = 60 * time.Second

var (
	ErrInsufficientMainBalance = errors.New("insufficient main account balance")
	ErrNotConfirmed            = errors.New("transaction not confirmed")
)

// InsufficientMainBalanceError is returned before any transfer when the main
// account cannot fund a distribution.
type InsufficientMainBalanceError struct {
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientMainBalanceError) Error() string {
	return fmt.Sprintf("%v: need %s wei, have %s wei", ErrInsufficientMainBalance, e.Required, e.Available)
}

func (e *InsufficientMainBalanceError) Is(target error) bool {
	return target == ErrInsufficientMainBalance
}

// Operation is applied to each account's pipeline.
type Operation func(ctx context.Context, p *pipeline.Pipeline) error

// Config for an Orchestrator. Pipeline is the template each per-account
// pipeline is built from.
type Config struct {
	Pipeline       pipeline.Config
	Workers        int
	ConfirmTimeout time.Duration
	Logger         zerolog.Logger
}

// Orchestrator coordinates a main account and a list of sub-accounts on one
// chain.
type Orchestrator struct {
	client ledger.Client
	signer signer.Signer
	main   *pipeline.Pipeline
	keys   []*signer.Key
	cfg    Config
	log    zerolog.Logger
}

// New builds an orchestrator. main may be nil for operations that do not
// need a coordinating account.
func New(client ledger.Client, sgn signer.Signer, main *pipeline.Pipeline, keys []*signer.Key, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	return &Orchestrator{
		client: client,
		signer: sgn,
		main:   main,
		keys:   keys,
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "batch").Logger(),
	}
}

// Addresses lists the sub-accounts in batch order.
func (o *Orchestrator) Addresses() []common.Address {
	out := make([]common.Address, len(o.keys))
	for i, k := range o.keys {
		out[i] = o.signer.AddressOf(k)
	}
	return out
}

// ForEachAccount applies op to every account with at most Workers running at
// once. Each account gets its own pipeline. An error or panic in one account
// is recorded in the report and does not stop the others. The returned error
// is non-nil only when ctx ended the run.
func (o *Orchestrator) ForEachAccount(ctx context.Context, name string, op Operation) (*Report, error) {
	return o.forEach(ctx, name, func(ctx context.Context, _ int, p *pipeline.Pipeline) error {
		return op(ctx, p)
	})
}

func (o *Orchestrator) forEach(ctx context.Context, name string, op func(ctx context.Context, i int, p *pipeline.Pipeline) error) (*Report, error) {
	report := newReport(name, len(o.keys))
	log := o.log.With().Str("run", report.RunID).Str("operation", name).Logger()
	log.Info().Int("accounts", len(o.keys)).Int("workers", o.cfg.Workers).Msg("batch started")

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i, key := range o.keys {
		addr := o.signer.AddressOf(key)
		report.Results[i].Address = addr
		if ctx.Err() != nil {
			report.Results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			err := o.runOne(ctx, key, func(ctx context.Context, p *pipeline.Pipeline) error {
				return op(ctx, i, p)
			})
			report.Results[i].Err = err
			metrics.BatchAccounts.WithLabelValues(name, metrics.Result(err)).Inc()
			if err != nil {
				log.Error().Err(err).Int("index", i).Str("account", addr.Hex()).Msg("account failed")
			} else {
				log.Debug().Int("index", i).Str("account", addr.Hex()).Msg("account done")
			}
			return nil
		})
	}
	_ = g.Wait()
	report.finish()

	log.Info().Int("attempted", report.Attempted).Int("failed", report.Failed).Msg("batch finished")
	return report, ctx.Err()
}

func (o *Orchestrator) runOne(ctx context.Context, key *signer.Key, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	cfg := o.cfg.Pipeline
	cfg.Logger = o.cfg.Logger
	p, err := pipeline.New(o.client, o.signer, key, cfg)
	if err != nil {
		return err
	}
	return op(ctx, p)
}

// DistributeGas sends amountPerAccount wei from the main account to every
// sub-account, one confirmed transfer at a time. The main balance is checked
// against the total first and nothing is sent if it falls short.
func (o *Orchestrator) DistributeGas(ctx context.Context, amountPerAccount *big.Int) (*Report, error) {
	if o.main == nil {
		return nil, fmt.Errorf("distribute gas: no main account")
	}
	total := new(big.Int).Mul(amountPerAccount, big.NewInt(int64(len(o.keys))))
	balance, err := o.main.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get main balance: %w", err)
	}
	if balance.Cmp(total) < 0 {
		return nil, &InsufficientMainBalanceError{Required: total, Available: balance}
	}

	report := newReport("distribute", len(o.keys))
	log := o.log.With().Str("run", report.RunID).Str("operation", "distribute").Logger()
	log.Info().Stringer("per_account", amountPerAccount).Stringer("total", total).Msg("distributing gas")

	for i, addr := range o.Addresses() {
		report.Results[i].Address = addr
		if ctx.Err() != nil {
			report.Results[i].Err = ctx.Err()
			continue
		}
		hash, err := o.transferAndConfirm(ctx, o.main, func() (*pipeline.PendingTransaction, error) {
			return o.main.SendNativeTransfer(ctx, addr, amountPerAccount)
		})
		report.Results[i].Hash = hash
		report.Results[i].Err = err
		metrics.BatchAccounts.WithLabelValues("distribute", metrics.Result(err)).Inc()
		if err != nil {
			log.Error().Err(err).Int("index", i).Str("account", addr.Hex()).Msg("distribution failed")
			continue
		}
		log.Info().Int("index", i).Str("account", addr.Hex()).Str("hash", hash.Hex()).Msg("gas sent")
	}
	report.finish()
	return report, ctx.Err()
}

// CollectGas sweeps every sub-account's native balance, net of the sweep's
// own fee, to the given address.
func (o *Orchestrator) CollectGas(ctx context.Context, to common.Address) (*Report, error) {
	report, err := o.ForEachAccount(ctx, "collect", func(ctx context.Context, p *pipeline.Pipeline) error {
		if p.Address() == to {
			return nil
		}
		_, err := o.transferAndConfirm(ctx, p, func() (*pipeline.PendingTransaction, error) {
			return p.SendAll(ctx, to)
		})
		return err
	})
	return report, err
}

// Balance is a sub-account's native balance.
type Balance struct {
	Address common.Address
	Wei     *big.Int
}

// Balances reads every sub-account's native balance, in batch order. Failed
// reads are reported and left nil.
func (o *Orchestrator) Balances(ctx context.Context) ([]Balance, *Report, error) {
	out := make([]Balance, len(o.keys))
	for i, a := range o.Addresses() {
		out[i].Address = a
	}
	report, err := o.forEach(ctx, "balances", func(ctx context.Context, i int, p *pipeline.Pipeline) error {
		bal, err := p.Balance(ctx)
		if err != nil {
			return err
		}
		out[i].Wei = bal
		return nil
	})
	return out, report, err
}

func (o *Orchestrator) transferAndConfirm(ctx context.Context, p *pipeline.Pipeline, send func() (*pipeline.PendingTransaction, error)) (common.Hash, error) {
	tx, err := send()
	if err != nil {
		var rejected *pipeline.BroadcastRejectedError
		if errors.As(err, &rejected) {
			return rejected.Hash, err
		}
		return common.Hash{}, err
	}
	status, err := p.Confirm(ctx, tx, o.cfg.ConfirmTimeout)
	if err != nil {
		return tx.Hash, err
	}
	if status != pipeline.StatusConfirmed {
		return tx.Hash, fmt.Errorf("%w: %s %s", ErrNotConfirmed, tx.Hash.Hex(), status)
	}
	return tx.Hash, nil
}

// AccountResult is the outcome for one account.
type AccountResult struct {
	Index   int
	Address common.Address
	Hash    common.Hash
	Err     error
}

// Report summarizes one batch run.
type Report struct {
	RunID     string
	Operation string
	Attempted int
	Failed    int
	Results   []AccountResult
}

func newReport(op string, n int) *Report {
	r := &Report{RunID: uuid.NewString(), Operation: op, Results: make([]AccountResult, n)}
	for i := range r.Results {
		r.Results[i].Index = i
	}
	return r
}

func (r *Report) finish() {
	r.Attempted = len(r.Results)
	r.Failed = 0
	for _, res := range r.Results {
		if res.Err != nil {
			r.Failed++
		}
	}
}

// Succeeded is the number of accounts without an error.
func (r *Report) Succeeded() int { return r.Attempted - r.Failed }

// Errors returns the error of every failed account.
func (r *Report) Errors() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("account %d (%s): %w", res.Index, res.Address.Hex(), res.Err))
		}
	}
	return errs
}
