package pipeline

import (
	"context"
	"fmt"
	"time"

	"evm-swap/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
)

// AwaitConfirmation polls for the receipt of hash every PollInterval until it
// is found or timeout elapses. A timeout is reported as StatusTimedOut, not
// as an error; errors are node failures or ctx cancellation. Receipt fetches
// share the timeout and the last sleep is shortened, so the call never
// outlives the deadline even when the node hangs.
func (p *Pipeline) AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (Status, error) {
	deadline := p.clock.Now().Add(timeout)
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		receipt, err := p.client.TransactionReceipt(fetchCtx, hash)
		if err != nil {
			if ctx.Err() == nil && fetchCtx.Err() != nil {
				p.observe(hash, StatusTimedOut)
				return StatusTimedOut, nil
			}
			return StatusSubmitted, fmt.Errorf("failed to get receipt: %w", err)
		}
		if receipt != nil {
			status := StatusReverted
			if receipt.Succeeded() {
				status = StatusConfirmed
			}
			p.observe(hash, status)
			return status, nil
		}

		remaining := deadline.Sub(p.clock.Now())
		if remaining <= 0 {
			p.observe(hash, StatusTimedOut)
			return StatusTimedOut, nil
		}
		wait := PollInterval
		if remaining < wait {
			wait = remaining
		}
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return StatusSubmitted, err
		}
	}
}

// Confirm waits for tx and records the outcome on it.
func (p *Pipeline) Confirm(ctx context.Context, tx *PendingTransaction, timeout time.Duration) (Status, error) {
	status, err := p.AwaitConfirmation(ctx, tx.Hash, timeout)
	if err != nil {
		return status, err
	}
	tx.Status = status
	return status, nil
}

func (p *Pipeline) observe(hash common.Hash, status Status) {
	metrics.TxOutcome.WithLabelValues(p.chain, string(status)).Inc()
	ev := p.log.Info()
	if status != StatusConfirmed {
		ev = p.log.Warn()
	}
	ev.Str("hash", hash.Hex()).Str("status", string(status)).Msg("confirmation finished")
}
