package pipeline

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"evm-swap/pkg/ledger"
	"evm-swap/pkg/ledger/ledgertest"
	"evm-swap/pkg/pipeline/pipelinetest"
	"evm-swap/pkg/signer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestPipeline(t *testing.T, fake *ledgertest.Fake) (*Pipeline, *pipelinetest.FakeClock) {
	t.Helper()
	key, err := signer.GenerateKey()
	require.NoError(t, err)
	clock := pipelinetest.NewFakeClock(time.Unix(1_700_000_000, 0))
	p, err := New(fake, signer.KeySigner{}, key, Config{
		ChainID:   fake.ID,
		ChainName: "test",
		Clock:     clock,
	})
	require.NoError(t, err)
	return p, clock
}

func TestNextNonceStrictlyIncreases(t *testing.T) {
	fake := ledgertest.New()
	p, _ := newTestPipeline(t, fake)
	ctx := context.Background()

	var last int64 = -1
	for i := 0; i < 5; i++ {
		n, err := p.NextNonce(ctx)
		require.NoError(t, err)
		assert.Greater(t, int64(n), last)
		last = int64(n)
	}
	assert.Equal(t, int64(4), last)
}

func TestNextNonceAdoptsChainCount(t *testing.T) {
	fake := ledgertest.New()
	p, _ := newTestPipeline(t, fake)
	ctx := context.Background()

	fake.SetCount(p.Address(), 3)
	n, err := p.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	n, err = p.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	// someone else sent from this account
	fake.SetCount(p.Address(), 20)
	n, err = p.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), n)

	// chain falls behind the local cache: keep counting locally
	fake.SetCount(p.Address(), 2)
	n, err = p.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), n)
}

func TestNextNonceFailureKeepsCache(t *testing.T) {
	fake := ledgertest.New()
	p, _ := newTestPipeline(t, fake)
	ctx := context.Background()

	_, err := p.NextNonce(ctx)
	require.NoError(t, err)

	fake.CountErr = &ledger.NodeError{Op: "transaction count", Err: errors.New("timeout")}
	_, err = p.NextNonce(ctx)
	assert.True(t, IsRetryable(err))

	fake.CountErr = nil
	n, err := p.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestCurrentGasPriceClamped(t *testing.T) {
	tests := []struct {
		name    string
		network int64
		want    int64
	}{
		{"below min", gwei / 2, 1 * gwei},
		{"inside", 5 * gwei, 5 * gwei},
		{"at max", 10 * gwei, 10 * gwei},
		{"above max", 50 * gwei, 10 * gwei},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := ledgertest.New()
			fake.Price = big.NewInt(tt.network)
			p, _ := newTestPipeline(t, fake)

			got, err := p.CurrentGasPrice(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())

			lo, hi := p.GasBounds()
			assert.True(t, got.Cmp(lo) >= 0 && got.Cmp(hi) <= 0)
		})
	}
}

func TestSetGasBounds(t *testing.T) {
	fake := ledgertest.New()
	fake.Price = big.NewInt(50 * gwei)
	p, _ := newTestPipeline(t, fake)

	require.NoError(t, p.SetGasBounds(big.NewInt(2*gwei), big.NewInt(20*gwei)))
	got, err := p.CurrentGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20*gwei), got.Int64())

	err = p.SetGasBounds(big.NewInt(5), big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidGasBounds)
}

func TestEstimateGasLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed limit skips the node", func(t *testing.T) {
		fake := ledgertest.New()
		p, _ := newTestPipeline(t, fake)
		p.SetFixedGasLimit(300000)

		gas, err := p.EstimateGasLimit(ctx, recipient, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(300000), gas)
		assert.Zero(t, fake.EstimateCalls)
	})

	t.Run("estimate", func(t *testing.T) {
		fake := ledgertest.New()
		fake.Gas = 55000
		p, _ := newTestPipeline(t, fake)

		gas, err := p.EstimateGasLimit(ctx, recipient, []byte{1}, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(55000), gas)
		assert.Equal(t, 1, fake.EstimateCalls)
	})

	t.Run("revert", func(t *testing.T) {
		fake := ledgertest.New()
		fake.EstimateErr = ledger.ErrSimulationReverted
		p, _ := newTestPipeline(t, fake)

		_, err := p.EstimateGasLimit(ctx, recipient, nil, nil)
		assert.ErrorIs(t, err, ErrEstimationFailed)
		assert.ErrorIs(t, err, ledger.ErrSimulationReverted)
		assert.False(t, IsRetryable(err))
	})

	t.Run("simulate ignores fixed limit", func(t *testing.T) {
		fake := ledgertest.New()
		fake.Gas = 180000
		p, _ := newTestPipeline(t, fake)
		p.SetFixedGasLimit(21000)

		gas, err := p.Simulate(ctx, recipient, []byte{1}, big.NewInt(5))
		require.NoError(t, err)
		assert.Equal(t, uint64(180000), gas)
		assert.Equal(t, 1, fake.EstimateCalls)
	})
}

func TestSendNativeTransfer(t *testing.T) {
	fake := ledgertest.New()
	fake.Price = big.NewInt(50 * gwei)
	p, clock := newTestPipeline(t, fake)
	fake.SetCount(p.Address(), 7)

	tx, err := p.SendNativeTransfer(context.Background(), recipient, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, tx.Status)
	assert.Equal(t, uint64(7), tx.Nonce)
	assert.Equal(t, clock.Now(), tx.SubmittedAt)

	sent := fake.SentTxs()
	require.Len(t, sent, 1)
	assert.Equal(t, p.Address(), sent[0].From)
	assert.Equal(t, tx.Hash, sent[0].Tx.Hash())
	assert.Equal(t, recipient, *sent[0].Tx.To())
	assert.Equal(t, int64(1000), sent[0].Tx.Value().Int64())
	assert.Equal(t, int64(10*gwei), sent[0].Tx.GasPrice().Int64())
	assert.Equal(t, uint64(21000), sent[0].Tx.Gas())
}

func TestSendAll(t *testing.T) {
	fake := ledgertest.New()
	p, _ := newTestPipeline(t, fake)
	balance := big.NewInt(1_000_000_000_000_000_000)
	fake.SetBalance(p.Address(), balance)

	_, err := p.SendAll(context.Background(), recipient)
	require.NoError(t, err)

	sent := fake.SentTxs()
	require.Len(t, sent, 1)
	fee := new(big.Int).Mul(sent[0].Tx.GasPrice(), new(big.Int).SetUint64(sent[0].Tx.Gas()))
	assert.Equal(t, int64(5*gwei*21000), fee.Int64())
	assert.Equal(t, new(big.Int).Sub(balance, fee), sent[0].Tx.Value())
}

func TestSendAllInsufficientBalance(t *testing.T) {
	fake := ledgertest.New()
	p, _ := newTestPipeline(t, fake)
	fake.SetBalance(p.Address(), big.NewInt(5*gwei*21000-1))

	_, err := p.SendAll(context.Background(), recipient)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, fake.SentTxs())
}

func TestBroadcastRejectedCarriesHash(t *testing.T) {
	fake := ledgertest.New()
	fake.SendFunc = func(*types.Transaction, common.Address) error {
		return &ledger.RejectedError{Message: "insufficient funds for gas * price + value"}
	}
	p, _ := newTestPipeline(t, fake)

	_, err := p.CallContract(context.Background(), recipient, []byte{0xde, 0xad}, nil)
	require.ErrorIs(t, err, ErrBroadcastRejected)

	var rejected *BroadcastRejectedError
	require.ErrorAs(t, err, &rejected)
	sent := fake.SentTxs()
	require.Len(t, sent, 1)
	assert.Equal(t, sent[0].Tx.Hash(), rejected.Hash)
	assert.Contains(t, rejected.Message, "insufficient funds")
	assert.False(t, IsRetryable(err))
}

func TestConcurrentSendsBroadcastInNonceOrder(t *testing.T) {
	fake := ledgertest.New()
	p, _ := newTestPipeline(t, fake)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.SendNativeTransfer(context.Background(), recipient, big.NewInt(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sent := fake.SentTxs()
	require.Len(t, sent, 20)
	for i, s := range sent {
		assert.Equal(t, uint64(i), s.Tx.Nonce())
	}
}

func TestResetNonce(t *testing.T) {
	fake := ledgertest.New()
	p, _ := newTestPipeline(t, fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.NextNonce(ctx)
		require.NoError(t, err)
	}
	p.ResetNonce()
	n, err := p.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestFailedBroadcastReleasesNonce(t *testing.T) {
	for name, sendErr := range map[string]error{
		"node":     &ledger.NodeError{Op: "send raw transaction", Err: errors.New("i/o timeout")},
		"rejected": &ledger.RejectedError{Message: "nonce too low"},
	} {
		t.Run(name, func(t *testing.T) {
			fake := ledgertest.New()
			p, _ := newTestPipeline(t, fake)
			ctx := context.Background()

			_, err := p.SendNativeTransfer(ctx, recipient, big.NewInt(1))
			require.NoError(t, err)

			fake.SendFunc = func(*types.Transaction, common.Address) error { return sendErr }
			_, err = p.SendNativeTransfer(ctx, recipient, big.NewInt(1))
			require.Error(t, err)

			fake.SendFunc = nil
			_, err = p.SendNativeTransfer(ctx, recipient, big.NewInt(1))
			require.NoError(t, err)

			sent := fake.SentTxs()
			require.Len(t, sent, 3)
			assert.Equal(t, []uint64{0, 1, 1}, []uint64{sent[0].Tx.Nonce(), sent[1].Tx.Nonce(), sent[2].Tx.Nonce()})
		})
	}
}

func TestNewRequiresChainID(t *testing.T) {
	key, err := signer.GenerateKey()
	require.NoError(t, err)
	_, err = New(ledgertest.New(), signer.KeySigner{}, key, Config{})
	assert.Error(t, err)
}
