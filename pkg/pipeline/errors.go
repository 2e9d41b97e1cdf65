package pipeline

import (
	"errors"
	"fmt"

	"evm-swap/pkg/ledger"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrEstimationFailed    = errors.New("gas estimation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBroadcastRejected   = errors.New("broadcast rejected")
	ErrInvalidGasBounds    = errors.New("invalid gas price bounds")
)

// BroadcastRejectedError is returned when the node refuses a signed
// transaction. Hash is still the hash of what was signed.
type BroadcastRejectedError struct {
	Hash    common.Hash
	Nonce   uint64
	Message string
}

func (e *BroadcastRejectedError) Error() string {
	return fmt.Sprintf("broadcast rejected (tx %s, nonce %d): %s", e.Hash.Hex(), e.Nonce, e.Message)
}

func (e *BroadcastRejectedError) Is(target error) bool { return target == ErrBroadcastRejected }

// IsRetryable reports whether err is a transient node failure worth
// retrying at the caller's discretion. Nothing inside the pipeline retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ledger.ErrNodeCommunication)
}
