package swap

import (
	"context"
	"math/big"

	"evm-swap/pkg/contract"

	"github.com/ethereum/go-ethereum/common"
)

// SyrupPool reads a single-token staking pool that pays out a reward token.
type SyrupPool struct {
	Address common.Address
	r       Reader
}

func NewSyrupPool(r Reader, address common.Address) *SyrupPool {
	return &SyrupPool{Address: address, r: r}
}

// RewardToken is the token the pool pays out.
func (s *SyrupPool) RewardToken(ctx context.Context) (common.Address, error) {
	out, err := read(ctx, s.r, contract.SyrupPool, s.Address, "rewardToken")
	if err != nil {
		return common.Address{}, err
	}
	return contract.Address(out, 0)
}

// StakedToken is the token users deposit.
func (s *SyrupPool) StakedToken(ctx context.Context) (common.Address, error) {
	out, err := read(ctx, s.r, contract.SyrupPool, s.Address, "stakedToken")
	if err != nil {
		return common.Address{}, err
	}
	return contract.Address(out, 0)
}

// PendingReward is the reward user could harvest now, in reward token units.
func (s *SyrupPool) PendingReward(ctx context.Context, user common.Address) (*big.Int, error) {
	out, err := read(ctx, s.r, contract.SyrupPool, s.Address, "pendingReward", user)
	if err != nil {
		return nil, err
	}
	return contract.BigInt(out, 0)
}

// SyrupStake is a user's position in a pool.
type SyrupStake struct {
	Amount     *big.Int
	RewardDebt *big.Int
}

func (s *SyrupPool) UserInfo(ctx context.Context, user common.Address) (SyrupStake, error) {
	out, err := read(ctx, s.r, contract.SyrupPool, s.Address, "userInfo", user)
	if err != nil {
		return SyrupStake{}, err
	}
	amount, err := contract.BigInt(out, 0)
	if err != nil {
		return SyrupStake{}, err
	}
	debt, err := contract.BigInt(out, 1)
	if err != nil {
		return SyrupStake{}, err
	}
	return SyrupStake{Amount: amount, RewardDebt: debt}, nil
}
