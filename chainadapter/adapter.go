// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package chainadapter

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/ri-dev-git/bls-wallet/bundle"
)

var errInvalidReturnShape = errors.New("chainadapter: unexpected return data shape")

// MeasureResult is one point of the measure/call/measure/call/.../measure
// sequence CallStaticSequenceWithMeasure runs: whether the measuring call
// succeeded, and the balance it returned.
type MeasureResult struct {
	Success bool
	Value   *uint256.Int
}

// SimulationResult is the outcome of staging previousAggregate followed by
// a trailing run of candidate bundles, with a balance measurement bracketing
// every bundle.
type SimulationResult struct {
	MeasureResults []MeasureResult // len(bundles)+1
	CallSuccesses  []bool          // len(bundles); whether that bundle's processBundle call succeeded (did not revert)
}

// BundleReward returns the reward attributable to the bundle at index i,
// measured as the balance delta between the measurement taken right before
// it ran and the one taken right after.
func (r *SimulationResult) BundleReward(i int) (success bool, reward *uint256.Int) {
	before, after := r.MeasureResults[i], r.MeasureResults[i+1]
	if !before.Success || !after.Success || !r.CallSuccesses[i] {
		return false, new(uint256.Int)
	}
	if after.Value.Cmp(before.Value) < 0 {
		return false, new(uint256.Int)
	}
	return true, new(uint256.Int).Sub(after.Value, before.Value)
}

// Adapter is the concrete ChainAdapter (§4.2): a thin facade over a
// ContractBackend plus the gateway/reward-token addresses and the
// aggregator's own account, none of which this package has an opinion on
// how to obtain.
type Adapter struct {
	backend       ContractBackend
	gatewayAddr   common.Address
	aggregatorAcc common.Address
	measureCall   func(account common.Address) (CallMsg, func([]byte) (*uint256.Int, error))
}

// NewAdapter builds an Adapter. measureNative selects whether the
// aggregator is measuring its native-asset balance (via the utilities
// contract) or an ERC-20 reward token balance; rewardToken is ignored when
// measureNative is true.
func NewAdapter(backend ContractBackend, gatewayAddr, utilitiesAddr, aggregatorAcc common.Address, measureNative bool, rewardToken common.Address) *Adapter {
	a := &Adapter{backend: backend, gatewayAddr: gatewayAddr, aggregatorAcc: aggregatorAcc}
	if measureNative {
		a.measureCall = func(account common.Address) (CallMsg, func([]byte) (*uint256.Int, error)) {
			data, _ := EncodeEthBalanceOf(account)
			return CallMsg{To: utilitiesAddr, Data: data}, decodeUint256Balance
		}
	} else {
		a.measureCall = func(account common.Address) (CallMsg, func([]byte) (*uint256.Int, error)) {
			data, _ := EncodeBalanceOf(account)
			return CallMsg{To: rewardToken, Data: data}, decodeUint256Balance
		}
	}
	return a
}

func decodeUint256Balance(data []byte) (*uint256.Int, error) {
	big, err := DecodeUint256(data)
	if err != nil {
		return nil, err
	}
	v, overflow := uint256.FromBig(big)
	if overflow {
		return nil, errors.New("chainadapter: balance overflows uint256")
	}
	return v, nil
}

// BlockNumber returns the current head block number.
func (a *Adapter) BlockNumber(ctx context.Context) (uint64, error) {
	return a.backend.BlockNumber(ctx)
}

// CheckNonces compares each operation's declared nonce against the
// gateway's on-chain nonce for that wallet, producing a failure for every
// mismatch.
func (a *Adapter) CheckNonces(ctx context.Context, b *bundle.Bundle) ([]bundle.TransactionFailure, error) {
	var failures []bundle.TransactionFailure
	for i, op := range b.Operations {
		account := walletAddressFromPublicKey(b.SenderPublicKeys[i])
		onChain, err := a.backend.AccountNonce(ctx, account)
		if err != nil {
			return nil, err
		}
		switch {
		case op.Nonce < onChain:
			failures = append(failures, bundle.TransactionFailure{
				Kind:           bundle.FailureNonceTooLow,
				OperationIndex: i,
				Message:        "operation nonce below on-chain wallet nonce",
			})
		case op.Nonce > onChain:
			failures = append(failures, bundle.TransactionFailure{
				Kind:           bundle.FailureNonceTooHigh,
				OperationIndex: i,
				Message:        "operation nonce above on-chain wallet nonce",
			})
		}
	}
	return failures, nil
}

// walletAddressFromPublicKey derives the gateway-registered wallet address
// for a BLS public key. The real derivation is the gateway's own
// CREATE2-style mapping; this adapter does not need to recompute it beyond
// what AccountNonce needs as a lookup key, so the bytes of the public key
// stand in for it in this facade.
func walletAddressFromPublicKey(pk bundle.PublicKey) common.Address {
	return common.BytesToAddress(pk[len(pk)-20:])
}

// CallStaticSequenceWithMeasure simulates, in one atomic read, the sequence
// measure, a0, measure, a1, measure, ..., a(n-1), measure, where each ai is
// the processBundle call for bundles[i] staged atop previousAggregate.
// Because the sequence is evaluated atomically, bundle i sees the state
// effects of previousAggregate and of bundles[0..i).
func (a *Adapter) CallStaticSequenceWithMeasure(ctx context.Context, previousAggregate *bundle.Bundle, bundles []*bundle.Bundle) (*SimulationResult, error) {
	calls := make([]CallMsg, 0, 2*len(bundles)+2)
	measureCall, decode := a.measureCall(a.aggregatorAcc)

	if previousAggregate != nil {
		data, err := EncodeProcessBundle(previousAggregate)
		if err != nil {
			return nil, err
		}
		calls = append(calls, CallMsg{To: a.gatewayAddr, Data: data})
	}
	calls = append(calls, measureCall)
	for _, b := range bundles {
		data, err := EncodeProcessBundle(b)
		if err != nil {
			return nil, err
		}
		calls = append(calls, CallMsg{To: a.gatewayAddr, Data: data}, measureCall)
	}

	results, err := a.backend.CallContractAtomicSequence(ctx, calls)
	if err != nil {
		return nil, err
	}

	offset := 0
	if previousAggregate != nil {
		offset = 1 // skip the previous-aggregate call result
	}
	results = results[offset:]

	out := &SimulationResult{
		MeasureResults: make([]MeasureResult, len(bundles)+1),
		CallSuccesses:  make([]bool, len(bundles)),
	}
	idx := 0
	for i := range out.MeasureResults {
		r := results[idx]
		idx++
		mr := MeasureResult{Success: r.Success, Value: new(uint256.Int)}
		if r.Success {
			if v, derr := decode(r.ReturnData); derr == nil {
				mr.Value = v
			} else {
				log.Warn("chainadapter: failed to decode measurement", "err", derr)
				mr.Success = false
			}
		}
		out.MeasureResults[i] = mr
		if i < len(bundles) {
			out.CallSuccesses[i] = results[idx].Success
			idx++
		}
	}
	return out, nil
}

// EstimateGas estimates the gas a standalone processBundle(bundle) call
// would cost.
func (a *Adapter) EstimateGas(ctx context.Context, b *bundle.Bundle) (uint64, error) {
	data, err := EncodeProcessBundle(b)
	if err != nil {
		return 0, err
	}
	return a.backend.EstimateGas(ctx, CallMsg{From: a.aggregatorAcc, To: a.gatewayAddr, Data: data})
}

// EncodeCallData returns the ABI-encoded processBundle(bundle) call data;
// only its length is used by the reward model, but callers may log the
// full payload for debugging.
func (a *Adapter) EncodeCallData(ctx context.Context, b *bundle.Bundle) ([]byte, error) {
	return EncodeProcessBundle(b)
}

// SubmitBundle broadcasts the aggregate and waits for it to be mined or for
// timeout to elapse, whichever comes first.
func (a *Adapter) SubmitBundle(ctx context.Context, agg *bundle.Bundle, timeout time.Duration) (*Receipt, error) {
	data, err := EncodeProcessBundle(agg)
	if err != nil {
		return nil, err
	}
	txHash, err := a.backend.SendTransaction(ctx, a.aggregatorAcc, a.gatewayAddr, data)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		receipt, err := a.backend.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
