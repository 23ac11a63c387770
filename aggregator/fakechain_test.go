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

package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/chainadapter"
)

// fakeChain is a deterministic, in-memory stand-in for ChainAdapter. Gas and
// call-data length are modeled as linear functions of action count so that
// EstimateGas/EncodeCallData work uniformly for both original bundles and
// the aggregates combineAggregate builds from them; per-bundle rewards and
// revert behavior are set explicitly per test via rewardOf/failOf, keyed by
// bundle pointer identity (CallStaticSequenceWithMeasure always receives
// the original row bundles, never a freshly built aggregate).
type fakeChain struct {
	mu    sync.Mutex
	block uint64

	nonceFailures []bundle.TransactionFailure
	nonceErr      error

	rewardOf map[*bundle.Bundle]*uint256.Int
	failOf   map[*bundle.Bundle]bool

	gasBase, gasPerAction     uint64
	bytesBase, bytesPerAction int

	estimateErr error
	submitFn    func(ctx context.Context, agg *bundle.Bundle, timeout time.Duration) (*chainadapter.Receipt, error)

	submitted [][]byte // retained for inspection, not used by every test
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		rewardOf:       make(map[*bundle.Bundle]*uint256.Int),
		failOf:         make(map[*bundle.Bundle]bool),
		gasBase:        21000,
		gasPerAction:   1000,
		bytesBase:      4,
		bytesPerAction: 32,
	}
}

func (f *fakeChain) setBlock(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = n
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, nil
}

func (f *fakeChain) CheckNonces(ctx context.Context, b *bundle.Bundle) ([]bundle.TransactionFailure, error) {
	return f.nonceFailures, f.nonceErr
}

func (f *fakeChain) CallStaticSequenceWithMeasure(ctx context.Context, previousAggregate *bundle.Bundle, bundles []*bundle.Bundle) (*chainadapter.SimulationResult, error) {
	n := len(bundles)
	out := &chainadapter.SimulationResult{
		MeasureResults: make([]chainadapter.MeasureResult, n+1),
		CallSuccesses:  make([]bool, n),
	}
	balance := new(uint256.Int)
	out.MeasureResults[0] = chainadapter.MeasureResult{Success: true, Value: new(uint256.Int).Set(balance)}
	for i, b := range bundles {
		ok := !f.failOf[b]
		out.CallSuccesses[i] = ok
		if ok {
			r := f.rewardOf[b]
			if r == nil {
				r = new(uint256.Int)
			}
			balance = new(uint256.Int).Add(balance, r)
		}
		out.MeasureResults[i+1] = chainadapter.MeasureResult{Success: true, Value: new(uint256.Int).Set(balance)}
	}
	return out, nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, b *bundle.Bundle) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.gasBase + f.gasPerAction*uint64(b.CountActions()), nil
}

func (f *fakeChain) EncodeCallData(ctx context.Context, b *bundle.Bundle) ([]byte, error) {
	return make([]byte, f.bytesBase+f.bytesPerAction*b.CountActions()), nil
}

func (f *fakeChain) SubmitBundle(ctx context.Context, agg *bundle.Bundle, timeout time.Duration) (*chainadapter.Receipt, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, agg, timeout)
	}
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	return &chainadapter.Receipt{BlockNumber: block, Success: true}, nil
}

func sampleRow(id, nonce uint64, eligibleAfter uint64) *bundle.Row {
	return &bundle.Row{
		ID:                   id,
		EligibleAfter:        eligibleAfter,
		NextEligibilityDelay: 1,
		Bundle: &bundle.Bundle{
			SenderPublicKeys: []bundle.PublicKey{{}},
			Operations: []bundle.Operation{
				{Nonce: nonce, Actions: []bundle.Action{{Value: uint256.NewInt(1)}}},
			},
		},
	}
}
