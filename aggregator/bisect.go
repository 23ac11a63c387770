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

	"github.com/holiman/uint256"
	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/rewardmodel"
)

// findFirstFailureIndex localizes the first bundle in rows (staged, in
// order, atop previousAggregate) whose cumulative reward fails to cover the
// cumulative required reward of everything staged so far, given the
// per-bundle rewards already measured for rows (§4.4.7). It returns
// found=false when no bundle trips the per-bundle fast check and the whole
// staged sequence covers its cost; shorter prefixes are not checked then.
func findFirstFailureIndex(ctx context.Context, chain ChainAdapter, reward *rewardmodel.Model, previousAggregate *bundle.Bundle, rows []*bundle.Row, rewards []RewardResult) (culprit int, found bool, err error) {
	n := len(rows)

	checkFirstN := func(k int) (success bool, err error) {
		if k == 0 && previousAggregate == nil {
			// Nothing staged at all; trivially covers its (zero) cost.
			return true, nil
		}
		sum := new(uint256.Int)
		for i := 0; i < k; i++ {
			if rewards[i].Success {
				sum.Add(sum, rewards[i].Reward)
			}
		}
		bundles := make([]*bundle.Bundle, k)
		for i := 0; i < k; i++ {
			bundles[i] = rows[i].Bundle
		}
		agg, err := combineAggregate(previousAggregate, bundles)
		if err != nil {
			return false, err
		}
		gas, err := chain.EstimateGas(ctx, agg)
		if err != nil {
			return false, err
		}
		data, err := chain.EncodeCallData(ctx, agg)
		if err != nil {
			return false, err
		}
		required := reward.Required(gas, len(data))
		return sum.Cmp(required) >= 0, nil
	}

	bisect := func(left, right int) (int, bool, error) {
		for right-left > 1 {
			mid := (left + right) / 2
			ok, err := checkFirstN(mid)
			if err != nil {
				return 0, false, err
			}
			if ok {
				left = mid
			} else {
				right = mid
			}
		}
		return left, true, nil
	}

	fastFailureIndex := -1
	for i := 0; i < n; i++ {
		if !rewards[i].Success {
			fastFailureIndex = i
			break
		}
		data, err := chain.EncodeCallData(ctx, rows[i].Bundle)
		if err != nil {
			return 0, false, err
		}
		if rewards[i].Reward.Cmp(reward.LowerBound(len(data))) < 0 {
			fastFailureIndex = i
			break
		}
	}

	if fastFailureIndex >= 0 {
		ok, err := checkFirstN(fastFailureIndex)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return fastFailureIndex, true, nil
		}
		return bisect(0, fastFailureIndex)
	}

	ok, err := checkFirstN(n)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, false, nil
	}
	return bisect(0, n)
}
