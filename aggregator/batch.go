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
	"errors"

	"github.com/holiman/uint256"
	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/rewardmodel"
)

// RewardResult is one bundle's measured contribution within a staged
// sequence: whether its processBundle call (and the measurement around it)
// succeeded, and the reward-token balance delta attributable to it.
type RewardResult struct {
	Success bool
	Reward  *uint256.Int
}

// combineAggregate folds rows onto previousAggregate, which may be nil.
// Folding zero bundles onto a nil previousAggregate is an error: there is
// nothing to aggregate.
func combineAggregate(previousAggregate *bundle.Bundle, rows []*bundle.Bundle) (*bundle.Bundle, error) {
	if previousAggregate == nil && len(rows) == 0 {
		return nil, errors.New("aggregator: cannot combine zero bundles")
	}
	if len(rows) == 0 {
		return previousAggregate, nil
	}
	all := make([]*bundle.Bundle, 0, len(rows)+1)
	if previousAggregate != nil {
		all = append(all, previousAggregate)
	}
	all = append(all, rows...)
	return bundle.Aggregate(all)
}

// packRows scans rows in order, skipping any already reserved by an
// unconfirmed submission, and returns the contiguous prefix that fits
// within maxActions total actions (§4.4.6). A single row whose own action
// count already exceeds maxActions is force-included alone rather than
// starving forever.
func packRows(rows []*bundle.Row, unconfirmed map[uint64]bool, maxActions int) []*bundle.Row {
	var batch []*bundle.Row
	actionCount := 0
	for _, r := range rows {
		if unconfirmed[r.ID] {
			continue
		}
		n := r.Bundle.CountActions()
		if len(batch) == 0 {
			batch = append(batch, r)
			actionCount = n
			if n > maxActions {
				break
			}
			continue
		}
		if actionCount+n > maxActions {
			break
		}
		batch = append(batch, r)
		actionCount += n
	}
	return batch
}

// remainderAfterRow returns the suffix of rows strictly after the row with
// the given id, re-deriving the position explicitly rather than trusting
// an index arithmetic coupled to how many rows were consumed (§9's flagged
// caveat about remainder slicing).
func remainderAfterRow(rows []*bundle.Row, id uint64) []*bundle.Row {
	for i, r := range rows {
		if r.ID == id {
			return rows[i+1:]
		}
	}
	return nil
}

// augmentAggregateBundle packs a size-bounded prefix of rows, measures each
// packed bundle's reward atop previousAggregate in one atomic simulation,
// and localizes the first bundle (if any) that failed to cover its own
// required reward. It returns the aggregate built from the rows that did
// pay their way, the rows included in that aggregate (the culprit, when
// present, is not among them), the culprit itself (nil if none), and the
// rows still unconsidered.
func augmentAggregateBundle(ctx context.Context, chain ChainAdapter, reward *rewardmodel.Model, previousAggregate *bundle.Bundle, rows []*bundle.Row, unconfirmed map[uint64]bool, maxActions int) (newAggregate *bundle.Bundle, consumed []*bundle.Row, culprit *bundle.Row, remaining []*bundle.Row, err error) {
	batch := packRows(rows, unconfirmed, maxActions)
	if len(batch) == 0 {
		return previousAggregate, nil, nil, rows, nil
	}

	bundles := make([]*bundle.Bundle, len(batch))
	for i, r := range batch {
		bundles[i] = r.Bundle
	}
	sim, err := chain.CallStaticSequenceWithMeasure(ctx, previousAggregate, bundles)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rewards := make([]RewardResult, len(batch))
	for i := range batch {
		success, r := sim.BundleReward(i)
		rewards[i] = RewardResult{Success: success, Reward: r}
	}

	culpritIdx, found, err := findFirstFailureIndex(ctx, chain, reward, previousAggregate, batch, rewards)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if !found {
		agg, err := combineAggregate(previousAggregate, bundles)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return agg, batch, nil, remainderAfterRow(rows, batch[len(batch)-1].ID), nil
	}

	successRows := batch[:culpritIdx]
	successBundles := bundles[:culpritIdx]
	agg, err := combineAggregate(previousAggregate, successBundles)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	culpritRow := batch[culpritIdx]
	return agg, successRows, culpritRow, remainderAfterRow(rows, culpritRow.ID), nil
}

// createAggregateBundle runs a single packing-and-localization pass over
// eligibleRows (§4.4.5). When that pass turns up a culprit, onFailedRow is
// invoked to reschedule or abandon it and only the clean prefix ahead of it
// is returned; rows beyond the culprit are left for the next tryAggregating
// pass, which runSubmission unconditionally schedules on return. This
// matches the worked "single poisoner" scenario, where the first submission
// confirms only the rows before the culprit and a later aggregate picks up
// the rest, rather than folding both sides of a removed culprit into one
// submission.
func createAggregateBundle(ctx context.Context, chain ChainAdapter, reward *rewardmodel.Model, rows []*bundle.Row, unconfirmed map[uint64]bool, maxActions int, currentBlock uint64, onFailedRow func(row *bundle.Row, currentBlock uint64)) (*bundle.Bundle, []uint64, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	agg, consumed, culprit, _, err := augmentAggregateBundle(ctx, chain, reward, nil, rows, unconfirmed, maxActions)
	if err != nil {
		return nil, nil, err
	}
	if culprit != nil {
		onFailedRow(culprit, currentBlock)
	}
	if len(consumed) == 0 {
		return nil, nil, nil
	}
	ids := make([]uint64, len(consumed))
	for i, r := range consumed {
		ids[i] = r.ID
	}
	return agg, ids, nil
}
