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
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/rewardmodel"
)

func richModel() *rewardmodel.Model {
	// Gas/byte cost per bundle (gasPerAction=100, bytesPerAction=10) times
	// PerGas=1/PerByte=1 is 110/bundle; give every bundle far more reward
	// than that so packing/overflow tests aren't also exercising the
	// culprit search.
	return &rewardmodel.Model{PerGas: uint256.NewInt(1), PerByte: uint256.NewInt(1)}
}

func rowsWithReward(chain *fakeChain, n int, reward int64) []*bundle.Row {
	rows := make([]*bundle.Row, n)
	for i := range rows {
		rows[i] = sampleRow(uint64(i), uint64(i), 0)
		chain.rewardOf[rows[i].Bundle] = uint256.NewInt(uint64(reward))
	}
	return rows
}

func TestCreateAggregateBundleHappyBatch(t *testing.T) {
	chain := linearChain(100, 10)
	rows := rowsWithReward(chain, 4, 1000)
	unconfirmed := map[uint64]bool{}
	var failed []uint64

	agg, ids, err := createAggregateBundle(context.Background(), chain, richModel(), rows, unconfirmed, 64, 0, func(r *bundle.Row, _ uint64) { failed = append(failed, r.ID) })
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Equal(t, []uint64{0, 1, 2, 3}, ids)
	require.Equal(t, 4, agg.CountActions())
}

func TestCreateAggregateBundleOverflowSplitsAcrossCalls(t *testing.T) {
	chain := linearChain(100, 10)
	rows := rowsWithReward(chain, 20, 1000)
	unconfirmed := map[uint64]bool{}
	var failed []uint64
	onFail := func(r *bundle.Row, _ uint64) { failed = append(failed, r.ID) }

	agg1, ids1, err := createAggregateBundle(context.Background(), chain, richModel(), rows, unconfirmed, 16, 0, onFail)
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Len(t, ids1, 16)
	require.Equal(t, 16, agg1.CountActions())

	// The next tryAggregating/runSubmission pass re-queries eligible rows,
	// which here is simply "the rows the first pass didn't touch".
	agg2, ids2, err := createAggregateBundle(context.Background(), chain, richModel(), rows[16:], unconfirmed, 16, 0, onFail)
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Len(t, ids2, 4)
	require.Equal(t, 4, agg2.CountActions())
}

func TestCreateAggregateBundleSinglePoisoner(t *testing.T) {
	chain := linearChain(100, 10)
	rows := rowsWithReward(chain, 5, 1000)
	// Bundle at index 2 declares zero reward: its own processBundle call
	// still succeeds, but it pays nothing, so it cannot cover its share.
	chain.rewardOf[rows[2].Bundle] = new(uint256.Int)
	unconfirmed := map[uint64]bool{}
	var failedRows []*bundle.Row
	onFail := func(r *bundle.Row, currentBlock uint64) { failedRows = append(failedRows, r) }

	agg, ids, err := createAggregateBundle(context.Background(), chain, richModel(), rows, unconfirmed, 64, 7, onFail)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, ids)
	require.Equal(t, 2, agg.CountActions())
	require.Len(t, failedRows, 1)
	require.Equal(t, uint64(2), failedRows[0].ID)

	// The rows beyond the culprit are not lost: a later pass over what's
	// left of the eligible list (here, {3,4}) picks them up in full.
	agg2, ids2, err := createAggregateBundle(context.Background(), chain, richModel(), rows[3:], unconfirmed, 64, 7, onFail)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 4}, ids2)
	require.Equal(t, 2, agg2.CountActions())
}

func TestCreateAggregateBundleEmptyInputReturnsNothing(t *testing.T) {
	chain := linearChain(100, 10)
	agg, ids, err := createAggregateBundle(context.Background(), chain, richModel(), nil, map[uint64]bool{}, 64, 0, func(*bundle.Row, uint64) {})
	require.NoError(t, err)
	require.Nil(t, agg)
	require.Nil(t, ids)
}

func TestPackRowsForcesOversizeSingleRowRatherThanStarve(t *testing.T) {
	chain := newFakeChain()
	rows := rowsWithReward(chain, 1, 1000)
	rows[0].Bundle.Operations = append(rows[0].Bundle.Operations, rows[0].Bundle.Operations[0])
	rows[0].Bundle.SenderPublicKeys = append(rows[0].Bundle.SenderPublicKeys, rows[0].Bundle.SenderPublicKeys[0])
	require.Equal(t, 2, rows[0].Bundle.CountActions())

	batch := packRows(rows, map[uint64]bool{}, 1) // cap smaller than the row's own size
	require.Len(t, batch, 1)
}
