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
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/chainadapter"
	"github.com/ri-dev-git/bls-wallet/config"
	"github.com/ri-dev-git/bls-wallet/table"
)

func newTestService(t *testing.T, chain *fakeChain, mutate func(*config.Config)) (*Service, table.Table) {
	t.Helper()
	tbl, err := table.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Close() })

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := NewService(cfg, chain, tbl)
	require.NoError(t, err)
	t.Cleanup(svc.Stop)
	return svc, tbl
}

func oneActionBundle() *bundle.Bundle {
	return &bundle.Bundle{
		SenderPublicKeys: []bundle.PublicKey{{}},
		Operations: []bundle.Operation{
			{Nonce: 0, Actions: []bundle.Action{{Value: uint256.NewInt(1)}}},
		},
	}
}

func TestAddRejectsShapeMismatch(t *testing.T) {
	chain := linearChain(100, 10)
	svc, _ := newTestService(t, chain, nil)

	b := &bundle.Bundle{
		SenderPublicKeys: []bundle.PublicKey{{}, {}},
		Operations:       []bundle.Operation{{Nonce: 0}},
	}
	failures, err := svc.Add(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, bundle.FailureInvalidFormat, failures[0].Kind)
}

func TestHandleFailedRowBacksOffThenRemoves(t *testing.T) {
	chain := linearChain(100, 10)
	svc, tbl := newTestService(t, chain, func(c *config.Config) { c.MaxEligibilityDelay = 4 })

	id, err := tbl.Add(oneActionBundle(), 0)
	require.NoError(t, err)
	row, err := tbl.Get(id)
	require.NoError(t, err)

	svc.handleFailedRow(row, 0)
	require.Equal(t, uint64(2), row.NextEligibilityDelay)

	svc.handleFailedRow(row, 1)
	require.Equal(t, uint64(4), row.NextEligibilityDelay)

	svc.handleFailedRow(row, 3)
	require.Equal(t, uint64(8), row.NextEligibilityDelay)

	// NextEligibilityDelay is now 8 > maxEligibilityDelay(4): abandoned.
	svc.handleFailedRow(row, 7)
	_, err = tbl.Get(row.ID)
	require.ErrorIs(t, err, table.ErrNotFound)
}

func TestServiceAggregatesAndConfirmsSeededRows(t *testing.T) {
	chain := linearChain(100, 10)
	svc, tbl := newTestService(t, chain, func(c *config.Config) {
		c.MaxAggregationSize = 10
		c.MaxAggregationDelayMillis = 20
		c.BundleQueryLimit = 100
	})

	for i := 0; i < 3; i++ {
		b := oneActionBundle()
		b.Operations[0].Nonce = uint64(i)
		chain.rewardOf[b] = uint256.NewInt(1_000_000)
		_, err := tbl.Add(b, 0)
		require.NoError(t, err)
	}

	svc.tryAggregating(context.Background())

	require.Eventually(t, func() bool { return tbl.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestSubmitAggregateBundleAppliesBackpressure(t *testing.T) {
	chain := linearChain(100, 10)
	calls := make(chan struct{}, 4)
	proceed := make(chan struct{})
	chain.submitFn = func(ctx context.Context, agg *bundle.Bundle, timeout time.Duration) (*chainadapter.Receipt, error) {
		calls <- struct{}{}
		<-proceed
		return &chainadapter.Receipt{Success: true}, nil
	}

	svc, _ := newTestService(t, chain, func(c *config.Config) {
		c.MaxUnconfirmedAggregations = 1
		c.MaxAggregationSize = 1
	})

	sub := svc.Subscribe(WaitingUnconfirmedSpaceEvent{})
	defer sub.Unsubscribe()

	svc.submitAggregateBundle(context.Background(), oneActionBundle(), []uint64{1})
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the chain adapter")
	}

	done := make(chan struct{})
	go func() {
		svc.submitAggregateBundle(context.Background(), oneActionBundle(), []uint64{2})
		close(done)
	}()

	select {
	case ev := <-sub.Chan():
		_, ok := ev.(WaitingUnconfirmedSpaceEvent)
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a waiting-unconfirmed-space event while capacity was exhausted")
	}

	select {
	case <-done:
		t.Fatal("second submission should still be blocked on back-pressure")
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second submission never proceeded after capacity was released")
	}
}
