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

	"github.com/ethereum/go-ethereum/log"

	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/table"
)

// submitAggregateBundle implements §4.4.9. Back-pressure is a weighted
// semaphore (§9's Open Question decision) instead of a sleep-poll loop:
// Acquire blocks until enough of the maxUnconfirmedAggregations·
// maxAggregationSize action budget frees up, and Release wakes the next
// waiter the instant a submission resolves.
func (s *Service) submitAggregateBundle(ctx context.Context, agg *bundle.Bundle, rowIDs []uint64) {
	weight := int64(agg.CountActions())
	if weight > s.semCap {
		// A single forced-oversize row (packRows's fallback) can exceed the
		// configured cap; clamp what is reserved/released so Acquire can
		// still be satisfied, while still applying real back-pressure.
		weight = s.semCap
	}

	if !s.sem.TryAcquire(weight) {
		s.feed.Post(WaitingUnconfirmedSpaceEvent{})
		if err := s.sem.Acquire(ctx, weight); err != nil {
			log.Error("aggregator: back-pressure wait aborted", "err", err)
			return
		}
	}

	s.mu.Lock()
	s.nextSubmissionID++
	submissionID := s.nextSubmissionID
	s.unconfirmedBundles[submissionID] = agg
	for _, id := range rowIDs {
		s.unconfirmedRowIDs[id] = true
	}
	s.unconfirmedActionCount += int(weight)
	s.mu.Unlock()

	s.tasks.submit("submit-aggregate", func() {
		s.runAggregateSubmission(submissionID, agg, rowIDs, weight)
	})
}

// runAggregateSubmission broadcasts agg and, regardless of outcome, always
// releases the capacity reserved for it.
func (s *Service) runAggregateSubmission(submissionID uint64, agg *bundle.Bundle, rowIDs []uint64, weight int64) {
	ctx := context.Background()
	release := func() {
		s.sem.Release(weight)
		s.mu.Lock()
		delete(s.unconfirmedBundles, submissionID)
		for _, id := range rowIDs {
			delete(s.unconfirmedRowIDs, id)
		}
		s.unconfirmedActionCount -= int(weight)
		s.confirmCond.Broadcast()
		s.mu.Unlock()
	}

	receipt, err := s.chain.SubmitBundle(ctx, agg, s.cfg.SubmissionTimeout)
	if err != nil {
		s.feed.Post(SubmissionFailedEvent{RowIDs: rowIDs, Err: err})
		release()
		return
	}

	if err := s.qg.Do(func() error {
		for _, id := range rowIDs {
			if err := s.table.Remove(id); err != nil && err != table.ErrNotFound {
				return err
			}
		}
		return nil
	}); err != nil {
		log.Error("aggregator: failed to remove confirmed rows from the table", "err", err)
	}

	s.feed.Post(SubmissionConfirmedEvent{RowIDs: rowIDs, BlockNumber: receipt.BlockNumber})
	release()
}
