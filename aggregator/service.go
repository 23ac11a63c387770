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

// Package aggregator implements the Bundle Service (§4.4, C4): the
// component that admits signed bundles, aggregates eligible ones into a
// single BLS-combined submission once a debounced trigger fires, localizes
// and reschedules any bundle that fails to cover its share of the reward,
// and submits the result on-chain under a back-pressure cap on how many
// actions (maxUnconfirmedAggregations·maxAggregationSize) may be
// outstanding in unconfirmed aggregates at once.
package aggregator

import (
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/semaphore"

	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/config"
	"github.com/ri-dev-git/bls-wallet/querygroup"
	"github.com/ri-dev-git/bls-wallet/rewardmodel"
	"github.com/ri-dev-git/bls-wallet/submissiontimer"
	"github.com/ri-dev-git/bls-wallet/table"
)

const (
	taskPoolWorkers   = 8
	blockPollInterval = time.Second
	warmUpDelay       = 200 * time.Millisecond
)

// Service is the running Bundle Service.
type Service struct {
	cfg    *config.Config
	chain  ChainAdapter
	reward *rewardmodel.Model
	table  table.Table
	qg     *querygroup.Group
	timer  *submissiontimer.Timer
	tasks  *taskPool
	feed   *event.TypeMux // zero value is ready to use; no constructor in this version
	sem    *semaphore.Weighted
	semCap int64

	mu                     sync.Mutex
	unconfirmedBundles     map[uint64]*bundle.Bundle
	unconfirmedRowIDs      map[uint64]bool
	unconfirmedActionCount int
	submissionsInProgress  bool
	nextSubmissionID       uint64
	confirmCond            *sync.Cond

	stopping atomic.Bool
	stopped  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewService builds a Service bound to tbl and chain, and starts its
// block-tick background loop.
func NewService(cfg *config.Config, chain ChainAdapter, tbl table.Table) (*Service, error) {
	perGas, err := cfg.Rewards.PerGasUint256()
	if err != nil {
		return nil, err
	}
	perByte, err := cfg.Rewards.PerByteUint256()
	if err != nil {
		return nil, err
	}
	kind := rewardmodel.Native
	if cfg.Rewards.Kind == config.RewardToken {
		kind = rewardmodel.Token
	}
	model := &rewardmodel.Model{Kind: kind, TokenAddr: cfg.Rewards.Address(), PerGas: perGas, PerByte: perByte}

	semCap := int64(cfg.MaxUnconfirmedAggregations) * int64(cfg.MaxAggregationSize)
	s := &Service{
		cfg:                cfg,
		chain:              chain,
		reward:             model,
		table:              tbl,
		qg:                 querygroup.New(),
		tasks:              newTaskPool(taskPoolWorkers),
		feed:               &event.TypeMux{},
		sem:                semaphore.NewWeighted(semCap),
		semCap:             semCap,
		unconfirmedBundles: make(map[uint64]*bundle.Bundle),
		unconfirmedRowIDs:  make(map[uint64]bool),
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
	s.confirmCond = sync.NewCond(&s.mu)
	s.timer = submissiontimer.New(time.Duration(cfg.MaxAggregationDelayMillis)*time.Millisecond, s.scheduleRunSubmission)
	s.start()
	return s, nil
}

// Subscribe registers for the event types this service posts
// (BundleAddedEvent, WaitingUnconfirmedSpaceEvent, SubmissionConfirmedEvent,
// SubmissionFailedEvent).
func (s *Service) Subscribe(types ...interface{}) *event.TypeMuxSubscription {
	return s.feed.Subscribe(types...)
}

func (s *Service) start() {
	go s.blockTickLoop()
}

// Stop implements §4.4.10: stop the block-tick loop, drain every in-flight
// background task, and close the event feed. New tasks submitted after
// stopping begins are dropped by the task pool.
func (s *Service) Stop() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.timer.Clear()
	s.tasks.drain()
	s.feed.Stop()
	s.stopped.Store(true)
}

// waitForConfirmations blocks until every currently unconfirmed aggregate
// has either been confirmed or abandoned. It is a test seam, not part of
// the production control flow.
func (s *Service) waitForConfirmations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.unconfirmedBundles) > 0 {
		s.confirmCond.Wait()
	}
}

func (s *Service) blockTickLoop() {
	defer close(s.doneCh)
	select {
	case <-time.After(warmUpDelay):
	case <-s.stopCh:
		return
	}

	ticker := time.NewTicker(blockPollInterval)
	defer ticker.Stop()
	var lastBlock uint64
	seen := false
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			block, err := s.chain.BlockNumber(context.Background())
			if err != nil {
				log.Warn("aggregator: block-tick failed to read head", "err", err)
				continue
			}
			if !seen || block != lastBlock {
				seen, lastBlock = true, block
				s.scheduleTryAggregating()
			}
		}
	}
}

func (s *Service) scheduleTryAggregating() {
	s.tasks.submit("try-aggregating", func() { s.tryAggregating(context.Background()) })
}

func (s *Service) scheduleRunSubmission() {
	s.tasks.submit("run-submission", func() { s.runSubmission(context.Background()) })
}

// Add implements §4.4.1: admission. A non-empty failure slice means the
// bundle was rejected and not persisted; a nil failure slice with a nil
// error means it was persisted.
func (s *Service) Add(ctx context.Context, b *bundle.Bundle) ([]bundle.TransactionFailure, error) {
	if err := b.CheckShape(); err != nil {
		return []bundle.TransactionFailure{{Kind: bundle.FailureInvalidFormat, OperationIndex: -1, Message: err.Error()}}, nil
	}
	if err := bundle.VerifyAggregate(b); err != nil {
		return []bundle.TransactionFailure{{Kind: bundle.FailureInvalidSignature, OperationIndex: -1, Message: err.Error()}}, nil
	}
	failures, err := s.chain.CheckNonces(ctx, b)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return failures, nil
	}

	err = s.qg.Do(func() error {
		currentBlock, err := s.chain.BlockNumber(ctx)
		if err != nil {
			return err
		}
		_, err = s.table.Add(b, currentBlock)
		return err
	})
	if err != nil {
		return nil, err
	}

	shorts := make([]string, len(b.SenderPublicKeys))
	for i, pk := range b.SenderPublicKeys {
		shorts[i] = hex.EncodeToString(pk[:8])
	}
	s.feed.Post(BundleAddedEvent{PublicKeyShorts: shorts})
	s.scheduleTryAggregating()
	return nil, nil
}

// tryAggregating implements §4.4.2.
func (s *Service) tryAggregating(ctx context.Context) {
	s.mu.Lock()
	inProgress := s.submissionsInProgress
	s.mu.Unlock()
	if inProgress {
		return
	}

	actionCount := 0
	err := s.qg.Do(func() error {
		currentBlock, err := s.chain.BlockNumber(ctx)
		if err != nil {
			return err
		}
		rows := s.table.FindEligible(currentBlock, s.cfg.BundleQueryLimit)
		unconfirmed := s.snapshotUnconfirmedRowIDs()
		for _, r := range rows {
			if unconfirmed[r.ID] {
				continue
			}
			actionCount += r.Bundle.CountActions()
		}
		return nil
	})
	if err != nil {
		log.Error("aggregator: tryAggregating failed", "err", err)
		return
	}

	switch {
	case actionCount >= s.cfg.MaxAggregationSize:
		s.timer.Trigger()
	case actionCount > 0:
		s.timer.NotifyActive()
	default:
		s.timer.Clear()
	}
}

// runSubmission implements §4.4.4.
func (s *Service) runSubmission(ctx context.Context) {
	s.mu.Lock()
	if s.submissionsInProgress {
		s.mu.Unlock()
		return
	}
	s.submissionsInProgress = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.submissionsInProgress = false
		s.mu.Unlock()
		s.scheduleTryAggregating()
	}()

	var agg *bundle.Bundle
	var includedIDs []uint64
	err := s.qg.Do(func() error {
		currentBlock, err := s.chain.BlockNumber(ctx)
		if err != nil {
			return err
		}
		rows := s.table.FindEligible(currentBlock, s.cfg.BundleQueryLimit)
		unconfirmed := s.snapshotUnconfirmedRowIDs()
		var eligible []*bundle.Row
		for _, r := range rows {
			if !unconfirmed[r.ID] {
				eligible = append(eligible, r)
			}
		}
		a, ids, err := createAggregateBundle(ctx, s.chain, s.reward, eligible, unconfirmed, s.cfg.MaxAggregationSize, currentBlock, s.handleFailedRow)
		if err != nil {
			return err
		}
		agg, includedIDs = a, ids
		return nil
	})
	if err != nil {
		log.Error("aggregator: runSubmission failed to build an aggregate", "err", err)
		return
	}
	if agg == nil || len(includedIDs) == 0 {
		return
	}
	s.submitAggregateBundle(ctx, agg, includedIDs)
}

// handleFailedRow implements §4.4.8. It must be called from within the
// query group, as createAggregateBundle already is.
func (s *Service) handleFailedRow(row *bundle.Row, currentBlock uint64) {
	s.mu.Lock()
	delete(s.unconfirmedRowIDs, row.ID)
	s.mu.Unlock()

	if row.NextEligibilityDelay > s.cfg.MaxEligibilityDelay {
		if err := s.table.Remove(row.ID); err != nil && err != table.ErrNotFound {
			log.Error("aggregator: failed to remove abandoned row", "id", row.ID, "err", err)
		}
		return
	}
	row.Backoff(currentBlock)
	if err := s.table.Update(row); err != nil {
		log.Error("aggregator: failed to back off row", "id", row.ID, "err", err)
	}
}

func (s *Service) snapshotUnconfirmedRowIDs() map[uint64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]bool, len(s.unconfirmedRowIDs))
	for id := range s.unconfirmedRowIDs {
		out[id] = true
	}
	return out
}
