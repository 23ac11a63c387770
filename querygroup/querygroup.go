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

// Package querygroup serializes all Bundle Table mutations (§4.1, C5)
// behind a single mutex, the same shape core/txpool's Reserver uses to
// serialize account reservations across subpools: one lock, a narrow
// critical section, metrics on contention.
package querygroup

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

var (
	waitTimer     = metrics.NewRegisteredTimer("aggregator/querygroup/wait", nil)
	holdTimer     = metrics.NewRegisteredTimer("aggregator/querygroup/hold", nil)
	inFlightGauge = metrics.NewRegisteredGauge("aggregator/querygroup/inflight", nil)
)

// Group serializes a transactional scope of table-mutating operations. Every
// admission, aggregation attempt, and submission bookkeeping step runs
// inside a single Group so that FindEligible, Add, Update and Remove never
// interleave across callers.
type Group struct {
	mu sync.Mutex
}

// New returns an empty query group.
func New() *Group {
	return &Group{}
}

// Do runs fn with exclusive access to the table, recording how long callers
// wait for the lock and how long they hold it.
func (g *Group) Do(fn func() error) error {
	start := time.Now()
	g.mu.Lock()
	waitTimer.UpdateSince(start)
	inFlightGauge.Inc(1)
	defer func() {
		inFlightGauge.Dec(1)
		g.mu.Unlock()
	}()

	held := time.Now()
	defer holdTimer.UpdateSince(held)
	return fn()
}
