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

	"github.com/JekaMas/workerpool"
	"github.com/ethereum/go-ethereum/log"
)

// taskPool is an explicit, trackable collection of background tasks (§9:
// "implement it as an explicit tracked collection with a blocking drain();
// do not rely on runtime-global task lists"), built on the teacher's
// worker-pool dependency instead of a bare goroutine-per-task fire-and-forget.
type taskPool struct {
	wp *workerpool.WorkerPool

	mu       sync.Mutex
	stopping bool
}

// newTaskPool creates a pool with the given worker concurrency.
func newTaskPool(workers int) *taskPool {
	return &taskPool{wp: workerpool.New(workers)}
}

// submit schedules fn to run on the pool. Once the pool has begun
// stopping, new submissions are silently dropped, per §4.4.10: "New tasks
// scheduled after stopping are dropped."
func (p *taskPool) submit(name string, fn func()) {
	p.mu.Lock()
	stopping := p.stopping
	p.mu.Unlock()
	if stopping {
		log.Debug("aggregator: dropping task submitted after stop", "task", name)
		return
	}
	p.wp.Submit(context.Background(), func() error {
		defer func() {
			if r := recover(); r != nil {
				log.Error("aggregator: background task panicked", "task", name, "panic", r)
			}
		}()
		fn()
		return nil
	}, 0)
}

// drain marks the pool as stopping and blocks until every submitted task
// (including ones already queued) has finished.
func (p *taskPool) drain() {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()
	p.wp.StopWait()
}
