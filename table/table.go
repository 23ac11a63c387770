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

// Package table implements the Bundle Table (§4.1, C2): the durable,
// indexed store of bundle rows awaiting aggregation. It is grounded on
// core/txpool/blobpool's limbo, the teacher's own small billy-backed
// store, generalized from "blobs pending finality" to "bundles pending
// aggregation" and given an eligibility-ordered index on top.
package table

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/billy"
	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/internal/prque"
)

// ErrNotFound is returned when a row id is not present in the table.
var ErrNotFound = errors.New("table: row not found")

// maxRowSize bounds a single stored row; billy requires a fixed slotter
// schedule, so rows are grouped into size buckets the same way blobpool
// buckets blob transactions by blob count.
const maxRowSize = 1 << 20 // 1 MiB; a bundle this large is already pathological

// minRowBucket is the smallest billy slot size; most rows are a handful of
// BLS-aggregated operations and comfortably fit the first bucket.
const minRowBucket = 1 << 9

// newSlotter builds a doubling bucket schedule up to max, the same shape
// blobpool's own slotter uses to size its billy store.
func newSlotter(max uint32) billy.SlotSizeFn {
	next := uint32(minRowBucket)
	return func() (uint32, bool) {
		size := next
		done := size >= max
		if done {
			size = max
		}
		next *= 2
		return size, done
	}
}

// storedRow is the RLP-serializable representation of bundle.Row. RLP has
// no notion of a pointer-vs-value Bundle, so it is flattened into the
// envelope written to disk.
type storedRow struct {
	ID                   uint64
	Bundle               *bundle.Bundle
	EligibleAfter        uint64
	NextEligibilityDelay uint64
}

// Table is the Bundle Table's public surface: durable storage for rows
// plus an eligibility-ordered view for the aggregation loop to scan.
type Table interface {
	// Add inserts a new row and returns its assigned id.
	Add(b *bundle.Bundle, eligibleAfter uint64) (uint64, error)
	// Get returns the row with the given id.
	Get(id uint64) (*bundle.Row, error)
	// Update persists changes to a row already in the table (e.g. after
	// Backoff is applied to it).
	Update(row *bundle.Row) error
	// Remove deletes a row from the table.
	Remove(id uint64) error
	// FindEligible returns up to limit rows eligible at blockNumber, in
	// ascending (EligibleAfter, ID) order, without removing them.
	FindEligible(blockNumber uint64, limit int) []*bundle.Row
	// Len reports how many rows are currently stored.
	Len() int
	// Close releases the underlying store.
	Close() error
}

// table is the billy-backed Table implementation. Row ids are whatever
// billy.Database.Put assigns; the table never invents its own numbering,
// mirroring blobpool/limbo.go's use of the store's id as the only identity
// a row has.
type table struct {
	mu    sync.RWMutex
	store billy.Database
	byID  map[uint64]*storedRow
	index *prque.Prque[uint64] // priority = -(eligibleAfter, id), ascending order out of Pop
}

// priorityKey packs (eligibleAfter, id) into a single int64. internal/prque
// pops the greatest priority first, so the packed key is negated: the row
// with the lowest (eligibleAfter, id) then comes out of the queue first.
func priorityKey(eligibleAfter, id uint64) int64 {
	// id is expected to stay well under 1<<24 rows outstanding at once;
	// collisions beyond that only degrade ordering among equal-eligibility
	// rows, which FIFO-by-id already approximates via insertion order.
	return -(int64(eligibleAfter)<<24 | int64(id&0xFFFFFF))
}

// Open opens (or creates) a bundle table rooted at datadir.
func Open(datadir string) (Table, error) {
	t := &table{
		byID:  make(map[uint64]*storedRow),
		index: prque.New[uint64](nil),
	}

	var fails []uint64
	onData := func(id uint64, size uint32, data []byte) {
		row := new(storedRow)
		if err := rlp.DecodeBytes(data, row); err != nil {
			log.Error("table: dropping undecodable row", "id", id, "err", err)
			fails = append(fails, id)
			return
		}
		row.ID = id
		t.byID[id] = row
		t.index.Push(id, priorityKey(row.EligibleAfter, row.ID))
	}

	store, err := billy.Open(billy.Options{Path: datadir}, newSlotter(maxRowSize), onData)
	if err != nil {
		return nil, fmt.Errorf("table: open billy store: %w", err)
	}
	t.store = store

	for _, id := range fails {
		if err := t.store.Delete(id); err != nil {
			t.store.Close()
			return nil, err
		}
	}
	return t, nil
}

func (t *table) Add(b *bundle.Bundle, eligibleAfter uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := &storedRow{Bundle: b, EligibleAfter: eligibleAfter, NextEligibilityDelay: 1}
	data, err := rlp.EncodeToBytes(row)
	if err != nil {
		return 0, fmt.Errorf("table: encode row: %w", err)
	}
	id, err := t.store.Put(data)
	if err != nil {
		return 0, err
	}
	row.ID = id
	t.byID[id] = row
	t.index.Push(id, priorityKey(row.EligibleAfter, row.ID))
	return id, nil
}

func (t *table) Get(id uint64) (*bundle.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return toRow(row), nil
}

// Update persists a row's mutated fields. Because billy rows are immutable
// once written, this deletes the old slot and writes a fresh one, assigning
// the row a new id; the index and the returned row's ID field up to date so
// the caller can see it.
func (t *table) Update(row *bundle.Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.byID[row.ID]
	if !ok {
		return ErrNotFound
	}
	updated := &storedRow{
		Bundle:               row.Bundle,
		EligibleAfter:        row.EligibleAfter,
		NextEligibilityDelay: row.NextEligibilityDelay,
	}
	data, err := rlp.EncodeToBytes(updated)
	if err != nil {
		return fmt.Errorf("table: encode row %d: %w", row.ID, err)
	}
	newID, err := t.store.Put(data)
	if err != nil {
		return err
	}
	if err := t.store.Delete(old.ID); err != nil {
		t.store.Delete(newID)
		return err
	}
	updated.ID = newID
	delete(t.byID, old.ID)
	t.removeFromIndex(old.ID, old.EligibleAfter)
	t.byID[newID] = updated
	t.index.Push(newID, priorityKey(updated.EligibleAfter, newID))
	row.ID = newID
	return nil
}

func (t *table) Remove(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := t.store.Delete(id); err != nil {
		return err
	}
	delete(t.byID, id)
	t.removeFromIndex(id, row.EligibleAfter)
	return nil
}

func (t *table) FindEligible(blockNumber uint64, limit int) []*bundle.Row {
	// The index is popped and re-pushed below, so this takes the write lock.
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*bundle.Row
	// internal/prque exposes no non-destructive iteration, so snapshot and
	// restore the id order by popping and re-pushing; this keeps FindEligible
	// read-only from the caller's perspective at the cost of an O(n) shuffle,
	// acceptable given the table is expected to hold at most a few thousand
	// rows at a time.
	var popped []struct {
		id       uint64
		priority int64
	}
	for t.index.Size() > 0 {
		id, priority := t.index.Pop()
		popped = append(popped, struct {
			id       uint64
			priority int64
		}{id, priority})
		row := t.byID[id]
		if row != nil && row.EligibleAfter <= blockNumber && (limit <= 0 || len(out) < limit) {
			out = append(out, toRow(row))
		}
	}
	for _, p := range popped {
		t.index.Push(p.id, p.priority)
	}
	return out
}

func (t *table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

func (t *table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Close()
}

func (t *table) removeFromIndex(id, eligibleAfter uint64) {
	target := priorityKey(eligibleAfter, id)
	var popped []struct {
		id       uint64
		priority int64
	}
	for t.index.Size() > 0 {
		gotID, priority := t.index.Pop()
		if gotID == id && priority == target {
			break
		}
		popped = append(popped, struct {
			id       uint64
			priority int64
		}{gotID, priority})
	}
	for _, p := range popped {
		t.index.Push(p.id, p.priority)
	}
}

func toRow(s *storedRow) *bundle.Row {
	return &bundle.Row{
		ID:                   s.ID,
		Bundle:               s.Bundle,
		EligibleAfter:        s.EligibleAfter,
		NextEligibilityDelay: s.NextEligibilityDelay,
	}
}
