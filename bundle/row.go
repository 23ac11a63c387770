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

package bundle

// Row is a persisted bundle awaiting aggregation. ID is assigned on
// insertion and is monotonically increasing, which doubles as the FIFO
// ordering key for rows sharing an EligibleAfter block.
type Row struct {
	ID                   uint64
	Bundle               *Bundle
	EligibleAfter        uint64
	NextEligibilityDelay uint64
}

// Eligible reports whether the row may be picked up for aggregation at the
// given block number.
func (r *Row) Eligible(blockNumber uint64) bool {
	return blockNumber >= r.EligibleAfter
}

// Backoff doubles the row's eligibility delay and pushes EligibleAfter out
// from currentBlock. The caller is responsible for checking
// NextEligibilityDelay against the configured maximum first and removing
// the row instead of backing it off when it is exceeded.
func (r *Row) Backoff(currentBlock uint64) {
	if r.NextEligibilityDelay < 1 {
		r.NextEligibilityDelay = 1
	}
	r.EligibleAfter = currentBlock + r.NextEligibilityDelay
	r.NextEligibilityDelay *= 2
}
