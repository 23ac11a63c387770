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

// BundleAddedEvent is posted once a bundle has been admitted and persisted.
type BundleAddedEvent struct {
	PublicKeyShorts []string
}

// WaitingUnconfirmedSpaceEvent is posted each time submitAggregateBundle
// blocks on back-pressure.
type WaitingUnconfirmedSpaceEvent struct{}

// SubmissionConfirmedEvent is posted once a submitted aggregate's
// transaction is observed mined.
type SubmissionConfirmedEvent struct {
	RowIDs      []uint64
	BlockNumber uint64
}

// SubmissionFailedEvent is posted when a submission's transaction never
// confirms within its timeout, or the chain adapter returns an error.
type SubmissionFailedEvent struct {
	RowIDs []uint64
	Err    error
}
