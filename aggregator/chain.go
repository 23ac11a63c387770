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
	"time"

	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/ri-dev-git/bls-wallet/chainadapter"
)

// ChainAdapter is the Bundle Service's view of C1 (§4.2), narrowed to an
// interface so the aggregation engine can be driven by a fake chain in
// tests instead of a live *chainadapter.Adapter.
type ChainAdapter interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CheckNonces(ctx context.Context, b *bundle.Bundle) ([]bundle.TransactionFailure, error)
	CallStaticSequenceWithMeasure(ctx context.Context, previousAggregate *bundle.Bundle, bundles []*bundle.Bundle) (*chainadapter.SimulationResult, error)
	EstimateGas(ctx context.Context, b *bundle.Bundle) (uint64, error)
	EncodeCallData(ctx context.Context, b *bundle.Bundle) ([]byte, error)
	SubmitBundle(ctx context.Context, agg *bundle.Bundle, timeout time.Duration) (*chainadapter.Receipt, error)
}
