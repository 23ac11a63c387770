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

// Package chainadapter is the thin, testable facade over the blockchain
// that the aggregator calls through. It owns nothing about consensus,
// mempool policy, or the wire format of the chain client; it only turns
// aggregator-level questions ("what would this bundle cost", "submit this
// aggregate") into calls against a ContractBackend.
package chainadapter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CallMsg is a single contract call, the same shape bind.ContractBackend's
// callers build, trimmed to what the adapter needs.
type CallMsg struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Receipt is the minimal result the adapter needs back from a submitted
// transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Success     bool
}

// ContractBackend is the set of chain operations the adapter is built on,
// grounded on accounts/abi/bind.ContractBackend — the teacher's own facade
// for "operate on a contract without caring how the RPC transport works".
// Implementations are expected to wrap an *ethclient.Client or an RPC
// client talking to the node; RPCBackend is this package's implementation
// over an *ethclient.Client.
type ContractBackend interface {
	// BlockNumber returns the current head block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// PendingNonceAt returns the next nonce the aggregator's own account
	// should use, with all of its own pending transactions applied.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// CallContract executes a single read-only call against the current
	// head state.
	CallContract(ctx context.Context, msg CallMsg) ([]byte, error)

	// CallContractAtomicSequence executes calls in order against one
	// consistent state snapshot, such that call i observes the state
	// effects of calls 0..i-1. This is what lets the aggregator measure,
	// in one round trip, the balance delta attributable to each bundle in
	// a prospective aggregate. Each result mirrors the revert/success
	// outcome of its call; a later call's success is unaffected by an
	// earlier one reverting, matching the semantics of the verification
	// gateway's own try/catch-per-bundle processing.
	CallContractAtomicSequence(ctx context.Context, calls []CallMsg) ([]CallResult, error)

	// EstimateGas estimates the gas a call would cost if sent as a
	// transaction, against the current pending state.
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)

	// SendTransaction broadcasts a signed, already-encoded transaction and
	// returns its hash immediately; it does not wait for inclusion.
	SendTransaction(ctx context.Context, from common.Address, to common.Address, data []byte) (common.Hash, error)

	// TransactionReceipt returns the receipt for a previously broadcast
	// transaction, or (nil, nil) if it has not yet been mined.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// AccountNonce returns the on-chain nonce the gateway has recorded for
	// the given BLS wallet, used by CheckNonces.
	AccountNonce(ctx context.Context, wallet common.Address) (uint64, error)
}

// CallResult is the outcome of one call within an atomic sequence.
type CallResult struct {
	Success    bool
	ReturnData []byte
}
