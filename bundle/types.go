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

// Package bundle defines the wire types exchanged with BLS wallet clients:
// signed bundles of nonce-guarded wallet operations, and the aggregate
// bundles the aggregator assembles from many of them.
package bundle

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FieldElement is a single BLS12-381 base field element, big-endian encoded.
type FieldElement [48]byte

// Signature is an aggregated BLS signature: a point on G1, carried as its
// two affine field elements so it can be passed to the verification gateway
// without on-chain point decompression.
type Signature struct {
	X, Y FieldElement
}

// PublicKey is a BLS wallet's public key: an uncompressed point on G2.
type PublicKey [192]byte

// Action is a single call a wallet operation wants executed.
type Action struct {
	Target   common.Address
	Value    *uint256.Int
	CallData []byte
}

// Operation is one wallet's nonce-guarded ordered list of actions.
type Operation struct {
	Nonce   uint64
	Actions []Action
}

// CountActions returns the number of actions in the operation.
func (op *Operation) CountActions() int {
	return len(op.Actions)
}

// Bundle is a signed set of operations from one or more BLS wallets. An
// aggregate bundle is the BLS-aggregation of many bundles: its Operations
// is the concatenation of the inputs' operations, in order, and its
// Signature is the BLS-aggregation of their signatures.
type Bundle struct {
	Signature        Signature
	SenderPublicKeys []PublicKey
	Operations       []Operation
}

// ErrShapeMismatch is returned by CheckShape when the number of operations
// does not match the number of sender public keys.
var ErrShapeMismatch = errors.New("bundle: len(senderPublicKeys) != len(operations)")

// CheckShape enforces the bundle invariant len(SenderPublicKeys) ==
// len(Operations). It is checked before anything else touches the bundle,
// including signature verification, since it is a precondition for the
// per-operation public key pairing the signature check relies on.
func (b *Bundle) CheckShape() error {
	if len(b.SenderPublicKeys) != len(b.Operations) {
		return ErrShapeMismatch
	}
	return nil
}

// CountActions returns the total number of actions across all operations.
func (b *Bundle) CountActions() int {
	n := 0
	for i := range b.Operations {
		n += b.Operations[i].CountActions()
	}
	return n
}

// Clone returns a deep-enough copy of b suitable for staging into an
// aggregate without aliasing the caller's slices.
func (b *Bundle) Clone() *Bundle {
	out := &Bundle{
		Signature:        b.Signature,
		SenderPublicKeys: make([]PublicKey, len(b.SenderPublicKeys)),
		Operations:       make([]Operation, len(b.Operations)),
	}
	copy(out.SenderPublicKeys, b.SenderPublicKeys)
	copy(out.Operations, b.Operations)
	return out
}
