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

// FailureKind identifies why a bundle, or one operation within it, was
// rejected at admission time or during on-chain nonce validation.
type FailureKind string

const (
	FailureInvalidFormat    FailureKind = "invalid-format"
	FailureInvalidSignature FailureKind = "invalid-signature"
	FailureNonceTooLow      FailureKind = "nonce-too-low"
	FailureNonceTooHigh     FailureKind = "nonce-too-high"
)

// TransactionFailure describes one rejected operation within a bundle.
// OperationIndex is -1 when the failure applies to the bundle as a whole
// (shape or signature) rather than to one operation.
type TransactionFailure struct {
	Kind           FailureKind
	OperationIndex int
	Message        string
}

func (f TransactionFailure) Error() string {
	return string(f.Kind) + ": " + f.Message
}
