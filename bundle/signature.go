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

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// domainSeparationTag pins the aggregator to one ciphersuite so a signature
// produced for a different purpose can never be replayed here.
var domainSeparationTag = []byte("BLS_WALLET_AGGREGATOR_V1")

// operationMessage is the byte string each wallet signs over for a single
// operation: its nonce followed by, for each action, the target, value and
// call data length-prefixed. The gateway contract defines the canonical
// encoding; this mirrors it closely enough for local verification, and the
// gateway re-derives and checks it on-chain as the final authority.
func operationMessage(op *Operation) []byte {
	buf := make([]byte, 0, 8+len(op.Actions)*64)
	buf = appendUint64(buf, op.Nonce)
	for _, a := range op.Actions {
		buf = append(buf, a.Target.Bytes()...)
		if a.Value != nil {
			buf = append(buf, a.Value.Bytes()...)
		}
		buf = appendUint64(buf, uint64(len(a.CallData)))
		buf = append(buf, a.CallData...)
	}
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(buf, tmp[:]...)
}

// ErrInvalidSignature is returned by VerifyAggregate when the aggregate
// signature does not validate against the bundle's public keys and
// operations.
var ErrInvalidSignature = errors.New("bundle: invalid aggregate signature")

// toAffineG1 decodes a Signature's two field elements into a blst G1 point.
func (s Signature) toAffineG1() (*blst.P1Affine, error) {
	var uncompressed [96]byte
	copy(uncompressed[:48], s.X[:])
	copy(uncompressed[48:], s.Y[:])
	p := new(blst.P1Affine).Deserialize(uncompressed[:])
	if p == nil {
		return nil, errors.New("bundle: malformed signature point")
	}
	return p, nil
}

func (pk PublicKey) toAffineG2() (*blst.P2Affine, error) {
	p := new(blst.P2Affine).Deserialize(pk[:])
	if p == nil {
		return nil, errors.New("bundle: malformed public key point")
	}
	return p, nil
}

// VerifyAggregate checks that b.Signature is a valid BLS aggregate of each
// sender's signature over its own operation, under the min-sig convention
// (signatures on G1, public keys on G2) the verification gateway uses.
// CheckShape must have already passed; this does not re-check it.
func VerifyAggregate(b *Bundle) error {
	sig, err := b.Signature.toAffineG1()
	if err != nil {
		return err
	}
	pks := make([]*blst.P2Affine, len(b.SenderPublicKeys))
	msgs := make([][]byte, len(b.Operations))
	for i := range b.Operations {
		pk, err := b.SenderPublicKeys[i].toAffineG2()
		if err != nil {
			return err
		}
		pks[i] = pk
		msgs[i] = operationMessage(&b.Operations[i])
	}
	if !sig.AggregateVerify(true, pks, true, msgs, domainSeparationTag) {
		return ErrInvalidSignature
	}
	return nil
}

// AggregateSignatures combines many bundles' signatures into a single G1
// point, the aggregate bundle's Signature.
func AggregateSignatures(bundles []*Bundle) (Signature, error) {
	points := make([]*blst.P1Affine, len(bundles))
	for i, b := range bundles {
		p, err := b.Signature.toAffineG1()
		if err != nil {
			return Signature{}, err
		}
		points[i] = p
	}
	var agg blst.P1Aggregate
	if !agg.Aggregate(points, true) {
		return Signature{}, errors.New("bundle: signature aggregation failed")
	}
	combined := agg.ToAffine().Serialize()
	var out Signature
	copy(out.X[:], combined[:48])
	copy(out.Y[:], combined[48:])
	return out, nil
}

// Aggregate concatenates the operations and public keys of bundles, in
// order, and aggregates their signatures, producing a single submittable
// aggregate bundle. It does not re-verify the inputs.
func Aggregate(bundles []*Bundle) (*Bundle, error) {
	if len(bundles) == 0 {
		return nil, errors.New("bundle: cannot aggregate zero bundles")
	}
	sig, err := AggregateSignatures(bundles)
	if err != nil {
		return nil, err
	}
	out := &Bundle{Signature: sig}
	for _, b := range bundles {
		out.SenderPublicKeys = append(out.SenderPublicKeys, b.SenderPublicKeys...)
		out.Operations = append(out.Operations, b.Operations...)
	}
	return out, nil
}
