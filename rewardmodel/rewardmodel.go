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

// Package rewardmodel implements the linear reward-cost model the
// aggregator measures every bundle against: requiredReward = perGas*gas +
// perByte*len(callData).
package rewardmodel

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind distinguishes the two ways an aggregator may be paid.
type Kind int

const (
	Native Kind = iota // paid in the chain's native asset (ether)
	Token              // paid in an ERC-20 reward token
)

// Model is the fixed-at-construction reward configuration: which asset the
// aggregator is paid in, and the linear per-gas/per-byte price it demands.
type Model struct {
	Kind      Kind
	TokenAddr common.Address // only meaningful when Kind == Token
	PerGas    *uint256.Int
	PerByte   *uint256.Int
}

// String renders the model the way a config dump or log line would.
func (m *Model) String() string {
	if m.Kind == Native {
		return "ether"
	}
	return fmt.Sprintf("token:%s", m.TokenAddr.Hex())
}

// Required computes the reward a bundle must supply to be worth including,
// given the gas its processBundle call is estimated to cost and the length
// of its encoded call data.
func (m *Model) Required(gas uint64, callDataLen int) *uint256.Int {
	g := new(uint256.Int).Mul(m.PerGas, uint256.NewInt(gas))
	b := new(uint256.Int).Mul(m.PerByte, uint256.NewInt(uint64(callDataLen)))
	return g.Add(g, b)
}

// LowerBound is the cheap, gas-free half of Required: perByte times the
// call data length. Call-data cost dominates in practice, so this is used
// as the fast-scan heuristic in the bisection culprit search.
func (m *Model) LowerBound(callDataLen int) *uint256.Int {
	return new(uint256.Int).Mul(m.PerByte, uint256.NewInt(uint64(callDataLen)))
}
