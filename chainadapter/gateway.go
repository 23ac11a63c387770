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

package chainadapter

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ri-dev-git/bls-wallet/bundle"
)

// gatewayABIJSON is the ABI surface of the VerificationGateway contract
// this adapter calls. Its wire semantics (argument encoding, revert
// behavior) are fixed by the deployed contract; this adapter only needs
// enough of it to encode processBundle calls and decode the per-operation
// success flags §4.2 asks for.
const gatewayABIJSON = `[
	{"name":"processBundle","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"bundle","type":"tuple","components":[
		{"name":"signature","type":"uint256[2]"},
		{"name":"senderPublicKeys","type":"uint256[4][]"},
		{"name":"operations","type":"tuple[]","components":[
			{"name":"nonce","type":"uint256"},
			{"name":"actions","type":"tuple[]","components":[
				{"name":"ethValue","type":"uint256"},
				{"name":"contractAddress","type":"address"},
				{"name":"encodedFunction","type":"bytes"}
			]}
		]}
	 ]}],
	 "outputs":[{"name":"successes","type":"bool[]"},{"name":"results","type":"bytes[][]"}]}
]`

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const utilitiesABIJSON = `[
	{"name":"ethBalanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"multicall","type":"function","stateMutability":"view",
	 "inputs":[{"name":"targets","type":"address[]"},{"name":"data","type":"bytes[]"}],
	 "outputs":[{"name":"successes","type":"bool[]"},{"name":"results","type":"bytes[]"}]}
]`

var (
	gatewayABI   abi.ABI
	erc20ABI     abi.ABI
	utilitiesABI abi.ABI
)

func init() {
	var err error
	if gatewayABI, err = abi.JSON(strings.NewReader(gatewayABIJSON)); err != nil {
		panic("chainadapter: malformed gateway ABI: " + err.Error())
	}
	if erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON)); err != nil {
		panic("chainadapter: malformed erc20 ABI: " + err.Error())
	}
	if utilitiesABI, err = abi.JSON(strings.NewReader(utilitiesABIJSON)); err != nil {
		panic("chainadapter: malformed utilities ABI: " + err.Error())
	}
}

// abiAction/abiOperation/abiBundle mirror the gateway's tuple layout for
// packing with accounts/abi's reflection-based encoder.
type abiAction struct {
	EthValue        *big.Int
	ContractAddress common.Address
	EncodedFunction []byte
}

type abiOperation struct {
	Nonce   *big.Int
	Actions []abiAction
}

type abiBundle struct {
	Signature        [2]*big.Int
	SenderPublicKeys [][4]*big.Int
	Operations       []abiOperation
}

func toABIBundle(b *bundle.Bundle) abiBundle {
	out := abiBundle{
		Signature: [2]*big.Int{
			new(big.Int).SetBytes(b.Signature.X[:]),
			new(big.Int).SetBytes(b.Signature.Y[:]),
		},
	}
	for _, pk := range b.SenderPublicKeys {
		var quad [4]*big.Int
		for i := 0; i < 4; i++ {
			quad[i] = new(big.Int).SetBytes(pk[i*48 : i*48+48])
		}
		out.SenderPublicKeys = append(out.SenderPublicKeys, quad)
	}
	for _, op := range b.Operations {
		aop := abiOperation{Nonce: new(big.Int).SetUint64(op.Nonce)}
		for _, a := range op.Actions {
			value := new(big.Int)
			if a.Value != nil {
				value = a.Value.ToBig()
			}
			aop.Actions = append(aop.Actions, abiAction{
				EthValue:        value,
				ContractAddress: a.Target,
				EncodedFunction: a.CallData,
			})
		}
		out.Operations = append(out.Operations, aop)
	}
	return out
}

// EncodeProcessBundle ABI-encodes a call to
// verificationGateway.processBundle(bundle).
func EncodeProcessBundle(b *bundle.Bundle) ([]byte, error) {
	return gatewayABI.Pack("processBundle", toABIBundle(b))
}

// EncodeBalanceOf ABI-encodes a call to rewardToken.balanceOf(account).
func EncodeBalanceOf(account common.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", account)
}

// EncodeEthBalanceOf ABI-encodes a call to utilities.ethBalanceOf(account).
func EncodeEthBalanceOf(account common.Address) ([]byte, error) {
	return utilitiesABI.Pack("ethBalanceOf", account)
}

// DecodeUint256 unpacks a single uint256 return value, the shape both
// balanceOf and ethBalanceOf share.
func DecodeUint256(data []byte) (*big.Int, error) {
	if len(data) == 0 {
		return new(big.Int), nil
	}
	return new(big.Int).SetBytes(data), nil
}

// DecodeProcessBundleSuccesses unpacks the bool[] successes return value of
// processBundle, ignoring the per-operation results payload.
func DecodeProcessBundleSuccesses(data []byte) ([]bool, error) {
	vals, err := gatewayABI.Methods["processBundle"].Outputs.Unpack(data)
	if err != nil {
		return nil, err
	}
	successes, ok := vals[0].([]bool)
	if !ok {
		return nil, errInvalidReturnShape
	}
	return successes, nil
}

// EncodeMulticall ABI-encodes a call to utilities.multicall(targets, data),
// the on-chain helper CallContractAtomicSequence uses to evaluate a whole
// measure/call/measure/... sequence in one EVM execution, so that call i
// observes the state effects of calls 0..i-1 the way a real deployed
// sequence of transactions would.
func EncodeMulticall(targets []common.Address, data [][]byte) ([]byte, error) {
	return utilitiesABI.Pack("multicall", targets, data)
}

// DecodeMulticall unpacks the (bool[], bytes[]) return value of
// utilities.multicall.
func DecodeMulticall(data []byte) ([]bool, [][]byte, error) {
	vals, err := utilitiesABI.Methods["multicall"].Outputs.Unpack(data)
	if err != nil {
		return nil, nil, err
	}
	successes, ok := vals[0].([]bool)
	if !ok {
		return nil, nil, errInvalidReturnShape
	}
	results, ok := vals[1].([][]byte)
	if !ok {
		return nil, nil, errInvalidReturnShape
	}
	return successes, results, nil
}
