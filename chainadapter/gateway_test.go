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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/ri-dev-git/bls-wallet/bundle"
	"github.com/stretchr/testify/require"
)

func sampleBundle() *bundle.Bundle {
	var pk bundle.PublicKey
	pk[191] = 0xAB
	return &bundle.Bundle{
		SenderPublicKeys: []bundle.PublicKey{pk},
		Operations: []bundle.Operation{
			{
				Nonce: 7,
				Actions: []bundle.Action{
					{Target: common.HexToAddress("0x1"), Value: uint256.NewInt(5), CallData: []byte{1, 2, 3}},
				},
			},
		},
	}
}

func TestEncodeProcessBundleRoundTripsThroughABI(t *testing.T) {
	data, err := EncodeProcessBundle(sampleBundle())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	method, err := gatewayABI.MethodById(data[:4])
	require.NoError(t, err)
	require.Equal(t, "processBundle", method.Name)
}

func TestEncodeBalanceOfAndEthBalanceOf(t *testing.T) {
	addr := common.HexToAddress("0xdeadbeef")
	data, err := EncodeBalanceOf(addr)
	require.NoError(t, err)
	require.Len(t, data, 4+32)

	data, err = EncodeEthBalanceOf(addr)
	require.NoError(t, err)
	require.Len(t, data, 4+32)
}

func TestDecodeUint256(t *testing.T) {
	want := big.NewInt(123456789)
	got, err := DecodeUint256(common.LeftPadBytes(want.Bytes(), 32))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeUint256EmptyReturnsZero(t *testing.T) {
	got, err := DecodeUint256(nil)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), got)
}

func TestDecodeProcessBundleSuccesses(t *testing.T) {
	data, err := gatewayABI.Methods["processBundle"].Outputs.Pack([]bool{true, false}, [][][]byte{{}, {}})
	require.NoError(t, err)

	successes, err := DecodeProcessBundleSuccesses(data)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, successes)
}

func TestDecodeProcessBundleSuccessesRejectsGarbage(t *testing.T) {
	_, err := DecodeProcessBundleSuccesses([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestEncodeMulticallRoundTripsThroughABI(t *testing.T) {
	targets := []common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")}
	datas := [][]byte{{1, 2}, {3, 4, 5}}
	packed, err := EncodeMulticall(targets, datas)
	require.NoError(t, err)

	method, err := utilitiesABI.MethodById(packed[:4])
	require.NoError(t, err)
	require.Equal(t, "multicall", method.Name)
}

func TestDecodeMulticall(t *testing.T) {
	data, err := utilitiesABI.Methods["multicall"].Outputs.Pack([]bool{true, false}, [][]byte{{0xAA}, {}})
	require.NoError(t, err)

	successes, results, err := DecodeMulticall(data)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, successes)
	require.Equal(t, [][]byte{{0xAA}, {}}, results)
}

func TestToEthMsgOmitsZeroTo(t *testing.T) {
	msg := toEthMsg(CallMsg{Data: []byte{1}})
	require.Nil(t, msg.To)

	to := common.HexToAddress("0xdead")
	msg = toEthMsg(CallMsg{To: to, Data: []byte{1}})
	require.NotNil(t, msg.To)
	require.Equal(t, to, *msg.To)
}
