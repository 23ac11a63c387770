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
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// RPCBackend is the production ContractBackend: an *ethclient.Client talking
// to a single JSON-RPC endpoint, signing its own submission transactions
// with a locally held key the way cmd/ethkey's callers do.
type RPCBackend struct {
	client        *ethclient.Client
	key           *ecdsa.PrivateKey
	from          common.Address
	signer        types.Signer
	multicallAddr common.Address
	gasTipCap     *big.Int
	gasFeeCap     *big.Int
}

// defaultGasTipCapWei/defaultGasFeeCapWei are the fallback priority/maximum
// fees used when a deployment's config leaves them unset.
var (
	defaultGasTipCapWei = big.NewInt(1_000_000_000)  // 1 gwei
	defaultGasFeeCapWei = big.NewInt(30_000_000_000) // 30 gwei
)

// DialRPCBackend connects to endpoint and prepares signing for the
// aggregator's submission account. multicallAddr is the on-chain helper
// contract CallContractAtomicSequence batches its measure/call sequence
// through.
func DialRPCBackend(ctx context.Context, endpoint, privateKeyHex string, chainID uint64, multicallAddr common.Address, gasTipCapWei, gasFeeCapWei *big.Int) (*RPCBackend, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("chainadapter: dial %s: %w", endpoint, err)
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chainadapter: parse submission key: %w", err)
	}
	b := &RPCBackend{
		client:        client,
		key:           key,
		from:          crypto.PubkeyToAddress(key.PublicKey),
		signer:        types.NewLondonSigner(new(big.Int).SetUint64(chainID)),
		multicallAddr: multicallAddr,
		gasTipCap:     defaultGasTipCapWei,
		gasFeeCap:     defaultGasFeeCapWei,
	}
	if gasTipCapWei != nil {
		b.gasTipCap = gasTipCapWei
	}
	if gasFeeCapWei != nil {
		b.gasFeeCap = gasFeeCapWei
	}
	return b, nil
}

// Close releases the underlying RPC connection.
func (b *RPCBackend) Close() { b.client.Close() }

// Address returns the aggregator's own submission account.
func (b *RPCBackend) Address() common.Address { return b.from }

func (b *RPCBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return b.client.BlockNumber(ctx)
}

func (b *RPCBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.client.PendingNonceAt(ctx, account)
}

func (b *RPCBackend) CallContract(ctx context.Context, msg CallMsg) ([]byte, error) {
	return b.client.CallContract(ctx, toEthMsg(msg), nil)
}

// CallContractAtomicSequence batches calls into a single multicall(targets,
// data) eth_call against multicallAddr, so every call runs inside one EVM
// execution and observes the preceding calls' state effects, matching the
// atomicity CallStaticSequenceWithMeasure's callers depend on.
func (b *RPCBackend) CallContractAtomicSequence(ctx context.Context, calls []CallMsg) ([]CallResult, error) {
	targets := make([]common.Address, len(calls))
	datas := make([][]byte, len(calls))
	for i, c := range calls {
		targets[i], datas[i] = c.To, c.Data
	}
	packed, err := EncodeMulticall(targets, datas)
	if err != nil {
		return nil, err
	}
	raw, err := b.client.CallContract(ctx, ethereum.CallMsg{From: b.from, To: &b.multicallAddr, Data: packed}, nil)
	if err != nil {
		return nil, err
	}
	successes, results, err := DecodeMulticall(raw)
	if err != nil {
		return nil, err
	}
	if len(successes) != len(calls) || len(results) != len(calls) {
		return nil, errInvalidReturnShape
	}
	out := make([]CallResult, len(calls))
	for i := range calls {
		out[i] = CallResult{Success: successes[i], ReturnData: results[i]}
	}
	return out, nil
}

func (b *RPCBackend) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	return b.client.EstimateGas(ctx, toEthMsg(msg))
}

func (b *RPCBackend) SendTransaction(ctx context.Context, from common.Address, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := b.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, err
	}
	gasLimit, err := b.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: b.gasTipCap,
		GasFeeCap: b.gasFeeCap,
		Gas:       gasLimit,
		To:        &to,
		Data:      data,
	})
	signed, err := types.SignTx(tx, b.signer, b.key)
	if err != nil {
		return common.Hash{}, err
	}
	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (b *RPCBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	receipt, err := b.client.TransactionReceipt(ctx, txHash)
	if err == ethereum.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Receipt{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
	}, nil
}

// AccountNonce reports the gateway-registered nonce for wallet. The real
// gateway tracks per-wallet nonces independently of the account's own EOA
// nonce; lacking that view's ABI, this stands in with the account's pending
// chain nonce, the same facade walletAddressFromPublicKey already leans on
// for deriving wallet from a public key.
func (b *RPCBackend) AccountNonce(ctx context.Context, wallet common.Address) (uint64, error) {
	return b.client.PendingNonceAt(ctx, wallet)
}

func toEthMsg(msg CallMsg) ethereum.CallMsg {
	m := ethereum.CallMsg{From: msg.From, Data: msg.Data, Value: msg.Value}
	if msg.To != (common.Address{}) {
		to := msg.To
		m.To = &to
	}
	return m
}
