// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/xbridge/contracts"
	"github.com/luxfi/xbridge/types"
)

var errFakeRPC = errors.New("rpc unavailable")

var selectors = map[string]string{
	string(crypto.Keccak256([]byte("approve(address,uint256)"))[:4]):                                 contracts.ApproveMethod,
	string(crypto.Keccak256([]byte("bridgeOut(address,uint256,uint256,address,uint256)"))[:4]):         contracts.BridgeOutMethod,
	string(crypto.Keccak256([]byte("bridgeIn(address,address,uint256,uint256,address,uint256)"))[:4]): contracts.BridgeInMethod,
}

func methodOf(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	return selectors[string(data[:4])]
}

// journal orders events across several fake clients.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) record(event string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
}

func (j *journal) entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

// fakeBehavior scripts how a fakeChainClient resolves one transaction.
type fakeBehavior uint8

const (
	fakeConfirm fakeBehavior = iota
	fakeReject
	fakeRevert
	fakeTimeout
)

// submittedTx is one call recorded by fakeChainClient.
type submittedTx struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	Fee   *types.FeeOverride
	Hash  common.Hash
}

// fakeChainClient records submissions and resolves them according to the
// scripted behavior for the called method. Unscripted methods confirm.
type fakeChainClient struct {
	chainID  uint64
	sender   common.Address
	gasPrice *big.Int

	behavior map[string]fakeBehavior
	// submitted is closed on the first submission when non-nil
	submitted chan struct{}
	// awaitGate blocks AwaitConfirmation until closed when non-nil
	awaitGate chan struct{}
	journal   *journal

	mu      sync.Mutex
	txs     []submittedTx
	methods map[common.Hash]string
	awaits  int
	signal  sync.Once
}

func newFakeChainClient(chainID uint64, sender common.Address) *fakeChainClient {
	return &fakeChainClient{
		chainID:  chainID,
		sender:   sender,
		gasPrice: big.NewInt(25_000_000_000),
		behavior: make(map[string]fakeBehavior),
		methods:  make(map[common.Hash]string),
	}
}

func (f *fakeChainClient) on(method string, behavior fakeBehavior) *fakeChainClient {
	f.behavior[method] = behavior
	return f
}

func (f *fakeChainClient) ChainID() uint64 {
	return f.chainID
}

func (f *fakeChainClient) SenderAddress() common.Address {
	return f.sender
}

func (f *fakeChainClient) SubmitTransaction(
	_ context.Context,
	to common.Address,
	data []byte,
	value *big.Int,
	fee *types.FeeOverride,
) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method := methodOf(data)
	if f.behavior[method] == fakeReject {
		return common.Hash{}, errFakeRPC
	}

	var hash common.Hash
	binary.BigEndian.PutUint64(hash[24:], f.chainID)
	hash[0] = byte(len(f.txs) + 1)
	f.txs = append(f.txs, submittedTx{
		To:    to,
		Data:  data,
		Value: value,
		Fee:   fee,
		Hash:  hash,
	})
	f.methods[hash] = method
	f.journal.record("submit " + method)
	if f.submitted != nil {
		f.signal.Do(func() { close(f.submitted) })
	}
	return hash, nil
}

func (f *fakeChainClient) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*types.Confirmation, error) {
	if f.awaitGate != nil {
		select {
		case <-f.awaitGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.awaits++

	method, ok := f.methods[txHash]
	if !ok {
		return nil, errors.New("unknown transaction")
	}
	confirmation := &types.Confirmation{
		TxHash:      txHash,
		Status:      types.ConfirmationConfirmed,
		BlockNumber: uint64(100 + len(f.txs)),
		GasUsed:     21_000,
	}
	switch f.behavior[method] {
	case fakeRevert:
		confirmation.Status = types.ConfirmationReverted
	case fakeTimeout:
		return nil, types.ErrConfirmationTimeout
	}
	f.journal.record("resolve " + method)
	return confirmation, nil
}

func (f *fakeChainClient) NetworkGasPrice(context.Context) (*big.Int, error) {
	if f.gasPrice == nil {
		return nil, errFakeRPC
	}
	return f.gasPrice, nil
}

func (f *fakeChainClient) submissions() []submittedTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submittedTx(nil), f.txs...)
}

func (f *fakeChainClient) awaitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.awaits
}
