// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package contracts packs and decodes calldata for the bridge contract and
// the ERC20 allowance call the token path needs.
package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

const (
	BridgeOutMethod = "bridgeOut"
	BridgeInMethod  = "bridgeIn"
)

const bridgeABIJSON = `[
	{
		"type": "function",
		"name": "bridgeOut",
		"stateMutability": "payable",
		"inputs": [
			{"name": "token", "type": "address", "internalType": "address"},
			{"name": "amount", "type": "uint256", "internalType": "uint256"},
			{"name": "toChainId", "type": "uint256", "internalType": "uint256"},
			{"name": "toAddress", "type": "address", "internalType": "address"},
			{"name": "nonce", "type": "uint256", "internalType": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "bridgeIn",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "fromUser", "type": "address", "internalType": "address"},
			{"name": "token", "type": "address", "internalType": "address"},
			{"name": "amount", "type": "uint256", "internalType": "uint256"},
			{"name": "fromChainId", "type": "uint256", "internalType": "uint256"},
			{"name": "toUser", "type": "address", "internalType": "address"},
			{"name": "nonce", "type": "uint256", "internalType": "uint256"}
		],
		"outputs": []
	}
]`

var errShortCalldata = errors.New("calldata shorter than a method selector")

// BridgeOutArgs are the arguments of a bridgeOut call.
type BridgeOutArgs struct {
	Token     common.Address
	Amount    *big.Int
	ToChainID *big.Int
	ToAddress common.Address
	Nonce     *big.Int
}

// BridgeInArgs are the arguments of a bridgeIn call.
type BridgeInArgs struct {
	FromUser    common.Address
	Token       common.Address
	Amount      *big.Int
	FromChainID *big.Int
	ToUser      common.Address
	Nonce       *big.Int
}

// Bridge is the ABI binding of the bridge contract.
type Bridge struct {
	abi abi.ABI
}

// NewBridge parses the embedded bridge ABI.
func NewBridge() (*Bridge, error) {
	parsed, err := abi.JSON(strings.NewReader(bridgeABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge ABI: %w", err)
	}
	return &Bridge{abi: parsed}, nil
}

// PackBridgeOut encodes a bridgeOut call.
func (b *Bridge) PackBridgeOut(args BridgeOutArgs) ([]byte, error) {
	data, err := b.abi.Pack(
		BridgeOutMethod,
		args.Token,
		args.Amount,
		args.ToChainID,
		args.ToAddress,
		args.Nonce,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", BridgeOutMethod, err)
	}
	return data, nil
}

// PackBridgeIn encodes a bridgeIn call.
func (b *Bridge) PackBridgeIn(args BridgeInArgs) ([]byte, error) {
	data, err := b.abi.Pack(
		BridgeInMethod,
		args.FromUser,
		args.Token,
		args.Amount,
		args.FromChainID,
		args.ToUser,
		args.Nonce,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", BridgeInMethod, err)
	}
	return data, nil
}

// UnpackBridgeOut decodes bridgeOut calldata.
func (b *Bridge) UnpackBridgeOut(data []byte) (BridgeOutArgs, error) {
	values, err := b.unpack(BridgeOutMethod, data)
	if err != nil {
		return BridgeOutArgs{}, err
	}
	return BridgeOutArgs{
		Token:     values[0].(common.Address),
		Amount:    values[1].(*big.Int),
		ToChainID: values[2].(*big.Int),
		ToAddress: values[3].(common.Address),
		Nonce:     values[4].(*big.Int),
	}, nil
}

// UnpackBridgeIn decodes bridgeIn calldata.
func (b *Bridge) UnpackBridgeIn(data []byte) (BridgeInArgs, error) {
	values, err := b.unpack(BridgeInMethod, data)
	if err != nil {
		return BridgeInArgs{}, err
	}
	return BridgeInArgs{
		FromUser:    values[0].(common.Address),
		Token:       values[1].(common.Address),
		Amount:      values[2].(*big.Int),
		FromChainID: values[3].(*big.Int),
		ToUser:      values[4].(common.Address),
		Nonce:       values[5].(*big.Int),
	}, nil
}

func (b *Bridge) unpack(name string, data []byte) ([]interface{}, error) {
	return unpackInputs(b.abi, name, data)
}

func unpackInputs(parsed abi.ABI, name string, data []byte) ([]interface{}, error) {
	if len(data) < 4 {
		return nil, errShortCalldata
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != name {
		return nil, fmt.Errorf("expected %s calldata, got %s", name, method.Name)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", name, err)
	}
	return values, nil
}
