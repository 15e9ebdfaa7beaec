// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

const ApproveMethod = "approve"

const erc20ABIJSON = `[
	{
		"type": "function",
		"name": "approve",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "spender", "type": "address", "internalType": "address"},
			{"name": "amount", "type": "uint256", "internalType": "uint256"}
		],
		"outputs": [
			{"name": "", "type": "bool", "internalType": "bool"}
		]
	}
]`

// ERC20 is the subset of the token ABI the bridge flow touches.
type ERC20 struct {
	abi abi.ABI
}

func NewERC20() (*ERC20, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}
	return &ERC20{abi: parsed}, nil
}

// PackApprove encodes approve(spender, amount).
func (e *ERC20) PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := e.abi.Pack(ApproveMethod, spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", ApproveMethod, err)
	}
	return data, nil
}

// UnpackApprove decodes approve calldata into spender and amount.
func (e *ERC20) UnpackApprove(data []byte) (common.Address, *big.Int, error) {
	values, err := unpackInputs(e.abi, ApproveMethod, data)
	if err != nil {
		return common.Address{}, nil, err
	}
	return values[0].(common.Address), values[1].(*big.Int), nil
}
