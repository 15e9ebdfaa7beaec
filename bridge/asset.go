// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/xbridge/contracts"
	"github.com/luxfi/xbridge/types"
)

// AssetPath selects the call shape for native-asset or fungible-token
// transfers.
type AssetPath struct {
	token common.Address
}

func NewAssetPath(asset common.Address) AssetPath {
	return AssetPath{token: asset}
}

// Native reports whether the path moves the chain's base currency.
func (p AssetPath) Native() bool {
	return p.token == types.NativeAsset
}

// AssetAddress is the token argument passed to both bridge calls.
func (p AssetPath) AssetAddress() common.Address {
	return p.token
}

// AttachedValue is the value sent with bridgeOut: the amount on the native
// path, nothing on the token path.
func (p AssetPath) AttachedValue(amount *big.Int) *big.Int {
	if !p.Native() {
		return nil
	}
	return new(big.Int).Set(amount)
}

func (p AssetPath) String() string {
	if p.Native() {
		return "native"
	}
	return "token:" + p.token.Hex()
}

// grantAllowance approves [spender] for [amount] of the token and waits for
// the approval to confirm. It is a no-op error for the native path.
func (p AssetPath) grantAllowance(
	ctx context.Context,
	runner phaseRunner,
	erc20 *contracts.ERC20,
	spender common.Address,
	amount *big.Int,
) (types.PhaseOutcome, error) {
	if p.Native() {
		return types.PhaseOutcome{}, fmt.Errorf("native asset needs no allowance")
	}
	data, err := erc20.PackApprove(spender, amount)
	if err != nil {
		outcome := types.PhaseOutcome{
			Phase:   types.PhaseApprove,
			Status:  types.StatusRejected,
			ChainID: runner.client.ChainID(),
			Err:     err,
		}
		return outcome, err
	}

	runner.logger.Info("Granting allowance", "token", p.token, "spender", spender, "amount", amount)
	outcome := runner.run(ctx, types.PhaseApprove, p.token, data, nil, nil)
	if !outcome.Confirmed() {
		return outcome, outcome.Err
	}
	runner.logger.Info("Approved bridge to spend tokens", "token", p.token, "spender", spender)
	return outcome, nil
}
