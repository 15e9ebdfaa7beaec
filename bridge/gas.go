// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/luxfi/math/set"
	"github.com/luxfi/xbridge/types"
)

const (
	// DefaultLegacyGasLimit covers the worst-case bridgeIn execution path.
	// A fixed ceiling is used because estimation reverts until the
	// triggering state exists on the destination chain.
	DefaultLegacyGasLimit uint64 = 500_000

	// LocalTestnetChainID is the ephemeral chain without fee-market support.
	LocalTestnetChainID uint64 = 262144
)

// GasSelector decides how the destination transaction's fee fields are
// built. The choice depends only on the destination chain id.
type GasSelector struct {
	legacyChains set.Set[uint64]
	gasLimit     uint64
}

// NewGasSelector returns a selector applying legacy fees with [gasLimit] on
// [legacyChains]. A zero [gasLimit] means DefaultLegacyGasLimit.
func NewGasSelector(legacyChains []uint64, gasLimit uint64) *GasSelector {
	if gasLimit == 0 {
		gasLimit = DefaultLegacyGasLimit
	}
	return &GasSelector{
		legacyChains: set.Of(legacyChains...),
		gasLimit:     gasLimit,
	}
}

// RequiresLegacy reports whether [chainID] needs legacy fee encoding.
func (g *GasSelector) RequiresLegacy(chainID uint64) bool {
	return g.legacyChains.Contains(chainID)
}

// FeeOverride returns nil for network-default chains. For legacy chains it
// fetches the current gas price from [client] and pins the gas limit.
func (g *GasSelector) FeeOverride(ctx context.Context, chainID uint64, client ChainClient) (*types.FeeOverride, error) {
	if !g.RequiresLegacy(chainID) {
		return nil, nil
	}
	gasPrice, err := client.NetworkGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price on chain %d: %w", chainID, err)
	}
	return &types.FeeOverride{
		GasPrice: new(big.Int).Set(gasPrice),
		GasLimit: g.gasLimit,
		TxType:   types.LegacyTxType,
	}, nil
}
