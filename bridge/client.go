// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/xbridge/types"
)

// ChainClient is the capability the orchestrator needs from one chain. The
// client holds the signing identity used for every transaction it submits.
type ChainClient interface {
	ChainID() uint64
	SenderAddress() common.Address

	// SubmitTransaction signs and broadcasts a call to [to]. A nil [fee]
	// leaves fee fields to the client.
	SubmitTransaction(
		ctx context.Context,
		to common.Address,
		data []byte,
		value *big.Int,
		fee *types.FeeOverride,
	) (common.Hash, error)

	// AwaitConfirmation blocks until the transaction is included or the
	// client's inclusion window elapses, in which case the error wraps
	// types.ErrConfirmationTimeout.
	AwaitConfirmation(ctx context.Context, txHash common.Hash) (*types.Confirmation, error)

	NetworkGasPrice(ctx context.Context) (*big.Int, error)
}

// Endpoint binds a resolved chain descriptor to the client that signs for it.
type Endpoint struct {
	Chain  types.ChainDescriptor
	Client ChainClient
}
