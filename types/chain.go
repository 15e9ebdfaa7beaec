// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the data model shared by the orchestrator and the
// chain clients: chain descriptors, transfer intents, fee overrides and
// per-phase outcomes.
package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
)

// LegacyTxType is the transaction type byte of a pre fee-market transaction.
const LegacyTxType uint8 = 0

// ErrConfirmationTimeout is returned by a chain client when a broadcast
// transaction was not included within the client's inclusion window.
var ErrConfirmationTimeout = errors.New("confirmation timed out")

// ChainDescriptor identifies a ledger endpoint and the bridge deployed on it.
type ChainDescriptor struct {
	ChainID       uint64
	Name          string
	RPCURL        string
	BridgeAddress common.Address
}

// Resolved reports whether the bridge address has been filled in.
func (c ChainDescriptor) Resolved() bool {
	return c.BridgeAddress != (common.Address{})
}

func (c ChainDescriptor) String() string {
	if c.Name == "" {
		return fmt.Sprintf("chain-%d", c.ChainID)
	}
	return fmt.Sprintf("%s (%d)", c.Name, c.ChainID)
}

// FeeOverride carries explicit fee fields for a transaction. A nil
// *FeeOverride means the chain client applies its own fee-market logic.
type FeeOverride struct {
	GasPrice *big.Int
	GasLimit uint64
	TxType   uint8
}

// Legacy reports whether the override asks for a legacy transaction.
func (f *FeeOverride) Legacy() bool {
	return f != nil && f.TxType == LegacyTxType
}

// ConfirmationStatus is the on-chain result of an included transaction.
type ConfirmationStatus uint8

const (
	ConfirmationConfirmed ConfirmationStatus = iota + 1
	ConfirmationReverted
)

func (s ConfirmationStatus) String() string {
	switch s {
	case ConfirmationConfirmed:
		return "confirmed"
	case ConfirmationReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Confirmation describes an included transaction.
type Confirmation struct {
	TxHash      common.Hash
	Status      ConfirmationStatus
	BlockNumber uint64
	GasUsed     uint64
}
