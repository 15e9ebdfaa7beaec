// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// NativeAsset is the asset marker used for the chain's base currency.
var NativeAsset = common.Address{}

// TransferIntent is one logical cross-chain transfer request.
type TransferIntent struct {
	// Asset is the token contract on the source chain, or NativeAsset.
	Asset common.Address
	// Amount in the asset's smallest denomination.
	Amount             *uint256.Int
	SourceChainID      uint64
	DestinationChainID uint64
	// Recipient on the destination chain. Zero means bridgeOut names the
	// destination signer and bridgeIn credits the source signer.
	Recipient common.Address
	// Nonce correlates bridgeOut with bridgeIn. Zero means allocate one.
	Nonce uint64
}

// IsNative reports whether the intent moves the chain's base currency.
func (t TransferIntent) IsNative() bool {
	return t.Asset == NativeAsset
}

// TransferID derives the identifier of a transfer from the tuple the
// destination contract uses for replay protection.
func TransferID(sourceChainID, destinationChainID uint64, sender common.Address, nonce uint64) ids.ID {
	buf := make([]byte, 0, 8+8+common.AddressLength+8)
	buf = binary.BigEndian.AppendUint64(buf, sourceChainID)
	buf = binary.BigEndian.AppendUint64(buf, destinationChainID)
	buf = append(buf, sender.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return ids.ID(crypto.Keccak256Hash(buf))
}

// Phase names a step of a transfer.
type Phase uint8

const (
	PhaseApprove Phase = iota
	PhaseOut
	PhaseIn
)

func (p Phase) String() string {
	switch p {
	case PhaseApprove:
		return "approve"
	case PhaseOut:
		return "out"
	case PhaseIn:
		return "in"
	default:
		return "unknown"
	}
}

// PhaseStatus is the terminal status of one phase.
type PhaseStatus uint8

const (
	// StatusNotAttempted means the phase was never reached.
	StatusNotAttempted PhaseStatus = iota
	StatusConfirmed
	StatusReverted
	// StatusRejected means the transaction could not be built or broadcast.
	StatusRejected
	// StatusTimedOut means the transaction was broadcast but no receipt was
	// observed within the inclusion window.
	StatusTimedOut
	// StatusCanceled means the caller canceled before submission.
	StatusCanceled
)

func (s PhaseStatus) String() string {
	switch s {
	case StatusNotAttempted:
		return "not-attempted"
	case StatusConfirmed:
		return "confirmed"
	case StatusReverted:
		return "reverted"
	case StatusRejected:
		return "rejected"
	case StatusTimedOut:
		return "timed-out"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// PhaseOutcome records how a single phase ended.
type PhaseOutcome struct {
	Phase       Phase
	Status      PhaseStatus
	ChainID     uint64
	TxHash      common.Hash
	BlockNumber uint64
	Err         error
}

// Confirmed reports whether the phase's transaction was observed as successful.
func (p PhaseOutcome) Confirmed() bool {
	return p.Status == StatusConfirmed
}

// Broadcast reports whether a transaction for the phase left the process.
func (p PhaseOutcome) Broadcast() bool {
	return p.TxHash != (common.Hash{})
}

func (p PhaseOutcome) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", p.Phase, p.Status)
	if p.ChainID != 0 {
		fmt.Fprintf(&b, " chain=%d", p.ChainID)
	}
	if p.Broadcast() {
		fmt.Fprintf(&b, " tx=%s", p.TxHash.Hex())
	}
	if p.BlockNumber != 0 {
		fmt.Fprintf(&b, " block=%d", p.BlockNumber)
	}
	if p.Err != nil {
		fmt.Fprintf(&b, " err=%q", p.Err.Error())
	}
	return b.String()
}

// Result summarizes a transfer across both phases.
type Result uint8

const (
	// ResultFailed means nothing was committed on the source chain.
	ResultFailed Result = iota
	// ResultPartial means the source committed but the destination did not.
	ResultPartial
	ResultSuccess
)

func (r Result) String() string {
	switch r {
	case ResultFailed:
		return "failed"
	case ResultPartial:
		return "partial"
	case ResultSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// TransferOutcome is the typed report of an orchestration run.
type TransferOutcome struct {
	TransferID ids.ID
	Nonce      uint64
	// Approval is nil on the native path.
	Approval *PhaseOutcome
	Out      PhaseOutcome
	In       PhaseOutcome
	Result   Result
}

// Phases returns the bridgeOut and bridgeIn outcomes in order.
func (o *TransferOutcome) Phases() [2]PhaseOutcome {
	return [2]PhaseOutcome{o.Out, o.In}
}

func (o *TransferOutcome) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transfer %s nonce=%d result=%s\n", o.TransferID, o.Nonce, o.Result)
	if o.Approval != nil {
		fmt.Fprintf(&b, "  %s\n", o.Approval)
	}
	fmt.Fprintf(&b, "  %s\n", o.Out)
	fmt.Fprintf(&b, "  %s\n", o.In)
	return b.String()
}
