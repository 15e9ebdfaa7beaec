// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"

	"github.com/luxfi/xbridge/types"
)

var (
	ErrConfiguration           = errors.New("configuration error")
	ErrAllowance               = errors.New("allowance error")
	ErrSourceSubmission        = errors.New("source submission error")
	ErrDestinationSubmission   = errors.New("destination submission error")
	ErrTransferInFlight        = errors.New("transfer already in flight")
	errTransactionReverted     = errors.New("transaction reverted")
	errInvalidStateTransition  = errors.New("invalid state transition")
	errMissingConfirmation     = errors.New("client returned no confirmation")
	errNonceSpaceExhausted     = errors.New("nonce space exhausted")
	errUnresolvedBridgeAddress = errors.New("bridge address not resolved")
)

// ErrorKind classifies orchestration failures.
type ErrorKind uint8

const (
	KindConfiguration ErrorKind = iota + 1
	KindAllowance
	KindSourceSubmission
	KindDestinationSubmission
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindAllowance:
		return ErrAllowance
	case KindSourceSubmission:
		return ErrSourceSubmission
	case KindDestinationSubmission:
		return ErrDestinationSubmission
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// Error carries the context an operator needs to act on a failed transfer.
// errors.Is matches it against the sentinel of its kind.
type Error struct {
	Kind    ErrorKind
	Phase   types.Phase
	ChainID uint64
	Nonce   uint64
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindConfiguration {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: phase=%s chain=%d nonce=%d: %v", e.Kind, e.Phase, e.ChainID, e.Nonce, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func configurationError(format string, args ...any) *Error {
	return &Error{
		Kind: KindConfiguration,
		Err:  fmt.Errorf(format, args...),
	}
}

// NewConfigurationError wraps a setup failure detected outside Run, such as
// an unresolved deployment or a missing credential.
func NewConfigurationError(err error) *Error {
	return &Error{
		Kind: KindConfiguration,
		Err:  err,
	}
}
