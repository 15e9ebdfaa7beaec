// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/xbridge/types"
)

// TransferState tracks where a transfer is in its two-phase sequence.
type TransferState uint8

const (
	StatePending TransferState = iota
	StateApproving
	StateAwaitingSource
	StateAwaitingDestination
	StateDone
	// StateFailed means nothing was committed on the source chain.
	StateFailed
	// StatePartial means the source committed and the destination did not.
	StatePartial
)

func (s TransferState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateApproving:
		return "approving"
	case StateAwaitingSource:
		return "awaiting-source"
	case StateAwaitingDestination:
		return "awaiting-destination"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StatePartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s TransferState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StatePartial
}

// AwaitingDestination is only reachable from AwaitingSource, which keeps a
// bridgeIn from ever being sent ahead of a confirmed bridgeOut.
var transitions = map[TransferState][]TransferState{
	StatePending:             {StateApproving, StateAwaitingSource, StateFailed},
	StateApproving:           {StateAwaitingSource, StateFailed},
	StateAwaitingSource:      {StateAwaitingDestination, StateFailed},
	StateAwaitingDestination: {StateDone, StatePartial},
}

// transferRecord is the in-memory state of one orchestration run.
type transferRecord struct {
	id        ids.ID
	intent    types.TransferIntent
	state     TransferState
	createdAt time.Time
	updatedAt time.Time
	mu        sync.RWMutex
}

func newTransferRecord(id ids.ID, intent types.TransferIntent) *transferRecord {
	now := time.Now()
	return &transferRecord{
		id:        id,
		intent:    intent,
		state:     StatePending,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *transferRecord) State() TransferState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// advance moves the record to [next] if the transition is allowed.
func (r *transferRecord) advance(next TransferState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !slices.Contains(transitions[r.state], next) {
		return fmt.Errorf("%w: %s -> %s", errInvalidStateTransition, r.state, next)
	}
	r.state = next
	r.updatedAt = time.Now()
	return nil
}
