// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	saltBits    = 24
	counterBits = 64 - saltBits
	counterMax  = uint64(1)<<counterBits - 1
	saltMask    = uint64(1)<<saltBits - 1
)

// NonceSource allocates transfer nonces for intents that do not carry one.
type NonceSource interface {
	Next() (uint64, error)
}

var (
	_ NonceSource = (*TimestampNonces)(nil)
	_ NonceSource = (*SaltedCounterNonces)(nil)
)

// TimestampNonces hands out the wall clock in milliseconds. Within one
// process the sequence is strictly increasing: a call landing in the same
// millisecond as the previous one gets the previous value plus one.
// Uniqueness across processes signing for the same sender is not guaranteed.
type TimestampNonces struct {
	now  func() time.Time
	last uint64
	mu   sync.Mutex
}

func NewTimestampNonces() *TimestampNonces {
	return &TimestampNonces{now: time.Now}
}

func (n *TimestampNonces) Next() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	nonce := uint64(n.now().UnixMilli())
	if nonce <= n.last {
		nonce = n.last + 1
	}
	n.last = nonce
	return nonce, nil
}

// SaltedCounterNonces places a random per-process salt in the high bits and
// a monotonic counter in the low bits, so concurrent processes signing for
// the same sender collide only if they draw the same salt.
type SaltedCounterNonces struct {
	salt    uint64
	counter atomic.Uint64
}

func NewSaltedCounterNonces() (*SaltedCounterNonces, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("failed to draw nonce salt: %w", err)
	}
	salt := binary.BigEndian.Uint64(buf[:]) & saltMask
	if salt == 0 {
		// keeps every allocated nonce non-zero
		salt = 1
	}
	return &SaltedCounterNonces{salt: salt}, nil
}

func (n *SaltedCounterNonces) Next() (uint64, error) {
	c := n.counter.Add(1)
	if c > counterMax {
		return 0, errNonceSpaceExhausted
	}
	return n.salt<<counterBits | c, nil
}
