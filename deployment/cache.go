// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package deployment

import (
	"context"
	"strconv"
	"sync"

	"github.com/luxfi/geth/common"
	"golang.org/x/sync/singleflight"
)

// memoized caches successful resolutions with single-flight fetch
type memoized struct {
	resolver Resolver
	data     map[uint64]common.Address
	lock     sync.RWMutex
	sfGroup  singleflight.Group
}

// Memoize resolves each chain at most once per process. Concurrent lookups
// for the same chain are deduplicated. Failures are not cached.
func Memoize(resolver Resolver) Resolver {
	return &memoized{
		resolver: resolver,
		data:     make(map[uint64]common.Address),
	}
}

func (m *memoized) Resolve(ctx context.Context, chainID uint64) (common.Address, error) {
	m.lock.RLock()
	addr, exists := m.data[chainID]
	m.lock.RUnlock()
	if exists {
		return addr, nil
	}

	v, err, _ := m.sfGroup.Do(strconv.FormatUint(chainID, 10), func() (interface{}, error) {
		newAddr, fetchErr := m.resolver.Resolve(ctx, chainID)
		if fetchErr != nil {
			return common.Address{}, fetchErr
		}

		m.lock.Lock()
		m.data[chainID] = newAddr
		m.lock.Unlock()

		return newAddr, nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return v.(common.Address), nil
}
