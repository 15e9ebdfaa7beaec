// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package deployment resolves the bridge contract address deployed on a
// chain.
package deployment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/luxfi/geth/common"
)

// BroadcastFile is the file forge writes for the latest run of a script.
const BroadcastFile = "run-latest.json"

var (
	ErrNotDeployed = errors.New("bridge contract not deployed")

	errZeroAddress = errors.New("deployment records the zero address")
)

// Resolver maps a chain id to the deployed bridge address.
type Resolver interface {
	Resolve(ctx context.Context, chainID uint64) (common.Address, error)
}

var (
	_ Resolver = (*BroadcastResolver)(nil)
	_ Resolver = StaticResolver(nil)
	_ Resolver = chain(nil)
)

// BroadcastResolver reads forge broadcast output laid out as
// <dir>/<script>/<chainID>/run-latest.json.
type BroadcastResolver struct {
	dir          string
	script       string
	contractName string
}

func NewBroadcastResolver(dir, script, contractName string) *BroadcastResolver {
	return &BroadcastResolver{
		dir:          dir,
		script:       script,
		contractName: contractName,
	}
}

type broadcastRun struct {
	Transactions []broadcastTx `json:"transactions"`
}

type broadcastTx struct {
	TransactionType string          `json:"transactionType"`
	ContractName    string          `json:"contractName"`
	// ContractAddress is null for calls that create nothing.
	ContractAddress *common.Address `json:"contractAddress"`
}

// Path returns the broadcast file consulted for [chainID].
func (r *BroadcastResolver) Path(chainID uint64) string {
	return filepath.Join(r.dir, r.script, strconv.FormatUint(chainID, 10), BroadcastFile)
}

// Resolve returns the address of the first transaction in the broadcast
// file that created the configured contract.
func (r *BroadcastResolver) Resolve(_ context.Context, chainID uint64) (common.Address, error) {
	path := r.Path(chainID)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return common.Address{}, fmt.Errorf("%w on chain %d: no %s", ErrNotDeployed, chainID, path)
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var run broadcastRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return common.Address{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, tx := range run.Transactions {
		if tx.ContractName != r.contractName {
			continue
		}
		if tx.ContractAddress == nil || *tx.ContractAddress == (common.Address{}) {
			return common.Address{}, fmt.Errorf("%s in %s: %w", r.contractName, path, errZeroAddress)
		}
		return *tx.ContractAddress, nil
	}
	return common.Address{}, fmt.Errorf("%w on chain %d: %s has no %s", ErrNotDeployed, chainID, path, r.contractName)
}

// StaticResolver serves configured addresses.
type StaticResolver map[uint64]common.Address

func (r StaticResolver) Resolve(_ context.Context, chainID uint64) (common.Address, error) {
	addr, ok := r[chainID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w on chain %d: no configured address", ErrNotDeployed, chainID)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("chain %d: %w", chainID, errZeroAddress)
	}
	return addr, nil
}

type chain []Resolver

// Chain consults [resolvers] in order and returns the first address found.
// Only ErrNotDeployed moves on to the next resolver.
func Chain(resolvers ...Resolver) Resolver {
	return chain(resolvers)
}

func (c chain) Resolve(ctx context.Context, chainID uint64) (common.Address, error) {
	errs := make([]error, 0, len(c))
	for _, r := range c {
		addr, err := r.Resolve(ctx, chainID)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, ErrNotDeployed) {
			return common.Address{}, err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return common.Address{}, fmt.Errorf("%w on chain %d: no resolvers", ErrNotDeployed, chainID)
	}
	return common.Address{}, errors.Join(errs...)
}
