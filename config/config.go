// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
)

const (
	NonceStrategyTimestamp     = "timestamp"
	NonceStrategySaltedCounter = "salted-counter"

	defaultLogLevel           = "info"
	defaultMetricsPort        = uint16(0)
	defaultLegacyGasLimit     = uint64(500_000)
	defaultTxInclusionTimeout = 120 * time.Second
	defaultDeploymentsDir     = "contracts/broadcast"
	defaultDeploymentScript   = "DeployCosmosBridge.sol"
	defaultContractName       = "CosmosBridge"

	localTestnetChainID = uint64(262144)
	sepoliaChainID      = uint64(11155111)
)

var (
	ErrMissingPrivateKey = errors.New("missing private key")
	ErrUnknownChain      = errors.New("chain not configured")

	errNoChains             = errors.New("no chains configured")
	errInvalidChainID       = errors.New("chain id must be positive")
	errDuplicateChain       = errors.New("chain configured more than once")
	errMissingRPCURL        = errors.New("rpc-url not set")
	errInvalidBridgeAddress = errors.New("bridge-address is not a hex address")
	errSameChain            = errors.New("source and destination chains are the same")
	errInvalidLogLevel      = errors.New("invalid log level")
	errInvalidNonceStrategy = errors.New("invalid nonce strategy")
	errInvalidTimeout       = errors.New("tx-inclusion-timeout must be positive")
)

// Config is the bridgectl configuration.
type Config struct {
	LogLevel           string        `mapstructure:"log-level" json:"log-level"`
	MetricsPort        uint16        `mapstructure:"metrics-port" json:"metrics-port"`
	Chains             []ChainConfig `mapstructure:"chains" json:"chains"`
	SourceChainID      uint64        `mapstructure:"source-chain" json:"source-chain"`
	DestinationChainID uint64        `mapstructure:"destination-chain" json:"destination-chain"`

	// LegacyGasChains lists destination chains without fee-market support.
	LegacyGasChains    []uint64      `mapstructure:"legacy-gas-chains" json:"legacy-gas-chains"`
	LegacyGasLimit     uint64        `mapstructure:"legacy-gas-limit" json:"legacy-gas-limit"`
	TxInclusionTimeout time.Duration `mapstructure:"tx-inclusion-timeout" json:"tx-inclusion-timeout"`

	DeploymentsDir   string `mapstructure:"deployments-dir" json:"deployments-dir"`
	DeploymentScript string `mapstructure:"deployment-script" json:"deployment-script"`
	ContractName     string `mapstructure:"contract-name" json:"contract-name"`

	NonceStrategy string `mapstructure:"nonce-strategy" json:"nonce-strategy"`

	SourcePrivateKey      string `mapstructure:"source-private-key" json:"-"`
	DestinationPrivateKey string `mapstructure:"destination-private-key" json:"-"`
}

// ChainConfig describes one chain endpoint.
type ChainConfig struct {
	ChainID uint64 `mapstructure:"chain-id" json:"chain-id"`
	Name    string `mapstructure:"name" json:"name"`
	RPCURL  string `mapstructure:"rpc-url" json:"rpc-url"`
	// BridgeAddress overrides deployment discovery when set.
	BridgeAddress        string        `mapstructure:"bridge-address" json:"bridge-address"`
	MaxPriorityFeePerGas uint64        `mapstructure:"max-priority-fee-per-gas" json:"max-priority-fee-per-gas"`
	TxInclusionTimeout   time.Duration `mapstructure:"tx-inclusion-timeout" json:"tx-inclusion-timeout"`
}

func defaultChains() []ChainConfig {
	return []ChainConfig{
		{
			ChainID: localTestnetChainID,
			Name:    "Local/Testnet",
			RPCURL:  "http://localhost:8545",
		},
		{
			ChainID: sepoliaChainID,
			Name:    "Sepolia",
			RPCURL:  "https://rpc.sepolia.org",
		},
	}
}

// Validate checks everything except the signing keys, which only the
// commands that submit transactions need.
func (c *Config) Validate() error {
	if _, err := log.ToLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}
	if len(c.Chains) == 0 {
		return errNoChains
	}
	seen := make(map[uint64]struct{}, len(c.Chains))
	for i := range c.Chains {
		chain := &c.Chains[i]
		if err := chain.Validate(); err != nil {
			return fmt.Errorf("invalid chain %d: %w", i, err)
		}
		if _, ok := seen[chain.ChainID]; ok {
			return fmt.Errorf("%w: %d", errDuplicateChain, chain.ChainID)
		}
		seen[chain.ChainID] = struct{}{}
	}
	if _, ok := c.Chain(c.SourceChainID); !ok {
		return fmt.Errorf("source %w: %d", ErrUnknownChain, c.SourceChainID)
	}
	if _, ok := c.Chain(c.DestinationChainID); !ok {
		return fmt.Errorf("destination %w: %d", ErrUnknownChain, c.DestinationChainID)
	}
	if c.SourceChainID == c.DestinationChainID {
		return fmt.Errorf("%w: %d", errSameChain, c.SourceChainID)
	}
	if c.TxInclusionTimeout <= 0 {
		return errInvalidTimeout
	}
	switch c.NonceStrategy {
	case NonceStrategyTimestamp, NonceStrategySaltedCounter:
	default:
		return fmt.Errorf("%w: %q", errInvalidNonceStrategy, c.NonceStrategy)
	}
	return nil
}

// ValidateSigners checks that both signing keys are present.
func (c *Config) ValidateSigners() error {
	if strings.TrimSpace(c.SourcePrivateKey) == "" {
		return fmt.Errorf("%w: set %s or %s", ErrMissingPrivateKey, SourcePrivateKeyEnvKey, SourcePrivateKeyLegacyEnvKey)
	}
	if strings.TrimSpace(c.DestinationPrivateKey) == "" {
		return fmt.Errorf("%w: set %s or %s", ErrMissingPrivateKey, DestinationPrivateKeyEnvKey, DestinationPrivateKeyLegacyEnvKey)
	}
	return nil
}

func (c *ChainConfig) Validate() error {
	if c.ChainID == 0 {
		return errInvalidChainID
	}
	if c.RPCURL == "" {
		return fmt.Errorf("chain %d: %w", c.ChainID, errMissingRPCURL)
	}
	if c.BridgeAddress != "" && !common.IsHexAddress(c.BridgeAddress) {
		return fmt.Errorf("chain %d: %w: %q", c.ChainID, errInvalidBridgeAddress, c.BridgeAddress)
	}
	return nil
}

// Chain returns the configuration of [chainID].
func (c *Config) Chain(chainID uint64) (*ChainConfig, bool) {
	for i := range c.Chains {
		if c.Chains[i].ChainID == chainID {
			return &c.Chains[i], true
		}
	}
	return nil, false
}

// BridgeOverrides returns the configured bridge addresses by chain id.
func (c *Config) BridgeOverrides() map[uint64]common.Address {
	overrides := make(map[uint64]common.Address)
	for _, chain := range c.Chains {
		if chain.BridgeAddress != "" {
			overrides[chain.ChainID] = common.HexToAddress(chain.BridgeAddress)
		}
	}
	return overrides
}

// applyChainDefaults fills per-chain settings left unset from the
// top-level values.
func (c *Config) applyChainDefaults() {
	for i := range c.Chains {
		if c.Chains[i].TxInclusionTimeout == 0 {
			c.Chains[i].TxInclusionTimeout = c.TxInclusionTimeout
		}
		if c.Chains[i].Name == "" {
			c.Chains[i].Name = fmt.Sprintf("chain-%d", c.Chains[i].ChainID)
		}
	}
}
