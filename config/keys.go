// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"

	// Top-level configuration keys
	LogLevelKey              = "log-level"
	MetricsPortKey           = "metrics-port"
	ChainsKey                = "chains"
	SourceChainKey           = "source-chain"
	DestinationChainKey      = "destination-chain"
	LegacyGasChainsKey       = "legacy-gas-chains"
	LegacyGasLimitKey        = "legacy-gas-limit"
	TxInclusionTimeoutKey    = "tx-inclusion-timeout"
	DeploymentsDirKey        = "deployments-dir"
	DeploymentScriptKey      = "deployment-script"
	ContractNameKey          = "contract-name"
	NonceStrategyKey         = "nonce-strategy"
	SourcePrivateKeyKey      = "source-private-key"
	DestinationPrivateKeyKey = "destination-private-key"

	// Environment variable keys
	ConfigFileEnvKey                  = "CONFIG_FILE"
	SourcePrivateKeyEnvKey            = "SOURCE_PRIVATE_KEY"
	SourcePrivateKeyLegacyEnvKey      = "PRIVATE_KEY"
	DestinationPrivateKeyEnvKey       = "DESTINATION_PRIVATE_KEY"
	DestinationPrivateKeyLegacyEnvKey = "COSMOS_PRIVATE_KEY"
)
