// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// BuildFlagSet registers the flags shared by every command.
func BuildFlagSet(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Specifies the config file (json or yaml)")
	fs.String(LogLevelKey, defaultLogLevel, "Log level: verbo, debug, info, warn, error, fatal or off")
	fs.Uint16(MetricsPortKey, defaultMetricsPort, "Serves prometheus metrics on this port when non-zero")
	fs.Uint64(SourceChainKey, sepoliaChainID, "Chain id bridgeOut is sent to")
	fs.Uint64(DestinationChainKey, localTestnetChainID, "Chain id bridgeIn is sent to")
	fs.Duration(TxInclusionTimeoutKey, defaultTxInclusionTimeout, "How long to wait for a transaction receipt")
	fs.String(DeploymentsDirKey, defaultDeploymentsDir, "Forge broadcast directory")
	fs.String(NonceStrategyKey, NonceStrategyTimestamp, "Nonce allocation: timestamp or salted-counter")
}

// BuildViper builds the viper instance. The config file is optional and may
// be provided via the command line flag or environment variable. All config
// keys may be provided via config file or environment variable.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	if err := v.BindEnv(ConfigFileKey, ConfigFileEnvKey); err != nil {
		return nil, err
	}
	if err := v.BindEnv(SourcePrivateKeyKey, SourcePrivateKeyEnvKey, SourcePrivateKeyLegacyEnvKey); err != nil {
		return nil, err
	}
	if err := v.BindEnv(DestinationPrivateKeyKey, DestinationPrivateKeyEnvKey, DestinationPrivateKeyLegacyEnvKey); err != nil {
		return nil, err
	}

	if filename := v.GetString(ConfigFileKey); filename != "" {
		v.SetConfigFile(getExpandedPath(filename))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(MetricsPortKey, defaultMetricsPort)
	v.SetDefault(SourceChainKey, sepoliaChainID)
	v.SetDefault(DestinationChainKey, localTestnetChainID)
	v.SetDefault(LegacyGasChainsKey, []uint64{localTestnetChainID})
	v.SetDefault(LegacyGasLimitKey, defaultLegacyGasLimit)
	v.SetDefault(TxInclusionTimeoutKey, defaultTxInclusionTimeout)
	v.SetDefault(DeploymentsDirKey, defaultDeploymentsDir)
	v.SetDefault(DeploymentScriptKey, defaultDeploymentScript)
	v.SetDefault(ContractNameKey, defaultContractName)
	v.SetDefault(NonceStrategyKey, NonceStrategyTimestamp)

	chains := make([]map[string]any, 0, 2)
	for _, chain := range defaultChains() {
		chains = append(chains, map[string]any{
			"chain-id": chain.ChainID,
			"name":     chain.Name,
			"rpc-url":  chain.RPCURL,
		})
	}
	v.SetDefault(ChainsKey, chains)
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	cfg.applyChainDefaults()
	return cfg, nil
}

// getExpandedPath expands any variables in [path] using the OS env.
func getExpandedPath(path string) string {
	return os.Expand(
		path,
		func(strVar string) string {
			return os.Getenv(strVar)
		},
	)
}
