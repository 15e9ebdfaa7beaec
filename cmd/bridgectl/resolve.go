// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/luxfi/xbridge/bridge"
	"github.com/luxfi/xbridge/config"
	"github.com/luxfi/xbridge/deployment"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [chain-id...]",
	Short: "Print the bridge address resolved for each chain",
	Long: `Print the bridge contract address for the given chains, or for the
source and destination chains when none are given. Configured addresses take
precedence over forge broadcast files.`,
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	chainIDs := []uint64{cfg.SourceChainID, cfg.DestinationChainID}
	if len(args) > 0 {
		chainIDs = chainIDs[:0]
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return bridge.NewConfigurationError(fmt.Errorf("invalid chain id %q: %w", arg, err))
			}
			chainIDs = append(chainIDs, id)
		}
	}

	resolver := newResolver()
	out := cmd.OutOrStdout()
	var errs []error
	for _, id := range chainIDs {
		addr, err := resolver.Resolve(cmd.Context(), id)
		if err != nil {
			logger.Warn("Failed to resolve bridge", "chainID", id, "err", err)
			fmt.Fprintf(out, "%-24s %s\n", chainLabel(id), "not deployed")
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%-24s %s\n", chainLabel(id), addr.Hex())
	}
	if err := errors.Join(errs...); err != nil {
		return bridge.NewConfigurationError(err)
	}
	return nil
}

func chainLabel(chainID uint64) string {
	if chain, ok := cfg.Chain(chainID); ok {
		return fmt.Sprintf("%s (%d)", chain.Name, chainID)
	}
	return fmt.Sprintf("chain-%d", chainID)
}

// bridgeSource describes where the bridge address of [chain] comes from.
func bridgeSource(chain config.ChainConfig) string {
	if chain.BridgeAddress != "" {
		return "configured " + chain.BridgeAddress
	}
	return "discovered from " + deployment.NewBroadcastResolver(cfg.DeploymentsDir, cfg.DeploymentScript, cfg.ContractName).Path(chain.ChainID)
}
