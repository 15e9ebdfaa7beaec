// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/luxfi/xbridge/bridge"
	"github.com/spf13/cobra"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List configured chains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		gas := bridge.NewGasSelector(cfg.LegacyGasChains, cfg.LegacyGasLimit)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHAIN ID\tNAME\tROLE\tGAS\tRPC\tBRIDGE")
		for _, chain := range cfg.Chains {
			role := "-"
			switch chain.ChainID {
			case cfg.SourceChainID:
				role = "source"
			case cfg.DestinationChainID:
				role = "destination"
			}
			strategy := "fee-market"
			if gas.RequiresLegacy(chain.ChainID) {
				strategy = fmt.Sprintf("legacy (limit %d)", cfg.LegacyGasLimit)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				chain.ChainID, chain.Name, role, strategy, chain.RPCURL, bridgeSource(chain))
		}
		return w.Flush()
	},
}
