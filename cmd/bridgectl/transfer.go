// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/xbridge/bridge"
	"github.com/luxfi/xbridge/config"
	"github.com/luxfi/xbridge/deployment"
	"github.com/luxfi/xbridge/metrics"
	"github.com/luxfi/xbridge/types"
	"github.com/luxfi/xbridge/utils"
	"github.com/luxfi/xbridge/vms/evm"
	"github.com/luxfi/xbridge/vms/evm/signer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const (
	assetFlag     = "asset"
	amountFlag    = "amount"
	decimalsFlag  = "decimals"
	recipientFlag = "recipient"
	nonceFlag     = "nonce"

	nativeAssetName = "native"
	shutdownTimeout = 5 * time.Second
)

var errInvalidAddress = errors.New("invalid address")

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Run one bridgeOut/bridgeIn transfer",
	Long: `Run one transfer from the source chain to the destination chain.

The token path first approves the source bridge for the amount. bridgeIn is
only sent after bridgeOut is confirmed. Exit status is 0 on success, 1 when
nothing was bridged and 3 when the source committed but the destination did
not.`,
	RunE: runTransfer,
}

func init() {
	addTransferFlags(transferCmd.Flags())
}

func addTransferFlags(fs *pflag.FlagSet) {
	fs.String(assetFlag, nativeAssetName, "Token contract on the source chain, or native")
	fs.String(amountFlag, "0.01", "Amount in whole units")
	fs.Int(decimalsFlag, 18, "Decimals of the asset")
	fs.String(recipientFlag, "", "Recipient on the destination chain (default: destination signer in bridgeOut, source signer in bridgeIn)")
	fs.Uint64(nonceFlag, 0, "Transfer nonce (default: allocated)")
}

func runTransfer(cmd *cobra.Command, _ []string) error {
	intent, err := parseIntent(cmd)
	if err != nil {
		return bridge.NewConfigurationError(err)
	}
	// keys are checked before anything is dialed
	if err := cfg.ValidateSigners(); err != nil {
		return bridge.NewConfigurationError(err)
	}
	sourceSigner, err := signer.NewTxSigner(cfg.SourcePrivateKey)
	if err != nil {
		return bridge.NewConfigurationError(fmt.Errorf("source key: %w", err))
	}
	destinationSigner, err := signer.NewTxSigner(cfg.DestinationPrivateKey)
	if err != nil {
		return bridge.NewConfigurationError(fmt.Errorf("destination key: %w", err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceChain, _ := cfg.Chain(cfg.SourceChainID)
	destinationChain, _ := cfg.Chain(cfg.DestinationChainID)
	resolver := newResolver()

	var src, dst bridge.Endpoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src, err = dialEndpoint(gctx, resolver, sourceChain, sourceSigner)
		return err
	})
	g.Go(func() error {
		var err error
		dst, err = dialEndpoint(gctx, resolver, destinationChain, destinationSigner)
		return err
	})
	if err := g.Wait(); err != nil {
		closeEndpoints(src, dst)
		return err
	}
	defer closeEndpoints(src, dst)

	registry := prometheus.NewRegistry()
	if cfg.MetricsPort > 0 {
		server := metrics.StartServer(logger, cfg.MetricsPort, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			stopMetricsServer(shutdownCtx, server)
		}()
	}

	nonces, err := newNonceSource(cfg.NonceStrategy)
	if err != nil {
		return bridge.NewConfigurationError(err)
	}
	orchestrator, err := bridge.New(logger, bridge.Config{
		Gas:     bridge.NewGasSelector(cfg.LegacyGasChains, cfg.LegacyGasLimit),
		Nonces:  nonces,
		Metrics: metrics.NewMetrics(registry),
	})
	if err != nil {
		return err
	}

	outcome, err := orchestrator.Run(ctx, intent, src, dst)
	if outcome != nil {
		fmt.Fprint(cmd.OutOrStdout(), outcome)
	}
	switch {
	case err == nil:
		return nil
	case outcome != nil && outcome.Result == types.ResultPartial:
		return &exitError{code: exitPartial, err: err}
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return &exitError{code: exitFailure, err: err}
	}
}

func parseIntent(cmd *cobra.Command) (types.TransferIntent, error) {
	flags := cmd.Flags()
	asset, _ := flags.GetString(assetFlag)
	amountStr, _ := flags.GetString(amountFlag)
	decimals, _ := flags.GetInt(decimalsFlag)
	recipientStr, _ := flags.GetString(recipientFlag)
	nonce, _ := flags.GetUint64(nonceFlag)

	intent := types.TransferIntent{
		SourceChainID:      cfg.SourceChainID,
		DestinationChainID: cfg.DestinationChainID,
		Nonce:              nonce,
	}
	if !strings.EqualFold(asset, nativeAssetName) {
		addr, err := parseAddress(asset)
		if err != nil {
			return intent, fmt.Errorf("--%s: %w", assetFlag, err)
		}
		intent.Asset = addr
	}
	if recipientStr != "" {
		addr, err := parseAddress(recipientStr)
		if err != nil {
			return intent, fmt.Errorf("--%s: %w", recipientFlag, err)
		}
		intent.Recipient = addr
	}

	amount, err := utils.ParseUnits(amountStr, decimals)
	if err != nil {
		return intent, fmt.Errorf("--%s: %w", amountFlag, err)
	}
	intent.Amount = amount
	return intent, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

func dialEndpoint(
	ctx context.Context,
	resolver deployment.Resolver,
	chain *config.ChainConfig,
	sgnr signer.Signer,
) (bridge.Endpoint, error) {
	bridgeAddress, err := resolver.Resolve(ctx, chain.ChainID)
	if err != nil {
		return bridge.Endpoint{}, bridge.NewConfigurationError(fmt.Errorf("resolving bridge on %s: %w", chain.Name, err))
	}
	client, err := evm.NewClient(ctx, logger, chain, sgnr)
	if err != nil {
		return bridge.Endpoint{}, fmt.Errorf("failed to connect to %s: %w", chain.Name, err)
	}
	return bridge.Endpoint{
		Chain: types.ChainDescriptor{
			ChainID:       chain.ChainID,
			Name:          chain.Name,
			RPCURL:        chain.RPCURL,
			BridgeAddress: bridgeAddress,
		},
		Client: client,
	}, nil
}

func closeEndpoints(endpoints ...bridge.Endpoint) {
	for _, e := range endpoints {
		if c, ok := e.Client.(*evm.Client); ok {
			c.Close()
		}
	}
}

func stopMetricsServer(ctx context.Context, server *http.Server) {
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Failed to shut down metrics server", "addr", server.Addr, "err", err)
	}
}

func newNonceSource(strategy string) (bridge.NonceSource, error) {
	switch strategy {
	case config.NonceStrategySaltedCounter:
		return bridge.NewSaltedCounterNonces()
	default:
		return bridge.NewTimestampNonces(), nil
	}
}
