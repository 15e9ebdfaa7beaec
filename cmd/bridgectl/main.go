// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/luxfi/log"
	"github.com/luxfi/log/level"
	"github.com/luxfi/xbridge/config"
	"github.com/luxfi/xbridge/deployment"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// Process exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
	exitPartial = 3
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

var (
	cfg    config.Config
	logger log.Logger
)

func main() {
	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitSuccess
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFailure
}

var rootCmd = &cobra.Command{
	Use:   "bridgectl",
	Short: "Two-phase bridge transfer orchestrator",
	Long: `bridgectl moves value between two EVM chains that each run a bridge
contract: bridgeOut locks or burns on the source chain, then bridgeIn
releases or mints on the destination chain with the same nonce.

Signing keys are read from SOURCE_PRIVATE_KEY (or PRIVATE_KEY) and
DESTINATION_PRIVATE_KEY (or COSMOS_PRIVATE_KEY).`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		v, err := config.BuildViper(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg, err = config.NewConfig(v); err != nil {
			return err
		}
		logger, err = newLogger(cfg.LogLevel)
		return err
	},
}

func init() {
	config.BuildFlagSet(rootCmd.PersistentFlags())
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(chainsCmd)
}

func newLogger(logLevel string) (log.Logger, error) {
	lvl, err := log.ToLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("error reading log level from config: %w", err)
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, handlerLevel(lvl), useColor)
	l := log.NewLoggerFromHandler(handler)
	log.SetDefault(l)
	return l, nil
}

// handlerLevel maps a configured level onto the slog threshold of the
// terminal handler.
func handlerLevel(lvl log.Level) slog.Level {
	switch {
	case lvl <= level.Verbo:
		return log.LevelDebug - 4
	case lvl <= level.Debug:
		return log.LevelDebug
	case lvl == level.Info:
		return log.LevelInfo
	case lvl == level.Warn:
		return log.LevelWarn
	case lvl == level.Error:
		return log.LevelError
	case lvl == level.Fatal:
		return log.LevelCrit
	default:
		return log.LevelCrit + 1
	}
}

// newResolver prefers configured bridge addresses over forge broadcast files.
func newResolver() deployment.Resolver {
	return deployment.Memoize(deployment.Chain(
		deployment.StaticResolver(cfg.BridgeOverrides()),
		deployment.NewBroadcastResolver(cfg.DeploymentsDir, cfg.DeploymentScript, cfg.ContractName),
	))
}
