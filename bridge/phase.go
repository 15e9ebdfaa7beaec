// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xbridge/metrics"
	"github.com/luxfi/xbridge/types"
)

// phaseRunner submits one phase transaction on one chain and resolves it.
type phaseRunner struct {
	logger  log.Logger
	client  ChainClient
	metrics *metrics.Metrics
}

// run never sends a transaction once [ctx] is done. A broadcast phase is
// always resolved, even if [ctx] is canceled while waiting.
func (r phaseRunner) run(
	ctx context.Context,
	phase types.Phase,
	to common.Address,
	data []byte,
	value *big.Int,
	fee *types.FeeOverride,
) types.PhaseOutcome {
	outcome := types.PhaseOutcome{
		Phase:   phase,
		ChainID: r.client.ChainID(),
	}
	if err := ctx.Err(); err != nil {
		outcome.Status = types.StatusCanceled
		outcome.Err = err
		r.logger.Warn("Skipping phase, transfer canceled", "phase", phase, "err", err)
		return outcome
	}

	start := time.Now()
	defer func() {
		r.metrics.ObservePhase(outcome, time.Since(start))
	}()

	txHash, err := r.client.SubmitTransaction(ctx, to, data, value, fee)
	if err != nil {
		outcome.Status = types.StatusRejected
		outcome.Err = fmt.Errorf("failed to submit %s transaction: %w", phase, err)
		r.logger.Error("Failed to submit transaction", "phase", phase, "to", to, "err", err)
		return outcome
	}
	outcome.TxHash = txHash
	r.logger.Info("Submitted transaction", "phase", phase, "to", to, "txHash", txHash)

	confirmation, err := r.client.AwaitConfirmation(context.WithoutCancel(ctx), txHash)
	if err == nil && confirmation == nil {
		err = errMissingConfirmation
	}
	if err != nil {
		// broadcast but never observed; the chain may still include it
		outcome.Status = types.StatusTimedOut
		if !errors.Is(err, types.ErrConfirmationTimeout) {
			err = fmt.Errorf("%w: %w", types.ErrConfirmationTimeout, err)
		}
		outcome.Err = fmt.Errorf("failed to confirm %s transaction %s: %w", phase, txHash, err)
		r.logger.Error("Failed to confirm transaction", "phase", phase, "txHash", txHash, "err", err)
		return outcome
	}

	outcome.BlockNumber = confirmation.BlockNumber
	if confirmation.Status != types.ConfirmationConfirmed {
		outcome.Status = types.StatusReverted
		outcome.Err = fmt.Errorf("%s transaction %s: %w", phase, txHash, errTransactionReverted)
		r.logger.Error("Transaction reverted", "phase", phase, "txHash", txHash, "block", confirmation.BlockNumber)
		return outcome
	}

	outcome.Status = types.StatusConfirmed
	r.logger.Info(
		"Transaction confirmed",
		"phase", phase,
		"txHash", txHash,
		"block", confirmation.BlockNumber,
		"gasUsed", confirmation.GasUsed,
	)
	return outcome
}
