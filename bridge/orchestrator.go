// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge orchestrates two-phase transfers between two independent
// bridge contracts: bridgeOut on the source chain, then bridgeIn on the
// destination chain, correlated by a transfer nonce.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/xbridge/contracts"
	"github.com/luxfi/xbridge/metrics"
	"github.com/luxfi/xbridge/types"
)

// Config configures an Orchestrator.
type Config struct {
	// Gas selects fee fields for bridgeIn. Defaults to legacy fees on
	// LocalTestnetChainID only.
	Gas *GasSelector
	// Nonces allocates nonces for intents without one. Defaults to
	// TimestampNonces.
	Nonces NonceSource
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Orchestrator runs transfers. It is safe for concurrent use by runs with
// different transfer ids.
type Orchestrator struct {
	logger  log.Logger
	bridge  *contracts.Bridge
	erc20   *contracts.ERC20
	gas     *GasSelector
	nonces  NonceSource
	metrics *metrics.Metrics

	inFlight map[ids.ID]*transferRecord
	mu       sync.RWMutex
}

func New(logger log.Logger, cfg Config) (*Orchestrator, error) {
	bridgeABI, err := contracts.NewBridge()
	if err != nil {
		return nil, err
	}
	erc20ABI, err := contracts.NewERC20()
	if err != nil {
		return nil, err
	}

	gas := cfg.Gas
	if gas == nil {
		gas = NewGasSelector([]uint64{LocalTestnetChainID}, DefaultLegacyGasLimit)
	}
	nonces := cfg.Nonces
	if nonces == nil {
		nonces = NewTimestampNonces()
	}

	return &Orchestrator{
		logger:   logger,
		bridge:   bridgeABI,
		erc20:    erc20ABI,
		gas:      gas,
		nonces:   nonces,
		metrics:  cfg.Metrics,
		inFlight: make(map[ids.ID]*transferRecord),
	}, nil
}

// Run executes the full two-phase transfer described by [intent] from [src]
// to [dst].
//
// The returned outcome is nil only when the run was refused before anything
// was sent: a ConfigurationError or ErrTransferInFlight. Otherwise the
// outcome reports every phase, and the error, if any, is an *Error whose
// kind names the phase that stopped the run. A DestinationSubmissionError
// always comes with Result == ResultPartial: the source funds are committed
// and recovering them is left to the operator.
func (o *Orchestrator) Run(
	ctx context.Context,
	intent types.TransferIntent,
	src, dst Endpoint,
) (*types.TransferOutcome, error) {
	if err := validate(&intent, src, dst); err != nil {
		return nil, err
	}
	if intent.Nonce == 0 {
		nonce, err := o.nonces.Next()
		if err != nil {
			return nil, configurationError("failed to allocate nonce: %w", err)
		}
		intent.Nonce = nonce
	}

	// Without an explicit recipient, bridgeOut names the destination signer
	// and bridgeIn credits the source signer.
	sender := src.Client.SenderAddress()
	toAddress, recipient := intent.Recipient, intent.Recipient
	if intent.Recipient == (common.Address{}) {
		toAddress = dst.Client.SenderAddress()
		recipient = sender
	}

	transferID := types.TransferID(intent.SourceChainID, intent.DestinationChainID, sender, intent.Nonce)
	record, err := o.register(transferID, intent)
	if err != nil {
		return nil, err
	}
	defer o.unregister(transferID)

	o.metrics.TransferStarted()
	defer o.metrics.TransferFinished()

	path := NewAssetPath(intent.Asset)
	amount := intent.Amount.ToBig()
	logger := o.logger.With("transferID", transferID, "nonce", intent.Nonce)
	logger.Info(
		"Starting transfer",
		"sourceChain", src.Chain,
		"sourceBridge", src.Chain.BridgeAddress,
		"destinationChain", dst.Chain,
		"destinationBridge", dst.Chain.BridgeAddress,
		"asset", path,
		"amount", intent.Amount.Dec(),
		"toChainID", intent.DestinationChainID,
		"toAddress", toAddress,
		"recipient", recipient,
	)

	outcome := &types.TransferOutcome{
		TransferID: transferID,
		Nonce:      intent.Nonce,
		Out:        types.PhaseOutcome{Phase: types.PhaseOut, ChainID: intent.SourceChainID},
		In:         types.PhaseOutcome{Phase: types.PhaseIn, ChainID: intent.DestinationChainID},
	}
	srcRunner := phaseRunner{
		logger:  logger.With("chain", src.Chain.Name),
		client:  src.Client,
		metrics: o.metrics,
	}
	dstRunner := phaseRunner{
		logger:  logger.With("chain", dst.Chain.Name),
		client:  dst.Client,
		metrics: o.metrics,
	}

	// Step 1: allowance for the token path
	if !path.Native() {
		if err := record.advance(StateApproving); err != nil {
			return outcome, err
		}
		approval, err := path.grantAllowance(ctx, srcRunner, o.erc20, src.Chain.BridgeAddress, amount)
		outcome.Approval = &approval
		if err != nil {
			return o.finish(logger, record, outcome, &Error{
				Kind:    KindAllowance,
				Phase:   types.PhaseApprove,
				ChainID: intent.SourceChainID,
				Nonce:   intent.Nonce,
				Err:     err,
			})
		}
	}

	// Step 2: bridgeOut on the source chain
	if err := record.advance(StateAwaitingSource); err != nil {
		return outcome, err
	}
	outData, err := o.bridge.PackBridgeOut(contracts.BridgeOutArgs{
		Token:     path.AssetAddress(),
		Amount:    amount,
		ToChainID: new(big.Int).SetUint64(intent.DestinationChainID),
		ToAddress: toAddress,
		Nonce:     new(big.Int).SetUint64(intent.Nonce),
	})
	if err != nil {
		outcome.Out.Status = types.StatusRejected
		outcome.Out.Err = err
	} else {
		outcome.Out = srcRunner.run(ctx, types.PhaseOut, src.Chain.BridgeAddress, outData, path.AttachedValue(amount), nil)
	}
	if !outcome.Out.Confirmed() {
		return o.finish(logger, record, outcome, &Error{
			Kind:    KindSourceSubmission,
			Phase:   types.PhaseOut,
			ChainID: intent.SourceChainID,
			Nonce:   intent.Nonce,
			Err:     outcome.Out.Err,
		})
	}
	logger.Info("bridgeOut confirmed", "chain", src.Chain, "txHash", outcome.Out.TxHash)

	// Step 3: bridgeIn on the destination chain
	if err := record.advance(StateAwaitingDestination); err != nil {
		return outcome, err
	}
	outcome.In = o.bridgeIn(ctx, dstRunner, intent, path, sender, recipient, amount, dst)
	if !outcome.In.Confirmed() {
		return o.finish(logger, record, outcome, &Error{
			Kind:    KindDestinationSubmission,
			Phase:   types.PhaseIn,
			ChainID: intent.DestinationChainID,
			Nonce:   intent.Nonce,
			Err:     outcome.In.Err,
		})
	}
	logger.Info("bridgeIn confirmed", "chain", dst.Chain, "txHash", outcome.In.TxHash)

	return o.finish(logger, record, outcome, nil)
}

func (o *Orchestrator) bridgeIn(
	ctx context.Context,
	runner phaseRunner,
	intent types.TransferIntent,
	path AssetPath,
	sender, recipient common.Address,
	amount *big.Int,
	dst Endpoint,
) types.PhaseOutcome {
	failed := func(status types.PhaseStatus, err error) types.PhaseOutcome {
		return types.PhaseOutcome{
			Phase:   types.PhaseIn,
			Status:  status,
			ChainID: intent.DestinationChainID,
			Err:     err,
		}
	}
	if err := ctx.Err(); err != nil {
		return failed(types.StatusCanceled, err)
	}

	fee, err := o.gas.FeeOverride(ctx, intent.DestinationChainID, dst.Client)
	if err != nil {
		return failed(types.StatusRejected, err)
	}
	if fee != nil {
		runner.logger.Info("Using legacy gas", "gasPrice", fee.GasPrice, "gasLimit", fee.GasLimit)
	}

	data, err := o.bridge.PackBridgeIn(contracts.BridgeInArgs{
		FromUser:    sender,
		Token:       path.AssetAddress(),
		Amount:      amount,
		FromChainID: new(big.Int).SetUint64(intent.SourceChainID),
		ToUser:      recipient,
		Nonce:       new(big.Int).SetUint64(intent.Nonce),
	})
	if err != nil {
		return failed(types.StatusRejected, err)
	}
	return runner.run(ctx, types.PhaseIn, dst.Chain.BridgeAddress, data, nil, fee)
}

// finish moves the record to its terminal state, reports and returns.
func (o *Orchestrator) finish(
	logger log.Logger,
	record *transferRecord,
	outcome *types.TransferOutcome,
	runErr *Error,
) (*types.TransferOutcome, error) {
	var next TransferState
	switch {
	case runErr == nil:
		next = StateDone
		outcome.Result = types.ResultSuccess
	case outcome.Out.Confirmed():
		next = StatePartial
		outcome.Result = types.ResultPartial
	default:
		next = StateFailed
		outcome.Result = types.ResultFailed
	}
	if err := record.advance(next); err != nil {
		if runErr == nil {
			return outcome, err
		}
		return outcome, errors.Join(runErr, err)
	}
	o.metrics.ObserveTransfer(outcome.Out.ChainID, outcome.In.ChainID, outcome.Result)

	switch outcome.Result {
	case types.ResultSuccess:
		logger.Info("Bridge transfer complete", "out", outcome.Out.TxHash, "in", outcome.In.TxHash)
		return outcome, nil
	case types.ResultPartial:
		logger.Error(
			"Bridge transfer partially complete, source funds committed",
			"out", outcome.Out.TxHash,
			"inStatus", outcome.In.Status,
			"err", runErr,
		)
	default:
		logger.Error("Bridge transfer failed, nothing bridged", "outStatus", outcome.Out.Status, "err", runErr)
	}
	return outcome, runErr
}

// State returns the state of an in-flight transfer.
func (o *Orchestrator) State(transferID ids.ID) (TransferState, bool) {
	o.mu.RLock()
	record, ok := o.inFlight[transferID]
	o.mu.RUnlock()
	if !ok {
		return StatePending, false
	}
	return record.State(), true
}

func (o *Orchestrator) register(transferID ids.ID, intent types.TransferIntent) (*transferRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.inFlight[transferID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTransferInFlight, transferID)
	}
	record := newTransferRecord(transferID, intent)
	o.inFlight[transferID] = record
	return record, nil
}

func (o *Orchestrator) unregister(transferID ids.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, transferID)
}

// validate checks the preconditions of Run and fills chain ids the intent
// leaves zero from the endpoints.
func validate(intent *types.TransferIntent, src, dst Endpoint) error {
	if src.Client == nil || dst.Client == nil {
		return configurationError("missing chain client")
	}
	for _, e := range []Endpoint{src, dst} {
		if !e.Chain.Resolved() {
			return configurationError("%s: %w", e.Chain, errUnresolvedBridgeAddress)
		}
		if got := e.Client.ChainID(); got != e.Chain.ChainID {
			return configurationError("client for %s is connected to chain %d", e.Chain, got)
		}
	}
	if src.Chain.ChainID == dst.Chain.ChainID {
		return configurationError("source and destination are both chain %d", src.Chain.ChainID)
	}
	if intent.Amount == nil || intent.Amount.IsZero() {
		return configurationError("transfer amount must be positive")
	}

	if intent.SourceChainID == 0 {
		intent.SourceChainID = src.Chain.ChainID
	}
	if intent.DestinationChainID == 0 {
		intent.DestinationChainID = dst.Chain.ChainID
	}
	if intent.SourceChainID != src.Chain.ChainID {
		return configurationError("intent source chain %d does not match %s", intent.SourceChainID, src.Chain)
	}
	if intent.DestinationChainID != dst.Chain.ChainID {
		return configurationError("intent destination chain %d does not match %s", intent.DestinationChainID, dst.Chain)
	}
	return nil
}
