// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xbridge/contracts"
	"github.com/luxfi/xbridge/metrics"
	"github.com/luxfi/xbridge/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	sepoliaChainID = uint64(11155111)
	testNonce      = uint64(1_718_000_000_123)
)

var (
	sourceSigner      = common.HexToAddress("0x9011E888251AB053B7bD1cdB598Db4f9DEd94714")
	destinationSigner = common.HexToAddress("0x1D3B6B2e4b5bB1f0F0cC9c1e1E0AaA6d7C7C1f22")
	sourceBridge      = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	destinationBridge = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	testToken         = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")

	// 0.01 of an 18-decimals asset
	centiEther = uint256.NewInt(10_000_000_000_000_000)
)

type testHarness struct {
	orchestrator *Orchestrator
	src, dst     *fakeChainClient
	journal      *journal
	registry     *prometheus.Registry
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	registry := prometheus.NewRegistry()
	orchestrator, err := New(log.Root(), Config{
		Gas:     NewGasSelector([]uint64{LocalTestnetChainID}, DefaultLegacyGasLimit),
		Metrics: metrics.NewMetrics(registry),
	})
	require.NoError(t, err)

	j := &journal{}
	src := newFakeChainClient(sepoliaChainID, sourceSigner)
	dst := newFakeChainClient(LocalTestnetChainID, destinationSigner)
	src.journal = j
	dst.journal = j
	return &testHarness{
		orchestrator: orchestrator,
		src:          src,
		dst:          dst,
		journal:      j,
		registry:     registry,
	}
}

func (h *testHarness) endpoints() (Endpoint, Endpoint) {
	src := Endpoint{
		Chain: types.ChainDescriptor{
			ChainID:       h.src.chainID,
			Name:          "sepolia",
			BridgeAddress: sourceBridge,
		},
		Client: h.src,
	}
	dst := Endpoint{
		Chain: types.ChainDescriptor{
			ChainID:       h.dst.chainID,
			Name:          "local",
			BridgeAddress: destinationBridge,
		},
		Client: h.dst,
	}
	return src, dst
}

func (h *testHarness) run(ctx context.Context, intent types.TransferIntent) (*types.TransferOutcome, error) {
	src, dst := h.endpoints()
	return h.orchestrator.Run(ctx, intent, src, dst)
}

func nativeIntent() types.TransferIntent {
	return types.TransferIntent{
		Asset:  types.NativeAsset,
		Amount: centiEther.Clone(),
		Nonce:  testNonce,
	}
}

func tokenIntent() types.TransferIntent {
	intent := nativeIntent()
	intent.Asset = testToken
	return intent
}

func decodeBridgeOut(t *testing.T, tx submittedTx) contracts.BridgeOutArgs {
	t.Helper()
	b, err := contracts.NewBridge()
	require.NoError(t, err)
	args, err := b.UnpackBridgeOut(tx.Data)
	require.NoError(t, err)
	return args
}

func decodeBridgeIn(t *testing.T, tx submittedTx) contracts.BridgeInArgs {
	t.Helper()
	b, err := contracts.NewBridge()
	require.NoError(t, err)
	args, err := b.UnpackBridgeIn(tx.Data)
	require.NoError(t, err)
	return args
}

func TestNativeTransferToLegacyChain(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)

	outcome, err := h.run(context.Background(), nativeIntent())
	require.NoError(err)
	require.Equal(types.ResultSuccess, outcome.Result)
	require.Nil(outcome.Approval)
	require.Equal(types.StatusConfirmed, outcome.Out.Status)
	require.Equal(types.StatusConfirmed, outcome.In.Status)
	require.Equal(sepoliaChainID, outcome.Out.ChainID)
	require.Equal(LocalTestnetChainID, outcome.In.ChainID)
	require.Equal(types.TransferID(sepoliaChainID, LocalTestnetChainID, sourceSigner, testNonce), outcome.TransferID)

	// one allowance-free bridgeOut carrying the amount as value
	srcTxs := h.src.submissions()
	require.Len(srcTxs, 1)
	require.Equal(sourceBridge, srcTxs[0].To)
	require.Equal(centiEther.ToBig(), srcTxs[0].Value)
	require.Nil(srcTxs[0].Fee)
	out := decodeBridgeOut(t, srcTxs[0])
	require.Equal(types.NativeAsset, out.Token)
	require.Equal(centiEther.ToBig(), out.Amount)
	require.Equal(new(big.Int).SetUint64(LocalTestnetChainID), out.ToChainID)
	require.Equal(destinationSigner, out.ToAddress)

	// bridgeIn with a legacy fee descriptor and a fixed ceiling
	dstTxs := h.dst.submissions()
	require.Len(dstTxs, 1)
	require.Equal(destinationBridge, dstTxs[0].To)
	require.Nil(dstTxs[0].Value)
	require.NotNil(dstTxs[0].Fee)
	require.True(dstTxs[0].Fee.Legacy())
	require.Equal(DefaultLegacyGasLimit, dstTxs[0].Fee.GasLimit)
	require.Equal(h.dst.gasPrice, dstTxs[0].Fee.GasPrice)

	in := decodeBridgeIn(t, dstTxs[0])
	require.Equal(sourceSigner, in.FromUser)
	require.Equal(sourceSigner, in.ToUser)
	require.Equal(types.NativeAsset, in.Token)
	require.Equal(out.Amount, in.Amount)
	require.Equal(out.Nonce, in.Nonce)
	require.Equal(new(big.Int).SetUint64(sepoliaChainID), in.FromChainID)

	require.Equal(
		[]string{"submit bridgeOut", "resolve bridgeOut", "submit bridgeIn", "resolve bridgeIn"},
		h.journal.entries(),
	)

	_, inFlight := h.orchestrator.State(outcome.TransferID)
	require.False(inFlight)
	require.NoError(testutil.GatherAndCompare(h.registry, strings.NewReader(`
# HELP xbridge_transfer_count Number of finished transfers by result
# TYPE xbridge_transfer_count counter
xbridge_transfer_count{destination_chain_id="262144",result="success",source_chain_id="11155111"} 1
`), "xbridge_transfer_count"))
}

func TestTokenTransferApprovesFirst(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)

	outcome, err := h.run(context.Background(), tokenIntent())
	require.NoError(err)
	require.Equal(types.ResultSuccess, outcome.Result)
	require.NotNil(outcome.Approval)
	require.Equal(types.StatusConfirmed, outcome.Approval.Status)

	require.Equal(
		[]string{
			"submit approve", "resolve approve",
			"submit bridgeOut", "resolve bridgeOut",
			"submit bridgeIn", "resolve bridgeIn",
		},
		h.journal.entries(),
	)

	srcTxs := h.src.submissions()
	require.Len(srcTxs, 2)

	erc20, err := contracts.NewERC20()
	require.NoError(err)
	require.Equal(testToken, srcTxs[0].To)
	spender, allowance, err := erc20.UnpackApprove(srcTxs[0].Data)
	require.NoError(err)
	require.Equal(sourceBridge, spender)
	require.Equal(centiEther.ToBig(), allowance)

	require.Nil(srcTxs[1].Value)
	out := decodeBridgeOut(t, srcTxs[1])
	require.Equal(testToken, out.Token)

	in := decodeBridgeIn(t, h.dst.submissions()[0])
	require.Equal(testToken, in.Token)
	require.Equal(out.Nonce, in.Nonce)
}

func TestTokenTransferSourceRevert(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)
	h.src.on(contracts.BridgeOutMethod, fakeRevert)

	outcome, err := h.run(context.Background(), tokenIntent())
	require.ErrorIs(err, ErrSourceSubmission)
	require.ErrorIs(err, errTransactionReverted)
	require.NotErrorIs(err, ErrDestinationSubmission)

	var bridgeErr *Error
	require.ErrorAs(err, &bridgeErr)
	require.Equal(types.PhaseOut, bridgeErr.Phase)
	require.Equal(sepoliaChainID, bridgeErr.ChainID)
	require.Equal(testNonce, bridgeErr.Nonce)

	require.Equal(types.ResultFailed, outcome.Result)
	require.Equal(types.StatusConfirmed, outcome.Approval.Status)
	require.Equal(types.StatusReverted, outcome.Out.Status)
	require.True(outcome.Out.Broadcast())
	require.Equal(types.StatusNotAttempted, outcome.In.Status)
	require.Empty(h.dst.submissions())
}

func TestAllowanceFailureStopsTransfer(t *testing.T) {
	tests := []struct {
		name     string
		behavior fakeBehavior
		status   types.PhaseStatus
	}{
		{
			name:     "rejected",
			behavior: fakeReject,
			status:   types.StatusRejected,
		},
		{
			name:     "reverted",
			behavior: fakeRevert,
			status:   types.StatusReverted,
		},
		{
			name:     "timed out",
			behavior: fakeTimeout,
			status:   types.StatusTimedOut,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			h := newTestHarness(t)
			h.src.on(contracts.ApproveMethod, test.behavior)

			outcome, err := h.run(context.Background(), tokenIntent())
			require.ErrorIs(err, ErrAllowance)
			require.Equal(types.ResultFailed, outcome.Result)
			require.Equal(test.status, outcome.Approval.Status)
			require.Equal(types.StatusNotAttempted, outcome.Out.Status)
			require.Equal(types.StatusNotAttempted, outcome.In.Status)

			for _, tx := range h.src.submissions() {
				require.Equal(contracts.ApproveMethod, methodOf(tx.Data))
			}
			require.Empty(h.dst.submissions())
		})
	}
}

func TestSourceFailureNeverCallsDestination(t *testing.T) {
	tests := []struct {
		name     string
		behavior fakeBehavior
		status   types.PhaseStatus
		target   error
	}{
		{
			name:     "rejected",
			behavior: fakeReject,
			status:   types.StatusRejected,
			target:   errFakeRPC,
		},
		{
			name:     "reverted",
			behavior: fakeRevert,
			status:   types.StatusReverted,
			target:   errTransactionReverted,
		},
		{
			name:     "unconfirmed",
			behavior: fakeTimeout,
			status:   types.StatusTimedOut,
			target:   types.ErrConfirmationTimeout,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			h := newTestHarness(t)
			h.src.on(contracts.BridgeOutMethod, test.behavior)

			outcome, err := h.run(context.Background(), nativeIntent())
			require.ErrorIs(err, ErrSourceSubmission)
			require.ErrorIs(err, test.target)
			require.Equal(types.ResultFailed, outcome.Result)
			require.Equal(test.status, outcome.Out.Status)
			require.Equal(types.StatusNotAttempted, outcome.In.Status)
			require.Empty(h.dst.submissions())
			require.Zero(h.dst.awaitCount())
		})
	}
}

func TestDestinationTimeoutIsPartial(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)
	h.dst.on(contracts.BridgeInMethod, fakeTimeout)

	outcome, err := h.run(context.Background(), nativeIntent())
	require.ErrorIs(err, ErrDestinationSubmission)
	require.ErrorIs(err, types.ErrConfirmationTimeout)
	require.NotErrorIs(err, ErrSourceSubmission)

	require.Equal(types.ResultPartial, outcome.Result)
	phases := outcome.Phases()
	require.Equal(types.StatusConfirmed, phases[0].Status)
	require.Equal(types.StatusTimedOut, phases[1].Status)
	require.True(phases[1].Broadcast())

	var bridgeErr *Error
	require.ErrorAs(err, &bridgeErr)
	require.Equal(types.PhaseIn, bridgeErr.Phase)
	require.Equal(LocalTestnetChainID, bridgeErr.ChainID)
}

func TestDestinationFailureIsPartial(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeChainClient)
		status types.PhaseStatus
	}{
		{
			name:   "rejected",
			mutate: func(f *fakeChainClient) { f.on(contracts.BridgeInMethod, fakeReject) },
			status: types.StatusRejected,
		},
		{
			name:   "reverted",
			mutate: func(f *fakeChainClient) { f.on(contracts.BridgeInMethod, fakeRevert) },
			status: types.StatusReverted,
		},
		{
			name:   "gas price unavailable",
			mutate: func(f *fakeChainClient) { f.gasPrice = nil },
			status: types.StatusRejected,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			h := newTestHarness(t)
			test.mutate(h.dst)

			outcome, err := h.run(context.Background(), nativeIntent())
			require.ErrorIs(err, ErrDestinationSubmission)
			require.Equal(types.ResultPartial, outcome.Result)
			require.Equal(types.StatusConfirmed, outcome.Out.Status)
			require.Equal(test.status, outcome.In.Status)
		})
	}
}

func TestNetworkDefaultDestinationHasNoFeeOverride(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)

	// reverse direction: local testnet to sepolia
	h.src, h.dst = newFakeChainClient(LocalTestnetChainID, sourceSigner), newFakeChainClient(sepoliaChainID, destinationSigner)

	outcome, err := h.run(context.Background(), nativeIntent())
	require.NoError(err)
	require.Equal(types.ResultSuccess, outcome.Result)

	dstTxs := h.dst.submissions()
	require.Len(dstTxs, 1)
	require.Nil(dstTxs[0].Fee)
	for _, tx := range h.src.submissions() {
		require.Nil(tx.Fee)
	}
}

func TestExplicitRecipient(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)

	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	intent := nativeIntent()
	intent.Recipient = recipient

	_, err := h.run(context.Background(), intent)
	require.NoError(err)

	out := decodeBridgeOut(t, h.src.submissions()[0])
	require.Equal(recipient, out.ToAddress)
	in := decodeBridgeIn(t, h.dst.submissions()[0])
	require.Equal(sourceSigner, in.FromUser)
	require.Equal(recipient, in.ToUser)
}

func TestAllocatedNonceIsShared(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)

	intent := nativeIntent()
	intent.Nonce = 0
	outcome, err := h.run(context.Background(), intent)
	require.NoError(err)
	require.NotZero(outcome.Nonce)

	out := decodeBridgeOut(t, h.src.submissions()[0])
	in := decodeBridgeIn(t, h.dst.submissions()[0])
	require.Equal(new(big.Int).SetUint64(outcome.Nonce), out.Nonce)
	require.Equal(out.Nonce, in.Nonce)
}

func TestCanceledBeforeSubmission(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := h.run(ctx, nativeIntent())
	require.ErrorIs(err, ErrSourceSubmission)
	require.ErrorIs(err, context.Canceled)
	require.Equal(types.ResultFailed, outcome.Result)
	require.Equal(types.StatusCanceled, outcome.Out.Status)
	require.Empty(h.src.submissions())
	require.Empty(h.dst.submissions())
}

func TestCancelAfterBroadcastStillResolvesSource(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)
	h.src.submitted = make(chan struct{})
	h.src.awaitGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		outcome *types.TransferOutcome
		err     error
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcome, err = h.run(ctx, nativeIntent())
	}()

	<-h.src.submitted
	cancel()
	close(h.src.awaitGate)
	wg.Wait()

	require.ErrorIs(err, ErrDestinationSubmission)
	require.Equal(types.ResultPartial, outcome.Result)
	require.Equal(types.StatusConfirmed, outcome.Out.Status)
	require.Equal(types.StatusCanceled, outcome.In.Status)
	require.Empty(h.dst.submissions())
}

func TestConcurrentRunWithSameNonceRejected(t *testing.T) {
	require := require.New(t)
	h := newTestHarness(t)
	h.src.submitted = make(chan struct{})
	h.src.awaitGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.run(context.Background(), nativeIntent())
		done <- err
	}()
	<-h.src.submitted

	transferID := types.TransferID(sepoliaChainID, LocalTestnetChainID, sourceSigner, testNonce)
	state, ok := h.orchestrator.State(transferID)
	require.True(ok)
	require.Equal(StateAwaitingSource, state)
	require.NoError(testutil.GatherAndCompare(h.registry, strings.NewReader(`
# HELP xbridge_transfers_in_progress Number of transfers currently being orchestrated
# TYPE xbridge_transfers_in_progress gauge
xbridge_transfers_in_progress 1
`), "xbridge_transfers_in_progress"))

	outcome, err := h.run(context.Background(), nativeIntent())
	require.ErrorIs(err, ErrTransferInFlight)
	require.Nil(outcome)

	// a different nonce is independent
	other := nativeIntent()
	other.Nonce++
	close(h.src.awaitGate)

	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(5 * time.Second):
		require.FailNow("transfer did not finish")
	}
	_, err = h.run(context.Background(), other)
	require.NoError(err)
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(intent *types.TransferIntent, src, dst *Endpoint)
	}{
		{
			name: "zero amount",
			mutate: func(intent *types.TransferIntent, _, _ *Endpoint) {
				intent.Amount = uint256.NewInt(0)
			},
		},
		{
			name: "missing amount",
			mutate: func(intent *types.TransferIntent, _, _ *Endpoint) {
				intent.Amount = nil
			},
		},
		{
			name: "unresolved source bridge",
			mutate: func(_ *types.TransferIntent, src, _ *Endpoint) {
				src.Chain.BridgeAddress = common.Address{}
			},
		},
		{
			name: "unresolved destination bridge",
			mutate: func(_ *types.TransferIntent, _, dst *Endpoint) {
				dst.Chain.BridgeAddress = common.Address{}
			},
		},
		{
			name: "missing client",
			mutate: func(_ *types.TransferIntent, _, dst *Endpoint) {
				dst.Client = nil
			},
		},
		{
			name: "client on wrong chain",
			mutate: func(_ *types.TransferIntent, src, _ *Endpoint) {
				src.Chain.ChainID = 1
			},
		},
		{
			name: "same chain",
			mutate: func(_ *types.TransferIntent, src, dst *Endpoint) {
				dst.Chain.ChainID = src.Chain.ChainID
				dst.Client = src.Client
			},
		},
		{
			name: "intent names another destination",
			mutate: func(intent *types.TransferIntent, _, _ *Endpoint) {
				intent.DestinationChainID = 43114
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			h := newTestHarness(t)

			intent := nativeIntent()
			src, dst := h.endpoints()
			test.mutate(&intent, &src, &dst)

			outcome, err := h.orchestrator.Run(context.Background(), intent, src, dst)
			require.ErrorIs(err, ErrConfiguration)
			require.Nil(outcome)
			require.Empty(h.src.submissions())
			require.Empty(h.dst.submissions())
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	require := require.New(t)

	err := &Error{
		Kind:    KindDestinationSubmission,
		Phase:   types.PhaseIn,
		ChainID: LocalTestnetChainID,
		Nonce:   7,
		Err:     errors.New("boom"),
	}
	require.Equal("destination submission error: phase=in chain=262144 nonce=7: boom", err.Error())
	require.ErrorIs(err, ErrDestinationSubmission)
	require.NotErrorIs(err, ErrSourceSubmission)

	cfgErr := configurationError("missing %s", "key")
	require.Equal("configuration error: missing key", cfgErr.Error())
	require.ErrorIs(cfgErr, ErrConfiguration)
}
