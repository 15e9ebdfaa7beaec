// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/ethclient"
	"github.com/luxfi/log"
	"github.com/luxfi/xbridge/bridge"
	"github.com/luxfi/xbridge/config"
	bridgetypes "github.com/luxfi/xbridge/types"
	"github.com/luxfi/xbridge/utils"
	"github.com/luxfi/xbridge/vms/evm/signer"
)

const (
	// If the max base fee is not explicitly set, use 3x the current base fee estimate
	defaultBaseFeeFactor = 3
	// Estimated gas is padded by gasEstimatePaddingNum/gasEstimatePaddingDen
	gasEstimatePaddingNum = 6
	gasEstimatePaddingDen = 5

	defaultTxInclusionTimeout = 120 * time.Second
)

var (
	_ bridge.ChainClient = (*Client)(nil)

	errChainIDMismatch = errors.New("rpc endpoint serves a different chain")
)

// ethClient is the subset of ethclient.Client used to submit and track
// transactions.
type ethClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Client signs and submits transactions on one EVM chain.
type Client struct {
	client               ethClient
	signer               signer.Signer
	logger               log.Logger
	chainID              uint64
	evmChainID           *big.Int
	maxPriorityFeePerGas *big.Int
	txInclusionTimeout   time.Duration

	nonceLock    sync.Mutex
	currentNonce uint64
	nonceStale   bool
}

// NewClient dials [chain]'s RPC endpoint and checks that it serves the
// configured chain id.
func NewClient(
	ctx context.Context,
	logger log.Logger,
	chain *config.ChainConfig,
	sgnr signer.Signer,
) (*Client, error) {
	logger = logger.With("chain", chain.Name, "chainID", chain.ChainID)

	dialCtx, cancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
	defer cancel()
	client, err := ethclient.DialContext(dialCtx, chain.RPCURL)
	if err != nil {
		logger.Error("Failed to dial rpc endpoint", "url", chain.RPCURL, "err", err)
		return nil, fmt.Errorf("failed to dial %s: %w", chain.RPCURL, err)
	}

	c, err := newClient(ctx, logger, client, chain, sgnr)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

func newClient(
	ctx context.Context,
	logger log.Logger,
	client ethClient,
	chain *config.ChainConfig,
	sgnr signer.Signer,
) (*Client, error) {
	callCtx, cancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
	defer cancel()

	evmChainID, err := client.ChainID(callCtx)
	if err != nil {
		logger.Error("Failed to get chain ID from rpc endpoint", "err", err)
		return nil, err
	}
	if !evmChainID.IsUint64() || evmChainID.Uint64() != chain.ChainID {
		return nil, fmt.Errorf("%w: expected %d, got %s", errChainIDMismatch, chain.ChainID, evmChainID)
	}

	// Construct txs using the pending nonce to account for txs still in the mempool
	pendingNonce, err := client.PendingNonceAt(callCtx, sgnr.Address())
	if err != nil {
		logger.Error("Failed to get pending nonce", "err", err)
		return nil, err
	}

	timeout := chain.TxInclusionTimeout
	if timeout <= 0 {
		timeout = defaultTxInclusionTimeout
	}

	logger.Info(
		"Initialized chain client",
		"sender", sgnr.Address(),
		"pendingNonce", pendingNonce,
	)
	return &Client{
		client:               client,
		signer:               sgnr,
		logger:               logger,
		chainID:              chain.ChainID,
		evmChainID:           evmChainID,
		maxPriorityFeePerGas: new(big.Int).SetUint64(chain.MaxPriorityFeePerGas),
		txInclusionTimeout:   timeout,
		currentNonce:         pendingNonce,
	}, nil
}

func (c *Client) ChainID() uint64 {
	return c.chainID
}

func (c *Client) SenderAddress() common.Address {
	return c.signer.Address()
}

// SubmitTransaction constructs, signs and broadcasts a call to [to]. A legacy
// [fee] is used as given. Otherwise a dynamic fee transaction is built: the
// max fee is the current base fee times the default base fee factor plus the
// tip, and the tip is the suggested tip capped at the configured maximum
// priority fee when one is set. Chains that report no base fee get a legacy
// transaction at the suggested gas price.
func (c *Client) SubmitTransaction(
	ctx context.Context,
	to common.Address,
	data []byte,
	value *big.Int,
	fee *bridgetypes.FeeOverride,
) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}

	// Synchronize nonce access so that we send transactions in nonce order.
	c.nonceLock.Lock()
	defer c.nonceLock.Unlock()

	if c.nonceStale {
		callCtx, cancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
		nonce, err := c.client.PendingNonceAt(callCtx, c.signer.Address())
		cancel()
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to refresh nonce: %w", err)
		}
		c.currentNonce = nonce
		c.nonceStale = false
	}

	var (
		tx  *types.Transaction
		err error
	)
	if fee.Legacy() {
		tx, err = c.legacyTx(ctx, to, data, value, fee.GasPrice, fee.GasLimit)
	} else {
		tx, err = c.dynamicFeeTx(ctx, to, data, value)
	}
	if err != nil {
		return common.Hash{}, err
	}

	signedTx, err := c.signer.SignTx(tx, c.evmChainID)
	if err != nil {
		c.logger.Error("Failed to sign transaction", "err", err)
		return common.Hash{}, err
	}

	c.logger.Info(
		"Sending transaction",
		"txID", signedTx.Hash(),
		"nonce", c.currentNonce,
		"type", signedTx.Type(),
		"gas", signedTx.Gas(),
	)
	sendCtx, cancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
	defer cancel()
	if err := c.client.SendTransaction(sendCtx, signedTx); err != nil {
		c.logger.Error("Failed to send transaction", "txID", signedTx.Hash(), "err", err)
		c.nonceStale = true
		return common.Hash{}, err
	}
	c.currentNonce++
	return signedTx.Hash(), nil
}

func (c *Client) legacyTx(
	ctx context.Context,
	to common.Address,
	data []byte,
	value *big.Int,
	gasPrice *big.Int,
	gasLimit uint64,
) (*types.Transaction, error) {
	if gasPrice == nil {
		var err error
		if gasPrice, err = c.NetworkGasPrice(ctx); err != nil {
			return nil, err
		}
	}
	if gasLimit == 0 {
		var err error
		gasLimit, err = c.estimateGas(ctx, ethereum.CallMsg{
			From:     c.signer.Address(),
			To:       &to,
			GasPrice: gasPrice,
			Value:    value,
			Data:     data,
		})
		if err != nil {
			return nil, err
		}
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    c.currentNonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}

func (c *Client) dynamicFeeTx(
	ctx context.Context,
	to common.Address,
	data []byte,
	value *big.Int,
) (*types.Transaction, error) {
	headerCtx, cancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
	defer cancel()
	header, err := c.client.HeaderByNumber(headerCtx, nil)
	if err != nil {
		c.logger.Error("Failed to get latest header", "err", err)
		return nil, err
	}
	if header.BaseFee == nil {
		// no fee market on this chain
		return c.legacyTx(ctx, to, data, value, nil, 0)
	}
	maxBaseFee := new(big.Int).Mul(header.BaseFee, big.NewInt(defaultBaseFeeFactor))

	// Get the suggested gas tip cap of the network
	tipCtx, tipCancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
	defer tipCancel()
	gasTipCap, err := c.client.SuggestGasTipCap(tipCtx)
	if err != nil {
		c.logger.Error("Failed to get gas tip cap", "err", err)
		return nil, err
	}
	if c.maxPriorityFeePerGas.Sign() > 0 && gasTipCap.Cmp(c.maxPriorityFeePerGas) > 0 {
		gasTipCap = new(big.Int).Set(c.maxPriorityFeePerGas)
	}
	gasFeeCap := new(big.Int).Add(maxBaseFee, gasTipCap)

	gasLimit, err := c.estimateGas(ctx, ethereum.CallMsg{
		From:      c.signer.Address(),
		To:        &to,
		GasFeeCap: gasFeeCap,
		GasTipCap: gasTipCap,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return nil, err
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.evmChainID,
		Nonce:     c.currentNonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	}), nil
}

func (c *Client) estimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	callCtx, cancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
	defer cancel()
	gas, err := c.client.EstimateGas(callCtx, msg)
	if err != nil {
		c.logger.Error("Failed to estimate gas", "to", msg.To, "err", err)
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas * gasEstimatePaddingNum / gasEstimatePaddingDen, nil
}

// AwaitConfirmation polls for the receipt of [txHash] until it appears or
// the inclusion timeout passes.
func (c *Client) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*bridgetypes.Confirmation, error) {
	var receipt *types.Receipt
	operation := func() (err error) {
		callCtx, callCtxCancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
		defer callCtxCancel()
		receipt, err = c.client.TransactionReceipt(callCtx, txHash)
		if err == nil && receipt == nil {
			err = ethereum.NotFound
		}
		return err
	}
	err := utils.WithRetriesTimeout(ctx, c.logger, operation, c.txInclusionTimeout, "waitForReceipt")
	if err != nil {
		c.logger.Error("Failed to get transaction receipt", "txID", txHash, "err", err)
		return nil, fmt.Errorf("%w: %s after %s: %w", bridgetypes.ErrConfirmationTimeout, txHash, c.txInclusionTimeout, err)
	}

	status := bridgetypes.ConfirmationReverted
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = bridgetypes.ConfirmationConfirmed
	}
	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	return &bridgetypes.Confirmation{
		TxHash:      txHash,
		Status:      status,
		BlockNumber: blockNumber,
		GasUsed:     receipt.GasUsed,
	}, nil
}

// NetworkGasPrice returns the node's suggested legacy gas price.
func (c *Client) NetworkGasPrice(ctx context.Context) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, utils.DefaultRPCTimeout)
	defer cancel()
	gasPrice, err := c.client.SuggestGasPrice(callCtx)
	if err != nil {
		c.logger.Error("Failed to get gas price", "err", err)
		return nil, err
	}
	return gasPrice, nil
}

func (c *Client) Close() {
	c.client.Close()
}
