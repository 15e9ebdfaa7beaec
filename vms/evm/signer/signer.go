// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

var errEmptyPrivateKey = errors.New("private key is empty")

type Signer interface {
	SignTx(tx *types.Transaction, evmChainID *big.Int) (*types.Transaction, error)
	Address() common.Address
}

var _ Signer = (*TxSigner)(nil)

// TxSigner signs with an in-memory secp256k1 key.
type TxSigner struct {
	pk      *ecdsa.PrivateKey
	address common.Address
}

// NewTxSigner parses a hex-encoded private key, with or without the 0x
// prefix.
func NewTxSigner(hexKey string) (*TxSigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errEmptyPrivateKey
	}
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &TxSigner{
		pk:      pk,
		address: common.Address(crypto.PubkeyToAddress(pk.PublicKey)),
	}, nil
}

func (s *TxSigner) SignTx(tx *types.Transaction, evmChainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(evmChainID), s.pk)
}

func (s *TxSigner) Address() common.Address {
	return s.address
}
