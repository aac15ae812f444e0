// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package etcher

import (
	"context"
	"math"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/runelaunch/bitcoin/discovery"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/bitcoin/submitter"
	"github.com/BoostyLabs/runelaunch/bitcoin/txbuilder"
)

// BitcoinTransferRequest describes satoshi payment from the identity address.
type BitcoinTransferRequest struct {
	Identity  []byte
	Recipient string
	Amount    int64
	FeeRate   int64
}

// RuneTransferRequest describes rune transfer from the identity address.
type RuneTransferRequest struct {
	Identity          []byte
	RuneID            runes.RuneID
	Recipient         string
	Amount            *big.Int
	Commission        int64
	CommissionAddress string
	FeeRate           int64
}

// Balances describes discovered holdings of an identity.
type Balances struct {
	Address string
	Bitcoin int64
	Runes   map[runes.RuneID]*big.Int
}

// SendBitcoin builds and submits satoshi payment.
func (e *Etcher) SendBitcoin(ctx context.Context, req BitcoinTransferRequest) (chainhash.Hash, error) {
	set, owner, err := e.owner(req.Identity)
	if err != nil {
		return chainhash.Hash{}, err
	}

	var transfer *txbuilder.Transfer
	_, err = e.reserve(ctx, set.Bitcoin, nil, func() (plan, error) {
		var err error
		transfer, err = e.builder.BuildBitcoinTransfer(txbuilder.BitcoinTransferParams{
			UTXOs:            e.ledger.Plain(set.Bitcoin),
			Amount:           req.Amount,
			FeeRate:          e.feeRate(req.FeeRate),
			RecipientAddress: req.Recipient,
			SenderAddress:    set.Bitcoin,
		})
		if err != nil {
			return plan{}, err
		}

		return plan{plain: transfer.UsedUTXOs}, nil
	})
	if err != nil {
		return chainhash.Hash{}, err
	}

	submitted, err := e.submitter.Submit(ctx, submitter.Bitcoin{Sender: owner, Transfer: transfer})
	if err != nil {
		return chainhash.Hash{}, err
	}

	return submitted.TxID, nil
}

// SendRunes builds and submits rune transfer, fee and commission are paid by the same identity.
func (e *Etcher) SendRunes(ctx context.Context, req RuneTransferRequest) (chainhash.Hash, error) {
	set, owner, err := e.owner(req.Identity)
	if err != nil {
		return chainhash.Hash{}, err
	}

	var transfer *txbuilder.Transfer
	taken, err := e.reserve(ctx, set.Bitcoin, &req.RuneID, func() (plan, error) {
		var err error
		transfer, err = e.builder.BuildRunesTransfer(txbuilder.RunesTransferParams{
			RuneID:            req.RuneID,
			RuneUTXOs:         e.ledger.Tokenized(set.Bitcoin, req.RuneID),
			BaseUTXOs:         e.ledger.Plain(set.Bitcoin),
			Amount:            req.Amount,
			FeeRate:           e.feeRate(req.FeeRate),
			Commission:        req.Commission,
			RecipientAddress:  req.Recipient,
			CommissionAddress: req.CommissionAddress,
			SenderAddress:     set.Bitcoin,
			// outputs of the address may carry several runes.
			ReturnUnallocated: len(e.ledger.AllAssetBalances(set.Bitcoin)) > 1,
		})
		if err != nil {
			return plan{}, err
		}

		return plan{plain: transfer.UsedUTXOs, runic: transfer.UsedRuneUTXOs}, nil
	})
	if err != nil {
		return chainhash.Hash{}, err
	}

	// spent outputs may carry other runes too, all of them are restored on failure.
	transfer.UsedRuneUTXOs = taken.runic

	submitted, err := e.submitter.Submit(ctx, submitter.Rune{Sender: owner, RuneID: req.RuneID, Transfer: transfer})
	if err != nil {
		return chainhash.Hash{}, err
	}

	return submitted.TxID, nil
}

// Balances discovers every output of the identity address and returns its holdings.
func (e *Etcher) Balances(ctx context.Context, identity []byte) (*Balances, error) {
	set, _, err := e.owner(identity)
	if err != nil {
		return nil, err
	}

	if _, err = e.discovery.Run(ctx, set.Bitcoin, discovery.PlainTarget(math.MaxInt64)); err != nil {
		return nil, err
	}

	return &Balances{
		Address: set.Bitcoin,
		Bitcoin: e.ledger.BalancePlain(set.Bitcoin),
		Runes:   e.ledger.AllAssetBalances(set.Bitcoin),
	}, nil
}
