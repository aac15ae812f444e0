// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/internal/numbers"
)

var (
	// recipientOutput defines runes output for recipient (transferring) by rune transfer tx.
	recipientOutput uint32 = 1
	// returnOutput defines runes output for sender (change) by rune transfer tx.
	returnOutput uint32 = 2
)

// BitcoinTransferParams describes data needed to build plain bitcoin payment.
type BitcoinTransferParams struct {
	UTXOs            []bitcoin.UTXO // must be sorted by value desc.
	Amount           int64          // in satoshi.
	FeeRate          int64          // fee rate in satoshi per kilo virtual byte.
	RecipientAddress string
	SenderAddress    string // sender payment and change address.
}

// RunesTransferParams describes data needed to build rune transfer transaction.
type RunesTransferParams struct {
	RuneID            runes.RuneID
	RuneUTXOs         []bitcoin.RuneUTXO // must be sorted by rune amount desc.
	BaseUTXOs         []bitcoin.UTXO     // must be sorted by btc amount desc.
	Amount            *big.Int           // runes amount to transfer.
	FeeRate           int64              // fee rate in satoshi per kilo virtual byte.
	Commission        int64              // additional commission in satoshi to be charged from sender.
	RecipientAddress  string             // recipient runes address.
	CommissionAddress string             // commission receiving address.
	SenderAddress     string             // sender runes, fee payment and change address.
	// ReturnUnallocated keeps change runes output even without change of RuneID,
	// inputs may carry other runes which are returned to sender.
	ReturnUnallocated bool
}

// Transfer holds unsigned transfer transaction with the outputs it spends.
// Inputs spend UsedRuneUTXOs followed by UsedUTXOs.
type Transfer struct {
	Tx            *wire.MsgTx
	UsedUTXOs     []bitcoin.UTXO
	UsedRuneUTXOs []bitcoin.RuneUTXO
	Fee           int64
}

// BuildBitcoinTransfer constructs plain bitcoin payment with change returned to sender.
func (b *TxBuilder) BuildBitcoinTransfer(params BitcoinTransferParams) (*Transfer, error) {
	if params.FeeRate <= 0 {
		return nil, ErrInvalidFeeRate
	}

	recipientScript, err := b.addressScript(params.RecipientAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	if threshold := DustThreshold(recipientScript); params.Amount < threshold {
		return nil, &DustError{Value: params.Amount, Threshold: threshold}
	}

	changeScript, err := b.addressScript(params.SenderAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}

	tx, err := b.fund(params.UTXOs, nil, 0, []*wire.TxOut{wire.NewTxOut(params.Amount, recipientScript)}, changeScript, params.FeeRate)
	if err != nil {
		return nil, withCauser(err, CauserSender)
	}

	return &Transfer{Tx: tx.tx, UsedUTXOs: tx.usedUTXOs, Fee: tx.fee}, nil
}

// BuildRunesTransfer constructs rune transferring transaction.
// Satoshi linked to rune inputs are returned with bitcoin change.
//
//	Tx struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│   0 - k │ rune inputs  │ utxos with linked runes, possibly many │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│ k+1 - n │ base inputs  │ utxos with bitcoin only, possibly many │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ runestone    │ rune protocol main output              │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ rune output  │ mandatory, output to link runes        │
//	│         │              │ to recipient.                          │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       2 │ rune output  │ optional, output to return runes       │
//	│         │              │ change to sender.                      │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       3 │ base output  │ service native commission. optional,   │
//	│         │              │ charge commission from sender if       │
//	│         │              │ commission is not 0.                   │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       4 │ base output  │ output to change bitcoin amount,       │
//	│         │              │ skipped when below dust.               │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildRunesTransfer(params RunesTransferParams) (*Transfer, error) {
	if params.FeeRate <= 0 {
		return nil, ErrInvalidFeeRate
	}
	if !numbers.IsPositive(params.Amount) {
		return nil, fmt.Errorf("%w: transfer amount must be positive", bitcoin.ErrInvalidUTXOAmount)
	}

	runeUTXOs := make([]bitcoin.RuneUTXO, 0, len(params.RuneUTXOs))
	for _, utxo := range params.RuneUTXOs {
		if utxo.RuneID == params.RuneID {
			runeUTXOs = append(runeUTXOs, utxo)
		}
	}

	usedRuneUTXOs, totalRuneAmount, err := PrepareRuneUTXOs(runeUTXOs, params.Amount)
	if err != nil {
		return nil, withCauser(err, CauserSender)
	}

	recipientScript, err := b.addressScript(params.RecipientAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	senderScript, err := b.addressScript(params.SenderAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}

	runestone := &runes.Runestone{
		Edicts: []runes.Edict{
			{
				RuneID: params.RuneID,
				Amount: params.Amount,
				Output: recipientOutput,
			},
		},
	}
	if params.ReturnUnallocated || numbers.IsGreater(totalRuneAmount, params.Amount) {
		runestone.Pointer = &returnOutput
	}

	runestoneScript, err := NewRunestoneScript(runestone)
	if err != nil {
		return nil, err
	}

	// runestone output (#0).
	outputs := []*wire.TxOut{wire.NewTxOut(0, runestoneScript)}

	// recipient runes output (#1).
	outputs = append(outputs, wire.NewTxOut(DustThreshold(recipientScript), recipientScript))

	// change runes output (#2).
	if runestone.Pointer != nil {
		outputs = append(outputs, wire.NewTxOut(DustThreshold(senderScript), senderScript))
	}

	// service commission output (#3).
	if params.Commission > 0 {
		commissionScript, err := b.addressScript(params.CommissionAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid commission address: %w", err)
		}

		outputs = append(outputs, wire.NewTxOut(params.Commission, commissionScript))
	}

	if err = runestone.Verify(len(outputs)); err != nil {
		return nil, err
	}

	runeInputs := make([]wire.OutPoint, 0, len(usedRuneUTXOs))
	var runeInputsValue int64
	for _, utxo := range usedRuneUTXOs {
		runeInputs = append(runeInputs, utxo.OutPoint)
		runeInputsValue += utxo.Value
	}

	// change btc output (#4) is appended by fund.
	tx, err := b.fund(params.BaseUTXOs, runeInputs, runeInputsValue, outputs, senderScript, params.FeeRate)
	if err != nil {
		return nil, withCauser(err, CauserFeePayer)
	}

	return &Transfer{
		Tx:            tx.tx,
		UsedUTXOs:     tx.usedUTXOs,
		UsedRuneUTXOs: usedRuneUTXOs,
		Fee:           tx.fee,
	}, nil
}
