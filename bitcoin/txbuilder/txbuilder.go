// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/internal/numbers"
)

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2
)

// ErrInvalidFeeRate defines that fee rate is not positive.
var ErrInvalidFeeRate = errors.New("fee rate must be positive")

// TxBuilder provides transaction building related logic.
type TxBuilder struct {
	networkParams *chaincfg.Params
}

// NewTxBuilder is a constructor for TxBuilder.
func NewTxBuilder(networkParams *chaincfg.Params) *TxBuilder {
	return &TxBuilder{
		networkParams: networkParams,
	}
}

// funded describes transaction funded from plain outputs.
type funded struct {
	tx        *wire.MsgTx
	usedUTXOs []bitcoin.UTXO
	fee       int64
}

// fund builds transaction paying outputs from plain utxos of one P2PKH owner. Selected inputs go after
// preInputs, which bring preValue satoshi. Change above dust returns to changeScript. Fee is measured
// by virtual size of the transaction with max-size P2PKH script sigs.
func (b *TxBuilder) fund(utxos []bitcoin.UTXO, preInputs []wire.OutPoint, preValue int64, outputs []*wire.TxOut, changeScript []byte, feeRate int64) (*funded, error) {
	var target int64
	for _, out := range outputs {
		target += out.Value
	}
	target -= preValue

	estimate := func(inputs int) int64 {
		tx := wire.NewMsgTx(txVersion)
		for i := 0; i < len(preInputs)+inputs; i++ {
			tx.AddTxIn(&wire.TxIn{SignatureScript: p2pkhSigScriptPlaceholder, Sequence: wire.MaxTxInSequenceNum})
		}
		for _, out := range outputs {
			tx.AddTxOut(out)
		}
		tx.AddTxOut(wire.NewTxOut(0, changeScript))

		return Fee(VirtualSize(tx), feeRate)
	}

	usedUTXOs, totalAmount, fee, err := PrepareUTXOs(utxos, estimate, max(target, 0))
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	for _, outPoint := range preInputs {
		tx.AddTxIn(wire.NewTxIn(&outPoint, nil, nil))
	}
	for _, utxo := range usedUTXOs {
		tx.AddTxIn(wire.NewTxIn(&utxo.OutPoint, nil, nil))
	}
	for _, out := range outputs {
		tx.AddTxOut(out)
	}

	change := totalAmount - target - fee
	if change >= DustThreshold(changeScript) {
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	} else {
		fee += change
	}

	return &funded{tx: tx, usedUTXOs: usedUTXOs, fee: fee}, nil
}

// PrepareUTXOs selects utxos to cover transfer amount with fee, increasing inputs number one by one.
// Returns used utxos, total satoshi amount of utxos, fee estimated for the used inputs number and error if any.
func PrepareUTXOs(utxos []bitcoin.UTXO, feeFn func(inputs int) int64, transferAmount int64) (usedUTXOs []bitcoin.UTXO, totalAmount, fee int64, err error) {
	satFn := func(u bitcoin.UTXO) *big.Int { return big.NewInt(u.Value) }

	for i := 1; i <= len(utxos); i++ {
		fee = feeFn(i)

		var total *big.Int
		usedUTXOs, total, err = SelectUTXO(utxos, satFn, big.NewInt(transferAmount+fee), i, bitcoin.ErrInsufficientNativeBalance)
		if err != nil {
			if errors.Is(err, bitcoin.ErrInsufficientNativeBalance) {
				continue
			}

			return nil, 0, 0, err
		}

		return usedUTXOs, total.Int64(), fee, nil
	}

	var have int64
	for _, utxo := range utxos {
		have += utxo.Value
	}

	need := transferAmount + feeFn(max(len(utxos), 1))

	return nil, 0, 0, NewInsufficientError(InsufficientErrorTypeBitcoin, big.NewInt(need), big.NewInt(have))
}

// PrepareRuneUTXOs selects utxos to cover rune transfer amount.
// Returns used utxos, total rune amount of utxos and error if any.
func PrepareRuneUTXOs(utxos []bitcoin.RuneUTXO, transferAmount *big.Int) (usedUTXOs []bitcoin.RuneUTXO, totalAmount *big.Int, err error) {
	runeFn := func(u bitcoin.RuneUTXO) *big.Int { return u.Amount }

	for i := 1; i <= len(utxos); i++ {
		usedUTXOs, totalAmount, err = SelectUTXO(utxos, runeFn, transferAmount, i, bitcoin.ErrInsufficientRuneBalance)
		if err != nil {
			if errors.Is(err, bitcoin.ErrInsufficientRuneBalance) {
				continue
			}

			return nil, nil, err
		}

		return usedUTXOs, totalAmount, nil
	}

	have := new(big.Int)
	for _, utxo := range utxos {
		have.Add(have, utxo.Amount)
	}

	return nil, nil, NewInsufficientError(InsufficientErrorTypeRune, transferAmount, have)
}

// SelectUTXO is a partly greedy selection algorithm for UTXOs with 'requiredUTXOs' parameter.
// Expects utxos sorted by amount descending.
// Returns list of selected by algorithm UTXOs with total amount, counted by passed amount function.
func SelectUTXO[T any](utxos []T, amountFn func(T) *big.Int, minAmount *big.Int, requiredUTXOs int,
	insufficientBalanceError error) (usedUTXOs []T, totalAmount *big.Int, _ error) {
	if len(utxos) < requiredUTXOs || requiredUTXOs < 1 {
		return nil, nil, bitcoin.ErrInvalidUTXOAmount
	}

	usedUTXOs = make([]T, 0, requiredUTXOs)
	totalAmount = big.NewInt(0)
	var startIdx = 0
	var usedIdxs = make([]int, 0, requiredUTXOs)

	// find the closest by amount UTXO that is greater than minAmount or take the biggest possible.
	for idx, utxo := range utxos {
		if numbers.IsGreater(minAmount, amountFn(utxo)) {
			break
		}

		startIdx = idx
	}

	usedIdxs = append(usedIdxs, startIdx)
	totalAmount.Add(totalAmount, amountFn(utxos[startIdx]))
	usedUTXOs = append(usedUTXOs, utxos[startIdx])
	requiredUTXOs--

	// pick bigger amount if total amount do not cover minAmount, otherwise - the smallest to pass requiredUTXOs.
	for ; requiredUTXOs > 0; requiredUTXOs-- {
		idx := selectUnused(startIdx, len(utxos), usedIdxs, !numbers.IsGreater(minAmount, totalAmount))
		if idx == -1 {
			return nil, nil, bitcoin.ErrInvalidUTXOAmount
		}

		usedIdxs = append(usedIdxs, idx)
		totalAmount.Add(totalAmount, amountFn(utxos[idx]))
		usedUTXOs = append(usedUTXOs, utxos[idx])
	}

	if numbers.IsGreater(minAmount, totalAmount) {
		return nil, nil, insufficientBalanceError
	}

	return usedUTXOs, totalAmount, nil
}

// addressScript returns output script of the address.
func (b *TxBuilder) addressScript(address string) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(address, b.networkParams)
	if err != nil {
		return nil, err
	}

	if !decoded.IsForNet(b.networkParams) {
		return nil, errors.New("address " + address + " belongs to another network")
	}

	return txscript.PayToAddrScript(decoded)
}

// selectUnused returns first unused idx depending on search direction.
func selectUnused(start, end int, usedIdxs []int, reversed bool) int {
	if reversed {
		for idx := end - 1; idx >= start; idx-- {
			if !isUsed(idx, usedIdxs) {
				return idx
			}
		}
	} else {
		for idx := start; idx < end; idx++ {
			if !isUsed(idx, usedIdxs) {
				return idx
			}
		}
	}

	return -1
}

// isUsed returns true id idx is in usedIdxs.
func isUsed(idx int, usedIdxs []int) bool {
	for _, used := range usedIdxs {
		if used == idx {
			return true
		}
	}

	return false
}
