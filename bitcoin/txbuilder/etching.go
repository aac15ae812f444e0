// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/bitcoin/utils"
	"github.com/BoostyLabs/runelaunch/internal/numbers"
)

const (
	// TargetPostage defines value of the output receiving premined runes.
	TargetPostage int64 = 10_000
	// DefaultCommitConfirmations defines confirmations of the commit transaction required by the reveal input.
	DefaultCommitConfirmations uint32 = 6
)

// EtchingParams describes parameters of the etching transactions pair.
type EtchingParams struct {
	RevealAddress string
	Logo          []byte
	ContentType   string
	SpacedRune    *runes.SpacedRune
	Premine       *big.Int
	Divisibility  byte
	Symbol        *rune
	Turbo         bool
	// Postage overrides value of the premine output.
	Postage *int64

	FeePayerAddress string
	FeePayerUTXOs   []bitcoin.UTXO
	// FeeRate in satoshi per 1000 virtual bytes.
	FeeRate int64

	SchnorrPublicKey    *btcec.PublicKey
	CommitConfirmations uint32
}

// Etching holds unsigned commit and reveal transactions.
// The reveal spends output 0 of the commit, its input is a placeholder until BindCommit is called.
type Etching struct {
	Commit        *wire.MsgTx
	Reveal        *wire.MsgTx
	CommitAddress string
	CommitOutput  *wire.TxOut
	ScriptPath    *utils.ScriptPath
	Runestone     *runes.Runestone
	CommitValue   int64
	RevealFee     int64
	CommitFee     int64
	UsedUTXOs     []bitcoin.UTXO
}

// BuildEtching builds commit transaction, which locks funds to the script path revealing the
// inscription with rune commitment, and reveal transaction, which spends it and carries the runestone.
func (b *TxBuilder) BuildEtching(params EtchingParams) (*Etching, error) {
	if params.FeeRate <= 0 {
		return nil, ErrInvalidFeeRate
	}
	if params.SpacedRune == nil || params.SpacedRune.Rune == nil {
		return nil, fmt.Errorf("%w: rune name is required", runes.ErrInvalidEtching)
	}
	if params.SchnorrPublicKey == nil {
		return nil, errors.New("schnorr public key is required")
	}

	premine := numbers.Sum(params.Premine)
	spacers := params.SpacedRune.Spacers
	divisibility := params.Divisibility
	runestone := &runes.Runestone{
		Etching: &runes.Etching{
			Divisibility: &divisibility,
			Premine:      premine,
			Rune:         params.SpacedRune.Rune,
			Spacers:      &spacers,
			Symbol:       params.Symbol,
			Turbo:        params.Turbo,
		},
	}
	if err := runestone.Etching.Validate(); err != nil {
		return nil, err
	}

	revealScript, err := b.addressScript(params.RevealAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid reveal address: %w", err)
	}

	var revealOutputs []*wire.TxOut
	if numbers.IsPositive(premine) {
		postage := TargetPostage
		if params.Postage != nil {
			postage = *params.Postage
		}
		if threshold := DustThreshold(revealScript); postage < threshold {
			return nil, &DustError{Value: postage, Threshold: threshold}
		}

		pointer := uint32(len(revealOutputs))
		runestone.Pointer = &pointer
		revealOutputs = append(revealOutputs, wire.NewTxOut(postage, revealScript))
	}

	runestoneScript, err := NewRunestoneScript(runestone)
	if err != nil {
		return nil, err
	}
	revealOutputs = append(revealOutputs, wire.NewTxOut(0, runestoneScript))
	if err = runestone.Verify(len(revealOutputs)); err != nil {
		return nil, err
	}

	inscription := inscriptions.Inscription{
		Body:        params.Logo,
		ContentType: params.ContentType,
		Rune:        params.SpacedRune.Rune,
	}
	scriptPath, err := utils.NewScriptPath(params.SchnorrPublicKey, inscription.IntoScriptForWitness(params.SchnorrPublicKey))
	if err != nil {
		return nil, err
	}

	commitAddress, err := scriptPath.Address(b.networkParams)
	if err != nil {
		return nil, err
	}
	commitScript, err := scriptPath.PkScript()
	if err != nil {
		return nil, err
	}

	confirmations := params.CommitConfirmations
	if confirmations == 0 {
		confirmations = DefaultCommitConfirmations
	}

	reveal := wire.NewMsgTx(txVersion)
	reveal.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		Sequence:         confirmations - 1,
	})
	for _, out := range revealOutputs {
		reveal.AddTxOut(out)
	}

	revealFee := b.revealFee(reveal, scriptPath, params.FeeRate)

	commitValue := revealFee
	for _, out := range revealOutputs {
		commitValue += out.Value
	}

	if threshold := DustThreshold(commitScript); commitValue < threshold {
		return nil, &DustError{Value: commitValue, Threshold: threshold}
	}

	changeScript, err := b.addressScript(params.FeePayerAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid fee payer address: %w", err)
	}

	commitOutput := wire.NewTxOut(commitValue, commitScript)
	commit, err := b.fund(params.FeePayerUTXOs, nil, 0, []*wire.TxOut{commitOutput}, changeScript, params.FeeRate)
	if err != nil {
		return nil, withCauser(err, CauserFeePayer)
	}

	return &Etching{
		Commit:        commit.tx,
		Reveal:        reveal,
		CommitAddress: commitAddress.EncodeAddress(),
		CommitOutput:  commitOutput,
		ScriptPath:    scriptPath,
		Runestone:     runestone,
		CommitValue:   commitValue,
		RevealFee:     revealFee,
		CommitFee:     commit.fee,
		UsedUTXOs:     commit.usedUTXOs,
	}, nil
}

// BindCommit points reveal input to output 0 of the commit. Signing legacy inputs changes
// the commit hash, so it must be called after the commit is signed.
func (e *Etching) BindCommit() {
	e.Reveal.TxIn[0].PreviousOutPoint = wire.OutPoint{Hash: e.Commit.TxHash(), Index: 0}
}

// NewRunestoneScript encodes runestone into null-data output script which fits into standard relay policy.
func NewRunestoneScript(runestone *runes.Runestone) ([]byte, error) {
	script, err := runestone.IntoScript()
	if err != nil {
		return nil, err
	}

	if len(script) > runes.MaxStandardOpReturnSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(script))
	}

	return script, nil
}

// revealFee measures reveal transaction with placeholder schnorr signature, leaf script and control block.
func (b *TxBuilder) revealFee(reveal *wire.MsgTx, scriptPath *utils.ScriptPath, feeRate int64) int64 {
	tx := reveal.Copy()
	tx.TxIn[0].Witness = wire.TxWitness{
		make([]byte, schnorrSignatureSize),
		scriptPath.Leaf.Script,
		scriptPath.ControlBlock,
	}

	return Fee(VirtualSize(tx), feeRate)
}
