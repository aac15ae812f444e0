// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/runelaunch/bitcoin/utils"
)

const (
	// legacySigHashType defines signature hash type for P2PKH inputs.
	legacySigHashType = txscript.SigHashAll
	// tapscriptSigHashType defines signature hash type for script path inputs.
	tapscriptSigHashType = txscript.SigHashDefault
	// signatureSize defines size of raw ECDSA (r||s) and schnorr signatures.
	signatureSize = 64
)

// ErrSigner defines signing related errors.
var ErrSigner = errors.New("signer error")

// Remote signs message digests with keys held outside the process.
// It is not told transaction semantics.
type Remote interface {
	// SignECDSA returns 64 bytes r||s signature of the key derived by path.
	SignECDSA(ctx context.Context, digest []byte, path [][]byte) ([]byte, error)
	// SignSchnorr returns 64 bytes BIP-340 signature of the key derived by path.
	SignSchnorr(ctx context.Context, digest []byte, path [][]byte) ([]byte, error)
}

// P2PKHInput describes legacy input to sign.
type P2PKHInput struct {
	Index     int
	PkScript  []byte
	PublicKey *btcec.PublicKey // key derived by Path.
	Path      [][]byte
}

// TapscriptInput describes single leaf script path input to sign.
type TapscriptInput struct {
	Index      int
	PrevOutput *wire.TxOut
	ScriptPath *utils.ScriptPath
	Path       [][]byte
}

// Signer provides transaction signing related logic.
type Signer struct {
	networkParams *chaincfg.Params
	remote        Remote
}

// NewSigner is a constructor for Signer.
func NewSigner(networkParams *chaincfg.Params, remote Remote) *Signer {
	return &Signer{
		networkParams: networkParams,
		remote:        remote,
	}
}

// SignP2PKH computes legacy signature hashes of the inputs, asks remote to sign them and
// sets script sigs in place.
func (signer *Signer) SignP2PKH(ctx context.Context, tx *wire.MsgTx, inputs ...P2PKHInput) error {
	for _, input := range inputs {
		if input.Index < 0 || input.Index >= len(tx.TxIn) {
			return fmt.Errorf("%w: invalid input index %d", ErrSigner, input.Index)
		}

		digest, err := txscript.CalcSignatureHash(input.PkScript, legacySigHashType, tx, input.Index)
		if err != nil {
			return errors.Join(ErrSigner, err)
		}

		rawSig, err := signer.remote.SignECDSA(ctx, digest, input.Path)
		if err != nil {
			return errors.Join(ErrSigner, err)
		}

		sig, err := derSignature(rawSig)
		if err != nil {
			return err
		}

		tx.TxIn[input.Index].SignatureScript, err = txscript.NewScriptBuilder().
			AddData(append(sig, byte(legacySigHashType))).
			AddData(input.PublicKey.SerializeCompressed()).
			Script()
		if err != nil {
			return errors.Join(ErrSigner, err)
		}
	}

	return nil
}

// SignTapscript signs script path input through PSBT and returns finalized transaction.
// Only the script path input is finalized, so it is expected to be the only input.
func (signer *Signer) SignTapscript(ctx context.Context, tx *wire.MsgTx, input TapscriptInput) (*wire.MsgTx, error) {
	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, errors.Join(ErrSigner, err)
	}
	if input.Index < 0 || input.Index >= len(packet.Inputs) {
		return nil, fmt.Errorf("%w: invalid input index %d", ErrSigner, input.Index)
	}

	pInput := &packet.Inputs[input.Index]
	pInput.WitnessUtxo = input.PrevOutput
	if err = utils.UpdatePSBTInputWithTapScriptLeafData(pInput, input.ScriptPath); err != nil {
		return nil, errors.Join(ErrSigner, err)
	}

	prevOutputFetcher := txscript.NewCannedPrevOutputFetcher(input.PrevOutput.PkScript, input.PrevOutput.Value)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutputFetcher)

	digest, err := txscript.CalcTapscriptSignaturehash(sigHashes, tapscriptSigHashType, tx, input.Index,
		prevOutputFetcher, input.ScriptPath.Leaf)
	if err != nil {
		return nil, errors.Join(ErrSigner, err)
	}

	sig, err := signer.remote.SignSchnorr(ctx, digest, input.Path)
	if err != nil {
		return nil, errors.Join(ErrSigner, err)
	}
	if len(sig) != signatureSize {
		return nil, fmt.Errorf("%w: schnorr signature is %d bytes", ErrSigner, len(sig))
	}

	leafHash := input.ScriptPath.Leaf.TapHash()
	pInput.TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
		XOnlyPubKey: schnorr.SerializePubKey(input.ScriptPath.InternalKey),
		LeafHash:    leafHash.CloneBytes(),
		Signature:   sig,
		SigHash:     tapscriptSigHashType,
	}}

	if _, err = psbt.MaybeFinalize(packet, input.Index); err != nil {
		return nil, errors.Join(ErrSigner, err)
	}

	signed, err := psbt.Extract(packet)
	if err != nil {
		return nil, errors.Join(ErrSigner, err)
	}

	return signed, nil
}

// derSignature converts r||s signature into low-S DER encoding.
func derSignature(rawSig []byte) ([]byte, error) {
	if len(rawSig) != signatureSize {
		return nil, fmt.Errorf("%w: ecdsa signature is %d bytes", ErrSigner, len(rawSig))
	}

	var r, s btcec.ModNScalar
	if r.SetByteSlice(rawSig[:32]) || s.SetByteSlice(rawSig[32:]) {
		return nil, fmt.Errorf("%w: ecdsa signature overflows curve order", ErrSigner)
	}

	return ecdsa.NewSignature(&r, &s).Serialize(), nil
}
