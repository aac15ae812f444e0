// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/addresses"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/bitcoin/signer"
	"github.com/BoostyLabs/runelaunch/bitcoin/txbuilder"
)

var params = &chaincfg.RegressionNetParams

func execute(t *testing.T, tx *wire.MsgTx, idx int, prevOutput *wire.TxOut, fetcher txscript.PrevOutputFetcher) {
	t.Helper()

	vm, err := txscript.NewEngine(
		prevOutput.PkScript, tx, idx, txscript.StandardVerifyFlags,
		nil, txscript.NewTxSigHashes(tx, fetcher), prevOutput.Value, fetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

type brokenRemote struct{}

func (brokenRemote) SignECDSA(context.Context, []byte, [][]byte) ([]byte, error) {
	return make([]byte, 10), nil
}

func (brokenRemote) SignSchnorr(context.Context, []byte, [][]byte) ([]byte, error) {
	return make([]byte, 10), nil
}

func TestSigner(t *testing.T) {
	ctx := context.Background()

	keys, err := signer.NewLocalKeys([]byte("etcher test seed"))
	require.NoError(t, err)

	s := signer.NewSigner(params, keys)

	set, err := addresses.Derive([]byte("owner"), []byte("identity"), keys.ECDSAPublicKey(), keys.ChainCode(), params)
	require.NoError(t, err)

	feePayer, err := btcutil.DecodeAddress(set.Bitcoin, params)
	require.NoError(t, err)
	feePayerScript, err := txscript.PayToAddrScript(feePayer)
	require.NoError(t, err)

	feePayerKey, err := addresses.DerivePublicKey(keys.ECDSAPublicKey(), keys.ChainCode(), set.DerivationPath)
	require.NoError(t, err)

	t.Run("p2pkh", func(t *testing.T) {
		prevOutputs := map[wire.OutPoint]*wire.TxOut{
			{Hash: chainhash.Hash{1}, Index: 0}: wire.NewTxOut(50_000, feePayerScript),
			{Hash: chainhash.Hash{2}, Index: 3}: wire.NewTxOut(70_000, feePayerScript),
		}

		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, nil, nil))
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{2}, Index: 3}, nil, nil))
		tx.AddTxOut(wire.NewTxOut(110_000, feePayerScript))

		inputs := make([]signer.P2PKHInput, len(tx.TxIn))
		for idx := range tx.TxIn {
			inputs[idx] = signer.P2PKHInput{Index: idx, PkScript: feePayerScript, PublicKey: feePayerKey, Path: set.DerivationPath}
		}
		require.NoError(t, s.SignP2PKH(ctx, tx, inputs...))

		fetcher := txscript.NewMultiPrevOutFetcher(prevOutputs)
		for idx, in := range tx.TxIn {
			execute(t, tx, idx, prevOutputs[in.PreviousOutPoint], fetcher)
		}
	})

	t.Run("etching", func(t *testing.T) {
		spacedRune, err := runes.ParseSpacedRune("SIGNED•ETCHING")
		require.NoError(t, err)

		etching, err := txbuilder.NewTxBuilder(params).BuildEtching(txbuilder.EtchingParams{
			RevealAddress:    set.Bitcoin,
			Logo:             []byte("logo"),
			ContentType:      "text/plain",
			SpacedRune:       spacedRune,
			Premine:          big.NewInt(1000),
			FeePayerAddress:  set.Bitcoin,
			FeePayerUTXOs:    []bitcoin.UTXO{{OutPoint: wire.OutPoint{Hash: chainhash.Hash{3}}, Value: 500_000, Height: 1}},
			FeeRate:          20_000,
			SchnorrPublicKey: keys.SchnorrPublicKey(),
		})
		require.NoError(t, err)

		commitPrevOutput := wire.NewTxOut(500_000, feePayerScript)
		require.NoError(t, s.SignP2PKH(ctx, etching.Commit, signer.P2PKHInput{
			Index: 0, PkScript: feePayerScript, PublicKey: feePayerKey, Path: set.DerivationPath,
		}))
		execute(t, etching.Commit, 0, commitPrevOutput,
			txscript.NewCannedPrevOutputFetcher(commitPrevOutput.PkScript, commitPrevOutput.Value))
		etching.BindCommit()

		reveal, err := s.SignTapscript(ctx, etching.Reveal, signer.TapscriptInput{
			Index:      0,
			PrevOutput: etching.CommitOutput,
			ScriptPath: etching.ScriptPath,
		})
		require.NoError(t, err)
		require.Len(t, reveal.TxIn[0].Witness, 3)
		require.Equal(t, etching.Reveal.TxHash(), reveal.TxHash())

		execute(t, reveal, 0, etching.CommitOutput,
			txscript.NewCannedPrevOutputFetcher(etching.CommitOutput.PkScript, etching.CommitOutput.Value))

		// signed reveal is not larger than estimated.
		require.LessOrEqual(t, txbuilder.Fee(txbuilder.VirtualSize(reveal), 20_000), etching.RevealFee)
	})

	t.Run("malformed remote signatures", func(t *testing.T) {
		broken := signer.NewSigner(params, brokenRemote{})

		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{1}}, nil, nil))
		tx.AddTxOut(wire.NewTxOut(1000, feePayerScript))

		err := broken.SignP2PKH(ctx, tx, signer.P2PKHInput{Index: 0, PkScript: feePayerScript, PublicKey: feePayerKey})
		require.ErrorIs(t, err, signer.ErrSigner)

		err = s.SignP2PKH(ctx, tx, signer.P2PKHInput{Index: 1, PkScript: feePayerScript, PublicKey: feePayerKey})
		require.ErrorIs(t, err, signer.ErrSigner)
	})
}

func TestLocalKeys(t *testing.T) {
	_, err := signer.NewLocalKeys(nil)
	require.ErrorIs(t, err, signer.ErrEmptySeed)

	first, err := signer.NewLocalKeys([]byte{1, 2, 3})
	require.NoError(t, err)
	second, err := signer.NewLocalKeys([]byte{1, 2, 3})
	require.NoError(t, err)

	require.True(t, first.SchnorrPublicKey().IsEqual(second.SchnorrPublicKey()))
	require.True(t, first.ECDSAPublicKey().IsEqual(second.ECDSAPublicKey()))
	require.False(t, first.SchnorrPublicKey().IsEqual(first.ECDSAPublicKey()))
	require.Len(t, first.ChainCode(), 32)

	_, err = first.SignSchnorr(context.Background(), make([]byte, 32), [][]byte{{1}})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = first.SignECDSA(ctx, make([]byte, 32), nil)
	require.ErrorIs(t, err, context.Canceled)
}
