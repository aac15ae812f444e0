// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// schnorrSignatureSize defines size of the schnorr signature with default sighash type.
	schnorrSignatureSize = 64
	// maxDERSignatureSize defines size of the longest DER encoded ECDSA signature with sighash type byte.
	maxDERSignatureSize = 73
	// compressedPubKeySize defines size of the compressed public key.
	compressedPubKeySize = 33
)

// p2pkhSigScriptPlaceholder has the size of the longest P2PKH script sig.
var p2pkhSigScriptPlaceholder = append(
	append([]byte{txscript.OP_DATA_73}, make([]byte, maxDERSignatureSize)...),
	append([]byte{txscript.OP_DATA_33}, make([]byte, compressedPubKeySize)...)...,
)

// Fee returns fee in satoshi for transaction of vsize virtual bytes with rate in satoshi per 1000 virtual bytes.
func Fee(vsize, feeRate int64) int64 {
	return vsize * feeRate / 1000
}

// VirtualSize returns virtual size of the transaction, witness data counts with discount.
func VirtualSize(tx *wire.MsgTx) int64 {
	return mempool.GetTxVirtualSize(btcutil.NewTx(tx))
}

// DustThreshold returns the minimal non-dust value of output with pkScript.
// Null-data outputs have no threshold.
func DustThreshold(pkScript []byte) int64 {
	if txscript.IsNullData(pkScript) {
		return 0
	}

	return mempool.GetDustThreshold(wire.NewTxOut(0, pkScript))
}
