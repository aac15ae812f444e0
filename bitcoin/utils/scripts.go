// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// AppendDataPush appends data to the script as a single push with the shortest push opcode,
// unlike txscript.ScriptBuilder it never replaces small values with OP_<num> opcodes.
// NOTE: data must not exceed txscript.MaxScriptElementSize.
func AppendDataPush(script []byte, data []byte) []byte {
	switch size := len(data); {
	case size <= txscript.OP_DATA_75:
		script = append(script, byte(size))
	case size <= 0xff:
		script = append(script, txscript.OP_PUSHDATA1, byte(size))
	default:
		script = append(script, txscript.OP_PUSHDATA2)
		script = binary.LittleEndian.AppendUint16(script, uint16(size))
	}

	return append(script, data...)
}

// AppendChunkedDataPush appends data split into pushes of txscript.MaxScriptElementSize bytes.
func AppendChunkedDataPush(script []byte, data []byte) []byte {
	for start := 0; start < len(data); start += txscript.MaxScriptElementSize {
		script = AppendDataPush(script, data[start:min(start+txscript.MaxScriptElementSize, len(data))])
	}

	return script
}

// NewCheckSigScript builds "<x-only pubkey> OP_CHECKSIG" tapscript.
func NewCheckSigScript(publicKey *btcec.PublicKey) []byte {
	script := AppendDataPush(nil, schnorr.SerializePubKey(publicKey))

	return append(script, txscript.OP_CHECKSIG)
}

// NewTapScriptTreeFromRawScripts builds tapScript tree from provided raw leaf scripts.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, errors.New("no leaf scripts provided")
	}

	var tapLeafs = make([]txscript.TapLeaf, len(leafScripts))
	for i, leafScript := range leafScripts {
		tapLeafs[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return txscript.AssembleTaprootScriptTree(tapLeafs...), nil
}

// UpdatePSBTInputWithTapScriptLeafData fills provided psbt input with the leaf script,
// control block and merkle root needed to sign the single leaf script path.
func UpdatePSBTInputWithTapScriptLeafData(input *psbt.PInput, spend *ScriptPath) error {
	if spend == nil {
		return errors.New("no script path provided")
	}

	input.TaprootInternalKey = schnorr.SerializePubKey(spend.InternalKey)
	input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
		ControlBlock: spend.ControlBlock,
		Script:       spend.Leaf.Script,
		LeafVersion:  spend.Leaf.LeafVersion,
	}}
	input.TaprootMerkleRoot = spend.MerkleRoot()

	return nil
}
