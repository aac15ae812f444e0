// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptPath holds everything needed to lock funds to and spend through a single tapscript leaf.
type ScriptPath struct {
	InternalKey  *btcec.PublicKey
	Leaf         txscript.TapLeaf
	OutputKey    *btcec.PublicKey
	ControlBlock []byte
}

// NewScriptPath builds a single leaf taproot tree committed to internalKey.
func NewScriptPath(internalKey *btcec.PublicKey, leafScript []byte) (*ScriptPath, error) {
	tree, err := NewTapScriptTreeFromRawScripts(leafScript)
	if err != nil {
		return nil, err
	}

	rootHash := tree.RootNode.TapHash()
	ctrlBlock := tree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	controlBlock, err := ctrlBlock.ToBytes()
	if err != nil {
		return nil, err
	}

	return &ScriptPath{
		InternalKey:  internalKey,
		Leaf:         txscript.NewBaseTapLeaf(leafScript),
		OutputKey:    txscript.ComputeTaprootOutputKey(internalKey, rootHash[:]),
		ControlBlock: controlBlock,
	}, nil
}

// MerkleRoot returns tap tree root, which for a single leaf is the leaf hash.
func (s *ScriptPath) MerkleRoot() []byte {
	hash := s.Leaf.TapHash()

	return hash[:]
}

// Address returns P2TR address of the tweaked output key.
func (s *ScriptPath) Address(chainParams *chaincfg.Params) (*btcutil.AddressTaproot, error) {
	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(s.OutputKey), chainParams)
}

// PkScript returns P2TR output script of the tweaked output key.
func (s *ScriptPath) PkScript() ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(schnorr.SerializePubKey(s.OutputKey)).
		Script()
}
