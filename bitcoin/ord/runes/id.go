// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"cmp"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// RuneID identifies a rune by the block height and the transaction index of its etching.
type RuneID struct {
	Block uint64
	TxID  uint32
}

// NewRuneIDFromString parses RuneID from the "block:tx" form.
func NewRuneIDFromString(s string) (RuneID, error) {
	block, tx, ok := strings.Cut(s, ":")
	if !ok {
		return RuneID{}, fmt.Errorf("invalid rune id format: %s", s)
	}

	blockNum, err := strconv.ParseUint(block, 10, 64)
	if err != nil {
		return RuneID{}, fmt.Errorf("invalid rune id block: %w", err)
	}

	txNum, err := strconv.ParseUint(tx, 10, 32)
	if err != nil {
		return RuneID{}, fmt.Errorf("invalid rune id tx: %w", err)
	}

	id := RuneID{Block: blockNum, TxID: uint32(txNum)}
	if !id.IsValid() {
		return RuneID{}, fmt.Errorf("invalid rune id: %s", s)
	}

	return id, nil
}

// IsValid returns false for ids with zero block and non zero tx.
func (id RuneID) IsValid() bool {
	return id.Block != 0 || id.TxID == 0
}

// Compare orders ids by block, then by tx index.
func (id RuneID) Compare(other RuneID) int {
	if c := cmp.Compare(id.Block, other.Block); c != 0 {
		return c
	}

	return cmp.Compare(id.TxID, other.TxID)
}

// Next applies delta to id.
func (id RuneID) Next(delta RuneID) RuneID {
	if delta.Block == 0 {
		return RuneID{Block: id.Block, TxID: id.TxID + delta.TxID}
	}

	return RuneID{Block: id.Block + delta.Block, TxID: delta.TxID}
}

// Delta returns the delta from id to next, next must not be less than id.
func (id RuneID) Delta(next RuneID) RuneID {
	block := next.Block - id.Block
	if block == 0 {
		return RuneID{TxID: next.TxID - id.TxID}
	}

	return RuneID{Block: block, TxID: next.TxID}
}

// String returns RuneID as string.
func (id RuneID) String() string {
	return fmt.Sprintf("%d:%d", id.Block, id.TxID)
}

// ToIntSeq returns RuneID as integer sequence.
func (id RuneID) ToIntSeq() []*big.Int {
	return []*big.Int{new(big.Int).SetUint64(id.Block), new(big.Int).SetUint64(uint64(id.TxID))}
}
