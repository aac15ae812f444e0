// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"math/big"
	"slices"
)

// Edict defines transfer values of the rune protocol.
type Edict struct {
	RuneID RuneID
	Amount *big.Int
	Output uint32
}

// parseEdicts decodes delta encoded groups of four integers.
func parseEdicts(ints []*big.Int) ([]Edict, error) {
	if len(ints)%4 != 0 {
		return nil, ErrCenotaph
	}

	var (
		previous RuneID
		edicts   = make([]Edict, 0, len(ints)/4)
	)
	for i := 0; i < len(ints); i += 4 {
		block, tx, amount, output := ints[i], ints[i+1], ints[i+2], ints[i+3]
		if !block.IsUint64() || !tx.IsUint64() || tx.Uint64() > uint64(^uint32(0)) || !output.IsUint64() || output.Uint64() > uint64(^uint32(0)) {
			return nil, ErrCenotaph
		}

		id := previous.Next(RuneID{Block: block.Uint64(), TxID: uint32(tx.Uint64())})
		if !id.IsValid() {
			return nil, ErrCenotaph
		}

		edicts = append(edicts, Edict{RuneID: id, Amount: amount, Output: uint32(output.Uint64())})
		previous = id
	}

	return edicts, nil
}

// EdictsToIntSeq sorts edicts by rune id and delta encodes them.
func EdictsToIntSeq(edicts []Edict) []*big.Int {
	sorted := slices.Clone(edicts)
	slices.SortStableFunc(sorted, func(a, b Edict) int {
		return a.RuneID.Compare(b.RuneID)
	})

	var (
		previous RuneID
		sequence = make([]*big.Int, 0, len(sorted)*4)
	)
	for _, edict := range sorted {
		sequence = append(sequence, previous.Delta(edict.RuneID).ToIntSeq()...)
		sequence = append(sequence, new(big.Int).Set(edict.Amount), big.NewInt(int64(edict.Output)))
		previous = edict.RuneID
	}

	return sequence
}
