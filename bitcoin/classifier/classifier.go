// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package classifier

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
)

// Balance is an amount of one rune carried by an output.
type Balance struct {
	RuneID runes.RuneID
	Amount *big.Int
}

// Classifier reports rune balances of outputs.
type Classifier interface {
	// Classify returns rune balances of the output, an output without runes has no balances.
	Classify(ctx context.Context, txID chainhash.Hash, vout uint32) ([]Balance, error)
}
