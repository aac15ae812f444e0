// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"cmp"
	"math/big"

	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
)

// UTXO describes unspent transaction output which carries satoshi only.
type UTXO struct {
	OutPoint wire.OutPoint
	Value    int64  // in Satoshi.
	Height   uint32 // block height of the output, 0 while unconfirmed.
}

// RuneUTXO describes unspent transaction output linked to a rune balance.
// The same outpoint may carry several runes, each of them tracked as its own RuneUTXO.
type RuneUTXO struct {
	UTXO
	RuneID runes.RuneID
	Amount *big.Int // in rune units.
}

// CompareOutPoints orders outpoints by transaction hash, then by index.
func CompareOutPoints(a, b wire.OutPoint) int {
	for i := range a.Hash {
		if c := cmp.Compare(a.Hash[i], b.Hash[i]); c != 0 {
			return c
		}
	}

	return cmp.Compare(a.Index, b.Index)
}

// CompareUTXOs orders plain outputs by value descending, then by outpoint.
func CompareUTXOs(a, b UTXO) int {
	if c := cmp.Compare(b.Value, a.Value); c != 0 {
		return c
	}

	return CompareOutPoints(a.OutPoint, b.OutPoint)
}

// CompareRuneUTXOs orders rune outputs by amount descending, then by outpoint.
func CompareRuneUTXOs(a, b RuneUTXO) int {
	if c := b.Amount.Cmp(a.Amount); c != 0 {
		return c
	}

	return CompareOutPoints(a.OutPoint, b.OutPoint)
}

// Network defines supported bitcoin networks.
type Network string

const (
	// NetworkMainnet defines bitcoin main network.
	NetworkMainnet Network = "mainnet"
	// NetworkTestnet defines bitcoin test network.
	NetworkTestnet Network = "testnet"
	// NetworkRegtest defines local regression test network.
	NetworkRegtest Network = "regtest"
)
