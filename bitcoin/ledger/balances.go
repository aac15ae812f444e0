// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package ledger

import (
	"math/big"
	"slices"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
)

// BalancePlain returns sum of plain outputs values of the address.
func (l *Ledger) BalancePlain(address string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var balance int64
	for _, utxo := range l.plain[address] {
		balance += utxo.Value
	}

	return balance
}

// BalanceTokenized returns sum of rune amounts of the address outputs.
func (l *Ledger) BalanceTokenized(address string, runeID runes.RuneID) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return sumAmounts(l.runic[address][runeID])
}

// AllAssetBalances returns balances of every rune the address holds.
func (l *Ledger) AllAssetBalances(address string) map[runes.RuneID]*big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[runes.RuneID]*big.Int, len(l.runic[address]))
	for runeID, set := range l.runic[address] {
		if len(set) == 0 {
			continue
		}

		balances[runeID] = sumAmounts(set)
	}

	return balances
}

// Plain returns plain outputs of the address ordered by value descending.
func (l *Ledger) Plain(address string) []bitcoin.UTXO {
	l.mu.Lock()
	defer l.mu.Unlock()

	utxos := make([]bitcoin.UTXO, 0, len(l.plain[address]))
	for _, utxo := range l.plain[address] {
		utxos = append(utxos, utxo)
	}
	slices.SortFunc(utxos, bitcoin.CompareUTXOs)

	return utxos
}

// Tokenized returns rune outputs of the address ordered by amount descending.
func (l *Ledger) Tokenized(address string, runeID runes.RuneID) []bitcoin.RuneUTXO {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := l.runic[address][runeID]
	utxos := make([]bitcoin.RuneUTXO, 0, len(set))
	for _, utxo := range set {
		utxo.Amount = new(big.Int).Set(utxo.Amount)
		utxos = append(utxos, utxo)
	}
	slices.SortFunc(utxos, bitcoin.CompareRuneUTXOs)

	return utxos
}

func sumAmounts(set runeSet) *big.Int {
	sum := new(big.Int)
	for _, utxo := range set {
		sum.Add(sum, utxo.Amount)
	}

	return sum
}
