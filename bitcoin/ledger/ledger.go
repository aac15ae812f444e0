// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package ledger

import (
	"math/big"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/internal/logger"
	"github.com/BoostyLabs/runelaunch/internal/storage"
)

// State defines ledger classification of an outpoint.
type State int

const (
	// StateUnknown defines outpoint the ledger never saw or already forgot.
	StateUnknown State = iota
	// StatePlain defines outpoint recorded as plain.
	StatePlain
	// StateTokenized defines outpoint recorded as carrying runes.
	StateTokenized
	// StateSpent defines outpoint removed by a spend and not restored yet.
	StateSpent
)

type plainSet map[wire.OutPoint]bitcoin.UTXO

type runeSet map[wire.OutPoint]bitcoin.RuneUTXO

// Ledger stores classified spendable outputs per address.
// An outpoint is either plain or tokenized for an address, never both.
// Every mutation is written through to the underlying storage.
type Ledger struct {
	mu     sync.Mutex
	db     storage.DB
	plain  map[string]plainSet
	runic  map[string]map[runes.RuneID]runeSet
	spent  map[string]map[wire.OutPoint]struct{}
	logger zerolog.Logger
}

// New is a constructor for empty Ledger.
func New(db storage.DB) *Ledger {
	return &Ledger{
		db:     db,
		plain:  make(map[string]plainSet),
		runic:  make(map[string]map[runes.RuneID]runeSet),
		spent:  make(map[string]map[wire.OutPoint]struct{}),
		logger: logger.Ledger,
	}
}

// RecordPlain inserts plain outputs of the address, duplicates are unified.
// Outpoints already recorded as tokenized stay tokenized.
func (l *Ledger) RecordPlain(address string, utxos []bitcoin.UTXO) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, utxo := range utxos {
		l.unspend(address, utxo.OutPoint)
	}

	return l.recordPlain(address, utxos)
}

// RecordTokenized inserts rune outputs of the address, duplicates are unified.
// The same outpoints are removed from the plain set of the address.
func (l *Ledger) RecordTokenized(address string, runeID runes.RuneID, utxos []bitcoin.RuneUTXO) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, utxo := range utxos {
		l.unspend(address, utxo.OutPoint)
	}

	return l.recordTokenized(address, runeID, utxos)
}

// RemovePlain removes plain output of the address.
func (l *Ledger) RemovePlain(address string, outPoint wire.OutPoint) error {
	_, err := l.TakePlain(address, []wire.OutPoint{outPoint})
	return err
}

// RemoveAll removes plain outputs of the address.
func (l *Ledger) RemoveAll(address string, outPoints []wire.OutPoint) error {
	_, err := l.TakePlain(address, outPoints)
	return err
}

// TakePlain removes plain outputs of the address and returns exactly the records that were present.
// Taken outpoints are marked as spent until restored by RecordPlain, absent ones are left untouched.
func (l *Ledger) TakePlain(address string, outPoints []wire.OutPoint) ([]bitcoin.UTXO, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	taken := make([]bitcoin.UTXO, 0, len(outPoints))
	for _, outPoint := range outPoints {
		utxo, ok := l.plain[address][outPoint]
		if !ok {
			continue
		}

		delete(l.plain[address], outPoint)
		l.markSpent(address, outPoint)
		if err := l.db.Delete(plainKey(address, outPoint)); err != nil {
			return taken, err
		}

		taken = append(taken, utxo)
	}

	l.logger.Debug().Str("address", address).Int("taken", len(taken)).Msg("plain utxos taken")

	return taken, nil
}

// TakeTokenized removes outputs of the address from every rune partition and returns removed records.
// Taken outpoints are marked as spent until restored by RecordTokenized, absent ones are left untouched.
func (l *Ledger) TakeTokenized(address string, outPoints []wire.OutPoint) ([]bitcoin.RuneUTXO, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	taken := make([]bitcoin.RuneUTXO, 0, len(outPoints))
	for _, outPoint := range outPoints {
		for runeID, set := range l.runic[address] {
			utxo, ok := set[outPoint]
			if !ok {
				continue
			}

			delete(set, outPoint)
			l.markSpent(address, outPoint)
			if err := l.db.Delete(runeKey(address, runeID, outPoint)); err != nil {
				return taken, err
			}

			taken = append(taken, utxo)
		}
	}

	slices.SortFunc(taken, bitcoin.CompareRuneUTXOs)
	l.logger.Debug().Str("address", address).Int("taken", len(taken)).Msg("rune utxos taken")

	return taken, nil
}

// State returns classification of the outpoint for the address.
func (l *Ledger) State(address string, outPoint wire.OutPoint) State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state(address, outPoint)
}

// Spent returns outpoints of the address marked as spent.
func (l *Ledger) Spent(address string) []wire.OutPoint {
	l.mu.Lock()
	defer l.mu.Unlock()

	outPoints := make([]wire.OutPoint, 0, len(l.spent[address]))
	for outPoint := range l.spent[address] {
		outPoints = append(outPoints, outPoint)
	}

	return outPoints
}

// ForgetSpent drops spent marks of the outpoints once the chain no longer reports them as unspent.
func (l *Ledger) ForgetSpent(address string, outPoints []wire.OutPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, outPoint := range outPoints {
		l.unspend(address, outPoint)
	}
	if len(l.spent[address]) == 0 {
		delete(l.spent, address)
	}

	l.logger.Debug().Str("address", address).Int("outpoints", len(outPoints)).Msg("spent marks dropped")
}

// Batch holds outputs classified during one discovery page.
type Batch struct {
	Plain     []bitcoin.UTXO
	Tokenized []bitcoin.RuneUTXO
}

// RecordBatch commits discovered outputs of the address as one atomic segment,
// tokenized first, then plain. Outputs spent meanwhile are skipped.
// Returns the batch that was actually recorded.
func (l *Ledger) RecordBatch(address string, batch Batch) (Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var recorded Batch
	byRune := make(map[runes.RuneID][]bitcoin.RuneUTXO)
	for _, utxo := range batch.Tokenized {
		if l.state(address, utxo.OutPoint) == StateSpent {
			continue
		}

		byRune[utxo.RuneID] = append(byRune[utxo.RuneID], utxo)
		recorded.Tokenized = append(recorded.Tokenized, utxo)
	}

	for runeID, utxos := range byRune {
		if err := l.recordTokenized(address, runeID, utxos); err != nil {
			return recorded, err
		}
	}

	for _, utxo := range batch.Plain {
		if state := l.state(address, utxo.OutPoint); state == StateSpent || state == StateTokenized {
			continue
		}

		recorded.Plain = append(recorded.Plain, utxo)
	}

	return recorded, l.recordPlain(address, recorded.Plain)
}

func (l *Ledger) state(address string, outPoint wire.OutPoint) State {
	if _, ok := l.spent[address][outPoint]; ok {
		return StateSpent
	}
	if _, ok := l.plain[address][outPoint]; ok {
		return StatePlain
	}
	for _, set := range l.runic[address] {
		if _, ok := set[outPoint]; ok {
			return StateTokenized
		}
	}

	return StateUnknown
}

func (l *Ledger) recordPlain(address string, utxos []bitcoin.UTXO) error {
	for _, utxo := range utxos {
		if l.state(address, utxo.OutPoint) == StateTokenized {
			continue
		}

		set, ok := l.plain[address]
		if !ok {
			set = make(plainSet)
			l.plain[address] = set
		}

		set[utxo.OutPoint] = utxo
		if err := l.putPlain(address, utxo); err != nil {
			return err
		}
	}

	l.logger.Debug().Str("address", address).Int("utxos", len(utxos)).Msg("plain utxos recorded")

	return nil
}

func (l *Ledger) recordTokenized(address string, runeID runes.RuneID, utxos []bitcoin.RuneUTXO) error {
	partitions, ok := l.runic[address]
	if !ok {
		partitions = make(map[runes.RuneID]runeSet)
		l.runic[address] = partitions
	}

	set, ok := partitions[runeID]
	if !ok {
		set = make(runeSet)
		partitions[runeID] = set
	}

	for _, utxo := range utxos {
		utxo.RuneID = runeID
		utxo.Amount = cloneAmount(utxo.Amount)
		if _, ok := l.plain[address][utxo.OutPoint]; ok {
			delete(l.plain[address], utxo.OutPoint)
			if err := l.db.Delete(plainKey(address, utxo.OutPoint)); err != nil {
				return err
			}
		}

		set[utxo.OutPoint] = utxo
		if err := l.putRune(address, utxo); err != nil {
			return err
		}
	}

	l.logger.Debug().Str("address", address).Stringer("rune", runeID).Int("utxos", len(utxos)).Msg("rune utxos recorded")

	return nil
}

func (l *Ledger) markSpent(address string, outPoint wire.OutPoint) {
	set, ok := l.spent[address]
	if !ok {
		set = make(map[wire.OutPoint]struct{})
		l.spent[address] = set
	}

	set[outPoint] = struct{}{}
}

func (l *Ledger) unspend(address string, outPoint wire.OutPoint) {
	delete(l.spent[address], outPoint)
}

func cloneAmount(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(amount)
}
