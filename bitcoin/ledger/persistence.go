// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/wire"
	jsoniter "github.com/json-iterator/go"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/internal/storage"
)

const (
	plainPrefix = "p/"
	runePrefix  = "r/"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type plainRecord struct {
	Value  int64  `json:"value"`
	Height uint32 `json:"height"`
}

type runeRecord struct {
	Value  int64  `json:"value"`
	Height uint32 `json:"height"`
	Amount string `json:"amount"`
}

func plainKey(address string, outPoint wire.OutPoint) []byte {
	return []byte(plainPrefix + address + "/" + outPoint.String())
}

func runeKey(address string, runeID runes.RuneID, outPoint wire.OutPoint) []byte {
	return []byte(runePrefix + address + "/" + runeID.String() + "/" + outPoint.String())
}

func (l *Ledger) putPlain(address string, utxo bitcoin.UTXO) error {
	value, err := json.Marshal(plainRecord{Value: utxo.Value, Height: utxo.Height})
	if err != nil {
		return err
	}

	return l.db.Put(plainKey(address, utxo.OutPoint), value)
}

func (l *Ledger) putRune(address string, utxo bitcoin.RuneUTXO) error {
	value, err := json.Marshal(runeRecord{Value: utxo.Value, Height: utxo.Height, Amount: utxo.Amount.String()})
	if err != nil {
		return err
	}

	return l.db.Put(runeKey(address, utxo.RuneID, utxo.OutPoint), value)
}

// Load rebuilds Ledger from the records persisted in db.
// Spent marks are not persisted, they live until restart only.
func Load(db storage.DB) (*Ledger, error) {
	l := New(db)

	err := db.ForEach([]byte(plainPrefix), func(key, value []byte) error {
		parts := strings.Split(strings.TrimPrefix(string(key), plainPrefix), "/")
		if len(parts) != 2 {
			return fmt.Errorf("malformed plain key %q", key)
		}

		outPoint, err := wire.NewOutPointFromString(parts[1])
		if err != nil {
			return fmt.Errorf("malformed plain key %q: %w", key, err)
		}

		var record plainRecord
		if err = json.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("malformed plain record %q: %w", key, err)
		}

		set, ok := l.plain[parts[0]]
		if !ok {
			set = make(plainSet)
			l.plain[parts[0]] = set
		}
		set[*outPoint] = bitcoin.UTXO{OutPoint: *outPoint, Value: record.Value, Height: record.Height}

		return nil
	})
	if err != nil {
		return nil, err
	}

	err = db.ForEach([]byte(runePrefix), func(key, value []byte) error {
		parts := strings.Split(strings.TrimPrefix(string(key), runePrefix), "/")
		if len(parts) != 3 {
			return fmt.Errorf("malformed rune key %q", key)
		}

		runeID, err := runes.NewRuneIDFromString(parts[1])
		if err != nil {
			return fmt.Errorf("malformed rune key %q: %w", key, err)
		}

		outPoint, err := wire.NewOutPointFromString(parts[2])
		if err != nil {
			return fmt.Errorf("malformed rune key %q: %w", key, err)
		}

		var record runeRecord
		if err = json.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("malformed rune record %q: %w", key, err)
		}

		amount, ok := new(big.Int).SetString(record.Amount, 10)
		if !ok {
			return fmt.Errorf("malformed rune amount %q", record.Amount)
		}

		partitions, ok := l.runic[parts[0]]
		if !ok {
			partitions = make(map[runes.RuneID]runeSet)
			l.runic[parts[0]] = partitions
		}
		set, ok := partitions[runeID]
		if !ok {
			set = make(runeSet)
			partitions[runeID] = set
		}
		set[*outPoint] = bitcoin.RuneUTXO{
			UTXO:   bitcoin.UTXO{OutPoint: *outPoint, Value: record.Value, Height: record.Height},
			RuneID: runeID,
			Amount: amount,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().Int("addresses", len(l.plain)+len(l.runic)).Msg("ledger loaded")

	return l, nil
}
