// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package scheduler

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	jsoniter "github.com/json-iterator/go"
)

const recordPrefix = "reveal/"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type persistedRecord struct {
	ID            uint64 `json:"id"`
	Reveal        string `json:"reveal"`
	CommitAddress string `json:"commit_address"`
	CommitTxID    string `json:"commit_txid"`
	FeePayer      string `json:"fee_payer"`
}

func recordKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", recordPrefix, id))
}

func (s *Scheduler) persist(record *Record) error {
	var raw bytes.Buffer
	if err := record.Reveal.Serialize(&raw); err != nil {
		return err
	}

	value, err := json.Marshal(persistedRecord{
		ID:            record.ID,
		Reveal:        hex.EncodeToString(raw.Bytes()),
		CommitAddress: record.CommitAddress,
		CommitTxID:    record.CommitTxID.String(),
		FeePayer:      record.FeePayer,
	})
	if err != nil {
		return err
	}

	return s.db.Put(recordKey(record.ID), value)
}

// Restore loads records persisted before restart and arms their timers.
// Restored records wait for confirmation again, new ids continue after the largest restored one.
func (s *Scheduler) Restore() (int, error) {
	var records []*Record
	err := s.db.ForEach([]byte(recordPrefix), func(key, value []byte) error {
		var persisted persistedRecord
		if err := json.Unmarshal(value, &persisted); err != nil {
			return fmt.Errorf("malformed pending reveal %q: %w", key, err)
		}

		raw, err := hex.DecodeString(persisted.Reveal)
		if err != nil {
			return fmt.Errorf("malformed pending reveal %q: %w", key, err)
		}

		reveal := new(wire.MsgTx)
		if err = reveal.Deserialize(bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("malformed pending reveal %q: %w", key, err)
		}

		commitTxID, err := chainhash.NewHashFromStr(persisted.CommitTxID)
		if err != nil {
			return fmt.Errorf("malformed pending reveal %q: %w", key, err)
		}

		records = append(records, &Record{
			ID:            persisted.ID,
			Reveal:        reveal,
			CommitAddress: persisted.CommitAddress,
			CommitTxID:    *commitTxID,
			FeePayer:      persisted.FeePayer,
			fsm:           newRecordFSM(StateAwaitingConfirmation),
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, record := range records {
		if record.ID > s.lastID.Load() {
			s.lastID.Store(record.ID)
		}

		s.arm(record)
	}

	if len(records) > 0 {
		s.logger.Info().Int("records", len(records)).Msg("pending reveals restored")
	}

	return len(records), nil
}
