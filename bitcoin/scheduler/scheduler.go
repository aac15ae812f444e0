// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/chain"
	"github.com/BoostyLabs/runelaunch/bitcoin/timer"
	"github.com/BoostyLabs/runelaunch/internal/logger"
	"github.com/BoostyLabs/runelaunch/internal/metrics"
	"github.com/BoostyLabs/runelaunch/internal/storage"
)

// Record lifecycle states.
const (
	StateDrafted              = "drafted"
	StateAwaitingConfirmation = "awaiting_confirmation"
	StateSubmittingReveal     = "submitting_reveal"
	StateDone                 = "done"
)

// Record lifecycle events.
const (
	EventCommitAccepted = "commit_accepted"
	EventConfirmed      = "confirmed"
	EventRevealAccepted = "reveal_accepted"
	EventRevealRejected = "reveal_rejected"
)

var (
	// ErrNotConfirmed defines that commit output is not deep enough yet, the timer stays armed.
	ErrNotConfirmed = errors.New("commit is not confirmed yet")
	// ErrUnknownRecord defines record which is absent or being processed by another tick.
	ErrUnknownRecord = errors.New("unknown pending reveal")
)

// Config defines scheduler policy.
type Config struct {
	Network             bitcoin.Network
	RetryInterval       time.Duration
	CommitConfirmations uint32
}

// Record is a reveal transaction waiting for its commit to confirm.
type Record struct {
	ID            uint64
	Reveal        *wire.MsgTx
	CommitAddress string
	CommitTxID    chainhash.Hash
	FeePayer      string
	Timer         timer.Handle

	fsm *fsm.FSM
}

// State returns lifecycle state of the record.
func (r *Record) State() string {
	return r.fsm.Current()
}

func newRecordFSM(initial string) *fsm.FSM {
	return fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: EventCommitAccepted, Src: []string{StateDrafted}, Dst: StateAwaitingConfirmation},
			{Name: EventConfirmed, Src: []string{StateAwaitingConfirmation}, Dst: StateSubmittingReveal},
			{Name: EventRevealAccepted, Src: []string{StateSubmittingReveal}, Dst: StateDone},
			{Name: EventRevealRejected, Src: []string{StateSubmittingReveal}, Dst: StateAwaitingConfirmation},
		},
		fsm.Callbacks{},
	)
}

// Scheduler keeps pending reveals and submits each of them once its commit is confirmed.
// Each record owns exactly one live timer until the reveal is accepted.
type Scheduler struct {
	config Config
	source chain.Source
	timers timer.Facility
	db     storage.DB
	logger zerolog.Logger

	lastID *atomic.Uint64

	mu      sync.Mutex
	records map[uint64]*Record
	// busy holds records taken out of the table by a running tick.
	busy map[uint64]*Record
}

// New is a constructor for Scheduler.
func New(config Config, source chain.Source, timers timer.Facility, db storage.DB) *Scheduler {
	metrics.Init()

	return &Scheduler{
		config:  config,
		source:  source,
		timers:  timers,
		db:      db,
		logger:  logger.Scheduler,
		lastID:  atomic.NewUint64(0),
		records: make(map[uint64]*Record),
		busy:    make(map[uint64]*Record),
	}
}

// Track registers reveal of the accepted commit and arms its retry timer.
func (s *Scheduler) Track(reveal *wire.MsgTx, commitAddress, feePayer string) (uint64, error) {
	if len(reveal.TxIn) == 0 {
		return 0, errors.New("reveal has no inputs")
	}

	record := &Record{
		ID:            s.lastID.Inc(),
		Reveal:        reveal,
		CommitAddress: commitAddress,
		CommitTxID:    reveal.TxIn[0].PreviousOutPoint.Hash,
		FeePayer:      feePayer,
		fsm:           newRecordFSM(StateDrafted),
	}
	if err := record.fsm.Event(context.Background(), EventCommitAccepted); err != nil {
		return 0, err
	}

	if err := s.persist(record); err != nil {
		return 0, err
	}

	s.arm(record)

	s.logger.Info().
		Uint64("id", record.ID).
		Str("commit_address", commitAddress).
		Stringer("commit", record.CommitTxID).
		Stringer("reveal", reveal.TxHash()).
		Msg("reveal scheduled")

	return record.ID, nil
}

// arm inserts record into the table together with its timer.
func (s *Scheduler) arm(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := record.ID
	record.Timer = s.timers.ScheduleRecurring(s.config.RetryInterval, func() {
		err := s.Tick(context.Background(), id)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotConfirmed), errors.Is(err, ErrUnknownRecord):
			s.logger.Debug().Uint64("id", id).Err(err).Msg("reveal postponed")
		default:
			s.logger.Warn().Uint64("id", id).Err(err).Msg("reveal attempt failed")
		}
	})
	s.records[id] = record

	metrics.PendingReveals.Inc()
}

// Tick checks commit confirmations of the record and submits its reveal when the commit is deep enough.
// The record stays with the same timer on every failure and is destroyed with its timer on success.
func (s *Scheduler) Tick(ctx context.Context, id uint64) error {
	record, ok := s.take(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRecord, id)
	}

	if err := s.confirmed(ctx, record); err != nil {
		s.putBack(record)
		return err
	}

	if err := s.transition(ctx, record, EventConfirmed); err != nil {
		s.putBack(record)
		return err
	}

	var raw bytes.Buffer
	if err := record.Reveal.Serialize(&raw); err != nil {
		s.rearm(ctx, record)
		return err
	}

	if err := s.source.SendTransaction(ctx, raw.Bytes(), s.config.Network); err != nil {
		metrics.Broadcasts.WithLabelValues("reveal", "rejected").Inc()
		metrics.RevealTicks.WithLabelValues("rejected").Inc()

		s.rearm(ctx, record)

		return fmt.Errorf("reveal %s: %w", record.Reveal.TxHash(), err)
	}

	metrics.Broadcasts.WithLabelValues("reveal", "accepted").Inc()
	metrics.RevealTicks.WithLabelValues("revealed").Inc()

	_ = s.transition(ctx, record, EventRevealAccepted)
	s.destroy(record)

	s.logger.Info().
		Uint64("id", record.ID).
		Stringer("reveal", record.Reveal.TxHash()).
		Msg("reveal submitted")

	return nil
}

// transition fires lifecycle event of the record. Cancellation of ctx does not abort the transition.
func (s *Scheduler) transition(ctx context.Context, record *Record, event string) error {
	err := record.fsm.Event(context.WithoutCancel(ctx), event)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Uint64("id", record.ID).
			Str("state", record.State()).
			Str("event", event).
			Msg("invalid reveal transition")
	}

	return err
}

// rearm returns record which reveal was not accepted to the table awaiting the next tick.
func (s *Scheduler) rearm(ctx context.Context, record *Record) {
	if err := s.transition(ctx, record, EventRevealRejected); err != nil {
		record.fsm.SetState(StateAwaitingConfirmation)
	}

	s.putBack(record)
}

// confirmed returns nil when the commit output has enough confirmations.
func (s *Scheduler) confirmed(ctx context.Context, record *Record) error {
	page, err := s.source.GetUTXOs(ctx, record.CommitAddress, s.config.Network, "")
	if err != nil {
		return fmt.Errorf("could not fetch utxos of %s: %w", record.CommitAddress, err)
	}

	commit := record.Reveal.TxIn[0].PreviousOutPoint
	for _, utxo := range page.UTXOs {
		if utxo.OutPoint != commit {
			continue
		}

		if depth := chain.Depth(page.TipHeight, utxo.Height); depth < s.config.CommitConfirmations {
			metrics.RevealTicks.WithLabelValues("not_confirmed").Inc()
			return fmt.Errorf("%w: %d of %d", ErrNotConfirmed, depth, s.config.CommitConfirmations)
		}

		return nil
	}

	metrics.RevealTicks.WithLabelValues("not_confirmed").Inc()

	return fmt.Errorf("%w: no commit output at %s", ErrNotConfirmed, record.CommitAddress)
}

// take moves record from the table to the busy set.
func (s *Scheduler) take(id uint64) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, false
	}

	delete(s.records, id)
	s.busy[id] = record

	return record, true
}

// putBack returns record to the table, its timer stays armed.
func (s *Scheduler) putBack(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.busy, record.ID)
	s.records[record.ID] = record
}

// destroy cancels timer of the busy record and forgets it.
func (s *Scheduler) destroy(record *Record) {
	s.mu.Lock()
	s.timers.Cancel(record.Timer)
	delete(s.busy, record.ID)
	s.mu.Unlock()

	metrics.PendingReveals.Dec()

	if err := s.db.Delete(recordKey(record.ID)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error().Err(err).Uint64("id", record.ID).Msg("could not delete pending reveal")
	}
}

// Pending returns snapshot of the records sorted by id, including ones being processed.
func (s *Scheduler) Pending() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]Record, 0, len(s.records)+len(s.busy))
	for _, table := range []map[uint64]*Record{s.records, s.busy} {
		for _, record := range table {
			records = append(records, *record)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	return records
}

// Stop cancels timers of all records. Records stay persisted and are restored on the next start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []map[uint64]*Record{s.records, s.busy} {
		for _, record := range table {
			s.timers.Cancel(record.Timer)
		}
	}
}
