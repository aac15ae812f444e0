// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package scheduler_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/chain"
	"github.com/BoostyLabs/runelaunch/bitcoin/scheduler"
	"github.com/BoostyLabs/runelaunch/bitcoin/timer"
	"github.com/BoostyLabs/runelaunch/internal/storage"
)

const commitAddress = "bcrt1pcommit"

type fakeSource struct {
	mu      sync.Mutex
	utxos   []bitcoin.UTXO
	tip     uint32
	getErr  error
	sendErr error
	sent    [][]byte
}

func (s *fakeSource) GetUTXOs(_ context.Context, address string, _ bitcoin.Network, _ string) (*chain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	if address != commitAddress {
		return &chain.Page{TipHeight: s.tip}, nil
	}

	return &chain.Page{UTXOs: append([]bitcoin.UTXO(nil), s.utxos...), TipHeight: s.tip}, nil
}

func (s *fakeSource) SendTransaction(_ context.Context, raw []byte, _ bitcoin.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendErr != nil {
		return s.sendErr
	}

	s.sent = append(s.sent, raw)

	return nil
}

func (s *fakeSource) set(fn func(s *fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s)
}

// fakeTimers never fires by itself.
type fakeTimers struct {
	mu   sync.Mutex
	last timer.Handle
	live map[timer.Handle]time.Duration
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{live: make(map[timer.Handle]time.Duration)}
}

func (f *fakeTimers) ScheduleRecurring(interval time.Duration, _ func()) timer.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last++
	f.live[f.last] = interval

	return f.last
}

func (f *fakeTimers) Cancel(handle timer.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.live, handle)
}

func (f *fakeTimers) handles() []timer.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	var handles []timer.Handle
	for handle := range f.live {
		handles = append(handles, handle)
	}

	return handles
}

var config = scheduler.Config{
	Network:             bitcoin.NetworkRegtest,
	RetryInterval:       time.Minute,
	CommitConfirmations: 6,
}

func newReveal(seed byte) *wire.MsgTx {
	reveal := wire.NewMsgTx(2)
	reveal.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{seed}, Index: 0}, Sequence: 5})
	reveal.AddTxOut(wire.NewTxOut(10_000, []byte{0x51}))

	return reveal
}

func commitUTXO(seed byte, height uint32) bitcoin.UTXO {
	return bitcoin.UTXO{OutPoint: wire.OutPoint{Hash: chainhash.Hash{seed}, Index: 0}, Value: 20_000, Height: height}
}

func serialize(t *testing.T, tx *wire.MsgTx) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	return buf.Bytes()
}

func requireSingleTimer(t *testing.T, timers *fakeTimers, s *scheduler.Scheduler) {
	t.Helper()

	pending := s.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, []timer.Handle{pending[0].Timer}, timers.handles())
	require.Equal(t, scheduler.StateAwaitingConfirmation, pending[0].State())
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	t.Run("reveal after confirmations", func(t *testing.T) {
		source := &fakeSource{tip: 100}
		timers := newFakeTimers()
		db := storage.NewMemory()
		s := scheduler.New(config, source, timers, db)

		reveal := newReveal(1)
		id, err := s.Track(reveal, commitAddress, "feepayer")
		require.NoError(t, err)
		require.EqualValues(t, 1, id)
		requireSingleTimer(t, timers, s)
		require.Equal(t, chainhash.Hash{1}, s.Pending()[0].CommitTxID)

		has, err := db.Has([]byte("reveal/00000000000000000001"))
		require.NoError(t, err)
		require.True(t, has)

		// no commit output yet.
		err = s.Tick(ctx, id)
		require.ErrorIs(t, err, scheduler.ErrNotConfirmed)
		requireSingleTimer(t, timers, s)

		// unconfirmed and shallow commit output.
		for _, height := range []uint32{0, 95, 96, 100} {
			source.set(func(s *fakeSource) { s.utxos = []bitcoin.UTXO{commitUTXO(1, height)} })

			err = s.Tick(ctx, id)
			require.ErrorIs(t, err, scheduler.ErrNotConfirmed, height)
			requireSingleTimer(t, timers, s)
		}
		require.Empty(t, source.sent)

		source.set(func(s *fakeSource) { s.utxos = []bitcoin.UTXO{commitUTXO(1, 94)} })
		require.NoError(t, s.Tick(ctx, id))

		require.Equal(t, [][]byte{serialize(t, reveal)}, source.sent)
		require.Empty(t, s.Pending())
		require.Empty(t, timers.handles())

		has, err = db.Has([]byte("reveal/00000000000000000001"))
		require.NoError(t, err)
		require.False(t, has)

		// record is destroyed.
		require.ErrorIs(t, s.Tick(ctx, id), scheduler.ErrUnknownRecord)
	})

	t.Run("other outputs do not confirm commit", func(t *testing.T) {
		source := &fakeSource{tip: 200, utxos: []bitcoin.UTXO{commitUTXO(9, 10)}}
		timers := newFakeTimers()
		s := scheduler.New(config, source, timers, storage.NewMemory())

		id, err := s.Track(newReveal(1), commitAddress, "feepayer")
		require.NoError(t, err)

		require.ErrorIs(t, s.Tick(ctx, id), scheduler.ErrNotConfirmed)
		requireSingleTimer(t, timers, s)
	})

	t.Run("reveal rejected keeps record", func(t *testing.T) {
		source := &fakeSource{tip: 200, utxos: []bitcoin.UTXO{commitUTXO(1, 10)}, sendErr: chain.ErrBroadcastRejected}
		timers := newFakeTimers()
		s := scheduler.New(config, source, timers, storage.NewMemory())

		id, err := s.Track(newReveal(1), commitAddress, "feepayer")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			err = s.Tick(ctx, id)
			require.ErrorIs(t, err, chain.ErrBroadcastRejected)
			requireSingleTimer(t, timers, s)
		}

		source.set(func(s *fakeSource) { s.sendErr = nil })
		require.NoError(t, s.Tick(ctx, id))
		require.Empty(t, s.Pending())
		require.Empty(t, timers.handles())
	})

	t.Run("cancelled tick keeps record", func(t *testing.T) {
		source := &fakeSource{tip: 200, utxos: []bitcoin.UTXO{commitUTXO(1, 10)}, sendErr: context.Canceled}
		timers := newFakeTimers()
		s := scheduler.New(config, source, timers, storage.NewMemory())

		id, err := s.Track(newReveal(1), commitAddress, "feepayer")
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err = s.Tick(cancelled, id)
		require.ErrorIs(t, err, context.Canceled)
		requireSingleTimer(t, timers, s)

		source.set(func(s *fakeSource) { s.sendErr = nil })
		require.NoError(t, s.Tick(ctx, id))
		require.Empty(t, s.Pending())
		require.Empty(t, timers.handles())
	})

	t.Run("chain failure keeps record", func(t *testing.T) {
		source := &fakeSource{getErr: errors.New("electrum is down")}
		timers := newFakeTimers()
		s := scheduler.New(config, source, timers, storage.NewMemory())

		id, err := s.Track(newReveal(1), commitAddress, "feepayer")
		require.NoError(t, err)

		err = s.Tick(ctx, id)
		require.Error(t, err)
		require.NotErrorIs(t, err, scheduler.ErrNotConfirmed)
		requireSingleTimer(t, timers, s)
	})

	t.Run("ids are monotonic", func(t *testing.T) {
		timers := newFakeTimers()
		s := scheduler.New(config, &fakeSource{}, timers, storage.NewMemory())

		for i := 1; i <= 3; i++ {
			id, err := s.Track(newReveal(byte(i)), commitAddress, "feepayer")
			require.NoError(t, err)
			require.EqualValues(t, i, id)
		}

		pending := s.Pending()
		require.Len(t, pending, 3)
		require.Len(t, timers.handles(), 3)
		require.NotEqual(t, pending[0].Timer, pending[1].Timer)

		s.Stop()
		require.Empty(t, timers.handles())
	})

	t.Run("reveal without inputs", func(t *testing.T) {
		s := scheduler.New(config, &fakeSource{}, newFakeTimers(), storage.NewMemory())

		_, err := s.Track(wire.NewMsgTx(2), commitAddress, "feepayer")
		require.Error(t, err)
		require.Empty(t, s.Pending())
	})
}

func TestRestore(t *testing.T) {
	db := storage.NewMemory()

	first := scheduler.New(config, &fakeSource{}, newFakeTimers(), db)
	for i := 1; i <= 2; i++ {
		_, err := first.Track(newReveal(byte(i)), commitAddress, "feepayer")
		require.NoError(t, err)
	}
	first.Stop()

	source := &fakeSource{tip: 300, utxos: []bitcoin.UTXO{commitUTXO(2, 100)}}
	timers := newFakeTimers()
	second := scheduler.New(config, source, timers, db)

	restored, err := second.Restore()
	require.NoError(t, err)
	require.Equal(t, 2, restored)
	require.Len(t, timers.handles(), 2)

	pending := second.Pending()
	require.Len(t, pending, 2)
	require.EqualValues(t, 1, pending[0].ID)
	require.Equal(t, scheduler.StateAwaitingConfirmation, pending[0].State())
	require.Equal(t, newReveal(2).TxHash(), pending[1].Reveal.TxHash())
	require.Equal(t, commitAddress, pending[1].CommitAddress)
	require.Equal(t, "feepayer", pending[1].FeePayer)

	require.NoError(t, second.Tick(context.Background(), 2))
	require.Len(t, second.Pending(), 1)
	require.Len(t, timers.handles(), 1)

	id, err := second.Track(newReveal(3), commitAddress, "feepayer")
	require.NoError(t, err)
	require.EqualValues(t, 3, id)
}

func TestSchedulerWithTickers(t *testing.T) {
	var (
		mu    sync.Mutex
		force *ticker.Force
	)
	timers := timer.NewTickerFacility(func(interval time.Duration) ticker.Ticker {
		mu.Lock()
		defer mu.Unlock()

		force = ticker.NewForce(interval)

		return force
	})
	defer timers.Stop()

	source := &fakeSource{tip: 106, utxos: []bitcoin.UTXO{commitUTXO(1, 100)}}
	s := scheduler.New(config, source, timers, storage.NewMemory())

	_, err := s.Track(newReveal(1), commitAddress, "feepayer")
	require.NoError(t, err)
	require.Equal(t, 1, timers.Active())

	mu.Lock()
	force.Force <- time.Now()
	mu.Unlock()

	require.Eventually(t, func() bool {
		return len(s.Pending()) == 0 && timers.Active() == 0
	}, time.Second, 10*time.Millisecond)

	source.mu.Lock()
	defer source.mu.Unlock()
	require.Len(t, source.sent, 1)
}
