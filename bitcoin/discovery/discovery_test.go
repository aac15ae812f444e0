// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package discovery_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/chain"
	"github.com/BoostyLabs/runelaunch/bitcoin/classifier"
	"github.com/BoostyLabs/runelaunch/bitcoin/discovery"
	"github.com/BoostyLabs/runelaunch/bitcoin/ledger"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/internal/storage"
)

const address = "bcrt1qaddress"

type fakeSource struct {
	pages map[string]*chain.Page
	fail  map[string]error
	calls int
}

func (f *fakeSource) GetUTXOs(_ context.Context, _ string, _ bitcoin.Network, cursor string) (*chain.Page, error) {
	f.calls++
	if err := f.fail[cursor]; err != nil {
		return nil, err
	}

	return f.pages[cursor], nil
}

func (f *fakeSource) SendTransaction(context.Context, []byte, bitcoin.Network) error {
	return nil
}

type fakeClassifier struct {
	balances map[wire.OutPoint][]classifier.Balance
	fail     bool
	calls    int
}

func (f *fakeClassifier) Classify(_ context.Context, txID chainhash.Hash, vout uint32) ([]classifier.Balance, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("indexer unavailable")
	}

	return f.balances[wire.OutPoint{Hash: txID, Index: vout}], nil
}

func utxo(b byte, value int64) bitcoin.UTXO {
	return bitcoin.UTXO{OutPoint: wire.OutPoint{Hash: chainhash.Hash{b}}, Value: value, Height: 10}
}

func TestRunClassifierFailure(t *testing.T) {
	l := ledger.New(storage.NewMemory())
	source := &fakeSource{pages: map[string]*chain.Page{
		"": {UTXOs: []bitcoin.UTXO{utxo(1, 100_000)}, NextCursor: "next"},
	}}
	loop := discovery.New(source, &fakeClassifier{fail: true}, l, bitcoin.NetworkRegtest, 0)

	result, err := loop.Run(context.Background(), address, discovery.PlainTarget(50_000))
	require.NoError(t, err)
	require.Equal(t, 1, result.Pages)
	require.True(t, result.Reached)
	require.Equal(t, 1, source.calls)
	require.Equal(t, []bitcoin.UTXO{utxo(1, 100_000)}, l.Plain(address))
	require.EqualValues(t, 100_000, l.BalancePlain(address))
}

func TestRunTokenized(t *testing.T) {
	runeA := runes.RuneID{Block: 840000, TxID: 1}
	runeB := runes.RuneID{Block: 840000, TxID: 2}

	l := ledger.New(storage.NewMemory())
	source := &fakeSource{pages: map[string]*chain.Page{
		"":   {UTXOs: []bitcoin.UTXO{utxo(1, 546), utxo(2, 10_000)}, NextCursor: "p2"},
		"p2": {UTXOs: []bitcoin.UTXO{utxo(3, 546)}},
	}}
	classify := &fakeClassifier{balances: map[wire.OutPoint][]classifier.Balance{
		utxo(1, 0).OutPoint: {{RuneID: runeA, Amount: big.NewInt(100)}, {RuneID: runeB, Amount: big.NewInt(7)}},
		utxo(3, 0).OutPoint: {{RuneID: runeA, Amount: big.NewInt(50)}},
	}}
	loop := discovery.New(source, classify, l, bitcoin.NetworkRegtest, 0)

	result, err := loop.Run(context.Background(), address, discovery.RuneTarget(runeA, big.NewInt(1000)))
	require.NoError(t, err)
	require.Equal(t, 2, result.Pages)
	require.False(t, result.Reached)
	require.Equal(t, "150", result.Balance.String())
	require.Equal(t, 3, result.Tokenized)
	require.Equal(t, 1, result.Plain)

	require.EqualValues(t, 10_000, l.BalancePlain(address))
	require.Equal(t, "7", l.BalanceTokenized(address, runeB).String())

	t.Run("tokenized outputs are not classified again", func(t *testing.T) {
		classify.calls = 0
		_, err := loop.Run(context.Background(), address, discovery.RuneTarget(runeA, big.NewInt(1000)))
		require.NoError(t, err)
		require.Equal(t, 1, classify.calls)
		require.Equal(t, "150", l.BalanceTokenized(address, runeA).String())
	})
}

func TestRunExhaustion(t *testing.T) {
	t.Run("repeated cursor", func(t *testing.T) {
		source := &fakeSource{pages: map[string]*chain.Page{
			"":  {UTXOs: []bitcoin.UTXO{utxo(1, 10)}, NextCursor: "a"},
			"a": {UTXOs: []bitcoin.UTXO{utxo(2, 10)}, NextCursor: "b"},
			"b": {UTXOs: []bitcoin.UTXO{utxo(3, 10)}, NextCursor: "a"},
		}}
		loop := discovery.New(source, &fakeClassifier{}, ledger.New(storage.NewMemory()), bitcoin.NetworkRegtest, 0)

		result, err := loop.Run(context.Background(), address, discovery.PlainTarget(1_000))
		require.NoError(t, err)
		require.Equal(t, 3, result.Pages)
		require.False(t, result.Reached)
		require.EqualValues(t, 30, result.Balance.Int64())
	})

	t.Run("page limit", func(t *testing.T) {
		source := &fakeSource{pages: map[string]*chain.Page{
			"":  {UTXOs: []bitcoin.UTXO{utxo(1, 10)}, NextCursor: "a"},
			"a": {UTXOs: []bitcoin.UTXO{utxo(2, 10)}, NextCursor: "b"},
			"b": {UTXOs: []bitcoin.UTXO{utxo(3, 10)}},
		}}
		loop := discovery.New(source, &fakeClassifier{}, ledger.New(storage.NewMemory()), bitcoin.NetworkRegtest, 2)

		result, err := loop.Run(context.Background(), address, discovery.PlainTarget(1_000))
		require.NoError(t, err)
		require.Equal(t, 2, result.Pages)
	})
}

func TestRunChainFailure(t *testing.T) {
	l := ledger.New(storage.NewMemory())
	source := &fakeSource{
		pages: map[string]*chain.Page{
			"": {UTXOs: []bitcoin.UTXO{utxo(1, 10)}, NextCursor: "a"},
		},
		fail: map[string]error{"a": errors.New("connection reset")},
	}
	loop := discovery.New(source, &fakeClassifier{}, l, bitcoin.NetworkRegtest, 0)

	result, err := loop.Run(context.Background(), address, discovery.PlainTarget(1_000))
	require.ErrorIs(t, err, discovery.ErrChainFetch)
	require.Equal(t, 1, result.Pages)
	require.EqualValues(t, 10, l.BalancePlain(address))
}

func TestRunSkipsSpent(t *testing.T) {
	l := ledger.New(storage.NewMemory())
	require.NoError(t, l.RecordPlain(address, []bitcoin.UTXO{utxo(1, 10)}))
	_, err := l.TakePlain(address, []wire.OutPoint{utxo(1, 0).OutPoint})
	require.NoError(t, err)

	classify := &fakeClassifier{}
	source := &fakeSource{pages: map[string]*chain.Page{
		"": {UTXOs: []bitcoin.UTXO{utxo(1, 10), utxo(2, 20)}},
	}}
	loop := discovery.New(source, classify, l, bitcoin.NetworkRegtest, 0)

	result, err := loop.Run(context.Background(), address, discovery.PlainTarget(1_000))
	require.NoError(t, err)
	require.Equal(t, 1, classify.calls)
	require.EqualValues(t, 20, result.Balance.Int64())
}

func TestRunForgetsSpent(t *testing.T) {
	newLedger := func(t *testing.T) *ledger.Ledger {
		l := ledger.New(storage.NewMemory())
		require.NoError(t, l.RecordPlain(address, []bitcoin.UTXO{utxo(1, 10), utxo(2, 20)}))
		_, err := l.TakePlain(address, []wire.OutPoint{utxo(1, 0).OutPoint, utxo(2, 0).OutPoint})
		require.NoError(t, err)

		return l
	}

	pages := map[string]*chain.Page{
		"":  {UTXOs: []bitcoin.UTXO{utxo(1, 10)}, NextCursor: "a"},
		"a": {UTXOs: []bitcoin.UTXO{utxo(3, 30)}},
	}

	t.Run("complete listing", func(t *testing.T) {
		l := newLedger(t)
		loop := discovery.New(&fakeSource{pages: pages}, &fakeClassifier{}, l, bitcoin.NetworkRegtest, 0)

		_, err := loop.Run(context.Background(), address, discovery.PlainTarget(1_000))
		require.NoError(t, err)

		// output 1 is still listed, its spend is not seen by the chain yet.
		require.Equal(t, ledger.StateSpent, l.State(address, utxo(1, 0).OutPoint))
		require.Equal(t, ledger.StateUnknown, l.State(address, utxo(2, 0).OutPoint))
		require.Equal(t, []wire.OutPoint{utxo(1, 0).OutPoint}, l.Spent(address))
		require.EqualValues(t, 30, l.BalancePlain(address))
	})

	t.Run("partial listing keeps marks", func(t *testing.T) {
		l := newLedger(t)
		loop := discovery.New(&fakeSource{pages: pages}, &fakeClassifier{}, l, bitcoin.NetworkRegtest, 1)

		_, err := loop.Run(context.Background(), address, discovery.PlainTarget(1_000))
		require.NoError(t, err)
		require.Len(t, l.Spent(address), 2)
		require.Equal(t, ledger.StateSpent, l.State(address, utxo(2, 0).OutPoint))
	})
}
