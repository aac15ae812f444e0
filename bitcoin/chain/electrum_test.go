// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package chain_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/checksum0/go-electrum/electrum"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/chain"
)

type fakeElectrum struct {
	unspent      []*electrum.ListUnspentResult
	broadcasted  []string
	broadcastErr error
	scripthash   string
}

func (f *fakeElectrum) ListUnspent(_ context.Context, scripthash string) ([]*electrum.ListUnspentResult, error) {
	f.scripthash = scripthash
	return f.unspent, nil
}

func (f *fakeElectrum) BroadcastTransaction(_ context.Context, rawTx string) (string, error) {
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}

	f.broadcasted = append(f.broadcasted, rawTx)
	return "txid", nil
}

func (f *fakeElectrum) SubscribeHeaders(context.Context) (<-chan *electrum.SubscribeHeadersResult, error) {
	headers := make(chan *electrum.SubscribeHeadersResult, 1)
	headers <- &electrum.SubscribeHeadersResult{Height: 850000}
	return headers, nil
}

func (f *fakeElectrum) Shutdown() {}

func TestAddressScriptHash(t *testing.T) {
	scripthash, err := chain.AddressScriptHash("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", bitcoin.NetworkMainnet)
	require.NoError(t, err)
	require.Equal(t, "8b01df4e368ea28f8dc0423bcf7a4923e3a12d307c875e47a0cfbf90b5c39161", scripthash)

	_, err = chain.AddressScriptHash("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", bitcoin.NetworkRegtest)
	require.Error(t, err)
}

func TestElectrumSourceGetUTXOs(t *testing.T) {
	ctx := context.Background()
	client := &fakeElectrum{
		unspent: []*electrum.ListUnspentResult{
			{Hash: "03" + strings.Repeat("0", 62), Position: 0, Value: 3000, Height: 849990},
			{Hash: "01" + strings.Repeat("0", 62), Position: 1, Value: 1000, Height: 849995},
			{Hash: "02" + strings.Repeat("0", 62), Position: 0, Value: 2000, Height: 0},
		},
	}
	source := chain.NewElectrumSource(client, 2)

	first, err := source.GetUTXOs(ctx, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", bitcoin.NetworkMainnet, "")
	require.NoError(t, err)
	require.Equal(t, "8b01df4e368ea28f8dc0423bcf7a4923e3a12d307c875e47a0cfbf90b5c39161", client.scripthash)
	require.EqualValues(t, 850000, first.TipHeight)
	require.Len(t, first.UTXOs, 2)
	require.Equal(t, "2", first.NextCursor)

	second, err := source.GetUTXOs(ctx, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", bitcoin.NetworkMainnet, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.UTXOs, 1)
	require.Empty(t, second.NextCursor)

	seen := map[int64]bool{}
	for _, utxo := range append(first.UTXOs, second.UTXOs...) {
		seen[utxo.Value] = true
	}
	require.Len(t, seen, 3)

	_, err = source.GetUTXOs(ctx, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", bitcoin.NetworkMainnet, "bogus")
	require.Error(t, err)
}

func TestElectrumSourceSendTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		client := &fakeElectrum{}
		source := chain.NewElectrumSource(client, 0)

		require.NoError(t, source.SendTransaction(ctx, []byte{0xde, 0xad}, bitcoin.NetworkRegtest))
		require.Equal(t, []string{"dead"}, client.broadcasted)
	})

	t.Run("rejected", func(t *testing.T) {
		client := &fakeElectrum{broadcastErr: errors.New("bad-txns-inputs-missingorspent")}
		source := chain.NewElectrumSource(client, 0)

		err := source.SendTransaction(ctx, []byte{0xde, 0xad}, bitcoin.NetworkRegtest)
		require.ErrorIs(t, err, chain.ErrBroadcastRejected)
	})
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name   string
		tip    uint32
		height uint32
		want   uint32
	}{
		{"unconfirmed", 100, 0, 0},
		{"tip block", 100, 100, 0},
		{"six deep", 106, 100, 6},
		{"height above tip", 99, 100, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, chain.Depth(test.tip, test.height))
		})
	}
}
