// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/checksum0/go-electrum/electrum"
	"go.uber.org/atomic"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/internal/reverse"
)

// DefaultPageSize is the number of outputs in one page of ElectrumSource.
const DefaultPageSize = 50

// ElectrumClient is the subset of electrum protocol calls used by ElectrumSource.
type ElectrumClient interface {
	ListUnspent(ctx context.Context, scripthash string) ([]*electrum.ListUnspentResult, error)
	BroadcastTransaction(ctx context.Context, rawTx string) (string, error)
	SubscribeHeaders(ctx context.Context) (<-chan *electrum.SubscribeHeadersResult, error)
	Shutdown()
}

// DialElectrum connects to electrum server.
func DialElectrum(ctx context.Context, addr string, useSSL bool) (*electrum.Client, error) {
	if useSSL {
		return electrum.NewClientSSL(ctx, addr, &tls.Config{MinVersion: tls.VersionTLS12})
	}

	return electrum.NewClientTCP(ctx, addr)
}

// ElectrumSource implements Source over electrum protocol.
// Electrum returns all outputs of a script at once, ElectrumSource splits them into pages
// with the offset as cursor.
type ElectrumSource struct {
	client   ElectrumClient
	pageSize int

	subscribeOnce sync.Once
	subscribeErr  error
	tip           atomic.Uint32
	tipReady      chan struct{}
}

var _ Source = (*ElectrumSource)(nil)

// NewElectrumSource is a constructor for ElectrumSource.
func NewElectrumSource(client ElectrumClient, pageSize int) *ElectrumSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &ElectrumSource{
		client:   client,
		pageSize: pageSize,
		tipReady: make(chan struct{}),
	}
}

// GetUTXOs returns page of unspent outputs of the address.
func (s *ElectrumSource) GetUTXOs(ctx context.Context, address string, network bitcoin.Network, cursor string) (*Page, error) {
	offset := 0
	if cursor != "" {
		var err error
		if offset, err = strconv.Atoi(cursor); err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
	}

	tip, err := s.TipHeight(ctx)
	if err != nil {
		return nil, err
	}

	scripthash, err := AddressScriptHash(address, network)
	if err != nil {
		return nil, err
	}

	unspent, err := s.client.ListUnspent(ctx, scripthash)
	if err != nil {
		return nil, fmt.Errorf("could not list unspent outputs of %s: %w", address, err)
	}

	utxos := make([]bitcoin.UTXO, 0, len(unspent))
	for _, u := range unspent {
		hash, err := chainhash.NewHashFromStr(u.Hash)
		if err != nil {
			return nil, fmt.Errorf("invalid tx hash %q: %w", u.Hash, err)
		}

		utxos = append(utxos, bitcoin.UTXO{
			OutPoint: wire.OutPoint{Hash: *hash, Index: uint32(u.Position)},
			Value:    int64(u.Value),
			Height:   uint32(max(u.Height, 0)),
		})
	}
	slices.SortFunc(utxos, func(a, b bitcoin.UTXO) int {
		return bitcoin.CompareOutPoints(a.OutPoint, b.OutPoint)
	})

	page := &Page{TipHeight: tip}
	if offset >= len(utxos) {
		return page, nil
	}

	end := min(offset+s.pageSize, len(utxos))
	page.UTXOs = utxos[offset:end]
	if end < len(utxos) {
		page.NextCursor = strconv.Itoa(end)
	}

	return page, nil
}

// SendTransaction broadcasts serialized transaction.
func (s *ElectrumSource) SendTransaction(ctx context.Context, raw []byte, _ bitcoin.Network) error {
	if _, err := s.client.BroadcastTransaction(ctx, hex.EncodeToString(raw)); err != nil {
		return fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}

	return nil
}

// TipHeight returns height of the latest block header announced by the server.
func (s *ElectrumSource) TipHeight(ctx context.Context) (uint32, error) {
	s.subscribeOnce.Do(func() {
		var headers <-chan *electrum.SubscribeHeadersResult
		headers, s.subscribeErr = s.client.SubscribeHeaders(context.Background())
		if s.subscribeErr != nil {
			close(s.tipReady)
			return
		}

		go func() {
			ready := false
			for header := range headers {
				s.tip.Store(uint32(max(header.Height, 0)))
				if !ready {
					ready = true
					close(s.tipReady)
				}
			}
		}()
	})
	if s.subscribeErr != nil {
		return 0, fmt.Errorf("could not subscribe to headers: %w", s.subscribeErr)
	}

	select {
	case <-s.tipReady:
		return s.tip.Load(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close shuts the client down.
func (s *ElectrumSource) Close() {
	s.client.Shutdown()
}

// AddressScriptHash returns electrum script hash of the address: reversed sha256 of its output script.
func AddressScriptHash(address string, network bitcoin.Network) (string, error) {
	decoded, err := btcutil.DecodeAddress(address, network.Params())
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", address, err)
	}

	pkScript, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(pkScript)

	return hex.EncodeToString(reverse.Bytes(hash[:])), nil
}
