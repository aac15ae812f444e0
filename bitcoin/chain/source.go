// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"errors"

	"github.com/BoostyLabs/runelaunch/bitcoin"
)

// ErrBroadcastRejected defines that the network refused the transaction.
var ErrBroadcastRejected = errors.New("transaction rejected")

// Page is one page of address outputs.
type Page struct {
	UTXOs []bitcoin.UTXO
	// NextCursor is empty when there are no more pages.
	NextCursor string
	TipHeight  uint32
}

// Source exposes chain data and broadcasting.
type Source interface {
	// GetUTXOs returns page of unspent outputs of the address starting from cursor, empty cursor is the first page.
	GetUTXOs(ctx context.Context, address string, network bitcoin.Network, cursor string) (*Page, error)
	// SendTransaction broadcasts serialized transaction.
	SendTransaction(ctx context.Context, raw []byte, network bitcoin.Network) error
}

// Depth returns number of blocks mined on top of the block at height when the chain tip is tipHeight.
// Unconfirmed outputs have height 0 and zero depth.
func Depth(tipHeight, height uint32) uint32 {
	if height == 0 || tipHeight < height {
		return 0
	}

	return tipHeight - height
}
