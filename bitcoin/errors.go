// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
)

var (
	// ErrInsufficientNativeBalance defines that owned satoshi do not cover the required amount.
	ErrInsufficientNativeBalance = errors.New("insufficient bitcoin balance")
	// ErrInsufficientRuneBalance defines that owned runes do not cover the required amount.
	ErrInsufficientRuneBalance = errors.New("insufficient rune balance")
	// ErrInvalidUTXOAmount defines that there are less utxos than selection requires.
	ErrInvalidUTXOAmount = errors.New("invalid utxo amount")
	// ErrUnsupportedNetwork defines unknown network name.
	ErrUnsupportedNetwork = errors.New("unsupported network")
)
