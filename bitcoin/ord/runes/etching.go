// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"unicode/utf8"

	"github.com/BoostyLabs/runelaunch/internal/numbers"
)

// MaxDivisibility defines maximum divisibility for runes.
const MaxDivisibility byte = 38

// ErrInvalidEtching defines etching parameters which violate protocol rules.
var ErrInvalidEtching = errors.New("invalid etching")

// Etching defines values to create new rune.
type Etching struct {
	Divisibility *byte
	Premine      *big.Int
	Rune         *Rune
	Spacers      *uint32
	Symbol       *rune
	Terms        *Terms
	Turbo        bool
}

// Terms defines open mint parameters of the etching.
type Terms struct {
	Amount      *big.Int
	Cap         *big.Int
	HeightStart *uint64
	HeightEnd   *uint64
	OffsetStart *uint64
	OffsetEnd   *uint64
}

// Supply returns premine plus the maximum amount mintable by terms.
func (e *Etching) Supply() *big.Int {
	supply := numbers.Sum(e.Premine)
	if e.Terms != nil && e.Terms.Amount != nil && e.Terms.Cap != nil {
		supply.Add(supply, new(big.Int).Mul(e.Terms.Amount, e.Terms.Cap))
	}

	return supply
}

// Validate checks the etching against protocol rules for a new rune.
func (e *Etching) Validate() error {
	switch {
	case e.Rune == nil:
		return fmt.Errorf("%w: rune name is required", ErrInvalidEtching)
	case e.Rune.IsReserved():
		return fmt.Errorf("%w: %w", ErrInvalidEtching, ErrReservedRuneName)
	case e.Divisibility != nil && *e.Divisibility > MaxDivisibility:
		return fmt.Errorf("%w: divisibility %d exceeds %d", ErrInvalidEtching, *e.Divisibility, MaxDivisibility)
	case e.Symbol != nil && !utf8.ValidRune(*e.Symbol):
		return fmt.Errorf("%w: symbol is not a valid character", ErrInvalidEtching)
	case e.Premine != nil && !numbers.IsUint128(e.Premine):
		return fmt.Errorf("%w: premine overflows uint128", ErrInvalidEtching)
	}

	if e.Spacers != nil && *e.Spacers != 0 {
		if *e.Spacers > MaxSpacers || 32-bits.LeadingZeros32(*e.Spacers) >= len(e.Rune.String()) {
			return fmt.Errorf("%w: %w", ErrInvalidEtching, ErrInvalidSpacers)
		}
	}

	if e.Terms != nil {
		for _, value := range []*big.Int{e.Terms.Amount, e.Terms.Cap} {
			if value != nil && !numbers.IsUint128(value) {
				return fmt.Errorf("%w: terms overflow uint128", ErrInvalidEtching)
			}
		}
	}

	if !numbers.IsUint128(e.Supply()) {
		return fmt.Errorf("%w: supply overflows uint128", ErrInvalidEtching)
	}

	return nil
}
