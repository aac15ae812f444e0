// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"strings"

	"github.com/BoostyLabs/runelaunch/internal/numbers"
	"github.com/BoostyLabs/runelaunch/internal/reverse"
)

// DefaultSpacer defines default spacer for Rune name.
const DefaultSpacer = '•'

// AlternativeSpacer is accepted by the parser and treated as DefaultSpacer.
const AlternativeSpacer = '.'

// MaxSpacers defines max value for spacers bitmap.
const MaxSpacers uint32 = 0b00000111_11111111_11111111_11111111

var (
	// ErrInvalidRuneName defines name with symbols out of A-Z range.
	ErrInvalidRuneName = errors.New("invalid rune name")
	// ErrReservedRuneName defines name from the reserved range.
	ErrReservedRuneName = errors.New("reserved rune name")
	// ErrInvalidSpacers defines malformed spacers placement.
	ErrInvalidSpacers = errors.New("invalid spacers")
)

// base26 defines 26 as *big.Int.
var base26 = big.NewInt(26)

// FirstReservedRuneNameInt defines AAAAAAAAAAAAAAAAAAAAAAAAAAA as number.
var FirstReservedRuneNameInt, _ = new(big.Int).SetString("6402364363415443603228541259936211926", 10)

// Rune defines rune names and encodes as modified base-26 integers.
type Rune struct {
	value *big.Int
}

// NewRuneFromString creates new Rune from string name.
// NOTE: Valid symbols are A-Z only.
func NewRuneFromString(name string) (*Rune, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRuneName)
	}

	value := new(big.Int)
	for i, c := range name {
		if c < 'A' || c > 'Z' {
			return nil, fmt.Errorf("%w: symbol %q", ErrInvalidRuneName, c)
		}
		if i > 0 {
			value.Add(value, numbers.OneBigInt)
		}

		value.Mul(value, base26)
		value.Add(value, big.NewInt(int64(c-'A')))

		if !numbers.IsUint128(value) {
			return nil, fmt.Errorf("%w: value overflows uint128", ErrInvalidRuneName)
		}
	}

	return &Rune{value: value}, nil
}

// NewRuneFromNumber creates new Rune from number.
func NewRuneFromNumber(number *big.Int) (*Rune, error) {
	if !numbers.IsUint128(number) {
		return nil, fmt.Errorf("%w: value overflows uint128", ErrInvalidRuneName)
	}

	return &Rune{value: new(big.Int).Set(number)}, nil
}

// Value returns Rune name as number.
func (r *Rune) Value() *big.Int {
	return new(big.Int).Set(r.value)
}

// IsReserved returns true for names which are allocated by the protocol only.
func (r *Rune) IsReserved() bool {
	return !numbers.IsLess(r.value, FirstReservedRuneNameInt)
}

// Commitment returns the little-endian name value without trailing zeros,
// which has to be revealed in the etching input.
func (r *Rune) Commitment() []byte {
	return reverse.Bytes(r.value.Bytes())
}

// String returns Rune name as string.
func (r *Rune) String() string {
	n := new(big.Int).Add(r.value, numbers.OneBigInt)
	mod := new(big.Int)

	var name []byte
	for n.Sign() > 0 {
		n.Sub(n, numbers.OneBigInt)
		n.DivMod(n, base26, mod)
		name = append(name, byte('A'+mod.Int64()))
	}

	return string(reverse.Bytes(name))
}

// SpacedRune is a rune name with spacers placed between its letters.
type SpacedRune struct {
	Rune    *Rune
	Spacers uint32
}

// ParseSpacedRune parses name like "UNCOMMON•GOODS", both DefaultSpacer and AlternativeSpacer are accepted.
func ParseSpacedRune(s string) (*SpacedRune, error) {
	var (
		name    strings.Builder
		letters uint
		spacers uint32
	)
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			name.WriteRune(c)
			letters++
		case c == DefaultSpacer || c == AlternativeSpacer:
			if letters == 0 {
				return nil, fmt.Errorf("%w: leading spacer", ErrInvalidSpacers)
			}

			flag := uint32(1) << (letters - 1)
			if spacers&flag != 0 {
				return nil, fmt.Errorf("%w: double spacer", ErrInvalidSpacers)
			}

			spacers |= flag
		default:
			return nil, fmt.Errorf("%w: symbol %q", ErrInvalidRuneName, c)
		}
	}

	if spacers != 0 && uint(32-bits.LeadingZeros32(spacers)) >= letters {
		return nil, fmt.Errorf("%w: trailing spacer", ErrInvalidSpacers)
	}

	rune_, err := NewRuneFromString(name.String())
	if err != nil {
		return nil, err
	}

	return &SpacedRune{Rune: rune_, Spacers: spacers}, nil
}

// String returns the name with DefaultSpacer placed by the spacers bitmap.
func (s *SpacedRune) String() string {
	name := s.Rune.String()

	var b strings.Builder
	for i, c := range name {
		b.WriteRune(c)
		if i < len(name)-1 && s.Spacers&(1<<i) != 0 {
			b.WriteRune(DefaultSpacer)
		}
	}

	return b.String()
}
