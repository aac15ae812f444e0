// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"math/big"
)

// Tag defines the key of a runestone message field.
// Even tags are required to be understood by the parser, odd ones may be skipped.
type Tag uint64

const (
	// TagBody starts the edicts section, it is the last tag of the message.
	TagBody Tag = 0
	// TagFlags holds a bitmap of Flag values.
	TagFlags Tag = 2
	// TagRune holds the name of the etched rune.
	TagRune Tag = 4
	// TagPremine holds the amount of runes allocated to the etcher.
	TagPremine Tag = 6
	// TagCap holds the number of allowed mints.
	TagCap Tag = 8
	// TagAmount holds the amount of runes per mint.
	TagAmount Tag = 10
	// TagHeightStart holds the absolute block height mints are open from.
	TagHeightStart Tag = 12
	// TagHeightEnd holds the absolute block height mints are closed at.
	TagHeightEnd Tag = 14
	// TagOffsetStart holds the relative block offset mints are open from.
	TagOffsetStart Tag = 16
	// TagOffsetEnd holds the relative block offset mints are closed at.
	TagOffsetEnd Tag = 18
	// TagMint holds the rune id to mint.
	TagMint Tag = 20
	// TagPointer holds the default output for unallocated runes.
	TagPointer Tag = 22
	// TagCenotaph is unrecognized and turns the runestone into a cenotaph.
	TagCenotaph Tag = 126

	// TagDivisibility holds the divisibility of the etched rune.
	TagDivisibility Tag = 1
	// TagSpacers holds the spacers bitmap of the etched rune name.
	TagSpacers Tag = 3
	// TagSymbol holds the currency symbol of the etched rune.
	TagSymbol Tag = 5
	// TagNop is ignored by the parser.
	TagNop Tag = 127
)

// BigInt returns Tag as big.Int.
func (t Tag) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(t))
}

// isOdd returns true for tags which may be ignored when unknown.
func (t Tag) isOdd() bool {
	return t%2 == 1
}

// Flag defines a bit of the TagFlags field.
type Flag uint

const (
	// FlagEtching marks the runestone as an etching.
	FlagEtching Flag = 0
	// FlagTerms marks the etching as having open mint terms.
	FlagTerms Flag = 1
	// FlagTurbo opts the etched rune into future protocol changes.
	FlagTurbo Flag = 2
	// FlagCenotaph is unrecognized.
	FlagCenotaph Flag = 127
)

// mask returns the flag as a bitmask.
func (f Flag) mask() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(f))
}

// HasFlag returns true if the flag bit is set in value.
func HasFlag(value *big.Int, flag Flag) bool {
	return value.Bit(int(flag)) == 1
}

// AddFlag sets the flag bit, returns mutated value.
func AddFlag(value *big.Int, flag Flag) *big.Int {
	return value.Or(value, flag.mask())
}

// takeFlag clears the flag bit and reports whether it was set.
func takeFlag(value *big.Int, flag Flag) bool {
	if !HasFlag(value, flag) {
		return false
	}

	value.SetBit(value, int(flag), 0)

	return true
}
