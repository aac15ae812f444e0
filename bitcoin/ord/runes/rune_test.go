// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/internal/numbers"
)

func TestRune(t *testing.T) {
	t.Run("conversions", func(t *testing.T) {
		tests := []struct {
			num int64
			str string
		}{
			{0, "A"},
			{1, "B"},
			{25, "Z"},
			{26, "AA"},
			{27, "AB"},
			{51, "AZ"},
			{52, "BA"},
			{2055900680524219742, "UNCOMMONGOODS"},
		}
		for _, test := range tests {
			t.Run(test.str, func(t *testing.T) {
				fromStr, err := runes.NewRuneFromString(test.str)
				require.NoError(t, err)
				require.EqualValues(t, test.num, fromStr.Value().Int64())

				fromNum, err := runes.NewRuneFromNumber(big.NewInt(test.num))
				require.NoError(t, err)
				require.Equal(t, test.str, fromNum.String())
			})
		}
	})

	t.Run("max uint128 name", func(t *testing.T) {
		r, err := runes.NewRuneFromNumber(numbers.MaxUInt128Value)
		require.NoError(t, err)
		require.Equal(t, "BCGDENLQRQWDSLRUGSNLBTMFIJAV", r.String())
		require.True(t, r.IsReserved())
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "Aok", "TP3", "ORNV_", "OR V", "ZZZZZZZZZZZZZZZZZZZZZZZZZZZZ"} {
			_, err := runes.NewRuneFromString(name)
			require.ErrorIs(t, err, runes.ErrInvalidRuneName, name)
		}

		_, err := runes.NewRuneFromNumber(big.NewInt(-1))
		require.ErrorIs(t, err, runes.ErrInvalidRuneName)
	})

	t.Run("reserved", func(t *testing.T) {
		r, err := runes.NewRuneFromString("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
		require.NoError(t, err)
		require.False(t, r.IsReserved())

		r, err = runes.NewRuneFromString("ABACDEFGHIJKLMNOPQRSTUVWXYZ")
		require.NoError(t, err)
		require.True(t, r.IsReserved())
	})

	t.Run("commitment", func(t *testing.T) {
		r, err := runes.NewRuneFromNumber(big.NewInt(0x0102))
		require.NoError(t, err)
		require.Equal(t, []byte{0x02, 0x01}, r.Commitment())

		r, err = runes.NewRuneFromNumber(big.NewInt(0))
		require.NoError(t, err)
		require.Empty(t, r.Commitment())
	})
}

func TestSpacedRune(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		tests := []struct {
			spaced  string
			name    string
			spacers uint32
			str     string
		}{
			{"ABC•DEF•GHI•JKL•MNO•PQR•STU•VWX•YZ", "ABCDEFGHIJKLMNOPQRSTUVWXYZ", 0b00000000_10010010_01001001_00100100, "ABC•DEF•GHI•JKL•MNO•PQR•STU•VWX•YZ"},
			{"UNCOMMON.GOODS", "UNCOMMONGOODS", 0b10000000, "UNCOMMON•GOODS"},
			{"HELLO", "HELLO", 0, "HELLO"},
		}
		for _, test := range tests {
			t.Run(test.spaced, func(t *testing.T) {
				spaced, err := runes.ParseSpacedRune(test.spaced)
				require.NoError(t, err)
				require.Equal(t, test.name, spaced.Rune.String())
				require.Equal(t, test.spacers, spaced.Spacers)
				require.Equal(t, test.str, spaced.String())
			})
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			spaced string
			err    error
		}{
			{"•ABC", runes.ErrInvalidSpacers},
			{"ABC•", runes.ErrInvalidSpacers},
			{"A••BC", runes.ErrInvalidSpacers},
			{"AB C", runes.ErrInvalidRuneName},
			{"", runes.ErrInvalidRuneName},
		}
		for _, test := range tests {
			_, err := runes.ParseSpacedRune(test.spaced)
			require.ErrorIs(t, err, test.err, test.spaced)
		}
	})
}

func TestRuneID(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		id, err := runes.NewRuneIDFromString("840000:3")
		require.NoError(t, err)
		require.Equal(t, runes.RuneID{Block: 840000, TxID: 3}, id)
		require.Equal(t, "840000:3", id.String())

		for _, invalid := range []string{"840000", "a:1", "1:b", "0:1", "1:4294967296"} {
			_, err = runes.NewRuneIDFromString(invalid)
			require.Error(t, err, invalid)
		}
	})

	t.Run("ordering", func(t *testing.T) {
		a := runes.RuneID{Block: 1, TxID: 5}
		b := runes.RuneID{Block: 2, TxID: 0}
		c := runes.RuneID{Block: 2, TxID: 1}

		require.Equal(t, -1, a.Compare(b))
		require.Equal(t, -1, b.Compare(c))
		require.Equal(t, 1, c.Compare(a))
		require.Zero(t, c.Compare(c))
	})

	t.Run("delta", func(t *testing.T) {
		a := runes.RuneID{Block: 10, TxID: 5}
		for _, next := range []runes.RuneID{{Block: 10, TxID: 7}, {Block: 12, TxID: 1}, a} {
			require.Equal(t, next, a.Next(a.Delta(next)))
		}
	})
}

func TestEtchingValidate(t *testing.T) {
	name, err := runes.NewRuneFromString("HELLOWORLD")
	require.NoError(t, err)

	reserved, err := runes.NewRuneFromNumber(runes.FirstReservedRuneNameInt)
	require.NoError(t, err)

	div := func(d byte) *byte { return &d }
	spacers := func(s uint32) *uint32 { return &s }
	symbol := func(s rune) *rune { return &s }

	tests := []struct {
		name    string
		etching runes.Etching
		valid   bool
	}{
		{"valid", runes.Etching{Rune: name, Divisibility: div(2), Premine: big.NewInt(1000), Spacers: spacers(0b10000), Symbol: symbol('$')}, true},
		{"zero premine", runes.Etching{Rune: name, Premine: big.NewInt(0)}, true},
		{"missing rune", runes.Etching{Premine: big.NewInt(1)}, false},
		{"reserved", runes.Etching{Rune: reserved}, false},
		{"divisibility", runes.Etching{Rune: name, Divisibility: div(39)}, false},
		{"trailing spacer", runes.Etching{Rune: name, Spacers: spacers(1 << 9)}, false},
		{"invalid symbol", runes.Etching{Rune: name, Symbol: symbol(0xD800)}, false},
		{"premine overflow", runes.Etching{Rune: name, Premine: new(big.Int).Add(numbers.MaxUInt128Value, numbers.OneBigInt)}, false},
		{"supply overflow", runes.Etching{Rune: name, Premine: numbers.MaxUInt128Value, Terms: &runes.Terms{Amount: big.NewInt(1), Cap: big.NewInt(1)}}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.etching.Validate()
			if test.valid {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, runes.ErrInvalidEtching)
		})
	}
}
