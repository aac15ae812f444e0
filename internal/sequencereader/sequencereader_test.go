// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package sequencereader_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/internal/sequencereader"
)

func TestSequenceReader(t *testing.T) {
	seq := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4)}

	t.Run("Next", func(t *testing.T) {
		sr := sequencereader.New(seq)
		require.Equal(t, 4, sr.Len())

		for i := int64(1); i <= 4; i++ {
			require.True(t, sr.HasNext())
			value, err := sr.Next()
			require.NoError(t, err)
			require.EqualValues(t, i, value.Int64())
		}

		require.False(t, sr.HasNext())
		_, err := sr.Next()
		require.ErrorIs(t, err, sequencereader.ErrEnded)
	})

	t.Run("Rest", func(t *testing.T) {
		sr := sequencereader.New(seq)
		_, _ = sr.Next()

		rest := sr.Rest()
		require.Len(t, rest, 3)
		require.Zero(t, sr.Len())
		require.Empty(t, sr.Rest())
	})

	t.Run("empty", func(t *testing.T) {
		sr := sequencereader.New[string](nil)
		require.False(t, sr.HasNext())
		require.Zero(t, sr.Len())
	})
}
