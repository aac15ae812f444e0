// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package reverse_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/internal/reverse"
)

func TestBytes(t *testing.T) {
	orig := []byte{1, 2, 3}
	require.Equal(t, []byte{3, 2, 1}, reverse.Bytes(orig))
	require.Equal(t, []byte{1, 2, 3}, orig)
	require.Empty(t, reverse.Bytes(nil))
}

func FuzzReverse(f *testing.F) {
	f.Add([]byte("some_data_here"))

	f.Fuzz(func(t *testing.T, orig []byte) {
		doubleRev := reverse.Bytes(reverse.Bytes(orig))
		if !bytes.Equal(orig, doubleRev) {
			t.Errorf("Before: %q, after: %q", orig, doubleRev)
		}
	})
}
