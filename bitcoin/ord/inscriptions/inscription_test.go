// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions_test

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
)

func TestInscription(t *testing.T) {
	name, err := runes.NewRuneFromString("HELLO")
	require.NoError(t, err)

	t.Run("rune commitment only", func(t *testing.T) {
		insc := inscriptions.Inscription{Rune: name}

		// OP_FALSE OP_IF "ord" 0x01 0x0d <commitment> OP_ENDIF.
		expected := "0063036f7264010d" + "03" + hex.EncodeToString(name.Commitment()) + "68"
		require.Equal(t, expected, hex.EncodeToString(insc.IntoScript()))
	})

	t.Run("round trip", func(t *testing.T) {
		privateKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		insc := &inscriptions.Inscription{
			Body:         bytes.Repeat([]byte{0x89, 0x50}, 700),
			ContentType:  "image/png",
			Metaprotocol: "runes",
			Pointer:      big.NewInt(0x0102),
			Rune:         name,
		}

		script := insc.IntoScriptForWitness(privateKey.PubKey())
		require.EqualValues(t, txscript.OP_DATA_32, script[0])
		require.EqualValues(t, txscript.OP_CHECKSIG, script[33])

		parsed, err := inscriptions.ParseInscriptionFromScript(script)
		require.NoError(t, err)
		require.Equal(t, insc.Body, parsed.Body)
		require.Equal(t, insc.ContentType, parsed.ContentType)
		require.Equal(t, insc.Metaprotocol, parsed.Metaprotocol)
		require.Zero(t, insc.Pointer.Cmp(parsed.Pointer))
		require.Equal(t, "HELLO", parsed.Rune.String())
	})

	t.Run("empty envelope", func(t *testing.T) {
		parsed, err := inscriptions.ParseInscriptionFromScript((&inscriptions.Inscription{}).IntoScript())
		require.NoError(t, err)
		require.Equal(t, &inscriptions.Inscription{}, parsed)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := inscriptions.ParseInscriptionFromScript([]byte{txscript.OP_TRUE})
		require.ErrorIs(t, err, inscriptions.ErrMalformedInscription)

		unterminated := (&inscriptions.Inscription{ContentType: "text/plain"}).IntoScript()
		_, err = inscriptions.ParseInscriptionFromScript(unterminated[:len(unterminated)-1])
		require.ErrorIs(t, err, inscriptions.ErrMalformedInscription)
	})
}
