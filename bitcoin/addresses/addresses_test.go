// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package addresses_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin/addresses"
)

func TestDerive(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	chainCode := bytes.Repeat([]byte{7}, 32)
	owner := []byte("etcher")

	first, err := addresses.Derive(owner, []byte("alice"), privKey.PubKey(), chainCode, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	t.Run("deterministic", func(t *testing.T) {
		again, err := addresses.Derive(owner, []byte("alice"), privKey.PubKey(), chainCode, &chaincfg.RegressionNetParams)
		require.NoError(t, err)
		require.Equal(t, first, again)
	})

	t.Run("distinct identities", func(t *testing.T) {
		other, err := addresses.Derive(owner, []byte("bob"), privKey.PubKey(), chainCode, &chaincfg.RegressionNetParams)
		require.NoError(t, err)
		require.NotEqual(t, first.Bitcoin, other.Bitcoin)
		require.NotEqual(t, first.AccountIdentifier, other.AccountIdentifier)
	})

	t.Run("p2pkh address", func(t *testing.T) {
		address, err := btcutil.DecodeAddress(first.Bitcoin, &chaincfg.RegressionNetParams)
		require.NoError(t, err)
		require.IsType(t, &btcutil.AddressPubKeyHash{}, address)
	})

	t.Run("account forms", func(t *testing.T) {
		require.Equal(t, addresses.Subaccount([]byte("alice")), first.Account.Subaccount)
		require.Len(t, first.AccountIdentifier, 64)
		require.Len(t, first.DerivationPath, 3)
		require.Equal(t, first.Account.String(), first.AccountString)
	})

	t.Run("matches private derivation", func(t *testing.T) {
		extended, err := addresses.NewExtendedKey(privKey.Serialize(), chainCode, true)
		require.NoError(t, err)
		for _, index := range addresses.ChildIndexes(first.DerivationPath) {
			extended, err = extended.Derive(index)
			require.NoError(t, err)
		}
		childPriv, err := extended.ECPrivKey()
		require.NoError(t, err)

		childPub, err := addresses.DerivePublicKey(privKey.PubKey(), chainCode, first.DerivationPath)
		require.NoError(t, err)
		require.True(t, childPub.IsEqual(childPriv.PubKey()))
	})

	t.Run("invalid chain code", func(t *testing.T) {
		_, err := addresses.Derive(owner, []byte("alice"), privKey.PubKey(), []byte{1, 2}, &chaincfg.RegressionNetParams)
		require.ErrorIs(t, err, addresses.ErrInvalidChainCode)
	})
}
