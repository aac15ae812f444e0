// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/BoostyLabs/runelaunch/bitcoin/addresses"
)

// ErrEmptySeed defines that local keys can not be created without seed.
var ErrEmptySeed = errors.New("signer seed is empty")

// LocalKeys is a Remote backed by in-process keys derived from a seed.
// ECDSA keys are derived non-hardened from the master key, so public keys
// of the paths are derivable from the master public key and chain code.
type LocalKeys struct {
	schnorrKey *btcec.PrivateKey
	ecdsaKey   *btcec.PrivateKey
	chainCode  []byte
}

var _ Remote = (*LocalKeys)(nil)

// NewLocalKeys derives schnorr key, ECDSA master key and chain code from seed.
func NewLocalKeys(seed []byte) (*LocalKeys, error) {
	if len(seed) == 0 {
		return nil, ErrEmptySeed
	}

	derive := func(domain string) []byte {
		hash := sha256.Sum256(append([]byte(domain), seed...))
		return hash[:]
	}

	schnorrKey, _ := btcec.PrivKeyFromBytes(derive("schnorr"))
	ecdsaKey, _ := btcec.PrivKeyFromBytes(derive("ecdsa"))

	return &LocalKeys{
		schnorrKey: schnorrKey,
		ecdsaKey:   ecdsaKey,
		chainCode:  derive("chain-code"),
	}, nil
}

// SchnorrPublicKey returns public key used for script path spends.
func (keys *LocalKeys) SchnorrPublicKey() *btcec.PublicKey {
	return keys.schnorrKey.PubKey()
}

// ECDSAPublicKey returns master public key of the ECDSA derivation.
func (keys *LocalKeys) ECDSAPublicKey() *btcec.PublicKey {
	return keys.ecdsaKey.PubKey()
}

// ChainCode returns chain code of the ECDSA derivation.
func (keys *LocalKeys) ChainCode() []byte {
	return append([]byte(nil), keys.chainCode...)
}

// SignECDSA implements Remote.
func (keys *LocalKeys) SignECDSA(ctx context.Context, digest []byte, path [][]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extended, err := addresses.NewExtendedKey(keys.ecdsaKey.Serialize(), keys.chainCode, true)
	if err != nil {
		return nil, err
	}

	for _, index := range addresses.ChildIndexes(path) {
		if extended, err = extended.Derive(index); err != nil {
			return nil, fmt.Errorf("could not derive child %d: %w", index, err)
		}
	}

	privateKey, err := extended.ECPrivKey()
	if err != nil {
		return nil, err
	}

	compact, err := ecdsa.SignCompact(privateKey, digest, true)
	if err != nil {
		return nil, err
	}

	// the first byte is recovery code.
	return compact[1:], nil
}

// SignSchnorr implements Remote. The schnorr key is not derived, path must be empty.
func (keys *LocalKeys) SignSchnorr(ctx context.Context, digest []byte, path [][]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(path) != 0 {
		return nil, errors.New("schnorr key derivation is not supported")
	}

	sig, err := schnorr.Sign(keys.schnorrKey, digest)
	if err != nil {
		return nil, err
	}

	return sig.Serialize(), nil
}
