// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package addresses

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/crypto/sha3"
)

// derivationSchema is the first element of every derivation path.
const derivationSchema = 1

// ErrInvalidChainCode defines that chain code has invalid length.
var ErrInvalidChainCode = errors.New("chain code must be 32 bytes")

// Account is owner identity with 32-byte subaccount.
type Account struct {
	Owner      []byte
	Subaccount [32]byte
}

// String returns textual form of the account.
func (a Account) String() string {
	return hex.EncodeToString(a.Owner) + "." + hex.EncodeToString(a.Subaccount[:])
}

// Identifier returns account identifier: crc32 checksum followed by sha224 of the account.
func (a Account) Identifier() string {
	h := sha256.New224()
	h.Write([]byte("\x0Aaccount-id"))
	h.Write(a.Owner)
	h.Write(a.Subaccount[:])
	hash := h.Sum(nil)

	checksum := make([]byte, 4, 4+len(hash))
	binary.BigEndian.PutUint32(checksum, crc32.ChecksumIEEE(hash))

	return hex.EncodeToString(append(checksum, hash...))
}

// DerivationPath returns signer derivation path of the account.
func (a Account) DerivationPath() [][]byte {
	return [][]byte{{derivationSchema}, a.Owner, a.Subaccount[:]}
}

// Set holds all address representations of one identity.
type Set struct {
	Account           Account
	AccountString     string
	AccountIdentifier string
	Bitcoin           string
	DerivationPath    [][]byte
}

// Subaccount returns subaccount of the identity.
func Subaccount(identity []byte) [32]byte {
	return sha3.Sum256(identity)
}

// Derive returns address set of the identity held by owner.
// Bitcoin address is P2PKH of the signer key derived by the account derivation path.
func Derive(owner, identity []byte, signerKey *btcec.PublicKey, chainCode []byte, params *chaincfg.Params) (Set, error) {
	account := Account{Owner: owner, Subaccount: Subaccount(identity)}
	path := account.DerivationPath()

	pubKey, err := DerivePublicKey(signerKey, chainCode, path)
	if err != nil {
		return Set{}, err
	}

	address, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey.SerializeCompressed()), params)
	if err != nil {
		return Set{}, err
	}

	return Set{
		Account:           account,
		AccountString:     account.String(),
		AccountIdentifier: account.Identifier(),
		Bitcoin:           address.EncodeAddress(),
		DerivationPath:    path,
	}, nil
}

// ChildIndexes maps derivation path elements to non-hardened child indexes.
func ChildIndexes(path [][]byte) []uint32 {
	indexes := make([]uint32, 0, len(path))
	for _, element := range path {
		hash := sha256.Sum256(element)
		indexes = append(indexes, binary.BigEndian.Uint32(hash[:4])&(hdkeychain.HardenedKeyStart-1))
	}

	return indexes
}

// DerivePublicKey derives child public key of the signer key by path.
func DerivePublicKey(signerKey *btcec.PublicKey, chainCode []byte, path [][]byte) (*btcec.PublicKey, error) {
	extended, err := NewExtendedKey(signerKey.SerializeCompressed(), chainCode, false)
	if err != nil {
		return nil, err
	}

	for _, index := range ChildIndexes(path) {
		if extended, err = extended.Derive(index); err != nil {
			return nil, fmt.Errorf("could not derive child %d: %w", index, err)
		}
	}

	return extended.ECPubKey()
}

// NewExtendedKey returns master extended key from raw key and chain code, empty chain code is zeroed.
func NewExtendedKey(key, chainCode []byte, isPrivate bool) (*hdkeychain.ExtendedKey, error) {
	switch len(chainCode) {
	case 0:
		chainCode = make([]byte, 32)
	case 32:
	default:
		return nil, ErrInvalidChainCode
	}

	version := chaincfg.MainNetParams.HDPublicKeyID[:]
	if isPrivate {
		version = chaincfg.MainNetParams.HDPrivateKeyID[:]
	}

	return hdkeychain.NewExtendedKey(version, key, chainCode, []byte{0, 0, 0, 0}, 0, 0, isPrivate), nil
}
