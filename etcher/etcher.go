// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package etcher etches runes and moves funds of identities held by the configured owner.
package etcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/addresses"
	"github.com/BoostyLabs/runelaunch/bitcoin/discovery"
	"github.com/BoostyLabs/runelaunch/bitcoin/ledger"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/bitcoin/submitter"
	"github.com/BoostyLabs/runelaunch/bitcoin/txbuilder"
	"github.com/BoostyLabs/runelaunch/internal/config"
	"github.com/BoostyLabs/runelaunch/internal/logger"
	"github.com/BoostyLabs/runelaunch/internal/metrics"
)

// maxReserveAttempts limits build rounds of one request: discovery of missing funds
// and utxos taken concurrently by another request both cost a round.
const maxReserveAttempts = 4

// ErrContended defines that the outputs selected by the build were taken by another request each time.
var ErrContended = errors.New("selected utxos are spent by another request")

// Submitter signs and broadcasts built transactions.
type Submitter interface {
	Submit(ctx context.Context, submission submitter.Submission) (*submitter.Submitted, error)
}

// Discoverer fills the ledger with outputs of the address until target is reached.
type Discoverer interface {
	Run(ctx context.Context, address string, target discovery.Target) (discovery.Result, error)
}

// EtchRequest describes rune to etch on behalf of identity.
type EtchRequest struct {
	Identity []byte
	// RevealAddress receives premine, identity address when empty.
	RevealAddress string
	Rune          string
	Logo          []byte
	ContentType   string
	Premine       *big.Int
	Divisibility  byte
	Symbol        *rune
	Turbo         bool
	Postage       *int64
	// FeeRate in satoshi per 1000 virtual bytes, configured default when zero.
	FeeRate int64
}

// EtchResult describes submitted etching.
type EtchResult struct {
	FeePayer      string
	CommitTxID    chainhash.Hash
	RevealTxID    chainhash.Hash
	CommitAddress string
	RevealID      uint64
	CommitValue   int64
	CommitFee     int64
	RevealFee     int64
}

// Etcher composes discovery, build and submission for identities held by the configured owner.
type Etcher struct {
	config    *config.Config
	ledger    *ledger.Ledger
	discovery Discoverer
	builder   *txbuilder.TxBuilder
	submitter Submitter
	logger    zerolog.Logger
}

// New is a constructor for Etcher.
func New(cfg *config.Config, ledger *ledger.Ledger, discovery Discoverer, submitter Submitter) *Etcher {
	metrics.Init()

	return &Etcher{
		config:    cfg,
		ledger:    ledger,
		discovery: discovery,
		builder:   txbuilder.NewTxBuilder(cfg.Network.Params()),
		submitter: submitter,
		logger:    logger.Etcher,
	}
}

// Addresses returns address set of the identity.
func (e *Etcher) Addresses(identity []byte) (addresses.Set, error) {
	set, _, err := e.owner(identity)
	return set, err
}

// Etch builds and submits commit of the rune etching paid from the identity address.
// The reveal is scheduled once the commit is accepted.
func (e *Etcher) Etch(ctx context.Context, req EtchRequest) (result *EtchResult, err error) {
	defer func() {
		if err != nil {
			metrics.Etchings.WithLabelValues("failed").Inc()
			return
		}
		metrics.Etchings.WithLabelValues("submitted").Inc()
	}()

	spacedRune, err := runes.ParseSpacedRune(req.Rune)
	if err != nil {
		return nil, err
	}

	set, owner, err := e.owner(req.Identity)
	if err != nil {
		return nil, err
	}

	keys, err := e.config.Keys()
	if err != nil {
		return nil, err
	}

	revealAddress := req.RevealAddress
	if revealAddress == "" {
		revealAddress = set.Bitcoin
	}

	var etching *txbuilder.Etching
	_, err = e.reserve(ctx, set.Bitcoin, nil, func() (plan, error) {
		var err error
		etching, err = e.builder.BuildEtching(txbuilder.EtchingParams{
			RevealAddress:       revealAddress,
			Logo:                req.Logo,
			ContentType:         req.ContentType,
			SpacedRune:          spacedRune,
			Premine:             req.Premine,
			Divisibility:        req.Divisibility,
			Symbol:              req.Symbol,
			Turbo:               req.Turbo,
			Postage:             req.Postage,
			FeePayerAddress:     set.Bitcoin,
			FeePayerUTXOs:       e.ledger.Plain(set.Bitcoin),
			FeeRate:             e.feeRate(req.FeeRate),
			SchnorrPublicKey:    keys.Schnorr,
			CommitConfirmations: e.config.CommitConfirmations,
		})
		if err != nil {
			return plan{}, err
		}

		return plan{plain: etching.UsedUTXOs}, nil
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("rune", spacedRune.String()).Str("fee_payer", set.Bitcoin).Msg("etching is not built")
		return nil, err
	}

	submitted, err := e.submitter.Submit(ctx, submitter.Etching{FeePayer: owner, Etching: etching})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("rune", spacedRune.String()).
		Str("fee_payer", set.Bitcoin).
		Stringer("commit", submitted.TxID).
		Stringer("reveal", etching.Reveal.TxHash()).
		Uint64("reveal_id", submitted.RevealID).
		Msg("etching submitted")

	return &EtchResult{
		FeePayer:      set.Bitcoin,
		CommitTxID:    submitted.TxID,
		RevealTxID:    etching.Reveal.TxHash(),
		CommitAddress: etching.CommitAddress,
		RevealID:      submitted.RevealID,
		CommitValue:   etching.CommitValue,
		CommitFee:     etching.CommitFee,
		RevealFee:     etching.RevealFee,
	}, nil
}

// owner returns address set and spending description of the identity.
func (e *Etcher) owner(identity []byte) (addresses.Set, submitter.Owner, error) {
	keys, err := e.config.Keys()
	if err != nil {
		return addresses.Set{}, submitter.Owner{}, err
	}

	params := e.config.Network.Params()
	set, err := addresses.Derive(e.config.Identity, identity, keys.ECDSA, keys.ChainCode, params)
	if err != nil {
		return addresses.Set{}, submitter.Owner{}, err
	}

	publicKey, err := addresses.DerivePublicKey(keys.ECDSA, keys.ChainCode, set.DerivationPath)
	if err != nil {
		return addresses.Set{}, submitter.Owner{}, err
	}

	return set, submitter.Owner{Address: set.Bitcoin, PublicKey: publicKey, Path: set.DerivationPath}, nil
}

func (e *Etcher) feeRate(requested int64) int64 {
	if requested > 0 {
		return requested
	}
	if e.config.DefaultFeeRate > 0 {
		return e.config.DefaultFeeRate
	}

	return config.DefaultFeeRate
}

// plan lists outputs a built transaction spends.
type plan struct {
	plain []bitcoin.UTXO
	runic []bitcoin.RuneUTXO
}

// reserve builds against the ledger snapshot and takes the outputs the build selected.
// Missing funds are discovered and the build is repeated, as well as when another request
// took some of the selected outputs in between.
func (e *Etcher) reserve(ctx context.Context, address string, runeID *runes.RuneID, build func() (plan, error)) (plan, error) {
	discovered := make(map[string]*big.Int)

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		selected, err := build()
		if err != nil {
			var insufficient *txbuilder.InsufficientError
			if !errors.As(err, &insufficient) || insufficient.Need == nil {
				return plan{}, err
			}

			kind := string(insufficient.Type)
			if last, ok := discovered[kind]; ok && last.Cmp(insufficient.Need) >= 0 {
				return plan{}, err
			}
			discovered[kind] = insufficient.Need

			if err = e.discover(ctx, address, runeID, insufficient); err != nil {
				return plan{}, err
			}

			continue
		}

		taken, ok, err := e.take(address, selected)
		if err != nil {
			return plan{}, err
		}
		if ok {
			return taken, nil
		}

		e.logger.Debug().Str("address", address).Int("attempt", attempt).Msg("selected utxos are taken concurrently, rebuilding")
	}

	return plan{}, fmt.Errorf("%w: %s", ErrContended, address)
}

func (e *Etcher) discover(ctx context.Context, address string, runeID *runes.RuneID, insufficient *txbuilder.InsufficientError) error {
	target := discovery.PlainTarget(insufficient.Need.Int64())
	if insufficient.Type == txbuilder.InsufficientErrorTypeRune && runeID != nil {
		target = discovery.RuneTarget(*runeID, insufficient.Need)
	}

	result, err := e.discovery.Run(ctx, address, target)
	if err != nil {
		return err
	}

	e.logger.Debug().
		Str("address", address).
		Str("type", string(insufficient.Type)).
		Stringer("need", insufficient.Need).
		Stringer("balance", result.Balance).
		Bool("reached", result.Reached).
		Msg("funds discovered")

	return nil
}

// take removes selected outputs from the ledger. When any of them is gone already,
// everything taken is restored and ok is false.
func (e *Etcher) take(address string, selected plan) (taken plan, ok bool, err error) {
	runeOutPoints := uniqueOutPoints(selected.runic)
	taken.runic, err = e.ledger.TakeTokenized(address, runeOutPoints)
	if err != nil {
		return plan{}, false, err
	}

	plainOutPoints := make([]wire.OutPoint, 0, len(selected.plain))
	for _, utxo := range selected.plain {
		plainOutPoints = append(plainOutPoints, utxo.OutPoint)
	}
	taken.plain, err = e.ledger.TakePlain(address, plainOutPoints)
	if err != nil {
		return plan{}, false, err
	}

	if len(taken.plain) == len(plainOutPoints) && len(uniqueOutPoints(taken.runic)) == len(runeOutPoints) {
		return taken, true, nil
	}

	if err = e.restore(address, taken); err != nil {
		return plan{}, false, err
	}

	return plan{}, false, nil
}

func (e *Etcher) restore(address string, taken plan) error {
	byRune := make(map[runes.RuneID][]bitcoin.RuneUTXO)
	for _, utxo := range taken.runic {
		byRune[utxo.RuneID] = append(byRune[utxo.RuneID], utxo)
	}

	for runeID, group := range byRune {
		if err := e.ledger.RecordTokenized(address, runeID, group); err != nil {
			return err
		}
	}

	return e.ledger.RecordPlain(address, taken.plain)
}

func uniqueOutPoints(utxos []bitcoin.RuneUTXO) []wire.OutPoint {
	seen := make(map[wire.OutPoint]struct{}, len(utxos))
	outPoints := make([]wire.OutPoint, 0, len(utxos))
	for _, utxo := range utxos {
		if _, ok := seen[utxo.OutPoint]; ok {
			continue
		}

		seen[utxo.OutPoint] = struct{}{}
		outPoints = append(outPoints, utxo.OutPoint)
	}

	return outPoints
}
