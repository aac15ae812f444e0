// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package submitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/chain"
	"github.com/BoostyLabs/runelaunch/bitcoin/ledger"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/bitcoin/signer"
	"github.com/BoostyLabs/runelaunch/bitcoin/txbuilder"
	"github.com/BoostyLabs/runelaunch/internal/logger"
	"github.com/BoostyLabs/runelaunch/internal/metrics"
)

var (
	// ErrBroadcastFailed defines that the network did not accept the transaction, spent utxos are restored.
	ErrBroadcastFailed = errors.New("broadcast failed")
	// ErrUnknownSubmission defines submission kind not handled by Submitter.
	ErrUnknownSubmission = errors.New("unknown submission")
)

// Owner describes P2PKH address whose outputs are spent.
type Owner struct {
	Address   string
	PublicKey *btcec.PublicKey
	Path      [][]byte
}

// Submission is a transaction ready to be signed and broadcast.
// The set of kinds is closed: Etching, Bitcoin and Rune.
type Submission interface {
	kind() string
}

// Etching submits commit and schedules reveal once the commit is accepted.
type Etching struct {
	FeePayer Owner
	Etching  *txbuilder.Etching
}

// Bitcoin submits plain bitcoin transfer.
type Bitcoin struct {
	Sender   Owner
	Transfer *txbuilder.Transfer
}

// Rune submits rune transfer.
type Rune struct {
	Sender   Owner
	RuneID   runes.RuneID
	Transfer *txbuilder.Transfer
}

func (Etching) kind() string { return "commit" }
func (Bitcoin) kind() string { return "bitcoin" }
func (Rune) kind() string    { return "rune" }

// Submitted describes accepted submission.
type Submitted struct {
	TxID chainhash.Hash
	// RevealID is id of the scheduled reveal, set for etching only.
	RevealID uint64
}

// Tracker registers reveal transactions of accepted commits.
type Tracker interface {
	Track(reveal *wire.MsgTx, commitAddress, feePayer string) (uint64, error)
}

// Submitter signs and broadcasts submissions. Utxos spent by a submission must be taken
// from the ledger by the caller, they are returned to the ledger when submission fails.
type Submitter struct {
	networkParams *chaincfg.Params
	network       bitcoin.Network
	signer        *signer.Signer
	source        chain.Source
	ledger        *ledger.Ledger
	tracker       Tracker
	logger        zerolog.Logger
}

// New is a constructor for Submitter.
func New(network bitcoin.Network, signer *signer.Signer, source chain.Source, ledger *ledger.Ledger, tracker Tracker) *Submitter {
	metrics.Init()

	return &Submitter{
		networkParams: network.Params(),
		network:       network,
		signer:        signer,
		source:        source,
		ledger:        ledger,
		tracker:       tracker,
		logger:        logger.Submitter,
	}
}

// Submit dispatches submission by its kind.
func (s *Submitter) Submit(ctx context.Context, submission Submission) (*Submitted, error) {
	switch sub := submission.(type) {
	case Etching:
		return s.submitEtching(ctx, sub)
	case Bitcoin:
		return s.submitTransfer(ctx, sub.kind(), sub.Sender, sub.Transfer, nil)
	case Rune:
		return s.submitTransfer(ctx, sub.kind(), sub.Sender, sub.Transfer, &sub.RuneID)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownSubmission, submission)
	}
}

func (s *Submitter) submitEtching(ctx context.Context, sub Etching) (*Submitted, error) {
	etching := sub.Etching
	rollback := func() { s.rollback(sub.FeePayer.Address, etching.UsedUTXOs, nil) }

	inputs, err := s.p2pkhInputs(sub.FeePayer, 0, len(etching.Commit.TxIn))
	if err != nil {
		rollback()
		return nil, err
	}

	if err = s.signer.SignP2PKH(ctx, etching.Commit, inputs...); err != nil {
		rollback()
		return nil, err
	}
	etching.BindCommit()

	reveal, err := s.signer.SignTapscript(ctx, etching.Reveal, signer.TapscriptInput{
		Index:      0,
		PrevOutput: etching.CommitOutput,
		ScriptPath: etching.ScriptPath,
	})
	if err != nil {
		rollback()
		return nil, err
	}

	if err = s.broadcast(ctx, sub.kind(), etching.Commit); err != nil {
		rollback()
		return nil, err
	}

	id, err := s.tracker.Track(reveal, etching.CommitAddress, sub.FeePayer.Address)
	if err != nil {
		// commit is accepted, utxos are spent on chain.
		return nil, fmt.Errorf("commit %s accepted, but reveal is not scheduled: %w", etching.Commit.TxHash(), err)
	}

	return &Submitted{TxID: etching.Commit.TxHash(), RevealID: id}, nil
}

func (s *Submitter) submitTransfer(ctx context.Context, kind string, sender Owner, transfer *txbuilder.Transfer, runeID *runes.RuneID) (*Submitted, error) {
	rollback := func() { s.rollback(sender.Address, transfer.UsedUTXOs, transfer.UsedRuneUTXOs) }

	inputs, err := s.p2pkhInputs(sender, 0, len(transfer.Tx.TxIn))
	if err != nil {
		rollback()
		return nil, err
	}

	if err = s.signer.SignP2PKH(ctx, transfer.Tx, inputs...); err != nil {
		rollback()
		return nil, err
	}

	if err = s.broadcast(ctx, kind, transfer.Tx); err != nil {
		rollback()
		return nil, err
	}

	event := s.logger.Info().Str("sender", sender.Address).Stringer("tx", transfer.Tx.TxHash())
	if runeID != nil {
		event = event.Stringer("rune", runeID)
	}
	event.Msg("transfer submitted")

	return &Submitted{TxID: transfer.Tx.TxHash()}, nil
}

// p2pkhInputs describes inputs [from, to) spending outputs of owner.
func (s *Submitter) p2pkhInputs(owner Owner, from, to int) ([]signer.P2PKHInput, error) {
	address, err := btcutil.DecodeAddress(owner.Address, s.networkParams)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}

	inputs := make([]signer.P2PKHInput, 0, to-from)
	for idx := from; idx < to; idx++ {
		inputs = append(inputs, signer.P2PKHInput{
			Index:     idx,
			PkScript:  pkScript,
			PublicKey: owner.PublicKey,
			Path:      owner.Path,
		})
	}

	return inputs, nil
}

func (s *Submitter) broadcast(ctx context.Context, kind string, tx *wire.MsgTx) error {
	var raw bytes.Buffer
	if err := tx.Serialize(&raw); err != nil {
		return err
	}

	if err := s.source.SendTransaction(ctx, raw.Bytes(), s.network); err != nil {
		metrics.Broadcasts.WithLabelValues(kind, "rejected").Inc()
		s.logger.Warn().Err(err).Str("kind", kind).Stringer("tx", tx.TxHash()).Msg("broadcast failed")

		return fmt.Errorf("%w: %s %s: %w", ErrBroadcastFailed, kind, tx.TxHash(), err)
	}

	metrics.Broadcasts.WithLabelValues(kind, "accepted").Inc()

	return nil
}

// rollback returns exactly the spent utxos to the ledger.
func (s *Submitter) rollback(address string, utxos []bitcoin.UTXO, runeUTXOs []bitcoin.RuneUTXO) {
	metrics.LedgerRollbacks.Inc()

	byRune := make(map[runes.RuneID][]bitcoin.RuneUTXO)
	for _, utxo := range runeUTXOs {
		byRune[utxo.RuneID] = append(byRune[utxo.RuneID], utxo)
	}

	for runeID, group := range byRune {
		if err := s.ledger.RecordTokenized(address, runeID, group); err != nil {
			s.logger.Error().Err(err).Str("address", address).Stringer("rune", runeID).Msg("could not restore rune utxos")
		}
	}

	if err := s.ledger.RecordPlain(address, utxos); err != nil {
		s.logger.Error().Err(err).Str("address", address).Msg("could not restore utxos")
	}

	s.logger.Info().
		Str("address", address).
		Int("plain", len(utxos)).
		Int("tokenized", len(runeUTXOs)).
		Msg("utxos restored")
}
