// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	"github.com/BoostyLabs/runelaunch/bitcoin"
	"github.com/BoostyLabs/runelaunch/bitcoin/chain"
	"github.com/BoostyLabs/runelaunch/bitcoin/classifier"
	"github.com/BoostyLabs/runelaunch/bitcoin/ledger"
	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/internal/logger"
	"github.com/BoostyLabs/runelaunch/internal/metrics"
)

// ErrChainFetch defines that the chain source could not return a page.
var ErrChainFetch = errors.New("could not fetch utxos")

// Target is the balance discovery stops at.
type Target struct {
	runeID *runes.RuneID
	sats   int64
	amount *big.Int
}

// PlainTarget returns target of satoshi balance.
func PlainTarget(sats int64) Target {
	return Target{sats: sats}
}

// RuneTarget returns target of rune balance.
func RuneTarget(runeID runes.RuneID, amount *big.Int) Target {
	return Target{runeID: &runeID, amount: amount}
}

func (t Target) balance(l *ledger.Ledger, address string) *big.Int {
	if t.runeID == nil {
		return big.NewInt(l.BalancePlain(address))
	}

	return l.BalanceTokenized(address, *t.runeID)
}

func (t Target) value() *big.Int {
	if t.runeID == nil {
		return big.NewInt(t.sats)
	}
	if t.amount == nil {
		return new(big.Int)
	}

	return t.amount
}

// Result describes one discovery run.
type Result struct {
	Pages     int
	Plain     int
	Tokenized int
	Balance   *big.Int
	Reached   bool
}

// Loop pages chain outputs of an address, classifies them and records them into the ledger.
type Loop struct {
	source     chain.Source
	classifier classifier.Classifier
	ledger     *ledger.Ledger
	network    bitcoin.Network
	maxPages   int
	logger     zerolog.Logger
}

// New is a constructor for Loop. Non-positive maxPages means no limit besides source exhaustion.
func New(source chain.Source, classifier classifier.Classifier, ledger *ledger.Ledger, network bitcoin.Network, maxPages int) *Loop {
	metrics.Init()

	return &Loop{
		source:     source,
		classifier: classifier,
		ledger:     ledger,
		network:    network,
		maxPages:   maxPages,
		logger:     logger.Discovery,
	}
}

// Run discovers outputs of the address until target balance is reached or the source is exhausted.
// A failed page fetch aborts the run, pages committed before stay in the ledger.
// When the whole listing is read, spent marks of outputs it no longer reports are dropped.
func (l *Loop) Run(ctx context.Context, address string, target Target) (Result, error) {
	result := Result{Balance: target.balance(l.ledger, address)}
	seen := make(map[string]struct{})
	marked := l.ledger.Spent(address)
	listed := make(map[wire.OutPoint]struct{})
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := l.source.GetUTXOs(ctx, address, l.network, cursor)
		if err != nil {
			return result, fmt.Errorf("%w of %s: %w", ErrChainFetch, address, err)
		}

		for _, utxo := range page.UTXOs {
			listed[utxo.OutPoint] = struct{}{}
		}

		batch := l.classify(ctx, address, page.UTXOs)
		recorded, err := l.ledger.RecordBatch(address, batch)
		if err != nil {
			return result, err
		}

		result.Pages++
		result.Plain += len(recorded.Plain)
		result.Tokenized += len(recorded.Tokenized)
		metrics.DiscoveryPages.Inc()
		metrics.ClassifiedOutputs.WithLabelValues("plain").Add(float64(len(recorded.Plain)))
		metrics.ClassifiedOutputs.WithLabelValues("tokenized").Add(float64(len(recorded.Tokenized)))

		result.Balance = target.balance(l.ledger, address)
		result.Reached = result.Balance.Cmp(target.value()) >= 0

		l.logger.Debug().
			Str("address", address).
			Int("page", result.Pages).
			Int("plain", len(recorded.Plain)).
			Int("tokenized", len(recorded.Tokenized)).
			Stringer("balance", result.Balance).
			Msg("page recorded")

		if page.NextCursor == "" {
			l.forgetSpent(address, marked, listed)
			return result, nil
		}
		if result.Reached {
			return result, nil
		}

		seen[cursor] = struct{}{}
		if _, ok := seen[page.NextCursor]; ok {
			l.logger.Warn().Str("address", address).Str("cursor", page.NextCursor).Msg("repeated cursor, source treated as exhausted")
			return result, nil
		}
		if l.maxPages > 0 && result.Pages >= l.maxPages {
			l.logger.Warn().Str("address", address).Int("pages", result.Pages).Msg("page limit reached")
			return result, nil
		}

		cursor = page.NextCursor
	}
}

// forgetSpent drops marks taken before the listing started for outputs the listing does not report.
func (l *Loop) forgetSpent(address string, marked []wire.OutPoint, listed map[wire.OutPoint]struct{}) {
	var gone []wire.OutPoint
	for _, outPoint := range marked {
		if _, ok := listed[outPoint]; !ok {
			gone = append(gone, outPoint)
		}
	}

	if len(gone) > 0 {
		l.ledger.ForgetSpent(address, gone)
	}
}

// classify splits page outputs into plain and tokenized. Outputs already tokenized or spent are skipped,
// classifier failure degrades to plain.
func (l *Loop) classify(ctx context.Context, address string, utxos []bitcoin.UTXO) ledger.Batch {
	var batch ledger.Batch
	for _, utxo := range utxos {
		switch l.ledger.State(address, utxo.OutPoint) {
		case ledger.StateTokenized, ledger.StateSpent:
			continue
		}

		balances, err := l.classifier.Classify(ctx, utxo.OutPoint.Hash, utxo.OutPoint.Index)
		if err != nil {
			metrics.ClassifierFailures.Inc()
			l.logger.Warn().Err(err).Stringer("outpoint", utxo.OutPoint).Msg("classifier failed, output recorded as plain")
		}

		if err != nil || len(balances) == 0 {
			batch.Plain = append(batch.Plain, utxo)
			continue
		}

		for _, balance := range balances {
			batch.Tokenized = append(batch.Tokenized, bitcoin.RuneUTXO{
				UTXO:   utxo,
				RuneID: balance.RuneID,
				Amount: balance.Amount,
			})
		}
	}

	return batch
}
