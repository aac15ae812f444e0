// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/BoostyLabs/runelaunch/bitcoin/chain"
	"github.com/BoostyLabs/runelaunch/bitcoin/classifier"
	"github.com/BoostyLabs/runelaunch/bitcoin/discovery"
	"github.com/BoostyLabs/runelaunch/bitcoin/ledger"
	"github.com/BoostyLabs/runelaunch/bitcoin/scheduler"
	"github.com/BoostyLabs/runelaunch/bitcoin/signer"
	"github.com/BoostyLabs/runelaunch/bitcoin/submitter"
	"github.com/BoostyLabs/runelaunch/bitcoin/timer"
	"github.com/BoostyLabs/runelaunch/etcher"
	"github.com/BoostyLabs/runelaunch/internal/config"
	"github.com/BoostyLabs/runelaunch/internal/logger"
	"github.com/BoostyLabs/runelaunch/internal/storage"
)

const (
	ledgerPrefix    = "ledger/"
	schedulerPrefix = "scheduler/"
)

// app holds wired services of the daemon.
type app struct {
	config    *config.Config
	db        storage.DB
	source    *chain.ElectrumSource
	ledger    *ledger.Ledger
	timers    *timer.TickerFacility
	scheduler *scheduler.Scheduler
	etcher    *etcher.Etcher
	keys      *signer.LocalKeys
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{config: cfg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.keys, err = signer.NewLocalKeys(cfg.SignerSeed)
	if err != nil {
		return nil, err
	}

	if cfg.StoragePath == "" {
		logger.Storage.Warn().Msg("storage path is not set, state is kept in memory")
		a.db = storage.NewMemory()
	} else {
		a.db, err = storage.NewBadger(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
	}

	a.ledger, err = ledger.Load(storage.NewPrefixDB(a.db, ledgerPrefix))
	if err != nil {
		return nil, err
	}

	client, err := chain.DialElectrum(ctx, cfg.ElectrumServer, cfg.ElectrumSSL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to electrum server %s: %w", cfg.ElectrumServer, err)
	}
	a.source = chain.NewElectrumSource(client, 0)

	a.timers = timer.NewTickerFacility(nil)
	a.scheduler = scheduler.New(scheduler.Config{
		Network:             cfg.Network,
		RetryInterval:       cfg.RetryInterval,
		CommitConfirmations: cfg.CommitConfirmations,
	}, a.source, a.timers, storage.NewPrefixDB(a.db, schedulerPrefix))

	loop := discovery.New(a.source, classifier.NewOrdClient(cfg.OrdURL, nil), a.ledger, cfg.Network, cfg.MaxPages)
	sub := submitter.New(cfg.Network, signer.NewSigner(cfg.Network.Params(), a.keys), a.source, a.ledger, a.scheduler)
	a.etcher = etcher.New(cfg, a.ledger, loop, sub)

	return a, nil
}

// fetchKeys stores public keys of the signer into config unless they are configured explicitly.
func (a *app) fetchKeys(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := config.Keys{
		Schnorr:   a.keys.SchnorrPublicKey(),
		ECDSA:     a.keys.ECDSAPublicKey(),
		ChainCode: a.keys.ChainCode(),
	}

	err := a.config.SetKeys(keys)
	if errors.Is(err, config.ErrKeysAlreadySet) {
		configured, _ := a.config.Keys()
		if !configured.ECDSA.IsEqual(keys.ECDSA) || !configured.Schnorr.IsEqual(keys.Schnorr) {
			logger.Logger.Warn().Str("key", a.config.KeyName).Msg("configured public keys differ from the signer keys")
		}

		return nil
	}
	if err != nil {
		return err
	}

	logger.Logger.Info().Str("key", a.config.KeyName).Msg("signer keys are set")

	return nil
}

// restore arms timers of the reveals pending before restart.
func (a *app) restore() error {
	restored, err := a.scheduler.Restore()
	if err != nil {
		return err
	}

	logger.Scheduler.Info().Int("reveals", restored).Msg("pending reveals restored")

	return nil
}

func (a *app) close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.timers != nil {
		a.timers.Stop()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Storage.Error().Err(err).Msg("could not close storage")
		}
	}
}
