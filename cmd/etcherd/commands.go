// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/etcher"
	"github.com/BoostyLabs/runelaunch/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var etchFlags struct {
	rune          string
	logo          string
	contentType   string
	premine       string
	divisibility  uint8
	symbol        string
	turbo         bool
	postage       int64
	feeRate       int64
	revealAddress string
	wait          bool
}

var transferFlags struct {
	recipient         string
	amount            string
	runeID            string
	commission        int64
	commissionAddress string
	feeRate           int64
}

var etchCmd = &cobra.Command{
	Use:   "etch <identity-hex>",
	Short: "Etch a rune paid from the identity address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := etchRequest(args[0])
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.restore(); err != nil {
				return err
			}

			result, err := a.etcher.Etch(ctx, req)
			if err != nil {
				return err
			}

			if err = printJSON(cmd.OutOrStdout(), map[string]any{
				"fee_payer":      result.FeePayer,
				"commit_txid":    result.CommitTxID.String(),
				"reveal_txid":    result.RevealTxID.String(),
				"commit_address": result.CommitAddress,
				"reveal_id":      result.RevealID,
				"commit_value":   result.CommitValue,
				"commit_fee":     result.CommitFee,
				"reveal_fee":     result.RevealFee,
			}); err != nil {
				return err
			}

			if !etchFlags.wait {
				return nil
			}

			return waitReveals(ctx, a)
		})
	},
}

var addressCmd = &cobra.Command{
	Use:   "address <identity-hex>",
	Short: "Print addresses of the identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid identity: %w", err)
		}

		return withApp(cmd, func(_ context.Context, a *app) error {
			set, err := a.etcher.Addresses(identity)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"account":            set.AccountString,
				"account_identifier": set.AccountIdentifier,
				"bitcoin":            set.Bitcoin,
			})
		})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <identity-hex>",
	Short: "Discover outputs of the identity address and print its balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid identity: %w", err)
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			balances, err := a.etcher.Balances(ctx, identity)
			if err != nil {
				return err
			}

			runeBalances := make(map[string]string, len(balances.Runes))
			for runeID, amount := range balances.Runes {
				runeBalances[runeID.String()] = amount.String()
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"address": balances.Address,
				"bitcoin": balances.Bitcoin,
				"runes":   runeBalances,
			})
		})
	},
}

var sendBitcoinCmd = &cobra.Command{
	Use:   "send-btc <identity-hex>",
	Short: "Send satoshi from the identity address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid identity: %w", err)
		}

		amount, ok := new(big.Int).SetString(transferFlags.amount, 10)
		if !ok || !amount.IsInt64() {
			return fmt.Errorf("invalid amount %q", transferFlags.amount)
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			txID, err := a.etcher.SendBitcoin(ctx, etcher.BitcoinTransferRequest{
				Identity:  identity,
				Recipient: transferFlags.recipient,
				Amount:    amount.Int64(),
				FeeRate:   transferFlags.feeRate,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{"txid": txID.String()})
		})
	},
}

var sendRunesCmd = &cobra.Command{
	Use:   "send-runes <identity-hex>",
	Short: "Send runes from the identity address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid identity: %w", err)
		}

		runeID, err := runes.NewRuneIDFromString(transferFlags.runeID)
		if err != nil {
			return err
		}

		amount, ok := new(big.Int).SetString(transferFlags.amount, 10)
		if !ok {
			return fmt.Errorf("invalid amount %q", transferFlags.amount)
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			txID, err := a.etcher.SendRunes(ctx, etcher.RuneTransferRequest{
				Identity:          identity,
				RuneID:            runeID,
				Recipient:         transferFlags.recipient,
				Amount:            amount,
				Commission:        transferFlags.commission,
				CommissionAddress: transferFlags.commissionAddress,
				FeeRate:           transferFlags.feeRate,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{"txid": txID.String()})
		})
	},
}

func init() {
	flags := etchCmd.Flags()
	flags.StringVar(&etchFlags.rune, "rune", "", "spaced rune name, e.g. UNCOMMON•GOODS")
	flags.StringVar(&etchFlags.logo, "logo", "", "path to the logo inscribed with the etching")
	flags.StringVar(&etchFlags.contentType, "content-type", "", "content type of the logo")
	flags.StringVar(&etchFlags.premine, "premine", "0", "premined amount in rune units")
	flags.Uint8Var(&etchFlags.divisibility, "divisibility", 0, "rune divisibility")
	flags.StringVar(&etchFlags.symbol, "symbol", "", "rune symbol, one character")
	flags.BoolVar(&etchFlags.turbo, "turbo", false, "opt into future protocol changes")
	flags.Int64Var(&etchFlags.postage, "postage", 0, "value of the premine output in satoshi")
	flags.Int64Var(&etchFlags.feeRate, "fee-rate", 0, "fee rate in satoshi per 1000 virtual bytes")
	flags.StringVar(&etchFlags.revealAddress, "reveal-address", "", "address receiving premine, identity address by default")
	flags.BoolVar(&etchFlags.wait, "wait", false, "keep running until the reveal is submitted")
	_ = etchCmd.MarkFlagRequired("rune")

	for _, cmd := range []*cobra.Command{sendBitcoinCmd, sendRunesCmd} {
		flags := cmd.Flags()
		flags.StringVar(&transferFlags.recipient, "to", "", "recipient address")
		flags.StringVar(&transferFlags.amount, "amount", "", "amount to send")
		flags.Int64Var(&transferFlags.feeRate, "fee-rate", 0, "fee rate in satoshi per 1000 virtual bytes")
		_ = cmd.MarkFlagRequired("to")
		_ = cmd.MarkFlagRequired("amount")
	}
	sendRunesCmd.Flags().StringVar(&transferFlags.runeID, "rune-id", "", "rune id as block:tx")
	sendRunesCmd.Flags().Int64Var(&transferFlags.commission, "commission", 0, "commission in satoshi")
	sendRunesCmd.Flags().StringVar(&transferFlags.commissionAddress, "commission-address", "", "commission receiving address")
	_ = sendRunesCmd.MarkFlagRequired("rune-id")
}

func etchRequest(identityHex string) (etcher.EtchRequest, error) {
	identity, err := hex.DecodeString(identityHex)
	if err != nil {
		return etcher.EtchRequest{}, fmt.Errorf("invalid identity: %w", err)
	}

	premine, ok := new(big.Int).SetString(etchFlags.premine, 10)
	if !ok {
		return etcher.EtchRequest{}, fmt.Errorf("invalid premine %q", etchFlags.premine)
	}

	req := etcher.EtchRequest{
		Identity:      identity,
		RevealAddress: etchFlags.revealAddress,
		Rune:          etchFlags.rune,
		ContentType:   etchFlags.contentType,
		Premine:       premine,
		Divisibility:  etchFlags.divisibility,
		Turbo:         etchFlags.turbo,
		FeeRate:       etchFlags.feeRate,
	}

	if etchFlags.logo != "" {
		req.Logo, err = os.ReadFile(etchFlags.logo)
		if err != nil {
			return etcher.EtchRequest{}, err
		}
	}

	if etchFlags.symbol != "" {
		symbol, size := utf8.DecodeRuneInString(etchFlags.symbol)
		if symbol == utf8.RuneError || size != len(etchFlags.symbol) {
			return etcher.EtchRequest{}, fmt.Errorf("symbol must be one character, got %q", etchFlags.symbol)
		}
		req.Symbol = &symbol
	}

	if etchFlags.postage > 0 {
		req.Postage = &etchFlags.postage
	}

	return req, nil
}

// withApp wires services, fetches signer keys and runs fn until it returns or the process is interrupted.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err = a.fetchKeys(ctx); err != nil {
		return err
	}

	return fn(ctx, a)
}

// waitReveals blocks until every pending reveal is submitted.
func waitReveals(ctx context.Context, a *app) error {
	check := time.NewTicker(time.Second)
	defer check.Stop()

	for {
		pending := len(a.scheduler.Pending())
		if pending == 0 {
			logger.Logger.Info().Msg("all reveals are submitted")
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Logger.Info().Int("pending_reveals", pending).Msg("stopped waiting, reveals are restored on the next start")
			return nil
		case <-check.C:
		}
	}
}

func printJSON(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(raw))

	return err
}
