// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/runelaunch/internal/config"
	"github.com/BoostyLabs/runelaunch/internal/logger"
)

var (
	configPath string
	logFile    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "etcherd",
	Short: "Rune etching daemon",
	Long: `Etches runes with commit and reveal transactions paid from identity addresses,
discovers funds of the addresses and submits reveals once commits are confirmed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		return logger.Init(cfg.LogLevel, cfg.LogJSON, logFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./etcher.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write json logs to the file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(etchCmd)
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(sendBitcoinCmd)
	rootCmd.AddCommand(sendRunesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
