// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command zhtpd is the node operator's CLI: identity and wallet
// keystore management, validator registration, and starting a node that
// wires the peer registry, mesh transport multiplexer, storage/DHT
// capability, Web4 domain registry, and consensus coordinator together.
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	homeDir string
	logger  *zap.Logger
)

func readRandom(b []byte) error {
	_, err := rand.Read(b)
	return err
}

func identityKeyPath() string { return filepath.Join(homeDir, "identity.json") }
func walletKeyPath() string   { return filepath.Join(homeDir, "wallet.json") }
func ledgerPath() string      { return filepath.Join(homeDir, "ledger.json") }
func storageDataDir() string  { return filepath.Join(homeDir, "storage") }

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zhtpd",
		Short: "ZHTP node operator CLI",
		Long: `zhtpd manages a ZHTP participant's identity and wallet keystores and runs
the node process: peer discovery, mesh transport, storage/DHT, and
consensus.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if homeDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				homeDir = filepath.Join(home, ".zhtp")
			}
			z, err := zap.NewProduction()
			if err != nil {
				return err
			}
			logger = z
			// Tag this invocation so log lines from the same process can
			// be correlated across identity/wallet/node subcommands.
			logger = logger.With(zap.String("run_id", uuid.NewString()))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&homeDir, "home", "", "node data directory (default $HOME/.zhtp)")
	cmd.AddCommand(identityCmd(), walletCmd(), validatorCmd(), nodeCmd())
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
