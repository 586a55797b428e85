// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhtp-network/zhtp/consensus"
	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// walletAccount derives this wallet's ledger account ID and signing
// keypair from its encrypted seed.
func walletAccount(password string) (*ringtail.KeyPair, zhtpid.ID, error) {
	seed, err := readEncryptedSeed(walletKeyPath(), password)
	if err != nil {
		return nil, zhtpid.Empty, err
	}
	kp, err := ringtail.KeyPairFromSeed(seed)
	if err != nil {
		return nil, zhtpid.Empty, err
	}
	account, err := zhtpid.FromBytes(kp.NodeID.Bytes())
	if err != nil {
		return nil, zhtpid.Empty, err
	}
	return kp, account, nil
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage a wallet keystore and its ledger balance",
	}
	cmd.AddCommand(walletCreateCmd(), walletSetPasswordCmd(), walletBalanceCmd(), walletSendCmd())
	return cmd
}

func walletCreateCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate a fresh wallet seed and encrypt it under password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("zhtpd: --password is required")
			}
			seed := make([]byte, 32)
			if err := readRandom(seed); err != nil {
				return err
			}
			if err := writeEncryptedSeed(walletKeyPath(), seed, password); err != nil {
				return err
			}
			kp, err := ringtail.KeyPairFromSeed(seed)
			if err != nil {
				return err
			}
			account, err := zhtpid.FromBytes(kp.NodeID.Bytes())
			if err != nil {
				return err
			}
			fmt.Println("Account:", account)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password to encrypt the wallet seed with")
	return cmd
}

func walletSetPasswordCmd() *cobra.Command {
	var oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Re-encrypt the wallet seed under a new password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if oldPassword == "" || newPassword == "" {
				return fmt.Errorf("zhtpd: --old and --new are required")
			}
			return rewriteEncryptedSeed(walletKeyPath(), oldPassword, newPassword)
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	return cmd
}

func walletBalanceCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print this wallet's ledger balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, account, err := walletAccount(password)
			if err != nil {
				return err
			}
			ledger, err := consensus.LoadLedger(ledgerPath())
			if err != nil {
				return err
			}
			fmt.Println(ledger.Balance(account))
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "wallet password")
	return cmd
}

// walletSendCmd applies a transfer directly to the node's local ledger
// file rather than submitting it over the network: this repository has
// no concrete transport.Transport implementation a standalone CLI could
// dial into, so settlement here is scoped to the single-node ledger a
// co-located zhtpd node also reads and writes.
func walletSendCmd() *cobra.Command {
	var (
		password string
		toHex    string
		amount   uint64
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Transfer amount to a recipient's ledger account",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, from, err := walletAccount(password)
			if err != nil {
				return err
			}
			toBytes, err := hex.DecodeString(toHex)
			if err != nil {
				return fmt.Errorf("zhtpd: invalid recipient: %w", err)
			}
			to, err := zhtpid.FromBytes(toBytes)
			if err != nil {
				return err
			}
			now := time.Now()
			tx := consensus.NewTransaction(from, to, uint64(now.UnixNano()), amount, nil, now, nil)
			sig, err := kp.Sign(tx.ID.Bytes())
			if err != nil {
				return err
			}
			tx.Signature = sig

			ledger, err := consensus.LoadLedger(ledgerPath())
			if err != nil {
				return err
			}
			if err := ledger.Apply(tx); err != nil {
				return err
			}
			if err := ledger.Save(); err != nil {
				return err
			}
			fmt.Println("sent", amount, "to", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "wallet password")
	cmd.Flags().StringVar(&toHex, "to", "", "recipient account, hex-encoded")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to send")
	return cmd
}
