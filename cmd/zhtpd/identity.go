// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zhtp-network/zhtp/identity"
)

func identityRecordPath() string { return filepath.Join(homeDir, "identity_record.cbor") }

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage this node's root-of-trust identity",
	}
	cmd.AddCommand(identityCreateCmd(), identityRecoverCmd(), identitySetPasswordCmd(), identityShowCmd())
	return cmd
}

func identityCreateCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate a fresh identity seed and encrypt it under password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("zhtpd: --password is required")
			}
			seed := make([]byte, identity.SeedLen)
			if err := readRandom(seed); err != nil {
				return err
			}
			id, err := identity.New(seed)
			if err != nil {
				return err
			}
			if err := persistIdentity(id, seed, password); err != nil {
				return err
			}
			fmt.Println("DID:", id.DID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password to encrypt the identity seed with")
	return cmd
}

func identityRecoverCmd() *cobra.Command {
	var (
		password string
		seedHex  string
	)
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Recreate an identity from a previously exported seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" || seedHex == "" {
				return fmt.Errorf("zhtpd: --password and --seed are required")
			}
			seed, err := hex.DecodeString(seedHex)
			if err != nil {
				return fmt.Errorf("zhtpd: invalid seed hex: %w", err)
			}
			id, err := identity.New(seed)
			if err != nil {
				return err
			}
			if err := persistIdentity(id, seed, password); err != nil {
				return err
			}
			fmt.Println("DID:", id.DID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password to encrypt the recovered seed with")
	cmd.Flags().StringVar(&seedHex, "seed", "", "hex-encoded root seed to recover from")
	return cmd
}

func identitySetPasswordCmd() *cobra.Command {
	var oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Re-encrypt the identity seed under a new password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if oldPassword == "" || newPassword == "" {
				return fmt.Errorf("zhtpd: --old and --new are required")
			}
			return rewriteEncryptedSeed(identityKeyPath(), oldPassword, newPassword)
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	return cmd
}

func identityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print this node's public identity record",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(identityRecordPath())
			if err != nil {
				return err
			}
			id, err := identity.Unmarshal(data)
			if err != nil {
				return err
			}
			fmt.Println("DID:            ", id.DID)
			fmt.Println("Credential hash:", id.CredentialHash)
			fmt.Println("DAO member ID:  ", id.DAOMemberID)
			return nil
		},
	}
}

// persistIdentity writes the identity's encrypted seed and its secret-free
// public record to the node's home directory.
func persistIdentity(id *identity.Identity, seed []byte, password string) error {
	if err := writeEncryptedSeed(identityKeyPath(), seed, password); err != nil {
		return err
	}
	record, err := id.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(homeDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(identityRecordPath(), record, 0o644)
}
