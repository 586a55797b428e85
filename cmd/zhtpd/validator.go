// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// validatorIntent is a declaration of intent to register as a validator,
// written by "validator register" and consumed by "node start" once the
// node process has a live consensus.Registry to apply it against.
type validatorIntent struct {
	Stake           uint64  `json:"stake"`
	StorageCapacity uint64  `json:"storage_capacity"`
	Commission      float64 `json:"commission"`
}

func validatorIntentPath() string { return homeDir + "/validator_intent.json" }

func validatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validator",
		Short: "Manage this node's validator registration",
	}
	cmd.AddCommand(validatorRegisterCmd())
	return cmd
}

func validatorRegisterCmd() *cobra.Command {
	var (
		stake           uint64
		storageCapacity uint64
		commission      float64
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Declare this node's intent to register as a consensus validator",
		Long: `Writes a validator registration intent file that "node start" applies
against the consensus coordinator's validator registry on startup, using
this node's identity-derived consensus device key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stake == 0 {
				return fmt.Errorf("zhtpd: --stake must be greater than zero")
			}
			if commission < 0 || commission > 1 {
				return fmt.Errorf("zhtpd: --commission must be between 0 and 1")
			}
			data, err := json.MarshalIndent(validatorIntent{
				Stake:           stake,
				StorageCapacity: storageCapacity,
				Commission:      commission,
			}, "", "  ")
			if err != nil {
				return err
			}
			if err := os.MkdirAll(homeDir, 0o700); err != nil {
				return err
			}
			return os.WriteFile(validatorIntentPath(), data, 0o644)
		},
	}
	cmd.Flags().Uint64Var(&stake, "stake", 0, "stake to bond as a validator")
	cmd.Flags().Uint64Var(&storageCapacity, "storage-capacity", 0, "storage capacity pledged to the DHT layer")
	cmd.Flags().Float64Var(&commission, "commission", 0, "commission rate kept from block rewards, 0-1")
	return cmd
}
