// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhtp-network/zhtp/config"
	"github.com/zhtp-network/zhtp/consensus"
	"github.com/zhtp-network/zhtp/engine/bft"
	"github.com/zhtp-network/zhtp/identity"
	"github.com/zhtp-network/zhtp/mesh"
	"github.com/zhtp-network/zhtp/metrics"
	"github.com/zhtp-network/zhtp/peer"
	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/storage"
	"github.com/zhtp-network/zhtp/validators"
	"github.com/zhtp-network/zhtp/web4"
	"github.com/zhtp-network/zhtp/zhtpid"
)

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run the node process",
	}
	cmd.AddCommand(nodeStartCmd())
	return cmd
}

func nodeStartCmd() *cobra.Command {
	var (
		password string
		network  string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the node process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("zhtpd: --password is required to unlock the node identity")
			}
			params, err := parametersFor(network)
			if err != nil {
				return err
			}
			return runNode(cmd.Context(), password, params)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password to unlock this node's identity")
	cmd.Flags().StringVar(&network, "network", "mainnet", "mainnet, testnet, or local")
	return cmd
}

func parametersFor(network string) (config.Parameters, error) {
	switch network {
	case "mainnet":
		return config.Mainnet(), nil
	case "testnet":
		return config.Testnet(), nil
	case "local":
		return config.Local(), nil
	default:
		return config.Parameters{}, fmt.Errorf("zhtpd: unknown network %q", network)
	}
}

func runNode(ctx context.Context, password string, params config.Parameters) error {
	seed, err := readEncryptedSeed(identityKeyPath(), password)
	if err != nil {
		return err
	}
	id, err := identity.New(seed)
	if err != nil {
		return err
	}
	consensusKey, err := id.RegisterDevice("consensus")
	if err != nil {
		return err
	}
	self := consensusKey.NodeID

	metricsRegistry := metrics.NewMetrics(prometheus.NewRegistry())
	telemetry, err := consensus.NewTelemetry(metricsRegistry)
	if err != nil {
		return err
	}

	peerRegistry, err := peer.NewRegistry(peer.Config{
		TTL:          30 * time.Minute,
		MaxPeers:     10_000,
		DHTCacheSize: 512,
	})
	if err != nil {
		return err
	}

	store, err := storage.Open(storageDataDir())
	if err != nil {
		return err
	}
	defer store.Close()
	domains := web4.NewRegistry(store)

	meshHandler := mesh.NewHandler(self, peerRegistry, ringtail.NewVerifier(), mesh.Callbacks{})

	validatorRegistry := consensus.NewRegistry(validators.NewManager())
	if err := applyValidatorIntent(validatorRegistry, consensusKey, params); err != nil {
		return err
	}

	ledger, err := consensus.LoadLedger(ledgerPath())
	if err != nil {
		return err
	}

	coordinator, err := consensus.New(consensus.Config{
		Self:         self,
		Signer:       consensusKey,
		Registry:     validatorRegistry,
		Peers:        peerRegistry,
		Mesh:         meshHandler,
		Logger:       logger,
		RoundTimeout: params.RoundTimeout,
	})
	if err != nil {
		return err
	}
	coordinator.WithLedger(ledger)
	coordinator.WithTelemetry(telemetry)

	_ = domains // wired for RPC/CLI surfaces that are out of this command's scope

	logger.Info("node starting",
		zap.String("self", self.String()),
		zap.Int("validators", validatorRegistry.Set().Len()),
	)

	round := uint64(0)
	now := time.Now()
	if _, err := coordinator.StartRound(1, zhtpid.Empty, bft.ConsensusProof{Type: bft.ProofTypeStake, Stake: 1, Timestamp: now}, now, true); err != nil {
		return fmt.Errorf("zhtpd: start genesis round: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go coordinator.RunEventLoop(runCtx, params.RoundTimeout/4)
	go coordinator.RunBlockProductionLoop(runCtx, params.RoundTimeout/4,
		func(height uint64) bft.ConsensusProof {
			return bft.ConsensusProof{Type: bft.ProofTypeStake, Stake: 1, Timestamp: time.Now()}
		},
		func(height uint64) bool { return true },
	)
	go coordinator.RunGovernanceLoop(runCtx, nil)
	go coordinator.RunRewardLoop(runCtx, &round, func(round uint64, now time.Time) {
		logger.Debug("reward round elapsed", zap.Uint64("round", round))
	})

	<-runCtx.Done()
	logger.Info("node shutting down")
	return ledger.Save()
}

func applyValidatorIntent(reg *consensus.Registry, key *ringtail.KeyPair, params config.Parameters) error {
	data, err := os.ReadFile(validatorIntentPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var intent validatorIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return fmt.Errorf("zhtpd: corrupted validator intent file: %w", err)
	}
	if intent.Stake < params.MinimumValidatorStake {
		intent.Stake = params.MinimumValidatorStake
	}
	return reg.RegisterAsValidator(key, intent.Stake, intent.StorageCapacity, intent.Commission)
}
