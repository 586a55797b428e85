// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config collects the tunable, network-wide parameters a ZHTP
// node boots with: consensus round timing, validator bonding floors, the
// UBI/welfare reward cadence, and peer rate-limit defaults. Mirrors the
// teacher's config package shape (a Parameters struct plus
// Mainnet/Testnet/Local constructors) with BFT round-based fields in
// place of Avalanche's snowball sampling thresholds (K/AlphaPreference/
// AlphaConfidence/Beta), which have no equivalent in a round-based
// Propose/PreVote/PreCommit/Commit ballot.
package config

import "time"

// Parameters contains the per-network settings "zhtpd node start" selects.
// Only RoundTimeout and MinimumValidatorStake are read by the node; the
// remaining fields record the network's values for settings that the
// consensus, peer, and storage packages take from their own package
// constants, not from Parameters.
type Parameters struct {
	// Consensus round timing, passed to consensus.Config.RoundTimeout
	// (engine/bft.RoundState) and used for the node's loop ticks.
	RoundTimeout time.Duration

	// MinimumValidatorStake is the value "node start" raises a lower
	// validator-intent stake to before registering it.
	// consensus.RegisterAsValidator separately enforces
	// consensus.MinimumValidatorStake.
	MinimumValidatorStake uint64

	// Governance/reward cadence and block reward; consensus.Coordinator
	// uses its own GovernancePeriod, RewardPeriod and BlockReward
	// constants.
	GovernancePeriod time.Duration
	RewardPeriod     time.Duration
	BlockReward      uint64

	// Peer registry rate limits; peer.RateLimiter uses its own
	// PeerPerMinuteLimit and GlobalPerSecondLimit constants.
	PeerPerMinuteLimit   int
	GlobalPerSecondLimit int

	// Erasure-coded storage layout; storage.Store uses its own
	// DataShards and ParityShards constants.
	DataShards   int
	ParityShards int
}

// Mainnet returns production network parameters.
func Mainnet() Parameters {
	return Parameters{
		RoundTimeout:          2 * time.Second,
		MinimumValidatorStake: 1_000,
		GovernancePeriod:      30 * time.Second,
		RewardPeriod:          60 * time.Second,
		BlockReward:           50,
		PeerPerMinuteLimit:    10,
		GlobalPerSecondLimit:  1000,
		DataShards:            4,
		ParityShards:          1,
	}
}

// Testnet returns test-network parameters: shorter round timeouts and a
// lower stake floor so small validator sets can still reach quorum.
func Testnet() Parameters {
	p := Mainnet()
	p.RoundTimeout = time.Second
	p.MinimumValidatorStake = 100
	return p
}

// Local returns single-node/development parameters: aggressive timeouts
// and reward cadences so a local network produces visible activity
// without waiting on Mainnet's real-world periods.
func Local() Parameters {
	return Parameters{
		RoundTimeout:          200 * time.Millisecond,
		MinimumValidatorStake: 1,
		GovernancePeriod:      3 * time.Second,
		RewardPeriod:          5 * time.Second,
		BlockReward:           50,
		PeerPerMinuteLimit:    10,
		GlobalPerSecondLimit:  1000,
		DataShards:            4,
		ParityShards:          1,
	}
}
