// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bft provides the Consensus Coordinator's BFT engine: a thin
// driver around github.com/luxfi/bft (Simplex) for epoch/round
// advancement, plus RoundState (round.go) for the Propose/PreVote/
// PreCommit/Commit ballot a single height runs through (spec §4.1).
//
// Simplex BFT is maintained as an external MPL-licensed package; Config's
// EpochConfig passes through to it directly.
package bft

import (
	"context"
	"sync"
	"time"

	luxbft "github.com/luxfi/bft"

	"github.com/zhtp-network/zhtp/validators"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// Engine wraps the Simplex BFT consensus engine and owns the currently
// in-flight RoundState.
type Engine struct {
	simplex *luxbft.Epoch
	config  Config

	mu      sync.Mutex
	current *RoundState
}

// Config for BFT engine wrapper
type Config struct {
	NodeID      string
	Validators  []string
	EpochLength uint64
	EpochConfig luxbft.EpochConfig // Pass-through to Simplex

	// RoundState is consulted only by StartRound; it is left unset by
	// callers that only need the Epoch driver (most of wrapper_test.go).
	RoundState RoundConfig
}

// RoundConfig carries the zhtpid-typed inputs StartRound needs to build a
// RoundState, separated from Config's Epoch-facing string fields so this
// package's Epoch wiring tests don't have to supply them.
type RoundConfig struct {
	Self         zhtpid.NodeID
	Validators   validators.Set
	Signer       Signer
	RoundTimeout time.Duration
}

// New creates a new BFT consensus engine using Simplex
// For full Simplex configuration, use Config.EpochConfig
func New(cfg Config) (*Engine, error) {
	epoch, err := luxbft.NewEpoch(cfg.EpochConfig)
	if err != nil {
		return nil, err
	}

	return &Engine{
		simplex: epoch,
		config:  cfg,
	}, nil
}

// StartRound begins a fresh RoundState for height, replacing whatever
// round was previously in flight. Callers that drive RoundState must set
// Config.RoundState; an empty RoundConfig produces a RoundState with a
// nil validator set that panics on first use.
func (e *Engine) StartRound(height, round uint64, now time.Time) *RoundState {
	e.mu.Lock()
	defer e.mu.Unlock()
	rc := e.config.RoundState
	e.current = NewRoundState(height, round, rc.Self, rc.Signer, rc.Validators, rc.RoundTimeout, now)
	return e.current
}

// CurrentRound returns the round currently in flight, or nil if none has
// been started.
func (e *Engine) CurrentRound() *RoundState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Start starts the BFT engine
func (e *Engine) Start(ctx context.Context, startReqID uint32) error {
	// Simplex handles start internally
	// The epoch is already configured and ready
	return nil
}

// Stop stops the BFT engine
func (e *Engine) Stop(ctx context.Context) error {
	// Simplex handles shutdown via context cancellation
	return nil
}

// IsBootstrapped returns whether the engine has finished bootstrapping
func (e *Engine) IsBootstrapped() bool {
	// BFT doesn't need bootstrap - it's always ready
	return true
}

// HealthCheck returns the health status
func (e *Engine) HealthCheck(ctx context.Context) (interface{}, error) {
	preVotes, preCommits, commits := 0, 0, 0
	if r := e.CurrentRound(); r != nil {
		preVotes, preCommits, commits = r.VoteCounts()
	}
	return map[string]interface{}{
		"consensus":   "bft-simplex",
		"status":      "healthy",
		"epoch":       e.simplex.Epoch,
		"preVotes":    preVotes,
		"preCommits":  preCommits,
		"commits":     commits,
	}, nil
}

// GetSimplex returns the underlying Simplex BFT engine
// Use this for direct access to Simplex features like:
// - ProposeBlock()
// - AddNode()
// - OnQC()
func (e *Engine) GetSimplex() *luxbft.Epoch {
	return e.simplex
}
