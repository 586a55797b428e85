// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements the Consensus Coordinator (spec §4.1): the
// validator registry, mempool, proposal-to-block translation, DAO
// governance, and reward distribution built atop engine/bft's round
// state machine, which Coordinator drives directly (no luxfi/bft Simplex
// epoch is constructed).
package consensus

import (
	"errors"
	"sync"

	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/validators"
	"github.com/zhtp-network/zhtp/zhtpid"
)

var (
	// ErrInsufficientStake is returned by RegisterAsValidator when stake
	// falls below MinimumValidatorStake.
	ErrInsufficientStake = errors.New("consensus: stake below minimum validator bond")
	// ErrInvalidCommission is returned for a commission outside [0, 1].
	ErrInvalidCommission = errors.New("consensus: commission must be between 0 and 1")
)

// MinimumValidatorStake is the smallest stake accepted by
// RegisterAsValidator.
const MinimumValidatorStake = 1_000

// ValidatorMeta carries the fields validators.Output does not model:
// storage capacity pledged toward the DHT/erasure-coded storage layer,
// and the commission rate a validator keeps from its share of block
// rewards before the remainder flows to delegators. Kept alongside
// validators.Manager rather than folded into Output so that package
// stays a narrow, reusable BFT membership primitive.
type ValidatorMeta struct {
	StorageCapacity uint64
	Commission      float64
	Bonded          bool
}

// Registry owns validator membership (via validators.Manager) plus the
// ZHTP-specific metadata every registration also carries.
type Registry struct {
	mu      sync.RWMutex
	manager validators.Manager
	meta    map[zhtpid.NodeID]ValidatorMeta
}

// NewRegistry creates a validator registry backed by manager.
func NewRegistry(manager validators.Manager) *Registry {
	return &Registry{manager: manager, meta: make(map[zhtpid.NodeID]ValidatorMeta)}
}

// RegisterAsValidator admits consensusKeyPair's NodeID to the validator
// set with stake and storageCapacity bonded, and commission applied to
// its share of future rewards (spec §4.1 register_as_validator).
func (r *Registry) RegisterAsValidator(consensusKeyPair *ringtail.KeyPair, stake, storageCapacity uint64, commission float64) error {
	if stake < MinimumValidatorStake {
		return ErrInsufficientStake
	}
	if commission < 0 || commission > 1 {
		return ErrInvalidCommission
	}
	if err := r.manager.Add(consensusKeyPair.NodeID, consensusKeyPair.PublicKeyBytes(), stake); err != nil {
		return err
	}
	r.mu.Lock()
	r.meta[consensusKeyPair.NodeID] = ValidatorMeta{StorageCapacity: storageCapacity, Commission: commission, Bonded: true}
	r.mu.Unlock()
	return nil
}

// Meta returns the ZHTP-specific metadata for nodeID, if registered.
func (r *Registry) Meta(nodeID zhtpid.NodeID) (ValidatorMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meta[nodeID]
	return m, ok
}

// Set returns the underlying BFT membership view.
func (r *Registry) Set() validators.Set { return r.manager }

// Manager returns the underlying mutable validator manager.
func (r *Registry) Manager() validators.Manager { return r.manager }
