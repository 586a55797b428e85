// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators tracks the set of identities registered to
// participate in consensus, their stake weight, and their public keys,
// satisfying the ValidatorSet capability consumed by engine/bft and
// ringtail.Certificate.
package validators

import (
	"context"
	"errors"

	"github.com/zhtp-network/zhtp/zhtpid"
)

var (
	// ErrNotRegistered is returned when looking up a node that never
	// registered as a validator.
	ErrNotRegistered = errors.New("validators: node is not a registered validator")
	// ErrAlreadyRegistered is returned by Add when the node already holds
	// a validator slot.
	ErrAlreadyRegistered = errors.New("validators: node is already registered")
	// ErrInsufficientStake is returned when a registration's stake is
	// below the network minimum.
	ErrInsufficientStake = errors.New("validators: stake below minimum")
)

// Output is the public record of a single validator.
type Output struct {
	NodeID    zhtpid.NodeID
	PublicKey []byte
	Stake     uint64
	// Strikes counts confirmed Byzantine-fault events (equivocation,
	// invalid proposals); see networking/benchlist for quarantine.
	Strikes uint32
}

// State is the read path consumed by the consensus engine to materialize
// the validator set active at a given height.
type State interface {
	GetCurrentHeight(ctx context.Context) (uint64, error)
	GetValidatorSet(ctx context.Context, height uint64) (map[zhtpid.NodeID]*Output, error)
}

// Set is a point-in-time, read-only view of the validator set, satisfying
// ringtail.ValidatorSet.
type Set interface {
	Has(nodeID zhtpid.NodeID) bool
	Len() int
	List() []*Output
	TotalStake() uint64
	PublicKey(nodeID zhtpid.NodeID) ([]byte, bool)
	// QuorumSize returns 2f+1 validators for the current set size,
	// the number of matching signatures required for a commit
	// certificate (spec §4.1 step 5).
	QuorumSize() int
}

// SetCallbackListener is notified of validator set membership and stake
// changes.
type SetCallbackListener interface {
	OnValidatorAdded(nodeID zhtpid.NodeID, stake uint64)
	OnValidatorRemoved(nodeID zhtpid.NodeID, stake uint64)
	OnValidatorStakeChanged(nodeID zhtpid.NodeID, oldStake, newStake uint64)
}

// Manager owns the mutable validator registry: register_as_validator adds
// to it, slashing/strikes mutate it, and the consensus engine reads a Set
// snapshot from it each round.
type Manager interface {
	State
	Set
	// Add registers nodeID as a validator with the given stake and
	// public key. Returns ErrAlreadyRegistered if nodeID already holds a
	// slot.
	Add(nodeID zhtpid.NodeID, publicKey []byte, stake uint64) error
	// Remove withdraws a validator's slot entirely.
	Remove(nodeID zhtpid.NodeID) error
	// AddStake increases an existing validator's stake.
	AddStake(nodeID zhtpid.NodeID, amount uint64) error
	// RemoveStake decreases an existing validator's stake, removing the
	// validator entirely if the result is zero.
	RemoveStake(nodeID zhtpid.NodeID, amount uint64) error
	// Strike records a confirmed Byzantine fault against nodeID,
	// returning the node's new strike count.
	Strike(nodeID zhtpid.NodeID) (uint32, error)
	RegisterCallbackListener(listener SetCallbackListener)
}
