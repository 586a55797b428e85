// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"context"
	"sync"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// NewManager creates an empty validator manager.
func NewManager() Manager {
	return &manager{
		validators: make(map[zhtpid.NodeID]*Output),
	}
}

type manager struct {
	mu         sync.RWMutex
	validators map[zhtpid.NodeID]*Output
	callbacks  []SetCallbackListener
	height     uint64
}

func (m *manager) Add(nodeID zhtpid.NodeID, publicKey []byte, stake uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.validators[nodeID]; exists {
		return ErrAlreadyRegistered
	}
	m.validators[nodeID] = &Output{NodeID: nodeID, PublicKey: publicKey, Stake: stake}
	m.notifyAdded(nodeID, stake)
	return nil
}

func (m *manager) Remove(nodeID zhtpid.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, exists := m.validators[nodeID]
	if !exists {
		return ErrNotRegistered
	}
	delete(m.validators, nodeID)
	m.notifyRemoved(nodeID, val.Stake)
	return nil
}

func (m *manager) AddStake(nodeID zhtpid.NodeID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, exists := m.validators[nodeID]
	if !exists {
		return ErrNotRegistered
	}
	old := val.Stake
	val.Stake += amount
	m.notifyStakeChanged(nodeID, old, val.Stake)
	return nil
}

func (m *manager) RemoveStake(nodeID zhtpid.NodeID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, exists := m.validators[nodeID]
	if !exists {
		return ErrNotRegistered
	}
	old := val.Stake
	if amount >= val.Stake {
		delete(m.validators, nodeID)
		m.notifyRemoved(nodeID, old)
		return nil
	}
	val.Stake -= amount
	m.notifyStakeChanged(nodeID, old, val.Stake)
	return nil
}

func (m *manager) Strike(nodeID zhtpid.NodeID) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, exists := m.validators[nodeID]
	if !exists {
		return 0, ErrNotRegistered
	}
	val.Strikes++
	return val.Strikes, nil
}

func (m *manager) RegisterCallbackListener(listener SetCallbackListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, listener)
}

func (m *manager) notifyAdded(nodeID zhtpid.NodeID, stake uint64) {
	for _, cb := range m.callbacks {
		cb.OnValidatorAdded(nodeID, stake)
	}
}

func (m *manager) notifyRemoved(nodeID zhtpid.NodeID, stake uint64) {
	for _, cb := range m.callbacks {
		cb.OnValidatorRemoved(nodeID, stake)
	}
}

func (m *manager) notifyStakeChanged(nodeID zhtpid.NodeID, old, new uint64) {
	for _, cb := range m.callbacks {
		cb.OnValidatorStakeChanged(nodeID, old, new)
	}
}

// GetCurrentHeight implements State.
func (m *manager) GetCurrentHeight(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height, nil
}

// GetValidatorSet implements State by returning a snapshot copy of the
// registry as of the requested height; this manager does not retain
// historical sets, so any height returns the current membership.
func (m *manager) GetValidatorSet(ctx context.Context, height uint64) (map[zhtpid.NodeID]*Output, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[zhtpid.NodeID]*Output, len(m.validators))
	for k, v := range m.validators {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

func (m *manager) Has(nodeID zhtpid.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.validators[nodeID]
	return ok
}

func (m *manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.validators)
}

func (m *manager) List() []*Output {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Output, 0, len(m.validators))
	for _, v := range m.validators {
		cp := *v
		out = append(out, &cp)
	}
	return out
}

func (m *manager) TotalStake() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total uint64
	for _, v := range m.validators {
		total += v.Stake
	}
	return total
}

func (m *manager) PublicKey(nodeID zhtpid.NodeID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.validators[nodeID]
	if !ok {
		return nil, false
	}
	return val.PublicKey, true
}

// QuorumSize returns 2f+1 for the current validator count n = 3f+1 (or the
// nearest bound for n not of that exact form), the BFT commit threshold
// used throughout spec §4.1.
func (m *manager) QuorumSize() int {
	m.mu.RLock()
	n := len(m.validators)
	m.mu.RUnlock()
	if n == 0 {
		return 0
	}
	f := (n - 1) / 3
	return 2*f + 1
}
