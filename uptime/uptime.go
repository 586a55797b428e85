// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package uptime tracks how long each registered validator has held an
// open transport connection and derives an uptime percentage from it.
package uptime

import (
	"errors"
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// ErrNotTracked is returned for operations on a node that was never
// registered with StartTracking.
var ErrNotTracked = errors.New("uptime: node is not tracked")

// State persists accumulated uptime across restarts.
type State interface {
	GetUptime(nodeID zhtpid.NodeID) (upDuration time.Duration, lastUpdated time.Time, err error)
	SetUptime(nodeID zhtpid.NodeID, upDuration time.Duration, lastUpdated time.Time) error
	GetStartTime(nodeID zhtpid.NodeID) (time.Time, error)
}

// Manager tracks validator connectivity and derives uptime percentage
// from it.
type Manager interface {
	StartTracking(nodeIDs []zhtpid.NodeID, now time.Time) error
	StopTracking(nodeIDs []zhtpid.NodeID, now time.Time) error
	Connect(nodeID zhtpid.NodeID, now time.Time) error
	Disconnect(nodeID zhtpid.NodeID, now time.Time) error
	IsConnected(nodeID zhtpid.NodeID) bool
	CalculateUptime(nodeID zhtpid.NodeID, now time.Time) (time.Duration, error)
	CalculateUptimePercent(nodeID zhtpid.NodeID, now time.Time) (float64, error)
}

type nodeTracking struct {
	connected   bool
	connectedAt time.Time
	upDuration  time.Duration
	startTime   time.Time
}

type manager struct {
	mu    sync.RWMutex
	state State
	nodes map[zhtpid.NodeID]*nodeTracking
}

// NewManager creates a Manager backed by state for persistence.
func NewManager(state State) Manager {
	return &manager{
		state: state,
		nodes: make(map[zhtpid.NodeID]*nodeTracking),
	}
}

func (m *manager) StartTracking(nodeIDs []zhtpid.NodeID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nodeID := range nodeIDs {
		upDuration, lastUpdated, err := m.state.GetUptime(nodeID)
		if err != nil {
			startTime, startErr := m.state.GetStartTime(nodeID)
			if startErr != nil {
				startTime = now
			}
			m.nodes[nodeID] = &nodeTracking{startTime: startTime}
			continue
		}
		m.nodes[nodeID] = &nodeTracking{upDuration: upDuration, connectedAt: lastUpdated}
	}
	return nil
}

func (m *manager) StopTracking(nodeIDs []zhtpid.NodeID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nodeID := range nodeIDs {
		track, ok := m.nodes[nodeID]
		if !ok {
			continue
		}
		if track.connected {
			track.upDuration += now.Sub(track.connectedAt)
		}
		if err := m.state.SetUptime(nodeID, track.upDuration, now); err != nil {
			return err
		}
		delete(m.nodes, nodeID)
	}
	return nil
}

func (m *manager) Connect(nodeID zhtpid.NodeID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	track, ok := m.nodes[nodeID]
	if !ok {
		return ErrNotTracked
	}
	track.connected = true
	track.connectedAt = now
	return nil
}

func (m *manager) Disconnect(nodeID zhtpid.NodeID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	track, ok := m.nodes[nodeID]
	if !ok {
		return ErrNotTracked
	}
	if track.connected {
		track.upDuration += now.Sub(track.connectedAt)
	}
	track.connected = false
	return m.state.SetUptime(nodeID, track.upDuration, now)
}

func (m *manager) IsConnected(nodeID zhtpid.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	track, ok := m.nodes[nodeID]
	return ok && track.connected
}

func (m *manager) CalculateUptime(nodeID zhtpid.NodeID, now time.Time) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	track, ok := m.nodes[nodeID]
	if !ok {
		return 0, ErrNotTracked
	}
	up := track.upDuration
	if track.connected {
		up += now.Sub(track.connectedAt)
	}
	return up, nil
}

func (m *manager) CalculateUptimePercent(nodeID zhtpid.NodeID, now time.Time) (float64, error) {
	m.mu.RLock()
	track, ok := m.nodes[nodeID]
	m.mu.RUnlock()
	if !ok {
		return 0, ErrNotTracked
	}
	total := now.Sub(track.startTime)
	if total <= 0 {
		return 1.0, nil
	}
	up, err := m.CalculateUptime(nodeID, now)
	if err != nil {
		return 0, err
	}
	pct := float64(up) / float64(total)
	if pct > 1.0 {
		pct = 1.0
	}
	return pct, nil
}

// NoOpManager discards all tracking, used in tests that don't exercise
// liveness logic.
type NoOpManager struct{}

func (NoOpManager) StartTracking([]zhtpid.NodeID, time.Time) error { return nil }
func (NoOpManager) StopTracking([]zhtpid.NodeID, time.Time) error  { return nil }
func (NoOpManager) Connect(zhtpid.NodeID, time.Time) error         { return nil }
func (NoOpManager) Disconnect(zhtpid.NodeID, time.Time) error      { return nil }
func (NoOpManager) IsConnected(zhtpid.NodeID) bool                 { return false }
func (NoOpManager) CalculateUptime(zhtpid.NodeID, time.Time) (time.Duration, error) {
	return 0, nil
}
func (NoOpManager) CalculateUptimePercent(zhtpid.NodeID, time.Time) (float64, error) {
	return 1.0, nil
}
