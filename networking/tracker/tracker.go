// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tracker measures the CPU and disk resources consumed while
// serving each peer's requests, as per-peer usage estimates that decay
// exponentially with a configurable halflife.
package tracker

import (
	"math"
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// CPUTracker tracks CPU time attributed to each peer.
type CPUTracker interface {
	Usage(nodeID zhtpid.NodeID, now time.Time) float64
	TimeUntilUsage(nodeID zhtpid.NodeID, now time.Time, value float64) time.Duration
	TotalUsage() float64
}

// DiskTracker tracks disk bandwidth attributed to each peer.
type DiskTracker interface {
	Usage(nodeID zhtpid.NodeID, now time.Time) float64
	TimeUntilUsage(nodeID zhtpid.NodeID, now time.Time, value float64) time.Duration
	TotalUsage() float64
}

// ResourceTracker aggregates CPU and disk tracking and marks when a peer
// starts/stops being processed.
type ResourceTracker interface {
	StartProcessing(nodeID zhtpid.NodeID, now time.Time)
	StopProcessing(nodeID zhtpid.NodeID, now time.Time)
	CPUTracker() CPUTracker
	DiskTracker() DiskTracker
}

type usageTracker struct {
	mu         sync.RWMutex
	halflife   time.Duration
	usage      map[zhtpid.NodeID]float64
	lastUpdate map[zhtpid.NodeID]time.Time
}

func newUsageTracker(halflife time.Duration) *usageTracker {
	return &usageTracker{
		halflife:   halflife,
		usage:      make(map[zhtpid.NodeID]float64),
		lastUpdate: make(map[zhtpid.NodeID]time.Time),
	}
}

// decay applies exponential decay to a peer's tracked usage since it was
// last touched, so bursty past activity doesn't permanently inflate a
// peer's standing. Caller must hold t.mu.
func (t *usageTracker) decay(nodeID zhtpid.NodeID, now time.Time) float64 {
	usage, ok := t.usage[nodeID]
	if !ok {
		return 0
	}
	last, ok := t.lastUpdate[nodeID]
	if !ok || t.halflife <= 0 {
		return usage
	}
	elapsed := now.Sub(last)
	if elapsed <= 0 {
		return usage
	}
	halvings := float64(elapsed) / float64(t.halflife)
	return usage * math.Pow(0.5, halvings)
}

func (t *usageTracker) add(nodeID zhtpid.NodeID, now time.Time, delta float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage[nodeID] = t.decay(nodeID, now) + delta
	t.lastUpdate[nodeID] = now
}

func (t *usageTracker) Usage(nodeID zhtpid.NodeID, now time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.decay(nodeID, now)
}

// TimeUntilUsage returns how long until the peer's decayed usage would
// fall to value, assuming no further activity.
func (t *usageTracker) TimeUntilUsage(nodeID zhtpid.NodeID, now time.Time, value float64) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	current := t.decay(nodeID, now)
	if current <= value || t.halflife <= 0 || value <= 0 {
		return 0
	}
	halvings := math.Log2(current / value)
	if halvings <= 0 {
		return 0
	}
	return time.Duration(halvings * float64(t.halflife))
}

func (t *usageTracker) TotalUsage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := time.Now()
	var total float64
	for nodeID := range t.usage {
		total += t.decay(nodeID, now)
	}
	return total
}

type resourceTracker struct {
	cpu  *usageTracker
	disk *usageTracker
}

// NewResourceTracker creates a ResourceTracker whose CPU and disk usage
// estimates decay with the given halflives.
func NewResourceTracker(cpuHalflife, diskHalflife time.Duration) (ResourceTracker, error) {
	return &resourceTracker{
		cpu:  newUsageTracker(cpuHalflife),
		disk: newUsageTracker(diskHalflife),
	}, nil
}

func (r *resourceTracker) StartProcessing(nodeID zhtpid.NodeID, now time.Time) {
	r.cpu.add(nodeID, now, 1)
}

func (r *resourceTracker) StopProcessing(nodeID zhtpid.NodeID, now time.Time) {
	r.cpu.add(nodeID, now, -1)
}

func (r *resourceTracker) CPUTracker() CPUTracker   { return r.cpu }
func (r *resourceTracker) DiskTracker() DiskTracker { return r.disk }
