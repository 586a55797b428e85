// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mesh

import (
	"errors"
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// SyncType names a kind of synchronization exchange (chain headers,
// domain records, peer registry snapshots) a peer can be running at
// most one of concurrently.
type SyncType string

const (
	SyncTypeBlockchain SyncType = "blockchain"
	SyncTypeHeaders    SyncType = "headers"
	SyncTypeDomains    SyncType = "domains"
	SyncTypePeers      SyncType = "peers"
)

var (
	// ErrSyncInProgress is returned by StartSync when the (peer,
	// syncType) pair already has an active session.
	ErrSyncInProgress = errors.New("mesh: sync already in progress for this peer and type")
	// ErrNoSuchSync is returned by CompleteSync/FailSync for a session
	// that was never started (or already finished).
	ErrNoSuchSync = errors.New("mesh: no active sync session for this peer and type")
	// ErrProtocolNotRegistered is returned when starting a sync whose
	// protocol was never registered via RegisterPeerProtocol.
	ErrProtocolNotRegistered = errors.New("mesh: peer has not registered this sync protocol")
)

type syncKey struct {
	peer zhtpid.NodeID
	kind SyncType
}

// Session is one in-flight synchronization exchange.
type Session struct {
	Peer      zhtpid.NodeID
	Type      SyncType
	StartedAt time.Time
}

// Coordinator ensures at most one synchronization session runs at a time
// per (peer, SyncType) pair (spec §4.3 Sync Coordinator), and tracks
// which sync protocols each peer has announced support for.
type Coordinator struct {
	mu        sync.Mutex
	active    map[syncKey]*Session
	protocols map[zhtpid.NodeID]map[SyncType]bool
}

// NewCoordinator creates an empty sync coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		active:    make(map[syncKey]*Session),
		protocols: make(map[zhtpid.NodeID]map[SyncType]bool),
	}
}

// RegisterPeerProtocol records that peer supports syncType, learned from
// that peer's PeerAnnouncement.
func (c *Coordinator) RegisterPeerProtocol(p zhtpid.NodeID, syncType SyncType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.protocols[p]
	if !ok {
		set = make(map[SyncType]bool)
		c.protocols[p] = set
	}
	set[syncType] = true
}

// SupportsProtocol reports whether peer has registered syncType.
func (c *Coordinator) SupportsProtocol(p zhtpid.NodeID, syncType SyncType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocols[p][syncType]
}

// StartSync begins a session for (p, syncType), rejecting the call if one
// is already active or the peer never registered the protocol.
func (c *Coordinator) StartSync(p zhtpid.NodeID, syncType SyncType, now time.Time) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.protocols[p][syncType] {
		return nil, ErrProtocolNotRegistered
	}
	key := syncKey{peer: p, kind: syncType}
	if _, exists := c.active[key]; exists {
		return nil, ErrSyncInProgress
	}
	s := &Session{Peer: p, Type: syncType, StartedAt: now}
	c.active[key] = s
	return s, nil
}

// CompleteSync ends a session successfully.
func (c *Coordinator) CompleteSync(p zhtpid.NodeID, syncType SyncType) error {
	return c.endSync(p, syncType)
}

// FailSync ends a session unsuccessfully; the session is removed either
// way so a subsequent StartSync is not blocked by a stuck failure.
func (c *Coordinator) FailSync(p zhtpid.NodeID, syncType SyncType) error {
	return c.endSync(p, syncType)
}

func (c *Coordinator) endSync(p zhtpid.NodeID, syncType SyncType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := syncKey{peer: p, kind: syncType}
	if _, exists := c.active[key]; !exists {
		return ErrNoSuchSync
	}
	delete(c.active, key)
	return nil
}

// IsActive reports whether a sync session for (p, syncType) is currently
// in flight.
func (c *Coordinator) IsActive(p zhtpid.NodeID, syncType SyncType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[syncKey{peer: p, kind: syncType}]
	return ok
}
