// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package peer implements the Unified Peer Registry: the single source of
// truth for every peer a node has observed, indexed by NodeID, public
// key, and DID, with TTL/tier eviction, a sliding-window rate limiter,
// and lock-free atomic traffic/reward counters.
package peer

import (
	"sync/atomic"
	"time"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/transport"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// NewUnifiedPeerID derives the registry's primary key for a peer from its
// device NodeID and DID, so the same (NodeID, DID) pair always maps to
// the same entry regardless of which index looked it up first.
func NewUnifiedPeerID(nodeID zhtpid.NodeID, did string) zhtpid.ID {
	return cryptoutil.Hash(nodeID.Bytes(), []byte(did))
}

// PeerEntry is the registry's unit of record for one remote peer. The
// three traffic/reward counters are atomic so the mesh handler's hot path
// (recording bytes relayed, UBI tokens earned) never takes the registry
// lock.
type PeerEntry struct {
	UnifiedPeerID zhtpid.ID
	NodeID        zhtpid.NodeID
	PublicKey     []byte
	DID           string
	Tier          Tier
	Endpoints     map[transport.Kind]string

	FirstSeen time.Time
	LastSeen  time.Time
	ExpiresAt time.Time

	Strikes          uint32
	FailedDHTLookups uint32

	dataTransferred atomic.Uint64
	tokensEarned    atomic.Uint64
	trafficRouted   atomic.Uint64
}

// clone returns a shallow copy safe to hand to observers and callers
// outside the registry lock; the atomic counters are read once into the
// copy's own counters, and Endpoints is copied (a nil map stays nil).
func (e *PeerEntry) clone() *PeerEntry {
	cp := *e
	cp.dataTransferred.Store(e.dataTransferred.Load())
	cp.tokensEarned.Store(e.tokensEarned.Load())
	cp.trafficRouted.Store(e.trafficRouted.Load())
	if e.Endpoints != nil {
		cp.Endpoints = make(map[transport.Kind]string, len(e.Endpoints))
		for k, v := range e.Endpoints {
			cp.Endpoints[k] = v
		}
	}
	return &cp
}

// AddDataTransferred atomically increments the peer's lifetime byte
// counter, returning the new total.
func (e *PeerEntry) AddDataTransferred(n uint64) uint64 { return e.dataTransferred.Add(n) }

// DataTransferred returns the peer's lifetime byte counter.
func (e *PeerEntry) DataTransferred() uint64 { return e.dataTransferred.Load() }

// AddTokensEarned atomically increments the peer's UBI/relay-reward
// counter, returning the new total.
func (e *PeerEntry) AddTokensEarned(n uint64) uint64 { return e.tokensEarned.Add(n) }

// TokensEarned returns the peer's lifetime reward-token counter.
func (e *PeerEntry) TokensEarned() uint64 { return e.tokensEarned.Load() }

// AddTrafficRouted atomically increments the count of messages this peer
// has relayed on behalf of others, returning the new total.
func (e *PeerEntry) AddTrafficRouted(n uint64) uint64 { return e.trafficRouted.Add(n) }

// TrafficRouted returns the peer's lifetime relayed-message counter.
func (e *PeerEntry) TrafficRouted() uint64 { return e.trafficRouted.Load() }

// IsExpired reports whether the peer's TTL has elapsed as of now.
func (e *PeerEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// distance computes the XOR distance between two NodeIDs as an unsigned
// big-endian integer comparison key, the standard Kademlia closeness
// metric used by FindClosestDHTPeers.
func distance(a, b zhtpid.NodeID) [zhtpid.Len]byte {
	var out [zhtpid.Len]byte
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func lessDistance(a, b [zhtpid.Len]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
