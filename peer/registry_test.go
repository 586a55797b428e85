// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package peer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhtp-network/zhtp/zhtpid"
)

type countingObserver struct {
	mu       sync.Mutex
	upserts  int
	removals int
}

func (o *countingObserver) OnPeerUpserted(*PeerEntry) {
	o.mu.Lock()
	o.upserts++
	o.mu.Unlock()
}

func (o *countingObserver) OnPeerRemoved(*PeerEntry) {
	o.mu.Lock()
	o.removals++
	o.mu.Unlock()
}

func newTestEntry(n byte) *PeerEntry {
	var nodeID zhtpid.NodeID
	nodeID[0] = n
	did := "did:zhtp:" + zhtpid.ID(nodeIDToID(nodeID)).String()
	return &PeerEntry{
		UnifiedPeerID: NewUnifiedPeerID(nodeID, did),
		NodeID:        nodeID,
		PublicKey:     []byte{n, n, n},
		DID:           did,
	}
}

func nodeIDToID(n zhtpid.NodeID) zhtpid.ID {
	var id zhtpid.ID
	copy(id[:], n[:])
	return id
}

func TestUpsertThenFindByEveryIndex(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	obs := &countingObserver{}
	r.RegisterObserver(obs)

	e := newTestEntry(1)
	now := time.Now()
	require.NoError(t, r.Upsert(e, now))

	byNode, err := r.FindByNodeID(e.NodeID)
	require.NoError(t, err)
	require.Equal(t, e.UnifiedPeerID, byNode.UnifiedPeerID)

	byKey, err := r.FindByPublicKey(e.PublicKey)
	require.NoError(t, err)
	require.Equal(t, e.UnifiedPeerID, byKey.UnifiedPeerID)

	byDID, err := r.FindByDID(e.DID)
	require.NoError(t, err)
	require.Equal(t, e.UnifiedPeerID, byDID.UnifiedPeerID)

	require.Equal(t, 1, obs.upserts)
}

func TestUpsertRejectsMalformedDID(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	e := newTestEntry(2)
	e.DID = "not-a-did"
	err = r.Upsert(e, time.Now())
	require.ErrorIs(t, err, ErrInvalidDID)
}

func TestRateLimiterRejectsBurstAboveTenPerMinute(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	var nodeID zhtpid.NodeID
	nodeID[0] = 9
	now := time.Now()

	accepted := 0
	for i := 0; i < PeerPerMinuteLimit+5; i++ {
		e := &PeerEntry{UnifiedPeerID: zhtpid.ID{byte(i)}, NodeID: nodeID}
		if r.Upsert(e, now) == nil {
			accepted++
		}
	}
	require.Equal(t, PeerPerMinuteLimit, accepted)
}

func TestStrikeDemotesTierAfterThreeStrikes(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	e := newTestEntry(3)
	e.Tier = TierTrusted
	now := time.Now()
	require.NoError(t, r.Upsert(e, now))

	var tier Tier
	for i := 0; i < maxStrikesBeforeDemotion; i++ {
		tier, err = r.Strike(e.NodeID, now)
		require.NoError(t, err)
	}
	require.Equal(t, TierStandard, tier)
}

func TestCleanupExpiredRemovesStaleEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Millisecond
	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	e := newTestEntry(4)
	now := time.Now()
	require.NoError(t, r.Upsert(e, now))

	removed := r.CleanupExpired(now.Add(time.Second))
	require.Equal(t, 1, removed)
	require.Equal(t, 0, r.Len())
}

func TestFindClosestDHTPeersOrdersByXORDistance(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	now := time.Now()
	for i := byte(1); i <= 5; i++ {
		require.NoError(t, r.Upsert(newTestEntry(i), now))
	}

	var target zhtpid.NodeID
	target[0] = 1
	closest := r.FindClosestDHTPeers(target, 2)
	require.Len(t, closest, 2)
	require.Equal(t, target, closest[0].NodeID)
}

func TestConcurrentUpsertsAreRaceFree(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	now := time.Now()
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := &PeerEntry{UnifiedPeerID: zhtpid.ID{byte(i), byte(i >> 8)}, NodeID: zhtpid.NodeID{byte(i)}}
			_ = r.Upsert(e, now)
			e.AddDataTransferred(10)
			e.AddTokensEarned(1)
		}(i)
	}
	wg.Wait()
}
