// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package peer

import (
	"errors"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zhtp-network/zhtp/identity"
	"github.com/zhtp-network/zhtp/internal/zhtperr"
	"github.com/zhtp-network/zhtp/zhtpid"
)

var (
	// ErrNotFound is returned by every lookup path when no entry matches.
	ErrNotFound = errors.New("peer: entry not found")
	// ErrInvalidDID is returned by Upsert when the candidate entry's DID
	// fails identity.ValidateDID.
	ErrInvalidDID = errors.New("peer: invalid DID")
	// ErrRateLimited is returned by Upsert/CommitBatch when the caller's
	// request exceeds the per-peer or global sliding-window limit.
	ErrRateLimited = errors.New("peer: rate limited")
)

// Observer is notified after a mutation has been applied and logged, in
// that order: the registry's own audit trail is always consistent with
// what observers (metrics, the consensus reward loop) end up seeing.
type Observer interface {
	OnPeerUpserted(entry *PeerEntry)
	OnPeerRemoved(entry *PeerEntry)
}

// AuditEvent is one append-only record of a mutation, retained for the
// lifetime of the process for operator inspection (spec §4.2 "observer
// dispatch after mutation+audit").
type AuditEvent struct {
	At     time.Time
	Action string
	Peer   zhtpid.ID
}

// Registry is the Unified Peer Registry: one primary record per peer plus
// three secondary indexes (NodeID, raw public key bytes, DID), backing
// every mesh and consensus component that needs to resolve a peer by
// whichever identifier it has in hand.
type Registry struct {
	mu sync.RWMutex

	byUnifiedID map[zhtpid.ID]*PeerEntry
	byNodeID    map[zhtpid.NodeID]*PeerEntry
	byPublicKey map[string]*PeerEntry
	byDID       map[string]*PeerEntry

	ttl      time.Duration
	maxPeers int

	limiter *RateLimiter
	dht     *lru.Cache[zhtpid.NodeID, []*PeerEntry]

	observers []Observer
	audit     []AuditEvent
}

// Config controls eviction and capacity limits for a new Registry.
type Config struct {
	// TTL is how long a peer entry survives without being refreshed by a
	// successful Upsert before CleanupExpired removes it.
	TTL time.Duration
	// MaxPeers bounds the registry size; once exceeded, upsert evicts
	// the worst-tier, oldest-LastSeen entries first.
	MaxPeers int
	// DHTCacheSize bounds the closest-peer LRU cache entry count.
	DHTCacheSize int
}

// DefaultConfig returns sensible defaults: a 30 minute TTL, a 10,000 peer
// cap, and a 512-entry closest-peer cache.
func DefaultConfig() Config {
	return Config{TTL: 30 * time.Minute, MaxPeers: 10_000, DHTCacheSize: 512}
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.DHTCacheSize <= 0 {
		cfg.DHTCacheSize = 512
	}
	cache, err := lru.New[zhtpid.NodeID, []*PeerEntry](cfg.DHTCacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		byUnifiedID: make(map[zhtpid.ID]*PeerEntry),
		byNodeID:    make(map[zhtpid.NodeID]*PeerEntry),
		byPublicKey: make(map[string]*PeerEntry),
		byDID:       make(map[string]*PeerEntry),
		ttl:         cfg.TTL,
		maxPeers:    cfg.MaxPeers,
		limiter:     NewRateLimiter(),
		dht:         cache,
	}, nil
}

// RegisterObserver subscribes o to every future upsert/remove.
func (r *Registry) RegisterObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Upsert inserts a new peer or refreshes an existing one (matched by
// UnifiedPeerID), subject to the per-peer/global rate limiter and DID
// validation. Refreshing an existing entry preserves its counters, tier,
// and strike count; only Endpoints, PublicKey, and LastSeen/ExpiresAt are
// updated.
func (r *Registry) Upsert(e *PeerEntry, now time.Time) error {
	if e.DID != "" {
		if err := identity.ValidateDID(e.DID); err != nil {
			return zhtperr.New(zhtperr.InvalidInput, "peer", ErrInvalidDID)
		}
	}
	if !r.limiter.Allow(e.NodeID, now) {
		return zhtperr.New(zhtperr.RateLimited, "peer", ErrRateLimited)
	}

	r.mu.Lock()
	existing, ok := r.byUnifiedID[e.UnifiedPeerID]
	var result *PeerEntry
	if ok {
		existing.PublicKey = e.PublicKey
		existing.Endpoints = e.Endpoints
		existing.LastSeen = now
		existing.ExpiresAt = now.Add(r.ttl)
		if existing.FirstSeen.IsZero() {
			existing.FirstSeen = now
		}
		result = existing
	} else {
		e.FirstSeen = now
		e.LastSeen = now
		e.ExpiresAt = now.Add(r.ttl)
		r.insertLocked(e)
		result = e
		r.evictIfOverCapacityLocked()
	}
	r.reindexLocked(result)
	r.audit = append(r.audit, AuditEvent{At: now, Action: "upsert", Peer: result.UnifiedPeerID})
	snapshot := result.clone()
	r.mu.Unlock()

	r.dispatchUpserted(snapshot)
	return nil
}

func (r *Registry) insertLocked(e *PeerEntry) {
	r.byUnifiedID[e.UnifiedPeerID] = e
	r.dht.Purge()
}

// reindexLocked refreshes the secondary indexes for e; must be called
// with the write lock held.
func (r *Registry) reindexLocked(e *PeerEntry) {
	r.byNodeID[e.NodeID] = e
	if len(e.PublicKey) > 0 {
		r.byPublicKey[string(e.PublicKey)] = e
	}
	if e.DID != "" {
		r.byDID[e.DID] = e
	}
}

// evictIfOverCapacityLocked removes the worst-tier, oldest-LastSeen
// entries until the registry is back under maxPeers. Must be called with
// the write lock held; it does not itself dispatch observers (the caller
// does so for the primary upsert, but evicted peers are silently
// dropped since eviction is a capacity decision, not a peer-initiated
// removal).
func (r *Registry) evictIfOverCapacityLocked() {
	if r.maxPeers <= 0 || len(r.byUnifiedID) <= r.maxPeers {
		return
	}
	candidates := make([]*PeerEntry, 0, len(r.byUnifiedID))
	for _, e := range r.byUnifiedID {
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Tier != candidates[j].Tier {
			return candidates[i].Tier < candidates[j].Tier
		}
		return candidates[i].LastSeen.Before(candidates[j].LastSeen)
	})
	toRemove := len(r.byUnifiedID) - r.maxPeers
	for i := 0; i < toRemove && i < len(candidates); i++ {
		r.removeLocked(candidates[i])
	}
}

func (r *Registry) removeLocked(e *PeerEntry) {
	delete(r.byUnifiedID, e.UnifiedPeerID)
	delete(r.byNodeID, e.NodeID)
	if len(e.PublicKey) > 0 {
		delete(r.byPublicKey, string(e.PublicKey))
	}
	if e.DID != "" {
		delete(r.byDID, e.DID)
	}
	r.dht.Purge()
}

// Remove deletes a peer entirely, identified by its UnifiedPeerID.
func (r *Registry) Remove(id zhtpid.ID, now time.Time) error {
	r.mu.Lock()
	e, ok := r.byUnifiedID[id]
	if !ok {
		r.mu.Unlock()
		return zhtperr.New(zhtperr.NotFound, "peer", ErrNotFound)
	}
	r.removeLocked(e)
	r.audit = append(r.audit, AuditEvent{At: now, Action: "remove", Peer: id})
	snapshot := e.clone()
	r.mu.Unlock()

	r.dispatchRemoved(snapshot)
	return nil
}

// CommitBatch applies every entry in batch via Upsert, stopping at the
// first rate-limited or invalid entry and reporting how many committed
// successfully before the failure.
func (r *Registry) CommitBatch(batch []*PeerEntry, now time.Time) (committed int, err error) {
	for _, e := range batch {
		if uerr := r.Upsert(e, now); uerr != nil {
			return committed, uerr
		}
		committed++
	}
	return committed, nil
}

// FindByNodeID resolves a peer by its device NodeID.
func (r *Registry) FindByNodeID(nodeID zhtpid.NodeID) (*PeerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byNodeID[nodeID]
	if !ok {
		return nil, zhtperr.New(zhtperr.NotFound, "peer", ErrNotFound)
	}
	return e.clone(), nil
}

// FindByPublicKey resolves a peer by its raw public key bytes.
func (r *Registry) FindByPublicKey(pub []byte) (*PeerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byPublicKey[string(pub)]
	if !ok {
		return nil, zhtperr.New(zhtperr.NotFound, "peer", ErrNotFound)
	}
	return e.clone(), nil
}

// FindByDID resolves a peer by its DID.
func (r *Registry) FindByDID(did string) (*PeerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byDID[did]
	if !ok {
		return nil, zhtperr.New(zhtperr.NotFound, "peer", ErrNotFound)
	}
	return e.clone(), nil
}

// UpdateIfExists applies mutate to the stored entry for nodeID while
// holding the write lock, returning ErrNotFound if no such peer exists.
// This is the path strikes, tier changes, and counter bumps that need
// read-modify-write semantics go through, instead of a full Upsert.
func (r *Registry) UpdateIfExists(nodeID zhtpid.NodeID, now time.Time, mutate func(e *PeerEntry)) error {
	r.mu.Lock()
	e, ok := r.byNodeID[nodeID]
	if !ok {
		r.mu.Unlock()
		return zhtperr.New(zhtperr.NotFound, "peer", ErrNotFound)
	}
	mutate(e)
	r.audit = append(r.audit, AuditEvent{At: now, Action: "update", Peer: e.UnifiedPeerID})
	snapshot := e.clone()
	r.mu.Unlock()

	r.dispatchUpserted(snapshot)
	return nil
}

// Strike records a confirmed Byzantine-fault event against nodeID. Once a
// peer accumulates maxStrikesBeforeDemotion strikes its tier is demoted
// by one step and its strike count resets, so repeated misbehavior keeps
// pushing a peer toward TierUntrusted rather than a one-shot ban.
func (r *Registry) Strike(nodeID zhtpid.NodeID, now time.Time) (Tier, error) {
	var newTier Tier
	err := r.UpdateIfExists(nodeID, now, func(e *PeerEntry) {
		e.Strikes++
		if e.Strikes >= maxStrikesBeforeDemotion {
			e.Tier = e.Tier.Demote()
			e.Strikes = 0
		}
		newTier = e.Tier
	})
	return newTier, err
}

// CleanupExpired removes every entry whose TTL has elapsed as of now,
// returning the number removed.
func (r *Registry) CleanupExpired(now time.Time) int {
	r.mu.Lock()
	var expired []*PeerEntry
	for _, e := range r.byUnifiedID {
		if e.IsExpired(now) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		r.removeLocked(e)
	}
	r.mu.Unlock()

	for _, e := range expired {
		r.dispatchRemoved(e.clone())
	}
	return len(expired)
}

// CleanupFailedDHTPeers removes peers whose DHT lookups have failed at
// least threshold times in a row, a cheap heuristic for pruning
// unreachable DHT participants before they pollute FindClosestDHTPeers
// results.
func (r *Registry) CleanupFailedDHTPeers(threshold uint32) int {
	r.mu.Lock()
	var failed []*PeerEntry
	for _, e := range r.byUnifiedID {
		if e.FailedDHTLookups >= threshold {
			failed = append(failed, e)
		}
	}
	for _, e := range failed {
		r.removeLocked(e)
	}
	r.dht.Purge()
	r.mu.Unlock()

	for _, e := range failed {
		r.dispatchRemoved(e.clone())
	}
	return len(failed)
}

// FindClosestDHTPeers returns the k peers whose NodeID is closest to
// target by XOR distance, the Kademlia routing-table query used when
// forwarding a DHT store/find-value request. Results are cached per
// target until the cache is purged by a registry mutation affecting DHT
// membership.
func (r *Registry) FindClosestDHTPeers(target zhtpid.NodeID, k int) []*PeerEntry {
	if cached, ok := r.dht.Get(target); ok {
		if len(cached) > k {
			return cached[:k]
		}
		return cached
	}

	r.mu.RLock()
	all := make([]*PeerEntry, 0, len(r.byNodeID))
	for _, e := range r.byNodeID {
		all = append(all, e)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return lessDistance(distance(all[i].NodeID, target), distance(all[j].NodeID, target))
	})
	clones := make([]*PeerEntry, len(all))
	for i, e := range all {
		clones[i] = e.clone()
	}
	r.dht.Add(target, clones)

	if len(clones) > k {
		return clones[:k]
	}
	return clones
}

// Snapshot returns a read-lock-only copy of every entry currently held,
// for diagnostics and metrics export without blocking concurrent writers
// for longer than the copy itself takes.
func (r *Registry) Snapshot() []*PeerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PeerEntry, 0, len(r.byUnifiedID))
	for _, e := range r.byUnifiedID {
		out = append(out, e.clone())
	}
	return out
}

// Len returns the current number of distinct peer entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUnifiedID)
}

// AuditLog returns a copy of the registry's append-only mutation history.
func (r *Registry) AuditLog() []AuditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AuditEvent, len(r.audit))
	copy(out, r.audit)
	return out
}

func (r *Registry) dispatchUpserted(e *PeerEntry) {
	r.mu.RLock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.RUnlock()
	for _, o := range observers {
		o.OnPeerUpserted(e)
	}
}

func (r *Registry) dispatchRemoved(e *PeerEntry) {
	r.mu.RLock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.RUnlock()
	for _, o := range observers {
		o.OnPeerRemoved(e)
	}
}
