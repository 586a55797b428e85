// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package peer

import (
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// slidingWindow counts events in the trailing window duration using a
// simple timestamp ring rather than a fixed-bucket counter, adequate at
// the registry's expected per-peer event rates and simple to reason about
// under concurrent access.
type slidingWindow struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	events   []time.Time
}

func newSlidingWindow(window time.Duration, limit int) *slidingWindow {
	return &slidingWindow{window: window, limit: limit}
}

// Allow records an event at now if the window's limit has not been
// reached, evicting events that have aged out first.
func (w *slidingWindow) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = w.events[i:]
	}
	if len(w.events) >= w.limit {
		return false
	}
	w.events = append(w.events, now)
	return true
}

// PeerPerMinuteLimit is the maximum number of registry-mutating requests
// a single peer may make per minute.
const PeerPerMinuteLimit = 10

// GlobalPerSecondLimit is the maximum number of registry-mutating
// requests accepted across all peers per second.
const GlobalPerSecondLimit = 1000

// RateLimiter enforces a per-peer 10/min sliding window and a global
// 1000/s sliding window over registry-mutating operations (upsert,
// commit_batch), rejecting a request if either window is exhausted.
type RateLimiter struct {
	mu     sync.Mutex
	global *slidingWindow
	peers  map[zhtpid.NodeID]*slidingWindow
}

// NewRateLimiter creates a rate limiter with the standard per-peer and
// global windows.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		global: newSlidingWindow(time.Second, GlobalPerSecondLimit),
		peers:  make(map[zhtpid.NodeID]*slidingWindow),
	}
}

// Allow reports whether a mutating request from peer at now should be
// accepted. The per-peer window is checked first, since it is the
// cheaper, more common rejection path; the global window is consulted
// only when the per-peer window admits the request.
func (rl *RateLimiter) Allow(peer zhtpid.NodeID, now time.Time) bool {
	rl.mu.Lock()
	w, ok := rl.peers[peer]
	if !ok {
		w = newSlidingWindow(time.Minute, PeerPerMinuteLimit)
		rl.peers[peer] = w
	}
	rl.mu.Unlock()

	if !w.Allow(now) {
		return false
	}
	return rl.global.Allow(now)
}
