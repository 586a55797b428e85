// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mesh

import (
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/transport"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// DiscoveryProtocol names a channel a peer can be discovered over. The
// same peer is frequently announced redundantly across several of these
// within a short window (a multicast announcement followed moments later
// by an mDNS one); DiscoveryCoordinator exists to dedup that.
type DiscoveryProtocol uint8

const (
	DiscoveryMulticast DiscoveryProtocol = iota
	DiscoveryMDNS
	DiscoveryWiFiDirect
	DiscoveryBLE
	DiscoveryBluetoothClassic
)

// Sighting is one observation of a peer via a discovery protocol.
type Sighting struct {
	NodeID   zhtpid.NodeID
	Protocol DiscoveryProtocol
	Endpoint string
	Kind     transport.Kind
	At       time.Time
}

// dedupWindow is how long a (NodeID, endpoint) pair is suppressed after
// its most recent report, whichever protocol carried it.
const dedupWindow = 5 * time.Second

// DiscoveryCoordinator deduplicates peer sightings arriving concurrently
// from multiple discovery protocols, so the peer registry sees one
// logical discovery event rather than one per protocol that happened to
// find the same peer (spec §4.3 Discovery Coordinator).
type DiscoveryCoordinator struct {
	mu   sync.Mutex
	seen map[zhtpid.NodeID]map[string]time.Time // nodeID -> endpoint -> lastReportedAt
}

// NewDiscoveryCoordinator creates an empty discovery coordinator.
func NewDiscoveryCoordinator() *DiscoveryCoordinator {
	return &DiscoveryCoordinator{seen: make(map[zhtpid.NodeID]map[string]time.Time)}
}

// Observe records a sighting, returning true if it is novel enough to act
// on (i.e. not a repeat, via any protocol, of a NodeID/endpoint pair
// last reported less than dedupWindow earlier).
func (d *DiscoveryCoordinator) Observe(s Sighting) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	byEndpoint, ok := d.seen[s.NodeID]
	if !ok {
		byEndpoint = make(map[string]time.Time)
		d.seen[s.NodeID] = byEndpoint
	}
	last, exists := byEndpoint[s.Endpoint]
	byEndpoint[s.Endpoint] = s.At
	if exists && s.At.Sub(last) < dedupWindow {
		return false
	}
	return true
}

// Sweep discards sighting records older than dedupWindow, bounding the
// coordinator's memory use.
func (d *DiscoveryCoordinator) Sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for nodeID, byEndpoint := range d.seen {
		for endpoint, at := range byEndpoint {
			if now.Sub(at) > dedupWindow {
				delete(byEndpoint, endpoint)
			}
		}
		if len(byEndpoint) == 0 {
			delete(d.seen, nodeID)
		}
	}
}

// PreferredTransport picks the best transport.Kind to reach a peer from
// the set it was last seen advertising, applying the fixed preference
// order QUIC > WiFiDirect > BluetoothClassic > BLE > LoRa > UDPMulticast
// (spec §4.3 "transport selection preference logic": prefer
// higher-bandwidth, lower-latency media when more than one path exists).
func PreferredTransport(available map[transport.Kind]bool) (transport.Kind, bool) {
	preference := []transport.Kind{
		transport.KindQUIC,
		transport.KindWiFiDirect,
		transport.KindBluetoothClassic,
		transport.KindBLE,
		transport.KindLoRa,
		transport.KindUDPMulticast,
	}
	for _, k := range preference {
		if available[k] {
			return k, true
		}
	}
	return 0, false
}
