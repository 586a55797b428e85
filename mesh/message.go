// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mesh implements the Mesh Message Handler and Transport
// Multiplexer (spec §4.3): a single sum-typed message space dispatched
// across whichever physical transport.Transport carried it, a chunking
// contract for payloads too large for a given medium's MTU, the Sync
// Coordinator (one sync per peer/type), and the Discovery Coordinator
// (dedup across discovery protocols). Messages travel CBOR-encoded over
// transport.Message.Payload, following the same encode-over-the-wire
// convention engine/bft's Comm established for consensus traffic.
package mesh

import (
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// Kind identifies which variant of Envelope is populated, mirroring the
// message space spec §4.3 enumerates.
type Kind uint8

const (
	KindPeerDiscovery Kind = iota
	KindPeerAnnouncement
	KindConnectivityRequest
	KindConnectivityResponse
	KindLongRangeRoute
	KindUbiDistribution
	KindHealthReport
	KindZhtpRequest
	KindZhtpResponse
	KindBlockchainRequest
	KindBlockchainData
	KindNewBlock
	KindNewTransaction
	KindRouteProbe
	KindRouteProbeResponse
	KindBootstrapProofRequest
	KindBootstrapProofResponse
	KindHeadersRequest
	KindHeadersResponse
	KindDhtStore
	KindDhtStoreAck
	KindDhtFindValue
	KindDhtFindValueResponse
	KindDhtFindNode
	KindDhtFindNodeResponse
	KindDhtPing
	KindDhtPong
	KindDhtGenericPayload
)

// String returns the kind's lowercase identifier.
func (k Kind) String() string {
	names := [...]string{
		"peer_discovery", "peer_announcement", "connectivity_request", "connectivity_response",
		"long_range_route", "ubi_distribution", "health_report", "zhtp_request", "zhtp_response",
		"blockchain_request", "blockchain_data", "new_block", "new_transaction",
		"route_probe", "route_probe_response", "bootstrap_proof_request", "bootstrap_proof_response",
		"headers_request", "headers_response", "dht_store", "dht_store_ack",
		"dht_find_value", "dht_find_value_response", "dht_find_node", "dht_find_node_response",
		"dht_ping", "dht_pong", "dht_generic_payload",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// PeerDiscovery announces the sender is looking for peers on a given
// protocol.
type PeerDiscovery struct {
	Protocol string
}

// PeerAnnouncement advertises the sender's reachable endpoints.
type PeerAnnouncement struct {
	Endpoints map[string]string
}

// ConnectivityRequest/Response probe whether a peer can be reached over a
// specific transport before committing to a full connection attempt.
type ConnectivityRequest struct {
	Transport string
}

type ConnectivityResponse struct {
	Reachable bool
	LatencyMS uint32
}

// LongRangeRoute carries a multi-hop route discovered over a long-range
// transport (e.g. LoRa), relayed toward its destination by intermediate
// nodes.
type LongRangeRoute struct {
	Destination zhtpid.NodeID
	Hops        []zhtpid.NodeID
}

// UbiDistribution carries a universal-basic-income payout for a single
// round, keyed so a recipient can detect and reject a replay (spec §4.3
// "UBI replay resistance via per-recipient last_round").
type UbiDistribution struct {
	Recipient zhtpid.ID
	Round     uint64
	Amount    uint64
	Signature []byte
}

// HealthReport carries a lightweight liveness/load summary.
type HealthReport struct {
	Load      float64
	Timestamp time.Time
}

// ZhtpRequest/Response carry an application-level request/response over
// the mesh, used by the Web4 registry and other higher-level consumers.
type ZhtpRequest struct {
	Path    string
	Payload []byte
}

type ZhtpResponse struct {
	Status  uint16
	Payload []byte
}

// BlockchainRequest/Data exchange raw chain data (a range of blocks) for
// catch-up sync.
type BlockchainRequest struct {
	FromHeight uint64
	ToHeight   uint64
}

type BlockchainData struct {
	Blocks [][]byte
}

// NewBlock/NewTransaction gossip freshly produced chain data.
type NewBlock struct {
	BlockData []byte
}

type NewTransaction struct {
	TxData []byte
}

// RouteProbe/RouteProbeResponse measure path quality toward a
// destination, feeding transport-selection preference.
type RouteProbe struct {
	Destination zhtpid.NodeID
	SentAt      time.Time
}

type RouteProbeResponse struct {
	Destination zhtpid.NodeID
	RoundTripMS uint32
}

// BootstrapProofRequest/Response exchange a proof a joining node presents
// to an already-bootstrapped validator before being admitted to the
// network.
type BootstrapProofRequest struct {
	Proof []byte
}

type BootstrapProofResponse struct {
	Accepted bool
	Reason   string
}

// HeadersRequest/Response exchange block headers only, for light
// synchronization.
type HeadersRequest struct {
	FromHeight uint64
	Count      uint32
}

type HeadersResponse struct {
	Headers [][]byte
}

// Dht* carry Kademlia-style DHT operations.
type DhtStore struct {
	Key   zhtpid.ID
	Value []byte
}

type DhtStoreAck struct {
	Key zhtpid.ID
	OK  bool
}

type DhtFindValue struct {
	Key zhtpid.ID
}

type DhtFindValueResponse struct {
	Key    zhtpid.ID
	Value  []byte
	Found  bool
	Closer []zhtpid.NodeID
}

type DhtFindNode struct {
	Target zhtpid.NodeID
}

type DhtFindNodeResponse struct {
	Closer []zhtpid.NodeID
}

type DhtPing struct{}

type DhtPong struct{}

// DhtGenericPayload carries an arbitrary application payload through the
// DHT overlay, authenticated by the sender's signature over
// peer.key_id || payload (spec §4.3 step-by-step generic payload
// handling).
type DhtGenericPayload struct {
	KeyID     []byte
	Payload   []byte
	Signature []byte
}

// Envelope is the wire message travelling between two NodeIDs: exactly
// one of its pointer fields is non-nil, selected by Kind, the same
// one-of-N-pointer-fields convention engine/bft.wireMessage uses for
// Proposal/Vote.
type Envelope struct {
	Kind Kind
	From zhtpid.NodeID
	To   zhtpid.NodeID

	PeerDiscovery          *PeerDiscovery          `cbor:",omitempty"`
	PeerAnnouncement       *PeerAnnouncement       `cbor:",omitempty"`
	ConnectivityRequest    *ConnectivityRequest    `cbor:",omitempty"`
	ConnectivityResponse   *ConnectivityResponse   `cbor:",omitempty"`
	LongRangeRoute         *LongRangeRoute         `cbor:",omitempty"`
	UbiDistribution        *UbiDistribution        `cbor:",omitempty"`
	HealthReport           *HealthReport           `cbor:",omitempty"`
	ZhtpRequest            *ZhtpRequest            `cbor:",omitempty"`
	ZhtpResponse           *ZhtpResponse           `cbor:",omitempty"`
	BlockchainRequest      *BlockchainRequest      `cbor:",omitempty"`
	BlockchainData         *BlockchainData         `cbor:",omitempty"`
	NewBlock               *NewBlock               `cbor:",omitempty"`
	NewTransaction         *NewTransaction         `cbor:",omitempty"`
	RouteProbe             *RouteProbe             `cbor:",omitempty"`
	RouteProbeResponse     *RouteProbeResponse     `cbor:",omitempty"`
	BootstrapProofRequest  *BootstrapProofRequest  `cbor:",omitempty"`
	BootstrapProofResponse *BootstrapProofResponse `cbor:",omitempty"`
	HeadersRequest         *HeadersRequest         `cbor:",omitempty"`
	HeadersResponse        *HeadersResponse        `cbor:",omitempty"`
	DhtStore               *DhtStore               `cbor:",omitempty"`
	DhtStoreAck            *DhtStoreAck            `cbor:",omitempty"`
	DhtFindValue           *DhtFindValue           `cbor:",omitempty"`
	DhtFindValueResponse   *DhtFindValueResponse   `cbor:",omitempty"`
	DhtFindNode            *DhtFindNode            `cbor:",omitempty"`
	DhtFindNodeResponse    *DhtFindNodeResponse    `cbor:",omitempty"`
	DhtPing                *DhtPing                `cbor:",omitempty"`
	DhtPong                *DhtPong                `cbor:",omitempty"`
	DhtGenericPayload      *DhtGenericPayload      `cbor:",omitempty"`
}
