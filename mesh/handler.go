// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mesh

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/zhtp-network/zhtp/peer"
	"github.com/zhtp-network/zhtp/transport"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// Callbacks lets higher-level subsystems (consensus, web4) observe
// envelopes the handler has fully reassembled and classified, without
// mesh importing those packages directly.
type Callbacks struct {
	OnNewBlock       func(from zhtpid.NodeID, blockData []byte)
	OnNewTransaction func(from zhtpid.NodeID, txData []byte)
	OnZhtpRequest    func(from zhtpid.NodeID, req *ZhtpRequest) *ZhtpResponse
	OnUbiDistribution func(from zhtpid.NodeID, dist *UbiDistribution) error
}

// Handler is the Mesh Message Handler and Transport Multiplexer: it
// registers with every available transport.Transport, reassembles
// chunked payloads, dispatches each fully-formed Envelope by Kind, and
// selects which transport to use when sending from the set of transports
// the handler has recorded as reaching each peer (spec §4.3).
type Handler struct {
	self       zhtpid.NodeID
	transports map[transport.Kind]transport.Transport
	reachable  map[zhtpid.NodeID]map[transport.Kind]bool

	registry   *peer.Registry
	reassembly *Reassembler
	sync       *Coordinator
	discovery  *DiscoveryCoordinator
	ubi        *ubiReplayWindow
	verifier   Verifier
	limiter    *peer.RateLimiter

	callbacks Callbacks
}

// NewHandler creates a handler for self, backed by registry for peer
// resolution and verifier for DHT generic-payload signature checks.
func NewHandler(self zhtpid.NodeID, registry *peer.Registry, verifier Verifier, cb Callbacks) *Handler {
	return &Handler{
		self:       self,
		transports: make(map[transport.Kind]transport.Transport),
		reachable:  make(map[zhtpid.NodeID]map[transport.Kind]bool),
		registry:   registry,
		reassembly: NewReassembler(30 * time.Second),
		sync:       NewCoordinator(),
		discovery:  NewDiscoveryCoordinator(),
		ubi:        newUBIReplayWindow(),
		verifier:   verifier,
		limiter:    peer.NewRateLimiter(),
		callbacks:  cb,
	}
}

// RegisterTransport adds t to the multiplexer, wiring its inbound handler
// to dispatch through this Handler.
func (h *Handler) RegisterTransport(t transport.Transport) {
	h.transports[t.Kind()] = t
	t.RegisterHandler(transport.MessageTypeDHTPayload, h.onTransportMessage)
	t.RegisterHandler(transport.MessageTypeDiscovery, h.onTransportMessage)
	t.RegisterHandler(transport.MessageTypeBlockSyncChunk, h.onTransportMessage)
	t.RegisterHandler(transport.MessageTypeBootstrapProof, h.onTransportMessage)
	t.RegisterHandler(transport.MessageTypeHeartbeat, h.onTransportMessage)
}

// MarkReachable records that peer is currently reachable over kind,
// learned from a successful Connect or an inbound message, feeding
// PreferredTransport's choice on the next Send.
func (h *Handler) MarkReachable(p zhtpid.NodeID, kind transport.Kind) {
	set, ok := h.reachable[p]
	if !ok {
		set = make(map[transport.Kind]bool)
		h.reachable[p] = set
	}
	set[kind] = true
}

// Send encodes env as CBOR, splits it into chunks sized for the best
// transport currently known to reach env.To, and sends every chunk.
func (h *Handler) Send(env *Envelope, now time.Time) error {
	kind, ok := PreferredTransport(h.reachable[env.To])
	if !ok {
		return fmt.Errorf("mesh: no known reachable transport for peer %s", env.To)
	}
	t, ok := h.transports[kind]
	if !ok {
		return fmt.Errorf("mesh: transport %s is not registered", kind)
	}

	payload, err := cbor.Marshal(env)
	if err != nil {
		return err
	}
	for _, c := range Split(payload, kind) {
		chunkBytes, err := cbor.Marshal(c)
		if err != nil {
			return err
		}
		msg := &transport.Message{Type: transport.MessageTypeBlockSyncChunk, From: h.self, To: env.To, Payload: chunkBytes}
		if err := t.Send(env.To, msg); err != nil {
			return err
		}
	}
	return nil
}

// onTransportMessage is the single entry point every registered
// transport's inbound handler calls. It reassembles chunked payloads and,
// once a full Envelope is available, dispatches it.
func (h *Handler) onTransportMessage(from zhtpid.NodeID, msg *transport.Message) {
	var c Chunk
	if err := cbor.Unmarshal(msg.Payload, &c); err != nil {
		return
	}
	full, ok, err := h.reassembly.Add(c, time.Now())
	if err != nil || !ok {
		return
	}
	var env Envelope
	if err := cbor.Unmarshal(full, &env); err != nil {
		return
	}
	h.Dispatch(from, &env, time.Now())
}

// Dispatch routes a fully reassembled Envelope to the handler logic for
// its Kind. Exported directly so tests and an in-process loopback
// transport can skip the chunking round trip.
func (h *Handler) Dispatch(from zhtpid.NodeID, env *Envelope, now time.Time) {
	switch env.Kind {
	case KindNewBlock:
		if env.NewBlock != nil && h.callbacks.OnNewBlock != nil {
			h.callbacks.OnNewBlock(from, env.NewBlock.BlockData)
		}
	case KindNewTransaction:
		if env.NewTransaction != nil && h.callbacks.OnNewTransaction != nil {
			h.callbacks.OnNewTransaction(from, env.NewTransaction.TxData)
		}
	case KindZhtpRequest:
		if env.ZhtpRequest != nil && h.callbacks.OnZhtpRequest != nil {
			h.callbacks.OnZhtpRequest(from, env.ZhtpRequest)
		}
	case KindUbiDistribution:
		if env.UbiDistribution != nil {
			if err := h.ubi.Accept(env.UbiDistribution); err == nil && h.callbacks.OnUbiDistribution != nil {
				h.callbacks.OnUbiDistribution(from, env.UbiDistribution)
			}
		}
	case KindDhtGenericPayload:
		if env.DhtGenericPayload != nil {
			_ = HandleGenericPayload(h.registry, h.verifier, h.limiter, from, env.DhtGenericPayload, now)
		}
	case KindPeerAnnouncement:
		if env.PeerAnnouncement != nil {
			for proto := range env.PeerAnnouncement.Endpoints {
				h.sync.RegisterPeerProtocol(from, SyncType(proto))
			}
		}
	}
}

// SyncCoordinator exposes the handler's Sync Coordinator for callers that
// need to start/complete sync sessions directly.
func (h *Handler) SyncCoordinator() *Coordinator { return h.sync }

// DiscoveryCoordinator exposes the handler's Discovery Coordinator.
func (h *Handler) DiscoveryCoordinator() *DiscoveryCoordinator { return h.discovery }
