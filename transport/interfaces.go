// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport defines the narrow interface the mesh message handler
// programs against, independent of which physical medium carries the
// bytes. Each of the six transports named in spec §4.2 (QUIC, BLE,
// Bluetooth Classic, Wi-Fi Direct, LoRa, UDP multicast) implements Kind
// and Transport; the multiplexer in mesh/ selects among them per message.
package transport

import "github.com/zhtp-network/zhtp/zhtpid"

// Kind identifies which physical transport carried or should carry a
// message.
type Kind uint8

const (
	KindQUIC Kind = iota
	KindBLE
	KindBluetoothClassic
	KindWiFiDirect
	KindLoRa
	KindUDPMulticast
)

// String returns the transport kind's lowercase name.
func (k Kind) String() string {
	switch k {
	case KindQUIC:
		return "quic"
	case KindBLE:
		return "ble"
	case KindBluetoothClassic:
		return "bt-classic"
	case KindWiFiDirect:
		return "wifi-direct"
	case KindLoRa:
		return "lora"
	case KindUDPMulticast:
		return "udp-multicast"
	default:
		return "unknown"
	}
}

// MessageType identifies the payload kind carried in a Message, mirroring
// the mesh message sum type (spec §4.2).
type MessageType uint8

const (
	MessageTypeConsensusVote MessageType = iota
	MessageTypeProposal
	MessageTypeBlockSyncChunk
	MessageTypeDHTPayload
	MessageTypeBootstrapProof
	MessageTypeDiscovery
	MessageTypeHeartbeat
)

// Message is the envelope exchanged between two NodeIDs over any
// transport.
type Message struct {
	Type    MessageType
	From    zhtpid.NodeID
	To      zhtpid.NodeID
	Payload []byte
}

// Handler processes an inbound message from a peer.
type Handler func(from zhtpid.NodeID, msg *Message)

// Transport is the interface every physical medium adapter implements.
type Transport interface {
	// Kind identifies which physical medium this adapter carries traffic
	// over.
	Kind() Kind
	// NodeID returns the local node's identifier.
	NodeID() zhtpid.NodeID
	// Connect establishes a connection to a peer at endpoint.
	Connect(peerID zhtpid.NodeID, endpoint string) error
	// Broadcast sends msg to every connected peer.
	Broadcast(msg *Message) error
	// Send sends msg to a single peer.
	Send(peerID zhtpid.NodeID, msg *Message) error
	// RegisterHandler registers the callback invoked for a message type.
	RegisterHandler(msgType MessageType, handler Handler)
	// Start begins listening for inbound connections/messages.
	Start() error
	// Stop shuts down the transport.
	Stop() error
}
