// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bft

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/zhtp-network/zhtp/transport"
	"github.com/zhtp-network/zhtp/validators"
	"github.com/zhtp-network/zhtp/zhtpid"
)

var errNodeNotFound = errors.New("bft: node not found in the validator set")

// wireMessage is the CBOR envelope RoundState's Proposal/Vote travel in
// over the mesh transport; at most one of Proposal/Vote is set.
type wireMessage struct {
	Proposal *Proposal
	Vote     *Vote
}

// Comm broadcasts and sends round messages to other validators over the
// mesh transport multiplexer, replacing the teacher's luxfi/node network
// sender (unavailable to this module) with our own transport.Transport and
// CBOR wire encoding in place of the node-internal p2p.BFT protobuf.
type Comm struct {
	logger    *loggerWrapper
	self      zhtpid.NodeID
	transport transport.Transport
	all       []zhtpid.NodeID
}

// NewComm builds a Comm that sends over t, rejecting construction if self
// is not part of the active validator set.
func NewComm(self zhtpid.NodeID, vs validators.Set, t transport.Transport, log *loggerWrapper) (*Comm, error) {
	if !vs.Has(self) {
		log.Error("node is not a validator", zap.Stringer("nodeID", self))
		return nil, fmt.Errorf("our %w: %s", errNodeNotFound, self)
	}

	all := make([]zhtpid.NodeID, 0, vs.Len())
	for _, v := range vs.List() {
		all = append(all, v.NodeID)
	}

	return &Comm{logger: log, self: self, transport: t, all: all}, nil
}

// Nodes returns every validator's NodeID, including this node's own.
func (c *Comm) Nodes() []zhtpid.NodeID {
	return c.all
}

// SendProposal sends p to a single peer.
func (c *Comm) SendProposal(p *Proposal, to zhtpid.NodeID) {
	c.send(wireMessage{Proposal: p}, transport.MessageTypeProposal, &to)
}

// BroadcastProposal sends p to every validator but this node.
func (c *Comm) BroadcastProposal(p *Proposal) {
	c.send(wireMessage{Proposal: p}, transport.MessageTypeProposal, nil)
}

// SendVote sends v to a single peer.
func (c *Comm) SendVote(v *Vote, to zhtpid.NodeID) {
	c.send(wireMessage{Vote: v}, transport.MessageTypeConsensusVote, &to)
}

// BroadcastVote sends v to every validator but this node.
func (c *Comm) BroadcastVote(v *Vote) {
	c.send(wireMessage{Vote: v}, transport.MessageTypeConsensusVote, nil)
}

func (c *Comm) send(wm wireMessage, msgType transport.MessageType, to *zhtpid.NodeID) {
	payload, err := cbor.Marshal(wm)
	if err != nil {
		c.logger.Error("failed to encode round message", zap.Error(err))
		return
	}
	msg := &transport.Message{Type: msgType, From: c.self, Payload: payload}
	if to != nil {
		msg.To = *to
		if err := c.transport.Send(*to, msg); err != nil {
			c.logger.Error("failed to send round message", zap.Error(err))
		}
		return
	}
	if err := c.transport.Broadcast(msg); err != nil {
		c.logger.Error("failed to broadcast round message", zap.Error(err))
	}
}

// decodeWireMessage decodes a Comm-encoded payload back into its
// Proposal/Vote, for use by the handler registered against the transport.
func decodeWireMessage(payload []byte) (wireMessage, error) {
	var wm wireMessage
	err := cbor.Unmarshal(payload, &wm)
	return wm, err
}
