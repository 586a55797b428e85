// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhtp-network/zhtp/log"
	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/transport"
	"github.com/zhtp-network/zhtp/zhtpid"
)

type recordingTransport struct {
	self       zhtpid.NodeID
	sent       []*transport.Message
	broadcasts []*transport.Message
}

func (rt *recordingTransport) Kind() transport.Kind                { return transport.KindQUIC }
func (rt *recordingTransport) NodeID() zhtpid.NodeID               { return rt.self }
func (rt *recordingTransport) Connect(zhtpid.NodeID, string) error { return nil }
func (rt *recordingTransport) Start() error                        { return nil }
func (rt *recordingTransport) Stop() error                         { return nil }
func (rt *recordingTransport) RegisterHandler(transport.MessageType, transport.Handler) {}

func (rt *recordingTransport) Send(peerID zhtpid.NodeID, msg *transport.Message) error {
	rt.sent = append(rt.sent, msg)
	return nil
}

func (rt *recordingTransport) Broadcast(msg *transport.Message) error {
	rt.broadcasts = append(rt.broadcasts, msg)
	return nil
}

func TestCommBroadcastProposalEncodesOverTransport(t *testing.T) {
	set, keys := newFakeValidatorSet(t, 3)
	self := keys[0].NodeID
	rt := &recordingTransport{}
	logger := NewLoggerWrapper(log.NewNoOpLogger()).(*loggerWrapper)

	comm, err := NewComm(self, set, rt, logger)
	require.NoError(t, err)
	require.Len(t, comm.Nodes(), 3)

	proposal := &Proposal{ID: zhtpid.ID{0x09}, Height: 1, Proposer: self}
	comm.BroadcastProposal(proposal)

	require.Len(t, rt.broadcasts, 1)
	decoded, err := decodeWireMessage(rt.broadcasts[0].Payload)
	require.NoError(t, err)
	require.NotNil(t, decoded.Proposal)
	require.Equal(t, proposal.ID, decoded.Proposal.ID)
}

func TestNewCommRejectsNonValidator(t *testing.T) {
	set, _ := newFakeValidatorSet(t, 3)
	outsider, err := ringtail.GenerateKeyPair()
	require.NoError(t, err)
	logger := NewLoggerWrapper(log.NewNoOpLogger()).(*loggerWrapper)

	_, err = NewComm(outsider.NodeID, set, &recordingTransport{}, logger)
	require.Error(t, err)
}
