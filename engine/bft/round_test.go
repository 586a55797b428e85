// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/validators"
	"github.com/zhtp-network/zhtp/zhtpid"
)

type fakeValidatorSet struct {
	keys map[zhtpid.NodeID]*ringtail.KeyPair
}

func newFakeValidatorSet(t *testing.T, n int) (*fakeValidatorSet, []*ringtail.KeyPair) {
	t.Helper()
	set := &fakeValidatorSet{keys: make(map[zhtpid.NodeID]*ringtail.KeyPair, n)}
	ordered := make([]*ringtail.KeyPair, 0, n)
	for i := 0; i < n; i++ {
		kp, err := ringtail.GenerateKeyPair()
		require.NoError(t, err)
		set.keys[kp.NodeID] = kp
		ordered = append(ordered, kp)
	}
	return set, ordered
}

func (s *fakeValidatorSet) Has(nodeID zhtpid.NodeID) bool { _, ok := s.keys[nodeID]; return ok }
func (s *fakeValidatorSet) Len() int                       { return len(s.keys) }

func (s *fakeValidatorSet) List() []*validators.Output {
	out := make([]*validators.Output, 0, len(s.keys))
	for id, kp := range s.keys {
		out = append(out, &validators.Output{NodeID: id, PublicKey: kp.PublicKeyBytes(), Stake: 1})
	}
	return out
}

func (s *fakeValidatorSet) TotalStake() uint64 { return uint64(len(s.keys)) }

func (s *fakeValidatorSet) PublicKey(nodeID zhtpid.NodeID) ([]byte, bool) {
	kp, ok := s.keys[nodeID]
	if !ok {
		return nil, false
	}
	return kp.PublicKeyBytes(), true
}

func (s *fakeValidatorSet) QuorumSize() int {
	n := len(s.keys)
	f := (n - 1) / 3
	return 2*f + 1
}

func TestRoundStateReachesCompletionAtQuorum(t *testing.T) {
	SetVerifier(ringtail.NewVerifier())

	set, keys := newFakeValidatorSet(t, 4)
	proposer := keys[0]
	now := time.Now()

	prevHash := zhtpid.Empty
	blockData := make([]byte, zhtpid.Len)
	digest := append(append([]byte{}, prevHash.Bytes()...), blockData...)
	sig, err := proposer.Sign(digest)
	require.NoError(t, err)

	proposal := &Proposal{
		ID:           zhtpid.ID{0x01},
		Height:       1,
		Proposer:     proposer.NodeID,
		PreviousHash: prevHash,
		BlockData:    blockData,
		Timestamp:    now,
		Signature:    sig,
	}

	round := NewRoundState(1, 0, proposer.NodeID, proposer, set, 5*time.Second, now)
	require.Equal(t, PhaseProposed, round.Phase())

	require.NoError(t, round.SetProposal(proposal, now))
	require.Equal(t, PhasePreVoted, round.Phase())
	require.Equal(t, proposal, round.Proposal())

	// Three of four validators (quorum for n=4) pre-vote.
	for i := 0; i < 3; i++ {
		v := Vote{Voter: keys[i].NodeID, ProposalID: proposal.ID, Type: VotePreVote, Height: 1, Round: 0, Timestamp: now}
		sig, err := keys[i].Sign(v.signingPreimage())
		require.NoError(t, err)
		v.Signature = sig
		reached, err := round.AddVote(v)
		require.NoError(t, err)
		if i == 2 {
			require.True(t, reached)
		} else {
			require.False(t, reached)
		}
	}
	require.Equal(t, PhasePreCommitted, round.Phase())

	for i := 0; i < 3; i++ {
		v := Vote{Voter: keys[i].NodeID, ProposalID: proposal.ID, Type: VotePreCommit, Height: 1, Round: 0, Timestamp: now}
		sig, err := keys[i].Sign(v.signingPreimage())
		require.NoError(t, err)
		v.Signature = sig
		_, err = round.AddVote(v)
		require.NoError(t, err)
	}
	require.Equal(t, PhaseCommitted, round.Phase())

	for i := 0; i < 3; i++ {
		v := Vote{Voter: keys[i].NodeID, ProposalID: proposal.ID, Type: VoteCommit, Height: 1, Round: 0, Timestamp: now}
		sig, err := keys[i].Sign(v.signingPreimage())
		require.NoError(t, err)
		v.Signature = sig
		_, err = round.AddVote(v)
		require.NoError(t, err)
	}
	require.Equal(t, PhaseCompleted, round.Phase())

	preVotes, preCommits, commits := round.VoteCounts()
	require.Equal(t, 3, preVotes)
	require.Equal(t, 3, preCommits)
	require.Equal(t, 3, commits)
}

func TestRoundStateRejectsVoteFromNonValidator(t *testing.T) {
	SetVerifier(ringtail.NewVerifier())

	set, keys := newFakeValidatorSet(t, 4)
	outsider, err := ringtail.GenerateKeyPair()
	require.NoError(t, err)
	now := time.Now()

	round := NewRoundState(1, 0, keys[0].NodeID, keys[0], set, 5*time.Second, now)

	v := Vote{Voter: outsider.NodeID, ProposalID: zhtpid.ID{0x02}, Type: VotePreVote, Height: 1, Round: 0, Timestamp: now}
	sig, err := outsider.Sign(v.signingPreimage())
	require.NoError(t, err)
	v.Signature = sig

	_, err = round.AddVote(v)
	require.ErrorIs(t, err, ErrNotValidator)
}

func TestRoundStateIsExpired(t *testing.T) {
	set, keys := newFakeValidatorSet(t, 4)
	now := time.Now()
	round := NewRoundState(1, 0, keys[0].NodeID, keys[0], set, time.Second, now)

	require.False(t, round.IsExpired(now.Add(500*time.Millisecond)))
	require.True(t, round.IsExpired(now.Add(2*time.Second)))
}
